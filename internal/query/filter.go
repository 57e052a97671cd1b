// Package query filters a snapshot's events for the data explorer.
package query

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/ppiankov/gdeltwatch/internal/model"
)

// MaxLimit bounds a single page of results
const MaxLimit = 5000

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Filter selects events. Empty sets match everything; an intensity bound
// excludes events whose intensity is missing.
type Filter struct {
	EventTypes   []string `validate:"dive,required,max=100"`
	Countries    []string `validate:"dive,required,max=100"`
	Search       string   `validate:"max=200"`
	MinIntensity *float64 `validate:"omitempty,gte=-10,lte=10"`
	MaxIntensity *float64 `validate:"omitempty,gte=-10,lte=10"`
	Limit        int      `validate:"gte=0,lte=5000"` // 0 means no limit
	Offset       int      `validate:"gte=0"`
}

// FieldError is one rejected filter field
type FieldError struct {
	Field   string
	Message string
}

// ValidationError lists every rejected field
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Field + ": " + f.Message
	}
	return "invalid filter: " + strings.Join(msgs, "; ")
}

// Validate checks field bounds and that the intensity range is ordered
func (f *Filter) Validate() error {
	verr := &ValidationError{}

	if err := getValidator().Struct(f); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("validate filter: %w", err)
		}
		for _, fe := range fieldErrs {
			verr.Fields = append(verr.Fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
		}
	}

	if f.MinIntensity != nil && f.MaxIntensity != nil && *f.MinIntensity > *f.MaxIntensity {
		verr.Fields = append(verr.Fields, FieldError{Field: "MinIntensity", Message: "must not exceed MaxIntensity"})
	}

	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return "must be at least " + fe.Param()
	case "lte", "max":
		return "must be at most " + fe.Param()
	case "required":
		return "must not be empty"
	default:
		return "failed " + fe.Tag()
	}
}

// Matches reports whether a single event passes the filter
func (f *Filter) Matches(e *model.NormalizedEvent) bool {
	if len(f.EventTypes) > 0 && !contains(f.EventTypes, e.EventType) {
		return false
	}
	if len(f.Countries) > 0 && !contains(f.Countries, e.Country) {
		return false
	}
	if f.MinIntensity != nil || f.MaxIntensity != nil {
		if e.Intensity == nil {
			return false
		}
		if f.MinIntensity != nil && *e.Intensity < *f.MinIntensity {
			return false
		}
		if f.MaxIntensity != nil && *e.Intensity > *f.MaxIntensity {
			return false
		}
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(e.SourceName), needle) &&
			!strings.Contains(strings.ToLower(e.TargetName), needle) &&
			!strings.Contains(strings.ToLower(e.Location), needle) {
			return false
		}
	}
	return true
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Page is one window of matching events
type Page struct {
	Events []model.NormalizedEvent `json:"events"`
	Total  int                     `json:"total"` // Matches before paging
	Offset int                     `json:"offset"`
	Limit  int                     `json:"limit"`
}

// Apply returns the matching events in their original order, paged by
// Offset and Limit
func (f *Filter) Apply(events []model.NormalizedEvent) Page {
	matched := []model.NormalizedEvent{}
	for i := range events {
		if f.Matches(&events[i]) {
			matched = append(matched, events[i])
		}
	}

	page := Page{Total: len(matched), Offset: f.Offset, Limit: f.Limit}
	start := min(f.Offset, len(matched))
	end := len(matched)
	if f.Limit > 0 {
		end = min(start+f.Limit, end)
	}
	page.Events = matched[start:end]
	return page
}

// FromValues builds a filter from query parameters: event_type and country
// (repeated or comma separated), q, min_intensity, max_intensity, limit
// and offset. The result is validated.
func FromValues(v url.Values) (Filter, error) {
	f := Filter{
		EventTypes: listParam(v, "event_type"),
		Countries:  listParam(v, "country"),
		Search:     strings.TrimSpace(v.Get("q")),
	}

	var err error
	if f.MinIntensity, err = floatParam(v, "min_intensity"); err != nil {
		return f, err
	}
	if f.MaxIntensity, err = floatParam(v, "max_intensity"); err != nil {
		return f, err
	}
	if f.Limit, err = intParam(v, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(v, "offset"); err != nil {
		return f, err
	}

	return f, f.Validate()
}

func listParam(v url.Values, key string) []string {
	var out []string
	for _, raw := range v[key] {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func floatParam(v url.Values, key string) (*float64, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, &ValidationError{Fields: []FieldError{{Field: key, Message: "must be a number"}}}
	}
	return &f, nil
}

func intParam(v url.Values, key string) (int, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ValidationError{Fields: []FieldError{{Field: key, Message: "must be an integer"}}}
	}
	return n, nil
}
