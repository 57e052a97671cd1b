package query

import (
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/ppiankov/gdeltwatch/internal/model"
)

func ptr(v float64) *float64 { return &v }

func testEvents() []model.NormalizedEvent {
	return []model.NormalizedEvent{
		{EventID: "1", EventType: "Protest", Country: "FR", SourceName: "PROTESTER", TargetName: "POLICE", Location: "Paris, France", Intensity: ptr(-6.5)},
		{EventID: "2", EventType: "Consult", Country: "US", SourceName: "PRESIDENT", TargetName: "CONGRESS", Location: "Washington, District of Columbia, United States", Intensity: ptr(1)},
		{EventID: "3", EventType: "Protest", Country: "US", SourceName: model.Unknown, TargetName: "GOVERNMENT", Location: "Portland, Oregon, United States"},
		{EventID: "4", EventType: "Fight", Country: "UP", SourceName: "MILITARY", TargetName: "RUSSIA", Location: "Kyiv, Ukraine", Intensity: ptr(-10)},
	}
}

func ids(events []model.NormalizedEvent) string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.EventID
	}
	return strings.Join(out, ",")
}

func TestApply(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{"empty filter matches all", Filter{}, "1,2,3,4"},
		{"event type", Filter{EventTypes: []string{"Protest"}}, "1,3"},
		{"event type and country", Filter{EventTypes: []string{"Protest"}, Countries: []string{"US"}}, "3"},
		{"multiple countries", Filter{Countries: []string{"UP", "FR"}}, "1,4"},
		{"search location case-insensitive", Filter{Search: "united states"}, "2,3"},
		{"search target", Filter{Search: "russ"}, "4"},
		{"min intensity excludes missing", Filter{MinIntensity: ptr(-7)}, "1,2"},
		{"max intensity inclusive", Filter{MaxIntensity: ptr(-10)}, "4"},
		{"intensity range", Filter{MinIntensity: ptr(-7), MaxIntensity: ptr(0)}, "1"},
		{"no match", Filter{Search: "atlantis"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page := tt.filter.Apply(testEvents())
			if got := ids(page.Events); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
			if page.Events == nil {
				t.Error("Expected non-nil events")
			}
		})
	}
}

func TestApply_Paging(t *testing.T) {
	f := Filter{Limit: 2, Offset: 1}
	page := f.Apply(testEvents())
	if ids(page.Events) != "2,3" {
		t.Errorf("Expected 2,3, got %s", ids(page.Events))
	}
	if page.Total != 4 {
		t.Errorf("Expected total 4, got %d", page.Total)
	}

	f = Filter{Offset: 10}
	if page := f.Apply(testEvents()); len(page.Events) != 0 || page.Total != 4 {
		t.Errorf("Expected empty page past the end, got %+v", page)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		filter    Filter
		wantField string
	}{
		{"negative limit", Filter{Limit: -1}, "Limit"},
		{"limit too large", Filter{Limit: MaxLimit + 1}, "Limit"},
		{"negative offset", Filter{Offset: -3}, "Offset"},
		{"intensity out of range", Filter{MinIntensity: ptr(-11)}, "MinIntensity"},
		{"inverted range", Filter{MinIntensity: ptr(5), MaxIntensity: ptr(-5)}, "MinIntensity"},
		{"empty event type", Filter{EventTypes: []string{""}}, "EventTypes[0]"},
		{"long search", Filter{Search: strings.Repeat("a", 201)}, "Search"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.filter.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected *ValidationError, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantField) {
				t.Errorf("Expected error naming %s, got %v", tt.wantField, err)
			}
		})
	}

	valid := Filter{EventTypes: []string{"Protest"}, MinIntensity: ptr(-10), MaxIntensity: ptr(10), Limit: 100}
	if err := valid.Validate(); err != nil {
		t.Errorf("Expected valid filter, got %v", err)
	}
}

func TestFromValues(t *testing.T) {
	v := url.Values{}
	v.Add("event_type", "Protest,Consult")
	v.Add("event_type", " Fight ")
	v.Set("country", "US")
	v.Set("q", "  police ")
	v.Set("min_intensity", "-5")
	v.Set("limit", "50")
	v.Set("offset", "10")

	f, err := FromValues(v)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if strings.Join(f.EventTypes, "|") != "Protest|Consult|Fight" {
		t.Errorf("Unexpected event types %v", f.EventTypes)
	}
	if len(f.Countries) != 1 || f.Search != "police" {
		t.Errorf("Unexpected filter %+v", f)
	}
	if f.MinIntensity == nil || *f.MinIntensity != -5 || f.MaxIntensity != nil {
		t.Errorf("Unexpected intensity bounds %v %v", f.MinIntensity, f.MaxIntensity)
	}
	if f.Limit != 50 || f.Offset != 10 {
		t.Errorf("Unexpected paging %d/%d", f.Limit, f.Offset)
	}
}

func TestFromValues_Invalid(t *testing.T) {
	for _, raw := range []string{"limit=abc", "min_intensity=high", "max_intensity=NaN", "offset=-1"} {
		v, _ := url.ParseQuery(raw)
		if _, err := FromValues(v); err == nil {
			t.Errorf("%s: expected error", raw)
		}
	}
}
