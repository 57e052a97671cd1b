package model

import "time"

// DateAddedLayout is the layout of the DATEADDED column (YYYYMMDDHHMMSS, UTC)
const DateAddedLayout = "20060102150405"

// Kind is the semantic type of an upstream column
type Kind int

const (
	KindString    Kind = iota // Free text or code
	KindInt                   // Integer count or class
	KindFloat                 // Signed decimal
	KindDate                  // YYYYMMDD / YYYYMM / YYYY calendar fields
	KindTimestamp             // YYYYMMDDHHMMSS
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	default:
		return "string"
	}
}

// Column describes one position of the upstream event export layout.
// Field returns the RawEvent slot holding the column's text value.
type Column struct {
	Name  string
	Kind  Kind
	Field func(*RawEvent) *string
}

// RawEvent is one row of the GDELT 2.0 event export, kept as text.
// Numeric columns are coerced later by the schema adapter so that an
// unparsable value becomes "missing" instead of aborting the row.
type RawEvent struct {
	GlobalEventID string
	Day           string
	MonthYear     string
	Year          string
	FractionDate  string

	Actor1Code           string
	Actor1Name           string
	Actor1CountryCode    string
	Actor1KnownGroupCode string
	Actor1EthnicCode     string
	Actor1Religion1Code  string
	Actor1Religion2Code  string
	Actor1Type1Code      string
	Actor1Type2Code      string
	Actor1Type3Code      string

	Actor2Code           string
	Actor2Name           string
	Actor2CountryCode    string
	Actor2KnownGroupCode string
	Actor2EthnicCode     string
	Actor2Religion1Code  string
	Actor2Religion2Code  string
	Actor2Type1Code      string
	Actor2Type2Code      string
	Actor2Type3Code      string

	IsRootEvent    string
	EventCode      string
	EventBaseCode  string
	EventRootCode  string
	QuadClass      string
	GoldsteinScale string
	NumMentions    string
	NumSources     string
	NumArticles    string
	AvgTone        string

	Actor1GeoType        string
	Actor1GeoFullName    string
	Actor1GeoCountryCode string
	Actor1GeoADM1Code    string
	Actor1GeoADM2Code    string
	Actor1GeoLat         string
	Actor1GeoLong        string
	Actor1GeoFeatureID   string

	Actor2GeoType        string
	Actor2GeoFullName    string
	Actor2GeoCountryCode string
	Actor2GeoADM1Code    string
	Actor2GeoADM2Code    string
	Actor2GeoLat         string
	Actor2GeoLong        string
	Actor2GeoFeatureID   string

	ActionGeoType        string
	ActionGeoFullName    string
	ActionGeoCountryCode string
	ActionGeoADM1Code    string
	ActionGeoADM2Code    string
	ActionGeoLat         string
	ActionGeoLong        string
	ActionGeoFeatureID   string

	DateAdded string
	SourceURL string

	// AddedAt is DateAdded parsed as UTC. Zero until the row parser sets it.
	AddedAt time.Time
}

// Columns is the ordered, header-less layout of an event export file.
// The row parser assigns tokens by position and the schema adapter and
// raw exporters read fields through the same list.
var Columns = []Column{
	{"GlobalEventID", KindInt, func(r *RawEvent) *string { return &r.GlobalEventID }},
	{"Day", KindDate, func(r *RawEvent) *string { return &r.Day }},
	{"MonthYear", KindDate, func(r *RawEvent) *string { return &r.MonthYear }},
	{"Year", KindDate, func(r *RawEvent) *string { return &r.Year }},
	{"FractionDate", KindFloat, func(r *RawEvent) *string { return &r.FractionDate }},

	{"Actor1Code", KindString, func(r *RawEvent) *string { return &r.Actor1Code }},
	{"Actor1Name", KindString, func(r *RawEvent) *string { return &r.Actor1Name }},
	{"Actor1CountryCode", KindString, func(r *RawEvent) *string { return &r.Actor1CountryCode }},
	{"Actor1KnownGroupCode", KindString, func(r *RawEvent) *string { return &r.Actor1KnownGroupCode }},
	{"Actor1EthnicCode", KindString, func(r *RawEvent) *string { return &r.Actor1EthnicCode }},
	{"Actor1Religion1Code", KindString, func(r *RawEvent) *string { return &r.Actor1Religion1Code }},
	{"Actor1Religion2Code", KindString, func(r *RawEvent) *string { return &r.Actor1Religion2Code }},
	{"Actor1Type1Code", KindString, func(r *RawEvent) *string { return &r.Actor1Type1Code }},
	{"Actor1Type2Code", KindString, func(r *RawEvent) *string { return &r.Actor1Type2Code }},
	{"Actor1Type3Code", KindString, func(r *RawEvent) *string { return &r.Actor1Type3Code }},

	{"Actor2Code", KindString, func(r *RawEvent) *string { return &r.Actor2Code }},
	{"Actor2Name", KindString, func(r *RawEvent) *string { return &r.Actor2Name }},
	{"Actor2CountryCode", KindString, func(r *RawEvent) *string { return &r.Actor2CountryCode }},
	{"Actor2KnownGroupCode", KindString, func(r *RawEvent) *string { return &r.Actor2KnownGroupCode }},
	{"Actor2EthnicCode", KindString, func(r *RawEvent) *string { return &r.Actor2EthnicCode }},
	{"Actor2Religion1Code", KindString, func(r *RawEvent) *string { return &r.Actor2Religion1Code }},
	{"Actor2Religion2Code", KindString, func(r *RawEvent) *string { return &r.Actor2Religion2Code }},
	{"Actor2Type1Code", KindString, func(r *RawEvent) *string { return &r.Actor2Type1Code }},
	{"Actor2Type2Code", KindString, func(r *RawEvent) *string { return &r.Actor2Type2Code }},
	{"Actor2Type3Code", KindString, func(r *RawEvent) *string { return &r.Actor2Type3Code }},

	{"IsRootEvent", KindInt, func(r *RawEvent) *string { return &r.IsRootEvent }},
	{"EventCode", KindString, func(r *RawEvent) *string { return &r.EventCode }},
	{"EventBaseCode", KindString, func(r *RawEvent) *string { return &r.EventBaseCode }},
	{"EventRootCode", KindString, func(r *RawEvent) *string { return &r.EventRootCode }},
	{"QuadClass", KindInt, func(r *RawEvent) *string { return &r.QuadClass }},
	{"GoldsteinScale", KindFloat, func(r *RawEvent) *string { return &r.GoldsteinScale }},
	{"NumMentions", KindInt, func(r *RawEvent) *string { return &r.NumMentions }},
	{"NumSources", KindInt, func(r *RawEvent) *string { return &r.NumSources }},
	{"NumArticles", KindInt, func(r *RawEvent) *string { return &r.NumArticles }},
	{"AvgTone", KindFloat, func(r *RawEvent) *string { return &r.AvgTone }},

	{"Actor1Geo_Type", KindInt, func(r *RawEvent) *string { return &r.Actor1GeoType }},
	{"Actor1Geo_FullName", KindString, func(r *RawEvent) *string { return &r.Actor1GeoFullName }},
	{"Actor1Geo_CountryCode", KindString, func(r *RawEvent) *string { return &r.Actor1GeoCountryCode }},
	{"Actor1Geo_ADM1Code", KindString, func(r *RawEvent) *string { return &r.Actor1GeoADM1Code }},
	{"Actor1Geo_ADM2Code", KindString, func(r *RawEvent) *string { return &r.Actor1GeoADM2Code }},
	{"Actor1Geo_Lat", KindFloat, func(r *RawEvent) *string { return &r.Actor1GeoLat }},
	{"Actor1Geo_Long", KindFloat, func(r *RawEvent) *string { return &r.Actor1GeoLong }},
	{"Actor1Geo_FeatureID", KindString, func(r *RawEvent) *string { return &r.Actor1GeoFeatureID }},

	{"Actor2Geo_Type", KindInt, func(r *RawEvent) *string { return &r.Actor2GeoType }},
	{"Actor2Geo_FullName", KindString, func(r *RawEvent) *string { return &r.Actor2GeoFullName }},
	{"Actor2Geo_CountryCode", KindString, func(r *RawEvent) *string { return &r.Actor2GeoCountryCode }},
	{"Actor2Geo_ADM1Code", KindString, func(r *RawEvent) *string { return &r.Actor2GeoADM1Code }},
	{"Actor2Geo_ADM2Code", KindString, func(r *RawEvent) *string { return &r.Actor2GeoADM2Code }},
	{"Actor2Geo_Lat", KindFloat, func(r *RawEvent) *string { return &r.Actor2GeoLat }},
	{"Actor2Geo_Long", KindFloat, func(r *RawEvent) *string { return &r.Actor2GeoLong }},
	{"Actor2Geo_FeatureID", KindString, func(r *RawEvent) *string { return &r.Actor2GeoFeatureID }},

	{"ActionGeo_Type", KindInt, func(r *RawEvent) *string { return &r.ActionGeoType }},
	{"ActionGeo_FullName", KindString, func(r *RawEvent) *string { return &r.ActionGeoFullName }},
	{"ActionGeo_CountryCode", KindString, func(r *RawEvent) *string { return &r.ActionGeoCountryCode }},
	{"ActionGeo_ADM1Code", KindString, func(r *RawEvent) *string { return &r.ActionGeoADM1Code }},
	{"ActionGeo_ADM2Code", KindString, func(r *RawEvent) *string { return &r.ActionGeoADM2Code }},
	{"ActionGeo_Lat", KindFloat, func(r *RawEvent) *string { return &r.ActionGeoLat }},
	{"ActionGeo_Long", KindFloat, func(r *RawEvent) *string { return &r.ActionGeoLong }},
	{"ActionGeo_FeatureID", KindString, func(r *RawEvent) *string { return &r.ActionGeoFeatureID }},

	{"DATEADDED", KindTimestamp, func(r *RawEvent) *string { return &r.DateAdded }},
	{"SOURCEURL", KindString, func(r *RawEvent) *string { return &r.SourceURL }},
}

// NumColumns is the exact token count of a well-formed export row
var NumColumns = len(Columns)

// ColumnNames returns the layout's column names in order
func ColumnNames() []string {
	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnIndex returns the position of the named column, or -1
func ColumnIndex(name string) int {
	for i, c := range Columns {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Set assigns the named column's text value. It reports false for unknown names.
func (r *RawEvent) Set(name, value string) bool {
	i := ColumnIndex(name)
	if i < 0 {
		return false
	}
	*Columns[i].Field(r) = value
	return true
}

// Values returns the row's text values in layout order
func (r *RawEvent) Values() []string {
	values := make([]string, len(Columns))
	for i, c := range Columns {
		values[i] = *c.Field(r)
	}
	return values
}

// MergedTable is the filtered, deduplicated, time-sorted set of raw rows
// from one refresh. Columns is always populated, even when Rows is empty.
type MergedTable struct {
	Columns []Column
	Rows    []RawEvent
}

// NewMergedTable returns a table carrying the full column layout
func NewMergedTable(rows []RawEvent) MergedTable {
	if rows == nil {
		rows = []RawEvent{}
	}
	return MergedTable{Columns: Columns, Rows: rows}
}

// Len returns the number of rows
func (t MergedTable) Len() int {
	return len(t.Rows)
}
