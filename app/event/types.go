package event

import (
	"regexp"
	"strings"
	"time"
)

// Source identifies which adapter produced an event.
type Source string

const (
	SourceFienta      Source = "fienta"
	SourceKontramarka Source = "kontramarka"
	SourceEventim     Source = "eventim"
)

// Contacts holds the public contact details of an event.
type Contacts struct {
	Website string `json:"website"`
}

// Photo is a single event photo reference.
type Photo struct {
	FullURL string `json:"full_url"`
}

// Event is the canonical, normalized representation of a parsed listing,
// independent of its source. Immutable once persisted; re-runs produce new
// rows instead of updating in place.
type Event struct {
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	Specialization string     `json:"specialization"`
	Source         Source     `json:"source"`
	CountryID      string     `json:"country_id"`
	CityID         string     `json:"city_id"`
	Address        string     `json:"address"`
	HoldingDate    string     `json:"holding_date"`
	DateStart      *time.Time `json:"date_start,omitempty"`
	DateEnd        *time.Time `json:"date_end,omitempty"`
	Contacts       Contacts   `json:"contacts"`
	Photos         []Photo    `json:"photos"`

	Lat                 *float64 `json:"lat,omitempty"`
	Lon                 *float64 `json:"lon,omitempty"`
	IsSpecialPointOnMap *bool    `json:"is_special_point_on_map,omitempty"`
	MinPrice            *float64 `json:"min_price,omitempty"`
	MaxPrice            *float64 `json:"max_price,omitempty"`

	// Dates carries every resolved timestamp contributing to the event so
	// the merge engine can union them. Not persisted.
	Dates []time.Time `json:"-"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CleanAddress collapses line breaks and whitespace runs in a free-text
// venue address.
func CleanAddress(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// SetDates assigns the contributing timestamps and recomputes the derived
// date fields (holding_date, date_start, date_end).
func (e *Event) SetDates(times []time.Time) {
	e.Dates = times
	e.HoldingDate = FormatHoldingDate(times)
	e.DateStart = nil
	e.DateEnd = nil
	for i := range times {
		t := times[i]
		if e.DateStart == nil || t.Before(*e.DateStart) {
			start := t
			e.DateStart = &start
		}
		if e.DateEnd == nil || t.After(*e.DateEnd) {
			end := t
			e.DateEnd = &end
		}
	}
}
