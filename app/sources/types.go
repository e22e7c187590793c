package sources

import (
	"context"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/event"
	"github.com/lysyi3m/event-comb/app/extract"
	"github.com/lysyi3m/event-comb/app/geo"
)

// Meta carries the adapter-specific parameters of a parsing job. Explicit
// country/city ids short-circuit gazetteer resolution; the optional inline
// city list replaces the database gazetteer for the operation.
type Meta struct {
	CountryID      string     `json:"countryId"`
	CityID         string     `json:"cityId"`
	CityName       string     `json:"cityName"`
	Specialization string     `json:"specialization"`
	MaxCities      int        `json:"maxCities"`
	SourceURL      string     `json:"sourceUrl"`
	Username       string     `json:"username"`
	Password       string     `json:"password"`
	Cities         []MetaCity `json:"cities"`
}

// MetaCity is an inline gazetteer entry supplied with the job.
type MetaCity struct {
	ID          string `json:"id"`
	CountryID   string `json:"country_id"`
	Name        string `json:"name"`
	Coordinates string `json:"coordinates"`
}

// Reporter streams an operation's progress and non-fatal problems into its
// audit log. Implementations must be safe for concurrent use; pool workers
// report from their own goroutines.
type Reporter interface {
	Progress(message string)
	Problem(message string)
}

// Job is everything one adapter invocation needs: parameters, the
// operation-scoped gazetteer snapshot, the rendering backend and the
// progress reporter.
type Job struct {
	OperationID string
	Meta        Meta
	Gazetteer   *geo.Gazetteer
	Backend     extract.Backend
	Reporter    Reporter
	Now         time.Time
}

// Result is the outcome of one adapter run. Per-item failures never abort a
// run; they are reported and counted instead.
type Result struct {
	Events  []event.Event
	Skipped int
}

// Adapter is a source-specific implementation of the extraction pipeline
// contract. Run returns an error only for unrecoverable setup failures,
// which become the operation's fatal error.
type Adapter interface {
	Type() database.OperationType
	Run(ctx context.Context, job *Job) (*Result, error)
}

// Registry maps operation types to their adapters, keeping dispatch closed
// over the known sources.
type Registry struct {
	adapters map[database.OperationType]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	m := make(map[database.OperationType]Adapter, len(adapters))
	for _, a := range adapters {
		m[a.Type()] = a
	}
	return &Registry{adapters: m}
}

func (r *Registry) Get(opType database.OperationType) (Adapter, bool) {
	a, ok := r.adapters[opType]
	return a, ok
}

// maxCities picks the job's locality cap: the request parameter wins,
// otherwise the source config's default applies (zero means no cap).
func maxCities(meta Meta, cfg Config) int {
	if meta.MaxCities > 0 {
		return meta.MaxCities
	}
	return cfg.MaxCities
}

// fetchDoc opens one page with the source's navigation timeout applied.
func fetchDoc(ctx context.Context, session extract.Session, pageURL string, timeout time.Duration) (*goquery.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	page := session.NewPage()
	defer page.Close()
	return page.Fetch(ctx, pageURL)
}

// resolveLocation applies the resolution order shared by all adapters:
// explicit job parameters win, then the gazetteer match. Returns ok=false
// when either id remains unknown; such events are dropped, not persisted.
func resolveLocation(meta Meta, matched *geo.City) (cityID, countryID string, ok bool) {
	cityID = meta.CityID
	countryID = meta.CountryID
	if matched != nil {
		if cityID == "" {
			cityID = matched.ID
		}
		if countryID == "" {
			countryID = matched.CountryID
		}
	}
	return cityID, countryID, cityID != "" && countryID != ""
}

// skipMessage renders the diagnostic line for a dropped event with enough
// context to debug a resolution miss.
func skipMessage(name, target string, matched *geo.City, meta Meta) string {
	matchedName := "null"
	matchedID := "-"
	matchedCountryID := "-"
	if matched != nil {
		matchedName = matched.Name
		matchedID = matched.ID
		matchedCountryID = matched.CountryID
	}
	providedCityID := meta.CityID
	if providedCityID == "" {
		providedCityID = "-"
	}
	providedCountryID := meta.CountryID
	if providedCountryID == "" {
		providedCountryID = "-"
	}
	return fmt.Sprintf(`Skip event %q - city/country id missing; pass meta.cityId/meta.countryId or ensure city exists in DB. [target=%q matched=%q matchedCityId=%s matchedCountryId=%s providedCityId=%s providedCountryId=%s]`,
		name, target, matchedName, matchedID, matchedCountryID, providedCityID, providedCountryID)
}

// applyCoordinates copies a matched city's fallback coordinates onto an
// event that has none of its own.
func applyCoordinates(e *event.Event, matched *geo.City) {
	if matched == nil || e.Lat != nil {
		return
	}
	coords, ok := geo.ParseCoordinates(matched.Coordinates)
	if !ok {
		return
	}
	special := false
	e.Lat = &coords.Lat
	e.Lon = &coords.Lon
	e.IsSpecialPointOnMap = &special
}

// specialization returns the job's specialization, defaulting to "Event".
func specialization(meta Meta) string {
	if meta.Specialization != "" {
		return meta.Specialization
	}
	return "Event"
}
