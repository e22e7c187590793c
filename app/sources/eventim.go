package sources

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/event"
)

const maxFeedRedirects = 5

// EventimAdapter ingests the Eventim export: a gzip-compressed JSON feed of
// event series downloaded over HTTP(S) with optional Basic authentication.
// The last successfully parsed feed is kept on disk and used as a fallback
// when a fresh download cannot be obtained.
type EventimAdapter struct {
	feedURL   string
	username  string
	password  string
	cacheDir  string
	userAgent string
	client    *http.Client
}

func NewEventimAdapter(feedURL, username, password, cacheDir, userAgent string) *EventimAdapter {
	return &EventimAdapter{
		feedURL:   feedURL,
		username:  username,
		password:  password,
		cacheDir:  cacheDir,
		userAgent: userAgent,
		client: &http.Client{
			Timeout: 2 * time.Minute,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// redirects are followed manually so auth can be re-applied
				return http.ErrUseLastResponse
			},
		},
	}
}

func (a *EventimAdapter) Type() database.OperationType {
	return database.OperationTypeEventim
}

type eventimFeed struct {
	EventSeries []eventimSeries `json:"eventserie"`
}

type eventimSeries struct {
	Name         string         `json:"esName"`
	Text         string         `json:"esText"`
	Link         string         `json:"esLink"`
	Picture      string         `json:"esPicture"`
	PictureBig   string         `json:"esPictureBig"`
	PictureSmall string         `json:"esPictureSmall"`
	Events       []eventimEvent `json:"events"`
}

type eventimEvent struct {
	Name           string   `json:"eventName"`
	DateISO8601    string   `json:"eventDateIso8601"`
	Venue          string   `json:"eventVenue"`
	Street         string   `json:"eventStreet"`
	Zip            string   `json:"eventZip"`
	City           string   `json:"eventCity"`
	Link           string   `json:"eventLink"`
	VenueLatitude  *float64 `json:"venueLatitude"`
	VenueLongitude *float64 `json:"venueLongitude"`
	MinPrice       *float64 `json:"minPrice"`
	MaxPrice       *float64 `json:"maxPrice"`
}

func (a *EventimAdapter) Run(ctx context.Context, job *Job) (*Result, error) {
	job.Reporter.Progress("Starting Eventim parsing...")

	feedURL := job.Meta.SourceURL
	if feedURL == "" {
		feedURL = a.feedURL
	}
	username := job.Meta.Username
	if username == "" {
		username = a.username
	}
	password := job.Meta.Password
	if password == "" {
		password = a.password
	}

	feed, err := a.loadFeed(ctx, job, feedURL, username, password)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for _, series := range feed.EventSeries {
		photoURL := series.PictureBig
		if photoURL == "" {
			photoURL = series.Picture
		}
		if photoURL == "" {
			photoURL = series.PictureSmall
		}
		for _, item := range series.Events {
			a.emit(job, series, item, photoURL, result)
		}
	}
	job.Reporter.Progress(fmt.Sprintf("Parsing completed. Total: %d events parsed", len(result.Events)))
	return result, nil
}

func (a *EventimAdapter) emit(job *Job, series eventimSeries, item eventimEvent, photoURL string, result *Result) {
	name := item.Name
	if name == "" {
		name = series.Name
	}

	var addressParts []string
	for _, part := range []string{item.Venue, item.Street, item.Zip, item.City} {
		if part != "" {
			addressParts = append(addressParts, part)
		}
	}
	address := strings.Join(addressParts, ", ")

	target := item.City
	if target == "" {
		target = job.Meta.CityName
	}
	matched := job.Gazetteer.Find(target)
	if matched == nil {
		matched = job.Gazetteer.FindByAddress(address)
	}
	cityID, countryID, ok := resolveLocation(job.Meta, matched)
	if !ok {
		job.Reporter.Problem(skipMessage(name, target, matched, job.Meta))
		result.Skipped++
		return
	}

	description := series.Text
	if description == "" {
		description = name
	}
	website := item.Link
	if website == "" {
		website = series.Link
	}

	e := event.Event{
		Name:           name,
		Description:    description,
		Specialization: specialization(job.Meta),
		Source:         event.SourceEventim,
		CountryID:      countryID,
		CityID:         cityID,
		Address:        address,
		Contacts:       event.Contacts{Website: website},
		MinPrice:       item.MinPrice,
		MaxPrice:       item.MaxPrice,
	}
	if photoURL != "" {
		e.Photos = []event.Photo{{FullURL: photoURL}}
	}
	if t, parsed := parseISO(item.DateISO8601); parsed {
		e.SetDates([]time.Time{t})
	} else {
		e.SetDates(nil)
	}
	if item.VenueLatitude != nil && item.VenueLongitude != nil {
		special := false
		e.Lat = item.VenueLatitude
		e.Lon = item.VenueLongitude
		e.IsSpecialPointOnMap = &special
	} else {
		applyCoordinates(&e, matched)
	}

	result.Events = append(result.Events, e)
}

// loadFeed fetches and parses a fresh copy of the feed, updating the cache
// on success. Any failure along the way falls back to the cached copy; the
// failure is fatal only when no cache exists.
func (a *EventimAdapter) loadFeed(ctx context.Context, job *Job, feedURL, username, password string) (*eventimFeed, error) {
	fetchErr := fmt.Errorf("no feed URL configured")
	if feedURL != "" {
		job.Reporter.Progress(fmt.Sprintf("Downloading Eventim file from %s...", feedURL))
		var raw []byte
		raw, fetchErr = a.fetchFresh(ctx, feedURL, username, password)
		if fetchErr == nil {
			var feed *eventimFeed
			feed, fetchErr = parseFeed(raw)
			if fetchErr == nil {
				if err := a.writeCache(raw); err != nil {
					job.Reporter.Problem(fmt.Sprintf("Failed to update feed cache: %s", err))
				}
				job.Reporter.Progress("File downloaded and extracted successfully")
				return feed, nil
			}
		}
		job.Reporter.Problem(fmt.Sprintf("Failed to download/extract Eventim file: %s", fetchErr))
	}

	cached, err := os.ReadFile(a.cachePath())
	if err != nil {
		return nil, fmt.Errorf("failed to load feed: %w", fetchErr)
	}
	feed, err := parseFeed(cached)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cached feed: %w", err)
	}
	job.Reporter.Problem("Using cached eventim.json file as fallback")
	return feed, nil
}

// fetchFresh downloads the compressed feed to a temporary file and returns
// its decompressed contents. The temporary file is always removed.
func (a *EventimAdapter) fetchFresh(ctx context.Context, feedURL, username, password string) ([]byte, error) {
	if err := os.MkdirAll(a.cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(a.cacheDir, "eventim-*.gz")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := a.download(ctx, feedURL, username, password, tmp); err != nil {
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind temp file: %w", err)
	}

	gz, err := gzip.NewReader(tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to extract gz: %w", err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to extract gz: %w", err)
	}
	return raw, nil
}

// download fetches feedURL into w, following 301/302 redirects manually and
// re-sending Basic auth on each hop.
func (a *EventimAdapter) download(ctx context.Context, feedURL, username, password string, w io.Writer) error {
	for redirects := 0; ; redirects++ {
		if redirects > maxFeedRedirects {
			return fmt.Errorf("too many redirects downloading %s", feedURL)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
		if err != nil {
			return fmt.Errorf("failed to build feed request: %w", err)
		}
		if a.userAgent != "" {
			req.Header.Set("User-Agent", a.userAgent)
		}
		if password != "" {
			req.SetBasicAuth(username, password)
		}

		resp, err := a.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to download feed: %w", err)
		}

		switch resp.StatusCode {
		case http.StatusMovedPermanently, http.StatusFound:
			location := resp.Header.Get("Location")
			resp.Body.Close()
			if location == "" {
				return fmt.Errorf("redirect without location downloading %s", feedURL)
			}
			if next, err := resp.Request.URL.Parse(location); err == nil {
				feedURL = next.String()
			} else {
				feedURL = location
			}
			continue
		case http.StatusOK:
			_, err = io.Copy(w, resp.Body)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("failed to download feed: %w", err)
			}
			return nil
		default:
			resp.Body.Close()
			return fmt.Errorf("failed to download: %d", resp.StatusCode)
		}
	}
}

func (a *EventimAdapter) cachePath() string {
	return filepath.Join(a.cacheDir, "eventim.json")
}

func (a *EventimAdapter) writeCache(raw []byte) error {
	if err := os.MkdirAll(a.cacheDir, 0o755); err != nil {
		return err
	}
	tmp := a.cachePath() + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, a.cachePath())
}

func parseFeed(raw []byte) (*eventimFeed, error) {
	var feed eventimFeed
	if err := json.Unmarshal(raw, &feed); err != nil {
		return nil, fmt.Errorf("failed to parse feed JSON: %w", err)
	}
	return &feed, nil
}
