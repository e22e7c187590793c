package sources

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/event-comb/app/geo"
)

const eventimFeedJSON = `{
	"eventserie": [{
		"esName": "Rock Tour",
		"esText": "A loud tour",
		"esLink": "https://eventim.de/tour",
		"esPictureBig": "https://eventim.de/big.jpg",
		"events": [{
			"eventName": "Rock Tour Berlin",
			"eventDateIso8601": "2025-04-01T20:00:00",
			"eventVenue": "Arena",
			"eventStreet": "Arena St 1",
			"eventZip": "10115",
			"eventCity": "Berlin",
			"eventLink": "https://eventim.de/tour/berlin",
			"venueLatitude": 52.5,
			"venueLongitude": 13.4,
			"minPrice": 39.9,
			"maxPrice": 120
		}]
	}]
}`

func eventimJob(reporter *testReporter) *Job {
	return &Job{
		OperationID: "op-1",
		Gazetteer:   geo.NewGazetteer([]geo.City{{ID: "city-berlin", CountryID: "country-de", Name: "Berlin"}}),
		Reporter:    reporter,
		Now:         time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestEventimAdapter_DownloadsRedirectedFeed(t *testing.T) {
	var authedRequests int
	mux := http.NewServeMux()
	mux.HandleFunc("/feed.gz", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/real-feed.gz", http.StatusFound)
	})
	mux.HandleFunc("/real-feed.gz", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "feeduser" || pass != "feedpass" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		authedRequests++
		gz := gzip.NewWriter(w)
		gz.Write([]byte(eventimFeedJSON))
		gz.Close()
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	cacheDir := t.TempDir()
	adapter := NewEventimAdapter(server.URL+"/feed.gz", "feeduser", "feedpass", cacheDir, "test-agent")
	reporter := &testReporter{}

	result, err := adapter.Run(context.Background(), eventimJob(reporter))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if authedRequests != 1 {
		t.Errorf("Expected 1 authenticated request after redirect, got %d", authedRequests)
	}
	if len(result.Events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(result.Events))
	}

	e := result.Events[0]
	if e.Name != "Rock Tour Berlin" {
		t.Errorf("Expected event name 'Rock Tour Berlin', got: %q", e.Name)
	}
	if e.Address != "Arena, Arena St 1, 10115, Berlin" {
		t.Errorf("Expected joined address, got: %q", e.Address)
	}
	if e.CityID != "city-berlin" || e.CountryID != "country-de" {
		t.Errorf("Expected resolved city/country, got: %s/%s", e.CityID, e.CountryID)
	}
	if e.Lat == nil || *e.Lat != 52.5 || e.Lon == nil || *e.Lon != 13.4 {
		t.Errorf("Expected explicit venue coordinates, got: %v/%v", e.Lat, e.Lon)
	}
	if e.MinPrice == nil || *e.MinPrice != 39.9 || e.MaxPrice == nil || *e.MaxPrice != 120 {
		t.Errorf("Expected feed prices 39.9/120, got: %v/%v", e.MinPrice, e.MaxPrice)
	}
	if e.HoldingDate != "1 April 2025" {
		t.Errorf("Expected holding date '1 April 2025', got: %q", e.HoldingDate)
	}
	if len(e.Photos) != 1 || e.Photos[0].FullURL != "https://eventim.de/big.jpg" {
		t.Errorf("Expected the big series picture, got: %v", e.Photos)
	}

	cached, err := os.ReadFile(filepath.Join(cacheDir, "eventim.json"))
	if err != nil {
		t.Fatalf("Expected cache file to be written: %v", err)
	}
	if string(cached) != eventimFeedJSON {
		t.Error("Expected cache to hold the decompressed feed")
	}
}

func TestEventimAdapter_FallsBackToCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	cacheDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(cacheDir, "eventim.json"), []byte(eventimFeedJSON), 0o644); err != nil {
		t.Fatalf("Failed to seed cache: %v", err)
	}

	adapter := NewEventimAdapter(server.URL+"/feed.gz", "", "", cacheDir, "test-agent")
	reporter := &testReporter{}

	result, err := adapter.Run(context.Background(), eventimJob(reporter))
	if err != nil {
		t.Fatalf("Expected cache fallback, got: %v", err)
	}
	if len(result.Events) != 1 {
		t.Errorf("Expected 1 event from the cached feed, got %d", len(result.Events))
	}

	var downloadProblem, fallbackProblem bool
	for _, p := range reporter.problemLines() {
		if strings.Contains(p, "Failed to download/extract Eventim file") {
			downloadProblem = true
		}
		if strings.Contains(p, "Using cached eventim.json file as fallback") {
			fallbackProblem = true
		}
	}
	if !downloadProblem || !fallbackProblem {
		t.Errorf("Expected download failure and fallback problems, got: %v", reporter.problemLines())
	}
}

func TestEventimAdapter_FailsWithoutCache(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	adapter := NewEventimAdapter(server.URL+"/feed.gz", "", "", t.TempDir(), "test-agent")
	reporter := &testReporter{}

	_, err := adapter.Run(context.Background(), eventimJob(reporter))
	if err == nil {
		t.Fatal("Expected an error when the download fails and no cache exists")
	}
	if !strings.Contains(err.Error(), "failed to load feed") {
		t.Errorf("Expected a feed load error, got: %v", err)
	}
}

func TestEventimAdapter_MetaOverridesFeedURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gz := gzip.NewWriter(w)
		gz.Write([]byte(eventimFeedJSON))
		gz.Close()
	}))
	defer server.Close()

	adapter := NewEventimAdapter("https://unreachable.invalid/feed.gz", "", "", t.TempDir(), "test-agent")
	reporter := &testReporter{}

	job := eventimJob(reporter)
	job.Meta.SourceURL = server.URL + "/feed.gz"

	result, err := adapter.Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(result.Events) != 1 {
		t.Errorf("Expected 1 event from the overridden feed URL, got %d", len(result.Events))
	}
}
