package sources

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/event"
	"github.com/lysyi3m/event-comb/app/extract"
	"github.com/lysyi3m/event-comb/app/geo"
)

var moreDatesMarker = regexp.MustCompile(`(?i)\+?\s*and\s+\d+\s+more`)

// cardKind is the classification of one listing card.
type cardKind int

const (
	cardSingle cardKind = iota
	cardMultiDate
	cardMultiVenue
)

type listingCard struct {
	url       string
	title     string
	dateText  string
	venueText string
}

// FientaAdapter scrapes fienta.com listings one locality at a time. Every
// card is classified before its detail page is opened: a card can stand for
// a single event, the same event on several dates, or the same event across
// several venues.
type FientaAdapter struct {
	cfg Config
}

func NewFientaAdapter(sourcesDir string) (*FientaAdapter, error) {
	cfg, err := LoadConfig(sourcesDir, "fienta", Config{
		ListingURL:    "https://fienta.com/?country=&city=%s",
		CardBatchSize: 10,
	})
	if err != nil {
		return nil, err
	}
	return &FientaAdapter{cfg: cfg}, nil
}

func (a *FientaAdapter) Type() database.OperationType {
	return database.OperationTypeFienta
}

func (a *FientaAdapter) Run(ctx context.Context, job *Job) (*Result, error) {
	localities := job.Gazetteer.Subset(job.Meta.CityID, job.Meta.CityName, maxCities(job.Meta, a.cfg))
	if len(localities) == 0 && (job.Meta.CityID != "" || job.Meta.CityName != "") {
		target := job.Meta.CityName
		if target == "" {
			target = job.Meta.CityID
		}
		return nil, fmt.Errorf("city not found: %s", target)
	}
	job.Reporter.Progress(fmt.Sprintf("Starting Fienta parsing. Cities to process: %d", len(localities)))

	session, err := job.Backend.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open rendering session: %w", err)
	}
	defer session.Close()

	result := &Result{}
	for _, locality := range localities {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		a.processLocality(ctx, session, job, locality, result)
	}
	job.Reporter.Progress(fmt.Sprintf("Parsing completed. Total: %d events parsed", len(result.Events)))
	return result, nil
}

func (a *FientaAdapter) processLocality(ctx context.Context, session extract.Session, job *Job, locality geo.City, result *Result) {
	cityToken := geo.SlugToken(locality.Name)
	job.Reporter.Progress(fmt.Sprintf("Processing city: %s (%s)", locality.Name, cityToken))

	doc, err := fetchDoc(ctx, session, fmt.Sprintf(a.cfg.ListingURL, url.QueryEscape(cityToken)), a.cfg.Timeout())
	if err != nil {
		job.Reporter.Problem(fmt.Sprintf("Error for city %s: %s", locality.Name, err))
		return
	}

	cards := collectCards(doc)
	job.Reporter.Progress(fmt.Sprintf("Found %d events for %s", len(cards), locality.Name))

	added := 0
	batchSize := a.cfg.CardBatchSize
	if batchSize <= 0 {
		batchSize = 10
	}
	for start := 0; start < len(cards); start += batchSize {
		end := start + batchSize
		if end > len(cards) {
			end = len(cards)
		}
		job.Reporter.Progress(fmt.Sprintf("Processing cards %d-%d of %d for %s", start+1, end, len(cards), locality.Name))
		for _, card := range cards[start:end] {
			if ctx.Err() != nil {
				return
			}
			added += a.processCard(ctx, session, job, locality, cityToken, card, result)
		}
	}
	job.Reporter.Progress(fmt.Sprintf("City %s completed: added %d", locality.Name, added))
}

// processCard classifies a card, crawls whatever detail pages the
// classification requires and appends the resulting events. Returns the
// number of events added.
func (a *FientaAdapter) processCard(ctx context.Context, session extract.Session, job *Job, locality geo.City, cityToken string, card listingCard, result *Result) int {
	if strings.Contains(geo.Normalize(card.venueText), "online") {
		job.Reporter.Progress(fmt.Sprintf("Skipping online-only event: %s", card.title))
		return 0
	}

	switch classifyCard(card) {
	case cardMultiVenue:
		return a.processMultiVenue(ctx, session, job, cityToken, card, result)
	case cardMultiDate:
		return a.processMultiDate(ctx, session, job, cityToken, card, result)
	default:
		return a.processSingle(ctx, session, job, cityToken, card, result)
	}
}

func classifyCard(card listingCard) cardKind {
	if strings.Contains(card.url, "/series/") {
		return cardMultiVenue
	}
	if strings.Contains(geo.Normalize(card.venueText), "multiple venues") {
		return cardMultiVenue
	}
	if moreDatesMarker.MatchString(card.dateText) {
		return cardMultiDate
	}
	return cardSingle
}

func (a *FientaAdapter) processSingle(ctx context.Context, session extract.Session, job *Job, cityToken string, card listingCard, result *Result) int {
	doc, err := a.fetchDetail(ctx, session, card.url)
	if err != nil {
		job.Reporter.Problem(fmt.Sprintf("Error loading event %s: %s", card.url, err))
		return 0
	}

	base := extract.FindEventJSON(doc)
	if base == nil || base.Name == "" {
		job.Reporter.Progress("No valid event data found, skipping")
		return 0
	}

	var dates []time.Time
	if t, ok := parseISO(base.StartDate); ok {
		dates = append(dates, t)
	} else if t, ok := event.ParseDateTime(card.dateText, "", job.Now); ok {
		dates = append(dates, t)
	}
	return a.emit(job, cityToken, card, base, eventAddress(base, cityToken), dates, result)
}

func (a *FientaAdapter) processMultiDate(ctx context.Context, session extract.Session, job *Job, cityToken string, card listingCard, result *Result) int {
	doc, err := a.fetchDetail(ctx, session, card.url)
	if err != nil {
		job.Reporter.Problem(fmt.Sprintf("Error loading event %s: %s", card.url, err))
		return 0
	}

	base := extract.FindEventJSON(doc)
	if base == nil || base.Name == "" {
		job.Reporter.Progress("No valid event data found, skipping")
		return 0
	}

	var dates []time.Time
	doc.Find(".series-item").Each(func(_ int, s *goquery.Selection) {
		lines := nonEmptyLines(s.Text())
		if len(lines) == 0 {
			return
		}
		timeText := ""
		if len(lines) > 1 {
			timeText = lines[1]
		}
		if t, ok := event.ParseDateTime(lines[0], timeText, job.Now); ok {
			dates = append(dates, t)
		}
	})
	if len(dates) == 0 {
		if t, ok := parseISO(base.StartDate); ok {
			dates = append(dates, t)
		}
	}
	job.Reporter.Progress(fmt.Sprintf("Found %d date(s) for %s", len(dates), base.Name))
	return a.emit(job, cityToken, card, base, eventAddress(base, cityToken), dates, result)
}

func (a *FientaAdapter) processMultiVenue(ctx context.Context, session extract.Session, job *Job, cityToken string, card listingCard, result *Result) int {
	doc, err := a.fetchDetail(ctx, session, card.url)
	if err != nil {
		job.Reporter.Problem(fmt.Sprintf("Error loading event %s: %s", card.url, err))
		return 0
	}

	links := subEventLinks(doc)
	if len(links) == 0 {
		// no per-venue breakdown on the detail page, treat it as single
		return a.processSingle(ctx, session, job, cityToken, card, result)
	}
	job.Reporter.Progress(fmt.Sprintf("Found %d venue(s) for %s", len(links), card.title))

	added := 0
	for _, link := range links {
		if ctx.Err() != nil {
			return added
		}
		subDoc, err := a.fetchDetail(ctx, session, link)
		if err != nil {
			job.Reporter.Problem(fmt.Sprintf("Error loading event %s: %s", link, err))
			continue
		}
		base := extract.FindEventJSON(subDoc)
		if base == nil || base.Name == "" {
			continue
		}
		var dates []time.Time
		if t, ok := parseISO(base.StartDate); ok {
			dates = append(dates, t)
		}
		subCard := card
		subCard.url = link
		added += a.emit(job, cityToken, subCard, base, eventAddress(base, cityToken), dates, result)
	}
	return added
}

func (a *FientaAdapter) fetchDetail(ctx context.Context, session extract.Session, pageURL string) (*goquery.Document, error) {
	return fetchDoc(ctx, session, pageURL, a.cfg.Timeout())
}

// emit resolves the event's locality and appends it to the result, or
// counts it as skipped when no city/country pair can be established.
func (a *FientaAdapter) emit(job *Job, cityToken string, card listingCard, base *extract.EventJSON, address string, dates []time.Time, result *Result) int {
	target := event.CleanAddress(address)
	matched := job.Gazetteer.FindByAddress(target)
	if matched == nil {
		matched = job.Gazetteer.Find(cityToken)
	}
	cityID, countryID, ok := resolveLocation(job.Meta, matched)
	if !ok {
		job.Reporter.Problem(skipMessage(base.Name, target, matched, job.Meta))
		result.Skipped++
		return 0
	}

	description := base.Description
	if description == "" {
		description = base.Name
	}
	website := base.URL
	if website == "" {
		website = card.url
	}

	e := event.Event{
		Name:           base.Name,
		Description:    description,
		Specialization: specialization(job.Meta),
		Source:         event.SourceFienta,
		CountryID:      countryID,
		CityID:         cityID,
		Address:        target,
		Contacts:       event.Contacts{Website: website},
	}
	if img := base.ImageURL(); img != "" {
		e.Photos = []event.Photo{{FullURL: img}}
	}
	e.MinPrice, e.MaxPrice = base.MinMaxPrice()
	e.SetDates(dates)
	applyCoordinates(&e, matched)

	result.Events = append(result.Events, e)
	return 1
}

// collectCards reads the listing's event cards, deduplicating by detail URL.
func collectCards(doc *goquery.Document) []listingCard {
	var cards []listingCard
	seen := make(map[string]bool)
	doc.Find("#events article").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Find(`a[href*="fienta.com"]`).First().Attr("href")
		href = strings.SplitN(href, "#", 2)[0]
		if href == "" || seen[href] {
			return
		}
		seen[href] = true

		smalls := s.Find("p.small")
		cards = append(cards, listingCard{
			url:       href,
			title:     strings.TrimSpace(s.Find("h2").First().Text()),
			dateText:  strings.TrimSpace(smalls.Eq(0).Text()),
			venueText: strings.TrimSpace(smalls.Eq(1).Text()),
		})
	})
	return cards
}

// subEventLinks lists the per-venue detail URLs of a series page.
func subEventLinks(doc *goquery.Document) []string {
	var links []string
	seen := make(map[string]bool)
	doc.Find(`.series-item a[href*="fienta.com"]`).Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.SplitN(href, "#", 2)[0]
		if href == "" || seen[href] {
			return
		}
		seen[href] = true
		links = append(links, href)
	})
	return links
}

// eventAddress picks the best available venue address for an event page,
// mirroring the precedence of the structured data: street address plus
// locality, then the location name, then the city token.
func eventAddress(base *extract.EventJSON, cityToken string) string {
	var parts []string
	if base.Location.StreetAddress != "" {
		parts = append(parts, base.Location.StreetAddress)
	}
	if base.Location.AddressLocality != "" {
		parts = append(parts, base.Location.AddressLocality)
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	if base.Location.Name != "" {
		return base.Location.Name
	}
	return cityToken
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func parseISO(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
