package sources

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/event-comb/app/database"
	"github.com/lysyi3m/event-comb/app/event"
	"github.com/lysyi3m/event-comb/app/extract"
	"github.com/lysyi3m/event-comb/app/geo"
)

const kontramarkaBase = "https://www.kontramarka.de"

// KontramarkaAdapter scrapes kontramarka.de, whose listing is paginated by
// locality. Localities are processed by a bounded worker pool; each worker
// reads one locality's card list, then opens every card's schedule table and
// turns its remaining rows into events grouped by title and address. One
// failing locality never aborts the run.
type KontramarkaAdapter struct {
	cfg Config
}

func NewKontramarkaAdapter(sourcesDir string, workerCount int) (*KontramarkaAdapter, error) {
	if workerCount <= 0 {
		workerCount = 3
	}
	cfg, err := LoadConfig(sourcesDir, "kontramarka", Config{
		ListingURL:  kontramarkaBase + "/city/%s/",
		Concurrency: workerCount,
	})
	if err != nil {
		return nil, err
	}
	return &KontramarkaAdapter{cfg: cfg}, nil
}

func (a *KontramarkaAdapter) Type() database.OperationType {
	return database.OperationTypeKontramarka
}

func (a *KontramarkaAdapter) Run(ctx context.Context, job *Job) (*Result, error) {
	localities := job.Gazetteer.Subset(job.Meta.CityID, job.Meta.CityName, maxCities(job.Meta, a.cfg))
	job.Reporter.Progress(fmt.Sprintf("Starting Kontramarka parsing. Cities to process: %d", len(localities)))

	session, err := job.Backend.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open rendering session: %w", err)
	}
	defer session.Close()

	var skipped atomic.Int64
	result := &Result{}
	result.Events = runLocalityPool(ctx, localities, a.cfg.Concurrency, func(ctx context.Context, locality geo.City) []event.Event {
		return a.processLocality(ctx, session, job, locality, &skipped)
	})
	result.Skipped = int(skipped.Load())
	job.Reporter.Progress(fmt.Sprintf("Parsing completed. Total: %d events parsed", len(result.Events)))
	return result, nil
}

// scheduleRow is one row of a tour's schedule table, sold-out rows excluded.
type scheduleRow struct {
	start       time.Time
	hasStart    bool
	cityName    string
	place       string
	address     string
	price       *float64
	image       string
	description string
}

type tourCard struct {
	title string
	venue string
	photo string
	url   string
}

func (a *KontramarkaAdapter) processLocality(ctx context.Context, session extract.Session, job *Job, locality geo.City, skipped *atomic.Int64) []event.Event {
	listingURL := fmt.Sprintf(a.cfg.ListingURL, citySlug(locality.Name))
	job.Reporter.Progress(fmt.Sprintf("Processing city: %s (%s)", locality.Name, listingURL))

	doc, err := fetchDoc(ctx, session, listingURL, a.cfg.Timeout())
	if err != nil {
		job.Reporter.Problem(fmt.Sprintf("Error for city %s: %s", locality.Name, err))
		return nil
	}

	cards := collectTourCards(doc)
	if len(cards) == 0 {
		job.Reporter.Progress(fmt.Sprintf("No events found on page for city %s (%s)", locality.Name, listingURL))
		return nil
	}

	var events []event.Event
	for _, card := range cards {
		if ctx.Err() != nil {
			return events
		}
		detailDoc, err := fetchDoc(ctx, session, card.url, a.cfg.Timeout())
		if err != nil {
			job.Reporter.Problem(fmt.Sprintf("Error opening tour %s: %s", card.url, err))
			continue
		}
		events = append(events, a.processTour(job, locality, card, detailDoc, skipped)...)
	}
	job.Reporter.Progress(fmt.Sprintf("City %s completed: scraped %d, added %d", locality.Name, len(cards), len(events)))
	return events
}

// processTour turns a tour's schedule rows into events, one per distinct
// (title, address) pair, with dates and prices unioned across the pair's
// rows.
func (a *KontramarkaAdapter) processTour(job *Job, locality geo.City, card tourCard, doc *goquery.Document, skipped *atomic.Int64) []event.Event {
	rows := collectScheduleRows(doc)

	type group struct {
		ev    *event.Event
		dates []time.Time
	}
	var order []string
	groups := make(map[string]*group)

	for _, row := range rows {
		target := row.cityName
		if target == "" {
			target = locality.Name
		}
		matched := job.Gazetteer.Find(target)
		cityID, countryID, ok := resolveLocation(job.Meta, matched)
		if !ok {
			job.Reporter.Problem(skipMessage(card.title, target, matched, job.Meta))
			skipped.Add(1)
			continue
		}

		place := row.place
		if place == "" {
			place = card.venue
		}
		rowAddress := row.address
		if rowAddress == "" {
			if tokens := geo.Tokens(locality.Name); len(tokens) > 0 {
				rowAddress = tokens[0]
			}
		}
		var addressParts []string
		if place != "" {
			addressParts = append(addressParts, place)
		}
		if rowAddress != "" {
			addressParts = append(addressParts, rowAddress)
		}
		address := event.CleanAddress(strings.Join(addressParts, ", "))

		key := card.title + "\n" + address
		g, exists := groups[key]
		if !exists {
			description := row.description
			if description == "" {
				description = card.title
			}
			photo := row.image
			if photo == "" {
				photo = card.photo
			}
			e := event.Event{
				Name:           card.title,
				Description:    description,
				Specialization: specialization(job.Meta),
				Source:         event.SourceKontramarka,
				CountryID:      countryID,
				CityID:         cityID,
				Address:        address,
				Contacts:       event.Contacts{Website: card.url},
			}
			if photo != "" {
				e.Photos = []event.Photo{{FullURL: photo}}
			}
			applyCoordinates(&e, matched)
			g = &group{ev: &e}
			groups[key] = g
			order = append(order, key)
		}
		if row.hasStart {
			g.dates = append(g.dates, row.start)
		}
		if row.price != nil {
			if g.ev.MinPrice == nil || *row.price < *g.ev.MinPrice {
				g.ev.MinPrice = row.price
			}
			if g.ev.MaxPrice == nil || *row.price > *g.ev.MaxPrice {
				g.ev.MaxPrice = row.price
			}
		}
	}

	events := make([]event.Event, 0, len(order))
	for _, key := range order {
		g := groups[key]
		g.ev.SetDates(g.dates)
		events = append(events, *g.ev)
	}
	return events
}

func collectTourCards(doc *goquery.Document) []tourCard {
	var cards []tourCard
	doc.Find(".events__item").Each(func(_ int, s *goquery.Selection) {
		link, _ := s.Find(`a[href*="/tour/"]`).First().Attr("href")
		tourURL := absolutizeURL(link)
		if tourURL == "" {
			return
		}

		img := s.Find(".cover-img-wrapper img").First()
		photo, ok := img.Attr("data-lazy-src")
		if !ok || photo == "" {
			photo, _ = img.Attr("src")
		}

		cards = append(cards, tourCard{
			title: strings.TrimSpace(s.Find(".block-title__text").First().Text()),
			venue: strings.TrimSpace(s.Find(".long-event__info-item").Eq(1).Text()),
			photo: absolutizeURL(photo),
			url:   tourURL,
		})
	})
	return cards
}

func collectScheduleRows(doc *goquery.Document) []scheduleRow {
	var rows []scheduleRow
	doc.Find("#scheduleType_list .schedule-row").Each(func(_ int, s *goquery.Selection) {
		availability, _ := s.Find(`[itemprop="availability"]`).First().Attr("content")
		actionText := strings.ToLower(s.Find(".schedule-col-action").First().Text())
		if strings.Contains(strings.ToLower(availability), "soldout") || strings.Contains(actionText, "распродан") {
			return
		}

		row := scheduleRow{
			cityName: strings.TrimSpace(s.Find(".schedule-col-main .city").First().Text()),
			place:    strings.TrimSpace(s.Find(".schedule-col-main .place").First().Text()),
		}
		if startISO, ok := s.Find(`[itemprop="startDate"]`).First().Attr("content"); ok {
			if t, parsed := parseISO(startISO); parsed {
				row.start = t
				row.hasStart = true
			}
		}
		if address, ok := s.Find(`[itemprop="address"]`).First().Attr("content"); ok && address != "" {
			row.address = address
		} else {
			row.address = row.place
		}
		if priceStr, ok := s.Find(`[itemprop="price"]`).First().Attr("content"); ok {
			priceStr = strings.ReplaceAll(priceStr, ",", ".")
			if price, err := strconv.ParseFloat(strings.TrimSpace(priceStr), 64); err == nil {
				row.price = &price
			}
		}
		row.image, _ = s.Find(`[itemprop="image"]`).First().Attr("content")
		row.description, _ = s.Find(`meta[itemprop="description"]`).First().Attr("content")
		rows = append(rows, row)
	})
	return rows
}

// citySlug builds the listing path segment from a city name, preferring the
// second alias (the local spelling) when one exists.
func citySlug(name string) string {
	parts := strings.Split(name, "|")
	prefer := ""
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if prefer == "" {
			prefer = p
		} else {
			prefer = p
			break
		}
	}
	if prefer == "" {
		prefer = name
	}
	slug := strings.ToLower(prefer)
	slug = strings.Join(strings.Fields(slug), "-")
	return url.PathEscape(slug)
}

func absolutizeURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return kontramarkaBase + "/" + strings.TrimLeft(href, "./")
}
