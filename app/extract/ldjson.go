package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// EventJSON is the schema.org Event block embedded by listing sites in
// ld+json script tags. Fields that sites render inconsistently (image as
// string or array, offers as object or array) are normalized during decode.
type EventJSON struct {
	Name        string
	Description string
	URL         string
	StartDate   string
	EndDate     string
	Images      []string
	Prices      []float64
	Location    EventLocation
}

type EventLocation struct {
	Name            string
	StreetAddress   string
	AddressLocality string
}

type rawEventJSON struct {
	Type        string          `json:"@type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	URL         string          `json:"url"`
	StartDate   string          `json:"startDate"`
	EndDate     string          `json:"endDate"`
	Image       json.RawMessage `json:"image"`
	Offers      json.RawMessage `json:"offers"`
	Location    json.RawMessage `json:"location"`
}

type rawOffer struct {
	Price json.RawMessage `json:"price"`
}

type rawLocation struct {
	Name    string          `json:"name"`
	Address json.RawMessage `json:"address"`
}

type rawAddress struct {
	StreetAddress   string `json:"streetAddress"`
	AddressLocality string `json:"addressLocality"`
}

// FindEventJSON scans a document's ld+json script blocks for the first one
// describing an Event, whether the block holds a single object or an array.
// Returns nil when no Event block is present.
func FindEventJSON(doc *goquery.Document) *EventJSON {
	var found *EventJSON
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()

		var single rawEventJSON
		if err := json.Unmarshal([]byte(text), &single); err == nil && single.Type == "Event" {
			found = decodeEvent(single)
			return false
		}

		var list []rawEventJSON
		if err := json.Unmarshal([]byte(text), &list); err == nil {
			for _, candidate := range list {
				if candidate.Type == "Event" {
					found = decodeEvent(candidate)
					return false
				}
			}
		}
		return true
	})
	return found
}

func decodeEvent(raw rawEventJSON) *EventJSON {
	e := &EventJSON{
		Name:        raw.Name,
		Description: raw.Description,
		URL:         raw.URL,
		StartDate:   raw.StartDate,
		EndDate:     raw.EndDate,
	}

	if len(raw.Image) > 0 {
		var one string
		if err := json.Unmarshal(raw.Image, &one); err == nil && one != "" {
			e.Images = []string{one}
		} else {
			var many []string
			if err := json.Unmarshal(raw.Image, &many); err == nil {
				e.Images = many
			}
		}
	}

	e.Prices = decodePrices(raw.Offers)

	if len(raw.Location) > 0 {
		var loc rawLocation
		if err := json.Unmarshal(raw.Location, &loc); err == nil {
			e.Location.Name = loc.Name
			if len(loc.Address) > 0 {
				var addr rawAddress
				if err := json.Unmarshal(loc.Address, &addr); err == nil {
					e.Location.StreetAddress = addr.StreetAddress
					e.Location.AddressLocality = addr.AddressLocality
				} else {
					var freeText string
					if err := json.Unmarshal(loc.Address, &freeText); err == nil {
						e.Location.StreetAddress = freeText
					}
				}
			}
		}
	}

	return e
}

func decodePrices(offers json.RawMessage) []float64 {
	if len(offers) == 0 {
		return nil
	}

	var rawOffers []rawOffer
	if err := json.Unmarshal(offers, &rawOffers); err != nil {
		var one rawOffer
		if err := json.Unmarshal(offers, &one); err != nil {
			return nil
		}
		rawOffers = []rawOffer{one}
	}

	var prices []float64
	for _, offer := range rawOffers {
		if p, ok := parsePrice(offer.Price); ok {
			prices = append(prices, p)
		}
	}
	return prices
}

func parsePrice(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var number float64
	if err := json.Unmarshal(raw, &number); err == nil {
		return number, true
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return 0, false
	}
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	number, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return number, true
}

// ImageURL returns the first image of the event, if any.
func (e *EventJSON) ImageURL() string {
	if len(e.Images) > 0 {
		return e.Images[0]
	}
	return ""
}

// MinMaxPrice returns the lowest and highest offer prices, or nil when the
// event carries no parsable offers.
func (e *EventJSON) MinMaxPrice() (*float64, *float64) {
	if len(e.Prices) == 0 {
		return nil, nil
	}
	minPrice, maxPrice := e.Prices[0], e.Prices[0]
	for _, p := range e.Prices[1:] {
		if p < minPrice {
			minPrice = p
		}
		if p > maxPrice {
			maxPrice = p
		}
	}
	return &minPrice, &maxPrice
}
