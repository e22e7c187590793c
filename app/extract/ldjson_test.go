package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
)

func docFromHTML(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatalf("Failed to build document: %v", err)
	}
	return doc
}

func TestFindEventJSON_SingleObject(t *testing.T) {
	doc := docFromHTML(t, `
		<html><head>
		<script type="application/ld+json">
		{
			"@type": "Event",
			"name": "Jazz Night",
			"description": "An evening of jazz",
			"url": "https://example.com/jazz",
			"startDate": "2025-02-12T19:00:00+01:00",
			"image": ["https://example.com/a.jpg", "https://example.com/b.jpg"],
			"offers": [
				{"price": "25,50"},
				{"price": 30}
			],
			"location": {
				"name": "Blue Hall",
				"address": {
					"streetAddress": "Main St 5",
					"addressLocality": "Tbilisi"
				}
			}
		}
		</script>
		</head><body></body></html>`)

	event := FindEventJSON(doc)
	if event == nil {
		t.Fatal("Expected an event to be found")
	}
	if event.Name != "Jazz Night" {
		t.Errorf("Expected name 'Jazz Night', got: %q", event.Name)
	}
	if event.StartDate != "2025-02-12T19:00:00+01:00" {
		t.Errorf("Expected start date preserved, got: %q", event.StartDate)
	}
	if event.ImageURL() != "https://example.com/a.jpg" {
		t.Errorf("Expected first image, got: %q", event.ImageURL())
	}
	if event.Location.StreetAddress != "Main St 5" || event.Location.AddressLocality != "Tbilisi" {
		t.Errorf("Expected structured address, got: %+v", event.Location)
	}

	minPrice, maxPrice := event.MinMaxPrice()
	if minPrice == nil || *minPrice != 25.5 {
		t.Errorf("Expected min price 25.5, got: %v", minPrice)
	}
	if maxPrice == nil || *maxPrice != 30 {
		t.Errorf("Expected max price 30, got: %v", maxPrice)
	}
}

func TestFindEventJSON_ArrayPicksEvent(t *testing.T) {
	doc := docFromHTML(t, `
		<script type="application/ld+json">
		[
			{"@type": "Organization", "name": "Acme"},
			{"@type": "Event", "name": "Theatre Premiere", "startDate": "2025-03-01"}
		]
		</script>`)

	event := FindEventJSON(doc)
	if event == nil {
		t.Fatal("Expected an event to be found in the array")
	}
	if event.Name != "Theatre Premiere" {
		t.Errorf("Expected 'Theatre Premiere', got: %q", event.Name)
	}
}

func TestFindEventJSON_SkipsInvalidBlocks(t *testing.T) {
	doc := docFromHTML(t, `
		<script type="application/ld+json">not json at all</script>
		<script type="application/ld+json">{"@type": "Event", "name": "Found"}</script>`)

	event := FindEventJSON(doc)
	if event == nil {
		t.Fatal("Expected the second block to be used")
	}
	if event.Name != "Found" {
		t.Errorf("Expected 'Found', got: %q", event.Name)
	}
}

func TestFindEventJSON_NoEvent(t *testing.T) {
	doc := docFromHTML(t, `
		<script type="application/ld+json">{"@type": "Organization", "name": "Acme"}</script>`)

	if event := FindEventJSON(doc); event != nil {
		t.Errorf("Expected no event, got: %+v", event)
	}
}

func TestMinMaxPrice_NoOffers(t *testing.T) {
	event := &EventJSON{}
	minPrice, maxPrice := event.MinMaxPrice()
	if minPrice != nil || maxPrice != nil {
		t.Errorf("Expected nil prices without offers, got: %v/%v", minPrice, maxPrice)
	}
}
