package geo

import (
	"testing"
)

func testCities() []City {
	return []City{
		{ID: "tbilisi", CountryID: "ge", Name: "თბილისი|Tbilisi", Coordinates: "lat = 41.69, lon = 44.80"},
		{ID: "batumi", CountryID: "ge", Name: "ბათუმი|Batumi"},
		{ID: "berlin", CountryID: "de", Name: "Berlin"},
		{ID: "frankfurt", CountryID: "de", Name: "Frankfurt am Main|Frankfurt"},
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  München  ":   "munchen",
		"TBILISI":       "tbilisi",
		"São  Paulo":    "sao paulo",
		"Frankfurt\tam": "frankfurt am",
	}
	for input, expected := range cases {
		if got := Normalize(input); got != expected {
			t.Errorf("Expected %q for %q, got: %q", expected, input, got)
		}
	}
}

func TestTokens(t *testing.T) {
	tokens := Tokens("თბილისი|Tbilisi")
	if len(tokens) != 2 {
		t.Fatalf("Expected 2 tokens, got %d", len(tokens))
	}
	if tokens[1] != "tbilisi" {
		t.Errorf("Expected second token 'tbilisi', got: %q", tokens[1])
	}
}

func TestSlugToken_PrefersSecondAlias(t *testing.T) {
	if got := SlugToken("თბილისი|Tbilisi"); got != "tbilisi" {
		t.Errorf("Expected 'tbilisi', got: %q", got)
	}
	if got := SlugToken("Berlin"); got != "berlin" {
		t.Errorf("Expected 'berlin', got: %q", got)
	}
	if got := SlugToken(""); got != "" {
		t.Errorf("Expected empty slug, got: %q", got)
	}
}

func TestParseCoordinates(t *testing.T) {
	coords, ok := ParseCoordinates("lat = 41.69, lon = 44.80")
	if !ok {
		t.Fatal("Expected coordinates to parse")
	}
	if coords.Lat != 41.69 || coords.Lon != 44.80 {
		t.Errorf("Expected 41.69/44.80, got: %v/%v", coords.Lat, coords.Lon)
	}

	// comma decimal separators
	coords, ok = ParseCoordinates("LAT=52,52 LON=13,40")
	if !ok {
		t.Fatal("Expected comma-decimal coordinates to parse")
	}
	if coords.Lat != 52.52 || coords.Lon != 13.40 {
		t.Errorf("Expected 52.52/13.40, got: %v/%v", coords.Lat, coords.Lon)
	}

	if _, ok := ParseCoordinates("no coordinates here"); ok {
		t.Error("Expected parse failure for text without coordinates")
	}
	if _, ok := ParseCoordinates(""); ok {
		t.Error("Expected parse failure for empty string")
	}
}

func TestFind(t *testing.T) {
	g := NewGazetteer(testCities())

	if city := g.Find("Tbilisi"); city == nil || city.ID != "tbilisi" {
		t.Errorf("Expected tbilisi, got: %v", city)
	}
	// target containing the alias
	if city := g.Find("Greater Tbilisi Area"); city == nil || city.ID != "tbilisi" {
		t.Errorf("Expected tbilisi for containing target, got: %v", city)
	}
	// alias containing the target
	if city := g.Find("Frankfurt am"); city == nil || city.ID != "frankfurt" {
		t.Errorf("Expected frankfurt, got: %v", city)
	}
	if city := g.Find("Atlantis"); city != nil {
		t.Errorf("Expected no match, got: %v", city)
	}
	if city := g.Find(""); city != nil {
		t.Errorf("Expected no match for empty target, got: %v", city)
	}
}

func TestFindByAddress(t *testing.T) {
	g := NewGazetteer(testCities())

	// locality in the trailing segment
	if city := g.FindByAddress("Rustaveli Ave 12, Old Tbilisi"); city == nil || city.ID != "tbilisi" {
		t.Errorf("Expected tbilisi, got: %v", city)
	}
	// multi-word city name matched as an adjacent word pair
	if city := g.FindByAddress("Opernplatz 1, 60313, Frankfurt am Main"); city == nil || city.ID != "frankfurt" {
		t.Errorf("Expected frankfurt, got: %v", city)
	}
	// venue names at the front must not match outside the tail window
	if city := g.FindByAddress("Berlin Hall, First St, Second St, Third St, Fourth St"); city != nil {
		t.Errorf("Expected no match outside the tail segments, got: %v", city)
	}
	if city := g.FindByAddress("Nowhere Street 1"); city != nil {
		t.Errorf("Expected no match, got: %v", city)
	}
}

func TestSubset(t *testing.T) {
	g := NewGazetteer(testCities())

	byID := g.Subset("batumi", "", 0)
	if len(byID) != 1 || byID[0].ID != "batumi" {
		t.Errorf("Expected only batumi, got: %v", byID)
	}

	byName := g.Subset("", "tbilisi", 0)
	if len(byName) != 1 || byName[0].ID != "tbilisi" {
		t.Errorf("Expected only tbilisi, got: %v", byName)
	}

	capped := g.Subset("", "", 2)
	if len(capped) != 2 {
		t.Errorf("Expected 2 cities, got %d", len(capped))
	}

	missing := g.Subset("unknown-id", "", 0)
	if len(missing) != 0 {
		t.Errorf("Expected empty subset, got: %v", missing)
	}

	all := g.Subset("", "", 0)
	if len(all) != 4 {
		t.Errorf("Expected all 4 cities, got %d", len(all))
	}
}
