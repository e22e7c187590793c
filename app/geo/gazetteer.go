package geo

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// minSubstringLen gates substring matching: both sides must be at least this
// long, suppressing false hits from short alias tokens inside street names.
const minSubstringLen = 4

// addressSegments keeps the match window at the tail of an address, where
// the locality lives, so venue names at the front cannot produce false hits.
const addressSegments = 3

var (
	diacriticStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	whitespaceRun     = regexp.MustCompile(`\s+`)
	coordinatePattern = regexp.MustCompile(`(?i)lat\s*=\s*([0-9.,\-]+)[^\d\-]+lon\s*=\s*([0-9.,\-]+)`)
	segmentSplit      = regexp.MustCompile(`[,•;]`)
)

// Normalize lowercases a string, strips diacritics and collapses whitespace.
func Normalize(s string) string {
	if stripped, _, err := transform.String(diacriticStripper, s); err == nil {
		s = stripped
	}
	s = strings.ToLower(s)
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

// Tokens splits a gazetteer name into its normalized alias tokens.
func Tokens(name string) []string {
	var tokens []string
	for _, part := range strings.Split(name, "|") {
		if tok := Normalize(part); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// SlugToken returns the alias preferred for building listing URLs: the
// second alias when present (the latin spelling by convention), otherwise
// the first.
func SlugToken(name string) string {
	tokens := Tokens(name)
	if len(tokens) > 1 {
		return tokens[1]
	}
	if len(tokens) == 1 {
		return tokens[0]
	}
	return ""
}

// ParseCoordinates extracts a lat/lon pair from a free-text coordinates
// field, accepting comma decimal separators.
func ParseCoordinates(coord string) (*Coordinates, bool) {
	m := coordinatePattern.FindStringSubmatch(coord)
	if m == nil {
		return nil, false
	}
	lat, ok1 := parseFloat(m[1])
	lon, ok2 := parseFloat(m[2])
	if !ok1 || !ok2 {
		return nil, false
	}
	return &Coordinates{Lat: lat, Lon: lon}, true
}

func parseFloat(s string) (float64, bool) {
	s = strings.TrimRight(s, ",.")
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// Gazetteer is an Operation-scoped snapshot of the city reference list.
// It is built once per Operation and passed by reference into adapters;
// lookups are pure functions over the snapshot.
type Gazetteer struct {
	cities []City
}

func NewGazetteer(cities []City) *Gazetteer {
	return &Gazetteer{cities: cities}
}

func (g *Gazetteer) Cities() []City {
	return g.cities
}

// Find resolves a free-text city name against the gazetteer: the target must
// contain an alias token or an alias token must contain the target. First
// match in gazetteer order wins. Used when the source already isolates a
// city name.
func (g *Gazetteer) Find(target string) *City {
	t := Normalize(target)
	if t == "" {
		return nil
	}
	for i := range g.cities {
		for _, tok := range Tokens(g.cities[i].Name) {
			if strings.Contains(t, tok) || strings.Contains(tok, t) {
				return &g.cities[i]
			}
		}
	}
	return nil
}

// FindByAddress resolves a full free-text venue address. Only the last few
// comma/bullet-delimited segments are examined; within each segment words
// are scanned right to left, accepting an exact word match against any alias
// token or a length-gated substring match, then concatenations of two
// adjacent words (for multi-word city names), before falling back to
// whole-segment containment.
func (g *Gazetteer) FindByAddress(address string) *City {
	segments := splitSegments(address)
	if len(segments) > addressSegments {
		segments = segments[len(segments)-addressSegments:]
	}

	for i := len(segments) - 1; i >= 0; i-- {
		segment := segments[i]
		words := strings.Fields(segment)

		for w := len(words) - 1; w >= 0; w-- {
			if city := g.matchToken(words[w]); city != nil {
				return city
			}
		}

		for w := len(words) - 1; w >= 1; w-- {
			pair := words[w-1] + " " + words[w]
			if city := g.matchToken(pair); city != nil {
				return city
			}
		}

		if city := g.matchSegment(segment); city != nil {
			return city
		}
	}
	return nil
}

func (g *Gazetteer) matchToken(word string) *City {
	for i := range g.cities {
		for _, tok := range Tokens(g.cities[i].Name) {
			if word == tok {
				return &g.cities[i]
			}
			if len(word) >= minSubstringLen && len(tok) >= minSubstringLen &&
				(strings.Contains(word, tok) || strings.Contains(tok, word)) {
				return &g.cities[i]
			}
		}
	}
	return nil
}

func (g *Gazetteer) matchSegment(segment string) *City {
	if len(segment) < minSubstringLen {
		return nil
	}
	for i := range g.cities {
		for _, tok := range Tokens(g.cities[i].Name) {
			if len(tok) >= minSubstringLen && strings.Contains(segment, tok) {
				return &g.cities[i]
			}
		}
	}
	return nil
}

// Subset narrows the snapshot to the cities a job targets: an explicit city
// id wins, then a city name filter matched by alias tokens, then an optional
// cap on the number of localities.
func (g *Gazetteer) Subset(cityID, cityName string, maxCities int) []City {
	cities := g.cities

	if cityID != "" {
		var filtered []City
		for _, c := range cities {
			if c.ID == cityID {
				filtered = append(filtered, c)
			}
		}
		cities = filtered
	} else if cityName != "" {
		target := Normalize(cityName)
		var filtered []City
		for _, c := range cities {
			for _, tok := range Tokens(c.Name) {
				if strings.Contains(target, tok) || strings.Contains(tok, target) {
					filtered = append(filtered, c)
					break
				}
			}
		}
		cities = filtered
	}

	if maxCities > 0 && len(cities) > maxCities {
		cities = cities[:maxCities]
	}
	return cities
}

func splitSegments(address string) []string {
	var segments []string
	for _, part := range segmentSplit.Split(address, -1) {
		if seg := Normalize(part); seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}
