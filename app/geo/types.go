package geo

// City is a single gazetteer entry. Name may encode several language
// aliases separated by "|" (e.g. "Тбилиси|Tbilisi|Old Tbilisi").
// Coordinates is either empty or a free-text field like
// "lat = 41.69, lon = 44.80".
type City struct {
	ID          string
	CountryID   string
	Name        string
	Coordinates string
}

// Coordinates is a parsed lat/lon pair.
type Coordinates struct {
	Lat float64
	Lon float64
}
