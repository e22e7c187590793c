package event

import (
	"testing"
	"time"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestMerge_CombinesDuplicates(t *testing.T) {
	events := []Event{
		{
			Name:     "Jazz Night",
			Address:  "Blue Hall, Main St 5",
			CityID:   "city-1",
			Dates:    []time.Time{date(2025, time.February, 12)},
			MinPrice: floatPtr(20),
			MaxPrice: floatPtr(30),
		},
		{
			Name:     "Jazz Night",
			Address:  "Blue Hall, Main St 5",
			CityID:   "city-1",
			Dates:    []time.Time{date(2025, time.February, 16)},
			MinPrice: floatPtr(15),
			MaxPrice: floatPtr(25),
		},
	}

	merged := Merge(events)
	if len(merged) != 1 {
		t.Fatalf("Expected 1 merged event, got %d", len(merged))
	}

	e := merged[0]
	if e.HoldingDate != "12–16 February 2025" {
		t.Errorf("Expected union of dates in holding date, got: %q", e.HoldingDate)
	}
	if e.DateStart == nil || e.DateStart.Day() != 12 {
		t.Errorf("Expected date_start on the 12th, got: %v", e.DateStart)
	}
	if e.DateEnd == nil || e.DateEnd.Day() != 16 {
		t.Errorf("Expected date_end on the 16th, got: %v", e.DateEnd)
	}
	if e.MinPrice == nil || *e.MinPrice != 15 {
		t.Errorf("Expected min price 15, got: %v", e.MinPrice)
	}
	if e.MaxPrice == nil || *e.MaxPrice != 30 {
		t.Errorf("Expected max price 30, got: %v", e.MaxPrice)
	}
}

func TestMerge_DistinctKeysStaySeparate(t *testing.T) {
	events := []Event{
		{Name: "Jazz Night", Address: "Blue Hall", CityID: "city-1"},
		{Name: "Jazz Night", Address: "Blue Hall", CityID: "city-2"},
		{Name: "Jazz Night", Address: "Red Hall", CityID: "city-1"},
	}

	merged := Merge(events)
	if len(merged) != 3 {
		t.Errorf("Expected 3 events, got %d", len(merged))
	}
}

func TestMerge_PreservesFirstAppearanceOrder(t *testing.T) {
	events := []Event{
		{Name: "B", Address: "x", CityID: "1"},
		{Name: "A", Address: "x", CityID: "1"},
		{Name: "B", Address: "x", CityID: "1"},
	}

	merged := Merge(events)
	if len(merged) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(merged))
	}
	if merged[0].Name != "B" || merged[1].Name != "A" {
		t.Errorf("Expected order B, A, got: %s, %s", merged[0].Name, merged[1].Name)
	}
}

func TestMerge_FallsBackToDateStart(t *testing.T) {
	start := date(2025, time.March, 3)
	events := []Event{
		{Name: "A", Address: "x", CityID: "1", DateStart: &start},
		{Name: "A", Address: "x", CityID: "1", Dates: []time.Time{date(2025, time.March, 5)}},
	}

	merged := Merge(events)
	if len(merged) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(merged))
	}
	if merged[0].HoldingDate != "3–5 March 2025" {
		t.Errorf("Expected '3–5 March 2025', got: %q", merged[0].HoldingDate)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	events := []Event{
		{
			Name:     "Jazz Night",
			Address:  "Blue Hall",
			CityID:   "city-1",
			Dates:    []time.Time{date(2025, time.February, 12), date(2025, time.February, 16)},
			MinPrice: floatPtr(10),
			MaxPrice: floatPtr(40),
		},
		{
			Name:    "Other",
			Address: "Elsewhere",
			CityID:  "city-1",
			Dates:   []time.Time{date(2025, time.April, 1)},
		},
	}

	once := Merge(events)
	twice := Merge(once)

	if len(once) != len(twice) {
		t.Fatalf("Expected stable length, got %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].HoldingDate != twice[i].HoldingDate {
			t.Errorf("Expected stable holding date, got %q then %q", once[i].HoldingDate, twice[i].HoldingDate)
		}
		if once[i].MinPrice != nil && *once[i].MinPrice != *twice[i].MinPrice {
			t.Errorf("Expected stable min price after re-merging")
		}
		if once[i].MaxPrice != nil && *once[i].MaxPrice != *twice[i].MaxPrice {
			t.Errorf("Expected stable max price after re-merging")
		}
	}
}
