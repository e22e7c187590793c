package event

import (
	"strings"
	"time"
)

type mergeKey struct {
	name    string
	address string
	cityID  string
}

type mergeGroup struct {
	template Event
	dates    []time.Time
	prices   []float64
}

// Merge deduplicates events sharing the same (name, address, city) identity,
// unioning their dates and price ranges. The first event of each group
// provides the descriptive fields; derived date fields and min/max price are
// recomputed over all contributors. Relative order of first appearance is
// preserved, and merging an already-merged list is a no-op.
func Merge(events []Event) []Event {
	if len(events) == 0 {
		return nil
	}

	groups := make(map[mergeKey]*mergeGroup)
	var order []mergeKey

	for _, e := range events {
		k := mergeKey{
			name:    strings.TrimSpace(e.Name),
			address: strings.TrimSpace(e.Address),
			cityID:  e.CityID,
		}
		g, exists := groups[k]
		if !exists {
			g = &mergeGroup{template: e}
			groups[k] = g
			order = append(order, k)
		}

		dates := e.Dates
		if len(dates) == 0 && e.DateStart != nil {
			dates = []time.Time{*e.DateStart}
		}
		g.dates = append(g.dates, dates...)

		if e.MinPrice != nil {
			g.prices = append(g.prices, *e.MinPrice)
		}
		if e.MaxPrice != nil {
			g.prices = append(g.prices, *e.MaxPrice)
		}
	}

	merged := make([]Event, 0, len(order))
	for _, k := range order {
		g := groups[k]
		e := g.template
		e.SetDates(g.dates)

		if len(g.prices) > 0 {
			minPrice, maxPrice := g.prices[0], g.prices[0]
			for _, p := range g.prices[1:] {
				if p < minPrice {
					minPrice = p
				}
				if p > maxPrice {
					maxPrice = p
				}
			}
			e.MinPrice = &minPrice
			e.MaxPrice = &maxPrice
		}

		merged = append(merged, e)
	}

	return merged
}
