package pricing

import "github.com/diewo77/go-honoraires/internal/fees"

// Summary rolls client results up per axe, per cabinet and globally.
type Summary struct {
	ByAxis   map[fees.Axe]Totals `json:"by_axis"`
	ByCohort map[string]Totals   `json:"by_cohort"`
	Global   Totals              `json:"global"`
	Clients  int                 `json:"clients"`
	Excluded int                 `json:"excluded"`
}

// Summarize sums the totals of non-excluded clients.
func Summarize(results []ClientResult) Summary {
	byAxis := make(map[fees.Axe]Totals)
	byCohort := make(map[string]Totals)
	var global Totals
	s := Summary{}
	for _, r := range results {
		if r.Excluded {
			s.Excluded++
			continue
		}
		s.Clients++
		for axe, t := range r.ByAxis {
			byAxis[axe] = byAxis[axe].plus(t)
		}
		byCohort[r.Cabinet] = byCohort[r.Cabinet].plus(r.Total)
		global = global.plus(r.Total)
	}
	s.ByAxis = make(map[fees.Axe]Totals, len(byAxis))
	for axe, t := range byAxis {
		s.ByAxis[axe] = t.finish()
	}
	s.ByCohort = make(map[string]Totals, len(byCohort))
	for cabinet, t := range byCohort {
		s.ByCohort[cabinet] = t.finish()
	}
	s.Global = global.finish()
	return s
}
