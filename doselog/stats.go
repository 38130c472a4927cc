package doselog

import (
	"fmt"
	"io"
	"slices"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tally sums amounts by substance, then by route
func (q Query) Tally() map[string]map[string]float64 {
	tally := make(map[string]map[string]float64)
	for _, e := range q.view {
		byRoute, ok := tally[e.Substance]
		if !ok {
			byRoute = make(map[string]float64)
			tally[e.Substance] = byRoute
		}
		byRoute[e.Route] += e.Amount
	}
	return tally
}

// TotalDose is the sum of the view's amounts, 0 when empty
func (q Query) TotalDose() float64 {
	var total float64
	for _, e := range q.view {
		total += e.Amount
	}
	return total
}

// AverageDose is the arithmetic mean of the view's amounts, 0 when empty
func (q Query) AverageDose() float64 {
	if len(q.view) == 0 {
		return 0
	}
	return q.TotalDose() / float64(len(q.view))
}

// MedianDose is the median of the view's amounts, 0 when empty
func (q Query) MedianDose() float64 {
	n := len(q.view)
	if n == 0 {
		return 0
	}

	doses := make([]float64, n)
	for i, e := range q.view {
		doses[i] = e.Amount
	}
	slices.Sort(doses)

	mid := n / 2
	if n%2 == 1 {
		return doses[mid]
	}
	return (doses[mid-1] + doses[mid]) / 2
}

// LastDoseTime is the latest timestamp in the view, false when empty
func (q Query) LastDoseTime() (time.Time, bool) {
	if len(q.view) == 0 {
		return time.Time{}, false
	}
	latest := q.view[0].Timestamp
	for _, e := range q.view[1:] {
		if e.Timestamp.After(latest) {
			latest = e.Timestamp
		}
	}
	return latest, true
}

// TimeSinceLastDose is the time elapsed since the latest entry in the view,
// false when the view is empty.
func (q Query) TimeSinceLastDose() (time.Duration, bool) {
	latest, ok := q.LastDoseTime()
	if !ok {
		return 0, false
	}
	return q.clock()().Sub(latest), true
}

func (q Query) clock() func() time.Time {
	if q.now == nil {
		return time.Now
	}
	return q.now
}

// SubstanceSummary is the tally of one substance with routes in first
// appearance order
type SubstanceSummary struct {
	Substance string
	Routes    []RouteAmount
	Total     float64
	LastDose  time.Time
}

// RouteAmount is a per-route subtotal
type RouteAmount struct {
	Route  string
	Amount float64
}

// Summaries groups the view by substance, in order of first appearance
func (q Query) Summaries() []SubstanceSummary {
	var out []SubstanceSummary
	index := make(map[string]int)

	for _, e := range q.view {
		i, ok := index[e.Substance]
		if !ok {
			i = len(out)
			index[e.Substance] = i
			out = append(out, SubstanceSummary{Substance: e.Substance})
		}
		s := &out[i]

		j := slices.IndexFunc(s.Routes, func(r RouteAmount) bool { return r.Route == e.Route })
		if j < 0 {
			s.Routes = append(s.Routes, RouteAmount{Route: e.Route})
			j = len(s.Routes) - 1
		}
		s.Routes[j].Amount += e.Amount
		s.Total += e.Amount
		if e.Timestamp.After(s.LastDose) {
			s.LastDose = e.Timestamp
		}
	}
	return out
}

// PrintSummary writes a per-substance breakdown of the view followed by the
// overall total. Each substance's "Last dose" line is measured from that
// substance's most recent entry, not from the latest entry of the whole view,
// and is printed even when the dose was logged at the current instant.
func (q Query) PrintSummary(w io.Writer) error {
	title := cases.Title(language.Und)
	now := q.clock()()

	for _, s := range q.Summaries() {
		if _, err := fmt.Fprintf(w, "%s (Total %.1fmg)\n", s.Substance, s.Total); err != nil {
			return err
		}
		for _, r := range s.Routes {
			if _, err := fmt.Fprintf(w, "  %s %.1fmg\n", title.String(r.Route), r.Amount); err != nil {
				return err
			}
		}
		hours := now.Sub(s.LastDose).Hours()
		if _, err := fmt.Fprintf(w, "  Last dose %.1f hours ago\n", hours); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "Total: %.1fmg\n", q.TotalDose())
	return err
}
