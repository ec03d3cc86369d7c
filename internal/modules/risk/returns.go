// Package risk combines per-asset return series into portfolio and market-relative risk figures.
package risk

import (
	"sort"
	"time"

	"github.com/aristath/qtop/internal/domain"
	"github.com/aristath/qtop/pkg/formulas"
)

// dayKey identifies a calendar day regardless of clock time or location
func dayKey(t time.Time) int {
	u := t.UTC()
	return u.Year()*1000 + u.YearDay()
}

// AlignReturns inner-joins return series on their dates.
// The result holds the common dates in ascending order and one row per input series,
// in input order, with the values observed on those dates.
func AlignReturns(series ...domain.ReturnSeries) ([]time.Time, [][]float64) {
	matrix := make([][]float64, len(series))
	if len(series) == 0 {
		return nil, matrix
	}

	counts := dayCounts(series)

	// Common dates taken from the first series, which keeps its ordering
	var dates []time.Time
	common := make(map[int]bool)
	for _, d := range series[0].Dates {
		k := dayKey(d)
		if counts[k] == len(series) && !common[k] {
			common[k] = true
			dates = append(dates, d)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	index := make(map[int]int, len(dates))
	for i, d := range dates {
		index[dayKey(d)] = i
	}

	for row, s := range series {
		values := make([]float64, len(dates))
		for i, d := range s.Dates {
			if pos, ok := index[dayKey(d)]; ok {
				values[pos] = s.Values[i]
			}
		}
		matrix[row] = values
	}

	return dates, matrix
}

// dayCounts returns, per day, how many of the series have an observation on it
func dayCounts(series []domain.ReturnSeries) map[int]int {
	counts := make(map[int]int)
	for _, s := range series {
		seen := make(map[int]bool, s.Len())
		for _, d := range s.Dates {
			k := dayKey(d)
			if !seen[k] {
				seen[k] = true
				counts[k]++
			}
		}
	}
	return counts
}

// SelectOverlapping picks the symbols whose return series can be combined.
//
// While the days shared by every kept series number fewer than minObs, capped at the
// longest series so a universe of short histories is not emptied, it drops the symbol
// whose removal leaves the most shared days. Ties drop the shorter series, then the
// later symbol. Both results are sorted.
func SelectOverlapping(series map[string]domain.ReturnSeries, minObs int) (kept, dropped []string) {
	kept = make([]string, 0, len(series))
	longest := 0
	for symbol, s := range series {
		kept = append(kept, symbol)
		longest = max(longest, s.Len())
	}
	sort.Strings(kept)
	need := min(minObs, longest)

	for len(kept) > 1 && sharedDays(series, kept) < need {
		drop, best := -1, -1
		for i := range kept {
			n := sharedDays(series, without(kept, i))
			if drop == -1 || n > best ||
				(n == best && series[kept[i]].Len() <= series[kept[drop]].Len()) {
				drop, best = i, n
			}
		}
		dropped = append(dropped, kept[drop])
		kept = without(kept, drop)
	}

	sort.Strings(dropped)
	return kept, dropped
}

func sharedDays(series map[string]domain.ReturnSeries, symbols []string) int {
	ordered := make([]domain.ReturnSeries, len(symbols))
	for i, symbol := range symbols {
		ordered[i] = series[symbol]
	}

	var n int
	for _, c := range dayCounts(ordered) {
		if c == len(symbols) {
			n++
		}
	}
	return n
}

func without(symbols []string, i int) []string {
	out := make([]string, 0, len(symbols)-1)
	out = append(out, symbols[:i]...)
	return append(out, symbols[i+1:]...)
}

// WeightedPortfolioReturns combines per-asset daily returns into one portfolio series.
//
// Only dates every asset traded on are kept. Weights are renormalised over the assets
// present in series; when they sum to zero (or none is given) every asset gets an equal share.
func WeightedPortfolioReturns(series map[string]domain.ReturnSeries, weights map[string]float64) domain.ReturnSeries {
	if len(series) == 0 {
		return domain.ReturnSeries{}
	}

	symbols := make([]string, 0, len(series))
	for symbol := range series {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	w := normalizedWeights(symbols, weights)

	ordered := make([]domain.ReturnSeries, len(symbols))
	for i, symbol := range symbols {
		ordered[i] = series[symbol]
	}
	dates, matrix := AlignReturns(ordered...)

	values := make([]float64, len(dates))
	for t := range dates {
		var r float64
		for i := range symbols {
			r += w[i] * matrix[i][t]
		}
		values[t] = r
	}

	return domain.ReturnSeries{Dates: dates, Values: values}
}

func normalizedWeights(symbols []string, weights map[string]float64) []float64 {
	w := make([]float64, len(symbols))
	var total float64
	for i, symbol := range symbols {
		if v := weights[symbol]; v > 0 {
			w[i] = v
			total += v
		}
	}

	if total <= formulas.ZeroTolerance {
		for i := range w {
			w[i] = 1 / float64(len(symbols))
		}
		return w
	}

	for i := range w {
		w[i] /= total
	}
	return w
}

// Beta measures asset sensitivity to the benchmark over the dates both series share.
// Returns 1.0 with fewer than two overlapping observations or zero benchmark variance.
func Beta(asset, benchmark domain.ReturnSeries) float64 {
	if asset.Len() == 0 || benchmark.Len() == 0 {
		return 1.0
	}
	_, matrix := AlignReturns(asset, benchmark)
	return formulas.Beta(matrix[0], matrix[1])
}
