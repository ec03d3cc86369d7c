package formulas

import (
	"iter"
	"time"

	"github.com/aristath/qtop/internal/domain"
)

// DailyReturns yields (date, close[t]/close[t-1] - 1) for every t >= 1.
// Points whose previous close is zero are skipped. The view is lazy; nothing is
// allocated until the caller ranges over it.
func DailyReturns(series domain.PriceSeries) iter.Seq2[time.Time, float64] {
	return func(yield func(time.Time, float64) bool) {
		for i := 1; i < len(series.Points); i++ {
			prev := series.Points[i-1].Close
			if prev == 0 {
				continue
			}
			if !yield(series.Points[i].Date, series.Points[i].Close/prev-1) {
				return
			}
		}
	}
}

// CollectReturns materialises DailyReturns into a ReturnSeries
func CollectReturns(series domain.PriceSeries) domain.ReturnSeries {
	n := len(series.Points) - 1
	if n < 0 {
		n = 0
	}
	out := domain.ReturnSeries{
		Dates:  make([]time.Time, 0, n),
		Values: make([]float64, 0, n),
	}
	for date, r := range DailyReturns(series) {
		out.Dates = append(out.Dates, date)
		out.Values = append(out.Values, r)
	}
	return out
}
