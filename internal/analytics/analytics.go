// Package analytics computes performance reports over a snapshot of journal
// trades.
//
// Every function is pure: it reads the slice it is given, never mutates it
// and performs no I/O. Callers load one user's trades from the store and pass
// them in. Open trades and closed trades missing their exit time or
// profit/loss are skipped by every report (see Eligible).
//
// Monetary values and percentages are rounded only at the report boundary,
// using decimal rounding so 2.675 rounds to 2.68 rather than the binary
// approximation's 2.67.
package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"trade-journal/internal/models"
)

// StreakWindow is how many of the most recent closed trades CurrentStreak
// inspects. Streaks longer than the window are reported as StreakWindow.
const StreakWindow = 20

// DisciplineTolerance is the multiple of the planned risk a realized result
// may reach and still count as disciplined.
const DisciplineTolerance = 1.1

// DateLayout is the calendar-date format used for report buckets.
const DateLayout = "2006-01-02"

// Eligible returns the trades that may enter performance statistics: closed,
// with an exit time and a realized profit/loss. Input order is preserved.
func Eligible(trades []models.Trade) []models.Trade {
	out := make([]models.Trade, 0, len(trades))
	for _, t := range trades {
		if t.IsClosed() {
			out = append(out, t)
		}
	}
	return out
}

// byExitTime returns a copy of trades stably sorted by exit time. The caller's
// slice is never reordered.
func byExitTime(trades []models.Trade, descending bool) []models.Trade {
	sorted := make([]models.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := *sorted[i].ExitTime, *sorted[j].ExitTime
		if descending {
			return a.After(b)
		}
		return a.Before(b)
	})
	return sorted
}

// exitDate returns the calendar date of the trade's exit in its own location.
func exitDate(t models.Trade) string {
	return t.ExitTime.Format(DateLayout)
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

// round rounds half away from zero. Sums that overflow are clamped to the
// largest finite value of their sign and NaN reports 0.
func round(v float64, places int32) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// round2 rounds monetary values and percentages.
func round2(v float64) float64 { return round(v, 2) }

// round1 rounds the discipline scores, which are reported to one place.
func round1(v float64) float64 { return round(v, 1) }

// monthBounds returns the first instant of the month and the first instant
// of the following month in loc.
func monthBounds(year int, month time.Month, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// MonthBounds exposes the month window used by MonthlyReport so the store can
// load exactly the trades the report will consider.
func MonthBounds(year int, month time.Month) (time.Time, time.Time) {
	return monthBounds(year, month, time.UTC)
}
