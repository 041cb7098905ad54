package analytics

import (
	"sort"
	"time"

	"trade-journal/internal/models"
)

// DailyStats aggregates the trades closed on one calendar date.
type DailyStats struct {
	Date       string  `json:"date"`
	Trades     int     `json:"trades"`
	ProfitLoss float64 `json:"profit_loss"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
}

// StatsByTimeframe buckets the trades closed at or after now minus days by
// exit date. Only dates with at least one trade appear; buckets are sorted by
// date ascending.
func StatsByTimeframe(trades []models.Trade, days int, now time.Time) []DailyStats {
	cutoff := now.AddDate(0, 0, -days)
	buckets := make(map[string]*DailyStats)
	for _, t := range Eligible(trades) {
		if t.ExitTime.Before(cutoff) {
			continue
		}
		date := exitDate(t)
		b, ok := buckets[date]
		if !ok {
			b = &DailyStats{Date: date}
			buckets[date] = b
		}
		b.Trades++
		b.ProfitLoss += t.PnL()
		if t.IsWin() {
			b.Wins++
		} else {
			b.Losses++
		}
	}

	out := make([]DailyStats, 0, len(buckets))
	for _, b := range buckets {
		b.ProfitLoss = round2(b.ProfitLoss)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// GroupStats is the win/loss breakdown of one session or setup.
type GroupStats struct {
	Session     string  `json:"session,omitempty"`
	Setup       string  `json:"setup,omitempty"`
	TotalTrades int     `json:"total_trades"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	WinRate     float64 `json:"win_rate"`
	TotalPnL    float64 `json:"total_pnl"`
}

// Key returns the session or setup the group was built for.
func (g GroupStats) Key() string {
	if g.Session != "" {
		return g.Session
	}
	return g.Setup
}

func groupBy(trades []models.Trade, key func(models.Trade) string, label func(*GroupStats, string)) []GroupStats {
	groups := make(map[string]*GroupStats)
	for _, t := range Eligible(trades) {
		k := key(t)
		g, ok := groups[k]
		if !ok {
			g = &GroupStats{}
			label(g, k)
			groups[k] = g
		}
		g.TotalTrades++
		g.TotalPnL += t.PnL()
		if t.IsWin() {
			g.Wins++
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]GroupStats, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		g.Losses = g.TotalTrades - g.Wins
		g.WinRate = round2(percent(g.Wins, g.TotalTrades))
		g.TotalPnL = round2(g.TotalPnL)
		out = append(out, *g)
	}
	return out
}

// StatsBySession groups closed trades by market session. Sessions absent from
// the input never appear.
func StatsBySession(trades []models.Trade) []GroupStats {
	return groupBy(trades,
		func(t models.Trade) string { return string(t.Session) },
		func(g *GroupStats, k string) { g.Session = k })
}

// StatsBySetup groups closed trades by setup type.
func StatsBySetup(trades []models.Trade) []GroupStats {
	return groupBy(trades,
		func(t models.Trade) string { return t.SetupType },
		func(g *GroupStats, k string) { g.Setup = k })
}

// TagFrequency is how often a mistake tag was attached to the user's trades.
type TagFrequency struct {
	ID    int64  `json:"-"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Count int    `json:"count"`
}

// MistakeFrequency counts trade-tag associations across the given trades,
// open or closed. Tags never attached to these trades are not reported. The
// result is ordered by count descending, then by tag ID.
func MistakeFrequency(trades []models.Trade) []TagFrequency {
	counts := make(map[int64]*TagFrequency)
	for _, t := range trades {
		for _, tag := range t.Tags {
			f, ok := counts[tag.ID]
			if !ok {
				f = &TagFrequency{ID: tag.ID, Name: tag.Name, Color: tag.Color}
				counts[tag.ID] = f
			}
			f.Count++
		}
	}

	out := make([]TagFrequency, 0, len(counts))
	for _, f := range counts {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ID < out[j].ID
	})
	return out
}
