package analytics

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trade-journal/internal/models"
)

var base = time.Date(2024, time.March, 1, 9, 0, 0, 0, time.UTC)

type tradeOpt func(*models.Trade)

func withSession(s models.Session) tradeOpt { return func(t *models.Trade) { t.Session = s } }
func withSetup(s string) tradeOpt           { return func(t *models.Trade) { t.SetupType = s } }
func withRisk(r float64) tradeOpt           { return func(t *models.Trade) { t.RiskAmount = r } }
func withPair(p string) tradeOpt            { return func(t *models.Trade) { t.Pair = p } }
func withRule(b bool) tradeOpt              { return func(t *models.Trade) { t.RuleFollowed = models.Bool(b) } }
func withTags(tags ...models.Tag) tradeOpt  { return func(t *models.Trade) { t.Tags = tags } }

func closedAt(id int64, pnl float64, exit time.Time, opts ...tradeOpt) models.Trade {
	t := models.Trade{
		ID:         id,
		UserID:     1,
		Pair:       "EURUSD",
		Session:    models.SessionLondon,
		SetupType:  "Breakout",
		Direction:  models.DirectionBuy,
		RiskAmount: 100,
		EntryTime:  exit.Add(-time.Hour),
		ExitTime:   models.Time(exit),
		ProfitLoss: models.Float(pnl),
		Status:     models.StatusClosed,
	}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

// sequence builds closed trades whose exit times increase in input order.
func sequence(pnls ...float64) []models.Trade {
	trades := make([]models.Trade, len(pnls))
	for i, pnl := range pnls {
		trades[i] = closedAt(int64(i+1), pnl, base.Add(time.Duration(i)*time.Hour))
	}
	return trades
}

func TestOverallSummary_Empty(t *testing.T) {
	got := OverallSummary(nil)
	assert.Equal(t, EmptySummary(), got)
	assert.Equal(t, Streak{Type: StreakNone, Count: 0}, got.CurrentStreak)

	open := models.Trade{ID: 1, Status: models.StatusOpen, EntryTime: base}
	assert.Equal(t, EmptySummary(), OverallSummary([]models.Trade{open}))
}

func TestOverallSummary_Scenario(t *testing.T) {
	trades := sequence(100, 100, 100, 100, 100, 100, -50, -50, -50, -50)

	got := OverallSummary(trades)

	assert.Equal(t, 10, got.TotalTrades)
	assert.Equal(t, 6, got.TotalWins)
	assert.Equal(t, 4, got.TotalLosses)
	assert.Equal(t, 60.0, got.WinRate)
	assert.Equal(t, 400.0, got.TotalProfitLoss)
	assert.Equal(t, 100.0, got.AvgWin)
	assert.Equal(t, 50.0, got.AvgLoss)
	assert.Equal(t, 3.0, got.ProfitFactor)
	assert.Equal(t, 40.0, got.Expectancy)
	assert.Equal(t, 200.0, got.MaxDrawdown)
	assert.Equal(t, 100.0, got.LargestWin)
	assert.Equal(t, -50.0, got.LargestLoss)
	assert.Equal(t, 1.0, got.AvgRMultiple)
	assert.Equal(t, 100.0, got.RiskDiscipline)
	assert.Equal(t, Streak{Type: StreakLoss, Count: 4}, got.CurrentStreak)
}

func TestOverallSummary_ProfitFactorFallbacks(t *testing.T) {
	allWins := OverallSummary(sequence(120, 80.5))
	assert.Equal(t, 200.5, allWins.ProfitFactor)
	assert.Equal(t, 0.0, allWins.LargestLoss)
	assert.Equal(t, 0.0, allWins.AvgLoss)

	allLosses := OverallSummary(sequence(-10, -20))
	assert.Equal(t, 0.0, allLosses.ProfitFactor)
	assert.Equal(t, 0.0, allLosses.WinRate)
	assert.Equal(t, -20.0, allLosses.LargestLoss)
	assert.Equal(t, 15.0, allLosses.AvgLoss)
}

func TestOverallSummary_BreakevenIsLoss(t *testing.T) {
	got := OverallSummary(sequence(0, 50))
	assert.Equal(t, 1, got.TotalWins)
	assert.Equal(t, 1, got.TotalLosses)
	assert.Equal(t, 0.0, got.LargestLoss)
	assert.Equal(t, 50.0, got.WinRate)
}

func TestOverallSummary_SkipsMalformedClosedTrades(t *testing.T) {
	trades := sequence(100, -40)
	broken := closedAt(99, 0, base)
	broken.ProfitLoss = nil
	trades = append(trades, broken)

	got := OverallSummary(trades)
	assert.Equal(t, 2, got.TotalTrades)
}

func TestAvgRMultiple_IgnoresZeroRisk(t *testing.T) {
	trades := []models.Trade{
		closedAt(1, 200, base, withRisk(100)),
		closedAt(2, 300, base.Add(time.Hour), withRisk(0)),
		closedAt(3, -100, base.Add(2*time.Hour), withRisk(100)),
	}
	assert.Equal(t, 2.0, AvgRMultiple(trades))
	assert.Equal(t, 0.0, AvgRMultiple(trades[1:2]))
}

func TestRiskDiscipline(t *testing.T) {
	trades := []models.Trade{
		closedAt(1, -110, base, withRisk(100)),
		closedAt(2, -111, base.Add(time.Hour), withRisk(100)),
		closedAt(3, 50, base.Add(2*time.Hour), withRisk(0)),
	}
	assert.Equal(t, 33.3, RiskDiscipline(trades))
	assert.Equal(t, 0.0, RiskDiscipline(nil))

	unplanned := []models.Trade{
		closedAt(1, 0, base, withRisk(0)),
		closedAt(2, 40, base.Add(time.Hour), withRisk(100)),
	}
	assert.Equal(t, 50.0, RiskDiscipline(unplanned), "a flat trade with no planned risk is not disciplined")
}

func TestMaxDrawdown(t *testing.T) {
	assert.Equal(t, 150.0, MaxDrawdown(sequence(100, -150, 30)))
	assert.Equal(t, 0.0, MaxDrawdown(sequence(100, 50)))
	assert.Equal(t, 0.0, MaxDrawdown(nil))

	// Peak starts at zero, so an opening loss is already a drawdown.
	assert.Equal(t, 40.0, MaxDrawdown(sequence(-40, 10)))
}

func TestMaxDrawdown_SortsByExitTime(t *testing.T) {
	trades := []models.Trade{
		closedAt(1, 30, base.Add(2*time.Hour)),
		closedAt(2, 100, base),
		closedAt(3, -150, base.Add(time.Hour)),
	}
	assert.Equal(t, 150.0, MaxDrawdown(trades))
	assert.Equal(t, int64(1), trades[0].ID, "input must not be reordered")
}

func TestEquityCurve(t *testing.T) {
	curve := EquityCurve(sequence(100, -150, 30))
	require.Len(t, curve, 3)

	assert.Equal(t, []float64{100, -50, -20}, []float64{curve[0].Balance, curve[1].Balance, curve[2].Balance})
	assert.Equal(t, []float64{100, 100, 100}, []float64{curve[0].Peak, curve[1].Peak, curve[2].Peak})
	assert.Equal(t, 150.0, curve[1].Drawdown)
	assert.NotNil(t, EquityCurve(nil))
}

func TestCurrentStreak(t *testing.T) {
	// Most recent first: + + - +
	trades := []models.Trade{
		closedAt(1, 10, base.Add(4*time.Hour)),
		closedAt(2, 20, base.Add(3*time.Hour)),
		closedAt(3, -5, base.Add(2*time.Hour)),
		closedAt(4, 15, base.Add(time.Hour)),
	}
	assert.Equal(t, Streak{Type: StreakWin, Count: 2}, CurrentStreak(trades))
	assert.Equal(t, Streak{Type: StreakNone}, CurrentStreak(nil))
}

func TestCurrentStreak_CappedAtWindow(t *testing.T) {
	pnls := make([]float64, 30)
	for i := range pnls {
		pnls[i] = -1
	}
	assert.Equal(t, Streak{Type: StreakLoss, Count: StreakWindow}, CurrentStreak(sequence(pnls...)))
}

func TestStatsByTimeframe(t *testing.T) {
	now := time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)
	trades := []models.Trade{
		closedAt(1, 50, time.Date(2024, time.March, 30, 9, 0, 0, 0, time.UTC)),
		closedAt(2, -20, time.Date(2024, time.March, 30, 15, 0, 0, 0, time.UTC)),
		closedAt(3, 0, time.Date(2024, time.March, 25, 10, 0, 0, 0, time.UTC)),
		closedAt(4, 80, time.Date(2024, time.February, 1, 10, 0, 0, 0, time.UTC)),
	}

	got := StatsByTimeframe(trades, 7, now)

	require.Len(t, got, 2)
	assert.Equal(t, DailyStats{Date: "2024-03-25", Trades: 1, ProfitLoss: 0, Wins: 0, Losses: 1}, got[0])
	assert.Equal(t, DailyStats{Date: "2024-03-30", Trades: 2, ProfitLoss: 30, Wins: 1, Losses: 1}, got[1])
	assert.Empty(t, StatsByTimeframe(nil, 30, now))
}

func TestStatsBySession_OnlyPresentKeys(t *testing.T) {
	trades := []models.Trade{
		closedAt(1, 50, base, withSession(models.SessionLondon)),
		closedAt(2, -25, base.Add(time.Hour), withSession(models.SessionLondon)),
		closedAt(3, 10, base.Add(2*time.Hour), withSession(models.SessionAsian)),
	}

	got := StatsBySession(trades)

	require.Len(t, got, 2)
	assert.Equal(t, GroupStats{Session: "Asian", TotalTrades: 1, Wins: 1, Losses: 0, WinRate: 100, TotalPnL: 10}, got[0])
	assert.Equal(t, GroupStats{Session: "London", TotalTrades: 2, Wins: 1, Losses: 1, WinRate: 50, TotalPnL: 25}, got[1])
	for _, g := range got {
		assert.NotEqual(t, string(models.SessionNewYork), g.Key())
	}
}

func TestStatsBySetup(t *testing.T) {
	trades := []models.Trade{
		closedAt(1, 50, base, withSetup("Pullback")),
		closedAt(2, 70, base.Add(time.Hour), withSetup("Breakout")),
		closedAt(3, -30, base.Add(2*time.Hour), withSetup("Pullback")),
	}

	got := StatsBySetup(trades)

	require.Len(t, got, 2)
	assert.Equal(t, "Breakout", got[0].Setup)
	assert.Equal(t, "Pullback", got[1].Key())
	assert.Equal(t, 20.0, got[1].TotalPnL)
	assert.Equal(t, 1, got[1].Losses)
}

func TestMistakeFrequency(t *testing.T) {
	fomo := models.Tag{ID: 4, Name: "FOMO", Color: "#dc2626"}
	early := models.Tag{ID: 1, Name: "Early Entry", Color: "#ef4444"}
	news := models.Tag{ID: 3, Name: "News Trade", Color: "#eab308"}

	open := models.Trade{ID: 9, Status: models.StatusOpen, Tags: []models.Tag{fomo}}
	trades := []models.Trade{
		closedAt(1, 10, base, withTags(fomo, early)),
		closedAt(2, -10, base.Add(time.Hour), withTags(news)),
		open,
	}

	got := MistakeFrequency(trades)

	require.Len(t, got, 3)
	assert.Equal(t, TagFrequency{ID: 4, Name: "FOMO", Color: "#dc2626", Count: 2}, got[0])
	assert.Equal(t, "Early Entry", got[1].Name)
	assert.Equal(t, "News Trade", got[2].Name)
	assert.Empty(t, MistakeFrequency(sequence(1, 2)))
}

func TestBuildMonthlyReport_Empty(t *testing.T) {
	got := BuildMonthlyReport(sequence(10), 2023, time.December)
	assert.True(t, got.IsEmpty())

	raw, err := json.Marshal(got)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, map[string]interface{}{
		"month":        "2023-12",
		"total_trades": 0.0,
		"message":      NoTradesMessage,
	}, fields)
}

func TestBuildMonthlyReport(t *testing.T) {
	feb := func(day, hour int) time.Time { return time.Date(2024, time.February, day, hour, 0, 0, 0, time.UTC) }
	trades := []models.Trade{
		closedAt(1, 100, feb(1, 10), withPair("EURUSD"), withSetup("Breakout")),
		closedAt(2, -40, feb(1, 15), withPair("GBPUSD"), withSetup("Reversal"), withRule(false)),
		closedAt(3, 100, feb(29, 9), withPair("USDJPY"), withSetup("Reversal")),
		closedAt(4, -40, feb(29, 11), withPair("AUDUSD"), withSetup("Reversal")),
		closedAt(5, 500, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)),
	}

	got := BuildMonthlyReport(trades, 2024, time.February)

	require.False(t, got.IsEmpty())
	assert.Equal(t, "2024-02", got.Month)
	assert.Equal(t, 4, got.TotalTrades)
	assert.Equal(t, 2, got.TradingDays)
	assert.Equal(t, 120.0, got.TotalPnL)
	assert.Equal(t, 50.0, got.WinRate)
	assert.Equal(t, 2, got.TotalWins)
	assert.Equal(t, 2, got.TotalLosses)
	assert.Equal(t, 100.0, got.AvgWin)
	assert.Equal(t, 40.0, got.AvgLoss)
	assert.Equal(t, TradeRef{Pair: "EURUSD", PnL: 100, Date: "2024-02-01"}, got.BestTrade)
	assert.Equal(t, TradeRef{Pair: "GBPUSD", PnL: -40, Date: "2024-02-01"}, got.WorstTrade)
	assert.Equal(t, SetupRef{Name: "Breakout", PnL: 100, Trades: 1}, got.BestSetup)
	assert.Equal(t, 75.0, got.DisciplineScore)
}

func TestBuildMonthlyReport_SetupTieGoesToFirst(t *testing.T) {
	trades := []models.Trade{
		closedAt(1, 60, base, withSetup("Range")),
		closedAt(2, 60, base.Add(time.Hour), withSetup("Trend")),
	}
	got := BuildMonthlyReport(trades, 2024, time.March)
	assert.Equal(t, "Range", got.BestSetup.Name)
}

func TestRoundingIsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, 2.68, round2(2.675))
	assert.Equal(t, -1.01, round2(-1.005))
	assert.Equal(t, 33.3, round1(100.0/3))
	assert.Equal(t, 0.0, round2(math.NaN()))
	assert.Equal(t, math.MaxFloat64, round2(math.Inf(1)))
	assert.Equal(t, -math.MaxFloat64, round2(math.Inf(-1)))
}

func TestReports_OverflowingTotalsStayFinite(t *testing.T) {
	trades := sequence(-1e308, -1e308)

	var summary Summary
	require.NotPanics(t, func() { summary = OverallSummary(trades) })
	assert.Equal(t, -math.MaxFloat64, summary.TotalProfitLoss)
	assert.Equal(t, math.MaxFloat64, summary.MaxDrawdown)
	_, err := json.Marshal(summary)
	require.NoError(t, err)

	require.NotPanics(t, func() {
		_, err = json.Marshal(EquityCurve(trades))
	})
	require.NoError(t, err)
	require.NotPanics(t, func() {
		_, err = json.Marshal(StatsBySession(trades))
	})
	require.NoError(t, err)
}

func TestMonthBounds_LeapYear(t *testing.T) {
	start, end := MonthBounds(2024, time.February)
	assert.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), end)
	assert.Equal(t, 29, end.AddDate(0, 0, -1).Day())
}
