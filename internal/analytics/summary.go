package analytics

import (
	"math"

	"trade-journal/internal/models"
)

// Summary is the overall performance report for one user.
//
// AvgLoss is a positive magnitude while LargestLoss keeps the raw signed
// value of the worst trade. Display code relies on the sign of LargestLoss.
type Summary struct {
	TotalTrades     int     `json:"total_trades"`
	WinRate         float64 `json:"win_rate"`
	TotalProfitLoss float64 `json:"total_profit_loss"`
	Expectancy      float64 `json:"expectancy"`
	ProfitFactor    float64 `json:"profit_factor"`
	MaxDrawdown     float64 `json:"max_drawdown"`
	AvgWin          float64 `json:"avg_win"`
	AvgLoss         float64 `json:"avg_loss"`
	LargestWin      float64 `json:"largest_win"`
	LargestLoss     float64 `json:"largest_loss"`
	TotalWins       int     `json:"total_wins"`
	TotalLosses     int     `json:"total_losses"`
	AvgRMultiple    float64 `json:"avg_r_multiple"`
	RiskDiscipline  float64 `json:"risk_discipline"`
	CurrentStreak   Streak  `json:"current_streak"`
}

// EmptySummary is the report for a user with no closed trades.
func EmptySummary() Summary {
	return Summary{CurrentStreak: Streak{Type: StreakNone}}
}

// winLoss holds the partition shared by the summary and monthly reports.
type winLoss struct {
	wins, losses           int
	totalProfit, totalLoss float64
	largestWin             float64
	largestLoss            float64
}

func partition(trades []models.Trade) winLoss {
	var wl winLoss
	for _, t := range trades {
		pnl := t.PnL()
		if pnl > 0 {
			wl.wins++
			wl.totalProfit += pnl
			wl.largestWin = math.Max(wl.largestWin, pnl)
			continue
		}
		// The first loss seeds largestLoss so an all-breakeven history
		// reports 0 rather than a stale positive value.
		if wl.losses == 0 || pnl < wl.largestLoss {
			wl.largestLoss = pnl
		}
		wl.losses++
		wl.totalLoss += math.Abs(pnl)
	}
	return wl
}

func (wl winLoss) avgWin() float64 {
	if wl.wins == 0 {
		return 0
	}
	return wl.totalProfit / float64(wl.wins)
}

func (wl winLoss) avgLoss() float64 {
	if wl.losses == 0 {
		return 0
	}
	return wl.totalLoss / float64(wl.losses)
}

func (wl winLoss) profitFactor() float64 {
	switch {
	case wl.totalLoss > 0:
		return wl.totalProfit / wl.totalLoss
	case wl.totalProfit > 0:
		return wl.totalProfit
	default:
		return 0
	}
}

// OverallSummary computes the overall performance report. An input with no
// eligible trades yields EmptySummary.
func OverallSummary(trades []models.Trade) Summary {
	closed := Eligible(trades)
	if len(closed) == 0 {
		return EmptySummary()
	}

	wl := partition(closed)
	total := len(closed)
	winRate := percent(wl.wins, total)
	avgWin, avgLoss := wl.avgWin(), wl.avgLoss()
	expectancy := (winRate/100)*avgWin - (1-winRate/100)*avgLoss

	return Summary{
		TotalTrades:     total,
		WinRate:         round2(winRate),
		TotalProfitLoss: round2(wl.totalProfit - wl.totalLoss),
		Expectancy:      round2(expectancy),
		ProfitFactor:    round2(wl.profitFactor()),
		MaxDrawdown:     round2(MaxDrawdown(closed)),
		AvgWin:          round2(avgWin),
		AvgLoss:         round2(avgLoss),
		LargestWin:      round2(wl.largestWin),
		LargestLoss:     round2(wl.largestLoss),
		TotalWins:       wl.wins,
		TotalLosses:     wl.losses,
		AvgRMultiple:    AvgRMultiple(closed),
		RiskDiscipline:  RiskDiscipline(closed),
		CurrentStreak:   CurrentStreak(closed),
	}
}

// AvgRMultiple returns the mean R-multiple of winning trades. Winners without
// a positive risk amount are left out; 0 when none qualify.
func AvgRMultiple(trades []models.Trade) float64 {
	var sum float64
	var n int
	for _, t := range Eligible(trades) {
		if !t.IsWin() || t.RiskAmount <= 0 {
			continue
		}
		sum += t.PnL() / t.RiskAmount
		n++
	}
	if n == 0 {
		return 0
	}
	return round2(sum / float64(n))
}

// RiskDiscipline returns the percentage of closed trades whose realized
// result stayed within DisciplineTolerance of the planned risk, to one place.
// Trades without a positive risk amount count as undisciplined.
func RiskDiscipline(trades []models.Trade) float64 {
	closed := Eligible(trades)
	disciplined := 0
	for _, t := range closed {
		if t.RiskAmount > 0 && math.Abs(t.PnL()) <= t.RiskAmount*DisciplineTolerance {
			disciplined++
		}
	}
	return round1(percent(disciplined, len(closed)))
}
