package analytics

import (
	"time"

	"trade-journal/internal/models"
)

// EquityPoint is one step of the cumulative balance walk.
type EquityPoint struct {
	TradeID  int64     `json:"trade_id"`
	Time     time.Time `json:"time"`
	PnL      float64   `json:"pnl"`
	Balance  float64   `json:"balance"`
	Peak     float64   `json:"peak"`
	Drawdown float64   `json:"drawdown"`
}

// walk runs the balance walk over trades in exit-time order. The balance and
// the running peak both start at zero.
func walk(trades []models.Trade, visit func(EquityPoint)) float64 {
	var balance, peak, maxDD float64
	for _, t := range byExitTime(Eligible(trades), false) {
		balance += t.PnL()
		if balance > peak {
			peak = balance
		}
		dd := peak - balance
		if dd > maxDD {
			maxDD = dd
		}
		if visit != nil {
			visit(EquityPoint{
				TradeID:  t.ID,
				Time:     *t.ExitTime,
				PnL:      t.PnL(),
				Balance:  balance,
				Peak:     peak,
				Drawdown: dd,
			})
		}
	}
	return maxDD
}

// MaxDrawdown returns the largest decline of the cumulative balance from its
// running peak. Ties in exit time keep input order. The value is unrounded.
func MaxDrawdown(trades []models.Trade) float64 {
	return walk(trades, nil)
}

// EquityCurve returns every step of the balance walk MaxDrawdown performs,
// rounded for display.
func EquityCurve(trades []models.Trade) []EquityPoint {
	points := []EquityPoint{}
	walk(trades, func(p EquityPoint) {
		p.PnL = round2(p.PnL)
		p.Balance = round2(p.Balance)
		p.Peak = round2(p.Peak)
		p.Drawdown = round2(p.Drawdown)
		points = append(points, p)
	})
	return points
}

// StreakType classifies a run of consecutive results.
type StreakType string

const (
	StreakWin  StreakType = "win"
	StreakLoss StreakType = "loss"
	StreakNone StreakType = "none"
)

// Streak is the current run of wins or losses.
type Streak struct {
	Type  StreakType `json:"type"`
	Count int        `json:"count"`
}

// CurrentStreak counts how many of the most recent closed trades share the
// outcome of the latest one. Only the StreakWindow most recent trades are
// inspected, so the count never exceeds StreakWindow.
func CurrentStreak(trades []models.Trade) Streak {
	recent := byExitTime(Eligible(trades), true)
	if len(recent) == 0 {
		return Streak{Type: StreakNone}
	}
	if len(recent) > StreakWindow {
		recent = recent[:StreakWindow]
	}

	latestWin := recent[0].IsWin()
	count := 0
	for _, t := range recent {
		if t.IsWin() != latestWin {
			break
		}
		count++
	}

	kind := StreakLoss
	if latestWin {
		kind = StreakWin
	}
	return Streak{Type: kind, Count: count}
}
