package analytics

import (
	"fmt"
	"time"

	"trade-journal/internal/models"
)

// NoTradesMessage marks a monthly report for a month without closed trades.
const NoTradesMessage = "No trades this month"

// MonthlyReport summarizes one calendar month. When the month has no closed
// trades only Month, TotalTrades and Message are set and the detail fields
// are omitted from JSON.
type MonthlyReport struct {
	Month       string `json:"month"`
	TotalTrades int    `json:"total_trades"`
	Message     string `json:"message,omitempty"`
	*MonthlyDetail
}

// MonthlyDetail carries the figures of a non-empty monthly report.
type MonthlyDetail struct {
	TradingDays     int      `json:"trading_days"`
	TotalPnL        float64  `json:"total_pnl"`
	WinRate         float64  `json:"win_rate"`
	TotalWins       int      `json:"total_wins"`
	TotalLosses     int      `json:"total_losses"`
	AvgWin          float64  `json:"avg_win"`
	AvgLoss         float64  `json:"avg_loss"`
	BestTrade       TradeRef `json:"best_trade"`
	WorstTrade      TradeRef `json:"worst_trade"`
	BestSetup       SetupRef `json:"best_setup"`
	DisciplineScore float64  `json:"discipline_score"`
}

// TradeRef identifies a single notable trade in a report.
type TradeRef struct {
	Pair string  `json:"pair"`
	PnL  float64 `json:"pnl"`
	Date string  `json:"date"`
}

// SetupRef is the aggregate of one setup type in a report.
type SetupRef struct {
	Name   string  `json:"name"`
	PnL    float64 `json:"pnl"`
	Trades int     `json:"trades"`
}

// IsEmpty reports whether the month had no closed trades.
func (r MonthlyReport) IsEmpty() bool {
	return r.MonthlyDetail == nil
}

// MonthLabel formats a year and month as YYYY-MM.
func MonthLabel(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d", year, int(month))
}

// BuildMonthlyReport builds the report for the trades closed within the given
// calendar month. Trades outside the month are ignored, so the caller may
// pass a wider snapshot. Ties for best and worst trade and for best setup go
// to the first one in input order.
func BuildMonthlyReport(trades []models.Trade, year int, month time.Month) MonthlyReport {
	label := MonthLabel(year, month)

	var inMonth []models.Trade
	for _, t := range Eligible(trades) {
		if exitDate(t)[:7] == label {
			inMonth = append(inMonth, t)
		}
	}
	if len(inMonth) == 0 {
		return MonthlyReport{Month: label, TotalTrades: 0, Message: NoTradesMessage}
	}

	wl := partition(inMonth)
	total := len(inMonth)

	days := make(map[string]struct{})
	best, worst := inMonth[0], inMonth[0]
	followed := 0
	var net float64

	type setupAgg struct {
		pnl    float64
		trades int
	}
	setups := make(map[string]*setupAgg)
	var setupOrder []string

	for _, t := range inMonth {
		days[exitDate(t)] = struct{}{}
		net += t.PnL()
		if t.PnL() > best.PnL() {
			best = t
		}
		if t.PnL() < worst.PnL() {
			worst = t
		}
		if t.FollowedRules() {
			followed++
		}
		agg, ok := setups[t.SetupType]
		if !ok {
			agg = &setupAgg{}
			setups[t.SetupType] = agg
			setupOrder = append(setupOrder, t.SetupType)
		}
		agg.pnl += t.PnL()
		agg.trades++
	}

	bestSetup := setupOrder[0]
	for _, name := range setupOrder[1:] {
		if setups[name].pnl > setups[bestSetup].pnl {
			bestSetup = name
		}
	}

	return MonthlyReport{
		Month:       label,
		TotalTrades: total,
		MonthlyDetail: &MonthlyDetail{
			TradingDays: len(days),
			TotalPnL:    round2(net),
			WinRate:     round2(percent(wl.wins, total)),
			TotalWins:   wl.wins,
			TotalLosses: wl.losses,
			AvgWin:      round2(wl.avgWin()),
			AvgLoss:     round2(wl.avgLoss()),
			BestTrade:   tradeRef(best),
			WorstTrade:  tradeRef(worst),
			BestSetup: SetupRef{
				Name:   bestSetup,
				PnL:    round2(setups[bestSetup].pnl),
				Trades: setups[bestSetup].trades,
			},
			DisciplineScore: round1(percent(followed, total)),
		},
	}
}

func tradeRef(t models.Trade) TradeRef {
	return TradeRef{Pair: t.Pair, PnL: round2(t.PnL()), Date: exitDate(t)}
}
