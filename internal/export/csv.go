// Package export writes journal data to CSV, Excel workbooks and HTML
// charts.
package export

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
)

// tradeRow is one CSV line. Column names follow the trades table.
type tradeRow struct {
	ID               int64   `csv:"id"`
	UserID           int64   `csv:"user_id"`
	Pair             string  `csv:"pair"`
	Session          string  `csv:"session"`
	Timeframe        string  `csv:"timeframe"`
	SetupType        string  `csv:"setup_type"`
	TradeType        string  `csv:"trade_type"`
	EntryPrice       float64 `csv:"entry_price"`
	StopLoss         float64 `csv:"stop_loss"`
	TakeProfit       float64 `csv:"take_profit"`
	ExitPrice        string  `csv:"exit_price"`
	PositionSize     float64 `csv:"position_size"`
	RiskAmount       float64 `csv:"risk_amount"`
	RewardAmount     float64 `csv:"reward_amount"`
	RiskRewardRatio  float64 `csv:"risk_reward_ratio"`
	RiskPercentage   string  `csv:"risk_percentage"`
	Confidence       string  `csv:"confidence"`
	EmotionBefore    string  `csv:"emotion_before"`
	RuleFollowed     string  `csv:"rule_followed"`
	EntryTime        string  `csv:"entry_time"`
	ExitTime         string  `csv:"exit_time"`
	ProfitLoss       string  `csv:"profit_loss"`
	Status           string  `csv:"status"`
	Notes            string  `csv:"notes"`
	ScreenshotBefore string  `csv:"screenshot_before"`
	ScreenshotAfter  string  `csv:"screenshot_after"`
	Tags             string  `csv:"tags"`
}

// TimeLayout formats timestamps in exports.
const TimeLayout = "2006-01-02 15:04:05"

func optFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func optTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

func tagNames(tags []models.Tag) string {
	names := make([]string, len(tags))
	for i, tag := range tags {
		names[i] = tag.Name
	}
	return strings.Join(names, ";")
}

func newTradeRow(t models.Trade) tradeRow {
	row := tradeRow{
		ID:               t.ID,
		UserID:           t.UserID,
		Pair:             t.Pair,
		Session:          string(t.Session),
		Timeframe:        t.Timeframe,
		SetupType:        t.SetupType,
		TradeType:        string(t.Direction),
		EntryPrice:       t.EntryPrice,
		StopLoss:         t.StopLoss,
		TakeProfit:       t.TakeProfit,
		ExitPrice:        optFloat(t.ExitPrice),
		PositionSize:     t.PositionSize,
		RiskAmount:       t.RiskAmount,
		RewardAmount:     t.RewardAmount,
		RiskRewardRatio:  t.RiskReward,
		RiskPercentage:   optFloat(t.RiskPercentage),
		EmotionBefore:    t.EmotionBefore,
		EntryTime:        t.EntryTime.UTC().Format(TimeLayout),
		ExitTime:         optTime(t.ExitTime),
		ProfitLoss:       optFloat(t.ProfitLoss),
		Status:           string(t.Status),
		Notes:            t.Notes,
		ScreenshotBefore: t.ScreenshotBefore,
		ScreenshotAfter:  t.ScreenshotAfter,
		Tags:             tagNames(t.Tags),
	}
	if t.Confidence != nil {
		row.Confidence = strconv.Itoa(*t.Confidence)
	}
	if t.RuleFollowed != nil {
		row.RuleFollowed = strconv.FormatBool(*t.RuleFollowed)
	}
	return row
}

// WriteCSV writes trades as CSV with a header line. An empty list is
// ErrDataNotFound.
func WriteCSV(w io.Writer, trades []models.Trade) error {
	if len(trades) == 0 {
		return jerrors.Wrap(jerrors.ErrDataNotFound, "no trades to export")
	}
	rows := make([]tradeRow, len(trades))
	for i, t := range trades {
		rows[i] = newTradeRow(t)
	}
	if err := gocsv.Marshal(rows, w); err != nil {
		return jerrors.Wrap(err, "write csv")
	}
	return nil
}

// CSVFileName returns the download name of a user's CSV export.
func CSVFileName(email string) string {
	return "trades_export_" + email + ".csv"
}
