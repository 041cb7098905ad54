package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"trade-journal/internal/analytics"
	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
)

func sampleTrades() []models.Trade {
	entry := time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)
	return []models.Trade{
		{
			ID: 1, UserID: 1, Pair: "EURUSD", Session: models.SessionLondon, Timeframe: "H1",
			SetupType: "Break & Retest", Direction: models.DirectionBuy,
			EntryPrice: 1.1, StopLoss: 1.095, TakeProfit: 1.11, PositionSize: 10000,
			ExitPrice: models.Float(1.105), EntryTime: entry, ExitTime: models.Time(entry.Add(2 * time.Hour)),
			ProfitLoss: models.Float(50), Status: models.StatusClosed, Notes: "clean, textbook",
			Tags: []models.Tag{{ID: 1, Name: "FOMO"}, {ID: 2, Name: "Late Exit"}},
		},
		{
			ID: 2, UserID: 1, Pair: "GBPUSD", Session: models.SessionNewYork, Timeframe: "M15",
			SetupType: "Support/Resistance", Direction: models.DirectionSell,
			EntryPrice: 1.27, StopLoss: 1.275, TakeProfit: 1.26, PositionSize: 5000,
			EntryTime: entry.Add(24 * time.Hour), Status: models.StatusOpen,
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleTrades()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	header := records[0]
	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("missing column %s", name)
		return -1
	}

	first := records[1]
	assert.Equal(t, "EURUSD", first[col("pair")])
	assert.Equal(t, "Buy", first[col("trade_type")])
	assert.Equal(t, "50", first[col("profit_loss")])
	assert.Equal(t, "2024-03-04 11:30:00", first[col("exit_time")])
	assert.Equal(t, "FOMO;Late Exit", first[col("tags")])
	assert.Equal(t, "clean, textbook", first[col("notes")])

	second := records[2]
	assert.Equal(t, "", second[col("exit_price")])
	assert.Equal(t, "", second[col("profit_loss")])
	assert.Equal(t, "open", second[col("status")])
}

func TestWriteCSV_Empty(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, nil)
	assert.ErrorIs(t, err, jerrors.ErrDataNotFound)
	assert.Zero(t, buf.Len())
}

func TestCSVFileName(t *testing.T) {
	assert.Equal(t, "trades_export_a@b.com.csv", CSVFileName("a@b.com"))
}

func TestWriteMonthlyWorkbook(t *testing.T) {
	trades := sampleTrades()[:1]
	report := analytics.BuildMonthlyReport(trades, 2024, time.March)

	var buf bytes.Buffer
	require.NoError(t, WriteMonthlyWorkbook(&buf, report, trades))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Summary", "Trades"}, f.GetSheetList())

	month, err := f.GetCellValue("Summary", "B1")
	require.NoError(t, err)
	assert.Equal(t, "2024-03", month)

	rows, err := f.GetRows("Trades")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Pair", rows[0][1])
	assert.Equal(t, "EURUSD", rows[1][1])
	assert.Equal(t, "FOMO;Late Exit", rows[1][11])
}

func TestWriteMonthlyWorkbook_EmptyMonth(t *testing.T) {
	report := analytics.BuildMonthlyReport(nil, 2024, time.February)

	var buf bytes.Buffer
	require.NoError(t, WriteMonthlyWorkbook(&buf, report, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	msg, err := f.GetCellValue("Summary", "B3")
	require.NoError(t, err)
	assert.Equal(t, analytics.NoTradesMessage, msg)
}

func TestRenderEquityChart(t *testing.T) {
	curve := analytics.EquityCurve(sampleTrades())
	require.NotEmpty(t, curve)

	var buf bytes.Buffer
	require.NoError(t, RenderEquityChart(&buf, curve, "Equity Curve"))

	html := buf.String()
	assert.True(t, strings.Contains(html, "Equity Curve"))
	assert.True(t, strings.Contains(html, "Balance"))
	assert.True(t, strings.Contains(html, "2024-03-04"))
}

func TestRenderEquityChart_Empty(t *testing.T) {
	var buf bytes.Buffer
	assert.ErrorIs(t, RenderEquityChart(&buf, nil, "x"), jerrors.ErrDataNotFound)
}
