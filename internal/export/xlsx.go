package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"trade-journal/internal/analytics"
	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
)

const (
	summarySheet = "Summary"
	tradesSheet  = "Trades"
)

var tradeHeader = []interface{}{
	"ID", "Pair", "Session", "Setup", "Type", "Entry", "Exit", "Size",
	"Entry Time", "Exit Time", "P/L", "Tags",
}

// WriteMonthlyWorkbook writes an Excel workbook with the monthly report on a
// Summary sheet and the month's trades on a Trades sheet.
func WriteMonthlyWorkbook(w io.Writer, report analytics.MonthlyReport, trades []models.Trade) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return jerrors.Wrap(err, "name summary sheet")
	}
	if err := writeSummarySheet(f, report); err != nil {
		return err
	}
	if _, err := f.NewSheet(tradesSheet); err != nil {
		return jerrors.Wrap(err, "create trades sheet")
	}
	if err := writeTradesSheet(f, trades); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return jerrors.Wrap(err, "write workbook")
	}
	return nil
}

func summaryRows(report analytics.MonthlyReport) [][]interface{} {
	rows := [][]interface{}{
		{"Month", report.Month},
		{"Total Trades", report.TotalTrades},
	}
	if report.IsEmpty() {
		return append(rows, []interface{}{"Message", report.Message})
	}
	d := report.MonthlyDetail
	return append(rows,
		[]interface{}{"Trading Days", d.TradingDays},
		[]interface{}{"Total P/L", d.TotalPnL},
		[]interface{}{"Win Rate %", d.WinRate},
		[]interface{}{"Wins", d.TotalWins},
		[]interface{}{"Losses", d.TotalLosses},
		[]interface{}{"Avg Win", d.AvgWin},
		[]interface{}{"Avg Loss", d.AvgLoss},
		[]interface{}{"Best Trade", fmt.Sprintf("%s %.2f (%s)", d.BestTrade.Pair, d.BestTrade.PnL, d.BestTrade.Date)},
		[]interface{}{"Worst Trade", fmt.Sprintf("%s %.2f (%s)", d.WorstTrade.Pair, d.WorstTrade.PnL, d.WorstTrade.Date)},
		[]interface{}{"Best Setup", fmt.Sprintf("%s %.2f (%d trades)", d.BestSetup.Name, d.BestSetup.PnL, d.BestSetup.Trades)},
		[]interface{}{"Discipline Score %", d.DisciplineScore},
	)
}

func writeSummarySheet(f *excelize.File, report analytics.MonthlyReport) error {
	for i, row := range summaryRows(report) {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return jerrors.Wrap(err, "write summary row")
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 20); err != nil {
		return jerrors.Wrap(err, "size summary column")
	}
	return f.SetColWidth(summarySheet, "B", "B", 36)
}

func writeTradesSheet(f *excelize.File, trades []models.Trade) error {
	if err := f.SetSheetRow(tradesSheet, "A1", &tradeHeader); err != nil {
		return jerrors.Wrap(err, "write trades header")
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return jerrors.Wrap(err, "create header style")
	}
	if err := f.SetRowStyle(tradesSheet, 1, 1, bold); err != nil {
		return jerrors.Wrap(err, "style trades header")
	}

	for i, t := range trades {
		row := []interface{}{
			t.ID, t.Pair, string(t.Session), t.SetupType, string(t.Direction),
			t.EntryPrice, optFloat(t.ExitPrice), t.PositionSize,
			t.EntryTime.UTC().Format(TimeLayout), optTime(t.ExitTime),
			t.PnL(), tagNames(t.Tags),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(tradesSheet, cell, &row); err != nil {
			return jerrors.Wrapf(err, "write trade %d", t.ID)
		}
	}
	return nil
}
