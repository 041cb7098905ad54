package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"trade-journal/internal/export"
)

// addExportCommands adds the file export commands.
func addExportCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export trades and reports to files",
	}

	cmd.AddCommand(newExportCSVCmd(app))
	cmd.AddCommand(newExportWorkbookCmd(app))
	cmd.AddCommand(newExportChartCmd(app))

	rootCmd.AddCommand(cmd)
}

// writeOutput writes the rendered buffer to path, or to the command's
// output when path is "-".
func writeOutput(cmd *cobra.Command, path string, buf *bytes.Buffer) error {
	if path == "-" {
		_, err := io.Copy(cmd.OutOrStdout(), buf)
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// reportWritten prints where an export went, unless it went to stdout.
func reportWritten(cmd *cobra.Command, path string, size int) error {
	if path == "-" {
		return nil
	}
	output := NewOutput(cmd)
	if output.IsJSON() {
		return output.JSON(map[string]interface{}{"file": path, "bytes": size})
	}
	output.Success("Wrote %s (%d bytes)", path, size)
	return nil
}

func newExportCSVCmd(app *App) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Export every trade as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.open()
			if err != nil {
				return err
			}
			ctx := app.withContext(cmd)
			trades, err := svc.ListTrades(ctx, app.UserID(), "", 0)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := export.WriteCSV(&buf, trades); err != nil {
				return err
			}

			if out == "" {
				user, err := svc.Store().GetUser(ctx, app.UserID())
				if err != nil {
					return err
				}
				out = export.CSVFileName(user.Email)
			}
			size := buf.Len()
			if err := writeOutput(cmd, out, &buf); err != nil {
				return err
			}
			return reportWritten(cmd, out, size)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, - for stdout (default: trading_journal_<email>.csv)")
	return cmd
}

func newExportWorkbookCmd(app *App) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "xlsx [<year> <month> | YYYY-MM]",
		Short: "Export a monthly report workbook",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, month, err := parseYearMonth(args, time.Now())
			if err != nil {
				return err
			}
			svc, err := app.open()
			if err != nil {
				return err
			}
			ctx := app.withContext(cmd)
			report, err := svc.Monthly(ctx, app.UserID(), year, month)
			if err != nil {
				return err
			}
			trades, err := svc.MonthTrades(ctx, app.UserID(), year, month)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := export.WriteMonthlyWorkbook(&buf, report, trades); err != nil {
				return err
			}
			if out == "" {
				out = "journal_" + report.Month + ".xlsx"
			}
			size := buf.Len()
			if err := writeOutput(cmd, out, &buf); err != nil {
				return err
			}
			return reportWritten(cmd, out, size)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: journal_YYYY-MM.xlsx)")
	return cmd
}

func newExportChartCmd(app *App) *cobra.Command {
	var (
		out   string
		title string
	)

	cmd := &cobra.Command{
		Use:   "chart",
		Short: "Render the equity curve as an HTML chart",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.open()
			if err != nil {
				return err
			}
			curve, err := svc.EquityCurve(app.withContext(cmd), app.UserID())
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := export.RenderEquityChart(&buf, curve, title); err != nil {
				return err
			}
			size := buf.Len()
			if err := writeOutput(cmd, out, &buf); err != nil {
				return err
			}
			return reportWritten(cmd, out, size)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "equity_curve.html", "output file, - for stdout")
	cmd.Flags().StringVar(&title, "title", "Equity Curve", "chart title")
	return cmd
}
