package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"trade-journal/internal/analytics"
	jerrors "trade-journal/internal/errors"
)

// addStatsCommands adds the performance report commands.
func addStatsCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "stats",
		Aliases: []string{"statistics"},
		Short:   "Performance reports over closed trades",
	}

	cmd.AddCommand(newStatsSummaryCmd(app))
	cmd.AddCommand(newStatsDailyCmd(app))
	cmd.AddCommand(newStatsGroupCmd(app, "session"))
	cmd.AddCommand(newStatsGroupCmd(app, "setup"))
	cmd.AddCommand(newStatsMistakesCmd(app))
	cmd.AddCommand(newStatsMonthlyCmd(app))
	cmd.AddCommand(newStatsEquityCmd(app))

	rootCmd.AddCommand(cmd)
}

func newStatsSummaryCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Overall performance summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.open()
			if err != nil {
				return err
			}
			s, err := svc.Summary(app.withContext(cmd), app.UserID())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(s)
			}
			if s.TotalTrades == 0 {
				output.Info("No closed trades yet")
				return nil
			}

			output.Bold("Performance Summary")
			output.KeyValue("Closed trades", fmt.Sprintf("%d (%d wins, %d losses)", s.TotalTrades, s.TotalWins, s.TotalLosses))
			output.KeyValue("Win rate", FormatPercent(s.WinRate))
			output.KeyValue("Net P&L", output.FormatPnL(s.TotalProfitLoss))
			output.KeyValue("Expectancy", FormatMoney(s.Expectancy))
			output.KeyValue("Profit factor", fmt.Sprintf("%.2f", s.ProfitFactor))
			output.KeyValue("Avg win", FormatMoney(s.AvgWin))
			output.KeyValue("Avg loss", FormatMoney(s.AvgLoss))
			output.KeyValue("Largest win", FormatMoney(s.LargestWin))
			output.KeyValue("Largest loss", FormatMoney(s.LargestLoss))
			output.KeyValue("Max drawdown", FormatMoney(s.MaxDrawdown))
			output.KeyValue("Avg R multiple", fmt.Sprintf("%.2f", s.AvgRMultiple))
			output.KeyValue("Risk discipline", FormatPercent(s.RiskDiscipline))
			output.KeyValue("Current streak", formatStreak(output, s.CurrentStreak))
			return nil
		},
	}
}

func formatStreak(output *Output, s analytics.Streak) string {
	switch s.Type {
	case analytics.StreakWin:
		return output.Green(fmt.Sprintf("%d win(s)", s.Count))
	case analytics.StreakLoss:
		return output.Red(fmt.Sprintf("%d loss(es)", s.Count))
	}
	return "-"
}

func newStatsDailyCmd(app *App) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Daily P&L over the last N days",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.open()
			if err != nil {
				return err
			}
			stats, err := svc.Daily(app.withContext(cmd), app.UserID(), days)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				if stats == nil {
					stats = []analytics.DailyStats{}
				}
				return output.JSON(stats)
			}
			if len(stats) == 0 {
				output.Info("No closed trades in the last %d days", days)
				return nil
			}

			table := NewTable(output, "DATE", "TRADES", "WINS", "LOSSES", "P&L")
			for _, d := range stats {
				table.AddRow(d.Date, strconv.Itoa(d.Trades), strconv.Itoa(d.Wins), strconv.Itoa(d.Losses), output.FormatPnL(d.ProfitLoss))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 30, "number of days to include")
	return cmd
}

// newStatsGroupCmd builds the per-session or per-setup breakdown.
func newStatsGroupCmd(app *App, by string) *cobra.Command {
	return &cobra.Command{
		Use:   by,
		Short: fmt.Sprintf("Performance by %s", by),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.open()
			if err != nil {
				return err
			}

			ctx := app.withContext(cmd)
			var groups []analytics.GroupStats
			if by == "session" {
				groups, err = svc.BySession(ctx, app.UserID())
			} else {
				groups, err = svc.BySetup(ctx, app.UserID())
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				if groups == nil {
					groups = []analytics.GroupStats{}
				}
				return output.JSON(groups)
			}
			if len(groups) == 0 {
				output.Info("No closed trades yet")
				return nil
			}

			table := NewTable(output, strings.ToUpper(by), "TRADES", "WINS", "LOSSES", "WIN RATE", "P&L")
			for _, g := range groups {
				table.AddRow(g.Key(), strconv.Itoa(g.TotalTrades), strconv.Itoa(g.Wins), strconv.Itoa(g.Losses),
					FormatPercent(g.WinRate), output.FormatPnL(g.TotalPnL))
			}
			table.Render()
			return nil
		},
	}
}

func newStatsMistakesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "mistakes",
		Short: "How often each mistake tag was used",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.open()
			if err != nil {
				return err
			}
			freq, err := svc.Mistakes(app.withContext(cmd), app.UserID())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				if freq == nil {
					freq = []analytics.TagFrequency{}
				}
				return output.JSON(freq)
			}
			if len(freq) == 0 {
				output.Success("No mistakes tagged")
				return nil
			}

			table := NewTable(output, "MISTAKE", "COUNT")
			for _, f := range freq {
				table.AddRow(f.Name, strconv.Itoa(f.Count))
			}
			table.Render()
			return nil
		},
	}
}

// parseYearMonth reads "<year> <month>" or "YYYY-MM". No arguments means
// the current UTC month.
func parseYearMonth(args []string, now time.Time) (int, time.Month, error) {
	switch len(args) {
	case 0:
		now = now.UTC()
		return now.Year(), now.Month(), nil
	case 1:
		t, err := time.Parse("2006-01", args[0])
		if err != nil {
			return 0, 0, jerrors.NewValidationError("month", args[0], "must look like 2006-01")
		}
		return t.Year(), t.Month(), nil
	}

	year, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, 0, jerrors.NewValidationError("year", args[0], "must be a number")
	}
	month, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, 0, jerrors.NewValidationError("month", args[1], "must be a number")
	}
	return year, time.Month(month), nil
}

func newStatsMonthlyCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "monthly [<year> <month> | YYYY-MM]",
		Short: "Monthly performance report",
		Args:  cobra.RangeArgs(0, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			year, month, err := parseYearMonth(args, time.Now())
			if err != nil {
				return err
			}
			svc, err := app.open()
			if err != nil {
				return err
			}
			r, err := svc.Monthly(app.withContext(cmd), app.UserID(), year, month)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(r)
			}
			showMonthly(output, r)
			return nil
		},
	}
}

func showMonthly(output *Output, r analytics.MonthlyReport) {
	output.Bold("Monthly Report %s", r.Month)
	if r.IsEmpty() {
		output.Info(r.Message)
		return
	}
	output.KeyValue("Trades", fmt.Sprintf("%d over %d trading days", r.TotalTrades, r.TradingDays))
	output.KeyValue("Net P&L", output.FormatPnL(r.TotalPnL))
	output.KeyValue("Win rate", fmt.Sprintf("%s (%d wins, %d losses)", FormatPercent(r.WinRate), r.TotalWins, r.TotalLosses))
	output.KeyValue("Avg win", FormatMoney(r.AvgWin))
	output.KeyValue("Avg loss", FormatMoney(r.AvgLoss))
	output.KeyValue("Best trade", fmt.Sprintf("%s %s on %s", r.BestTrade.Pair, output.FormatPnL(r.BestTrade.PnL), r.BestTrade.Date))
	output.KeyValue("Worst trade", fmt.Sprintf("%s %s on %s", r.WorstTrade.Pair, output.FormatPnL(r.WorstTrade.PnL), r.WorstTrade.Date))
	output.KeyValue("Best setup", fmt.Sprintf("%s %s (%d trades)", r.BestSetup.Name, output.FormatPnL(r.BestSetup.PnL), r.BestSetup.Trades))
	output.KeyValue("Discipline", FormatPercent(r.DisciplineScore))
}

func newStatsEquityCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "equity",
		Short: "Equity curve with drawdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.open()
			if err != nil {
				return err
			}
			curve, err := svc.EquityCurve(app.withContext(cmd), app.UserID())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				if curve == nil {
					curve = []analytics.EquityPoint{}
				}
				return output.JSON(curve)
			}
			if len(curve) == 0 {
				output.Info("No closed trades yet")
				return nil
			}

			table := NewTable(output, "EXIT", "TRADE", "P&L", "BALANCE", "DRAWDOWN")
			for _, p := range curve {
				table.AddRow(FormatDateTime(p.Time), strconv.FormatInt(p.TradeID, 10), output.FormatPnL(p.PnL),
					FormatMoney(p.Balance), FormatMoney(p.Drawdown))
			}
			table.Render()
			return nil
		},
	}
}
