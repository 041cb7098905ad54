package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/journal"
	"trade-journal/internal/models"
)

// addTradeCommands adds trade entry and management commands.
func addTradeCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "trade",
		Aliases: []string{"trades"},
		Short:   "Record and manage trades",
	}

	cmd.AddCommand(newTradeAddCmd(app))
	cmd.AddCommand(newTradeCloseCmd(app))
	cmd.AddCommand(newTradeListCmd(app))
	cmd.AddCommand(newTradeShowCmd(app))
	cmd.AddCommand(newTradeDeleteCmd(app))
	cmd.AddCommand(newTradeTagCmd(app, true))
	cmd.AddCommand(newTradeTagCmd(app, false))

	rootCmd.AddCommand(cmd)
}

// parseID parses a positional trade or tag ID.
func parseID(name, value string) (int64, error) {
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, jerrors.NewValidationError(name, value, "must be a positive number")
	}
	return id, nil
}

// parseSession accepts session names case-insensitively, with "newyork" and
// "ny" for New York.
func parseSession(value string) models.Session {
	switch strings.ToLower(strings.ReplaceAll(value, " ", "")) {
	case "asian", "asia":
		return models.SessionAsian
	case "london":
		return models.SessionLondon
	case "newyork", "ny":
		return models.SessionNewYork
	}
	return models.Session(value)
}

// parseDirection accepts buy/sell in any case.
func parseDirection(value string) models.Direction {
	switch strings.ToLower(value) {
	case "buy", "long":
		return models.DirectionBuy
	case "sell", "short":
		return models.DirectionSell
	}
	return models.Direction(value)
}

func newTradeAddCmd(app *App) *cobra.Command {
	var (
		in        journal.NewTrade
		session   string
		direction string
		entryTime string
		confident int
		followed  bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new open trade",
		Example: `  journal trade add --pair EURUSD --session London --timeframe H1 \
    --setup "Break & Retest" --type buy --entry 1.1000 --sl 1.0950 --tp 1.1100 --size 10000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.open()
			if err != nil {
				return err
			}

			in.Pair = strings.ToUpper(in.Pair)
			in.Session = parseSession(session)
			in.Direction = parseDirection(direction)
			if cmd.Flags().Changed("confidence") {
				in.Confidence = models.Int(confident)
			}
			if cmd.Flags().Changed("rule-followed") {
				in.RuleFollowed = models.Bool(followed)
			}
			if entryTime != "" {
				t, err := ParseTime(entryTime)
				if err != nil {
					return err
				}
				in.EntryTime = &t
			}

			trade, err := svc.CreateTrade(app.withContext(cmd), app.UserID(), in)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(trade)
			}
			output.Success("Trade #%d recorded: %s %s @ %s", trade.ID, trade.Direction, trade.Pair, FormatPrice(trade.Pair, trade.EntryPrice))
			output.KeyValue("Risk", FormatMoney(trade.RiskAmount))
			output.KeyValue("Reward", FormatMoney(trade.RewardAmount))
			output.KeyValue("Risk/Reward", FormatRiskReward(trade.RiskReward))
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Pair, "pair", "", "currency pair, e.g. EURUSD")
	f.StringVar(&session, "session", "", "trading session: Asian, London or New York")
	f.StringVar(&in.Timeframe, "timeframe", "H1", "chart timeframe")
	f.StringVar(&in.SetupType, "setup", "", "setup type, e.g. \"Break & Retest\"")
	f.StringVar(&direction, "type", "", "trade direction: buy or sell")
	f.Float64Var(&in.EntryPrice, "entry", 0, "entry price")
	f.Float64Var(&in.StopLoss, "sl", 0, "stop loss price")
	f.Float64Var(&in.TakeProfit, "tp", 0, "take profit price")
	f.Float64Var(&in.PositionSize, "size", 0, "position size in units")
	f.IntVar(&confident, "confidence", 0, "confidence level 1-10")
	f.StringVar(&in.EmotionBefore, "emotion", "", "emotion before entering")
	f.BoolVar(&followed, "rule-followed", true, "whether the trading plan was followed")
	f.StringVar(&entryTime, "at", "", "entry time in UTC (default: now)")
	f.StringVar(&in.Notes, "notes", "", "free-form notes")
	f.Int64SliceVar(&in.TagIDs, "tag", nil, "mistake tag IDs to attach")

	return cmd
}

func newTradeCloseCmd(app *App) *cobra.Command {
	var (
		exitPrice float64
		exitTime  string
	)

	cmd := &cobra.Command{
		Use:   "close <trade-id>",
		Short: "Close an open trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := parseID("trade_id", args[0])
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("exit") {
				return jerrors.NewValidationError("exit_price", nil, "is required")
			}

			var at time.Time
			if exitTime != "" {
				if at, err = ParseTime(exitTime); err != nil {
					return err
				}
			}

			svc, err := app.open()
			if err != nil {
				return err
			}
			pnl, err := svc.CloseTrade(app.withContext(cmd), app.UserID(), id, exitPrice, at)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"trade_id": id, "profit_loss": pnl})
			}
			output.Success("Trade #%d closed", id)
			output.KeyValue("P&L", output.FormatPnL(pnl))
			return nil
		},
	}

	cmd.Flags().Float64Var(&exitPrice, "exit", 0, "exit price")
	cmd.Flags().StringVar(&exitTime, "at", "", "exit time in UTC (default: now)")
	return cmd
}

func newTradeListCmd(app *App) *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List trades, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			st := models.TradeStatus(strings.ToLower(status))
			if st != "" && st != models.StatusOpen && st != models.StatusClosed {
				return jerrors.NewValidationError("status", status, "must be open or closed")
			}

			svc, err := app.open()
			if err != nil {
				return err
			}
			trades, err := svc.ListTrades(app.withContext(cmd), app.UserID(), st, limit)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				if trades == nil {
					trades = []models.Trade{}
				}
				return output.JSON(trades)
			}
			if len(trades) == 0 {
				output.Info("No trades recorded")
				return nil
			}

			table := NewTable(output, "ID", "ENTRY", "PAIR", "TYPE", "SESSION", "SETUP", "ENTRY PRICE", "EXIT PRICE", "P&L", "STATUS")
			for _, t := range trades {
				exit, pnl := "-", "-"
				if t.ExitPrice != nil {
					exit = FormatPrice(t.Pair, *t.ExitPrice)
				}
				if t.ProfitLoss != nil {
					pnl = output.FormatPnL(*t.ProfitLoss)
				}
				table.AddRow(
					strconv.FormatInt(t.ID, 10),
					FormatDateTime(t.EntryTime),
					t.Pair,
					string(t.Direction),
					string(t.Session),
					TruncateString(t.SetupType, 20),
					FormatPrice(t.Pair, t.EntryPrice),
					exit,
					pnl,
					output.FormatStatus(string(t.Status)),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status: open or closed")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of trades (0 for all)")
	return cmd
}

func newTradeShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <trade-id>",
		Short: "Show one trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := parseID("trade_id", args[0])
			if err != nil {
				return err
			}
			svc, err := app.open()
			if err != nil {
				return err
			}
			t, err := svc.GetTrade(app.withContext(cmd), app.UserID(), id)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(t)
			}
			showTrade(output, t)
			return nil
		},
	}
}

func showTrade(output *Output, t *models.Trade) {
	output.Bold("Trade #%d  %s %s  [%s]", t.ID, t.Direction, t.Pair, t.Status)
	output.KeyValue("Session", t.Session)
	output.KeyValue("Timeframe", t.Timeframe)
	output.KeyValue("Setup", t.SetupType)
	output.KeyValue("Entry", fmt.Sprintf("%s at %s", FormatPrice(t.Pair, t.EntryPrice), FormatDateTime(t.EntryTime)))
	output.KeyValue("Stop loss", FormatPrice(t.Pair, t.StopLoss))
	output.KeyValue("Take profit", FormatPrice(t.Pair, t.TakeProfit))
	output.KeyValue("Size", t.PositionSize)
	output.KeyValue("Risk/Reward", fmt.Sprintf("%s (risk %s, reward %s)", FormatRiskReward(t.RiskReward), FormatMoney(t.RiskAmount), FormatMoney(t.RewardAmount)))
	if t.ExitPrice != nil {
		output.KeyValue("Exit", fmt.Sprintf("%s at %s", FormatPrice(t.Pair, *t.ExitPrice), FormatOptionalTime(t.ExitTime)))
	}
	if t.ProfitLoss != nil {
		output.KeyValue("P&L", output.FormatPnL(*t.ProfitLoss))
	}
	if t.ExitTime != nil {
		output.KeyValue("Held", FormatDuration(t.ExitTime.Sub(t.EntryTime)))
	}
	if t.Confidence != nil {
		output.KeyValue("Confidence", fmt.Sprintf("%d/10", *t.Confidence))
	}
	if t.EmotionBefore != "" {
		output.KeyValue("Emotion", t.EmotionBefore)
	}
	output.KeyValue("Rules followed", t.FollowedRules())
	if len(t.Tags) > 0 {
		names := make([]string, len(t.Tags))
		for i, tag := range t.Tags {
			names[i] = tag.Name
		}
		output.KeyValue("Mistakes", output.Red(strings.Join(names, ", ")))
	}
	if t.ScreenshotBefore != "" {
		output.KeyValue("Before", t.ScreenshotBefore)
	}
	if t.ScreenshotAfter != "" {
		output.KeyValue("After", t.ScreenshotAfter)
	}
	if t.Notes != "" {
		output.Println()
		output.Println(t.Notes)
	}
}

func newTradeDeleteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <trade-id>",
		Short: "Delete a trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			id, err := parseID("trade_id", args[0])
			if err != nil {
				return err
			}
			svc, err := app.open()
			if err != nil {
				return err
			}
			if err := svc.DeleteTrade(app.withContext(cmd), app.UserID(), id); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"success": true, "trade_id": id})
			}
			output.Success("Trade #%d deleted", id)
			return nil
		},
	}
}

// newTradeTagCmd builds "trade tag" when attach is true and "trade untag"
// otherwise.
func newTradeTagCmd(app *App, attach bool) *cobra.Command {
	use, short := "tag <trade-id> <tag-id>", "Attach a mistake tag to a trade"
	if !attach {
		use, short = "untag <trade-id> <tag-id>", "Remove a mistake tag from a trade"
	}

	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			tradeID, err := parseID("trade_id", args[0])
			if err != nil {
				return err
			}
			tagID, err := parseID("tag_id", args[1])
			if err != nil {
				return err
			}
			svc, err := app.open()
			if err != nil {
				return err
			}

			ctx := app.withContext(cmd)
			if attach {
				err = svc.AttachTag(ctx, app.UserID(), tradeID, tagID)
			} else {
				err = svc.DetachTag(ctx, app.UserID(), tradeID, tagID)
			}
			if err != nil {
				return err
			}

			tags, err := svc.TradeTags(ctx, app.UserID(), tradeID)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				if tags == nil {
					tags = []models.Tag{}
				}
				return output.JSON(tags)
			}
			if attach {
				output.Success("Tag %d attached to trade #%d", tagID, tradeID)
			} else {
				output.Success("Tag %d removed from trade #%d", tagID, tradeID)
			}
			for _, tag := range tags {
				output.Printf("  %-4d %s\n", tag.ID, tag.Name)
			}
			return nil
		},
	}
}
