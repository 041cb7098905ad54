package cli

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"trade-journal/internal/screenshot"
)

// addScreenshotCommands adds chart screenshot commands.
func addScreenshotCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "screenshot",
		Aliases: []string{"shot"},
		Short:   "Attach chart screenshots to trades",
	}

	var kind string

	capture := &cobra.Command{
		Use:   "capture <trade-id> <url>",
		Short: "Capture a chart page with headless Chrome",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tradeID, err := parseID("trade_id", args[0])
			if err != nil {
				return err
			}
			k, err := screenshot.ParseKind(kind)
			if err != nil {
				return err
			}
			svc, err := app.open()
			if err != nil {
				return err
			}
			ctx := app.withContext(cmd)
			if _, err := svc.GetTrade(ctx, app.UserID(), tradeID); err != nil {
				return err
			}

			name, err := app.screenshots().CaptureURL(ctx, args[1], tradeID, k)
			if err != nil {
				return err
			}
			if err := svc.RecordScreenshot(ctx, app.UserID(), tradeID, k, name); err != nil {
				return err
			}
			return reportScreenshot(cmd, tradeID, name)
		},
	}
	capture.Flags().StringVar(&kind, "type", "before", "screenshot type: before or after")
	cmd.AddCommand(capture)

	attach := &cobra.Command{
		Use:   "attach <trade-id> <image>",
		Short: "Copy an image file onto a trade",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tradeID, err := parseID("trade_id", args[0])
			if err != nil {
				return err
			}
			k, err := screenshot.ParseKind(kind)
			if err != nil {
				return err
			}
			svc, err := app.open()
			if err != nil {
				return err
			}
			ctx := app.withContext(cmd)
			if _, err := svc.GetTrade(ctx, app.UserID(), tradeID); err != nil {
				return err
			}

			f, err := os.Open(args[1])
			if err != nil {
				return err
			}
			defer f.Close()

			name, err := app.screenshots().Save(f, tradeID, k, filepath.Ext(args[1]), app.Config.MaxUploadBytes())
			if err != nil {
				return err
			}
			if err := svc.RecordScreenshot(ctx, app.UserID(), tradeID, k, name); err != nil {
				return err
			}
			return reportScreenshot(cmd, tradeID, name)
		},
	}
	attach.Flags().StringVar(&kind, "type", "before", "screenshot type: before or after")
	cmd.AddCommand(attach)

	rootCmd.AddCommand(cmd)
}

func reportScreenshot(cmd *cobra.Command, tradeID int64, name string) error {
	output := NewOutput(cmd)
	if output.IsJSON() {
		return output.JSON(map[string]interface{}{"success": true, "trade_id": tradeID, "filename": name})
	}
	output.Success("Saved %s for trade #%d", name, tradeID)
	return nil
}
