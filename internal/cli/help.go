package cli

import (
	"github.com/spf13/cobra"
)

// addHelpCommands adds help and documentation commands.
func addHelpCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newExamplesCmd())
	rootCmd.AddCommand(newQuickstartCmd())
}

func newExamplesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "examples",
		Short: "Show common workflow examples",
		Long:  "Display examples of common journaling workflows.",
		// Static text: skip config loading.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Common Workflow Examples")
			output.Println()

			examples := []struct {
				title    string
				commands []string
			}{
				{
					title: "Record a Trade",
					commands: []string{
						`journal trade add --pair EURUSD --session London --setup "Break & Retest" \`,
						`  --type buy --entry 1.1000 --sl 1.0950 --tp 1.1100 --size 10000`,
						"journal screenshot capture 12 https://example.com/chart   # Before screenshot",
						"journal trade close 12 --exit 1.1080                       # Close at market",
						"journal trade tag 12 4                                     # Tag it FOMO",
					},
				},
				{
					title: "Review Performance",
					commands: []string{
						"journal stats summary              # Win rate, expectancy, drawdown",
						"journal stats daily --days 7       # Last week by day",
						"journal stats session              # Asian / London / New York",
						"journal stats mistakes             # Most frequent mistakes",
						"journal stats monthly 2024 3       # Monthly report",
					},
				},
				{
					title: "Export",
					commands: []string{
						"journal export csv -o trades.csv   # Every trade as CSV",
						"journal export xlsx 2024-03        # Monthly workbook",
						"journal export chart               # Equity curve HTML",
					},
				},
				{
					title: "Maintenance",
					commands: []string{
						"journal db backup                  # Compressed backup",
						"journal db backups                 # List backups",
						"journal db restore <file> --yes    # Roll back",
						"journal db migrate                 # Upgrade an old database",
					},
				},
			}

			for _, ex := range examples {
				output.Printf("%s\n", output.Cyan(ex.title))
				for _, c := range ex.commands {
					output.Printf("  %s\n", c)
				}
				output.Println()
			}
			return nil
		},
	}
}

func newQuickstartCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "quickstart",
		Short:             "New user guide",
		Long:              "Step-by-step guide for new users.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			output.Bold("Trading Journal - Quick Start Guide")
			output.Println()

			steps := []struct {
				title string
				desc  string
				cmd   string
			}{
				{"Review Configuration", "A commented config.toml is created on first run.", "journal config path"},
				{"Create Your Account", "The first account becomes user 1, the CLI default.", "journal user create --email you@example.com --password-stdin"},
				{"Try Sample Data", "Add demo trades to explore the reports.", "journal db sample-data --count 20"},
				{"Record a Real Trade", "Enter the plan before you click buy.", "journal trade add --help"},
				{"Read Your Stats", "See where you make and lose money.", "journal stats summary"},
				{"Clear the Demo Trades", "Start your real journal.", "journal db clean-sample-data --yes"},
			}

			for i, s := range steps {
				output.Printf("%s Step %d: %s\n", output.Cyan("->"), i+1, output.BoldText(s.title))
				output.Printf("  %s\n", s.desc)
				output.Printf("  %s\n\n", output.DimText(s.cmd))
			}

			output.Bold("Getting Help")
			output.Printf("  %s - Common workflows\n", output.Cyan("journal examples"))
			output.Printf("  %s - Help for any command\n", output.Cyan("journal help <command>"))
			return nil
		},
	}
}
