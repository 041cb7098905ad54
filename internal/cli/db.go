package cli

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/spf13/cobra"

	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/security"
)

// addDBCommands adds database maintenance commands.
func addDBCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "db",
		Aliases: []string{"database"},
		Short:   "Database maintenance",
	}

	cmd.AddCommand(newDBMigrateCmd(app))
	cmd.AddCommand(newDBBackupCmd(app))
	cmd.AddCommand(newDBRestoreCmd(app))
	cmd.AddCommand(newDBBackupsCmd(app))
	cmd.AddCommand(newDBCleanupCmd(app))
	cmd.AddCommand(newDBSampleDataCmd(app))
	cmd.AddCommand(newDBCleanSampleCmd(app))

	rootCmd.AddCommand(cmd)
}

// requireYes refuses a destructive command unless --yes was given.
func requireYes(cmd *cobra.Command, what string) error {
	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		return jerrors.NewValidationError("yes", false, fmt.Sprintf("%s is destructive; pass --yes to confirm", what))
	}
	return nil
}

func newDBMigrateCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if _, err := app.open(); err != nil {
				return err
			}
			report, err := app.Store.Migrate(app.withContext(cmd))
			if report == nil {
				return err
			}

			if output.IsJSON() {
				if jerr := output.JSON(report); jerr != nil {
					return jerr
				}
				return err
			}
			for _, v := range report.Applied {
				output.Success("applied  %s", v)
			}
			for _, v := range report.Skipped {
				output.Dim("skipped  %s", v)
			}
			for _, v := range report.Failed {
				output.Error("failed   %s", v)
			}
			if err == nil && len(report.Applied) == 0 {
				output.Info("Schema is up to date")
			}
			return err
		},
	}
}

func newDBBackupCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a compressed backup of the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if _, err := app.open(); err != nil {
				return err
			}
			mgr := app.backups()
			info, err := mgr.Create(app.withContext(cmd))
			if err != nil {
				return err
			}
			removed, err := mgr.Cleanup(app.Config.Backup.Keep)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"backup": info, "removed": removed})
			}
			output.Success("Backup written: %s (%.2f KB)", info.Path, info.SizeKB)
			if len(removed) > 0 {
				output.Dim("Removed %d old backup(s)", len(removed))
			}
			return nil
		},
	}
}

func newDBRestoreCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore <backup>",
		Short: "Replace the database with a backup",
		Long: `Replace the database with a backup. The backup may be a file name from
'journal db backups' or a path. The current database is kept next to it
with a .before_restore suffix.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := requireYes(cmd, "restore"); err != nil {
				return err
			}
			// The store is never opened here: the file is replaced underneath it.
			access := security.NewAccessController(app.Config.Journal.ReadOnly, nil)
			if err := access.CheckPermission(app.withContext(cmd), security.OpRestoreBackup); err != nil {
				return err
			}

			if err := app.backups().Restore(args[0]); err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]interface{}{"success": true, "restored": args[0]})
			}
			output.Success("Database restored from %s", args[0])
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "confirm replacing the database")
	return cmd
}

func newDBBackupsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "backups",
		Short: "List backups, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			list, err := app.backups().List()
			if err != nil {
				return err
			}
			if output.IsJSON() {
				if list == nil {
					return output.JSON([]struct{}{})
				}
				return output.JSON(list)
			}
			if len(list) == 0 {
				output.Info("No backups in %s", app.Config.Backup.Dir)
				return nil
			}

			table := NewTable(output, "FILE", "CREATED", "SIZE")
			for _, b := range list {
				table.AddRow(b.Name, b.Created.Format("2006-01-02 15:04:05"), fmt.Sprintf("%.2f KB", b.SizeKB))
			}
			table.Render()
			return nil
		},
	}
}

func newDBCleanupCmd(app *App) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "cleanup-backups",
		Short: "Delete all but the newest backups",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if !cmd.Flags().Changed("keep") {
				keep = app.Config.Backup.Keep
			}
			removed, err := app.backups().Cleanup(keep)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				if removed == nil {
					removed = []string{}
				}
				return output.JSON(map[string]interface{}{"removed": removed, "kept": keep})
			}
			if len(removed) == 0 {
				output.Info("Nothing to remove")
				return nil
			}
			output.Success("Removed %d backup(s): %s", len(removed), strings.Join(removed, ", "))
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 0, "backups to keep (default: backup.keep)")
	return cmd
}

func newDBSampleDataCmd(app *App) *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "sample-data",
		Short: "Add random closed demo trades",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.open()
			if err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))
			n, err := svc.AddSampleTrades(app.withContext(cmd), app.UserID(), count, rng)
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int{"added": n})
			}
			output.Success("Added %d sample trades", n)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 10, "number of trades to add")
	return cmd
}

func newDBCleanSampleCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clean-sample-data",
		Short: "Delete every trade of the user",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := requireYes(cmd, "clean-sample-data"); err != nil {
				return err
			}
			svc, err := app.open()
			if err != nil {
				return err
			}
			n, err := svc.CleanSampleData(app.withContext(cmd), app.UserID())
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(map[string]int64{"deleted": n})
			}
			output.Success("Deleted %d trade(s)", n)
			return nil
		},
	}
	cmd.Flags().Bool("yes", false, "confirm deleting every trade")
	return cmd
}
