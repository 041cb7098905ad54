package cli

import (
	"strconv"

	"github.com/spf13/cobra"

	"trade-journal/internal/journal"
	"trade-journal/internal/models"
)

// addTagCommands adds mistake tag commands.
func addTagCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:     "tag",
		Aliases: []string{"tags"},
		Short:   "Manage mistake tags",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List mistake tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.open()
			if err != nil {
				return err
			}
			tags, err := svc.ListTags(app.withContext(cmd))
			if err != nil {
				return err
			}
			if output.IsJSON() {
				if tags == nil {
					tags = []models.Tag{}
				}
				return output.JSON(tags)
			}

			table := NewTable(output, "ID", "NAME", "COLOR")
			for _, t := range tags {
				table.AddRow(strconv.FormatInt(t.ID, 10), t.Name, t.Color)
			}
			table.Render()
			return nil
		},
	})

	var color string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a mistake tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			svc, err := app.open()
			if err != nil {
				return err
			}
			tag, err := svc.CreateTag(app.withContext(cmd), app.UserID(), journal.NewTag{Name: args[0], Color: color})
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(tag)
			}
			output.Success("Tag #%d %q created", tag.ID, tag.Name)
			return nil
		},
	}
	add.Flags().StringVar(&color, "color", "", "tag color as #rrggbb (default: journal.default_tag_color)")
	cmd.AddCommand(add)

	rootCmd.AddCommand(cmd)
}
