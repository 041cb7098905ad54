package cli

import (
	"bufio"
	"strings"

	"github.com/spf13/cobra"

	"trade-journal/internal/journal"
	"trade-journal/internal/security"
)

// addUserCommands adds account commands.
func addUserCommands(rootCmd *cobra.Command, app *App) {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage journal accounts",
	}

	var (
		in            journal.NewUser
		passwordStdin bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create an account",
		Example: `  echo "$PASSWORD" | journal user create --email me@example.com --password-stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if passwordStdin {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return err
				}
				in.Password = strings.TrimRight(line, "\r\n")
			}

			svc, err := app.open()
			if err != nil {
				return err
			}
			user, err := svc.RegisterUser(app.withContext(cmd), in)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(user)
			}
			output.Success("User #%d created for %s", user.ID, security.MaskEmail(user.Email))
			return nil
		},
	}
	create.Flags().StringVar(&in.Email, "email", "", "login email")
	create.Flags().StringVar(&in.Password, "password", "", "password, at least 8 characters")
	create.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	create.Flags().StringVar(&in.FullName, "name", "", "full name")
	cmd.AddCommand(create)

	rootCmd.AddCommand(cmd)
}
