package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// CheckCmd returns the check command
func CheckCmd(dir *string) *cobra.Command {
	var username, password, session string
	cmd := &cobra.Command{
		Use:   "check <phone>",
		Short: "Log in and ask the gateway whether one number is registered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*dir)
			if err != nil {
				return err
			}
			api := cfg.Project.API
			if username == "" {
				username = api.Username
			}
			if password == "" {
				password = api.Password
			}
			if session == "" {
				session = api.Session
			}
			guard, oracle := newGateway(cfg, nil)
			ctx := cmd.Context()
			if _, err := guard.Login(ctx, username, password, session); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			registered, err := oracle.IsRegistered(ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if registered {
				fmt.Fprintf(out, "%s %s\n", args[0], color.New(color.FgGreen).Sprint("Registered"))
			} else {
				fmt.Fprintf(out, "%s %s\n", args[0], color.New(color.FgRed).Sprint("Not registered"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "gateway username (default: api.username)")
	cmd.Flags().StringVar(&password, "password", "", "gateway password (default: api.password)")
	cmd.Flags().StringVar(&session, "session", "", "gateway session name (default: api.session)")
	return cmd
}
