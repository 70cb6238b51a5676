package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newStatsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show site statistics",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "users",
		Short: "Show the registered-user count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n := a.auth.GetTotalUsers(cmd.Context())
			if a.json {
				return a.printJSON(map[string]int{"totalUsers": n})
			}
			fmt.Fprintf(a.out, "%s registered users\n", humanize.Comma(int64(n)))
			return nil
		},
	})
	return cmd
}

func newAccountsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Manage user accounts",
	}

	var email, name, password string
	create := &cobra.Command{
		Use:   "create",
		Short: "Register an email/password account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := a.auth.CreateAccount(cmd.Context(), email, password, name)
			if err != nil {
				return err
			}
			if a.json {
				return a.printJSON(res.Account)
			}
			fmt.Fprintf(a.out, "Created account %s for %s\n", res.Account.ID, res.Account.Email)
			return nil
		},
	}
	create.Flags().StringVar(&email, "email", "", "Email address")
	create.Flags().StringVar(&name, "name", "", "Display name")
	create.Flags().StringVar(&password, "password", "", "Password (at least 8 characters)")
	create.MarkFlagRequired("email")
	create.MarkFlagRequired("name")
	create.MarkFlagRequired("password")

	cmd.AddCommand(create)
	return cmd
}
