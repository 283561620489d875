package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TitouanDH/BLab/pkg/cli"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known users",
	RunE: func(cmd *cobra.Command, args []string) error {
		users, err := eng.Users(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(users)
		}

		table := cli.NewTable("ID", "USERNAME")
		for _, user := range users {
			table.Row(fmt.Sprintf("%d", user.ID), user.Username)
		}
		table.Flush()
		return nil
	},
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := eng.User(cmd.Context(), args[0], true)
		if err != nil {
			return err
		}
		fmt.Printf("User %s has ID %d.\n", user.Username, user.ID)
		return nil
	},
}

func init() {
	userCmd.AddCommand(userListCmd, userAddCmd)
}

// usernameByID resolves a user ID for display, falling back to the
// numeric ID when the record is gone.
func usernameByID(ctx context.Context, id int64) string {
	user, err := eng.UserByID(ctx, id)
	if err != nil {
		return fmt.Sprintf("user %d", id)
	}
	return user.Username
}
