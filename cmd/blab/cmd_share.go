package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TitouanDH/BLab/pkg/cli"
)

var shareCmd = &cobra.Command{
	Use:   "share <username>",
	Short: "Let another user act on your reserved switches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}
		if err := eng.Share(ctx, user, args[0]); err != nil {
			return err
		}
		fmt.Println(cli.Green(fmt.Sprintf("Topology shared with %s.", args[0])))
		return nil
	},
}

var unshareCmd = &cobra.Command{
	Use:   "unshare <username>",
	Short: "Revoke a topology share",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}
		if err := eng.Unshare(ctx, user, args[0]); err != nil {
			return err
		}
		fmt.Println(cli.Green(fmt.Sprintf("Topology share with %s revoked.", args[0])))
		return nil
	},
}

var sharesCmd = &cobra.Command{
	Use:   "shares",
	Short: "List topology shares involving you",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}

		given, err := eng.SharesByOwner(ctx, user)
		if err != nil {
			return err
		}
		received, err := eng.SharesToUser(ctx, user)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]interface{}{"given": given, "received": received})
		}

		table := cli.NewTable("DIRECTION", "USER")
		for _, share := range given {
			table.Row("shared with", usernameByID(ctx, share.TargetID))
		}
		for _, share := range received {
			table.Row("shared by", usernameByID(ctx, share.OwnerID))
		}
		table.Flush()
		return nil
	},
}
