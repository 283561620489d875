package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TitouanDH/BLab/pkg/cli"
)

var (
	reserveUntil   time.Duration
	releaseCleanup bool
)

var reserveCmd = &cobra.Command{
	Use:   "reserve <switch-id>",
	Short: "Reserve a switch for exclusive use",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseID(args[0], "switch")
		if err != nil {
			return err
		}
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}

		var endDate *time.Time
		if reserveUntil > 0 {
			t := time.Now().Add(reserveUntil)
			endDate = &t
		}

		warning, err := eng.Reserve(ctx, user, id, endDate)
		if err != nil {
			return err
		}
		fmt.Println(cli.Green("Reservation successful."))
		if warning != "" {
			fmt.Println(cli.Yellow(warning))
		}
		return nil
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release <switch-id>",
	Short: "Release a reserved switch, tearing down its links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id, err := parseID(args[0], "switch")
		if err != nil {
			return err
		}
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}

		warning, err := eng.Release(ctx, user, id, releaseCleanup)
		if err != nil {
			return err
		}
		fmt.Println(cli.Green("Release successful."))
		if warning != "" {
			fmt.Println(cli.Yellow(warning))
		}
		return nil
	},
}

var reservationsCmd = &cobra.Command{
	Use:   "reservations",
	Short: "List your reservations",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}
		reservations, err := eng.Reservations(ctx, user)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(reservations)
		}

		table := cli.NewTable("SWITCH", "SINCE", "UNTIL")
		for _, res := range reservations {
			until := "open ended"
			if res.EndDate != nil {
				until = res.EndDate.Local().Format(time.RFC822)
			}
			table.Row(
				fmt.Sprintf("%d", res.SwitchID),
				res.CreationDate.Local().Format(time.RFC822),
				until,
			)
		}
		table.Flush()
		return nil
	},
}

func init() {
	reserveCmd.Flags().DurationVar(&reserveUntil, "until", 0, "Auto-release after this duration (e.g. 48h)")
	releaseCmd.Flags().BoolVar(&releaseCleanup, "cleanup", false, "Restore the switch to a clean boot state")
}
