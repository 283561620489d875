package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/TitouanDH/BLab/pkg/cli"
)

var connectCmd = &cobra.Command{
	Use:   "connect <port-id> <port-id>",
	Short: "Cross-connect two ports through the backbone",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		portA, err := parseID(args[0], "port")
		if err != nil {
			return err
		}
		portB, err := parseID(args[1], "port")
		if err != nil {
			return err
		}
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}

		link, err := eng.Connect(ctx, user, portA, portB)
		if err != nil {
			return err
		}
		fmt.Println(cli.Green(fmt.Sprintf("Ports %d and %d linked on svlan %d.", portA, portB, link.SVLAN)))
		return nil
	},
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <port-id> <port-id>",
	Short: "Tear down the link between two ports",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		portA, err := parseID(args[0], "port")
		if err != nil {
			return err
		}
		portB, err := parseID(args[1], "port")
		if err != nil {
			return err
		}
		user, err := currentUser(ctx)
		if err != nil {
			return err
		}

		if err := eng.Disconnect(ctx, user, portA, portB); err != nil {
			return err
		}
		fmt.Println(cli.Green(fmt.Sprintf("Ports %d and %d unlinked.", portA, portB)))
		return nil
	},
}

var listLinksCmd = &cobra.Command{
	Use:   "links",
	Short: "List provisioned links",
	RunE: func(cmd *cobra.Command, args []string) error {
		links, err := eng.Links(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(links)
		}

		table := cli.NewTable("SVLAN", "PORT A", "PORT B", "STATE", "OWNER", "CREATED")
		for _, link := range links {
			table.Row(
				fmt.Sprintf("%d", link.SVLAN),
				fmt.Sprintf("%d", link.PortA),
				fmt.Sprintf("%d", link.PortB),
				string(link.State),
				link.Owner,
				link.CreatedAt.Local().Format(time.RFC822),
			)
		}
		table.Flush()
		return nil
	},
}
