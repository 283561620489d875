package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TitouanDH/BLab/pkg/cli"
	"github.com/TitouanDH/BLab/pkg/model"
)

var portCmd = &cobra.Command{
	Use:   "port",
	Short: "Manage the port catalog",
}

var (
	portListSwitch  int64
	addPortSwitch   int64
	addPortSwitchIf string
	addPortBackbone string
	addPortBBIf     string
)

var portListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ports and their backbone wiring",
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := eng.Ports(cmd.Context(), portListSwitch)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(ports)
		}

		table := cli.NewTable("ID", "SWITCH", "PORT", "BACKBONE", "BACKBONE PORT", "SVLAN", "STATUS")
		for _, port := range ports {
			svlan := "-"
			if port.SVLAN != nil {
				svlan = fmt.Sprintf("%d", *port.SVLAN)
			}
			status := string(port.Status)
			if port.Status == model.PortUp {
				status = cli.Green(status)
			} else {
				status = cli.Dim(status)
			}
			table.Row(
				fmt.Sprintf("%d", port.ID),
				fmt.Sprintf("%d", port.SwitchID),
				port.PortSwitch,
				port.Backbone,
				port.PortBackbone,
				svlan,
				status,
			)
		}
		table.Flush()
		return nil
	},
}

var portAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a port and its backbone wiring",
	RunE: func(cmd *cobra.Command, args []string) error {
		port := &model.Port{
			SwitchID:     addPortSwitch,
			PortSwitch:   addPortSwitchIf,
			Backbone:     addPortBackbone,
			PortBackbone: addPortBBIf,
		}
		if err := eng.AddPort(cmd.Context(), port); err != nil {
			return err
		}
		fmt.Printf("Port %d added.\n", port.ID)
		return nil
	},
}

var portDeleteCmd = &cobra.Command{
	Use:   "delete <port-id>",
	Short: "Remove a port from the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "port")
		if err != nil {
			return err
		}
		if err := eng.DeletePort(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Port %d deleted.\n", id)
		return nil
	},
}

func init() {
	portListCmd.Flags().Int64Var(&portListSwitch, "switch", 0, "Only ports of this switch")

	portAddCmd.Flags().Int64Var(&addPortSwitch, "switch", 0, "Switch the port belongs to")
	portAddCmd.Flags().StringVar(&addPortSwitchIf, "port", "", "Interface on the lab switch (e.g. 1/1/1)")
	portAddCmd.Flags().StringVar(&addPortBackbone, "backbone", "", "Backbone switch management IP")
	portAddCmd.Flags().StringVar(&addPortBBIf, "backbone-port", "", "Interface on the backbone switch")
	portAddCmd.MarkFlagRequired("switch")
	portAddCmd.MarkFlagRequired("port")
	portAddCmd.MarkFlagRequired("backbone")
	portAddCmd.MarkFlagRequired("backbone-port")

	portCmd.AddCommand(portListCmd, portAddCmd, portDeleteCmd)
}
