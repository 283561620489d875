package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/TitouanDH/BLab/pkg/cli"
	"github.com/TitouanDH/BLab/pkg/model"
)

var switchCmd = &cobra.Command{
	Use:   "switch",
	Short: "Manage the switch catalog",
}

var (
	addSwitchMgmtIP  string
	addSwitchModel   string
	addSwitchConsole string
	addSwitchPart    string
	addSwitchHWRev   string
	addSwitchSerial  string
)

var switchListCmd = &cobra.Command{
	Use:   "list",
	Short: "List lab switches and who reserves them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		switches, err := eng.Switches(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(switches)
		}

		table := cli.NewTable("ID", "MGMT IP", "MODEL", "CONSOLE", "RESERVED BY")
		for _, sw := range switches {
			table.Row(
				fmt.Sprintf("%d", sw.ID),
				sw.MgmtIP,
				sw.Model,
				sw.Console,
				reservedBy(ctx, sw.ID),
			)
		}
		table.Flush()
		return nil
	},
}

var switchAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a switch in the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		sw := &model.Switch{
			MgmtIP:           addSwitchMgmtIP,
			Model:            addSwitchModel,
			Console:          addSwitchConsole,
			PartNumber:       addSwitchPart,
			HardwareRevision: addSwitchHWRev,
			SerialNumber:     addSwitchSerial,
		}
		if err := eng.AddSwitch(cmd.Context(), sw); err != nil {
			return err
		}
		fmt.Printf("Switch %d added.\n", sw.ID)
		return nil
	},
}

var switchDeleteCmd = &cobra.Command{
	Use:   "delete <switch-id>",
	Short: "Remove a switch and its ports from the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "switch")
		if err != nil {
			return err
		}
		if err := eng.DeleteSwitch(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Printf("Switch %d deleted.\n", id)
		return nil
	},
}

var switchCleanupCmd = &cobra.Command{
	Use:   "cleanup <switch-id>",
	Short: "Restore a free switch to a clean boot state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "switch")
		if err != nil {
			return err
		}
		if err := eng.CleanupByID(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Println(cli.Green("Cleanup reload initiated."))
		return nil
	},
}

func init() {
	switchAddCmd.Flags().StringVar(&addSwitchMgmtIP, "mgmt-ip", "", "Management IP address")
	switchAddCmd.Flags().StringVar(&addSwitchModel, "model", "", "Hardware model")
	switchAddCmd.Flags().StringVar(&addSwitchConsole, "console", "", "Console server address")
	switchAddCmd.Flags().StringVar(&addSwitchPart, "part-number", "", "Part number")
	switchAddCmd.Flags().StringVar(&addSwitchHWRev, "hardware-revision", "", "Hardware revision")
	switchAddCmd.Flags().StringVar(&addSwitchSerial, "serial-number", "", "Serial number")
	switchAddCmd.MarkFlagRequired("mgmt-ip")
	switchAddCmd.MarkFlagRequired("model")

	switchCmd.AddCommand(switchListCmd, switchAddCmd, switchDeleteCmd, switchCleanupCmd)
}

// reservedBy names the user reserving a switch, or "-" when free.
func reservedBy(ctx context.Context, switchID int64) string {
	owner, err := eng.ReservationOwner(ctx, switchID)
	if err != nil || owner == "" {
		return "-"
	}
	return owner
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
