package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TitouanDH/BLab/pkg/audit"
	"github.com/TitouanDH/BLab/pkg/cli"
)

var (
	auditUser      string
	auditSwitch    string
	auditOperation string
	auditSVLAN     int
	auditSince     time.Duration
	auditFailures  bool
	auditLimit     int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			User:        auditUser,
			Switch:      auditSwitch,
			Operation:   auditOperation,
			SVLAN:       auditSVLAN,
			FailureOnly: auditFailures,
			Limit:       auditLimit,
		}
		if auditSince > 0 {
			filter.StartTime = time.Now().Add(-auditSince)
		}

		events, err := audit.Query(filter)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(events)
		}

		table := cli.NewTable("TIME", "USER", "OPERATION", "SWITCH", "SVLAN", "RESULT", "DETAIL")
		for _, event := range events {
			table.Row(
				event.Timestamp.Local().Format(time.RFC822),
				event.User,
				event.Operation,
				orDash(event.Switch),
				svlanColumn(event.SVLAN),
				resultColumn(event),
				orDash(firstNonEmpty(event.Error, event.Warning)),
			)
		}
		table.Flush()
		return nil
	},
}

func init() {
	flags := auditCmd.Flags()
	flags.StringVar(&auditUser, "user-filter", "", "Only events by this user")
	flags.StringVar(&auditSwitch, "switch", "", "Only events touching this switch")
	flags.StringVar(&auditOperation, "operation", "", "Only this operation (reserve, connect, ...)")
	flags.IntVar(&auditSVLAN, "svlan", 0, "Only events on this svlan")
	flags.DurationVar(&auditSince, "since", 0, "Only events newer than this (e.g. 24h)")
	flags.BoolVar(&auditFailures, "failures", false, "Only failed operations")
	flags.IntVar(&auditLimit, "limit", 50, "Maximum events to show (0 for all)")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func svlanColumn(svlan int) string {
	if svlan == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", svlan)
}

func resultColumn(event *audit.Event) string {
	if !event.Success {
		return cli.Red("failed")
	}
	if event.Warning != "" {
		return cli.Yellow("warning")
	}
	return cli.Green("ok")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
