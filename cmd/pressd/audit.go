package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var auditCount int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent entries from the security audit ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := service()
		if err != nil {
			return err
		}

		entries, err := svc.Audit.Tail(auditCount)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Audit ledger is empty")
			return nil
		}

		for _, e := range entries {
			line := fmt.Sprintf("%s  %-20s  actor=%s", e.Timestamp.Format(time.RFC3339), e.Event, e.Actor)
			if e.Origin != "" {
				line += "  origin=" + e.Origin
			}
			for k, v := range e.Details {
				line += fmt.Sprintf("  %s=%v", k, v)
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().IntVarP(&auditCount, "lines", "n", 100, "Number of entries to show")
	rootCmd.AddCommand(auditCmd)
}
