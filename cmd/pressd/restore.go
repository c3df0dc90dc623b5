package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pressassist/pressd/pkg/core"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-file>",
	Short: "Replace the site document with a backup snapshot",
	Long: `Validates the backup and commits it through the same locked, atomic-replace
path as a normal save. The document version is advanced past the current
one, so readers keep their monotonic-version guarantee across a restore.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := service()
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading backup: %w", err)
		}
		if err := svc.Store.Restore(cmd.Context(), data); err != nil {
			return err
		}

		svc.Audit.Append(core.AuditEntry{
			Event:   "backup_restore",
			Actor:   "cli",
			Details: map[string]any{"filename": filepath.Base(args[0])},
		})
		fmt.Println("Document restored")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
}
