package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/pressassist/pressd/pkg/core"
)

var backupDir string

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write a snapshot of the site document to a backup file",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := service()
		if err != nil {
			return err
		}

		snapshot, err := svc.Store.Snapshot()
		if err != nil {
			return err
		}

		if err := os.MkdirAll(backupDir, 0o755); err != nil {
			return fmt.Errorf("creating backup directory: %w", err)
		}
		name := fmt.Sprintf("db_backup_%s.json", time.Now().UTC().Format("20060102_150405"))
		path := filepath.Join(backupDir, name)
		if err := os.WriteFile(path, snapshot, 0o600); err != nil {
			return fmt.Errorf("writing backup: %w", err)
		}

		svc.Audit.Append(core.AuditEntry{
			Event:   "backup_create",
			Actor:   "cli",
			Details: map[string]any{"filename": name},
		})
		fmt.Printf("Backup written to %s\n", path)
		return nil
	},
}

func init() {
	backupCmd.Flags().StringVarP(&backupDir, "out", "o", "backups", "Backup output directory")
	rootCmd.AddCommand(backupCmd)
}
