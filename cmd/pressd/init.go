package main

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"github.com/pressassist/pressd"
	"github.com/pressassist/pressd/pkg/auth"
	"github.com/pressassist/pressd/pkg/core"
)

var initPassword string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new site document with default content",
	Long: `Seeds the data directory with a fresh document: default pages, blocks and
navigation, a generated secret login slug and the admin credentials.
Refuses to overwrite an existing document.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := pressd.LoadConfig(configFile)
		if err != nil {
			return err
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
		svc, err := pressd.NewFromConfig(cfg)
		if err != nil {
			return err
		}

		password := initPassword
		generated := false
		if password == "" {
			password, err = generatePassword(16)
			if err != nil {
				return err
			}
			generated = true
		}

		hash, err := auth.HashPassword(password, cfg.BcryptCost)
		if err != nil {
			return err
		}
		slug, err := auth.GenerateLoginSlug()
		if err != nil {
			return err
		}

		if _, err := svc.Store.Initialize(slug, hash); err != nil {
			return err
		}
		svc.Audit.Append(core.AuditEntry{
			Event: "site_init",
			Actor: "cli",
		})

		fmt.Printf("Site initialized in %s\n", cfg.DataDir)
		fmt.Printf("Login URL slug: /%s\n", slug)
		if generated {
			fmt.Printf("Admin password: %s\n", password)
		}
		return nil
	},
}

func init() {
	initCmd.Flags().StringVarP(&initPassword, "password", "p", "", "Admin password (generated if omitted)")
	rootCmd.AddCommand(initCmd)
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789-_"

func generatePassword(length int) (string, error) {
	out := make([]byte, length)
	max := big.NewInt(int64(len(passwordAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = passwordAlphabet[n.Int64()]
	}
	return string(out), nil
}
