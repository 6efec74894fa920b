package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	api       string
	tokenFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "bloodlink",
		Short:         "BloodLink CLI",
		Long:          "Operator tooling for BloodLink: database migrations, the admin account and hospital verification.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if !cmd.Flags().Changed("api") {
				if v := os.Getenv("BLOODLINK_API"); v != "" {
					opts.api = v
				}
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.api, "api", "http://localhost:8080", "API base URL")
	rootCmd.PersistentFlags().StringVar(&opts.tokenFile, "token-file", defaultTokenFile(), "where the session token is kept")

	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newCreateAdminCmd())
	rootCmd.AddCommand(newLoginCmd(opts))
	rootCmd.AddCommand(newLogoutCmd(opts))
	rootCmd.AddCommand(newHospitalsCmd(opts))
	rootCmd.AddCommand(newRequestsCmd(opts))

	return rootCmd
}

func defaultTokenFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bloodlink-token"
	}
	return filepath.Join(home, ".bloodlink", "token")
}
