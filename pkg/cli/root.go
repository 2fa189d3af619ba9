// Package cli implements the queryrunner command-line interface.
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// rootOptions carries the resolved global settings shared by subcommands.
type rootOptions struct {
	endpoint     string
	token        string
	output       string
	profile      string
	pollInterval time.Duration
}

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "queryrunner",
		Short:         "Run queries against an asynchronous query service",
		Long:          "Submit a query, wait for it to complete, and stream paginated results.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Load config from profile if flags/env not set
			cfg, err := LoadUserConfig()
			if err != nil {
				// Config file is optional
				cfg = &UserConfig{
					CurrentProfile: "default",
					Profiles:       map[string]Profile{},
				}
			}
			p := cfg.ActiveProfile(opts.profile)

			// Apply precedence: flag > env > profile > default
			if !cmd.Flags().Changed("endpoint") {
				if v := os.Getenv("QUERYRUNNER_ENDPOINT"); v != "" {
					opts.endpoint = v
				} else if p.Endpoint != "" {
					opts.endpoint = p.Endpoint
				}
			}
			if !cmd.Flags().Changed("token") {
				if v := os.Getenv("QUERYRUNNER_TOKEN"); v != "" {
					opts.token = v
				} else if p.Token != "" {
					opts.token = p.Token
				}
			}
			if !cmd.Flags().Changed("output") {
				if v := os.Getenv("QUERYRUNNER_OUTPUT"); v != "" {
					opts.output = v
				} else if p.Output != "" {
					opts.output = p.Output
				}
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.endpoint, "endpoint", "http://localhost:9090", "Query agent endpoint URL")
	rootCmd.PersistentFlags().StringVar(&opts.token, "token", "", "Agent auth token")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format (table, csv, json)")
	rootCmd.PersistentFlags().StringVarP(&opts.profile, "profile", "p", "", "Config profile to use")
	rootCmd.PersistentFlags().DurationVar(&opts.pollInterval, "poll-interval", 500*time.Millisecond, "Wait between status polls")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "queryrunner %s (%s)\n", version, commit)
		},
	}
}
