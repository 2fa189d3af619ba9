package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"queryrunner/internal/domain"
	"queryrunner/internal/runner"
	"queryrunner/internal/transport"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	var (
		sqlFlag        string
		service        string
		region         string
		workGroup      string
		database       string
		outputLocation string
	)

	cmd := &cobra.Command{
		Use:   "run [sql]",
		Short: "Submit a query and stream its results",
		Long: "Submits the query, polls until execution completes, then fetches " +
			"every results page and prints the records.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sqlText, err := resolveSQL(args, sqlFlag)
			if err != nil {
				return err
			}

			var svc transport.ExecutionService
			switch service {
			case "http":
				svc = transport.NewHTTPService(opts.endpoint, opts.token)
			case "athena":
				svc, err = transport.NewAthenaService(cmd.Context(), transport.AthenaConfig{
					Region:         region,
					WorkGroup:      workGroup,
					Database:       database,
					OutputLocation: outputLocation,
				})
				if err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown service %q (want http or athena)", service)
			}

			var records []domain.Record
			r := runner.New(svc, runner.WithPollInterval(opts.pollInterval))
			err = r.Run(cmd.Context(), sqlText, func(_ context.Context, batch []domain.Record) error {
				records = append(records, batch...)
				return nil
			})
			if err != nil {
				return err
			}

			if err := printRecords(cmd.OutOrStdout(), opts.output, records); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "(%d rows)\n", len(records))
			return nil
		},
	}

	cmd.Flags().StringVar(&sqlFlag, "sql", "", "SQL text (alternative to the positional argument)")
	cmd.Flags().StringVar(&service, "service", "http", "Execution service backend (http, athena)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region (athena)")
	cmd.Flags().StringVar(&workGroup, "workgroup", "", "Athena workgroup")
	cmd.Flags().StringVar(&database, "database", "", "Athena database")
	cmd.Flags().StringVar(&outputLocation, "output-location", "", "Athena result output location (s3://...)")

	return cmd
}

// resolveSQL picks the query text from the positional argument, the --sql
// flag, or piped stdin, in that order.
func resolveSQL(args []string, sqlFlag string) (string, error) {
	if len(args) == 1 && args[0] != "" {
		return args[0], nil
	}
	if sqlFlag != "" {
		return sqlFlag, nil
	}

	stat, err := os.Stdin.Stat()
	if err == nil && (stat.Mode()&os.ModeCharDevice) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		if sql := strings.TrimSpace(string(data)); sql != "" {
			return sql, nil
		}
	}
	return "", fmt.Errorf("provide SQL as an argument, via --sql, or on stdin")
}
