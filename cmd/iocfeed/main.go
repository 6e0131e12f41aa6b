package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/m-mizutani/iocfeed/pkg/arguments"
	"github.com/m-mizutani/iocfeed/pkg/errors"
	"github.com/m-mizutani/iocfeed/pkg/logging"
	"github.com/spf13/cobra"
)

const dateFormat = "2006-01-02"

func parseDate(date string) (time.Time, error) {
	if date == "" {
		return time.Now().UTC(), nil
	}
	t, err := time.Parse(dateFormat, date)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "Invalid --date, must be YYYY-MM-DD").With("date", date)
	}
	return t, nil
}

func publishCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish IOCs in feed files of the date to MISP event",
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := parseDate(date)
			if err != nil {
				return err
			}

			args, err := arguments.New()
			if err != nil {
				return err
			}
			batch, err := args.BatchService(now)
			if err != nil {
				return err
			}

			result, err := batch.Run(cmd.Context())
			if err != nil {
				return err
			}
			args.ReportService().Report(result, now)

			logging.Logger.Info().Str("event_id", result.Event.ID).Str("summary", result.Summary.String()).Msg("Done")
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date of feed to publish (YYYY-MM-DD), default is today in UTC")
	return cmd
}

func configCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show run configuration resolved from environment variables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			now, err := parseDate(date)
			if err != nil {
				return err
			}

			args, err := arguments.New()
			if err != nil {
				return err
			}
			cfg, err := args.BatchConfig(now)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(cfg)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Date of feed (YYYY-MM-DD), default is today in UTC")
	return cmd
}

func rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "iocfeed COMMAND",
		Short:         "Publish IOC feed files in S3 to MISP",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(
		publishCmd(),
		configCmd(),
	)
	return rootCmd
}

func main() {
	if err := errors.InitSentry(); err != nil {
		logging.Logger.Warn().Err(err).Msg("Sentry is not available")
	}

	if err := rootCommand().ExecuteContext(context.Background()); err != nil {
		errors.EmitSentry(err)
		var values map[string]interface{}
		if e, ok := err.(*errors.Error); ok {
			values = e.Values
		}
		logging.LogError(err, values)
		errors.FlushSentry()
		os.Exit(1)
	}
	errors.FlushSentry()
}
