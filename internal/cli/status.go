package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"snapletter/internal/app"
	"snapletter/internal/domain/delivery"
	"snapletter/internal/infra/config"
	"snapletter/internal/infra/engine"
	"snapletter/internal/infra/logger"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "status <correlation_id>",
		Short: "Show the status of a scheduled delivery",
		Long: `Query the execution engine once for the runs of a dispatched delivery and
print the normalized status: pending, in_progress, completed or failed.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			engineCfg, err := config.LoadEngine()
			if err != nil {
				return fmt.Errorf("could not load engine configuration: %w", err)
			}
			client := engine.NewClient(engineCfg, logger.Component("engine"))
			tracker := app.NewRunTracker(client, logger.Component("run_tracker"))

			ctx, cancel := context.WithTimeout(commandContext(cmd), timeout)
			defer cancel()
			return runStatus(ctx, tracker, args[0], rootOpts.Format, cmd.OutOrStdout())
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 15*time.Second, "give up after this long")
	return cmd
}

type statusSource interface {
	Status(ctx context.Context, correlationID string) (*app.RunReport, error)
}

func runStatus(ctx context.Context, tracker statusSource, correlationID, format string, w io.Writer) error {
	report, err := tracker.Status(ctx, correlationID)
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	fmt.Fprintf(w, "correlation_id: %s\n", report.CorrelationID)
	fmt.Fprintf(w, "status:         %s\n", report.Status)
	if report.RunID != "" {
		fmt.Fprintf(w, "run_id:         %s\n", report.RunID)
	}
	if report.StartedAt != nil {
		fmt.Fprintf(w, "started_at:     %s\n", report.StartedAt.Format(time.RFC3339))
	}
	if report.EndedAt != nil {
		fmt.Fprintf(w, "ended_at:       %s\n", report.EndedAt.Format(time.RFC3339))
	}
	switch report.Status {
	case delivery.RunStatusCompleted:
		if len(report.Result) > 0 {
			fmt.Fprintf(w, "result:         %s\n", report.Result)
		}
	case delivery.RunStatusFailed:
		fmt.Fprintf(w, "error:          %s\n", report.Error)
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
