package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/guimove/rmqscaler/internal/report"
)

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Evaluate broker load once and print what the loop would do",
	Long: `Runs the read-only half of one control loop tick: fetches broker load,
picks the target profile, reads the live resource and the stability record,
and reports whether a change would be applied. Nothing is written.

Use --snapshot to evaluate a saved JSON snapshot instead of the live broker.`,
	RunE: runDecide,
}

func init() {
	f := decideCmd.Flags()
	f.String("output", "table", "output format: table, json, markdown")
	f.String("snapshot", "", "evaluate this JSON snapshot file instead of querying RabbitMQ")
	f.String("output-file", "", "write output to file")

	rootCmd.AddCommand(decideCmd)
}

func runDecide(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RabbitMQ.Timeout+2*cfg.Kubernetes.Timeout)
	defer cancel()

	if snap, _ := cmd.Flags().GetString("snapshot"); snap != "" {
		cfg.RabbitMQ.Backend = "static"
		cfg.RabbitMQ.StaticFile = snap
		cfg.Kubernetes.Discover = false
	}

	st, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	ev, err := st.Orchestrator.Evaluate(ctx)
	if err != nil {
		return err
	}

	w := os.Stdout
	if path, _ := cmd.Flags().GetString("output-file"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	format, _ := cmd.Flags().GetString("output")
	return report.NewReporter(format, w).ReportEvaluation(ctx, ev, report.Meta{
		Resource:    st.Resource.Target().String(),
		Backend:     st.Source.BackendType(),
		DryRun:      cfg.Scaling.DryRun,
		GeneratedAt: time.Now(),
	})
}
