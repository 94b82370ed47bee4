package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/guimove/rmqscaler/internal/config"
	"github.com/guimove/rmqscaler/internal/metrics"
	"github.com/guimove/rmqscaler/internal/server"
	"github.com/guimove/rmqscaler/internal/telemetry"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scaling control loop",
	Long: `Waits for RabbitMQ to answer, then evaluates broker load every interval
and patches the RabbitmqCluster's resource requests when a profile change has
been stable long enough. Stops cleanly on SIGINT or SIGTERM.`,
	RunE: runLoop,
}

func init() {
	f := runCmd.Flags()
	def := config.Default()
	f.Bool("dry-run", def.Scaling.DryRun, "log intended changes without patching the cluster")
	f.Duration("interval", def.Scaling.Interval, "time between evaluations")
	f.String("listen", def.Server.Address, "address for /healthz, /readyz and /metrics")
	f.Bool("no-server", false, "disable the health and metrics server")

	_ = viper.BindPFlag("scaling.dry_run", f.Lookup("dry-run"))
	_ = viper.BindPFlag("scaling.interval", f.Lookup("interval"))
	_ = viper.BindPFlag("server.address", f.Lookup("listen"))

	rootCmd.AddCommand(runCmd)
}

func runLoop(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if noServer, _ := cmd.Flags().GetBool("no-server"); noServer {
		cfg.Server.Enabled = false
	}

	st, err := buildStack(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	tel := telemetry.New()
	st.Orchestrator.Telemetry = tel

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server.Address, tel, 3*cfg.Scaling.Interval+time.Minute, logger)
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error().Err(err).Msg("http server failed")
				stop()
			}
		}()
	}

	logger.Info().
		Str("backend", st.Source.BackendType()).
		Str("target", st.Resource.Target().String()).
		Str("state", st.Store.Backend()).
		Msg("waiting for rabbitmq")
	if err := metrics.WaitReady(ctx, st.Source, cfg.RabbitMQ.ReadyPollInterval, cfg.RabbitMQ.StartupTimeout, logger); err != nil {
		return err
	}
	tel.SetReady(true)

	return st.Orchestrator.Run(ctx)
}
