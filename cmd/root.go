package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/guimove/rmqscaler/internal/config"
	"github.com/guimove/rmqscaler/internal/logging"
)

var (
	cfgFile string
	cfg     config.Config
	logger  zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "rmqscaler",
	Short: "Vertical autoscaler for RabbitMQ clusters on Kubernetes",
	Long: `rmqscaler watches RabbitMQ queue depth and message rates and moves a
RabbitmqCluster between a fixed ladder of CPU/memory profiles.

A recommendation must hold for a direction-specific debounce window before it
is applied, and a cooldown after every change keeps the cluster from flapping.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// envKeys are settings that may come from RMQSCALER_* variables without a
// config file mentioning them.
var envKeys = []string{
	"scaling.interval",
	"scaling.scale_up_debounce",
	"scaling.scale_down_debounce",
	"scaling.scale_up_cooldown",
	"scaling.scale_down_cooldown",
	"scaling.queue_depth_metric",
	"scaling.refresh_at_target",
	"rabbitmq.username",
	"rabbitmq.password",
	"rabbitmq.timeout",
	"rabbitmq.startup_timeout",
	"rabbitmq.static_file",
	"prometheus.rate_window",
	"kubernetes.target.name",
	"kubernetes.timeout",
	"state.backend",
	"state.config_map",
	"state.file",
	"server.enabled",
	"server.address",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: rmqscaler.yaml)")

	// Global flags that map to config. Flag defaults mirror config.Default()
	// because viper reports unchanged flags with their default value.
	def := config.Default()
	pf := rootCmd.PersistentFlags()
	pf.String("log-level", def.Log.Level, "log level: debug, info, warn, error")
	pf.String("log-format", def.Log.Format, "log format: console, json")
	pf.String("rabbitmq-backend", def.RabbitMQ.Backend, "metrics backend: management, prometheus, static")
	pf.String("rabbitmq-url", def.RabbitMQ.URL, "RabbitMQ management API URL")
	pf.String("prometheus-url", def.Prometheus.URL, "Prometheus endpoint scraping rabbitmq_prometheus")
	pf.String("kubeconfig", def.Kubernetes.Kubeconfig, "path to kubeconfig file")
	pf.String("kube-context", def.Kubernetes.Context, "Kubernetes context name")
	pf.StringP("namespace", "n", def.Kubernetes.Namespace, "namespace of the RabbitmqCluster")
	pf.BoolP("discover", "d", def.Kubernetes.Discover, "auto-discover the management Service from Kubernetes")
	pf.String("discovery-namespace", def.Kubernetes.DiscoveryNamespace, "limit service discovery to a namespace")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = viper.BindPFlag("rabbitmq.backend", rootCmd.PersistentFlags().Lookup("rabbitmq-backend"))
	_ = viper.BindPFlag("rabbitmq.url", rootCmd.PersistentFlags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("prometheus.url", rootCmd.PersistentFlags().Lookup("prometheus-url"))
	_ = viper.BindPFlag("kubernetes.kubeconfig", rootCmd.PersistentFlags().Lookup("kubeconfig"))
	_ = viper.BindPFlag("kubernetes.context", rootCmd.PersistentFlags().Lookup("kube-context"))
	_ = viper.BindPFlag("kubernetes.namespace", rootCmd.PersistentFlags().Lookup("namespace"))
	_ = viper.BindPFlag("kubernetes.discover", rootCmd.PersistentFlags().Lookup("discover"))
	_ = viper.BindPFlag("kubernetes.discovery_namespace", rootCmd.PersistentFlags().Lookup("discovery-namespace"))
}

func loadConfig() error {
	// Start with defaults
	cfg = config.Default()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("rmqscaler")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/rmqscaler")
		viper.AddConfigPath("$HOME/.rmqscaler")
	}

	// Environment variable overrides: RMQSCALER_RABBITMQ_URL, ...
	viper.SetEnvPrefix("RMQSCALER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return fmt.Errorf("reading config file: %w", err)
		}
	}

	// A configured ladder replaces the default one instead of merging into it.
	if viper.IsSet("profiles") {
		cfg.Profiles = nil
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	if err := config.ApplyLegacyEnv(&cfg, os.LookupEnv); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	l, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	logger = l
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug().Str("file", used).Msg("loaded config file")
	}
	return nil
}
