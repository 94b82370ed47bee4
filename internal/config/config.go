package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/guimove/rmqscaler/internal/model"
)

// ErrInvalidConfig marks configuration errors. They are fatal at startup.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the top-level configuration for rmqscaler.
type Config struct {
	Profiles   []ProfileConfig  `mapstructure:"profiles" yaml:"profiles"`
	Scaling    ScalingConfig    `mapstructure:"scaling" yaml:"scaling"`
	RabbitMQ   RabbitMQConfig   `mapstructure:"rabbitmq" yaml:"rabbitmq"`
	Prometheus PrometheusConfig `mapstructure:"prometheus" yaml:"prometheus"`
	Kubernetes KubernetesConfig `mapstructure:"kubernetes" yaml:"kubernetes"`
	State      StateConfig      `mapstructure:"state" yaml:"state"`
	Server     ServerConfig     `mapstructure:"server" yaml:"server"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
}

// ProfileConfig declares one rung of the profile ladder. Profiles are listed
// lowest first; the first profile must not set thresholds.
type ProfileConfig struct {
	Name           string   `mapstructure:"name" yaml:"name"`
	CPU            string   `mapstructure:"cpu" yaml:"cpu"`
	Memory         string   `mapstructure:"memory" yaml:"memory"`
	QueueThreshold *float64 `mapstructure:"queue_threshold" yaml:"queue_threshold,omitempty"`
	RateThreshold  *float64 `mapstructure:"rate_threshold" yaml:"rate_threshold,omitempty"`
}

type ScalingConfig struct {
	Interval          time.Duration `mapstructure:"interval" yaml:"interval"`
	ScaleUpDebounce   time.Duration `mapstructure:"scale_up_debounce" yaml:"scale_up_debounce"`
	ScaleDownDebounce time.Duration `mapstructure:"scale_down_debounce" yaml:"scale_down_debounce"`
	ScaleUpCooldown   time.Duration `mapstructure:"scale_up_cooldown" yaml:"scale_up_cooldown"`
	ScaleDownCooldown time.Duration `mapstructure:"scale_down_cooldown" yaml:"scale_down_cooldown"`
	QueueDepthMetric  string        `mapstructure:"queue_depth_metric" yaml:"queue_depth_metric"` // max_queue or total
	RefreshAtTarget   bool          `mapstructure:"refresh_at_target" yaml:"refresh_at_target"`
	DryRun            bool          `mapstructure:"dry_run" yaml:"dry_run"`
}

type RabbitMQConfig struct {
	Backend           string        `mapstructure:"backend" yaml:"backend"` // management, prometheus, static
	URL               string        `mapstructure:"url" yaml:"url"`
	Username          string        `mapstructure:"username" yaml:"username"`
	Password          string        `mapstructure:"password" yaml:"password"`
	Timeout           time.Duration `mapstructure:"timeout" yaml:"timeout"`
	StartupTimeout    time.Duration `mapstructure:"startup_timeout" yaml:"startup_timeout"`
	ReadyPollInterval time.Duration `mapstructure:"ready_poll_interval" yaml:"ready_poll_interval"`
	StaticFile        string        `mapstructure:"static_file" yaml:"static_file"`
}

type PrometheusConfig struct {
	URL        string        `mapstructure:"url" yaml:"url"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RateWindow time.Duration `mapstructure:"rate_window" yaml:"rate_window"`
}

type KubernetesConfig struct {
	Kubeconfig         string        `mapstructure:"kubeconfig" yaml:"kubeconfig"`
	Context            string        `mapstructure:"context" yaml:"context"`
	Namespace          string        `mapstructure:"namespace" yaml:"namespace"`
	Timeout            time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Target             TargetConfig  `mapstructure:"target" yaml:"target"`
	Discover           bool          `mapstructure:"discover" yaml:"discover"`
	DiscoveryNamespace string        `mapstructure:"discovery_namespace" yaml:"discovery_namespace"` // empty = target namespace
}

// TargetConfig identifies the managed custom resource.
type TargetConfig struct {
	Group    string `mapstructure:"group" yaml:"group"`
	Version  string `mapstructure:"version" yaml:"version"`
	Resource string `mapstructure:"resource" yaml:"resource"`
	Name     string `mapstructure:"name" yaml:"name"`
}

type StateConfig struct {
	Backend   string `mapstructure:"backend" yaml:"backend"` // configmap or file
	ConfigMap string `mapstructure:"config_map" yaml:"config_map"`
	File      string `mapstructure:"file" yaml:"file"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Address string `mapstructure:"address" yaml:"address"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // console or json
}

// Default returns a Config with the stock four-tier ladder.
func Default() Config {
	return Config{
		Profiles: []ProfileConfig{
			{Name: "LOW", CPU: "330m", Memory: "2Gi"},
			{Name: "MEDIUM", CPU: "800m", Memory: "3Gi", QueueThreshold: float(2000), RateThreshold: float(200)},
			{Name: "HIGH", CPU: "1600m", Memory: "4Gi", QueueThreshold: float(10000), RateThreshold: float(1000)},
			{Name: "CRITICAL", CPU: "2400m", Memory: "8Gi", QueueThreshold: float(50000), RateThreshold: float(2000)},
		},
		Scaling: ScalingConfig{
			Interval:          5 * time.Second,
			ScaleUpDebounce:   30 * time.Second,
			ScaleDownDebounce: 120 * time.Second,
			ScaleUpCooldown:   15 * time.Second,
			ScaleDownCooldown: 60 * time.Second,
			QueueDepthMetric:  "max_queue",
			RefreshAtTarget:   true,
		},
		RabbitMQ: RabbitMQConfig{
			Backend:           "management",
			URL:               "http://rmq.prod.svc.cluster.local:15672",
			Username:          "guest",
			Password:          "guest",
			Timeout:           10 * time.Second,
			StartupTimeout:    5 * time.Minute,
			ReadyPollInterval: 5 * time.Second,
		},
		Prometheus: PrometheusConfig{
			Timeout:    10 * time.Second,
			RateWindow: time.Minute,
		},
		Kubernetes: KubernetesConfig{
			Namespace: "prod",
			Timeout:   15 * time.Second,
			Target: TargetConfig{
				Group:    "rabbitmq.com",
				Version:  "v1beta1",
				Resource: "rabbitmqclusters",
				Name:     "rmq",
			},
		},
		State: StateConfig{
			Backend:   "configmap",
			ConfigMap: "rmq-scaler-state",
		},
		Server: ServerConfig{
			Enabled: true,
			Address: ":8080",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

func float(v float64) *float64 {
	return &v
}

// Validate checks the config for consistency.
func (c *Config) Validate() error {
	if _, err := c.ProfileTable(); err != nil {
		return err
	}
	if c.Scaling.Interval <= 0 {
		return invalid("scaling interval must be positive, got %v", c.Scaling.Interval)
	}
	if c.Scaling.ScaleUpDebounce < 0 || c.Scaling.ScaleDownDebounce < 0 {
		return invalid("debounce windows must be non-negative")
	}
	if c.Scaling.ScaleUpCooldown < 0 || c.Scaling.ScaleDownCooldown < 0 {
		return invalid("cooldown windows must be non-negative")
	}
	validDepth := map[string]bool{"max_queue": true, "total": true}
	if !validDepth[c.Scaling.QueueDepthMetric] {
		return invalid("queue_depth_metric must be max_queue or total, got %q", c.Scaling.QueueDepthMetric)
	}

	switch c.RabbitMQ.Backend {
	case "management":
		if c.RabbitMQ.URL == "" && !c.Kubernetes.Discover {
			return invalid("rabbitmq url is required for the management backend (or enable discovery)")
		}
		if c.RabbitMQ.URL != "" {
			if _, err := url.ParseRequestURI(c.RabbitMQ.URL); err != nil {
				return invalid("rabbitmq url %q: %v", c.RabbitMQ.URL, err)
			}
		}
	case "prometheus":
		if c.Prometheus.URL == "" {
			return invalid("prometheus url is required for the prometheus backend")
		}
		if c.Prometheus.RateWindow <= 0 {
			return invalid("prometheus rate_window must be positive")
		}
	case "static":
		if c.RabbitMQ.StaticFile == "" {
			return invalid("rabbitmq static_file is required for the static backend")
		}
	default:
		return invalid("rabbitmq backend must be management, prometheus, or static, got %q", c.RabbitMQ.Backend)
	}
	if c.RabbitMQ.Timeout <= 0 {
		return invalid("rabbitmq timeout must be positive")
	}

	if c.Kubernetes.Timeout <= 0 {
		return invalid("kubernetes timeout must be positive")
	}
	t := c.Kubernetes.Target
	if t.Version == "" || t.Resource == "" || t.Name == "" {
		return invalid("kubernetes target version, resource and name are required")
	}
	if c.Kubernetes.Namespace == "" {
		return invalid("kubernetes namespace is required")
	}

	switch c.State.Backend {
	case "configmap":
		if c.State.ConfigMap == "" {
			return invalid("state config_map is required for the configmap backend")
		}
	case "file":
		if c.State.File == "" {
			return invalid("state file is required for the file backend")
		}
	default:
		return invalid("state backend must be configmap or file, got %q", c.State.Backend)
	}

	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Log.Format] {
		return invalid("log format must be console or json, got %q", c.Log.Format)
	}
	if c.Server.Enabled && c.Server.Address == "" {
		c.Server.Address = ":8080"
	}
	return nil
}

// ProfileTable converts the configured ladder into a validated table.
func (c *Config) ProfileTable() (*model.ProfileTable, error) {
	profiles := make([]model.Profile, len(c.Profiles))
	for i, p := range c.Profiles {
		profiles[i] = model.Profile{
			Name:           p.Name,
			CPU:            p.CPU,
			Memory:         p.Memory,
			QueueThreshold: p.QueueThreshold,
			RateThreshold:  p.RateThreshold,
		}
	}
	table, err := model.NewProfileTable(profiles)
	if err != nil {
		return nil, fmt.Errorf("%w: profiles: %w", ErrInvalidConfig, err)
	}
	return table, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
