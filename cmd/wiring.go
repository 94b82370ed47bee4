package cmd

import (
	"context"
	"fmt"

	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/guimove/rmqscaler/internal/cooldown"
	"github.com/guimove/rmqscaler/internal/decision"
	"github.com/guimove/rmqscaler/internal/kube"
	"github.com/guimove/rmqscaler/internal/metrics"
	"github.com/guimove/rmqscaler/internal/orchestrator"
	"github.com/guimove/rmqscaler/internal/stability"
	"github.com/guimove/rmqscaler/internal/state"
)

// stack is everything a command needs to evaluate or run the loop.
type stack struct {
	Orchestrator *orchestrator.Orchestrator
	Source       metrics.Source
	Resource     *kube.ResourceController
	Store        *state.Store
	cleanup      func()
}

// Close releases port-forward tunnels opened while resolving the source.
func (s *stack) Close() {
	if s.cleanup != nil {
		s.cleanup()
	}
}

func buildStack(ctx context.Context) (*stack, error) {
	table, err := cfg.ProfileTable()
	if err != nil {
		return nil, err
	}

	clients, err := kube.NewClients(cfg.Kubernetes.Kubeconfig, cfg.Kubernetes.Context, cfg.Kubernetes.Timeout)
	if err != nil {
		return nil, fmt.Errorf("connecting to Kubernetes: %w", err)
	}
	logger.Debug().
		Str("context", clients.Context).
		Bool("in_cluster", clients.InCluster).
		Msg("kubernetes client ready")

	src, cleanup, err := resolveSource(ctx, clients)
	if err != nil {
		return nil, err
	}

	t := cfg.Kubernetes.Target
	resource := kube.NewResourceController(clients.Dynamic,
		kube.Target{
			GVR:       schema.GroupVersionResource{Group: t.Group, Version: t.Version, Resource: t.Resource},
			Namespace: cfg.Kubernetes.Namespace,
			Name:      t.Name,
		},
		kube.WithResourceTimeout(cfg.Kubernetes.Timeout),
		kube.WithResourceLogger(logger),
	)

	var backend state.Backend
	switch cfg.State.Backend {
	case "file":
		backend = state.NewFileBackend(cfg.State.File)
	default:
		backend = state.NewConfigMapBackend(clients.Core, cfg.Kubernetes.Namespace, cfg.State.ConfigMap, cfg.Kubernetes.Timeout)
	}
	store := state.NewStore(backend)

	sc := cfg.Scaling
	orch := orchestrator.New(src, resource, store,
		decision.NewEngine(table, decision.WithQueueDepthMetric(decision.QueueDepthMetric(sc.QueueDepthMetric))),
		stability.NewTracker(table,
			stability.WithScaleUpDebounce(sc.ScaleUpDebounce),
			stability.WithScaleDownDebounce(sc.ScaleDownDebounce),
			stability.WithRefreshAtTarget(sc.RefreshAtTarget),
		),
		cooldown.NewGuard(
			cooldown.WithScaleUpCooldown(sc.ScaleUpCooldown),
			cooldown.WithScaleDownCooldown(sc.ScaleDownCooldown),
		),
		sc.Interval,
	)
	orch.DryRun = sc.DryRun
	orch.Log = logger

	return &stack{
		Orchestrator: orch,
		Source:       src,
		Resource:     resource,
		Store:        store,
		cleanup:      cleanup,
	}, nil
}

// resolveSource creates the metrics source for the configured backend. With
// discovery enabled the management URL comes from the cluster, and when
// running outside it a port-forward tunnel is opened to a broker pod. The
// returned cleanup closes that tunnel (nil when none was created).
func resolveSource(ctx context.Context, clients *kube.Clients) (metrics.Source, func(), error) {
	switch cfg.RabbitMQ.Backend {
	case "static":
		return metrics.NewStaticSource(cfg.RabbitMQ.StaticFile), nil, nil
	case "prometheus":
		src, err := metrics.NewPrometheusSource(cfg.Prometheus.URL,
			metrics.WithTimeout(cfg.Prometheus.Timeout),
			metrics.WithRateWindow(cfg.Prometheus.RateWindow))
		return src, nil, err
	}

	url := cfg.RabbitMQ.URL
	var cleanup func()

	if cfg.Kubernetes.Discover {
		result, err := discover(ctx, clients)
		if err != nil {
			return nil, nil, err
		}
		url = result.URL
		logger.Info().
			Str("flavor", result.Flavor).
			Str("service", result.Namespace+"/"+result.ServiceName).
			Str("url", url).
			Msg("discovered rabbitmq management service")

		if !clients.InCluster {
			// Service DNS does not resolve from a workstation.
			tunnel, err := kube.OpenTunnel(ctx, clients.REST, clients.Core, result.ServiceName, result.Namespace, result.Port)
			if err != nil {
				return nil, nil, fmt.Errorf("starting port-forward: %w", err)
			}
			url = tunnel.URL()
			cleanup = tunnel.Close
			logger.Info().Str("pod", tunnel.PodName).Str("url", url).Msg("port-forwarding management API")
		}
	}

	src, err := metrics.NewManagementSource(url, cfg.RabbitMQ.Username, cfg.RabbitMQ.Password,
		metrics.WithManagementTimeout(cfg.RabbitMQ.Timeout))
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, nil, err
	}
	return src, cleanup, nil
}

func discover(ctx context.Context, clients *kube.Clients) (*kube.DiscoveryResult, error) {
	ns := cfg.Kubernetes.DiscoveryNamespace
	if ns == "" {
		ns = cfg.Kubernetes.Namespace
	}
	return kube.Discover(ctx, clients.Core, kube.DiscoveryOptions{
		Namespace: ns,
		Cluster:   cfg.Kubernetes.Target.Name,
	})
}
