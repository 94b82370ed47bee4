package kube

import (
	"context"
	"errors"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

// ErrServiceNotFound is returned when no RabbitMQ management Service matches.
var ErrServiceNotFound = errors.New("no rabbitmq management service found")

const managementPort = 15672

// DiscoveryResult holds the discovered management endpoint.
type DiscoveryResult struct {
	URL         string
	Flavor      string // "cluster-operator", "bitnami", "generic"
	ServiceName string
	Namespace   string
	Port        int32
}

// DiscoveryOptions configures the service discovery search.
type DiscoveryOptions struct {
	Namespace string // empty = search all namespaces
	Cluster   string // RabbitmqCluster name, narrows cluster-operator matches
}

type candidate struct {
	flavor    string
	selectors []string
}

func candidatesFor(cluster string) []candidate {
	operator := "app.kubernetes.io/component=rabbitmq,app.kubernetes.io/part-of=rabbitmq"
	if cluster != "" {
		operator += ",app.kubernetes.io/name=" + cluster
	}
	return []candidate{
		{flavor: "cluster-operator", selectors: []string{operator}},
		{
			flavor: "bitnami",
			selectors: []string{
				"app.kubernetes.io/name=rabbitmq",
			},
		},
		{
			flavor: "generic",
			selectors: []string{
				"app=rabbitmq",
				"app.kubernetes.io/instance=rabbitmq",
			},
		},
	}
}

// Discover searches for a Service exposing the RabbitMQ management API. It
// tries well-known label selectors in priority order (cluster operator,
// Bitnami chart, generic) and returns the first Service with a management port.
// Headless services are skipped.
func Discover(ctx context.Context, client kubernetes.Interface, opts DiscoveryOptions) (*DiscoveryResult, error) {
	for _, c := range candidatesFor(opts.Cluster) {
		for _, selector := range c.selectors {
			svcList, err := client.CoreV1().Services(opts.Namespace).List(ctx, metav1.ListOptions{
				LabelSelector: selector,
			})
			if err != nil {
				continue
			}

			for _, svc := range svcList.Items {
				if svc.Spec.ClusterIP == corev1.ClusterIPNone {
					continue
				}
				port := extractPort(svc)
				if port == 0 {
					continue
				}
				return &DiscoveryResult{
					URL:         fmt.Sprintf("http://%s.%s.svc:%d", svc.Name, svc.Namespace, port),
					Flavor:      c.flavor,
					ServiceName: svc.Name,
					Namespace:   svc.Namespace,
					Port:        port,
				}, nil
			}
		}
	}

	return nil, fmt.Errorf("%w; use --rabbitmq-url to specify the endpoint manually", ErrServiceNotFound)
}

// extractPort returns the management port of a Service, or 0 when it only
// exposes AMQP or other protocols.
func extractPort(svc corev1.Service) int32 {
	preferredNames := []string{"management", "http-stats", "http"}

	for _, name := range preferredNames {
		for _, p := range svc.Spec.Ports {
			if p.Name == name {
				return p.Port
			}
		}
	}

	for _, p := range svc.Spec.Ports {
		if p.Port == managementPort {
			return p.Port
		}
	}

	return 0
}
