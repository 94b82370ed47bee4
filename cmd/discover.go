package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/guimove/rmqscaler/internal/kube"
	"github.com/guimove/rmqscaler/internal/metrics"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find the RabbitMQ management Service in the cluster",
	Long: `Searches for a Service exposing the RabbitMQ management API using the
labels set by the cluster operator, the Bitnami chart, or plain app=rabbitmq.
With --ping the endpoint is checked, through a port-forward when running
outside the cluster.`,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().Bool("ping", false, "check that the discovered management API answers")
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Kubernetes.Timeout+cfg.RabbitMQ.Timeout)
	defer cancel()

	clients, err := kube.NewClients(cfg.Kubernetes.Kubeconfig, cfg.Kubernetes.Context, cfg.Kubernetes.Timeout)
	if err != nil {
		return fmt.Errorf("connecting to Kubernetes: %w", err)
	}

	result, err := discover(ctx, clients)
	if err != nil {
		return err
	}

	out := os.Stdout
	fmt.Fprintf(out, "Flavor:    %s\n", result.Flavor)
	fmt.Fprintf(out, "Service:   %s/%s\n", result.Namespace, result.ServiceName)
	fmt.Fprintf(out, "Port:      %d\n", result.Port)
	fmt.Fprintf(out, "URL:       %s\n", result.URL)

	if ping, _ := cmd.Flags().GetBool("ping"); !ping {
		return nil
	}

	url := result.URL
	if !clients.InCluster {
		tunnel, err := kube.OpenTunnel(ctx, clients.REST, clients.Core, result.ServiceName, result.Namespace, result.Port)
		if err != nil {
			return fmt.Errorf("starting port-forward: %w", err)
		}
		defer tunnel.Close()
		url = tunnel.URL()
		fmt.Fprintf(out, "Tunnel:    %s (pod %s)\n", url, tunnel.PodName)
	}

	src, err := metrics.NewManagementSource(url, cfg.RabbitMQ.Username, cfg.RabbitMQ.Password,
		metrics.WithManagementTimeout(cfg.RabbitMQ.Timeout))
	if err != nil {
		return err
	}
	if err := src.Ping(ctx); err != nil {
		return err
	}
	fmt.Fprintf(out, "Status:    reachable\n")
	return nil
}
