package kube

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Clients bundles the typed and dynamic clients built from one rest.Config.
type Clients struct {
	Core      kubernetes.Interface
	Dynamic   dynamic.Interface
	REST      *rest.Config
	Context   string
	InCluster bool
}

// NewClients builds Kubernetes clients using the following resolution order:
// 1. Explicit kubeconfig path (--kubeconfig flag)
// 2. KUBECONFIG environment variable
// 3. ~/.kube/config default
// 4. In-cluster config (when running as a pod)
func NewClients(kubeconfig, kubeContext string, timeout time.Duration) (*Clients, error) {
	config, currentContext, inCluster, err := buildConfig(kubeconfig, kubeContext)
	if err != nil {
		return nil, fmt.Errorf("building kubernetes config: %w", err)
	}
	config.Timeout = timeout

	core, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("creating kubernetes client: %w", err)
	}
	dyn, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("creating dynamic client: %w", err)
	}

	return &Clients{
		Core:      core,
		Dynamic:   dyn,
		REST:      config,
		Context:   currentContext,
		InCluster: inCluster,
	}, nil
}

func buildConfig(kubeconfig, kubeContext string) (*rest.Config, string, bool, error) {
	kubeconfigPath := kubeconfig
	if kubeconfigPath == "" {
		kubeconfigPath = os.Getenv("KUBECONFIG")
	}
	if kubeconfigPath == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			defaultPath := filepath.Join(home, ".kube", "config")
			if _, err := os.Stat(defaultPath); err == nil {
				kubeconfigPath = defaultPath
			}
		}
	}

	if kubeconfigPath != "" {
		rules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfigPath}
		overrides := &clientcmd.ConfigOverrides{}
		if kubeContext != "" {
			overrides.CurrentContext = kubeContext
		}
		clientConfig := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides)

		rawConfig, err := clientConfig.RawConfig()
		if err != nil {
			return nil, "", false, err
		}
		currentContext := rawConfig.CurrentContext
		if kubeContext != "" {
			currentContext = kubeContext
		}

		restConfig, err := clientConfig.ClientConfig()
		if err != nil {
			return nil, "", false, err
		}
		return restConfig, currentContext, false, nil
	}

	restConfig, err := rest.InClusterConfig()
	if err != nil {
		return nil, "", false, fmt.Errorf("no kubeconfig found and not running in-cluster: %w", err)
	}
	return restConfig, "", true, nil
}
