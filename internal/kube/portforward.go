package kube

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/portforward"
	"k8s.io/client-go/transport/spdy"
)

// Tunnel is an active port-forward to a broker pod. It lets the scaler reach
// an in-cluster management API while running on a workstation.
type Tunnel struct {
	LocalPort int32
	PodName   string

	stopChan chan struct{}
	once     sync.Once
}

// URL returns the local management endpoint served by the tunnel.
func (t *Tunnel) URL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", t.LocalPort)
}

// Close terminates the tunnel. It is safe to call more than once.
func (t *Tunnel) Close() {
	t.once.Do(func() { close(t.stopChan) })
}

// OpenTunnel forwards a local port to a running pod behind the given Service.
// The Service port's targetPort may be numeric, named, or unset.
func OpenTunnel(ctx context.Context, restConfig *rest.Config, client kubernetes.Interface, svcName, namespace string, svcPort int32) (*Tunnel, error) {
	pod, podPort, err := backingPod(ctx, client, svcName, namespace, svcPort)
	if err != nil {
		return nil, err
	}

	tunnel, err := forward(restConfig, client, pod.Name, namespace, podPort)
	if err != nil {
		return nil, err
	}
	tunnel.PodName = pod.Name
	return tunnel, nil
}

// backingPod finds a running pod selected by the Service and the container
// port that svcPort maps to.
func backingPod(ctx context.Context, client kubernetes.Interface, svcName, namespace string, svcPort int32) (*corev1.Pod, int32, error) {
	svc, err := client.CoreV1().Services(namespace).Get(ctx, svcName, metav1.GetOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("getting service %s/%s: %w", namespace, svcName, err)
	}
	if len(svc.Spec.Selector) == 0 {
		return nil, 0, fmt.Errorf("service %s/%s has no pod selector", namespace, svcName)
	}

	var matched *corev1.ServicePort
	for i := range svc.Spec.Ports {
		if svc.Spec.Ports[i].Port == svcPort {
			matched = &svc.Spec.Ports[i]
			break
		}
	}
	if matched == nil {
		return nil, 0, fmt.Errorf("service %s/%s has no port %d", namespace, svcName, svcPort)
	}

	selector := metav1.FormatLabelSelector(&metav1.LabelSelector{MatchLabels: svc.Spec.Selector})
	pods, err := client.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: selector})
	if err != nil {
		return nil, 0, fmt.Errorf("listing pods for service %s/%s: %w", namespace, svcName, err)
	}
	for i := range pods.Items {
		if pods.Items[i].Status.Phase == corev1.PodRunning {
			pod := &pods.Items[i]
			return pod, resolveTargetPort(*matched, pod), nil
		}
	}
	return nil, 0, fmt.Errorf("no running pod found for service %s/%s", namespace, svcName)
}

// resolveTargetPort maps a ServicePort's targetPort to a container port.
// Named ports are looked up on the pod; an unset or unknown name falls back
// to the service port.
func resolveTargetPort(sp corev1.ServicePort, pod *corev1.Pod) int32 {
	tp := sp.TargetPort
	if tp.IntValue() != 0 {
		return int32(tp.IntValue())
	}
	if name := tp.String(); name != "" && name != "0" {
		for _, c := range pod.Spec.Containers {
			for _, cp := range c.Ports {
				if cp.Name == name {
					return cp.ContainerPort
				}
			}
		}
	}
	return sp.Port
}

func forward(restConfig *rest.Config, client kubernetes.Interface, podName, namespace string, podPort int32) (*Tunnel, error) {
	transport, upgrader, err := spdy.RoundTripperFor(restConfig)
	if err != nil {
		return nil, fmt.Errorf("creating SPDY round-tripper: %w", err)
	}

	reqURL := client.CoreV1().RESTClient().Post().
		Resource("pods").
		Namespace(namespace).
		Name(podName).
		SubResource("portforward").
		URL()

	dialer := spdy.NewDialer(upgrader, &http.Client{Transport: transport}, http.MethodPost, reqURL)

	stopChan := make(chan struct{}, 1)
	readyChan := make(chan struct{})

	fw, err := portforward.New(dialer, []string{fmt.Sprintf("0:%d", podPort)}, stopChan, readyChan, io.Discard, io.Discard)
	if err != nil {
		return nil, fmt.Errorf("creating port-forwarder: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- fw.ForwardPorts()
	}()

	select {
	case <-readyChan:
	case err := <-errChan:
		return nil, fmt.Errorf("port-forward failed: %w", err)
	}

	ports, err := fw.GetPorts()
	if err != nil {
		close(stopChan)
		return nil, fmt.Errorf("getting forwarded ports: %w", err)
	}

	return &Tunnel{
		LocalPort: int32(ports[0].Local),
		stopChan:  stopChan,
	}, nil
}
