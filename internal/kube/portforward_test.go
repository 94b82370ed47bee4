package kube

import (
	"context"
	"testing"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/util/intstr"
	"k8s.io/client-go/kubernetes/fake"
)

func TestResolveTargetPortInt(t *testing.T) {
	sp := corev1.ServicePort{
		Port:       15672,
		TargetPort: intstr.FromInt32(15673),
	}
	if got := resolveTargetPort(sp, &corev1.Pod{}); got != 15673 {
		t.Errorf("expected 15673, got %d", got)
	}
}

func TestResolveTargetPortNamed(t *testing.T) {
	sp := corev1.ServicePort{
		Port:       15672,
		TargetPort: intstr.FromString("management"),
	}
	pod := &corev1.Pod{
		Spec: corev1.PodSpec{
			Containers: []corev1.Container{
				{
					Ports: []corev1.ContainerPort{
						{Name: "amqp", ContainerPort: 5672},
						{Name: "management", ContainerPort: 15672},
					},
				},
			},
		},
	}
	if got := resolveTargetPort(sp, pod); got != 15672 {
		t.Errorf("expected 15672, got %d", got)
	}
}

func TestResolveTargetPortFallsBack(t *testing.T) {
	sp := corev1.ServicePort{
		Port:       15672,
		TargetPort: intstr.FromString("unknown"),
	}
	if got := resolveTargetPort(sp, &corev1.Pod{}); got != 15672 {
		t.Errorf("expected service port fallback, got %d", got)
	}

	unset := corev1.ServicePort{Port: 15672}
	if got := resolveTargetPort(unset, &corev1.Pod{}); got != 15672 {
		t.Errorf("expected service port for unset targetPort, got %d", got)
	}
}

func pod(name string, phase corev1.PodPhase) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{
			Name:      name,
			Namespace: "prod",
			Labels:    map[string]string{"app.kubernetes.io/name": "rmq"},
		},
		Status: corev1.PodStatus{Phase: phase},
	}
}

func TestBackingPod(t *testing.T) {
	service := svc("rmq", "prod", operatorLabels, []corev1.ServicePort{{
		Name:       "management",
		Port:       15672,
		TargetPort: intstr.FromInt32(15672),
	}})
	service.Spec.Selector = map[string]string{"app.kubernetes.io/name": "rmq"}

	client := fake.NewSimpleClientset( //nolint:staticcheck // NewClientset requires generated apply configs
		service,
		pod("rmq-server-0", corev1.PodPending),
		pod("rmq-server-1", corev1.PodRunning),
	)

	p, port, err := backingPod(context.Background(), client, "rmq", "prod", 15672)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "rmq-server-1" {
		t.Errorf("expected running pod rmq-server-1, got %s", p.Name)
	}
	if port != 15672 {
		t.Errorf("expected port 15672, got %d", port)
	}

	if _, _, err := backingPod(context.Background(), client, "rmq", "prod", 5672); err == nil {
		t.Error("expected error for unknown service port")
	}
	if _, _, err := backingPod(context.Background(), client, "missing", "prod", 15672); err == nil {
		t.Error("expected error for missing service")
	}
}

func TestBackingPodNoSelector(t *testing.T) {
	client := fake.NewSimpleClientset( //nolint:staticcheck // NewClientset requires generated apply configs
		svc("rmq", "prod", nil, []corev1.ServicePort{tcpPort("management", 15672)}),
	)
	if _, _, err := backingPod(context.Background(), client, "rmq", "prod", 15672); err == nil {
		t.Error("expected error for service without selector")
	}
}

func TestTunnelCloseTwice(t *testing.T) {
	tun := &Tunnel{LocalPort: 30000, stopChan: make(chan struct{})}
	if tun.URL() != "http://127.0.0.1:30000" {
		t.Errorf("unexpected URL %s", tun.URL())
	}
	tun.Close()
	tun.Close()
}
