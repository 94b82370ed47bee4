package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
)

// ConfigMapBackend keeps the record in the data section of a ConfigMap.
type ConfigMapBackend struct {
	client    kubernetes.Interface
	namespace string
	name      string
	timeout   time.Duration
}

func NewConfigMapBackend(client kubernetes.Interface, namespace, name string, timeout time.Duration) *ConfigMapBackend {
	return &ConfigMapBackend{client: client, namespace: namespace, name: name, timeout: timeout}
}

func (b *ConfigMapBackend) Name() string {
	return fmt.Sprintf("configmap %s/%s", b.namespace, b.name)
}

// Read returns the ConfigMap data, or an empty map when it does not exist.
func (b *ConfigMapBackend) Read(ctx context.Context) (map[string]string, error) {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	cm, err := b.client.CoreV1().ConfigMaps(b.namespace).Get(ctx, b.name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if cm.Data == nil {
		return map[string]string{}, nil
	}
	return cm.Data, nil
}

// Patch merges kv into the ConfigMap data, creating the ConfigMap when missing.
func (b *ConfigMapBackend) Patch(ctx context.Context, kv map[string]string) error {
	ctx, cancel := b.withTimeout(ctx)
	defer cancel()

	body, err := json.Marshal(map[string]any{"data": kv})
	if err != nil {
		return fmt.Errorf("encoding patch: %w", err)
	}

	_, err = b.client.CoreV1().ConfigMaps(b.namespace).Patch(ctx, b.name, types.MergePatchType, body, metav1.PatchOptions{})
	if !apierrors.IsNotFound(err) {
		return err
	}

	cm := &corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{
			Name:      b.name,
			Namespace: b.namespace,
			Labels: map[string]string{
				"app.kubernetes.io/managed-by": "rmqscaler",
			},
		},
		Data: kv,
	}
	_, err = b.client.CoreV1().ConfigMaps(b.namespace).Create(ctx, cm, metav1.CreateOptions{})
	if apierrors.IsAlreadyExists(err) {
		_, err = b.client.CoreV1().ConfigMaps(b.namespace).Patch(ctx, b.name, types.MergePatchType, body, metav1.PatchOptions{})
	}
	return err
}

func (b *ConfigMapBackend) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.timeout)
}
