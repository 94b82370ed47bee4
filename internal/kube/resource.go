package kube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/dynamic"

	"github.com/guimove/rmqscaler/internal/model"
)

// ErrResourceRead wraps failures to read the managed resource.
var ErrResourceRead = errors.New("reading managed resource")

// DefaultGVR is the RabbitMQ cluster operator's custom resource.
var DefaultGVR = schema.GroupVersionResource{
	Group:    "rabbitmq.com",
	Version:  "v1beta1",
	Resource: "rabbitmqclusters",
}

var requestsPath = []string{"spec", "resources", "requests"}

// Target identifies the resource whose requests are managed.
type Target struct {
	GVR       schema.GroupVersionResource
	Namespace string
	Name      string
}

func (t Target) String() string {
	return fmt.Sprintf("%s/%s %s/%s", t.GVR.Resource, t.GVR.Version, t.Namespace, t.Name)
}

// ResourceController reads and patches spec.resources.requests on the target.
type ResourceController struct {
	client  dynamic.Interface
	target  Target
	timeout time.Duration
	log     zerolog.Logger
}

// ResourceOption configures a ResourceController.
type ResourceOption func(*ResourceController)

// WithResourceTimeout bounds each API call.
func WithResourceTimeout(d time.Duration) ResourceOption {
	return func(c *ResourceController) { c.timeout = d }
}

// WithResourceLogger sets the logger used for dry-run and apply messages.
func WithResourceLogger(l zerolog.Logger) ResourceOption {
	return func(c *ResourceController) { c.log = l }
}

func NewResourceController(client dynamic.Interface, target Target, opts ...ResourceOption) *ResourceController {
	c := &ResourceController{
		client:  client,
		target:  target,
		timeout: 15 * time.Second,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ResourceController) Target() Target {
	return c.target
}

// Current returns the requests currently set on the resource. Missing fields
// come back as empty strings, which map to the UNKNOWN profile.
func (c *ResourceController) Current(ctx context.Context) (model.Resources, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	obj, err := c.client.Resource(c.target.GVR).Namespace(c.target.Namespace).Get(ctx, c.target.Name, metav1.GetOptions{})
	if err != nil {
		return model.Resources{}, fmt.Errorf("%w: %s: %v", ErrResourceRead, c.target, err)
	}

	cpu, _, err := unstructured.NestedString(obj.Object, append(requestsPath, "cpu")...)
	if err != nil {
		return model.Resources{}, fmt.Errorf("%w: %s: cpu: %v", ErrResourceRead, c.target, err)
	}
	memory, _, err := unstructured.NestedString(obj.Object, append(requestsPath, "memory")...)
	if err != nil {
		return model.Resources{}, fmt.Errorf("%w: %s: memory: %v", ErrResourceRead, c.target, err)
	}
	return model.Resources{CPU: cpu, Memory: memory}, nil
}

// Apply sets the resource's cpu and memory requests with a JSON merge patch.
// With dryRun it logs the intended patch and returns without calling the API.
func (c *ResourceController) Apply(ctx context.Context, res model.Resources, dryRun bool) error {
	patch := map[string]any{
		"spec": map[string]any{
			"resources": map[string]any{
				"requests": map[string]any{
					"cpu":    res.CPU,
					"memory": res.Memory,
				},
			},
		},
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encoding patch: %w", err)
	}

	if dryRun {
		c.log.Info().
			Str("target", c.target.String()).
			RawJSON("patch", body).
			Msg("dry run: skipping resource patch")
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err = c.client.Resource(c.target.GVR).Namespace(c.target.Namespace).Patch(ctx, c.target.Name, types.MergePatchType, body, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("patching %s: %w", c.target, err)
	}
	c.log.Info().Str("target", c.target.String()).Str("cpu", res.CPU).Str("memory", res.Memory).Msg("resource requests patched")
	return nil
}
