package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	promapi "github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	prommodel "github.com/prometheus/common/model"

	"github.com/guimove/rmqscaler/internal/model"
)

// PrometheusSource reads broker load from a Prometheus (or Thanos) server
// scraping the rabbitmq_prometheus plugin.
type PrometheusSource struct {
	api        promv1.API
	endpoint   string
	timeout    time.Duration
	rateWindow time.Duration
}

// PrometheusOption configures the Prometheus source.
type PrometheusOption func(*PrometheusSource)

// WithTimeout sets the query timeout.
func WithTimeout(d time.Duration) PrometheusOption {
	return func(s *PrometheusSource) { s.timeout = d }
}

// WithRateWindow sets the range used by rate() for publish and consume rates.
func WithRateWindow(d time.Duration) PrometheusOption {
	return func(s *PrometheusSource) { s.rateWindow = d }
}

// NewPrometheusSource creates a source connected to the given endpoint.
func NewPrometheusSource(endpoint string, opts ...PrometheusOption) (*PrometheusSource, error) {
	client, err := promapi.NewClient(promapi.Config{
		Address: endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("creating prometheus client: %w", err)
	}

	s := &PrometheusSource{
		api:        promv1.NewAPI(client),
		endpoint:   endpoint,
		timeout:    10 * time.Second,
		rateWindow: time.Minute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Ping checks connectivity with a trivial query.
func (s *PrometheusSource) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, _, err := s.api.Query(ctx, "up", time.Now()); err != nil {
		return fmt.Errorf("%w: %v", ErrBrokerUnreachable, err)
	}
	return nil
}

func (s *PrometheusSource) BackendType() string {
	return "prometheus"
}

// Fetch runs the four load queries in parallel. A missing queue-message
// series means the broker is not being scraped and yields ErrNoMetricsFound;
// missing rate series count as zero.
func (s *PrometheusSource) Fetch(ctx context.Context) (model.Snapshot, error) {
	window := formatDuration(s.rateWindow)
	if window == "" {
		window = "1m"
	}

	type queryResult struct {
		name string
		data prommodel.Value
		err  error
	}

	queries := map[string]string{
		"total":   queryTotalMessages(),
		"max":     queryMaxQueueDepth(),
		"publish": queryPublishRate(window),
		"consume": queryConsumeRate(window),
	}

	results := make(chan queryResult, len(queries))
	queryCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	now := time.Now()
	for name, q := range queries {
		go func(n, query string) {
			data, _, err := s.api.Query(queryCtx, query, now)
			results <- queryResult{name: n, data: data, err: err}
		}(name, q)
	}

	collected := make(map[string]prommodel.Value)
	var errs []string
	for i := 0; i < len(queries); i++ {
		r := <-results
		if r.err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", r.name, r.err))
			continue
		}
		collected[r.name] = r.data
	}
	if len(errs) > 0 {
		return model.Snapshot{}, fmt.Errorf("%w: %s", ErrBrokerUnreachable, strings.Join(errs, ", "))
	}

	total, ok := scalarOf(collected["total"])
	if !ok {
		return model.Snapshot{}, fmt.Errorf("%w: rabbitmq_queue_messages has no samples", ErrNoMetricsFound)
	}
	maxDepth, _ := scalarOf(collected["max"])
	publish, _ := scalarOf(collected["publish"])
	consume, _ := scalarOf(collected["consume"])

	return model.NewSnapshot(total, maxDepth, publish, consume), nil
}

// scalarOf extracts the first sample of an aggregated vector or scalar.
func scalarOf(v prommodel.Value) (float64, bool) {
	switch val := v.(type) {
	case prommodel.Vector:
		if len(val) == 0 {
			return 0, false
		}
		return float64(val[0].Value), true
	case *prommodel.Scalar:
		if val == nil {
			return 0, false
		}
		return float64(val.Value), true
	default:
		return 0, false
	}
}

// formatDuration formats d as a PromQL range duration, e.g. "1h30m".
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	return prommodel.Duration(d).String()
}
