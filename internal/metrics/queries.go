package metrics

import "fmt"

// PromQL for the metrics exposed by the rabbitmq_prometheus plugin
// (aggregated endpoint, /metrics). Per-queue series require
// prometheus.return_per_object_metrics or the /metrics/per-object endpoint.

func queryTotalMessages() string {
	return `sum(rabbitmq_queue_messages)`
}

func queryMaxQueueDepth() string {
	return `max(rabbitmq_queue_messages)`
}

// queryPublishRate returns messages/s received by the broker.
func queryPublishRate(window string) string {
	return fmt.Sprintf(`sum(rate(rabbitmq_global_messages_received_total[%s]))`, window)
}

// queryConsumeRate returns messages/s delivered to consumers, the
// equivalent of the management API's deliver_get rate.
func queryConsumeRate(window string) string {
	return fmt.Sprintf(`sum(rate(rabbitmq_global_messages_delivered_total[%s]))`, window)
}
