package model

import "time"

// Snapshot is a point-in-time view of broker load.
type Snapshot struct {
	CollectedAt   time.Time `json:"collected_at"`
	TotalMessages float64   `json:"total_messages"`
	MaxQueueDepth float64   `json:"max_queue_depth"`
	PublishRate   float64   `json:"publish_rate"`
	ConsumeRate   float64   `json:"consume_rate"`
	BacklogRate   float64   `json:"backlog_rate"`
}

// NewSnapshot builds a Snapshot and derives BacklogRate, which is negative
// when consumers outpace publishers.
func NewSnapshot(totalMessages, maxQueueDepth, publishRate, consumeRate float64) Snapshot {
	return Snapshot{
		CollectedAt:   time.Now(),
		TotalMessages: totalMessages,
		MaxQueueDepth: maxQueueDepth,
		PublishRate:   publishRate,
		ConsumeRate:   consumeRate,
		BacklogRate:   publishRate - consumeRate,
	}
}
