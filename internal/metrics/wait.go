package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"k8s.io/apimachinery/pkg/util/wait"
)

// WaitReady polls src.Ping until it succeeds, ctx is cancelled, or timeout
// elapses. The first attempt is immediate.
func WaitReady(ctx context.Context, src Source, interval, timeout time.Duration, log zerolog.Logger) error {
	attempt := 0
	err := wait.PollUntilContextTimeout(ctx, interval, timeout, true, func(ctx context.Context) (bool, error) {
		attempt++
		if err := src.Ping(ctx); err != nil {
			log.Warn().Err(err).Int("attempt", attempt).Str("backend", src.BackendType()).Msg("rabbitmq not ready, retrying")
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("%w: not ready after %s: %w", ErrBrokerUnreachable, timeout, err)
	}
	log.Info().Int("attempts", attempt).Str("backend", src.BackendType()).Msg("rabbitmq is ready")
	return nil
}
