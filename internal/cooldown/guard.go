// Package cooldown vetoes profile changes that follow the previous change too
// closely.
package cooldown

import (
	"fmt"
	"time"

	"github.com/guimove/rmqscaler/internal/model"
)

// Default cooldown windows. They are shorter than the debounce windows.
const (
	DefaultScaleUpCooldown   = 15 * time.Second
	DefaultScaleDownCooldown = 60 * time.Second
)

// Option configures a Guard.
type Option func(*Guard)

// WithScaleUpCooldown sets the minimum time after a change before scaling up.
func WithScaleUpCooldown(d time.Duration) Option {
	return func(g *Guard) { g.up = d }
}

// WithScaleDownCooldown sets the minimum time after a change before scaling
// down.
func WithScaleDownCooldown(d time.Duration) Option {
	return func(g *Guard) { g.down = d }
}

// Guard checks the time since the last applied scale event.
type Guard struct {
	up   time.Duration
	down time.Duration
}

// NewGuard creates a Guard with the given options.
func NewGuard(opts ...Option) *Guard {
	g := &Guard{up: DefaultScaleUpCooldown, down: DefaultScaleDownCooldown}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Window returns the cooldown for a direction.
func (g *Guard) Window(d model.Direction) time.Duration {
	switch d {
	case model.DirectionUp:
		return g.up
	case model.DirectionDown:
		return g.down
	default:
		return 0
	}
}

// Allow reports whether a change in direction d may proceed at now given the
// last applied event. A nil event always passes.
func (g *Guard) Allow(last *model.ScaleEvent, d model.Direction, now time.Time) (bool, string) {
	if last == nil || last.AppliedAt.IsZero() {
		return true, "no previous scale event"
	}
	window := g.Window(d)
	if window <= 0 {
		return true, "no cooldown for direction " + d.String()
	}

	since := now.Sub(last.AppliedAt)
	if since < window {
		return false, fmt.Sprintf("scale-%s cooldown: last change to %s was %s ago, need %s (%s remaining)",
			d, last.Profile, since.Truncate(time.Second), window, (window - since).Round(time.Second))
	}
	return true, fmt.Sprintf("last change to %s was %s ago", last.Profile, since.Truncate(time.Second))
}
