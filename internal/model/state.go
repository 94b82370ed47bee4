package model

import "time"

// Direction is the sense of a profile change.
type Direction string

const (
	DirectionNone Direction = "none"
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	return string(d)
}

// StabilityRecord marks which profile has been continuously recommended and
// since when. Since has second precision.
type StabilityRecord struct {
	Profile string    `json:"stable_profile"`
	Since   time.Time `json:"stable_since"`
}

// IsZero reports whether no recommendation has been tracked yet.
func (r StabilityRecord) IsZero() bool {
	return r.Profile == "" && r.Since.IsZero()
}

// ScaleEvent is the last successful application of a profile.
type ScaleEvent struct {
	Profile   string    `json:"last_scaled_profile"`
	AppliedAt time.Time `json:"last_scale_time"`
}

// PersistedState is everything the scaler keeps between ticks and restarts.
type PersistedState struct {
	Stability StabilityRecord

	// LastScale is nil until the first successful apply.
	LastScale *ScaleEvent
}
