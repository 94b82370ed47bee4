package state

import (
	"strconv"
	"time"

	"github.com/guimove/rmqscaler/internal/model"
)

// Keys of the persisted record. Timestamps are Unix seconds.
const (
	KeyStableProfile     = "stable_profile"
	KeyStableSince       = "stable_since"
	KeyLastScaledProfile = "last_scaled_profile"
	KeyLastScaleTime     = "last_scale_time"
)

// Decode builds a PersistedState from raw key/value data. Missing or
// malformed entries decode as absent, so a damaged record restarts the
// debounce instead of wedging the loop.
func Decode(data map[string]string) model.PersistedState {
	var st model.PersistedState

	if profile := data[KeyStableProfile]; profile != "" {
		if since, ok := parseUnix(data[KeyStableSince]); ok {
			st.Stability = model.StabilityRecord{Profile: profile, Since: since}
		}
	}

	if profile := data[KeyLastScaledProfile]; profile != "" {
		if at, ok := parseUnix(data[KeyLastScaleTime]); ok {
			st.LastScale = &model.ScaleEvent{Profile: profile, AppliedAt: at}
		}
	}
	return st
}

// EncodeStability returns the keys written for a stability record.
func EncodeStability(rec model.StabilityRecord) map[string]string {
	return map[string]string{
		KeyStableProfile: rec.Profile,
		KeyStableSince:   formatUnix(rec.Since),
	}
}

// EncodeScaleEvent returns the keys written for a scale event.
func EncodeScaleEvent(ev model.ScaleEvent) map[string]string {
	return map[string]string{
		KeyLastScaledProfile: ev.Profile,
		KeyLastScaleTime:     formatUnix(ev.AppliedAt),
	}
}

func parseUnix(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}, false
	}
	return time.Unix(secs, 0), true
}

func formatUnix(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
