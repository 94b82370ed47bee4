package model

import (
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/api/resource"
)

// Unknown is reported as the current profile when the managed resource's live
// CPU request does not match any configured profile. It never equals a
// configured profile name.
const Unknown = "UNKNOWN"

var (
	ErrNoProfiles        = errors.New("profile table is empty")
	ErrDuplicateProfile  = errors.New("duplicate profile name")
	ErrReservedProfile   = errors.New("profile name is reserved")
	ErrLowestThresholds  = errors.New("lowest profile must not define thresholds")
	ErrInvalidQuantity   = errors.New("invalid resource quantity")
	ErrNegativeThreshold = errors.New("threshold must be non-negative")
)

// Resources is a CPU/memory request pair expressed as Kubernetes quantities.
type Resources struct {
	CPU    string `json:"cpu"`
	Memory string `json:"memory"`
}

// Profile is a named resource tier with optional load thresholds that
// recommend promotion into it. A nil threshold is unset; an explicit zero is
// a real threshold.
type Profile struct {
	Name           string   `json:"name"`
	CPU            string   `json:"cpu"`
	Memory         string   `json:"memory"`
	QueueThreshold *float64 `json:"queue_threshold,omitempty"`
	RateThreshold  *float64 `json:"rate_threshold,omitempty"`
}

// Resources returns the CPU/memory pair of the profile.
func (p Profile) Resources() Resources {
	return Resources{CPU: p.CPU, Memory: p.Memory}
}

// HasThresholds reports whether any threshold is set.
func (p Profile) HasThresholds() bool {
	return p.QueueThreshold != nil || p.RateThreshold != nil
}

// Threshold returns a pointer to v, for building profiles in code.
func Threshold(v float64) *float64 {
	return &v
}

// ProfileTable is the ordered, immutable profile catalog. Position is
// priority: index 0 is the lowest tier and the default fallback.
type ProfileTable struct {
	profiles []Profile
	index    map[string]int
	byCPU    map[int64]string
}

// NewProfileTable validates profiles and builds the lookup maps.
//
// When two profiles share a CPU value the later-declared one owns the reverse
// mapping.
func NewProfileTable(profiles []Profile) (*ProfileTable, error) {
	if len(profiles) == 0 {
		return nil, ErrNoProfiles
	}

	t := &ProfileTable{
		profiles: make([]Profile, len(profiles)),
		index:    make(map[string]int, len(profiles)),
		byCPU:    make(map[int64]string, len(profiles)),
	}
	copy(t.profiles, profiles)

	for i, p := range t.profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("profile %d: name is required", i)
		}
		if p.Name == Unknown {
			return nil, fmt.Errorf("%w: %q", ErrReservedProfile, p.Name)
		}
		if _, dup := t.index[p.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateProfile, p.Name)
		}
		if i == 0 && p.HasThresholds() {
			return nil, fmt.Errorf("%w: %q", ErrLowestThresholds, p.Name)
		}
		if (p.QueueThreshold != nil && *p.QueueThreshold < 0) || (p.RateThreshold != nil && *p.RateThreshold < 0) {
			return nil, fmt.Errorf("%w: %q", ErrNegativeThreshold, p.Name)
		}

		cpu, err := resource.ParseQuantity(p.CPU)
		if err != nil {
			return nil, fmt.Errorf("%w: profile %q cpu %q: %v", ErrInvalidQuantity, p.Name, p.CPU, err)
		}
		if _, err := resource.ParseQuantity(p.Memory); err != nil {
			return nil, fmt.Errorf("%w: profile %q memory %q: %v", ErrInvalidQuantity, p.Name, p.Memory, err)
		}

		t.index[p.Name] = i
		t.byCPU[cpu.MilliValue()] = p.Name
	}

	return t, nil
}

// Len returns the number of profiles.
func (t *ProfileTable) Len() int {
	return len(t.profiles)
}

// At returns the profile at priority i.
func (t *ProfileTable) At(i int) Profile {
	return t.profiles[i]
}

// Lowest returns the fallback profile.
func (t *ProfileTable) Lowest() Profile {
	return t.profiles[0]
}

// Highest returns the top tier.
func (t *ProfileTable) Highest() Profile {
	return t.profiles[len(t.profiles)-1]
}

// Profiles returns a copy of the ordered profiles.
func (t *ProfileTable) Profiles() []Profile {
	out := make([]Profile, len(t.profiles))
	copy(out, t.profiles)
	return out
}

// Names returns profile names in priority order.
func (t *ProfileTable) Names() []string {
	names := make([]string, len(t.profiles))
	for i, p := range t.profiles {
		names[i] = p.Name
	}
	return names
}

// Lookup returns the profile with the given name.
func (t *ProfileTable) Lookup(name string) (Profile, bool) {
	i, ok := t.index[name]
	if !ok {
		return Profile{}, false
	}
	return t.profiles[i], true
}

// Priority returns the position of name in the ladder, or -1 for names that
// are not configured (including Unknown).
func (t *ProfileTable) Priority(name string) int {
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// ProfileForCPU maps a live CPU request to a profile name. Quantities are
// compared canonically, so "1000m" and "1" resolve to the same profile.
// Empty or unmatched values return Unknown.
func (t *ProfileTable) ProfileForCPU(cpu string) string {
	if cpu == "" {
		return Unknown
	}
	q, err := resource.ParseQuantity(cpu)
	if err != nil {
		return Unknown
	}
	if name, ok := t.byCPU[q.MilliValue()]; ok {
		return name
	}
	return Unknown
}

// Direction returns the scaling direction for moving from current to target.
// An unconfigured current profile ranks below every configured one.
func (t *ProfileTable) Direction(current, target string) Direction {
	if current == target {
		return DirectionNone
	}
	if t.Priority(target) > t.Priority(current) {
		return DirectionUp
	}
	return DirectionDown
}
