package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

const (
	legacyDefaultCPU            = "1000m"
	legacyDefaultMemory         = "2Gi"
	legacyDefaultQueueThreshold = 1000
	legacyDefaultRateThreshold  = 100
)

// ApplyLegacyEnv overlays the flat environment contract used by earlier
// scaler deployments (PROFILE_NAMES, RMQ_HOST, CHECK_INTERVAL_SECONDS, ...).
// Variables that are not set leave cfg untouched.
func ApplyLegacyEnv(cfg *Config, lookup LookupFunc) error {
	if names, ok := lookup("PROFILE_NAMES"); ok && strings.TrimSpace(names) != "" {
		profiles, err := legacyProfiles(strings.Fields(names), lookup)
		if err != nil {
			return err
		}
		cfg.Profiles = profiles
	} else {
		if err := overrideProfiles(cfg.Profiles, lookup); err != nil {
			return err
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"DEBOUNCE_SCALE_UP_SECONDS", &cfg.Scaling.ScaleUpDebounce},
		{"DEBOUNCE_SCALE_DOWN_SECONDS", &cfg.Scaling.ScaleDownDebounce},
		{"CHECK_INTERVAL_SECONDS", &cfg.Scaling.Interval},
	}
	for _, d := range durations {
		v, ok := lookup(d.key)
		if !ok || v == "" {
			continue
		}
		secs, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return invalid("%s: %q is not an integer", d.key, v)
		}
		*d.dst = time.Duration(secs) * time.Second
	}

	host, hasHost := lookup("RMQ_HOST")
	port, hasPort := lookup("RMQ_PORT")
	if hasHost && host != "" {
		if !hasPort || port == "" {
			port = "15672"
		}
		cfg.RabbitMQ.URL = fmt.Sprintf("http://%s:%s", host, port)
	}
	if v, ok := lookup("RMQ_USER"); ok {
		cfg.RabbitMQ.Username = v
	}
	if v, ok := lookup("RMQ_PASS"); ok {
		cfg.RabbitMQ.Password = v
	}
	if v, ok := lookup("RMQ_SERVICE_NAME"); ok && v != "" {
		cfg.Kubernetes.Target.Name = v
	}
	if v, ok := lookup("NAMESPACE"); ok && v != "" {
		cfg.Kubernetes.Namespace = v
	}
	if v, ok := lookup("CONFIG_MAP_NAME"); ok && v != "" {
		cfg.State.ConfigMap = v
	}
	return nil
}

func legacyProfiles(names []string, lookup LookupFunc) ([]ProfileConfig, error) {
	profiles := make([]ProfileConfig, 0, len(names))
	for i, name := range names {
		p := ProfileConfig{
			Name:   name,
			CPU:    lookupOr(lookup, "PROFILE_"+name+"_CPU", legacyDefaultCPU),
			Memory: lookupOr(lookup, "PROFILE_"+name+"_MEMORY", legacyDefaultMemory),
		}
		if i > 0 {
			q, err := lookupFloat(lookup, "QUEUE_THRESHOLD_"+name, legacyDefaultQueueThreshold)
			if err != nil {
				return nil, err
			}
			r, err := lookupFloat(lookup, "RATE_THRESHOLD_"+name, legacyDefaultRateThreshold)
			if err != nil {
				return nil, err
			}
			p.QueueThreshold = &q
			p.RateThreshold = &r
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// overrideProfiles patches individual fields of already configured profiles.
func overrideProfiles(profiles []ProfileConfig, lookup LookupFunc) error {
	for i := range profiles {
		p := &profiles[i]
		if v, ok := lookup("PROFILE_" + p.Name + "_CPU"); ok && v != "" {
			p.CPU = v
		}
		if v, ok := lookup("PROFILE_" + p.Name + "_MEMORY"); ok && v != "" {
			p.Memory = v
		}
		if i == 0 {
			continue
		}
		if _, ok := lookup("QUEUE_THRESHOLD_" + p.Name); ok {
			q, err := lookupFloat(lookup, "QUEUE_THRESHOLD_"+p.Name, 0)
			if err != nil {
				return err
			}
			p.QueueThreshold = &q
		}
		if _, ok := lookup("RATE_THRESHOLD_" + p.Name); ok {
			r, err := lookupFloat(lookup, "RATE_THRESHOLD_"+p.Name, 0)
			if err != nil {
				return err
			}
			p.RateThreshold = &r
		}
	}
	return nil
}

func lookupOr(lookup LookupFunc, key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func lookupFloat(lookup LookupFunc, key string, fallback float64) (float64, error) {
	v, ok := lookup(key)
	if !ok || strings.TrimSpace(v) == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, invalid("%s: %q is not a number", key, v)
	}
	return f, nil
}
