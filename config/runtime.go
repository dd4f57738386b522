package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/luxfi/agentsync/obs"
)

// recognized is the env var allow-list from spec §6. Anything else present
// in the process environment with an AGENTSYNC_ prefix is logged as a
// warning, never silently ignored, and never applied.
var recognized = map[string]struct{}{
	"LOG_LEVEL":                {},
	"OUTBOUND_RETENTION_MS":    {},
	"GOSSIP_FANOUT":            {},
	"GOSSIP_INTERVAL_MS":       {},
	"ANTI_ENTROPY_INTERVAL_MS": {},
	"RATE_LIMIT_DEFAULTS":      {},
}

// Runtime is the fully assembled, validated configuration for a process,
// built once at startup from environment variables layered over defaults.
type Runtime struct {
	LogLevel  string
	Gossip    Gossip
	RateLimit RateLimit
	Sync      Sync
}

// DefaultRuntime returns the zero-config baseline every field of Runtime
// falls back to.
func DefaultRuntime() Runtime {
	return Runtime{
		LogLevel:  "info",
		Gossip:    DefaultGossip(),
		RateLimit: DefaultRateLimit(),
		Sync:      DefaultSync(),
	}
}

// LoadRuntime reads the recognized AGENTSYNC_* environment variables over
// DefaultRuntime(), logging a warning (via logger) for every AGENTSYNC_*
// variable present but not in the recognized set.
func LoadRuntime(environ []string, logger obs.Logger) (Runtime, error) {
	rt := DefaultRuntime()
	if logger == nil {
		logger = obs.NewNoOpLogger()
	}

	const prefix = "AGENTSYNC_"
	for _, kv := range environ {
		eq := strings.IndexByte(kv, '=')
		if eq < 0 || !strings.HasPrefix(kv, prefix) {
			continue
		}
		key := kv[len(prefix):eq]
		val := kv[eq+1:]
		if _, ok := recognized[key]; !ok {
			logger.Warn("unrecognized environment variable ignored", obs.String("key", prefix+key))
			continue
		}
		if err := applyVar(&rt, key, val); err != nil {
			return Runtime{}, err
		}
	}
	if err := rt.Gossip.Validate(); err != nil {
		return Runtime{}, err
	}
	if err := rt.RateLimit.Validate(); err != nil {
		return Runtime{}, err
	}
	if err := rt.Sync.Validate(); err != nil {
		return Runtime{}, err
	}
	return rt, nil
}

func applyVar(rt *Runtime, key, val string) error {
	switch key {
	case "LOG_LEVEL":
		rt.LogLevel = val
	case "OUTBOUND_RETENTION_MS":
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return err
		}
		rt.Sync.OutboundRetentionMs = n
	case "GOSSIP_FANOUT":
		n, err := strconv.Atoi(val)
		if err != nil {
			return err
		}
		rt.Gossip.Fanout = n
	case "GOSSIP_INTERVAL_MS":
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return err
		}
		rt.Gossip.IntervalMs = n
	case "ANTI_ENTROPY_INTERVAL_MS":
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return err
		}
		rt.Gossip.AntiEntropyIntervalMs = n
	case "RATE_LIMIT_DEFAULTS":
		var override struct {
			RequestsPerSecond *float64 `json:"requests_per_second"`
			BurstSize         *int     `json:"burst_size"`
		}
		if err := json.Unmarshal([]byte(val), &override); err != nil {
			return err
		}
		if override.RequestsPerSecond != nil {
			rt.RateLimit.RequestsPerSecond = *override.RequestsPerSecond
		}
		if override.BurstSize != nil {
			rt.RateLimit.BurstSize = *override.BurstSize
		}
	}
	return nil
}

// LoadFromOSEnv is the convenience entry point cmd/agentsyncd uses.
func LoadFromOSEnv(logger obs.Logger) (Runtime, error) {
	return LoadRuntime(os.Environ(), logger)
}
