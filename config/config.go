// Package config defines the per-component configuration structs (spec §5,
// §7 defaults) and the environment-variable loader (spec §6). Each struct
// carries exactly the fields its owning component needs, with a Default
// constructor and a Validate method — mirrored on the teacher's
// config.Parameters / DefaultParams / Validate shape.
package config

import (
	"errors"
	"time"
)

var (
	ErrInvalidFanout       = errors.New("config: gossip fanout must be >= 1")
	ErrInvalidInterval     = errors.New("config: interval must be positive")
	ErrInvalidMaxRetries   = errors.New("config: max retries must be >= 1")
	ErrInvalidRateLimit    = errors.New("config: requests_per_second and burst_size must be positive")
	ErrInvalidThresholds   = errors.New("config: failure/success thresholds must be >= 1")
	ErrInvalidRetention    = errors.New("config: outbound retention must be positive")
)

// Gossip configures the gossip engine (C5).
type Gossip struct {
	Fanout                 int
	IntervalMs             int64
	AntiEntropyIntervalMs  int64
	MessageExpiryMs        int64
	MaxRetries             int
	CryptographicSelection bool
	Seed                   int64
	LoadFactor             float64
	Backoff                Backoff
}

// DefaultGossip returns spec §4.5's stated defaults.
func DefaultGossip() Gossip {
	return Gossip{
		Fanout:                3,
		IntervalMs:            100,
		AntiEntropyIntervalMs: 5000,
		MessageExpiryMs:       60_000,
		MaxRetries:            5,
		CryptographicSelection: false,
		Seed:                  0,
		LoadFactor:             1.0,
		Backoff:               DefaultBackoff(),
	}
}

func (g Gossip) Validate() error {
	if g.Fanout < 1 {
		return ErrInvalidFanout
	}
	if g.IntervalMs <= 0 || g.AntiEntropyIntervalMs <= 0 {
		return ErrInvalidInterval
	}
	if g.MaxRetries < 1 {
		return ErrInvalidMaxRetries
	}
	return nil
}

// RateLimit configures the token bucket + sliding window (C7).
type RateLimit struct {
	RequestsPerSecond float64
	BurstSize         int
	WindowLimit       int
	WindowSize        time.Duration
	FailureThreshold  int
	SuccessThreshold  int
	BreakerTimeout    time.Duration
	MaxHalfOpen       int
}

// DefaultRateLimit returns spec §4.7/§8 scenario S6's defaults.
func DefaultRateLimit() RateLimit {
	return RateLimit{
		RequestsPerSecond: 50,
		BurstSize:         100,
		WindowLimit:       1000,
		WindowSize:        time.Second,
		FailureThreshold:  5,
		SuccessThreshold:  2,
		BreakerTimeout:    1000 * time.Millisecond,
		MaxHalfOpen:       1,
	}
}

func (r RateLimit) Validate() error {
	if r.RequestsPerSecond <= 0 || r.BurstSize <= 0 {
		return ErrInvalidRateLimit
	}
	if r.FailureThreshold < 1 || r.SuccessThreshold < 1 {
		return ErrInvalidThresholds
	}
	return nil
}

// Sync configures the sync coordinator (C9).
type Sync struct {
	OutboundRetentionMs     int64
	MaxQueuePrePromote      int
	SnapshotIntervalMs      int64
	SnapshotDir             string
	AllowRecoverFromScratch bool
	MaxStoreRetries         int
	Backoff                 Backoff
}

// DefaultSync returns the coordinator's defaults.
func DefaultSync() Sync {
	return Sync{
		OutboundRetentionMs:     24 * 60 * 60 * 1000,
		MaxQueuePrePromote:      1000,
		SnapshotIntervalMs:      30_000,
		SnapshotDir:             "",
		AllowRecoverFromScratch: false,
		MaxStoreRetries:         3,
		Backoff:                 DefaultBackoff(),
	}
}

func (s Sync) Validate() error {
	if s.OutboundRetentionMs <= 0 {
		return ErrInvalidRetention
	}
	if s.MaxStoreRetries < 1 {
		return ErrInvalidMaxRetries
	}
	return nil
}

// Backoff configures retry policy for Transient/Timeout/RateLimited
// errors (spec §7).
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	JitterFrac   float64
}

// DefaultBackoff returns spec §7's stated cap (60s, <=10% jitter).
func DefaultBackoff() Backoff {
	return Backoff{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     60 * time.Second,
		JitterFrac:   0.10,
	}
}

