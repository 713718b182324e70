package rpcguard

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrOpen is returned by Allow while the breaker is rejecting calls.
var ErrOpen = errors.New("rpc circuit open")

// Breaker is a consecutive-failure circuit breaker for chain RPC calls. It
// opens after FailureThreshold consecutive failures and lets a single probe
// through after Cooldown; a successful probe closes it again. A dead RPC
// endpoint then fails validation fast instead of stalling every connection
// on a dial timeout.
type Breaker struct {
	threshold int
	cooldown  time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
	halfOpen bool
}

// Config holds breaker configuration.
type Config struct {
	FailureThreshold int
	Cooldown         time.Duration
	Logger           *zap.Logger
}

// New creates a breaker. Threshold and cooldown must be positive.
func New(cfg *Config) (*Breaker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.FailureThreshold <= 0 {
		return nil, fmt.Errorf("failure threshold must be positive")
	}
	if cfg.Cooldown <= 0 {
		return nil, fmt.Errorf("cooldown must be positive")
	}

	StateGauge.Set(0)

	return &Breaker{
		threshold: cfg.FailureThreshold,
		cooldown:  cfg.Cooldown,
		logger:    cfg.Logger,
	}, nil
}

// Allow reports whether a call may proceed. While open it returns ErrOpen
// until the cooldown elapses, then admits one half-open probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}

	if time.Since(b.openedAt) < b.cooldown {
		RejectedTotal.Inc()
		return ErrOpen
	}

	if b.halfOpen {
		// A probe is already in flight.
		RejectedTotal.Inc()
		return ErrOpen
	}

	b.halfOpen = true
	b.logger.Info("rpc-breaker-half-open")
	return nil
}

// Success records a successful call, closing the breaker.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.open {
		b.logger.Info("rpc-breaker-closed")
		StateGauge.Set(0)
	}

	b.failures = 0
	b.open = false
	b.halfOpen = false
}

// Failure records a failed call, opening the breaker once the consecutive
// failure count reaches the threshold.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.halfOpen = false

	if b.open {
		// A failed half-open probe restarts the cooldown.
		b.openedAt = time.Now()
		return
	}

	if b.failures >= b.threshold {
		b.open = true
		b.openedAt = time.Now()
		StateGauge.Set(1)
		OpensTotal.Inc()

		b.logger.Warn("rpc-breaker-opened",
			zap.Int("consecutive-failures", b.failures),
			zap.Duration("cooldown", b.cooldown))
	}
}
