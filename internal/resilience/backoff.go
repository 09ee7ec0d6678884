// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package resilience

import (
	"errors"
	"math"
	"time"
)

// Backoff computes exponential reconnect delays. Callers retry forever;
// the delay stops growing at MaxDelay.
type Backoff struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Delay returns the wait before retry number attempt (0-based), capped at MaxDelay.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		return b.InitialDelay
	}
	d := float64(b.InitialDelay) * math.Pow(b.Multiplier, float64(attempt))
	if d > float64(b.MaxDelay) || math.IsInf(d, 0) || math.IsNaN(d) {
		return b.MaxDelay
	}
	return time.Duration(d)
}

// Validate checks the policy.
func (b Backoff) Validate() error {
	switch {
	case b.InitialDelay <= 0:
		return errors.New("InitialDelay must be positive")
	case b.MaxDelay < b.InitialDelay:
		return errors.New("InitialDelay cannot be greater than MaxDelay")
	case b.Multiplier < 1:
		return errors.New("Multiplier must be at least 1")
	}
	return nil
}
