// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManual(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewManual(start)
	m.Advance(90 * time.Second)
	assert.Equal(t, start.Add(90*time.Second), m.Now())
	m.Set(start)
	assert.Equal(t, start, m.Now())
}

func TestTicks(t *testing.T) {
	tick := 50 * time.Millisecond
	assert.Equal(t, 0, Ticks(0, tick))
	assert.Equal(t, 0, Ticks(-time.Second, tick))
	assert.Equal(t, 0, Ticks(time.Second, 0))
	assert.Equal(t, 1, Ticks(time.Millisecond, tick))
	assert.Equal(t, 20, Ticks(time.Second, tick))
	assert.Equal(t, 21, Ticks(time.Second+time.Millisecond, tick))
}
