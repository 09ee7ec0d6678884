// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package signals carries chat lines observed on other goroutines to the
// tick thread.
//
// Producers call Publish, which never blocks. The tick thread drains the
// bounded channel when it polls with Match; a match consumes the line so
// each observed signal triggers at most once.
package signals

import (
	"regexp"
	"sync"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/agribot/internal/log"
	"github.com/ManuGH/agribot/internal/metrics"
)

// DefaultCapacity bounds both the channel and the retained lines.
const DefaultCapacity = 128

// Board is a bounded mailbox of chat lines with pattern polling.
type Board struct {
	in     chan string
	keep   int
	logger zerolog.Logger

	// Owned by the consumer goroutine.
	lines []string
	cache map[string]*regexp.Regexp

	dropMu  sync.Mutex
	dropped int
}

// NewBoard returns a board holding at most capacity pending lines.
func NewBoard(capacity int) *Board {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Board{
		in:     make(chan string, capacity),
		keep:   capacity,
		logger: xglog.WithComponent("signals"),
		cache:  make(map[string]*regexp.Regexp),
	}
}

// Publish offers a line. It returns false when the board is full and the
// line was dropped. Safe for concurrent use.
func (b *Board) Publish(line string) bool {
	select {
	case b.in <- line:
		return true
	default:
		b.dropMu.Lock()
		b.dropped++
		b.dropMu.Unlock()
		metrics.RecordChatSignalDropped()
		return false
	}
}

// Dropped returns how many lines were lost to back-pressure.
func (b *Board) Dropped() int {
	b.dropMu.Lock()
	defer b.dropMu.Unlock()
	return b.dropped
}

// Drain moves pending lines into the retained buffer, discarding the oldest
// beyond capacity. Consumer goroutine only.
func (b *Board) Drain() int {
	n := 0
	for {
		select {
		case line := <-b.in:
			b.lines = append(b.lines, line)
			n++
		default:
			if over := len(b.lines) - b.keep; over > 0 {
				b.lines = append(b.lines[:0], b.lines[over:]...)
			}
			return n
		}
	}
}

// Match drains, then reports whether any retained line matches the regular
// expression pattern. Matching lines are consumed. An invalid pattern never
// matches. Consumer goroutine only.
func (b *Board) Match(pattern string) bool {
	if pattern == "" {
		return false
	}
	b.Drain()
	re, ok := b.cache[pattern]
	if !ok {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			b.logger.Warn().Err(err).Str("event", "signals.bad_pattern").Str("pattern", pattern).Msg("ignoring invalid pattern")
		}
		b.cache[pattern] = re
	}
	if re == nil {
		return false
	}

	matched := false
	kept := b.lines[:0]
	for _, line := range b.lines {
		if re.MatchString(line) {
			matched = true
			continue
		}
		kept = append(kept, line)
	}
	b.lines = kept
	return matched
}

// Clear forgets every pending and retained line. Consumer goroutine only.
func (b *Board) Clear() {
	b.Drain()
	b.lines = b.lines[:0]
}

// Pending returns the number of retained lines after draining.
func (b *Board) Pending() int {
	b.Drain()
	return len(b.lines)
}
