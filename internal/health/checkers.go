// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/ManuGH/agribot/internal/clock"
)

// FuncChecker adapts a function.
type FuncChecker struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

// NewFuncChecker wraps fn under name.
func NewFuncChecker(name string, fn func(ctx context.Context) CheckResult) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

func (c *FuncChecker) Name() string                          { return c.name }
func (c *FuncChecker) Check(ctx context.Context) CheckResult { return c.fn(ctx) }

// TickChecker reports unhealthy when the tick loop has stalled.
type TickChecker struct {
	lastTick func() time.Time
	maxAge   time.Duration
	clock    clock.Clock
}

// NewTickChecker flags a loop whose last tick is older than maxAge.
func NewTickChecker(lastTick func() time.Time, maxAge time.Duration, clk clock.Clock) *TickChecker {
	if clk == nil {
		clk = clock.Real{}
	}
	return &TickChecker{lastTick: lastTick, maxAge: maxAge, clock: clk}
}

func (c *TickChecker) Name() string { return "tick_loop" }

func (c *TickChecker) Check(context.Context) CheckResult {
	last := c.lastTick()
	if last.IsZero() {
		return CheckResult{Status: StatusDegraded, Message: "no tick yet"}
	}
	if age := c.clock.Now().Sub(last); age > c.maxAge {
		return CheckResult{
			Status: StatusUnhealthy,
			Error:  fmt.Sprintf("last tick %s ago", age.Round(time.Millisecond)),
		}
	}
	return CheckResult{Status: StatusHealthy}
}

// WorkflowChecker maps the workflow state and last error kind to a result.
type WorkflowChecker struct {
	snapshot func() (state string, errorKind string, recoverable bool)
}

// NewWorkflowChecker reads the workflow through snapshot.
func NewWorkflowChecker(snapshot func() (state, errorKind string, recoverable bool)) *WorkflowChecker {
	return &WorkflowChecker{snapshot: snapshot}
}

func (c *WorkflowChecker) Name() string { return "workflow" }

func (c *WorkflowChecker) Check(context.Context) CheckResult {
	state, kind, recoverable := c.snapshot()
	switch {
	case kind != "" && !recoverable:
		return CheckResult{Status: StatusUnhealthy, Message: state, Error: kind}
	case state == "ERROR" || kind != "":
		return CheckResult{Status: StatusDegraded, Message: state, Error: kind}
	default:
		return CheckResult{Status: StatusHealthy, Message: state}
	}
}

// FileChecker checks that an optional input file exists and is non-empty.
type FileChecker struct {
	name string
	path string
}

// NewFileChecker checks path. An empty path is healthy.
func NewFileChecker(name, path string) *FileChecker {
	return &FileChecker{name: name, path: path}
}

func (c *FileChecker) Name() string { return c.name }

func (c *FileChecker) Check(context.Context) CheckResult {
	if c.path == "" {
		return CheckResult{Status: StatusHealthy, Message: "not configured (optional)"}
	}
	info, err := os.Stat(c.path)
	switch {
	case os.IsNotExist(err):
		return CheckResult{Status: StatusDegraded, Error: "file not found", Message: c.path}
	case err != nil:
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	case info.IsDir():
		return CheckResult{Status: StatusUnhealthy, Error: "expected file, got directory"}
	case info.Size() == 0:
		return CheckResult{Status: StatusDegraded, Message: "file is empty"}
	}
	return CheckResult{Status: StatusHealthy}
}
