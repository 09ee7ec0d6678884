// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stats

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"
)

// Total is the count for one scope and session kind.
type Total struct {
	Scope string    `json:"scope"`
	Kind  string    `json:"kind"`
	Count int       `json:"count"`
	Last  time.Time `json:"last"`
}

// Report aggregates all completions.
type Report struct {
	Stations int     `json:"stations"`
	Sessions int     `json:"sessions"`
	Totals   []Total `json:"totals"`
}

// Report reads the totals. since filters out older rows when non-zero.
func (s *Store) Report(ctx context.Context, since time.Time) (Report, error) {
	var cutoff int64
	if !since.IsZero() {
		cutoff = since.UnixMilli()
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT scope, kind, COUNT(*), MAX(recorded_at_ms)
		FROM completions
		WHERE recorded_at_ms >= ?
		GROUP BY scope, kind`, cutoff)
	if err != nil {
		return Report{}, fmt.Errorf("stats: query totals: %w", err)
	}
	defer rows.Close()

	var r Report
	for rows.Next() {
		var t Total
		var lastMs int64
		if err := rows.Scan(&t.Scope, &t.Kind, &t.Count, &lastMs); err != nil {
			return Report{}, err
		}
		t.Last = time.UnixMilli(lastMs).UTC()
		switch t.Scope {
		case scopeStation:
			r.Stations += t.Count
		case scopeSession:
			r.Sessions += t.Count
		}
		r.Totals = append(r.Totals, t)
	}
	if err := rows.Err(); err != nil {
		return Report{}, err
	}
	sort.Slice(r.Totals, func(i, j int) bool {
		if r.Totals[i].Scope != r.Totals[j].Scope {
			return r.Totals[i].Scope < r.Totals[j].Scope
		}
		return r.Totals[i].Kind < r.Totals[j].Kind
	})
	return r, nil
}

// WriteText prints r as an aligned table.
func (r Report) WriteText(w io.Writer) error {
	if _, err := fmt.Fprintf(w, "stations: %d\nsessions: %d\n", r.Stations, r.Sessions); err != nil {
		return err
	}
	for _, t := range r.Totals {
		if _, err := fmt.Fprintf(w, "  %-8s %-9s %6d  last %s\n",
			t.Scope, t.Kind, t.Count, t.Last.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	return nil
}
