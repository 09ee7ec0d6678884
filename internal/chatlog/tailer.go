// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package chatlog follows the game client log file and forwards chat lines
// to a signal board.
package chatlog

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	xglog "github.com/ManuGH/agribot/internal/log"
)

// Sink receives chat lines. signals.Board satisfies it.
type Sink interface {
	Publish(line string) bool
}

// chatMarker precedes chat text in client log lines:
// "[12:00:01] [Render thread/INFO]: [CHAT] hello".
const chatMarker = "[CHAT] "

// Options configure a Tailer.
type Options struct {
	Path string
	// Encoding is "utf-8" (default) or "cp1252".
	Encoding string
	// PollInterval is the fallback check interval when no fs event arrives.
	PollInterval time.Duration
	// ChatOnly forwards only lines carrying the chat marker, stripped of the prefix.
	ChatOnly bool
}

// Tailer forwards new lines appended to a log file. It starts at the end of
// the existing file and rewinds when the file shrinks (a new session log).
type Tailer struct {
	opts   Options
	sink   Sink
	dec    *encoding.Decoder
	logger zerolog.Logger

	offset  int64
	partial []byte
}

// New returns a Tailer. It does not touch the file until Run.
func New(opts Options, sink Sink) (*Tailer, error) {
	if opts.Path == "" {
		return nil, errors.New("chatlog: empty path")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 250 * time.Millisecond
	}
	var enc encoding.Encoding
	switch strings.ToLower(opts.Encoding) {
	case "", "utf-8", "utf8":
		enc = unicode.UTF8
	case "cp1252", "windows-1252":
		enc = charmap.Windows1252
	default:
		return nil, fmt.Errorf("chatlog: unsupported encoding %q", opts.Encoding)
	}
	return &Tailer{
		opts:   opts,
		sink:   sink,
		dec:    enc.NewDecoder(),
		logger: xglog.WithComponent("chatlog"),
	}, nil
}

// Run follows the file until ctx is done.
func (t *Tailer) Run(ctx context.Context) error {
	if info, err := os.Stat(t.opts.Path); err == nil {
		t.offset = info.Size()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory so a recreated file is noticed.
	if err := watcher.Add(filepath.Dir(t.opts.Path)); err != nil {
		t.logger.Warn().Err(err).Str("event", "chatlog.watch_failed").Msg("falling back to polling")
	}

	t.logger.Info().
		Str("event", "chatlog.started").
		Str(xglog.FieldPath, t.opts.Path).
		Int64("offset", t.offset).
		Msg("following client log")

	ticker := time.NewTicker(t.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			t.logger.Info().Str("event", "chatlog.stopped").Msg("chat log tailer stopped")
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(t.opts.Path) {
				continue
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
				t.rewind()
			}
			t.poll()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Warn().Err(err).Str("event", "chatlog.watch_error").Msg("watcher error")
		case <-ticker.C:
			t.poll()
		}
	}
}

func (t *Tailer) rewind() {
	t.offset = 0
	t.partial = t.partial[:0]
}

// poll reads everything appended since the last offset.
func (t *Tailer) poll() {
	f, err := os.Open(t.opts.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			t.logger.Debug().Err(err).Msg("open client log")
		}
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return
	}
	if info.Size() < t.offset {
		t.logger.Info().Str("event", "chatlog.rotated").Msg("client log truncated, rewinding")
		t.rewind()
	}
	if info.Size() == t.offset {
		return
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return
	}
	n, err := t.consume(f)
	t.offset += n
	if err != nil {
		t.logger.Debug().Err(err).Msg("read client log")
	}
}

// consume splits r into lines, keeping an unterminated tail for the next poll.
func (t *Tailer) consume(r io.Reader) (int64, error) {
	var read int64
	br := bufio.NewReader(r)
	for {
		chunk, err := br.ReadBytes('\n')
		read += int64(len(chunk))
		t.partial = append(t.partial, chunk...)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return read, nil
			}
			return read, err
		}
		line := bytes.TrimRight(t.partial, "\r\n")
		t.partial = t.partial[:0]
		t.emit(line)
	}
}

func (t *Tailer) emit(raw []byte) {
	decoded, err := t.dec.Bytes(raw)
	if err != nil {
		decoded = raw
	}
	line := strings.TrimSpace(string(decoded))
	if line == "" {
		return
	}
	if t.opts.ChatOnly {
		i := strings.Index(line, chatMarker)
		if i < 0 {
			return
		}
		line = line[i+len(chatMarker):]
	}
	if !t.sink.Publish(line) {
		t.logger.Debug().Str("event", "chatlog.dropped").Msg("signal board full")
	}
}
