package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Sink records security events. Implementations must tolerate concurrent
// Record calls without losing events.
type Sink interface {
	Record(ctx context.Context, event Event) error
}

// writerSink writes structured JSON lines to a configurable Writer.
type writerSink struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewWriterSink creates a Sink writing one JSON line per event, prefixed
// for easy filtering. A nil writer defaults to os.Stdout.
func NewWriterSink(w io.Writer) Sink {
	if w == nil {
		w = os.Stdout
	}
	return &writerSink{writer: w}
}

func (s *writerSink) Record(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bytes, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = s.writer.Write(append([]byte("AUDIT: "), append(bytes, '\n')...))
	return err
}

// slogSink mirrors events into the process logger at warn level for
// failures and info level for acceptance.
type slogSink struct {
	logger *slog.Logger
}

// NewSlogSink creates a Sink logging through the given logger. A nil
// logger uses slog.Default.
func NewSlogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogSink{logger: logger}
}

func (s *slogSink) Record(ctx context.Context, event Event) error {
	level := slog.LevelWarn
	if event.Kind == KindSubmissionOK {
		level = slog.LevelInfo
	}
	s.logger.Log(ctx, level, "security event",
		"event_type", string(event.Kind),
		"client_ip", event.ClientIP,
		"details", event.Details,
	)
	return nil
}

// EventWriter is the narrow persistence contract the audit package needs;
// the SQL stores satisfy it with their security-events table.
type EventWriter interface {
	InsertSecurityEvent(ctx context.Context, event Event) error
}

// storeSink persists events through an EventWriter.
type storeSink struct {
	store EventWriter
}

// NewStoreSink creates a Sink that persists events durably.
func NewStoreSink(store EventWriter) Sink {
	return &storeSink{store: store}
}

func (s *storeSink) Record(ctx context.Context, event Event) error {
	return s.store.InsertSecurityEvent(ctx, event)
}

// Fanout records each event to every sink. Sink errors are collected but
// do not stop later sinks; the first error is returned.
type Fanout []Sink

func (f Fanout) Record(ctx context.Context, event Event) error {
	var first error
	for _, sink := range f {
		if err := sink.Record(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
