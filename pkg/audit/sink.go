package audit

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Sink receives entries after they have been durably committed with their request.
type Sink interface {
	Emit(ctx context.Context, requestID string, entry Entry) error
}

// LogSink mirrors committed entries to a structured logger.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink logging through logger (slog.Default() when nil).
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "audit")}
}

func (s *LogSink) Emit(ctx context.Context, requestID string, entry Entry) error {
	s.logger.InfoContext(ctx, entry.Action,
		"request_id", requestID,
		"sequence", entry.Sequence,
		"actor", entry.Actor,
		"actor_role", entry.ActorRole,
		"integrity_hash", entry.IntegrityHash,
	)
	return nil
}

// WriterSink writes each entry as a JSON line prefixed with "AUDIT: " for easy
// filtering by log shippers.
type WriterSink struct {
	mu     sync.Mutex
	writer io.Writer
}

// NewWriterSink creates a sink writing to w (os.Stdout when nil).
func NewWriterSink(w io.Writer) *WriterSink {
	if w == nil {
		w = os.Stdout
	}
	return &WriterSink{writer: w}
}

type writerRecord struct {
	RequestID string `json:"request_id"`
	Entry
}

func (s *WriterSink) Emit(_ context.Context, requestID string, entry Entry) error {
	b, err := json.Marshal(writerRecord{RequestID: requestID, Entry: entry})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.writer.Write(append([]byte("AUDIT: "), append(b, '\n')...))
	return err
}
