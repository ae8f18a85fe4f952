package source

import (
	"context"
	"log/slog"
	"time"
)

// Write is a single pending status write.
type Write struct {
	RecordID string
	Fields   Fields
}

// BatchResult counts the outcome of a batched write-back.
type BatchResult struct {
	Written int
	Failed  int
}

// BatchWriter sends writes in groups of Size, pausing Delay between groups
// so the external API's rate limit is respected. Individual failures are
// logged and counted, never fatal.
type BatchWriter struct {
	src    Source
	size   int
	delay  time.Duration
	logger *slog.Logger

	// OnWrite, if set, is called after every attempted write.
	OnWrite func(err error)
}

// NewBatchWriter returns a BatchWriter. A size below 1 writes one record per batch.
func NewBatchWriter(src Source, size int, delay time.Duration, logger *slog.Logger) *BatchWriter {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchWriter{src: src, size: size, delay: delay, logger: logger}
}

// WriteAll performs writes in order. It stops early only when ctx is done.
func (w *BatchWriter) WriteAll(ctx context.Context, writes []Write) (BatchResult, error) {
	var res BatchResult
	for start := 0; start < len(writes); start += w.size {
		if start > 0 && w.delay > 0 {
			t := time.NewTimer(w.delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return res, ctx.Err()
			case <-t.C:
			}
		}
		end := min(start+w.size, len(writes))
		for _, wr := range writes[start:end] {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			err := w.src.WriteStatus(ctx, wr.RecordID, wr.Fields)
			if w.OnWrite != nil {
				w.OnWrite(err)
			}
			if err != nil {
				res.Failed++
				w.logger.Warn("status write failed", "record_id", wr.RecordID, "error", err)
				continue
			}
			res.Written++
		}
	}
	return res, nil
}
