package sinks

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/bank-product-crawler/internal/progress"
)

// LogSink writes every event as a debug-level structured log line.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	if !s.logger.Core().Enabled(zapcore.DebugLevel) {
		return nil
	}
	for _, evt := range batch {
		s.logger.Debug("progress event",
			zap.Stringer("run_id", evt.RunUUID()),
			zap.String("stage", string(evt.Stage)),
			zap.String("source", evt.Source),
			zap.String("product_id", evt.ProductID),
			zap.String("url", evt.URL),
			zap.Int64("bytes", evt.Bytes),
			zap.String("status_class", string(evt.StatusClass)),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
