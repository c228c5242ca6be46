package audit

import (
	"context"
	"log/slog"
)

// SlogSink writes assignments to a structured logger.
type SlogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a sink logging at Info for clean dispatches and Warn
// for dispatches that ended in an error.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{logger: logger.With("component", "audit")}
}

func (s *SlogSink) Record(ctx context.Context, a Assignment) {
	attrs := []any{
		"id", a.ID,
		"experiment", a.Experiment,
		"service", a.Service,
		"method", a.Method,
		"selected", a.SelectedKey,
		"executed", a.ExecutedKey,
		"fallback", a.Fallback,
	}
	if a.Err != nil {
		attrs = append(attrs, "error", a.Err.Error())
		s.logger.WarnContext(ctx, "trial assignment", attrs...)
		return
	}
	s.logger.InfoContext(ctx, "trial assignment", attrs...)
}

// Fanout dispatches each assignment to every sink in order. A panicking sink
// is skipped and logged; it never reaches the dispatch path.
type Fanout struct {
	sinks  []Sink
	logger *slog.Logger
}

// NewFanout combines sinks. logger receives panic diagnostics; nil means
// slog.Default.
func NewFanout(logger *slog.Logger, sinks ...Sink) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{sinks: sinks, logger: logger.With("component", "audit")}
}

func (f *Fanout) Record(ctx context.Context, a Assignment) {
	for _, s := range f.sinks {
		f.record(ctx, s, a)
	}
}

func (f *Fanout) record(ctx context.Context, s Sink, a Assignment) {
	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("audit sink panicked", "panic", r, "experiment", a.Experiment)
		}
	}()
	s.Record(ctx, a)
}
