package analyzer

import (
	"context"
	"io"
	"log/slog"
)

// Fallback wraps a Parser so that every failure degrades to the neutral
// result: the visualizer shows nothing instead of an error.
type Fallback struct {
	next   Parser
	logger *slog.Logger
}

func NewFallback(next Parser, logger *slog.Logger) *Fallback {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Fallback{next: next, logger: logger}
}

// Parse never returns an error.
func (f *Fallback) Parse(ctx context.Context, code string) (*Response, error) {
	resp, err := f.next.Parse(ctx, code)
	if err != nil {
		f.logger.Warn("analyzer failed, showing empty program", "error", err)
		return Neutral(), nil
	}
	if resp == nil {
		return Neutral(), nil
	}
	return resp, nil
}
