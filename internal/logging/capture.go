package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// Entry is one captured log line as returned in debug responses.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Logger  string         `json:"logger,omitempty"`
	Message string         `json:"message"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Capture tees a logger into an in-memory sink so a single request's logs can be
// echoed back to the caller.
type Capture struct {
	logs *observer.ObservedLogs
}

// NewCapture wraps base so every entry at level or above is also recorded.
func NewCapture(base *zap.Logger, level zapcore.Level) (*zap.Logger, *Capture) {
	if base == nil {
		base = zap.NewNop()
	}
	core, logs := observer.New(level)
	logger := base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, core)
	}))
	return logger, &Capture{logs: logs}
}

// Entries returns everything captured so far.
func (c *Capture) Entries() []Entry {
	if c == nil || c.logs == nil {
		return nil
	}
	all := c.logs.All()
	out := make([]Entry, 0, len(all))
	for _, e := range all {
		entry := Entry{
			Time:    e.Time,
			Level:   e.Level.String(),
			Logger:  e.LoggerName,
			Message: e.Message,
		}
		if fields := e.ContextMap(); len(fields) > 0 {
			entry.Fields = fields
		}
		out = append(out, entry)
	}
	return out
}
