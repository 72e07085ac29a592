// Package logging builds the supervisor's structured logger from the
// --log-filter, --backtrace, --trace-spans, and --log-json flags.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configures logger construction; it mirrors the CLI flags
// verbatim so cmd/ghciwatch can build it straight from parsed flags.
type Options struct {
	// Filter is a comma-separated "level" or "name=level" directive list,
	// e.g. "info,session=debug,hooks=warn".
	Filter string
	// Backtrace is one of "0", "1", "full". "0" disables stack traces,
	// "1" attaches them at warn/error, "full" attaches them at every level.
	Backtrace string
	// TraceSpans holds the --trace-spans values (new/enter/exit/close,
	// "none", "active"/"full"), which NewSpanFilter parses. New does not
	// read it, and no component emits span log lines.
	TraceSpans []string
	// JSONPath, if non-empty, tees JSON-encoded entries to this file in
	// addition to the human-readable console output.
	JSONPath string
}

// SpanEvent is a lifecycle point in a cancelable or long-lived operation
// that --trace-spans can opt into logging.
type SpanEvent string

const (
	SpanNew   SpanEvent = "new"
	SpanEnter SpanEvent = "enter"
	SpanExit  SpanEvent = "exit"
	SpanClose SpanEvent = "close"
)

// SpanFilter reports which span events should be logged, derived once from
// Options.TraceSpans.
type SpanFilter struct {
	enabled map[SpanEvent]bool
}

// NewSpanFilter builds a SpanFilter from the --trace-spans flag value.
func NewSpanFilter(spans []string) SpanFilter {
	f := SpanFilter{enabled: make(map[SpanEvent]bool)}
	for _, s := range spans {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "none":
			return SpanFilter{enabled: map[SpanEvent]bool{}}
		case "active", "full":
			f.enabled[SpanNew] = true
			f.enabled[SpanEnter] = true
			f.enabled[SpanExit] = true
			f.enabled[SpanClose] = true
		case "new":
			f.enabled[SpanNew] = true
		case "enter":
			f.enabled[SpanEnter] = true
		case "exit":
			f.enabled[SpanExit] = true
		case "close":
			f.enabled[SpanClose] = true
		}
	}
	return f
}

// Enabled reports whether ev should be logged.
func (f SpanFilter) Enabled(ev SpanEvent) bool { return f.enabled[ev] }

// parseFilter splits a --log-filter directive into a default level and
// per-logger-name overrides, e.g. "info,session=debug" -> (Info, {"session":
// Debug}).
func parseFilter(filter string) (zapcore.Level, map[string]zapcore.Level, error) {
	defaultLevel := zapcore.InfoLevel
	overrides := make(map[string]zapcore.Level)
	if filter == "" {
		return defaultLevel, overrides, nil
	}

	seenDefault := false
	for _, part := range strings.Split(filter, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if name, lvl, ok := strings.Cut(part, "="); ok {
			level, err := parseLevelString(lvl)
			if err != nil {
				return 0, nil, fmt.Errorf("logging: bad level %q for %q: %w", lvl, name, err)
			}
			overrides[name] = level
			continue
		}
		level, err := parseLevelString(part)
		if err != nil {
			return 0, nil, fmt.Errorf("logging: bad log-filter level %q: %w", part, err)
		}
		defaultLevel = level
		seenDefault = true
	}
	_ = seenDefault
	return defaultLevel, overrides, nil
}

// parseLevelString accepts the same tokens zap's AtomicLevel flag parsing
// does ("debug", "info", "warn", "error", ...).
func parseLevelString(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return 0, err
	}
	return lvl, nil
}

// filteringCore wraps a zapcore.Core, routing each entry's enabled check
// through a per-logger-name override map instead of a single global level.
type filteringCore struct {
	zapcore.Core
	defaultLevel zapcore.Level
	overrides    map[string]zapcore.Level
}

func (c *filteringCore) levelFor(name string) zapcore.Level {
	if lvl, ok := c.overrides[name]; ok {
		return lvl
	}
	return c.defaultLevel
}

func (c *filteringCore) Enabled(lvl zapcore.Level) bool {
	if lvl >= c.defaultLevel {
		return true
	}
	for _, o := range c.overrides {
		if lvl >= o {
			return true
		}
	}
	return false
}

func (c *filteringCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if ent.Level < c.levelFor(ent.LoggerName) {
		return ce
	}
	return c.Core.Check(ent, ce)
}

func (c *filteringCore) With(fields []zapcore.Field) zapcore.Core {
	return &filteringCore{Core: c.Core.With(fields), defaultLevel: c.defaultLevel, overrides: c.overrides}
}

// New builds the supervisor's logger. The returned cleanup function must be
// called before process exit to flush buffered entries.
func New(opts Options) (*zap.Logger, func(), error) {
	defaultLevel, overrides, err := parseFilter(opts.Filter)
	if err != nil {
		return nil, func() {}, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)

	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stderr), zapcore.DebugLevel),
	}

	cleanup := func() {}
	if opts.JSONPath != "" {
		f, err := os.OpenFile(opts.JSONPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, func() {}, fmt.Errorf("logging: open --log-json file %q: %w", opts.JSONPath, err)
		}
		jsonEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.Lock(f), zapcore.DebugLevel))
		cleanup = func() { f.Close() }
	}

	base := &filteringCore{Core: zapcore.NewTee(cores...), defaultLevel: defaultLevel, overrides: overrides}

	zapOpts := []zap.Option{}
	switch opts.Backtrace {
	case "full":
		zapOpts = append(zapOpts, zap.AddStacktrace(zapcore.DebugLevel))
	case "1", "":
		zapOpts = append(zapOpts, zap.AddStacktrace(zapcore.WarnLevel))
	case "0":
		// no stacktraces
	}

	logger := zap.New(base, zapOpts...)
	return logger, func() { logger.Sync(); cleanup() }, nil
}
