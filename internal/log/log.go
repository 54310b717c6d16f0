// Package log is the structured logging facade used by every component in
// this repository. It wraps github.com/paularlott/logger the same way the
// teacher's internal/log package wraps it: package-level Configure once at
// startup, then package-level Debug/Info/Warn/Error calls with alternating
// key/value pairs, matching every call site in the teacher
// (log.Info("msg", "key", val, ...)).
package log

import (
	"os"
	"strings"
	"sync/atomic"

	plog "github.com/paularlott/logger"
	logzerolog "github.com/paularlott/logger/zerolog"
	"golang.org/x/term"
)

var current atomic.Pointer[plog.Logger]

func init() {
	Configure("info", "auto")
}

// Configure (re)builds the active logger. format is "console", "json", or
// "auto" (console when stdout is a terminal, json otherwise — this is the
// one place golang.org/x/term.IsTerminal decides behavior, rather than the
// teacher's fixed "console"/"json" choice).
func Configure(level, format string) {
	if format == "auto" || format == "" {
		if term.IsTerminal(int(os.Stdout.Fd())) {
			format = "console"
		} else {
			format = "json"
		}
	}

	l := logzerolog.New(logzerolog.Config{
		Level:  parseLevel(level),
		Format: parseFormat(format),
		Writer: os.Stdout,
	})
	current.Store(&l)
}

func logger() plog.Logger {
	if l := current.Load(); l != nil {
		return *l
	}
	Configure("info", "auto")
	return *current.Load()
}

func parseLevel(level string) string {
	switch strings.ToLower(level) {
	case "trace":
		return "trace"
	case "debug":
		return "debug"
	case "warn", "warning":
		return "warn"
	case "error":
		return "error"
	default:
		return "info"
	}
}

func parseFormat(format string) string {
	if strings.ToLower(format) == "json" {
		return "json"
	}
	return "console"
}

// Debug logs at debug level with alternating key/value pairs.
func Debug(msg string, kv ...any) { logger().Debug(msg, kv...) }

// Info logs at info level with alternating key/value pairs.
func Info(msg string, kv ...any) { logger().Info(msg, kv...) }

// Warn logs at warn level with alternating key/value pairs.
func Warn(msg string, kv ...any) { logger().Warn(msg, kv...) }

// Error logs at error level with alternating key/value pairs.
func Error(msg string, kv ...any) { logger().Error(msg, kv...) }

// With returns a child logger carrying fixed key/value pairs, for call
// sites that log the same context (host, batch id, ...) many times — the
// Device Runner uses this to avoid repeating "host" on every line.
func With(kv ...any) *Context {
	return &Context{kv: kv}
}

// Context is a logger bound to a fixed set of key/value pairs.
type Context struct {
	kv []any
}

func (c *Context) merge(kv []any) []any {
	if len(kv) == 0 {
		return c.kv
	}
	out := make([]any, 0, len(c.kv)+len(kv))
	out = append(out, c.kv...)
	out = append(out, kv...)
	return out
}

func (c *Context) Debug(msg string, kv ...any) { logger().Debug(msg, c.merge(kv)...) }
func (c *Context) Info(msg string, kv ...any)  { logger().Info(msg, c.merge(kv)...) }
func (c *Context) Warn(msg string, kv ...any)  { logger().Warn(msg, c.merge(kv)...) }
func (c *Context) Error(msg string, kv ...any) { logger().Error(msg, c.merge(kv)...) }
