// Package logging provides leveled, colorized debug output for the
// engine and query builders, mirroring the teacher's
// Engine.Debug/DebugContext/DebugLevel fields referenced throughout
// pkg/engine/mutation/builders.go (shouldDebug/shouldTrace) but never
// defined in the retrieved tree — reconstructed here from those call
// sites plus errors.go's github.com/fatih/color usage.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
)

// Level controls how much the engine logs during flush and query
// execution.
type Level int

const (
	// DebugOff logs nothing beyond errors.
	DebugOff Level = iota
	// DebugSQL logs every statement and its bound parameters.
	DebugSQL
	// DebugTrace additionally logs timing for each statement.
	DebugTrace
)

// ParseLevel maps a config string ("off", "sql", "trace") to a Level,
// defaulting to DebugOff for anything unrecognized.
func ParseLevel(s string) Level {
	switch s {
	case "sql":
		return DebugSQL
	case "trace":
		return DebugTrace
	default:
		return DebugOff
	}
}

// Logger writes colorized debug/trace lines, the way the teacher's
// mutation builders printed `[SQL]`/`[VALUES]`/`[TRACE]` lines directly
// with fmt.Printf, generalized here into a reusable, level-gated type.
type Logger struct {
	Level  Level
	Writer io.Writer
	Color  bool
}

// Default returns a logger writing to stdout at DebugOff.
func Default() *Logger {
	return &Logger{Level: DebugOff, Writer: os.Stdout, Color: true}
}

func (l *Logger) shouldSQL() bool   { return l != nil && l.Level >= DebugSQL }
func (l *Logger) shouldTrace() bool { return l != nil && l.Level >= DebugTrace }

// SQL logs a statement and its bound values when the level is DebugSQL
// or higher.
func (l *Logger) SQL(label, sql string, args []interface{}) {
	if !l.shouldSQL() {
		return
	}
	l.tag("SQL", color.FgCyan)
	fmt.Fprintf(l.Writer, "[%s] %s\n", label, sql)
	if len(args) > 0 {
		fmt.Fprintf(l.Writer, "  values: %v\n", args)
	}
}

// Trace logs a statement's elapsed duration when the level is DebugTrace.
func (l *Logger) Trace(label string, start time.Time) {
	if !l.shouldTrace() {
		return
	}
	l.tag("TRACE", color.FgYellow)
	fmt.Fprintf(l.Writer, "[%s] %v\n", label, time.Since(start))
}

// Event logs a lifecycle event dispatch at DebugSQL or higher — useful
// when diagnosing listener re-entrancy during flush.
func (l *Logger) Event(kind string, entityClass string) {
	if !l.shouldSQL() {
		return
	}
	l.tag("EVENT", color.FgMagenta)
	fmt.Fprintf(l.Writer, "%s -> %s\n", kind, entityClass)
}

func (l *Logger) tag(name string, c color.Attribute) {
	if !l.Color {
		fmt.Fprintf(l.Writer, "[%s] ", name)
		return
	}
	color.New(c, color.Bold).Fprintf(l.Writer, "[%s] ", name)
}
