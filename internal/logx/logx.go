// Package logx is a thin leveled wrapper around the standard log
// package, keeping every line in "component: level: message" form.
package logx

import (
	"fmt"
	"log"
)

// Logger prefixes every line with a component name.
type Logger struct {
	component string
}

// New returns a Logger for the given component, e.g. "collect" or
// "alert".
func New(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) line(level, format string, args ...interface{}) string {
	return fmt.Sprintf("%s: %s: %s", l.component, level, fmt.Sprintf(format, args...))
}

// Info logs an informational line.
func (l *Logger) Info(format string, args ...interface{}) {
	log.Print(l.line("info", format, args...))
}

// Warn logs a warning line.
func (l *Logger) Warn(format string, args ...interface{}) {
	log.Print(l.line("warn", format, args...))
}

// Error logs an error line.
func (l *Logger) Error(format string, args ...interface{}) {
	log.Print(l.line("error", format, args...))
}
