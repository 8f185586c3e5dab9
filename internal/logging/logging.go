package logging

import (
	"fmt"
	"io"
	"strings"
)

// ANSI codes for prefixes.
const (
	Reset     = "\033[0m"
	FgCyan    = "\033[36m"
	FgGreen   = "\033[32m"
	FgMagenta = "\033[35m"
	FgYellow  = "\033[33m"
	FgRed     = "\033[31m"
)

// Logger is a tiny opt-in logger shared by the internal packages.
// When Writer is nil, logging is disabled.
//
// The output format is:
//
//	<ColoredPrefix> req=<requestID> <formattedMessage>\n
//
// where <requestID> is trimmed and defaults to "-".
type Logger struct {
	Writer io.Writer

	PrefixText  string
	PrefixColor string
	NoColor     bool

	// OmitRequest drops the "req=<id>" field, for startup messages.
	OmitRequest bool
}

func (l *Logger) SetWriter(w io.Writer) { l.Writer = w }

func (l *Logger) Enabled() bool { return l != nil && l.Writer != nil }

// With returns a copy of l using a different prefix. A nil receiver stays nil.
func (l *Logger) With(prefix, color string) *Logger {
	if l == nil {
		return nil
	}
	c := *l
	c.PrefixText = prefix
	c.PrefixColor = color
	return &c
}

func (l *Logger) Logf(requestID string, format string, args ...any) {
	if l == nil || l.Writer == nil {
		return
	}
	prefix := l.PrefixText
	if prefix == "" {
		prefix = "Log:"
	}
	if l.PrefixColor != "" && !l.NoColor {
		prefix = l.PrefixColor + prefix + Reset
	}
	msg := fmt.Sprintf(format, args...)
	if l.OmitRequest {
		fmt.Fprintf(l.Writer, "%s %s\n", prefix, msg)
		return
	}

	id := strings.TrimSpace(requestID)
	if id == "" {
		id = "-"
	}
	fmt.Fprintf(l.Writer, "%s req=%s %s\n", prefix, id, msg)
}

// Printf logs without a request id.
func (l *Logger) Printf(format string, args ...any) {
	l.Logf("", format, args...)
}
