package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var sessionLabel = color.New(color.FgHiMagenta, color.Bold)
var startLabel = color.New(color.FgGreen).Add(color.Bold)

var systemColor = color.New(color.FgHiWhite)             // For session controller messages
var flowColor = color.New(color.FgCyan)                  // For messages logged by the flow itself
var debugColor = color.New(color.FgHiWhite, color.Faint) // For debug records
var flowbridgeColor = color.New(color.FgHiMagenta)       // For lifecycle lines

// logPrinter renders the session's gated log records, one zerolog JSON object per Write, as
// color coded lines with timestamps relative to the first record.
type logPrinter struct {
	mu      sync.Mutex
	out     io.Writer
	start   time.Time
	started bool
}

func newLogPrinter(out io.Writer) *logPrinter {
	return &logPrinter{out: out}
}

func (p *logPrinter) Write(line []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.printLine(line)
	return len(line), nil
}

func (p *logPrinter) printLine(line []byte) {
	var m map[string]any
	if err := json.Unmarshal(line, &m); err != nil {
		fmt.Fprintf(p.out, "⚠️  Invalid log record: %s\n", strings.TrimSpace(string(line)))
		return
	}

	sessionID := str(m["session_id"])
	msg := str(m["message"])
	source := str(m["source"])
	level := str(m["level"])
	errorMsg := str(m["error"])
	t := recordTime(m["time"])

	if !p.started {
		p.started = true
		p.start = t
		sessionLabel.Fprintf(p.out, "\nSession ID: %s\n", sessionID)
		startLabel.Fprintf(p.out, "    Start: %s\n\n", t.Local().Format("2006-01-02 15:04:05 MST"))
	}

	// Compute relative timestamp
	relative := t.Sub(p.start)
	if relative < 0 {
		relative = 0
	}
	timestamp := fmt.Sprintf("[%02d:%02d]",
		int(relative.Minutes()),
		int(relative.Seconds())%60,
	)

	msg = indentMultiline(msg, "                    ")

	fmt.Fprint(p.out, "  "+timestamp+" ")
	if source == "flow" {
		flowColor.Fprint(p.out, "[flow]")
	} else {
		systemColor.Fprint(p.out, "[session]")
	}

	switch level {
	case "error":
		fmt.Fprint(p.out, " ")
		color.New(color.FgHiRed).Fprint(p.out, "❗ ")
		color.New(color.FgHiRed).Fprintln(p.out, msg)
		if errorMsg != "" {
			color.New(color.FgHiRed).Fprintln(p.out, "                   ", errorMsg)
		}
	case "debug":
		fmt.Fprint(p.out, " ▶ ")
		debugColor.Fprintln(p.out, msg)
	default:
		fmt.Fprint(p.out, " ▶ ")
		fmt.Fprintln(p.out, msg)
	}
}

// str safely converts an interface{} to string, returning empty string if conversion fails
func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// recordTime reads a zerolog timestamp written either as RFC3339 or as Unix seconds
func recordTime(v any) time.Time {
	switch x := v.(type) {
	case string:
		if t, err := time.Parse(time.RFC3339, x); err == nil {
			return t
		}
	case float64:
		return time.Unix(int64(x), 0)
	}
	return time.Now()
}

// indentMultiline adds indentation to all lines except the first in a multiline string
func indentMultiline(text, indent string) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= 1 {
		return text
	}
	for i := 1; i < len(lines); i++ {
		lines[i] = indent + lines[i]
	}
	return strings.Join(lines, "\n")
}
