package annotations

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
)

// OutputFormatter formats events for human-readable display.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

// NewOutputFormatter creates a formatter writing to w. Color is used when
// w is a terminal and color output is not disabled.
func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}

	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isTerminal(f) && !color.NoColor
	}

	return &OutputFormatter{useColor: useColor, writer: w}
}

// SetColor forces color output on or off.
func (f *OutputFormatter) SetColor(on bool) {
	f.useColor = on
}

// Handle implements the Handler interface - prints events as they occur
func (f *OutputFormatter) Handle(event Event) {
	output := f.Format(event)
	if output != "" {
		fmt.Fprintln(f.writer, output)
	}
}

// Format converts an event to a human-readable string.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case QueryCompiled:
		return fmt.Sprintf("%s Query: %s over %s",
			latency,
			truncateQuery(fmt.Sprint(event.Data["query"])),
			f.colorize(strings.Join(stringList(event.Data["tables"]), ", "), color.FgCyan))

	case ErrorQueryParsing:
		return fmt.Sprintf("%s %s Query rejected: %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Data["error"])

	case RecordEvaluated:
		mark := f.colorize("·", color.FgHiBlack)
		if matched, _ := event.Data["matched"].(bool); matched {
			mark = f.colorize("✓", color.FgGreen)
		}
		return fmt.Sprintf("%s %s %s", latency, mark, recordLabel(event.Data))

	case RecordFailed:
		return fmt.Sprintf("%s %s %s: %v",
			latency,
			f.colorize("✗", color.FgYellow),
			recordLabel(event.Data),
			event.Data["error"])

	case RecordTimedOut:
		return fmt.Sprintf("%s %s %s timed out",
			latency,
			f.colorize("⏱", color.FgRed),
			recordLabel(event.Data))

	case IterateBegin:
		return fmt.Sprintf("%s %s %v over %s",
			latency,
			f.colorize("===", color.FgYellow),
			event.Data["mode"],
			strings.Join(stringList(event.Data["tables"]), ", "))

	case CollectionScanned:
		return fmt.Sprintf("%s Scanned %v: %s",
			latency,
			event.Data["collection"],
			f.colorizeCount("records", intValue(event.Data["records.count"])))

	case IterateComplete:
		return fmt.Sprintf("%s %s Done with %s, %s, %s.",
			latency,
			f.colorize("===", color.FgGreen),
			f.colorizeCount("records", intValue(event.Data["records.count"])),
			f.colorizeCount("matched", intValue(event.Data["matched.count"])),
			f.colorizeCount("failed", intValue(event.Data["failed.count"])))

	case ErrorBackend:
		return fmt.Sprintf("%s %s Backend error: %v",
			latency,
			f.colorize("✗", color.FgRed),
			event.Data["error"])

	default:
		// Generic format for unknown events
		return fmt.Sprintf("%s %s %v", latency, event.Name, event.Data)
	}
}

func recordLabel(data map[string]any) string {
	kind, _ := data["kind"].(string)
	handle, _ := data["handle"].(string)
	if handle == "" {
		return kind
	}
	return kind + " " + handle
}

func stringList(v any) []string {
	s, _ := v.([]string)
	return s
}

func intValue(v any) int {
	n, _ := v.(int)
	return n
}

// formatLatency formats a duration as [XXXms] or [XXXµs] with color coding.
func (f *OutputFormatter) formatLatency(d time.Duration) string {
	if d < time.Millisecond {
		s := fmt.Sprintf("[%dµs]", d.Microseconds())
		if !f.useColor {
			return s
		}
		return color.GreenString(s)
	}

	ms := float64(d.Microseconds()) / 1000.0
	s := fmt.Sprintf("[%.1fms]", ms)
	if !f.useColor {
		return s
	}

	switch {
	case ms < 50:
		return color.GreenString(s)
	case ms < 200:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

// colorizeCount formats a count with a label, using color based on the label type.
func (f *OutputFormatter) colorizeCount(label string, count int) string {
	text := fmt.Sprintf("%d %s", count, label)
	if !f.useColor {
		return text
	}

	switch label {
	case "records":
		return color.CyanString(text)
	case "matched":
		return color.MagentaString(text)
	case "failed":
		if count > 0 {
			return color.YellowString(text)
		}
	}
	return text
}

// colorize applies color if enabled.
func (f *OutputFormatter) colorize(text string, attrs ...color.Attribute) string {
	if !f.useColor {
		return text
	}
	return color.New(attrs...).Sprint(text)
}

// truncateQuery shortens long queries for display.
func truncateQuery(query string) string {
	query = strings.Join(strings.Fields(query), " ")

	const maxLen = 80
	if len(query) <= maxLen {
		return query
	}
	return query[:maxLen-3] + "..."
}

// isTerminal reports whether f is a character device.
func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
