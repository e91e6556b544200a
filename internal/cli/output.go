package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"sigs.k8s.io/yaml"
)

var (
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	failStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle = lipgloss.NewStyle().Underline(true)
)

// EventEnvelope mirrors the SSE payload emitted by /events.
type EventEnvelope struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

func printJSON(w io.Writer, data interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func printYAML(w io.Writer, data interface{}) error {
	out, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// writeStructured prints data for the json and yaml formats and reports
// whether it did; table output is left to the caller.
func writeStructured(w io.Writer, data interface{}) (bool, error) {
	switch strings.ToLower(outputFormat) {
	case "json":
		return true, printJSON(w, data)
	case "yaml":
		return true, printYAML(w, data)
	case "table", "":
		return false, nil
	default:
		return true, fmt.Errorf("unsupported output format %q", outputFormat)
	}
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

func flushTable(tw *tabwriter.Writer) {
	_ = tw.Flush()
}

func humanDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	units := []struct {
		Dur  time.Duration
		Name string
	}{
		{24 * time.Hour, "d"},
		{time.Hour, "h"},
		{time.Minute, "m"},
		{time.Second, "s"},
	}
	var parts []string
	remainder := d
	for _, unit := range units {
		if remainder >= unit.Dur {
			value := remainder / unit.Dur
			remainder -= value * unit.Dur
			parts = append(parts, fmt.Sprintf("%d%s", value, unit.Name))
			if len(parts) == 2 {
				break
			}
		}
	}
	if len(parts) == 0 {
		return "0s"
	}
	return strings.Join(parts, " ")
}

func relativeTime(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := now.Sub(t)
	suffix := "ago"
	if diff < 0 {
		diff = -diff
		suffix = "from now"
	}
	return fmt.Sprintf("%s %s", humanDuration(diff), suffix)
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
