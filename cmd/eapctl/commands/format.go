package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

const (
	formatJSON  = "json"
	formatTable = "table"
	valueNA     = "N/A"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// formatSessions renders a slice of sessions in the requested format.
func formatSessions(sessions []sessionView, format string) (string, error) {
	switch format {
	case formatJSON:
		data, err := json.MarshalIndent(sessions, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal sessions to JSON: %w", err)
		}
		return string(data), nil
	case formatTable:
		return formatSessionsTable(sessions), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

func formatSessionsTable(sessions []sessionView) string {
	var buf strings.Builder
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tADDR\tMETHOD\tLAST-ACTIVE\tOUTCOME")

	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			s.ID,
			s.Addr,
			valueOr(s.Method, valueNA),
			s.LastActive.Format(time.RFC3339),
			shortOutcome(s.Outcome),
		)
	}

	// Flush error is impossible for a strings.Builder sink; ignore it the
	// way the rest of this command package does for in-memory writers.
	_ = w.Flush()
	return buf.String()
}

func shortOutcome(o *outcomeView) string {
	switch {
	case o == nil:
		return "in-progress"
	case o.Success:
		return "success"
	default:
		return "failed: " + o.Reason
	}
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
