// Package output renders run summaries for the terminal.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rlggyp/grafana-exim/internal/engine"
)

// Format controls the output format ("table" or "json").
var Format = "table"

// JSON prints data as formatted JSON.
func JSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// Table prints rows in a table format with headers.
func Table(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	fmt.Fprintln(tw, strings.Repeat("─", len(headers)*16))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// Summary prints a migration summary in the configured format.
func Summary(w io.Writer, sum *engine.Summary) error {
	if Format == "json" {
		return JSON(w, sum)
	}

	rows := make([][]string, 0, len(sum.Results))
	for _, r := range sum.Results {
		rows = append(rows, []string{string(r.Type), r.UID, r.Title, string(r.Outcome), r.Detail})
	}
	Table(w, []string{"TYPE", "UID", "TITLE", "OUTCOME", "DETAIL"}, rows)

	for t, detail := range sum.ClassErrors {
		fmt.Fprintf(w, "class failure (%s): %s\n", t, detail)
	}
	fmt.Fprintf(w, "\n%d created, %d updated, %d skipped, %d failed (run %s, %s)\n",
		sum.Created, sum.Updated, sum.Skipped, sum.FailedCount,
		sum.RunID, sum.FinishedAt.Sub(sum.StartedAt).Round(10*time.Millisecond))
	return nil
}
