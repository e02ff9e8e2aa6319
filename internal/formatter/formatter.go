// package formatter renders a user's queue state as terminal tables, Markdown, CSV and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/podq/internal/models"
	"github.com/desertthunder/podq/internal/shared"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Format selects an export encoding.
type Format string

const (
	FormatTable    Format = "table"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// Formats lists the accepted values of [ParseFormat].
var Formats = []Format{FormatTable, FormatMarkdown, FormatCSV, FormatJSON}

// ParseFormat accepts a format name case-insensitively; "md" is an alias for markdown.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.ToLower(strings.TrimSpace(s)))
	if f == "md" {
		f = FormatMarkdown
	}
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
	}
	return f, nil
}

// Cursor describes the pacing cursor for humans.
func Cursor(minute int) string {
	if minute == models.CursorUnset {
		return "not started"
	}
	return fmt.Sprintf("%d min", minute)
}

// LastUpdate formats the priority boundary, treating the epoch as "never".
func LastUpdate(ts time.Time) string {
	if ts.IsZero() || ts.Equal(time.Unix(0, 0)) {
		return "never"
	}
	return ts.UTC().Format(time.RFC3339)
}

// SummaryRows returns the key/value rows describing state.
func SummaryRows(state *models.UserState) [][]string {
	playlist := state.PlaylistID
	if playlist == "" {
		playlist = "(not set)"
	}

	rows := [][]string{
		{"Playlist", playlist},
		{"Last update", LastUpdate(state.LastUpdate)},
		{"Cursor", Cursor(state.CurrentMinute)},
		{"Min duration", fmt.Sprintf("%d min", state.MinDuration)},
		{"Tracked shows", strconv.Itoa(len(state.ShowProgress))},
		{"Completed shows", strconv.Itoa(len(state.CompletedShows))},
	}

	if lb := state.LastBatch; lb != nil {
		rows = append(rows,
			[]string{"Last batch", lb.Timestamp},
			[]string{"  priority", strconv.Itoa(lb.PriorityCount)},
			[]string{"  backlog", fmt.Sprintf("%d (%s)", lb.BacklogCount, Cursor(lb.BacklogMinute))},
			[]string{"  total", strconv.Itoa(lb.TotalCount)},
		)
	}
	return rows
}

// ShowRows returns one row per tracked or completed show, sorted by show id.
func ShowRows(state *models.UserState) [][]string {
	ids := map[string]struct{}{}
	for id := range state.ShowProgress {
		ids[id] = struct{}{}
	}
	for id := range state.CompletedShows {
		ids[id] = struct{}{}
	}

	rows := make([][]string, 0, len(ids))
	for _, id := range slices.Sorted(maps.Keys(ids)) {
		completed := ""
		if name, ok := state.CompletedShows[id]; ok {
			completed = name
			if completed == "" {
				completed = "yes"
			}
		}
		rows = append(rows, []string{id, state.ShowProgress[id], completed})
	}
	return rows
}

var (
	summaryHeaders = []string{"Field", "Value"}
	showHeaders    = []string{"Show", "Last seen episode", "Completed"}
)

func newTable(headers []string, rows [][]string) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, len(headers))
	for i := range headers {
		configs[i] = table.ColumnConfig{Number: i + 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft}
	}
	tw.SetColumnConfigs(configs)
	return tw
}

// RenderTable renders the state summary and, when showShows is set, the per-show table.
func RenderTable(state *models.UserState, showShows bool) string {
	var b strings.Builder
	b.WriteString(newTable(summaryHeaders, SummaryRows(state)).Render())
	b.WriteString("\n")

	if showShows {
		rows := ShowRows(state)
		if len(rows) == 0 {
			b.WriteString("\nNo shows scanned yet.\n")
		} else {
			b.WriteString("\n")
			b.WriteString(newTable(showHeaders, rows).Render())
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ExportToMarkdown renders a report for userID with a summary table and a show table.
func ExportToMarkdown(userID string, state *models.UserState) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# podq queue: %s\n\n", userID)
	buf.WriteString("## Summary\n\n")
	buf.WriteString(newTable(summaryHeaders, SummaryRows(state)).RenderMarkdown())
	buf.WriteString("\n\n## Shows\n\n")

	rows := ShowRows(state)
	if len(rows) == 0 {
		buf.WriteString("No shows scanned yet.\n")
		return buf.Bytes(), nil
	}
	buf.WriteString(newTable(showHeaders, rows).RenderMarkdown())
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

// ExportToCSV writes one record per show with columns: show_id, last_seen_episode, completed, completed_name
func ExportToCSV(state *models.UserState) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"show_id", "last_seen_episode", "completed", "completed_name"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range ShowRows(state) {
		name, completed := state.CompletedShows[row[0]]
		record := []string{row[0], row[1], strconv.FormatBool(completed), name}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToJSON encodes state exactly as the state store persists it.
func ExportToJSON(state *models.UserState) ([]byte, error) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal state: %w", err)
	}
	return append(data, '\n'), nil
}

// Render encodes state in format.
func Render(format Format, userID string, state *models.UserState) ([]byte, error) {
	switch format {
	case FormatTable:
		return []byte(RenderTable(state, true)), nil
	case FormatMarkdown:
		return ExportToMarkdown(userID, state)
	case FormatCSV:
		return ExportToCSV(state)
	case FormatJSON:
		return ExportToJSON(state)
	default:
		return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteExport renders state in format and writes it to path.
func WriteExport(format Format, userID string, state *models.UserState, path string) error {
	data, err := Render(format, userID, state)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
