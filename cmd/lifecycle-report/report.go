package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roadwatch/roadwatch/internal/domain"
	"github.com/roadwatch/roadwatch/internal/lifecycle"
)

type reportOptions struct {
	input  string
	active []string
	now    string
	format string
}

// inputFile is the object form of the input. A bare array of events is accepted too.
type inputFile struct {
	Events        eventList `json:"events"`
	ActiveItemIDs []string  `json:"active_item_ids"`
}

// eventList decodes an array record by record. A record that is not an event
// object keeps its slot as an empty record so the engine reports it at its index.
type eventList struct {
	records []domain.RawStatusEvent
	invalid map[int]string
}

func (l *eventList) UnmarshalJSON(data []byte) error {
	var elems []json.RawMessage
	if err := json.Unmarshal(data, &elems); err != nil {
		return err
	}

	l.records = make([]domain.RawStatusEvent, len(elems))
	l.invalid = nil
	for i, elem := range elems {
		if err := json.Unmarshal(elem, &l.records[i]); err != nil {
			l.records[i] = domain.RawStatusEvent{}
			if l.invalid == nil {
				l.invalid = make(map[int]string)
			}
			l.invalid[i] = fmt.Sprintf("record is not an event object: %s", abbreviate(elem, 40))
		}
	}
	return nil
}

// explain replaces the engine's message for records that could not be decoded
func (l eventList) explain(anomalies []domain.Anomaly) {
	for i, a := range anomalies {
		if msg, ok := l.invalid[a.Index]; ok && a.Kind == domain.AnomalyMalformedEvent {
			anomalies[i].Message = msg
		}
	}
}

func abbreviate(raw []byte, max int) string {
	text := []rune(string(bytes.TrimSpace(raw)))
	if len(text) <= max {
		return string(text)
	}
	return string(text[:max]) + "..."
}

func newRootCmd() *cobra.Command {
	opts := &reportOptions{}

	cmd := &cobra.Command{
		Use:   "lifecycle-report [events.json]",
		Short: "Compute signalement durations and averages from a status event export",
		Long: `lifecycle-report reads status events exported from the signalement store
and prints, for every signalement, its current status and the time spent between
stages, followed by the fleet averages and every anomaly found in the data.

The input is either a JSON array of {item_id, status, timestamp} records or an
object {"events": [...], "active_item_ids": [...]}. Use "-" to read stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.input = args[0]
			}
			return runReport(cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
		SilenceUsage: true,
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "-", "events file, - for stdin")
	cmd.Flags().StringSliceVar(&opts.active, "active", nil, "ids of signalements without events yet (comma separated)")
	cmd.Flags().StringVar(&opts.now, "now", "", "reference instant, RFC3339 (default current time)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format: text or json")

	return cmd
}

func runReport(stdin io.Reader, out io.Writer, opts *reportOptions) error {
	now := time.Now().UTC()
	if opts.now != "" {
		parsed, err := time.Parse(time.RFC3339, opts.now)
		if err != nil {
			return fmt.Errorf("invalid --now %q: %w", opts.now, err)
		}
		now = parsed.UTC()
	}

	format := strings.ToLower(opts.format)
	if format != "text" && format != "json" {
		return fmt.Errorf("unsupported format: %s", opts.format)
	}

	data, err := readInput(stdin, opts.input)
	if err != nil {
		return err
	}
	in, err := decodeInput(data)
	if err != nil {
		return err
	}

	report, err := lifecycle.BuildReport(&lifecycle.Input{
		Events:        in.Events.records,
		ActiveItemIDs: append(in.ActiveItemIDs, opts.active...),
		Now:           now,
	})
	if err != nil {
		return err
	}
	in.Events.explain(report.Anomalies)

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return renderText(out, report)
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}

func decodeInput(data []byte) (inputFile, error) {
	var in inputFile
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return in, nil
	}
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &in.Events); err != nil {
			return in, fmt.Errorf("parsing events: %w", err)
		}
		return in, nil
	}
	if err := json.Unmarshal(trimmed, &in); err != nil {
		return in, fmt.Errorf("parsing input: %w", err)
	}
	return in, nil
}

func renderText(out io.Writer, report *lifecycle.Report) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "Report at %s\n\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintln(w, "ID\tSTATUS\tAVANCEMENT\tPENDING->IN_PROGRESS\tIN_PROGRESS->RESOLVED\tTOTAL")
	for _, item := range report.Items {
		fmt.Fprintf(w, "%s\t%s\t%d%%\t%s\t%s\t%s\n",
			item.ItemID, item.StatusLabel, item.Avancement,
			item.Display.PendingToInProgress, item.Display.InProgressToResolved, item.Display.Total)
	}
	avg := report.Averages
	fmt.Fprintf(w, "AVERAGE\t\t\t%s (%d)\t%s (%d)\t%s (%d)\n",
		report.AverageDisplay.PendingToInProgress, avg.PendingToInProgressCount,
		report.AverageDisplay.InProgressToResolved, avg.InProgressToResolvedCount,
		report.AverageDisplay.Total, avg.TotalCount)
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	counts := tabwriter.NewWriter(out, 0, 0, 1, ' ', 0)
	for _, status := range domain.Statuses() {
		fmt.Fprintf(counts, "%s\t%d\n", status.Label(), report.StatusCounts[status])
	}
	if err := counts.Flush(); err != nil {
		return err
	}

	if len(report.Anomalies) == 0 {
		return nil
	}
	fmt.Fprintf(out, "\n%d anomalies:\n", len(report.Anomalies))
	for _, a := range report.Anomalies {
		if a.ItemID != "" {
			fmt.Fprintf(out, "  [%s] #%d %s: %s\n", a.Kind, a.Index, a.ItemID, a.Message)
			continue
		}
		fmt.Fprintf(out, "  [%s] #%d %s\n", a.Kind, a.Index, a.Message)
	}
	return nil
}
