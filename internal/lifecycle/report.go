package lifecycle

import (
	"errors"
	"sort"
	"time"

	"github.com/roadwatch/roadwatch/internal/domain"
)

// ErrNilInput is returned when BuildReport is called without input.
var ErrNilInput = errors.New("lifecycle: nil input")

// Input is everything the pipeline needs for one refresh.
type Input struct {
	Events []domain.RawStatusEvent
	// ActiveItemIDs seeds items that have no event yet so they show up as PENDING.
	ActiveItemIDs []string
	Now           time.Time
}

// HistoryEntry is one (status, timestamp) pair of an item's history.
type HistoryEntry struct {
	Status    domain.Status `json:"status"`
	Label     string        `json:"label"`
	Timestamp time.Time     `json:"timestamp"`
}

// ItemReport is the per-item view handed to the rendering layer.
type ItemReport struct {
	ItemID      string                  `json:"item_id"`
	Status      domain.Status           `json:"status"`
	StatusLabel string                  `json:"status_label"`
	StatusColor string                  `json:"status_color"`
	Avancement  int                     `json:"avancement"`
	History     []HistoryEntry          `json:"history"`
	Metrics     domain.TransitionMetric `json:"metrics"`
	Display     DurationDisplay         `json:"display"`
}

// DurationDisplay holds the three durations already formatted for display.
type DurationDisplay struct {
	PendingToInProgress  string `json:"pending_to_in_progress"`
	InProgressToResolved string `json:"in_progress_to_resolved"`
	Total                string `json:"total"`
}

// Report is the full result of one pipeline run.
type Report struct {
	GeneratedAt    time.Time                  `json:"generated_at"`
	Items          []ItemReport               `json:"items"`
	Averages       domain.FleetAverageMetrics `json:"averages"`
	AverageDisplay DurationDisplay            `json:"average_display"`
	StatusCounts   map[domain.Status]int      `json:"status_counts"`
	Anomalies      []domain.Anomaly           `json:"anomalies"`
}

// Item returns the report of one item.
func (r *Report) Item(id string) (ItemReport, bool) {
	i := sort.Search(len(r.Items), func(i int) bool { return r.Items[i].ItemID >= id })
	if i < len(r.Items) && r.Items[i].ItemID == id {
		return r.Items[i], true
	}
	return ItemReport{}, false
}

// CurrentStatuses returns the projected status of every item in the report.
func (r *Report) CurrentStatuses() map[string]domain.Status {
	out := make(map[string]domain.Status, len(r.Items))
	for _, item := range r.Items {
		out[item.ItemID] = item.Status
	}
	return out
}

// BuildReport runs the whole pipeline. Malformed events and negative spans are
// reported in Report.Anomalies; the only error is a nil input.
func BuildReport(in *Input) (*Report, error) {
	if in == nil {
		return nil, ErrNilInput
	}

	events, anomalies := Normalize(in.Events)
	histories := GroupHistoryByItem(events)

	for _, id := range in.ActiveItemIDs {
		if id == "" {
			continue
		}
		if _, ok := histories[id]; !ok {
			histories[id] = domain.ItemHistory{ItemID: id, Events: []domain.StatusEvent{}}
		}
	}

	ids := make([]string, 0, len(histories))
	for id := range histories {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	report := &Report{
		GeneratedAt:  in.Now,
		Items:        make([]ItemReport, 0, len(ids)),
		StatusCounts: make(map[domain.Status]int, len(domain.Statuses())),
		Anomalies:    make([]domain.Anomaly, 0, len(anomalies)),
	}
	for _, s := range domain.Statuses() {
		report.StatusCounts[s] = 0
	}
	report.Anomalies = append(report.Anomalies, anomalies...)

	metrics := make([]domain.TransitionMetric, 0, len(ids))
	for _, id := range ids {
		history := histories[id]
		status := CurrentStatus(history)
		metric := ComputeTransitionMetrics(history, in.Now)

		entries := make([]HistoryEntry, len(history.Events))
		for i, e := range history.Events {
			entries[i] = HistoryEntry{Status: e.Status, Label: e.Status.Label(), Timestamp: e.Timestamp}
		}

		report.Items = append(report.Items, ItemReport{
			ItemID:      id,
			Status:      status,
			StatusLabel: status.Label(),
			StatusColor: status.Color(),
			Avancement:  status.Avancement(),
			History:     entries,
			Metrics:     metric,
			Display: DurationDisplay{
				PendingToInProgress:  FormatNullDuration(metric.PendingToInProgressDuration),
				InProgressToResolved: FormatNullDuration(metric.InProgressToResolvedDuration),
				Total:                FormatNullDuration(metric.TotalDuration),
			},
		})
		report.StatusCounts[status]++
		report.Anomalies = append(report.Anomalies, metric.Anomalies...)
		metrics = append(metrics, metric)
	}

	report.Averages = ComputeFleetAverages(metrics)
	report.AverageDisplay = DurationDisplay{
		PendingToInProgress:  FormatNullDuration(report.Averages.PendingToInProgress),
		InProgressToResolved: FormatNullDuration(report.Averages.InProgressToResolved),
		Total:                FormatNullDuration(report.Averages.Total),
	}

	return report, nil
}

// Summarize builds the public recap from a report and the catalogue totals.
func Summarize(report *Report, totals domain.CatalogueTotals) domain.Recap {
	recap := domain.Recap{
		TotalPoints:  totals.Count,
		TotalSurface: totals.Surface,
		TotalBudget:  totals.Budget,
		StatusCounts: make(map[domain.Status]int, len(domain.Statuses())),
	}
	for _, s := range domain.Statuses() {
		recap.StatusCounts[s] = 0
	}
	if report != nil {
		recap.GeneratedAt = report.GeneratedAt
		for s, n := range report.StatusCounts {
			recap.StatusCounts[s] = n
		}
		if recap.TotalPoints == 0 {
			recap.TotalPoints = len(report.Items)
		}
	}
	recap.CalculateAvancement()
	return recap
}
