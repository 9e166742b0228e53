// Package lifecycle derives signalement status history and elapsed-time
// statistics from an append-only log of status events.
//
// Every function in this package is pure: results depend only on the
// arguments, including the explicit reference instant.
package lifecycle

import (
	"fmt"
	"sort"
	"time"

	"github.com/roadwatch/roadwatch/internal/domain"
)

// Normalize validates raw records and converts them to status events.
// Records with no item id, an unknown status code or no usable timestamp are
// dropped and reported; the remaining records are returned in input order.
func Normalize(raws []domain.RawStatusEvent) ([]domain.StatusEvent, []domain.Anomaly) {
	events := make([]domain.StatusEvent, 0, len(raws))
	var anomalies []domain.Anomaly

	for i, raw := range raws {
		if raw.ItemID == "" {
			anomalies = append(anomalies, malformed(i, raw, "missing item id"))
			continue
		}

		status, err := domain.ParseStatus(raw.Status)
		if err != nil {
			anomalies = append(anomalies, malformed(i, raw, fmt.Sprintf("unrecognized status code %q", raw.Status)))
			continue
		}

		if raw.Timestamp.IsZero() {
			msg := "missing timestamp"
			if raw.RawTimestamp != "" {
				msg = fmt.Sprintf("unparseable timestamp %q", raw.RawTimestamp)
			}
			anomalies = append(anomalies, malformed(i, raw, msg))
			continue
		}

		events = append(events, domain.StatusEvent{
			ItemID:    raw.ItemID,
			Status:    status,
			Timestamp: raw.Timestamp,
		})
	}

	return events, anomalies
}

func malformed(index int, raw domain.RawStatusEvent, msg string) domain.Anomaly {
	return domain.Anomaly{
		Kind:    domain.AnomalyMalformedEvent,
		ItemID:  raw.ItemID,
		Index:   index,
		Message: msg,
	}
}

// GroupHistoryByItem groups events by item and sorts each group ascending by
// timestamp. Events sharing a timestamp keep their input order.
func GroupHistoryByItem(events []domain.StatusEvent) map[string]domain.ItemHistory {
	histories := make(map[string]domain.ItemHistory)

	for _, e := range events {
		h := histories[e.ItemID]
		h.ItemID = e.ItemID
		h.Events = append(h.Events, e)
		histories[e.ItemID] = h
	}

	for id, h := range histories {
		sort.SliceStable(h.Events, func(i, j int) bool {
			return h.Events[i].Timestamp.Before(h.Events[j].Timestamp)
		})
		histories[id] = h
	}

	return histories
}

// CurrentStatus returns the status of the latest event, or PENDING for an
// item that has no recorded event yet.
func CurrentStatus(history domain.ItemHistory) domain.Status {
	if len(history.Events) == 0 {
		return domain.StatusPending
	}
	return history.Events[len(history.Events)-1].Status
}

// firstOccurrence returns the timestamp of the first event with the given status.
func firstOccurrence(history domain.ItemHistory, status domain.Status) (time.Time, bool) {
	for _, e := range history.Events {
		if e.Status == status {
			return e.Timestamp, true
		}
	}
	return time.Time{}, false
}

// ComputeTransitionMetrics measures the time between the first PENDING, first
// IN_PROGRESS and first RESOLVED events of a sorted history. An item without a
// RESOLVED event is measured up to now. A span that would come out negative is
// left undefined and reported as an anomaly on the metric.
func ComputeTransitionMetrics(history domain.ItemHistory, now time.Time) domain.TransitionMetric {
	metric := domain.TransitionMetric{ItemID: history.ItemID}

	tPending, hasPending := firstOccurrence(history, domain.StatusPending)
	tInProgress, hasInProgress := firstOccurrence(history, domain.StatusInProgress)
	tResolved, hasResolved := firstOccurrence(history, domain.StatusResolved)

	if hasPending && hasInProgress {
		metric.PendingToInProgressDuration = spanInto(&metric, domain.FieldPendingToInProgress, tPending, tInProgress)
	}

	if hasInProgress && hasResolved {
		metric.InProgressToResolvedDuration = spanInto(&metric, domain.FieldInProgressToResolved, tInProgress, tResolved)
	}

	switch {
	case hasPending && hasResolved:
		metric.TotalDuration = spanInto(&metric, domain.FieldTotal, tPending, tResolved)
	case hasPending:
		metric.TotalDuration = spanInto(&metric, domain.FieldTotal, tPending, now)
	}

	return metric
}

// spanInto returns to-from, or an undefined duration plus an anomaly on the
// metric when to precedes from.
func spanInto(metric *domain.TransitionMetric, field string, from, to time.Time) domain.NullDuration {
	d := to.Sub(from)
	if d < 0 {
		metric.Anomalies = append(metric.Anomalies, domain.Anomaly{
			Kind:    domain.AnomalyNegativeDuration,
			ItemID:  metric.ItemID,
			Field:   field,
			Index:   -1,
			Message: fmt.Sprintf("%s would be negative (%s)", field, d),
		})
		return domain.NullDuration{}
	}
	return domain.SomeDuration(d)
}

// ComputeFleetAverages averages each metric field independently over the items
// where that field is defined. Values are summed in milliseconds.
func ComputeFleetAverages(metrics []domain.TransitionMetric) domain.FleetAverageMetrics {
	var p2i, i2r, total average

	for _, m := range metrics {
		p2i.add(m.PendingToInProgressDuration)
		i2r.add(m.InProgressToResolvedDuration)
		total.add(m.TotalDuration)
	}

	return domain.FleetAverageMetrics{
		PendingToInProgress:       p2i.result(),
		InProgressToResolved:      i2r.result(),
		Total:                     total.result(),
		PendingToInProgressCount:  p2i.count,
		InProgressToResolvedCount: i2r.count,
		TotalCount:                total.count,
	}
}

type average struct {
	sumMillis int64
	count     int
}

func (a *average) add(d domain.NullDuration) {
	if !d.Valid {
		return
	}
	a.sumMillis += d.Duration.Milliseconds()
	a.count++
}

func (a average) result() domain.NullDuration {
	if a.count == 0 {
		return domain.NullDuration{}
	}
	return domain.SomeDuration(time.Duration(a.sumMillis/int64(a.count)) * time.Millisecond)
}
