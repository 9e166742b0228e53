package domain

import (
	"encoding/json"
	"time"
)

// NullDuration is a duration that may be undefined, e.g. a stage not reached yet
type NullDuration struct {
	Duration time.Duration
	Valid    bool
}

// SomeDuration returns a defined NullDuration
func SomeDuration(d time.Duration) NullDuration {
	return NullDuration{Duration: d, Valid: true}
}

// Milliseconds returns the duration in milliseconds, or nil when undefined
func (n NullDuration) Milliseconds() *int64 {
	if !n.Valid {
		return nil
	}
	ms := n.Duration.Milliseconds()
	return &ms
}

// MarshalJSON encodes the duration in milliseconds, or null when undefined
func (n NullDuration) MarshalJSON() ([]byte, error) {
	return json.Marshal(n.Milliseconds())
}

// UnmarshalJSON decodes milliseconds or null
func (n *NullDuration) UnmarshalJSON(data []byte) error {
	var ms *int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	if ms == nil {
		*n = NullDuration{}
		return nil
	}
	*n = SomeDuration(time.Duration(*ms) * time.Millisecond)
	return nil
}

// AnomalyKind classifies a data-integrity problem found while deriving statistics
type AnomalyKind string

const (
	AnomalyMalformedEvent   AnomalyKind = "malformed_event"
	AnomalyNegativeDuration AnomalyKind = "negative_duration"
)

// Metric field names used in anomaly reports
const (
	FieldPendingToInProgress  = "pending_to_in_progress"
	FieldInProgressToResolved = "in_progress_to_resolved"
	FieldTotal                = "total"
)

// Anomaly describes an input record or derived value that was excluded instead of used
type Anomaly struct {
	Kind    AnomalyKind `json:"kind"`
	ItemID  string      `json:"item_id,omitempty"`
	Field   string      `json:"field,omitempty"`
	Index   int         `json:"index"`
	Message string      `json:"message"`
}

// TransitionMetric holds the elapsed time between lifecycle stages of one signalement
type TransitionMetric struct {
	ItemID                       string       `json:"item_id"`
	PendingToInProgressDuration  NullDuration `json:"pending_to_in_progress_ms"`
	InProgressToResolvedDuration NullDuration `json:"in_progress_to_resolved_ms"`
	TotalDuration                NullDuration `json:"total_ms"`
	Anomalies                    []Anomaly    `json:"anomalies,omitempty"`
}

// HasAnomaly reports whether any anomaly was attached to the metric
func (m TransitionMetric) HasAnomaly() bool {
	return len(m.Anomalies) > 0
}

// FleetAverageMetrics holds per-field averages across all signalements.
// A field with no contributing item stays undefined.
type FleetAverageMetrics struct {
	PendingToInProgress       NullDuration `json:"pending_to_in_progress_ms"`
	InProgressToResolved      NullDuration `json:"in_progress_to_resolved_ms"`
	Total                     NullDuration `json:"total_ms"`
	PendingToInProgressCount  int          `json:"pending_to_in_progress_count"`
	InProgressToResolvedCount int          `json:"in_progress_to_resolved_count"`
	TotalCount                int          `json:"total_count"`
}

// Recap is the public summary shown on the visitor dashboard
type Recap struct {
	TotalPoints  int            `json:"total_points"`
	TotalSurface float64        `json:"total_surface"`
	TotalBudget  float64        `json:"total_budget"`
	Avancement   int            `json:"avancement"`
	StatusCounts map[Status]int `json:"status_counts"`
	GeneratedAt  time.Time      `json:"generated_at"`
}

// CatalogueTotals are the aggregate figures of the signalement catalogue
type CatalogueTotals struct {
	Count   int     `json:"count"`
	Surface float64 `json:"surface"`
	Budget  float64 `json:"budget"`
}

// CalculateAvancement sets the progress percentage from the resolved share of all points
func (r *Recap) CalculateAvancement() {
	if r.TotalPoints == 0 {
		r.Avancement = 0
		return
	}
	resolved := r.StatusCounts[StatusResolved]
	r.Avancement = int(float64(resolved)/float64(r.TotalPoints)*100 + 0.5)
}
