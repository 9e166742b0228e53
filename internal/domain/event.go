package domain

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StatusEvent is one appended transition of a signalement's status.
// Events are immutable once recorded; a new state is always a new event.
type StatusEvent struct {
	ID        string    `json:"id,omitempty"`
	ItemID    string    `json:"item_id"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// NewStatusEvent creates a status event recorded at the given instant
func NewStatusEvent(itemID string, status Status, at time.Time) *StatusEvent {
	return &StatusEvent{
		ID:        uuid.NewString(),
		ItemID:    itemID,
		Status:    status,
		Timestamp: at,
	}
}

// RawStatusEvent is a status record as delivered by a data source, before validation.
// A zero Timestamp means the source timestamp was missing or could not be parsed.
type RawStatusEvent struct {
	ItemID       string    `json:"item_id"`
	Status       string    `json:"status"`
	Timestamp    time.Time `json:"timestamp"`
	RawTimestamp string    `json:"-"`
}

// timestampLayouts are the formats accepted from external sources
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// UnmarshalJSON decodes a raw record leniently: ids may be numbers, statuses may be
// integer codes, and an unparseable timestamp is kept as text instead of failing the batch.
func (r *RawStatusEvent) UnmarshalJSON(data []byte) error {
	var aux struct {
		ItemID    json.RawMessage `json:"item_id"`
		Status    json.RawMessage `json:"status"`
		Timestamp json.RawMessage `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.ItemID = scalarString(aux.ItemID)
	r.Status = scalarString(aux.Status)
	r.RawTimestamp = scalarString(aux.Timestamp)
	r.Timestamp = time.Time{}

	if r.RawTimestamp != "" {
		if ts, ok := ParseTimestamp(r.RawTimestamp); ok {
			r.Timestamp = ts
		}
	}
	return nil
}

// ParseTimestamp parses a timestamp in any of the accepted layouts, or unix milliseconds
func ParseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts.UTC(), true
		}
	}
	if ms, err := strconv.ParseInt(value, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms).UTC(), true
	}
	return time.Time{}, false
}

func scalarString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// ItemHistory is the ordered status history of one signalement
type ItemHistory struct {
	ItemID string        `json:"item_id"`
	Events []StatusEvent `json:"events"`
}
