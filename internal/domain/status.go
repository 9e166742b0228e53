package domain

import (
	"strings"
)

// Status represents the lifecycle stage of a signalement
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusRejected   Status = "REJECTED"
)

// StatusInfo holds the display mapping for a status
type StatusInfo struct {
	Status     Status `json:"status"`
	Code       string `json:"code"`
	Label      string `json:"label"`
	Color      string `json:"color"`
	Avancement int    `json:"avancement"`
}

// statusTable is the single source of truth for status codes, labels and colours.
var statusTable = []StatusInfo{
	{Status: StatusPending, Code: "en_attente", Label: "En attente", Color: "#f39c12", Avancement: 0},
	{Status: StatusInProgress, Code: "en_cours", Label: "En cours", Color: "#3498db", Avancement: 50},
	{Status: StatusResolved, Code: "resolu", Label: "Résolu", Color: "#27ae60", Avancement: 100},
	{Status: StatusRejected, Code: "rejete", Label: "Rejeté", Color: "#c0392b", Avancement: 0},
}

// statusAliases maps every accepted spelling to a status. Older screens used
// "nouveau", "en cours", "terminé" and "complete" for the same stages.
var statusAliases = map[string]Status{
	"pending":     StatusPending,
	"en_attente":  StatusPending,
	"en attente":  StatusPending,
	"nouveau":     StatusPending,
	"1":           StatusPending,
	"in_progress": StatusInProgress,
	"en_cours":    StatusInProgress,
	"en cours":    StatusInProgress,
	"2":           StatusInProgress,
	"resolved":    StatusResolved,
	"resolu":      StatusResolved,
	"résolu":      StatusResolved,
	"termine":     StatusResolved,
	"terminé":     StatusResolved,
	"complete":    StatusResolved,
	"3":           StatusResolved,
	"rejected":    StatusRejected,
	"rejete":      StatusRejected,
	"rejeté":      StatusRejected,
	"4":           StatusRejected,
}

// Statuses returns the closed set of statuses in lifecycle order
func Statuses() []Status {
	out := make([]Status, len(statusTable))
	for i, info := range statusTable {
		out[i] = info.Status
	}
	return out
}

// StatusTable returns a copy of the status mapping table
func StatusTable() []StatusInfo {
	out := make([]StatusInfo, len(statusTable))
	copy(out, statusTable)
	return out
}

// ParseStatus converts a status code coming from a data source into a Status
func ParseStatus(code string) (Status, error) {
	key := strings.ToLower(strings.TrimSpace(code))
	if key == "" {
		return "", ErrInvalidStatus
	}
	if s, ok := statusAliases[key]; ok {
		return s, nil
	}
	return "", ErrInvalidStatus
}

// IsValid reports whether s belongs to the closed status set
func (s Status) IsValid() bool {
	for _, info := range statusTable {
		if info.Status == s {
			return true
		}
	}
	return false
}

// Info returns the display mapping for s. Unknown values fall back to PENDING.
func (s Status) Info() StatusInfo {
	for _, info := range statusTable {
		if info.Status == s {
			return info
		}
	}
	return statusTable[0]
}

func (s Status) Label() string   { return s.Info().Label }
func (s Status) Color() string   { return s.Info().Color }
func (s Status) Code() string    { return s.Info().Code }
func (s Status) Avancement() int { return s.Info().Avancement }
