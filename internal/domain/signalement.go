package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Signalement represents a reported road defect.
// It carries no status field: the status is the projection of its event log.
type Signalement struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Description  string    `json:"description"`
	Localisation string    `json:"localisation"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Date         time.Time `json:"date"`
	Surface      float64   `json:"surface"`
	Budget       float64   `json:"budget"`
	Entreprise   string    `json:"entreprise"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewSignalement creates a new signalement
func NewSignalement(defectType, description, localisation string, lat, lng float64, date time.Time, surface, budget float64, entreprise string) *Signalement {
	now := time.Now().UTC()
	return &Signalement{
		ID:           uuid.NewString(),
		Type:         strings.TrimSpace(defectType),
		Description:  description,
		Localisation: localisation,
		Latitude:     lat,
		Longitude:    lng,
		Date:         date,
		Surface:      surface,
		Budget:       budget,
		Entreprise:   strings.TrimSpace(entreprise),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks the fields a signalement must carry before it is stored.
// It returns every problem found, not only the first one.
func (s *Signalement) Validate() []string {
	var problems []string

	if strings.TrimSpace(s.Type) == "" {
		problems = append(problems, "type is required")
	}
	if s.Date.IsZero() {
		problems = append(problems, "date is required")
	}
	if s.Surface <= 0 {
		problems = append(problems, "surface must be positive")
	}
	if s.Budget <= 0 {
		problems = append(problems, "budget must be positive")
	}
	if strings.TrimSpace(s.Entreprise) == "" {
		problems = append(problems, "entreprise is required")
	}
	if s.Latitude < -90 || s.Latitude > 90 {
		problems = append(problems, "latitude must be between -90 and 90")
	}
	if s.Longitude < -180 || s.Longitude > 180 {
		problems = append(problems, "longitude must be between -180 and 180")
	}

	return problems
}

// Touch records a modification
func (s *Signalement) Touch() {
	s.UpdatedAt = time.Now().UTC()
}

// SignalementFilter represents filters for listing signalements
type SignalementFilter struct {
	Entreprise *string `json:"entreprise,omitempty"`
	Type       *string `json:"type,omitempty"`
	Limit      int     `json:"limit"`
	Offset     int     `json:"offset"`
}

// Custom errors
var (
	ErrSignalementNotFound = NewDomainError("signalement not found")
	ErrInvalidStatus       = NewDomainError("invalid status")
	ErrValidation          = NewDomainError("validation failed")
)

// DomainError represents a domain-specific error
type DomainError struct {
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func NewDomainError(message string) *DomainError {
	return &DomainError{Message: message}
}

// ValidationError lists the problems found in a signalement.
// errors.Is(err, ErrValidation) holds for every ValidationError.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return ErrValidation.Message + ": " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
