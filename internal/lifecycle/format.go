package lifecycle

import (
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/roadwatch/roadwatch/internal/domain"
)

const (
	// Placeholder is shown in place of an undefined duration.
	Placeholder = "-"
	// LessThanOneMinute is shown for a duration shorter than a minute.
	LessThanOneMinute = "moins d'une minute"
)

// FormatDuration renders d as whole days, hours and minutes, omitting zero
// components, e.g. "2j 3h 15min".
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return LessThanOneMinute
	}

	days := int64(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int64(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	minutes := int64(d / time.Minute)

	parts := make([]string, 0, 3)
	if days > 0 {
		parts = append(parts, strconv.FormatInt(days, 10)+"j")
	}
	if hours > 0 {
		parts = append(parts, strconv.FormatInt(hours, 10)+"h")
	}
	if minutes > 0 {
		parts = append(parts, strconv.FormatInt(minutes, 10)+"min")
	}
	return strings.Join(parts, " ")
}

// FormatNullDuration renders a possibly undefined duration.
func FormatNullDuration(d domain.NullDuration) string {
	if !d.Valid {
		return Placeholder
	}
	return FormatDuration(d.Duration)
}

// FormatAmount renders a surface or budget with French digit grouping,
// e.g. 30000000 -> "30 000 000".
func FormatAmount(v float64) string {
	if v == float64(int64(v)) {
		return humanize.FormatFloat("# ###.", v)
	}
	return humanize.FormatFloat("# ###,##", v)
}
