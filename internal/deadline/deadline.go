// Package deadline classifies task due dates and sends due-date reminders to
// assignees.
package deadline

import (
	"fmt"
	"math"
	"time"

	"github.com/gosuda/lanes/internal/domain"
)

type Severity string

const (
	SeverityOverdue Severity = "overdue"
	SeverityToday   Severity = "today"
	SeveritySoon    Severity = "soon"
	SeverityNormal  Severity = "normal"
)

// SoonDays is the horizon, in days, of the "soon" bucket.
const SoonDays = 3

// Status is the display bucket of a deadline.
type Status struct {
	Severity Severity `json:"severity"`
	Label    string   `json:"label"`
	Days     int      `json:"days"`
}

// DaysUntil counts calendar days from today to deadline. Both are compared
// as UTC dates.
func DaysUntil(deadline, today time.Time) int {
	d := domain.DateOnly(deadline).Sub(domain.DateOnly(today))
	return int(math.Round(d.Hours() / 24))
}

// StatusOf buckets deadline relative to today.
func StatusOf(deadline, today time.Time) Status {
	days := DaysUntil(deadline, today)
	switch {
	case days < 0:
		return Status{Severity: SeverityOverdue, Label: "Overdue", Days: days}
	case days == 0:
		return Status{Severity: SeverityToday, Label: "Due Today", Days: days}
	case days <= SoonDays:
		return Status{Severity: SeveritySoon, Label: fmt.Sprintf("H-%d", days), Days: days}
	default:
		return Status{Severity: SeverityNormal, Label: domain.DateOnly(deadline).Format("02/01"), Days: days}
	}
}

// TaskStatus returns the status of t's deadline, or false when it has none.
func TaskStatus(t *domain.Task, today time.Time) (Status, bool) {
	if t == nil || t.Deadline == nil {
		return Status{}, false
	}
	return StatusOf(*t.Deadline, today), true
}
