package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO date format used for every date field.
const DateLayout = "2006-01-02"

// ErrInvalidConstraints is returned when a constraint record fails validation.
var ErrInvalidConstraints = errors.New("invalid constraints")

// Validate checks the constraint record before it is sent to a generator.
func (c PlanConstraints) Validate() error {
	if strings.TrimSpace(c.Syllabus) == "" {
		return fmt.Errorf("%w: syllabus is required", ErrInvalidConstraints)
	}
	if c.HoursPerWeek < 1 || c.HoursPerWeek > 168 {
		return fmt.Errorf("%w: hours per week must be between 1 and 168, got %v", ErrInvalidConstraints, c.HoursPerWeek)
	}
	start, err := time.Parse(DateLayout, c.StartDate)
	if err != nil {
		return fmt.Errorf("%w: start date %q is not YYYY-MM-DD", ErrInvalidConstraints, c.StartDate)
	}
	deadline, err := time.Parse(DateLayout, c.DeadlineDate)
	if err != nil {
		return fmt.Errorf("%w: deadline date %q is not YYYY-MM-DD", ErrInvalidConstraints, c.DeadlineDate)
	}
	if deadline.Before(start) {
		return fmt.Errorf("%w: deadline %s is before start %s", ErrInvalidConstraints, c.DeadlineDate, c.StartDate)
	}
	return nil
}
