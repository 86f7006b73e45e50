package schedule

import (
	"fmt"
	"math"
	"time"

	"github.com/krisalay/ops-engine/errs"
)

// MaxDurationMinutes is the longest task duration that still fits in a time.Duration.
const MaxDurationMinutes = int(math.MaxInt64 / int64(time.Minute))

// Validate rejects input the heuristic cannot place meaningfully.
func Validate(tasks []Task, resources []Resource) error {
	for i, t := range tasks {
		field := fmt.Sprintf("tasks[%d]", i)
		if t.ID == "" {
			return errs.Invalid(Op, field+".id", "must not be empty")
		}
		if t.DurationMinutes <= 0 {
			return errs.Invalid(Op, field+".durationMinutes", "must be > 0, got %d", t.DurationMinutes)
		}
		if t.DurationMinutes > MaxDurationMinutes {
			return errs.Invalid(Op, field+".durationMinutes", "must be <= %d, got %d", MaxDurationMinutes, t.DurationMinutes)
		}
		if c := t.Constraints; c != nil && !c.EarliestStart.IsZero() && !c.Deadline.IsZero() &&
			c.Deadline.Before(c.EarliestStart) {
			return errs.Invalid(Op, field+".constraints", "deadline %s is before earliest start %s",
				c.Deadline.Format("15:04"), c.EarliestStart.Format("15:04"))
		}
	}

	for i, r := range resources {
		field := fmt.Sprintf("resources[%d]", i)
		if r.ID == "" {
			return errs.Invalid(Op, field+".id", "must not be empty")
		}
		if r.Capacity < 0 {
			return errs.Invalid(Op, field+".capacity", "must be >= 0, got %d", r.Capacity)
		}
		for j, iv := range r.Availability {
			if iv.End.Before(iv.Start) {
				return errs.Invalid(Op, fmt.Sprintf("%s.availability[%d]", field, j), "ends before it starts")
			}
		}
	}
	return nil
}
