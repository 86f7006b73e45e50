package schedule

import (
	"fmt"
	"time"
)

// Interval is a half-open window [Start, End) during which a resource is free.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration is the length of the window.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Constraints narrow where and when a task may run. Zero fields impose nothing.
type Constraints struct {
	EarliestStart    time.Time `json:"earliestStart"`
	Deadline         time.Time `json:"deadline"`
	AllowedResources []string  `json:"allowedResources,omitempty"`
}

func (c *Constraints) allows(resourceID string) bool {
	if c == nil || len(c.AllowedResources) == 0 {
		return true
	}
	for _, id := range c.AllowedResources {
		if id == resourceID {
			return true
		}
	}
	return false
}

// Task is one unit of work to place.
type Task struct {
	ID              string       `json:"id"`
	DurationMinutes int          `json:"durationMinutes"`
	Priority        int          `json:"priority"`
	Constraints     *Constraints `json:"constraints,omitempty"`
}

func (t Task) duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}

// Resource is something tasks can be assigned to, with its free windows in the
// order they should be tried.
type Resource struct {
	ID           string     `json:"id"`
	Availability []Interval `json:"availability"`

	// Capacity is carried for hosts; placement does not use it.
	Capacity int `json:"capacity"`
}

// Assignment places one task on one resource.
type Assignment struct {
	TaskID     string    `json:"taskId"`
	ResourceID string    `json:"resourceId"`
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	Priority   int       `json:"priority"`
}

// Optimization is the outcome of one scheduling call.
// ConflictCount + len(Schedule) always equals the number of input tasks.
type Optimization struct {
	Schedule          []Assignment `json:"schedule"`
	UtilizationRate   float64      `json:"utilizationRate"`
	ConflictCount     int          `json:"conflictCount"`
	OptimizationScore float64      `json:"optimizationScore"`
	ProcessingTimeMs  float64      `json:"processingTimeMs"`
}

// Clone returns a copy that shares no slice with o.
func (o Optimization) Clone() Optimization {
	if o.Schedule != nil {
		o.Schedule = append([]Assignment(nil), o.Schedule...)
	}
	return o
}

// Mode selects whether assignments consume availability.
type Mode string

const (
	// ModePreview never shrinks availability: a slot may be offered to several
	// tasks. Results are a non-binding preview.
	ModePreview Mode = "preview"

	// ModeReserve removes each assigned span from the resource's availability, so
	// no span is handed out twice, including across parallel chunks.
	ModeReserve Mode = "reserve"
)

// ParseMode validates a configured mode. The empty string selects ModePreview.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(s); m {
	case ModePreview, ModeReserve:
		return m, nil
	case "":
		return ModePreview, nil
	default:
		return "", fmt.Errorf("unknown scheduling mode %q", s)
	}
}
