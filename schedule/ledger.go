package schedule

import (
	"sync"
	"time"
)

const horizon = 24 * time.Hour

// utilization is the share of a 24h horizon the resource is NOT available,
// clamped to [0, 1].
func utilization(avail []Interval) float64 {
	var free time.Duration
	for _, iv := range avail {
		free += iv.Duration()
	}
	u := 1 - float64(free)/float64(horizon)
	switch {
	case u < 0:
		return 0
	case u > 1:
		return 1
	}
	return u
}

// meanUtilization averages utilization over resources, 0 when there are none.
func meanUtilization(resources []Resource) float64 {
	if len(resources) == 0 {
		return 0
	}
	var sum float64
	for _, r := range resources {
		sum += utilization(r.Availability)
	}
	return sum / float64(len(resources))
}

// fit returns the start time for t inside slot, honoring its constraints.
func fit(slot Interval, t Task) (time.Time, bool) {
	start, end := slot.Start, slot.End
	if c := t.Constraints; c != nil {
		if c.EarliestStart.After(start) {
			start = c.EarliestStart
		}
		if !c.Deadline.IsZero() && c.Deadline.Before(end) {
			end = c.Deadline
		}
	}
	if start.Add(t.duration()).After(end) {
		return time.Time{}, false
	}
	return start, true
}

// firstFit scans avail in order and returns the index and start of the first slot t fits.
func firstFit(avail []Interval, t Task) (int, time.Time, bool) {
	for i, slot := range avail {
		if start, ok := fit(slot, t); ok {
			return i, start, true
		}
	}
	return -1, time.Time{}, false
}

// ledger answers "where does this task go". Implementations must be safe to share
// between chunks scheduled concurrently.
type ledger interface {
	place(t Task) (Assignment, bool)
}

/*
previewLedger offers slots from the untouched input availability. Utilization per
resource is computed once up front and never changes, so the ledger is read-only and
needs no locking.
*/
type previewLedger struct {
	resources []Resource
	util      []float64
}

func newPreviewLedger(resources []Resource) *previewLedger {
	l := &previewLedger{resources: resources, util: make([]float64, len(resources))}
	for i, r := range resources {
		l.util[i] = utilization(r.Availability)
	}
	return l
}

func (l *previewLedger) place(t Task) (Assignment, bool) {
	best := -1
	var bestStart time.Time
	for i, r := range l.resources {
		if !t.Constraints.allows(r.ID) {
			continue
		}
		_, start, ok := firstFit(r.Availability, t)
		if !ok {
			continue
		}
		// strict comparison keeps the earlier resource on ties
		if best < 0 || l.util[i] < l.util[best] {
			best, bestStart = i, start
		}
	}
	if best < 0 {
		return Assignment{}, false
	}
	return newAssignment(t, l.resources[best].ID, bestStart), true
}

/*
reserveLedger owns a private copy of every availability list and cuts each assigned
span out of it. A mutex serializes placements, which is what lets parallel chunks share
one ledger without double-booking. Selection uses utilization of what is left.
*/
type reserveLedger struct {
	mu    sync.Mutex
	ids   []string
	avail [][]Interval
}

func newReserveLedger(resources []Resource) *reserveLedger {
	l := &reserveLedger{
		ids:   make([]string, len(resources)),
		avail: make([][]Interval, len(resources)),
	}
	for i, r := range resources {
		l.ids[i] = r.ID
		l.avail[i] = append([]Interval(nil), r.Availability...)
	}
	return l
}

func (l *reserveLedger) place(t Task) (Assignment, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	best, bestSlot := -1, -1
	var bestStart time.Time
	var bestUtil float64
	for i, id := range l.ids {
		if !t.Constraints.allows(id) {
			continue
		}
		slot, start, ok := firstFit(l.avail[i], t)
		if !ok {
			continue
		}
		u := utilization(l.avail[i])
		if best < 0 || u < bestUtil {
			best, bestSlot, bestStart, bestUtil = i, slot, start, u
		}
	}
	if best < 0 {
		return Assignment{}, false
	}

	l.consume(best, bestSlot, bestStart, bestStart.Add(t.duration()))
	return newAssignment(t, l.ids[best], bestStart), true
}

// consume replaces slot with whatever is left on either side of [start, end).
func (l *reserveLedger) consume(res, slot int, start, end time.Time) {
	old := l.avail[res][slot]

	var rest []Interval
	if start.After(old.Start) {
		rest = append(rest, Interval{Start: old.Start, End: start})
	}
	if end.Before(old.End) {
		rest = append(rest, Interval{Start: end, End: old.End})
	}

	next := make([]Interval, 0, len(l.avail[res])+1)
	next = append(next, l.avail[res][:slot]...)
	next = append(next, rest...)
	next = append(next, l.avail[res][slot+1:]...)
	l.avail[res] = next
}

func newAssignment(t Task, resourceID string, start time.Time) Assignment {
	return Assignment{
		TaskID:     t.ID,
		ResourceID: resourceID,
		StartTime:  start,
		EndTime:    start.Add(t.duration()),
		Priority:   t.Priority,
	}
}
