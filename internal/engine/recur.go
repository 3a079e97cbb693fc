package engine

import (
	"fmt"
	"time"
)

// HandleRecurring completes the recurring task with the given id and appends
// the next occurrence as its sibling: same content, frequency, and interval,
// status todo, with whichever of the due and scheduled dates were set
// advanced by one period. The completed task stays in the tree as a
// historical record. Fails with ErrNotRecurring when the task has no repeat
// frequency.
func HandleRecurring(p *Project, taskID string) (*Task, error) {
	n, ok := findNode(p, func(t *Task) bool { return t.ID == taskID })
	if !ok {
		return nil, fmt.Errorf("%w: task %q", ErrNotFound, taskID)
	}
	return rollover(n)
}

// HandleRecurringAtLine is HandleRecurring addressed by 1-indexed source
// line.
func HandleRecurringAtLine(p *Project, line int) (*Task, error) {
	n, ok := findNode(p, func(t *Task) bool { return t.LineNumber == line })
	if !ok {
		return nil, fmt.Errorf("%w: task at line %d", ErrNotFound, line)
	}
	return rollover(n)
}

func rollover(n node) (*Task, error) {
	t := n.t
	if !t.Recurring() {
		return nil, fmt.Errorf("%w: task %q has no repeat frequency", ErrNotRecurring, t.ID)
	}
	if t.RepeatFrequency == FreqCustom && t.RepeatIntervalDays < 1 {
		return nil, fmt.Errorf("%w: custom repeat requires an interval of at least 1 day", ErrInvalid)
	}

	// Both dates advance independently; a task with neither simply recurs
	// without dates. Compute them before touching the tree.
	var nextDue, nextScheduled string
	var err error
	if t.DueDate != "" {
		if nextDue, err = NextOccurrence(t.DueDate, t.RepeatFrequency, t.RepeatIntervalDays); err != nil {
			return nil, err
		}
	}
	if t.ScheduledDate != "" {
		if nextScheduled, err = NextOccurrence(t.ScheduledDate, t.RepeatFrequency, t.RepeatIntervalDays); err != nil {
			return nil, err
		}
	}

	t.Status = StatusDone

	next := &Task{
		ID:                 NewTaskID(),
		Content:            t.Content,
		Status:             StatusTodo,
		DueDate:            nextDue,
		ScheduledDate:      nextScheduled,
		RepeatFrequency:    t.RepeatFrequency,
		RepeatIntervalDays: t.RepeatIntervalDays,
	}
	if n.parent != nil {
		next.ParentID = n.parent.ID
		next.ParentContent = n.parent.Content
		n.parent.Subtasks = append(n.parent.Subtasks, next)
	} else {
		n.g.Tasks = append(n.g.Tasks, next)
	}
	return next, nil
}

// NextOccurrence advances a YYYY-MM-DD date by one period: daily +1 day,
// weekly +7, custom +intervalDays, monthly to the same day of the next month
// clamped to that month's length (Jan 31 -> Feb 28, or Feb 29 in a leap
// year).
func NextOccurrence(date string, freq Frequency, intervalDays int) (string, error) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", fmt.Errorf("%w: %q is not a valid calendar date", ErrMalformedDate, date)
	}
	var next time.Time
	switch freq {
	case FreqDaily:
		next = day.AddDate(0, 0, 1)
	case FreqWeekly:
		next = day.AddDate(0, 0, 7)
	case FreqMonthly:
		next = addMonthClamped(day)
	case FreqCustom:
		next = day.AddDate(0, 0, intervalDays)
	default:
		return "", fmt.Errorf("%w: unknown repeat frequency %q", ErrInvalid, freq)
	}
	return next.Format(DateLayout), nil
}

// addMonthClamped steps to the same day of the next month, clamping to its
// last day. AddDate alone would normalize Jan 31 + 1 month into March.
func addMonthClamped(day time.Time) time.Time {
	first := time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	last := first.AddDate(0, 1, -1).Day()
	d := day.Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}
