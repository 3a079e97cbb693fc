package engine

import (
	"errors"
	"testing"
)

func TestNextOccurrence(t *testing.T) {
	cases := []struct {
		date     string
		freq     Frequency
		interval int
		want     string
	}{
		{"2025-12-01", FreqDaily, 0, "2025-12-02"},
		{"2025-12-31", FreqDaily, 0, "2026-01-01"},
		{"2025-12-01", FreqWeekly, 0, "2025-12-08"},
		{"2025-12-01", FreqMonthly, 0, "2026-01-01"},
		{"2025-01-31", FreqMonthly, 0, "2025-02-28"},
		{"2024-01-31", FreqMonthly, 0, "2024-02-29"},
		{"2025-02-28", FreqMonthly, 0, "2025-03-28"},
		{"2025-12-01", FreqCustom, 10, "2025-12-11"},
	}
	for _, c := range cases {
		got, err := NextOccurrence(c.date, c.freq, c.interval)
		if err != nil {
			t.Fatalf("NextOccurrence(%q, %q, %d): %v", c.date, c.freq, c.interval, err)
		}
		if got != c.want {
			t.Fatalf("NextOccurrence(%q, %q, %d) = %q, want %q", c.date, c.freq, c.interval, got, c.want)
		}
	}

	if _, err := NextOccurrence("2025-02-30", FreqDaily, 0); !errors.Is(err, ErrMalformedDate) {
		t.Fatalf("expected ErrMalformedDate, got %v", err)
	}
	if _, err := NextOccurrence("2025-12-01", "hourly", 0); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for unknown frequency, got %v", err)
	}
}

func TestHandleRecurring(t *testing.T) {
	p := mustParse(t, "# Doc\n- [ ] water plants #repeat:weekly #due:2025-12-01 #do:2025-11-30")
	g := p.Groups[0]
	orig := g.Tasks[0]

	next, err := HandleRecurring(p, orig.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if orig.Status != StatusDone {
		t.Fatalf("completed occurrence must stay as a done record, got %q", orig.Status)
	}
	if next.Status != StatusTodo || next.Content != orig.Content {
		t.Fatalf("unexpected next occurrence: %#v", next)
	}
	if next.DueDate != "2025-12-08" || next.ScheduledDate != "2025-12-07" {
		t.Fatalf("both dates must advance one period: due %q do %q", next.DueDate, next.ScheduledDate)
	}
	if next.RepeatFrequency != FreqWeekly {
		t.Fatalf("next occurrence must keep recurring, got %q", next.RepeatFrequency)
	}
	if next.ID == orig.ID || next.ID == "" {
		t.Fatalf("next occurrence needs a fresh id, got %q", next.ID)
	}
	if len(g.Tasks) != 2 || g.Tasks[1] != next {
		t.Fatalf("next occurrence must be appended as a sibling")
	}
}

func TestHandleRecurringWithoutDates(t *testing.T) {
	p := mustParse(t, "# Doc\n- [ ] tidy desk #repeat:daily")
	next, err := HandleRecurring(p, p.Groups[0].Tasks[0].ID)
	if err != nil {
		t.Fatalf("a recurring task without dates still rolls over: %v", err)
	}
	if next.DueDate != "" || next.ScheduledDate != "" {
		t.Fatalf("no dates in, no dates out: %#v", next)
	}
}

func TestHandleRecurringNestedTask(t *testing.T) {
	p := mustParse(t, "# Doc\n- [ ] routine\n    - [ ] stretch #repeat:daily #due:2025-12-01")
	parent := p.Groups[0].Tasks[0]
	orig := parent.Subtasks[0]

	next, err := HandleRecurring(p, orig.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ParentID != parent.ID || next.ParentContent != "routine" {
		t.Fatalf("next occurrence must stay under the same parent: %#v", next)
	}
	if len(parent.Subtasks) != 2 || parent.Subtasks[1] != next {
		t.Fatalf("next occurrence must be the parent's last child")
	}
	if len(p.Groups[0].Tasks) != 1 {
		t.Fatalf("rollover of a subtask must not add root tasks")
	}
}

func TestHandleRecurringCustomInterval(t *testing.T) {
	p := mustParse(t, "# Doc")
	g := p.Groups[0]
	task, err := AddTask(p, AddTaskInput{
		GroupID:            g.ID,
		Content:            "change filter",
		DueDate:            "2025-12-01",
		RepeatFrequency:    FreqCustom,
		RepeatIntervalDays: 45,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	next, err := HandleRecurring(p, task.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.DueDate != "2026-01-15" {
		t.Fatalf("expected due date advanced 45 days, got %q", next.DueDate)
	}
	if next.RepeatIntervalDays != 45 {
		t.Fatalf("interval must carry over, got %d", next.RepeatIntervalDays)
	}
}

func TestHandleRecurringNotRecurring(t *testing.T) {
	p := mustParse(t, "# Doc\n- [ ] one-off #due:2025-12-01")
	task := p.Groups[0].Tasks[0]

	if _, err := HandleRecurring(p, task.ID); !errors.Is(err, ErrNotRecurring) {
		t.Fatalf("expected ErrNotRecurring, got %v", err)
	}
	if task.Status != StatusTodo || len(p.Groups[0].Tasks) != 1 {
		t.Fatalf("failed rollover must not touch the tree: %#v", task)
	}

	if _, err := HandleRecurring(p, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestHandleRecurringAtLine(t *testing.T) {
	p := mustParse(t, "# Doc\n- [ ] backup laptop #repeat:monthly #due:2025-01-31")
	next, err := HandleRecurringAtLine(p, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.DueDate != "2025-02-28" {
		t.Fatalf("monthly rollover must clamp to the month end, got %q", next.DueDate)
	}
}
