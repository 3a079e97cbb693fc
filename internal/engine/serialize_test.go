package engine

import (
	"strings"
	"testing"
)

func sameTasks(t *testing.T, path string, a, b []*Task) {
	t.Helper()
	if len(a) != len(b) {
		t.Fatalf("%s: task count %d vs %d", path, len(a), len(b))
	}
	for i := range a {
		x, y := a[i], b[i]
		at := path + "/" + x.Content
		if x.Content != y.Content {
			t.Fatalf("%s: content %q vs %q", at, x.Content, y.Content)
		}
		if x.Status != y.Status {
			t.Fatalf("%s: status %q vs %q", at, x.Status, y.Status)
		}
		if x.DueDate != y.DueDate || x.ScheduledDate != y.ScheduledDate {
			t.Fatalf("%s: dates (%q,%q) vs (%q,%q)", at, x.DueDate, x.ScheduledDate, y.DueDate, y.ScheduledDate)
		}
		if x.RepeatFrequency != y.RepeatFrequency {
			t.Fatalf("%s: frequency %q vs %q", at, x.RepeatFrequency, y.RepeatFrequency)
		}
		sameTasks(t, at, x.Subtasks, y.Subtasks)
	}
}

// sameShape compares two projects on everything the text format carries:
// title, group names, and per task the content, status, dates, frequency, and
// subtree shape. Ids and line numbers are representation details and differ
// between the two addressing modes.
func sameShape(t *testing.T, a, b *Project) {
	t.Helper()
	if a.Title != b.Title {
		t.Fatalf("title %q vs %q", a.Title, b.Title)
	}
	if len(a.Groups) != len(b.Groups) {
		t.Fatalf("group count %d vs %d", len(a.Groups), len(b.Groups))
	}
	for i := range a.Groups {
		if a.Groups[i].Name != b.Groups[i].Name {
			t.Fatalf("group %d: name %q vs %q", i, a.Groups[i].Name, b.Groups[i].Name)
		}
		sameTasks(t, a.Groups[i].Name, a.Groups[i].Tasks, b.Groups[i].Tasks)
	}
}

func TestSerializeSimpleDocument(t *testing.T) {
	p := &Project{
		ID:    "proj",
		Title: "Project",
		Groups: []*Group{{
			ID:   "default",
			Name: DefaultGroupName,
			Tasks: []*Task{
				{ID: "a", Content: "Task 1", Status: StatusTodo, DueDate: "2025-11-23"},
			},
		}},
	}
	got := Serialize(p)
	want := "# Project\n\n- [ ] Task 1 #due:2025-11-23\n"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSerializeNamedGroupsGetHeaders(t *testing.T) {
	p := &Project{
		ID:    "proj",
		Title: "Project",
		Groups: []*Group{
			{ID: "work", Name: "Work", Tasks: []*Task{{ID: "a", Content: "a", Status: StatusTodo}}},
			{ID: "home", Name: "Home", Tasks: []*Task{{ID: "b", Content: "b", Status: StatusDone}}},
		},
	}
	got := Serialize(p)
	if !strings.Contains(got, "### Work\n") || !strings.Contains(got, "### Home\n") {
		t.Fatalf("expected explicit group headers, got %q", got)
	}
	if !strings.Contains(got, "- [x] b\n") {
		t.Fatalf("expected done glyph, got %q", got)
	}
}

func TestSerializeDoingForcesStatusSections(t *testing.T) {
	p := &Project{
		ID:    "proj",
		Title: "Project",
		Groups: []*Group{{
			ID:   "default",
			Name: DefaultGroupName,
			Tasks: []*Task{
				{ID: "a", Content: "queued", Status: StatusTodo},
				{ID: "b", Content: "in flight", Status: StatusDoing},
				{ID: "c", Content: "shipped", Status: StatusDone},
			},
		}},
	}
	got := Serialize(p)
	for _, header := range []string{"## Todo\n", "## Doing\n", "## Done\n"} {
		if !strings.Contains(got, header) {
			t.Fatalf("expected %q in output, got %q", header, got)
		}
	}

	back, err := Parse(got, "proj", "")
	if err != nil {
		t.Fatalf("serialized output must reparse: %v", err)
	}
	byContent := map[string]Status{}
	for _, task := range back.Groups[0].Tasks {
		byContent[task.Content] = task.Status
	}
	want := map[string]Status{"queued": StatusTodo, "in flight": StatusDoing, "shipped": StatusDone}
	for content, status := range want {
		if byContent[content] != status {
			t.Fatalf("expected %q to reparse as %q, got %q", content, status, byContent[content])
		}
	}
}

func TestRoundTripPreservesShape(t *testing.T) {
	text := strings.Join([]string{
		"# Groceries & Chores",
		"",
		"### Shopping",
		"- [ ] buy milk #due:2025-11-23",
		"- [x] buy bread",
		"    - [ ] check rye flour #do:2025-11-20",
		"",
		"### Recurring",
		"- [ ] water plants #repeat:weekly #due:2025-12-01",
	}, "\n")
	p, err := Parse(text, "chores", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	back, err := Parse(Serialize(p), "chores", "")
	if err != nil {
		t.Fatalf("serialized output must reparse: %v", err)
	}
	sameShape(t, p, back)
}

func TestSerializeIdempotentOnOwnOutput(t *testing.T) {
	text := strings.Join([]string{
		"# Doc",
		"prose to drop",
		"",
		"## Done",
		"- [ ] finished early",
		"",
		"### Side Projects",
		"- [ ] parent #due:2025-11-23",
		"        - [ ] overindented child",
	}, "\n")
	p, err := Parse(text, "doc", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	once := Serialize(p)
	again, err := Parse(once, "doc", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if twice := Serialize(again); twice != once {
		t.Fatalf("serialize must be stable on its own output:\nfirst  %q\nsecond %q", once, twice)
	}
}
