package store

import (
	"errors"
	"strings"
	"testing"

	"github.com/amirbrooks/taskdown/internal/engine"
)

func newSnapshots(t *testing.T) *SnapshotStore {
	t.Helper()
	return newWorkspace(t).Snapshots()
}

func TestSnapshotCreateLoadList(t *testing.T) {
	s := newSnapshots(t)
	p, err := s.Create("Renovation")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(p.ID, "prj_") {
		t.Fatalf("expected generated project id, got %q", p.ID)
	}
	if len(p.Groups) != 1 || p.Groups[0].Name != engine.DefaultGroupName {
		t.Fatalf("expected one default group, got %#v", p.Groups)
	}

	loaded, err := s.Load(p.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Title != "Renovation" || loaded.Groups[0].ID != p.Groups[0].ID {
		t.Fatalf("ids must be stable across load: %#v", loaded)
	}

	ids, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 1 || ids[0] != p.ID {
		t.Fatalf("unexpected listing: %v", ids)
	}

	if _, err := s.Load("prj_missing"); !errors.Is(err, engine.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSnapshotTaskLifecycle(t *testing.T) {
	s := newSnapshots(t)
	p, err := s.Create("Renovation")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	parent, err := s.AddTask(p.ID, engine.AddTaskInput{Content: "paint hallway #due:2025-11-23"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !strings.HasPrefix(parent.ID, "tsk_") {
		t.Fatalf("expected generated task id, got %q", parent.ID)
	}
	child, err := s.AddTask(p.ID, engine.AddTaskInput{Content: "buy paint", ParentID: parent.ID})
	if err != nil {
		t.Fatalf("add child: %v", err)
	}

	// Ids survive the save/load cycle, unlike line addresses.
	loaded, err := s.Load(p.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	got, ok := engine.FindTask(loaded, child.ID)
	if !ok || got.ParentID != parent.ID || got.ParentContent != "paint hallway" {
		t.Fatalf("child linkage lost across load: %#v", got)
	}

	content := "paint hallway and stairs"
	if _, err := s.UpdateTask(p.ID, parent.ID, engine.UpdateTaskInput{Content: &content}); err != nil {
		t.Fatalf("update: %v", err)
	}

	moved, err := s.MoveToParent(p.ID, child.ID, "")
	if err != nil {
		t.Fatalf("move to root: %v", err)
	}
	if moved.ParentID != "" || moved.ParentContent != "" {
		t.Fatalf("parent linkage not cleared: %#v", moved)
	}

	if err := s.Reorder(p.ID, p.Groups[0].ID, []string{child.ID, parent.ID}); err != nil {
		t.Fatalf("reorder: %v", err)
	}
	loaded, _ = s.Load(p.ID)
	if loaded.Groups[0].Tasks[0].ID != child.ID {
		t.Fatalf("reorder lost across load: %#v", loaded.Groups[0].Tasks)
	}

	if err := s.DeleteTask(p.ID, parent.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	loaded, _ = s.Load(p.ID)
	if _, ok := engine.FindTask(loaded, parent.ID); ok {
		t.Fatalf("deleted task still present")
	}
}

func TestSnapshotCompleteTaskRollsOver(t *testing.T) {
	s := newSnapshots(t)
	p, err := s.Create("Habits")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	task, err := s.AddTask(p.ID, engine.AddTaskInput{Content: "review budget #repeat:monthly #due:2025-01-31"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	rolled, err := s.CompleteTask(p.ID, task.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if !rolled {
		t.Fatalf("recurring task must roll over")
	}
	loaded, _ := s.Load(p.ID)
	tasks := loaded.Groups[0].Tasks
	if len(tasks) != 2 {
		t.Fatalf("expected done record plus next occurrence, got %d", len(tasks))
	}
	if tasks[0].Status != engine.StatusDone || tasks[1].DueDate != "2025-02-28" {
		t.Fatalf("unexpected rollover state: %#v", tasks)
	}

	rolled, err = s.CompleteTask(p.ID, tasks[1].ID)
	if err != nil || !rolled {
		t.Fatalf("second rollover: rolled=%v err=%v", rolled, err)
	}
	loaded, _ = s.Load(p.ID)
	if got := loaded.Groups[0].Tasks[2].DueDate; got != "2025-03-28" {
		t.Fatalf("expected 2025-03-28 after the clamped month, got %q", got)
	}
}

func TestSnapshotImportRegeneratesIDs(t *testing.T) {
	w := newWorkspace(t)
	s := w.Snapshots()
	if _, err := w.AddTask("tasks", engine.AddTaskInput{Content: "parent"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	doc, err := w.LoadDocument("tasks")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := w.AddTask("tasks", engine.AddTaskInput{Content: "child", ParentLine: lineOf(t, doc, "parent")}); err != nil {
		t.Fatalf("add child: %v", err)
	}
	doc, _ = w.LoadDocument("tasks")

	imported, err := s.Import(doc)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if imported.ID == doc.ID {
		t.Fatalf("import must assign a fresh project id")
	}
	parent := imported.Groups[0].Tasks[0]
	child := parent.Subtasks[0]
	if !strings.HasPrefix(parent.ID, "tsk_") || !strings.HasPrefix(child.ID, "tsk_") {
		t.Fatalf("line-derived ids must be replaced: %q %q", parent.ID, child.ID)
	}
	if child.ParentID != parent.ID || child.ParentContent != "parent" {
		t.Fatalf("parent back-references must be refreshed: %#v", child)
	}
	if parent.LineNumber != 0 || parent.RawLine != "" {
		t.Fatalf("file-mode fields must be dropped: %#v", parent)
	}

	// The source document keeps its line-derived ids.
	srcParent, _ := engine.FindTaskByLine(doc, lineOf(t, doc, "parent"))
	if strings.HasPrefix(srcParent.ID, "tsk_") {
		t.Fatalf("import must not touch the source: %#v", srcParent)
	}
}

func TestSnapshotExportTextReparses(t *testing.T) {
	s := newSnapshots(t)
	p, err := s.Create("Trip")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.AddTask(p.ID, engine.AddTaskInput{Content: "book flights #due:2025-11-23"}); err != nil {
		t.Fatalf("add: %v", err)
	}

	text, err := s.ExportText(p.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	back, err := engine.Parse(text, "trip", "")
	if err != nil {
		t.Fatalf("exported text must reparse: %v", err)
	}
	if back.Title != "Trip" || back.Groups[0].Tasks[0].DueDate != "2025-11-23" {
		t.Fatalf("unexpected export round trip: %#v", back)
	}
}

// The file-addressed and structured paths run the same engine operations, so
// the same sequence of edits must produce the same document text.
func TestFileAndSnapshotPathsStayEquivalent(t *testing.T) {
	w := newWorkspace(t)
	s := w.Snapshots()

	snap, err := s.Create("Tasks")
	if err != nil {
		t.Fatalf("create snapshot: %v", err)
	}

	// File path, addressed by line.
	if _, err := w.AddTask("tasks", engine.AddTaskInput{Content: "alpha"}); err != nil {
		t.Fatalf("file add: %v", err)
	}
	p, err := w.AddTask("tasks", engine.AddTaskInput{Content: "beta #due:2025-12-01"})
	if err != nil {
		t.Fatalf("file add: %v", err)
	}
	p, err = w.AddTask("tasks", engine.AddTaskInput{Content: "step one", ParentLine: lineOf(t, p, "alpha")})
	if err != nil {
		t.Fatalf("file add nested: %v", err)
	}
	if _, _, err := w.CompleteTask("tasks", lineOf(t, p, "beta")); err != nil {
		t.Fatalf("file complete: %v", err)
	}

	// The same edits, addressed by id.
	alpha, err := s.AddTask(snap.ID, engine.AddTaskInput{Content: "alpha"})
	if err != nil {
		t.Fatalf("snapshot add: %v", err)
	}
	beta, err := s.AddTask(snap.ID, engine.AddTaskInput{Content: "beta #due:2025-12-01"})
	if err != nil {
		t.Fatalf("snapshot add: %v", err)
	}
	if _, err := s.AddTask(snap.ID, engine.AddTaskInput{Content: "step one", ParentID: alpha.ID}); err != nil {
		t.Fatalf("snapshot add nested: %v", err)
	}
	if _, err := s.CompleteTask(snap.ID, beta.ID); err != nil {
		t.Fatalf("snapshot complete: %v", err)
	}

	exported, err := s.ExportText(snap.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if onDisk := readDoc(t, w, "tasks"); onDisk != exported {
		t.Fatalf("paths diverged:\nfile     %q\nsnapshot %q", onDisk, exported)
	}
}
