package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/amirbrooks/taskdown/internal/engine"
)

// SnapshotStore is the structured-mode store: whole project trees persisted
// as YAML snapshots under <root>/snapshots, with ids stable across snapshots
// of the same logical task. Mutations load the tree, apply one id-addressed
// engine operation, and save; the store relies on the atomic write for
// consistency and needs no per-document lock, since nothing here rewrites by
// line address.
type SnapshotStore struct {
	Dir string
}

// Snapshots returns the workspace's structured store.
func (w *Workspace) Snapshots() *SnapshotStore {
	return &SnapshotStore{Dir: w.snapshotsDir()}
}

func (s *SnapshotStore) path(id string) string {
	return filepath.Join(s.Dir, id+".yaml")
}

// Create makes an empty project with a generated id and one Default group.
func (s *SnapshotStore) Create(title string) (*engine.Project, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("%w: project title is required", engine.ErrInvalid)
	}
	p := &engine.Project{
		ID:    engine.NewProjectID(),
		Title: title,
		Groups: []*engine.Group{
			{ID: engine.NewGroupID(), Name: engine.DefaultGroupName},
		},
	}
	if err := s.save(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Load reads one project snapshot.
func (s *SnapshotStore) Load(id string) (*engine.Project, error) {
	b, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: snapshot %q", engine.ErrNotFound, id)
		}
		return nil, err
	}
	var p engine.Project
	if err := yaml.Unmarshal(b, &p); err != nil {
		return nil, fmt.Errorf("parse snapshot %q: %w", id, err)
	}
	return &p, nil
}

// List returns the ids of every stored snapshot, sorted.
func (s *SnapshotStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		out = append(out, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(out)
	return out, nil
}

func (s *SnapshotStore) save(p *engine.Project) error {
	b, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return atomicWriteFile(s.path(p.ID), b, 0o644)
}

// Import copies a file-addressed document into the structured store,
// replacing its line-derived ids with generated stable ones and dropping the
// file-mode fields. The source document is left alone.
func (s *SnapshotStore) Import(src *engine.Project) (*engine.Project, error) {
	p := &engine.Project{ID: engine.NewProjectID(), Title: src.Title}
	for _, g := range src.Groups {
		ng := &engine.Group{ID: engine.NewGroupID(), Name: g.Name}
		for _, t := range g.Tasks {
			ng.Tasks = append(ng.Tasks, regenerate(t, nil))
		}
		p.Groups = append(p.Groups, ng)
	}
	if len(p.Groups) == 0 {
		p.Groups = []*engine.Group{{ID: engine.NewGroupID(), Name: engine.DefaultGroupName}}
	}
	if err := s.save(p); err != nil {
		return nil, err
	}
	return p, nil
}

// regenerate deep-copies a task subtree with fresh stable ids and refreshed
// parent back-references.
func regenerate(t *engine.Task, parent *engine.Task) *engine.Task {
	nt := &engine.Task{
		ID:                 engine.NewTaskID(),
		Content:            t.Content,
		Status:             t.Status,
		DueDate:            t.DueDate,
		ScheduledDate:      t.ScheduledDate,
		RepeatFrequency:    t.RepeatFrequency,
		RepeatIntervalDays: t.RepeatIntervalDays,
	}
	if parent != nil {
		nt.ParentID = parent.ID
		nt.ParentContent = parent.Content
	}
	for _, sub := range t.Subtasks {
		nt.Subtasks = append(nt.Subtasks, regenerate(sub, nt))
	}
	return nt
}

// ExportText serializes a snapshot back into document text.
func (s *SnapshotStore) ExportText(id string) (string, error) {
	p, err := s.Load(id)
	if err != nil {
		return "", err
	}
	return engine.Serialize(p), nil
}

// mutate loads a snapshot, applies one engine operation, and saves. When fn
// fails, the stored snapshot is untouched.
func (s *SnapshotStore) mutate(id string, fn func(*engine.Project) error) (*engine.Project, error) {
	p, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	if err := s.save(p); err != nil {
		return nil, err
	}
	return p, nil
}

// AddTask appends a task; an empty GroupID targets the default group.
func (s *SnapshotStore) AddTask(projectID string, in engine.AddTaskInput) (*engine.Task, error) {
	var task *engine.Task
	_, err := s.mutate(projectID, func(p *engine.Project) error {
		if in.GroupID == "" {
			in.GroupID = p.DefaultGroup().ID
		}
		var err error
		task, err = engine.AddTask(p, in)
		return err
	})
	return task, err
}

// UpdateTask merges partial fields into the task with the given id.
func (s *SnapshotStore) UpdateTask(projectID, taskID string, in engine.UpdateTaskInput) (*engine.Task, error) {
	var task *engine.Task
	_, err := s.mutate(projectID, func(p *engine.Project) error {
		var err error
		task, err = engine.UpdateTask(p, taskID, in)
		return err
	})
	return task, err
}

// DeleteTask removes the task and its subtree.
func (s *SnapshotStore) DeleteTask(projectID, taskID string) error {
	_, err := s.mutate(projectID, func(p *engine.Project) error {
		return engine.DeleteTask(p, taskID)
	})
	return err
}

// MoveToParent reparents a task within its group; an empty newParentID moves
// it back to the group's root list.
func (s *SnapshotStore) MoveToParent(projectID, taskID, newParentID string) (*engine.Task, error) {
	var task *engine.Task
	_, err := s.mutate(projectID, func(p *engine.Project) error {
		g, ok := engine.GroupOf(p, taskID)
		if !ok {
			return fmt.Errorf("%w: task %q", engine.ErrNotFound, taskID)
		}
		var err error
		task, err = engine.MoveToParent(p, g.ID, taskID, newParentID)
		return err
	})
	return task, err
}

// MoveToGroup relocates a task to the root of another group.
func (s *SnapshotStore) MoveToGroup(projectID, toGroupID, taskID string) (*engine.Task, error) {
	var task *engine.Task
	_, err := s.mutate(projectID, func(p *engine.Project) error {
		from, ok := engine.GroupOf(p, taskID)
		if !ok {
			return fmt.Errorf("%w: task %q", engine.ErrNotFound, taskID)
		}
		var err error
		task, err = engine.MoveToGroup(p, from.ID, toGroupID, taskID)
		return err
	})
	return task, err
}

// Reorder rewrites a group's root task order.
func (s *SnapshotStore) Reorder(projectID, groupID string, order []string) error {
	_, err := s.mutate(projectID, func(p *engine.Project) error {
		return engine.Reorder(p, groupID, order)
	})
	return err
}

// CompleteTask marks a task done, rolling recurring tasks over to their next
// occurrence. Reports whether a rollover happened.
func (s *SnapshotStore) CompleteTask(projectID, taskID string) (bool, error) {
	rolled := false
	_, err := s.mutate(projectID, func(p *engine.Project) error {
		t, ok := engine.FindTask(p, taskID)
		if !ok {
			return fmt.Errorf("%w: task %q", engine.ErrNotFound, taskID)
		}
		if t.Recurring() {
			if _, err := engine.HandleRecurring(p, taskID); err != nil {
				return err
			}
			rolled = true
			return nil
		}
		done := engine.StatusDone
		_, err := engine.UpdateTask(p, taskID, engine.UpdateTaskInput{Status: &done})
		return err
	})
	return rolled, err
}
