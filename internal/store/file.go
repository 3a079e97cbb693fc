// Package store holds the storage collaborators around the document engine:
// a file-addressed workspace where tasks are addressed by source line, and a
// structured snapshot store where tasks keep stable generated ids. The two
// paths apply the same engine mutations and stay behaviorally equivalent.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/amirbrooks/taskdown/internal/engine"
)

var timeNow = func() time.Time { return time.Now().UTC() }

// Workspace is a file-addressed document root. Documents live under
// <root>/docs as <slug>.md; every mutation on a document runs end-to-end
// (read, parse, mutate, serialize, atomic write) behind that document's
// exclusive lock. Mutations on distinct documents proceed concurrently.
type Workspace struct {
	Root string
	cfg  Config

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

type Config struct {
	Schema          int    `json:"schema"`
	DefaultDocument string `json:"default_document,omitempty"`
}

func defaultConfig() Config {
	return Config{Schema: 1}
}

// Open opens a workspace rooted at root. It does not create files until Init
// is called.
func Open(root string) (*Workspace, error) {
	w := &Workspace{Root: expandHome(root), locks: map[string]*sync.Mutex{}}
	if err := w.loadOrDefaultConfig(); err != nil {
		// Missing config is fine until Init.
	}
	return w, nil
}

func (w *Workspace) Init(defaultDoc string) error {
	if err := os.MkdirAll(w.docsDir(), 0o755); err != nil {
		return err
	}
	if err := os.MkdirAll(w.snapshotsDir(), 0o755); err != nil {
		return err
	}
	if err := w.ensureConfig(); err != nil {
		return err
	}
	name := strings.TrimSpace(defaultDoc)
	if name == "" {
		name = "Tasks"
	}
	if _, err := w.CreateDocument(name); err != nil {
		return err
	}
	if w.cfg.DefaultDocument == "" {
		w.cfg.DefaultDocument = engine.Slugify(name)
		return w.SaveConfig(w.cfg)
	}
	return nil
}

func (w *Workspace) ensureConfig() error {
	cfgPath := filepath.Join(w.Root, "config.json")
	if _, err := os.Stat(cfgPath); err == nil {
		return w.loadOrDefaultConfig()
	}
	w.cfg = defaultConfig()
	b, _ := json.MarshalIndent(w.cfg, "", "  ")
	return atomicWriteFile(cfgPath, b, 0o644)
}

func (w *Workspace) loadOrDefaultConfig() error {
	b, err := os.ReadFile(filepath.Join(w.Root, "config.json"))
	if err != nil {
		w.cfg = defaultConfig()
		return err
	}
	var cfg Config
	if err := json.Unmarshal(b, &cfg); err != nil {
		return err
	}
	if cfg.Schema == 0 {
		cfg.Schema = 1
	}
	w.cfg = cfg
	return nil
}

func (w *Workspace) Config() Config {
	return w.cfg
}

func (w *Workspace) SaveConfig(cfg Config) error {
	if cfg.Schema == 0 {
		cfg.Schema = 1
	}
	w.cfg = cfg
	b, _ := json.MarshalIndent(cfg, "", "  ")
	return atomicWriteFile(filepath.Join(w.Root, "config.json"), b, 0o644)
}

func (w *Workspace) docsDir() string {
	return filepath.Join(w.Root, "docs")
}

func (w *Workspace) snapshotsDir() string {
	return filepath.Join(w.Root, "snapshots")
}

func (w *Workspace) docPath(slug string) string {
	return filepath.Join(w.docsDir(), slug+".md")
}

// lockFor returns the mutex guarding one document's mutations.
func (w *Workspace) lockFor(slug string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.locks == nil {
		w.locks = map[string]*sync.Mutex{}
	}
	l, ok := w.locks[slug]
	if !ok {
		l = &sync.Mutex{}
		w.locks[slug] = l
	}
	return l
}

// CreateDocument creates an empty document titled name. Creating an existing
// document is idempotent and returns the stored one.
func (w *Workspace) CreateDocument(name string) (*engine.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: document name is required", engine.ErrInvalid)
	}
	slug := engine.Slugify(name)
	path := w.docPath(slug)
	if _, err := os.Stat(path); err == nil {
		return w.LoadDocument(slug)
	}
	if err := atomicWriteFile(path, []byte("# "+name+"\n"), 0o644); err != nil {
		return nil, err
	}
	return w.LoadDocument(slug)
}

// WriteDocument replaces (or creates) a document from raw text. The text is
// parsed first so structurally invalid input never reaches disk.
func (w *Workspace) WriteDocument(name, text string) (*engine.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: document name is required", engine.ErrInvalid)
	}
	slug := engine.Slugify(name)
	l := w.lockFor(slug)
	l.Lock()
	defer l.Unlock()
	if _, err := engine.Parse(text, slug, name); err != nil {
		return nil, err
	}
	if err := atomicWriteFile(w.docPath(slug), []byte(text), 0o644); err != nil {
		return nil, err
	}
	return w.LoadDocument(slug)
}

// LoadDocument reads and parses one document.
func (w *Workspace) LoadDocument(slug string) (*engine.Project, error) {
	slug = strings.TrimSpace(slug)
	b, err := os.ReadFile(w.docPath(slug))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: document %q", engine.ErrNotFound, slug)
		}
		return nil, err
	}
	p, err := engine.Parse(string(b), slug, slug)
	if err != nil {
		return nil, err
	}
	p.Path = w.docPath(slug)
	return p, nil
}

// ListDocuments parses every document in the workspace, sorted by slug.
func (w *Workspace) ListDocuments() ([]*engine.Project, error) {
	entries, err := os.ReadDir(w.docsDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []*engine.Project
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".md") {
			continue
		}
		slug := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		p, err := w.LoadDocument(slug)
		if err != nil {
			// skip documents that no longer parse
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Mutate runs one engine mutation against a document under its lock. The
// mutated tree is serialized and written atomically, then re-parsed so the
// returned project carries fresh line numbers and line-derived ids. When fn
// fails, the file is untouched.
func (w *Workspace) Mutate(slug string, fn func(*engine.Project) error) (*engine.Project, error) {
	slug = strings.TrimSpace(slug)
	l := w.lockFor(slug)
	l.Lock()
	defer l.Unlock()

	b, err := os.ReadFile(w.docPath(slug))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: document %q", engine.ErrNotFound, slug)
		}
		return nil, err
	}
	p, err := engine.Parse(string(b), slug, slug)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	out := engine.Serialize(p)
	if err := atomicWriteFile(w.docPath(slug), []byte(out), 0o644); err != nil {
		return nil, err
	}
	fresh, err := engine.Parse(out, slug, slug)
	if err != nil {
		return nil, err
	}
	fresh.Path = w.docPath(slug)
	return fresh, nil
}

// AddTask appends a task to a document. An empty GroupID targets the default
// group; ParentLine addresses the optional parent.
func (w *Workspace) AddTask(slug string, in engine.AddTaskInput) (*engine.Project, error) {
	return w.Mutate(slug, func(p *engine.Project) error {
		if in.GroupID == "" {
			in.GroupID = p.DefaultGroup().ID
		}
		_, err := engine.AddTask(p, in)
		return err
	})
}

// UpdateTask merges partial fields into the task at the given line.
func (w *Workspace) UpdateTask(slug string, line int, in engine.UpdateTaskInput) (*engine.Project, error) {
	return w.Mutate(slug, func(p *engine.Project) error {
		_, err := engine.UpdateTaskAtLine(p, line, in)
		return err
	})
}

// DeleteTask removes the task at the given line together with its subtree.
func (w *Workspace) DeleteTask(slug string, line int) (*engine.Project, error) {
	return w.Mutate(slug, func(p *engine.Project) error {
		return engine.DeleteTaskAtLine(p, line)
	})
}

// MoveTaskToParent reparents the task at line under the task at parentLine,
// or back to the root of its group when parentLine is 0.
func (w *Workspace) MoveTaskToParent(slug string, line, parentLine int) (*engine.Project, error) {
	return w.Mutate(slug, func(p *engine.Project) error {
		t, ok := engine.FindTaskByLine(p, line)
		if !ok {
			return fmt.Errorf("%w: task at line %d", engine.ErrNotFound, line)
		}
		g, _ := engine.GroupOf(p, t.ID)
		parentID := ""
		if parentLine > 0 {
			parent, ok := engine.FindTaskByLine(p, parentLine)
			if !ok {
				return fmt.Errorf("%w: task at line %d", engine.ErrNotFound, parentLine)
			}
			parentID = parent.ID
		}
		_, err := engine.MoveToParent(p, g.ID, t.ID, parentID)
		return err
	})
}

// MoveTaskToGroup relocates the task at line to the root of the named group,
// creating the group when the document does not have it yet.
func (w *Workspace) MoveTaskToGroup(slug string, line int, groupName string) (*engine.Project, error) {
	return w.Mutate(slug, func(p *engine.Project) error {
		t, ok := engine.FindTaskByLine(p, line)
		if !ok {
			return fmt.Errorf("%w: task at line %d", engine.ErrNotFound, line)
		}
		from, _ := engine.GroupOf(p, t.ID)
		to, ok := p.GroupByName(groupName)
		if !ok {
			to = &engine.Group{ID: engine.Slugify(groupName), Name: strings.TrimSpace(groupName)}
			p.Groups = append(p.Groups, to)
		}
		_, err := engine.MoveToGroup(p, from.ID, to.ID, t.ID)
		return err
	})
}

// ReorderGroup rewrites the named group's root order from line numbers.
func (w *Workspace) ReorderGroup(slug, groupName string, lines []int) (*engine.Project, error) {
	return w.Mutate(slug, func(p *engine.Project) error {
		g, ok := p.GroupByName(groupName)
		if !ok {
			return fmt.Errorf("%w: group %q", engine.ErrNotFound, groupName)
		}
		order := make([]string, 0, len(lines))
		for _, line := range lines {
			t, ok := engine.FindTaskByLine(p, line)
			if !ok {
				return fmt.Errorf("%w: task at line %d", engine.ErrNotFound, line)
			}
			order = append(order, t.ID)
		}
		return engine.Reorder(p, g.ID, order)
	})
}

// CompleteTask marks the task at line done. A recurring task rolls over
// instead: it is completed in place and its next occurrence is appended as a
// sibling, inside the same document lock. Reports whether a rollover
// happened.
func (w *Workspace) CompleteTask(slug string, line int) (*engine.Project, bool, error) {
	rolled := false
	p, err := w.Mutate(slug, func(p *engine.Project) error {
		t, ok := engine.FindTaskByLine(p, line)
		if !ok {
			return fmt.Errorf("%w: task at line %d", engine.ErrNotFound, line)
		}
		if t.Recurring() {
			if _, err := engine.HandleRecurringAtLine(p, line); err != nil {
				return err
			}
			rolled = true
			return nil
		}
		done := engine.StatusDone
		_, err := engine.UpdateTaskAtLine(p, line, engine.UpdateTaskInput{Status: &done})
		return err
	})
	return p, rolled, err
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~"+string(os.PathSeparator)) || path == "~" {
		home, _ := os.UserHomeDir()
		if home != "" {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func atomicWriteFile(path string, data []byte, perm fs.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(dir, fmt.Sprintf(".tmp-%d", timeNow().UnixNano()))
	if err := os.WriteFile(tmp, data, perm); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	// Rename is atomic on same filesystem.
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
