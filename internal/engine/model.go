// Package engine parses, serializes, and mutates task-tree documents.
//
// A document is a constrained markdown dialect: one H1 title, optional
// H2/H3 headers that either name a group or set a status context, and
// checkbox list items nested by 4-space indents. The engine is pure: every
// operation maps a tree (or text) to a new tree plus a result or error, holds
// no state between calls, and does no I/O.
package engine

import (
	"strings"
	"time"
)

// Status is a task's workflow state.
type Status string

const (
	StatusTodo  Status = "todo"
	StatusDoing Status = "doing"
	StatusDone  Status = "done"
)

// Frequency is a recurring task's repeat cadence.
type Frequency string

const (
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqCustom  Frequency = "custom"
)

// MaxDepth is the number of nesting levels a tree may use. Root tasks sit at
// depth 0; an item at depth MaxDepth is rejected rather than truncated.
const MaxDepth = 10

// DefaultGroupName is the implicit container for documents without explicit
// group headers. It is never re-emitted as a header when it stands alone.
const DefaultGroupName = "Default"

// DateLayout is the only date form the dialect understands.
const DateLayout = "2006-01-02"

var timeNow = func() time.Time { return time.Now().UTC() }

// Project is a single task document: a title and an ordered list of groups.
type Project struct {
	ID     string   `yaml:"id" json:"id"`
	Title  string   `yaml:"title" json:"title"`
	Groups []*Group `yaml:"groups" json:"groups"`
	// Path is the source file, file-addressed mode only.
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// Group is a named ordered collection of root-level tasks. Order is the save
// order.
type Group struct {
	ID    string  `yaml:"id" json:"id"`
	Name  string  `yaml:"name" json:"name"`
	Tasks []*Task `yaml:"tasks" json:"tasks"`
}

// Task is a unit of work. Subtasks are owned by their parent's Subtasks list;
// ParentID and ParentContent are denormalized conveniences for flat views and
// are refreshed only where parentage changes.
type Task struct {
	ID       string  `yaml:"id" json:"id"`
	Content  string  `yaml:"content" json:"content"`
	Status   Status  `yaml:"status" json:"status"`
	Subtasks []*Task `yaml:"subtasks,omitempty" json:"subtasks,omitempty"`

	// RawLine and LineNumber are set by the parser, file-addressed mode only.
	RawLine    string `yaml:"raw_line,omitempty" json:"raw_line,omitempty"`
	LineNumber int    `yaml:"line_number,omitempty" json:"line_number,omitempty"`

	DueDate       string `yaml:"due_date,omitempty" json:"due_date,omitempty"`
	ScheduledDate string `yaml:"scheduled_date,omitempty" json:"scheduled_date,omitempty"`

	RepeatFrequency    Frequency `yaml:"repeat_frequency,omitempty" json:"repeat_frequency,omitempty"`
	RepeatIntervalDays int       `yaml:"repeat_interval_days,omitempty" json:"repeat_interval_days,omitempty"`

	ParentID      string `yaml:"parent_id,omitempty" json:"parent_id,omitempty"`
	ParentContent string `yaml:"parent_content,omitempty" json:"parent_content,omitempty"`
}

// Recurring reports whether completing the task should spawn a next
// occurrence.
func (t *Task) Recurring() bool {
	return t != nil && t.RepeatFrequency != ""
}

// Done reports whether the task itself is completed. Subtask completion never
// rolls up.
func (t *Task) Done() bool {
	return t != nil && t.Status == StatusDone
}

// ValidStatus reports whether s is one of the three workflow states.
func ValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusDoing, StatusDone:
		return true
	default:
		return false
	}
}

// ValidFrequency reports whether f is a recognized repeat cadence.
func ValidFrequency(f Frequency) bool {
	switch f {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqCustom:
		return true
	default:
		return false
	}
}

// GroupByID returns the group with the given id.
func (p *Project) GroupByID(id string) (*Group, bool) {
	for _, g := range p.Groups {
		if g.ID == id {
			return g, true
		}
	}
	return nil, false
}

// GroupByName returns the first group whose name matches, case-insensitively.
func (p *Project) GroupByName(name string) (*Group, bool) {
	for _, g := range p.Groups {
		if strings.EqualFold(g.Name, name) {
			return g, true
		}
	}
	return nil, false
}

// DefaultGroup returns the project's implicit group, creating it when the
// project has none. A project always has at least one group.
func (p *Project) DefaultGroup() *Group {
	if g, ok := p.GroupByName(DefaultGroupName); ok {
		return g
	}
	if len(p.Groups) > 0 {
		return p.Groups[0]
	}
	g := &Group{ID: NewGroupID(), Name: DefaultGroupName}
	p.Groups = append(p.Groups, g)
	return g
}
