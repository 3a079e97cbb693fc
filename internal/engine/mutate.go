package engine

import "fmt"

// node is a task located within its owning structure. parent is nil for root
// tasks; the owning list is the parent's Subtasks or the group's Tasks.
type node struct {
	t      *Task
	parent *Task
	g      *Group
	depth  int
}

// findNode walks the whole tree in document order with an explicit worklist
// and returns the first task matching the predicate.
func findNode(p *Project, match func(*Task) bool) (node, bool) {
	for _, g := range p.Groups {
		stack := make([]node, 0, len(g.Tasks))
		for i := len(g.Tasks) - 1; i >= 0; i-- {
			stack = append(stack, node{t: g.Tasks[i], g: g})
		}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if match(n.t) {
				return n, true
			}
			for i := len(n.t.Subtasks) - 1; i >= 0; i-- {
				stack = append(stack, node{t: n.t.Subtasks[i], parent: n.t, g: n.g, depth: n.depth + 1})
			}
		}
	}
	return node{}, false
}

// FindTask returns the task with the given id, searching every group
// recursively.
func FindTask(p *Project, id string) (*Task, bool) {
	n, ok := findNode(p, func(t *Task) bool { return t.ID == id })
	if !ok {
		return nil, false
	}
	return n.t, true
}

// FindTaskByLine returns the task parsed from the given 1-indexed source
// line, file-addressed mode.
func FindTaskByLine(p *Project, line int) (*Task, bool) {
	n, ok := findNode(p, func(t *Task) bool { return t.LineNumber == line })
	if !ok {
		return nil, false
	}
	return n.t, true
}

// GroupOf returns the group owning the task with the given id, at any
// nesting depth.
func GroupOf(p *Project, taskID string) (*Group, bool) {
	n, ok := findNode(p, func(t *Task) bool { return t.ID == taskID })
	if !ok {
		return nil, false
	}
	return n.g, true
}

// subtreeHeight is 0 for a leaf and grows by one per nesting level below t.
func subtreeHeight(t *Task) int {
	h := 0
	for _, sub := range t.Subtasks {
		if sh := subtreeHeight(sub) + 1; sh > h {
			h = sh
		}
	}
	return h
}

// contains reports whether t is root or any descendant of root.
func contains(root, t *Task) bool {
	stack := []*Task{root}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == t {
			return true
		}
		stack = append(stack, cur.Subtasks...)
	}
	return false
}

// detach splices n.t out of its owning list.
func detach(n node) {
	list := n.g.Tasks
	if n.parent != nil {
		list = n.parent.Subtasks
	}
	for i, t := range list {
		if t == n.t {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if n.parent != nil {
		n.parent.Subtasks = list
	} else {
		n.g.Tasks = list
	}
}

// AddTaskInput describes a task to append. Explicit fields win over tags
// extracted from Content. Exactly one of ParentID/ParentLine may name an
// optional parent; leave both zero to add a root task.
type AddTaskInput struct {
	ID                 string // generated when empty
	GroupID            string
	Content            string
	Status             Status // StatusTodo when empty
	DueDate            string
	ScheduledDate      string
	RepeatFrequency    Frequency
	RepeatIntervalDays int
	ParentID           string
	ParentLine         int
}

// AddTask appends a new task as the last child of the given parent, or as
// the group's last root task when no parent is named. The whole input is
// validated before the tree is touched.
func AddTask(p *Project, in AddTaskInput) (*Task, error) {
	g, ok := p.GroupByID(in.GroupID)
	if !ok {
		return nil, fmt.Errorf("%w: group %q", ErrNotFound, in.GroupID)
	}
	if err := ValidateContent(in.Content); err != nil {
		return nil, err
	}
	content, tags, err := ExtractTags(in.Content)
	if err != nil {
		return nil, err
	}

	due := tags.DueDate
	if in.DueDate != "" {
		if err := ValidateDate(in.DueDate); err != nil {
			return nil, err
		}
		due = in.DueDate
	}
	scheduled := tags.ScheduledDate
	if in.ScheduledDate != "" {
		if err := ValidateDate(in.ScheduledDate); err != nil {
			return nil, err
		}
		scheduled = in.ScheduledDate
	}
	freq := tags.RepeatFrequency
	if in.RepeatFrequency != "" {
		freq = in.RepeatFrequency
	}
	if freq != "" && !ValidFrequency(freq) {
		return nil, fmt.Errorf("%w: unknown repeat frequency %q", ErrInvalid, freq)
	}
	if freq == FreqCustom && in.RepeatIntervalDays < 1 {
		return nil, fmt.Errorf("%w: custom repeat requires an interval of at least 1 day", ErrInvalid)
	}

	status := in.Status
	if status == "" {
		status = StatusTodo
	}
	if !ValidStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalid, status)
	}

	var parent node
	hasParent := false
	switch {
	case in.ParentID != "":
		parent, ok = findNode(p, func(t *Task) bool { return t.ID == in.ParentID })
		if !ok || parent.g != g {
			return nil, fmt.Errorf("%w: parent %q in group %q", ErrNotFound, in.ParentID, in.GroupID)
		}
		hasParent = true
	case in.ParentLine > 0:
		parent, ok = findNode(p, func(t *Task) bool { return t.LineNumber == in.ParentLine })
		if !ok || parent.g != g {
			return nil, fmt.Errorf("%w: parent at line %d in group %q", ErrNotFound, in.ParentLine, in.GroupID)
		}
		hasParent = true
	}
	if hasParent && parent.depth+1 >= MaxDepth {
		return nil, &DepthError{Depth: parent.depth + 1}
	}

	id := in.ID
	if id == "" {
		id = NewTaskID()
	}
	task := &Task{
		ID:                 id,
		Content:            content,
		Status:             status,
		DueDate:            due,
		ScheduledDate:      scheduled,
		RepeatFrequency:    freq,
		RepeatIntervalDays: in.RepeatIntervalDays,
	}
	if freq != FreqCustom {
		task.RepeatIntervalDays = 0
	}

	if hasParent {
		task.ParentID = parent.t.ID
		task.ParentContent = parent.t.Content
		parent.t.Subtasks = append(parent.t.Subtasks, task)
	} else {
		g.Tasks = append(g.Tasks, task)
	}
	return task, nil
}

// UpdateTaskInput carries a partial update; nil fields are left unchanged.
// Pointing a date field at the empty string clears it, likewise the repeat
// frequency.
type UpdateTaskInput struct {
	Content            *string
	Status             *Status
	DueDate            *string
	ScheduledDate      *string
	RepeatFrequency    *Frequency
	RepeatIntervalDays *int
}

// UpdateTask merges the given fields into the task with the given id.
// Children's ParentContent copies are not recomputed on a content edit; the
// move operations and the recurrence rollover refresh them.
func UpdateTask(p *Project, id string, in UpdateTaskInput) (*Task, error) {
	t, ok := FindTask(p, id)
	if !ok {
		return nil, fmt.Errorf("%w: task %q", ErrNotFound, id)
	}
	return t, applyUpdate(t, in)
}

// UpdateTaskAtLine is UpdateTask addressed by 1-indexed source line.
func UpdateTaskAtLine(p *Project, line int, in UpdateTaskInput) (*Task, error) {
	t, ok := FindTaskByLine(p, line)
	if !ok {
		return nil, fmt.Errorf("%w: task at line %d", ErrNotFound, line)
	}
	return t, applyUpdate(t, in)
}

func applyUpdate(t *Task, in UpdateTaskInput) error {
	// Validate everything first: a failed update must leave the task as it
	// was.
	content := t.Content
	tags := TagFields{DueDate: t.DueDate, ScheduledDate: t.ScheduledDate, RepeatFrequency: t.RepeatFrequency}
	if in.Content != nil {
		if err := ValidateContent(*in.Content); err != nil {
			return err
		}
		stripped, extracted, err := ExtractTags(*in.Content)
		if err != nil {
			return err
		}
		content = stripped
		if extracted.DueDate != "" {
			tags.DueDate = extracted.DueDate
		}
		if extracted.ScheduledDate != "" {
			tags.ScheduledDate = extracted.ScheduledDate
		}
		if extracted.RepeatFrequency != "" {
			tags.RepeatFrequency = extracted.RepeatFrequency
		}
	}
	if in.DueDate != nil {
		if *in.DueDate != "" {
			if err := ValidateDate(*in.DueDate); err != nil {
				return err
			}
		}
		tags.DueDate = *in.DueDate
	}
	if in.ScheduledDate != nil {
		if *in.ScheduledDate != "" {
			if err := ValidateDate(*in.ScheduledDate); err != nil {
				return err
			}
		}
		tags.ScheduledDate = *in.ScheduledDate
	}
	if in.RepeatFrequency != nil {
		if *in.RepeatFrequency != "" && !ValidFrequency(*in.RepeatFrequency) {
			return fmt.Errorf("%w: unknown repeat frequency %q", ErrInvalid, *in.RepeatFrequency)
		}
		tags.RepeatFrequency = *in.RepeatFrequency
	}
	interval := t.RepeatIntervalDays
	if in.RepeatIntervalDays != nil {
		if *in.RepeatIntervalDays < 0 {
			return fmt.Errorf("%w: repeat interval cannot be negative", ErrInvalid)
		}
		interval = *in.RepeatIntervalDays
	}
	if tags.RepeatFrequency == FreqCustom && interval < 1 {
		return fmt.Errorf("%w: custom repeat requires an interval of at least 1 day", ErrInvalid)
	}
	status := t.Status
	if in.Status != nil {
		if !ValidStatus(*in.Status) {
			return fmt.Errorf("%w: unknown status %q", ErrInvalid, *in.Status)
		}
		status = *in.Status
	}

	t.Content = content
	t.Status = status
	t.DueDate = tags.DueDate
	t.ScheduledDate = tags.ScheduledDate
	t.RepeatFrequency = tags.RepeatFrequency
	t.RepeatIntervalDays = interval
	if t.RepeatFrequency != FreqCustom {
		t.RepeatIntervalDays = 0
	}
	return nil
}

// DeleteTask removes the task with the given id together with its entire
// subtree.
func DeleteTask(p *Project, id string) error {
	n, ok := findNode(p, func(t *Task) bool { return t.ID == id })
	if !ok {
		return fmt.Errorf("%w: task %q", ErrNotFound, id)
	}
	detach(n)
	return nil
}

// DeleteTaskAtLine is DeleteTask addressed by 1-indexed source line.
func DeleteTaskAtLine(p *Project, line int) error {
	n, ok := findNode(p, func(t *Task) bool { return t.LineNumber == line })
	if !ok {
		return fmt.Errorf("%w: task at line %d", ErrNotFound, line)
	}
	detach(n)
	return nil
}

// MoveToParent detaches the task (and its subtree) and re-attaches it as the
// last child of newParentID within the same group, or as the group's last
// root task when newParentID is empty. ParentID and ParentContent follow the
// new location.
func MoveToParent(p *Project, groupID, taskID, newParentID string) (*Task, error) {
	g, ok := p.GroupByID(groupID)
	if !ok {
		return nil, fmt.Errorf("%w: group %q", ErrNotFound, groupID)
	}
	n, ok := findNode(p, func(t *Task) bool { return t.ID == taskID })
	if !ok || n.g != g {
		return nil, fmt.Errorf("%w: task %q in group %q", ErrNotFound, taskID, groupID)
	}

	if newParentID == "" {
		detach(n)
		n.t.ParentID = ""
		n.t.ParentContent = ""
		g.Tasks = append(g.Tasks, n.t)
		return n.t, nil
	}

	pn, ok := findNode(p, func(t *Task) bool { return t.ID == newParentID })
	if !ok || pn.g != g {
		return nil, fmt.Errorf("%w: parent %q in group %q", ErrNotFound, newParentID, groupID)
	}
	if contains(n.t, pn.t) {
		return nil, fmt.Errorf("%w: cannot move a task into its own subtree", ErrInvalid)
	}
	if deepest := pn.depth + 1 + subtreeHeight(n.t); deepest >= MaxDepth {
		return nil, &DepthError{Depth: deepest}
	}

	detach(n)
	n.t.ParentID = pn.t.ID
	n.t.ParentContent = pn.t.Content
	pn.t.Subtasks = append(pn.t.Subtasks, n.t)
	return n.t, nil
}

// MoveToGroup relocates a root-or-nested task to become a new root task of a
// different group. A task changing groups never carries its old parent:
// ParentID and ParentContent are cleared.
func MoveToGroup(p *Project, fromGroupID, toGroupID, taskID string) (*Task, error) {
	from, ok := p.GroupByID(fromGroupID)
	if !ok {
		return nil, fmt.Errorf("%w: group %q", ErrNotFound, fromGroupID)
	}
	to, ok := p.GroupByID(toGroupID)
	if !ok {
		return nil, fmt.Errorf("%w: group %q", ErrNotFound, toGroupID)
	}
	n, ok := findNode(p, func(t *Task) bool { return t.ID == taskID })
	if !ok || n.g != from {
		return nil, fmt.Errorf("%w: task %q in group %q", ErrNotFound, taskID, fromGroupID)
	}

	detach(n)
	n.t.ParentID = ""
	n.t.ParentContent = ""
	to.Tasks = append(to.Tasks, n.t)
	return n.t, nil
}

// Reorder replaces a group's root task list with the given ordering of task
// ids. Every id must name a current root task of the group; root tasks the
// order omits keep their relative order after the reordered ones. Reordering
// with the current order is a no-op.
func Reorder(p *Project, groupID string, order []string) error {
	g, ok := p.GroupByID(groupID)
	if !ok {
		return fmt.Errorf("%w: group %q", ErrNotFound, groupID)
	}

	byID := make(map[string]*Task, len(g.Tasks))
	for _, t := range g.Tasks {
		byID[t.ID] = t
	}

	next := make([]*Task, 0, len(g.Tasks))
	used := make(map[string]bool, len(order))
	for _, id := range order {
		if used[id] {
			return fmt.Errorf("%w: duplicate task %q in order", ErrInvalid, id)
		}
		t, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: task %q is not a root task of group %q", ErrNotFound, id, groupID)
		}
		used[id] = true
		next = append(next, t)
	}
	for _, t := range g.Tasks {
		if !used[t.ID] {
			next = append(next, t)
		}
	}
	g.Tasks = next
	return nil
}
