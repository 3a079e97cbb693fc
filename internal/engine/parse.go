package engine

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	titleRe    = regexp.MustCompile(`^# (.+)$`)
	headerRe   = regexp.MustCompile(`^#{2,3} (.+)$`)
	checkboxRe = regexp.MustCompile(`^( *)- \[( |x)\] (.*)$`)
)

// Parse converts document text into a Project. The first H1 becomes the
// title (fallbackTitle, then id, when absent). H2/H3 headers whose text is
// literally Todo, Doing, or Done set the status context for the root items
// that follow; any other header opens a new group. Checkbox items nest by
// 4-space indents; everything the dialect does not recognize is ignored.
//
// Status resolution where the section header and the glyph disagree: a
// checked box is always done; an unchecked box takes the section status at
// root level (the only way doing is reachable from text) and is todo below
// the root.
//
// Task ids are derived from source line numbers (file-addressed mode); the
// structured store assigns its own stable ids on import.
func Parse(text, id, fallbackTitle string) (*Project, error) {
	p := &Project{ID: id}

	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var (
		cur       *Group
		statusCtx Status
		lastDepth = -1
		lastAt    [MaxDepth]*Task
		seenSlugs = map[string]int{}
	)

	ensureGroup := func() *Group {
		if cur == nil {
			cur = &Group{ID: groupSlug(DefaultGroupName, seenSlugs), Name: DefaultGroupName}
			p.Groups = append(p.Groups, cur)
		}
		return cur
	}

	for i, line := range strings.Split(text, "\n") {
		lineNum := i + 1

		if m := titleRe.FindStringSubmatch(line); m != nil {
			if p.Title == "" {
				p.Title = strings.TrimSpace(m[1])
			}
			continue
		}

		if m := headerRe.FindStringSubmatch(line); m != nil {
			name := strings.TrimSpace(m[1])
			if s, ok := statusHeader(name); ok {
				ensureGroup()
				statusCtx = s
			} else {
				cur = &Group{ID: groupSlug(name, seenSlugs), Name: name}
				p.Groups = append(p.Groups, cur)
				statusCtx = ""
			}
			lastDepth = -1
			continue
		}

		m := checkboxRe.FindStringSubmatch(line)
		if m == nil {
			// Free text, malformed checkboxes included.
			continue
		}

		depth := len(m[1]) / 4
		if depth >= MaxDepth {
			return nil, &DepthError{Line: lineNum, Depth: depth}
		}
		// An indent jumping more than one level past the previous item
		// clamps to one level below it.
		if depth > lastDepth+1 {
			depth = lastDepth + 1
		}

		content, tags, err := ExtractTags(m[3])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		status := StatusTodo
		switch {
		case m[2] == "x":
			status = StatusDone
		case depth == 0 && statusCtx != "":
			status = statusCtx
		}

		task := &Task{
			ID:              LineID(id, lineNum),
			Content:         content,
			Status:          status,
			RawLine:         line,
			LineNumber:      lineNum,
			DueDate:         tags.DueDate,
			ScheduledDate:   tags.ScheduledDate,
			RepeatFrequency: tags.RepeatFrequency,
		}

		if depth == 0 {
			g := ensureGroup()
			g.Tasks = append(g.Tasks, task)
		} else {
			parent := lastAt[depth-1]
			task.ParentID = parent.ID
			task.ParentContent = parent.Content
			parent.Subtasks = append(parent.Subtasks, task)
		}
		lastAt[depth] = task
		lastDepth = depth
	}

	if p.Title == "" {
		p.Title = fallbackTitle
	}
	if p.Title == "" {
		p.Title = id
	}
	ensureGroup()
	return p, nil
}

func statusHeader(name string) (Status, bool) {
	switch strings.ToLower(name) {
	case "todo":
		return StatusTodo, true
	case "doing":
		return StatusDoing, true
	case "done":
		return StatusDone, true
	default:
		return "", false
	}
}

func groupSlug(name string, seen map[string]int) string {
	slug := Slugify(name)
	seen[slug]++
	if n := seen[slug]; n > 1 {
		return fmt.Sprintf("%s-%d", slug, n)
	}
	return slug
}

// Slugify lowercases s and collapses runs of non-alphanumerics into single
// hyphens.
func Slugify(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return "x"
	}
	var b strings.Builder
	lastHyphen := false
	for _, r := range s {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			b.WriteRune(r)
			lastHyphen = false
		} else {
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "x"
	}
	return out
}
