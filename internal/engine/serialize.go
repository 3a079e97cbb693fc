package engine

import "strings"

// Serialize converts a Project back into document text the parser accepts.
// Output is normalized, not byte-identical to the original source: one H1
// title, explicit "### name" headers unless the only group is the implicit
// Default, then each root task depth-first as a checkbox line with composed
// tags at 4 spaces per level.
//
// A group holding a root-level doing task is emitted as Todo/Doing/Done
// sections instead of a plain list, since doing has no checkbox glyph; root
// tasks keep their relative order within each section. Serialize is
// idempotent on its own output.
func Serialize(p *Project) string {
	var b strings.Builder

	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = p.ID
	}
	b.WriteString("# " + title + "\n")

	explicit := len(p.Groups) > 1 ||
		(len(p.Groups) == 1 && !strings.EqualFold(p.Groups[0].Name, DefaultGroupName))

	for _, g := range p.Groups {
		b.WriteString("\n")
		if explicit {
			b.WriteString("### " + g.Name + "\n\n")
		}
		if groupNeedsSections(g) {
			writeStatusSections(&b, g)
			continue
		}
		for _, t := range g.Tasks {
			writeTaskLines(&b, t, 0)
		}
	}
	return b.String()
}

func groupNeedsSections(g *Group) bool {
	for _, t := range g.Tasks {
		if t.Status == StatusDoing {
			return true
		}
	}
	return false
}

func writeStatusSections(b *strings.Builder, g *Group) {
	sections := []struct {
		status Status
		label  string
	}{
		{StatusTodo, "Todo"},
		{StatusDoing, "Doing"},
		{StatusDone, "Done"},
	}
	first := true
	for _, sec := range sections {
		var tasks []*Task
		for _, t := range g.Tasks {
			if t.Status == sec.status {
				tasks = append(tasks, t)
			}
		}
		if len(tasks) == 0 {
			continue
		}
		if !first {
			b.WriteString("\n")
		}
		b.WriteString("## " + sec.label + "\n")
		for _, t := range tasks {
			writeTaskLines(b, t, 0)
		}
		first = false
	}
}

func writeTaskLines(b *strings.Builder, t *Task, depth int) {
	glyph := " "
	if t.Status == StatusDone {
		glyph = "x"
	}
	line := ComposeTags(t.Content, TagFields{
		DueDate:         t.DueDate,
		ScheduledDate:   t.ScheduledDate,
		RepeatFrequency: t.RepeatFrequency,
	})
	b.WriteString(strings.Repeat("    ", depth))
	b.WriteString("- [" + glyph + "] " + line + "\n")
	for _, sub := range t.Subtasks {
		writeTaskLines(b, sub, depth+1)
	}
}
