package store

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/amirbrooks/taskdown/internal/engine"
)

const overviewMaxChars = 3800

// FlatTask is one row of a non-recursive view. Parent carries the
// denormalized parent content so flat rows can show their context without
// another tree walk.
type FlatTask struct {
	Doc    string
	Group  string
	Parent string
	Task   *engine.Task
	Depth  int
}

// Flatten lists every task of a project depth-first.
func Flatten(p *engine.Project) []FlatTask {
	var out []FlatTask
	for _, g := range p.Groups {
		for _, t := range g.Tasks {
			out = flattenInto(out, p.ID, g.Name, t, 0)
		}
	}
	return out
}

func flattenInto(out []FlatTask, doc, group string, t *engine.Task, depth int) []FlatTask {
	out = append(out, FlatTask{Doc: doc, Group: group, Parent: t.ParentContent, Task: t, Depth: depth})
	for _, sub := range t.Subtasks {
		out = flattenInto(out, doc, group, sub, depth+1)
	}
	return out
}

func statusEmoji(s engine.Status) string {
	switch s {
	case engine.StatusTodo:
		return "📝"
	case engine.StatusDoing:
		return "🔨"
	case engine.StatusDone:
		return "✅"
	default:
		return ""
	}
}

func statusLabel(s engine.Status, ascii bool) string {
	name := strings.Title(string(s))
	if ascii {
		return name
	}
	emoji := statusEmoji(s)
	if emoji == "" {
		return name
	}
	return emoji + " " + name
}

// RenderBoard renders one document as a status board: per group, tasks
// bucketed Todo/Doing/Done with subtasks indented beneath their roots.
func RenderBoard(p *engine.Project, ascii bool) string {
	var b strings.Builder
	b.WriteString(p.Title + "\n")
	wroteAny := false
	for _, g := range p.Groups {
		for _, status := range []engine.Status{engine.StatusTodo, engine.StatusDoing, engine.StatusDone} {
			var roots []*engine.Task
			for _, t := range g.Tasks {
				if t.Status == status {
					roots = append(roots, t)
				}
			}
			if len(roots) == 0 {
				continue
			}
			b.WriteString("\n")
			header := statusLabel(status, ascii)
			if len(p.Groups) > 1 {
				header = g.Name + " / " + header
			}
			b.WriteString(header + "\n")
			for _, t := range roots {
				writeBoardLines(&b, t, 1, ascii)
			}
			wroteAny = true
		}
	}
	if !wroteAny {
		b.WriteString("\n(no tasks)\n")
	}
	return trimOverview(b.String())
}

func writeBoardLines(b *strings.Builder, t *engine.Task, indent int, ascii bool) {
	line := truncate(taskText(t), 80, ascii)
	b.WriteString(strings.Repeat("  ", indent) + "- " + line + dateSuffix(t) + "\n")
	for _, sub := range t.Subtasks {
		writeBoardLines(b, sub, indent+1, ascii)
	}
}

func taskText(t *engine.Task) string {
	content := strings.TrimSpace(t.Content)
	if content == "" {
		return "(untitled)"
	}
	return content
}

func dateSuffix(t *engine.Task) string {
	var parts []string
	if t.ScheduledDate != "" {
		parts = append(parts, "do "+t.ScheduledDate)
	}
	if t.DueDate != "" {
		parts = append(parts, "due "+t.DueDate)
	}
	if t.RepeatFrequency != "" {
		parts = append(parts, "repeats "+string(t.RepeatFrequency))
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

// RenderToday is a flat cross-document view: overdue tasks, tasks due today,
// and tasks scheduled for today. Rows of nested tasks show their parent's
// content.
func RenderToday(docs []*engine.Project) string {
	today := timeNow().Format(engine.DateLayout)
	var overdue, dueToday, scheduled []FlatTask
	for _, p := range docs {
		for _, row := range Flatten(p) {
			if row.Task.Done() {
				continue
			}
			switch {
			case row.Task.DueDate != "" && row.Task.DueDate < today:
				overdue = append(overdue, row)
			case row.Task.DueDate == today:
				dueToday = append(dueToday, row)
			}
			if row.Task.ScheduledDate == today {
				scheduled = append(scheduled, row)
			}
		}
	}
	if len(overdue) == 0 && len(dueToday) == 0 && len(scheduled) == 0 {
		return fmt.Sprintf("Today (%s) - nothing due, nothing scheduled", today)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Today (%s) - due %d, overdue %d, scheduled %d\n", today, len(dueToday), len(overdue), len(scheduled))
	writeFlatSection(&b, "Overdue", overdue, true)
	writeFlatSection(&b, "Due today", dueToday, false)
	writeFlatSection(&b, "Scheduled today", scheduled, false)
	return trimOverview(b.String())
}

// RenderAgenda lists upcoming due tasks across documents, one section per
// day, for the given number of days starting today.
func RenderAgenda(docs []*engine.Project, days int) string {
	if days <= 0 {
		days = 7
	}
	start := timeNow()
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, days-1)

	byDate := map[string][]FlatTask{}
	var overdue []FlatTask
	for _, p := range docs {
		for _, row := range Flatten(p) {
			if row.Task.Done() || row.Task.DueDate == "" {
				continue
			}
			d, err := time.Parse(engine.DateLayout, row.Task.DueDate)
			if err != nil {
				continue
			}
			switch {
			case d.Before(start):
				overdue = append(overdue, row)
			case d.After(end):
			default:
				key := d.Format(engine.DateLayout)
				byDate[key] = append(byDate[key], row)
			}
		}
	}

	total := 0
	for _, rows := range byDate {
		total += len(rows)
	}
	rangeLabel := fmt.Sprintf("%s -> %s", start.Format(engine.DateLayout), end.Format(engine.DateLayout))
	if total == 0 && len(overdue) == 0 {
		return fmt.Sprintf("Week (%d days) - %s - nothing due, nothing overdue", days, rangeLabel)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Week (%d days) - %s - due %d, overdue %d\n", days, rangeLabel, total, len(overdue))
	writeFlatSection(&b, "Overdue", overdue, true)
	keys := make([]string, 0, len(byDate))
	for k := range byDate {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		d, _ := time.Parse(engine.DateLayout, key)
		label := fmt.Sprintf("%s (%s)", key, d.Weekday().String()[:3])
		writeFlatSection(&b, label, byDate[key], false)
	}
	return trimOverview(b.String())
}

func writeFlatSection(b *strings.Builder, title string, rows []FlatTask, includeDue bool) {
	if len(rows) == 0 {
		return
	}
	b.WriteString("\n" + title + "\n")
	for _, row := range rows {
		label := taskText(row.Task)
		if row.Parent != "" {
			label = row.Parent + " > " + label
		}
		suffix := ""
		if includeDue && row.Task.DueDate != "" {
			suffix = " (due " + row.Task.DueDate + ")"
		}
		fmt.Fprintf(b, "  - %s/%s: %s%s\n", row.Doc, row.Group, truncate(label, 80, false), suffix)
	}
}

func trimOverview(s string) string {
	s = strings.TrimRight(s, "\n")
	runes := []rune(s)
	if len(runes) <= overviewMaxChars {
		return s
	}
	suffix := "\n… (truncated)"
	limit := overviewMaxChars - len([]rune(suffix))
	if limit < 1 {
		return string(runes[:overviewMaxChars])
	}
	return string(runes[:limit]) + suffix
}

func truncate(s string, n int, ascii bool) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	if ascii {
		return string(r[:n-2]) + ".."
	}
	// unicode ellipsis
	return string(r[:n-1]) + "…"
}
