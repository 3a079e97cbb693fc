// Package cli is the command front-end over the document engine and its
// stores.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/amirbrooks/taskdown/internal/engine"
	"github.com/amirbrooks/taskdown/internal/store"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitInvalid  = 4
	ExitInternal = 10
)

type GlobalFlags struct {
	Root  string
	JSON  bool
	Plain bool
	ASCII bool
	Quiet bool
}

func Run(args []string) int {
	gf, rest, err := extractGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		return ExitUsage
	}

	if len(rest) == 0 {
		printHelp()
		return ExitUsage
	}

	cmd := rest[0]
	cmdArgs := rest[1:]

	ws, err := store.Open(gf.Root)
	if err != nil {
		fmt.Fprintln(os.Stderr, "taskdown:", err)
		return ExitInternal
	}

	switch cmd {
	case "help", "--help", "-h":
		printHelp()
		return ExitOK
	case "init":
		return cmdInit(ws, gf, cmdArgs)
	case "doc":
		return cmdDoc(ws, gf, cmdArgs)
	case "add":
		return cmdAdd(ws, gf, cmdArgs)
	case "ls", "list":
		return cmdList(ws, gf, cmdArgs)
	case "show":
		return cmdShow(ws, gf, cmdArgs)
	case "done":
		return cmdDone(ws, gf, cmdArgs)
	case "rm", "delete":
		return cmdDelete(ws, gf, cmdArgs)
	case "mv", "move":
		return cmdMove(ws, gf, cmdArgs)
	case "regroup":
		return cmdRegroup(ws, gf, cmdArgs)
	case "reorder":
		return cmdReorder(ws, gf, cmdArgs)
	case "board":
		return cmdBoard(ws, gf, cmdArgs)
	case "today":
		return cmdToday(ws, gf, cmdArgs)
	case "week", "agenda", "upcoming":
		return cmdAgenda(ws, gf, cmdArgs)
	case "export":
		return cmdExport(ws, gf, cmdArgs)
	case "import":
		return cmdImport(ws, gf, cmdArgs)
	case "config", "cfg":
		return cmdConfig(ws, gf, cmdArgs)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printHelp()
		return ExitUsage
	}
}

func printHelp() {
	fmt.Print(`taskdown: plain-text task trees (markdown dialect, no DB)

Usage:
  taskdown [global flags] <command> [args]

Global flags:
  --root <path>    Store root (default: ~/.taskdown or TASKDOWN_ROOT)
  --json           JSON output
  --plain          TSV output
  --ascii          ASCII rendering for board output
  --quiet

Commands:
  init [--doc <name>]
  doc add "<name>"
  doc ls
  add "<content>" [--doc <slug>] [--group <name>] [--parent <line>]
      [--due YYYY-MM-DD] [--do YYYY-MM-DD] [--repeat daily|weekly|monthly|custom]
      [--every <days>] [--status todo|doing|done]
  ls [--doc <slug>] [--group <name>] [--status <s>]
  show <doc>
  done <doc> <line>           (recurring tasks roll over to their next occurrence)
  rm <doc> <line>
  mv <doc> <line> <parent-line|root>
  regroup <doc> <line> "<group name>"
  reorder <doc> --group <name> <line> [<line>...]
  board <doc>
  today
  week [--days N]
  export <doc>                (copy into the snapshot store, stable ids)
  import <snapshot-id> "<name>"
  config show
  config set default_document <slug>

Dates use YYYY-MM-DD. Inline tags #due:, #do:, and #repeat: in task content
are extracted on add.
`)
}

func extractGlobalFlags(args []string) (GlobalFlags, []string, error) {
	// Allow flags anywhere by scanning and stripping known globals.
	gf := GlobalFlags{}

	if env := os.Getenv("TASKDOWN_ROOT"); env != "" {
		gf.Root = env
	} else {
		home, _ := os.UserHomeDir()
		if home != "" {
			gf.Root = filepath.Join(home, ".taskdown")
		} else {
			gf.Root = ".taskdown"
		}
	}

	out := make([]string, 0, len(args))
	skip := 0
	for i := 0; i < len(args); i++ {
		if skip > 0 {
			skip--
			continue
		}
		switch a := args[i]; a {
		case "--root":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--root requires a value")
			}
			gf.Root = args[i+1]
			skip = 1
		case "--json":
			gf.JSON = true
		case "--plain":
			gf.Plain = true
		case "--ascii":
			gf.ASCII = true
		case "--quiet":
			gf.Quiet = true
		default:
			out = append(out, a)
		}
	}
	return gf, out, nil
}

// fail prints an engine/store error and maps it onto an exit code.
func fail(context string, err error) int {
	fmt.Fprintf(os.Stderr, "%s: %v\n", context, err)
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, engine.ErrInvalid),
		errors.Is(err, engine.ErrMalformedDate),
		errors.Is(err, engine.ErrDepthLimit),
		errors.Is(err, engine.ErrNotRecurring):
		return ExitInvalid
	default:
		return ExitInternal
	}
}

func usage(msg string) int {
	fmt.Fprintln(os.Stderr, msg)
	return ExitUsage
}

// resolveDoc picks the target document: explicit flag, then the configured
// default.
func resolveDoc(ws *store.Workspace, flagVal string) (string, bool) {
	if s := strings.TrimSpace(flagVal); s != "" {
		return engine.Slugify(s), true
	}
	if s := strings.TrimSpace(ws.Config().DefaultDocument); s != "" {
		return s, true
	}
	return "", false
}

func cmdInit(ws *store.Workspace, gf GlobalFlags, args []string) int {
	docName := "Tasks"
	for i := 0; i < len(args); i++ {
		if args[i] == "--doc" && i+1 < len(args) {
			docName = args[i+1]
			i++
		}
	}
	if err := ws.Init(docName); err != nil {
		return fail("init", err)
	}
	if !gf.Quiet {
		fmt.Println("Initialized store at:", ws.Root)
		fmt.Println("Default document:", engine.Slugify(docName))
	}
	return ExitOK
}

func cmdDoc(ws *store.Workspace, gf GlobalFlags, args []string) int {
	if len(args) == 0 {
		return usage("Usage: taskdown doc <add|ls> ...")
	}
	switch args[0] {
	case "add":
		if len(args) < 2 {
			return usage(`Usage: taskdown doc add "<name>"`)
		}
		name := strings.Join(args[1:], " ")
		p, err := ws.CreateDocument(name)
		if err != nil {
			return fail("doc add", err)
		}
		if !gf.Quiet {
			fmt.Println("Created document:", p.ID)
		}
		return ExitOK
	case "ls":
		docs, err := ws.ListDocuments()
		if err != nil {
			return fail("doc ls", err)
		}
		if gf.JSON {
			return printJSON(docs)
		}
		w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DOC\tTITLE\tGROUPS\tTASKS")
		for _, p := range docs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\n", p.ID, p.Title, len(p.Groups), len(store.Flatten(p)))
		}
		_ = w.Flush()
		return ExitOK
	default:
		return usage("Usage: taskdown doc <add|ls> ...")
	}
}

func cmdAdd(ws *store.Workspace, gf GlobalFlags, args []string) int {
	var (
		doc, group, due, do, status, repeat string
		parent, every                       int
		rest                                []string
	)
	for i := 0; i < len(args); i++ {
		a := args[i]
		hasValue := i+1 < len(args)
		switch {
		case a == "--doc" && hasValue:
			doc = args[i+1]
			i++
		case a == "--group" && hasValue:
			group = args[i+1]
			i++
		case a == "--due" && hasValue:
			due = args[i+1]
			i++
		case a == "--do" && hasValue:
			do = args[i+1]
			i++
		case a == "--repeat" && hasValue:
			repeat = args[i+1]
			i++
		case a == "--status" && hasValue:
			status = args[i+1]
			i++
		case a == "--parent" && hasValue:
			parent, _ = strconv.Atoi(args[i+1])
			i++
		case a == "--every" && hasValue:
			every, _ = strconv.Atoi(args[i+1])
			i++
		default:
			rest = append(rest, a)
		}
	}
	content := strings.TrimSpace(strings.Join(rest, " "))
	if content == "" {
		return usage(`Usage: taskdown add "<content>" [--doc <slug>] [flags]`)
	}
	slug, ok := resolveDoc(ws, doc)
	if !ok {
		return usage("add: no document given and no default configured (use --doc or taskdown init)")
	}

	in := engine.AddTaskInput{
		Content:            content,
		Status:             engine.Status(status),
		DueDate:            due,
		ScheduledDate:      do,
		RepeatFrequency:    engine.Frequency(repeat),
		RepeatIntervalDays: every,
		ParentLine:         parent,
	}
	p, err := ws.Mutate(slug, func(p *engine.Project) error {
		gid := p.DefaultGroup().ID
		if group != "" {
			g, ok := p.GroupByName(group)
			if !ok {
				g = &engine.Group{ID: engine.Slugify(group), Name: strings.TrimSpace(group)}
				p.Groups = append(p.Groups, g)
			}
			gid = g.ID
		}
		in.GroupID = gid
		_, err := engine.AddTask(p, in)
		return err
	})
	if err != nil {
		return fail("add", err)
	}
	if !gf.Quiet {
		fmt.Printf("Added to %s (%d tasks)\n", p.ID, len(store.Flatten(p)))
	}
	return ExitOK
}

func cmdList(ws *store.Workspace, gf GlobalFlags, args []string) int {
	var doc, group, status string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--doc":
			if i+1 < len(args) {
				doc = args[i+1]
				i++
			}
		case "--group":
			if i+1 < len(args) {
				group = args[i+1]
				i++
			}
		case "--status":
			if i+1 < len(args) {
				status = args[i+1]
				i++
			}
		}
	}
	slug, ok := resolveDoc(ws, doc)
	if !ok {
		return usage("ls: no document given and no default configured (use --doc or taskdown init)")
	}
	p, err := ws.LoadDocument(slug)
	if err != nil {
		return fail("ls", err)
	}

	var rows []store.FlatTask
	for _, row := range store.Flatten(p) {
		if group != "" && !strings.EqualFold(row.Group, group) {
			continue
		}
		if status != "" && string(row.Task.Status) != strings.ToLower(strings.TrimSpace(status)) {
			continue
		}
		rows = append(rows, row)
	}

	if gf.JSON {
		return printJSON(rows)
	}
	w := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
	if gf.Plain {
		fmt.Fprintln(w, "LINE\tSTATUS\tGROUP\tCONTENT\tDO\tDUE\tREPEAT")
	}
	for _, row := range rows {
		t := row.Task
		if gf.Plain {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				t.LineNumber, t.Status, row.Group, t.Content, t.ScheduledDate, t.DueDate, t.RepeatFrequency)
			continue
		}
		glyph := "[ ]"
		if t.Done() {
			glyph = "[x]"
		}
		extra := ""
		if t.Status == engine.StatusDoing {
			extra = " (doing)"
		}
		indent := strings.Repeat("    ", row.Depth)
		fmt.Fprintf(w, "%4d\t%s%s %s%s%s\n", t.LineNumber, indent, glyph, t.Content, dateNote(t), extra)
	}
	_ = w.Flush()
	return ExitOK
}

func dateNote(t *engine.Task) string {
	var parts []string
	if t.ScheduledDate != "" {
		parts = append(parts, "do "+t.ScheduledDate)
	}
	if t.DueDate != "" {
		parts = append(parts, "due "+t.DueDate)
	}
	if t.RepeatFrequency == engine.FreqCustom {
		parts = append(parts, fmt.Sprintf("every %dd", t.RepeatIntervalDays))
	} else if t.RepeatFrequency != "" {
		parts = append(parts, string(t.RepeatFrequency))
	}
	if len(parts) == 0 {
		return ""
	}
	return "  (" + strings.Join(parts, ", ") + ")"
}

func cmdShow(ws *store.Workspace, gf GlobalFlags, args []string) int {
	if len(args) < 1 {
		return usage("Usage: taskdown show <doc>")
	}
	p, err := ws.LoadDocument(engine.Slugify(args[0]))
	if err != nil {
		return fail("show", err)
	}
	if gf.JSON {
		return printJSON(p)
	}
	fmt.Print(engine.Serialize(p))
	return ExitOK
}

func lineArg(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	return n, err == nil && n > 0
}

func cmdDone(ws *store.Workspace, gf GlobalFlags, args []string) int {
	if len(args) < 2 {
		return usage("Usage: taskdown done <doc> <line>")
	}
	line, ok := lineArg(args[1])
	if !ok {
		return usage("done: line must be a positive number")
	}
	_, rolled, err := ws.CompleteTask(engine.Slugify(args[0]), line)
	if err != nil {
		return fail("done", err)
	}
	if !gf.Quiet {
		if rolled {
			fmt.Println("Done. Next occurrence added.")
		} else {
			fmt.Println("Done.")
		}
	}
	return ExitOK
}

func cmdDelete(ws *store.Workspace, gf GlobalFlags, args []string) int {
	if len(args) < 2 {
		return usage("Usage: taskdown rm <doc> <line>")
	}
	line, ok := lineArg(args[1])
	if !ok {
		return usage("rm: line must be a positive number")
	}
	if _, err := ws.DeleteTask(engine.Slugify(args[0]), line); err != nil {
		return fail("rm", err)
	}
	if !gf.Quiet {
		fmt.Println("Deleted (with subtasks).")
	}
	return ExitOK
}

func cmdMove(ws *store.Workspace, gf GlobalFlags, args []string) int {
	if len(args) < 3 {
		return usage("Usage: taskdown mv <doc> <line> <parent-line|root>")
	}
	line, ok := lineArg(args[1])
	if !ok {
		return usage("mv: line must be a positive number")
	}
	parentLine := 0
	if args[2] != "root" {
		parentLine, ok = lineArg(args[2])
		if !ok {
			return usage(`mv: parent must be a line number or "root"`)
		}
	}
	if _, err := ws.MoveTaskToParent(engine.Slugify(args[0]), line, parentLine); err != nil {
		return fail("mv", err)
	}
	if !gf.Quiet {
		fmt.Println("Moved.")
	}
	return ExitOK
}

func cmdRegroup(ws *store.Workspace, gf GlobalFlags, args []string) int {
	if len(args) < 3 {
		return usage(`Usage: taskdown regroup <doc> <line> "<group name>"`)
	}
	line, ok := lineArg(args[1])
	if !ok {
		return usage("regroup: line must be a positive number")
	}
	group := strings.Join(args[2:], " ")
	if _, err := ws.MoveTaskToGroup(engine.Slugify(args[0]), line, group); err != nil {
		return fail("regroup", err)
	}
	if !gf.Quiet {
		fmt.Println("Moved to group:", strings.TrimSpace(group))
	}
	return ExitOK
}

func cmdReorder(ws *store.Workspace, gf GlobalFlags, args []string) int {
	var doc string
	group := engine.DefaultGroupName
	var lines []int
	for i := 0; i < len(args); i++ {
		if args[i] == "--group" && i+1 < len(args) {
			group = args[i+1]
			i++
			continue
		}
		if doc == "" {
			doc = args[i]
			continue
		}
		n, ok := lineArg(args[i])
		if !ok {
			return usage("reorder: lines must be positive numbers")
		}
		lines = append(lines, n)
	}
	if doc == "" || len(lines) == 0 {
		return usage("Usage: taskdown reorder <doc> --group <name> <line> [<line>...]")
	}
	if _, err := ws.ReorderGroup(engine.Slugify(doc), group, lines); err != nil {
		return fail("reorder", err)
	}
	if !gf.Quiet {
		fmt.Println("Reordered.")
	}
	return ExitOK
}

func cmdBoard(ws *store.Workspace, gf GlobalFlags, args []string) int {
	var doc string
	if len(args) > 0 {
		doc = args[0]
	}
	slug, ok := resolveDoc(ws, doc)
	if !ok {
		return usage("board: no document given and no default configured")
	}
	p, err := ws.LoadDocument(slug)
	if err != nil {
		return fail("board", err)
	}
	fmt.Println(store.RenderBoard(p, gf.ASCII))
	return ExitOK
}

func cmdToday(ws *store.Workspace, gf GlobalFlags, args []string) int {
	docs, err := ws.ListDocuments()
	if err != nil {
		return fail("today", err)
	}
	fmt.Println(store.RenderToday(docs))
	return ExitOK
}

func cmdAgenda(ws *store.Workspace, gf GlobalFlags, args []string) int {
	days := 7
	for i := 0; i < len(args); i++ {
		if args[i] == "--days" && i+1 < len(args) {
			if n, err := strconv.Atoi(args[i+1]); err == nil {
				days = n
			}
			i++
		}
	}
	docs, err := ws.ListDocuments()
	if err != nil {
		return fail("week", err)
	}
	fmt.Println(store.RenderAgenda(docs, days))
	return ExitOK
}

func cmdExport(ws *store.Workspace, gf GlobalFlags, args []string) int {
	if len(args) < 1 {
		return usage("Usage: taskdown export <doc>")
	}
	p, err := ws.LoadDocument(engine.Slugify(args[0]))
	if err != nil {
		return fail("export", err)
	}
	snap, err := ws.Snapshots().Import(p)
	if err != nil {
		return fail("export", err)
	}
	fmt.Println(snap.ID)
	return ExitOK
}

func cmdImport(ws *store.Workspace, gf GlobalFlags, args []string) int {
	if len(args) < 2 {
		return usage(`Usage: taskdown import <snapshot-id> "<name>"`)
	}
	text, err := ws.Snapshots().ExportText(args[0])
	if err != nil {
		return fail("import", err)
	}
	name := strings.Join(args[1:], " ")
	p, err := ws.WriteDocument(name, text)
	if err != nil {
		return fail("import", err)
	}
	if !gf.Quiet {
		fmt.Println("Created document:", p.ID)
	}
	return ExitOK
}

func cmdConfig(ws *store.Workspace, gf GlobalFlags, args []string) int {
	if len(args) == 0 {
		return usage("Usage: taskdown config <show|set> ...")
	}
	switch args[0] {
	case "show":
		cfg := ws.Config()
		if gf.JSON {
			return printJSON(cfg)
		}
		fmt.Println("Config")
		fmt.Println("  Root:", ws.Root)
		fmt.Println("  Default document:", cfg.DefaultDocument)
		return ExitOK
	case "set":
		if len(args) < 3 {
			return usage("Usage: taskdown config set <key> <value>")
		}
		key := strings.ToLower(strings.TrimSpace(args[1]))
		value := strings.TrimSpace(strings.Join(args[2:], " "))
		cfg := ws.Config()
		switch key {
		case "default_document":
			if value == "" || value == "none" || value == "null" {
				cfg.DefaultDocument = ""
			} else {
				cfg.DefaultDocument = engine.Slugify(value)
			}
		default:
			fmt.Fprintf(os.Stderr, "config set: unknown key %q\n", key)
			return ExitUsage
		}
		if err := ws.SaveConfig(cfg); err != nil {
			return fail("config set", err)
		}
		if !gf.Quiet {
			fmt.Println("Set", key)
		}
		return ExitOK
	default:
		return usage("Usage: taskdown config <show|set> ...")
	}
}

func printJSON(v any) int {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintln(os.Stderr, "json:", err)
		return ExitInternal
	}
	return ExitOK
}
