package app

import (
	"strings"

	"github.com/dshills/gdbmi/internal/integration/debug"
	"github.com/dshills/gdbmi/internal/integration/debug/mi"
)

// sessionHandlers renders session events on the console output. They run
// on the goroutine that feeds the session.
func (app *Application) sessionHandlers() debug.SessionHandlers {
	return debug.SessionHandlers{
		OnStateChanged: func(old, new debug.SessionState) {
			app.log.Debug("state %s -> %s", old, new)
		},
		OnStopped:          app.onStopped,
		OnError:            func(err *debug.ProtocolError) { app.printf("error: %v\n", err) },
		OnConsole:          func(text string) { app.printf("%s", text) },
		OnTarget:           func(text string) { app.printf("%s", text) },
		OnLog:              func(text string) { app.log.Debug("gdb: %s", strings.TrimRight(text, "\n")) },
		OnNotify:           app.onNotify,
		OnVariable:         func(n *debug.VarNode) { app.printf("%s %s\n", n.MIName, n.Format()) },
		OnChildren:         app.onChildren,
		OnVariablesChanged: app.onVariablesChanged,
		OnBreakpoints: func(snap *debug.Snapshot) {
			app.log.Debug("breakpoint table has %d entries", len(snap.Breakpoints))
		},
		OnDisassembly: func(*debug.Disassembly) { app.printDisassembly() },
		OnSourceLines: func(s *debug.SourceLines) {
			app.printf("line tables loaded for %d files\n", len(s.Files()))
		},
		OnEvaluate:   app.onEvaluate,
		OnUserResult: app.onUserResult,
		OnStack:      func(cs *debug.CallStack) { app.printf("%s", cs.Format()) },
	}
}

func (app *Application) onStopped(reason string, frame mi.Tuple) {
	if strings.HasPrefix(reason, "exited") {
		app.printf("program %s\n", strings.ReplaceAll(reason, "-", " "))
		return
	}

	where := ""
	if frame != nil {
		where = " in " + frame.Str("func")
		if file := frame.Str("file"); file != "" {
			where += " at " + file + ":" + frame.Str("line")
		}
	}
	app.printf("stopped (%s)%s\n", reason, where)

	if _, err := app.session.ListFrames(); err != nil {
		app.log.Warn("list frames: %v", err)
	}
	if app.session.Variables().Len() > 0 {
		if _, err := app.session.UpdateVariables(); err != nil {
			app.log.Warn("update variables: %v", err)
		}
	}
}

func (app *Application) onNotify(rec *mi.AsyncRecord) {
	if app.opts.Dump {
		app.printf("%s\n", rec.JSON())
		return
	}
	app.log.Debug("%s %s %s", rec.Kind, rec.Class, rec.Fields())
}

func (app *Application) onChildren(parent *debug.VarNode) {
	for _, child := range parent.Children {
		app.printf("  %s %s\n", child.MIName, child.Format())
	}
}

func (app *Application) onVariablesChanged(changed []*debug.VarNode) {
	for _, n := range changed {
		app.printf("%s %s\n", strings.Join(n.Path(), "."), n.Format())
	}
}

func (app *Application) onEvaluate(expr, value string, err error) {
	if err != nil {
		app.printf("error: %v\n", err)
		return
	}
	app.printf("%s = %s\n", expr, value)
}

func (app *Application) onUserResult(command string, rec *mi.Record) {
	if app.opts.JSONPath != "" {
		if res := rec.Query(app.opts.JSONPath); res.Exists() {
			app.printf("%s\n", res.Raw)
		} else {
			app.printf("null\n")
		}
		return
	}
	if app.opts.Dump {
		app.printf("%s\n", rec.JSON())
		return
	}
	if len(rec.Results) == 0 {
		app.log.Debug("%s: %s", command, rec.Class)
		return
	}
	app.printf("^%s %s\n", rec.Class, rec.Fields())
}

// printDisassembly writes the current listing with the PC and breakpoint
// markers in the left margin.
func (app *Application) printDisassembly() {
	lines := app.session.Disassembly().Current().Lines()
	hl := app.session.Highlight()

	marks := make(map[int]string, len(hl.Enabled)+len(hl.Disabled)+1)
	for _, n := range hl.Disabled {
		marks[n] = "o"
	}
	for _, n := range hl.Enabled {
		marks[n] = "*"
	}
	if hl.PCLine >= 0 {
		marks[hl.PCLine] += ">"
	}

	for i, line := range lines {
		app.printf("%-2s%s\n", marks[i], line)
	}
}
