package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dshills/gdbmi/internal/integration/debug"
	"github.com/dshills/gdbmi/internal/integration/debug/mi"
)

// command is a console command built on a session operation.
type command struct {
	names []string
	usage string
	help  string
	run   func(app *Application, args []string) error
}

func builtinCommands() []command {
	return []command{
		{[]string{"quit", "q", "exit"}, "quit", "leave the console", cmdQuit},
		{[]string{"help", "h"}, "help", "list console commands", cmdHelp},
		{[]string{"break", "b"}, "break LOCATION", "insert a breakpoint", cmdBreak},
		{[]string{"enable"}, "enable ID", "enable a breakpoint", cmdBreakChange((*debug.Session).EnableBreakpoint)},
		{[]string{"disable"}, "disable ID", "disable a breakpoint", cmdBreakChange((*debug.Session).DisableBreakpoint)},
		{[]string{"delete", "d"}, "delete ID", "delete a breakpoint", cmdBreakChange((*debug.Session).DeleteBreakpoint)},
		{[]string{"breakpoints", "bl"}, "breakpoints [FILE]", "show the breakpoint table or the lines of FILE", cmdBreakpoints},
		{[]string{"print", "p"}, "print EXPR", "evaluate an expression", cmdPrint},
		{[]string{"var"}, "var EXPR", "create a variable object", cmdVar},
		{[]string{"expand"}, "expand NAME...", "list the children of variable objects", cmdExpand},
		{[]string{"update"}, "update", "refresh variable objects", cmdUpdate},
		{[]string{"vars"}, "vars", "show variable objects", cmdVars},
		{[]string{"undisplay"}, "undisplay NAME", "delete a variable object", cmdUndisplay},
		{[]string{"backtrace", "bt"}, "backtrace", "show the call stack", cmdBacktrace},
		{[]string{"frame", "f"}, "frame N", "select a stack frame", cmdFrame},
		{[]string{"disassemble", "disas"}, "disassemble [START END]", "disassemble around the PC or a range", cmdDisassemble},
		{[]string{"sources"}, "sources", "load source line tables", cmdSources},
		{[]string{"whereis"}, "whereis ADDR", "map an address to a source line", cmdWhereis},
		{[]string{"capture"}, "capture COMMAND", "run a command and collect its target output", cmdCapture},
		{[]string{"metrics"}, "metrics", "show engine counters", cmdMetrics},
		{[]string{"state"}, "state", "show the session state", cmdState},
	}
}

// Execute runs one console line. Lines starting with "-" are sent as MI
// commands, known console commands map to session operations and anything
// else is passed to the debugger's CLI interpreter.
func (app *Application) Execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}

	if strings.HasPrefix(line, "-") {
		if _, err := app.session.Command(line); err != nil {
			return NewOperationError("send", line, err)
		}
		return nil
	}

	fields := strings.Fields(line)
	if cmd, ok := app.lookup(fields[0]); ok {
		return cmd.run(app, fields[1:])
	}

	cli := "-interpreter-exec console " + mi.Const(line).String()
	if _, err := app.session.Command(cli); err != nil {
		return NewOperationError("send", line, err).WithContext("cli")
	}
	return nil
}

func (app *Application) lookup(name string) (command, bool) {
	for _, cmd := range app.commands {
		for _, n := range cmd.names {
			if n == name {
				return cmd, true
			}
		}
	}
	return command{}, false
}

func cmdQuit(*Application, []string) error {
	return ErrQuit
}

func cmdHelp(app *Application, _ []string) error {
	for _, cmd := range app.commands {
		app.printf("  %-26s %s\n", cmd.usage, cmd.help)
	}
	app.printf("  %-26s %s\n", "-MI-COMMAND", "send an MI command")
	app.printf("  %-26s %s\n", "anything else", "run a debugger CLI command")
	return nil
}

func cmdBreak(app *Application, args []string) error {
	if len(args) == 0 {
		return usage("break LOCATION")
	}
	location := strings.Join(args, " ")
	if _, err := app.session.InsertBreakpoint(location); err != nil {
		return NewOperationError("break", location, err)
	}
	return nil
}

func cmdBreakChange(op func(*debug.Session, string) (debug.Token, error)) func(*Application, []string) error {
	return func(app *Application, args []string) error {
		if len(args) != 1 {
			return usage("ID")
		}
		if _, err := op(app.session, args[0]); err != nil {
			return NewOperationError("breakpoint", args[0], err)
		}
		return nil
	}
}

func cmdBreakpoints(app *Application, args []string) error {
	switch len(args) {
	case 0:
	case 1:
		return app.printBreakpointLines(args[0])
	default:
		return usage("breakpoints [FILE]")
	}

	snap := app.session.Breakpoints().Snapshot()
	if len(snap.Breakpoints) == 0 {
		app.printf("no breakpoints\n")
		return nil
	}

	app.printf("%-6s %-12s %-4s %-18s %s\n", "Num", "Type", "Enb", "Address", "What")
	for _, bp := range snap.Breakpoints {
		what := bp.OriginalLocation
		if bp.File != "" {
			what = fmt.Sprintf("%s at %s:%d", bp.Func, bp.File, bp.Line)
		}
		app.printf("%-6s %-12s %-4s %-18s %s\n", bp.Number, bp.Type, yesNo(bp.Enabled), address(bp.Addr, bp.HasAddr), what)
		for _, loc := range bp.Locations {
			app.printf("%-6s %-12s %-4s %-18s %s at %s:%d\n", loc.Number, "", yesNo(loc.Enabled), address(loc.Addr, loc.HasAddr), loc.Func, loc.File, loc.Line)
		}
	}
	return nil
}

// printBreakpointLines lists the lines of file that carry breakpoints.
// file is matched against the full source path.
func (app *Application) printBreakpointLines(file string) error {
	bps := app.session.Breakpoints()
	enabled := bps.EnabledLinesForFile(file).Sorted()
	disabled := bps.DisabledLinesForFile(file).Sorted()
	if len(enabled) == 0 && len(disabled) == 0 {
		app.printf("no breakpoints in %s\n", file)
		return nil
	}
	app.printf("%s: enabled %s, disabled %s\n", file, lineList(enabled), lineList(disabled))
	return nil
}

func lineList(lines []int) string {
	if len(lines) == 0 {
		return "-"
	}
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = strconv.Itoa(l)
	}
	return strings.Join(parts, " ")
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

func address(addr uint64, ok bool) string {
	if !ok {
		return "<MULTIPLE>"
	}
	return fmt.Sprintf("0x%016x", addr)
}

func cmdPrint(app *Application, args []string) error {
	if len(args) == 0 {
		return usage("print EXPR")
	}
	expr := strings.Join(args, " ")
	if _, err := app.session.Evaluate(expr); err != nil {
		return NewOperationError("print", expr, err)
	}
	return nil
}

func cmdVar(app *Application, args []string) error {
	if len(args) == 0 {
		return usage("var EXPR")
	}
	expr := strings.Join(args, " ")
	if _, err := app.session.CreateVariable(expr); err != nil {
		return NewOperationError("var", expr, err)
	}
	return nil
}

func (app *Application) varNodes(names []string) ([]*debug.VarNode, error) {
	nodes := make([]*debug.VarNode, 0, len(names))
	for _, name := range names {
		n, ok := app.session.Variables().Lookup(name)
		if !ok {
			return nil, fmt.Errorf("no variable object %q", name)
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func cmdExpand(app *Application, args []string) error {
	if len(args) == 0 {
		return usage("expand NAME...")
	}
	nodes, err := app.varNodes(args)
	if err != nil {
		return err
	}
	return app.session.ExpandVariables(nodes, func() {
		app.log.Debug("expanded %d variable objects", len(nodes))
	})
}

func cmdUpdate(app *Application, _ []string) error {
	_, err := app.session.UpdateVariables()
	return err
}

func cmdVars(app *Application, _ []string) error {
	var walk func(n *debug.VarNode, depth int)
	walk = func(n *debug.VarNode, depth int) {
		app.printf("%s%s %s\n", strings.Repeat("  ", depth), n.MIName, n.Format())
		for _, child := range n.Children {
			walk(child, depth+1)
		}
	}
	for _, root := range app.session.Variables().Roots() {
		walk(root, 0)
	}
	return nil
}

func cmdUndisplay(app *Application, args []string) error {
	if len(args) != 1 {
		return usage("undisplay NAME")
	}
	nodes, err := app.varNodes(args)
	if err != nil {
		return err
	}
	_, err = app.session.DeleteVariable(nodes[0])
	return err
}

func cmdBacktrace(app *Application, _ []string) error {
	_, err := app.session.ListFrames()
	return err
}

func cmdFrame(app *Application, args []string) error {
	if len(args) != 1 {
		return usage("frame N")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return usage("frame N")
	}

	cs, err := app.session.Stack().Current().Select(n)
	if err != nil {
		return NewOperationError("frame", args[0], err)
	}
	if _, err := app.session.Request(fmt.Sprintf("-stack-select-frame %d", n), &debug.RequestContext{Kind: debug.KindUser}); err != nil {
		return NewOperationError("frame", args[0], err)
	}
	app.session.Stack().Publish(cs)
	app.printf("%s", cs.Format())
	return nil
}

func cmdDisassemble(app *Application, args []string) error {
	switch len(args) {
	case 0:
		pc, ok := app.session.PC()
		if !ok {
			return fmt.Errorf("no current pc")
		}
		_, err := app.session.DisassembleFunction(pc)
		return err
	case 2:
		start, ok1 := mi.ParseAddress(args[0])
		end, ok2 := mi.ParseAddress(args[1])
		if !ok1 || !ok2 || end <= start {
			return usage("disassemble START END")
		}
		_, err := app.session.Disassemble(start, end)
		return err
	default:
		return usage("disassemble [START END]")
	}
}

func cmdSources(app *Application, _ []string) error {
	_, err := app.session.LoadSourceLines()
	return err
}

func cmdWhereis(app *Application, args []string) error {
	if len(args) != 1 {
		return usage("whereis ADDR")
	}
	addr, ok := mi.ParseAddress(args[0])
	if !ok {
		return usage("whereis ADDR")
	}
	sl, ok := app.session.SourceLines().Current().LineForAddress(addr)
	if !ok {
		app.printf("0x%x: no line information\n", addr)
		return nil
	}
	app.printf("0x%x is at %s:%d\n", addr, sl.File, sl.Line)
	return nil
}

func cmdCapture(app *Application, args []string) error {
	if len(args) == 0 {
		return usage("capture COMMAND")
	}
	cmd := strings.Join(args, " ")
	return app.session.Capture(cmd, func(lines []string, err error) {
		if err != nil {
			app.printf("capture %s: %v\n", cmd, err)
			return
		}
		app.printf("captured %d lines\n", len(lines))
		for _, l := range lines {
			app.printf("| %s", l)
		}
	})
}

func cmdMetrics(app *Application, _ []string) error {
	s := app.metrics.Snapshot()
	app.printf("lines %d, records %d, parse failures %d, unclaimed %d, errors %d\n",
		s.Lines, s.Records, s.ParseFailures, s.Unclaimed, s.ProtocolErrors)
	app.printf("tokens in flight %d (peak %d), dispatch avg %dns max %dns\n",
		s.InFlight, s.PeakInFlight, s.AvgDispatchNs, s.MaxDispatchNs)
	return nil
}

func cmdState(app *Application, _ []string) error {
	s := app.session
	app.printf("session %s: %s, gdb %s (%s)\n", s.ID(), s.State(), s.Dialect(), s.Dialect().Interpreter())
	if pc, ok := s.PC(); ok {
		app.printf("pc 0x%x\n", pc)
	}
	return nil
}
