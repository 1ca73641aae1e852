package debug

import (
	"strings"

	"github.com/dshills/gdbmi/internal/integration/debug/mi"
)

// handlerChain returns the session's handlers in priority order. Lifecycle
// records come first; the rest match on the kind of the registered context.
func (s *Session) handlerChain() []Handler {
	return []Handler{
		{Name: "lifecycle", Fn: s.handleLifecycle},
		{Name: "sequence-point", Fn: s.handleSequencePoint},
		{Name: "capture", Fn: s.handleCapture},
		{Name: "var-create", Fn: s.handleVarCreate},
		{Name: "var-children", Fn: s.handleVarChildren},
		{Name: "var-update", Fn: s.handleVarUpdate},
		{Name: "var-delete", Fn: s.handleVarDelete},
		{Name: "break-list", Fn: s.handleBreakList},
		{Name: "break-change", Fn: s.handleBreakChange},
		{Name: "disassemble", Fn: s.handleDisassemble},
		{Name: "source-files", Fn: s.handleSourceFiles},
		{Name: "file-lines", Fn: s.handleFileLines},
		{Name: "evaluate", Fn: s.handleEvaluate},
		{Name: "stack-frames", Fn: s.handleStackFrames},
		{Name: "user", Fn: s.handleUser},
	}
}

func isReply(x *Dispatch, k RequestKind, classes ...mi.ResultClass) bool {
	if !x.Is(k) {
		return false
	}
	for _, c := range classes {
		if x.Class() == c {
			return true
		}
	}
	return false
}

func (s *Session) handleLifecycle(x *Dispatch) Outcome {
	switch x.Class() {
	case mi.ClassRunning:
		s.setPC(0, false)
		s.stack.Publish(nil)
		s.setState(StateRunning)
	case mi.ClassStopped:
		s.stopped(x.Record)
	case mi.ClassConnected:
		s.setState(StateConnected)
	case mi.ClassExit:
		s.setPC(0, false)
		s.setState(StateDisconnected)
	default:
		return NotApplicable
	}

	if ctx, ok := x.Drain(); ok {
		s.settle(ctx, x)
	}
	return Consumed
}

// settle completes a context whose reply was a lifecycle record rather
// than the done or error its handler waits for.
func (s *Session) settle(ctx *RequestContext, x *Dispatch) {
	switch ctx.Kind {
	case KindUser:
		if h := s.callbacks().OnUserResult; h != nil {
			h(ctx.Text, x.Record)
		}
	case KindCapture:
		lines := s.endCapture()
		if fn, ok := ctx.Handle.(CaptureFunc); ok && fn != nil {
			fn(lines, nil)
		}
	case KindSequencePoint:
		if fn, ok := ctx.Handle.(func()); ok && fn != nil {
			fn()
		}
	case KindBreakList:
		s.breakListDone()
	default:
		s.log.Debug("%s reply drained %s context of token %d", x.Class(), ctx.Kind, x.Token)
	}
}

func (s *Session) stopped(rec *mi.Record) {
	reason, _ := rec.Const("reason")
	frame, _ := rec.Tuple("frame")

	if strings.HasPrefix(reason, "exited") {
		s.setPC(0, false)
		s.stack.Publish(nil)
		s.setState(StateConnected)
	} else {
		pc, ok := mi.ParseAddress(frame.Str("addr"))
		s.setPC(pc, ok)
		if frame != nil {
			s.stack.Publish(&CallStack{Frames: []StackFrame{decodeFrame(frame)}})
		}
		s.setState(StateStopped)
	}

	if h := s.callbacks().OnStopped; h != nil {
		h(reason, frame)
	}
}

func (s *Session) handleSequencePoint(x *Dispatch) Outcome {
	if !isReply(x, KindSequencePoint, mi.ClassDone, mi.ClassError) {
		return NotApplicable
	}
	ctx := x.Take()
	if fn, ok := ctx.Handle.(func()); ok && fn != nil {
		fn()
	}
	return Consumed
}

func (s *Session) handleCapture(x *Dispatch) Outcome {
	if !isReply(x, KindCapture, mi.ClassDone, mi.ClassError) {
		return NotApplicable
	}
	ctx := x.Take()
	lines := s.endCapture()

	var err error
	if x.Class() == mi.ClassError {
		err = s.protocolError(x, ctx)
	}
	if fn, ok := ctx.Handle.(CaptureFunc); ok && fn != nil {
		fn(lines, err)
	}
	return Consumed
}

func (s *Session) handleVarCreate(x *Dispatch) Outcome {
	if !isReply(x, KindVarCreate, mi.ClassDone) {
		return NotApplicable
	}
	ctx := x.Take()
	n := decodeVarNode(x.Record.Fields(), ctx.Text)
	if n.MIName == "" {
		s.log.Warn("var-create reply for %q has no name", ctx.Text)
		return Consumed
	}
	s.vars.Add(n)
	if h := s.callbacks().OnVariable; h != nil {
		h(n)
	}
	return Consumed
}

func (s *Session) handleVarChildren(x *Dispatch) Outcome {
	if !isReply(x, KindVarChildren, mi.ClassDone) {
		return NotApplicable
	}
	ctx := x.Take()
	parent, ok := ctx.Handle.(*VarNode)
	if !ok {
		return Consumed
	}

	var children []*VarNode
	if list, ok := x.Record.List("children"); ok {
		for _, t := range list.Tuples() {
			children = append(children, decodeVarNode(t, ""))
		}
	}
	s.vars.SetChildren(parent, children)
	if h := s.callbacks().OnChildren; h != nil {
		h(parent)
	}
	return Consumed
}

func (s *Session) handleVarUpdate(x *Dispatch) Outcome {
	if !isReply(x, KindVarUpdate, mi.ClassDone) {
		return NotApplicable
	}
	x.Take()
	changed := s.vars.Apply(decodeChangelist(x.Record))
	if h := s.callbacks().OnVariablesChanged; h != nil && len(changed) > 0 {
		h(changed)
	}
	return Consumed
}

func (s *Session) handleVarDelete(x *Dispatch) Outcome {
	if !isReply(x, KindVarDelete, mi.ClassDone) {
		return NotApplicable
	}
	ctx := x.Take()
	if n, ok := ctx.Handle.(*VarNode); ok {
		s.vars.Remove(n.MIName)
	}
	return Consumed
}

func (s *Session) handleBreakList(x *Dispatch) Outcome {
	if !isReply(x, KindBreakList, mi.ClassDone, mi.ClassError) {
		return NotApplicable
	}
	ctx := x.Take()
	defer s.breakListDone()

	if x.Class() == mi.ClassError {
		s.surface(s.protocolError(x, ctx))
	} else if snap, err := DecodeSnapshot(x.Record); err != nil {
		s.log.Warn("decode breakpoint table: %v", err)
	} else {
		s.breakpoints.Rebuild(snap)
		s.log.Debug("breakpoint cache rebuilt with %d breakpoints", len(snap.Breakpoints))
		if h := s.callbacks().OnBreakpoints; h != nil {
			h(snap)
		}
	}
	return Consumed
}

func (s *Session) handleBreakChange(x *Dispatch) Outcome {
	if !isReply(x, KindBreakChange, mi.ClassDone) {
		return NotApplicable
	}
	x.Take()
	if err := s.RefreshBreakpoints(); err != nil {
		s.log.Warn("refresh breakpoints: %v", err)
	}
	return Consumed
}

func (s *Session) handleDisassemble(x *Dispatch) Outcome {
	if !isReply(x, KindDisassemble, mi.ClassDone) {
		return NotApplicable
	}
	x.Take()
	blocks, err := DecodeListing(x.Record)
	if err != nil {
		s.log.Warn("decode listing: %v", err)
		return Consumed
	}
	d := Generate(blocks)
	s.disasm.Publish(d)
	if h := s.callbacks().OnDisassembly; h != nil {
		h(d)
	}
	return Consumed
}

func (s *Session) handleSourceFiles(x *Dispatch) Outcome {
	if !isReply(x, KindSourceFiles, mi.ClassDone) {
		return NotApplicable
	}
	x.Take()

	build := newLineTableBuild()
	for _, file := range decodeSourceFiles(x.Record) {
		req := &RequestContext{Kind: KindFileLines, Handle: &fileLinesRequest{file: file, build: build}}
		if _, err := s.Request("-symbol-list-lines "+quote(file), req); err != nil {
			s.log.Warn("request line table of %s: %v", file, err)
			return Consumed
		}
	}

	err := s.SequencePoint(func() {
		table := build.finish()
		s.sourceLines.Publish(table)
		s.log.Debug("line tables published for %d files", len(table.Files()))
		if h := s.callbacks().OnSourceLines; h != nil {
			h(table)
		}
	})
	if err != nil {
		s.log.Warn("sequence point: %v", err)
	}
	return Consumed
}

func (s *Session) handleFileLines(x *Dispatch) Outcome {
	if !isReply(x, KindFileLines, mi.ClassDone, mi.ClassError) {
		return NotApplicable
	}
	ctx := x.Take()
	req, ok := ctx.Handle.(*fileLinesRequest)
	if !ok {
		return Consumed
	}
	if x.Class() == mi.ClassError {
		s.log.Debug("no line table for %s", req.file)
		return Consumed
	}
	req.build.add(req.file, x.Record)
	return Consumed
}

func (s *Session) handleEvaluate(x *Dispatch) Outcome {
	if !isReply(x, KindEvaluate, mi.ClassDone, mi.ClassError) {
		return NotApplicable
	}
	ctx := x.Take()

	var value string
	var err error
	if x.Class() == mi.ClassError {
		err = s.protocolError(x, ctx)
	} else {
		value, _ = x.Record.Const("value")
	}
	if h := s.callbacks().OnEvaluate; h != nil {
		h(ctx.Text, value, err)
	}
	return Consumed
}

func (s *Session) handleStackFrames(x *Dispatch) Outcome {
	if !isReply(x, KindStackFrames, mi.ClassDone) {
		return NotApplicable
	}
	x.Take()
	cs := DecodeCallStack(x.Record)
	s.stack.Publish(cs)
	if h := s.callbacks().OnStack; h != nil {
		h(cs)
	}
	return Consumed
}

func (s *Session) handleUser(x *Dispatch) Outcome {
	if !isReply(x, KindUser, mi.ClassDone) {
		return NotApplicable
	}
	ctx := x.Take()
	if h := s.callbacks().OnUserResult; h != nil {
		h(ctx.Text, x.Record)
	}
	return Consumed
}
