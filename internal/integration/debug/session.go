package debug

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/gdbmi/internal/integration/debug/mi"
	"github.com/dshills/gdbmi/internal/logging"
)

// SessionState represents the current state of a debug session.
type SessionState int

const (
	// StateDisconnected is before a transport exists or after the debugger left.
	StateDisconnected SessionState = iota
	// StateConnected is when the debugger is reachable and no inferior runs.
	StateConnected
	// StateRunning is when the inferior is executing.
	StateRunning
	// StateStopped is when the inferior is paused.
	StateStopped
)

// String returns a string representation of the state.
func (s SessionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnected:
		return "connected"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SessionHandlers contains callbacks for session events. Callbacks run on
// the goroutine that feeds lines to the session.
type SessionHandlers struct {
	// OnStateChanged is called when the session state changes.
	OnStateChanged func(old, new SessionState)

	// OnStopped is called when the inferior stops.
	OnStopped func(reason string, frame mi.Tuple)

	// OnError is called for error results no handler claimed.
	OnError func(err *ProtocolError)

	// OnConsole, OnTarget and OnLog receive decoded stream output.
	OnConsole func(text string)
	OnTarget  func(text string)
	OnLog     func(text string)

	// OnNotify is called for notify and status records.
	OnNotify func(rec *mi.AsyncRecord)

	// OnVariable is called when a variable object has been created.
	OnVariable func(n *VarNode)

	// OnChildren is called when a variable object's children arrived.
	OnChildren func(parent *VarNode)

	// OnVariablesChanged is called with the nodes a -var-update touched.
	OnVariablesChanged func(changed []*VarNode)

	// OnBreakpoints is called after the breakpoint cache was rebuilt.
	OnBreakpoints func(snap *Snapshot)

	// OnDisassembly is called after a new listing was published.
	OnDisassembly func(d *Disassembly)

	// OnSourceLines is called after new line tables were published.
	OnSourceLines func(s *SourceLines)

	// OnEvaluate is called with the result of Evaluate.
	OnEvaluate func(expr, value string, err error)

	// OnUserResult is called with the reply to a Command.
	OnUserResult func(command string, rec *mi.Record)

	// OnStack is called when a new call stack was published.
	OnStack func(cs *CallStack)
}

// SessionConfig configures a debug session.
type SessionConfig struct {
	// PoolSize is the number of correlation tokens.
	PoolSize int

	// SequencePointCommand is the no-op command used as a join barrier.
	SequencePointCommand string

	// QueueSize is the capacity of the line queue between reader and consumer.
	QueueSize int

	// Logger receives engine logs. Defaults to a discarding logger.
	Logger *logging.Logger

	// Recorder receives engine counters.
	Recorder Recorder
}

// DefaultSessionConfig returns a default session configuration.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		PoolSize:             DefaultPoolSize,
		SequencePointCommand: "-list-features",
		QueueSize:            256,
	}
}

// CaptureFunc receives the target output collected by Capture.
type CaptureFunc func(lines []string, err error)

type captureState struct {
	lines []string
}

// Session drives one debugger over an MI transport. Lines are processed by
// a single consumer (Run or Feed); requests may be issued from any goroutine.
type Session struct {
	id         string
	cfg        SessionConfig
	transport  mi.Transport
	registry   *Registry
	dispatcher *Dispatcher
	log        *logging.Logger
	recorder   Recorder

	breakpoints *BreakpointCache
	disasm      *DisasmCache
	sourceLines *SourceLinesCache
	stack       *StackCache
	vars        *VarTree

	sendMu sync.Mutex

	state   SessionState
	stateMu sync.RWMutex

	mu               sync.Mutex
	dialect          Dialect
	pc               uint64
	hasPC            bool
	capture          *captureState
	breakListPending bool
	breakListStale   bool

	handlers   SessionHandlers
	handlersMu sync.RWMutex
}

// NewSession creates a session over an established transport.
func NewSession(transport mi.Transport, cfg SessionConfig) *Session {
	def := DefaultSessionConfig()
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = def.PoolSize
	}
	if cfg.SequencePointCommand == "" {
		cfg.SequencePointCommand = def.SequencePointCommand
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Null()
	}

	id := uuid.New().String()
	s := &Session{
		id:          id,
		cfg:         cfg,
		transport:   transport,
		registry:    NewRegistry(cfg.PoolSize),
		log:         cfg.Logger.WithComponent("mi").WithField("session", id[:8]),
		recorder:    cfg.Recorder,
		breakpoints: NewBreakpointCache(),
		disasm:      NewDisasmCache(),
		sourceLines: NewSourceLinesCache(),
		stack:       NewStackCache(),
		vars:        NewVarTree(),
		state:       StateConnected,
		dialect:     DefaultDialect(),
	}
	s.dispatcher = NewDispatcher(cfg.Recorder, s.handlerChain()...)
	return s
}

// NewStdioSession starts the debugger at path with the MI interpreter and
// creates a session over its standard streams.
func NewStdioSession(cfg SessionConfig, dialect Dialect, path string, args ...string) (*Session, error) {
	argv := append([]string{"--interpreter=" + dialect.Interpreter(), "--quiet"}, args...)
	cmd := exec.Command(path, argv...)
	transport, err := mi.NewStdioTransport(cmd)
	if err != nil {
		return nil, fmt.Errorf("create stdio transport: %w", err)
	}

	s := NewSession(transport, cfg)
	s.setDialect(dialect)
	return s, nil
}

// NewSocketSession creates a session over a TCP connection.
func NewSocketSession(cfg SessionConfig, address string) (*Session, error) {
	transport, err := mi.NewSocketTransport(address)
	if err != nil {
		return nil, fmt.Errorf("create socket transport: %w", err)
	}
	return NewSession(transport, cfg), nil
}

// ProbeDialect runs "path --version" and parses the banner.
func ProbeDialect(ctx context.Context, path string) (Dialect, error) {
	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return DefaultDialect(), fmt.Errorf("run %s --version: %w", path, err)
	}
	first, _, _ := strings.Cut(string(out), "\n")
	return ParseBanner(first)
}

// ID returns the session's unique identifier.
func (s *Session) ID() string {
	return s.id
}

// SetHandlers sets the session event handlers.
func (s *Session) SetHandlers(handlers SessionHandlers) {
	s.handlersMu.Lock()
	s.handlers = handlers
	s.handlersMu.Unlock()
}

func (s *Session) callbacks() SessionHandlers {
	s.handlersMu.RLock()
	defer s.handlersMu.RUnlock()
	return s.handlers
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) setState(state SessionState) {
	s.stateMu.Lock()
	old := s.state
	s.state = state
	s.stateMu.Unlock()

	if old == state {
		return
	}
	s.log.Debug("state %s -> %s", old, state)
	if h := s.callbacks().OnStateChanged; h != nil {
		h(old, state)
	}
}

// Dialect returns the output dialect in effect.
func (s *Session) Dialect() Dialect {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dialect
}

func (s *Session) setDialect(d Dialect) {
	s.mu.Lock()
	s.dialect = d
	s.mu.Unlock()
}

// PC returns the address the inferior is stopped at.
func (s *Session) PC() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pc, s.hasPC
}

func (s *Session) setPC(pc uint64, ok bool) {
	s.mu.Lock()
	s.pc, s.hasPC = pc, ok
	s.mu.Unlock()
}

// Registry returns the session's token registry.
func (s *Session) Registry() *Registry {
	return s.registry
}

// Dispatcher returns the session's handler chain.
func (s *Session) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// Breakpoints returns the breakpoint cache.
func (s *Session) Breakpoints() *BreakpointCache {
	return s.breakpoints
}

// Disassembly returns the disassembly cache.
func (s *Session) Disassembly() *DisasmCache {
	return s.disasm
}

// SourceLines returns the line table cache.
func (s *Session) SourceLines() *SourceLinesCache {
	return s.sourceLines
}

// Stack returns the call stack cache.
func (s *Session) Stack() *StackCache {
	return s.stack
}

// Variables returns the variable object tree.
func (s *Session) Variables() *VarTree {
	return s.vars
}

// Highlight resolves the current PC and breakpoints against the current
// listing.
func (s *Session) Highlight() Highlight {
	pc, ok := s.PC()
	return s.disasm.Current().Highlight(pc, ok, s.breakpoints)
}

// Request registers ctx under a fresh token and writes "<token><command>".
// The token is allocated immediately before the write and released again
// if the write fails.
func (s *Session) Request(command string, ctx *RequestContext) (Token, error) {
	if s.State() == StateDisconnected {
		return NoToken, ErrNotConnected
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	t := s.registry.Issue(ctx)
	s.recorder.RecordInFlight(s.registry.InFlight())
	if err := s.transport.Send(t.String() + command); err != nil {
		s.registry.Release(t)
		return NoToken, fmt.Errorf("send %s: %w", command, err)
	}
	s.log.Debug("-> %d%s", t, command)
	return t, nil
}

// SequencePoint sends the no-op command with fn as its continuation. Since
// replies arrive in request order, fn runs after every earlier request has
// been answered.
func (s *Session) SequencePoint(fn func()) error {
	_, err := s.Request(s.cfg.SequencePointCommand, &RequestContext{Kind: KindSequencePoint, Handle: fn})
	return err
}

// Command sends a raw command typed by the user.
func (s *Session) Command(command string) (Token, error) {
	return s.Request(command, &RequestContext{Kind: KindUser, Text: command})
}

// Capture sends command and collects target output until its reply.
func (s *Session) Capture(command string, fn CaptureFunc) error {
	s.mu.Lock()
	if s.capture != nil {
		s.mu.Unlock()
		return ErrCaptureActive
	}
	s.capture = &captureState{}
	s.mu.Unlock()

	if _, err := s.Request(command, &RequestContext{Kind: KindCapture, Handle: fn}); err != nil {
		s.endCapture()
		return err
	}
	return nil
}

func (s *Session) endCapture() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture == nil {
		return nil
	}
	lines := s.capture.lines
	s.capture = nil
	return lines
}

func (s *Session) captureLine(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture == nil {
		return false
	}
	s.capture.lines = append(s.capture.lines, text)
	return true
}

// Evaluate evaluates expr in the current frame. The result is delivered
// through OnEvaluate.
func (s *Session) Evaluate(expr string) (Token, error) {
	return s.Request("-data-evaluate-expression "+quote(expr), &RequestContext{Kind: KindEvaluate, Text: expr})
}

// CreateVariable creates a variable object for expr in the current frame.
func (s *Session) CreateVariable(expr string) (Token, error) {
	return s.Request("-var-create - * "+quote(expr), &RequestContext{Kind: KindVarCreate, Text: expr})
}

// ListChildren fetches the children of n.
func (s *Session) ListChildren(n *VarNode) (Token, error) {
	return s.Request("-var-list-children --all-values "+quote(n.MIName), &RequestContext{Kind: KindVarChildren, Handle: n})
}

// ExpandVariables fetches the children of every node and calls done once
// all of them have arrived.
func (s *Session) ExpandVariables(nodes []*VarNode, done func()) error {
	for _, n := range nodes {
		if _, err := s.ListChildren(n); err != nil {
			return err
		}
	}
	return s.SequencePoint(done)
}

// UpdateVariables asks for the changelist of every variable object.
func (s *Session) UpdateVariables() (Token, error) {
	return s.Request("-var-update --all-values *", &RequestContext{Kind: KindVarUpdate})
}

// DeleteVariable deletes n and its children.
func (s *Session) DeleteVariable(n *VarNode) (Token, error) {
	return s.Request("-var-delete "+quote(n.MIName), &RequestContext{Kind: KindVarDelete, Handle: n})
}

// InsertBreakpoint inserts a breakpoint at location (e.g. "main.c:12").
func (s *Session) InsertBreakpoint(location string) (Token, error) {
	return s.breakChange("-break-insert " + location)
}

// EnableBreakpoint enables the breakpoint owning id.
func (s *Session) EnableBreakpoint(id string) (Token, error) {
	return s.breakChange("-break-enable " + s.breakpoints.Snapshot().Owner(id))
}

// DisableBreakpoint disables the breakpoint owning id.
func (s *Session) DisableBreakpoint(id string) (Token, error) {
	return s.breakChange("-break-disable " + s.breakpoints.Snapshot().Owner(id))
}

// DeleteBreakpoint deletes the breakpoint owning id.
func (s *Session) DeleteBreakpoint(id string) (Token, error) {
	return s.breakChange("-break-delete " + s.breakpoints.Snapshot().Owner(id))
}

func (s *Session) breakChange(command string) (Token, error) {
	return s.Request(command, &RequestContext{Kind: KindBreakChange, Text: command})
}

// RefreshBreakpoints requests the breakpoint table. While a request is
// outstanding further refreshes are folded into one follow-up.
func (s *Session) RefreshBreakpoints() error {
	s.mu.Lock()
	if s.breakListPending {
		s.breakListStale = true
		s.mu.Unlock()
		return nil
	}
	s.breakListPending = true
	s.breakListStale = false
	s.mu.Unlock()

	if _, err := s.Request("-break-list", &RequestContext{Kind: KindBreakList}); err != nil {
		s.mu.Lock()
		s.breakListPending = false
		s.mu.Unlock()
		return err
	}
	return nil
}

// finishBreakList clears the pending flag and reports whether another
// refresh was requested meanwhile.
func (s *Session) finishBreakList() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breakListPending = false
	return s.breakListStale
}

// breakListDone ends a -break-list request and issues the refresh that was
// folded into it, if any.
func (s *Session) breakListDone() {
	if !s.finishBreakList() {
		return
	}
	if err := s.RefreshBreakpoints(); err != nil {
		s.log.Warn("refresh breakpoints: %v", err)
	}
}

// Disassemble requests a mixed source/disassembly listing of [start, end).
func (s *Session) Disassemble(start, end uint64) (Token, error) {
	cmd := fmt.Sprintf("-data-disassemble -s 0x%x -e 0x%x -- 5", start, end)
	return s.Request(cmd, &RequestContext{Kind: KindDisassemble})
}

// DisassembleFunction requests a listing of the function containing addr.
func (s *Session) DisassembleFunction(addr uint64) (Token, error) {
	cmd := fmt.Sprintf("-data-disassemble -a 0x%x -- 5", addr)
	return s.Request(cmd, &RequestContext{Kind: KindDisassemble})
}

// ListFrames requests the call stack of the current thread.
func (s *Session) ListFrames() (Token, error) {
	return s.Request("-stack-list-frames", &RequestContext{Kind: KindStackFrames})
}

// LoadSourceLines rebuilds the line tables of every source file.
func (s *Session) LoadSourceLines() (Token, error) {
	return s.Request("-file-list-exec-source-files", &RequestContext{Kind: KindSourceFiles})
}

// Run reads lines from the transport on a separate goroutine and processes
// them in order until the transport ends or ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	lines := make(chan string, s.cfg.QueueSize)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)
		for {
			line, err := s.transport.Receive()
			if err != nil {
				errc <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				s.setState(StateDisconnected)
				select {
				case err := <-errc:
					if isClosed(err) {
						return nil
					}
					return fmt.Errorf("receive: %w", err)
				default:
					return ctx.Err()
				}
			}
			s.Feed(line)
		}
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, mi.ErrClosed) ||
		errors.Is(err, os.ErrClosed) ||
		errors.Is(err, net.ErrClosed)
}

// Close closes the transport.
func (s *Session) Close() error {
	s.setState(StateDisconnected)
	return s.transport.Close()
}

// Feed processes one raw output line. It must not be called concurrently.
func (s *Session) Feed(raw string) {
	s.recorder.RecordLine()
	line := mi.SplitLine(raw)

	switch {
	case line.Kind == mi.LinePrompt:
	case line.IsStream():
		s.handleStream(line)
	case line.Kind == mi.LineNotify, line.Kind == mi.LineStatus:
		s.handleAsync(line)
	case line.Kind == mi.LineResult, line.Kind == mi.LineExec:
		s.handleRecord(line)
	default:
		s.log.Debug("unrecognized line %q", raw)
	}
}

func (s *Session) handleStream(line mi.Line) {
	text, err := mi.DecodeStream(line.Body)
	if err != nil {
		s.recorder.RecordParseFailure()
		s.log.Warn("%v", err)
		return
	}

	cb := s.callbacks()
	switch line.Kind {
	case mi.LineConsole:
		if IsBanner(text) {
			if d, err := ParseBanner(text); err == nil {
				s.setDialect(d)
				s.log.Info("debugger version %s, %s output", d, d.Interpreter())
				if !d.NestedLocations() {
					s.log.Warn("debugger %s lists breakpoint locations as flat rows; tables with multi-location breakpoints will not decode", d)
				}
			}
		}
		if cb.OnConsole != nil {
			cb.OnConsole(text)
		}
	case mi.LineTarget:
		if s.captureLine(text) {
			return
		}
		if cb.OnTarget != nil {
			cb.OnTarget(text)
		}
	case mi.LineLog:
		if cb.OnLog != nil {
			cb.OnLog(text)
		}
	}
}

func (s *Session) handleAsync(line mi.Line) {
	rec, err := mi.ParseAsync(line.Body)
	if err != nil {
		s.recorder.RecordParseFailure()
		s.log.Warn("%v", err)
		return
	}

	if rec.Kind == mi.LineNotify && strings.HasPrefix(rec.Class, "breakpoint-") {
		if err := s.RefreshBreakpoints(); err != nil {
			s.log.Warn("refresh breakpoints: %v", err)
		}
	}
	if h := s.callbacks().OnNotify; h != nil {
		h(rec)
	}
}

func (s *Session) handleRecord(line mi.Line) {
	rec, err := mi.Parse(line.Body)
	if err != nil {
		s.recorder.RecordParseFailure()
		s.log.Warn("%v", err)
		if line.Kind == mi.LineResult && line.Token != 0 {
			s.abandon(Token(line.Token), err)
		}
		return
	}

	x := NewDispatch(s.registry, Token(line.Token), line.Kind == mi.LineExec, rec)
	if name := s.dispatcher.Dispatch(x); name != "" {
		s.log.Debug("%s record (token %d) consumed by %s", rec.Class, x.Token, name)
		return
	}
	s.unclaimed(x)
}

// abandon settles the context of a reply that could not be parsed so its
// token is freed and its continuation is not lost.
func (s *Session) abandon(t Token, cause error) {
	if _, ok := s.registry.Lookup(t); !ok {
		return
	}
	ctx := s.registry.Take(t)
	err := fmt.Errorf("%w: %v", ErrMalformedReply, cause)

	switch ctx.Kind {
	case KindSequencePoint:
		if fn, ok := ctx.Handle.(func()); ok && fn != nil {
			fn()
		}
	case KindCapture:
		lines := s.endCapture()
		if fn, ok := ctx.Handle.(CaptureFunc); ok && fn != nil {
			fn(lines, err)
		}
	case KindEvaluate:
		if h := s.callbacks().OnEvaluate; h != nil {
			h(ctx.Text, "", err)
		}
	case KindBreakList:
		s.log.Warn("breakpoint table of token %d dropped: %v", t, cause)
		s.breakListDone()
	default:
		s.surface(&ProtocolError{Token: t, Request: ctx.Kind.String(), Command: ctx.Text, Msg: err.Error()})
	}
}

// unclaimed handles records no handler consumed. Error results are
// surfaced; any context still registered for the token is drained.
func (s *Session) unclaimed(x *Dispatch) {
	ctx, drained := x.Drain()

	if x.Class() == mi.ClassError {
		s.surface(s.protocolError(x, ctx))
		return
	}

	s.recorder.RecordUnclaimed()
	if drained {
		s.log.Warn("unclaimed %s reply drained %s context of token %d", x.Class(), ctx.Kind, x.Token)
		return
	}
	s.log.Debug("unclaimed %s record", x.Class())
}

func (s *Session) protocolError(x *Dispatch, ctx *RequestContext) *ProtocolError {
	perr := &ProtocolError{Token: x.Token}
	perr.Msg, _ = x.Record.Const("msg")
	perr.Code, _ = x.Record.Const("code")
	if ctx != nil {
		perr.Request = ctx.Kind.String()
		perr.Command = ctx.Text
	}
	return perr
}

func (s *Session) surface(perr *ProtocolError) {
	s.recorder.RecordProtocolError()
	s.log.Warn("debugger error: %v", perr)
	if h := s.callbacks().OnError; h != nil {
		h(perr)
	}
}

// quote renders s as an MI C-string argument.
func quote(s string) string {
	return mi.Const(s).String()
}
