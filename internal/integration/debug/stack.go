package debug

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/dshills/gdbmi/internal/integration/debug/mi"
)

// StackFrame is one frame of the inferior's call stack.
type StackFrame struct {
	// Level is the frame depth, 0 for the innermost frame.
	Level int

	// Func is the function name.
	Func string

	// Addr is the frame's program counter.
	Addr    uint64
	HasAddr bool

	// File is the source path, fullname when the debugger knows it.
	File string

	// Line is the current line in the source.
	Line int
}

// HasSource returns true if the frame has source information.
func (f *StackFrame) HasSource() bool {
	return f.File != ""
}

// SourceName returns the base name of the source file.
func (f *StackFrame) SourceName() string {
	if f.File == "" {
		return ""
	}
	return filepath.Base(f.File)
}

// FormatLocation returns a formatted location string like "main.c:42".
func (f *StackFrame) FormatLocation() string {
	if f.File == "" {
		if f.HasAddr {
			return fmt.Sprintf("0x%x", f.Addr)
		}
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", f.SourceName(), f.Line)
}

func decodeFrame(t mi.Tuple) StackFrame {
	f := StackFrame{
		Func: t.Str("func"),
		File: sourcePath(t),
	}
	f.Level, _ = t.Int("level")
	f.Line, _ = t.Int("line")
	f.Addr, f.HasAddr = mi.ParseAddress(t.Str("addr"))
	return f
}

// CallStack is the stack reported by -stack-list-frames, innermost first.
type CallStack struct {
	Frames []StackFrame

	// CurrentFrameIndex is the index of the selected frame.
	CurrentFrameIndex int
}

// DecodeCallStack reads a -stack-list-frames reply.
func DecodeCallStack(rec *mi.Record) *CallStack {
	cs := &CallStack{}
	if list, ok := rec.List("stack"); ok {
		for _, t := range list.Tuples() {
			cs.Frames = append(cs.Frames, decodeFrame(t))
		}
	}
	return cs
}

// CurrentFrame returns the selected frame, or nil for an empty stack.
func (c *CallStack) CurrentFrame() *StackFrame {
	if c.CurrentFrameIndex < 0 || c.CurrentFrameIndex >= len(c.Frames) {
		return nil
	}
	return &c.Frames[c.CurrentFrameIndex]
}

// IsAtTop returns true if the innermost frame is selected.
func (c *CallStack) IsAtTop() bool {
	return c.CurrentFrameIndex == 0
}

// IsAtBottom returns true if the outermost frame is selected.
func (c *CallStack) IsAtBottom() bool {
	return c.CurrentFrameIndex == len(c.Frames)-1
}

// Select returns a copy of the stack with frame i selected.
func (c *CallStack) Select(i int) (*CallStack, error) {
	if i < 0 || i >= len(c.Frames) {
		return nil, fmt.Errorf("frame %d out of range", i)
	}
	return &CallStack{Frames: c.Frames, CurrentFrameIndex: i}, nil
}

// Format renders the stack one frame per line, marking the selection.
func (c *CallStack) Format() string {
	var b strings.Builder
	for i, f := range c.Frames {
		marker := "  "
		if i == c.CurrentFrameIndex {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s#%d %s at %s\n", marker, f.Level, f.Func, f.FormatLocation())
	}
	return b.String()
}

// StackCache holds the stack of the last stop.
type StackCache struct {
	cur atomic.Pointer[CallStack]
}

// NewStackCache creates an empty cache.
func NewStackCache() *StackCache {
	c := &StackCache{}
	c.cur.Store(&CallStack{})
	return c
}

// Publish replaces the current stack.
func (c *StackCache) Publish(cs *CallStack) {
	if cs == nil {
		cs = &CallStack{}
	}
	c.cur.Store(cs)
}

// Current returns the current stack, never nil.
func (c *StackCache) Current() *CallStack {
	return c.cur.Load()
}
