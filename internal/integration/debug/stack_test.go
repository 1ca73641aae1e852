package debug

import (
	"testing"
)

func TestStackFrame_HasSource(t *testing.T) {
	tests := []struct {
		name     string
		frame    *StackFrame
		expected bool
	}{
		{"no file", &StackFrame{}, false},
		{"with file", &StackFrame{File: "/path/to/main.c"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.frame.HasSource() != tt.expected {
				t.Errorf("HasSource() = %v, expected %v", tt.frame.HasSource(), tt.expected)
			}
		})
	}
}

func TestStackFrame_SourceName(t *testing.T) {
	f := &StackFrame{File: "/path/to/main.c"}
	if f.SourceName() != "main.c" {
		t.Errorf("SourceName() = %q, expected main.c", f.SourceName())
	}
	if (&StackFrame{}).SourceName() != "" {
		t.Error("SourceName() of frame without file should be empty")
	}
}

func TestStackFrame_FormatLocation(t *testing.T) {
	tests := []struct {
		name     string
		frame    *StackFrame
		expected string
	}{
		{"source", &StackFrame{File: "/src/main.c", Line: 42}, "main.c:42"},
		{"address only", &StackFrame{Addr: 0x401136, HasAddr: true}, "0x401136"},
		{"nothing", &StackFrame{}, "<unknown>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.frame.FormatLocation(); got != tt.expected {
				t.Errorf("FormatLocation() = %q, expected %q", got, tt.expected)
			}
		})
	}
}

const stackReply = `^done,stack=[` +
	`frame={level="0",addr="0x0000000000401136",func="leaf",file="leaf.c",fullname="/src/leaf.c",line="3",arch="i386:x86-64"},` +
	`frame={level="1",addr="0x0000000000401160",func="main",file="main.c",fullname="/src/main.c",line="12",arch="i386:x86-64"},` +
	`frame={level="2",addr="0x00007ffff7829d90",func="__libc_start_call_main",from="/lib/x86_64-linux-gnu/libc.so.6"}]`

func TestDecodeCallStack(t *testing.T) {
	cs := DecodeCallStack(mustParse(t, stackReply))
	if len(cs.Frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(cs.Frames))
	}

	f := cs.Frames[1]
	if f.Level != 1 || f.Func != "main" || f.File != "/src/main.c" || f.Line != 12 || f.Addr != 0x401160 {
		t.Errorf("unexpected frame %+v", f)
	}
	if cs.Frames[2].HasSource() {
		t.Error("library frame should have no source")
	}

	if empty := DecodeCallStack(mustParse(t, `^done`)); len(empty.Frames) != 0 {
		t.Error("expected empty stack")
	}
}

func TestCallStack_Navigation(t *testing.T) {
	cs := DecodeCallStack(mustParse(t, stackReply))

	if !cs.IsAtTop() || cs.IsAtBottom() {
		t.Error("fresh stack should select the innermost frame")
	}
	if cs.CurrentFrame().Func != "leaf" {
		t.Errorf("unexpected current frame %+v", cs.CurrentFrame())
	}

	sel, err := cs.Select(2)
	if err != nil {
		t.Fatalf("Select(2) failed: %v", err)
	}
	if !sel.IsAtBottom() || sel.CurrentFrame().Level != 2 {
		t.Error("Select(2) should select the outermost frame")
	}
	if cs.CurrentFrameIndex != 0 {
		t.Error("Select must not modify the receiver")
	}

	if _, err := cs.Select(3); err == nil {
		t.Error("expected error for out of range frame")
	}
	if _, err := cs.Select(-1); err == nil {
		t.Error("expected error for negative frame")
	}
}

func TestCallStack_CurrentFrameEmpty(t *testing.T) {
	if (&CallStack{}).CurrentFrame() != nil {
		t.Error("empty stack should have no current frame")
	}
}

func TestCallStack_Format(t *testing.T) {
	cs := &CallStack{Frames: []StackFrame{
		{Level: 0, Func: "leaf", File: "/src/leaf.c", Line: 3},
		{Level: 1, Func: "main", File: "/src/main.c", Line: 12},
	}}
	want := "> #0 leaf at leaf.c:3\n  #1 main at main.c:12\n"
	if got := cs.Format(); got != want {
		t.Errorf("Format() = %q, expected %q", got, want)
	}
}

func TestStackCache(t *testing.T) {
	c := NewStackCache()
	if c.Current() == nil || len(c.Current().Frames) != 0 {
		t.Fatal("expected empty stack")
	}

	cs := &CallStack{Frames: []StackFrame{{Func: "main"}}}
	c.Publish(cs)
	if c.Current() != cs {
		t.Error("Publish did not replace the stack")
	}

	c.Publish(nil)
	if c.Current() == nil {
		t.Error("Current must never be nil")
	}
}
