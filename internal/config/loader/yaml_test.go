package loader

import (
	"errors"
	"strings"
	"testing"
)

func TestYAMLLoader_Load(t *testing.T) {
	memfs := NewMemFS()
	memfs.AddFile("/gdbmi.yaml", `
logging:
  level: warn
engine:
  tokenPool: 128
  queueSize: 32
gdb:
  remote: localhost:3333
  args: [--nx]
`)

	config, err := NewYAMLLoaderWithFS(memfs, "/gdbmi.yaml").Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	engine := config["engine"].(map[string]any)
	if engine["tokenPool"] != int64(128) {
		t.Errorf("engine.tokenPool = %v (%T), want int64 128", engine["tokenPool"], engine["tokenPool"])
	}
	gdb := config["gdb"].(map[string]any)
	if gdb["remote"] != "localhost:3333" {
		t.Errorf("gdb.remote = %v", gdb["remote"])
	}
	if args, ok := gdb["args"].([]any); !ok || len(args) != 1 || args[0] != "--nx" {
		t.Errorf("gdb.args = %v", gdb["args"])
	}
}

func TestYAMLLoader_MissingFile(t *testing.T) {
	config, err := NewYAMLLoaderWithFS(NewMemFS(), "/nope.yaml").Load()
	if err != nil || config != nil {
		t.Errorf("expected nil, nil for a missing file, got %v, %v", config, err)
	}
}

func TestYAMLLoader_ParseError(t *testing.T) {
	_, err := NewYAMLLoader("").LoadFromReader(strings.NewReader("engine: [unclosed\n"))
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *ParseError, got %v", err)
	}
	if perr.Path != "<reader>" {
		t.Errorf("unexpected path %q", perr.Path)
	}
}
