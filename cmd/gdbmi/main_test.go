package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openFDs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		t.Skip("no /proc/self/fd on this platform")
	}
	return len(entries)
}

func TestDumpFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.mi")
	transcript := "1^done,value=\"42\"\n(gdb)\n2^done,value=\n"
	if err := os.WriteFile(path, []byte(transcript), 0o644); err != nil {
		t.Fatal(err)
	}

	before := openFDs(t)
	var out bytes.Buffer
	failures, err := dumpFile(path, &out)
	if err != nil {
		t.Fatalf("dumpFile failed: %v", err)
	}
	if failures != 1 {
		t.Errorf("expected 1 failure, got %d", failures)
	}
	if docs := strings.Split(strings.TrimSpace(out.String()), "\n"); len(docs) != 2 {
		t.Errorf("expected 2 documents, got %d: %s", len(docs), out.String())
	}
	if after := openFDs(t); after != before {
		t.Errorf("transcript left open: %d descriptors before, %d after", before, after)
	}
}

func TestDumpFile_Missing(t *testing.T) {
	var out bytes.Buffer
	if _, err := dumpFile(filepath.Join(t.TempDir(), "missing.mi"), &out); err == nil {
		t.Error("expected error for missing transcript")
	}
}
