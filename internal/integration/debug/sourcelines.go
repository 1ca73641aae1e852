package debug

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dshills/gdbmi/internal/integration/debug/mi"
)

// SourceLine is a file:line pair.
type SourceLine struct {
	File string
	Line int
}

// SourceLines maps source lines to code addresses and back, across every
// file of the program.
type SourceLines struct {
	byLine map[SourceLine][]uint64
	byAddr map[uint64]SourceLine
	files  []string
}

func newSourceLines() *SourceLines {
	return &SourceLines{
		byLine: make(map[SourceLine][]uint64),
		byAddr: make(map[uint64]SourceLine),
	}
}

// Files returns the files with a line table, sorted.
func (s *SourceLines) Files() []string {
	return s.files
}

// Addresses returns the code addresses generated for file:line.
func (s *SourceLines) Addresses(file string, line int) []uint64 {
	return s.byLine[SourceLine{file, line}]
}

// LineForAddress returns the source line an address belongs to.
func (s *SourceLines) LineForAddress(addr uint64) (SourceLine, bool) {
	sl, ok := s.byAddr[addr]
	return sl, ok
}

// HasCode reports whether any code was generated for file:line.
func (s *SourceLines) HasCode(file string, line int) bool {
	return len(s.byLine[SourceLine{file, line}]) > 0
}

// lineTableBuild accumulates -symbol-list-lines replies until the
// sequence point that closes the batch.
type lineTableBuild struct {
	mu    sync.Mutex
	table *SourceLines
}

func newLineTableBuild() *lineTableBuild {
	return &lineTableBuild{table: newSourceLines()}
}

// fileLinesRequest is the payload of a KindFileLines request.
type fileLinesRequest struct {
	file  string
	build *lineTableBuild
}

func (b *lineTableBuild) add(file string, rec *mi.Record) {
	list, ok := rec.List("lines")
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	seen := false
	for _, t := range list.Tuples() {
		addr, ok := mi.ParseAddress(t.Str("pc"))
		if !ok {
			continue
		}
		line, ok := t.Int("line")
		if !ok || line <= 0 {
			continue
		}
		key := SourceLine{file, line}
		b.table.byLine[key] = append(b.table.byLine[key], addr)
		if _, dup := b.table.byAddr[addr]; !dup {
			b.table.byAddr[addr] = key
		}
		seen = true
	}
	if seen {
		b.table.files = append(b.table.files, file)
	}
}

func (b *lineTableBuild) finish() *SourceLines {
	b.mu.Lock()
	defer b.mu.Unlock()
	sort.Strings(b.table.files)
	return b.table
}

// decodeSourceFiles returns the unique paths of a
// -file-list-exec-source-files reply, preferring fullname.
func decodeSourceFiles(rec *mi.Record) []string {
	list, ok := rec.List("files")
	if !ok {
		return nil
	}
	seen := make(map[string]bool)
	var files []string
	for _, t := range list.Tuples() {
		path := sourcePath(t)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		files = append(files, path)
	}
	return files
}

// SourceLinesCache holds the most recently published line tables.
type SourceLinesCache struct {
	cur atomic.Pointer[SourceLines]
}

// NewSourceLinesCache creates an empty cache.
func NewSourceLinesCache() *SourceLinesCache {
	c := &SourceLinesCache{}
	c.cur.Store(newSourceLines())
	return c
}

// Publish replaces the current tables.
func (c *SourceLinesCache) Publish(s *SourceLines) {
	if s == nil {
		s = newSourceLines()
	}
	c.cur.Store(s)
}

// Current returns the current tables, never nil.
func (c *SourceLinesCache) Current() *SourceLines {
	return c.cur.Load()
}
