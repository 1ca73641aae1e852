package debug

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/dshills/gdbmi/internal/integration/debug/mi"
)

// Location is one resolved site of a multi-location breakpoint.
type Location struct {
	Number  string
	Enabled bool
	Addr    uint64
	HasAddr bool
	File    string
	Line    int
	Func    string
}

// Breakpoint is one row of the debugger's breakpoint table. A breakpoint
// with Locations is compound: it has no address of its own.
type Breakpoint struct {
	Number           string
	Type             string
	Disposition      string
	Enabled          bool
	Addr             uint64
	HasAddr          bool
	File             string
	Line             int
	Func             string
	Times            int
	Condition        string
	OriginalLocation string
	Locations        []Location
}

// IsCompound reports whether the breakpoint resolved to several locations.
func (b *Breakpoint) IsCompound() bool {
	return len(b.Locations) > 0
}

// Snapshot is a decoded breakpoint table, in table order.
type Snapshot struct {
	Breakpoints []Breakpoint
}

// Find returns the breakpoint with the given top-level number.
func (s *Snapshot) Find(number string) (*Breakpoint, bool) {
	for i := range s.Breakpoints {
		if s.Breakpoints[i].Number == number {
			return &s.Breakpoints[i], true
		}
	}
	return nil, false
}

// Owner maps a location number such as "2.1" to the breakpoint that owns
// it ("2"). Top-level numbers map to themselves.
func (s *Snapshot) Owner(id string) string {
	if i := strings.IndexByte(id, '.'); i >= 0 {
		return id[:i]
	}
	return id
}

// DecodeSnapshot reads a -break-list reply. Multi-location breakpoints
// must carry their locations nested in locations=[...]; the flat N.M rows
// older debuggers emit make the body a mixed list, which does not parse.
func DecodeSnapshot(rec *mi.Record) (*Snapshot, error) {
	table, ok := rec.Tuple("BreakpointTable")
	if !ok {
		return nil, fmt.Errorf("reply has no BreakpointTable")
	}
	snap := &Snapshot{}
	body, ok := table.List("body")
	if !ok {
		return snap, nil
	}
	for _, row := range body.Tuples() {
		snap.Breakpoints = append(snap.Breakpoints, DecodeBreakpoint(row))
	}
	return snap, nil
}

// DecodeBreakpoint reads a single bkpt={...} tuple, either a table row or
// the one carried by -break-insert replies and =breakpoint-created
// notifications.
func DecodeBreakpoint(t mi.Tuple) Breakpoint {
	bp := decodeBreakpoint(t)
	if locs, ok := t.List("locations"); ok {
		for _, loc := range locs.Tuples() {
			bp.Locations = append(bp.Locations, decodeLocation(loc))
		}
		if bp.IsCompound() {
			bp.HasAddr = false
			bp.Addr = 0
		}
	}
	return bp
}

func decodeBreakpoint(t mi.Tuple) Breakpoint {
	bp := Breakpoint{
		Number:           t.Str("number"),
		Type:             t.Str("type"),
		Disposition:      t.Str("disp"),
		Enabled:          t.Str("enabled") == "y",
		File:             sourcePath(t),
		Func:             t.Str("func"),
		Condition:        t.Str("cond"),
		OriginalLocation: t.Str("original-location"),
	}
	bp.Addr, bp.HasAddr = mi.ParseAddress(t.Str("addr"))
	bp.Line, _ = t.Int("line")
	bp.Times, _ = t.Int("times")
	return bp
}

// decodeLocation panics on a location without number or enabled: the
// table is corrupt and no cache built from it can be trusted.
func decodeLocation(t mi.Tuple) Location {
	number, okNum := t.Const("number")
	enabled, okEn := t.Const("enabled")
	if !okNum || !okEn {
		invariant("decode location", NoToken, ErrMalformedLocation)
	}
	loc := Location{
		Number:  number,
		Enabled: enabled == "y",
		File:    sourcePath(t),
		Func:    t.Str("func"),
	}
	loc.Addr, loc.HasAddr = mi.ParseAddress(t.Str("addr"))
	loc.Line, _ = t.Int("line")
	return loc
}

// sourcePath prefers the absolute fullname over the file as written.
func sourcePath(t mi.Tuple) string {
	if full := t.Str("fullname"); full != "" {
		return full
	}
	return t.Str("file")
}

// LineSet is a set of source line numbers.
type LineSet map[int]struct{}

var emptyLineSet = LineSet{}

// Has reports whether line is in the set.
func (s LineSet) Has(line int) bool {
	_, ok := s[line]
	return ok
}

// Sorted returns the lines in ascending order.
func (s LineSet) Sorted() []int {
	lines := make([]int, 0, len(s))
	for l := range s {
		lines = append(lines, l)
	}
	sort.Ints(lines)
	return lines
}

type breakpointIndex struct {
	snapshot      *Snapshot
	enabledAddr   map[uint64]struct{}
	disabledAddr  map[uint64]struct{}
	enabledLines  map[string]LineSet
	disabledLines map[string]LineSet
}

func newBreakpointIndex(snap *Snapshot) *breakpointIndex {
	idx := &breakpointIndex{
		snapshot:      snap,
		enabledAddr:   make(map[uint64]struct{}),
		disabledAddr:  make(map[uint64]struct{}),
		enabledLines:  make(map[string]LineSet),
		disabledLines: make(map[string]LineSet),
	}
	for i := range snap.Breakpoints {
		bp := &snap.Breakpoints[i]
		if !bp.IsCompound() {
			idx.add(bp.Enabled, bp.Addr, bp.HasAddr, bp.File, bp.Line)
			continue
		}
		for _, loc := range bp.Locations {
			idx.add(loc.Enabled, loc.Addr, loc.HasAddr, loc.File, loc.Line)
		}
	}
	return idx
}

func (idx *breakpointIndex) add(enabled bool, addr uint64, hasAddr bool, file string, line int) {
	addrs, lines := idx.disabledAddr, idx.disabledLines
	if enabled {
		addrs, lines = idx.enabledAddr, idx.enabledLines
	}
	if hasAddr {
		addrs[addr] = struct{}{}
	}
	if file != "" && line > 0 {
		set, ok := lines[file]
		if !ok {
			set = make(LineSet)
			lines[file] = set
		}
		set[line] = struct{}{}
	}
}

// BreakpointCache answers breakpoint lookups by address and source line.
// Every snapshot replaces the whole index; readers never see a partial one.
type BreakpointCache struct {
	idx atomic.Pointer[breakpointIndex]
}

// NewBreakpointCache creates an empty cache.
func NewBreakpointCache() *BreakpointCache {
	c := &BreakpointCache{}
	c.idx.Store(newBreakpointIndex(&Snapshot{}))
	return c
}

// Rebuild replaces the cache contents with an index of snap.
func (c *BreakpointCache) Rebuild(snap *Snapshot) {
	if snap == nil {
		snap = &Snapshot{}
	}
	c.idx.Store(newBreakpointIndex(snap))
}

// Snapshot returns the snapshot the cache was last built from.
func (c *BreakpointCache) Snapshot() *Snapshot {
	return c.idx.Load().snapshot
}

// HasEnabledAtAddress reports an enabled breakpoint or location at addr.
func (c *BreakpointCache) HasEnabledAtAddress(addr uint64) bool {
	_, ok := c.idx.Load().enabledAddr[addr]
	return ok
}

// HasDisabledAtAddress reports a disabled breakpoint or location at addr.
func (c *BreakpointCache) HasDisabledAtAddress(addr uint64) bool {
	_, ok := c.idx.Load().disabledAddr[addr]
	return ok
}

// EnabledLinesForFile returns the lines of file carrying an enabled
// breakpoint. The result is never nil and must not be modified.
func (c *BreakpointCache) EnabledLinesForFile(file string) LineSet {
	if set, ok := c.idx.Load().enabledLines[file]; ok {
		return set
	}
	return emptyLineSet
}

// DisabledLinesForFile is EnabledLinesForFile for disabled breakpoints.
func (c *BreakpointCache) DisabledLinesForFile(file string) LineSet {
	if set, ok := c.idx.Load().disabledLines[file]; ok {
		return set
	}
	return emptyLineSet
}

// HasEnabledLine reports an enabled breakpoint at file:line.
func (c *BreakpointCache) HasEnabledLine(file string, line int) bool {
	return c.EnabledLinesForFile(file).Has(line)
}

// HasDisabledLine reports a disabled breakpoint at file:line.
func (c *BreakpointCache) HasDisabledLine(file string, line int) bool {
	return c.DisabledLinesForFile(file).Has(line)
}
