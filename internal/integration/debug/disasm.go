package debug

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/dshills/gdbmi/internal/integration/debug/mi"
)

// BlockKind classifies a block of a mixed source/disassembly listing.
type BlockKind int

const (
	// BlockInvalid is the kind of InvalidBlock.
	BlockInvalid BlockKind = iota
	// BlockSource is a source line heading the instructions generated for it.
	BlockSource
	// BlockInstruction is one machine instruction.
	BlockInstruction
)

func (k BlockKind) String() string {
	switch k {
	case BlockSource:
		return "source"
	case BlockInstruction:
		return "instruction"
	default:
		return "invalid"
	}
}

// Instruction is one disassembled machine instruction.
type Instruction struct {
	Address uint64
	Opcodes string
	Text    string
	Func    string
	Offset  int
}

// ListingBlock is one entry of a mixed listing: a source line or an
// instruction.
type ListingBlock struct {
	Kind        BlockKind
	File        string
	Line        int
	Instruction Instruction
}

// DecodeListing flattens a -data-disassemble reply into blocks. Mixed
// replies (src_and_asm_line) yield a source block followed by its
// instructions; plain replies yield instruction blocks only.
func DecodeListing(rec *mi.Record) ([]ListingBlock, error) {
	insns, ok := rec.List("asm_insns")
	if !ok {
		return nil, fmt.Errorf("reply has no asm_insns")
	}

	var blocks []ListingBlock
	for _, res := range insns.Results {
		t, ok := res.Value.(mi.Tuple)
		if !ok {
			continue
		}
		if res.Name == "src_and_asm_line" {
			blocks = appendSourceLine(blocks, t)
		} else {
			blocks = append(blocks, instructionBlock(t))
		}
	}
	for _, v := range insns.Values {
		if t, ok := v.(mi.Tuple); ok {
			blocks = append(blocks, instructionBlock(t))
		}
	}
	return blocks, nil
}

func appendSourceLine(blocks []ListingBlock, t mi.Tuple) []ListingBlock {
	line, _ := t.Int("line")
	blocks = append(blocks, ListingBlock{Kind: BlockSource, File: sourcePath(t), Line: line})
	if insns, ok := t.List("line_asm_insn"); ok {
		for _, insn := range insns.Tuples() {
			blocks = append(blocks, instructionBlock(insn))
		}
	}
	return blocks
}

func instructionBlock(t mi.Tuple) ListingBlock {
	insn := Instruction{
		Opcodes: t.Str("opcodes"),
		Text:    t.Str("inst"),
		Func:    t.Str("func-name"),
	}
	insn.Address, _ = mi.ParseAddress(t.Str("address"))
	insn.Offset, _ = t.Int("offset")
	return ListingBlock{Kind: BlockInstruction, Instruction: insn}
}

// BlockRef identifies the block a view-line was rendered from. For source
// blocks Line and File are set; for instructions Address is.
type BlockRef struct {
	Kind    BlockKind
	Address uint64
	Line    int
	File    string
}

// InvalidBlock is returned for view-lines outside the listing.
var InvalidBlock = BlockRef{Kind: BlockInvalid}

type fileLine struct {
	file string
	line int
}

// Disassembly is a rendered listing plus its cross-reference indices.
// View-lines are zero-based indices into Lines.
type Disassembly struct {
	lines     []string
	blocks    []ListingBlock
	byAddress map[uint64]int
	bySource  map[fileLine][]int
}

// Generate renders blocks one per view-line and indexes them. When an
// address appears more than once the later view-line wins.
func Generate(blocks []ListingBlock) *Disassembly {
	d := &Disassembly{
		lines:     make([]string, 0, len(blocks)),
		blocks:    blocks,
		byAddress: make(map[uint64]int),
		bySource:  make(map[fileLine][]int),
	}
	for n, b := range blocks {
		switch b.Kind {
		case BlockSource:
			d.lines = append(d.lines, fmt.Sprintf("%s:%d", b.File, b.Line))
			key := fileLine{b.File, b.Line}
			d.bySource[key] = append(d.bySource[key], n)
		case BlockInstruction:
			d.lines = append(d.lines, renderInstruction(b.Instruction))
			d.byAddress[b.Instruction.Address] = n
		default:
			d.lines = append(d.lines, "")
		}
	}
	return d
}

func renderInstruction(insn Instruction) string {
	sym := ""
	if insn.Func != "" {
		sym = fmt.Sprintf(" <%s+%d>", insn.Func, insn.Offset)
	}
	if insn.Opcodes != "" {
		return fmt.Sprintf("   0x%016x%s:\t%s\t%s", insn.Address, sym, insn.Opcodes, insn.Text)
	}
	return fmt.Sprintf("   0x%016x%s:\t%s", insn.Address, sym, insn.Text)
}

// Lines returns the rendered document.
func (d *Disassembly) Lines() []string {
	return d.lines
}

// Len returns the number of view-lines.
func (d *Disassembly) Len() int {
	return len(d.lines)
}

// BlockForViewLine returns the block view-line n was rendered from, or
// InvalidBlock when n is out of range.
func (d *Disassembly) BlockForViewLine(n int) BlockRef {
	if n < 0 || n >= len(d.blocks) {
		return InvalidBlock
	}
	b := d.blocks[n]
	switch b.Kind {
	case BlockSource:
		return BlockRef{Kind: BlockSource, Line: b.Line, File: b.File}
	case BlockInstruction:
		return BlockRef{Kind: BlockInstruction, Address: b.Instruction.Address}
	}
	return InvalidBlock
}

// ViewLineForAddress returns the view-line of the instruction at addr.
func (d *Disassembly) ViewLineForAddress(addr uint64) (int, bool) {
	n, ok := d.byAddress[addr]
	return n, ok
}

// ViewLinesForSource returns the view-lines rendering file:line, in order.
func (d *Disassembly) ViewLinesForSource(file string, line int) []int {
	return d.bySource[fileLine{file, line}]
}

// Highlight marks the view-lines a presenter should decorate. PCLine is -1
// when the PC is unknown or not in the listing.
type Highlight struct {
	PCLine   int
	Enabled  []int
	Disabled []int
}

// Highlight resolves pc (when hasPC) and the breakpoints in bps to
// view-lines. Source lines are matched through the per-file line sets and
// instructions through the address sets.
func (d *Disassembly) Highlight(pc uint64, hasPC bool, bps *BreakpointCache) Highlight {
	h := Highlight{PCLine: -1}
	if hasPC {
		if n, ok := d.byAddress[pc]; ok {
			h.PCLine = n
		}
	}
	if bps == nil {
		return h
	}

	enabled := make(map[int]struct{})
	disabled := make(map[int]struct{})
	for key, views := range d.bySource {
		if bps.HasEnabledLine(key.file, key.line) {
			for _, n := range views {
				enabled[n] = struct{}{}
			}
		}
		if bps.HasDisabledLine(key.file, key.line) {
			for _, n := range views {
				disabled[n] = struct{}{}
			}
		}
	}
	for addr, n := range d.byAddress {
		if bps.HasEnabledAtAddress(addr) {
			enabled[n] = struct{}{}
		}
		if bps.HasDisabledAtAddress(addr) {
			disabled[n] = struct{}{}
		}
	}
	h.Enabled = sortedViews(enabled)
	h.Disabled = sortedViews(disabled)
	return h
}

func sortedViews(set map[int]struct{}) []int {
	views := make([]int, 0, len(set))
	for n := range set {
		views = append(views, n)
	}
	sort.Ints(views)
	return views
}

// DisasmCache holds the current listing. Publishing swaps the whole
// listing in one step.
type DisasmCache struct {
	cur atomic.Pointer[Disassembly]
}

// NewDisasmCache creates a cache holding an empty listing.
func NewDisasmCache() *DisasmCache {
	c := &DisasmCache{}
	c.cur.Store(Generate(nil))
	return c
}

// Publish replaces the current listing.
func (c *DisasmCache) Publish(d *Disassembly) {
	if d == nil {
		d = Generate(nil)
	}
	c.cur.Store(d)
}

// Current returns the current listing, never nil.
func (c *DisasmCache) Current() *Disassembly {
	return c.cur.Load()
}
