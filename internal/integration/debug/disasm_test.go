package debug

import (
	"strings"
	"testing"
)

const mixedListing = `^done,asm_insns=[` +
	`src_and_asm_line={line="5",file="main.c",fullname="/src/main.c",line_asm_insn=[` +
	`{address="0x0000000000401136",func-name="main",offset="0",opcodes="55",inst="push   %rbp"},` +
	`{address="0x0000000000401137",func-name="main",offset="1",opcodes="48 89 e5",inst="mov    %rsp,%rbp"}]},` +
	`src_and_asm_line={line="6",file="main.c",fullname="/src/main.c",line_asm_insn=[` +
	`{address="0x000000000040113a",func-name="main",offset="4",opcodes="b8 00 00 00 00",inst="mov    $0x0,%eax"}]}]`

func TestDecodeListing_Mixed(t *testing.T) {
	blocks, err := DecodeListing(mustParse(t, mixedListing))
	if err != nil {
		t.Fatalf("DecodeListing failed: %v", err)
	}

	kinds := []BlockKind{BlockSource, BlockInstruction, BlockInstruction, BlockSource, BlockInstruction}
	if len(blocks) != len(kinds) {
		t.Fatalf("expected %d blocks, got %d", len(kinds), len(blocks))
	}
	for i, k := range kinds {
		if blocks[i].Kind != k {
			t.Errorf("block %d: expected %s, got %s", i, k, blocks[i].Kind)
		}
	}
	if blocks[0].File != "/src/main.c" || blocks[0].Line != 5 {
		t.Errorf("unexpected source block %+v", blocks[0])
	}
	if insn := blocks[2].Instruction; insn.Address != 0x401137 || insn.Offset != 1 || insn.Text != "mov    %rsp,%rbp" {
		t.Errorf("unexpected instruction %+v", insn)
	}
}

func TestDecodeListing_Plain(t *testing.T) {
	rec := mustParse(t, `^done,asm_insns=[{address="0x1000",inst="nop"},{address="0x1001",inst="ret"}]`)
	blocks, err := DecodeListing(rec)
	if err != nil {
		t.Fatalf("DecodeListing failed: %v", err)
	}
	if len(blocks) != 2 || blocks[1].Instruction.Address != 0x1001 {
		t.Errorf("unexpected blocks %+v", blocks)
	}
}

func TestDecodeListing_MissingInstructions(t *testing.T) {
	if _, err := DecodeListing(mustParse(t, `^done`)); err == nil {
		t.Error("expected error for reply without asm_insns")
	}
}

func TestGenerate_Rendering(t *testing.T) {
	d := Generate([]ListingBlock{
		{Kind: BlockSource, File: "main.c", Line: 5},
		{Kind: BlockInstruction, Instruction: Instruction{Address: 0x401136, Opcodes: "55", Text: "push   %rbp", Func: "main"}},
		{Kind: BlockInstruction, Instruction: Instruction{Address: 0x401137, Text: "ret"}},
	})

	lines := d.Lines()
	if d.Len() != 3 {
		t.Fatalf("expected 3 lines, got %d", d.Len())
	}
	if lines[0] != "main.c:5" {
		t.Errorf("unexpected source line %q", lines[0])
	}
	if lines[1] != "   0x0000000000401136 <main+0>:\t55\tpush   %rbp" {
		t.Errorf("unexpected instruction line %q", lines[1])
	}
	if strings.Contains(lines[2], "<") {
		t.Errorf("instruction without function rendered a symbol: %q", lines[2])
	}
}

func TestGenerate_LaterAddressWins(t *testing.T) {
	d := Generate([]ListingBlock{
		{Kind: BlockSource, File: "a.c", Line: 1},
		{Kind: BlockInstruction, Instruction: Instruction{Address: 0x10, Text: "nop"}},
		{Kind: BlockSource, File: "a.c", Line: 2},
		{Kind: BlockInstruction, Instruction: Instruction{Address: 0x10, Text: "nop"}},
	})

	n, ok := d.ViewLineForAddress(0x10)
	if !ok || n != 3 {
		t.Errorf("expected view-line 3 for 0x10, got %d, %v", n, ok)
	}
	if _, ok := d.ViewLineForAddress(0x20); ok {
		t.Error("unknown address resolved to a view-line")
	}
}

func TestDisassembly_BlockForViewLine(t *testing.T) {
	d := Generate([]ListingBlock{
		{Kind: BlockSource, File: "a.c", Line: 7},
		{Kind: BlockInstruction, Instruction: Instruction{Address: 0x40, Text: "nop"}},
	})

	if ref := d.BlockForViewLine(0); ref.Kind != BlockSource || ref.File != "a.c" || ref.Line != 7 {
		t.Errorf("unexpected ref %+v", ref)
	}
	if ref := d.BlockForViewLine(1); ref.Kind != BlockInstruction || ref.Address != 0x40 {
		t.Errorf("unexpected ref %+v", ref)
	}
	for _, n := range []int{-1, 2, 100} {
		if ref := d.BlockForViewLine(n); ref != InvalidBlock {
			t.Errorf("BlockForViewLine(%d) = %+v, want InvalidBlock", n, ref)
		}
	}
}

func TestDisassembly_ViewLinesForSource(t *testing.T) {
	d := Generate([]ListingBlock{
		{Kind: BlockSource, File: "a.c", Line: 3},
		{Kind: BlockInstruction, Instruction: Instruction{Address: 0x1}},
		{Kind: BlockSource, File: "a.c", Line: 4},
		{Kind: BlockInstruction, Instruction: Instruction{Address: 0x2}},
		{Kind: BlockSource, File: "a.c", Line: 3},
		{Kind: BlockInstruction, Instruction: Instruction{Address: 0x3}},
	})

	views := d.ViewLinesForSource("a.c", 3)
	if len(views) != 2 || views[0] != 0 || views[1] != 4 {
		t.Errorf("unexpected views %v", views)
	}
	if views := d.ViewLinesForSource("b.c", 3); len(views) != 0 {
		t.Errorf("unexpected views for unknown file %v", views)
	}
}

func TestDisassembly_Highlight(t *testing.T) {
	d := Generate([]ListingBlock{
		{Kind: BlockSource, File: "a.c", Line: 10},
		{Kind: BlockInstruction, Instruction: Instruction{Address: 0x100}},
		{Kind: BlockSource, File: "b.c", Line: 20},
		{Kind: BlockInstruction, Instruction: Instruction{Address: 0x200}},
		{Kind: BlockInstruction, Instruction: Instruction{Address: 0x300}},
	})

	bps := NewBreakpointCache()
	bps.Rebuild(&Snapshot{Breakpoints: []Breakpoint{
		{Number: "1", Enabled: true, Addr: 0x100, HasAddr: true, File: "a.c", Line: 10},
		{Number: "2", Enabled: true, Locations: []Location{
			{Number: "2.1", Enabled: true, Addr: 0x200, HasAddr: true, File: "b.c", Line: 20},
			{Number: "2.2", Enabled: false, Addr: 0x300, HasAddr: true, File: "b.c", Line: 20},
		}},
	}})

	h := d.Highlight(0x200, true, bps)
	if h.PCLine != 3 {
		t.Errorf("expected PC on view-line 3, got %d", h.PCLine)
	}
	wantEnabled := []int{0, 1, 2, 3}
	if len(h.Enabled) != len(wantEnabled) {
		t.Fatalf("expected enabled %v, got %v", wantEnabled, h.Enabled)
	}
	for i, n := range wantEnabled {
		if h.Enabled[i] != n {
			t.Errorf("expected enabled %v, got %v", wantEnabled, h.Enabled)
			break
		}
	}
	if len(h.Disabled) != 2 || h.Disabled[0] != 2 || h.Disabled[1] != 4 {
		t.Errorf("expected disabled [2 4], got %v", h.Disabled)
	}

	if h := d.Highlight(0x999, true, nil); h.PCLine != -1 || h.Enabled != nil {
		t.Errorf("unexpected highlight %+v", h)
	}
	if h := d.Highlight(0x100, false, nil); h.PCLine != -1 {
		t.Errorf("PC without hasPC highlighted line %d", h.PCLine)
	}
}

func TestDisasmCache(t *testing.T) {
	c := NewDisasmCache()
	if c.Current() == nil || c.Current().Len() != 0 {
		t.Fatal("expected empty listing")
	}

	d := Generate([]ListingBlock{{Kind: BlockInstruction, Instruction: Instruction{Address: 0x1}}})
	c.Publish(d)
	if c.Current() != d {
		t.Error("Publish did not replace the listing")
	}

	c.Publish(nil)
	if c.Current() == nil || c.Current().Len() != 0 {
		t.Error("nil publish must leave an empty listing")
	}
}
