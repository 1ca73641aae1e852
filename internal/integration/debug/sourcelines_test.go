package debug

import "testing"

func TestDecodeSourceFiles(t *testing.T) {
	rec := mustParse(t, `^done,files=[{file="a.c",fullname="/src/a.c"},{file="b.c"},{file="a.c",fullname="/src/a.c"},{file=""}]`)
	files := decodeSourceFiles(rec)
	if len(files) != 2 || files[0] != "/src/a.c" || files[1] != "b.c" {
		t.Errorf("unexpected files %v", files)
	}
	if decodeSourceFiles(mustParse(t, `^done`)) != nil {
		t.Error("expected nil for reply without files")
	}
}

func TestLineTableBuild(t *testing.T) {
	b := newLineTableBuild()
	b.add("/src/z.c", mustParse(t, `^done,lines=[{pc="0x2000",line="1"}]`))
	b.add("/src/a.c", mustParse(t, `^done,lines=[{pc="0x1000",line="4"},{pc="0x1004",line="4"},{pc="0x1008",line="0"},{pc="bogus",line="5"}]`))
	b.add("/src/b.c", mustParse(t, `^done,lines=[{pc="0x1000",line="9"}]`))
	b.add("/src/empty.c", mustParse(t, `^done,lines=[]`))

	table := b.finish()

	files := table.Files()
	if len(files) != 3 || files[0] != "/src/a.c" || files[2] != "/src/z.c" {
		t.Errorf("unexpected files %v", files)
	}
	if addrs := table.Addresses("/src/a.c", 4); len(addrs) != 2 {
		t.Errorf("expected 2 addresses for a.c:4, got %v", addrs)
	}
	if sl, ok := table.LineForAddress(0x1000); !ok || sl.File != "/src/a.c" || sl.Line != 4 {
		t.Errorf("first file to claim an address should win, got %+v", sl)
	}
	if _, ok := table.LineForAddress(0x1008); ok {
		t.Error("line 0 entries should be skipped")
	}
	if !table.HasCode("/src/b.c", 9) || table.HasCode("/src/a.c", 5) {
		t.Error("unexpected HasCode results")
	}
}

func TestSourceLinesCache(t *testing.T) {
	c := NewSourceLinesCache()
	if c.Current() == nil || len(c.Current().Files()) != 0 {
		t.Fatal("expected empty tables")
	}
	c.Publish(nil)
	if c.Current() == nil {
		t.Error("Current must never be nil")
	}
}
