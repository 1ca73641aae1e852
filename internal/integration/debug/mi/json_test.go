package mi

import (
	"testing"

	"github.com/tidwall/gjson"
)

func TestRecordJSON(t *testing.T) {
	rec, err := Parse(`^done,bkpt={number="1",enabled="y",thread-groups=["i1","i2"]},` +
		`stack=[frame={level="0"},frame={level="1"}]`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	doc := rec.JSON()
	if !gjson.Valid(doc) {
		t.Fatalf("invalid JSON: %s", doc)
	}

	tests := []struct {
		path string
		want string
	}{
		{"class", "done"},
		{"results.bkpt.number", "1"},
		{"results.bkpt.thread-groups.1", "i2"},
		{"results.stack.#", "2"},
		{"results.stack.1.frame.level", "1"},
	}
	for _, tt := range tests {
		if got := gjson.Get(doc, tt.path).String(); got != tt.want {
			t.Errorf("%s: expected %q, got %q", tt.path, tt.want, got)
		}
	}
}

func TestRecordQuery(t *testing.T) {
	rec, err := Parse(`*stopped,reason="breakpoint-hit",frame={addr="0x401136",func="main",line="5"}`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got := rec.Query("results.frame.func").String(); got != "main" {
		t.Errorf("expected main, got %q", got)
	}
	if got := rec.Query("class").String(); got != "stopped" {
		t.Errorf("expected stopped, got %q", got)
	}
}

func TestAsyncRecordJSON(t *testing.T) {
	a, err := ParseAsync(`=library-loaded,id="/lib/libc.so.6",symbols-loaded="0"`)
	if err != nil {
		t.Fatalf("ParseAsync failed: %v", err)
	}
	doc := a.JSON()
	if gjson.Get(doc, "kind").String() != "notify" {
		t.Errorf("unexpected kind in %s", doc)
	}
	if gjson.Get(doc, "class").String() != "library-loaded" {
		t.Errorf("unexpected class in %s", doc)
	}
	if gjson.Get(doc, "results.id").String() != "/lib/libc.so.6" {
		t.Errorf("unexpected id in %s", doc)
	}
}

func TestValueJSON(t *testing.T) {
	v, err := ParseValue(`{value="line one\nline \"two\""}`)
	if err != nil {
		t.Fatalf("ParseValue failed: %v", err)
	}
	doc := ValueJSON(v)
	if got := gjson.Get(doc, "value").String(); got != "line one\nline \"two\"" {
		t.Errorf("unexpected value %q from %s", got, doc)
	}
	if ValueJSON(Const("x")) != `"x"` {
		t.Errorf("unexpected const JSON %s", ValueJSON(Const("x")))
	}
}
