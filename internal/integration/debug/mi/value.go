package mi

import (
	"strconv"
	"strings"
)

// Value is a parsed MI value: a Const, a Tuple or a List.
type Value interface {
	// String renders the value back in MI syntax with escapes re-applied.
	String() string

	isValue()
}

// Const is a string constant with escapes already resolved.
type Const string

// Tuple maps field names to values. Field order is not significant.
type Tuple map[string]Value

// Result is a named value, as found at the top level of a record, inside
// tuples and in lists of results.
type Result struct {
	Name  string
	Value Value
}

// List holds either unnamed values or named results, never both.
type List struct {
	// Values is set when the list holds unnamed values.
	Values []Value

	// Results is set when the list holds named results.
	Results []Result
}

func (Const) isValue() {}
func (Tuple) isValue() {}
func (*List) isValue() {}

// String returns the constant quoted in MI syntax.
func (c Const) String() string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range string(c) {
		switch r {
		case '\n':
			b.WriteString(`\n`)
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// String returns the tuple in MI syntax. Field order follows map iteration.
func (t Tuple) String() string {
	var b strings.Builder
	b.WriteByte('{')
	first := true
	for name, v := range t {
		if !first {
			b.WriteByte(',')
		}
		first = false
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(v.String())
	}
	b.WriteByte('}')
	return b.String()
}

// String returns the list in MI syntax.
func (l *List) String() string {
	var b strings.Builder
	b.WriteByte('[')
	if len(l.Results) > 0 {
		for i, r := range l.Results {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(r.Name)
			b.WriteByte('=')
			b.WriteString(r.Value.String())
		}
	} else {
		for i, v := range l.Values {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(v.String())
		}
	}
	b.WriteByte(']')
	return b.String()
}

// Len returns the number of entries in the list, whichever shape it has.
func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Values) + len(l.Results)
}

// IsResults reports whether the list holds named results.
func (l *List) IsResults() bool {
	return l != nil && len(l.Results) > 0
}

// Const returns the named field as a string.
func (t Tuple) Const(name string) (string, bool) {
	c, ok := t[name].(Const)
	return string(c), ok
}

// Str returns the named field as a string, or "" when it is absent.
func (t Tuple) Str(name string) string {
	s, _ := t.Const(name)
	return s
}

// Int returns the named field parsed as a decimal integer.
func (t Tuple) Int(name string) (int, bool) {
	s, ok := t.Const(name)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Tuple returns the named field as a tuple.
func (t Tuple) Tuple(name string) (Tuple, bool) {
	v, ok := t[name].(Tuple)
	return v, ok
}

// List returns the named field as a list.
func (t Tuple) List(name string) (*List, bool) {
	v, ok := t[name].(*List)
	return v, ok
}

// Tuples returns every entry of the list that is a tuple, in order, looking
// through named results ("bkpt={...}") as well as unnamed values.
func (l *List) Tuples() []Tuple {
	if l == nil {
		return nil
	}
	var out []Tuple
	for _, v := range l.Values {
		if t, ok := v.(Tuple); ok {
			out = append(out, t)
		}
	}
	for _, r := range l.Results {
		if t, ok := r.Value.(Tuple); ok {
			out = append(out, t)
		}
	}
	return out
}

// Consts returns the string entries of an unnamed-values list.
func (l *List) Consts() []string {
	if l == nil {
		return nil
	}
	out := make([]string, 0, len(l.Values))
	for _, v := range l.Values {
		if c, ok := v.(Const); ok {
			out = append(out, string(c))
		}
	}
	return out
}

// ParseAddress parses a "0x..." address as printed by the debugger.
// Placeholders such as "<PENDING>" or "<MULTIPLE>" report false.
func ParseAddress(s string) (uint64, bool) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return 0, false
	}
	n, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
