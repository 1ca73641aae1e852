package mi

import "strings"

// tokenKind classifies lexical tokens of an MI output line.
type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokPunct
)

// token is one lexical element. For tokString, text holds the raw contents
// between the quotes with escapes still in place.
type token struct {
	kind tokenKind
	text string
}

func isIdentByte(c byte) bool {
	return c >= 'a' && c <= 'z' ||
		c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' ||
		c == '_' || c == '-'
}

// lex splits a line into tokens. It fails only on an unterminated string.
func lex(line string) ([]token, bool) {
	var toks []token
	for i := 0; i < len(line); {
		c := line[i]
		switch {
		case isIdentByte(c):
			j := i + 1
			for j < len(line) && isIdentByte(line[j]) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: line[i:j]})
			i = j
		case c == '"':
			j := i + 1
			closed := false
			for j < len(line) {
				if line[j] == '\\' {
					j += 2
					continue
				}
				if line[j] == '"' {
					closed = true
					break
				}
				j++
			}
			if !closed {
				return nil, false
			}
			toks = append(toks, token{kind: tokString, text: line[i+1 : j]})
			i = j + 1
		default:
			toks = append(toks, token{kind: tokPunct, text: line[i : i+1]})
			i++
		}
	}
	return toks, true
}

// decodeConst resolves the escapes of a raw quoted-string body. Only \n and
// \" are special; any other escaped character is kept without its backslash.
func decodeConst(raw string) string {
	if strings.IndexByte(raw, '\\') < 0 {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c != '\\' || i+1 >= len(raw) {
			b.WriteByte(c)
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			b.WriteByte('\n')
		case '"':
			b.WriteByte('"')
		default:
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}

// grammar is a recursive-descent parser over a token slice. Every production
// takes a position and returns the position after the match. On failure the
// returned position is the one passed in, so callers never have to restore.
type grammar struct {
	toks []token
}

func (g *grammar) punct(pos int, p string) (int, bool) {
	if pos < len(g.toks) && g.toks[pos].kind == tokPunct && g.toks[pos].text == p {
		return pos + 1, true
	}
	return pos, false
}

func (g *grammar) ident(pos int) (string, int, bool) {
	if pos < len(g.toks) && g.toks[pos].kind == tokIdent {
		return g.toks[pos].text, pos + 1, true
	}
	return "", pos, false
}

func (g *grammar) value(pos int) (Value, int, bool) {
	if v, next, ok := g.tuple(pos); ok {
		return v, next, true
	}
	if v, next, ok := g.list(pos); ok {
		return v, next, true
	}
	if v, next, ok := g.constant(pos); ok {
		return v, next, true
	}
	return nil, pos, false
}

func (g *grammar) constant(pos int) (Value, int, bool) {
	if pos < len(g.toks) && g.toks[pos].kind == tokString {
		return Const(decodeConst(g.toks[pos].text)), pos + 1, true
	}
	return nil, pos, false
}

func (g *grammar) result(pos int) (Result, int, bool) {
	name, next, ok := g.ident(pos)
	if !ok {
		return Result{}, pos, false
	}
	if next, ok = g.punct(next, "="); !ok {
		return Result{}, pos, false
	}
	v, next, ok := g.value(next)
	if !ok {
		return Result{}, pos, false
	}
	return Result{Name: name, Value: v}, next, true
}

func (g *grammar) tuple(pos int) (Value, int, bool) {
	next, ok := g.punct(pos, "{")
	if !ok {
		return nil, pos, false
	}
	t := make(Tuple)
	if end, ok := g.punct(next, "}"); ok {
		return t, end, true
	}
	for {
		r, after, ok := g.result(next)
		if !ok {
			return nil, pos, false
		}
		t[r.Name] = r.Value
		next = after
		if after, ok = g.punct(next, ","); ok {
			next = after
			continue
		}
		if end, ok := g.punct(next, "}"); ok {
			return t, end, true
		}
		return nil, pos, false
	}
}

func (g *grammar) list(pos int) (Value, int, bool) {
	next, ok := g.punct(pos, "[")
	if !ok {
		return nil, pos, false
	}
	if end, ok := g.punct(next, "]"); ok {
		return &List{}, end, true
	}
	// The first element decides the shape of the whole list.
	if _, _, ok := g.value(next); ok {
		return g.valueList(pos, next)
	}
	return g.resultList(pos, next)
}

func (g *grammar) valueList(pos, next int) (Value, int, bool) {
	l := &List{}
	for {
		v, after, ok := g.value(next)
		if !ok {
			return nil, pos, false
		}
		l.Values = append(l.Values, v)
		next = after
		if after, ok = g.punct(next, ","); ok {
			next = after
			continue
		}
		if end, ok := g.punct(next, "]"); ok {
			return l, end, true
		}
		return nil, pos, false
	}
}

func (g *grammar) resultList(pos, next int) (Value, int, bool) {
	l := &List{}
	for {
		r, after, ok := g.result(next)
		if !ok {
			return nil, pos, false
		}
		l.Results = append(l.Results, r)
		next = after
		if after, ok = g.punct(next, ","); ok {
			next = after
			continue
		}
		if end, ok := g.punct(next, "]"); ok {
			return l, end, true
		}
		return nil, pos, false
	}
}

// results parses ("," result)* up to the end of the token stream.
func (g *grammar) results(pos int) ([]Result, int, bool) {
	var out []Result
	next := pos
	for next < len(g.toks) {
		after, ok := g.punct(next, ",")
		if !ok {
			return nil, pos, false
		}
		r, after, ok := g.result(after)
		if !ok {
			return nil, pos, false
		}
		out = append(out, r)
		next = after
	}
	return out, next, true
}

// ParseValue parses a standalone MI value such as `{a="1"}` or `["x"]`.
// The whole input must be consumed.
func ParseValue(text string) (Value, error) {
	toks, ok := lex(text)
	if !ok {
		return nil, syntaxError(text, "unterminated string")
	}
	g := &grammar{toks: toks}
	v, next, ok := g.value(0)
	if !ok || next != len(toks) {
		return nil, syntaxError(text, "not a value")
	}
	return v, nil
}
