package mi

import "github.com/tidwall/gjson"

// ResultClass is the class keyword of a result or exec-async record.
type ResultClass int

const (
	// ClassInvalid marks a line that could not be parsed.
	ClassInvalid ResultClass = iota
	// ClassDone is a successful command completion.
	ClassDone
	// ClassRunning reports that the target started running.
	ClassRunning
	// ClassConnected reports a connection to a remote target.
	ClassConnected
	// ClassError reports a failed command.
	ClassError
	// ClassExit reports that the debugger is exiting.
	ClassExit
	// ClassStopped reports that the target stopped.
	ClassStopped
)

var classNames = map[string]ResultClass{
	"done":      ClassDone,
	"running":   ClassRunning,
	"connected": ClassConnected,
	"error":     ClassError,
	"exit":      ClassExit,
	"stopped":   ClassStopped,
}

// String returns the protocol keyword of the class.
func (c ResultClass) String() string {
	switch c {
	case ClassDone:
		return "done"
	case ClassRunning:
		return "running"
	case ClassConnected:
		return "connected"
	case ClassError:
		return "error"
	case ClassExit:
		return "exit"
	case ClassStopped:
		return "stopped"
	default:
		return "invalid"
	}
}

// Record is one parsed result (^) or exec-async (*) line.
type Record struct {
	Class   ResultClass
	Results []Result
}

// invalidRecord is returned alongside every parse error.
func invalidRecord() *Record {
	return &Record{Class: ClassInvalid}
}

// Get returns the first top-level result with the given name.
func (r *Record) Get(name string) (Value, bool) {
	for _, res := range r.Results {
		if res.Name == name {
			return res.Value, true
		}
	}
	return nil, false
}

// Const returns a top-level string result.
func (r *Record) Const(name string) (string, bool) {
	v, ok := r.Get(name)
	if !ok {
		return "", false
	}
	c, ok := v.(Const)
	return string(c), ok
}

// Tuple returns a top-level tuple result.
func (r *Record) Tuple(name string) (Tuple, bool) {
	v, ok := r.Get(name)
	if !ok {
		return nil, false
	}
	t, ok := v.(Tuple)
	return t, ok
}

// List returns a top-level list result.
func (r *Record) List(name string) (*List, bool) {
	v, ok := r.Get(name)
	if !ok {
		return nil, false
	}
	l, ok := v.(*List)
	return l, ok
}

// Fields returns the top-level results as a tuple. Later duplicates win.
func (r *Record) Fields() Tuple {
	t := make(Tuple, len(r.Results))
	for _, res := range r.Results {
		t[res.Name] = res.Value
	}
	return t
}

// Query evaluates a gjson path against the JSON form of the record, for
// example "results.bkpt.number".
func (r *Record) Query(path string) gjson.Result {
	return gjson.Get(r.JSON(), path)
}

// Parse parses one result (^) or exec-async (*) line, with any token prefix
// already removed. On failure it returns a record of class ClassInvalid with
// no results together with an error wrapping ErrSyntax.
func Parse(line string) (*Record, error) {
	if line == "" {
		return invalidRecord(), syntaxError(line, "empty line")
	}
	if line[0] != '^' && line[0] != '*' {
		return invalidRecord(), syntaxError(line, "missing record marker")
	}
	toks, ok := lex(line[1:])
	if !ok {
		return invalidRecord(), syntaxError(line, "unterminated string")
	}
	g := &grammar{toks: toks}
	keyword, next, ok := g.ident(0)
	if !ok {
		return invalidRecord(), syntaxError(line, "missing result class")
	}
	class, known := classNames[keyword]
	if !known {
		return invalidRecord(), syntaxError(line, "unknown result class "+keyword)
	}
	results, next, ok := g.results(next)
	if !ok || next != len(toks) {
		return invalidRecord(), syntaxError(line, "malformed result list")
	}
	return &Record{Class: class, Results: results}, nil
}

// AsyncRecord is a notify (=) or status (+) line. Its class is a free
// keyword such as "breakpoint-modified" or "download".
type AsyncRecord struct {
	Kind    LineKind
	Class   string
	Results []Result
}

// Fields returns the top-level results as a tuple.
func (a *AsyncRecord) Fields() Tuple {
	return (&Record{Results: a.Results}).Fields()
}

// ParseAsync parses a notify (=) or status (+) line without its token.
func ParseAsync(line string) (*AsyncRecord, error) {
	if line == "" || (line[0] != '=' && line[0] != '+') {
		return nil, syntaxError(line, "missing async marker")
	}
	kind := LineNotify
	if line[0] == '+' {
		kind = LineStatus
	}
	toks, ok := lex(line[1:])
	if !ok {
		return nil, syntaxError(line, "unterminated string")
	}
	g := &grammar{toks: toks}
	class, next, ok := g.ident(0)
	if !ok {
		return nil, syntaxError(line, "missing async class")
	}
	results, next, ok := g.results(next)
	if !ok || next != len(toks) {
		return nil, syntaxError(line, "malformed result list")
	}
	return &AsyncRecord{Kind: kind, Class: class, Results: results}, nil
}
