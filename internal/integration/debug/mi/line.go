package mi

import (
	"strconv"
	"strings"
)

// LineKind classifies a raw output line by its marker character.
type LineKind int

const (
	// LineUnknown is anything else, typically inferior output on a shared tty.
	LineUnknown LineKind = iota
	// LineResult is a "^" result record.
	LineResult
	// LineExec is a "*" exec-async record.
	LineExec
	// LineStatus is a "+" status-async record.
	LineStatus
	// LineNotify is a "=" notify-async record.
	LineNotify
	// LineConsole is a "~" console stream record.
	LineConsole
	// LineTarget is a "@" target stream record.
	LineTarget
	// LineLog is a "&" log stream record.
	LineLog
	// LinePrompt is the "(gdb)" prompt that ends a batch of output.
	LinePrompt
)

// String returns a short name for the kind.
func (k LineKind) String() string {
	switch k {
	case LineResult:
		return "result"
	case LineExec:
		return "exec"
	case LineStatus:
		return "status"
	case LineNotify:
		return "notify"
	case LineConsole:
		return "console"
	case LineTarget:
		return "target"
	case LineLog:
		return "log"
	case LinePrompt:
		return "prompt"
	default:
		return "unknown"
	}
}

// Prompt is the line the debugger prints when it is ready for input.
const Prompt = "(gdb)"

func markerKind(c byte) LineKind {
	switch c {
	case '^':
		return LineResult
	case '*':
		return LineExec
	case '+':
		return LineStatus
	case '=':
		return LineNotify
	case '~':
		return LineConsole
	case '@':
		return LineTarget
	case '&':
		return LineLog
	default:
		return LineUnknown
	}
}

// Line is a raw output line split into its optional token and its body.
type Line struct {
	// Token is the leading decimal token, or 0 when the line carried none.
	Token int

	// Kind is derived from the marker character.
	Kind LineKind

	// Body is the line from the marker onwards.
	Body string
}

// SplitLine separates the leading token from a raw line and classifies it.
// A run of digits counts as a token only when a marker follows it.
func SplitLine(raw string) Line {
	raw = strings.TrimRight(raw, "\r\n")
	if strings.TrimSpace(raw) == Prompt {
		return Line{Kind: LinePrompt, Body: raw}
	}

	i := 0
	for i < len(raw) && raw[i] >= '0' && raw[i] <= '9' {
		i++
	}
	if i >= len(raw) {
		return Line{Kind: LineUnknown, Body: raw}
	}
	kind := markerKind(raw[i])
	if kind == LineUnknown {
		return Line{Kind: LineUnknown, Body: raw}
	}

	line := Line{Kind: kind, Body: raw[i:]}
	if i > 0 {
		if n, err := strconv.Atoi(raw[:i]); err == nil {
			line.Token = n
		}
	}
	return line
}

// IsStream reports whether the line is a console, target or log stream record.
func (l Line) IsStream() bool {
	return l.Kind == LineConsole || l.Kind == LineTarget || l.Kind == LineLog
}

// DecodeStream returns the decoded string payload of a stream record body
// such as `~"Hello\n"`.
func DecodeStream(body string) (string, error) {
	if len(body) < 2 || markerKind(body[0]) == LineUnknown {
		return "", syntaxError(body, "not a stream record")
	}
	toks, ok := lex(body[1:])
	if !ok {
		return "", syntaxError(body, "unterminated string")
	}
	if len(toks) != 1 || toks[0].kind != tokString {
		return "", syntaxError(body, "stream payload is not a single string")
	}
	return decodeConst(toks[0].text), nil
}
