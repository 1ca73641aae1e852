package app

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/sjson"

	"github.com/dshills/gdbmi/internal/integration/debug/mi"
)

// DumpStats summarizes a Dump run.
type DumpStats struct {
	Lines    int
	Records  int
	Failures int
}

// Dump reads a transcript of MI output lines from r and writes one JSON
// document per line to w. Prompts are skipped; lines that fail to parse
// produce an {"error":...} document and are counted.
func Dump(r io.Reader, w io.Writer) (DumpStats, error) {
	var stats DumpStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), mi.MaxLineLength)
	for scanner.Scan() {
		raw := scanner.Text()
		stats.Lines++

		doc, ok := DumpLine(raw)
		if doc == "" {
			continue
		}
		if ok {
			stats.Records++
		} else {
			stats.Failures++
		}
		if _, err := fmt.Fprintln(w, doc); err != nil {
			return stats, fmt.Errorf("write: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("read: %w", err)
	}
	return stats, nil
}

// DumpLine renders one raw output line as JSON. It returns "" for prompts
// and blank lines, and false when the line could not be parsed.
func DumpLine(raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", true
	}
	line := mi.SplitLine(raw)

	var doc string
	switch line.Kind {
	case mi.LinePrompt:
		return "", true
	case mi.LineResult, mi.LineExec:
		rec, err := mi.Parse(line.Body)
		if err != nil {
			return dumpError(raw, err), false
		}
		doc = rec.JSON()
	case mi.LineNotify, mi.LineStatus:
		rec, err := mi.ParseAsync(line.Body)
		if err != nil {
			return dumpError(raw, err), false
		}
		doc = rec.JSON()
	case mi.LineConsole, mi.LineTarget, mi.LineLog:
		text, err := mi.DecodeStream(line.Body)
		if err != nil {
			return dumpError(raw, err), false
		}
		doc, _ = sjson.Set(`{}`, "text", text)
	default:
		doc, _ = sjson.Set(`{}`, "text", raw)
	}

	doc, _ = sjson.Set(doc, "type", line.Kind.String())
	if line.Token != 0 {
		doc, _ = sjson.Set(doc, "token", line.Token)
	}
	return doc, true
}

func dumpError(raw string, err error) string {
	doc, _ := sjson.Set(`{}`, "line", raw)
	doc, _ = sjson.Set(doc, "error", err.Error())
	return doc
}
