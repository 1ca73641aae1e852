package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

const historyLimit = 1000

// console reads command lines with line editing and history when stdin is
// a terminal, and plainly otherwise.
type console struct {
	rl      *readline.Instance
	scanner *bufio.Scanner
}

func newConsole(historyFile string) *console {
	if !term.IsTerminal(int(os.Stdin.Fd())) || os.Getenv("INSIDE_EMACS") != "" {
		return &console{scanner: bufio.NewScanner(os.Stdin)}
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            historyFile,
		HistoryLimit:           historyLimit,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: readline init failed (%v), using basic input\n", err)
		return &console{scanner: bufio.NewScanner(os.Stdin)}
	}
	return &console{rl: rl}
}

// ReadLine returns the next line. Interrupt and end of input both
// return io.EOF.
func (c *console) ReadLine(prompt string) (string, error) {
	if c.rl == nil {
		if !c.scanner.Scan() {
			if err := c.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return c.scanner.Text(), nil
	}

	c.rl.SetPrompt(prompt)
	line, err := c.rl.Readline()
	if err != nil {
		if err == readline.ErrInterrupt {
			return "", io.EOF
		}
		return "", err
	}
	if trimmed := strings.TrimSpace(line); trimmed != "" {
		c.rl.SaveToHistory(trimmed)
	}
	return line, nil
}

func (c *console) Close() error {
	if c.rl != nil {
		return c.rl.Close()
	}
	return nil
}
