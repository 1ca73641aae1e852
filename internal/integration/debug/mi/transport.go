// Package mi implements the GDB Machine Interface output grammar, line
// framing and line transports.
package mi

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os/exec"
	"strings"
	"sync"
	"sync/atomic"
)

// Transport carries MI command lines to the debugger and output lines back.
type Transport interface {
	// Send writes one command line. A trailing newline is added if missing.
	Send(line string) error

	// Receive returns the next output line without its line terminator.
	Receive() (string, error)

	// Close closes the transport.
	Close() error
}

// MaxLineLength bounds a single output line (16MB covers large listings).
const MaxLineLength = 16 * 1024 * 1024

// StdioTransport implements Transport over stdin/stdout of a debugger process
// started with the MI interpreter.
type StdioTransport struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	reader *bufio.Reader
	mu     sync.Mutex
	closed atomic.Bool
}

// NewStdioTransport starts cmd and connects to its standard streams.
func NewStdioTransport(cmd *exec.Cmd) (*StdioTransport, error) {
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("get stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		return nil, fmt.Errorf("start command: %w", err)
	}

	return &StdioTransport{
		cmd:    cmd,
		stdin:  stdin,
		stdout: stdout,
		reader: bufio.NewReader(stdout),
	}, nil
}

// Send writes a command line to the debugger.
func (t *StdioTransport) Send(line string) error {
	if t.closed.Load() {
		return ErrClosed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return writeLine(t.stdin, line)
}

// Receive reads the next line from the debugger.
func (t *StdioTransport) Receive() (string, error) {
	line, err := readLine(t.reader)
	if err != nil && t.closed.Load() {
		return "", ErrClosed
	}
	return line, err
}

// Close closes the pipes and terminates the debugger process.
func (t *StdioTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.stdin.Close()
	t.stdout.Close()

	if t.cmd.Process != nil {
		t.cmd.Process.Kill()
	}

	return t.cmd.Wait()
}

// SocketTransport implements Transport over a TCP connection, for debuggers
// whose MI interpreter is exposed on a socket.
type SocketTransport struct {
	conn   net.Conn
	reader *bufio.Reader
	mu     sync.Mutex
	closed atomic.Bool
}

// NewSocketTransport dials address.
func NewSocketTransport(address string) (*SocketTransport, error) {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	return NewSocketTransportFromConn(conn), nil
}

// NewSocketTransportFromConn wraps an existing connection.
func NewSocketTransportFromConn(conn net.Conn) *SocketTransport {
	return &SocketTransport{
		conn:   conn,
		reader: bufio.NewReader(conn),
	}
}

// Send writes a command line.
func (t *SocketTransport) Send(line string) error {
	if t.closed.Load() {
		return ErrClosed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return writeLine(t.conn, line)
}

// Receive reads the next line.
func (t *SocketTransport) Receive() (string, error) {
	line, err := readLine(t.reader)
	if err != nil && t.closed.Load() {
		return "", ErrClosed
	}
	return line, err
}

// Close closes the connection.
func (t *SocketTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.conn.Close()
}

// RawTransport wraps any io.ReadWriteCloser as a Transport.
type RawTransport struct {
	rwc    io.ReadWriteCloser
	reader *bufio.Reader
	mu     sync.Mutex
	closed atomic.Bool
}

// NewRawTransport creates a transport from rwc.
func NewRawTransport(rwc io.ReadWriteCloser) *RawTransport {
	return &RawTransport{
		rwc:    rwc,
		reader: bufio.NewReader(rwc),
	}
}

// Send writes a command line.
func (t *RawTransport) Send(line string) error {
	if t.closed.Load() {
		return ErrClosed
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return writeLine(t.rwc, line)
}

// Receive reads the next line.
func (t *RawTransport) Receive() (string, error) {
	line, err := readLine(t.reader)
	if err != nil && t.closed.Load() {
		return "", ErrClosed
	}
	return line, err
}

// Close closes the underlying stream.
func (t *RawTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.rwc.Close()
}

func writeLine(w io.Writer, line string) error {
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	if _, err := io.WriteString(w, line); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	return nil
}

// readLine reads one line, tolerating a missing terminator on the final
// line before EOF.
func readLine(r *bufio.Reader) (string, error) {
	var b strings.Builder
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if err == io.EOF && b.Len() > 0 {
				return b.String(), nil
			}
			return "", err
		}
		if b.Len()+len(chunk) > MaxLineLength {
			return "", fmt.Errorf("line exceeds maximum length %d", MaxLineLength)
		}
		b.Write(chunk)
		if !isPrefix {
			return strings.TrimRight(b.String(), "\r"), nil
		}
	}
}
