// Package prompt reads secrets from an interactive terminal.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var ErrNotTerminal = errors.New("stdin is not a terminal")

// Prompter reads lines and secrets. Secrets are not echoed when the input is
// a terminal.
type Prompter struct {
	in  io.Reader
	out io.Writer
	fd  int
	tty bool
	r   *bufio.Reader
}

// New returns a Prompter on stdin and stderr.
func New() *Prompter {
	fd := int(os.Stdin.Fd())
	return &Prompter{
		in:  os.Stdin,
		out: os.Stderr,
		fd:  fd,
		tty: term.IsTerminal(fd),
	}
}

// NewReader returns a Prompter that reads from in with echo left on.
func NewReader(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out, fd: -1}
}

// Interactive reports whether secrets can be read without echo.
func (p *Prompter) Interactive() bool { return p.tty }

func (p *Prompter) reader() *bufio.Reader {
	if p.r == nil {
		p.r = bufio.NewReader(p.in)
	}
	return p.r
}

// Line prints label and returns one trimmed line.
func (p *Prompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.reader().ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Secret prints label and reads a value without echo. On a non-terminal
// reader it falls back to reading a line.
func (p *Prompter) Secret(label string) (string, error) {
	if !p.tty {
		if p.fd >= 0 {
			return "", ErrNotTerminal
		}
		return p.Line(label)
	}
	fmt.Fprint(p.out, label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	s := strings.TrimSpace(string(b))
	clear(b)
	return s, nil
}
