package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
)

// prompter reads interactive input.
type prompter interface {
	Prompt(label string) (string, error)
	Password(label string) (string, error)
	// Remember adds a line to the navigable history.
	Remember(line string)
	Close() error
}

// linerPrompter opens the terminal lazily so that non-interactive commands
// leave it untouched.
type linerPrompter struct {
	historyFile string
	line        *liner.State
}

func newLinerPrompter(historyFile string) *linerPrompter {
	return &linerPrompter{historyFile: historyFile}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "agriadvisor", "chat_history")
}

func (p *linerPrompter) state() *liner.State {
	if p.line != nil {
		return p.line
	}
	p.line = liner.NewLiner()
	p.line.SetCtrlCAborts(true)
	if p.historyFile != "" {
		if f, err := os.Open(p.historyFile); err == nil {
			_, _ = p.line.ReadHistory(f)
			f.Close()
		}
	}
	return p.line
}

func (p *linerPrompter) Prompt(label string) (string, error) {
	return p.state().Prompt(label)
}

func (p *linerPrompter) Password(label string) (string, error) {
	return p.state().PasswordPrompt(label)
}

func (p *linerPrompter) Remember(line string) {
	if strings.TrimSpace(line) != "" {
		p.state().AppendHistory(line)
	}
}

func (p *linerPrompter) Close() error {
	if p.line == nil {
		return nil
	}
	if p.historyFile != "" {
		if err := os.MkdirAll(filepath.Dir(p.historyFile), 0o700); err == nil {
			if f, err := os.OpenFile(p.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
				_, _ = p.line.WriteHistory(f)
				f.Close()
			}
		}
	}
	return p.line.Close()
}

// readerPrompter serves piped or redirected input, one line per prompt.
type readerPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func newReaderPrompter(in io.Reader, out io.Writer) *readerPrompter {
	return &readerPrompter{in: bufio.NewReader(in), out: out}
}

func (p *readerPrompter) Prompt(label string) (string, error) {
	fmt.Fprint(p.out, label)
	line, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *readerPrompter) Password(label string) (string, error) {
	return p.Prompt(label)
}

func (p *readerPrompter) Remember(string) {}

func (p *readerPrompter) Close() error { return nil }
