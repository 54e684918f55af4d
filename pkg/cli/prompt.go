// Package cli provides terminal prompt helpers for the setup wizard.
package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// ErrNoInput is returned when input ends before a required answer is given.
var ErrNoInput = errors.New("cli: input closed before an answer was given")

// Prompter reads answers from In and writes questions to Out.
type Prompter struct {
	In      io.Reader
	Out     io.Writer
	scanner *bufio.Scanner
}

// DefaultPrompter returns a Prompter connected to stdin/stdout.
func DefaultPrompter() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stdout}
}

// readLine reads one trimmed line. ok is false once input is exhausted.
func (p *Prompter) readLine() (line string, ok bool) {
	if p.scanner == nil {
		p.scanner = bufio.NewScanner(p.In)
	}
	if !p.scanner.Scan() {
		return "", false
	}
	return strings.TrimSpace(p.scanner.Text()), true
}

func (p *Prompter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.Out, format, args...)
}

// Ask prints a question and reads one line, returning defaultVal for an
// empty answer.
func (p *Prompter) Ask(question, defaultVal string) string {
	if defaultVal != "" {
		p.printf("%s [%s]: ", question, defaultVal)
	} else {
		p.printf("%s: ", question)
	}
	if line, _ := p.readLine(); line != "" {
		return line
	}
	return defaultVal
}

// AskRequired repeats the question until a non-empty answer is given.
func (p *Prompter) AskRequired(question string) (string, error) {
	for {
		p.printf("%s: ", question)
		line, ok := p.readLine()
		if line != "" {
			return line, nil
		}
		if !ok {
			return "", ErrNoInput
		}
		p.printf("  A value is required.\n")
	}
}

// AskSecret reads a required line without echo when In is a terminal.
// Piped input is read as plain text.
func (p *Prompter) AskSecret(question string) (string, error) {
	if f, ok := p.In.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		for {
			p.printf("%s: ", question)
			b, err := term.ReadPassword(int(f.Fd()))
			p.printf("\n")
			if err != nil {
				return "", fmt.Errorf("read secret: %w", err)
			}
			if s := strings.TrimSpace(string(b)); s != "" {
				return s, nil
			}
			p.printf("  A value is required.\n")
		}
	}
	return p.AskRequired(question)
}

// AskInt64 asks for a positive integer, re-asking on invalid input.
func (p *Prompter) AskInt64(question string, defaultVal int64) int64 {
	for {
		p.printf("%s [%d]: ", question, defaultVal)
		line, ok := p.readLine()
		if line == "" {
			return defaultVal
		}
		if n, err := strconv.ParseInt(line, 10, 64); err == nil && n > 0 {
			return n
		}
		if !ok {
			return defaultVal
		}
		p.printf("  Please enter a positive number.\n")
	}
}

// Choose presents a numbered list and returns the selected option.
func (p *Prompter) Choose(question string, options []string, defaultIdx int) string {
	p.printf("%s\n", question)
	for i, opt := range options {
		marker := "  "
		if i == defaultIdx {
			marker = "> "
		}
		p.printf("%s%d) %s\n", marker, i+1, opt)
	}

	for {
		p.printf("Choice [%d]: ", defaultIdx+1)
		line, ok := p.readLine()
		if line == "" {
			return options[defaultIdx]
		}
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(options) {
			return options[n-1]
		}
		if !ok {
			return options[defaultIdx]
		}
		p.printf("  Please enter a number between 1 and %d.\n", len(options))
	}
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(question string, defaultYes bool) bool {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}
	ans := p.Ask(fmt.Sprintf("%s [%s]", question, hint), "")
	if ans == "" {
		return defaultYes
	}
	return strings.HasPrefix(strings.ToLower(ans), "y")
}
