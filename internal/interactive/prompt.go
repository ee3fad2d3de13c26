// Package interactive provides interactive prompts for user confirmation.
package interactive

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Prompter asks yes/no questions on an input/output pair.
type Prompter struct {
	out     io.Writer
	scanner *bufio.Scanner
}

// NewPrompterWithIO creates a prompter reading answers from in and asking on out.
func NewPrompterWithIO(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		out:     out,
		scanner: bufio.NewScanner(in),
	}
}

// IsTerminal checks if stdin is a terminal (TTY).
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// Confirm displays question and reports whether the answer was yes.
// Anything other than y/yes, including end of input, is a no.
func (p *Prompter) Confirm(format string, args ...any) bool {
	_, _ = fmt.Fprintf(p.out, format, args...)
	_, _ = fmt.Fprint(p.out, " [y/n] ")

	if !p.scanner.Scan() {
		_, _ = fmt.Fprintln(p.out)
		return false
	}

	input := strings.ToLower(strings.TrimSpace(p.scanner.Text()))
	return input == "y" || input == "yes"
}
