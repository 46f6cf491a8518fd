// Package console is the line-based prompt and output collaborator used by
// the query layer. Nothing here touches process-global streams; callers
// inject the reader and writer.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// LineSource yields one line of user text per prompt. It returns io.EOF once
// input is exhausted.
type LineSource interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
}

// LineSink emits formatted messages.
type LineSink interface {
	Println(a ...any)
	Printf(format string, a ...any)
}

// Console reads from an input stream and writes to an output stream. Output is
// styled only when the output is a terminal.
type Console struct {
	in     *bufio.Reader
	out    io.Writer
	styles Styles

	// pending carries the result of a read that outlived a cancelled
	// ReadLine; the next ReadLine consumes it instead of starting another.
	pending chan readResult
}

type readResult struct {
	line string
	err  error
}

// Styles holds the renderers used for prompts and emphasised text. The zero
// value renders plain text.
type Styles struct {
	Prompt  lipgloss.Style
	Heading lipgloss.Style
	Warning lipgloss.Style
	enabled bool
}

// New returns a Console over in and out.
func New(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:     bufio.NewReader(in),
		out:    out,
		styles: StylesFor(out),
	}
}

// StylesFor returns lipgloss styles when w is a terminal and plain styles
// otherwise.
func StylesFor(w io.Writer) Styles {
	if !IsTerminal(w) {
		return Styles{}
	}
	r := lipgloss.NewRenderer(w)
	return Styles{
		Prompt:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		Heading: r.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		Warning: r.NewStyle().Foreground(lipgloss.Color("214")),
		enabled: true,
	}
}

// IsTerminal reports whether w is a file attached to a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ReadLine writes prompt on its own line and reads the reply with the line
// terminator removed. A final line without a newline is returned normally;
// io.EOF is returned only when nothing was read. Cancelling ctx unblocks a
// waiting ReadLine with ctx.Err(). Not safe for concurrent use.
func (c *Console) ReadLine(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if prompt != "" {
		fmt.Fprintln(c.out, c.styles.render(c.styles.Prompt, prompt))
	}

	if c.pending == nil {
		ch := make(chan readResult, 1)
		c.pending = ch
		go func() {
			line, err := c.in.ReadString('\n')
			ch <- readResult{line: line, err: err}
		}()
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-c.pending:
		c.pending = nil
		if res.err != nil {
			if errors.Is(res.err, io.EOF) && res.line != "" {
				return strings.TrimRight(res.line, "\r\n"), nil
			}
			return "", res.err
		}
		return strings.TrimRight(res.line, "\r\n"), nil
	}
}

func (c *Console) Println(a ...any) {
	fmt.Fprintln(c.out, a...)
}

func (c *Console) Printf(format string, a ...any) {
	fmt.Fprintf(c.out, format, a...)
}

// Heading renders s in the heading style.
func (c *Console) Heading(s string) string { return c.styles.render(c.styles.Heading, s) }

// Warning renders s in the warning style.
func (c *Console) Warning(s string) string { return c.styles.render(c.styles.Warning, s) }

func (s Styles) render(style lipgloss.Style, text string) string {
	if !s.enabled {
		return text
	}
	return style.Render(text)
}

// Normalize trims input, collapses runs of whitespace and title-cases each
// word, so "  new   zealand " becomes "New Zealand".
func Normalize(input string) string {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return ""
	}
	return cases.Title(language.Und).String(strings.Join(fields, " "))
}
