package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmorgan81/fluxgen/internal/log"
	"github.com/samber/do"
)

const Label = " > Prompt: "

var ErrNoPrompt = errors.New("no prompt entered")

// Reader asks for a single prompt on an interactive console.
type Reader struct {
	in  *bufio.Reader
	out io.Writer
}

func NewReader(in io.Reader, out io.Writer) *Reader {
	return &Reader{in: bufio.NewReader(in), out: out}
}

func NewConsoleReader(i *do.Injector) (*Reader, error) {
	return NewReader(
		do.MustInvokeNamed[io.Reader](i, "stdin"),
		do.MustInvokeNamed[io.Writer](i, "stdout"),
	), nil
}

// Read prints the label and returns the next line without its terminator.
// Surrounding spaces are kept.
func (r *Reader) Read(ctx context.Context) (string, error) {
	if _, err := fmt.Fprint(r.out, Label); err != nil {
		return "", err
	}

	line, err := r.in.ReadString('\n')
	switch {
	case errors.Is(err, io.EOF) && line == "":
		return "", ErrNoPrompt
	case err != nil && !errors.Is(err, io.EOF):
		return "", err
	}
	line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

	log.FromContextOrDiscard(ctx).WithGroup("prompt").Debug("read prompt", "prompt", line)
	return line, nil
}
