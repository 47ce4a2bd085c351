package evaluator

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/cruxlang/crux/internal/typesystem"
)

// Tracer writes a human-readable call trace of one evaluation request.
// Color is enabled only when the writer is a terminal.
type Tracer struct {
	w     io.Writer
	color bool
}

// NewTracer builds a tracer for w.
func NewTracer(w io.Writer) *Tracer {
	t := &Tracer{w: w}
	if f, ok := w.(*os.File); ok {
		t.color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return t
}

// Call records entry into a callee frame at the given depth.
func (t *Tracer) Call(def typesystem.DefID, depth int) {
	indent := strings.Repeat("  ", depth)
	if t.color {
		fmt.Fprintf(t.w, "%s\x1b[36m-> %s\x1b[0m\n", indent, def)
		return
	}
	fmt.Fprintf(t.w, "%s-> %s\n", indent, def)
}

// Note records a free-form event, e.g. a constant resolution.
func (t *Tracer) Note(msg string) {
	if t.color {
		fmt.Fprintf(t.w, "\x1b[2m%s\x1b[0m\n", msg)
		return
	}
	fmt.Fprintln(t.w, msg)
}
