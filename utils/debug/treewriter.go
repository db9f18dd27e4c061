package debug

import (
	"fmt"
	"strconv"
	"strings"
)

// TreeWriter produces indented text tree, two spaces per level.
type TreeWriter struct {
	w    *strings.Builder
	prev []string
}

func NewTreeWriter() *TreeWriter {
	return &TreeWriter{
		w: &strings.Builder{},
	}
}

func (tw *TreeWriter) String() string {
	return tw.w.String()
}

func (tw *TreeWriter) indent(depth int) {
	for range depth {
		tw.w.WriteString("  ")
	}
}

func (tw *TreeWriter) Line(depth int, format string, args ...any) {
	tw.indent(depth)
	fmt.Fprintf(tw.w, format, args...)
	tw.w.WriteByte('\n')
}

// Value writes quoted value under label, empty values are left as is.
func (tw *TreeWriter) Value(depth int, label, value string) {
	tw.indent(depth)
	tw.w.WriteString(label)
	tw.w.WriteString(": ")
	tw.w.WriteString(encodeText(value))
	tw.w.WriteByte('\n')
}

// Path writes leaf value addressed by keys. Group lines are written only for
// keys which differ from the previous call, so sorted paths produce a tree.
func (tw *TreeWriter) Path(keys []string, value string) {
	if len(keys) == 0 {
		return
	}
	common := 0
	for common < len(keys)-1 && common < len(tw.prev) && tw.prev[common] == keys[common] {
		common++
	}
	for depth := common; depth < len(keys)-1; depth++ {
		tw.Line(depth, "%s", keys[depth])
	}
	tw.Value(len(keys)-1, keys[len(keys)-1], value)
	tw.prev = append(tw.prev[:0], keys[:len(keys)-1]...)
}

func encodeText(raw string) string {
	if raw == "" {
		return raw
	}
	return strconv.Quote(raw)
}
