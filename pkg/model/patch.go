package model

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// patchContext is the number of unchanged lines kept around each change.
const patchContext = 3

type lineOp struct {
	kind diffmatchpatch.Operation
	text string
}

// UnifiedDiff renders a unified diff between before and after for name.
// Equal inputs produce an empty string.
func UnifiedDiff(name, before, after string) string {
	if before == after {
		return ""
	}

	ops := lineOps(before, after)

	// oldBefore[i] and newBefore[i] count the lines preceding ops[i].
	oldBefore := make([]int, len(ops)+1)
	newBefore := make([]int, len(ops)+1)

	for i, op := range ops {
		oldBefore[i+1] = oldBefore[i]
		newBefore[i+1] = newBefore[i]

		if op.kind != diffmatchpatch.DiffInsert {
			oldBefore[i+1]++
		}

		if op.kind != diffmatchpatch.DiffDelete {
			newBefore[i+1]++
		}
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", name, name)

	for _, h := range hunks(ops) {
		oldLen := oldBefore[h[1]] - oldBefore[h[0]]
		newLen := newBefore[h[1]] - newBefore[h[0]]

		fmt.Fprintf(&sb, "@@ -%s +%s @@\n",
			hunkRange(oldBefore[h[0]], oldLen), hunkRange(newBefore[h[0]], newLen))

		for _, op := range ops[h[0]:h[1]] {
			writeLine(&sb, op)
		}
	}

	return sb.String()
}

func lineOps(before, after string) []lineOp {
	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToRunes(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMainRunes(src, dst, false), lines)

	var ops []lineOp

	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}

			ops = append(ops, lineOp{kind: d.Type, text: line})
		}
	}

	return ops
}

// hunks groups changes into [start, end) ranges of ops with context. Changes
// separated by at most twice the context share a hunk.
func hunks(ops []lineOp) [][2]int {
	var out [][2]int

	i := 0
	for i < len(ops) {
		for i < len(ops) && ops[i].kind == diffmatchpatch.DiffEqual {
			i++
		}

		if i == len(ops) {
			break
		}

		start := max(i-patchContext, 0)
		if len(out) > 0 {
			start = max(start, out[len(out)-1][1])
		}

		end := i
		for end < len(ops) {
			if ops[end].kind != diffmatchpatch.DiffEqual {
				end++

				continue
			}

			run := end
			for run < len(ops) && ops[run].kind == diffmatchpatch.DiffEqual {
				run++
			}

			if run == len(ops) || run-end > 2*patchContext {
				break
			}

			end = run
		}

		stop := min(end+patchContext, len(ops))
		out = append(out, [2]int{start, stop})
		i = stop
	}

	return out
}

func hunkRange(linesBefore, length int) string {
	start := linesBefore + 1
	if length == 0 {
		start = linesBefore
	}

	if length == 1 {
		return fmt.Sprint(start)
	}

	return fmt.Sprintf("%d,%d", start, length)
}

func writeLine(sb *strings.Builder, op lineOp) {
	prefix := " "

	switch op.kind {
	case diffmatchpatch.DiffDelete:
		prefix = "-"
	case diffmatchpatch.DiffInsert:
		prefix = "+"
	case diffmatchpatch.DiffEqual:
	}

	sb.WriteString(prefix)
	sb.WriteString(op.text)

	if !strings.HasSuffix(op.text, "\n") {
		sb.WriteString("\n\\ No newline at end of file\n")
	}
}
