package outline

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffOp marks a line of an outline diff.
type DiffOp string

const (
	DiffEqual  DiffOp = " "
	DiffAdd    DiffOp = "+"
	DiffRemove DiffOp = "-"
)

// DiffLine is one rendered outline entry with its change marker.
type DiffLine struct {
	Op   DiffOp `json:"op"`
	Text string `json:"text"`
}

// Render flattens symbols into indented "category name" lines. Line
// numbers are left out so edits that only shift code produce no changes.
func Render(syms []Symbol) []string {
	var lines []string
	Walk(syms, func(s Symbol, depth int) {
		lines = append(lines, strings.Repeat("  ", depth)+string(s.Category)+" "+s.Name)
	})
	return lines
}

// Diff compares two outlines line by line.
func Diff(before, after []Symbol) []DiffLine {
	oldText := joinLines(Render(before))
	newText := joinLines(Render(after))

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	var out []DiffLine
	for _, d := range diffs {
		op := DiffEqual
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			op = DiffAdd
		case diffmatchpatch.DiffDelete:
			op = DiffRemove
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out = append(out, DiffLine{Op: op, Text: strings.TrimSuffix(line, "\n")})
		}
	}
	return out
}

// Changed reports whether a diff contains any additions or removals.
func Changed(diff []DiffLine) bool {
	for _, d := range diff {
		if d.Op != DiffEqual {
			return true
		}
	}
	return false
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
