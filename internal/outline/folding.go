package outline

import (
	"cmp"
	"slices"

	"github.com/zjrosen/clarionscope/internal/clarion"
)

// FoldKind distinguishes structural folds from comment blocks.
type FoldKind string

const (
	FoldRegion  FoldKind = "region"
	FoldComment FoldKind = "comment"
)

// FoldingRange is a collapsible line range.
type FoldingRange struct {
	StartLine int      `json:"start_line"`
	EndLine   int      `json:"end_line"`
	Kind      FoldKind `json:"kind"`
}

// FoldingRanges returns one region per multi-line scope and one comment
// fold per run of two or more full-line comments, ordered by start line.
func FoldingRanges(res clarion.Result) []FoldingRange {
	ranges := []FoldingRange{}
	seen := map[[2]int]bool{}

	for _, s := range res.Scopes {
		if s.FinishesAt <= s.Start {
			continue
		}
		key := [2]int{s.Start, s.FinishesAt}
		if seen[key] {
			continue
		}
		seen[key] = true
		ranges = append(ranges, FoldingRange{StartLine: s.Start, EndLine: s.FinishesAt, Kind: FoldRegion})
	}

	ranges = append(ranges, commentRuns(res.Lexemes)...)

	slices.SortStableFunc(ranges, func(a, b FoldingRange) int {
		if c := cmp.Compare(a.StartLine, b.StartLine); c != 0 {
			return c
		}
		return cmp.Compare(b.EndLine, a.EndLine)
	})
	return ranges
}

// commentRuns finds consecutive lines whose only lexeme is a comment.
func commentRuns(lexemes []clarion.Lexeme) []FoldingRange {
	var runs []FoldingRange

	onlyComment := map[int]bool{}
	for i, lx := range lexemes {
		first := i == 0 || lexemes[i-1].Line != lx.Line
		switch {
		case first && lx.Kind == clarion.KindComment:
			onlyComment[lx.Line] = true
		default:
			delete(onlyComment, lx.Line)
		}
	}

	lines := make([]int, 0, len(onlyComment))
	for line := range onlyComment {
		lines = append(lines, line)
	}
	slices.Sort(lines)

	for i := 0; i < len(lines); {
		j := i
		for j+1 < len(lines) && lines[j+1] == lines[j]+1 {
			j++
		}
		if j > i {
			runs = append(runs, FoldingRange{StartLine: lines[i], EndLine: lines[j], Kind: FoldComment})
		}
		i = j + 1
	}
	return runs
}
