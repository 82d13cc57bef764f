package wiki

import (
	"strings"
)

// DiffLineType classifies a single diff output line.
type DiffLineType string

const (
	DiffUnchanged DiffLineType = "unchanged"
	DiffAdded     DiffLineType = "added"
	DiffRemoved   DiffLineType = "removed"
)

// DiffLine is one line of diff output. OldLine/NewLine are 1-based and zero
// when the line has no position on that side.
type DiffLine struct {
	Type    DiffLineType `json:"type"`
	OldLine int          `json:"old_line,omitempty"`
	NewLine int          `json:"new_line,omitempty"`
	Content string       `json:"content"`
}

// DiffStats aggregates line counts for a diff.
type DiffStats struct {
	LinesAdded     int `json:"lines_added"`
	LinesRemoved   int `json:"lines_removed"`
	LinesUnchanged int `json:"lines_unchanged"`
	TotalChanged   int `json:"total_changed"`
}

// DiffResult is the full output of comparing two version snapshots.
type DiffResult struct {
	FromVersionID int64      `json:"from_version_id"`
	ToVersionID   int64      `json:"to_version_id"`
	Lines         []DiffLine `json:"lines"`
	Stats         DiffStats  `json:"stats"`
}

// Diff compares two version snapshots line by line.
//
// The algorithm walks both line arrays with two cursors: equal lines at the
// same position are unchanged; once one side is exhausted the remainder of
// the other is pure added/removed; a mismatch with both sides remaining
// emits one removed and one added line and advances both cursors. This is a
// positional heuristic, not a minimal-edit diff: an insertion near the top
// shifts alignment and over-reports changes below it. That behavior is kept
// deliberately so reported added/removed counts stay stable for existing
// consumers.
func Diff(from, to *PageVersion) *DiffResult {
	result := &DiffResult{
		FromVersionID: from.ID,
		ToVersionID:   to.ID,
	}

	oldLines := splitLines(from.Markdown)
	newLines := splitLines(to.Markdown)

	i, j := 0, 0
	for i < len(oldLines) || j < len(newLines) {
		switch {
		case i < len(oldLines) && j < len(newLines) && oldLines[i] == newLines[j]:
			result.Lines = append(result.Lines, DiffLine{
				Type:    DiffUnchanged,
				OldLine: i + 1,
				NewLine: j + 1,
				Content: oldLines[i],
			})
			result.Stats.LinesUnchanged++
			i++
			j++
		case i >= len(oldLines):
			result.Lines = append(result.Lines, DiffLine{
				Type:    DiffAdded,
				NewLine: j + 1,
				Content: newLines[j],
			})
			result.Stats.LinesAdded++
			j++
		case j >= len(newLines):
			result.Lines = append(result.Lines, DiffLine{
				Type:    DiffRemoved,
				OldLine: i + 1,
				Content: oldLines[i],
			})
			result.Stats.LinesRemoved++
			i++
		default:
			result.Lines = append(result.Lines, DiffLine{
				Type:    DiffRemoved,
				OldLine: i + 1,
				Content: oldLines[i],
			})
			result.Lines = append(result.Lines, DiffLine{
				Type:    DiffAdded,
				NewLine: j + 1,
				Content: newLines[j],
			})
			result.Stats.LinesRemoved++
			result.Stats.LinesAdded++
			i++
			j++
		}
	}

	result.Stats.TotalChanged = result.Stats.LinesAdded + result.Stats.LinesRemoved
	return result
}

// splitLines splits text into lines without a trailing phantom line for a
// final newline. Empty text has zero lines.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
