package engine

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ReloadStats summarizes the edits applied by Reload.
type ReloadStats struct {
	LinesInserted int
	LinesRemoved  int
}

// Reload replaces the content with text by applying a line-wise diff as
// one undo step. Lines present in both versions are left untouched, so
// their handles and annotations survive.
func (e *Engine) Reload(text string) (ReloadStats, error) {
	var stats ReloadStats
	if err := e.checkWritable(); err != nil {
		return stats, err
	}

	current := e.doc.Text()
	if current == text {
		return stats, nil
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(current, text)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	err := e.history.Transaction("Reload", func() error {
		return e.write(func() error {
			offset := 0
			for _, d := range diffs {
				switch d.Type {
				case diffmatchpatch.DiffEqual:
					offset += len(d.Text)
				case diffmatchpatch.DiffDelete:
					// Whole lines are removed together with the newline before
					// them so the line that follows keeps its handle.
					at := offset
					if at > 0 && strings.HasSuffix(d.Text, "\n") {
						if prev, _ := e.doc.TextRange(at-1, at); prev == "\n" {
							at--
						}
					}
					if err := e.doc.Remove(at, len(d.Text)); err != nil {
						return err
					}
					stats.LinesRemoved += countLines(d.Text)
				case diffmatchpatch.DiffInsert:
					if err := e.doc.Insert(offset, d.Text); err != nil {
						return err
					}
					offset += len(d.Text)
					stats.LinesInserted += countLines(d.Text)
				}
			}
			return nil
		})
	})
	if err != nil {
		return ReloadStats{}, err
	}

	e.logger.Info("reloaded: +%d -%d lines", stats.LinesInserted, stats.LinesRemoved)
	return stats, nil
}

// countLines counts the lines a diff chunk spans. A trailing fragment
// without a newline counts as one line.
func countLines(s string) int {
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			n++
		}
	}
	if len(s) > 0 && s[len(s)-1] != '\n' {
		n++
	}
	return n
}
