package viewer

import (
	"fmt"
	"strings"

	"github.com/smileynet/stepdiff/internal/change"
)

// CursorMarker is the prefix shown on the row under the cursor.
const CursorMarker = "▸ "

// listState manages the change list, cursor, marks, and loading/error
// states for the left pane. It is the navigator's Source, so the model
// holds it by pointer and mutates it in place.
type listState struct {
	changes []change.Change
	cursor  int
	marks   map[change.Key]bool
	loading bool
	err     error
}

// newListState returns a listState in the loading state.
func newListState() *listState {
	return &listState{loading: true, marks: make(map[change.Key]bool)}
}

// apply installs a fetched change list (or error). The cursor stays on the
// same change when it survives the reload, and marks on vanished changes
// are dropped.
func (ls *listState) apply(changes []change.Change, err error) {
	ls.loading = false
	if err != nil {
		ls.err = err
		ls.changes = nil
		ls.cursor = 0
		ls.marks = make(map[change.Key]bool)
		return
	}

	var under change.Change
	hadCursor := ls.cursor < len(ls.changes)
	if hadCursor {
		under = ls.changes[ls.cursor]
	}

	ls.err = nil
	ls.changes = append([]change.Change(nil), changes...)

	marks := make(map[change.Key]bool)
	for _, c := range ls.changes {
		if ls.marks[c.Key()] {
			marks[c.Key()] = true
		}
	}
	ls.marks = marks

	ls.cursor = 0
	if hadCursor {
		if i := change.Index(ls.changes, under); i >= 0 {
			ls.cursor = i
		}
	}
}

// move shifts the cursor by delta, wrapping at both ends.
func (ls *listState) move(delta int) {
	n := len(ls.changes)
	if n == 0 {
		return
	}
	ls.cursor = ((ls.cursor+delta)%n + n) % n
}

// toggleMark marks or unmarks the change under the cursor.
func (ls *listState) toggleMark() {
	if ls.cursor >= len(ls.changes) {
		return
	}
	k := ls.changes[ls.cursor].Key()
	if ls.marks[k] {
		delete(ls.marks, k)
	} else {
		ls.marks[k] = true
	}
}

// clearMarks removes every mark.
func (ls *listState) clearMarks() {
	ls.marks = make(map[change.Key]bool)
}

// SelectedChanges returns the marked changes in list order, or the change
// under the cursor when nothing is marked.
func (ls *listState) SelectedChanges() []change.Change {
	if ls.loading || len(ls.changes) == 0 {
		return nil
	}
	if len(ls.marks) == 0 {
		return []change.Change{ls.changes[ls.cursor]}
	}
	var selected []change.Change
	for _, c := range ls.changes {
		if ls.marks[c.Key()] {
			selected = append(selected, c)
		}
	}
	return selected
}

// AllChanges returns every listed change.
func (ls *listState) AllChanges() []change.Change {
	if ls.loading {
		return nil
	}
	return ls.changes
}

// SelectChange makes c the only selected change.
func (ls *listState) SelectChange(c change.Change) {
	i := change.Index(ls.changes, c)
	if i < 0 {
		return
	}
	ls.clearMarks()
	ls.cursor = i
}

// View renders the list pane. current is the change shown in the diff pane.
func (ls *listState) View(spinnerView string, current change.Change, active bool) string {
	if ls.loading {
		return fmt.Sprintf("%s Loading changes...", spinnerView)
	}

	if ls.err != nil {
		return errorText.Render(fmt.Sprintf("Error: %s", ls.err)) + "\n\nPress r to retry"
	}

	if len(ls.changes) == 0 {
		return mutedText.Render("No changes, press r to reload")
	}

	var b strings.Builder
	for i, c := range ls.changes {
		if i > 0 {
			b.WriteByte('\n')
		}
		if i == ls.cursor {
			b.WriteString(CursorMarker)
		} else {
			b.WriteString("  ")
		}
		if ls.marks[c.Key()] {
			b.WriteString("* ")
		} else {
			b.WriteString("  ")
		}

		line := StatusBadge(c.Status) + " " + displayPath(c)
		if active && c.Equal(current) {
			line = titleText.Render(line)
		}
		b.WriteString(line)
	}
	return b.String()
}

func displayPath(c change.Change) string {
	if (c.Status == change.StatusRenamed || c.Status == change.StatusCopied) && c.Before.Path != c.After.Path {
		return c.Before.Path + " → " + c.After.Path
	}
	return c.Path()
}
