// Package viewer implements the two-pane stepdiff TUI: a change list on the
// left and the diff of the current change on the right. The list and the
// diff pane are the navigator's Source and Sink.
package viewer

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/stepdiff/internal/change"
)

// Focus represents which pane has keyboard focus.
type Focus int

const (
	PaneLeft  Focus = iota // Change list has focus.
	PaneRight              // Diff viewport has focus.
)

// --- Consumer-side interfaces ---

// ChangeLister fetches the list of changes to browse.
type ChangeLister interface {
	Changes() ([]change.Change, error)
}

// --- tea.Msg types ---

// ChangeListMsg carries the result of a ChangeLister.Changes() call.
type ChangeListMsg struct {
	Changes []change.Change
	Err     error
}

// loadChanges returns a tea.Cmd that calls lister.Changes() asynchronously
// and wraps the result in a ChangeListMsg.
func loadChanges(lister ChangeLister) tea.Cmd {
	return func() tea.Msg {
		changes, err := lister.Changes()
		return ChangeListMsg{Changes: changes, Err: err}
	}
}
