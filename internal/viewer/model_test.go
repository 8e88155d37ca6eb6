package viewer

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"github.com/smileynet/stepdiff/internal/change"
	"github.com/smileynet/stepdiff/internal/diff"
	"github.com/smileynet/stepdiff/internal/navigator"
)

func TestNewModel_DefaultFocus(t *testing.T) {
	m := NewModel(newRepo(), nil)
	if m.focus != PaneLeft {
		t.Errorf("focus = %d, want PaneLeft (%d)", m.focus, PaneLeft)
	}
	if !m.list.loading {
		t.Error("list should start in the loading state")
	}
}

func TestModel_InitialLoadShowsFirstChange(t *testing.T) {
	repo := newRepo("a.txt", "b.txt", "c.txt")

	m := newLoadedModel(t, repo)

	assertShowing(t, m, "a.txt")
	if m.pane.artifact.Kind != diff.KindDiff {
		t.Errorf("artifact kind = %s, want diff", m.pane.artifact.Kind)
	}
	if !strings.Contains(m.pane.artifact.Body, "+a.txt") {
		t.Errorf("body = %q, want the added line", m.pane.artifact.Body)
	}
}

func TestModel_StepThroughChanges(t *testing.T) {
	// Given: three changes and nothing marked
	m := newLoadedModel(t, newRepo("a.txt", "b.txt", "c.txt"))

	// When: stepping forward twice
	m = press(t, m, runeKey(']'), runeKey(']'))

	// Then: the last change is shown and the cursor followed it
	assertShowing(t, m, "c.txt")
	if m.list.cursor != 2 {
		t.Errorf("cursor = %d, want 2", m.list.cursor)
	}

	// When: stepping past the end
	m = press(t, m, runeKey(']'))

	// Then: nothing changes
	assertShowing(t, m, "c.txt")

	// When: stepping back
	m = press(t, m, runeKey('['))
	assertShowing(t, m, "b.txt")
	if m.list.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.list.cursor)
	}
}

func TestModel_CursorMovesSelection(t *testing.T) {
	m := newLoadedModel(t, newRepo("a.txt", "b.txt"))

	m = press(t, m, keyDown)
	assertShowing(t, m, "b.txt")

	m = press(t, m, keyUp)
	assertShowing(t, m, "a.txt")

	// Wraps at the top.
	m = press(t, m, keyUp)
	assertShowing(t, m, "b.txt")
}

func TestModel_MarkedSelectionDomain(t *testing.T) {
	// Given: a and c marked out of four changes
	m := newLoadedModel(t, newRepo("a.txt", "b.txt", "c.txt", "d.txt"))
	m = press(t, m, keySpace, keyDown, keyDown, keySpace)
	assertShowing(t, m, "a.txt")

	// When: stepping forward
	m = press(t, m, runeKey(']'))

	// Then: b is skipped and the marks and cursor are untouched
	assertShowing(t, m, "c.txt")
	if len(m.list.marks) != 2 {
		t.Errorf("marks = %d, want 2", len(m.list.marks))
	}
	if m.list.cursor != 2 {
		t.Errorf("cursor = %d, want 2", m.list.cursor)
	}
	if m.nav.HasNext() {
		t.Error("HasNext() should be false at the last marked change")
	}

	// When: marks are cleared
	m = press(t, m, keyEsc)

	// Then: the selection falls back to the cursor row, which is c
	assertShowing(t, m, "c.txt")
	if len(m.list.marks) != 0 {
		t.Errorf("marks = %d, want 0", len(m.list.marks))
	}
}

func TestModel_HunkKeysCrossChanges(t *testing.T) {
	// Given: a.txt has two hunks and b.txt has one
	repo := newRepo("a.txt", "b.txt")
	before, after := twoHunks()
	repo.set(repo.changes[0].Before, before)
	repo.set(repo.changes[0].After, after)
	m := newLoadedModel(t, repo)

	// When/Then: n walks the hunks of a.txt
	m = press(t, m, runeKey('n'))
	if m.pane.hunk != 0 {
		t.Fatalf("hunk = %d, want 0", m.pane.hunk)
	}
	m = press(t, m, runeKey('n'))
	if m.pane.hunk != 1 {
		t.Fatalf("hunk = %d, want 1", m.pane.hunk)
	}

	// When/Then: n past the last hunk opens b.txt at its first hunk
	m = press(t, m, runeKey('n'))
	assertShowing(t, m, "b.txt")
	if m.pane.hunk != 0 {
		t.Errorf("hunk after crossing forward = %d, want 0", m.pane.hunk)
	}

	// When/Then: N before the first hunk goes back to a.txt at its last hunk
	m = press(t, m, runeKey('N'))
	assertShowing(t, m, "a.txt")
	if m.pane.hunk != 1 {
		t.Errorf("hunk after crossing back = %d, want 1", m.pane.hunk)
	}
}

func TestModel_ClearShowsEmpty(t *testing.T) {
	m := newLoadedModel(t, newRepo("a.txt", "b.txt"))

	m = press(t, m, runeKey('x'))
	if _, ok := m.nav.Current(); ok {
		t.Error("Current() should report nothing after clear")
	}
	if m.pane.artifact.Kind != diff.KindEmpty {
		t.Errorf("artifact kind = %s, want empty", m.pane.artifact.Kind)
	}

	// Moving the cursor shows a diff again.
	m = press(t, m, keyDown)
	assertShowing(t, m, "b.txt")
}

func TestModel_ReloadRebuildsCurrentChange(t *testing.T) {
	// Given: a.txt is shown and cached
	repo := newRepo("a.txt", "b.txt")
	m := newLoadedModel(t, repo)

	// When: the working tree file changes and the list is reloaded
	repo.set(repo.changes[0].After, "one\nedited\nthree\n")
	m = press(t, m, runeKey('r'))

	// Then: the diff is rebuilt rather than served from the cache
	assertShowing(t, m, "a.txt")
	if !strings.Contains(m.pane.artifact.Body, "+edited") {
		t.Errorf("body = %q, want the edited line", m.pane.artifact.Body)
	}
	if repo.lists != 2 {
		t.Errorf("lists = %d, want 2", repo.lists)
	}
}

func TestModel_ReloadDropsRemovedChange(t *testing.T) {
	// Given: b.txt is shown
	repo := newRepo("a.txt", "b.txt", "c.txt")
	m := newLoadedModel(t, repo)
	m = press(t, m, keyDown)
	assertShowing(t, m, "b.txt")

	// When: b.txt disappears from the list
	repo.mu.Lock()
	repo.changes = []change.Change{repo.changes[0], repo.changes[2]}
	repo.mu.Unlock()
	m = press(t, m, runeKey('r'))

	// Then: the viewer moves to what the list now selects
	c, ok := m.nav.Current()
	if !ok {
		t.Fatal("expected a current change after reload")
	}
	if c.Path() == "b.txt" {
		t.Error("removed change is still current")
	}
}

func TestModel_ListError(t *testing.T) {
	repo := newRepo()
	repo.err = errors.New("not a git repository")
	m := newLoadedModel(t, repo)

	view := m.View()
	if !containsPlainText(view, "Error: not a git repository") {
		t.Errorf("view should show the error, got:\n%s", stripANSI(view))
	}
	if !containsPlainText(view, "Press r to retry") {
		t.Error("view should offer a retry")
	}
	if m.pane.artifact.Kind != diff.KindEmpty {
		t.Errorf("artifact kind = %s, want empty", m.pane.artifact.Kind)
	}

	// When: the retry succeeds
	repo.err = nil
	repo.changes = newRepo("a.txt").changes
	repo.content = newRepo("a.txt").content
	m = press(t, m, runeKey('r'))
	assertShowing(t, m, "a.txt")
}

func TestModel_KeysIgnoredWhileLoading(t *testing.T) {
	m := newSizedModel(newRepo("a.txt", "b.txt"), 100, 30)

	updated, cmd := m.Update(runeKey(']'))
	m = updated.(Model)
	if cmd != nil {
		t.Error("step while loading should not return a command")
	}
	if _, ok := m.nav.Current(); ok {
		t.Error("nothing should be current before the list loads")
	}
}

func TestModel_TabTogglesFocus(t *testing.T) {
	m := newLoadedModel(t, newRepo("a.txt", "b.txt"))

	m = press(t, m, keyTab)
	if m.focus != PaneRight {
		t.Fatalf("after first Tab: focus = %d, want PaneRight (%d)", m.focus, PaneRight)
	}

	// With the diff focused, arrows scroll the viewport instead of the list.
	m = press(t, m, keyDown)
	assertShowing(t, m, "a.txt")

	m = press(t, m, keyTab)
	if m.focus != PaneLeft {
		t.Errorf("after second Tab: focus = %d, want PaneLeft (%d)", m.focus, PaneLeft)
	}
}

func TestModel_QuitDisposesNavigator(t *testing.T) {
	for _, k := range []tea.KeyMsg{runeKey('q'), {Type: tea.KeyCtrlC}} {
		t.Run(k.String(), func(t *testing.T) {
			m := newLoadedModel(t, newRepo("a.txt"))

			updated, cmd := m.Update(k)
			m = updated.(Model)
			if cmd == nil {
				t.Fatal("quit key should return a command")
			}
			if _, ok := cmd().(tea.QuitMsg); !ok {
				t.Error("quit key should produce tea.QuitMsg")
			}
			if !m.nav.Disposed() {
				t.Error("navigator should be disposed on quit")
			}
		})
	}
}

func TestModel_View(t *testing.T) {
	m := newLoadedModel(t, newRepo("a.txt", "b.txt"))

	view := stripANSI(m.View())
	for _, want := range []string{"HEAD..working tree", CursorMarker + "  M a.txt", "M b.txt", "+a.txt", "-two", "next file"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestModel_ViewBeforeSize(t *testing.T) {
	m := NewModel(newRepo(), nil)
	if got := m.View(); got != "Initializing..." {
		t.Errorf("View() = %q, want Initializing...", got)
	}
}

func TestModel_Teatest_StepAndQuit(t *testing.T) {
	repo := newRepo("a.txt", "b.txt")
	m := NewModel(repo, navigator.NewLoader(diff.NewBuilder(repo)))

	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(100, 30))

	teatest.WaitFor(t, tm.Output(), func(bts []byte) bool {
		return bytes.Contains(bts, []byte("+a.txt"))
	}, teatest.WithDuration(2*time.Second))

	tm.Send(runeKey(']'))
	tm.Send(runeKey('q'))

	tm.WaitFinished(t, teatest.WithFinalTimeout(2*time.Second))

	final := tm.FinalModel(t).(Model)
	if c, ok := final.nav.Current(); !ok || c.Path() != "b.txt" {
		t.Errorf("current = %v (ok=%v), want b.txt", c, ok)
	}
	if !final.nav.Disposed() {
		t.Error("navigator should be disposed after quit")
	}
}
