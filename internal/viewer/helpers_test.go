package viewer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/stepdiff/internal/change"
	"github.com/smileynet/stepdiff/internal/diff"
	"github.com/smileynet/stepdiff/internal/navigator"
)

// stripANSI removes ANSI escape sequences from a string.
func stripANSI(s string) string {
	var out []byte
	i := 0
	for i < len(s) {
		if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < 'A' || s[j] > 'Z') && (s[j] < 'a' || s[j] > 'z') {
				j++
			}
			if j < len(s) {
				j++
			}
			i = j
		} else {
			out = append(out, s[i])
			i++
		}
	}
	return string(out)
}

// containsPlainText checks if s contains sub after stripping ANSI escapes.
func containsPlainText(s, sub string) bool {
	return strings.Contains(stripANSI(s), sub)
}

// execBatch executes a tea.Cmd, handling both single commands and batch
// commands. It returns all resulting messages. Spinner ticks are skipped
// to avoid infinite recursion.
func execBatch(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	var cmds []tea.Cmd
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		cmds = batch
	} else {
		return skipTicks([]tea.Msg{msg})
	}
	var msgs []tea.Msg
	for _, c := range cmds {
		if c != nil {
			msgs = append(msgs, c())
		}
	}
	return skipTicks(msgs)
}

func skipTicks(msgs []tea.Msg) []tea.Msg {
	var out []tea.Msg
	for _, m := range msgs {
		if _, isTick := m.(spinner.TickMsg); isTick || m == nil {
			continue
		}
		out = append(out, m)
	}
	return out
}

// settle sends msg to the model and keeps feeding the messages its commands
// produce back into it until no command remains. Builds run inline, so a
// settled model shows the final artifact.
func settle(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	queue := []tea.Msg{msg}
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 100 {
			t.Fatal("model did not settle")
		}
		next := queue[0]
		queue = queue[1:]
		updated, cmd := m.Update(next)
		m = updated.(Model)
		for _, r := range execBatch(t, cmd) {
			if _, quit := r.(tea.QuitMsg); quit {
				continue
			}
			queue = append(queue, r)
		}
	}
	return m
}

// press settles the model after each key in keys.
func press(t *testing.T, m Model, keys ...tea.KeyMsg) Model {
	t.Helper()
	for _, k := range keys {
		m = settle(t, m, k)
	}
	return m
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

var (
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyUp    = tea.KeyMsg{Type: tea.KeyUp}
	keySpace = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
)

// memRepo serves file content from memory and lists a fixed set of changes.
// Both can be swapped between loads to simulate edits in the working tree.
type memRepo struct {
	mu      sync.Mutex
	changes []change.Change
	content map[change.Revision]string
	err     error
	lists   int
}

func (r *memRepo) Changes() ([]change.Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	if r.err != nil {
		return nil, r.err
	}
	return append([]change.Change(nil), r.changes...), nil
}

func (r *memRepo) Read(_ context.Context, rev change.Revision) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.content[rev]
	if !ok {
		return nil, fmt.Errorf("%w: %s", change.ErrNotFound, rev)
	}
	return []byte(s), nil
}

func (r *memRepo) set(rev change.Revision, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.content[rev] = content
}

// modified returns a working-tree change of path against HEAD.
func modified(path string) change.Change {
	return change.Change{
		Status: change.StatusModified,
		Before: change.Revision{Ref: "HEAD", Path: path},
		After:  change.Revision{Path: path},
	}
}

// newRepo returns a repo in which every path has one modified line.
func newRepo(paths ...string) *memRepo {
	r := &memRepo{content: make(map[change.Revision]string)}
	for _, p := range paths {
		c := modified(p)
		r.changes = append(r.changes, c)
		r.content[c.Before] = "one\ntwo\nthree\n"
		r.content[c.After] = "one\n" + p + "\nthree\n"
	}
	return r
}

// twoHunks returns before/after content whose diff has two hunks.
func twoHunks() (before, after string) {
	var b, a strings.Builder
	for i := 1; i <= 20; i++ {
		line := fmt.Sprintf("line %d\n", i)
		b.WriteString(line)
		switch i {
		case 2, 18:
			a.WriteString(fmt.Sprintf("changed %d\n", i))
		default:
			a.WriteString(line)
		}
	}
	return b.String(), a.String()
}

func newSizedModel(repo *memRepo, w, h int) Model {
	m := NewModel(repo, navigator.NewLoader(diff.NewBuilder(repo)), WithTitle("HEAD..working tree"))
	updated, _ := m.Update(tea.WindowSizeMsg{Width: w, Height: h})
	return updated.(Model)
}

// newLoadedModel returns a sized model that has run Init to completion.
func newLoadedModel(t *testing.T, repo *memRepo) Model {
	t.Helper()
	m := newSizedModel(repo, 100, 30)
	for _, msg := range execBatch(t, m.Init()) {
		m = settle(t, m, msg)
	}
	return m
}

func assertShowing(t *testing.T, m Model, path string) {
	t.Helper()
	c, ok := m.nav.Current()
	if !ok {
		t.Fatalf("no current change, want %s", path)
	}
	if c.Path() != path {
		t.Errorf("current = %s, want %s", c.Path(), path)
	}
	if want := "M " + path; m.pane.artifact.Title != want {
		t.Errorf("pane title = %q, want %q (kind %s)", m.pane.artifact.Title, want, m.pane.artifact.Kind)
	}
}
