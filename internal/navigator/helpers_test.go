package navigator

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/stepdiff/internal/change"
	"github.com/smileynet/stepdiff/internal/diff"
)

// mkChange returns a modified-file change for path at base ref "v1".
func mkChange(path string) change.Change {
	return change.Change{
		Status: change.StatusModified,
		Before: change.Revision{Ref: "v1", Path: path},
		After:  change.Revision{Path: path},
	}
}

// fakeSource is an in-memory list with a selection. SelectChange makes the
// given change the only selected one, like a single-select list would.
type fakeSource struct {
	all      []change.Change
	selected []change.Change
	selects  []change.Change
}

func (s *fakeSource) SelectedChanges() []change.Change { return s.selected }
func (s *fakeSource) AllChanges() []change.Change      { return s.all }

func (s *fakeSource) SelectChange(c change.Change) {
	s.selects = append(s.selects, c)
	s.selected = []change.Change{c}
}

type applied struct {
	artifact diff.Artifact
	hint     ScrollHint
}

// fakeSink records every applied artifact.
type fakeSink struct {
	applied []applied
}

func (s *fakeSink) ApplyArtifact(a diff.Artifact, hint ScrollHint) {
	s.applied = append(s.applied, applied{a, hint})
}

func (s *fakeSink) last(t *testing.T) applied {
	t.Helper()
	if len(s.applied) == 0 {
		t.Fatal("sink received no artifacts")
	}
	return s.applied[len(s.applied)-1]
}

// fakeBuilder builds a diff whose body names the change, or defers to fn.
type fakeBuilder struct {
	mu    sync.Mutex
	calls []change.Change
	fn    func(ctx context.Context, c change.Change) (diff.Artifact, error)
}

func (b *fakeBuilder) Build(ctx context.Context, c change.Change) (diff.Artifact, error) {
	b.mu.Lock()
	b.calls = append(b.calls, c)
	fn := b.fn
	b.mu.Unlock()
	if fn != nil {
		return fn(ctx, c)
	}
	return builtArtifact(c), nil
}

func (b *fakeBuilder) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func builtArtifact(c change.Change) diff.Artifact {
	return diff.Artifact{Kind: diff.KindDiff, Title: c.String(), Body: "@@ -1 +1 @@\n-" + c.Path() + "\n", Hunks: []int{0}}
}

// runLoad executes a load command and returns its message.
func runLoad(t *testing.T, cmd tea.Cmd) LoadedMsg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a load command, got nil")
	}
	raw := cmd()
	msg, ok := raw.(LoadedMsg)
	if !ok {
		t.Fatalf("command produced %T, want LoadedMsg", raw)
	}
	return msg
}

// newTestNavigator wires a navigator to fakes over all, selecting selected.
func newTestNavigator(all, selected []change.Change, opts ...Option) (*Navigator, *fakeSource, *fakeSink, *fakeBuilder) {
	src := &fakeSource{all: all, selected: selected}
	sink := &fakeSink{}
	b := &fakeBuilder{}
	n := New(src, sink, NewLoader(b), opts...)
	return n, src, sink, b
}

func assertCurrent(t *testing.T, n *Navigator, want change.Change) {
	t.Helper()
	got, ok := n.Current()
	if !ok {
		t.Fatalf("navigator is idle, want current %v", want)
	}
	if !got.Equal(want) {
		t.Fatalf("current = %v, want %v", got, want)
	}
}
