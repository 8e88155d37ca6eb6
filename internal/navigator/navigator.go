// Package navigator keeps the diff of the current change on screen while
// the user steps through a list of changes.
//
// A Navigator tracks the current change, steps through either the selected
// changes or the full list, serves diffs from a two-tier cache, and builds
// missing ones in the background through a Loader. Every position change
// starts a new generation on its Guard; a build result is applied only if
// its generation is still current when it is delivered.
//
// All Navigator methods must be called from the goroutine that owns it,
// normally the Bubble Tea update loop. Background work runs inside the
// tea.Cmd values the methods return and reports back as LoadedMsg, which
// the owner passes to Deliver.
package navigator

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/smileynet/stepdiff/internal/change"
	"github.com/smileynet/stepdiff/internal/diff"
	"github.com/smileynet/stepdiff/internal/requestcache"
)

// ScrollHint tells the sink where to position a newly applied artifact.
type ScrollHint int

const (
	ScrollNone        ScrollHint = iota // Keep the sink's default position.
	ScrollFirstChange                   // Land on the first hunk.
	ScrollLastChange                    // Land on the last hunk.
)

// String returns a short name for h.
func (h ScrollHint) String() string {
	switch h {
	case ScrollFirstChange:
		return "first-change"
	case ScrollLastChange:
		return "last-change"
	default:
		return "none"
	}
}

// Selection reports the changes the user has selected, in list order.
type Selection interface {
	SelectedChanges() []change.Change
}

// Changes reports every change in list order.
type Changes interface {
	AllChanges() []change.Change
}

// Selector moves the user's selection to a change.
type Selector interface {
	SelectChange(c change.Change)
}

// Source is everything the Navigator reads from and drives in the list.
type Source interface {
	Selection
	Changes
	Selector
}

// Sink displays artifacts. ApplyArtifact is called once per update cycle
// and again when a background build for that cycle completes.
type Sink interface {
	ApplyArtifact(a diff.Artifact, hint ScrollHint)
}

// cachedEntry remembers which revisions an artifact was built from.
type cachedEntry struct {
	change   change.Change
	artifact diff.Artifact
}

// Navigator is the navigation controller. The zero value is not usable;
// create one with New.
type Navigator struct {
	src    Source
	sink   Sink
	loader *Loader
	cache  *requestcache.Cache[change.Key, cachedEntry]
	guard  Guard
	ctx    context.Context
	logger *zap.Logger

	strongSize int
	weakSize   int

	current  change.Change
	active   bool
	disposed bool
}

// Option configures a Navigator.
type Option func(*Navigator)

// WithCache sets the capacity of the strong and weak cache tiers.
// A weak size of zero disables the weak tier.
func WithCache(strong, weak int) Option {
	return func(n *Navigator) {
		n.strongSize = strong
		n.weakSize = weak
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Navigator) { n.logger = logger }
}

// WithContext sets the parent context of every background build.
// Canceling it cancels whatever build is in flight.
func WithContext(ctx context.Context) Option {
	return func(n *Navigator) { n.ctx = ctx }
}

// New creates an idle Navigator. Nothing is shown until the first call
// to Refresh.
func New(src Source, sink Sink, loader *Loader, opts ...Option) *Navigator {
	n := &Navigator{
		src:        src,
		sink:       sink,
		loader:     loader,
		ctx:        context.Background(),
		logger:     zap.NewNop(),
		strongSize: requestcache.DefaultSize,
		weakSize:   requestcache.DefaultSize,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	if n.ctx == nil {
		n.ctx = context.Background()
	}
	if n.weakSize > 0 {
		n.cache = requestcache.New[change.Key, cachedEntry](n.strongSize, n.weakSize)
	} else {
		n.cache = requestcache.NewStrongOnly[change.Key, cachedEntry](n.strongSize)
	}
	return n
}

// Current returns the current change. ok is false while idle.
func (n *Navigator) Current() (c change.Change, ok bool) {
	return n.current, n.active
}

// Refresh reconciles the current change with the selection. If the
// selection is empty the navigator goes idle. If the current change is
// not selected it moves to the first selected change. Otherwise nothing
// happens.
func (n *Navigator) Refresh() tea.Cmd {
	if n.disposed {
		return nil
	}
	selected := n.src.SelectedChanges()
	if len(selected) == 0 {
		n.setIdle()
		return n.update(ScrollNone)
	}
	if n.active && change.Contains(selected, n.current) {
		return nil
	}
	n.setCurrent(selected[0])
	return n.update(ScrollNone)
}

// Clear makes the navigator idle and shows the empty placeholder.
func (n *Navigator) Clear() tea.Cmd {
	if n.disposed {
		return nil
	}
	n.setIdle()
	return n.update(ScrollNone)
}

// Invalidate drops every cached artifact, adopts the selection's copy of
// the current change, and rebuilds its artifact. Use it after the change
// list has been reloaded.
func (n *Navigator) Invalidate() tea.Cmd {
	if n.disposed {
		return nil
	}
	n.cache.Clear()
	selected := n.src.SelectedChanges()
	if n.active {
		if i := change.Index(selected, n.current); i >= 0 {
			n.current = selected[i]
			return n.update(ScrollNone)
		}
	}
	n.active = false
	return n.Refresh()
}

// Next moves to the following change in the active domain.
// Callers must check HasNext first.
func (n *Navigator) Next() tea.Cmd {
	return n.step(1, ScrollNone)
}

// Previous moves to the preceding change in the active domain.
// Callers must check HasPrevious first.
func (n *Navigator) Previous() tea.Cmd {
	return n.step(-1, ScrollNone)
}

// NextDifference is Next for callers stepping past the last hunk of the
// current diff: the sink is asked to land on the first hunk of the next one.
func (n *Navigator) NextDifference() tea.Cmd {
	return n.step(1, ScrollFirstChange)
}

// PreviousDifference is Previous for callers stepping before the first
// hunk: the sink is asked to land on the last hunk of the previous diff.
func (n *Navigator) PreviousDifference() tea.Cmd {
	return n.step(-1, ScrollLastChange)
}

// HasNext reports whether Next is allowed.
func (n *Navigator) HasNext() bool {
	items, idx, ok := n.position()
	return ok && idx < len(items)-1
}

// HasPrevious reports whether Previous is allowed.
func (n *Navigator) HasPrevious() bool {
	_, idx, ok := n.position()
	return ok && idx > 0
}

// NavigationEnabled reports whether stepping can ever do anything with the
// current lists, regardless of position.
func (n *Navigator) NavigationEnabled() bool {
	if n.disposed {
		return false
	}
	return len(n.src.SelectedChanges()) > 1 || len(n.src.AllChanges()) > 1
}

// Deliver applies the result of a background build. It returns false when
// the result was discarded because a newer update cycle has started or the
// navigator was disposed.
func (n *Navigator) Deliver(msg LoadedMsg) bool {
	if n.disposed || !n.guard.Current(msg.Token) {
		n.logger.Debug("discarding stale build result",
			zap.Uint64("token", uint64(msg.Token)),
			zap.Stringer("change", msg.Change))
		return false
	}

	a := msg.Artifact
	switch {
	case msg.Canceled:
		if e, ok := n.lookup(msg.Change); ok {
			a = e.artifact
		}
	case msg.Cacheable:
		n.cache.Set(msg.Change.Key(), cachedEntry{change: msg.Change, artifact: a})
	}
	n.sink.ApplyArtifact(a, msg.Hint)
	return true
}

// Dispose cancels the build in flight, drops the cache and goes idle for
// good. Later calls are no-ops and later deliveries are discarded.
func (n *Navigator) Dispose() {
	if n.disposed {
		return
	}
	n.guard.Stop()
	n.cache.Clear()
	n.setIdle()
	n.disposed = true
}

// Disposed reports whether Dispose has been called.
func (n *Navigator) Disposed() bool {
	return n.disposed
}

func (n *Navigator) setIdle() {
	n.current = change.Change{}
	n.active = false
}

func (n *Navigator) setCurrent(c change.Change) {
	n.current = c
	n.active = true
}

// domain returns the list stepping operates on: the selection when more
// than one change is selected, otherwise every change. all reports the
// latter, in which case stepping also moves the selection.
func (n *Navigator) domain(selected []change.Change) (items []change.Change, all bool) {
	if len(selected) > 1 {
		return selected, false
	}
	return n.src.AllChanges(), true
}

// position locates the current change in its domain. ok is false while
// idle, with nothing selected, or when the current change has gone missing.
func (n *Navigator) position() (items []change.Change, idx int, ok bool) {
	if n.disposed || !n.active {
		return nil, -1, false
	}
	selected := n.src.SelectedChanges()
	if len(selected) == 0 {
		return nil, -1, false
	}
	items, all := n.domain(selected)
	idx = change.Index(items, n.current)
	if idx < 0 {
		n.logger.Warn("current change missing from navigation domain",
			zap.Stringer("change", n.current),
			zap.Bool("full_list", all),
			zap.Int("domain_size", len(items)))
		return nil, -1, false
	}
	return items, idx, true
}

// step moves delta positions within the domain and starts an update cycle.
func (n *Navigator) step(delta int, hint ScrollHint) tea.Cmd {
	if n.disposed {
		return nil
	}
	if !n.active {
		n.logger.Error("navigation requested while idle", zap.Int("delta", delta))
		return nil
	}
	items, all := n.domain(n.src.SelectedChanges())
	idx := change.Index(items, n.current)
	if idx < 0 {
		n.logger.Warn("current change missing from navigation domain, refreshing",
			zap.Stringer("change", n.current),
			zap.Bool("full_list", all))
		n.active = false
		return n.Refresh()
	}
	to := idx + delta
	if to < 0 || to >= len(items) {
		n.logger.Error("navigation past the end of the domain",
			zap.Stringer("change", n.current),
			zap.Int("index", idx),
			zap.Int("delta", delta),
			zap.Int("domain_size", len(items)))
		return nil
	}

	n.setCurrent(items[to])
	if all {
		n.src.SelectChange(n.current)
	}
	return n.update(hint)
}

// update runs one update cycle: start a generation, then show the cached
// artifact or a loading placeholder followed by a background build.
func (n *Navigator) update(hint ScrollHint) tea.Cmd {
	token, ctx := n.guard.Begin(n.ctx)

	if !n.active {
		n.sink.ApplyArtifact(diff.Empty(), ScrollNone)
		return nil
	}
	if e, ok := n.lookup(n.current); ok {
		n.sink.ApplyArtifact(e.artifact, hint)
		return nil
	}

	n.sink.ApplyArtifact(diff.Loading(), ScrollNone)
	return n.loader.Submit(ctx, token, n.current, hint)
}

// lookup returns the cached entry for c if it was built from the same
// revisions.
func (n *Navigator) lookup(c change.Change) (cachedEntry, bool) {
	e, ok := n.cache.Get(c.Key())
	if !ok || !e.change.SameContent(c) {
		return cachedEntry{}, false
	}
	return e, true
}
