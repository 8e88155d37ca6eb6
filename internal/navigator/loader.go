package navigator

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/smileynet/stepdiff/internal/change"
	"github.com/smileynet/stepdiff/internal/diff"
)

const (
	defaultWorkers = 2
	defaultTimeout = 30 * time.Second
)

// Builder computes the artifact for one change. *diff.Builder satisfies it.
type Builder interface {
	Build(ctx context.Context, c change.Change) (diff.Artifact, error)
}

// LoadedMsg carries the outcome of a background build back to the update loop.
type LoadedMsg struct {
	Token     Token
	Change    change.Change
	Artifact  diff.Artifact
	Hint      ScrollHint
	Cacheable bool // The build succeeded and the artifact may be cached.
	Canceled  bool
}

// Loader runs builds off the update loop with bounded concurrency.
type Loader struct {
	builder Builder
	sem     *semaphore.Weighted
	workers int
	timeout time.Duration
	logger  *zap.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithWorkers bounds the number of builds running at once.
func WithWorkers(n int) LoaderOption {
	return func(l *Loader) { l.workers = n }
}

// WithTimeout limits a single build. Zero disables the limit.
func WithTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) { l.timeout = d }
}

// WithLoaderLogger sets the logger for build outcomes.
func WithLoaderLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// NewLoader creates a Loader that runs builder.
func NewLoader(builder Builder, opts ...LoaderOption) *Loader {
	l := &Loader{
		builder: builder,
		workers: defaultWorkers,
		timeout: defaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.workers <= 0 {
		l.workers = defaultWorkers
	}
	if l.logger == nil {
		l.logger = zap.NewNop()
	}
	l.sem = semaphore.NewWeighted(int64(l.workers))
	return l
}

// Submit returns a command that builds c under ctx and reports the outcome
// as a LoadedMsg stamped with token. The command never fails; every error
// becomes a placeholder artifact.
func (l *Loader) Submit(ctx context.Context, token Token, c change.Change, hint ScrollHint) tea.Cmd {
	return func() tea.Msg {
		msg := LoadedMsg{Token: token, Change: c, Hint: hint}
		msg.Artifact, msg.Cacheable, msg.Canceled = l.run(ctx, c)
		return msg
	}
}

// run performs one build and maps its outcome to an artifact.
func (l *Loader) run(ctx context.Context, c change.Change) (a diff.Artifact, cacheable, canceled bool) {
	start := time.Now()
	log := l.logger.With(zap.String("change", c.String()))

	if err := l.sem.Acquire(ctx, 1); err != nil {
		log.Debug("build canceled while queued")
		return diff.Canceled(), false, true
	}
	defer l.sem.Release(1)

	buildCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		buildCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	a, err := l.build(buildCtx, c)
	elapsed := time.Since(start)

	switch {
	case err == nil:
		log.Debug("build finished", zap.Duration("elapsed", elapsed), zap.Int("hunks", len(a.Hunks)))
		return a, true, false
	case ctx.Err() != nil || errors.Is(err, context.Canceled):
		log.Debug("build canceled", zap.Duration("elapsed", elapsed))
		return diff.Canceled(), false, true
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn("build timed out", zap.Duration("timeout", l.timeout))
		return diff.Error(fmt.Sprintf("Timed out after %s", l.timeout)), false, false
	case errors.Is(err, diff.ErrCanceled):
		log.Debug("build canceled", zap.Duration("elapsed", elapsed))
		return diff.Canceled(), false, true
	}

	var be *diff.BuildError
	if errors.As(err, &be) {
		log.Info("build failed", zap.String("reason", be.Message), zap.Error(be.Err))
		return diff.Error(be.Message), false, false
	}
	log.Error("build failed", zap.Error(err))
	return diff.Error(err.Error()), false, false
}

// build calls the builder, turning a panic into an error.
func (l *Loader) build(ctx context.Context, c change.Change) (a diff.Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("builder panicked", zap.String("change", c.String()), zap.Any("panic", r), zap.Stack("stack"))
			err = &diff.BuildError{Path: c.Path(), Message: fmt.Sprintf("Can't show diff: %v", r)}
		}
	}()
	return l.builder.Build(ctx, c)
}
