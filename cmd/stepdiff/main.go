package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"

	"github.com/smileynet/stepdiff"
	"github.com/smileynet/stepdiff/internal/change"
	"github.com/smileynet/stepdiff/internal/config"
	"github.com/smileynet/stepdiff/internal/diff"
	"github.com/smileynet/stepdiff/internal/logging"
	"github.com/smileynet/stepdiff/internal/navigator"
	"github.com/smileynet/stepdiff/internal/viewer"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// CLI is the top-level command structure for stepdiff.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Show version." short:"V"`
	View    ViewCmd          `cmd:"" default:"withargs" help:"Step through diffs interactively."`
	List    ListCmd          `cmd:"" help:"List changed files."`
	Show    ShowCmd          `cmd:"" help:"Print every diff."`
	Init    InitCmd          `cmd:"" help:"Write an example config to .stepdiff/config.yaml."`
}

// Globals holds flags shared by every command.
type Globals struct {
	Repo string `help:"Directory inside the git repository." default:"." type:"existingdir"`
}

// revArgs selects the revisions to compare. Empty values fall back to config.
type revArgs struct {
	Base string `arg:"" optional:"" help:"Base revision (default: git.base, HEAD)."`
	Head string `arg:"" optional:"" help:"Head revision (default: the working tree)."`
}

// buildFlags override the loader and diff settings from config.
type buildFlags struct {
	Context int           `help:"Context lines around each hunk." default:"-1"`
	Workers int           `help:"Diffs built at the same time." default:"0"`
	Timeout time.Duration `help:"Per-diff build timeout." default:"-1ns"`
}

func (f buildFlags) apply(cfg *config.Config) {
	if f.Context >= 0 {
		cfg.Diff.Context = f.Context
	}
	if f.Workers > 0 {
		cfg.Loader.Workers = f.Workers
	}
	if f.Timeout >= 0 {
		cfg.Loader.Timeout = f.Timeout
	}
}

// setupError marks failures that happen before any diff work starts.
type setupError struct {
	err error
}

func (e *setupError) Error() string { return e.err.Error() }
func (e *setupError) Unwrap() error { return e.err }

// Exit codes.
const (
	exitSuccess = 0
	exitRuntime = 1
	exitSetup   = 2
)

// exitCode maps an error to the appropriate exit code.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	var se *setupError
	if errors.As(err, &se) {
		return exitSetup
	}
	if errors.Is(err, change.ErrGitNotFound) || errors.Is(err, change.ErrInvalidRef) {
		return exitSetup
	}
	return exitRuntime
}

// loadConfig loads layered config from user and repository paths with env overrides.
func loadConfig(root string) (*config.Config, error) {
	cfg, err := config.LoadLayered(
		os.ExpandEnv("$HOME/.config/stepdiff/config.yaml"),
		filepath.Join(root, ".stepdiff", "config.yaml"),
	)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// session is everything a diff command needs, built from flags and config.
type session struct {
	root    string
	cfg     *config.Config
	source  *change.Source
	logger  *zap.Logger
	cleanup func()
}

// newSession resolves the repository, loads config, applies flag overrides
// and opens the log file.
func newSession(ctx context.Context, g *Globals, revs revArgs, flags buildFlags) (*session, error) {
	root, err := change.Toplevel(ctx, g.Repo)
	if err != nil {
		return nil, &setupError{err}
	}

	cfg, err := loadConfig(root)
	if err != nil {
		return nil, &setupError{err}
	}
	if revs.Base != "" {
		cfg.Git.Base = revs.Base
	}
	if revs.Head != "" {
		cfg.Git.Head = revs.Head
	}
	flags.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, &setupError{err}
	}

	logFile := cfg.Log.File
	if logFile != "" && !filepath.IsAbs(logFile) {
		logFile = filepath.Join(root, logFile)
	}
	logger, cleanup, err := logging.New(logging.Options{
		File:       logFile,
		Level:      cfg.Log.Level,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
	})
	if err != nil {
		return nil, &setupError{err}
	}
	logger.Info("session started",
		zap.String("root", root),
		zap.String("base", cfg.Git.Base),
		zap.String("head", cfg.Git.Head),
		zap.String("version", version))

	return &session{
		root:    root,
		cfg:     cfg,
		source:  change.NewSource(root),
		logger:  logger,
		cleanup: cleanup,
	}, nil
}

// loader builds the background loader over a diff builder reading from the repository.
func (s *session) loader() *navigator.Loader {
	builder := diff.NewBuilder(s.source,
		diff.WithContextLines(s.cfg.Diff.Context),
		diff.WithMaxBytes(s.cfg.Diff.MaxBytes),
	)
	return navigator.NewLoader(builder,
		navigator.WithWorkers(s.cfg.Loader.Workers),
		navigator.WithTimeout(s.cfg.Loader.Timeout),
		navigator.WithLoaderLogger(s.logger.Named("loader")),
	)
}

func (s *session) navigatorOptions(ctx context.Context) []navigator.Option {
	return []navigator.Option{
		navigator.WithCache(s.cfg.Cache.Strong, s.cfg.Cache.Weak),
		navigator.WithLogger(s.logger.Named("navigator")),
		navigator.WithContext(ctx),
	}
}

// list fetches the configured change set.
func (s *session) list(ctx context.Context) ([]change.Change, error) {
	return s.source.List(ctx, s.cfg.Git.Base, s.cfg.Git.Head)
}

// rangeTitle renders the compared range, e.g. "HEAD..working tree".
func rangeTitle(cfg *config.Config) string {
	head := cfg.Git.Head
	if head == "" {
		head = "working tree"
	}
	return cfg.Git.Base + ".." + head
}

// --- View command ---

// ViewCmd opens the interactive diff viewer.
type ViewCmd struct {
	Revs  revArgs    `embed:""`
	Build buildFlags `embed:""`
	NoTUI bool       `help:"Print diffs instead of opening the viewer." default:"false"`
}

// teaRunner abstracts Bubble Tea program execution for testing.
type teaRunner interface {
	Run() (tea.Model, error)
}

// Run builds real dependencies and launches the viewer, or prints every
// diff when stdout is not a terminal.
func (v *ViewCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := newSession(ctx, g, v.Revs, v.Build)
	if err != nil {
		return fmt.Errorf("view: %w", err)
	}
	defer s.cleanup()

	tty := isTerminal(os.Stdout)
	if v.NoTUI || !tty {
		return printDiffs(ctx, os.Stdout, s.list, s.loader(), s.navigatorOptions(ctx), tty)
	}

	m := viewer.NewModel(&sessionLister{ctx: ctx, s: s}, s.loader(),
		viewer.WithTitle(rangeTitle(s.cfg)),
		viewer.WithNavigatorOptions(s.navigatorOptions(ctx)...),
	)
	prog := tea.NewProgram(m, tea.WithAltScreen())
	return v.run(prog)
}

// run executes the tea program, enabling testable wiring.
func (v *ViewCmd) run(prog teaRunner) error {
	if _, err := prog.Run(); err != nil {
		return fmt.Errorf("view: %w", err)
	}
	return nil
}

// sessionLister adapts the session to viewer.ChangeLister.
type sessionLister struct {
	ctx context.Context
	s   *session
}

func (l *sessionLister) Changes() ([]change.Change, error) {
	changes, err := l.s.list(l.ctx)
	if err != nil {
		l.s.logger.Error("listing changes failed", zap.Error(err))
	}
	return changes, err
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// --- List command ---

// ListCmd prints one "STATUS PATH" line per change.
type ListCmd struct {
	Revs revArgs `embed:""`
}

// Run executes the list command.
func (l *ListCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := newSession(ctx, g, l.Revs, buildFlags{Context: -1, Timeout: -1})
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	defer s.cleanup()

	return l.run(ctx, os.Stdout, s.list)
}

// run prints the listed changes, enabling testable wiring.
func (l *ListCmd) run(ctx context.Context, w io.Writer, list listFunc) error {
	changes, err := list(ctx)
	if err != nil {
		return fmt.Errorf("list: %w", err)
	}
	for _, c := range changes {
		_, _ = fmt.Fprintln(w, c.String())
	}
	return nil
}

// --- Show command ---

// ShowCmd prints the diff of every change in order.
type ShowCmd struct {
	Revs  revArgs    `embed:""`
	Build buildFlags `embed:""`
	Color bool       `help:"Colorize output (default: when stdout is a terminal)." negatable:"" default:"true"`
}

// Run executes the show command.
func (c *ShowCmd) Run(g *Globals) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := newSession(ctx, g, c.Revs, c.Build)
	if err != nil {
		return fmt.Errorf("show: %w", err)
	}
	defer s.cleanup()

	color := c.Color && isTerminal(os.Stdout)
	if err := printDiffs(ctx, os.Stdout, s.list, s.loader(), s.navigatorOptions(ctx), color); err != nil {
		return fmt.Errorf("show: %w", err)
	}
	return nil
}

// listFunc fetches the change set to print.
type listFunc func(ctx context.Context) ([]change.Change, error)

// printDiffs drives a navigator over the full change list without a
// terminal UI, running each build inline and printing the artifact it
// delivers.
func printDiffs(ctx context.Context, w io.Writer, list listFunc, loader *navigator.Loader, opts []navigator.Option, color bool) error {
	changes, err := list(ctx)
	if err != nil {
		return err
	}

	src := &fixedList{changes: changes}
	if len(changes) > 0 {
		src.selected = changes[0]
	}
	sink := &lastArtifact{}
	nav := navigator.New(src, sink, loader, opts...)
	defer nav.Dispose()

	cmd := nav.Refresh()
	for {
		if cmd != nil {
			if msg, ok := cmd().(navigator.LoadedMsg); ok {
				nav.Deliver(msg)
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		current, ok := nav.Current()
		if !ok {
			return nil
		}
		printArtifact(w, current, sink.artifact, color)
		if !nav.HasNext() {
			return nil
		}
		cmd = nav.Next()
	}
}

// fixedList is a single-select navigator.Source over a fixed change list.
type fixedList struct {
	changes  []change.Change
	selected change.Change
}

func (l *fixedList) SelectedChanges() []change.Change {
	if len(l.changes) == 0 {
		return nil
	}
	return []change.Change{l.selected}
}

func (l *fixedList) AllChanges() []change.Change  { return l.changes }
func (l *fixedList) SelectChange(c change.Change) { l.selected = c }

// lastArtifact is a navigator.Sink that keeps the most recent artifact.
type lastArtifact struct {
	artifact diff.Artifact
}

func (s *lastArtifact) ApplyArtifact(a diff.Artifact, _ navigator.ScrollHint) {
	s.artifact = a
}

func printArtifact(w io.Writer, c change.Change, a diff.Artifact, color bool) {
	if a.Kind == diff.KindDiff && a.Body != "" {
		if !color {
			_, _ = io.WriteString(w, a.Body)
			return
		}
		for _, line := range a.Lines() {
			_, _ = fmt.Fprintln(w, viewer.ColorizeLine(line))
		}
		return
	}
	_, _ = fmt.Fprintf(w, "%s\n    %s\n", c.String(), a.Message)
}

// --- Init command ---

// InitCmd writes the example configuration into the repository.
type InitCmd struct {
	Force bool `help:"Overwrite an existing config file." default:"false"`
}

// Run executes the init command.
func (i *InitCmd) Run(g *Globals) error {
	root, err := change.Toplevel(context.Background(), g.Repo)
	if err != nil {
		return &setupError{fmt.Errorf("init: %w", err)}
	}
	return i.run(os.Stdout, root)
}

// run writes the example config under root, enabling testable wiring.
func (i *InitCmd) run(w io.Writer, root string) error {
	path := filepath.Join(root, ".stepdiff", "config.yaml")
	if _, err := os.Stat(path); err == nil && !i.Force {
		_, _ = fmt.Fprintf(w, "%s already exists (use --force to overwrite)\n", path)
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	if err := os.WriteFile(path, stepdiff.ExampleConfig, 0o644); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Wrote %s\n", path)
	return nil
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("stepdiff"),
		kong.Description("Step through the diffs between two git revisions."),
		kong.Vars{"version": strings.Join([]string{version, commit, date}, " ")},
	)
	err := ctx.Run(&cli.Globals)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(exitCode(err))
	}
}
