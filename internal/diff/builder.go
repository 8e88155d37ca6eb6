package diff

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"

	"github.com/smileynet/stepdiff/internal/change"
)

// ErrCanceled is returned by Build when its context is done before the
// artifact is complete.
var ErrCanceled = errors.New("diff: build canceled")

// BuildError is a user-visible failure to build an artifact.
type BuildError struct {
	Path    string
	Message string
	Err     error
}

func (e *BuildError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("diff: %s: %s: %v", e.Path, e.Message, e.Err)
	}
	return fmt.Sprintf("diff: %s: %s", e.Path, e.Message)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// ContentReader reads the content of one side of a change.
type ContentReader interface {
	Read(ctx context.Context, rev change.Revision) ([]byte, error)
}

const (
	defaultContext  = 3
	defaultMaxBytes = 4 << 20
	// binarySniffLen matches git's heuristic: a NUL in the first 8000 bytes.
	binarySniffLen = 8000
)

// Builder builds unified-diff artifacts from changes.
type Builder struct {
	reader       ContentReader
	contextLines int
	maxBytes     int
}

// Option configures a Builder.
type Option func(*Builder)

// WithContextLines sets the number of context lines around each hunk.
func WithContextLines(lines int) Option {
	return func(b *Builder) { b.contextLines = lines }
}

// WithMaxBytes limits the combined size of both sides. Zero means no limit.
func WithMaxBytes(n int) Option {
	return func(b *Builder) { b.maxBytes = n }
}

// NewBuilder creates a Builder reading content through reader.
func NewBuilder(reader ContentReader, opts ...Option) *Builder {
	b := &Builder{
		reader:       reader,
		contextLines: defaultContext,
		maxBytes:     defaultMaxBytes,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.contextLines < 0 {
		b.contextLines = defaultContext
	}
	return b
}

// Build reads both sides of c and returns their unified diff.
// It returns an error wrapping ErrCanceled when ctx is done, and a
// *BuildError when the change cannot be shown.
func (b *Builder) Build(ctx context.Context, c change.Change) (Artifact, error) {
	if err := canceled(ctx); err != nil {
		return Artifact{}, err
	}

	before, err := b.read(ctx, c, c.Before)
	if err != nil {
		return Artifact{}, err
	}
	after, err := b.read(ctx, c, c.After)
	if err != nil {
		return Artifact{}, err
	}

	if isBinary(before) || isBinary(after) {
		return Artifact{}, &BuildError{Path: c.Path(), Message: "Binary files differ"}
	}

	a := Artifact{Kind: KindDiff, Title: c.String()}

	if b.maxBytes > 0 && len(before)+len(after) > b.maxBytes {
		a.Oversize = true
		a.Message = fmt.Sprintf("Diff omitted: %d bytes exceeds the %d byte limit", len(before)+len(after), b.maxBytes)
		return a, nil
	}

	if bytes.Equal(before, after) {
		a.Message = "Contents are identical"
		return a, nil
	}

	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(string(before)),
		B:        splitLinesKeepNL(string(after)),
		FromFile: fromName(c.Before),
		ToFile:   toName(c.After),
		Context:  b.contextLines,
	}
	body, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return Artifact{}, &BuildError{Path: c.Path(), Message: "Can't show diff", Err: err}
	}
	if err := canceled(ctx); err != nil {
		return Artifact{}, err
	}

	if body == "" {
		a.Message = "Only the final newline differs"
		return a, nil
	}
	a.Body = body
	a.Hunks = hunkOffsets(a.Lines())
	return a, nil
}

// read returns the content of rev, translating reader failures.
func (b *Builder) read(ctx context.Context, c change.Change, rev change.Revision) ([]byte, error) {
	if rev.IsZero() {
		return nil, nil
	}
	data, err := b.reader.Read(ctx, rev)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %w", ErrCanceled, err)
		}
		if errors.Is(err, change.ErrNotFound) {
			return nil, &BuildError{Path: c.Path(), Message: "Content not found: " + rev.String(), Err: err}
		}
		return nil, &BuildError{Path: c.Path(), Message: "Can't read " + rev.String(), Err: err}
	}
	if err := canceled(ctx); err != nil {
		return nil, err
	}
	return data, nil
}

// canceled returns a wrapped ErrCanceled once ctx is done.
func canceled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrCanceled, err)
	}
	return nil
}

func isBinary(data []byte) bool {
	n := len(data)
	if n > binarySniffLen {
		n = binarySniffLen
	}
	return bytes.IndexByte(data[:n], 0) >= 0
}

// splitLinesKeepNL splits s into lines, keeping the newline characters,
// which produces well-formed unified hunks.
func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.SplitAfter(s, "\n")
	last := len(lines) - 1
	if lines[last] == "" {
		return lines[:last]
	}
	// A final line without a newline would run into the next hunk header.
	lines[last] += "\n"
	return lines
}

func fromName(rev change.Revision) string {
	if rev.IsZero() {
		return "/dev/null"
	}
	return "a/" + rev.Path
}

func toName(rev change.Revision) string {
	if rev.IsZero() {
		return "/dev/null"
	}
	return "b/" + rev.Path
}
