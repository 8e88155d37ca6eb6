package change

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Sentinel errors for caller-checkable conditions.
var (
	ErrGitNotFound = errors.New("change: git not found on PATH")
	ErrInvalidRef  = errors.New("change: invalid ref")
	ErrNotFound    = errors.New("change: not found")
)

// validateRef checks that ref is safe to pass to git as a revision argument.
// Rejects flag-like refs (starting with -) and refs with whitespace or NULs.
func validateRef(ref string) error {
	if strings.HasPrefix(ref, "-") {
		return fmt.Errorf("%w: %q (must not start with -)", ErrInvalidRef, ref)
	}
	if strings.ContainsAny(ref, " \t\n\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	return nil
}

// validatePath rejects paths that could escape the repository.
func validatePath(p string) error {
	if p == "" || filepath.IsAbs(p) {
		return fmt.Errorf("%w: path %q", ErrNotFound, p)
	}
	for _, part := range strings.Split(filepath.ToSlash(p), "/") {
		if part == ".." {
			return fmt.Errorf("%w: path %q", ErrNotFound, p)
		}
	}
	return nil
}

// Source lists changes and reads revision content from a git repository.
type Source struct {
	repoRoot string
}

// NewSource creates a Source for the repository whose top level is repoRoot.
func NewSource(repoRoot string) *Source {
	return &Source{repoRoot: repoRoot}
}

// Root returns the repository top level the source reads from.
func (s *Source) Root() string {
	return s.repoRoot
}

// Toplevel returns the top-level directory of the git repository containing dir.
func Toplevel(ctx context.Context, dir string) (string, error) {
	if err := checkGit(); err != nil {
		return "", err
	}
	cmd := gitCommand(ctx, dir, "rev-parse", "--show-toplevel")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("change: git rev-parse: %w\n%s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(string(out)), nil
}

// List returns the changes between base and head, in git's path order.
// An empty head compares base against the working tree.
func (s *Source) List(ctx context.Context, base, head string) ([]Change, error) {
	if err := checkGit(); err != nil {
		return nil, err
	}
	if base == "" {
		return nil, fmt.Errorf("%w: base cannot be empty", ErrInvalidRef)
	}
	if err := validateRef(base); err != nil {
		return nil, err
	}
	if err := validateRef(head); err != nil {
		return nil, err
	}

	args := []string{"diff", "--name-status", "-z", "-M", base}
	if head != "" {
		args = append(args, head)
	}
	args = append(args, "--")

	cmd := gitCommand(ctx, s.repoRoot, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("change: git diff: %w\n%s", err, strings.TrimSpace(stderr.String()))
	}

	return parseNameStatus(out, base, head)
}

// parseNameStatus parses NUL-separated "git diff --name-status -z" output.
// Records are STATUS\0PATH\0, or STATUS\0OLD\0NEW\0 for renames and copies.
func parseNameStatus(out []byte, base, head string) ([]Change, error) {
	fields := strings.Split(string(out), "\x00")
	// Output ends with a NUL, leaving a trailing empty field.
	if n := len(fields); n > 0 && fields[n-1] == "" {
		fields = fields[:n-1]
	}

	changes := []Change{}
	for i := 0; i < len(fields); {
		code := fields[i]
		if code == "" {
			return nil, fmt.Errorf("change: parsing name-status: empty status at field %d", i)
		}
		status := Status(code[:1])
		i++

		switch status {
		case StatusRenamed, StatusCopied:
			if i+1 >= len(fields) {
				return nil, fmt.Errorf("change: parsing name-status: truncated %s record", code)
			}
			changes = append(changes, Change{
				Status: status,
				Before: Revision{Ref: base, Path: fields[i]},
				After:  Revision{Ref: head, Path: fields[i+1]},
			})
			i += 2
		case StatusAdded, StatusModified, StatusDeleted, StatusType:
			if i >= len(fields) {
				return nil, fmt.Errorf("change: parsing name-status: truncated %s record", code)
			}
			path := fields[i]
			c := Change{Status: status}
			if status != StatusAdded {
				c.Before = Revision{Ref: base, Path: path}
			}
			if status != StatusDeleted {
				c.After = Revision{Ref: head, Path: path}
			}
			changes = append(changes, c)
			i++
		default:
			// Unmerged (U), unknown (X) and broken (B) entries carry a single
			// path and have no comparable pair of revisions.
			i++
		}
	}
	return changes, nil
}

// Read returns the content of rev. A zero Revision reads as empty content.
func (s *Source) Read(ctx context.Context, rev Revision) ([]byte, error) {
	if rev.IsZero() {
		return nil, nil
	}
	if err := validatePath(rev.Path); err != nil {
		return nil, err
	}

	if rev.Ref == "" {
		data, err := os.ReadFile(filepath.Join(s.repoRoot, filepath.FromSlash(rev.Path)))
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrNotFound, rev)
			}
			return nil, fmt.Errorf("change: reading %s: %w", rev, err)
		}
		return data, nil
	}

	if err := checkGit(); err != nil {
		return nil, err
	}
	if err := validateRef(rev.Ref); err != nil {
		return nil, err
	}

	cmd := gitCommand(ctx, s.repoRoot, "show", rev.Ref+":"+rev.Path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		msg := stderr.String()
		if strings.Contains(msg, "does not exist") || strings.Contains(msg, "exists on disk, but not in") ||
			strings.Contains(msg, "invalid object name") || strings.Contains(msg, "bad revision") {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, rev)
		}
		return nil, fmt.Errorf("change: git show %s: %w\n%s", rev, err, strings.TrimSpace(msg))
	}
	return out, nil
}

// gitCommand builds a git command bound to ctx and run in dir.
func gitCommand(ctx context.Context, dir string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.WaitDelay = time.Second
	return cmd
}

// checkGit verifies that git is on PATH.
func checkGit() error {
	if _, err := exec.LookPath("git"); err != nil {
		return ErrGitNotFound
	}
	return nil
}
