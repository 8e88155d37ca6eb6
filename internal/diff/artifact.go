// Package diff builds unified-diff artifacts for file changes.
// It uses github.com/pmezard/go-difflib/difflib for the comparison and
// provides the placeholder artifacts shown while a diff is unavailable.
package diff

import "strings"

// Kind classifies what an Artifact shows.
type Kind int

const (
	KindDiff     Kind = iota // A computed comparison.
	KindLoading              // Transient placeholder while a build is in flight.
	KindEmpty                // Nothing is selected.
	KindError                // The build failed; Message holds the reason.
	KindCanceled             // The build was interrupted.
)

// String returns a short lowercase name for k.
func (k Kind) String() string {
	switch k {
	case KindDiff:
		return "diff"
	case KindLoading:
		return "loading"
	case KindEmpty:
		return "empty"
	case KindError:
		return "error"
	case KindCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Artifact is the comparison result for one change, or a placeholder.
type Artifact struct {
	Kind     Kind
	Title    string // Change header, e.g. "M internal/diff/diff.go".
	Body     string // Unified diff text; empty for placeholders and identical content.
	Message  string // Placeholder or notice text.
	Oversize bool   // Body was omitted because the inputs exceeded the size limit.
	Hunks    []int  // Line offsets of "@@" headers within Body.
}

// IsPlaceholder reports whether a is anything other than a computed diff.
func (a Artifact) IsPlaceholder() bool {
	return a.Kind != KindDiff
}

// Lines returns the body split into lines without the trailing empty line.
func (a Artifact) Lines() []string {
	if a.Body == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(a.Body, "\n"), "\n")
}

// Loading returns the placeholder shown while a build is in flight.
func Loading() Artifact {
	return Artifact{Kind: KindLoading, Message: "Loading..."}
}

// Empty returns the placeholder shown when no change is selected.
func Empty() Artifact {
	return Artifact{Kind: KindEmpty, Message: "No change selected"}
}

// Error returns a placeholder carrying a user-facing failure message.
func Error(msg string) Artifact {
	return Artifact{Kind: KindError, Message: msg}
}

// Canceled returns the placeholder for an interrupted build.
func Canceled() Artifact {
	return Artifact{Kind: KindCanceled, Message: "Operation canceled"}
}

// hunkOffsets returns the line index of every "@@" header in lines.
func hunkOffsets(lines []string) []int {
	var offsets []int
	for i, line := range lines {
		if strings.HasPrefix(line, "@@") {
			offsets = append(offsets, i)
		}
	}
	return offsets
}
