// Package change models file changes between two revisions and lists them from git.
package change

// Status is the git name-status letter of a change.
type Status string

const (
	StatusAdded    Status = "A"
	StatusModified Status = "M"
	StatusDeleted  Status = "D"
	StatusRenamed  Status = "R"
	StatusCopied   Status = "C"
	StatusType     Status = "T" // File type changed (e.g. regular file to symlink).
)

// Revision names one side of a change: a path at a git ref.
// The zero Revision means the side does not exist. An empty Ref with a
// non-empty Path names the file in the working tree.
type Revision struct {
	Ref  string
	Path string
}

// IsZero reports whether r names no file.
func (r Revision) IsZero() bool {
	return r == Revision{}
}

// String renders r as "ref:path", or just the path for the working tree.
func (r Revision) String() string {
	if r.IsZero() {
		return "/dev/null"
	}
	if r.Ref == "" {
		return r.Path
	}
	return r.Ref + ":" + r.Path
}

// Key identifies a change within a list. Changes with equal keys are the
// same navigable item and share a cache slot.
type Key struct {
	BeforePath string
	AfterPath  string
}

// Change is a single file change between two revisions.
type Change struct {
	Status Status
	Before Revision
	After  Revision
}

// Key returns the identity of c.
func (c Change) Key() Key {
	return Key{BeforePath: c.Before.Path, AfterPath: c.After.Path}
}

// Equal reports whether c and o are the same item.
func (c Change) Equal(o Change) bool {
	return c.Key() == o.Key()
}

// SameContent reports whether c and o compare exactly the same two revisions.
// A change that keeps its key but points at a different ref is the same item
// with different content.
func (c Change) SameContent(o Change) bool {
	return c.Before == o.Before && c.After == o.After
}

// Path returns the path to display for c: the after path, or the before
// path for deletions.
func (c Change) Path() string {
	if c.After.Path != "" {
		return c.After.Path
	}
	return c.Before.Path
}

// String renders c as "STATUS path", with "old → new" for renames and copies.
func (c Change) String() string {
	if (c.Status == StatusRenamed || c.Status == StatusCopied) && c.Before.Path != c.After.Path {
		return string(c.Status) + " " + c.Before.Path + " → " + c.After.Path
	}
	return string(c.Status) + " " + c.Path()
}

// Index returns the position of the first change in list equal to c, or -1.
func Index(list []Change, c Change) int {
	for i := range list {
		if list[i].Equal(c) {
			return i
		}
	}
	return -1
}

// Contains reports whether list holds a change equal to c.
func Contains(list []Change, c Change) bool {
	return Index(list, c) >= 0
}
