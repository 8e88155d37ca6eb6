package viewer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"

	"github.com/smileynet/stepdiff/internal/diff"
	"github.com/smileynet/stepdiff/internal/navigator"
)

// diffPane shows the current artifact in a scrollable viewport. It is the
// navigator's Sink, so the model holds it by pointer.
type diffPane struct {
	viewport viewport.Model
	artifact diff.Artifact
	hunk     int // Index into artifact.Hunks of the hunk in view; -1 before the first.
	applied  int // Number of ApplyArtifact calls, for status display and tests.
}

func newDiffPane() *diffPane {
	return &diffPane{viewport: viewport.New(0, 0), artifact: diff.Empty(), hunk: -1}
}

// ApplyArtifact replaces the viewport content and scrolls per hint.
func (p *diffPane) ApplyArtifact(a diff.Artifact, hint navigator.ScrollHint) {
	p.artifact = a
	p.applied++
	p.viewport.SetContent(renderArtifact(a))
	p.viewport.GotoTop()
	p.hunk = -1

	switch hint {
	case navigator.ScrollFirstChange:
		p.gotoHunk(0)
	case navigator.ScrollLastChange:
		p.gotoHunk(len(a.Hunks) - 1)
	}
}

// nextHunk scrolls to the following hunk. It reports false when the view
// is already at the last one.
func (p *diffPane) nextHunk() bool {
	return p.gotoHunk(p.hunk + 1)
}

// prevHunk scrolls to the preceding hunk. It reports false when the view
// is at or before the first one.
func (p *diffPane) prevHunk() bool {
	if p.hunk <= 0 {
		return false
	}
	return p.gotoHunk(p.hunk - 1)
}

func (p *diffPane) gotoHunk(i int) bool {
	if i < 0 || i >= len(p.artifact.Hunks) {
		return false
	}
	p.hunk = i
	p.viewport.SetYOffset(p.artifact.Hunks[i])
	return true
}

func (p *diffPane) setSize(width, height int) {
	p.viewport.Width = width
	p.viewport.Height = height
}

// title returns the header line for the pane.
func (p *diffPane) title() string {
	if p.artifact.Title == "" {
		return titleText.Render("Diff")
	}
	t := titleText.Render(p.artifact.Title)
	if n := len(p.artifact.Hunks); n > 0 && p.hunk >= 0 {
		t += mutedText.Render(fmt.Sprintf(" (%d/%d)", p.hunk+1, n))
	}
	return t
}

// View renders the title line above the viewport.
func (p *diffPane) View() string {
	return p.title() + "\n" + p.viewport.View()
}

func renderArtifact(a diff.Artifact) string {
	if a.Kind == diff.KindError {
		return errorText.Render(a.Message)
	}
	if a.Body == "" {
		return mutedText.Render(a.Message)
	}

	var b strings.Builder
	for i, line := range a.Lines() {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(ColorizeLine(line))
	}
	return b.String()
}
