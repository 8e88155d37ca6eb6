package viewer

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/smileynet/stepdiff/internal/change"
)

// MinLeftWidth is the minimum character width for the change list pane.
const MinLeftWidth = 28

var (
	addedLine   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "2", Dark: "10"})
	removedLine = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "1", Dark: "9"})
	hunkLine    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "6", Dark: "14"})
	fileLine    = lipgloss.NewStyle().Bold(true)
	mutedText   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
	errorText   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "1", Dark: "9"})
	titleText   = lipgloss.NewStyle().Bold(true)
)

// Status badge colors by change status.
var statusColors = map[change.Status]lipgloss.AdaptiveColor{
	change.StatusAdded:    {Light: "2", Dark: "10"},
	change.StatusModified: {Light: "3", Dark: "11"},
	change.StatusDeleted:  {Light: "1", Dark: "9"},
	change.StatusRenamed:  {Light: "4", Dark: "12"},
	change.StatusCopied:   {Light: "4", Dark: "12"},
	change.StatusType:     {Light: "5", Dark: "13"},
}

// StatusBadge returns the styled one-letter status of a change.
func StatusBadge(s change.Status) string {
	color, ok := statusColors[s]
	if !ok {
		color = lipgloss.AdaptiveColor{Light: "240", Dark: "245"}
	}
	return lipgloss.NewStyle().Foreground(color).Render(string(s))
}

// ColorizeLine styles one line of a unified diff.
func ColorizeLine(line string) string {
	switch {
	case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		return fileLine.Render(line)
	case strings.HasPrefix(line, "@@"):
		return hunkLine.Render(line)
	case strings.HasPrefix(line, "+"):
		return addedLine.Render(line)
	case strings.HasPrefix(line, "-"):
		return removedLine.Render(line)
	default:
		return line
	}
}

// FocusedBorder returns a lipgloss style with an accent-colored rounded border.
func FocusedBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})
}

// UnfocusedBorder returns a lipgloss style with a dim rounded border.
func UnfocusedBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "240", Dark: "240"})
}

// PaneWidths calculates the left and right pane widths from a total width.
// Left pane gets 1/3 (minimum MinLeftWidth), right pane gets the rest.
func PaneWidths(totalWidth int) (left, right int) {
	if totalWidth <= 0 {
		return 0, 0
	}
	left = totalWidth / 3
	if left < MinLeftWidth {
		left = MinLeftWidth
	}
	right = totalWidth - left
	if right < 0 {
		right = 0
	}
	return left, right
}
