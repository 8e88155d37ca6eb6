package viewer

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/smileynet/stepdiff/internal/navigator"
)

// helpBarHeight is the number of lines reserved for the help bar at the bottom.
const helpBarHeight = 1

// borderChrome is the number of lines consumed by top + bottom borders.
const borderChrome = 2

// paneTitleHeight is the line above the diff viewport holding the change header.
const paneTitleHeight = 1

// Model is the root Bubble Tea model for the viewer.
// The change list and diff pane are shared by pointer with the navigator,
// which reads the selection from one and writes artifacts into the other.
type Model struct {
	focus  Focus
	width  int
	height int
	title  string
	loaded bool

	lister  ChangeLister
	list    *listState
	pane    *diffPane
	nav     *navigator.Navigator
	keys    keyMap
	spinner spinner.Model
	help    help.Model
}

// Option configures a Model.
type Option func(*modelConfig)

type modelConfig struct {
	title   string
	navOpts []navigator.Option
}

// WithTitle sets the header shown above the change list, e.g. "HEAD..working tree".
func WithTitle(title string) Option {
	return func(c *modelConfig) { c.title = title }
}

// WithNavigatorOptions passes options through to navigator.New.
func WithNavigatorOptions(opts ...navigator.Option) Option {
	return func(c *modelConfig) { c.navOpts = append(c.navOpts, opts...) }
}

// NewModel creates a viewer that lists changes from lister and builds
// diffs through loader.
func NewModel(lister ChangeLister, loader *navigator.Loader, opts ...Option) Model {
	var cfg modelConfig
	for _, o := range opts {
		o(&cfg)
	}

	s := spinner.New()
	s.Spinner = spinner.Dot

	list := newListState()
	pane := newDiffPane()
	return Model{
		focus:   PaneLeft,
		title:   cfg.title,
		lister:  lister,
		list:    list,
		pane:    pane,
		nav:     navigator.New(list, pane, loader, cfg.navOpts...),
		keys:    KeyMap(),
		spinner: s,
		help:    help.New(),
	}
}

// Init starts the spinner and fetches the change list.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, loadChanges(m.lister))
}

// Update handles incoming messages and returns the updated model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		_, rightWidth := PaneWidths(msg.Width)
		vpWidth := rightWidth - borderChrome
		if vpWidth < 0 {
			vpWidth = 0
		}
		vpHeight := m.contentHeight() - paneTitleHeight
		if vpHeight < 1 {
			vpHeight = 1
		}
		m.pane.setSize(vpWidth, vpHeight)
		return m, nil

	case ChangeListMsg:
		m.list.apply(msg.Changes, msg.Err)
		if !m.loaded {
			m.loaded = true
			return m, m.nav.Refresh()
		}
		return m, m.nav.Invalidate()

	case navigator.LoadedMsg:
		m.nav.Deliver(msg)
		return m, nil

	case spinner.TickMsg:
		if !m.list.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.nav.Dispose()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Tab):
		if m.focus == PaneLeft {
			m.focus = PaneRight
		} else {
			m.focus = PaneLeft
		}
		return m, nil
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	}

	if m.list.loading {
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Reload):
		m.list.loading = true
		return m, tea.Batch(m.spinner.Tick, loadChanges(m.lister))
	case key.Matches(msg, m.keys.Next):
		if m.nav.HasNext() {
			return m, m.nav.Next()
		}
		return m, nil
	case key.Matches(msg, m.keys.Previous):
		if m.nav.HasPrevious() {
			return m, m.nav.Previous()
		}
		return m, nil
	case key.Matches(msg, m.keys.NextHunk):
		if m.pane.nextHunk() {
			return m, nil
		}
		if m.nav.HasNext() {
			return m, m.nav.NextDifference()
		}
		return m, nil
	case key.Matches(msg, m.keys.PrevHunk):
		if m.pane.prevHunk() {
			return m, nil
		}
		if m.nav.HasPrevious() {
			return m, m.nav.PreviousDifference()
		}
		return m, nil
	case key.Matches(msg, m.keys.Clear):
		return m, m.nav.Clear()
	}

	if m.focus == PaneRight {
		var cmd tea.Cmd
		m.pane.viewport, cmd = m.pane.viewport.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Up):
		m.list.move(-1)
	case key.Matches(msg, m.keys.Down):
		m.list.move(1)
	case key.Matches(msg, m.keys.Mark):
		m.list.toggleMark()
	case key.Matches(msg, m.keys.Unmark):
		m.list.clearMarks()
	default:
		return m, nil
	}
	return m, m.nav.Refresh()
}

// contentHeight returns the usable height for pane content,
// accounting for border chrome and the help bar.
func (m Model) contentHeight() int {
	h := m.height - borderChrome - helpBarHeight
	if h < 1 {
		return 1
	}
	return h
}

// View renders the two-pane layout with the help bar.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	leftWidth, rightWidth := PaneWidths(m.width)
	contentHeight := m.contentHeight()

	var leftStyle, rightStyle lipgloss.Style
	if m.focus == PaneLeft {
		leftStyle = FocusedBorder()
		rightStyle = UnfocusedBorder()
	} else {
		leftStyle = UnfocusedBorder()
		rightStyle = FocusedBorder()
	}

	leftStyle = leftStyle.
		Width(leftWidth - borderChrome).
		Height(contentHeight)
	rightStyle = rightStyle.
		Width(rightWidth - borderChrome).
		Height(contentHeight)

	leftPane := leftStyle.Render(m.viewLeft())
	rightPane := rightStyle.Render(m.pane.View())
	panes := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)
	helpView := m.help.View(HelpBindings(m.nav))

	return lipgloss.JoinVertical(lipgloss.Left, panes, helpView)
}

func (m Model) viewLeft() string {
	current, ok := m.nav.Current()
	body := m.list.View(m.spinner.View(), current, ok)
	if m.title == "" {
		return body
	}
	return titleText.Render(m.title) + "\n" + body
}
