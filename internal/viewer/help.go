package viewer

import (
	"github.com/charmbracelet/bubbles/help"

	"github.com/smileynet/stepdiff/internal/navigator"
)

// stepper is the part of the navigator the help bar reads.
type stepper interface {
	HasNext() bool
	HasPrevious() bool
	NavigationEnabled() bool
}

// HelpBindings returns the help.KeyMap with step bindings disabled when
// the navigator cannot move in that direction.
func HelpBindings(nav stepper) help.KeyMap {
	km := KeyMap()
	km.Next.SetEnabled(nav.HasNext())
	km.Previous.SetEnabled(nav.HasPrevious())
	if !nav.NavigationEnabled() {
		km.Next.SetEnabled(false)
		km.Previous.SetEnabled(false)
	}
	return km
}

var _ stepper = (*navigator.Navigator)(nil)
