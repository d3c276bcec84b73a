package ui

import (
	"fmt"

	"github.com/rivo/tview"
)

// Menu displays keyboard shortcut hints in a horizontal bar.
type Menu struct {
	*tview.TextView
	theme *Theme
}

// NewMenu creates a new menu hint bar.
func NewMenu(theme *Theme) *Menu {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetBorderPadding(0, 0, 2, 0)

	return &Menu{
		TextView: tv,
		theme:    theme,
	}
}

// Update renders the menu hints for the active view.
func (m *Menu) Update(hints []MenuHint) {
	m.Clear()

	keyColor := colorName(m.theme.MenuKeyColor)
	for i, h := range hints {
		if i > 0 {
			_, _ = fmt.Fprint(m, "  ")
		}
		_, _ = fmt.Fprintf(m, "[%s::b]<%s>[-:-:-] %s", keyColor, h.Key, h.Description)
	}
}
