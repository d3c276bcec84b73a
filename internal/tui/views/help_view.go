package views

import (
	"fmt"

	"github.com/ptelles/sendq/internal/tui/ui"
	"github.com/rivo/tview"
)

// HelpView displays the key binding reference.
type HelpView struct {
	*tview.TextView
	theme *ui.Theme
}

// NewHelpView creates a new help view.
func NewHelpView(theme *ui.Theme) *HelpView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitle(" Help ")
	tv.SetTitleColor(theme.TitleColor)

	hv := &HelpView{
		TextView: tv,
		theme:    theme,
	}
	hv.render()
	return hv
}

// Name implements Component.
func (hv *HelpView) Name() string { return "Help" }

// Hints implements Component.
func (hv *HelpView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
	}
}

func (hv *HelpView) render() {
	kc := colorTag(hv.theme.MenuKeyColor)

	help := fmt.Sprintf(`
  [::b]Queue[-:-:-]

  [%s]s[-:-:-]      Send selected via SMS
  [%s]S[-:-:-]      Send all via SMS
  [%s]c[-:-:-]      Cancel selected (5s undo window)
  [%s]u[-:-:-]      Undo last cancel
  [%s]C[-:-:-]      Cancel all
  [%s]w[-:-:-]      Share selected on WhatsApp
  [%s]p[-:-:-]      Share selected on WhatsApp with jobcard PDF
  [%s]r[-:-:-]      Refresh now
  [%s]j/Down[-:-:-] Move down          [%s]k/Up[-:-:-]  Move up

  [::b]Pages[-:-:-]

  [%s]h[-:-:-]      Dispatch history
  [%s]o[-:-:-]      Settings
  [%s]?[-:-:-]      This help
  [%s]Esc[-:-:-]    Back to queue

  [::b]Global[-:-:-]

  [%s]q[-:-:-]      Quit               [%s]Ctrl-C[-:-:-] Quit immediately
`,
		kc, kc, kc, kc, kc, kc, kc, kc, kc, kc,
		kc, kc, kc, kc,
		kc, kc,
	)

	_, _ = fmt.Fprint(hv, help)
}
