package views

import (
	"strconv"

	"github.com/ptelles/sendq/internal/settings"
	"github.com/ptelles/sendq/internal/tui/ui"
	"github.com/rivo/tview"
)

// SettingsForm edits the backend URL, refresh interval, and SMS gateway URL.
type SettingsForm struct {
	*tview.Form
	theme    *ui.Theme
	onSave   func(backendURL, intervalInput, gatewayURL string)
	onCancel func()
}

// NewSettingsForm creates the settings form page.
func NewSettingsForm(theme *ui.Theme) *SettingsForm {
	form := tview.NewForm()
	form.SetBorder(true).SetTitle(" Settings ")
	form.SetBorderColor(theme.BorderColor)
	form.SetTitleColor(theme.TitleColor)
	form.SetBackgroundColor(theme.BgColor)
	form.SetFieldBackgroundColor(theme.TableCursorBg)
	form.SetFieldTextColor(theme.TableCursorFg)
	form.SetLabelColor(theme.FgColor)

	sf := &SettingsForm{Form: form, theme: theme}
	return sf
}

// Name implements Component.
func (sf *SettingsForm) Name() string { return "Settings" }

// Hints implements Component.
func (sf *SettingsForm) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Tab", Description: "Next field"},
		{Key: "Esc", Description: "Discard"},
	}
}

// SetOnSave sets the callback invoked with the raw field values on save.
// The interval arrives unparsed; a non-numeric value falls back to the
// default during apply.
func (sf *SettingsForm) SetOnSave(fn func(backendURL, intervalInput, gatewayURL string)) {
	sf.onSave = fn
}

// SetOnCancel sets the callback for discarding edits.
func (sf *SettingsForm) SetOnCancel(fn func()) {
	sf.onCancel = fn
}

// Load rebuilds the form from current settings.
func (sf *SettingsForm) Load(cfg settings.Settings) {
	sf.Clear(true)

	backendURL := cfg.BackendURL
	interval := strconv.Itoa(cfg.RefreshIntervalSeconds)
	gatewayURL := cfg.SMSGatewayURL

	sf.AddInputField("Backend URL", backendURL, 60, nil, func(text string) {
		backendURL = text
	})
	sf.AddInputField("Refresh interval (seconds)", interval, 10, nil, func(text string) {
		interval = text
	})
	sf.AddInputField("SMS gateway URL", gatewayURL, 60, nil, func(text string) {
		gatewayURL = text
	})
	sf.AddButton("Save", func() {
		if sf.onSave != nil {
			sf.onSave(backendURL, interval, gatewayURL)
		}
	})
	sf.AddButton("Cancel", func() {
		if sf.onCancel != nil {
			sf.onCancel()
		}
	})
}
