package views

import (
	"fmt"
	"time"

	"github.com/ptelles/sendq/internal/store"
	"github.com/ptelles/sendq/internal/tui/ui"
	"github.com/rivo/tview"
)

// HistoryView shows the dispatch audit log.
type HistoryView struct {
	*tview.Table
	theme *ui.Theme
}

// NewHistoryView creates the dispatch history table.
func NewHistoryView(theme *ui.Theme) *HistoryView {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Dispatch History ")
	table.SetBorderColor(theme.BorderColor)
	table.SetTitleColor(theme.TitleColor)
	table.SetBackgroundColor(theme.BgColor)

	return &HistoryView{Table: table, theme: theme}
}

// Name implements Component.
func (hv *HistoryView) Name() string { return "History" }

// Hints implements Component.
func (hv *HistoryView) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "Esc", Description: "Back"},
		{Key: "r", Description: "Reload"},
	}
}

// Update refreshes the table with dispatch log entries, newest first.
func (hv *HistoryView) Update(entries []store.DispatchEntry) {
	hv.Clear()

	headers := []string{" Time", " Recipient", " Channel", " Outcome", " Error"}
	for col, h := range headers {
		hv.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(hv.theme.TableHeaderFg))
	}

	for i, e := range entries {
		row := i + 1
		ts := formatTimestamp(time.UnixMilli(e.CreatedAt))
		outcome := e.Outcome
		switch e.Outcome {
		case store.OutcomeSent:
			outcome = fmt.Sprintf("[green]%s[-]", e.Outcome)
		case store.OutcomeFailed:
			outcome = fmt.Sprintf("[%s]%s[-]", colorTag(hv.theme.FlashErrColor), e.Outcome)
		case store.OutcomeMarkSentLost:
			outcome = fmt.Sprintf("[%s]%s[-]", colorTag(hv.theme.FlashWarnColor), e.Outcome)
		}

		hv.SetCell(row, 0, tview.NewTableCell(" "+ts).SetMaxWidth(14))
		hv.SetCell(row, 1, tview.NewTableCell(" "+e.Recipient).SetMaxWidth(24).SetExpansion(1))
		hv.SetCell(row, 2, tview.NewTableCell(" "+e.Channel).SetMaxWidth(14))
		hv.SetCell(row, 3, tview.NewTableCell(" "+outcome).SetMaxWidth(16))
		hv.SetCell(row, 4, tview.NewTableCell(" "+e.ErrorMessage).SetMaxWidth(40).SetExpansion(2))
	}
}
