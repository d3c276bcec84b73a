package views

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/ptelles/sendq/internal/backend"
	"github.com/ptelles/sendq/internal/tui/ui"
	"github.com/rivo/tview"
)

// QueueList is the main pending-message table.
type QueueList struct {
	*tview.Table
	theme      *ui.Theme
	messages   []backend.PendingMessage
	selectedFn func() (int, int)
}

// NewQueueList creates the pending queue table.
func NewQueueList(theme *ui.Theme) *QueueList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Pending Messages ")
	table.SetBorderColor(theme.BorderColor)
	table.SetTitleColor(theme.TitleColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	ql := &QueueList{Table: table, theme: theme}
	ql.selectedFn = table.GetSelection
	return ql
}

// Name implements Component.
func (ql *QueueList) Name() string { return "Queue" }

// Hints implements Component.
func (ql *QueueList) Hints() []ui.MenuHint {
	return []ui.MenuHint{
		{Key: "s", Description: "Send"},
		{Key: "S", Description: "Send all"},
		{Key: "c", Description: "Cancel"},
		{Key: "u", Description: "Undo"},
		{Key: "C", Description: "Cancel all"},
		{Key: "w", Description: "WhatsApp"},
		{Key: "p", Description: "WhatsApp+PDF"},
		{Key: "r", Description: "Refresh"},
		{Key: "h", Description: "History"},
		{Key: "o", Description: "Settings"},
		{Key: "q", Description: "Quit"},
	}
}

// Update refreshes the table with new queue contents.
func (ql *QueueList) Update(messages []backend.PendingMessage, refreshing bool) {
	ql.messages = messages
	ql.Clear()

	title := fmt.Sprintf(" Pending Messages [%s](%d)[-] ",
		colorTag(ql.theme.CounterColor), len(messages))
	if refreshing {
		title += "[green]~[-] "
	}
	ql.SetTitle(title)

	headers := []string{" Recipient", " Phone", " Message", " Jobcard"}
	for col, h := range headers {
		ql.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(ql.theme.TableHeaderFg))
	}

	for i, msg := range messages {
		row := i + 1
		name := msg.FullName
		if msg.Flag {
			name = "* " + name
		}
		nameCell := tview.NewTableCell(" " + name).SetMaxWidth(24).SetExpansion(1)
		if msg.Flag {
			nameCell.SetTextColor(ql.theme.FlaggedRowColor)
		}
		ql.SetCell(row, 0, nameCell)
		ql.SetCell(row, 1, tview.NewTableCell(" "+msg.Phone).SetMaxWidth(16))
		ql.SetCell(row, 2, tview.NewTableCell(" "+preview(msg.Body, 48)).SetMaxWidth(50).SetExpansion(2))
		ql.SetCell(row, 3, tview.NewTableCell(fmt.Sprintf(" %d", msg.JobcardRefID)).SetMaxWidth(10))
	}
}

// Selected returns the currently selected message and true, or false when
// the table is empty.
func (ql *QueueList) Selected() (backend.PendingMessage, bool) {
	row, _ := ql.selectedFn()
	idx := row - 1 // header row
	if idx >= 0 && idx < len(ql.messages) {
		return ql.messages[idx], true
	}
	return backend.PendingMessage{}, false
}

func preview(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
