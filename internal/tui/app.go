package tui

import (
	"context"
	"errors"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/ptelles/sendq/internal/bus"
	"github.com/ptelles/sendq/internal/dispatch"
	"github.com/ptelles/sendq/internal/session"
	"github.com/ptelles/sendq/internal/settings"
	"github.com/ptelles/sendq/internal/smsgw"
	"github.com/ptelles/sendq/internal/status"
	"github.com/ptelles/sendq/internal/tui/keys"
	"github.com/ptelles/sendq/internal/tui/model"
	"github.com/ptelles/sendq/internal/tui/ui"
	"github.com/ptelles/sendq/internal/tui/views"
	"github.com/ptelles/sendq/internal/wa"
	"github.com/rivo/tview"
	"go.uber.org/zap"
)

const historyPageSize = 200

// App is the main TUI application shell.
type App struct {
	app      *tview.Application
	pages    *tview.Pages
	vm       *model.ViewModel
	registry *keys.Registry
	theme    *ui.Theme

	statusBar *views.StatusBar
	menu      *ui.Menu
	crumbs    *ui.Crumbs
	queueList *views.QueueList
	historyV  *views.HistoryView
	settingsF *views.SettingsForm
	authView  *views.AuthView
	helpV     *views.HelpView

	bus         *bus.Bus
	machine     *status.Machine
	adapter     *wa.Adapter
	sessionName string
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	onQuit func()
}

// NewApp creates the TUI application shell.
func NewApp(vm *model.ViewModel, b *bus.Bus, machine *status.Machine, adapter *wa.Adapter, sessionName string, logger *zap.Logger) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:         tview.NewApplication(),
		pages:       tview.NewPages(),
		vm:          vm,
		registry:    keys.NewRegistry(),
		theme:       theme,
		statusBar:   views.NewStatusBar(),
		menu:        ui.NewMenu(theme),
		crumbs:      ui.NewCrumbs(theme),
		queueList:   views.NewQueueList(theme),
		historyV:    views.NewHistoryView(theme),
		settingsF:   views.NewSettingsForm(theme),
		authView:    views.NewAuthView(theme),
		helpV:       views.NewHelpView(theme),
		bus:         b,
		machine:     machine,
		adapter:     adapter,
		sessionName: sessionName,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}

	a.statusBar.SetSession(sessionName)
	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

// SetOnQuit installs a hook that runs when the user quits the TUI.
func (a *App) SetOnQuit(fn func()) {
	a.onQuit = fn
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.Stop() },
	})
	a.registry.AddGlobal("help", &keys.Action{
		Rune: '?', Key: tcell.KeyRune,
		Description: "?:help", Visible: true,
		Handler: func() { a.switchTo("help") },
	})
	a.registry.AddGlobal("history", &keys.Action{
		Rune: 'h', Key: tcell.KeyRune,
		Description: "h:history", Visible: true,
		Handler: func() { a.showHistory() },
	})
	a.registry.AddGlobal("settings", &keys.Action{
		Rune: 'o', Key: tcell.KeyRune,
		Description: "o:settings", Visible: true,
		Handler: func() { a.showSettings() },
	})

	a.registry.AddView("queue", "send", &keys.Action{
		Rune: 's', Key: tcell.KeyRune,
		Description: "s:send", Visible: true,
		Handler: func() { a.sendSelected() },
	})
	a.registry.AddView("queue", "send-all", &keys.Action{
		Rune: 'S', Key: tcell.KeyRune,
		Description: "S:send all", Visible: true,
		Handler: func() { a.sendAll() },
	})
	a.registry.AddView("queue", "cancel", &keys.Action{
		Rune: 'c', Key: tcell.KeyRune,
		Description: "c:cancel", Visible: true,
		Handler: func() { a.cancelSelected() },
	})
	a.registry.AddView("queue", "undo", &keys.Action{
		Rune: 'u', Key: tcell.KeyRune,
		Description: "u:undo", Visible: true,
		Handler: func() { a.undoCancel() },
	})
	a.registry.AddView("queue", "cancel-all", &keys.Action{
		Rune: 'C', Key: tcell.KeyRune,
		Description: "C:cancel all", Visible: true,
		Handler: func() { a.cancelAll() },
	})
	a.registry.AddView("queue", "whatsapp", &keys.Action{
		Rune: 'w', Key: tcell.KeyRune,
		Description: "w:whatsapp", Visible: true,
		Handler: func() { a.shareSelected(false) },
	})
	a.registry.AddView("queue", "whatsapp-pdf", &keys.Action{
		Rune: 'p', Key: tcell.KeyRune,
		Description: "p:whatsapp+pdf", Visible: true,
		Handler: func() { a.shareSelected(true) },
	})
	a.registry.AddView("queue", "refresh", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:refresh", Visible: true,
		Handler: func() { go a.vm.Refresh(a.ctx) },
	})
	a.registry.AddView("history", "reload", &keys.Action{
		Rune: 'r', Key: tcell.KeyRune,
		Description: "r:reload", Visible: true,
		Handler: func() { a.showHistory() },
	})
}

func (a *App) setupCallbacks() {
	a.settingsF.SetOnSave(func(backendURL, intervalInput, gatewayURL string) {
		go func() {
			if err := a.vm.ApplySettings(a.ctx, backendURL, intervalInput, gatewayURL); err != nil {
				a.vm.Flash.Err(err)
			} else {
				a.vm.Flash.Info("Settings saved")
				a.vm.Dispatcher().SetGateway(newGateway(gatewayURL))
			}
			a.app.QueueUpdateDraw(func() {
				a.switchTo("queue")
				a.redrawQueue()
			})
		}()
	})
	a.settingsF.SetOnCancel(func() {
		a.switchTo("queue")
	})
}

func newGateway(url string) smsgw.Sender {
	if url == "" {
		return nil
	}
	return smsgw.NewClient(url)
}

func (a *App) setupLayout() {
	a.pages.AddPage("queue", a.queueList, true, true)
	a.pages.AddPage("history", a.historyV, true, false)
	a.pages.AddPage("settings", a.settingsF, true, false)
	a.pages.AddPage("auth", a.authView, true, false)
	a.pages.AddPage("help", a.helpV, true, false)

	header := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(ui.NewLogo(a.theme), 20, 0, false).
		AddItem(a.menu, 0, 1, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(header, 4, 0, false).
		AddItem(a.crumbs, 1, 0, false).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "history", "settings", "help", "auth":
				a.switchTo("queue")
				return nil
			}
		}

		// Let the settings form fields handle their own keys.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}
		if _, ok := focused.(*tview.Button); ok {
			if event.Key() != tcell.KeyEscape {
				return event
			}
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}

		return event
	})
}

func (a *App) switchTo(page string) {
	a.pages.SwitchToPage(page)
	a.updateChrome(page)
	switch page {
	case "queue":
		a.app.SetFocus(a.queueList)
	case "history":
		a.app.SetFocus(a.historyV)
	case "settings":
		a.app.SetFocus(a.settingsF)
	}
}

func (a *App) updateChrome(page string) {
	var hints []ui.MenuHint
	switch page {
	case "queue":
		hints = a.queueList.Hints()
	case "history":
		hints = a.historyV.Hints()
	case "settings":
		hints = a.settingsF.Hints()
	case "auth":
		hints = a.authView.Hints()
	case "help":
		hints = a.helpV.Hints()
	}
	a.menu.Update(hints)

	if page == "queue" {
		a.crumbs.Update([]string{"queue"})
	} else {
		a.crumbs.Update([]string{"queue", page})
	}
}

func (a *App) redrawQueue() {
	snap := a.vm.Queue()
	a.queueList.Update(snap.Messages, snap.Refreshing)
	a.statusBar.SetRefreshing(snap.Refreshing)
	a.statusBar.SetStatus(string(a.machine.Current()))
	a.statusBar.SetFlash(a.vm.Flash.Get())
}

func (a *App) sendSelected() {
	msg, ok := a.queueList.Selected()
	if !ok {
		return
	}
	go func() {
		if err := a.vm.Dispatcher().SendOne(a.ctx, msg); err != nil {
			if errors.Is(err, dispatch.ErrNoGateway) {
				a.vm.Flash.Warn("SMS unavailable: no gateway configured")
			} else {
				a.vm.Flash.Err(err)
			}
		} else {
			a.vm.Flash.Info("Sent to " + msg.FullName)
		}
		a.app.QueueUpdateDraw(a.redrawQueue)
	}()
}

func (a *App) sendAll() {
	go func() {
		a.vm.Dispatcher().SendAll(a.ctx)
		a.vm.Flash.Info("Bulk send finished")
		a.app.QueueUpdateDraw(a.redrawQueue)
	}()
}

func (a *App) cancelSelected() {
	msg, ok := a.queueList.Selected()
	if !ok {
		return
	}
	a.vm.CancelWithUndo(a.ctx, msg, func() {
		a.app.QueueUpdateDraw(a.redrawQueue)
	})
	a.vm.Flash.Set("Canceled. Press u to undo.", model.UndoWindow)
	a.redrawQueue()
}

func (a *App) undoCancel() {
	msg, ok := a.vm.Undo()
	if !ok {
		a.vm.Flash.Warn("Nothing to undo")
	} else {
		a.vm.Flash.Info("Restored " + msg.FullName)
	}
	a.redrawQueue()
}

func (a *App) cancelAll() {
	go func() {
		a.vm.Dispatcher().CancelAll(a.ctx)
		a.vm.Flash.Info("Queue cleared")
		a.app.QueueUpdateDraw(a.redrawQueue)
	}()
}

func (a *App) shareSelected(attachPDF bool) {
	msg, ok := a.queueList.Selected()
	if !ok {
		return
	}
	go func() {
		err := a.vm.Dispatcher().ShareWhatsApp(a.ctx, msg, attachPDF)
		switch {
		case errors.Is(err, dispatch.ErrNoDocument):
			a.vm.Flash.Warn("No relevant document for jobcard")
		case err != nil:
			a.vm.Flash.Err(err)
		default:
			a.vm.Flash.Info("Shared with " + msg.FullName)
		}
		a.app.QueueUpdateDraw(a.redrawQueue)
	}()
}

func (a *App) showHistory() {
	go func() {
		if err := a.vm.LoadHistory(historyPageSize); err != nil {
			a.vm.Flash.Err(err)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.historyV.Update(a.vm.History())
			a.switchTo("history")
		})
	}()
}

func (a *App) showSettings() {
	cfg, err := settings.Load(session.SettingsPath(a.sessionName))
	if err != nil {
		a.vm.Flash.Err(err)
		cfg = settings.Default()
	}
	a.settingsF.Load(cfg)
	a.switchTo("settings")
}

// watchBus mirrors queue, dispatch, and session events onto the screen.
func (a *App) watchBus() {
	events, unsub := a.bus.Subscribe("", 32)
	go func() {
		defer unsub()
		for {
			select {
			case evt, ok := <-events:
				if !ok {
					return
				}
				a.handleEvent(evt)
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

func (a *App) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindQueueReplaced, bus.KindQueueRefreshing,
		bus.KindQueueRemoved, bus.KindQueueRestored:
		a.app.QueueUpdateDraw(func() {
			if page, _ := a.pages.GetFrontPage(); page == "queue" {
				a.redrawQueue()
			} else {
				snap := a.vm.Queue()
				a.statusBar.SetRefreshing(snap.Refreshing)
			}
		})
	case bus.KindStatusChanged:
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetStatus(string(a.machine.Current()))
		})
	case bus.KindDispatchFailed:
		a.app.QueueUpdateDraw(func() {
			a.statusBar.SetFlash(a.vm.Flash.Get())
		})
	}
}

// Run starts the TUI application. It blocks until the user quits or the
// screen tears down.
func (a *App) Run() error {
	a.updateChrome("queue")
	a.watchBus()
	a.startClock()

	go func() {
		if a.adapter != nil && !a.adapter.IsLoggedIn() {
			a.app.QueueUpdateDraw(func() {
				a.switchTo("auth")
				a.authView.ShowMessage("Starting WhatsApp pairing...")
			})
			a.runAuthFlow()
			return
		}
		a.connectWhatsApp()
	}()

	return a.app.Run()
}

// startClock redraws the status bar every few seconds so the clock and
// flash expiry stay current even without events.
func (a *App) startClock() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.app.QueueUpdateDraw(func() {
					a.statusBar.SetFlash(a.vm.Flash.Get())
				})
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

func (a *App) connectWhatsApp() {
	if a.adapter == nil {
		return
	}
	_ = a.machine.Transition(status.Connecting)
	if err := a.adapter.Connect(); err != nil {
		a.logger.Warn("whatsapp connect failed", zap.Error(err))
		_ = a.machine.Transition(status.Degraded)
		a.vm.Flash.Warn("WhatsApp unavailable: " + err.Error())
		return
	}
	_ = a.machine.Transition(status.Ready)
}

// runAuthFlow streams QR pairing events into the auth view.
func (a *App) runAuthFlow() {
	_ = a.machine.Transition(status.AuthRequired)

	events, err := a.adapter.StartQRAuth(a.ctx)
	if err != nil {
		a.app.QueueUpdateDraw(func() {
			a.authView.ShowMessage("Pairing error: " + err.Error())
		})
		return
	}

	for evt := range events {
		switch evt.Type {
		case wa.AuthEventQRCode:
			code := evt.QRCode
			a.app.QueueUpdateDraw(func() {
				a.authView.ShowQR(code)
			})
		case wa.AuthEventAuthenticated:
			_ = a.machine.Transition(status.Connecting)
			_ = a.machine.Transition(status.Ready)
			a.vm.Flash.Info("WhatsApp paired")
			a.app.QueueUpdateDraw(func() {
				a.switchTo("queue")
				a.redrawQueue()
			})
			return
		case wa.AuthEventAuthFailed, wa.AuthEventTimeout:
			msg := evt.Message
			if msg == "" {
				msg = "Pairing failed"
			}
			_ = a.machine.Transition(status.Degraded)
			a.app.QueueUpdateDraw(func() {
				a.authView.ShowMessage(msg + "\n\n[::d]Press Esc to continue without WhatsApp.")
			})
			return
		}
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
	if a.onQuit != nil {
		a.onQuit()
	}
}
