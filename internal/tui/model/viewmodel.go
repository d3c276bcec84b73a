package model

import (
	"context"
	"sync"
	"time"

	"github.com/ptelles/sendq/internal/backend"
	"github.com/ptelles/sendq/internal/dispatch"
	"github.com/ptelles/sendq/internal/queue"
	"github.com/ptelles/sendq/internal/store"
	"github.com/ptelles/sendq/internal/tui/ui"
)

// UndoWindow is how long a canceled message can be restored before the
// cancel is confirmed against the backend.
const UndoWindow = 5 * time.Second

type pendingCancel struct {
	msg   backend.PendingMessage
	timer *time.Timer
}

// ViewModel mediates between the TUI and the queue, dispatcher, and
// dispatch history.
type ViewModel struct {
	mu         sync.RWMutex
	queue      *queue.Synchronizer
	dispatcher *dispatch.Dispatcher
	db         *store.DB
	cancels    []*pendingCancel
	history    []store.DispatchEntry

	Flash *ui.FlashModel
}

// NewViewModel creates a view model over the given collaborators. db may be
// nil when the dispatch log is unavailable.
func NewViewModel(q *queue.Synchronizer, d *dispatch.Dispatcher, db *store.DB) *ViewModel {
	return &ViewModel{
		queue:      q,
		dispatcher: d,
		db:         db,
		Flash:      ui.NewFlashModel(),
	}
}

// Queue returns the queue snapshot for rendering.
func (vm *ViewModel) Queue() queue.Snapshot {
	return vm.queue.Snapshot()
}

// Dispatcher exposes the dispatcher for send and share actions.
func (vm *ViewModel) Dispatcher() *dispatch.Dispatcher {
	return vm.dispatcher
}

// Refresh triggers an immediate fetch.
func (vm *ViewModel) Refresh(ctx context.Context) {
	vm.queue.Fetch(ctx)
}

// ApplySettings persists new settings and restarts the refresh loop.
func (vm *ViewModel) ApplySettings(ctx context.Context, backendURL, intervalInput, gatewayURL string) error {
	return vm.queue.ApplySettings(ctx, backendURL, intervalInput, gatewayURL)
}

// CancelWithUndo removes the message locally and arms a timer that confirms
// the cancel against the backend once the undo window lapses. onConfirm runs
// after confirmation, off the UI goroutine.
func (vm *ViewModel) CancelWithUndo(ctx context.Context, msg backend.PendingMessage, onConfirm func()) {
	vm.queue.Remove(msg.ID)

	pc := &pendingCancel{msg: msg}
	pc.timer = time.AfterFunc(UndoWindow, func() {
		vm.mu.Lock()
		found := false
		for i, c := range vm.cancels {
			if c == pc {
				vm.cancels = append(vm.cancels[:i], vm.cancels[i+1:]...)
				found = true
				break
			}
		}
		vm.mu.Unlock()
		if !found {
			// Undone before the window lapsed.
			return
		}
		vm.dispatcher.ConfirmCancel(ctx, msg)
		if onConfirm != nil {
			onConfirm()
		}
	})

	vm.mu.Lock()
	vm.cancels = append(vm.cancels, pc)
	vm.mu.Unlock()
}

// Undo restores the most recently canceled message, if its undo window is
// still open. Returns the restored message and true, or false when there is
// nothing to undo.
func (vm *ViewModel) Undo() (backend.PendingMessage, bool) {
	vm.mu.Lock()
	if len(vm.cancels) == 0 {
		vm.mu.Unlock()
		return backend.PendingMessage{}, false
	}
	pc := vm.cancels[len(vm.cancels)-1]
	vm.cancels = vm.cancels[:len(vm.cancels)-1]
	vm.mu.Unlock()

	pc.timer.Stop()
	vm.queue.UndoRemove(pc.msg)
	return pc.msg, true
}

// PendingCancels reports how many cancels are awaiting confirmation.
func (vm *ViewModel) PendingCancels() int {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return len(vm.cancels)
}

// LoadHistory refreshes the dispatch history from the log.
func (vm *ViewModel) LoadHistory(limit int) error {
	if vm.db == nil {
		return nil
	}
	entries, err := vm.db.ListRecentDispatches(limit)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.history = entries
	vm.mu.Unlock()
	return nil
}

// History returns the last loaded dispatch history.
func (vm *ViewModel) History() []store.DispatchEntry {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	out := make([]store.DispatchEntry, len(vm.history))
	copy(out, vm.history)
	return out
}
