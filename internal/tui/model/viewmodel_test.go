package model

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ptelles/sendq/internal/backend"
	"github.com/ptelles/sendq/internal/bus"
	"github.com/ptelles/sendq/internal/dispatch"
	"github.com/ptelles/sendq/internal/queue"
	"github.com/ptelles/sendq/internal/settings"
	"go.uber.org/zap"
)

type mockStore struct {
	mu       sync.Mutex
	pending  []backend.PendingMessage
	markSent []int64
}

func (m *mockStore) ListPending(_ context.Context) ([]backend.PendingMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]backend.PendingMessage, len(m.pending))
	copy(out, m.pending)
	return out, nil
}

func (m *mockStore) MarkSent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markSent = append(m.markSent, id)
	return nil
}

func (m *mockStore) GeneratePDF(_ context.Context, _ int64) ([]byte, error) {
	return nil, nil
}

func (m *mockStore) markSentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.markSent)
}

func newTestVM(t *testing.T, remote *mockStore) *ViewModel {
	t.Helper()
	b := bus.New()
	logger := zap.NewNop()
	path := filepath.Join(t.TempDir(), "settings.toml")
	q := queue.NewWithFactory(settings.Default(), path, func(_ string) (backend.Store, error) {
		return remote, nil
	}, b, logger)
	d := dispatch.New(q, nil, nil, nil, b, logger)
	return NewViewModel(q, d, nil)
}

func TestCancelWithUndoRemovesLocally(t *testing.T) {
	remote := &mockStore{pending: []backend.PendingMessage{
		{ID: 1, FullName: "Ada"},
		{ID: 2, FullName: "Grace"},
	}}
	vm := newTestVM(t, remote)
	vm.Refresh(context.Background())

	snap := vm.Queue()
	vm.CancelWithUndo(context.Background(), snap.Messages[0], nil)

	if got := vm.Queue().Messages; len(got) != 1 || got[0].ID != 2 {
		t.Errorf("messages after cancel = %+v, want only id 2", got)
	}
	if vm.PendingCancels() != 1 {
		t.Errorf("PendingCancels() = %d, want 1", vm.PendingCancels())
	}
	// The backend must not hear about the cancel inside the undo window.
	if n := remote.markSentCount(); n != 0 {
		t.Errorf("mark-sent calls = %d, want 0 before window lapses", n)
	}
}

func TestUndoRestoresAtHead(t *testing.T) {
	remote := &mockStore{pending: []backend.PendingMessage{
		{ID: 1, FullName: "Ada"},
		{ID: 2, FullName: "Grace"},
	}}
	vm := newTestVM(t, remote)
	vm.Refresh(context.Background())

	vm.CancelWithUndo(context.Background(), vm.Queue().Messages[1], nil)

	restored, ok := vm.Undo()
	if !ok {
		t.Fatal("Undo() = false, want a restorable cancel")
	}
	if restored.ID != 2 {
		t.Errorf("restored id = %d, want 2", restored.ID)
	}
	got := vm.Queue().Messages
	if len(got) != 2 || got[0].ID != 2 {
		t.Errorf("messages after undo = %+v, want id 2 at head", got)
	}
	if vm.PendingCancels() != 0 {
		t.Errorf("PendingCancels() = %d, want 0 after undo", vm.PendingCancels())
	}
	if n := remote.markSentCount(); n != 0 {
		t.Errorf("mark-sent calls = %d, want 0 for an undone cancel", n)
	}
}

func TestUndoWithNothingPending(t *testing.T) {
	vm := newTestVM(t, &mockStore{})
	if _, ok := vm.Undo(); ok {
		t.Error("Undo() = true with no pending cancels")
	}
}

func TestUndoOrderIsLastInFirstOut(t *testing.T) {
	remote := &mockStore{pending: []backend.PendingMessage{
		{ID: 1}, {ID: 2}, {ID: 3},
	}}
	vm := newTestVM(t, remote)
	vm.Refresh(context.Background())

	msgs := vm.Queue().Messages
	vm.CancelWithUndo(context.Background(), msgs[0], nil)
	vm.CancelWithUndo(context.Background(), msgs[1], nil)

	restored, ok := vm.Undo()
	if !ok || restored.ID != 2 {
		t.Errorf("first Undo() = %d, %v; want id 2 (most recent cancel)", restored.ID, ok)
	}
	restored, ok = vm.Undo()
	if !ok || restored.ID != 1 {
		t.Errorf("second Undo() = %d, %v; want id 1", restored.ID, ok)
	}
}
