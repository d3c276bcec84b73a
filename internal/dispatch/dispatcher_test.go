package dispatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ptelles/sendq/internal/backend"
	"github.com/ptelles/sendq/internal/bus"
	"github.com/ptelles/sendq/internal/queue"
	"github.com/ptelles/sendq/internal/settings"
	"go.uber.org/zap"
)

// mockStore is a controllable backend.Store shared by the queue and the
// dispatcher under test.
type mockStore struct {
	mu        sync.Mutex
	pending   []backend.PendingMessage
	listCalls int
	markSent  []int64
	markErr   error
	pdf       []byte
	pdfErr    error
	pdfCalls  int
}

func (m *mockStore) ListPending(_ context.Context) ([]backend.PendingMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	out := make([]backend.PendingMessage, len(m.pending))
	copy(out, m.pending)
	return out, nil
}

func (m *mockStore) MarkSent(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markSent = append(m.markSent, id)
	return m.markErr
}

func (m *mockStore) GeneratePDF(_ context.Context, _ int64) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pdfCalls++
	return m.pdf, m.pdfErr
}

// mockGateway records SMS sends and fails on configured phone numbers.
type mockGateway struct {
	calls   []string
	failFor map[string]bool
}

func (g *mockGateway) Send(_ context.Context, phone, _ string) error {
	g.calls = append(g.calls, phone)
	if g.failFor[phone] {
		return fmt.Errorf("gateway rejected %s", phone)
	}
	return nil
}

// mockWA records WhatsApp sends.
type mockWA struct {
	texts []string
	docs  []string
	err   error
}

func (w *mockWA) SendText(_ context.Context, phone, _ string) (string, error) {
	w.texts = append(w.texts, phone)
	return "srv-1", w.err
}

func (w *mockWA) SendDocument(_ context.Context, phone, _, _, _ string) (string, error) {
	w.docs = append(w.docs, phone)
	return "srv-2", w.err
}

func msg(id int64) backend.PendingMessage {
	return backend.PendingMessage{
		ID:           id,
		FullName:     fmt.Sprintf("Customer %d", id),
		Phone:        fmt.Sprintf("+1 (555) 000-%04d", id),
		Body:         "Your order is ready",
		JobcardRefID: id * 10,
		Flag:         true,
	}
}

func newTestQueue(t *testing.T, remote *mockStore) *queue.Synchronizer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.toml")
	return queue.NewWithFactory(settings.Default(), path, func(_ string) (backend.Store, error) {
		return remote, nil
	}, bus.New(), zap.NewNop())
}

func TestSendOne(t *testing.T) {
	remote := &mockStore{pending: []backend.PendingMessage{msg(1), msg(2)}}
	q := newTestQueue(t, remote)
	q.Fetch(context.Background())

	gw := &mockGateway{}
	d := New(q, gw, nil, nil, bus.New(), zap.NewNop())

	if err := d.SendOne(context.Background(), msg(1)); err != nil {
		t.Fatalf("SendOne() error = %v", err)
	}

	// Gateway got digits only.
	if len(gw.calls) != 1 || gw.calls[0] != "15550000001" {
		t.Errorf("gateway calls = %v, want [15550000001]", gw.calls)
	}
	// Mark-sent fired for the message.
	if len(remote.markSent) != 1 || remote.markSent[0] != 1 {
		t.Errorf("mark-sent calls = %v, want [1]", remote.markSent)
	}
	// Message left the local list.
	snap := q.Snapshot()
	if len(snap.Messages) != 1 || snap.Messages[0].ID != 2 {
		t.Errorf("messages = %+v, want only id 2", snap.Messages)
	}
}

func TestSendOneGatewayFailureLeavesStateUntouched(t *testing.T) {
	remote := &mockStore{pending: []backend.PendingMessage{msg(1)}}
	q := newTestQueue(t, remote)
	q.Fetch(context.Background())

	gw := &mockGateway{failFor: map[string]bool{"15550000001": true}}
	d := New(q, gw, nil, nil, bus.New(), zap.NewNop())

	if err := d.SendOne(context.Background(), msg(1)); err == nil {
		t.Fatal("SendOne() expected error")
	}
	if len(remote.markSent) != 0 {
		t.Errorf("mark-sent calls = %v, want none after failed send", remote.markSent)
	}
	if snap := q.Snapshot(); len(snap.Messages) != 1 {
		t.Errorf("messages = %+v, want unchanged", snap.Messages)
	}
}

func TestSendOneRemovesEvenWhenMarkSentFails(t *testing.T) {
	remote := &mockStore{pending: []backend.PendingMessage{msg(1)}, markErr: fmt.Errorf("backend down")}
	q := newTestQueue(t, remote)
	q.Fetch(context.Background())

	d := New(q, &mockGateway{}, nil, nil, bus.New(), zap.NewNop())

	if err := d.SendOne(context.Background(), msg(1)); err != nil {
		t.Fatalf("SendOne() error = %v (mark-sent failure must not surface)", err)
	}
	if snap := q.Snapshot(); len(snap.Messages) != 0 {
		t.Errorf("messages = %+v, want removed despite mark-sent failure", snap.Messages)
	}
}

func TestSendOneNoGateway(t *testing.T) {
	remote := &mockStore{pending: []backend.PendingMessage{msg(1)}}
	q := newTestQueue(t, remote)
	q.Fetch(context.Background())

	d := New(q, nil, nil, nil, bus.New(), zap.NewNop())

	if err := d.SendOne(context.Background(), msg(1)); !errors.Is(err, ErrNoGateway) {
		t.Errorf("SendOne() error = %v, want ErrNoGateway", err)
	}
	if snap := q.Snapshot(); len(snap.Messages) != 1 {
		t.Errorf("messages = %+v, want unchanged", snap.Messages)
	}
}

func TestSendAllContinuesPastFailures(t *testing.T) {
	remote := &mockStore{pending: []backend.PendingMessage{msg(1), msg(2), msg(3)}}
	q := newTestQueue(t, remote)
	q.Fetch(context.Background())
	listCallsBefore := remote.listCalls

	gw := &mockGateway{failFor: map[string]bool{"15550000002": true}}
	d := New(q, gw, nil, nil, bus.New(), zap.NewNop())

	d.SendAll(context.Background())

	// Every item attempted, in list order.
	want := []string{"15550000001", "15550000002", "15550000003"}
	if len(gw.calls) != 3 {
		t.Fatalf("gateway calls = %v, want %v", gw.calls, want)
	}
	for i, p := range want {
		if gw.calls[i] != p {
			t.Errorf("call %d = %q, want %q", i, gw.calls[i], p)
		}
	}
	// Mark-sent only for the two that delivered.
	if len(remote.markSent) != 2 {
		t.Errorf("mark-sent calls = %v, want ids 1 and 3 only", remote.markSent)
	}
	// Exactly one resynchronizing fetch at the end.
	if got := remote.listCalls - listCallsBefore; got != 1 {
		t.Errorf("fetches during SendAll = %d, want 1", got)
	}
	if q.Snapshot().Refreshing {
		t.Error("refreshing should end false")
	}
}

func TestCancelAllMarksEverythingWithoutSending(t *testing.T) {
	remote := &mockStore{pending: []backend.PendingMessage{msg(1), msg(2)}}
	q := newTestQueue(t, remote)
	q.Fetch(context.Background())
	listCallsBefore := remote.listCalls

	gw := &mockGateway{}
	d := New(q, gw, nil, nil, bus.New(), zap.NewNop())

	d.CancelAll(context.Background())

	if len(gw.calls) != 0 {
		t.Errorf("gateway calls = %v, want none for cancel", gw.calls)
	}
	if len(remote.markSent) != 2 {
		t.Errorf("mark-sent calls = %v, want both ids", remote.markSent)
	}
	if got := remote.listCalls - listCallsBefore; got != 1 {
		t.Errorf("fetches during CancelAll = %d, want 1", got)
	}
}

func TestShareWhatsAppText(t *testing.T) {
	remote := &mockStore{}
	q := newTestQueue(t, remote)
	wa := &mockWA{}
	d := New(q, nil, wa, nil, bus.New(), zap.NewNop())

	if err := d.ShareWhatsApp(context.Background(), msg(1), false); err != nil {
		t.Fatalf("ShareWhatsApp() error = %v", err)
	}
	if len(wa.texts) != 1 || wa.texts[0] != "15550000001" {
		t.Errorf("wa texts = %v, want [15550000001]", wa.texts)
	}
	if remote.pdfCalls != 0 {
		t.Error("text share must not fetch a PDF")
	}
}

func TestShareWhatsAppEmptyPDFIsNoDocument(t *testing.T) {
	remote := &mockStore{pdf: nil}
	q := newTestQueue(t, remote)
	wa := &mockWA{}
	d := New(q, nil, wa, nil, bus.New(), zap.NewNop())

	err := d.ShareWhatsApp(context.Background(), msg(1), true)
	if !errors.Is(err, ErrNoDocument) {
		t.Fatalf("ShareWhatsApp() error = %v, want ErrNoDocument", err)
	}
	if len(wa.docs) != 0 {
		t.Error("no share may happen when the backend has no document")
	}
}

func TestShareWhatsAppWithPDF(t *testing.T) {
	remote := &mockStore{pdf: []byte("%PDF-1.4 fake")}
	q := newTestQueue(t, remote)
	wa := &mockWA{}
	d := New(q, nil, wa, nil, bus.New(), zap.NewNop())

	if err := d.ShareWhatsApp(context.Background(), msg(1), true); err != nil {
		t.Fatalf("ShareWhatsApp() error = %v", err)
	}
	if remote.pdfCalls != 1 {
		t.Errorf("pdf calls = %d, want 1", remote.pdfCalls)
	}
	if len(wa.docs) != 1 || wa.docs[0] != "15550000001" {
		t.Errorf("wa docs = %v, want [15550000001]", wa.docs)
	}
}

func TestDigitsOnly(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"+1 (555) 000-1234", "15550001234"},
		{"15550001234", "15550001234"},
		{"tel:+27-82-555-0000", "27825550000"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := digitsOnly(tt.in); got != tt.want {
			t.Errorf("digitsOnly(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
