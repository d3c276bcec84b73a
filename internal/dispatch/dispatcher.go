// Package dispatch implements the user-triggered send and cancel actions.
// Every action is best-effort: delivery failures surface as a flash notice
// and a dispatch-log row, never as state corruption, and nothing is retried.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ptelles/sendq/internal/backend"
	"github.com/ptelles/sendq/internal/bus"
	"github.com/ptelles/sendq/internal/queue"
	"github.com/ptelles/sendq/internal/smsgw"
	"github.com/ptelles/sendq/internal/store"
	"go.uber.org/zap"
)

// WhatsAppSender is the WhatsApp transport used for share actions.
type WhatsAppSender interface {
	SendText(ctx context.Context, phone, text string) (string, error)
	SendDocument(ctx context.Context, phone, path, filename, caption string) (string, error)
}

// ErrNoDocument reports that the backend has no PDF for a message's record.
var ErrNoDocument = fmt.Errorf("no relevant document")

// ErrNoGateway reports that no SMS gateway is configured.
var ErrNoGateway = fmt.Errorf("no SMS gateway configured")

// Dispatcher performs send/cancel actions against the queue, the SMS
// gateway, and the WhatsApp session.
type Dispatcher struct {
	queue  *queue.Synchronizer
	mu     sync.Mutex
	gw     smsgw.Sender // nil when no gateway URL is configured
	wa     WhatsAppSender
	db     *store.DB
	bus    *bus.Bus
	logger *zap.Logger
}

// New creates a Dispatcher. gateway and wa may be nil; the matching actions
// then fail with a capability error instead of a network error.
func New(q *queue.Synchronizer, gateway smsgw.Sender, wa WhatsAppSender, db *store.DB, b *bus.Bus, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		queue:  q,
		gw:     gateway,
		wa:     wa,
		db:     db,
		bus:    b,
		logger: logger,
	}
}

// SetGateway swaps the SMS gateway after a settings change. A nil sender
// disables the SMS channel.
func (d *Dispatcher) SetGateway(g smsgw.Sender) {
	d.mu.Lock()
	d.gw = g
	d.mu.Unlock()
}

func (d *Dispatcher) gateway() smsgw.Sender {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gw
}

// SendOne delivers a single message through the SMS gateway. On gateway
// failure nothing changes locally. On success the message leaves the local
// list immediately; the mark-sent call is fired afterwards and its failure
// only logged, so the backend may briefly disagree until the next fetch.
func (d *Dispatcher) SendOne(ctx context.Context, msg backend.PendingMessage) error {
	gw := d.gateway()
	if gw == nil {
		return ErrNoGateway
	}

	phone := digitsOnly(msg.Phone)
	if err := gw.Send(ctx, phone, msg.Body); err != nil {
		d.logger.Warn("sms send failed", zap.Int64("id", msg.ID), zap.Error(err))
		d.record(msg, store.ChannelSMS, store.OutcomeFailed, err)
		d.publish(bus.KindDispatchFailed, msg.ID)
		return err
	}

	d.markSentBestEffort(ctx, msg, store.ChannelSMS)
	d.queue.Remove(msg.ID)
	d.publish(bus.KindDispatchSent, msg.ID)
	return nil
}

// SendAll attempts send-then-mark-sent for every message currently in the
// queue, in list order. Per-item failures are logged and skipped; the pass
// always ends with one fetch so the list reflects server truth, including
// anything that failed to mark sent.
func (d *Dispatcher) SendAll(ctx context.Context) {
	snap := d.queue.Snapshot()
	d.queue.SetRefreshing(true)

	gw := d.gateway()
	sent := 0
	for _, msg := range snap.Messages {
		if gw == nil {
			d.logger.Warn("bulk send skipped, no SMS gateway configured")
			break
		}
		phone := digitsOnly(msg.Phone)
		if err := gw.Send(ctx, phone, msg.Body); err != nil {
			d.logger.Warn("bulk send item failed", zap.Int64("id", msg.ID), zap.Error(err))
			d.record(msg, store.ChannelSMS, store.OutcomeFailed, err)
			continue
		}
		d.markSentBestEffort(ctx, msg, store.ChannelSMS)
		sent++
	}

	d.logger.Info("bulk send finished", zap.Int("sent", sent), zap.Int("total", len(snap.Messages)))
	d.queue.Fetch(ctx)
}

// CancelAll marks every queued message sent on the backend without
// delivering anything, then resynchronizes.
func (d *Dispatcher) CancelAll(ctx context.Context) {
	snap := d.queue.Snapshot()
	d.queue.SetRefreshing(true)

	client := d.queue.Client()
	for _, msg := range snap.Messages {
		if client == nil {
			d.logger.Warn("bulk cancel skipped, no backend client")
			break
		}
		if err := client.MarkSent(ctx, msg.ID); err != nil {
			d.logger.Warn("bulk cancel item failed", zap.Int64("id", msg.ID), zap.Error(err))
			d.record(msg, store.ChannelSMS, store.OutcomeFailed, err)
			continue
		}
		d.record(msg, store.ChannelSMS, store.OutcomeCanceled, nil)
		d.publish(bus.KindDispatchCanceled, msg.ID)
	}

	d.queue.Fetch(ctx)
}

// ConfirmCancel completes the optimistic single-cancel protocol once the
// undo window lapses, and records the outcome.
func (d *Dispatcher) ConfirmCancel(ctx context.Context, msg backend.PendingMessage) {
	if err := d.queue.ConfirmCancel(ctx, msg); err != nil {
		d.record(msg, store.ChannelSMS, store.OutcomeFailed, err)
		return
	}
	d.record(msg, store.ChannelSMS, store.OutcomeCanceled, nil)
	d.publish(bus.KindDispatchCanceled, msg.ID)
}

// ShareWhatsApp sends the message body to the recipient over WhatsApp. With
// attachPDF it first asks the backend for the record's PDF; an empty body
// means no document exists and nothing is written or shared. The message is
// not removed from the queue by a share, matching the deliberate behavior of
// leaving mark-sent to the explicit send/cancel actions.
func (d *Dispatcher) ShareWhatsApp(ctx context.Context, msg backend.PendingMessage, attachPDF bool) error {
	if d.wa == nil {
		return fmt.Errorf("whatsapp session not connected")
	}
	phone := digitsOnly(msg.Phone)

	if !attachPDF {
		if _, err := d.wa.SendText(ctx, phone, msg.Body); err != nil {
			d.logger.Warn("whatsapp share failed", zap.Int64("id", msg.ID), zap.Error(err))
			d.record(msg, store.ChannelWhatsApp, store.OutcomeFailed, err)
			d.publish(bus.KindDispatchFailed, msg.ID)
			return err
		}
		d.record(msg, store.ChannelWhatsApp, store.OutcomeSent, nil)
		d.publish(bus.KindDispatchSent, msg.ID)
		return nil
	}

	client := d.queue.Client()
	if client == nil {
		return fmt.Errorf("no backend client")
	}
	data, err := client.GeneratePDF(ctx, msg.JobcardRefID)
	if err != nil {
		d.logger.Warn("pdf fetch failed", zap.Int64("jobcard", msg.JobcardRefID), zap.Error(err))
		d.record(msg, store.ChannelWhatsAppPDF, store.OutcomeFailed, err)
		return err
	}
	if len(data) == 0 {
		return ErrNoDocument
	}

	// Stage the document on disk so a crash mid-upload leaves a plain temp
	// file rather than a half-sent message.
	path := filepath.Join(os.TempDir(), fmt.Sprintf("sendq-%s.pdf", uuid.New().String()))
	if err := os.WriteFile(path, data, 0600); err != nil {
		d.record(msg, store.ChannelWhatsAppPDF, store.OutcomeFailed, err)
		return fmt.Errorf("write temp pdf: %w", err)
	}
	defer func() { _ = os.Remove(path) }()

	filename := fmt.Sprintf("jobcard-%d.pdf", msg.JobcardRefID)
	if _, err := d.wa.SendDocument(ctx, phone, path, filename, msg.Body); err != nil {
		d.logger.Warn("whatsapp pdf share failed", zap.Int64("id", msg.ID), zap.Error(err))
		d.record(msg, store.ChannelWhatsAppPDF, store.OutcomeFailed, err)
		d.publish(bus.KindDispatchFailed, msg.ID)
		return err
	}
	d.record(msg, store.ChannelWhatsAppPDF, store.OutcomeSent, nil)
	d.publish(bus.KindDispatchSent, msg.ID)
	return nil
}

// markSentBestEffort fires mark-sent after a successful delivery. The local
// removal is not conditioned on it; a lost confirmation is recorded so the
// audit log explains why the item reappears on the next fetch.
func (d *Dispatcher) markSentBestEffort(ctx context.Context, msg backend.PendingMessage, channel string) {
	client := d.queue.Client()
	if client == nil {
		d.record(msg, channel, store.OutcomeMarkSentLost, fmt.Errorf("no backend client"))
		return
	}
	if err := client.MarkSent(ctx, msg.ID); err != nil {
		d.logger.Warn("mark-sent failed after delivery", zap.Int64("id", msg.ID), zap.Error(err))
		d.record(msg, channel, store.OutcomeMarkSentLost, err)
		return
	}
	d.record(msg, channel, store.OutcomeSent, nil)
}

func (d *Dispatcher) record(msg backend.PendingMessage, channel, outcome string, cause error) {
	if d.db == nil {
		return
	}
	entry := &store.DispatchEntry{
		EntryID:   uuid.New().String(),
		MessageID: msg.ID,
		Recipient: msg.FullName,
		Phone:     msg.Phone,
		Channel:   channel,
		Outcome:   outcome,
	}
	if cause != nil {
		entry.ErrorMessage = cause.Error()
	}
	if err := d.db.RecordDispatch(entry); err != nil {
		d.logger.Warn("dispatch log write failed", zap.Error(err))
	}
}

func (d *Dispatcher) publish(kind string, payload any) {
	if d.bus == nil {
		return
	}
	d.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// digitsOnly strips everything but digits from a phone number.
func digitsOnly(phone string) string {
	var sb strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
