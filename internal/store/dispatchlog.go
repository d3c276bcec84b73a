package store

import "time"

// Dispatch channels.
const (
	ChannelSMS         = "sms"
	ChannelWhatsApp    = "whatsapp"
	ChannelWhatsAppPDF = "whatsapp_pdf"
)

// Dispatch outcomes.
const (
	OutcomeSent         = "sent"
	OutcomeFailed       = "failed"
	OutcomeCanceled     = "canceled"
	OutcomeMarkSentLost = "mark_sent_lost" // delivered but the backend was never told
)

// DispatchEntry is one row of the dispatch audit log.
type DispatchEntry struct {
	ID           int64
	EntryID      string
	MessageID    int64
	Recipient    string
	Phone        string
	Channel      string
	Outcome      string
	ErrorMessage string
	CreatedAt    int64
}

// RecordDispatch appends an entry to the dispatch log.
func (db *DB) RecordDispatch(e *DispatchEntry) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO dispatch_log (entry_id, message_id, recipient, phone, channel, outcome, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EntryID, e.MessageID, e.Recipient, e.Phone, e.Channel, e.Outcome, e.ErrorMessage, now)
	return err
}

// ListRecentDispatches returns the newest entries, newest first.
func (db *DB) ListRecentDispatches(limit int) ([]DispatchEntry, error) {
	rows, err := db.Query(`
		SELECT id, entry_id, message_id, recipient, phone, channel, outcome, error_message, created_at
		FROM dispatch_log ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []DispatchEntry
	for rows.Next() {
		var e DispatchEntry
		if err := rows.Scan(&e.ID, &e.EntryID, &e.MessageID, &e.Recipient, &e.Phone, &e.Channel, &e.Outcome, &e.ErrorMessage, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
