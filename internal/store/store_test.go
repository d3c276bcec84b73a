package store

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	res, err := db.Migrate()
	if err != nil {
		t.Fatalf("first Migrate() error = %v", err)
	}
	if !res.Changed {
		t.Error("first Migrate() should apply changes")
	}

	res, err = db.Migrate()
	if err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	if res.Changed {
		t.Error("second Migrate() should be a no-op")
	}
}

func TestRecordAndListDispatches(t *testing.T) {
	db := testDB(t)

	entries := []*DispatchEntry{
		{EntryID: uuid.New().String(), MessageID: 1, Recipient: "A", Phone: "15550001", Channel: ChannelSMS, Outcome: OutcomeSent},
		{EntryID: uuid.New().String(), MessageID: 2, Recipient: "B", Phone: "15550002", Channel: ChannelWhatsApp, Outcome: OutcomeFailed, ErrorMessage: "not logged in"},
		{EntryID: uuid.New().String(), MessageID: 3, Recipient: "C", Phone: "15550003", Channel: ChannelWhatsAppPDF, Outcome: OutcomeSent},
	}
	for _, e := range entries {
		if err := db.RecordDispatch(e); err != nil {
			t.Fatalf("RecordDispatch(%d) error = %v", e.MessageID, err)
		}
	}

	got, err := db.ListRecentDispatches(10)
	if err != nil {
		t.Fatalf("ListRecentDispatches() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	// Newest first.
	if got[0].MessageID != 3 {
		t.Errorf("first entry message_id = %d, want 3 (newest first)", got[0].MessageID)
	}
	if got[1].Outcome != OutcomeFailed || got[1].ErrorMessage != "not logged in" {
		t.Errorf("failed entry = %+v", got[1])
	}
}

func TestListRecentDispatchesLimit(t *testing.T) {
	db := testDB(t)
	for i := int64(1); i <= 5; i++ {
		e := &DispatchEntry{EntryID: uuid.New().String(), MessageID: i, Recipient: "X", Phone: "1", Channel: ChannelSMS, Outcome: OutcomeSent}
		if err := db.RecordDispatch(e); err != nil {
			t.Fatal(err)
		}
	}
	got, err := db.ListRecentDispatches(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Errorf("got %d entries, want 2", len(got))
	}
}
