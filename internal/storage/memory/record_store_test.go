package memory

import (
	"context"
	"testing"

	"github.com/JakeFAU/snapshot-service/internal/snapshot"
)

func TestRecordStoreSaveAndGet(t *testing.T) {
	t.Parallel()

	store := NewRecordStore()
	rec := snapshot.Record{ID: "id-1", Kind: snapshot.KindURL, Source: "https://example.com"}
	if err := store.SaveRecord(context.Background(), rec); err != nil {
		t.Fatalf("SaveRecord() error = %v", err)
	}
	got, ok := store.Get("id-1")
	if !ok || got.Source != rec.Source {
		t.Fatalf("unexpected record %+v", got)
	}
	if err := store.SaveRecord(context.Background(), rec); err == nil {
		t.Fatal("expected duplicate id error")
	}
	if err := store.SaveRecord(context.Background(), snapshot.Record{}); err == nil {
		t.Fatal("expected missing id error")
	}
	if n := len(store.Records()); n != 1 {
		t.Fatalf("expected 1 record, got %d", n)
	}
}
