package eventstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/lectiolabs/lectio-core/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	ctx := context.Background()
	cfg := config.EventStoreConfig{RetentionMode: "ephemeral"}
	es, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })
	if err := es.Ensure(); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if err := es.AppendEvent(ctx, Event{DocumentID: "doc", Type: "noop"}); err != nil {
		t.Fatalf("ephemeral append should no-op: %v", err)
	}
}

func TestAppendAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "events.db"), RetentionMode: "document"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	documentID := "doc-123"
	if err := es.AppendDocument(context.Background(), documentID, "My Novel", 4); err != nil {
		t.Fatalf("append document: %v", err)
	}
	if err := es.AppendEvent(context.Background(), Event{
		DocumentID: documentID,
		SectionID:  "sec-1",
		Type:       "section.completed",
		Payload:    []byte("hello"),
	}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	events, err := es.ListDocumentEvents(context.Background(), documentID, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if string(events[0].Payload) != "hello" || events[0].SectionID != "sec-1" {
		t.Fatalf("unexpected event: %+v", events[0])
	}
}

func TestPruneByDaysAndDocuments(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "events.db"), RetentionMode: "persistent", RetentionDays: 1, MaxDocuments: 1}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	es.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendDocument(context.Background(), "old-doc", "Old", 1); err != nil {
		t.Fatalf("append document: %v", err)
	}
	if err := es.AppendEvent(context.Background(), Event{DocumentID: "old-doc", Type: "note"}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	es.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := es.AppendDocument(context.Background(), "new-doc", "New", 1); err != nil {
		t.Fatalf("append document: %v", err)
	}
	if err := es.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	events, err := es.ListDocumentEvents(context.Background(), "old-doc", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected old document pruned")
	}
}
