package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/hyperjump/kotae/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "db", "documents.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStorage_createAndGet(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	doc := &models.Document{
		ID:           "doc1",
		Filename:     "policy.pdf",
		StoredPath:   "/uploads/doc1_policy.pdf",
		ChunkCount:   4,
		FirstChunkID: 10,
	}
	if err := store.CreateDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}
	if doc.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}

	got, err := store.GetDocument(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Filename != "policy.pdf" || got.StoredPath != doc.StoredPath || got.ChunkCount != 4 || got.FirstChunkID != 10 {
		t.Errorf("got %+v", got)
	}

	if err := store.CreateDocument(ctx, &models.Document{ID: "doc1", Filename: "again.pdf"}); err == nil {
		t.Error("expected error inserting a duplicate id")
	}
}

func TestSQLiteStorage_notFound(t *testing.T) {
	store := newTestStorage(t)
	_, err := store.GetDocument(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteStorage_listInIngestionOrder(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	docs := []*models.Document{
		{ID: "c", Filename: "c.txt", ChunkCount: 1, FirstChunkID: 5},
		{ID: "a", Filename: "a.txt", ChunkCount: 3, FirstChunkID: 0},
		{ID: "b", Filename: "b.txt", ChunkCount: 2, FirstChunkID: 3},
	}
	for _, d := range docs {
		if err := store.CreateDocument(ctx, d); err != nil {
			t.Fatal(err)
		}
	}

	list, err := store.ListDocuments(ctx, 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	var ids []string
	for _, d := range list {
		ids = append(ids, d.ID)
	}
	if len(ids) != 3 || ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("order: got %v", ids)
	}

	page, _ := store.ListDocuments(ctx, 1, 1)
	if len(page) != 1 || page[0].ID != "b" {
		t.Errorf("page: got %v", page)
	}

	n, err := store.CountDocuments(ctx)
	if err != nil || n != 3 {
		t.Errorf("CountDocuments = %d, %v", n, err)
	}
}
