package memory

import (
	"bytes"
	"context"
	"testing"
)

func TestBlobStorePutObjectCopiesData(t *testing.T) {
	t.Parallel()

	store := NewBlobStore()
	payload := []byte(`{"name":"Fresh Bakes"}`)
	uri, err := store.PutObject(context.Background(), "runs/r1.json", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("PutObject() error = %v", err)
	}
	if uri != "memory://runs/r1.json" {
		t.Fatalf("unexpected uri %s", uri)
	}

	payload[0] = 'X'
	stored, contentType, ok := store.Object("runs/r1.json")
	if !ok || string(stored) != `{"name":"Fresh Bakes"}` {
		t.Fatalf("expected stored copy to be immutable, got %q", stored)
	}
	if contentType != "application/json" {
		t.Fatalf("unexpected content type %q", contentType)
	}

	stored[0] = 'Y'
	again, _, _ := store.Object("runs/r1.json")
	if again[0] != '{' {
		t.Fatal("expected Object() to return a copy")
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 object, got %d", store.Len())
	}
}

func TestBlobStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := NewBlobStore().PutObject(context.Background(), "", "", bytes.NewReader(nil)); err == nil {
		t.Fatal("expected error for empty path")
	}
	if _, _, ok := NewBlobStore().Object("missing"); ok {
		t.Fatal("expected missing object")
	}
}
