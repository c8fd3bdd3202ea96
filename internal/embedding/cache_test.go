package embedding

import (
	"context"
	"errors"
	"testing"
)

func TestEmbeddingCache_GetSet(t *testing.T) {
	c := NewEmbeddingCache(2)
	if v, ok := c.Get("a"); ok || v != nil {
		t.Fatal("expected miss")
	}
	c.Set("a", []float32{1, 2, 3})
	v, ok := c.Get("a")
	if !ok || len(v) != 3 || v[0] != 1 {
		t.Errorf("Get: got %v, %v", v, ok)
	}
	c.Set("b", []float32{4, 5})
	c.Get("a")               // a becomes most recent
	c.Set("c", []float32{6}) // evicts b
	if _, ok := c.Get("b"); ok {
		t.Error("expected b to be evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("expected a to remain after a refreshing Get")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d", c.Len())
	}
}

func TestCachedEmbedder_batchForwardsMissesOnly(t *testing.T) {
	inner := NewMockEmbedder(8)
	c := NewCachedEmbedder(inner, 10)
	ctx := context.Background()

	first, err := c.EmbedBatch(ctx, []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.Calls() != 1 {
		t.Fatalf("inner calls = %d", inner.Calls())
	}
	second, err := c.EmbedBatch(ctx, []string{"b", "a"})
	if err != nil {
		t.Fatal(err)
	}
	if inner.Calls() != 1 {
		t.Errorf("fully cached batch should not reach the inner embedder, calls = %d", inner.Calls())
	}
	if second[0][0] != first[1][0] || second[1][0] != first[0][0] {
		t.Error("cached vectors returned out of order")
	}
	if c.Dimensions() != 8 {
		t.Errorf("Dimensions = %d", c.Dimensions())
	}
}

func TestCachedEmbedder_errorNotCached(t *testing.T) {
	inner := NewMockEmbedder(4)
	inner.Err = ErrEmbedding
	c := NewCachedEmbedder(inner, 10)
	if _, err := c.Embed(context.Background(), "x"); !errors.Is(err, ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	inner.Err = nil
	if _, err := c.Embed(context.Background(), "x"); err != nil {
		t.Fatal(err)
	}
	if inner.Calls() != 2 {
		t.Errorf("failed result should not be cached, calls = %d", inner.Calls())
	}
}
