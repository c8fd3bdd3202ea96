package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/hyperjump/kotae/pkg/utils"
)

func TestHashingEmbedder_deterministicUnitVectors(t *testing.T) {
	e := NewHashingEmbedder(64)
	ctx := context.Background()
	a, _ := e.Embed(ctx, "Grace period of thirty days")
	b, _ := e.Embed(ctx, "grace PERIOD of thirty days")
	if utils.SquaredL2(a, b) != 0 {
		t.Error("embedding should ignore case")
	}
	var norm float64
	for _, v := range a {
		norm += float64(v * v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("norm^2 = %v, want 1", norm)
	}
}

func TestHashingEmbedder_sharedWordsAreCloser(t *testing.T) {
	e := NewHashingEmbedder(384)
	vecs, err := e.EmbedBatch(context.Background(), []string{
		"maternity benefits waiting period",
		"the maternity waiting period is nine months",
		"vehicle collision towing charges",
	})
	if err != nil {
		t.Fatal(err)
	}
	near := utils.SquaredL2(vecs[0], vecs[1])
	far := utils.SquaredL2(vecs[0], vecs[2])
	if near >= far {
		t.Errorf("expected overlapping text to be closer: near=%v far=%v", near, far)
	}
}

func TestHashingEmbedder_emptyText(t *testing.T) {
	v, err := NewHashingEmbedder(16).Embed(context.Background(), "  ... ")
	if err != nil {
		t.Fatal(err)
	}
	for _, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, got %v", v)
		}
	}
}

func TestHashingEmbedder_canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewHashingEmbedder(16).EmbedBatch(ctx, []string{"a"}); err == nil {
		t.Error("expected context error")
	}
}

func TestHashingEmbedder_highHashBucket(t *testing.T) {
	for _, dims := range []int{7, 16, 384} {
		v, err := NewHashingEmbedder(dims).Embed(context.Background(), "coverage premium policyholder")
		if err != nil {
			t.Fatal(err)
		}
		nonzero := 0
		for _, x := range v {
			if x != 0 {
				nonzero++
			}
		}
		if nonzero == 0 {
			t.Errorf("dims=%d: expected hashed terms, got zero vector", dims)
		}
	}
}

func TestIdentity(t *testing.T) {
	tests := []struct {
		e    Embedder
		want string
	}{
		{NewHashingEmbedder(384), "hashing/384"},
		{NewMockEmbedder(16), "mock/16"},
		{NewCachedEmbedder(NewHashingEmbedder(8), 4), "hashing/8"},
	}
	for _, tt := range tests {
		if got := Identity(tt.e); got != tt.want {
			t.Errorf("Identity() = %q, want %q", got, tt.want)
		}
	}
}
