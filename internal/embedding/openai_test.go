package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func embeddingsServer(t *testing.T, failFirst int, status int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/embeddings" || r.Header.Get("Authorization") != "Bearer sk-test" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if int(n) <= failFirst {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(status)
			return
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		type item struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		var resp struct {
			Data []item `json:"data"`
		}
		// Reverse order to exercise index sorting.
		for i := len(req.Input) - 1; i >= 0; i-- {
			v := make([]float32, req.Dimensions)
			v[0] = float32(i)
			resp.Data = append(resp.Data, item{Index: i, Embedding: v})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOpenAIEmbedder_batch(t *testing.T) {
	srv, calls := embeddingsServer(t, 0, 0)
	e, err := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL + "/", APIKey: "sk-test", Model: "m", Dimensions: 3})
	if err != nil {
		t.Fatal(err)
	}
	vecs, err := e.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 3 || vecs[0][0] != 0 || vecs[2][0] != 2 {
		t.Errorf("vectors out of order: %v", vecs)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Errorf("expected one request for the batch, got %d", *calls)
	}
}

func TestOpenAIEmbedder_retriesServerErrors(t *testing.T) {
	srv, calls := embeddingsServer(t, 2, http.StatusServiceUnavailable)
	e, _ := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Dimensions: 2, MaxRetries: 3})
	if _, err := e.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if atomic.LoadInt32(calls) != 3 {
		t.Errorf("calls = %d, want 3", *calls)
	}
}

func TestOpenAIEmbedder_clientErrorNotRetried(t *testing.T) {
	srv, calls := embeddingsServer(t, 5, http.StatusUnauthorized)
	e, _ := NewOpenAIEmbedder(OpenAIConfig{BaseURL: srv.URL, APIKey: "sk-test", Dimensions: 2})
	_, err := e.Embed(context.Background(), "x")
	if !errors.Is(err, ErrEmbedding) {
		t.Fatalf("expected ErrEmbedding, got %v", err)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Errorf("calls = %d, want 1", *calls)
	}
}

func TestNewOpenAIEmbedder_validation(t *testing.T) {
	if _, err := NewOpenAIEmbedder(OpenAIConfig{Dimensions: 3}); err == nil {
		t.Error("expected error without API key")
	}
	if _, err := NewOpenAIEmbedder(OpenAIConfig{APIKey: "k"}); err == nil {
		t.Error("expected error without dimensions")
	}
}
