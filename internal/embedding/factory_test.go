package embedding

import (
	"fmt"
	"testing"

	"github.com/hyperjump/kotae/internal/config"
)

func TestNewEmbedder(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.EmbeddingConfig
		wantType string
		wantErr  bool
	}{
		{"hashing", config.EmbeddingConfig{Provider: "hashing", Dimensions: 32}, "*embedding.HashingEmbedder", false},
		{"mock_cached", config.EmbeddingConfig{Provider: "mock", Dimensions: 32, CacheSize: 5}, "*embedding.CachedEmbedder", false},
		{"onnx_missing_model_falls_back", config.EmbeddingConfig{Provider: "onnx", ModelPath: "/nonexistent/model.onnx", Dimensions: 32, MaxTokens: 16}, "*embedding.HashingEmbedder", false},
		{"openai_without_key", config.EmbeddingConfig{Provider: "openai", APIKeyEnv: "KOTAE_TEST_UNSET_KEY", Dimensions: 32}, "", true},
		{"unknown", config.EmbeddingConfig{Provider: "word2vec"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEmbedder(tt.cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			defer e.Close()
			if got := typeName(e); got != tt.wantType {
				t.Errorf("type = %s, want %s", got, tt.wantType)
			}
			if e.Dimensions() != 32 {
				t.Errorf("dimensions = %d", e.Dimensions())
			}
		})
	}
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
