package embedding

import (
	"fmt"
	"os"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/pkg/utils"
	"go.uber.org/zap"
)

// Provider names accepted in embedding.provider.
const (
	ProviderONNX    = "onnx"
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
	ProviderMock    = "mock"
)

// NewEmbedder builds the configured embedder, wrapped in an LRU cache when cache_size > 0.
// An onnx provider that cannot load falls back to the hashing embedder with a warning.
func NewEmbedder(cfg config.EmbeddingConfig, logger *zap.Logger) (Embedder, error) {
	logger = utils.OrNop(logger)

	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case ProviderONNX, "":
		e, err = NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
		if err != nil {
			logger.Warn("ONNX embedder unavailable, using hashing embedder",
				zap.String("model_path", cfg.ModelPath), zap.Error(err))
			e, err = NewHashingEmbedder(cfg.Dimensions), nil
		}
	case ProviderOpenAI:
		e, err = NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     os.Getenv(cfg.APIKeyEnv),
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
	case ProviderHashing:
		e = NewHashingEmbedder(cfg.Dimensions)
	case ProviderMock:
		e = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: onnx, openai, hashing, mock)", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	if cfg.CacheSize > 0 {
		e = NewCachedEmbedder(e, cfg.CacheSize)
	}
	logger.Info("Embedder ready", zap.String("provider", cfg.Provider), zap.Int("dimensions", e.Dimensions()))
	return e, nil
}
