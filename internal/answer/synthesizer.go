// Package answer turns retrieved chunks into a structured answer. It builds the prompt,
// calls the completion model, and repairs whatever comes back into an AnswerResponse.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Retriever returns the chunks most relevant to a query, best first.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]*models.QueryResult, error)
}

// Synthesizer answers questions over a Retriever and a Completer.
type Synthesizer struct {
	retriever   Retriever
	completer   llm.Completer
	topK        int
	timeout     time.Duration
	model       string
	temperature *float64
	logger      *zap.Logger
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithTopK sets how many chunks are retrieved per question. Zero defers to the retriever.
func WithTopK(k int) Option {
	return func(s *Synthesizer) { s.topK = k }
}

// WithTimeout bounds the completion call.
func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) { s.timeout = d }
}

// WithModel overrides the completion model.
func WithModel(model string) Option {
	return func(s *Synthesizer) { s.model = model }
}

// WithTemperature overrides the sampling temperature. Without it the completer default applies.
func WithTemperature(t float64) Option {
	return func(s *Synthesizer) { s.temperature = &t }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synthesizer) { s.logger = l }
}

// NewSynthesizer returns a Synthesizer.
func NewSynthesizer(retriever Retriever, completer llm.Completer, opts ...Option) *Synthesizer {
	s := &Synthesizer{retriever: retriever, completer: completer}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Answer always returns a response. With nothing retrieved it answers low confidence
// without calling the model; a failed completion also answers low; an unparseable
// completion answers medium with the raw text quoted.
func (s *Synthesizer) Answer(ctx context.Context, query string) (resp *models.AnswerResponse) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Answer panicked", zap.Any("panic", r))
			resp = unexpectedError(r)
		}
	}()

	results, err := s.retriever.Retrieve(ctx, query, s.topK)
	if err != nil {
		s.logger.Warn("Retrieval failed, answering without context", zap.Error(err))
		results = nil
	}
	if len(results) == 0 {
		s.logger.Info("No relevant chunks", zap.String("query", utils.Truncate(query, 80)))
		return NoResults()
	}

	raw, err := s.complete(ctx, BuildPrompt(query, results))
	if err != nil {
		s.logger.Error("Completion failed", zap.Error(err))
		return CompletionFailed()
	}

	resp, err = Repair(raw)
	if err != nil {
		s.logger.Warn("Repaired completion", zap.Error(err), zap.String("raw", utils.Truncate(raw, 200)))
	}
	s.logger.Debug("Answered query",
		zap.Int("chunks", len(results)),
		zap.String("confidence", string(resp.Confidence)),
	)
	return resp
}

var errEmptyCompletion = errors.New("empty completion")

func (s *Synthesizer) complete(ctx context.Context, prompt string) (string, error) {
	if s.completer == nil {
		return "", fmt.Errorf("%w: no completer configured", llm.ErrCompletion)
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	raw, err := s.completer.Complete(ctx, prompt, llm.CompletionOptions{
		Model:       s.model,
		Temperature: s.temperature,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(raw) == "" {
		return "", errEmptyCompletion
	}
	return raw, nil
}

func unexpectedError(r any) *models.AnswerResponse {
	return fallback(fmt.Sprintf(unexpectedErrorFormat, r), models.ConfidenceLow, unexpectedErrorInfo)
}
