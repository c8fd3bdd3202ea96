package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/pkg/utils"
)

// Default configuration values.
const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.1
	DefaultTimeout     = 60 * time.Second
)

const maxResponseBytes = 4 << 20

// Config holds client settings. Referer and Title are sent as the HTTP-Referer and
// X-Title headers OpenRouter uses for attribution. A nil Temperature means DefaultTemperature.
type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	Temperature       *float64
	Timeout           time.Duration
	RequestsPerMinute int
	Referer           string
	Title             string
	Logger            *zap.Logger
}

// Client implements Completer over HTTP.
type Client struct {
	http        *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	timeout     time.Duration
	limiter     *rate.Limiter
	referer     string
	title       string
	logger      *zap.Logger
}

var _ Completer = (*Client)(nil)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewClient returns a Client. BaseURL and APIKey are required.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("llm: base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("llm: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	temperature := DefaultTemperature
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return &Client{
		http:        &http.Client{},
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: temperature,
		timeout:     cfg.Timeout,
		limiter:     limiter,
		referer:     cfg.Referer,
		title:       cfg.Title,
		logger:      utils.OrNop(cfg.Logger),
	}, nil
}

// NewClientFromConfig builds a Client from the llm config section, reading the API key
// from the configured environment variable.
func NewClientFromConfig(cfg config.LLMConfig, logger *zap.Logger) (*Client, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("llm: environment variable %s is not set", cfg.APIKeyEnv)
	}
	c := Config{
		BaseURL:           cfg.BaseURL,
		APIKey:            key,
		Model:             cfg.Model,
		Temperature:       cfg.Temperature,
		Timeout:           cfg.Timeout,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Logger:            logger,
	}
	if cfg.Provider == "openrouter" {
		c.Referer = "https://github.com/hyperjump/kotae"
		c.Title = "kotae"
	}
	return NewClient(c)
}

// Model returns the default model name.
func (c *Client) Model() string { return c.model }

// Complete sends prompt as one user message and returns the first choice's content.
// The call is bounded by the client timeout; every failure is a *CompletionError.
func (c *Client) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.limiter.Wait(ctx); err != nil {
		return "", &CompletionError{Err: fmt.Errorf("rate limit: %w", err)}
	}

	body := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: c.temperature,
		MaxTokens:   opts.MaxTokens,
	}
	if opts.Model != "" {
		body.Model = opts.Model
	}
	if opts.Temperature != nil {
		body.Temperature = *opts.Temperature
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", &CompletionError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", &CompletionError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}
	if c.title != "" {
		req.Header.Set("X-Title", c.title)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &CompletionError{Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return "", &CompletionError{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}
	if len(raw) > maxResponseBytes {
		return "", &CompletionError{StatusCode: resp.StatusCode, Err: fmt.Errorf("response exceeds %d bytes", maxResponseBytes)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &CompletionError{StatusCode: resp.StatusCode, Err: errors.New(utils.Truncate(strings.TrimSpace(string(raw)), 300))}
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", &CompletionError{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if parsed.Error != nil {
		return "", &CompletionError{StatusCode: resp.StatusCode, Err: errors.New(parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", &CompletionError{StatusCode: resp.StatusCode, Err: errors.New("no choices returned")}
	}
	c.logger.Debug("Completion received",
		zap.String("model", body.Model),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("chars", len(parsed.Choices[0].Message.Content)))
	return parsed.Choices[0].Message.Content, nil
}
