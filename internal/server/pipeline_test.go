package server

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/kotae/internal/answer"
	"github.com/hyperjump/kotae/internal/llm"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/retrieval"
)

// scriptedCompleter returns a fixed completion and records the prompts it saw.
type scriptedCompleter struct {
	mu      sync.Mutex
	out     string
	err     error
	prompts []string
}

func (c *scriptedCompleter) Complete(_ context.Context, prompt string, _ llm.CompletionOptions) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prompts = append(c.prompts, prompt)
	return c.out, c.err
}

func (c *scriptedCompleter) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prompts)
}

func pipelineHandler(env *testEnv, c llm.Completer) http.Handler {
	engine := retrieval.NewEngine(env.corpus, env.embedder, retrieval.WithTopK(3))
	synth := answer.NewSynthesizer(engine, c)
	return env.server(synth, nil).Handler()
}

func ask(t *testing.T, h http.Handler, q string) models.AnswerResponse {
	t.Helper()
	w := do(t, h, http.MethodPost, "/ask-query", strings.NewReader(`{"query":"`+q+`"}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("ask: status %d body %s", w.Code, w.Body.String())
	}
	var resp models.AnswerResponse
	decode(t, w, &resp)
	return resp
}

func TestPipeline_emptyCorpusAnswersLowWithoutCompletion(t *testing.T) {
	env := newTestEnv(t)
	c := &scriptedCompleter{out: `{"answer":"should not be used"}`}
	resp := ask(t, pipelineHandler(env, c), "What is the grace period?")
	if resp.Confidence != models.ConfidenceLow {
		t.Errorf("confidence: got %s", resp.Confidence)
	}
	if !strings.HasPrefix(resp.Answer, "I could not find any relevant information") {
		t.Errorf("answer: got %q", resp.Answer)
	}
	if resp.SourceSections == nil || len(resp.SourceSections) != 0 {
		t.Errorf("source_sections should be an empty list, got %v", resp.SourceSections)
	}
	if c.calls() != 0 {
		t.Errorf("completion should not be called, got %d", c.calls())
	}
}

func TestPipeline_uploadThenAsk(t *testing.T) {
	env := newTestEnv(t)
	c := &scriptedCompleter{out: "```json\n" + `{
		"answer": "Claims must be filed within 30 days of the incident, together with the original invoice from the repairer.",
		"confidence": "High",
		"source_sections": [{"section": "Section 2", "content": "Claims must be filed within 30 days", "relevance": "States the deadline."}],
		"additional_info": "Keep copies of every document you send."
	}` + "\n```"}
	h := pipelineHandler(env, c)

	body, ct := multipartBody(t, "file", "motor policy.txt", clauseText)
	if w := do(t, h, http.MethodPost, "/upload-docs", body, ct); w.Code != http.StatusOK {
		t.Fatalf("upload: status %d body %s", w.Code, w.Body.String())
	}

	resp := ask(t, h, "How long do I have to file a claim?")
	if resp.Confidence != models.ConfidenceHigh {
		t.Errorf("confidence: got %s", resp.Confidence)
	}
	if !strings.HasPrefix(resp.Answer, "Claims must be filed within 30 days") {
		t.Errorf("answer: got %q", resp.Answer)
	}
	if len(resp.SourceSections) != 1 || resp.SourceSections[0].Section != "Section 2" {
		t.Errorf("source_sections: got %+v", resp.SourceSections)
	}
	if resp.AdditionalInfo != "Keep copies of every document you send." {
		t.Errorf("additional_info: got %q", resp.AdditionalInfo)
	}

	if c.calls() != 1 {
		t.Fatalf("completion calls: got %d", c.calls())
	}
	prompt := c.prompts[0]
	if !strings.Contains(prompt, "User Question: How long do I have to file a claim?") {
		t.Error("prompt should carry the question")
	}
	if !strings.Contains(prompt, "Section 0:\n") {
		t.Error("prompt should label chunks by chunk id")
	}
}

func TestPipeline_degradedCompletions(t *testing.T) {
	tests := []struct {
		name       string
		completer  *scriptedCompleter
		confidence models.Confidence
		prefix     string
	}{
		{
			name:       "completion failure",
			completer:  &scriptedCompleter{err: &llm.CompletionError{StatusCode: 503, Err: context.DeadlineExceeded}},
			confidence: models.ConfidenceLow,
			prefix:     "I apologize, but I encountered an error",
		},
		{
			name:       "prose instead of json",
			completer:  &scriptedCompleter{out: "Claims are due within 30 days."},
			confidence: models.ConfidenceMedium,
			prefix:     "The system analyzed your question and found relevant information",
		},
		{
			name:       "json without answer",
			completer:  &scriptedCompleter{out: `{"reply":"30 days"}`},
			confidence: models.ConfidenceMedium,
			prefix:     "The system processed your question but returned an unexpected format",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.ingest(t, "policy.txt", clauseText)
			resp := ask(t, pipelineHandler(env, tt.completer), "When are claims due?")
			if resp.Confidence != tt.confidence {
				t.Errorf("confidence: got %s", resp.Confidence)
			}
			if !strings.HasPrefix(resp.Answer, tt.prefix) {
				t.Errorf("answer: got %q", resp.Answer)
			}
			if resp.AdditionalInfo == "" {
				t.Error("additional_info should explain the fallback")
			}
		})
	}
}
