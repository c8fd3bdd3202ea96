package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hyperjump/kotae/internal/corpus"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/vector"
)

func TestArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after question are moved first",
			args:     []string{"is theft covered", "--output", "json"},
			expected: []string{"--output", "json", "is theft covered"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"--output", "json", "is theft covered"},
			expected: []string{"--output", "json", "is theft covered"},
		},
		{
			name:     "question only returns unchanged",
			args:     []string{"is theft covered"},
			expected: []string{"is theft covered"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"grace", "period", "-server", ""},
			expected: []string{"-server", "", "grace", "period"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := argsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("argsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"maternity"}, "maternity"},
		{"multiple words", []string{"waiting", "period"}, "waiting period"},
		{"single quoted phrase", []string{"waiting period"}, "waiting period"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
server:
  port: 8081
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if !cfg.Debug || cfg.Server.Port != 8081 {
		t.Errorf("cwd config.yaml not applied: debug=%v port=%d", cfg.Debug, cfg.Server.Port)
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "kotae.yaml")
	content := `
server:
  host: "127.0.0.1"
  port: 9000
retrieval:
  top_k: 5
`
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved path = %s, want %s", resolved, configPath)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("TopK = %d, want 5", cfg.Retrieval.TopK)
	}
}

func TestLoadConfig_missingExplicitPath(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestSyncKeywordIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	index, err := vector.NewMemoryIndex(16)
	if err != nil {
		t.Fatal(err)
	}
	store := corpus.NewStore(index, embedding.NewHashingEmbedder(16),
		filepath.Join(dir, "index.bin"), filepath.Join(dir, "meta.json"))
	if err := store.Load(); err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	chunks := []*models.Chunk{
		{DocID: "d1", Filename: "policy.pdf", Ordinal: 0, Text: "Maternity expenses are covered after 24 months."},
		{DocID: "d1", Filename: "policy.pdf", Ordinal: 1, Text: "The grace period for premium payment is 30 days."},
	}
	if _, err := store.Append(ctx, chunks); err != nil {
		t.Fatal(err)
	}

	kw, err := keyword.NewBleveIndex(filepath.Join(dir, "clauses.bleve"))
	if err != nil {
		t.Fatal(err)
	}
	defer kw.Close()

	if err := syncKeywordIndex(ctx, store, kw, nil); err != nil {
		t.Fatal(err)
	}
	n, err := kw.DocCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("DocCount = %d, want 2", n)
	}

	// In sync: nothing to do.
	if err := syncKeywordIndex(ctx, store, kw, nil); err != nil {
		t.Fatal(err)
	}
}
