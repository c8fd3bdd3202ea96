package models

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		in     string
		want   Confidence
		wantOK bool
	}{
		{"high", ConfidenceHigh, true},
		{" Medium ", ConfidenceMedium, true},
		{"LOW", ConfidenceLow, true},
		{"high/medium/low", ConfidenceMedium, false},
		{"", ConfidenceMedium, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseConfidence(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseConfidence(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestChunkJSON_flattensMetadata(t *testing.T) {
	typ, num, title := "Clause", "4.2", "Waiting period"
	ch := Chunk{
		ChunkID: 7,
		DocID:   "d1",
		Text:    "Clause 4.2: Waiting period",
		ChunkMetadata: ChunkMetadata{
			SectionType:   &typ,
			SectionNumber: &num,
			SectionTitle:  &title,
		},
	}
	b, err := json.Marshal(ch)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	for _, want := range []string{`"chunk_id":7`, `"section_type":"Clause"`, `"section_number":"4.2"`} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %s in %s", want, s)
		}
	}
	if strings.Contains(s, "currency_amounts") {
		t.Errorf("empty currency_amounts should be omitted: %s", s)
	}
	if ch.SectionLabel() != "Clause 4.2" {
		t.Errorf("SectionLabel = %q", ch.SectionLabel())
	}
}

func TestChunkMetadata_noSection(t *testing.T) {
	var m ChunkMetadata
	if m.HasSection() || m.SectionLabel() != "" {
		t.Error("zero metadata should report no section")
	}
}
