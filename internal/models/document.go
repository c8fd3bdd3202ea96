// Package models defines core data structures for documents, chunks, and answers.
package models

import "time"

// Document is the registry record of one ingestion call. It is never mutated after creation.
type Document struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	StoredPath   string    `json:"stored_path"`
	ChunkCount   int       `json:"chunk_count"`
	FirstChunkID int       `json:"first_chunk_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Chunk is a bounded segment of a document's text, the unit of embedding and retrieval.
// ChunkID is the chunk's position in the corpus-wide append sequence; Ordinal is its
// position within its own document.
type Chunk struct {
	ChunkID  int    `json:"chunk_id"`
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	Ordinal  int    `json:"ordinal"`
	Text     string `json:"text"`
	Length   int    `json:"length"`
	ChunkMetadata
}

// ChunkMetadata holds the structural markers found in a chunk. The section fields are
// either all set or all nil.
type ChunkMetadata struct {
	SectionType     *string  `json:"section_type,omitempty"`
	SectionNumber   *string  `json:"section_number,omitempty"`
	SectionTitle    *string  `json:"section_title,omitempty"`
	Numbers         []string `json:"numbers,omitempty"`
	CurrencyAmounts []string `json:"currency_amounts,omitempty"`
}

// HasSection reports whether a structural pattern matched.
func (m ChunkMetadata) HasSection() bool {
	return m.SectionType != nil
}

// SectionLabel returns "<type> <number>" when a section was detected, otherwise "".
func (m ChunkMetadata) SectionLabel() string {
	if !m.HasSection() {
		return ""
	}
	label := *m.SectionType
	if m.SectionNumber != nil && *m.SectionNumber != "" {
		label += " " + *m.SectionNumber
	}
	return label
}
