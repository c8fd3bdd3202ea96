package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/kotae/internal/models"
)

const (
	fieldText         = "text"
	fieldFilename     = "filename"
	fieldSectionTitle = "section_title"
)

// clauseDoc is the indexed form of a chunk.
type clauseDoc struct {
	Text         string `json:"text"`
	Filename     string `json:"filename"`
	SectionTitle string `json:"section_title"`
	DocID        string `json:"doc_id"`
}

// BleveIndex implements KeywordIndex using Bleve. Document ids are decimal chunk ids.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If you change the index mapping in code, remove the index directory; it is rebuilt from
// the corpus at startup.
func NewBleveIndex(path string) (*BleveIndex, error) {
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, clauseMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

func clauseMapping() *mapping.IndexMappingImpl {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (no stemming) so clause numbers and defined terms match exactly.
	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldText, text)
	docMapping.AddFieldMappingsAt(fieldFilename, text)
	docMapping.AddFieldMappingsAt(fieldSectionTitle, text)
	docID := bleve.NewKeywordFieldMapping()
	docID.IncludeInAll = false
	docMapping.AddFieldMappingsAt("doc_id", docID)

	im.AddDocumentMapping("clause", docMapping)
	im.DefaultType = "clause"
	im.DefaultMapping = docMapping
	return im
}

// IndexChunks indexes chunks in one batch, replacing any existing entries with the same id.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []*models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch := b.index.NewBatch()
	for _, c := range chunks {
		doc := clauseDoc{
			Text: c.Text,
			// Underscores as spaces so "motor_policy_2023.pdf" matches "motor policy".
			Filename: strings.ReplaceAll(c.Filename, "_", " "),
			DocID:    c.DocID,
		}
		if c.SectionTitle != nil {
			doc.SectionTitle = *c.SectionTitle
		}
		if err := batch.Index(strconv.Itoa(c.ChunkID), doc); err != nil {
			return fmt.Errorf("failed to batch chunk %d: %w", c.ChunkID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("failed to index %d chunks: %w", len(chunks), err)
	}
	return nil
}

// Search returns up to limit clauses matching query, best first.
// Without a title boost a single match over all fields is used. With TitleBoost > 1 the
// section title and the body are queried separately and merged additively, scaled by how
// many of the query terms each clause covers.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil, nil
	}
	titleBoost := 1.0
	fuzziness := 0
	if opts != nil {
		if opts.TitleBoost > 0 {
			titleBoost = opts.TitleBoost
		}
		if opts.FuzzyEnabled {
			fuzziness = opts.Fuzziness
			if fuzziness <= 0 {
				fuzziness = 1
			}
		}
	}
	if titleBoost <= 1.0 {
		return b.searchSingle(ctx, query, limit, fuzziness)
	}
	return b.searchWithTitleBoost(ctx, query, limit, titleBoost, fuzziness)
}

func (b *BleveIndex) searchSingle(ctx context.Context, query string, limit, fuzziness int) ([]*KeywordResult, error) {
	req := bleve.NewSearchRequest(buildQuery(query, "", fuzziness))
	req.Size = limit
	res, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if r := toResult(hit.ID, hit.Score); r != nil {
			out = append(out, r)
		}
	}
	return out, nil
}

func (b *BleveIndex) searchWithTitleBoost(ctx context.Context, query string, limit int, titleBoost float64, fuzziness int) ([]*KeywordResult, error) {
	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}
	scores := make(map[string]float64)
	for _, field := range []string{fieldSectionTitle, fieldText} {
		req := bleve.NewSearchRequest(buildQuery(query, field, fuzziness))
		req.Size = reqSize
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("Bleve %s search failed: %w", field, err)
		}
		weight := 1.0
		if field == fieldSectionTitle {
			weight = titleBoost
		}
		for _, hit := range res.Hits {
			scores[hit.ID] += hit.Score * weight
		}
	}

	terms := tokenizeQuery(query)
	if len(terms) > 1 {
		coverage := b.termCoverage(ctx, terms, reqSize, fuzziness)
		for id := range scores {
			matched := coverage[id]
			if matched == 0 {
				matched = 1
			}
			// Squared coverage ranks clauses matching every term above partial matches.
			c := float64(matched) / float64(len(terms))
			scores[id] *= c * c
		}
	}

	out := make([]*KeywordResult, 0, len(scores))
	for id, score := range scores {
		if r := toResult(id, score); r != nil {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// termCoverage counts how many query terms each clause matches.
func (b *BleveIndex) termCoverage(ctx context.Context, terms []string, reqSize, fuzziness int) map[string]int {
	coverage := make(map[string]int)
	for _, term := range terms {
		req := bleve.NewSearchRequest(buildQuery(term, "", fuzziness))
		req.Size = reqSize
		res, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			continue
		}
		for _, hit := range res.Hits {
			coverage[hit.ID]++
		}
	}
	return coverage
}

// buildQuery returns a match query, or a disjunction of per-term fuzzy queries when
// fuzziness > 0. An empty field searches all fields.
func buildQuery(query, field string, fuzziness int) blevequery.Query {
	terms := tokenizeQuery(query)
	if fuzziness <= 0 || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

func toResult(id string, score float64) *KeywordResult {
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil
	}
	return &KeywordResult{ChunkID: n, Score: score}
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}
