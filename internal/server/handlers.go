package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/filestore"
	"github.com/hyperjump/kotae/internal/ingest"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/pkg/utils"
)

const (
	maxUploadBytes     = 64 << 20
	previewLength      = 200
	defaultClauseLimit = 10
	maxClauseLimit     = 100
	defaultPageLimit   = 50
	maxPageLimit       = 500
)

// clauseMetadata is the metadata object returned with a chunk.
type clauseMetadata struct {
	ChunkID  int    `json:"chunk_id"`
	DocID    string `json:"doc_id"`
	Filename string `json:"filename"`
	Ordinal  int    `json:"ordinal"`
	Length   int    `json:"length"`
	models.ChunkMetadata
}

func metadataOf(c *models.Chunk) clauseMetadata {
	return clauseMetadata{
		ChunkID:       c.ChunkID,
		DocID:         c.DocID,
		Filename:      c.Filename,
		Ordinal:       c.Ordinal,
		Length:        c.Length,
		ChunkMetadata: c.ChunkMetadata,
	}
}

type chunkPreview struct {
	ChunkID     int            `json:"chunk_id"`
	Score       *float64       `json:"score,omitempty"`
	TextPreview string         `json:"text_preview"`
	Metadata    clauseMetadata `json:"metadata"`
}

func previewOf(c *models.Chunk) chunkPreview {
	return chunkPreview{
		ChunkID:     c.ChunkID,
		TextPreview: utils.Truncate(c.Text, previewLength),
		Metadata:    metadataOf(c),
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	filename := filepath.Base(header.Filename)
	s.logger.Debug("upload request", zap.String("filename", filename), zap.Int64("size", header.Size))

	tmp, err := spool(file, filepath.Ext(filename))
	if err != nil {
		s.logger.Error("spool upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer os.Remove(tmp)

	docID, err := s.Ingester.IngestFile(r.Context(), tmp, filename)
	if err != nil {
		var extractErr *ingest.ExtractionError
		if errors.As(err, &extractErr) {
			s.respondError(w, http.StatusUnprocessableEntity, "Failed to ingest document.")
			return
		}
		s.logger.Error("ingestion failed", zap.String("filename", filename), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"doc_id": docID})
}

// spool copies an upload to a temporary file and returns its path.
func spool(r io.Reader, ext string) (string, error) {
	f, err := os.CreateTemp("", "kotae-upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	s.logger.Debug("ask request", zap.String("query", utils.Truncate(query, 80)))
	s.respondJSON(w, http.StatusOK, s.Answerer.Answer(r.Context(), query))
}

func (s *Server) handleClause(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "clause id must be an integer")
		return
	}
	chunk, ok := s.Corpus.Chunk(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "Clause not found.")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"text":     chunk.Text,
		"metadata": metadataOf(chunk),
	})
}

func (s *Server) handleClauseSearch(w http.ResponseWriter, r *http.Request) {
	if s.Keyword == nil {
		s.respondError(w, http.StatusNotImplemented, "clause search not enabled")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := limitParam(r, defaultClauseLimit, maxClauseLimit)
	opts := &keyword.SearchOptions{
		TitleBoost:   2.0,
		FuzzyEnabled: r.URL.Query().Get("fuzzy") == "true",
	}
	hits, err := s.Keyword.Search(r.Context(), q, limit, opts)
	if err != nil {
		s.logger.Error("clause search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	clauses := make([]chunkPreview, 0, len(hits))
	for _, h := range hits {
		chunk, ok := s.Corpus.Chunk(h.ChunkID)
		if !ok {
			continue
		}
		p := previewOf(chunk)
		score := h.Score
		p.Score = &score
		clauses = append(clauses, p)
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":   len(clauses),
		"clauses": clauses,
	})
}

func (s *Server) handleDebugChunks(w http.ResponseWriter, r *http.Request) {
	chunks := s.Corpus.Chunks()
	out := make([]chunkPreview, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, previewOf(c))
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"total_chunks": len(out),
		"chunks":       out,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

// Status summarizes the corpus, the registry and the configuration.
func (s *Server) Status(ctx context.Context) (map[string]interface{}, error) {
	status := map[string]interface{}{
		"chunks":            s.Corpus.Size(),
		"vector_index_type": s.Corpus.IndexType(),
	}
	if s.Registry != nil {
		docCount, err := s.Registry.CountDocuments(ctx)
		if err != nil {
			return nil, fmt.Errorf("count documents: %w", err)
		}
		status["documents"] = docCount
	}
	if s.Keyword != nil {
		if n, err := s.Keyword.DocCount(); err == nil {
			status["keyword_documents"] = n
		}
	}

	st := s.config.Storage
	if diskBytes, err := storage.DiskUsageBytes(
		st.DatabasePath,
		st.IndexPath,
		st.MetadataPath,
		st.BleveIndexPath,
		s.config.Uploads.LocalDir,
	); err == nil {
		status["disk_usage_bytes"] = diskBytes
	}
	status["config"] = map[string]interface{}{
		"embedding_provider":   s.config.Embedding.Provider,
		"embedding_dimensions": s.config.Embedding.Dimensions,
		"chunk_size":           s.config.Chunking.ChunkSize,
		"chunk_overlap":        s.config.Chunking.ChunkOverlap,
		"top_k":                s.config.Retrieval.TopK,
		"llm_provider":         s.config.LLM.Provider,
		"llm_model":            s.config.LLM.Model,
		"uploads_backend":      s.config.Uploads.Backend,
		"database_path":        st.DatabasePath,
		"index_path":           st.IndexPath,
		"metadata_path":        st.MetadataPath,
		"bleve_index_path":     st.BleveIndexPath,
	}
	return status, nil
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	if s.Registry == nil {
		s.respondError(w, http.StatusNotImplemented, "document registry not enabled")
		return
	}
	offset := intParam(r, "offset", 0)
	limit := limitParam(r, defaultPageLimit, maxPageLimit)
	docs, err := s.Registry.ListDocuments(r.Context(), offset, limit)
	if err != nil {
		s.logger.Error("list documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := s.Registry.CountDocuments(r.Context())
	if err != nil {
		s.logger.Error("count documents failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"total":     total,
		"documents": docs,
	})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := s.lookupDocument(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDocumentFile(w http.ResponseWriter, r *http.Request) {
	if s.Files == nil {
		s.respondError(w, http.StatusNotImplemented, "file retention not enabled")
		return
	}
	doc, ok := s.lookupDocument(w, r)
	if !ok {
		return
	}
	rc, err := s.Files.Open(r.Context(), doc.StoredPath)
	if err != nil {
		if errors.Is(err, filestore.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "file not found")
			return
		}
		s.logger.Error("open retained file failed", zap.String("doc_id", doc.ID), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(doc.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("stream retained file failed", zap.String("doc_id", doc.ID), zap.Error(err))
	}
}

func (s *Server) lookupDocument(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	if s.Registry == nil {
		s.respondError(w, http.StatusNotImplemented, "document registry not enabled")
		return nil, false
	}
	id := chi.URLParam(r, "id")
	doc, err := s.Registry.GetDocument(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "document not found")
			return nil, false
		}
		s.logger.Error("get document failed", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return doc, true
}

func (s *Server) handleWatchDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"directories": s.Watch.Directories()})
}

type watchAddRequest struct {
	Path string `json:"path"`
	Sync *bool  `json:"sync,omitempty"`
}

func (s *Server) handleWatchDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	var req watchAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	if err := s.Watch.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("watch add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleWatchDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.Watch == nil {
		s.respondError(w, http.StatusNotImplemented, "watch not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	if err := s.Watch.RemoveDirectory(abs); err != nil {
		s.logger.Error("watch remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistWatchDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

func (s *Server) persistWatchDirectories() {
	if s.configPath == "" {
		return
	}
	s.configMu.Lock()
	defer s.configMu.Unlock()
	s.config.Watch.Directories = s.Watch.Directories()
	if err := config.Save(s.configPath, s.config); err != nil {
		s.logger.Warn("failed to persist watch config", zap.Error(err))
	}
}

// intParam reads a non-negative integer query parameter. Missing or invalid values yield def.
func intParam(r *http.Request, name string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil || v < 0 {
		return def
	}
	return v
}

// limitParam is intParam for page sizes, where zero also means def.
func limitParam(r *http.Request, def, maxLimit int) int {
	v := intParam(r, "limit", def)
	if v == 0 {
		v = def
	}
	if v > maxLimit {
		v = maxLimit
	}
	return v
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
