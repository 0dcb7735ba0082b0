package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/mitsuke/internal/models"
)

const maxUploadBytes = 20 << 20

var (
	errInvalidBody  = errors.New("invalid request body")
	errUploadFailed = errors.New("could not store upload")
)

// handleQuery is the conversation entry point. It accepts multipart form
// data with text, gender, session_id, and an optional image file, or a
// plain JSON body for text-only requests.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	req, cleanup, err := s.parseQueryRequest(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()

	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	s.logger.Debug("query request",
		zap.String("session_id", req.SessionID),
		zap.Bool("has_image", req.ImagePath != ""))

	resp := s.orchestrator.Run(r.Context(), req)
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusServiceUnavailable
	}
	s.respondJSON(w, status, resp)
}

// handleVoice transcribes the uploaded audio and runs the transcript
// through the same pipeline as a typed query.
func (s *Server) handleVoice(w http.ResponseWriter, r *http.Request) {
	if s.transcriber == nil {
		s.respondError(w, http.StatusNotImplemented, "voice transcription not enabled")
		return
	}
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "audio file is required")
		return
	}
	defer file.Close()

	audioPath, err := s.saveUpload(file, header.Filename)
	if err != nil {
		s.logger.Error("failed to save audio upload", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "could not store upload")
		return
	}
	defer os.Remove(audioPath)

	text, err := s.transcriber.Transcribe(r.Context(), audioPath)
	if err != nil {
		s.logger.Error("transcription failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, "transcription failed")
		return
	}

	req := &models.QueryRequest{
		Text:      text,
		Gender:    r.FormValue("gender"),
		SessionID: r.FormValue("session_id"),
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}
	resp := s.orchestrator.Run(r.Context(), req)
	status := http.StatusOK
	if !resp.Success {
		status = http.StatusServiceUnavailable
	}
	s.respondJSON(w, status, resp)
}

// handleFeatured returns a spread of catalog items for the landing view.
func (s *Server) handleFeatured(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 12)
	items := s.store.Items()
	if len(items) == 0 {
		s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": []*models.CatalogItem{}})
		return
	}
	if limit > len(items) {
		limit = len(items)
	}
	// Stride across the table so featured items cover the catalog
	// instead of clustering at the front.
	stride := len(items) / limit
	if stride == 0 {
		stride = 1
	}
	out := make([]*models.CatalogItem, 0, limit)
	for i := 0; i < len(items) && len(out) < limit; i += stride {
		out = append(out, items[i])
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"items": out})
}

// handleProductSearch is the keyword browse endpoint over the Bleve
// index.
func (s *Server) handleProductSearch(w http.ResponseWriter, r *http.Request) {
	if s.keywordIndex == nil {
		s.respondError(w, http.StatusNotImplemented, "keyword search not enabled")
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		s.respondError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := queryInt(r, "limit", 20)

	hits, err := s.keywordIndex.Search(r.Context(), q, limit)
	if err != nil {
		s.logger.Error("keyword search failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	items := make([]*models.CatalogItem, 0, len(hits))
	for _, hit := range hits {
		if item, ok := s.store.ItemByExternalID(hit.ExternalID); ok {
			items = append(items, item)
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"query": q, "items": items})
}

func (s *Server) handleProductsByCategory(w http.ResponseWriter, r *http.Request) {
	category := strings.ToLower(chi.URLParam(r, "category"))
	limit := queryInt(r, "limit", 20)

	var out []*models.CatalogItem
	for _, item := range s.store.Items() {
		if item.ArticleType == category {
			out = append(out, item)
			if len(out) >= limit {
				break
			}
		}
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"category": category, "items": out})
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, ok := s.store.ItemByExternalID(id)
	if !ok {
		s.respondError(w, http.StatusNotFound, "product not found")
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.store.Loaded() {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "initializing"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"loaded":   s.store.Loaded(),
		"products": s.store.Size(),
	}
	if s.keywordIndex != nil {
		if n, err := s.keywordIndex.DocCount(); err == nil {
			resp["keyword_docs"] = n
		}
	}
	resp["config"] = map[string]interface{}{
		"database_path":     s.config.Storage.DatabasePath,
		"vector_index_path": s.config.Storage.VectorIndexPath,
		"dimensions":        s.config.Encoder.Dimensions,
		"image_top_k":       s.config.Search.ImageTopK,
		"text_top_k":        s.config.Search.TextTopK,
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// handleImage serves a catalog image by external product ID.
func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	id = strings.TrimSuffix(id, ".jpg")
	// IDs are catalog ordinals; refuse anything that could traverse
	// outside the images directory.
	if id == "" || strings.ContainsAny(id, "/\\.") {
		s.respondError(w, http.StatusBadRequest, "invalid image id")
		return
	}
	path := filepath.Join(s.config.Catalog.ImagesPath, id+".jpg")
	if _, err := os.Stat(path); err != nil {
		s.respondError(w, http.StatusNotFound, "image not found")
		return
	}
	http.ServeFile(w, r, path)
}

// parseQueryRequest extracts the query from either a multipart form or a
// JSON body. The returned cleanup removes any stored upload.
func (s *Server) parseQueryRequest(r *http.Request) (*models.QueryRequest, func(), error) {
	cleanup := func() {}

	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var req models.QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, cleanup, errInvalidBody
		}
		req.ImagePath = "" // images only arrive via multipart uploads
		return &req, cleanup, nil
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, cleanup, errInvalidBody
	}
	req := &models.QueryRequest{
		Text:      r.FormValue("text"),
		Gender:    r.FormValue("gender"),
		SessionID: r.FormValue("session_id"),
	}

	file, header, err := r.FormFile("image")
	if err == nil {
		defer file.Close()
		path, saveErr := s.saveUpload(file, header.Filename)
		if saveErr != nil {
			s.logger.Error("failed to save image upload", zap.Error(saveErr))
			return nil, cleanup, errUploadFailed
		}
		req.ImagePath = path
		cleanup = func() { _ = os.Remove(path) }
	}
	return req, cleanup, nil
}

// saveUpload stores an uploaded file under the configured upload
// directory with a fresh name.
func (s *Server) saveUpload(file multipart.File, original string) (string, error) {
	dir := s.config.Storage.UploadDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	ext := filepath.Ext(original)
	if ext == "" {
		ext = ".bin"
	}
	path := filepath.Join(dir, uuid.New().String()+ext)
	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, file); err != nil {
		_ = os.Remove(path)
		return "", err
	}
	return path, nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	if v := r.URL.Query().Get(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
