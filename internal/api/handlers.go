package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/dharsanguruparan/skypulse/internal/export"
	"github.com/dharsanguruparan/skypulse/internal/ingest"
	"github.com/dharsanguruparan/skypulse/internal/model"
	"github.com/dharsanguruparan/skypulse/internal/session"
	"github.com/dharsanguruparan/skypulse/internal/signing"
)

const (
	maxIdentifiers = 500
	maxUploadBytes = 5 << 20
)

type startRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,max=500,dive,required,max=256"`
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req startRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	for i := range req.IDs {
		req.IDs[i] = strings.TrimSpace(req.IDs[i])
	}
	if err := s.validate.Struct(req); err != nil {
		respondError(w, http.StatusBadRequest, "ids must be a non-empty list of non-blank identifiers")
		return
	}
	s.start(w, r, req.IDs)
}

// handleUpload starts a session from a multipart "file" part holding a PDF,
// text, or CSV target list.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes+1024)
	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}
	part, err := nextFilePart(mr)
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing file part")
		return
	}
	defer part.Close()
	data, err := io.ReadAll(io.LimitReader(part, maxUploadBytes+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	if len(data) > maxUploadBytes {
		respondError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds limit (%d bytes)", maxUploadBytes))
		return
	}
	name := part.FileName()
	switch ct := http.DetectContentType(data); {
	case ct == "application/pdf":
		name = strings.TrimSuffix(name, filepath.Ext(name)) + ".pdf"
	case strings.HasPrefix(ct, "text/plain"):
		if strings.EqualFold(filepath.Ext(name), ".csv") {
			name = "upload.csv"
		} else {
			name = "upload.txt"
		}
	default:
		respondError(w, http.StatusUnsupportedMediaType, "only PDF, text, and CSV target lists are supported")
		return
	}
	ids, err := ingest.FromReader(bytes.NewReader(data), name)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read identifiers from file")
		return
	}
	if len(ids) == 0 {
		respondError(w, http.StatusBadRequest, "file contains no identifiers")
		return
	}
	if len(ids) > maxIdentifiers {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("at most %d identifiers per session", maxIdentifiers))
		return
	}
	s.start(w, r, ids)
}

func (s *Server) start(w http.ResponseWriter, r *http.Request, ids []string) {
	d, err := s.sessions.StartSession(r.Context(), ids)
	if errors.Is(err, session.ErrNoIdentifiers) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.log.Error("start session failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	w.Header().Set("Location", "/sessions/"+d.ID)
	respondJSON(w, http.StatusAccepted, d)
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := s.sessions.Status(r.Context(), id)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if sess == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	respondJSON(w, http.StatusOK, struct {
		*model.Session
		Progress float64 `json:"progress"`
	}{sess, sess.Progress()})
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	objects, ok := s.view(w, r, id)
	if !ok {
		return
	}
	if objects == nil {
		objects = []model.AstroObject{}
	}
	respondJSON(w, http.StatusOK, objects)
}

func (s *Server) handleObject(w http.ResponseWriter, r *http.Request, sessionID, objectID string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	obj, err := s.sessions.Object(r.Context(), sessionID, objectID)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if obj == nil {
		respondError(w, http.StatusNotFound, "object not found")
		return
	}
	respondJSON(w, http.StatusOK, obj)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	objects, ok := s.view(w, r, id)
	if !ok {
		return
	}
	var buf bytes.Buffer
	wrote, err := export.CSV(&buf, objects)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !wrote {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	attachment(w, "text/csv; charset=utf-8", export.Filename("results", "csv", time.Now()))
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	objects, ok := s.view(w, r, id)
	if !ok {
		return
	}
	if objects == nil {
		objects = []model.AstroObject{}
	}
	attachment(w, "application/json", export.Filename("results", "json", time.Now()))
	_ = export.JSON(w, objects)
}

// handleExportURL renders an export, stores it in the object store, and
// returns a presigned download link.
func (s *Server) handleExportURL(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.exports == nil {
		respondError(w, http.StatusNotImplemented, "export storage not configured")
		return
	}
	objects, ok := s.view(w, r, id)
	if !ok {
		return
	}
	var (
		buf         bytes.Buffer
		contentType string
		ext         = r.URL.Query().Get("format")
	)
	switch ext {
	case "", "csv":
		ext, contentType = "csv", "text/csv; charset=utf-8"
		wrote, err := export.CSV(&buf, objects)
		if err != nil {
			s.internalError(w, err)
			return
		}
		if !wrote {
			w.WriteHeader(http.StatusNoContent)
			return
		}
	case "json":
		contentType = "application/json"
		if err := export.JSON(&buf, objects); err != nil {
			s.internalError(w, err)
			return
		}
	default:
		respondError(w, http.StatusBadRequest, "format must be csv or json")
		return
	}
	filename := export.Filename("results", ext, time.Now())
	key, err := s.exports.UploadExport(r.Context(), id, filename, contentType, buf.Bytes())
	if err != nil {
		s.log.Error("upload export failed", "session_id", id, "error", err)
		respondError(w, http.StatusBadGateway, "failed to store export")
		return
	}
	link, err := s.exports.PresignExportURL(r.Context(), key, s.cfg.SignedURLTTL)
	if err != nil {
		s.log.Error("presign export failed", "session_id", id, "error", err)
		respondError(w, http.StatusBadGateway, "failed to generate url")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"url": link, "key": key, "filename": filename})
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sess, err := s.sessions.Status(r.Context(), id)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if sess == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	q, expires := s.signer.Share(id, s.cfg.SignedURLTTL)
	respondJSON(w, http.StatusOK, map[string]any{
		"url":     (&url.URL{Path: "/shared", RawQuery: q.Encode()}).String(),
		"expires": expires,
	})
}

// handleShared serves the snapshot behind a signed share link.
func (s *Server) handleShared(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id, err := s.signer.Verify(r.URL.Query())
	switch {
	case errors.Is(err, signing.ErrExpired):
		respondError(w, http.StatusUnauthorized, "link expired")
		return
	case err != nil:
		respondError(w, http.StatusUnauthorized, "invalid signature")
		return
	}
	snap, err := s.sessions.PollOnce(r.Context(), id)
	if errors.Is(err, session.ErrSessionNotFound) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// view loads a session's objects and applies the ids, q, sort, and dir query
// parameters. It writes the error response itself and reports false on failure.
func (s *Server) view(w http.ResponseWriter, r *http.Request, id string) ([]model.AstroObject, bool) {
	sess, err := s.sessions.Status(r.Context(), id)
	if err != nil {
		s.internalError(w, err)
		return nil, false
	}
	if sess == nil {
		respondError(w, http.StatusNotFound, "session not found")
		return nil, false
	}
	objects, err := s.sessions.Results(r.Context(), id)
	if err != nil {
		s.internalError(w, err)
		return nil, false
	}
	q := r.URL.Query()
	if ids := q.Get("ids"); ids != "" {
		objects = export.Select(objects, strings.Split(ids, ","))
	}
	objects = export.Filter(objects, q.Get("q"))
	if key := q.Get("sort"); key != "" {
		sortKey, err := export.ParseSortKey(key)
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return nil, false
		}
		objects = export.Sort(objects, sortKey, strings.EqualFold(q.Get("dir"), "desc"))
	}
	return objects, true
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.log.Error("request failed", "error", err)
	respondError(w, http.StatusInternalServerError, "internal error")
}

func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
}

func nextFilePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			return part, nil
		}
		part.Close()
	}
}
