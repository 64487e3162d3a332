package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hyperjump/kasane/internal/config"
	apperrors "github.com/hyperjump/kasane/internal/errors"
	"github.com/hyperjump/kasane/internal/models"
	"github.com/hyperjump/kasane/internal/storage"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 8 << 20

type searchRequest struct {
	Query  string                    `json:"query"`
	Config *config.SearchConfigPatch `json:"config,omitempty"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("search request", zap.String("query", req.Query), zap.Bool("override", req.Config != nil))

	var override *config.SearchConfig
	if req.Config != nil && !req.Config.Empty() {
		c, err := req.Config.Apply(s.configs.Active())
		if err != nil {
			s.respondErr(w, err)
			return
		}
		override = &c
	}

	start := time.Now()
	result, err := s.engine.Search(r.Context(), req.Query, override)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	resp := models.NewSearchResponse(result, s.engine.Settings().GroupField)
	resp.QueryTime = time.Since(start).Milliseconds()
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.configs.Active())
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var patch config.SearchConfigPatch
	if err := decodeBody(r, &patch); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	next, err := s.configs.Update(patch)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.logger.Info("search config updated", zap.Float64("vector_weight", next.VectorWeight))
	s.respondJSON(w, http.StatusOK, next)
}

func (s *Server) handleGetDefaultConfig(w http.ResponseWriter, r *http.Request) {
	def, err := s.configs.LoadDefault()
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, def)
}

func (s *Server) handleGetSavedConfig(w http.ResponseWriter, r *http.Request) {
	saved, err := s.configs.LoadSaved()
	if err != nil {
		s.respondErr(w, err)
		return
	}
	if saved == nil {
		s.respondError(w, http.StatusNotFound, "no saved config")
		return
	}
	s.respondJSON(w, http.StatusOK, saved)
}

// handleSaveConfig persists the active config, with an optional patch applied first.
func (s *Server) handleSaveConfig(w http.ResponseWriter, r *http.Request) {
	var patch config.SearchConfigPatch
	if err := decodeBody(r, &patch); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	next, err := s.configs.SavePatch(patch)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, next)
}

func (s *Server) handleResetConfig(w http.ResponseWriter, r *http.Request) {
	def, err := s.configs.Reset()
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.logger.Info("search config reset to defaults")
	s.respondJSON(w, http.StatusOK, def)
}

func (s *Server) handleIndexDocument(w http.ResponseWriter, r *http.Request) {
	var input models.DocumentInput
	if err := decodeBody(r, &input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("index document request", zap.String("id", input.ID))
	doc, err := s.indexer.IndexDocument(r.Context(), &input)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": doc.ID, "status": "indexed"})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.storage.GetDocument(r.Context(), id)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.logger.Debug("delete document request", zap.String("id", id))
	if err := s.indexer.DeleteDocument(r.Context(), id); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"status": "ok"}
	if n, err := s.storage.CountDocuments(r.Context()); err == nil {
		resp["documents"] = n
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// decodeBody decodes a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// statusFor maps an error to its HTTP status and client-facing message. Unknown failures get a
// generic message.
func statusFor(err error) (int, string) {
	var (
		verr *apperrors.ValidationError
		cerr *apperrors.ConfigError
		terr *apperrors.TimeoutError
		uerr *apperrors.UpstreamError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Error()
	case errors.As(err, &cerr):
		return http.StatusBadRequest, cerr.Error()
	case errors.As(err, &terr):
		return http.StatusGatewayTimeout, terr.Error()
	case errors.As(err, &uerr):
		return http.StatusBadGateway, "candidate sources unavailable"
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound, "document not found"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (s *Server) respondErr(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, msg)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
