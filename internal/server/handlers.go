package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/Pawan459/url-shortener/internal/shortener"
	"github.com/Pawan459/url-shortener/internal/storage"
	"github.com/Pawan459/url-shortener/pkg/logx"
)

const maxBodyBytes = 64 << 10

type shortenRequest struct {
	URL      string `json:"url"`
	ClientID string `json:"client_id,omitempty"`
}

type shortenResponse struct {
	Code     string `json:"code"`
	ShortURL string `json:"short_url"`
	URL      string `json:"url"`
	Created  bool   `json:"created"`
}

type notifyRequest struct {
	// ID is optional; one is minted when absent.
	ID       string          `json:"id,omitempty"`
	ClientID string          `json:"client_id"`
	Payload  json.RawMessage `json:"payload"`
}

type notifyResponse struct {
	ID string `json:"id"`
}

// visitEvent is the payload queued to a link owner on each redirect.
type visitEvent struct {
	Kind string `json:"kind"` // always "visit"
	Code string `json:"code"`
	URL  string `json:"url"`
	At   int64  `json:"at"` // unix milli
}

func (s *Server) handleShorten(w http.ResponseWriter, r *http.Request) {
	var req shortenRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	link, created, err := s.short.Shorten(r.Context(), req.URL, req.ClientID)
	if err != nil {
		if errors.Is(err, shortener.ErrInvalidURL) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error("shorten failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, shortenResponse{
		Code:     link.Code,
		ShortURL: s.baseURL(r) + "/r/" + link.Code,
		URL:      link.URL,
		Created:  created,
	})
}

func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	link, err := s.short.Resolve(r.Context(), code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		s.log.Error("redirect lookup failed", logx.String("code", code), logx.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if link.ClientID != "" {
		event := visitEvent{Kind: "visit", Code: link.Code, URL: link.URL, At: time.Now().UnixMilli()}
		if err := s.disp.QueueMessage(uuid.NewString(), link.ClientID, event); err != nil {
			// The redirect must not fail because the owner can't be told.
			s.log.Warn("visit notification dropped", logx.String("code", code), logx.Err(err))
		}
	}

	http.Redirect(w, r, link.URL, http.StatusFound)
}

func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req notifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}
	if len(req.Payload) == 0 {
		writeError(w, http.StatusBadRequest, "payload is required")
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	if err := s.disp.QueueMessage(id, req.ClientID, req.Payload); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, notifyResponse{ID: id})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	_ = r
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
