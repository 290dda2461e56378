package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mnemod/mnemod/internal/store"
	"github.com/mnemod/mnemod/pkg/record"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"` // "ok" or "degraded"
	Records int    `json:"records"`
}

// handleHealth reports store reachability. Returns 503 when the database
// does not answer.
func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{Status: "ok"}

		if err := s.store.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		if st, err := s.store.ReadStats(r.Context()); err == nil {
			resp.Records = st.Records
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// handleStats returns store statistics.
func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.store.ReadStats(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// handleListRecords returns recent records, filterable by category,
// type, project, and session query parameters.
func (s *Server) handleListRecords() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := store.Query{
			Category:    r.URL.Query().Get("category"),
			Type:        record.Type(r.URL.Query().Get("type")),
			Project:     r.URL.Query().Get("project"),
			SessionID:   r.URL.Query().Get("session"),
			Limit:       intParam(r, "limit", 50),
			Sensitivity: sensitivityParam(r),
		}
		records, err := s.store.List(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

// handleGetRecord returns a single record without bumping its access count.
func (s *Server) handleGetRecord() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := s.store.Peek(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, record.ErrNotFound) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

// handleSearch runs a scored search over the store.
func (s *Server) handleSearch() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		text := r.URL.Query().Get("q")
		if text == "" {
			http.Error(w, "missing q parameter", http.StatusBadRequest)
			return
		}
		results, err := s.store.Search(r.Context(), store.Query{
			Text:        text,
			Category:    r.URL.Query().Get("category"),
			Limit:       intParam(r, "limit", 20),
			Sensitivity: sensitivityParam(r),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, results)
	}
}

// handleJournal returns the newest journal entries.
func (s *Server) handleJournal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.store.RecentJournal(r.Context(), intParam(r, "limit", 100))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, entries)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func intParam(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

// sensitivityParam widens the visible tiers from the tiers query
// parameter. The gateway sits behind bearer auth, so private and secret
// tiers are opt-in per request rather than forbidden.
func sensitivityParam(r *http.Request) store.SensitivityContext {
	switch r.URL.Query().Get("tiers") {
	case "private":
		return store.SensitivityContext{AllowPrivate: true}
	case "all":
		return store.SensitivityContext{AllowPrivate: true, AllowSecret: true}
	default:
		return store.SensitivityContext{}
	}
}
