package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"degenter/internal/repository"
)

// Server exposes the health/status endpoints, the /ws stream and the
// JWT-protected admin surface. Read-shaping REST lives elsewhere; this
// process only serves its own operational surface.
type Server struct {
	repo      *repository.Repository
	hub       *Hub
	jwtSecret []byte
	httpSrv   *http.Server
}

func NewServer(repo *repository.Repository, hub *Hub, jwtSecret string) *Server {
	return &Server{repo: repo, hub: hub, jwtSecret: []byte(jwtSecret)}
}

func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.handleWebSocket)
	r.HandleFunc("/admin/checkpoint", s.requireJWT(s.handleResetCheckpoint)).Methods(http.MethodPost)
	return r
}

// Start blocks serving HTTP on the given port.
func (s *Server) Start(port string) error {
	log.Printf("[API] listening on :%s", port)
	s.httpSrv = &http.Server{
		Addr:         ":" + port,
		Handler:      s.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s.httpSrv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]interface{}{"success": false, "error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	lastIndexed, err := s.repo.GetLastIndexedHeight(r.Context(), repository.ServiceName)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":            true,
		"last_height":        lastIndexed,
		"stream_subscribers": s.hub.SubscriberCount(TopicTrades),
	})
}

// handleResetCheckpoint rewinds index_state so the pipeline reprocesses
// from an earlier height. Idempotent writes make the replay safe.
func (s *Server) handleResetCheckpoint(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Height int64 `json:"height"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}
	if body.Height < 0 {
		writeError(w, http.StatusBadRequest, "height must be >= 0")
		return
	}
	if err := s.repo.SetLastIndexedHeight(r.Context(), repository.ServiceName, body.Height); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	log.Printf("[API] checkpoint reset to %s", strconv.FormatInt(body.Height, 10))
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "last_height": body.Height})
}
