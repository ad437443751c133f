// Package api exposes the published state and the control surface over
// HTTP. Control handlers only submit operations to the session's
// control queue and answer 202; the published state is what clients
// poll or stream to observe the outcome.
package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/oselz/viewfinder/internal/camera"
	"github.com/oselz/viewfinder/internal/logger"
	"github.com/oselz/viewfinder/internal/session"
	"github.com/oselz/viewfinder/internal/state"
)

// Server is the HTTP API server.
type Server struct {
	router   *mux.Router
	store    *state.Store
	ctrl     *session.Controller
	live     *LiveStream
	upgrader websocket.Upgrader
}

// NewServer creates the API server.
func NewServer(store *state.Store, ctrl *session.Controller, live *LiveStream) *Server {
	s := &Server{
		router: mux.NewRouter(),
		store:  store,
		ctrl:   ctrl,
		live:   live,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/state/stream", s.handleStateStream)

	api.HandleFunc("/session/start", s.handleStart).Methods("POST")
	api.HandleFunc("/session/stop", s.handleStop).Methods("POST")

	api.HandleFunc("/device", s.handleSelectDevice).Methods("POST")
	api.HandleFunc("/device/toggle", s.handleToggle).Methods("POST")

	api.HandleFunc("/control/exposure", s.handleExposure).Methods("POST")
	api.HandleFunc("/control/focus", s.handleFocus).Methods("POST")
	api.HandleFunc("/control/focus-expose", s.handleFocusExpose).Methods("POST")
	api.HandleFunc("/control/white-balance", s.handleWhiteBalance).Methods("POST")
	api.HandleFunc("/control/white-balance/reset", s.handleResetWhiteBalance).Methods("POST")
	api.HandleFunc("/control/exposure-bias", s.handleExposureBias).Methods("POST")
	api.HandleFunc("/control/auto", s.handleAuto).Methods("POST")
	api.HandleFunc("/control/analysis", s.handleAnalysis).Methods("POST")

	api.HandleFunc("/capture", s.handleCapture).Methods("POST")

	api.HandleFunc("/stats", s.handleStats).Methods("GET")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/stream", s.live.Handler()).Methods("GET")
}

// Start starts the HTTP server. Blocks.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logger.WithComponent("api").Info().Str("addr", addr).Msg("API server listening")
	return http.ListenAndServe(addr, s.enableCORS(s.router))
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Snapshot())
}

func (s *Server) handleStateStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WithComponent("api").Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	updates := s.store.Subscribe()
	defer s.store.Unsubscribe(updates)

	if err := conn.WriteJSON(s.store.Snapshot()); err != nil {
		return
	}
	for snap := range updates {
		if err := conn.WriteJSON(snap); err != nil {
			return
		}
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Start()
	writeJSON(w, http.StatusOK, map[string]bool{"running": s.store.Snapshot().SessionRunning})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.ctrl.Stop()
	writeJSON(w, http.StatusOK, map[string]bool{"running": s.store.Snapshot().SessionRunning})
}

func (s *Server) handleSelectDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position string `json:"position"`
		Class    string `json:"class"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pos, ok := camera.ParsePosition(req.Position)
	if !ok {
		http.Error(w, "invalid position", http.StatusBadRequest)
		return
	}
	class, ok := camera.ParseFocalClass(req.Class)
	if !ok {
		http.Error(w, "invalid focal class", http.StatusBadRequest)
		return
	}
	s.ctrl.SelectDevice(pos, class)
	accepted(w)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ToggleFrontBack()
	accepted(w)
}

func (s *Server) handleExposure(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ISO            float64 `json:"iso"`
		ShutterSeconds float64 `json:"shutter_seconds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.ctrl.SetExposure(req.ISO, req.ShutterSeconds)
	accepted(w)
}

func (s *Server) handleFocus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Position float64 `json:"position"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Position < 0 || req.Position > 1 {
		http.Error(w, "focus position must be in [0,1]", http.StatusBadRequest)
		return
	}
	s.ctrl.SetFocus(req.Position)
	accepted(w)
}

func (s *Server) handleFocusExpose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.ctrl.FocusExposeAt(req.X, req.Y)
	accepted(w)
}

func (s *Server) handleWhiteBalance(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kelvin float64 `json:"kelvin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.ctrl.SetWhiteBalance(req.Kelvin)
	accepted(w)
}

func (s *Server) handleResetWhiteBalance(w http.ResponseWriter, r *http.Request) {
	s.ctrl.ResetWhiteBalance()
	accepted(w)
}

func (s *Server) handleExposureBias(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EV float64 `json:"ev"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.ctrl.SetExposureBias(req.EV)
	accepted(w)
}

func (s *Server) handleAuto(w http.ResponseWriter, r *http.Request) {
	s.ctrl.SetAutoMode()
	accepted(w)
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Histogram bool `json:"histogram"`
		Peaking   bool `json:"peaking"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.ctrl.SetAnalysisEnablement(req.Histogram, req.Peaking)
	accepted(w)
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	s.ctrl.CapturePhoto()
	accepted(w)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.PipelineStats())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func accepted(w http.ResponseWriter) {
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
