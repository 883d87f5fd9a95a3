package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const tokenHeader = "X-Mobile-Controller-Token"

type Server struct {
	hub            *Hub
	devices        DeviceServer
	authToken      string
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
}

func NewServer(hub *Hub, devices DeviceServer, authToken string, allowedOrigins []string) *Server {
	s := &Server{
		hub:            hub,
		devices:        devices,
		authToken:      authToken,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
	}
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}
	return s
}

// Router builds the bridge's HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(securityHeaders)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/ws", s.handleWS)
		r.Route("/api", func(r chi.Router) {
			r.Post("/server/start", s.handleStart)
			r.Post("/server/stop", s.handleStop)
			r.Get("/clients", s.handleClients)
			r.Delete("/clients/{id}", s.handleRemoveClient)
		})
	})
	return r
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Str("module", "bridge").Err(err).Msg("ws upgrade")
		return
	}
	if err := s.hub.Serve(ws); err != nil {
		log.Warn().Str("module", "bridge").Str("remote", r.RemoteAddr).Err(err).Msg("ws rejected")
		ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(writeWait))
		ws.Close()
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	started, err := s.devices.Start()
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, StartResponse{Status: StatusAlreadyRunning, Message: "Server already running."})
	case err != nil:
		log.Error().Str("module", "bridge").Err(err).Msg("start device server")
		writeJSON(w, http.StatusInternalServerError, StartResponse{Status: StatusError, Message: "Unexpected response during server initialization."})
	default:
		log.Info().Str("module", "bridge").Str("addr", started.Addr).Str("os", started.ServerOS).Msg("device server started")
		writeJSON(w, http.StatusOK, StartResponse{
			Status:   StatusStarted,
			Message:  "Server initialized successfully.",
			Addr:     started.Addr,
			ServerOS: started.ServerOS,
		})
	}
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	err := s.devices.Stop()
	switch {
	case errors.Is(err, ErrNotRunning):
		writeJSON(w, http.StatusConflict, StopResponse{Status: StatusNotRunning, Message: "Server is not running."})
	case err != nil:
		log.Error().Str("module", "bridge").Err(err).Msg("stop device server")
		writeJSON(w, http.StatusInternalServerError, StopResponse{Status: StatusError, Message: err.Error()})
	default:
		log.Info().Str("module", "bridge").Msg("device server stopped")
		writeJSON(w, http.StatusOK, StopResponse{Status: StatusStopped, Message: "Server terminated successfully."})
	}
}

func (s *Server) handleClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.devices.Clients())
}

func (s *Server) handleRemoveClient(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid client id", http.StatusBadRequest)
		return
	}
	err = s.devices.RemoveClient(id)
	switch {
	case errors.Is(err, ErrUnknownClient):
		http.Error(w, "unknown client", http.StatusNotFound)
	case errors.Is(err, ErrNotRunning):
		http.Error(w, "server not running", http.StatusConflict)
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}
	if r.URL.Query().Get("token") == s.authToken {
		return true
	}
	if r.Header.Get(tokenHeader) == s.authToken {
		return true
	}
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
	}
	if len(s.allowedOrigins) > 0 {
		return s.allowedOrigins[origin] || s.allowedHosts[parsed.Host]
	}

	host := parsed.Host
	if host == r.Host {
		return true
	}
	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
