package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/authdash/console/internal/client"
)

// Options configures a Server.
type Options struct {
	Chat           *Broadcaster
	Screens        *ScreenHub
	Store          HistoryStore
	HistoryLimit   int
	AllowedOrigins []string
	// Token, when set, is required on the REST and push endpoints.
	Token  string
	Logger *slog.Logger
}

type Server struct {
	chat           *Broadcaster
	screens        *ScreenHub
	store          HistoryStore
	historyLimit   int
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	authToken      string
	logger         *slog.Logger
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Chat == nil {
		opts.Chat = NewBroadcaster(opts.Store, 0, opts.Logger)
	}
	if opts.Screens == nil {
		opts.Screens = NewScreenHub(opts.Logger)
	}
	s := &Server{
		chat:           opts.Chat,
		screens:        opts.Screens,
		store:          opts.Store,
		historyLimit:   opts.HistoryLimit,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		authToken:      opts.Token,
		logger:         opts.Logger.With("component", "relay"),
	}

	for _, origin := range opts.AllowedOrigins {
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

// Handler returns the relay's routes wrapped in the security headers.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(mux)
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/chat/history", s.handleHistory)
	mux.HandleFunc("GET /api/screen/frame/{id}", s.handleFrame)
	mux.HandleFunc("GET /api/ws/chat", s.handleChatWS)
	mux.HandleFunc("GET /api/ws/screen/view/{id}", s.handleScreenView)
	mux.HandleFunc("GET /api/ws/screen/push/{id}", s.handleScreenPush)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, client.HealthResponse{
		Status:        "ok",
		ChatClients:   s.chat.ClientCount(),
		ScreenTargets: len(s.screens.Targets()),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.store == nil {
		writeJSON(w, http.StatusOK, client.HistoryResponse{Success: true, Messages: []client.ChatFrame{}})
		return
	}

	msgs, err := s.store.Recent(r.Context(), s.historyLimit)
	if err != nil {
		s.logger.Error("loading chat history", "err", err)
		writeJSON(w, http.StatusInternalServerError, client.HistoryResponse{Success: false})
		return
	}
	if msgs == nil {
		msgs = []client.ChatFrame{}
	}
	writeJSON(w, http.StatusOK, client.HistoryResponse{Success: true, Messages: msgs})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	frame, ok := s.screens.Latest(r.PathValue("id"))
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(frame)
}

func (s *Server) upgrader() websocket.Upgrader {
	return websocket.Upgrader{CheckOrigin: s.checkOrigin}
}

func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("chat upgrade failed", "err", err)
		return
	}

	p, err := s.chat.AddClient(conn)
	if err != nil {
		s.logger.Warn("rejecting chat client", "remote", r.RemoteAddr, "err", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}
	s.logger.Info("chat client connected", "remote", r.RemoteAddr, "client", p.id)

	go func() {
		defer func() {
			s.chat.RemoveClient(p)
			s.logger.Info("chat client disconnected", "remote", r.RemoteAddr, "client", p.id)
		}()
		conn.SetReadLimit(maxChatMessage)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			kind, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			conn.SetReadDeadline(time.Now().Add(pongWait))
			if kind == websocket.TextMessage {
				s.chat.Handle(context.Background(), p, data)
			}
		}
	}()
}

func (s *Server) handleScreenView(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("screen view upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	v, unsubscribe := s.screens.Subscribe(id)
	defer unsubscribe()
	s.logger.Info("screen viewer connected", "target", id, "remote", r.RemoteAddr)

	// Viewers only send control frames; reading keeps pongs flowing and
	// notices the disconnect.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-gone:
			s.logger.Info("screen viewer disconnected", "target", id, "remote", r.RemoteAddr)
			return
		case frame := <-v.frames:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleScreenPush(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	id := r.PathValue("id")
	upgrader := s.upgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("screen push upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	conn.SetReadLimit(maxFrameSize)
	s.logger.Info("screen agent connected", "target", id, "remote", r.RemoteAddr)
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			s.logger.Info("screen agent disconnected", "target", id, "err", err)
			return
		}
		if kind == websocket.BinaryMessage {
			s.screens.Publish(id, data)
		}
	}
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil || parsed.Host == "" {
		return false
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

// Run serves handler on addr until ctx is cancelled, then shuts down
// gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
