// internal/server/server.go
package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/AlverezYari/camroll/internal/media"
)

// The mirror serves capture files, so it only listens on loopback.
const listenHost = "127.0.0.1"

//go:embed templates/gallery.html
var templateFS embed.FS

var galleryPage = template.Must(template.ParseFS(templateFS, "templates/gallery.html"))

// Server mirrors the gallery read-only over HTTP. Every collection change
// is pushed to websocket clients as a full snapshot.
type Server struct {
	server     *http.Server
	listener   net.Listener
	port       string
	collection *media.Collection
	upgrader   websocket.Upgrader

	mu        sync.Mutex
	isRunning bool
	stopWatch func()
	watchDone chan struct{}

	wsConnections   map[*websocket.Conn]bool
	wsConnectionsMu sync.Mutex
}

// ItemView is the wire form of a media item.
type ItemView struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

func New(port string, collection *media.Collection) *Server {
	// The zero Upgrader rejects cross-origin handshakes.
	return &Server{
		port:          port,
		collection:    collection,
		upgrader:      websocket.Upgrader{},
		wsConnections: make(map[*websocket.Conn]bool),
	}
}

// Handler exposes the routes; Start serves them.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/media", s.handleSnapshot)
	mux.HandleFunc("GET /media/{id}", s.handleMedia)
	mux.HandleFunc("GET /ws/gallery", s.handleWebSocketGallery)
	mux.HandleFunc("GET /{$}", s.handleIndex)
	return mux
}

func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(listenHost, s.port))
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", s.port, err)
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("Gallery server listening")
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Gallery server error")
		}
	}()

	changes, cancel := s.collection.Subscribe()
	s.stopWatch = cancel
	s.watchDone = make(chan struct{})
	go s.watch(changes, s.watchDone)

	s.isRunning = true
	return nil
}

func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return fmt.Errorf("server is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.stopWatch()
	close(s.watchDone)

	s.wsConnectionsMu.Lock()
	for conn := range s.wsConnections {
		conn.Close()
		delete(s.wsConnections, conn)
	}
	s.wsConnectionsMu.Unlock()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	s.isRunning = false
	log.Info().Msg("Gallery server stopped")
	return nil
}

func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// Addr is the bound listen address, useful when port is "0".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) Port() string {
	return s.port
}

func (s *Server) watch(changes <-chan struct{}, done <-chan struct{}) {
	for {
		select {
		case <-changes:
			s.broadcastSnapshot()
		case <-done:
			return
		}
	}
}

func (s *Server) snapshot() []ItemView {
	items := s.collection.Snapshot()
	out := make([]ItemView, 0, len(items))
	for _, item := range items {
		out = append(out, ItemView{
			ID:        string(item.ID),
			Kind:      string(item.Kind),
			URL:       "/media/" + string(item.ID),
			CreatedAt: item.CreatedAt,
		})
	}
	return out
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := galleryPage.Execute(w, s.snapshot()); err != nil {
		log.Error().Err(err).Msg("Error rendering gallery page")
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.snapshot()); err != nil {
		log.Error().Err(err).Msg("Error encoding gallery snapshot")
	}
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	item, ok := s.collection.Lookup(media.ID(r.PathValue("id")))
	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, item.URI)
}

func (s *Server) handleWebSocketGallery(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Str("remote", r.RemoteAddr).Msg("Error upgrading websocket connection")
		return
	}
	log.Info().Str("remote", r.RemoteAddr).Msg("Gallery websocket connected")

	s.wsConnectionsMu.Lock()
	s.wsConnections[conn] = true
	err = conn.WriteJSON(s.snapshot())
	s.wsConnectionsMu.Unlock()
	if err != nil {
		s.drop(conn)
		return
	}

	defer s.drop(conn)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) drop(conn *websocket.Conn) {
	s.wsConnectionsMu.Lock()
	defer s.wsConnectionsMu.Unlock()
	if s.wsConnections[conn] {
		conn.Close()
		delete(s.wsConnections, conn)
	}
}

func (s *Server) broadcastSnapshot() {
	snap := s.snapshot()

	s.wsConnectionsMu.Lock()
	defer s.wsConnectionsMu.Unlock()
	for conn := range s.wsConnections {
		if err := conn.WriteJSON(snap); err != nil {
			log.Error().Err(err).Msg("Error writing gallery snapshot to websocket")
			conn.Close()
			delete(s.wsConnections, conn)
		}
	}
}
