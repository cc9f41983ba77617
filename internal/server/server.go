// Package server exposes the frame stream and capture controls over
// HTTP/WebSocket.
package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/framewatch/internal/frame"
	"github.com/GriffinCanCode/framewatch/internal/orchestrator"
	"github.com/GriffinCanCode/framewatch/internal/trace"
)

// Engine is the capture surface the server drives.
type Engine interface {
	Start(ctx context.Context, cfg orchestrator.Config) error
	Stop()
	IsCapturing() bool
	Statistics() orchestrator.Stats
	AvailableDisplays(ctx context.Context) ([]frame.Display, error)
	Frames() <-chan *frame.Frame
}

// FrameMessage is the wire envelope for one forwarded frame. Pixels stay in
// process; collaborators consuming full frames use the Go channel.
type FrameMessage struct {
	Type        string    `json:"type"` // "frame"
	DisplayID   uint32    `json:"display_id"`
	Timestamp   time.Time `json:"timestamp"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Focused     bool      `json:"focused"`
	AppBundleID string    `json:"app_bundle_id,omitempty"`
	AppName     string    `json:"app_name,omitempty"`
	WindowTitle string    `json:"window_title,omitempty"`
	BrowserURL  string    `json:"browser_url,omitempty"`
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	engine  Engine
	baseCtx context.Context
	cfg     orchestrator.Config

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// New creates a server. baseCtx scopes capture sessions started over REST;
// cfg is the policy those sessions run with.
func New(engine Engine, baseCtx context.Context, cfg orchestrator.Config) *Server {
	return &Server{
		engine:  engine,
		baseCtx: baseCtx,
		cfg:     cfg,
		conns:   make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/displays", s.handleDisplays)
	mux.HandleFunc("POST /api/capture/start", s.handleStart)
	mux.HandleFunc("POST /api/capture/stop", s.handleStop)

	return trace.Middleware(mux)
}

// Broadcast fans frame envelopes out to connected clients. It is the sole
// consumer of the engine's frame stream and returns when the stream closes.
func (s *Server) Broadcast(frames <-chan *frame.Frame) {
	for f := range frames {
		msg := envelope(f)
		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn) {
				_ = wsjson.Write(context.Background(), c, msg)
			}(conn)
		}
		s.mu.RUnlock()
	}
}

func envelope(f *frame.Frame) FrameMessage {
	msg := FrameMessage{
		Type:      "frame",
		DisplayID: f.DisplayID,
		Timestamp: f.Timestamp,
		Width:     f.Width,
		Height:    f.Height,
	}
	if m := f.Meta; m != nil {
		msg.Focused = m.IsFocused
		msg.AppBundleID = m.AppBundleID
		msg.AppName = m.AppName
		msg.WindowTitle = m.WindowTitle
		msg.BrowserURL = m.BrowserURL
	}
	return msg
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	log := trace.Logger(r.Context())
	log.Info("websocket connected", "remote", r.RemoteAddr)

	// Clients only listen; the read loop exists to notice disconnects.
	for {
		var msg json.RawMessage
		if err := wsjson.Read(r.Context(), conn, &msg); err != nil {
			log.Debug("websocket closed", "error", err)
			return
		}
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"capturing": s.engine.IsCapturing()})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.engine.Statistics())
}

func (s *Server) handleDisplays(w http.ResponseWriter, r *http.Request) {
	displays, err := s.engine.AvailableDisplays(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, displays)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Start(s.baseCtx, s.cfg); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	go s.Broadcast(s.engine.Frames())
	writeJSON(w, map[string]string{"status": "capture_started"})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.engine.Stop()
	writeJSON(w, map[string]string{"status": "capture_stopped"})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
