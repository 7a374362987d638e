// Package bridge exposes dispatch events to UI islands over a local WebSocket.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rbright/vocalnav/internal/bus"
	"github.com/rbright/vocalnav/internal/command"
	"github.com/rbright/vocalnav/internal/config"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 50 * time.Second
	maxMessageSize = 64 << 10
	mountPrefix    = "island:"
)

// Router is the command registry surface remote islands mount into.
type Router interface {
	Register(mount string, descriptors []command.Descriptor)
	Unregister(mount string)
}

// Events is the dispatch bus surface the bridge subscribes to and publishes on.
type Events interface {
	SubscribeAll(listener bus.Listener) func()
	Publish(name bus.Name, detail any) error
}

// Preference applies a client-requested enable flag.
type Preference interface {
	SetEnabled(ctx context.Context, enabled bool) error
}

// StatusSnapshot is the voice state sent to clients on connect and on change.
type StatusSnapshot struct {
	Enabled bool
	State   string
	Error   string
}

// Deps are the bridge collaborators. Preference and Status may be nil.
type Deps struct {
	Logger     *slog.Logger
	Router     Router
	Events     Events
	Preference Preference
	Status     func() StatusSnapshot
}

// Server fans bus events out to connected clients and mounts their commands.
type Server struct {
	cfg      config.BridgeConfig
	deps     Deps
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*client
	owners  map[string]string // mount -> client id

	lastLevel int
	ctx       context.Context
	stopSub   func()
}

// New builds a bridge server and subscribes it to every bus event.
func New(cfg config.BridgeConfig, deps Deps) (*Server, error) {
	if deps.Router == nil || deps.Events == nil {
		return nil, errors.New("bridge: router and events are required")
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 64
	}
	if strings.TrimSpace(cfg.Path) == "" {
		cfg.Path = "/voice"
	}

	s := &Server{
		cfg:       cfg,
		deps:      deps,
		clients:   make(map[string]*client),
		owners:    make(map[string]string),
		lastLevel: -1,
		ctx:       context.Background(),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	s.stopSub = deps.Events.SubscribeAll(s.broadcastEvent)
	return s, nil
}

// Handler returns the HTTP handler serving the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.serveWS)
	return mux
}

// Serve runs the HTTP server on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(listener) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve bridge: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
	s.Close()
	return nil
}

// ListenAndServe binds cfg.Listen and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return fmt.Errorf("listen bridge %s: %w", s.cfg.Listen, err)
	}
	if s.deps.Logger != nil {
		s.deps.Logger.Info("bridge listening", "addr", listener.Addr().String(), "path", s.cfg.Path)
	}
	return s.Serve(ctx, listener)
}

// Close disconnects every client and drops the bus subscription.
func (s *Server) Close() {
	s.mu.Lock()
	clients := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	stop := s.stopSub
	s.stopSub = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	for _, c := range clients {
		c.close()
	}
}

// ClientCount reports connected clients.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// BroadcastLevel sends a meter sample to every client when it changed.
func (s *Server) BroadcastLevel(level int) {
	s.mu.Lock()
	if level == s.lastLevel {
		s.mu.Unlock()
		return
	}
	s.lastLevel = level
	s.mu.Unlock()

	s.broadcast(outbound{Type: typeLevel, Level: &level})
}

// BroadcastStatus sends a voice status snapshot to every client.
func (s *Server) BroadcastStatus(status StatusSnapshot) {
	s.broadcast(outbound{Type: typeStatus, Status: statusFrameOf(status)})
}

func (s *Server) broadcastEvent(event bus.Event) {
	s.broadcast(outbound{Type: typeEvent, Name: string(event.Name), Detail: event.Detail})
}

func (s *Server) broadcast(msg outbound) {
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log(slog.LevelWarn, "bridge encode failed", "type", msg.Type, "error", err.Error())
		return
	}

	s.mu.Lock()
	targets := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		if !c.enqueue(payload) {
			s.log(slog.LevelWarn, "bridge client too slow; dropping", "client", c.id)
			c.drop()
		}
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log(slog.LevelDebug, "bridge upgrade failed", "error", err.Error(), "origin", r.Header.Get("Origin"))
		return
	}

	c := newClient(uuid.NewString(), conn, s.cfg.SendBuffer)
	s.mu.Lock()
	s.clients[c.id] = c
	s.mu.Unlock()
	s.log(slog.LevelInfo, "bridge client connected", "client", c.id, "remote", r.RemoteAddr)

	hello := outbound{Type: typeHello, Client: c.id}
	if s.deps.Status != nil {
		hello.Status = statusFrameOf(s.deps.Status())
	}
	s.send(c, hello)

	go c.writePump()
	c.readPump(func(data []byte) { s.handleMessage(c, data) })

	s.disconnect(c)
}

func (s *Server) disconnect(c *client) {
	c.close()

	s.mu.Lock()
	delete(s.clients, c.id)
	var owned []string
	for mount, owner := range s.owners {
		if owner == c.id {
			owned = append(owned, mount)
			delete(s.owners, mount)
		}
	}
	s.mu.Unlock()

	for _, mount := range owned {
		s.deps.Router.Unregister(mount)
	}
	s.log(slog.LevelInfo, "bridge client disconnected", "client", c.id, "mounts_released", len(owned))
}

func (s *Server) handleMessage(c *client, data []byte) {
	msg, err := decodeInbound(data)
	if err != nil {
		s.send(c, outbound{Type: typeError, Error: err.Error()})
		return
	}

	switch msg.Type {
	case typeRegister:
		mount := mountPrefix + msg.Mount
		s.mu.Lock()
		owner, taken := s.owners[mount]
		if taken && owner != c.id {
			s.mu.Unlock()
			s.send(c, outbound{Type: typeError, Mount: msg.Mount, Error: "mount owned by another client"})
			return
		}
		s.owners[mount] = c.id
		s.mu.Unlock()
		s.deps.Router.Register(mount, s.descriptors(msg.Commands))
		s.log(slog.LevelInfo, "island mounted", "client", c.id, "mount", msg.Mount, "commands", len(msg.Commands))
		s.send(c, outbound{Type: typeAck, Mount: msg.Mount})
	case typeUnregister:
		mount := mountPrefix + msg.Mount
		s.mu.Lock()
		owner, ok := s.owners[mount]
		if ok && owner == c.id {
			delete(s.owners, mount)
		}
		s.mu.Unlock()
		if !ok || owner != c.id {
			s.send(c, outbound{Type: typeError, Mount: msg.Mount, Error: "mount not owned by this client"})
			return
		}
		s.deps.Router.Unregister(mount)
		s.send(c, outbound{Type: typeAck, Mount: msg.Mount})
	case typePreference:
		if s.deps.Preference == nil {
			s.send(c, outbound{Type: typeError, Error: "preference changes are not available"})
			return
		}
		s.mu.Lock()
		ctx := s.ctx
		s.mu.Unlock()
		if err := s.deps.Preference.SetEnabled(ctx, *msg.Enabled); err != nil {
			s.send(c, outbound{Type: typeError, Error: err.Error()})
			return
		}
		s.send(c, outbound{Type: typeAck})
	}
}

// descriptors turns remote commands into router descriptors publishing their event.
func (s *Server) descriptors(commands []remoteCommand) []command.Descriptor {
	out := make([]command.Descriptor, 0, len(commands))
	for _, rc := range commands {
		name := bus.Name(rc.Event)
		var detail any
		if len(rc.Detail) > 0 {
			detail = rc.Detail
		}
		out = append(out, command.Descriptor{
			ID:          rc.ID,
			Keywords:    rc.Keywords,
			Description: rc.Description,
			Handler: func(string) {
				if err := s.deps.Events.Publish(name, detail); err != nil {
					s.log(slog.LevelWarn, "island command publish failed", "command", rc.ID, "error", err.Error())
				}
			},
		})
	}
	return out
}

func (s *Server) send(c *client, msg outbound) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if !c.enqueue(payload) {
		c.drop()
	}
}

// checkOrigin admits non-browser clients, listed origins, or same-host origins when no list is set.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(s.cfg.AllowedOrigins) > 0 {
		for _, allowed := range s.cfg.AllowedOrigins {
			allowed = strings.TrimSpace(allowed)
			if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), strings.TrimRight(origin, "/")) {
				return true
			}
		}
		return false
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

func (s *Server) log(level slog.Level, msg string, attrs ...any) {
	if s.deps.Logger == nil {
		return
	}
	s.deps.Logger.Log(context.Background(), level, msg, attrs...)
}

func statusFrameOf(status StatusSnapshot) *statusFrame {
	return &statusFrame{Enabled: status.Enabled, State: status.State, Error: status.Error}
}
