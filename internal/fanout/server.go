package fanout

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/registry"
	"github.com/gregory-lime/jacques-context-manager-sub007/internal/telemetry"
)

// CommandHandler translates a client command into a registry/external
// collaborator operation, per spec.md §4.3.
type CommandHandler interface {
	Handle(ctx context.Context, cmd Command)
}

// Server serves the websocket fan-out endpoint described in spec.md §4.3.
// Grounded on mrf-agent-racer/backend/internal/ws.Server: gorilla/websocket
// upgrade, an explicit origin allowlist, and a read loop used only to
// detect client disconnect and decode commands.
type Server struct {
	reg         *registry.Registry
	broadcaster *Broadcaster
	handler     CommandHandler
	log         telemetry.Logger

	upgrader     websocket.Upgrader
	allowOrigins []string

	httpServer *http.Server
}

// NewServer constructs a fan-out server. allowOrigins supplements the
// built-in localhost allowlist.
func NewServer(reg *registry.Registry, broadcaster *Broadcaster, handler CommandHandler, log telemetry.Logger, allowOrigins []string) *Server {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	s := &Server{
		reg:          reg,
		broadcaster:  broadcaster,
		handler:      handler,
		log:          log,
		allowOrigins: allowOrigins,
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}
	return s
}

// ListenAndServe binds a TCP listener on port and serves the /ws endpoint
// until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()
	err = s.httpServer.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn(r.Context(), "fanout upgrade failed", "error", err.Error())
		return
	}
	defer conn.Close()

	snapshot := registry.Snapshot{Sessions: s.reg.ListSessions()}
	if focused, ok := s.reg.GetFocusedSession(); ok {
		snapshot.FocusedID = focused.ID
	}
	c, initial, err := s.broadcaster.AddClient(r.Context(), snapshot)
	if err != nil {
		return
	}
	defer s.broadcaster.RemoveClient(c)

	if err := conn.WriteMessage(websocket.TextMessage, initial); err != nil {
		return
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for data := range c.send {
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}
		if s.handler != nil {
			s.handler.Handle(r.Context(), cmd)
		}
	}
	<-done
}

// checkOrigin allows localhost/127.0.0.1/::1 plus any configured
// allowlist entry, mirroring mrf-agent-racer's ws.Server.checkOrigin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, host := range []string{"localhost", "127.0.0.1", "[::1]"} {
		if strings.Contains(origin, host) {
			return true
		}
	}
	for _, allowed := range s.allowOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
