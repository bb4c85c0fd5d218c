// Package ingestion implements the local-socket NDJSON event server that
// feeds the session registry. Grounded on goadesign-goa-ai's
// runtime/agent/hooks.Bus dispatch style and mrf-agent-racer's
// incremental-read discipline, adapted from a file tailer to a streaming
// socket reader. See SPEC_FULL.md §2, spec.md §4.2.
package ingestion

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/registry"
	"github.com/gregory-lime/jacques-context-manager-sub007/internal/session"
	"github.com/gregory-lime/jacques-context-manager-sub007/internal/telemetry"
	"github.com/gregory-lime/jacques-context-manager-sub007/internal/termkey"
)

// Server accepts connections on the platform IPC endpoint and dispatches
// newline-delimited JSON events into the registry.
type Server struct {
	reg *registry.Registry
	log telemetry.Logger

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
}

// New constructs an ingestion server bound to reg.
func New(reg *registry.Registry, log telemetry.Logger) *Server {
	if log == nil {
		log = telemetry.NewNoopLogger()
	}
	return &Server{reg: reg, log: log}
}

// Serve opens the endpoint at path and accepts connections until ctx is
// canceled or Close is called. Each accepted connection is read until EOF
// or a read error (such as a line longer than the scanner's limit), which
// terminates that connection only — it never brings down the listener. A
// malformed or truncated JSON line is logged and discarded and the
// connection keeps being read; it does not terminate the connection.
func (s *Server) Serve(ctx context.Context, path string) error {
	ln, err := listen(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			if isClosedErr(err) {
				return nil
			}
			s.log.Warn(ctx, "ingestion accept error", "error", err.Error())
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// Close stops accepting connections and releases the endpoint.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	err := s.listener.Close()
	s.listener = nil
	return err
}

// Wait blocks until every in-flight connection handler has returned.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		s.dispatch(ctx, line)
	}
	if err := scanner.Err(); err != nil && err != io.EOF {
		s.log.Warn(ctx, "ingestion connection error", "error", err.Error())
	}
}

func (s *Server) dispatch(ctx context.Context, line []byte) {
	ev, err := parseLine(line)
	if err != nil {
		s.log.Warn(ctx, "ingestion malformed json, discarding line", "error", err.Error())
		return
	}
	if ev.SessionID == "" {
		s.log.Warn(ctx, "ingestion event missing session_id, discarding")
		return
	}

	switch ev.Event {
	case "session_start":
		s.reg.RegisterSession(ctx, ev.SessionID, registry.SessionMeta{
			Source:             session.NormalizeSource(ev.Source),
			ProjectPath:        ev.projectPath(),
			WorkingDirectory:   ev.CWD,
			ProjectName:        projectName(ev.projectPath()),
			TerminalKey:        termkey.Derive(ev.TerminalEnv),
			Model:              session.Model{DisplayName: ev.ModelPayload.DisplayName, ID: ev.ModelPayload.ID},
			AutocompactEnabled: true,
			TranscriptPath:     ev.TranscriptPath,
			GitBranch:          ev.GitBranch,
			Title:              ev.Title,
			CreatedAt:          ev.timestamp(),
		})
	case "session_end":
		if err := s.reg.UnregisterSession(ctx, ev.SessionID); err != nil {
			s.log.Warn(ctx, "ingestion unknown session on session_end", "session_id", ev.SessionID)
		}
	case "activity":
		if err := s.reg.UpdateActivity(ctx, ev.SessionID, ev.timestamp()); err != nil {
			s.log.Warn(ctx, "ingestion unknown session on activity", "session_id", ev.SessionID)
		}
	case "context_update":
		s.reg.UpdateContext(ctx, ev.SessionID, ev.contextMetrics(), ev.timestamp())
	case "session_idle":
		if err := s.reg.SetSessionIdle(ctx, ev.SessionID); err != nil {
			s.log.Warn(ctx, "ingestion unknown session on session_idle", "session_id", ev.SessionID)
		}
	default:
		s.log.Warn(ctx, "ingestion unknown event type, discarding", "event", ev.Event)
	}
}

func projectName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' || path[i] == '\\' {
			return path[i+1:]
		}
	}
	return path
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
