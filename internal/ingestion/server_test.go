package ingestion

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/registry"
)

func startTestServer(t *testing.T) (*Server, string, *registry.Registry) {
	t.Helper()
	reg := registry.New()
	t.Cleanup(reg.Close)

	srv := New(reg, nil)
	sockPath := filepath.Join(t.TempDir(), "ingest.sock")

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		_ = srv.Serve(ctx, sockPath)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if conn, err := net.Dial("unix", sockPath); err == nil {
			conn.Close()
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for ingestion socket to accept connections")
		case <-time.After(5 * time.Millisecond):
		}
	}
	return srv, sockPath, reg
}

func TestSessionStartRegistersSession(t *testing.T) {
	_, sockPath, reg := startTestServer(t)

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	line := `{"event":"session_start","session_id":"s1","source":"claude_code","cwd":"/tmp/proj","title":"first task"}` + "\n"
	if _, err := conn.Write([]byte(line)); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if s, ok := reg.GetSession("s1"); ok {
			if s.Title != "first task" {
				t.Fatalf("expected title 'first task', got %q", s.Title)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for session_start to register the session")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestMalformedLineDoesNotCloseConnection(t *testing.T) {
	_, sockPath, reg := startTestServer(t)

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("not json at all\n")); err != nil {
		t.Fatalf("Write malformed line: %v", err)
	}
	if _, err := conn.Write([]byte(`{"event":"session_start","session_id":"s2","cwd":"/tmp/p2"}` + "\n")); err != nil {
		t.Fatalf("Write valid line: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := reg.GetSession("s2"); ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("expected the connection to keep processing lines after a malformed one")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEventMissingSessionIDIsDiscarded(t *testing.T) {
	_, sockPath, reg := startTestServer(t)

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`{"event":"session_start","cwd":"/tmp/p3"}` + "\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := conn.Write([]byte(`{"event":"session_start","session_id":"s3","cwd":"/tmp/p3"}` + "\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := reg.GetSession("s3"); ok {
			if len(reg.ListSessions()) != 1 {
				t.Fatalf("expected only s3 to be registered, got %d sessions", len(reg.ListSessions()))
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for s3 to register")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestSessionEndUnregistersSession(t *testing.T) {
	_, sockPath, reg := startTestServer(t)

	conn, err := net.Dial("unix", sockPath)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`{"event":"session_start","session_id":"s4","cwd":"/tmp/p4"}` + "\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		if _, ok := reg.GetSession("s4"); ok {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for s4 to register")
		case <-time.After(5 * time.Millisecond):
		}
	}

	if _, err := conn.Write([]byte(`{"event":"session_end","session_id":"s4"}` + "\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline = time.After(2 * time.Second)
	for {
		if _, ok := reg.GetSession("s4"); !ok {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for s4 to unregister")
		case <-time.After(5 * time.Millisecond):
		}
	}
}
