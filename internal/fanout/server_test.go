package fanout

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/registry"
)

func TestCheckOriginAllowsLocalhostAndConfiguredOrigins(t *testing.T) {
	reg := registry.New()
	defer reg.Close()
	b := NewBroadcaster(reg, nil, 0)
	defer b.Close()

	s := NewServer(reg, b, nil, nil, []string{"https://allowed.example"})

	cases := map[string]bool{
		"":                           true,
		"http://localhost:3000":      true,
		"http://127.0.0.1:5173":      true,
		"https://allowed.example":    true,
		"https://not-allowed.example": false,
	}
	for origin, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		if got := s.checkOrigin(req); got != want {
			t.Fatalf("checkOrigin(%q) = %v, want %v", origin, got, want)
		}
	}
}
