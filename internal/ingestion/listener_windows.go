//go:build windows

package ingestion

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

// listen opens a named pipe at path (e.g. \\.\pipe\jacques-ingest), the
// Windows equivalent of the POSIX AF_UNIX socket (spec.md §4.2).
func listen(path string) (net.Listener, error) {
	ln, err := winio.ListenPipe(path, nil)
	if err != nil {
		return nil, fmt.Errorf("ingestion: listen on pipe %s: %w", path, err)
	}
	return ln, nil
}
