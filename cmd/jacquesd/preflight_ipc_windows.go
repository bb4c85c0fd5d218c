//go:build windows

package main

import (
	"fmt"

	winio "github.com/Microsoft/go-winio"
)

// checkIPCEndpointFree fails fast if a live named pipe already owns path.
func checkIPCEndpointFree(path string) error {
	conn, err := winio.DialPipe(path, nil)
	if err != nil {
		return nil
	}
	conn.Close()
	return fmt.Errorf("ingestion pipe %s is already in use by a running instance", path)
}
