package main

import (
	"fmt"
	"net"
	"os"
)

// checkTCPPortFree fails fast if the fan-out port is already bound.
func checkTCPPortFree(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("fan-out address %s is already in use: %w", addr, err)
	}
	return ln.Close()
}

// checkPIDFile fails fast if pidPath names a process that is still alive.
func checkPIDFile(pidPath string) error {
	data, err := os.ReadFile(pidPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "%d", &pid); err != nil {
		return nil
	}
	if processAlive(pid) {
		return fmt.Errorf("another jacquesd instance appears to be running (pid %d, %s)", pid, pidPath)
	}
	return nil
}

func writePIDFile(pidPath string) error {
	return os.WriteFile(pidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644)
}
