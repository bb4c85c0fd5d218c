// Package scanner enumerates running vendor CLI processes and discovers
// their active transcript files, per spec.md §4.5. Grounded directly on
// mrf-agent-racer/backend/internal/monitor/process.go's /proc enumeration,
// cmdline parsing, and cwd resolution.
package scanner

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ProcessInfo describes one live vendor CLI process.
type ProcessInfo struct {
	PID       int
	CWD       string
	Cmdline   string
	StartedAt time.Time
}

var vendorBinaryNames = map[string]bool{
	"claude": true,
	"cursor": true,
	"cursor-agent": true,
}

// DiscoverProcesses enumerates live vendor CLI processes by scanning
// /proc. Processes whose cwd is under the daemon's own state directory are
// skipped (mirrors the teacher's "skip ~/.claude internal processes" rule).
func DiscoverProcesses(ownStateDir string) ([]ProcessInfo, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}
	var out []ProcessInfo
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil {
			continue
		}
		cmdline, err := readCmdline(pid)
		if err != nil || cmdline == "" {
			continue
		}
		if !isVendorProcess(cmdline) {
			continue
		}
		cwd, err := os.Readlink(filepath.Join("/proc", entry.Name(), "cwd"))
		if err != nil {
			continue
		}
		if ownStateDir != "" && strings.HasPrefix(cwd, ownStateDir) {
			continue
		}
		out = append(out, ProcessInfo{
			PID:       pid,
			CWD:       cwd,
			Cmdline:   cmdline,
			StartedAt: processStartTime(pid),
		})
	}
	return out, nil
}

func readCmdline(pid int) (string, error) {
	data, err := os.ReadFile(filepath.Join("/proc", strconv.Itoa(pid), "cmdline"))
	if err != nil {
		return "", err
	}
	parts := bytes.Split(bytes.TrimRight(data, "\x00"), []byte{0})
	strs := make([]string, 0, len(parts))
	for _, p := range parts {
		if len(p) > 0 {
			strs = append(strs, string(p))
		}
	}
	return strings.Join(strs, " "), nil
}

func isVendorProcess(cmdline string) bool {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return false
	}
	bin := filepath.Base(fields[0])
	if vendorBinaryNames[bin] {
		return true
	}
	// node-launched CLIs (e.g. `node .../cli.js`) excluding their own
	// node_modules/.bin shims, mirroring the teacher's isAgentProcess.
	if bin == "node" {
		for _, f := range fields[1:] {
			if strings.Contains(f, "node_modules/.bin") {
				return false
			}
			if strings.Contains(f, "claude") || strings.Contains(f, "cursor") {
				return true
			}
		}
	}
	return false
}

func processStartTime(pid int) time.Time {
	info, err := os.Stat(filepath.Join("/proc", strconv.Itoa(pid)))
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
