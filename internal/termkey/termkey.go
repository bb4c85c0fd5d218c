// Package termkey derives a stable string identifying the host terminal
// session, per spec.md §6 ("Terminal key derivation").
package termkey

import (
	"fmt"
	"os"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/ttyinfo"
)

// candidate pairs an environment variable with the tag its value is
// prefixed with when chosen, in priority order.
type candidate struct {
	tag string
	env string
}

var priority = []candidate{
	{"ITERM:", "ITERM_SESSION_ID"},
	{"TERM_SESSION:", "TERM_SESSION_ID"},
	{"KITTY:", "KITTY_WINDOW_ID"},
	{"WEZTERM:", "WEZTERM_PANE"},
	{"WT:", "WT_SESSION"},
}

// Derive returns the terminal key for the current process using the
// priority list: iTerm session id, Terminal.app session id, Kitty window
// id, WezTerm pane, Windows Terminal session, controlling TTY path,
// process id. env is typically the "terminal_env" map reported by the
// session_start event (§6); it is consulted instead of the daemon's own
// environment because the key identifies the *hooked process's*
// terminal, not the daemon's.
func Derive(env map[string]string) string {
	for _, c := range priority {
		if v := env[c.env]; v != "" {
			return c.tag + v
		}
	}
	if tty, err := ttyinfo.ControllingTTY(); err == nil && tty != "" {
		return "TTY:" + tty
	}
	return fmt.Sprintf("PID:%d", os.Getpid())
}

// DeriveFromOSEnv derives a terminal key from the daemon's own
// environment, used when no terminal_env payload is available.
func DeriveFromOSEnv() string {
	env := make(map[string]string, len(priority))
	for _, c := range priority {
		if v, ok := os.LookupEnv(c.env); ok {
			env[c.env] = v
		}
	}
	return Derive(env)
}
