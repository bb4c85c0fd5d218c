package scanner

import "testing"

func TestIsVendorProcessRecognisesKnownBinaries(t *testing.T) {
	cases := map[string]bool{
		"claude --resume":                      true,
		"/usr/local/bin/cursor-agent":           true,
		"node /opt/claude/cli.js":               true,
		"node /opt/node_modules/.bin/claude":    false,
		"vim main.go":                           false,
		"":                                      false,
	}
	for cmdline, want := range cases {
		if got := isVendorProcess(cmdline); got != want {
			t.Fatalf("isVendorProcess(%q) = %v, want %v", cmdline, got, want)
		}
	}
}
