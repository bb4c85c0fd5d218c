package ingestion

import "testing"

func TestParseLineRejectsMalformedJSON(t *testing.T) {
	if _, err := parseLine([]byte("not json")); err == nil {
		t.Fatal("expected an error for malformed json")
	}
}

func TestProjectPathPrefersWorkspaceProjectDir(t *testing.T) {
	ev := rawEvent{CWD: "/tmp/cwd", Workspace: workspacePayload{ProjectDir: "/tmp/project"}}
	if got := ev.projectPath(); got != "/tmp/project" {
		t.Fatalf("projectPath() = %q, want workspace.project_dir", got)
	}
}

func TestProjectPathFallsBackToCWD(t *testing.T) {
	ev := rawEvent{CWD: "/tmp/cwd"}
	if got := ev.projectPath(); got != "/tmp/cwd" {
		t.Fatalf("projectPath() = %q, want cwd fallback", got)
	}
}

func TestTimestampParsesRFC3339NanoAndToleratesGarbage(t *testing.T) {
	ev := rawEvent{Timestamp: "2026-01-01T00:00:00.123456789Z"}
	if ts := ev.timestamp(); ts.IsZero() {
		t.Fatal("expected a valid RFC3339Nano timestamp to parse")
	}
	bad := rawEvent{Timestamp: "not-a-timestamp"}
	if ts := bad.timestamp(); !ts.IsZero() {
		t.Fatalf("expected an unparseable timestamp to fall back to zero value, got %v", ts)
	}
}

func TestProjectNameTakesFinalPathComponent(t *testing.T) {
	if got := projectName("/Users/dev/my-project"); got != "my-project" {
		t.Fatalf("projectName() = %q, want my-project", got)
	}
	if got := projectName("no-slash"); got != "no-slash" {
		t.Fatalf("projectName() = %q, want passthrough", got)
	}
}
