package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gregory-lime/jacques-context-manager-sub007/internal/tokencount"
	"github.com/gregory-lime/jacques-context-manager-sub007/internal/transcript"
)

const activeWithin = 60 * time.Second

// DetectedSession is one discovered active session, per spec.md §4.5.
type DetectedSession struct {
	SessionID      string
	ProjectPath    string
	TranscriptPath string
	GitBranch      string
	Title          string
	PID            int
	TTY            string
	ModTime        time.Time
}

// CatalogEntry is pre-extracted metadata the discovery loop prefers over
// a bounded JSONL read, when fresh (maxAge 5 minutes per spec.md §4.5).
type CatalogEntry struct {
	SessionID   string
	GitBranch   string
	Title       string
	ExtractedAt time.Time
}

// Catalog looks up cached metadata for a transcript file path.
type Catalog interface {
	Lookup(transcriptPath string) (CatalogEntry, bool)
}

const catalogMaxAge = 5 * time.Minute

// TranscriptRootFunc maps a project's working directory to the vendor's
// per-project transcript directory, i.e. filepath.Join(base,
// EncodeProjectPath(cwd)).
type TranscriptRootFunc func(cwd string) string

// ScanForActiveSessions implements spec.md §4.5: enumerate live vendor
// processes, map each to its transcript directory, list recently modified
// JSONL files, and pair them with processes by recency.
func ScanForActiveSessions(ownStateDir string, transcriptRoot TranscriptRootFunc, catalog Catalog, now time.Time) ([]DetectedSession, error) {
	procs, err := DiscoverProcesses(ownStateDir)
	if err != nil {
		return nil, err
	}

	byDir := make(map[string][]ProcessInfo)
	for _, p := range procs {
		byDir[p.CWD] = append(byDir[p.CWD], p)
	}

	var out []DetectedSession
	for cwd, procsInDir := range byDir {
		dir := transcriptRoot(cwd)
		files, err := activeJSONLFiles(dir, now)
		if err != nil {
			continue
		}
		sort.Slice(procsInDir, func(i, j int) bool { return procsInDir[i].StartedAt.After(procsInDir[j].StartedAt) })
		sort.Slice(files, func(i, j int) bool { return files[i].modTime.After(files[j].modTime) })

		pairCount := len(procsInDir)
		if len(files) < pairCount {
			pairCount = len(files)
		}
		for i := 0; i < pairCount; i++ {
			out = append(out, buildDetectedSession(files[i], cwd, catalog, procsInDir[i].PID, "pty"))
		}
		// extra session files beyond process count: synthetic process info.
		for i := pairCount; i < len(files); i++ {
			out = append(out, buildDetectedSession(files[i], cwd, catalog, 0, "?"))
		}
		// extra processes beyond session-file count are ignored (spec.md §4.5).
	}
	return out, nil
}

type jsonlFile struct {
	path    string
	modTime time.Time
}

func activeJSONLFiles(dir string, now time.Time) ([]jsonlFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []jsonlFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > activeWithin {
			continue
		}
		out = append(out, jsonlFile{path: filepath.Join(dir, e.Name()), modTime: info.ModTime()})
	}
	return out, nil
}

func buildDetectedSession(f jsonlFile, cwd string, catalog Catalog, pid int, tty string) DetectedSession {
	sessionID := strings.TrimSuffix(filepath.Base(f.path), ".jsonl")
	ds := DetectedSession{
		SessionID:      sessionID,
		ProjectPath:    cwd,
		TranscriptPath: f.path,
		PID:            pid,
		TTY:            tty,
		ModTime:        f.modTime,
	}
	if catalog != nil {
		if entry, ok := catalog.Lookup(f.path); ok && time.Since(entry.ExtractedAt) <= catalogMaxAge {
			ds.GitBranch = entry.GitBranch
			ds.Title = entry.Title
			return ds
		}
	}
	ds.GitBranch, ds.Title = boundedMetadataRead(f.path)
	return ds
}

// boundedMetadataRead falls back to reading the first <=50 entries of a
// transcript to obtain a git branch and synthesized title, per spec.md
// §4.5's title priority: summary entry, else first real user message with
// leading internal-command entries skipped.
func boundedMetadataRead(path string) (gitBranch, title string) {
	f, err := os.Open(path)
	if err != nil {
		return "", ""
	}
	defer f.Close()

	const maxEntries = 50
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var buf strings.Builder
	for i := 0; i < maxEntries && scanner.Scan(); i++ {
		buf.Write(scanner.Bytes())
		buf.WriteByte('\n')
	}

	result, err := transcript.ParseReader(strings.NewReader(buf.String()), "", tokencount.New(), nil)
	if err != nil {
		return "", ""
	}
	entries := result.Entries
	for _, e := range entries {
		if s, ok := e.Payload.(transcript.SummaryPayload); ok {
			title = truncate(s.Text, 60)
			return
		}
	}
	for _, e := range entries {
		if u, ok := e.Payload.(transcript.UserMessagePayload); ok && !u.IsLocalCommand {
			title = truncate(u.Text, 60)
			return
		}
	}
	return
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
