// Package toolutil provides shared helper functions for go_notes MCP tools.
package toolutil

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anatolykoptev/go_notes/internal/engine/study"
)

// NormLangs lowercases, trims and dedups transcript language codes.
// An empty list falls back to def.
func NormLangs(langs, def []string) []string {
	seen := make(map[string]bool, len(langs))
	out := make([]string, 0, len(langs))
	for _, l := range langs {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	if len(out) == 0 {
		return append([]string(nil), def...)
	}
	return out
}

// CountSet returns how many of vals are non-blank.
func CountSet(vals ...string) int {
	n := 0
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			n++
		}
	}
	return n
}

// ProgressLog collects pipeline events as human-readable lines.
type ProgressLog struct {
	mu    sync.Mutex
	lines []string
}

// Observe is a study.Observer.
func (l *ProgressLog) Observe(e study.Event) {
	var line string
	switch e.Phase {
	case study.PhaseStart:
		line = fmt.Sprintf("%s: started", e.Stage)
	case study.PhaseDone:
		line = fmt.Sprintf("%s: done (%d %s, %s)", e.Stage, e.Items, itemNoun(e.Step, e.Items), e.Elapsed.Round(time.Millisecond))
	case study.PhaseFailed:
		line = fmt.Sprintf("%s: failed: %v", e.Stage, e.Err)
	default:
		return
	}
	l.Add(line)
}

// Add appends a free-form line.
func (l *ProgressLog) Add(line string) {
	l.mu.Lock()
	l.lines = append(l.lines, line)
	l.mu.Unlock()
}

// Lines returns a copy of the collected lines, never nil.
func (l *ProgressLog) Lines() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append(make([]string, 0, len(l.lines)), l.lines...)
}

func itemNoun(step study.Step, n int) string {
	one, many := "artifact", "artifacts"
	switch step {
	case study.NeedsChunks:
		one, many = "chunk", "chunks"
	case study.NeedsSummaries:
		one, many = "summary", "summaries"
	}
	if n == 1 {
		return one
	}
	return many
}
