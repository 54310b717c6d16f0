// Package changedetect implements the Change Detector (spec.md §4.8): it
// classifies the severity of a capture change from a line-level diff
// between the prior and new text.
package changedetect

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/netcapd/netcapd/internal/model"
)

// sensitivePatterns flags lines whose presence in an add/remove set forces
// critical severity (spec.md §4.8).
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*username\s`),
	regexp.MustCompile(`(?i)^\s*enable secret`),
	regexp.MustCompile(`(?i)^\s*crypto key`),
	regexp.MustCompile(`(?i)^\s*access-list\s`),
	regexp.MustCompile(`(?i)^\s*ip access-list`),
	regexp.MustCompile(`(?i)^\s*router\s+(ospf|bgp|eigrp|rip|isis)\b`),
	regexp.MustCompile(`(?i)^\s*(permit|deny)\s`),
}

// counterPatterns flags lines whose changes alone never raise severity
// above minor (spec.md §4.8).
var counterPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)uptime`),
	regexp.MustCompile(`\d+\s*(years?|weeks?|days?|hours?|minutes?|seconds?)\b`),
	regexp.MustCompile(`\d+\s*(bytes?|packets?|pkts?)\b`),
	regexp.MustCompile(`(?i)input\s+rate|output\s+rate`),
	regexp.MustCompile(`(?i)(\d+\s*)?(CRC|collisions|errors|drops)\b`),
}

// Diff is the line-level comparison result.
type Diff struct {
	LinesAdded   int
	LinesRemoved int
	AddedLines   []string
	RemovedLines []string
	Overflowed   bool
}

// maxLinesForDiff bounds the diff computation; beyond this the detector
// refuses to compute a full diff and reports Overflowed (spec.md §4.8). The
// LCS backtracking below is O(n*m) in memory, so this stays well short of
// what a full config capture could reach.
const maxLinesForDiff = 4000

// Compute builds a Diff between prior and next using a longest-common-
// subsequence table over whole lines. For inputs beyond maxLinesForDiff it
// returns Overflowed=true with zero-value counts.
func Compute(prior, next string) Diff {
	priorLines := splitLines(prior)
	nextLines := splitLines(next)
	if len(priorLines)+len(nextLines) > maxLinesForDiff {
		return Diff{Overflowed: true}
	}

	added, removed := lineDiff(priorLines, nextLines)
	return Diff{
		LinesAdded:   len(added),
		LinesRemoved: len(removed),
		AddedLines:   added,
		RemovedLines: removed,
	}
}

// Classify assigns a Severity to a Diff (spec.md §4.8). An overflowed diff
// is always moderate with no diff body to store.
func Classify(d Diff) model.Severity {
	if d.Overflowed {
		return model.SeverityModerate
	}

	changed := append(append([]string{}, d.AddedLines...), d.RemovedLines...)
	if len(changed) == 0 {
		return model.SeverityInformational
	}

	for _, line := range changed {
		if matchesAny(sensitivePatterns, line) {
			return model.SeverityCritical
		}
	}

	total := d.LinesAdded + d.LinesRemoved
	allCounterLike := true
	for _, line := range changed {
		if !matchesAny(counterPatterns, line) {
			allCounterLike = false
			break
		}
	}

	if total < 10 && allCounterLike {
		return model.SeverityMinor
	}
	return model.SeverityModerate
}

// ContentHash computes the stable content hash used throughout the store
// (spec.md §8, R2): sha256 over the raw bytes, hex-encoded.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// DiffPath derives the content-addressed storage path for a change row's
// diff body, rooted under diffRoot (spec.md §4.8). diffID is an ephemeral
// identifier (a uuid) rather than the change row's store id, since the path
// must be assignable before the row is committed.
func DiffPath(diffRoot, diffID string) string {
	shard := diffID
	if len(shard) > 2 {
		shard = shard[:2]
	}
	return fmt.Sprintf("%s/%s/%s.diff", diffRoot, shard, diffID)
}

// Render produces a unified-style textual diff body for storage.
func (d Diff) Render() string {
	var b strings.Builder
	for _, l := range d.RemovedLines {
		b.WriteString("-")
		b.WriteString(l)
		b.WriteString("\n")
	}
	for _, l := range d.AddedLines {
		b.WriteString("+")
		b.WriteString(l)
		b.WriteString("\n")
	}
	return b.String()
}

func matchesAny(patterns []*regexp.Regexp, line string) bool {
	for _, p := range patterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

// lineDiff returns the set of lines only in b (added) and only in a
// (removed), using longest-common-subsequence backtracking so that
// reordered-but-identical lines are not double-counted.
func lineDiff(a, b []string) (added, removed []string) {
	n, m := len(a), len(b)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			i++
			j++
		case lcs[i+1][j] >= lcs[i][j+1]:
			removed = append(removed, a[i])
			i++
		default:
			added = append(added, b[j])
			j++
		}
	}
	for ; i < n; i++ {
		removed = append(removed, a[i])
	}
	for ; j < m; j++ {
		added = append(added, b[j])
	}
	return added, removed
}
