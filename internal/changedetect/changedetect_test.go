package changedetect

import (
	"strings"
	"testing"

	"github.com/netcapd/netcapd/internal/model"
)

func TestComputeIdenticalText(t *testing.T) {
	text := "interface Gi0/1\n description uplink\n"
	d := Compute(text, text)
	if d.LinesAdded != 0 || d.LinesRemoved != 0 {
		t.Fatalf("Compute(x, x) = %+v, want no changes", d)
	}
}

func TestComputeAddedAndRemovedLines(t *testing.T) {
	prior := "a\nb\nc\n"
	next := "a\nc\nd\n"

	d := Compute(prior, next)
	if d.LinesRemoved != 1 || d.LinesAdded != 1 {
		t.Fatalf("Compute() = %+v, want 1 added, 1 removed", d)
	}
	if d.RemovedLines[0] != "b" {
		t.Errorf("RemovedLines = %v, want [b]", d.RemovedLines)
	}
	if d.AddedLines[0] != "d" {
		t.Errorf("AddedLines = %v, want [d]", d.AddedLines)
	}
}

func TestComputeReorderedLinesNotDoubleCounted(t *testing.T) {
	prior := "a\nb\nc\n"
	next := "c\nb\na\n"

	d := Compute(prior, next)
	total := d.LinesAdded + d.LinesRemoved
	if total == 0 || total >= 6 {
		t.Errorf("lineDiff on reordered-but-identical lines reported %d changes, want a small LCS-aware diff", total)
	}
}

func TestComputeOverflow(t *testing.T) {
	var b strings.Builder
	for i := 0; i < maxLinesForDiff; i++ {
		b.WriteString("line\n")
	}
	prior := b.String()
	next := prior + "one more line\n"

	d := Compute(prior, next)
	if !d.Overflowed {
		t.Fatalf("Compute() over %d total lines should overflow", maxLinesForDiff)
	}
	if d.LinesAdded != 0 || d.LinesRemoved != 0 {
		t.Errorf("overflowed Diff carries nonzero counts: %+v", d)
	}
}

func TestClassifyNoChange(t *testing.T) {
	got := Classify(Diff{})
	if got != model.SeverityInformational {
		t.Errorf("Classify(empty) = %s, want %s", got, model.SeverityInformational)
	}
}

func TestClassifyOverflowIsModerate(t *testing.T) {
	got := Classify(Diff{Overflowed: true})
	if got != model.SeverityModerate {
		t.Errorf("Classify(overflowed) = %s, want %s", got, model.SeverityModerate)
	}
}

func TestClassifySensitiveLineIsCritical(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"username", "username admin privilege 15 secret 5 $1$abc"},
		{"enable secret", "enable secret 5 $1$xyz"},
		{"access-list", "access-list 101 permit ip any any"},
		{"router bgp", "router bgp 65000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Diff{AddedLines: []string{tt.line}, LinesAdded: 1}
			if got := Classify(d); got != model.SeverityCritical {
				t.Errorf("Classify(%q) = %s, want %s", tt.line, got, model.SeverityCritical)
			}
		})
	}
}

func TestClassifyCounterOnlyChangeIsMinor(t *testing.T) {
	d := Diff{
		RemovedLines: []string{"  uptime is 3 days, 4 hours, 2 minutes"},
		AddedLines:   []string{"  uptime is 3 days, 4 hours, 3 minutes"},
		LinesAdded:   1,
		LinesRemoved: 1,
	}
	if got := Classify(d); got != model.SeverityMinor {
		t.Errorf("Classify(counter-only) = %s, want %s", got, model.SeverityMinor)
	}
}

func TestClassifyLargeCounterOnlyChangeIsModerate(t *testing.T) {
	lines := make([]string, 0, 12)
	for i := 0; i < 12; i++ {
		lines = append(lines, "  5 packets, 6 bytes")
	}
	d := Diff{AddedLines: lines, LinesAdded: len(lines)}
	if got := Classify(d); got != model.SeverityModerate {
		t.Errorf("Classify(12 counter-like lines) = %s, want %s", got, model.SeverityModerate)
	}
}

func TestClassifyMixedChangeIsModerate(t *testing.T) {
	d := Diff{
		AddedLines: []string{"hostname core-sw-01"},
		LinesAdded: 1,
	}
	if got := Classify(d); got != model.SeverityModerate {
		t.Errorf("Classify(config line) = %s, want %s", got, model.SeverityModerate)
	}
}

func TestContentHashStableAndDistinct(t *testing.T) {
	h1 := ContentHash("hello")
	h2 := ContentHash("hello")
	h3 := ContentHash("world")

	if h1 != h2 {
		t.Errorf("ContentHash not stable: %s != %s", h1, h2)
	}
	if h1 == h3 {
		t.Errorf("ContentHash collided for distinct inputs")
	}
	if len(h1) != 64 {
		t.Errorf("ContentHash length = %d, want 64 (hex sha256)", len(h1))
	}
}

func TestDiffPathShardsByPrefix(t *testing.T) {
	got := DiffPath("/data/diffs", "ab12cd34")
	want := "/data/diffs/ab/ab12cd34.diff"
	if got != want {
		t.Errorf("DiffPath() = %q, want %q", got, want)
	}
}

func TestDiffPathShortID(t *testing.T) {
	got := DiffPath("/data/diffs", "x")
	want := "/data/diffs/x/x.diff"
	if got != want {
		t.Errorf("DiffPath() = %q, want %q", got, want)
	}
}

func TestRenderUnifiedFormat(t *testing.T) {
	d := Diff{AddedLines: []string{"new"}, RemovedLines: []string{"old"}}
	got := d.Render()
	want := "-old\n+new\n"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}
