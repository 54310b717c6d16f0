package prompt

import (
	"testing"
	"time"
)

func TestFeedProbeRequiresQuietPeriod(t *testing.T) {
	d := New()
	start := time.Now()

	result := d.Feed([]byte("switch#"), start)
	if result.Found {
		t.Fatal("Feed() found a prompt before the quiet period elapsed")
	}

	result = d.Feed(nil, start.Add(d.QuietPeriod+time.Millisecond))
	if !result.Found || result.Prompt != "switch#" {
		t.Errorf("Feed() after quiet period = %+v, want switch# found", result)
	}
}

func TestFeedProbeRejectsNonPromptTrailingChar(t *testing.T) {
	d := New()
	now := time.Now()
	d.Feed([]byte("some ordinary log line\n"), now)

	result := d.Feed(nil, now.Add(d.QuietPeriod+time.Millisecond))
	if result.Found {
		t.Errorf("Feed() found a prompt in a line with no trailing prompt char: %+v", result)
	}
}

func TestFeedProbeSkipsBlankTrailingLines(t *testing.T) {
	d := New()
	now := time.Now()
	d.Feed([]byte("switch#\n\n\n"), now)

	result := d.Feed(nil, now.Add(d.QuietPeriod+time.Millisecond))
	if !result.Found || result.Prompt != "switch#" {
		t.Errorf("Feed() = %+v, want the last non-blank line adopted as prompt", result)
	}
}

func TestFeedProbeStripsControlSequencesBeforeMatching(t *testing.T) {
	d := New()
	now := time.Now()
	d.Feed([]byte("\x1b[1mswitch#\x1b[0m"), now)

	result := d.Feed(nil, now.Add(d.QuietPeriod+time.Millisecond))
	if !result.Found || result.Prompt != "switch#" {
		t.Errorf("Feed() = %+v, want switch# after stripping ANSI codes", result)
	}
}

func TestFeedTrackingExactSuffixMatch(t *testing.T) {
	d := New()
	d.Reset("switch#", 0)

	result := d.Feed([]byte("show version\nCisco IOS ...\nswitch#"), time.Now())
	if !result.Found || result.Prompt != "switch#" {
		t.Errorf("Feed() = %+v, want the expected prompt detected", result)
	}
}

func TestFeedTrackingRequiresNPlusOneOccurrences(t *testing.T) {
	d := New()
	d.Reset("switch#", 2) // two commands already issued, so the 3rd occurrence closes this one

	result := d.Feed([]byte("switch#\nswitch#\noutput\n"), time.Now())
	if result.Found {
		t.Errorf("Feed() = %+v, want no match before the 3rd occurrence", result)
	}

	result = d.Feed([]byte("switch#"), time.Now())
	if !result.Found {
		t.Errorf("Feed() = %+v, want a match once the 3rd occurrence appears", result)
	}
}

func TestFeedTrackingStepRequiresExtraOccurrencesPerCommand(t *testing.T) {
	d := New()
	d.Step = 3
	d.Reset("fw>", 0)

	result := d.Feed([]byte("fw>\nfw>\noutput\n"), time.Now())
	if result.Found {
		t.Errorf("Feed() = %+v, want no match before the 3rd occurrence with Step=3", result)
	}

	result = d.Feed([]byte("fw>"), time.Now())
	if !result.Found {
		t.Errorf("Feed() = %+v, want a match once the 3rd occurrence appears", result)
	}
}

func TestFeedTrackingNoExpectedPromptNeverMatches(t *testing.T) {
	d := New()
	d.Mode = ModeTracking
	result := d.Feed([]byte("anything#"), time.Now())
	if result.Found {
		t.Error("Feed() matched with no expected prompt configured")
	}
}

func TestResetSwitchesModeAndClearsBuffer(t *testing.T) {
	d := New()
	d.Feed([]byte("garbage"), time.Now())

	d.Reset("router>", 1)
	if d.Mode != ModeTracking {
		t.Fatalf("Mode after Reset = %v, want ModeTracking", d.Mode)
	}
	if len(d.buf) != 0 {
		t.Errorf("buf after Reset = %q, want empty", d.buf)
	}
}

func TestFeedProbeDefaultsQuietPeriodWhenUnset(t *testing.T) {
	d := &Detector{Mode: ModeProbe}
	now := time.Now()
	d.Feed([]byte("switch#"), now)

	result := d.Feed(nil, now.Add(defaultQuietPeriod+time.Millisecond))
	if !result.Found {
		t.Error("Feed() with zero-valued QuietPeriod did not fall back to the default")
	}
}
