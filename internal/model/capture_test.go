package model

import "testing"

func TestNewCaptureTypeSetDefaultsWhenEmpty(t *testing.T) {
	set := NewCaptureTypeSet(nil)
	if !set.Known("version") || !set.Known("configs") {
		t.Fatalf("NewCaptureTypeSet(nil) did not default to DefaultCaptureTypes")
	}
	if len(set) != len(DefaultCaptureTypes) {
		t.Errorf("len(set) = %d, want %d", len(set), len(DefaultCaptureTypes))
	}
}

func TestNewCaptureTypeSetExplicit(t *testing.T) {
	set := NewCaptureTypeSet([]CaptureType{"version", "arp"})
	if !set.Known("version") || !set.Known("arp") {
		t.Fatalf("explicit set missing given types: %v", set)
	}
	if set.Known("configs") {
		t.Errorf("explicit set should not default to DefaultCaptureTypes")
	}
}

func TestCaptureTypeSetKnownUnknownType(t *testing.T) {
	set := NewCaptureTypeSet([]CaptureType{"version"})
	if set.Known("not-a-real-type") {
		t.Error("Known() returned true for an unlisted capture type")
	}
}
