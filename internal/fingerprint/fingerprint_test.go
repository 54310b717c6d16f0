package fingerprint

import (
	"testing"

	"github.com/netcapd/netcapd/internal/template"
)

func mustStore(t *testing.T) *template.Store {
	t.Helper()
	st, err := template.Load("")
	if err != nil {
		t.Fatalf("template.Load() error = %v", err)
	}
	return st
}

const ciscoShowVersion = `core-sw-01 uptime is 3 weeks, 2 days, 4 hours, 10 minutes
System returned to ROM by power-on
Cisco IOS Software, C3750E Software, Version 15.2(4)E10, RELEASE SOFTWARE (fc1)
Model number: WS-C3750X-48
System serial number: FOC1234A5BC
`

func TestParseSelectsCiscoTemplate(t *testing.T) {
	e := New(mustStore(t), DefaultScoring())
	result := e.Parse("show version", ciscoShowVersion, "cisco")

	if !result.Matched {
		t.Fatal("Parse() did not match, want a cisco hit")
	}
	if result.TemplateID != "cisco_ios_show_version" {
		t.Errorf("TemplateID = %q, want cisco_ios_show_version", result.TemplateID)
	}
	if got := result.Records[0]["hostname"]; got != "core-sw-01" {
		t.Errorf("hostname = %q, want core-sw-01", got)
	}
	if got := result.Records[0]["serial"]; got != "FOC1234A5BC" {
		t.Errorf("serial = %q, want FOC1234A5BC", got)
	}
}

func TestParseVendorHintBreaksTieTowardMatchingVendor(t *testing.T) {
	e := New(mustStore(t), DefaultScoring())

	withHint := e.Parse("show version", ciscoShowVersion, "cisco")
	withoutHint := e.Parse("show version", ciscoShowVersion, "")

	if withHint.Score <= withoutHint.Score {
		t.Errorf("vendor-hint score %d should exceed no-hint score %d", withHint.Score, withoutHint.Score)
	}
}

func TestParseFallsBackToGenericTemplate(t *testing.T) {
	e := New(mustStore(t), DefaultScoring())
	output := "Some Device OS, version 9.1.2\nUptime: forever\n"

	result := e.Parse("show version", output, "")
	if !result.Matched {
		t.Fatal("Parse() did not match a generic version line")
	}
	if result.TemplateID != "generic_show_version" {
		t.Errorf("TemplateID = %q, want generic_show_version", result.TemplateID)
	}
}

func TestParseNoCandidateMatch(t *testing.T) {
	e := New(mustStore(t), DefaultScoring())
	result := e.Parse("show version", "completely unrelated text with no version marker", "")
	if result.Matched {
		t.Fatalf("Parse() matched unexpectedly: %+v", result)
	}
}

func TestParseMultipleRecordTemplate(t *testing.T) {
	e := New(mustStore(t), DefaultScoring())
	output := `NAME: "1", DESCR: "WS-C3750X-48 Chassis"
PID: WS-C3750X-48  , VID: V04, SN: FOC1111AAAA
NAME: "2", DESCR: "WS-C3750X-48 Chassis"
PID: WS-C3750X-48  , VID: V04, SN: FOC2222BBBB
`
	result := e.Parse("show inventory", output, "cisco")
	if !result.Matched {
		t.Fatal("Parse() did not match the inventory template")
	}
	if len(result.Records) != 2 {
		t.Fatalf("Records has %d entries, want 2", len(result.Records))
	}
	if result.Records[0]["serial"] != "FOC1111AAAA" || result.Records[1]["serial"] != "FOC2222BBBB" {
		t.Errorf("Records = %+v, serials out of order", result.Records)
	}
}

func TestDeriveSingleDeviceRecord(t *testing.T) {
	e := New(mustStore(t), DefaultScoring())
	parsed := e.Parse("show version", ciscoShowVersion, "cisco")

	rec := Derive(parsed, nil, "10.0.0.1", "")
	if rec.Hostname != "core-sw-01" {
		t.Errorf("Hostname = %q, want core-sw-01", rec.Hostname)
	}
	if rec.HostIP != "10.0.0.1" {
		t.Errorf("HostIP = %q, want 10.0.0.1", rec.HostIP)
	}
	if rec.SerialNumbers != "FOC1234A5BC" {
		t.Errorf("SerialNumbers = %q, want FOC1234A5BC", rec.SerialNumbers)
	}
	if len(rec.StackMembers) != 0 {
		t.Errorf("StackMembers = %+v, want none for a single serial", rec.StackMembers)
	}
}

func TestDeriveSynthesizesStackMembersFromMultipleSerials(t *testing.T) {
	parsed := ParseResult{
		Matched: true,
		Vendor:  "cisco",
		Records: []Record{{
			"hostname": "stack-sw-01",
			"model":    "WS-C3750X-1, WS-C3750X-2",
			"serial":   "FOC1111, FOC2222",
		}},
	}

	rec := Derive(parsed, nil, "10.0.0.2", "")
	if len(rec.StackMembers) != 2 {
		t.Fatalf("StackMembers has %d entries, want 2", len(rec.StackMembers))
	}
	if !rec.StackMembers[0].IsMaster || rec.StackMembers[1].IsMaster {
		t.Errorf("StackMembers master flags = %+v, want only the first member marked master", rec.StackMembers)
	}
	if rec.StackMembers[1].Model != "WS-C3750X-2" {
		t.Errorf("StackMembers[1].Model = %q, want WS-C3750X-2", rec.StackMembers[1].Model)
	}
}

func TestDeriveHostnameFallsBackToObservedPrompt(t *testing.T) {
	rec := Derive(ParseResult{}, nil, "10.0.0.3", "switch-prompt>")
	if rec.Hostname != "switch-prompt>" {
		t.Errorf("Hostname = %q, want fallback to observed prompt", rec.Hostname)
	}
}

func TestDeriveIncludesInventoryComponents(t *testing.T) {
	versionParsed := ParseResult{
		Matched: true,
		Records: []Record{{"hostname": "core-sw-01"}},
	}
	inventoryParsed := ParseResult{
		Matched: true,
		Records: []Record{
			{"name": "1", "description": "WS-C3750X-48 Chassis", "pid": "WS-C3750X-48", "serial": "FOC1111"},
		},
	}

	rec := Derive(versionParsed, &inventoryParsed, "10.0.0.4", "")
	if len(rec.Components) != 1 {
		t.Fatalf("Components has %d entries, want 1", len(rec.Components))
	}
	if rec.Components[0].Kind != "chassis" {
		t.Errorf("Components[0].Kind = %q, want chassis", rec.Components[0].Kind)
	}
}
