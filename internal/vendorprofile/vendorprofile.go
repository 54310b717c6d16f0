// Package vendorprofile holds the per-vendor prologue table the Device
// Runner uses to build a vendor-appropriate prologue (spec.md §4.5).
// Grounded on original_source/pcng/run_jobs_concurrent_batch.py's
// VendorCommandManager, which keyed a paging-disable command and a couple
// of per-vendor session knobs by vendor hint.
package vendorprofile

import "strings"

// Profile is the set of session knobs associated with a vendor hint.
type Profile struct {
	// PagingDisable commands are issued, in order, as the first step of the
	// prologue. Some platforms (fortinet) need more than one line.
	PagingDisable []string
	// PromptCount is the number of prompt occurrences each command adds to
	// the detector's aggregate count; 1 is the plain N+1 scheme (spec.md
	// §4.1). Platforms with noisier banners need a higher count.
	PromptCount int
	// PrologueTimeout bounds each prologue command's wait for the prompt.
	PrologueTimeoutMS int
	Description       string
}

var profiles = map[string]Profile{
	"cisco": {
		PagingDisable:     []string{"terminal length 0"},
		PromptCount:       1,
		PrologueTimeoutMS: 10000,
		Description:       "Cisco IOS/IOS-XE devices",
	},
	"arista": {
		PagingDisable:     []string{"terminal length 0"},
		PromptCount:       1,
		PrologueTimeoutMS: 10000,
		Description:       "Arista EOS devices",
	},
	"paloalto": {
		PagingDisable:     []string{"set cli pager off"},
		PromptCount:       3,
		PrologueTimeoutMS: 15000,
		Description:       "Palo Alto firewalls",
	},
	"cloudgenix": {
		PagingDisable:     []string{"set paging off"},
		PromptCount:       3,
		PrologueTimeoutMS: 15000,
		Description:       "CloudGenix SD-WAN devices",
	},
	"juniper": {
		PagingDisable:     []string{"set cli screen-length 0"},
		PromptCount:       1,
		PrologueTimeoutMS: 10000,
		Description:       "Juniper JunOS devices",
	},
	"fortinet": {
		PagingDisable:     []string{"config system console", "set output standard", "end"},
		PromptCount:       1,
		PrologueTimeoutMS: 10000,
		Description:       "Fortinet FortiGate firewalls",
	},
	"generic": {
		PagingDisable:     nil,
		PromptCount:       1,
		PrologueTimeoutMS: 10000,
		Description:       "Generic/unknown devices (no paging disable)",
	},
}

// For returns the profile for a vendor hint, falling back to "generic" for
// an empty or unrecognized hint.
func For(vendorHint string) Profile {
	if p, ok := profiles[strings.ToLower(strings.TrimSpace(vendorHint))]; ok {
		return p
	}
	return profiles["generic"]
}
