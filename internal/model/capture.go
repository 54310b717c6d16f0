package model

import "time"

// CaptureType is a closed enumeration of capture kinds (spec §3, §9). The
// Loader skips capture-type directories outside its configured set without
// recording an error; there is no UnknownCaptureType error.
type CaptureType string

// DefaultCaptureTypes is the fixed set recognized at load-configuration time.
// It is deliberately wider than the two types (version, inventory) the
// Fingerprint Engine consumes; the Loader treats all of them uniformly.
var DefaultCaptureTypes = []CaptureType{
	"version", "inventory", "configs", "arp", "mac-address-table",
	"cdp-neighbors", "lldp-neighbors", "interfaces", "interface-status",
	"ip-route", "ip-ospf", "ip-bgp", "vlan", "spanning-tree", "etherchannel",
	"hsrp", "vrrp", "access-lists", "logging", "ntp", "snmp", "environment",
	"inventory-detail", "module", "power-supply", "fan-status", "cpu",
	"memory", "processes", "users", "sessions", "license",
}

// CaptureTypeSet is a lookup built from a configured enumeration.
type CaptureTypeSet map[CaptureType]struct{}

// NewCaptureTypeSet builds a lookup set from the given types, defaulting to
// DefaultCaptureTypes when none are given.
func NewCaptureTypeSet(types []CaptureType) CaptureTypeSet {
	if len(types) == 0 {
		types = DefaultCaptureTypes
	}
	set := make(CaptureTypeSet, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return set
}

// Known reports whether t is a recognized capture type.
func (s CaptureTypeSet) Known(t CaptureType) bool {
	_, ok := s[t]
	return ok
}

// CaptureCurrent is the latest capture of a given type for a device.
// Uniqueness is enforced on (DeviceID, CaptureType) (spec §3).
type CaptureCurrent struct {
	ID          int64
	DeviceID    int64
	CaptureType CaptureType
	CapturedAt  time.Time
	ByteLength  int64
	LineCount   int
	ContentHash string
	Success     bool
	FilePath    string
	Snippet     string
	// Content holds the full captured text, kept alongside Snippet so the
	// Change Detector can diff against it once the on-disk file at FilePath
	// has already been overwritten by the next capture (spec §4.8).
	Content string
}

// CaptureArchive is a historical capture row. It shares CaptureCurrent's
// attributes plus a retention timestamp and is not uniquely keyed by
// (device, type) — the sequence of archive rows for a pair is a history of
// prior content hashes in ingest order (spec §5).
type CaptureArchive struct {
	ID          int64
	DeviceID    int64
	CaptureType CaptureType
	CapturedAt  time.Time
	ByteLength  int64
	LineCount   int
	ContentHash string
	Success     bool
	FilePath    string
	Snippet     string
	Content     string
	ArchivedAt  time.Time
}

// FingerprintExtraction is an audit row written on every Fingerprint Engine
// invocation (spec §4.4, §4.7).
type FingerprintExtraction struct {
	ID           int64
	DeviceID     int64
	Timestamp    time.Time
	TemplateID   string
	Score        int
	Success      bool
	FieldCount   int
	MatchMeta    string
}

// Severity classifies a CaptureChange (spec §4.8).
type Severity string

const (
	SeverityCritical      Severity = "critical"
	SeverityModerate      Severity = "moderate"
	SeverityMinor         Severity = "minor"
	SeverityInformational Severity = "informational"
)

// CaptureChange is emitted when a capture upsert replaces a current row
// whose content hash differs from the new one (spec §3, §4.8).
type CaptureChange struct {
	ID          int64
	DeviceID    int64
	CaptureType CaptureType
	DetectedAt  time.Time
	PriorHash   string
	NewHash     string
	LinesAdded  int
	LinesRemoved int
	DiffPath    string
	Severity    Severity
}
