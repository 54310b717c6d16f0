// Package model defines the entities persisted by the Store Adapter: the
// device inventory and its reference data, raw capture rows, fingerprint
// audit rows, and capture-change rows. See spec §3 for the full data model.
package model

import "time"

// Device is a logical managed endpoint. NormalizedName is unique across the
// store; IsStack and HaveSN are derived invariants maintained by the Loader
// on every transaction that touches a device (spec §3, P9).
type Device struct {
	ID               int64
	Name             string
	NormalizedName   string
	SiteID           int64
	VendorID         int64
	DeviceTypeID     int64
	DeviceRoleID     int64
	Model            string
	SoftwareVersion  string
	ManagementAddr   string
	IsStack          bool
	StackCount       int
	HaveSN           bool
	LastFingerprint  *time.Time
	SourceFilePath   string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// DeviceSerial is a serial-number record attached to a device. Exactly one
// row per device may have IsPrimary set when any serials exist (spec §3).
type DeviceSerial struct {
	ID        int64
	DeviceID  int64
	Serial    string
	IsPrimary bool
}

// StackMember is a physical member of a switch stack sharing management
// with a Device. Position is unique within a device; at most one member is
// master (spec §3).
type StackMember struct {
	ID       int64
	DeviceID int64
	Position int
	Model    string
	Serial   string
	IsMaster bool
}

// ComponentKind classifies a hardware Component extracted from an inventory
// capture (spec §3).
type ComponentKind string

const (
	ComponentChassis     ComponentKind = "chassis"
	ComponentModule      ComponentKind = "module"
	ComponentSupervisor  ComponentKind = "supervisor"
	ComponentPSU         ComponentKind = "psu"
	ComponentFan         ComponentKind = "fan"
	ComponentTransceiver ComponentKind = "transceiver"
	ComponentUnknown     ComponentKind = "unknown"
)

// Component is a hardware component extracted from an inventory capture.
type Component struct {
	ID           int64
	DeviceID     int64
	Kind         ComponentKind
	Name         string
	Description  string
	Serial       string
	Position     int
	SourceID     string
	Confidence   float64
}

// Site is a reference entity keyed by a short code (e.g. the hostname
// prefix convention of spec §9's open question on site-code derivation).
type Site struct {
	ID          int64
	Code        string
	Description string
}

// Vendor is a reference entity keyed by name (e.g. "cisco", "juniper").
type Vendor struct {
	ID   int64
	Name string
}

// DeviceType is a reference entity. DriverHint is an out-of-core-scope
// string consumed by external collaborators (spec §3).
type DeviceType struct {
	ID         int64
	Name       string
	DriverHint string
}

// DeviceRole is a reference entity (e.g. "access", "distribution", "core").
type DeviceRole struct {
	ID   int64
	Name string
}

// SiteUnknown is the bucket Site code used when a hostname does not follow
// the configured <SITE>-<...> convention (spec §9 open question).
const SiteUnknown = "UNKNOWN"
