package fingerprint

import "strings"

// DeviceRecord is the self-describing, on-disk fingerprint record written
// by the Device Runner and read back by the Loader (spec.md §6, "Fingerprint
// artifact filesystem layout"). Field names and casing are fixed; unknown
// input fields are ignored on decode (spec.md §9, "Dynamically typed
// fingerprint records" redesign note).
type DeviceRecord struct {
	Hostname       string            `json:"hostname"`
	HostIP         string            `json:"host_ip"`
	Model          string            `json:"model"`
	Version        string            `json:"version"`
	SerialNumbers  string            `json:"serial_numbers"`
	CommandOutputs map[string]string `json:"command_outputs"`
	AdditionalInfo AdditionalInfo    `json:"additional_info"`

	StackMembers []StackMemberRecord `json:"stack_members,omitempty"`
	Components   []ComponentRecord   `json:"components,omitempty"`
}

// AdditionalInfo carries the vendor hint and any out-of-core-scope driver
// hints (spec.md §3, DeviceType's driver string).
type AdditionalInfo struct {
	VendorHint string `json:"vendor_hint"`
	DriverHint string `json:"driver_hint,omitempty"`
}

// StackMemberRecord is one physical stack member, present when the parse
// produced structured stack data rather than a flat serial list.
type StackMemberRecord struct {
	Position int    `json:"position"`
	Model    string `json:"model"`
	Serial   string `json:"serial"`
	IsMaster bool   `json:"is_master"`
}

// ComponentRecord is one hardware component extracted from an inventory
// capture.
type ComponentRecord struct {
	Kind        string  `json:"kind"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Serial      string  `json:"serial"`
	Position    int     `json:"position"`
	SourceID    string  `json:"source_id"`
	Confidence  float64 `json:"confidence"`
}

// Derive builds a DeviceRecord from the version capture's winning parse
// (required) and, optionally, the inventory capture's winning parse, per
// spec.md §4.4 "Device derivation". observedPrompt is used as the hostname
// fallback when no template field supplied one.
func Derive(versionResult ParseResult, inventoryResult *ParseResult, hostIP, observedPrompt string) DeviceRecord {
	rec := DeviceRecord{
		HostIP: hostIP,
		AdditionalInfo: AdditionalInfo{
			VendorHint: versionResult.Vendor,
		},
	}

	if len(versionResult.Records) > 0 {
		v := versionResult.Records[0]
		rec.Hostname = firstNonEmpty(v["hostname"], observedPrompt)
		rec.Model = joinField(versionResult.Records, "model")
		rec.Version = preferSemanticVersion(versionResult.Records, "version")
		rec.SerialNumbers = joinField(versionResult.Records, "serial")
	} else {
		rec.Hostname = observedPrompt
	}

	if rec.Hostname == "" {
		rec.Hostname = observedPrompt
	}

	serials := splitSerials(rec.SerialNumbers)
	models := splitCSV(rec.Model)
	if len(serials) > 1 {
		rec.StackMembers = synthesizeStackMembers(serials, models)
	}

	if inventoryResult != nil && inventoryResult.Matched {
		rec.Components = componentsFromRecords(inventoryResult.Records)
	}

	return rec
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func joinField(records []Record, field string) string {
	var parts []string
	for _, r := range records {
		if v := r[field]; v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, ", ")
}

// preferSemanticVersion picks the first field value that looks like a
// dotted/parenthesized version string; falls back to the first non-empty
// value (spec.md §4.4: "first non-empty, preferring fields that look like
// semantic versions").
func preferSemanticVersion(records []Record, field string) string {
	var first string
	for _, r := range records {
		v := r[field]
		if v == "" {
			continue
		}
		if first == "" {
			first = v
		}
		if looksLikeVersion(v) {
			return v
		}
	}
	return first
}

func looksLikeVersion(s string) bool {
	digits := 0
	dots := 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		}
	}
	return digits >= 2 && dots >= 1
}

func splitSerials(joined string) []string {
	return splitCSV(joined)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// synthesizeStackMembers builds position-ordered members from a flat serial
// (and, when available, model) list when the template produced no
// structured stack data (spec.md §4.4, §4.7 step 5).
func synthesizeStackMembers(serials, models []string) []StackMemberRecord {
	members := make([]StackMemberRecord, 0, len(serials))
	for i, serial := range serials {
		model := ""
		if i < len(models) {
			model = models[i]
		}
		members = append(members, StackMemberRecord{
			Position: i + 1,
			Model:    model,
			Serial:   serial,
			IsMaster: i == 0,
		})
	}
	return members
}

func componentsFromRecords(records []Record) []ComponentRecord {
	components := make([]ComponentRecord, 0, len(records))
	for i, r := range records {
		components = append(components, ComponentRecord{
			Kind:        classifyComponentKind(r["description"]),
			Name:        r["name"],
			Description: r["description"],
			Serial:      r["serial"],
			Position:    i + 1,
			SourceID:    r["pid"],
			Confidence:  1.0,
		})
	}
	return components
}

func classifyComponentKind(description string) string {
	d := strings.ToLower(description)
	switch {
	case strings.Contains(d, "chassis"):
		return "chassis"
	case strings.Contains(d, "supervisor"):
		return "supervisor"
	case strings.Contains(d, "power supply"), strings.Contains(d, "psu"):
		return "psu"
	case strings.Contains(d, "fan"):
		return "fan"
	case strings.Contains(d, "transceiver"), strings.Contains(d, "sfp"):
		return "transceiver"
	case strings.Contains(d, "module") || strings.Contains(d, "linecard"):
		return "module"
	default:
		return "unknown"
	}
}
