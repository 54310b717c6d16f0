// Package inventory parses the device inventory document (spec.md §6) and
// applies the site/vendor/name filters the `batch` subcommand exposes.
// The document is grouped the way the original deployment's session trees
// were: folders of sessions, where a folder loosely corresponds to a site.
package inventory

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Session is one device entry under a group's sessions list.
type Session struct {
	DisplayName  string `yaml:"display_name"`
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	Vendor       string `yaml:"vendor"`
	DeviceType   string `yaml:"device_type"`
	CredentialID string `yaml:"credential_id"`
}

// Group is a named folder of sessions.
type Group struct {
	FolderName string    `yaml:"folder_name"`
	Sessions   []Session `yaml:"sessions"`
}

// Document is the top-level inventory document (spec.md §6).
type Document struct {
	Groups []Group `yaml:"groups"`
}

// Device is a flattened, defaulted inventory entry ready for scheduling.
type Device struct {
	Site         string
	DisplayName  string
	Host         string
	Port         int
	Vendor       string
	DeviceType   string
	CredentialID string
}

// Load reads and parses the inventory document at path. Unknown top-level
// and per-session fields are ignored by yaml.v3's default unmarshal
// behavior, matching §6's "unknown fields are ignored".
func Load(path string) ([]Device, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading inventory %s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing inventory %s: %w", path, err)
	}

	var devices []Device
	for _, g := range doc.Groups {
		for _, s := range g.Sessions {
			port := s.Port
			if port == 0 {
				port = 22
			}
			devices = append(devices, Device{
				Site:         g.FolderName,
				DisplayName:  s.DisplayName,
				Host:         s.Host,
				Port:         port,
				Vendor:       s.Vendor,
				DeviceType:   s.DeviceType,
				CredentialID: s.CredentialID,
			})
		}
	}
	return devices, nil
}

// Filter selects a subset of devices by glob patterns over site, vendor and
// display name (spec.md §6's `--filter-site`/`--filter-vendor`/`--filter-name`).
// An empty pattern matches everything.
type Filter struct {
	Site   string
	Vendor string
	Name   string
}

// Apply returns the devices matching f. Glob matching uses filepath.Match
// semantics (`*`, `?`, character classes) case-sensitively, consistent with
// how the normalized device name is treated elsewhere in the store.
func (f Filter) Apply(devices []Device) ([]Device, error) {
	var out []Device
	for _, d := range devices {
		ok, err := matchAll(f, d)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, d)
		}
	}
	return out, nil
}

func matchAll(f Filter, d Device) (bool, error) {
	if ok, err := globMatch(f.Site, d.Site); err != nil || !ok {
		return ok, err
	}
	if ok, err := globMatch(f.Vendor, d.Vendor); err != nil || !ok {
		return ok, err
	}
	if ok, err := globMatch(f.Name, d.DisplayName); err != nil || !ok {
		return ok, err
	}
	return true, nil
}

func globMatch(pattern, value string) (bool, error) {
	if pattern == "" {
		return true, nil
	}
	ok, err := filepath.Match(pattern, value)
	if err != nil {
		return false, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	return ok, nil
}
