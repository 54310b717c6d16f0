// Package loader implements the Loader (spec.md §4.7): it moves capture
// artifacts and fingerprint records from the filesystem into the Store
// Adapter.
package loader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/netcapd/netcapd/internal/fingerprint"
	"github.com/netcapd/netcapd/internal/log"
	"github.com/netcapd/netcapd/internal/model"
	"github.com/netcapd/netcapd/internal/store"
)

// minSuccessBytes is the default Smin threshold (spec.md §4.7 step 3).
const minSuccessBytes = 64

// failureMarkers are known-failure strings that override the byte-length
// success heuristic (spec.md §4.7 step 3).
var failureMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)invalid (input|command)`),
	regexp.MustCompile(`(?i)% ?invalid`),
	regexp.MustCompile(`(?i)connection (refused|reset|timed out)`),
	regexp.MustCompile(`(?i)ambiguous command`),
	regexp.MustCompile(`(?i)incomplete command`),
}

// Loader ingests capture and fingerprint artifacts into the Store Adapter.
type Loader struct {
	Store            *store.Store
	DiffRoot         string
	SitePrefixPolicy string // "first-dash" or "none"
}

// New builds a Loader.
func New(st *store.Store, diffRoot, sitePrefixPolicy string) *Loader {
	return &Loader{Store: st, DiffRoot: diffRoot, SitePrefixPolicy: sitePrefixPolicy}
}

// CaptureSummary reports the outcome of one capture file ingest, for the
// CLI's load-captures summary output.
type CaptureSummary struct {
	Path           string
	DeviceUnknown  bool
	Unchanged      bool
	ChangeSeverity string
	Err            error
}

// LoadCaptureDir walks dir (laid out as
// <dir>/<capture_type>/<device-normalized-name>.txt per spec.md §6) and
// ingests every file whose capture type is in allowedTypes (all types when
// empty).
func (l *Loader) LoadCaptureDir(ctx context.Context, dir string, allowedTypes model.CaptureTypeSet) ([]CaptureSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading capture root: %w", err)
	}

	var summaries []CaptureSummary
	for _, typeDir := range entries {
		if !typeDir.IsDir() {
			continue
		}
		captureType := model.CaptureType(typeDir.Name())
		if allowedTypes != nil && !allowedTypes.Known(captureType) {
			continue
		}

		files, err := os.ReadDir(filepath.Join(dir, typeDir.Name()))
		if err != nil {
			return summaries, fmt.Errorf("reading capture type dir %s: %w", typeDir.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() || filepath.Ext(f.Name()) != ".txt" {
				continue
			}
			path := filepath.Join(dir, typeDir.Name(), f.Name())
			summaries = append(summaries, l.IngestCaptureFile(ctx, path, captureType))
		}
	}
	return summaries, nil
}

// IngestCaptureFile implements spec.md §4.7's capture-artifact ingest for
// a single file.
func (l *Loader) IngestCaptureFile(ctx context.Context, path string, captureType model.CaptureType) CaptureSummary {
	summary := CaptureSummary{Path: path}

	normalizedName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	content, err := os.ReadFile(path)
	if err != nil {
		summary.Err = err
		return summary
	}

	in := store.CaptureIngest{
		NormalizedName: normalizedName,
		CaptureType:    captureType,
		Content:        string(content),
		ByteLength:     int64(len(content)),
		LineCount:      strings.Count(string(content), "\n") + 1,
		ContentHash:    contentHash(content),
		Success:        classifySuccess(content),
		FilePath:       path,
		Snippet:        snippet(content),
	}

	result, err := l.Store.IngestCapture(ctx, in, l.DiffRoot)
	if err != nil {
		summary.Err = err
		return summary
	}

	if result.DeviceUnknown {
		summary.DeviceUnknown = true
		log.Warn("capture ingest: device unknown", "path", path)
		return summary
	}
	summary.Unchanged = result.Unchanged
	if result.Change != nil {
		summary.ChangeSeverity = string(result.Change.Severity)
	}
	return summary
}

// classifySuccess implements spec.md §4.7 step 3's success heuristic.
func classifySuccess(content []byte) bool {
	if len(content) < minSuccessBytes {
		return false
	}
	text := string(content)
	for _, marker := range failureMarkers {
		if marker.MatchString(text) {
			return false
		}
	}
	return true
}

func contentHash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func snippet(content []byte) string {
	const maxSnippet = 256
	if len(content) <= maxSnippet {
		return string(content)
	}
	return string(content[:maxSnippet])
}

// FingerprintSummary reports the outcome of one fingerprint file ingest.
type FingerprintSummary struct {
	Path string
	Err  error
}

// LoadFingerprintDir walks dir (laid out as
// <dir>/<device-normalized-name>.json per spec.md §6) and ingests every
// fingerprint record.
func (l *Loader) LoadFingerprintDir(ctx context.Context, dir string) ([]FingerprintSummary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading fingerprint root: %w", err)
	}

	var summaries []FingerprintSummary
	for _, f := range entries {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, f.Name())
		summaries = append(summaries, l.IngestFingerprintFile(ctx, path))
	}
	return summaries, nil
}

// IngestFingerprintFile implements spec.md §4.7's fingerprint-record
// ingest for a single file.
func (l *Loader) IngestFingerprintFile(ctx context.Context, path string) FingerprintSummary {
	summary := FingerprintSummary{Path: path}

	raw, err := os.ReadFile(path)
	if err != nil {
		summary.Err = err
		return summary
	}

	var rec fingerprint.DeviceRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		summary.Err = fmt.Errorf("decoding fingerprint record: %w", err)
		return summary
	}

	in, err := l.buildFingerprintIngest(rec, path)
	if err != nil {
		summary.Err = err
		return summary
	}

	if err := l.Store.IngestFingerprint(ctx, in); err != nil {
		summary.Err = err
	}
	return summary
}

func (l *Loader) buildFingerprintIngest(rec fingerprint.DeviceRecord, sourcePath string) (store.FingerprintIngest, error) {
	normalizedName := normalizeHostname(rec.Hostname)
	if normalizedName == "" {
		return store.FingerprintIngest{}, fmt.Errorf("fingerprint record missing hostname: %s", sourcePath)
	}

	serials := splitSerials(rec.SerialNumbers)

	in := store.FingerprintIngest{
		NormalizedName:  normalizedName,
		DisplayName:     rec.Hostname,
		SiteCode:        l.siteCode(normalizedName),
		VendorName:      strings.ToLower(rec.AdditionalInfo.VendorHint),
		DeviceTypeHint:  rec.AdditionalInfo.DriverHint,
		Model:           rec.Model,
		SoftwareVersion: rec.Version,
		ManagementAddr:  rec.HostIP,
		Serials:         serials,
		SourceFilePath:  sourcePath,

		ExtractionTemplateID: "version",
		ExtractionSuccess:    true,
		ExtractionFieldCount: len(serials),
	}

	for _, m := range rec.StackMembers {
		in.StackMembers = append(in.StackMembers, model.StackMember{
			Position: m.Position,
			Model:    m.Model,
			Serial:   m.Serial,
			IsMaster: m.IsMaster,
		})
	}
	if len(in.StackMembers) == 0 && len(serials) > 1 {
		models := splitSerials(rec.Model)
		for i, serial := range serials {
			m := rec.Model
			if i < len(models) {
				m = models[i]
			}
			in.StackMembers = append(in.StackMembers, model.StackMember{
				Position: i + 1,
				Model:    m,
				Serial:   serial,
				IsMaster: i == 0,
			})
		}
	}

	for _, c := range rec.Components {
		in.Components = append(in.Components, model.Component{
			Kind:        model.ComponentKind(c.Kind),
			Name:        c.Name,
			Description: c.Description,
			Serial:      c.Serial,
			Position:    c.Position,
			SourceID:    c.SourceID,
			Confidence:  c.Confidence,
		})
	}

	return in, nil
}

func normalizeHostname(hostname string) string {
	return strings.ToLower(strings.TrimSpace(hostname))
}

// siteCode derives a Site code from a normalized device name per the
// configured policy (spec.md §4.7 step 1, §9 open question).
func (l *Loader) siteCode(normalizedName string) string {
	if l.SitePrefixPolicy == "none" {
		return model.SiteUnknown
	}
	idx := strings.Index(normalizedName, "-")
	if idx <= 0 {
		return model.SiteUnknown
	}
	return strings.ToUpper(normalizedName[:idx])
}

func splitSerials(joined string) []string {
	if joined == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SweepArchive runs the bounded archive-retention sweep (spec.md §4.7 step
// 5), looping until a single pass deletes fewer than batchSize rows.
func (l *Loader) SweepArchive(ctx context.Context, retention time.Duration, batchSize int) (int64, error) {
	var total int64
	for {
		n, err := l.Store.SweepArchive(ctx, retention, batchSize)
		if err != nil {
			return total, err
		}
		total += n
		if n < int64(batchSize) {
			return total, nil
		}
	}
}
