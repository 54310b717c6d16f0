package store

import (
	"context"
	"database/sql"
)

// DeviceStatusRow is one row of the device_status derived view (spec.md
// §4.9, "Derived views").
type DeviceStatusRow struct {
	DeviceID             int64
	NormalizedName       string
	Vendor               string
	LastFingerprint      sql.NullTime
	CaptureTypeCount     int
	CaptureSuccessCount  int
}

// DeviceStatus returns the device_status view, optionally filtered to one
// normalized name (empty string means all devices).
func (s *Store) DeviceStatus(ctx context.Context, normalizedName string) ([]DeviceStatusRow, error) {
	var rows []DeviceStatusRow
	err := s.withReadTx(ctx, func(tx *sql.Tx) error {
		query := `SELECT device_id, normalized_name, COALESCE(vendor, ''), last_fingerprint, capture_type_count, capture_success_count FROM device_status`
		var rset *sql.Rows
		var err error
		if normalizedName != "" {
			rset, err = tx.Query(query+` WHERE normalized_name = ?`, normalizedName)
		} else {
			rset, err = tx.Query(query + ` ORDER BY normalized_name`)
		}
		if err != nil {
			return err
		}
		defer rset.Close()
		for rset.Next() {
			var r DeviceStatusRow
			if err := rset.Scan(&r.DeviceID, &r.NormalizedName, &r.Vendor, &r.LastFingerprint, &r.CaptureTypeCount, &r.CaptureSuccessCount); err != nil {
				return err
			}
			rows = append(rows, r)
		}
		return rset.Err()
	})
	return rows, err
}

// CaptureCoverageRow is one row of the capture_coverage derived view.
type CaptureCoverageRow struct {
	CaptureType   string
	Vendor        string
	TotalCount    int
	SuccessCount  int
}

// CaptureCoverage returns the capture_coverage view.
func (s *Store) CaptureCoverage(ctx context.Context) ([]CaptureCoverageRow, error) {
	var rows []CaptureCoverageRow
	err := s.withReadTx(ctx, func(tx *sql.Tx) error {
		rset, err := tx.Query(`SELECT capture_type, COALESCE(vendor, ''), total_count, success_count
			FROM capture_coverage ORDER BY capture_type, vendor`)
		if err != nil {
			return err
		}
		defer rset.Close()
		for rset.Next() {
			var r CaptureCoverageRow
			if err := rset.Scan(&r.CaptureType, &r.Vendor, &r.TotalCount, &r.SuccessCount); err != nil {
				return err
			}
			rows = append(rows, r)
		}
		return rset.Err()
	})
	return rows, err
}

// SiteInventoryRow is one row of the site_inventory derived view.
type SiteInventoryRow struct {
	SiteCode    string
	DeviceRole  string
	Vendor      string
	DeviceCount int
}

// SiteInventory returns the site_inventory view.
func (s *Store) SiteInventory(ctx context.Context) ([]SiteInventoryRow, error) {
	var rows []SiteInventoryRow
	err := s.withReadTx(ctx, func(tx *sql.Tx) error {
		rset, err := tx.Query(`SELECT site_code, COALESCE(device_role, ''), COALESCE(vendor, ''), device_count
			FROM site_inventory ORDER BY site_code, device_role, vendor`)
		if err != nil {
			return err
		}
		defer rset.Close()
		for rset.Next() {
			var r SiteInventoryRow
			if err := rset.Scan(&r.SiteCode, &r.DeviceRole, &r.Vendor, &r.DeviceCount); err != nil {
				return err
			}
			rows = append(rows, r)
		}
		return rset.Err()
	})
	return rows, err
}

// CapturesMissing returns normalized device names lacking a successful
// current capture of captureType (a failed current capture counts as
// missing), feeding the gap report (SPEC_FULL §3).
func (s *Store) CapturesMissing(ctx context.Context, captureType string) ([]string, error) {
	var names []string
	err := s.withReadTx(ctx, func(tx *sql.Tx) error {
		rset, err := tx.Query(`SELECT normalized_name FROM devices d
			WHERE NOT EXISTS (
				SELECT 1 FROM capture_current cc
				WHERE cc.device_id = d.id AND cc.capture_type = ? AND cc.success = 1)
			ORDER BY normalized_name`, captureType)
		if err != nil {
			return err
		}
		defer rset.Close()
		for rset.Next() {
			var name string
			if err := rset.Scan(&name); err != nil {
				return err
			}
			names = append(names, name)
		}
		return rset.Err()
	})
	return names, err
}
