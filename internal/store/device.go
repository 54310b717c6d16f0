package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/netcapd/netcapd/internal/model"
)

// FingerprintIngest is the Loader's prepared input for one fingerprint
// record ingest (spec.md §4.7, "Ingest: fingerprint record").
type FingerprintIngest struct {
	NormalizedName  string
	DisplayName     string
	SiteCode        string
	VendorName      string
	DeviceTypeName  string
	DeviceTypeHint  string
	DeviceRoleName  string
	Model           string
	SoftwareVersion string
	ManagementAddr  string
	Serials         []string
	StackMembers    []model.StackMember
	Components      []model.Component
	SourceFilePath  string

	ExtractionTemplateID string
	ExtractionScore      int
	ExtractionSuccess    bool
	ExtractionFieldCount int
	ExtractionMatchMeta  string
}

// IngestFingerprint performs spec.md §4.7's fingerprint ingest protocol in a
// single transaction: reference upserts, device upsert, replace-semantics
// on serials/stack members/components, invariant recomputation, and an
// audit row (spec.md P5, P9).
func (s *Store) IngestFingerprint(ctx context.Context, in FingerprintIngest) error {
	return s.withWriteTx(ctx, func(tx *sql.Tx) error {
		siteID, err := upsertSite(tx, in.SiteCode)
		if err != nil {
			return err
		}
		vendorID, err := upsertVendor(tx, in.VendorName)
		if err != nil {
			return err
		}
		deviceTypeID, err := upsertDeviceType(tx, in.DeviceTypeName, in.DeviceTypeHint)
		if err != nil {
			return err
		}
		roleID, err := upsertDeviceRole(tx, in.DeviceRoleName)
		if err != nil {
			return err
		}

		deviceID, err := upsertDevice(tx, in, siteID, vendorID, deviceTypeID, roleID)
		if err != nil {
			return err
		}

		if err := replaceSerials(tx, deviceID, in.Serials); err != nil {
			return err
		}
		if err := replaceStackMembers(tx, deviceID, in.StackMembers); err != nil {
			return err
		}
		if err := replaceComponents(tx, deviceID, in.Components); err != nil {
			return err
		}
		if err := recomputeInvariants(tx, deviceID); err != nil {
			return err
		}

		_, err = tx.Exec(`INSERT INTO fingerprint_extractions
			(device_id, timestamp, template_id, score, success, field_count, match_meta)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			deviceID, time.Now(), in.ExtractionTemplateID, in.ExtractionScore,
			in.ExtractionSuccess, in.ExtractionFieldCount, in.ExtractionMatchMeta)
		return err
	})
}

func upsertDevice(tx *sql.Tx, in FingerprintIngest, siteID, vendorID, deviceTypeID, roleID int64) (int64, error) {
	now := time.Now()
	name := in.DisplayName
	if name == "" {
		name = in.NormalizedName
	}

	res, err := tx.Exec(`INSERT INTO devices
		(name, normalized_name, site_id, vendor_id, device_type_id, device_role_id,
		 model, software_version, management_addr, source_file_path, last_fingerprint,
		 created_at, updated_at)
		VALUES (?, ?, NULLIF(?,0), NULLIF(?,0), NULLIF(?,0), NULLIF(?,0), ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (normalized_name) DO UPDATE SET
			name = excluded.name,
			site_id = excluded.site_id,
			vendor_id = excluded.vendor_id,
			device_type_id = excluded.device_type_id,
			device_role_id = COALESCE(excluded.device_role_id, devices.device_role_id),
			model = excluded.model,
			software_version = excluded.software_version,
			management_addr = excluded.management_addr,
			source_file_path = excluded.source_file_path,
			last_fingerprint = excluded.last_fingerprint,
			updated_at = excluded.updated_at`,
		name, in.NormalizedName, siteID, vendorID, deviceTypeID, roleID,
		in.Model, in.SoftwareVersion, in.ManagementAddr, in.SourceFilePath, now, now, now)
	if err != nil {
		return 0, err
	}
	if id, err := res.LastInsertId(); err == nil && id != 0 {
		return id, nil
	}

	var id int64
	if err := tx.QueryRow(`SELECT id FROM devices WHERE normalized_name = ?`, in.NormalizedName).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func replaceSerials(tx *sql.Tx, deviceID int64, serials []string) error {
	if _, err := tx.Exec(`DELETE FROM device_serials WHERE device_id = ?`, deviceID); err != nil {
		return err
	}
	for i, serial := range serials {
		if serial == "" {
			continue
		}
		if _, err := tx.Exec(`INSERT INTO device_serials (device_id, serial, is_primary) VALUES (?, ?, ?)`,
			deviceID, serial, i == 0); err != nil {
			return err
		}
	}
	return nil
}

func replaceStackMembers(tx *sql.Tx, deviceID int64, members []model.StackMember) error {
	if _, err := tx.Exec(`DELETE FROM stack_members WHERE device_id = ?`, deviceID); err != nil {
		return err
	}
	for _, m := range members {
		if _, err := tx.Exec(`INSERT INTO stack_members (device_id, position, model, serial, is_master)
			VALUES (?, ?, ?, ?, ?)`, deviceID, m.Position, m.Model, m.Serial, m.IsMaster); err != nil {
			return err
		}
	}
	return nil
}

func replaceComponents(tx *sql.Tx, deviceID int64, components []model.Component) error {
	if _, err := tx.Exec(`DELETE FROM components WHERE device_id = ?`, deviceID); err != nil {
		return err
	}
	for _, c := range components {
		if _, err := tx.Exec(`INSERT INTO components
			(device_id, kind, name, description, serial, position, source_id, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			deviceID, string(c.Kind), c.Name, c.Description, c.Serial, c.Position, c.SourceID, c.Confidence); err != nil {
			return err
		}
	}
	return nil
}

// recomputeInvariants recomputes have_sn, stack_count, is_stack for a
// device within the same transaction as the rows that feed them (spec.md
// §4.7 step 7, P9).
func recomputeInvariants(tx *sql.Tx, deviceID int64) error {
	var serialCount, stackCount int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM device_serials WHERE device_id = ?`, deviceID).Scan(&serialCount); err != nil {
		return err
	}
	if err := tx.QueryRow(`SELECT COUNT(*) FROM stack_members WHERE device_id = ?`, deviceID).Scan(&stackCount); err != nil {
		return err
	}
	_, err := tx.Exec(`UPDATE devices SET have_sn = ?, stack_count = ?, is_stack = ? WHERE id = ?`,
		serialCount > 0, stackCount, stackCount >= 2, deviceID)
	return err
}

// DeviceByNormalizedName looks up a device's id, returning ErrDeviceNotFound
// when absent.
func (s *Store) DeviceByNormalizedName(ctx context.Context, normalizedName string) (int64, error) {
	var id int64
	err := s.withReadTx(ctx, func(tx *sql.Tx) error {
		return tx.QueryRow(`SELECT id FROM devices WHERE normalized_name = ?`, normalizedName).Scan(&id)
	})
	if err == sql.ErrNoRows {
		return 0, ErrDeviceNotFound
	}
	return id, err
}
