package store

import "database/sql"

func upsertByName(tx *sql.Tx, table, column, value string) (int64, error) {
	if value == "" {
		return 0, nil
	}
	if _, err := tx.Exec(`INSERT INTO `+table+` (`+column+`) VALUES (?)
		ON CONFLICT (`+column+`) DO UPDATE SET `+column+` = excluded.`+column, value); err != nil {
		return 0, err
	}
	var id int64
	row := tx.QueryRow(`SELECT id FROM `+table+` WHERE `+column+` = ?`, value)
	if err := row.Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func upsertSite(tx *sql.Tx, code string) (int64, error) {
	return upsertByName(tx, "sites", "code", code)
}

func upsertVendor(tx *sql.Tx, name string) (int64, error) {
	return upsertByName(tx, "vendors", "name", name)
}

func upsertDeviceRole(tx *sql.Tx, name string) (int64, error) {
	return upsertByName(tx, "device_roles", "name", name)
}

// upsertDeviceType upserts a device type row and refreshes its driver hint
// when non-empty, since the hint is sourced from inventory config rather
// than fingerprint data and may change independently of the name.
func upsertDeviceType(tx *sql.Tx, name, driverHint string) (int64, error) {
	if name == "" {
		return 0, nil
	}
	if _, err := tx.Exec(`INSERT INTO device_types (name, driver_hint) VALUES (?, ?)
		ON CONFLICT (name) DO UPDATE SET driver_hint = CASE WHEN excluded.driver_hint != '' THEN excluded.driver_hint ELSE device_types.driver_hint END`,
		name, driverHint); err != nil {
		return 0, err
	}
	var id int64
	if err := tx.QueryRow(`SELECT id FROM device_types WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
