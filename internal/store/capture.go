package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/netcapd/netcapd/internal/changedetect"
	"github.com/netcapd/netcapd/internal/model"
)

// CaptureIngest is the Loader's prepared input for one capture artifact
// ingest (spec.md §4.7, "Ingest: capture artifact").
type CaptureIngest struct {
	NormalizedName string
	CaptureType    model.CaptureType
	Content        string
	ByteLength     int64
	LineCount      int
	ContentHash    string
	Success        bool
	FilePath       string
	Snippet        string
}

// CaptureIngestResult reports what the ingest did, for the Loader's
// summary and the gap report.
type CaptureIngestResult struct {
	DeviceUnknown  bool
	Unchanged      bool
	ChangeRecorded bool
	Change         *model.CaptureChange
}

// IngestCapture implements spec.md §4.7's capture-artifact protocol in a
// single transaction: unchanged-hash short-circuit, else archive-then-
// upsert with a CaptureChange row classified by the Change Detector
// (spec.md P3, P4).
func (s *Store) IngestCapture(ctx context.Context, in CaptureIngest, diffRoot string) (CaptureIngestResult, error) {
	var result CaptureIngestResult

	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		var deviceID int64
		err := tx.QueryRow(`SELECT id FROM devices WHERE normalized_name = ?`, in.NormalizedName).Scan(&deviceID)
		if err == sql.ErrNoRows {
			result.DeviceUnknown = true
			return nil
		}
		if err != nil {
			return err
		}

		now := time.Now()
		var priorID int64
		var priorHash, priorContent string
		row := tx.QueryRow(`SELECT id, content_hash, content FROM capture_current
			WHERE device_id = ? AND capture_type = ?`, deviceID, string(in.CaptureType))
		scanErr := row.Scan(&priorID, &priorHash, &priorContent)

		switch {
		case scanErr == sql.ErrNoRows:
			_, err := tx.Exec(`INSERT INTO capture_current
				(device_id, capture_type, captured_at, byte_length, line_count, content_hash, success, file_path, snippet, content)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				deviceID, string(in.CaptureType), now, in.ByteLength, in.LineCount, in.ContentHash, in.Success, in.FilePath, in.Snippet, in.Content)
			return err

		case scanErr != nil:
			return scanErr

		case priorHash == in.ContentHash:
			result.Unchanged = true
			_, err := tx.Exec(`UPDATE capture_current SET captured_at = ? WHERE id = ?`, now, priorID)
			return err

		default:
			if _, err := tx.Exec(`INSERT INTO capture_archive
				(device_id, capture_type, captured_at, byte_length, line_count, content_hash, success, file_path, snippet, content, archived_at)
				SELECT device_id, capture_type, captured_at, byte_length, line_count, content_hash, success, file_path, snippet, content, ?
				FROM capture_current WHERE id = ?`, now, priorID); err != nil {
				return err
			}

			if _, err := tx.Exec(`UPDATE capture_current SET
				captured_at = ?, byte_length = ?, line_count = ?, content_hash = ?,
				success = ?, file_path = ?, snippet = ?, content = ?
				WHERE id = ?`,
				now, in.ByteLength, in.LineCount, in.ContentHash, in.Success, in.FilePath, in.Snippet, in.Content, priorID); err != nil {
				return err
			}

			diff := changedetect.Compute(priorContent, in.Content)
			severity := changedetect.Classify(diff)

			res, err := tx.Exec(`INSERT INTO capture_changes
				(device_id, capture_type, detected_at, prior_hash, new_hash, lines_added, lines_removed, diff_path, severity)
				VALUES (?, ?, ?, ?, ?, ?, ?, '', ?)`,
				deviceID, string(in.CaptureType), now, priorHash, in.ContentHash, diff.LinesAdded, diff.LinesRemoved, string(severity))
			if err != nil {
				return err
			}
			changeID, err := res.LastInsertId()
			if err != nil {
				return err
			}

			diffPath := ""
			if !diff.Overflowed {
				diffPath = changedetect.DiffPath(diffRoot, uuid.NewString())
			}
			if diffPath != "" {
				if _, err := tx.Exec(`UPDATE capture_changes SET diff_path = ? WHERE id = ?`, diffPath, changeID); err != nil {
					return err
				}
			}

			result.ChangeRecorded = true
			result.Change = &model.CaptureChange{
				ID:           changeID,
				DeviceID:     deviceID,
				CaptureType:  in.CaptureType,
				DetectedAt:   now,
				PriorHash:    priorHash,
				NewHash:      in.ContentHash,
				LinesAdded:   diff.LinesAdded,
				LinesRemoved: diff.LinesRemoved,
				DiffPath:     diffPath,
				Severity:     severity,
			}
			return nil
		}
	})

	return result, err
}

// SweepArchive deletes CaptureArchive rows older than retention, up to
// batchSize rows per call (spec.md §4.7 step 5). It returns the count
// deleted; callers loop until the count falls below batchSize.
func (s *Store) SweepArchive(ctx context.Context, retention time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = 10000
	}
	cutoff := time.Now().Add(-retention)

	var affected int64
	err := s.withWriteTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM capture_archive WHERE id IN (
			SELECT id FROM capture_archive WHERE archived_at < ? LIMIT ?)`, cutoff, batchSize)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}
