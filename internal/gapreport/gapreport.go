// Package gapreport builds the gap report (SPEC_FULL §3): devices missing a
// successful current capture of a given type, plus a coverage summary
// across the whole fleet. Read-only over the Store Adapter's derived views.
package gapreport

import (
	"context"

	"github.com/netcapd/netcapd/internal/model"
	"github.com/netcapd/netcapd/internal/store"
)

// Report is the gap-report result for one capture type.
type Report struct {
	CaptureType   model.CaptureType
	MissingHosts  []string
	TotalDevices  int
	CoveredCount  int
}

// Build computes the gap report for captureType against the given store.
func Build(ctx context.Context, st *store.Store, captureType model.CaptureType) (Report, error) {
	missing, err := st.CapturesMissing(ctx, string(captureType))
	if err != nil {
		return Report{}, err
	}

	statuses, err := st.DeviceStatus(ctx, "")
	if err != nil {
		return Report{}, err
	}

	report := Report{
		CaptureType:  captureType,
		MissingHosts: missing,
		TotalDevices: len(statuses),
	}
	report.CoveredCount = report.TotalDevices - len(missing)
	return report, nil
}

// BuildAll computes a gap report for every capture type in types.
func BuildAll(ctx context.Context, st *store.Store, types []model.CaptureType) ([]Report, error) {
	reports := make([]Report, 0, len(types))
	for _, t := range types {
		r, err := Build(ctx, st, t)
		if err != nil {
			return reports, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}
