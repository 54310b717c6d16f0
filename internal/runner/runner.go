// Package runner implements the Device Runner (spec.md §4.5): executes one
// capture job against one device end to end — credential resolution,
// session open, prologue, command execution, atomic output write, and
// optional fingerprint extraction.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/netcapd/netcapd/internal/credential"
	"github.com/netcapd/netcapd/internal/fingerprint"
	"github.com/netcapd/netcapd/internal/log"
	"github.com/netcapd/netcapd/internal/model"
	"github.com/netcapd/netcapd/internal/sshsession"
	"github.com/netcapd/netcapd/internal/vendorprofile"
)

// Status is the terminal outcome of a DeviceJob.
type Status string

const (
	StatusOK       Status = "ok"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// DeviceJob is one unit of Scheduler work (spec.md §4.5 `DeviceJob`).
type DeviceJob struct {
	Host             string
	Port             int
	CredentialID     string
	VendorHint       string
	CaptureType      model.CaptureType
	Commands         []string
	OutputPath       string
	PerDeviceTimeout time.Duration
	// FingerprintPath is where the extracted fingerprint record, if any, is
	// written (spec.md §6, "Fingerprint artifact filesystem layout"). Empty
	// disables the write even when extraction succeeds.
	FingerprintPath string
}

// DeviceResult is the Device Runner's per-job outcome (spec.md §4.5
// `DeviceResult`).
type DeviceResult struct {
	Host                 string
	Status               Status
	Elapsed              time.Duration
	BytesWritten         int64
	Err                  error
	ExtractedFingerprint *fingerprint.DeviceRecord
}

// Runner executes DeviceJobs against real SSH targets.
type Runner struct {
	Credentials *credential.Source
	Fingerprint *fingerprint.Engine
	// FingerprintTypes names the capture types that trigger fingerprint
	// extraction (spec.md §4.5 step 8): version and inventory by default.
	FingerprintTypes map[model.CaptureType]bool
}

// New builds a Runner over the given credential source and fingerprint
// engine (nil disables extraction entirely).
func New(creds *credential.Source, engine *fingerprint.Engine) *Runner {
	return &Runner{
		Credentials: creds,
		Fingerprint: engine,
		FingerprintTypes: map[model.CaptureType]bool{
			"version":   true,
			"inventory": true,
		},
	}
}

// Run executes job to completion or cancellation.
func (r *Runner) Run(ctx context.Context, job DeviceJob) DeviceResult {
	start := time.Now()
	result := DeviceResult{Host: job.Host}

	cred, err := r.Credentials.Resolve(job.CredentialID)
	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		result.Elapsed = time.Since(start)
		return result
	}

	connectTimeout := job.PerDeviceTimeout / 4
	if connectTimeout > 20*time.Second {
		connectTimeout = 20 * time.Second
	}
	if connectTimeout <= 0 {
		connectTimeout = 5 * time.Second
	}

	sess, err := sshsession.Open(ctx, job.Host, job.Port, cred, connectTimeout, 16<<20)
	if err != nil {
		result.Status = classifyOpenError(ctx, err)
		result.Err = err
		result.Elapsed = time.Since(start)
		return result
	}
	defer sess.Close()

	profile := vendorprofile.For(job.VendorHint)
	sess.SetPromptCount(profile.PromptCount)

	perCmdTimeout := 60 * time.Second
	if job.PerDeviceTimeout > 0 && job.PerDeviceTimeout < perCmdTimeout {
		perCmdTimeout = job.PerDeviceTimeout
	}

	prologueTimeout := time.Duration(profile.PrologueTimeoutMS) * time.Millisecond
	if prologueTimeout <= 0 || prologueTimeout > perCmdTimeout {
		prologueTimeout = perCmdTimeout
	}

	if err := sess.RunPrologue(ctx, profile.PagingDisable, prologueTimeout); err != nil {
		result.Status = classifyOpenError(ctx, err)
		result.Err = err
		result.Elapsed = time.Since(start)
		return result
	}

	remaining := job.PerDeviceTimeout - time.Since(start)
	output, err := sess.Execute(ctx, job.Commands, perCmdTimeout, remaining)
	if err != nil {
		result.Status = classifyOpenError(ctx, err)
		result.Err = err
		result.Elapsed = time.Since(start)
		return result
	}

	observedPrompt := sess.Prompt()
	sess.Close()

	n, err := atomicWrite(job.OutputPath, output)
	if err != nil {
		result.Status = StatusFailed
		result.Err = &WriteError{Path: job.OutputPath, Err: err}
		result.Elapsed = time.Since(start)
		return result
	}
	result.BytesWritten = n

	if r.Fingerprint != nil && r.FingerprintTypes[job.CaptureType] && len(job.Commands) > 0 {
		parsed := r.Fingerprint.Parse(job.Commands[0], output, job.VendorHint)
		if parsed.Matched {
			rec := fingerprint.Derive(parsed, nil, job.Host, observedPrompt)
			result.ExtractedFingerprint = &rec
			if job.FingerprintPath != "" {
				if err := writeFingerprintRecord(job.FingerprintPath, rec); err != nil {
					log.With("host", job.Host).Warn("failed to write fingerprint artifact", "error", err)
				}
			}
		} else {
			log.With("host", job.Host, "command", job.Commands[0]).
				Warn("fingerprint no match", "capture_type", job.CaptureType)
		}
	}

	result.Status = StatusOK
	result.Elapsed = time.Since(start)
	return result
}

func classifyOpenError(ctx context.Context, err error) Status {
	if ctx.Err() != nil {
		return StatusCanceled
	}
	if _, ok := err.(*sshsession.CanceledError); ok {
		return StatusCanceled
	}
	return StatusFailed
}

// WriteError wraps a failure during the atomic tmp-file write.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write %s: %v", e.Path, e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// writeFingerprintRecord serializes rec and writes it to path using the
// same write-tmp-then-rename discipline as the capture output.
func writeFingerprintRecord(path string, rec fingerprint.DeviceRecord) error {
	body, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	_, err = atomicWrite(path, string(body))
	return err
}

// atomicWrite implements spec.md §4.5 step 7: write to outputPath.tmp,
// fsync, rename to outputPath. The rename is the commit point.
func atomicWrite(outputPath, content string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return 0, err
	}
	tmp := outputPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := f.WriteString(content)
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		os.Remove(tmp)
		return 0, err
	}
	return int64(n), nil
}
