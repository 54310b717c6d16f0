// Package config loads the tunables that govern the Scheduler, Device
// Runner, SSH Session, Loader and Store Adapter. It keeps the teacher's
// priority chain (CLI opts > environment > defaults) and its
// coalesce-first-nonempty helper, generalized from a handful of fields to
// the full set spec.md §5/§6 names as configurable. .env loading itself is
// done once at process start by the root command via
// github.com/paularlott/cli/env (see cmd/netcapd/main.go), so by the time
// Load runs here, .env values are already environment variables.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every tunable referenced by spec.md.
type Config struct {
	// Store / filesystem roots (spec §6).
	StorePath       string
	CaptureRoot     string
	FingerprintRoot string
	TemplateRoot    string

	// Scheduler (spec §4.6, §5).
	Workers           int
	PerDeviceTimeout  time.Duration
	PerCommandTimeout time.Duration
	BatchDeadline     time.Duration // zero means unbounded
	StopOnError       bool
	MaxOutputBytes    int64         // MB_per_device, spec §4.6
	DrainTimeout      time.Duration // Tdrain, spec §5

	// Prompt Detector (spec §4.1).
	ProbeQuietPeriod time.Duration // QP, default 400ms
	ProbeTimeout     time.Duration // default 10s

	// SSH Session (spec §4.2).
	ConnectTimeout    time.Duration
	ReadDrainInterval time.Duration // RD, default 250ms

	// Fingerprint Engine scoring (spec §4.4).
	ScorePerRecord   int // S1, default 5
	ScoreHasRequired int // S2, default 10
	ScoreVendorHint  int // S3, default 3
	ScoreMinimum     int // Smin, default 1

	// Loader (spec §4.7).
	MinSuccessBytes  int64         // success-classification floor, default 64
	ArchiveRetention time.Duration // default 30 days
	SweepBatchSize   int           // Sbatch, default 10000

	// Store Adapter (spec §4.9).
	WriterFairnessWait time.Duration // Twait, default 250ms
	MaxReaderConns     int

	// Site-code derivation (spec §9 open question).
	SitePrefixPolicy string // "first-dash" or "none"

	// MCP / serve (SPEC_FULL §2).
	ListenAddr  string
	BearerToken string
	CronSpec    string // empty disables recurring batches

	// Progress fan-out (SPEC_FULL §2). Empty RedisAddr disables the
	// Redis publisher entirely.
	RedisAddr    string
	RedisChannel string
}

// Default returns the configuration's documented defaults.
func Default() *Config {
	return &Config{
		StorePath:          "./data/netcapd.db",
		CaptureRoot:        "./data/captures",
		FingerprintRoot:    "./data/fingerprints",
		TemplateRoot:       "./data/templates",
		Workers:            8,
		PerDeviceTimeout:   10 * time.Minute,
		PerCommandTimeout:  60 * time.Second,
		BatchDeadline:      0,
		StopOnError:        false,
		MaxOutputBytes:     16 * 1024 * 1024,
		DrainTimeout:       5 * time.Second,
		ProbeQuietPeriod:   400 * time.Millisecond,
		ProbeTimeout:       10 * time.Second,
		ConnectTimeout:     20 * time.Second,
		ReadDrainInterval:  250 * time.Millisecond,
		ScorePerRecord:     5,
		ScoreHasRequired:   10,
		ScoreVendorHint:    3,
		ScoreMinimum:       1,
		MinSuccessBytes:    64,
		ArchiveRetention:   30 * 24 * time.Hour,
		SweepBatchSize:     10000,
		WriterFairnessWait: 250 * time.Millisecond,
		MaxReaderConns:     8,
		SitePrefixPolicy:   "first-dash",
		ListenAddr:         ":8090",
		RedisChannel:       "netcapd.progress",
	}
}

// Load builds a Config using the documented priority chain: opts (non-zero
// fields only) override environment variables, which override the
// documented defaults. opts may be nil. Only the filesystem roots, Workers,
// the per-device/per-command/batch timeouts, StopOnError, MaxOutputBytes,
// ArchiveRetention, SweepBatchSize and the serve/Redis fields are taken
// from opts; its other fields are ignored.
func Load(opts *Config) *Config {
	cfg := Default()

	cfg.StorePath = coalesce(os.Getenv("NETCAPD_STORE_PATH"), cfg.StorePath)
	cfg.CaptureRoot = coalesce(os.Getenv("NETCAPD_CAPTURE_ROOT"), cfg.CaptureRoot)
	cfg.FingerprintRoot = coalesce(os.Getenv("NETCAPD_FINGERPRINT_ROOT"), cfg.FingerprintRoot)
	cfg.TemplateRoot = coalesce(os.Getenv("NETCAPD_TEMPLATE_ROOT"), cfg.TemplateRoot)
	cfg.Workers = coalesceInt(os.Getenv("NETCAPD_WORKERS"), cfg.Workers)
	cfg.PerDeviceTimeout = coalesceDuration(os.Getenv("NETCAPD_PER_DEVICE_TIMEOUT"), cfg.PerDeviceTimeout)
	cfg.PerCommandTimeout = coalesceDuration(os.Getenv("NETCAPD_PER_COMMAND_TIMEOUT"), cfg.PerCommandTimeout)
	cfg.BatchDeadline = coalesceDuration(os.Getenv("NETCAPD_BATCH_DEADLINE"), cfg.BatchDeadline)
	cfg.MaxOutputBytes = coalesceInt64(os.Getenv("NETCAPD_MAX_OUTPUT_BYTES"), cfg.MaxOutputBytes)
	cfg.ArchiveRetention = coalesceDuration(os.Getenv("NETCAPD_ARCHIVE_RETENTION"), cfg.ArchiveRetention)
	cfg.SitePrefixPolicy = coalesce(os.Getenv("NETCAPD_SITE_PREFIX_POLICY"), cfg.SitePrefixPolicy)
	cfg.ListenAddr = coalesce(os.Getenv("NETCAPD_LISTEN_ADDR"), cfg.ListenAddr)
	cfg.BearerToken = coalesce(os.Getenv("NETCAPD_BEARER_TOKEN"), cfg.BearerToken)
	cfg.CronSpec = coalesce(os.Getenv("NETCAPD_CRON_SPEC"), cfg.CronSpec)
	cfg.RedisAddr = coalesce(os.Getenv("NETCAPD_REDIS_ADDR"), cfg.RedisAddr)
	cfg.RedisChannel = coalesce(os.Getenv("NETCAPD_REDIS_CHANNEL"), cfg.RedisChannel)

	if opts != nil {
		applyOverrides(cfg, opts)
	}

	return cfg
}

func applyOverrides(cfg, opts *Config) {
	if opts.StorePath != "" {
		cfg.StorePath = opts.StorePath
	}
	if opts.CaptureRoot != "" {
		cfg.CaptureRoot = opts.CaptureRoot
	}
	if opts.FingerprintRoot != "" {
		cfg.FingerprintRoot = opts.FingerprintRoot
	}
	if opts.TemplateRoot != "" {
		cfg.TemplateRoot = opts.TemplateRoot
	}
	if opts.Workers != 0 {
		cfg.Workers = opts.Workers
	}
	if opts.PerDeviceTimeout != 0 {
		cfg.PerDeviceTimeout = opts.PerDeviceTimeout
	}
	if opts.PerCommandTimeout != 0 {
		cfg.PerCommandTimeout = opts.PerCommandTimeout
	}
	if opts.BatchDeadline != 0 {
		cfg.BatchDeadline = opts.BatchDeadline
	}
	if opts.StopOnError {
		cfg.StopOnError = true
	}
	if opts.MaxOutputBytes != 0 {
		cfg.MaxOutputBytes = opts.MaxOutputBytes
	}
	if opts.ArchiveRetention != 0 {
		cfg.ArchiveRetention = opts.ArchiveRetention
	}
	if opts.SweepBatchSize != 0 {
		cfg.SweepBatchSize = opts.SweepBatchSize
	}
	if opts.ListenAddr != "" {
		cfg.ListenAddr = opts.ListenAddr
	}
	if opts.BearerToken != "" {
		cfg.BearerToken = opts.BearerToken
	}
	if opts.CronSpec != "" {
		cfg.CronSpec = opts.CronSpec
	}
	if opts.RedisAddr != "" {
		cfg.RedisAddr = opts.RedisAddr
	}
	if opts.RedisChannel != "" {
		cfg.RedisChannel = opts.RedisChannel
	}
}

// IsMCPEnabled reports whether MCP bearer-token authentication is configured.
func (c *Config) IsMCPEnabled() bool {
	return c.BearerToken != ""
}

// coalesce returns the first non-empty string value.
func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func coalesceInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func coalesceInt64(raw string, fallback int64) int64 {
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func coalesceDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}
