package appctx

import (
	"path/filepath"
	"testing"

	"github.com/netcapd/netcapd/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.StorePath = filepath.Join(t.TempDir(), "netcapd.db")
	cfg.TemplateRoot = ""
	return cfg
}

func TestBuildWiresEveryCollaborator(t *testing.T) {
	core, err := Build(testConfig(t))
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	defer core.Close()

	if core.Config == nil || core.TemplateStore == nil || core.CredentialSource == nil ||
		core.Store == nil || core.Scheduler == nil || core.Runner == nil {
		t.Fatalf("Build() left a field unset: %+v", core)
	}
}

func TestBuildFailsOnUnwritableStorePath(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorePath = filepath.Join(t.TempDir(), "does", "not", "exist", "netcapd.db")

	if _, err := Build(cfg); err == nil {
		t.Fatal("Build() with an unwritable store directory returned no error")
	}
}

func TestSchedulerFromConfigAppliesTunables(t *testing.T) {
	cfg := config.Default()
	cfg.Workers = 3

	sched := SchedulerFromConfig(cfg)
	if sched == nil {
		t.Fatal("SchedulerFromConfig() returned nil")
	}
}

func TestCloseIsSafeOnNilContext(t *testing.T) {
	var core *CoreContext
	if err := core.Close(); err != nil {
		t.Errorf("Close() on nil context error = %v", err)
	}
}

func TestCloseIsSafeOnPartiallyBuiltContext(t *testing.T) {
	core := &CoreContext{}
	if err := core.Close(); err != nil {
		t.Errorf("Close() on context with nil Store error = %v", err)
	}
}
