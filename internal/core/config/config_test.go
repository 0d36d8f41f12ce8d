package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_ValidConfig(t *testing.T) {
	root := t.TempDir()
	segmentDir := filepath.Join(root, "segments")
	requireNoError(t, os.MkdirAll(segmentDir, 0o755))

	cfgPath := filepath.Join(root, "topn.yaml")
	requireNoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
server:
  port: 8080
  host: "127.0.0.1"
  mode: "release"
log:
  level: "debug"
  format: "json"
segments:
  source_type: "filesystem"
  path: "%s"
  refresh_interval: "30s"
engine:
  values_per_pass: 512
  max_threshold: 100
  max_concurrent_segments: 2
  result_cache_ttl: "10m"
`, segmentDir)), 0o644))

	cfg, err := Load(cfgPath)
	requireNoError(t, err)
	if cfg.Segments.RefreshEvery() != 30*time.Second {
		t.Fatalf("expected 30s refresh, got %s", cfg.Segments.RefreshEvery())
	}
	if cfg.Engine.CacheTTL() != 10*time.Minute {
		t.Fatalf("expected 10m cache ttl, got %s", cfg.Engine.CacheTTL())
	}
	if cfg.Engine.ValuesPerPass != 512 || cfg.Engine.MaxConcurrentSegments != 2 {
		t.Fatalf("unexpected engine config %+v", cfg.Engine)
	}
	if cfg.Engine.ResultCacheCapacity != 1024 {
		t.Fatalf("expected default cache capacity, got %d", cfg.Engine.ResultCacheCapacity)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "topn.yaml")
	requireNoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
segments:
  path: "%s"
`, root)), 0o644))

	t.Setenv("TOPN_SERVER__PORT", "9191")
	t.Setenv("TOPN_ENGINE__MAX_THRESHOLD", "7")

	cfg, err := Load(cfgPath)
	requireNoError(t, err)
	if cfg.Server.Port != 9191 {
		t.Fatalf("expected port from env, got %d", cfg.Server.Port)
	}
	if cfg.Engine.MaxThreshold != 7 {
		t.Fatalf("expected max_threshold from env, got %d", cfg.Engine.MaxThreshold)
	}
}

func TestLoad_InvalidRefreshIntervalFailsStartup(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "topn.yaml")
	requireNoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
segments:
  path: "%s"
  refresh_interval: "nope"
`, root)), 0o644))

	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "invalid segments.refresh_interval") {
		t.Fatalf("expected invalid refresh interval error, got %v", err)
	}
}

func TestLoad_MissingSegmentDirFailsStartup(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "topn.yaml")
	requireNoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
segments:
  path: "%s"
`, filepath.Join(root, "missing"))), 0o644))

	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "is not accessible") {
		t.Fatalf("expected inaccessible path error, got %v", err)
	}
}

func TestLoad_PostgresRequiresDSN(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "topn.yaml")
	requireNoError(t, os.WriteFile(cfgPath, []byte(`
segments:
  source_type: "postgres"
`), 0o644))

	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "database.dsn is required") {
		t.Fatalf("expected dsn error, got %v", err)
	}
}

func TestLoad_ReportsEveryProblem(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "topn.yaml")
	requireNoError(t, os.WriteFile(cfgPath, []byte(fmt.Sprintf(`
server:
  port: -1
log:
  format: "xml"
segments:
  path: "%s"
engine:
  max_threshold: 0
`, root)), 0o644))

	_, err := Load(cfgPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"invalid server.port", "invalid log.format", "engine.max_threshold must be > 0"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}

func TestLoad_UnknownSourceType(t *testing.T) {
	root := t.TempDir()
	cfgPath := filepath.Join(root, "topn.yaml")
	requireNoError(t, os.WriteFile(cfgPath, []byte(`
segments:
  source_type: "s3"
`), 0o644))

	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), `unsupported segments.source_type "s3"`) {
		t.Fatalf("expected source type error, got %v", err)
	}
}

func requireNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
