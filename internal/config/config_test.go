package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Defaults()
	if !reflect.DeepEqual(cfg, want) {
		t.Fatalf("Load(\"\") = %+v, want %+v", cfg, want)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "mcprocd.toml")
	data := `
retention_days = 30
max_log_bytes = 1048576
runtime_root = "/tmp/mcproc-runtime"
state_root = "/tmp/mcproc-state"
metrics_listen_addr = "127.0.0.1:9877"
env = ["FOO=bar"]
env_files = [".env"]
use_os_env = true
log_max_size_mb = 20
log_max_backups = 5
log_max_age_days = 14
log_compress = true
`
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RetentionDays != 30 {
		t.Errorf("RetentionDays = %d, want 30", cfg.RetentionDays)
	}
	if cfg.MaxLogBytes != 1048576 {
		t.Errorf("MaxLogBytes = %d, want 1048576", cfg.MaxLogBytes)
	}
	if cfg.RuntimeRoot != "/tmp/mcproc-runtime" {
		t.Errorf("RuntimeRoot = %q", cfg.RuntimeRoot)
	}
	if cfg.StateRoot != "/tmp/mcproc-state" {
		t.Errorf("StateRoot = %q", cfg.StateRoot)
	}
	if cfg.MetricsListenAddr != "127.0.0.1:9877" {
		t.Errorf("MetricsListenAddr = %q", cfg.MetricsListenAddr)
	}
	if len(cfg.Env) != 1 || cfg.Env[0] != "FOO=bar" {
		t.Errorf("Env = %v", cfg.Env)
	}
	if len(cfg.EnvFiles) != 1 || cfg.EnvFiles[0] != ".env" {
		t.Errorf("EnvFiles = %v", cfg.EnvFiles)
	}
	if !cfg.UseOSEnv {
		t.Errorf("UseOSEnv = false, want true")
	}
	if cfg.LogMaxSizeMB != 20 || cfg.LogMaxBackups != 5 || cfg.LogMaxAgeDays != 14 || !cfg.LogCompress {
		t.Errorf("unexpected log rotation fields: %+v", cfg)
	}
}

func TestLoad_PartialOverrideKeepsOtherDefaults(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "mcprocd.toml")
	data := `retention_days = 1`
	if err := os.WriteFile(file, []byte(data), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}

	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	defaults := Defaults()
	if cfg.RetentionDays != 1 {
		t.Errorf("RetentionDays = %d, want 1", cfg.RetentionDays)
	}
	if cfg.LogMaxSizeMB != defaults.LogMaxSizeMB {
		t.Errorf("LogMaxSizeMB = %d, want default %d", cfg.LogMaxSizeMB, defaults.LogMaxSizeMB)
	}
	if cfg.LogMaxBackups != defaults.LogMaxBackups {
		t.Errorf("LogMaxBackups = %d, want default %d", cfg.LogMaxBackups, defaults.LogMaxBackups)
	}
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	if _, err := Load("/nonexistent/mcprocd.toml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_MalformedTOMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(file, []byte("this is not [valid toml"), 0o644); err != nil {
		t.Fatalf("write toml: %v", err)
	}
	if _, err := Load(file); err == nil {
		t.Fatal("expected error for malformed config file")
	}
}

func TestRetentionDuration(t *testing.T) {
	cfg := Config{RetentionDays: 7}
	if got, want := cfg.RetentionDuration(), 7*24*time.Hour; got != want {
		t.Fatalf("RetentionDuration() = %v, want %v", got, want)
	}
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	if d.RetentionDays != 7 {
		t.Errorf("RetentionDays = %d, want 7", d.RetentionDays)
	}
	if d.MaxLogBytes != 50*1024*1024 {
		t.Errorf("MaxLogBytes = %d, want %d", d.MaxLogBytes, 50*1024*1024)
	}
	if d.LogMaxSizeMB != 10 || d.LogMaxBackups != 3 || d.LogMaxAgeDays != 7 {
		t.Errorf("unexpected log rotation defaults: %+v", d)
	}
}
