package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
cloud:
  account: user@example.com
  password: hunter2
discovery:
  interval: 10s
  probe_addresses:
    - 10.0.1.50
devices:
  - name: bedroom
    ip: 192.168.1.60
    id: 12345
    token: aabb
    key: ccdd
log:
  level: debug
  file: events.cbor
credential_file: /var/lib/midea/credentials.json
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Cloud.Account != "user@example.com" {
		t.Errorf("account = %q", cfg.Cloud.Account)
	}
	if cfg.Discovery.Interval != 10*time.Second {
		t.Errorf("interval = %v", cfg.Discovery.Interval)
	}
	if len(cfg.Discovery.ProbeAddresses) != 1 || cfg.Discovery.ProbeAddresses[0] != "10.0.1.50" {
		t.Errorf("probe addresses = %v", cfg.Discovery.ProbeAddresses)
	}
	if len(cfg.Devices) != 1 {
		t.Fatalf("devices = %d", len(cfg.Devices))
	}
	d := cfg.Devices[0]
	if d.Name != "bedroom" || d.IP != "192.168.1.60" || d.ID != 12345 {
		t.Errorf("device = %+v", d)
	}
	if d.Port != 6444 {
		t.Errorf("default port = %d, want 6444", d.Port)
	}
	if d.ProtocolVersion != 3 {
		t.Errorf("default protocol version = %d, want 3", d.ProtocolVersion)
	}
	if cfg.Log.Level != "debug" || cfg.Log.File != "events.cbor" {
		t.Errorf("log config = %+v", cfg.Log)
	}
	if cfg.CredentialFile != "/var/lib/midea/credentials.json" {
		t.Errorf("credential file = %q", cfg.CredentialFile)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Discovery.Interval != 5*time.Second {
		t.Errorf("interval = %v, want 5s", cfg.Discovery.Interval)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("level = %q, want info", cfg.Log.Level)
	}
	if cfg.CredentialFile != "credentials.json" {
		t.Errorf("credential file = %q", cfg.CredentialFile)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MIDEA_ACCOUNT", "env@example.com")
	t.Setenv("MIDEA_PASSWORD", "envpass")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, `
cloud:
  account: file@example.com
  password: filepass
log:
  level: info
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Cloud.Account != "env@example.com" || cfg.Cloud.Password != "envpass" {
		t.Errorf("cloud = %+v", cfg.Cloud)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("level = %q, want warn", cfg.Log.Level)
	}
}

func TestLoadRejectsDeviceWithoutIP(t *testing.T) {
	_, err := Load(writeConfig(t, `
devices:
  - name: nameless
    id: 42
`))
	if err == nil {
		t.Error("expected error for device without ip")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
