package netconf_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hitsz-netlab/gonet/netconf"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "netstackd.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := netconf.DefaultConfig()

	if cfg.Interface.IP != "10.0.0.1" {
		t.Errorf("Interface.IP = %q, want %q", cfg.Interface.IP, "10.0.0.1")
	}
	if cfg.Timing.ARPTimeout != 60*time.Second {
		t.Errorf("Timing.ARPTimeout = %v, want 60s", cfg.Timing.ARPTimeout)
	}
	if err := netconf.Validate(cfg); err != nil {
		t.Errorf("DefaultConfig() failed validation: %v", err)
	}
}

func TestLoadFromYAML(t *testing.T) {
	yamlContent := `
interface:
  ip: "192.168.1.10"
  mac: "aa:bb:cc:dd:ee:ff"
timing:
  arp_timeout: "30s"
metrics:
  addr: ":9200"
log:
  level: "debug"
`
	path := writeTemp(t, yamlContent)
	cfg, err := netconf.Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error: %v", path, err)
	}
	if cfg.Interface.IP != "192.168.1.10" {
		t.Errorf("Interface.IP = %q, want %q", cfg.Interface.IP, "192.168.1.10")
	}
	if cfg.Timing.ARPTimeout != 30*time.Second {
		t.Errorf("Timing.ARPTimeout = %v, want 30s", cfg.Timing.ARPTimeout)
	}
	// Unset fields inherit defaults.
	if cfg.Timing.ARPMinInterval != 1*time.Second {
		t.Errorf("Timing.ARPMinInterval = %v, want default 1s", cfg.Timing.ARPMinInterval)
	}
	if cfg.Metrics.Addr != ":9200" {
		t.Errorf("Metrics.Addr = %q, want %q", cfg.Metrics.Addr, ":9200")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := netconf.Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error: %v", err)
	}
	if cfg.Interface.MAC != "02:00:00:00:00:01" {
		t.Errorf("Interface.MAC = %q, want default", cfg.Interface.MAC)
	}
}

func TestValidateRejectsBadAddresses(t *testing.T) {
	cfg := netconf.DefaultConfig()
	cfg.Interface.IP = "not-an-ip"
	if err := netconf.Validate(cfg); err == nil {
		t.Fatal("Validate should reject a malformed IP")
	}

	cfg = netconf.DefaultConfig()
	cfg.Interface.MAC = "bogus"
	if err := netconf.Validate(cfg); err == nil {
		t.Fatal("Validate should reject a malformed MAC")
	}

	cfg = netconf.DefaultConfig()
	cfg.Timing.ReassemblyTimeout = 0
	if err := netconf.Validate(cfg); err == nil {
		t.Fatal("Validate should reject a non-positive timing value")
	}
}

func TestInterfaceConfigParsing(t *testing.T) {
	ic := netconf.InterfaceConfig{IP: "10.0.0.5", MAC: "de:ad:be:ef:00:01"}
	ip, err := ic.Addr()
	if err != nil {
		t.Fatal(err)
	}
	if ip != ([4]byte{10, 0, 0, 5}) {
		t.Fatalf("Addr() = %v, want {10,0,0,5}", ip)
	}
	mac, err := ic.HardwareAddr()
	if err != nil {
		t.Fatal(err)
	}
	if mac != ([6]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}) {
		t.Fatalf("HardwareAddr() = %v", mac)
	}
}

func TestParseLogLevel(t *testing.T) {
	cases := map[string]bool{"debug": true, "warn": true, "error": true, "info": true, "bogus": true}
	for level := range cases {
		_ = netconf.ParseLogLevel(level) // exercises every branch without hard-coding slog constants here.
	}
}
