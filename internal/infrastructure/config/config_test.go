package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("default broker host = %q, want localhost", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("default broker port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.QoS != 1 {
		t.Errorf("default QoS = %d, want 1", cfg.MQTT.QoS)
	}
	if cfg.Daemons.Logic.Suffix != "/logic" {
		t.Errorf("default logic suffix = %q, want /logic", cfg.Daemons.Logic.Suffix)
	}
	if cfg.Daemons.Timer.Suffix != "/timer" {
		t.Errorf("default timer suffix = %q, want /timer", cfg.Daemons.Timer.Suffix)
	}
	if cfg.Daemons.Off.Suffix != "/timeoff" {
		t.Errorf("default off suffix = %q, want /timeoff", cfg.Daemons.Off.Suffix)
	}
	if cfg.Daemons.Timer.ResetValue != "0" {
		t.Errorf("default timer reset value = %q, want 0", cfg.Daemons.Timer.ResetValue)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
mqtt:
  broker:
    host: broker.local
    port: 8883
    tls: true
  qos: 2
daemons:
  logic:
    suffix: /script
    write_suffix: /set
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("broker host = %q, want broker.local", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("broker port = %d, want 8883", cfg.MQTT.Broker.Port)
	}
	if !cfg.MQTT.Broker.TLS {
		t.Error("broker TLS should be enabled")
	}
	if cfg.Daemons.Logic.Suffix != "/script" {
		t.Errorf("logic suffix = %q, want /script", cfg.Daemons.Logic.Suffix)
	}
	if cfg.Daemons.Logic.WriteSuffix != "/set" {
		t.Errorf("logic write suffix = %q, want /set", cfg.Daemons.Logic.WriteSuffix)
	}
	// Unset sections keep their defaults.
	if cfg.Daemons.Timer.Suffix != "/timer" {
		t.Errorf("timer suffix = %q, want default /timer", cfg.Daemons.Timer.Suffix)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/config.yaml"); err == nil {
		t.Error("Load() with missing file should fail")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GRAYBUS_MQTT_HOST", "env-broker")
	t.Setenv("GRAYBUS_MQTT_PORT", "2883")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.MQTT.Broker.Host != "env-broker" {
		t.Errorf("broker host = %q, want env-broker", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Broker.Port != 2883 {
		t.Errorf("broker port = %d, want 2883", cfg.MQTT.Broker.Port)
	}
}

func TestValidateRejectsBadQoS(t *testing.T) {
	cfg := Defaults()
	cfg.MQTT.QoS = 3
	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() should reject qos=3")
	}
	if !strings.Contains(err.Error(), "qos") {
		t.Errorf("error %q should mention qos", err)
	}
}

func TestValidateInfluxNeedsToken(t *testing.T) {
	cfg := Defaults()
	cfg.InfluxDB.Enabled = true
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should require a token when influxdb is enabled")
	}
	cfg.InfluxDB.Token = "secret"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() with token: %v", err)
	}
}

func TestSetBroker(t *testing.T) {
	tests := []struct {
		in       string
		wantHost string
		wantPort int
	}{
		{"broker.local", "broker.local", 1883},
		{"broker.local:8883", "broker.local", 8883},
		{"[::1]:2883", "[::1]", 2883},
		{"[::1]", "[::1]", 1883},
	}
	for _, tc := range tests {
		cfg := Defaults()
		if err := cfg.SetBroker(tc.in); err != nil {
			t.Errorf("SetBroker(%q) error: %v", tc.in, err)
			continue
		}
		if cfg.MQTT.Broker.Host != tc.wantHost || cfg.MQTT.Broker.Port != tc.wantPort {
			t.Errorf("SetBroker(%q) = %s:%d, want %s:%d",
				tc.in, cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port, tc.wantHost, tc.wantPort)
		}
	}

	cfg := Defaults()
	if err := cfg.SetBroker("host:notaport"); err == nil {
		t.Error("SetBroker with invalid port should fail")
	}
}
