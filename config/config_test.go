package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/womat/debug"
)

func writeConfig(t *testing.T, s string) string {
	t.Helper()
	f := filepath.Join(t.TempDir(), "gpioctl.yaml")
	if err := os.WriteFile(f, []byte(s), 0o644); err != nil {
		t.Fatalf("couldn't write config: %v", err)
	}
	return f
}

func TestLoadConfig(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = writeConfig(t, `
backend: sim
port: 2000
log:
  flag: debug
mqtt:
  connection: tcp://127.0.0.1:1883
  interval: 10
power:
  ctrlpin: "17"
  statuspin: J8p13
  statuswait: 500
pins:
  - pin: "5"
    mode: output
    initial: high
  - pin: GPIO18
    mode: alt5
`)
	if err := c.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Backend != BackendSim || c.Port != 2000 {
		t.Errorf("backend/port, got: %s/%d, want: sim/2000", c.Backend, c.Port)
	}
	if c.MQTT.Interval != 10*time.Second {
		t.Errorf("mqtt interval, got: %v, want: 10s", c.MQTT.Interval)
	}
	if c.Power.StatusWait != 500*time.Millisecond || c.Power.StatusPin != "J8p13" {
		t.Errorf("power, got: %+v", c.Power)
	}
	if len(c.Pins) != 2 || c.Pins[1].Mode != "alt5" || c.Pins[0].Initial != "high" {
		t.Errorf("pins, got: %+v", c.Pins)
	}
	if c.Log.Flag != debug.Warning|debug.Info|debug.Error|debug.Fatal|debug.Debug {
		t.Errorf("log flag, got: %d", c.Log.Flag)
	}
	// Defaults that the file didn't mention survive.
	if c.Chip != "gpiochip0" || !c.Webserver.Webservices["pins"] {
		t.Errorf("defaults lost, got chip %q, webservices %v", c.Chip, c.Webserver.Webservices)
	}
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = writeConfig(t, "backend: mem\nlog:\n  flag: trace\n")
	c.Flag.Backend = BackendSim
	c.Flag.LogLevel = "standard"
	if err := c.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if c.Backend != BackendSim {
		t.Errorf("backend, got: %s, want: sim", c.Backend)
	}
	if c.Log.Flag != debug.Standard {
		t.Errorf("log flag, got: %d, want: %d", c.Log.Flag, debug.Standard)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = filepath.Join(t.TempDir(), "missing.yaml")
	if err := c.LoadConfig(); err == nil {
		t.Errorf("explicit missing config, got: nil error")
	}
}

func TestLoadConfigEmptyFile(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = writeConfig(t, "")
	if err := c.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig of empty file: %v", err)
	}
	if c.Backend != BackendGPIOMem || c.MQTT.Interval != 5*time.Second {
		t.Errorf("defaults, got: %s, %v", c.Backend, c.MQTT.Interval)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"backend", func(c *Config) { c.Backend = "spi" }},
		{"mode", func(c *Config) { c.Pins = []PinConfig{{Pin: "4", Mode: "pwm"}} }},
		{"alt range", func(c *Config) { c.Pins = []PinConfig{{Pin: "4", Mode: "alt6"}} }},
		{"initial", func(c *Config) { c.Pins = []PinConfig{{Pin: "4", Mode: "output", Initial: "on"}} }},
		{"no pin", func(c *Config) { c.Pins = []PinConfig{{Mode: "input"}} }},
		{"interval", func(c *Config) { c.MQTT.IntervalInt = -1 }},
		{"mqtt interval", func(c *Config) {
			c.MQTT.Connection = "tcp://broker:1883"
			c.MQTT.IntervalInt = 0
		}},
	}
	for _, test := range tests {
		c := NewConfig()
		test.mod(c)
		if err := c.Validate(); err == nil {
			t.Errorf("%s: got: nil error", test.name)
		}
	}
	if err := NewConfig().Validate(); err != nil {
		t.Errorf("defaults: %v", err)
	}
}

func TestLogFile(t *testing.T) {
	c := NewConfig()
	c.Flag.ConfigFile = writeConfig(t, "backend: sim\n")
	c.Log.FileString = filepath.Join(t.TempDir(), "gpioctl.log")
	if err := c.LoadConfig(); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	defer c.Log.File.Close()
	if _, err := os.Stat(c.Log.FileString); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}
