package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/womat/debug"
	"gopkg.in/yaml.v2"

	"github.com/Jon-Bright/gpioctl/gpio"
)

const DefaultConfigFile = "/etc/gpioctl/gpioctl.yaml"

// Backends for the GPIO registers.
const (
	BackendGPIOMem = "gpiomem" // /dev/gpiomem
	BackendMem     = "mem"     // /dev/mem at the peripheral base
	BackendSim     = "sim"     // plain memory, for development
)

// Config defines the struct of global config and the struct of the configuration file
type Config struct {
	Backend          string          `yaml:"backend"`
	PeriphBase       uint64          `yaml:"periphbase"` // 0 detects the board
	Chip             string          `yaml:"chip"`
	CheckKernelLines bool            `yaml:"checkkernellines"`
	Port             int             `yaml:"port"`
	Flag             FlagConfig      `yaml:"-"`
	Log              LogConfig       `yaml:"log"`
	Webserver        WebserverConfig `yaml:"webserver"`
	MQTT             MQTTConfig      `yaml:"mqtt"`
	Power            PowerConfig     `yaml:"power"`
	Pins             []PinConfig     `yaml:"pins"`
}

// FlagConfig defines the configured flags (parameters)
type FlagConfig struct {
	ConfigFile string
	LogLevel   string
	Backend    string
}

// WebserverConfig defines the struct of the webserver and webservice configuration and configuration file
type WebserverConfig struct {
	URL         string          `yaml:"url"`
	Webservices map[string]bool `yaml:"webservices"`
}

// MQTTConfig defines the struct of the mqtt client configuration and configuration file
type MQTTConfig struct {
	Connection  string        `yaml:"connection"`
	Interval    time.Duration `yaml:"-"`
	IntervalInt int           `yaml:"interval"`
	Topic       string        `yaml:"topic"`
}

// PowerConfig describes an optional power supply switched by one pin, with
// another pin reporting healthy power. Empty pins mean no such pin exists.
type PowerConfig struct {
	CtrlPin       string        `yaml:"ctrlpin"`
	StatusPin     string        `yaml:"statuspin"`
	StatusWaitInt int           `yaml:"statuswait"` // ms
	StatusWait    time.Duration `yaml:"-"`
}

// PinConfig is a pin to configure at startup. Mode is input, output or
// alt0-alt5; Initial (high or low) only applies to outputs.
type PinConfig struct {
	Pin     string `yaml:"pin"`
	Mode    string `yaml:"mode"`
	Initial string `yaml:"initial"`
}

// LogConfig defines the struct of the debug configuration and configuration file
type LogConfig struct {
	File       io.WriteCloser `yaml:"-"`
	Flag       int            `yaml:"-"`
	FlagString string         `yaml:"flag"`
	FileString string         `yaml:"file"`
}

func NewConfig() *Config {
	return &Config{
		Backend: BackendGPIOMem,
		Chip:    "gpiochip0",
		Port:    24601,
		Flag:    FlagConfig{ConfigFile: DefaultConfigFile},
		Log: LogConfig{
			FileString: "stderr",
			FlagString: "standard",
		},
		Webserver: WebserverConfig{
			URL: "http://0.0.0.0:4000",
			Webservices: map[string]bool{
				"version": true,
				"health":  true,
				"pins":    true,
			},
		},
		MQTT: MQTTConfig{
			IntervalInt: 5,
			Topic:       "gpioctl",
		},
		Power: PowerConfig{
			StatusWaitInt: 2000,
		},
	}
}

// LoadConfig reads the config file over the defaults, applies flag overrides
// and opens the log file. A missing config file is only an error if it isn't
// the default one.
func (c *Config) LoadConfig() error {
	if err := c.readConfigFile(); err != nil {
		if !(errors.Is(err, os.ErrNotExist) && c.Flag.ConfigFile == DefaultConfigFile) {
			return fmt.Errorf("error reading config file %q: %w", c.Flag.ConfigFile, err)
		}
	}

	if c.Flag.LogLevel != "" {
		c.Log.FlagString = c.Flag.LogLevel
	}
	if c.Flag.Backend != "" {
		c.Backend = c.Flag.Backend
	}
	if err := c.Validate(); err != nil {
		return err
	}
	if err := c.setDebugConfig(); err != nil {
		return fmt.Errorf("unable to open log file %q: %w", c.Log.FileString, err)
	}

	c.MQTT.Interval = time.Duration(c.MQTT.IntervalInt) * time.Second
	c.Power.StatusWait = time.Duration(c.Power.StatusWaitInt) * time.Millisecond

	return nil
}

// Validate checks the values that can be checked without touching hardware.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendGPIOMem, BackendMem, BackendSim:
	default:
		return fmt.Errorf("unknown backend %q, want one of %s, %s, %s", c.Backend, BackendGPIOMem, BackendMem, BackendSim)
	}
	for _, p := range c.Pins {
		if p.Pin == "" {
			return fmt.Errorf("pin without a number in pins")
		}
		if _, err := gpio.ParseFunction(p.Mode); err != nil {
			return fmt.Errorf("pin %s: %w", p.Pin, err)
		}
		switch p.Initial {
		case "", "high", "low":
		default:
			return fmt.Errorf("pin %s: initial must be high or low, not %q", p.Pin, p.Initial)
		}
	}
	if c.MQTT.IntervalInt < 0 || c.Power.StatusWaitInt < 0 {
		return fmt.Errorf("intervals can't be negative")
	}
	if c.MQTT.Connection != "" && c.MQTT.IntervalInt == 0 {
		return fmt.Errorf("mqtt interval must be at least 1s")
	}
	return nil
}

func (c *Config) readConfigFile() error {
	file, err := os.Open(c.Flag.ConfigFile)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	decoder := yaml.NewDecoder(file)
	if err = decoder.Decode(c); err != nil && err != io.EOF {
		return err
	}

	return nil
}

func (c *Config) setDebugConfig() (err error) {
	switch c.Log.FlagString {
	case "trace", "full":
		c.Log.Flag = debug.Full
	case "debug":
		c.Log.Flag = debug.Warning | debug.Info | debug.Error | debug.Fatal | debug.Debug
	case "standard":
		c.Log.Flag = debug.Standard
	default:
		return fmt.Errorf("unknown log level %q", c.Log.FlagString)
	}

	switch c.Log.FileString {
	case "stderr":
		c.Log.File = os.Stderr
	case "stdout":
		c.Log.File = os.Stdout
	default:
		if c.Log.File, err = os.OpenFile(c.Log.FileString, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o666); err != nil {
			return
		}
	}

	return
}
