package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the gray-bus-tools suite.
// All daemons share one broker connection configuration; each daemon section
// only carries its topic-suffix defaults, which remain overridable from the
// command line.
type Config struct {
	MQTT     MQTTConfig     `yaml:"mqtt"`
	Logging  LoggingConfig  `yaml:"logging"`
	Daemons  DaemonsConfig  `yaml:"daemons"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DaemonsConfig carries the per-daemon topic conventions.
type DaemonsConfig struct {
	Logic      LogicConfig      `yaml:"logic"`
	Timer      TimerConfig      `yaml:"timer"`
	Off        OffConfig        `yaml:"off"`
	Alarm      AlarmConfig      `yaml:"alarm"`
	TimeSwitch TimeSwitchConfig `yaml:"timeswitch"`
	Clock      ClockConfig      `yaml:"clock"`
}

// LogicConfig configures the logic-processor daemon.
type LogicConfig struct {
	// Suffix marks expression specification topics.
	Suffix string `yaml:"suffix"`
	// WriteSuffix, when set, redirects results to <topic><write_suffix>
	// as non-retained messages instead of retained writes to the topic.
	WriteSuffix string `yaml:"write_suffix"`
}

// TimerConfig configures the timer daemon.
type TimerConfig struct {
	Suffix      string `yaml:"suffix"`
	WriteSuffix string `yaml:"write_suffix"`
	ResetValue  string `yaml:"reset_value"`
}

// OffConfig configures the timeout-turnoff daemon.
type OffConfig struct {
	Suffix      string `yaml:"suffix"`
	WriteSuffix string `yaml:"write_suffix"`
	ResetValue  string `yaml:"reset_value"`
}

// AlarmConfig configures the alarm-clock daemon.
type AlarmConfig struct {
	// EventPrefix is the topic prefix for alarm events and the active count.
	EventPrefix string `yaml:"event_prefix"`
}

// TimeSwitchConfig configures the time-switch daemon.
type TimeSwitchConfig struct{}

// ClockConfig configures the formatted-time daemon.
type ClockConfig struct {
	Suffix string `yaml:"suffix"`
}

// InfluxDBConfig contains InfluxDB connection settings for the record daemon.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// Load reads configuration from a YAML file and applies environment variable
// overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GRAYBUS_SECTION_KEY
// For example: GRAYBUS_MQTT_HOST, GRAYBUS_INFLUXDB_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Defaults returns a Config populated with the suite's defaults, matching
// the topic conventions the daemons have always used.
func Defaults() *Config {
	return &Config{
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Daemons: DaemonsConfig{
			Logic: LogicConfig{Suffix: "/logic"},
			Timer: TimerConfig{Suffix: "/timer", ResetValue: "0"},
			Off:   OffConfig{Suffix: "/timeoff", ResetValue: "0"},
			Alarm: AlarmConfig{EventPrefix: "state/alrm"},
			Clock: ClockConfig{Suffix: "/fmtnow"},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://localhost:8086",
			Bucket:        "graybus",
			BatchSize:     100,
			FlushInterval: 5,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables follow the pattern GRAYBUS_SECTION_KEY.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYBUS_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYBUS_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GRAYBUS_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYBUS_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("GRAYBUS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GRAYBUS_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	for _, s := range []struct{ name, val string }{
		{"daemons.logic.suffix", c.Daemons.Logic.Suffix},
		{"daemons.timer.suffix", c.Daemons.Timer.Suffix},
		{"daemons.off.suffix", c.Daemons.Off.Suffix},
		{"daemons.clock.suffix", c.Daemons.Clock.Suffix},
	} {
		if s.val == "" {
			errs = append(errs, s.name+" must not be empty")
		}
	}
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set GRAYBUS_INFLUXDB_TOKEN)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SetBroker parses a HOST[:PORT] command line value into the broker config.
// A trailing :PORT is split off unless it belongs to a bracketed IPv6
// literal.
func (c *Config) SetBroker(hostport string) error {
	host := hostport
	if idx := strings.LastIndex(hostport, ":"); idx > 0 && hostport[idx-1] != ']' {
		port, err := strconv.Atoi(hostport[idx+1:])
		if err != nil {
			return fmt.Errorf("invalid broker port %q", hostport[idx+1:])
		}
		host = hostport[:idx]
		c.MQTT.Broker.Port = port
	}
	c.MQTT.Broker.Host = host
	return nil
}
