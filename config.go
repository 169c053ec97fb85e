package portprobe

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v2"
)

// defaultProbeConfigYAML is a sensible default configuration: a complete,
// parseable config with conservative values, usable as-is.
var defaultProbeConfigYAML = `
at_tuning:
    send_delay_us:      0
    remove_echo:        true
    append_lf:          false
    open_retry_limit:   4

rate_limit:
    cps:    4.0

api:
    bind:   0.0.0.0:5050

telemetry:
    enabled:    false
    db_host:    127.0.0.1
    db_port:    8086
    db_name:    portprobe

ignored_ports: []
`

// ATTuningConfig carries the AT sub-probe knobs a caller would otherwise
// have to pass individually to Runner.Run, expressed as a nested YAML block.
type ATTuningConfig struct {
	SendDelayUs    int64 `yaml:"send_delay_us"`
	RemoveEcho     bool  `yaml:"remove_echo"`
	AppendLF       bool  `yaml:"append_lf"`
	OpenRetryLimit int64 `yaml:"open_retry_limit"`
}

// RateLimitConfig paces AT open retries and command sends, in cycles per
// second.
type RateLimitConfig struct {
	CPS float64 `yaml:"cps"`
}

// APIConfig describes the diagnostics HTTP API's bind address.
type APIConfig struct {
	Bind string `yaml:"bind"`
}

// TelemetryConfig describes the optional InfluxDB sink.
type TelemetryConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBHost  string `yaml:"db_host"`
	DBPort  int64  `yaml:"db_port"`
	DBName  string `yaml:"db_name"`
}

// IgnoredPort names a port to treat as is_ignored = true at construction,
// the config-file equivalent of a udev hint to skip probing it.
type IgnoredPort struct {
	Subsystem string `yaml:"subsystem"`
	Name      string `yaml:"name"`
}

// ProbeConfig wraps the complete configuration for a probing engine
// instance.
type ProbeConfig struct {
	ATTuning     ATTuningConfig  `yaml:"at_tuning"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
	API          APIConfig       `yaml:"api"`
	Telemetry    TelemetryConfig `yaml:"telemetry"`
	IgnoredPorts []IgnoredPort   `yaml:"ignored_ports"`
}

// NewDefaultProbeConfig parses defaultProbeConfigYAML.
func NewDefaultProbeConfig() (*ProbeConfig, error) {
	return NewProbeConfig([]byte(defaultProbeConfigYAML))
}

// NewProbeConfig parses data (expected to be YAML) into a ProbeConfig.
func NewProbeConfig(data []byte) (*ProbeConfig, error) {
	cfg := &ProbeConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse probe config: %s", err)
	}
	return cfg, nil
}

// IsIgnored reports whether identity matches one of the config's
// IgnoredPorts entries.
func (c *ProbeConfig) IsIgnored(identity PortIdentity) bool {
	for _, ignored := range c.IgnoredPorts {
		if ignored.Subsystem == identity.Subsystem && ignored.Name == identity.Name {
			return true
		}
	}
	return false
}

// RunOptions builds a RunOptions from the AT tuning config, ready to pass to
// Runner.Run alongside a requested flag set.
func (c *ATTuningConfig) RunOptions(flags Flag) RunOptions {
	return RunOptions{
		Flags:            flags,
		ATSendDelay:      time.Duration(c.SendDelayUs) * time.Microsecond,
		ATRemoveEcho:     c.RemoveEcho,
		ATSendLF:         c.AppendLF,
		ATOpenRetryLimit: int(c.OpenRetryLimit),
	}
}
