// SPDX-License-Identifier: MIT
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"spectral/internal/log"
)

var ErrInvalid = errors.New("invalid configuration")

// SearchPaths lists the files LoadConfig tries, in order, when no path is
// given. A leading ~ is expanded to the user's home directory.
var SearchPaths = []string{
	"spectral.yaml",
	"config.yaml",
	"~/.config/spectral/config.yaml",
}

// LoadConfig loads configuration from the YAML file at path. If path is
// empty the SearchPaths are tried and, when none exists, the built-in
// defaults are used. Environment overrides are applied last and the result
// is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		log.Debugf("configuration: loaded %s", path)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfig() string {
	for _, candidate := range SearchPaths {
		expanded, err := homedir.Expand(candidate)
		if err != nil {
			continue
		}
		if info, err := os.Stat(expanded); err == nil && !info.IsDir() {
			return expanded
		}
	}
	return ""
}

// Validate checks the configuration for values the pipeline cannot run
// with.
func (c *Config) Validate() error {
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("%w: log_level %q", ErrInvalid, c.LogLevel)
	}

	a := c.Audio
	switch {
	case a.InputDevice < MinDeviceID || a.OutputDevice < MinDeviceID:
		return fmt.Errorf("%w: device index must be >= %d", ErrInvalid, MinDeviceID)
	case a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate:
		return fmt.Errorf("%w: audio.sample_rate %v outside %d..%d", ErrInvalid, a.SampleRate, MinSampleRate, MaxSampleRate)
	case a.FramesPerBuffer < 0:
		return fmt.Errorf("%w: audio.frames_per_buffer %d", ErrInvalid, a.FramesPerBuffer)
	}

	p := c.Pipeline
	switch {
	case p.QuantumCapacity < 1 || p.QuantumCapacity > MaxQuantumCapacity:
		return fmt.Errorf("%w: pipeline.quantum_capacity %d outside 1..%d", ErrInvalid, p.QuantumCapacity, MaxQuantumCapacity)
	case a.FramesPerBuffer > p.QuantumCapacity:
		return fmt.Errorf("%w: audio.frames_per_buffer %d exceeds pipeline.quantum_capacity %d", ErrInvalid, a.FramesPerBuffer, p.QuantumCapacity)
	case p.ResultQueue < 1:
		return fmt.Errorf("%w: pipeline.result_queue must be positive", ErrInvalid)
	case !(p.BudgetRatio > 0):
		return fmt.Errorf("%w: pipeline.budget_ratio must be positive", ErrInvalid)
	case p.StatsInterval <= 0:
		return fmt.Errorf("%w: pipeline.stats_interval must be positive", ErrInvalid)
	}

	switch c.Core.Kind {
	case CoreBuiltin:
	case CoreNative:
		if c.Core.Library == "" {
			return fmt.Errorf("%w: core.library must be set for the native core", ErrInvalid)
		}
		if c.Core.Symbol == "" {
			return fmt.Errorf("%w: core.symbol must be set for the native core", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: core.kind %q (want %q or %q)", ErrInvalid, c.Core.Kind, CoreBuiltin, CoreNative)
	}

	if r := c.Recording; r.Enabled {
		switch r.BitDepth {
		case 16, 24, 32:
		default:
			return fmt.Errorf("%w: recording.bit_depth %d", ErrInvalid, r.BitDepth)
		}
	}

	t := c.Transport
	if t.WebSocketEnabled {
		if _, _, err := net.SplitHostPort(t.WebSocketAddress); err != nil {
			return fmt.Errorf("%w: transport.websocket_address %q: %v", ErrInvalid, t.WebSocketAddress, err)
		}
	}
	if t.UDPEnabled {
		if _, _, err := net.SplitHostPort(t.UDPTargetAddress); err != nil {
			return fmt.Errorf("%w: transport.udp_target_address %q: %v", ErrInvalid, t.UDPTargetAddress, err)
		}
		if t.UDPSendInterval <= 0 {
			return fmt.Errorf("%w: transport.udp_send_interval must be positive", ErrInvalid)
		}
	}
	return nil
}

// envOverride applies one SPECTRAL_* variable.
type envOverride struct {
	name  string
	apply func(c *Config, val string) error
}

var envOverrides = []envOverride{
	{"SPECTRAL_DEBUG", func(c *Config, v string) error { return parseBool(v, &c.Debug) }},
	{"SPECTRAL_LOG_LEVEL", func(c *Config, v string) error { c.LogLevel = v; return nil }},
	{"SPECTRAL_INPUT_DEVICE", func(c *Config, v string) error { return parseInt(v, &c.Audio.InputDevice) }},
	{"SPECTRAL_SAMPLE_RATE", func(c *Config, v string) error { return parseFloat(v, &c.Audio.SampleRate) }},
	{"SPECTRAL_FRAMES", func(c *Config, v string) error { return parseInt(v, &c.Audio.FramesPerBuffer) }},
	{"SPECTRAL_CORE", func(c *Config, v string) error { c.Core.Kind = v; return nil }},
	{"SPECTRAL_CORE_LIBRARY", func(c *Config, v string) error { c.Core.Library = v; return nil }},
	{"SPECTRAL_CORE_SYMBOL", func(c *Config, v string) error { c.Core.Symbol = v; return nil }},
	{"SPECTRAL_WS_ADDRESS", func(c *Config, v string) error { c.Transport.WebSocketAddress = v; return nil }},
	{"SPECTRAL_UDP_ENABLED", func(c *Config, v string) error { return parseBool(v, &c.Transport.UDPEnabled) }},
	{"SPECTRAL_UDP_TARGET_ADDRESS", func(c *Config, v string) error { c.Transport.UDPTargetAddress = v; return nil }},
	{"SPECTRAL_UDP_SEND_INTERVAL", func(c *Config, v string) error { return parseDuration(v, &c.Transport.UDPSendInterval) }},
}

// applyEnvOverrides applies SPECTRAL_* environment variables on top of the
// file values. A variable that does not parse is an error.
func (c *Config) applyEnvOverrides() error {
	for _, o := range envOverrides {
		val, ok := os.LookupEnv(o.name)
		if !ok {
			continue
		}
		if err := o.apply(c, val); err != nil {
			return fmt.Errorf("%w: %s=%q: %v", ErrInvalid, o.name, val, err)
		}
		log.Debugf("configuration: %s overrides file value", o.name)
	}
	return nil
}

func parseBool(v string, dst *bool) error {
	b, err := strconv.ParseBool(v)
	if err == nil {
		*dst = b
	}
	return err
}

func parseInt(v string, dst *int) error {
	n, err := strconv.Atoi(v)
	if err == nil {
		*dst = n
	}
	return err
}

func parseFloat(v string, dst *float64) error {
	f, err := strconv.ParseFloat(v, 64)
	if err == nil {
		*dst = f
	}
	return err
}

func parseDuration(v string, dst *time.Duration) error {
	d, err := time.ParseDuration(v)
	if err == nil {
		*dst = d
	}
	return err
}
