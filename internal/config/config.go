// SPDX-License-Identifier: MIT
package config

import "time"

// Defaults and limits for the pipeline configuration.
const (
	// Audio device settings.
	DefaultDeviceID        = MinDeviceID // System default device
	DefaultSampleRate      = 48000       // Hz
	DefaultFramesPerBuffer = 128         // One render quantum
	DefaultLowLatency      = true        // Visual feedback needs low latency
	DefaultPassThrough     = true        // Duplex stream, input is audible

	// Pipeline settings.
	DefaultQuantumCapacity = 1024 // Largest block the region accepts
	DefaultResultQueue     = 8
	DefaultBudgetRatio     = 0.8
	DefaultStatsInterval   = 5 * time.Second

	// Numeric core.
	CoreBuiltin       = "builtin"
	CoreNative        = "native"
	DefaultCore       = CoreBuiltin
	DefaultCoreSymbol = "spectral_transform"

	// Recording.
	DefaultRecordingDir      = "./recordings"
	DefaultRecordingBitDepth = 16

	// Transport.
	DefaultWebSocketAddress = ":8080"
	DefaultWebSocketPath    = "/ws"
	DefaultUDPTargetAddress = "127.0.0.1:9090"
	DefaultUDPSendInterval  = 16 * time.Millisecond // ~60Hz

	// Hardware and processing limits.
	MinDeviceID        = -1     // -1 represents the system default device
	MinSampleRate      = 8000   // Hz
	MaxSampleRate      = 192000 // Hz
	MaxQuantumCapacity = 8192   // Frames per channel
)

// Config holds all runtime options. It is loaded from YAML, overridden by
// SPECTRAL_* environment variables and finally by command line flags.
type Config struct {
	Debug     bool            `yaml:"debug"`     // Enable debug logging.
	LogLevel  string          `yaml:"log_level"` // "debug", "info", "warn" or "error".
	Audio     AudioConfig     `yaml:"audio"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Core      CoreConfig      `yaml:"core"`
	Recording RecordingConfig `yaml:"recording"`
	Transport TransportConfig `yaml:"transport"`
}

// AudioConfig holds settings for the PortAudio stream.
type AudioConfig struct {
	InputDevice     int     `yaml:"input_device"`      // PortAudio device index (-1 for default).
	OutputDevice    int     `yaml:"output_device"`     // PortAudio device index (-1 for default).
	SampleRate      float64 `yaml:"sample_rate"`       // Hz, fixed for the lifetime of a pipeline.
	FramesPerBuffer int     `yaml:"frames_per_buffer"` // Frames per callback; 0 lets the host choose.
	LowLatency      bool    `yaml:"low_latency"`       // Request the device's low latency.
	PassThrough     bool    `yaml:"pass_through"`      // Open an output stream and copy input to it.
}

// PipelineConfig holds settings for the block processor.
type PipelineConfig struct {
	QuantumCapacity int           `yaml:"quantum_capacity"` // Frames per channel the region holds.
	ResultQueue     int           `yaml:"result_queue"`     // Results buffered before the oldest is dropped.
	BudgetRatio     float64       `yaml:"budget_ratio"`     // Share of real time a block may take.
	StatsInterval   time.Duration `yaml:"stats_interval"`   // How often counters are logged.
}

// CoreConfig selects the numeric core.
type CoreConfig struct {
	Kind    string `yaml:"kind"`    // "builtin" or "native".
	Library string `yaml:"library"` // Shared library path for the native core.
	Symbol  string `yaml:"symbol"`  // Exported transform symbol.
}

// RecordingConfig holds settings for WAV capture of the input.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
	BitDepth  int    `yaml:"bit_depth"` // 16, 24 or 32.
}

// TransportConfig holds settings for result delivery.
type TransportConfig struct {
	WebSocketEnabled bool          `yaml:"websocket_enabled"`
	WebSocketAddress string        `yaml:"websocket_address"`
	WebSocketPath    string        `yaml:"websocket_path"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
	NDJSON           bool          `yaml:"ndjson"` // Write results to stdout.
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Audio: AudioConfig{
			InputDevice:     DefaultDeviceID,
			OutputDevice:    DefaultDeviceID,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			LowLatency:      DefaultLowLatency,
			PassThrough:     DefaultPassThrough,
		},
		Pipeline: PipelineConfig{
			QuantumCapacity: DefaultQuantumCapacity,
			ResultQueue:     DefaultResultQueue,
			BudgetRatio:     DefaultBudgetRatio,
			StatsInterval:   DefaultStatsInterval,
		},
		Core: CoreConfig{
			Kind:   DefaultCore,
			Symbol: DefaultCoreSymbol,
		},
		Recording: RecordingConfig{
			OutputDir: DefaultRecordingDir,
			BitDepth:  DefaultRecordingBitDepth,
		},
		Transport: TransportConfig{
			WebSocketEnabled: true,
			WebSocketAddress: DefaultWebSocketAddress,
			WebSocketPath:    DefaultWebSocketPath,
			UDPTargetAddress: DefaultUDPTargetAddress,
			UDPSendInterval:  DefaultUDPSendInterval,
		},
	}
}
