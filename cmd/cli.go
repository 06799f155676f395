// SPDX-License-Identifier: MIT

// Package cmd parses the command line into the options main runs with.
package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"spectral/internal/config"
	"spectral/pkg/build"
)

// Commands main can run.
const (
	CommandLive    = "live"
	CommandDevices = "devices"
	CommandAnalyze = "analyze"
	CommandTable   = "table"
)

// DefaultAnalyzeBlock is the block size used when analysing files.
const DefaultAnalyzeBlock = 1024

// Options is the parsed command line.
type Options struct {
	Config  *config.Config
	Command string

	// devices
	Plain bool

	// analyze
	File      string
	Play      bool
	BlockSize int

	// live
	OutputFile string
}

// flagValues holds raw flag values until the config file is loaded.
type flagValues struct {
	configPath string

	inputDevice  int
	outputDevice int
	sampleRate   float64
	frames       int
	lowLatency   bool
	passThrough  bool

	coreKind    string
	coreLibrary string
	coreSymbol  string

	websocket bool
	wsAddress string
	udp       bool
	udpTarget string
	ndjson    bool

	record  bool
	output  string
	verbose bool
}

// ParseArgs parses args (without the program name). Configuration is
// layered as defaults, config file, SPECTRAL_* environment and finally
// the flags the user actually set.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	options := &Options{Command: CommandLive, BlockSize: DefaultAnalyzeBlock}
	var fv flagValues

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         build.Description,
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		Args: cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig(fv.configPath)
			if err != nil {
				return err
			}
			applyFlags(cmd, &fv, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}
			options.Config = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandLive
			if options.Config.Recording.Enabled {
				options.OutputFile = fv.output
				if options.OutputFile == "" {
					options.OutputFile = filepath.Join(options.Config.Recording.OutputDir,
						"recording-"+time.Now().UTC().Format("02-01-2006-150405")+".wav")
				}
			}
			return nil
		},
	}
	rootCmd.SetVersionTemplate(buildInfo.Summary() + "\n")

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// Devices command
	devicesCmd := &cobra.Command{
		Use:   "devices",
		Short: "Browse available audio devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandDevices
			return nil
		},
	}
	devicesCmd.Flags().BoolVar(&options.Plain, "plain", false,
		"Print the device list instead of opening the browser")
	rootCmd.AddCommand(devicesCmd)

	// Analyze command
	analyzeCmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Analyse a WAV, MP3 or Ogg Vorbis file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if options.BlockSize <= 0 || options.BlockSize > options.Config.Pipeline.QuantumCapacity {
				return fmt.Errorf("%w: block size %d must be between 1 and the quantum capacity %d",
					config.ErrInvalid, options.BlockSize, options.Config.Pipeline.QuantumCapacity)
			}
			options.Command = CommandAnalyze
			options.File = args[0]
			return nil
		},
	}
	analyzeCmd.Flags().BoolVarP(&options.Play, "play", "p", false,
		"Play the file while analysing it in real time")
	analyzeCmd.Flags().IntVar(&options.BlockSize, "block", DefaultAnalyzeBlock,
		"Frames per analysed block")
	rootCmd.AddCommand(analyzeCmd)

	// Table command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "table",
		Short: "Print the semitone frequency table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			options.Command = CommandTable
			return nil
		},
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&fv.configPath, "config", "C", "",
		"Path to a YAML config file (default: search spectral.yaml, config.yaml, ~/.config/spectral/config.yaml)")

	// Audio Device Configuration
	flags.IntVarP(&fv.inputDevice, "device", "d", config.DefaultDeviceID,
		"Input device ID. Use the 'devices' command to see available devices.")
	flags.IntVar(&fv.outputDevice, "output-device", config.DefaultDeviceID,
		"Output device ID for pass-through")
	flags.Float64VarP(&fv.sampleRate, "sample-rate", "s", config.DefaultSampleRate,
		"Sample rate, measured in Hertz (Hz)")
	flags.IntVarP(&fv.frames, "frames-per-buffer", "b", config.DefaultFramesPerBuffer,
		"The number of frames per buffer (affects latency)")
	flags.BoolVarP(&fv.lowLatency, "low-latency", "l", config.DefaultLowLatency,
		"Use low latency mode for real-time processing")
	flags.BoolVar(&fv.passThrough, "pass-through", config.DefaultPassThrough,
		"Copy the input to the output device")

	// Numeric Core
	flags.StringVar(&fv.coreKind, "core", config.DefaultCore,
		"Numeric core: builtin or native")
	flags.StringVar(&fv.coreLibrary, "core-library", "",
		"Shared library for the native core")
	flags.StringVar(&fv.coreSymbol, "core-symbol", config.DefaultCoreSymbol,
		"Exported transform symbol of the native core")

	// Transports
	flags.BoolVar(&fv.websocket, "websocket", true,
		"Serve results to WebSocket clients")
	flags.StringVar(&fv.wsAddress, "ws-address", config.DefaultWebSocketAddress,
		"WebSocket listen address")
	flags.BoolVar(&fv.udp, "udp", false,
		"Publish results as UDP packets")
	flags.StringVar(&fv.udpTarget, "udp-target", config.DefaultUDPTargetAddress,
		"UDP target address")
	flags.BoolVar(&fv.ndjson, "ndjson", false,
		"Write results to stdout as JSON lines")

	// Recording Configuration
	flags.BoolVarP(&fv.record, "record", "r", false,
		"Record audio from the input device")
	flags.StringVarP(&fv.output, "output", "o", "",
		"Output file name. Default is <recording dir>/recording-DD-MM-YYYY-HHMMSS.wav")

	// Debug Configuration
	flags.BoolVarP(&fv.verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	if options.Config == nil {
		// --help or --version: nothing to run.
		return nil, nil
	}
	return options, nil
}

// applyFlags overrides cfg with the flags the user set explicitly.
func applyFlags(cmd *cobra.Command, fv *flagValues, cfg *config.Config) {
	changed := cmd.Flags().Changed

	if changed("device") {
		cfg.Audio.InputDevice = fv.inputDevice
	}
	if changed("output-device") {
		cfg.Audio.OutputDevice = fv.outputDevice
	}
	if changed("sample-rate") {
		cfg.Audio.SampleRate = fv.sampleRate
	}
	if changed("frames-per-buffer") {
		cfg.Audio.FramesPerBuffer = fv.frames
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = fv.lowLatency
	}
	if changed("pass-through") {
		cfg.Audio.PassThrough = fv.passThrough
	}
	if changed("core") {
		cfg.Core.Kind = fv.coreKind
	}
	if changed("core-library") {
		cfg.Core.Library = fv.coreLibrary
		if !changed("core") {
			cfg.Core.Kind = config.CoreNative
		}
	}
	if changed("core-symbol") {
		cfg.Core.Symbol = fv.coreSymbol
	}
	if changed("websocket") {
		cfg.Transport.WebSocketEnabled = fv.websocket
	}
	if changed("ws-address") {
		cfg.Transport.WebSocketAddress = fv.wsAddress
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = fv.udp
	}
	if changed("udp-target") {
		cfg.Transport.UDPTargetAddress = fv.udpTarget
	}
	if changed("ndjson") {
		cfg.Transport.NDJSON = fv.ndjson
	}
	if changed("record") {
		cfg.Recording.Enabled = fv.record
	}
	if fv.verbose {
		cfg.Debug = true
		cfg.LogLevel = "debug"
	}
}
