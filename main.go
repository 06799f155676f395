// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"spectral/cmd"
	"spectral/internal/audio"
	"spectral/internal/config"
	"spectral/internal/core"
	"spectral/internal/freqtable"
	"spectral/internal/log"
	"spectral/internal/pipeline"
	"spectral/internal/source"
	"spectral/internal/transport"
	"spectral/internal/transport/udp"
	"spectral/internal/tui"
	"spectral/pkg/build"
)

// main is the entry point for the analyser.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and load configuration
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Load the numeric core and initialise the pipeline
//   - Start the audio stream or the file driver
//   - Relay results to the transports
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop the audio stream before discarding the pipeline
//   - Close transports
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds run without ldflags and keep the default build info.
	buildErr := build.Initialize()

	opts, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		log.Fatalf("%v", err)
	}
	if opts == nil {
		return
	}

	configureLogging(opts.Config)
	if buildErr != nil {
		log.Debugf("build info: %v", buildErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch opts.Command {
	case cmd.CommandTable:
		err = printTable(os.Stdout, opts.Config.Audio.SampleRate)
	case cmd.CommandDevices:
		err = runDevices(opts)
	case cmd.CommandAnalyze:
		err = runAnalyze(ctx, opts)
	default:
		err = runLive(ctx, opts)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		stop()
		log.Fatalf("%v", err)
	}
}

func configureLogging(cfg *config.Config) {
	level, _ := log.ParseLevel(cfg.LogLevel)
	if cfg.Debug {
		level = log.LevelDebug
	}
	log.SetLevel(level)
}

// newLoader returns the core loader selected by cfg.
func newLoader(cfg *config.Config) core.Loader {
	if cfg.Core.Kind == config.CoreNative {
		return core.NativeLoader{Path: cfg.Core.Library, Symbol: cfg.Core.Symbol}
	}
	return core.BuiltinLoader(cfg.Pipeline.QuantumCapacity)
}

func hostOptions(cfg *config.Config) []pipeline.HostOption {
	return []pipeline.HostOption{
		pipeline.WithResultQueue(cfg.Pipeline.ResultQueue),
		pipeline.WithBudgetRatio(cfg.Pipeline.BudgetRatio),
		pipeline.WithStatsInterval(cfg.Pipeline.StatsInterval),
	}
}

// outputs are the transports results fan out to.
type outputs struct {
	multi transport.Multi
	ws    *transport.WebSocketTransport
	udp   *udp.UDPPublisher
}

// openOutputs starts the transports enabled in cfg. stdout is used for
// JSON lines.
func openOutputs(cfg config.TransportConfig, stdout io.Writer) (*outputs, error) {
	out := &outputs{}

	if cfg.WebSocketEnabled {
		ws := transport.NewWebSocketTransport(cfg.WebSocketAddress, cfg.WebSocketPath)
		if err := ws.Start(); err != nil {
			return nil, fmt.Errorf("websocket: %w", err)
		}
		out.ws = ws
		out.multi = append(out.multi, ws)
	}

	if cfg.UDPEnabled {
		sender, err := udp.NewUDPSender(cfg.UDPTargetAddress)
		if err != nil {
			out.Close()
			return nil, fmt.Errorf("udp: %w", err)
		}
		pub, err := udp.NewUDPPublisher(cfg.UDPSendInterval, sender)
		if err != nil {
			sender.Close()
			out.Close()
			return nil, fmt.Errorf("udp: %w", err)
		}
		pub.Start()
		out.udp = pub
		out.multi = append(out.multi, pub)
	}

	if cfg.NDJSON {
		out.multi = append(out.multi, transport.NewNDJSONTransport(stdout))
	}
	return out, nil
}

// greet tells WebSocket clients what the bins mean once the host is
// initialised.
func (o *outputs) greet(h *pipeline.Host) {
	if o.ws != nil {
		o.ws.SetGreeting(transport.NewGreeting(h.ID(), h.Table(), h.SampleRate()))
	}
}

func (o *outputs) Close() error { return o.multi.Close() }

// runLive analyses the input device until ctx is done.
func runLive(ctx context.Context, opts *cmd.Options) error {
	cfg := opts.Config

	// Limit OS threads to optimize for real-time audio processing:
	// - One thread dedicated to the audio callback (time-critical)
	// - One thread for the host, transports and I/O
	runtime.GOMAXPROCS(2)

	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	out, err := openOutputs(cfg.Transport, os.Stdout)
	if err != nil {
		return err
	}
	defer out.Close()

	host, err := pipeline.NewHost(newLoader(cfg), transport.NewConsumer(out.multi), hostOptions(cfg)...)
	if err != nil {
		return err
	}
	defer host.Close()

	if err := host.Initialize(ctx, cfg.Audio.SampleRate, cfg.Pipeline.QuantumCapacity); err != nil {
		return err
	}
	out.greet(host)

	engine, err := audio.NewEngine(cfg, host.Processor())
	if err != nil {
		return err
	}
	// Deferred after host.Close so the stream stops first.
	defer engine.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return host.Run(gctx) })
	g.Go(func() error { return reportLevels(gctx, engine, cfg.Pipeline.StatsInterval) })

	// CRITICAL: Start of real-time audio processing
	// Once the stream starts PortAudio calls the callback, which passes
	// audio through while the core loads and analyses once it is ready.
	if err := engine.Start(); err != nil {
		return err
	}

	if opts.OutputFile != "" {
		if err := os.MkdirAll(filepath.Dir(opts.OutputFile), 0o755); err != nil {
			return err
		}
		if err := engine.StartRecording(opts.OutputFile); err != nil {
			return err
		}
	}

	g.Go(func() error {
		if err := host.WaitLoaded(gctx); err != nil {
			log.Errorf("pipeline unavailable, passing audio through: %v", err)
		}
		return nil
	})

	log.Infof("%s %s running, press Ctrl+C to stop", build.GetBuildFlags().Name, build.GetBuildFlags().Version)

	// Block until termination signal is received
	err = g.Wait()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================
	if opts.OutputFile != "" {
		if stopErr := engine.StopRecording(); stopErr != nil {
			log.Errorf("Error stopping recording: %v", stopErr)
		} else {
			log.Infof("Recording saved to: %s", opts.OutputFile)
		}
	}
	return err
}

// reportLevels logs the input peak and clip count at each interval.
func reportLevels(ctx context.Context, engine *audio.Engine, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var clipped uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m := engine.Meter()
			log.Debugf("input peak %.1f dBFS", audio.DBFS(m.TakePeak()))
			if c := m.Clipped(); c > clipped {
				log.Warnf("input clipped in %d blocks", c-clipped)
				clipped = c
			}
		}
	}
}

// runAnalyze analyses a file. Without --play the file is processed as fast
// as results can be delivered and written to stdout as JSON lines.
func runAnalyze(ctx context.Context, opts *cmd.Options) error {
	cfg := opts.Config

	src, err := source.Open(opts.File)
	if err != nil {
		return err
	}
	stream := source.NewStream(src, opts.BlockSize)
	defer stream.Close()

	tcfg := cfg.Transport
	if !opts.Play {
		// Offline runs finish before anyone could connect.
		tcfg.WebSocketEnabled = false
		tcfg.NDJSON = true
	}
	out, err := openOutputs(tcfg, os.Stdout)
	if err != nil {
		return err
	}
	defer out.Close()

	host, err := pipeline.NewHost(newLoader(cfg), transport.NewConsumer(out.multi), hostOptions(cfg)...)
	if err != nil {
		return err
	}
	defer host.Close()

	sampleRate := stream.SampleRate()
	if err := host.Initialize(ctx, float64(sampleRate), cfg.Pipeline.QuantumCapacity); err != nil {
		return err
	}
	out.greet(host)

	runCtx, stopRun := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error { return host.Run(gctx) })
	defer func() {
		stopRun()
		g.Wait()
	}()

	if err := host.WaitLoaded(ctx); err != nil {
		return err
	}

	start := time.Now()
	var frames uint64
	if opts.Play {
		fp := audio.NewFilePlayer(stream, host.Processor(), opts.BlockSize)
		err = audio.Play(ctx, fp, sampleRate)
		frames = fp.Frames()
	} else {
		frames, err = audio.Drive(ctx, stream, host.Processor(), opts.BlockSize)
	}
	if err != nil {
		return err
	}

	if err := host.Sync(ctx); err != nil {
		return err
	}
	stats := host.Processor().Stats()
	log.Infof("%s: %d frames at %d Hz, %d results in %s (%d dropped)",
		opts.File, frames, sampleRate, host.Delivered(), time.Since(start).Round(time.Millisecond), stats.Dropped)
	return host.Err()
}

// runDevices shows the device browser, or a plain list when stdout is not
// a terminal or --plain is given. A device confirmed in the browser is
// printed as a config snippet.
func runDevices(opts *cmd.Options) error {
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer audio.Terminate()

	if opts.Plain || !term.IsTerminal(int(os.Stdout.Fd())) {
		devices, err := audio.HostDevices()
		if err != nil {
			return err
		}
		audio.ListDevices(os.Stdout, devices)
		return nil
	}

	sel, err := tui.StartDeviceListUI()
	if err != nil || sel == nil {
		return err
	}
	audioCfg := opts.Config.Audio
	sel.Apply(&audioCfg)
	return writeAudioSnippet(os.Stdout, audioCfg)
}

// writeAudioSnippet prints the audio section of a config file.
func writeAudioSnippet(w io.Writer, a config.AudioConfig) error {
	fmt.Fprintln(w, "# Add to spectral.yaml:")
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(struct {
		Audio config.AudioConfig `yaml:"audio"`
	}{a}); err != nil {
		return err
	}
	return enc.Close()
}

// printTable writes the semitone table, marking bins at or above the
// Nyquist frequency for sampleRate.
func printTable(w io.Writer, sampleRate float64) error {
	ft := freqtable.New()
	nyquist := ft.Nyquist(sampleRate)

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("Bin", "Note", "Frequency (Hz)", "")
	for k, f := range ft {
		note := ""
		if k >= nyquist {
			note = "above Nyquist"
		}
		t.Row(fmt.Sprint(k), freqtable.NoteName(k), fmt.Sprintf("%.3f", f), note)
	}

	_, err := fmt.Fprintf(w, "%d bins at %.0f Hz\n%s\n", freqtable.Bins, sampleRate, t.Render())
	return err
}
