package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

func main() {
	start := time.Now()
	if err := newRootCmd(start).Execute(); err != nil {
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath  string
	port        string
	baud        int
	interval    time.Duration
	capacity    int
	settle      time.Duration
	readTimeout time.Duration
	logLevel    string
	mqttBroker  string
	mqttTopic   string
	headless    bool
	pngPath     string
}

// newRootCmd builds the command. start is the clock origin for every sample.
func newRootCmd(start time.Time) *cobra.Command {
	var opts rootOptions
	cmd := &cobra.Command{
		Use:          "arduino-climate-plotter",
		Short:        "Plot temperature and humidity readings from a serial device",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, cfgPath, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, cfgPath, opts, start)
		},
	}

	defaults := DefaultConfig()
	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "config file (default <user config dir>/"+configDirName+"/"+configFileName+")")
	f.StringVar(&opts.port, "port", "", "serial device, e.g. /dev/ttyACM0 or COM3; connects on startup")
	f.IntVar(&opts.baud, "baud", defaults.BaudRate, "baud rate")
	f.DurationVar(&opts.interval, "interval", time.Duration(defaults.Interval), "refresh interval")
	f.IntVar(&opts.capacity, "capacity", defaults.Capacity, "number of samples kept on the chart")
	f.DurationVar(&opts.settle, "settle", time.Duration(defaults.SettleDelay), "wait after opening the port before flushing input")
	f.DurationVar(&opts.readTimeout, "read-timeout", time.Duration(defaults.ReadTimeout), "serial read timeout per tick")
	f.StringVar(&opts.logLevel, "log-level", defaults.LogLevel, "log level (debug adds every parsed sample)")
	f.StringVar(&opts.mqttBroker, "mqtt-broker", "", "publish samples to this MQTT broker, e.g. tcp://localhost:1883")
	f.StringVar(&opts.mqttTopic, "mqtt-topic", defaults.MQTT.Topic, "MQTT topic for samples")
	f.BoolVar(&opts.headless, "headless", false, "run without a window (requires --port)")
	f.StringVar(&opts.pngPath, "png", "", "in headless mode, write the chart to this PNG file every tick")
	return cmd
}

// resolveConfig loads the config file and applies any flags set on the
// command line. The returned path is where the UI remembers the last port.
func resolveConfig(cmd *cobra.Command, opts rootOptions) (Config, string, error) {
	path := opts.configPath
	if path == "" {
		if p, err := defaultConfigPath(); err == nil {
			path = p
		}
	}

	cfg := DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = LoadConfig(path); err != nil {
			return cfg, "", err
		}
	}
	cfg = applyFlags(cmd, cfg, opts)
	if err := cfg.Validate(); err != nil {
		return cfg, "", fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, path, nil
}

func applyFlags(cmd *cobra.Command, cfg Config, opts rootOptions) Config {
	f := cmd.Flags()
	if f.Changed("port") {
		cfg.Port = opts.port
	}
	if f.Changed("baud") {
		cfg.BaudRate = opts.baud
	}
	if f.Changed("interval") {
		cfg.Interval = Duration(opts.interval)
	}
	if f.Changed("capacity") {
		cfg.Capacity = opts.capacity
	}
	if f.Changed("settle") {
		cfg.SettleDelay = Duration(opts.settle)
	}
	if f.Changed("read-timeout") {
		cfg.ReadTimeout = Duration(opts.readTimeout)
	}
	if f.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if f.Changed("mqtt-broker") {
		cfg.MQTT.Broker = opts.mqttBroker
	}
	if f.Changed("mqtt-topic") {
		cfg.MQTT.Topic = opts.mqttTopic
	}
	return cfg
}

func run(parent context.Context, cfg Config, cfgPath string, opts rootOptions, start time.Time) error {
	logger, err := newLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var publisher Publisher
	if cfg.MQTT.Broker != "" {
		p, err := newMQTTPublisher(cfg.MQTT)
		if err != nil {
			logger.Warn().Err(err).Msg("mqtt disabled")
		} else {
			logger.Info().Str("broker", cfg.MQTT.Broker).Str("topic", cfg.MQTT.Topic).Msg("publishing samples")
			publisher = p
			defer p.Close()
		}
	}

	sm := NewSerialManager(time.Duration(cfg.ReadTimeout), time.Duration(cfg.SettleDelay))

	if opts.headless {
		return runHeadless(ctx, sm, cfg, publisher, logger, opts.pngPath, start)
	}

	a := app.NewWithID("com.github.arduino-climate-plotter")
	w := a.NewWindow("Arduino Climate Plotter")
	w.Resize(fyne.NewSize(900, 620))

	ui := NewAppUI(ctx, w, sm, UIOptions{
		Config:     cfg,
		ConfigPath: cfgPath,
		Origin:     start,
		Publisher:  publisher,
		Logger:     logger,
	})
	if opts.port != "" {
		ui.toggleConnection()
	}

	uiDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			logger.Info().Msg("interrupted, closing window")
			fyne.Do(a.Quit)
		case <-uiDone:
		}
	}()

	w.ShowAndRun()
	close(uiDone)
	ui.Stop()
	return nil
}

func runHeadless(ctx context.Context, sm *SerialManager, cfg Config, publisher Publisher, logger zerolog.Logger, pngPath string, start time.Time) error {
	if cfg.Port == "" {
		return errors.New("--port is required with --headless")
	}

	logger.Info().Str("port", cfg.Port).Int("baud", cfg.BaudRate).Msg("connecting")
	port, err := sm.Open(ctx, cfg.Port, cfg.BaudRate)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	logger.Info().Msg("connected, waiting for data")

	acq := NewAcquisition(port, NewHistory(cfg.Capacity), start, logger)
	mon := NewMonitor(acq, pngFileSink(pngPath, logger), publisher, logger)

	ticker := time.NewTicker(time.Duration(cfg.Interval))
	defer ticker.Stop()
	return mon.Run(ctx, ticker.C)
}

// pngFileSink writes each frame to path, replacing it atomically.
// An empty path discards frames.
func pngFileSink(path string, logger zerolog.Logger) FrameSink {
	return FrameSinkFunc(func(img image.Image, _ Sample, _ bool) {
		if path == "" {
			return
		}
		if err := writePNG(path, img); err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("write chart")
		}
	})
}

func writePNG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".chart-*.png")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
