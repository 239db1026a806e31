package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbehnke/wwvb-sync/pkg/clock"
	"github.com/dbehnke/wwvb-sync/pkg/config"
	"github.com/dbehnke/wwvb-sync/pkg/database"
	"github.com/dbehnke/wwvb-sync/pkg/display"
	"github.com/dbehnke/wwvb-sync/pkg/edge"
	"github.com/dbehnke/wwvb-sync/pkg/logger"
	"github.com/dbehnke/wwvb-sync/pkg/metrics"
	"github.com/dbehnke/wwvb-sync/pkg/mqtt"
	"github.com/dbehnke/wwvb-sync/pkg/pulse"
	"github.com/dbehnke/wwvb-sync/pkg/rtc"
	"github.com/dbehnke/wwvb-sync/pkg/web"
	"github.com/dbehnke/wwvb-sync/pkg/wwvb"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Decode the receiver's pulse train until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		return run(cfg)
	},
}

var simOpts struct {
	start  string
	frames int
	speed  float64
	jitter int
	dst    string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Decode a synthetic pulse train",
	Long: `simulate replays encoded frames through the full pipeline. With
--speed 0 the frames are replayed as fast as possible and the command exits
once every frame has been decoded.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return err
		}
		cfg.Receiver.Source = string(edge.KindSimulator)
		flags := cmd.Flags()
		if flags.Changed("start") {
			cfg.Receiver.Simulate.Start = simOpts.start
		}
		if flags.Changed("frames") {
			cfg.Receiver.Simulate.Frames = simOpts.frames
		}
		if flags.Changed("speed") {
			cfg.Receiver.Simulate.Speed = simOpts.speed
		}
		if flags.Changed("jitter") {
			cfg.Receiver.Simulate.JitterMS = simOpts.jitter
		}
		return run(cfg)
	},
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simOpts.start, "start", "", "UTC time of the first frame (RFC 3339), defaults to now")
	f.IntVar(&simOpts.frames, "frames", 5, "Number of one-minute frames")
	f.Float64Var(&simOpts.speed, "speed", 0, "Playback speed, 1 is real time, 0 is unpaced")
	f.IntVar(&simOpts.jitter, "jitter", 10, "Random pulse width jitter in ms")
	f.StringVar(&simOpts.dst, "dst", "none", "DST code to transmit: none, active, begins_today, ends_today")
}

func newLogger(cfg config.LoggingConfig) *logger.Logger {
	level := cfg.Level
	if logLevel != "" {
		level = logLevel
	}
	return logger.New(logger.Config{
		Level:      level,
		Format:     cfg.Format,
		File:       cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
	})
}

func newSource(cfg *config.Config) (edge.Source, error) {
	kind, err := edge.ParseKind(cfg.Receiver.Source)
	if err != nil {
		return nil, err
	}
	switch kind {
	case edge.KindGPIO:
		return edge.NewGPIO(edge.GPIOConfig{
			Pin:       cfg.Receiver.GPIO.Pin,
			ActiveLow: cfg.Receiver.GPIO.ActiveLow,
			SysfsRoot: cfg.Receiver.GPIO.SysfsRoot,
		})
	case edge.KindSerial:
		return edge.NewSerial(edge.SerialConfig{
			Address:  cfg.Receiver.Serial.Address,
			BaudRate: cfg.Receiver.Serial.BaudRate,
			Timeout:  cfg.Receiver.Serial.Timeout,
		})
	default:
		sim := cfg.Receiver.Simulate
		start, err := parseStart(sim.Start, time.Now)
		if err != nil {
			return nil, err
		}
		var dst wwvb.DSTStatus
		if err := dst.UnmarshalText([]byte(simOpts.dst)); err != nil {
			return nil, err
		}
		frames, err := simulatedFrames(start, sim.Frames, dst)
		if err != nil {
			return nil, err
		}
		return edge.NewSimulator(edge.SimulatorConfig{
			Frames:   frames,
			Layout:   wwvb.Standard,
			Windows:  cfg.Pulse.Windows(),
			Speed:    sim.Speed,
			JitterMS: sim.JitterMS,
			Seed:     sim.Seed,
		})
	}
}

// newSinks opens every configured RTC sink. The returned closer releases
// them.
func newSinks(cfg config.RTCConfig) ([]rtc.Sink, func(), error) {
	var sinks []rtc.Sink
	closeAll := func() {}
	if cfg.System {
		sinks = append(sinks, rtc.NewSystemClock())
	}
	if cfg.Modbus.Enabled {
		m, err := rtc.NewModbus(rtc.ModbusConfig{
			Endpoint: cfg.Modbus.Endpoint,
			UnitID:   uint8(cfg.Modbus.UnitID),
			Address:  uint16(cfg.Modbus.Register),
			Timeout:  cfg.Modbus.Timeout,
		})
		if err != nil {
			return nil, closeAll, fmt.Errorf("rtc modbus: %w", err)
		}
		sinks = append(sinks, m)
		closeAll = func() { _ = m.Close() }
	}
	return sinks, closeAll, nil
}

func run(cfg *config.Config) error {
	log := newLogger(cfg.Logging)
	defer func() { _ = log.Close() }()

	web.SetVersionInfo(version, commit, buildTime)
	log.Info("Starting wwvb-sync",
		logger.String("version", version),
		logger.String("build_time", buildTime),
		logger.String("source", cfg.Receiver.Source))

	offset, err := cfg.Timezone.Resolve()
	if err != nil {
		return err
	}
	state, err := clock.NewState(offset, clock.WithDateRollover(cfg.Timezone.DateRollover))
	if err != nil {
		return err
	}
	decoder, err := wwvb.NewDecoder(wwvb.Standard)
	if err != nil {
		return err
	}
	synchronizer := clock.NewSynchronizer(state, decoder, log, clock.WithQueueSize(cfg.Pulse.QueueSize))

	classifier, err := pulse.NewClassifier(cfg.Pulse.Windows(), func(f pulse.Frame) {
		// Errors are reported to listeners as EventFailed
		_, _ = synchronizer.HandleFrame(f)
	})
	if err != nil {
		return err
	}

	source, err := newSource(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var wg sync.WaitGroup

	if cfg.Display.Enabled {
		synchronizer.AddListener(display.NewConsole(os.Stdout))
	}

	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector()
		collector.BindClassifier(classifier.Stats)
		collector.BindDropped(synchronizer.Dropped)
		collector.SetOffset(offset)
		synchronizer.AddListener(collector)

		if cfg.Metrics.Prometheus.Enabled {
			metricsServer := metrics.NewPrometheusServer(
				metrics.PrometheusConfig{
					Enabled: cfg.Metrics.Prometheus.Enabled,
					Port:    cfg.Metrics.Prometheus.Port,
					Path:    cfg.Metrics.Prometheus.Path,
				},
				collector,
				log,
			)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := metricsServer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("Prometheus metrics server error", logger.Error(err))
				}
			}()
		}
	}

	var history web.HistorySource
	if cfg.Database.Enabled {
		db, err := database.NewDB(database.Config{Path: cfg.Database.Path}, log)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		repo := database.NewSyncRepository(db.GetDB())
		synchronizer.AddListener(database.NewRecorder(repo, cfg.Database.Retention, log))
		history = repo
	}

	var mqttPublisher *mqtt.Publisher
	if cfg.MQTT.Enabled {
		mqttPublisher = mqtt.New(
			mqtt.Config{
				Enabled:     cfg.MQTT.Enabled,
				Broker:      cfg.MQTT.Broker,
				TopicPrefix: cfg.MQTT.TopicPrefix,
				ClientID:    cfg.MQTT.ClientID,
				Username:    cfg.MQTT.Username,
				Password:    cfg.MQTT.Password,
				QoS:         cfg.MQTT.QoS,
				Retained:    cfg.MQTT.Retained,
			},
			log,
		)
		if err := mqttPublisher.Start(ctx); err != nil {
			return err
		}
		defer mqttPublisher.Stop()
		synchronizer.AddListener(mqttPublisher)
	}

	sinks, closeSinks, err := newSinks(cfg.RTC)
	if err != nil {
		return err
	}
	defer closeSinks()
	if len(sinks) > 0 {
		synchronizer.AddStateListener(rtc.NewWriter(log, sinks...))
	}

	if cfg.Web.Enabled {
		api := web.NewAPI(log, state, synchronizer, history)
		srv := web.NewServer(cfg.Web, api, log)
		synchronizer.AddListener(srv.GetHub())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("Web server error", logger.Error(err))
			}
		}()
	}

	// Listeners run here, off the edge path
	syncCtx, stopSync := context.WithCancel(ctx)
	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		_ = synchronizer.Run(syncCtx)
	}()

	if cfg.Display.Enabled && cfg.Receiver.Source != string(edge.KindSimulator) {
		refresher := display.NewRefresher(state, os.Stdout, cfg.Display.Interval)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = refresher.Run(ctx)
		}()
	}

	srcDone := make(chan error, 1)
	go func() { srcDone <- source.Run(ctx, classifier.HandleEdge) }()

	log.Info("Receiver started", logger.Int("utc_offset", offset))

	var runErr error
	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal",
			logger.String("signal", sig.String()))
	case err := <-srcDone:
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Error("Edge source stopped", logger.Error(err))
			runErr = err
		} else {
			log.Info("Edge source finished")
		}
	}

	// Deliver whatever the last frames produced before tearing down
	stopSync()
	<-syncDone
	synchronizer.Drain(ctx)

	cancel()
	wg.Wait()

	stats := classifier.Stats()
	snap := state.Snapshot()
	log.Info("wwvb-sync stopped",
		logger.Uint64("frames", stats.Frames),
		logger.Uint64("synced", snap.Successes),
		logger.Uint64("rejected", snap.Failures),
		logger.Uint64("dropped_events", synchronizer.Dropped()))
	return runErr
}
