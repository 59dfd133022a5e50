// Surprise Core - randomised session controller for a two-channel e-stim box.
//
// This is the main entry point. It loads configuration, connects the device
// backend and the optional MQTT, SQLite and InfluxDB sinks, then runs the
// session controller until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	_ "github.com/nerrad567/surprise-core/migrations"

	"github.com/nerrad567/surprise-core/internal/api"
	"github.com/nerrad567/surprise-core/internal/clicker"
	"github.com/nerrad567/surprise-core/internal/command"
	"github.com/nerrad567/surprise-core/internal/cue"
	"github.com/nerrad567/surprise-core/internal/device"
	"github.com/nerrad567/surprise-core/internal/history"
	"github.com/nerrad567/surprise-core/internal/infrastructure/config"
	"github.com/nerrad567/surprise-core/internal/infrastructure/database"
	"github.com/nerrad567/surprise-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/surprise-core/internal/infrastructure/logging"
	"github.com/nerrad567/surprise-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/surprise-core/internal/metrics"
	"github.com/nerrad567/surprise-core/internal/notify"
	"github.com/nerrad567/surprise-core/internal/session"
	"github.com/nerrad567/surprise-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

const (
	// shutdownOffTimeout bounds the final off/release sent to the device.
	shutdownOffTimeout = 5 * time.Second

	// dweebHTTPTimeout bounds the device listing request.
	dweebHTTPTimeout = 10 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := runToken(os.Args[2:], os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Surprise Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	queue := command.NewQueue()
	queue.SetDepthObserver(m.QueueDepth)

	cues := cue.New(cfg.Cues, cue.Options{OnDrop: m.CueDropped, Logger: log})

	driver, err := newDriver(cfg.Device)
	if err != nil {
		return err
	}
	adapter, err := device.NewAdapter(device.AdapterOptions{
		Driver:  driver,
		Config:  cfg.Device,
		Logger:  log,
		Cues:    cues,
		Metrics: m,
	})
	if err != nil {
		return fmt.Errorf("creating device adapter: %w", err)
	}
	defer func() {
		log.Info("closing device")
		if closeErr := adapter.Close(); closeErr != nil {
			log.Error("error closing device", "error", closeErr)
		}
	}()

	// Session history (optional)
	var (
		db        *database.DB
		repo      *history.SQLiteRepository
		recorders []session.Recorder
		writer    *history.Writer
	)
	if cfg.Database.Enabled {
		db, err = database.Open(database.ConfigFrom(cfg.Database))
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("session history enabled", "path", cfg.Database.Path)

		repo = history.NewSQLiteRepository(db.DB)
		writer = history.NewWriter(repo, history.WriterOptions{Logger: log})
		recorders = append(recorders, writer)
	}

	// Status mirror (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	}

	// Interval telemetry (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, connErr := influxdb.Connect(cfg.InfluxDB)
		if connErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", connErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		recorders = append(recorders, telemetry.NewRecorder(influxClient))
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	}

	hub := api.NewHub(cfg.WebSocket, log)
	notifyOpts := notify.Options{
		Broadcaster:   hub,
		TimerInterval: cfg.WebSocket.TimerInterval,
		Logger:        log,
	}
	if mqttClient != nil {
		notifyOpts.Mirror = mqttClient
	}
	notifier := notify.New(notifyOpts)

	ctrl, err := session.New(session.Options{
		Config:    cfg.Session,
		Queue:     queue,
		Device:    adapter,
		Notifier:  notifier,
		Cues:      cues,
		Recorders: recorders,
		Metrics:   m,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("creating session controller: %w", err)
	}
	notifier.SetSource(ctrl)

	apiDeps := api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Logger:     log,
		Controller: ctrl,
		Security:   cfg.Security,
		Status:     notifier,
		MQTT:       mqttClient,
		DB:         db,
		Gatherer:   reg,
		Hub:        hub,
		Version:    version,
	}
	if repo != nil {
		apiDeps.History = repo
	}
	srv, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	var clk *clicker.Clicker
	if cfg.Clicker.Enabled {
		clk, err = clicker.New(cfg.Clicker, ctrl, clicker.Options{Logger: log})
		if err != nil {
			return fmt.Errorf("creating clicker: %w", err)
		}
	}

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gctx := errgroup.WithContext(runCtx)
	fail := func(err error) error {
		stop()
		g.Wait() //nolint:errcheck // the startup error is the one reported
		return err
	}

	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error { return notifier.Run(gctx) })
	g.Go(func() error { return cues.Run(gctx) })
	if writer != nil {
		g.Go(func() error { return writer.Run(gctx) })
	}
	g.Go(func() error {
		if runErr := adapter.Run(gctx, queue); runErr != nil && !errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("device consumer: %w", runErr)
		}
		return nil
	})
	if clk != nil {
		g.Go(func() error { return clk.Run(gctx) })
	}

	if mqttClient != nil {
		if subErr := mqttClient.SubscribeActions(func(name string) error {
			a, parseErr := session.ParseAction(name)
			if parseErr != nil {
				return parseErr
			}
			ctrl.Dispatch(a)
			return nil
		}); subErr != nil {
			return fail(fmt.Errorf("subscribing to actions: %w", subErr))
		}
	}

	if startErr := srv.Start(gctx); startErr != nil {
		return fail(fmt.Errorf("starting API server: %w", startErr))
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	ctrl.Start()
	log.Info("initialisation complete, waiting for shutdown signal",
		"backend", driver.Name(),
		"api", srv.Addr(),
	)

	<-gctx.Done()
	log.Info("shutdown signal received, cleaning up")

	ctrl.Stop()
	waitErr := g.Wait()
	switchOff(adapter, log)

	if waitErr != nil {
		return waitErr
	}
	log.Info("Surprise Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SURPRISE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("SURPRISE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// newDriver creates the transport for the configured backend.
func newDriver(cfg config.DeviceConfig) (device.Driver, error) {
	switch strings.ToLower(cfg.Backend) {
	case "et232":
		return device.NewET232(cfg.Serial, nil), nil
	case "dweeb":
		return device.NewDweeb(cfg.Dweeb, &http.Client{Timeout: dweebHTTPTimeout}), nil
	default:
		return nil, fmt.Errorf("unknown device backend %q", cfg.Backend)
	}
}

// switchOff leaves the device off and under front-panel control. The
// consumer loop has stopped by now, so commands go straight to the adapter.
func switchOff(adapter *device.Adapter, log *logging.Logger) {
	if !adapter.Connected() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownOffTimeout)
	defer cancel()

	for _, cmd := range []command.Command{command.Off(), command.Simple(command.KindRelease)} {
		if err := adapter.Apply(ctx, cmd); err != nil {
			log.Warn("shutdown command failed", "command", cmd.String(), "error", err)
			return
		}
	}
}
