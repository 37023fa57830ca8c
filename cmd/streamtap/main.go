// Streamtap - TikTok LIVE webcast client.
//
// Streamtap connects to a live room by unique id, decodes the webcast
// message stream delivered over the websocket push channel or HTTP
// polling, and republishes each message as a typed signal. Signals can
// be recorded to SQLite, forwarded to MQTT and Redis, exposed as
// Prometheus metrics and inspected through a REST API or console.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/streamtap-project/streamtap/internal/api"
	"github.com/streamtap-project/streamtap/internal/cli"
	"github.com/streamtap-project/streamtap/internal/config"
	"github.com/streamtap-project/streamtap/internal/connector"
	"github.com/streamtap-project/streamtap/internal/cookie"
	"github.com/streamtap-project/streamtap/internal/db"
	"github.com/streamtap-project/streamtap/internal/events"
	"github.com/streamtap-project/streamtap/internal/live"
	"github.com/streamtap-project/streamtap/internal/metrics"
	"github.com/streamtap-project/streamtap/internal/scheduler"
	"github.com/streamtap-project/streamtap/internal/signer"
	"github.com/streamtap-project/streamtap/internal/telemetry"
	"github.com/streamtap-project/streamtap/internal/util"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

const banner = `
  ___ _                      _
 / __| |_ _ _ ___ __ _ _ __ | |_ __ _ _ __
 \__ \  _| '_/ -_) _' | '  \|  _/ _' | '_ \
 |___/\__|_| \___\__,_|_|_|_|\__\__,_| .__/
                                     |_|  v%s
`

type options struct {
	configPath  string
	roomID      string
	sessionID   string
	ttTargetIDC string
	noCLI       bool
	noAPI       bool
}

func main() {
	var opts options

	rootCmd := &cobra.Command{
		Use:   "streamtap [unique_id]",
		Short: "Connect to a TikTok LIVE room and stream its events",
		Long: `Streamtap connects to a TikTok LIVE room and republishes the
webcast message stream as typed signals.

The room is given by the streamer's unique id (with or without the
leading @) or directly with --room-id.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			uniqueID := ""
			if len(args) == 1 {
				uniqueID = args[0]
			}
			if uniqueID == "" && opts.roomID == "" {
				return errors.New("a unique id or --room-id is required")
			}
			return run(uniqueID, opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&opts.configPath, "config", "c", filepath.Join(config.DefaultConfigDir, config.DefaultConfigFile), "configuration file (.json or .yaml)")
	flags.StringVar(&opts.roomID, "room-id", "", "connect to this room id, skipping resolution")
	flags.StringVar(&opts.sessionID, "session-id", "", "sessionid cookie of a logged-in account")
	flags.StringVar(&opts.ttTargetIDC, "tt-target-idc", "", "tt-target-idc cookie matching the session")
	flags.BoolVar(&opts.noCLI, "no-cli", false, "disable the interactive console")
	flags.BoolVar(&opts.noAPI, "no-api", false, "disable the REST API even if configured")

	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("streamtap %s (%s) %s/%s\n", version, commit, runtime.GOOS, runtime.GOARCH)
		},
	}
}

func run(uniqueID string, opts options) error {
	fmt.Printf(banner, version)
	fmt.Println()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.sessionID != "" {
		cfg.SetSession(opts.sessionID, opts.ttTargetIDC)
	}

	logFile, err := util.InitLogger(util.LogConfig{
		Level:      cfg.Logging.Level,
		Directory:  cfg.Logging.Directory,
		MaxBackups: cfg.Logging.MaxBackups,
		Console:    true,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	log.Info().
		Str("version", version).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Msg("starting streamtap")

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		return errors.New("configuration validation failed, please fix the errors above")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Core components
	eventBus := events.NewEventBus()
	defer eventBus.Stop()

	clientCfg := cfg.GetClient()
	jar := cookie.NewJar()
	signClient := signer.NewClient(cfg.GetSigner(), jar)
	webcast := connector.NewWebcastClient(clientCfg, jar, signClient)

	conn, err := live.NewConnection(uniqueID, clientCfg, webcast, eventBus, jar,
		live.WithConnectGate(signClient))
	if err != nil {
		return err
	}

	// Optional sinks, typed as interfaces so a disabled sink stays nil.
	var (
		store  api.EventStore
		recent cli.RecentStore
		pruner scheduler.Pruner
	)
	if cfg.Storage.Enabled {
		database, err := db.NewDatabase(cfg.Storage.Path)
		if err != nil {
			return err
		}
		defer database.Close()

		recorder, err := db.NewRecorder(database)
		if err != nil {
			return err
		}
		recorder.Attach(eventBus)
		store, recent, pruner = recorder, recorder, recorder
	}

	collector := metrics.NewCollector()
	collector.Attach(eventBus)

	var wg sync.WaitGroup

	mqttForwarder, err := telemetry.NewMQTTForwarder(cfg.MQTT)
	switch {
	case errors.Is(err, telemetry.ErrDisabled):
	case err != nil:
		log.Warn().Err(err).Msg("failed to initialize MQTT, forwarding disabled")
	default:
		mqttForwarder.Attach(eventBus)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mqttForwarder.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT forwarding failed")
			}
		}()
	}

	redisForwarder, err := telemetry.NewRedisForwarder(cfg.Redis)
	switch {
	case errors.Is(err, telemetry.ErrDisabled):
	case err != nil:
		log.Warn().Err(err).Msg("failed to initialize Redis, forwarding disabled")
	default:
		defer redisForwarder.Close()
		if err := redisForwarder.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("channel", redisForwarder.Channel()).Msg("redis not reachable, publishing anyway")
		}
		redisForwarder.Attach(eventBus)
	}

	if cfg.API.Enabled && !opts.noAPI {
		apiServer := api.NewServer(cfg.API, conn, cfg.Logging.Level == "debug")
		apiServer.SetDependencies(store, collector.Handler(), filepath.Dir(cfg.Storage.Path))
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Str("addr", apiServer.Addr()).Msg("starting REST API server")
			if err := apiServer.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("API server failed (non-fatal)")
			}
		}()
	}

	sched := scheduler.NewScheduler(cfg.Scheduler, cfg.Storage, pruner, conn)
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Start(ctx)
	}()

	// A console quit tears the process down. After a stream end the process
	// stays up so the API or console can reconnect.
	shutdownCh := make(chan string, 1)
	eventBus.Subscribe(events.EventShutdown, "main", func(_ context.Context, e events.Event) error {
		select {
		case shutdownCh <- e.Source:
		default:
		}
		return nil
	})

	if !opts.noCLI {
		console := cli.NewCLI(conn, recent, eventBus)
		wg.Add(1)
		go func() {
			defer wg.Done()
			console.Start(ctx)
		}()
	}

	// Connect
	state, err := conn.Connect(ctx, opts.roomID)
	if err != nil {
		log.Error().Err(err).Msg("connection failed")
	} else {
		log.Info().
			Str("room_id", state.RoomID).
			Str("transport", state.Transport).
			Bool("websocket", state.UpgradedToWebsocket).
			Msg("connected")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case src := <-shutdownCh:
		log.Info().Str("source", src).Msg("shutdown requested")
	}

	log.Info().Msg("initiating graceful shutdown...")
	conn.Disconnect()
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(15 * time.Second):
		log.Warn().Msg("shutdown timed out, forcing exit")
	}
	return nil
}
