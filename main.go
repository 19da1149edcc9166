package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/bitsmakerde/planemirror/internal/config"
	"github.com/bitsmakerde/planemirror/internal/db"
	"github.com/bitsmakerde/planemirror/internal/mirror"
	"github.com/bitsmakerde/planemirror/internal/monitor"
	"github.com/bitsmakerde/planemirror/internal/plane"
	"github.com/bitsmakerde/planemirror/internal/provider"
	"github.com/bitsmakerde/planemirror/internal/scene"
	"github.com/bitsmakerde/planemirror/internal/storage"
	"github.com/bitsmakerde/planemirror/internal/version"
)

var (
	listen      = flag.String("listen", "", "HTTP listen address (default from config)")
	udpPort     = flag.Int("udp-port", 0, "UDP port to listen for plane events (default from config)")
	udpAddress  = flag.String("udp-addr", "", "UDP bind address (default: listen on all interfaces)")
	rcvBuf      = flag.Int("rcvbuf", 0, "UDP receive buffer size in bytes (default from config)")
	dbFile      = flag.String("db", "", "Path to the SQLite database file (default from config)")
	configFile  = flag.String("config", "", "Path to a mirror config JSON file (default: built-in defaults)")
	themeFile   = flag.String("theme", "", "Path to a YAML color theme (default from config)")
	recordFile  = flag.String("record", "", "Record incoming events to a session log (.arlog)")
	replayFile  = flag.String("replay", "", "Replay a session log instead of listening on UDP")
	replaySpeed = flag.Float64("replay-speed", 0, "Replay pacing multiplier, e.g. 2 for double speed (default from config)")
	logInterval = flag.Duration("log-interval", 0, "Traffic statistics logging interval (default from config)")
)

func loadConfig() *config.MirrorConfig {
	if *configFile == "" {
		if cfg, err := config.LoadMirrorConfig(config.DefaultConfigPath); err == nil {
			return cfg
		}
		return config.EmptyMirrorConfig()
	}
	cfg, err := config.LoadMirrorConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func main() {
	flag.Parse()

	log.Printf("planemirror %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	cfg := loadConfig()

	// Flags override the config file.
	httpAddr := cfg.GetHTTPAddress()
	if *listen != "" {
		httpAddr = *listen
	}
	port := cfg.GetUDPPort()
	if *udpPort != 0 {
		port = *udpPort
	}
	bindAddr := cfg.GetUDPAddress()
	if *udpAddress != "" {
		bindAddr = *udpAddress
	}
	buf := cfg.GetUDPRcvBuf()
	if *rcvBuf != 0 {
		buf = *rcvBuf
	}
	dbPath := cfg.GetDBPath()
	if *dbFile != "" {
		dbPath = *dbFile
	}
	themePath := cfg.GetThemePath()
	if *themeFile != "" {
		themePath = *themeFile
	}
	speed := cfg.GetReplaySpeed()
	if *replaySpeed > 0 {
		speed = *replaySpeed
	}
	statsInterval := cfg.GetStatsInterval()
	if *logInterval > 0 {
		statsInterval = *logInterval
	}

	// Database and schema.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("Failed to create database directory: %v", err)
		}
	}
	database, err := db.NewDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.MigrateUp(cfg.GetMigrationsDir()); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Scene theme, optionally hot-reloaded from disk.
	theme := scene.DefaultTheme()
	if themePath != "" {
		theme, err = scene.LoadTheme(themePath)
		if err != nil {
			log.Fatalf("Failed to load theme: %v", err)
		}
		if cfg.GetThemeWatch() {
			go func() {
				if err := theme.Watch(ctx); err != nil && err != context.Canceled {
					log.Printf("Theme watcher error: %v", err)
				}
			}()
		}
	}

	world := scene.NewWorld(theme, scene.WorldConfig{
		MinFaceArea:      float32(cfg.GetMinFaceArea()),
		MinFootprintArea: cfg.GetMinFootprintArea(),
	})
	manager := plane.NewManager(world)

	var sinks []mirror.Sink
	store := storage.NewPlaneStore(database.DB)
	if cfg.GetPersistEvents() {
		sinks = append(sinks, mirror.NewStoreSink(store))
	}
	m := mirror.New(manager, sinks...)

	stats := provider.NewStats()

	var recorder *provider.Recorder
	if *recordFile != "" {
		recorder, err = provider.NewRecorder(*recordFile, fmt.Sprintf("udp:%d", port))
		if err != nil {
			log.Fatalf("Failed to open session recorder: %v", err)
		}
		defer recorder.Close()
		log.Printf("Recording session to %s", *recordFile)
	}

	var wg sync.WaitGroup

	// Event source: live UDP bridge or session replay.
	if *replayFile != "" {
		replayer, err := provider.OpenReplay(*replayFile)
		if err != nil {
			log.Fatalf("Failed to open session log: %v", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer replayer.Close()

			header := replayer.Header()
			log.Printf("Replaying session from %s (source %q, recorded %s)",
				*replayFile, header.Source, time.Unix(0, header.CreatedNs).Format(time.RFC3339))

			n, err := replayer.Replay(ctx, speed, m.HandleEvent)
			if err != nil && err != context.Canceled {
				log.Printf("Replay error after %d events: %v", n, err)
				return
			}
			log.Printf("Replay finished, %d events delivered", n)
		}()
	} else {
		listener, err := provider.NewUDPListener(provider.UDPListenerConfig{
			Address:     bindAddr,
			Port:        port,
			RcvBuf:      buf,
			LogInterval: statsInterval,
			Stats:       stats,
			Handler:     m.HandleEvent,
			Recorder:    recorder,
		})
		if err != nil {
			log.Fatalf("Failed to create UDP listener: %v", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("UDP listener error: %v", err)
			}
			log.Print("UDP listener routine terminated")
		}()
	}

	// Monitor HTTP server with admin debug routes attached.
	webServer := monitor.NewWebServer(monitor.WebServerConfig{
		Address: httpAddr,
		Manager: manager,
		World:   world,
		Store:   store,
		Stats:   stats,
		UDPPort: port,
	})
	database.AttachAdminRoutes(webServer.Mux())

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := webServer.Start(ctx); err != nil {
			log.Printf("Web server error: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
