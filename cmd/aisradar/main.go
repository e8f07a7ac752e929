// Command aisradar tracks vessels from a Signal K delta stream, ranks them
// by collision risk against own-ship and serves the result over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/aisradar/internal/api"
	"github.com/banshee-data/aisradar/internal/config"
	"github.com/banshee-data/aisradar/internal/engine"
	"github.com/banshee-data/aisradar/internal/monitoring"
	"github.com/banshee-data/aisradar/internal/stream"
	"github.com/banshee-data/aisradar/internal/version"
)

var (
	configPath     = flag.String("config", "", "Path to a radar JSON config (defaults are built in)")
	listen         = flag.String("listen", ":8080", "Listen address")
	serverURL      = flag.String("url", "", "Signal K server base URL (overrides server_url)")
	subscribe      = flag.String("subscribe", "", "Stream subscription, all or self (overrides subscribe)")
	serialPort     = flag.String("serial", "", "Read deltas from this serial device instead of the WebSocket stream")
	baudRate       = flag.Int("baud", 0, "Serial baud rate (default 38400)")
	noSeed         = flag.Bool("no-seed", false, "Skip the own-ship REST seed at startup")
	statusInterval = flag.Duration("status-interval", time.Minute, "How often to log a status line (0 disables)")
	debugMode      = flag.Bool("debug", false, "Log skipped deltas, reconnect attempts and polling requests")
	showVersion    = flag.Bool("version", false, "Print version and exit")
)

// pollingPaths are fetched by a renderer every frame; their successful GETs
// are only logged with -debug.
var pollingPaths = []string{"/api/contacts", "/api/ownship", "/api/status", "/api/selection"}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(path, url, sub string) (*config.RadarConfig, error) {
	cfg := &config.RadarConfig{}
	if path != "" {
		var err error
		if cfg, err = config.LoadRadarConfig(path); err != nil {
			return nil, err
		}
	}
	if url != "" {
		cfg.ServerURL = &url
	}
	if sub != "" {
		cfg.Subscribe = &sub
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

// buildDialer picks the transport. Seeding is on for the WebSocket stream,
// and for serial only when a server URL was given explicitly.
func buildDialer(cfg *config.RadarConfig, serialPath string, baud int, urlGiven bool) (stream.Dialer, bool, error) {
	if serialPath != "" {
		d := &stream.SerialDialer{Path: serialPath, Options: stream.PortOptions{BaudRate: baud}}
		if _, err := d.Options.Normalize(); err != nil {
			return nil, false, fmt.Errorf("serial %s: %w", serialPath, err)
		}
		return d, urlGiven, nil
	}
	u, err := stream.StreamURL(cfg.GetServerURL(), cfg.GetSubscribe())
	if err != nil {
		return nil, false, err
	}
	return &stream.WebSocketDialer{URL: u}, true, nil
}

func logStatus(e *engine.Engine) {
	st := e.Status()
	log.Printf("status: stream=%s attempts=%d deltas=%d rejected=%d tracks=%d contacts=%d dangers=%d paused=%t",
		st.Stream.State, st.Stream.Attempts, st.Ingest.Deltas, st.Ingest.Rejected,
		st.Tracks, st.Contacts, st.Dangers, st.Stream.Paused)
}

// Main
func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	monitoring.SetDebug(*debugMode)

	cfg, err := loadConfig(*configPath, *serverURL, *subscribe)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	dialer, seed, err := buildDialer(cfg, *serialPort, *baudRate, *serverURL != "")
	if err != nil {
		log.Fatalf("failed to configure stream: %v", err)
	}

	var opts []engine.Option
	if seed && !*noSeed {
		opts = append(opts, engine.WithSeedClient(&http.Client{Timeout: cfg.GetSeedTimeout()}))
	}
	e := engine.New(cfg, dialer, opts...)
	log.Printf("%s starting", version.Get())

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := e.Start(ctx); err != nil {
		log.Fatalf("failed to start stream: %v", err)
	}

	// evaluation loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.Run(ctx)
		log.Print("evaluation routine terminated")
	}()

	if *statusInterval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(*statusInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					logStatus(e)
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		srv := api.NewServer(e)
		mux := http.NewServeMux()
		// admin debugging routes, reachable from localhost or over Tailscale
		srv.AttachAdminRoutes(mux)
		mux.Handle("/api/", http.StripPrefix("/api", srv.ServeMux()))

		server := &http.Server{
			Addr:              *listen,
			Handler:           api.LoggingMiddleware(mux, pollingPaths...),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("failed to start server: %v", err)
				stop()
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
		log.Printf("HTTP server routine stopped")
	}()

	<-ctx.Done()
	if err := e.Stop(); err != nil {
		log.Printf("stream close error: %v", err)
	}
	wg.Wait()
	logStatus(e)
	log.Printf("Graceful shutdown complete")
}
