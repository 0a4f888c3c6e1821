package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "modernc.org/sqlite"

	"github.com/faceless2/anemometer"
	"github.com/faceless2/anemometer/internal/api"
	"github.com/faceless2/anemometer/internal/config"
	"github.com/faceless2/anemometer/internal/history"
	"github.com/faceless2/anemometer/internal/mqttwind"
	"github.com/faceless2/anemometer/internal/resample"
	"github.com/faceless2/anemometer/internal/rose"
	"github.com/faceless2/anemometer/internal/serialmux"
	"github.com/faceless2/anemometer/internal/timeutil"
	"github.com/faceless2/anemometer/internal/udpwind"
	"github.com/faceless2/anemometer/internal/units"
	"github.com/faceless2/anemometer/internal/version"
	"github.com/faceless2/anemometer/internal/windlog"
)

var (
	devMode       = flag.Bool("dev", false, "Run in dev mode with a simulated instrument")
	listen        = flag.String("listen", ":8080", "Listen address")
	device        = flag.String("port", "", "Serial device of the wind instrument (overrides config)")
	disableSerial = flag.Bool("disable-serial", false, "Run without a serial instrument")
	dbFile        = flag.String("db", "wind_data.db", "Reading log database path (empty disables persistence)")
	configFile    = flag.String("config", "", "JSON configuration file")
	unitsFlag     = flag.String("units", "", "Display units: "+units.GetValidUnitsString()+" (overrides config)")
	mqttBroker    = flag.String("mqtt-broker", "", "MQTT broker URL for wind readings (overrides config)")
	mqttTopic     = flag.String("mqtt-topic", "", "MQTT subscription topic (overrides config)")
	udpListen     = flag.String("udp-listen", "", "UDP listen address for NMEA sentences, e.g. :10110")
	historyURL    = flag.String("history-url", "", "Peer /api/history URL to backfill the rose from at startup")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

// runMigrate handles the 'migrate' subcommand, which manages the
// reading log schema and exits without starting the daemon.
func runMigrate(args []string) {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", "wind_data.db", "Reading log database path")
	migrationsDir := fs.String("migrations", "internal/windlog/migrations", "Migrations directory")
	fs.Parse(args)
	windlog.RunMigrateCommand(fs.Args(), *dbPath, *migrationsDir)
}

func main() {
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrate(os.Args[2:])
		return
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("anemometer %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if *listen == "" {
		log.Fatal("Listen address is required")
	}

	cfg := config.Empty()
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	displayUnits := cfg.GetUnits()
	if *unitsFlag != "" {
		if !units.IsValid(*unitsFlag) {
			log.Fatalf("invalid units %q: valid values are %s", *unitsFlag, units.GetValidUnitsString())
		}
		displayUnits = *unitsFlag
	}

	grid, err := cfg.Grid()
	if err != nil {
		log.Fatalf("invalid rose grid: %v", err)
	}
	colors := rose.DiscoverColors(cfg, grid.Bands)
	windRose := rose.New(grid, cfg.RoseConfig())

	var wl *windlog.DB
	if *dbFile != "" {
		wl, err = windlog.NewDB(*dbFile)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer wl.Close()
	}

	serialDevice := cfg.GetSerialDevice()
	if *device != "" {
		serialDevice = *device
	}

	var windSerial serialmux.SerialMuxInterface
	switch {
	case *devMode:
		windSerial = serialmux.NewMockSerialMux()
	case *disableSerial || serialDevice == "":
		windSerial = serialmux.NewDisabledSerialMux()
	default:
		opts := serialmux.PortOptions{BaudRate: cfg.GetSerialBaud()}
		windSerial, err = serialmux.NewRealSerialMux(serialDevice, opts)
		if err != nil {
			log.Fatalf("failed to open wind instrument: %v", err)
		}
	}
	defer windSerial.Close()

	handler := &serialmux.WindHandler{
		Rose:  windRose,
		Log:   wl,
		Units: displayUnits,
		Clock: timeutil.RealClock{},
	}

	// Create a wait group for the HTTP server, serial monitor, and event handler routines
	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run the monitor routine to manage IO on the serial port
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := windSerial.Monitor(ctx); err != nil && err != context.Canceled {
			log.Printf("failed to monitor serial port: %v", err)
		}
		log.Print("monitor routine terminated")
	}()

	// subscribe to the serial port sentences
	// and pass them to the wind handler
	wg.Add(1)
	go func() {
		defer wg.Done()
		id, c := windSerial.Subscribe()
		defer windSerial.Unsubscribe(id)
		for {
			select {
			case payload := <-c:
				if err := handler.HandleEvent(payload); err != nil {
					log.Printf("error handling event: %v", err)
				}
			case <-ctx.Done():
				log.Printf("subscribe routine terminated")
				return
			}
		}
	}()

	server := api.NewServer(windSerial, windRose, wl, grid, colors, displayUnits, cfg.GetHistoryStep())

	// interpolate the window into smooth display frames for /api/frame
	sampler := resample.New(windRose, grid, colors, server.StoreFrame, resample.WithLag(cfg.GetLag()))
	wg.Add(1)
	go func() {
		defer wg.Done()
		sampler.Run(ctx, cfg.GetFrameInterval())
		log.Print("resampler routine terminated")
	}()

	broker := cfg.GetMQTTBroker()
	if *mqttBroker != "" {
		broker = *mqttBroker
	}
	if broker != "" {
		topic := cfg.GetMQTTTopic()
		if *mqttTopic != "" {
			topic = *mqttTopic
		}
		mqttClient := mqttwind.New(broker, topic, handler)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mqttClient.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("mqtt routine failed: %v", err)
			}
			log.Print("mqtt routine terminated")
		}()
	}

	if *historyURL != "" {
		// Warm the rose from a peer's reading log before live readings
		// accumulate. Failure is logged, not fatal; the window just
		// starts empty.
		peer := history.NewClient(*historyURL, nil)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := peer.Backfill(ctx, windRose, 0); err != nil {
				log.Printf("history backfill from %s failed: %v", *historyURL, err)
				return
			}
			log.Printf("history backfill complete: %d readings in window", windRose.Len())
		}()
	}

	if *udpListen != "" {
		udp := &udpwind.Listener{Addr: *udpListen, Handler: handler}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := udp.Run(ctx); err != nil && err != context.Canceled {
				log.Printf("udp routine failed: %v", err)
			}
			log.Print("udp routine terminated")
		}()
	}

	// HTTP server goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := server.ServeMux()
		windSerial.AttachAdminRoutes(mux)
		if wl != nil {
			wl.AttachAdminRoutes(mux)
		}

		// read static files from the embedded filesystem in production or from
		// the local ./static in dev for easier iteration without restarting the
		// server
		var staticHandler http.Handler
		if *devMode {
			staticHandler = http.FileServer(http.Dir("./static"))
		} else {
			staticHandler = http.FileServer(http.FS(anemometer.StaticFiles))
		}
		mux.Handle("/static/", http.StripPrefix("/static", staticHandler))
		mux.Handle("/", http.RedirectHandler("/static/index.html", http.StatusFound))

		httpServer := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		// Start server in a goroutine so it doesn't block
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		// Wait for context cancellation to shut down server
		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
			// Force close the server if graceful shutdown fails
			if err := httpServer.Close(); err != nil {
				log.Printf("HTTP server force close error: %v", err)
			}
		}

		log.Printf("HTTP server routine stopped")
	}()

	// Wait for all goroutines to finish
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
