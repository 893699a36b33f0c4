package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/probekit/probekit/internal/common/logging"
	"github.com/probekit/probekit/internal/probekit/artifacts"
	"github.com/probekit/probekit/internal/probekit/browser"
	"github.com/probekit/probekit/internal/probekit/config"
	"github.com/probekit/probekit/internal/probekit/dispatch"
	"github.com/probekit/probekit/internal/probekit/registry"
	"github.com/probekit/probekit/internal/probekit/server"
	"github.com/probekit/probekit/internal/probekit/session"
	"github.com/probekit/probekit/internal/probekit/tools"
)

func init() {
	logging.InitLogger()
}

const (
	ModeStdio = "stdio"
	ModeHTTP  = "http"
)

const defaultOutputDir = "probekit-output"

type cmdoptions struct {
	configFile  string
	overlayFile string
	mode        string
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	slog := log.With().Str("state", "init").Logger()

	opt := parseFlags()

	// .env preprocessing; a missing file is not an error.
	if err := godotenv.Load(); err == nil {
		slog.Debug().Msg("loaded .env")
	}
	if opt.mode == "" {
		opt.mode = os.Getenv(config.EnvMode)
	}
	if opt.mode == "" {
		opt.mode = ModeStdio
	}
	if opt.mode != ModeStdio && opt.mode != ModeHTTP {
		return fmt.Errorf("unknown mode %q (expected %s or %s)", opt.mode, ModeStdio, ModeHTTP)
	}

	cfg, err := loadConfig(opt)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	logging.SetLevel(cfg.Logging.Level)

	outputDir := cfg.Output.Dir
	if outputDir == "" {
		outputDir = defaultOutputDir
	}
	store, aerr := artifacts.NewStore(outputDir)
	if aerr != nil {
		return fmt.Errorf("creating artifact store: %w", aerr)
	}

	manager := session.NewManager(cfg)
	manager.Start(ctx)
	defer manager.Shutdown()

	backend := browser.NewPlaywrightBackend(browser.Config{Headless: true})
	defer backend.Terminate()

	reg := registry.New()
	catalog := tools.NewCatalog(cfg, manager, backend, store)
	if aerr := catalog.Register(reg); aerr != nil {
		return fmt.Errorf("registering tools: %w", aerr)
	}

	dispatcher := dispatch.New(cfg, reg)

	switch opt.mode {
	case ModeStdio:
		return runStdio(ctx, dispatcher)
	default:
		return runHTTP(ctx, cfg, dispatcher)
	}
}

// runStdio serves line-delimited JSON-RPC on stdin/stdout until the stream
// drains or a shutdown signal arrives.
func runStdio(ctx context.Context, d *dispatch.Dispatcher) error {
	slog := log.With().Str("mode", ModeStdio).Logger()
	slog.Info().Msg("serving on stdio")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.ServeStdio(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		return fmt.Errorf("stdio transport: %w", err)
	}
	slog.Info().Msg("stdio stream closed")
	return nil
}

// runHTTP serves the JSON-RPC endpoint over HTTP until a shutdown signal or
// server error.
func runHTTP(ctx context.Context, cfg *config.EffectiveConfig, d *dispatch.Dispatcher) error {
	slog := log.With().Str("mode", ModeHTTP).Logger()

	s := server.New(cfg, d)
	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info().Str("port", cfg.Server.Port).Msg("server started")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info().Str("signal", sig.String()).Msg("shutdown signal received")

		// Give outstanding requests 5 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error().Err(err).Msg("could not stop server gracefully")
			if err := srv.Close(); err != nil {
				slog.Error().Err(err).Msg("could not stop server")
			}
		}
	}

	slog.Info().Msg("server stopped")
	return nil
}

// loadConfig resolves the effective configuration from the base document,
// the optional overlay, and environment overrides. With no config file,
// defaults apply.
func loadConfig(opt cmdoptions) (*config.EffectiveConfig, error) {
	base := map[string]any{}
	if opt.configFile != "" {
		doc, aerr := config.LoadDocument(opt.configFile)
		if aerr != nil {
			return nil, aerr
		}
		base = doc
	}
	overlay := map[string]any{}
	if opt.overlayFile != "" {
		doc, aerr := config.LoadDocument(opt.overlayFile)
		if aerr != nil {
			return nil, aerr
		}
		overlay = doc
	}
	cfg, aerr := config.Resolve(base, overlay)
	if aerr != nil {
		return nil, aerr
	}
	return cfg, nil
}

func parseFlags() cmdoptions {
	var opt cmdoptions
	flag.StringVar(&opt.configFile, "config", "", "Path to the base config file")
	flag.StringVar(&opt.overlayFile, "overlay", "", "Path to the environment overlay config file")
	flag.StringVar(&opt.mode, "mode", "", "Transport mode: stdio or http (default stdio)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
