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

	"golang.org/x/sync/errgroup"

	"github.com/prl900/gomosaic/internal/config"
	"github.com/prl900/gomosaic/internal/logging"
	"github.com/prl900/gomosaic/internal/server"
	"github.com/prl900/gomosaic/rastreader"
)

func main() {
	cfg := config.Default()

	configFile := flag.String("config", "", "Path to server config file")
	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.Metadata, "metadata", cfg.Metadata, "Path to the JSON layer catalogue")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")
	flag.Parse()

	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
		// Flags win over the file.
		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "addr":
				cfg.Addr = f.Value.String()
			case "log-level":
				cfg.LogLevel = f.Value.String()
			case "log-format":
				cfg.LogFormat = f.Value.String()
			case "metadata":
				cfg.Metadata = f.Value.String()
			}
		})
	}
	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	layers, err := rastreader.ReadLayers(cfg.Metadata)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read layer catalogue: %v\n", err)
		os.Exit(1)
	}
	logger.Info("layer catalogue loaded", "path", cfg.Metadata, "layers", len(layers))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := rastreader.NewGCSStore(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open object store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	srv := server.New(cfg, layers, store, logger)
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
