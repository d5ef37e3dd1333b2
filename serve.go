package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/missdeer/agentbridge/config"
	"github.com/missdeer/agentbridge/gateway"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), configPath)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, path string) error {
	cfgManager, err := config.NewManager(path)
	if err != nil {
		return err
	}
	cfg := cfgManager.Get()
	setupLogging(cfg.Log)

	log.Printf("[CONFIG] Loaded %d upstreams", len(cfg.Upstreams))
	for _, u := range cfg.Upstreams {
		log.Printf("[CONFIG]   - %s (vendor: %s, weight: %d)", u.Name, u.GetVendor(), u.Weight)
	}

	gw := gateway.New(cfg)
	defer gw.Close()
	cfgManager.OnReload(gw.UpdateConfig)

	if err := cfgManager.StartWatching(); err != nil {
		log.Printf("[WARNING] Failed to start config watcher: %v", err)
	} else {
		defer cfgManager.StopWatching()
	}

	srv := &http.Server{
		Addr:              listenAddr(cfg),
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for {
			select {
			case <-hup:
				if err := cfgManager.Reload(); err != nil {
					log.Printf("[CONFIG] Reload on SIGHUP failed: %v", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[ERROR] Shutdown: %v", err)
		}
	}()

	log.Printf("Starting gateway on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// listenAddr joins bind and listen. A listen value that already names a host
// is used as is.
func listenAddr(cfg *config.Config) string {
	if len(cfg.Listen) > 0 && cfg.Listen[0] != ':' {
		return cfg.Listen
	}
	return cfg.Bind + cfg.Listen
}

// setupLogging sends the log to a rotating file when one is configured.
func setupLogging(lc config.LogConfig) {
	if lc.File == "" {
		return
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   lc.File,
		MaxSize:    lc.MaxSize,
		MaxBackups: lc.MaxBackups,
		MaxAge:     lc.MaxAge,
		Compress:   lc.Compress,
	})
}
