package main

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"chatline/internal/retention"
	"chatline/pkg/api"
	"chatline/pkg/banner"
	"chatline/pkg/channel"
	"chatline/pkg/config"
	"chatline/pkg/logger"
	"chatline/pkg/security"
	"chatline/pkg/shutdown"
	"chatline/pkg/store"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])
	cfg, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Flags win over env and config file when explicitly set.
	addr := addrVal
	if !setFlags["addr"] {
		addr = cfg.Addr()
	}
	dbPath := dbVal
	if !setFlags["db"] {
		if p := cfg.Server.DBPath; p != "" {
			dbPath = p
		}
	}

	logger.InitWithLevel(cfg.Logging.Level)

	if err := store.Open(dbPath); err != nil {
		shutdown.Abort("failed to open pebble", err, dbPath)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	stopRetention, err := retention.Start(ctx, cfg.Retention)
	if err != nil {
		shutdown.Abort("failed to start retention", err, dbPath)
	}
	defer stopRetention()

	var srcs []string
	if len(setFlags) > 0 {
		srcs = append(srcs, "flags")
	}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if _, err := config.Load(cfgPath); err == nil {
		srcs = append(srcs, "config")
	}
	verStr := version
	if commit != "none" {
		verStr += " (" + commit + ")"
	}
	if buildDate != "unknown" {
		verStr += " @ " + buildDate
	}
	banner.Print(cfg, addr, dbPath, strings.Join(srcs, ", "), verStr)

	hub := channel.NewHub()

	secCfg := security.SecConfig{
		AllowedOrigins: append([]string{}, cfg.Security.CORS.AllowedOrigins...),
		RPS:            cfg.Security.RateLimit.RPS,
		Burst:          cfg.Security.RateLimit.Burst,
	}
	handler := security.RequestMiddleware(secCfg)(api.Router(hub))

	srv := &http.Server{Addr: addr, Handler: handler}
	errCh := make(chan error, 1)
	go func() {
		cert := cfg.Server.TLS.CertFile
		key := cfg.Server.TLS.KeyFile
		if cert != "" && key != "" {
			errCh <- srv.ListenAndServeTLS(cert, key)
		} else {
			errCh <- srv.ListenAndServe()
		}
	}()
	logger.Info("server_started", "addr", addr, "db_path", dbPath)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			shutdown.Abort("http server failed", err, dbPath)
		}
	case <-ctx.Done():
	}

	logger.Info("server_stopping")
	shutdownCtx, sdCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer sdCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	}
	hub.CloseAll()
	hub.Wait()
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	logger.Info("server_stopped")
}
