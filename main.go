package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"golang.org/x/sync/errgroup"
	"pkt.systems/pslog"

	"github.com/adwet007/portfolio/internal/content"
	"github.com/adwet007/portfolio/internal/store"
)

const shutdownTimeout = 5 * time.Second

func main() {
	var (
		configPath string
		enroll     bool
	)
	flag.StringVar(&configPath, "config", "", "optional YAML config file")
	flag.BoolVar(&enroll, "enroll-admin", false, "print a password hash and TOTP secret for ADMIN_USERNAME/ADMIN_PASSWORD and exit")
	flag.Parse()

	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	if enroll {
		cfg, err := loadConfig(configPath)
		if err == nil {
			err = writeEnrollment(os.Stdout, cfg.AdminUsername, cfg.AdminPassword)
		}
		if err != nil {
			logger.Error("admin enrollment failed", "err", err)
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = pslog.ContextWithLogger(ctx, logger)

	if err := run(ctx, configPath); err != nil {
		logger.Error("portfolio exited", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	logger := pslog.Ctx(ctx)

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.ConfigPath != "" {
		logger.Info("config loaded", "path", cfg.ConfigPath)
	}

	site, err := content.Load(cfg.ContentPath)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	srv, err := newServer(cfg, site, st, logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.addr(),
		Handler:           srv.routes(),
		ErrorLog:          pslog.LogLoggerWithLevel(logger, pslog.ErrorLevel),
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// no WriteTimeout: /typing/stream stays open for the whole visit
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return srv.runRetention(gctx)
	})

	err = g.Wait()
	srv.wait()
	logger.Info("shutdown complete")
	return err
}
