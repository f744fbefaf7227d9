package main

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-autoreply-backend/internal/config"
	"github.com/tbourn/go-autoreply-backend/internal/observability"
	"github.com/tbourn/go-autoreply-backend/internal/store"
)

const shutdownGrace = 15 * time.Second

// openStore opens the configured database. The returned close func is
// always safe to call.
func openStore(cfg config.Config, tracing bool) (*gorm.DB, func(), error) {
	db, err := store.Open(store.Options{
		Driver:  cfg.Database.Driver,
		DSN:     cfg.Database.DSN,
		Tracing: tracing,
		Silent:  cfg.GinMode == gin.ReleaseMode,
	})
	if err != nil {
		return nil, func() {}, err
	}
	return db, func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}, nil
}

// runServe blocks until ctx is cancelled, then shuts the server down and
// drains background work.
func runServe(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, closeDB, err := openStore(cfg, cfg.OTEL.Enabled)
	defer closeDB()
	if err != nil {
		return err
	}

	a := newApp(cfg, db)
	if err := a.migrate(ctx); err != nil {
		return err
	}
	if err := a.sweeper.Start(cfg.Database.TTLSweepEvery); err != nil {
		return err
	}

	gin.SetMode(cfg.GinMode)
	srv := &http.Server{
		Addr:              net.JoinHostPort("", cfg.Port),
		Handler:           a.router(nil),
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("driver", cfg.Database.Driver).Str("version", version).Msg("admin API listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		a.drain(sctx)
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	a.drain(sctx)
	return nil
}

// runMigrate creates all tables and indexes and exits.
func runMigrate(ctx context.Context, cfg config.Config) error {
	db, closeDB, err := openStore(cfg, false)
	defer closeDB()
	if err != nil {
		return err
	}
	if err := newApp(cfg, db).migrate(ctx); err != nil {
		return err
	}
	log.Info().Str("driver", cfg.Database.Driver).Msg("migration complete")
	return nil
}
