package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/tbourn/go-autoreply-backend/internal/autoreply"
	"github.com/tbourn/go-autoreply-backend/internal/channel"
	"github.com/tbourn/go-autoreply-backend/internal/config"
	"github.com/tbourn/go-autoreply-backend/internal/domain"
	httpapi "github.com/tbourn/go-autoreply-backend/internal/http"
	"github.com/tbourn/go-autoreply-backend/internal/profile"
	"github.com/tbourn/go-autoreply-backend/internal/remotecontrol"
	"github.com/tbourn/go-autoreply-backend/internal/store"
	"github.com/tbourn/go-autoreply-backend/internal/user"
	"github.com/tbourn/go-autoreply-backend/internal/validate"
	"github.com/tbourn/go-autoreply-backend/internal/worker"
)

// app is the wired object graph shared by the commands.
type app struct {
	cfg  config.Config
	db   *gorm.DB
	pool *worker.Pool

	profiles *profile.Manager
	channels *channel.Manager
	users    *user.Manager
	modules  *autoreply.Manager
	sessions *remotecontrol.Registry
	sweeper  *store.TTLSweeper
}

func newApp(cfg config.Config, db *gorm.DB) *app {
	pool := worker.New(cfg.Workers.PoolSize, cfg.Workers.TaskTimeout)
	ttl := cfg.Database.CacheExpiry

	a := &app{cfg: cfg, db: db, pool: pool}
	a.profiles = profile.NewManager(db, pool)
	a.channels = channel.NewManager(db, pool, a.profiles,
		channel.CacheOptions{Size: cfg.Database.ChannelCacheSize, TTL: ttl})
	// Platform adapters supply a name resolver; the daemon alone has none.
	a.users = user.NewManager(db, pool, nil,
		user.CacheOptions{Size: cfg.Database.UserNameCacheSize, TTL: ttl})

	validators := validate.NewHTTP(validate.Options{
		Timeout:            cfg.Validators.Timeout,
		CacheTTL:           cfg.Validators.CacheTTL,
		StickerURLTemplate: cfg.Validators.StickerURLTemplate,
	})
	a.modules = autoreply.NewManager(db, pool, a.profiles, validators.Content(), autoreply.Options{
		Limits: domain.ModuleLimits{
			MaxResponses:     cfg.AutoReply.MaxResponses,
			MaxContentLength: cfg.AutoReply.MaxContentLength,
		},
		ShortWindow: cfg.AutoReply.ShortWindow,
	})
	a.sessions = remotecontrol.NewRegistry(db, pool, cfg.RemoteControl.IdleDeactivate)
	a.sweeper = store.NewTTLSweeper(a.sessions.Entries)
	return a
}

type migrator interface {
	Migrate(ctx context.Context) error
}

// migrate creates every collection. Order does not matter; there are no
// foreign keys between collections.
func (a *app) migrate(ctx context.Context) error {
	steps := []struct {
		name string
		m    migrator
	}{
		{"profiles", a.profiles},
		{"channels", a.channels},
		{"users", a.users},
		{"auto-reply modules", a.modules},
		{"remote control", a.sessions},
	}
	for _, s := range steps {
		if err := s.m.Migrate(ctx); err != nil {
			return fmt.Errorf("migrate %s: %w", s.name, err)
		}
	}
	return nil
}

// router builds the admin API. reg is nil for the default Prometheus
// registry.
func (a *app) router(reg *prometheus.Registry) *gin.Engine {
	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Modules:  a.modules,
		Sessions: a.sessions,
		Registry: reg,
	}, a.cfg)
	return r
}

// drain stops the sweeper and waits for queued writes, bounded by ctx.
func (a *app) drain(ctx context.Context) {
	stopped := a.sweeper.Stop()
	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		a.pool.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}
