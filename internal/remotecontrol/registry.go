// Package remotecontrol keeps remote-control sessions: while a session for
// (user, source channel) is alive, what the user does in the source channel
// acts on the target channel instead.
//
// Sessions slide: every lookup that asks for it pushes the expiry to
// now + idle. The stored expiry is authoritative. A TTL index lets the store
// sweeper evict lapsed rows, but eviction lags, so every read re-checks the
// expiry against the clock. Nothing is held in process memory between calls.
package remotecontrol

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-autoreply-backend/internal/domain"
	"github.com/tbourn/go-autoreply-backend/internal/model"
	"github.com/tbourn/go-autoreply-backend/internal/observability"
	"github.com/tbourn/go-autoreply-backend/internal/oid"
	"github.com/tbourn/go-autoreply-backend/internal/outcome"
	"github.com/tbourn/go-autoreply-backend/internal/store"
	"github.com/tbourn/go-autoreply-backend/internal/worker"
)

const tracerName = "remotecontrol/Registry"

// DefaultIdleDeactivate is the session lifetime without activity.
const DefaultIdleDeactivate = 300 * time.Second

// Registry owns the remote-control collection.
type Registry struct {
	Entries *store.Collection

	// Now is the clock used for expiry decisions.
	Now func() time.Time
	// Idle is how long a session lives past its last activity.
	Idle time.Duration
}

// NewRegistry binds the remote-control collection on db.
func NewRegistry(db *gorm.DB, pool *worker.Pool, idle time.Duration) *Registry {
	if idle <= 0 {
		idle = DefaultIdleDeactivate
	}
	return &Registry{
		Entries: store.NewCollection(db, "remote_control", domain.RemoteControlSchema, pool,
			store.Index{Name: "remote_control_user_source", Keys: []string{"u", "src"}, Unique: true},
			store.Index{Keys: []string{"exp"}, TTL: true},
		),
		Now:  time.Now,
		Idle: idle,
	}
}

// Migrate creates the backing table and indexes.
func (r *Registry) Migrate(ctx context.Context) error {
	return r.Entries.Migrate(ctx)
}

func (r *Registry) now() time.Time { return r.Now().UTC() }

func key(user, src oid.ID) store.Filter {
	return store.And(store.Eq("u", user), store.Eq("src", src))
}

func span(ctx context.Context, name string, user, src oid.ID) (context.Context, trace.Span) {
	return observability.StartSpan(ctx, tracerName, name,
		attribute.String("user.id", user.Hex()),
		attribute.String("source.id", src.Hex()),
	)
}

// Activate opens a session from src to tgt for user, or re-points and
// refreshes the user's existing session on src. It returns nil when the
// session could not be stored.
func (r *Registry) Activate(ctx context.Context, user, src, tgt oid.ID, locale string) *domain.RemoteControlEntry {
	ctx, sp := span(ctx, "Activate", user, src)
	defer sp.End()

	now := r.now()
	exp := now.Add(r.Idle)
	m, err := domain.RemoteControlSchema.FromApp(model.Values{
		model.FieldID:      oid.NewAt(now),
		"UserOid":          user,
		"SourceChannelOid": src,
		"TargetChannelOid": tgt,
		"ExpiryUTC":        exp,
		"LocaleCode":       locale,
	})
	if err != nil {
		sp.RecordError(err)
		log.Warn().Err(err).Str("user", user.Hex()).Msg("remote control: invalid entry")
		return nil
	}

	res := r.Entries.InsertOneModel(ctx, m)
	switch res.Outcome {
	case outcome.OInserted:
		observability.RemoteControlSessions.WithLabelValues("activated").Inc()
		return domain.AsRemoteControlEntry(res.Model)
	case outcome.ODataExists:
		return r.reactivate(ctx, user, src, tgt, exp, locale)
	}
	sp.RecordError(res.Err)
	log.Warn().Err(res.Err).Str("outcome", res.Outcome.String()).Msg("remote control: activate failed")
	return nil
}

func (r *Registry) reactivate(ctx context.Context, user, src, tgt oid.ID, exp time.Time, locale string) *domain.RemoteControlEntry {
	res := r.Entries.UpdateOneOutcome(ctx, key(user, src), store.Set(map[string]any{
		"dst": tgt,
		"exp": exp,
		"loc": locale,
	}))
	if !res.OK() {
		log.Warn().Err(res.Err).Str("outcome", res.Outcome.String()).Msg("remote control: reactivate failed")
		return nil
	}
	found, err := r.Entries.FindOneCasted(ctx, key(user, src))
	if err != nil || found == nil {
		log.Warn().Err(err).Msg("remote control: reactivated entry vanished")
		return nil
	}
	observability.RemoteControlSessions.WithLabelValues("reactivated").Inc()
	return domain.AsRemoteControlEntry(found)
}

// Deactivate ends the user's session on src. It reports whether a session
// was removed.
func (r *Registry) Deactivate(ctx context.Context, user, src oid.ID) bool {
	ctx, sp := span(ctx, "Deactivate", user, src)
	defer sp.End()

	n, err := r.Entries.Delete(ctx, key(user, src))
	if err != nil {
		sp.RecordError(err)
		log.Warn().Err(err).Msg("remote control: deactivate failed")
		return false
	}
	if n > 0 {
		observability.RemoteControlSessions.WithLabelValues("deactivated").Inc()
	}
	return n > 0
}

// GetCurrent returns the live session of user on src, or nil. With
// updateExpiry the session is extended to now + Idle in the background; the
// returned entry already carries the new expiry.
func (r *Registry) GetCurrent(ctx context.Context, user, src oid.ID, updateExpiry bool) *domain.RemoteControlEntry {
	ctx, sp := span(ctx, "GetCurrent", user, src)
	defer sp.End()

	found, err := r.Entries.FindOneCasted(ctx, key(user, src))
	if err != nil {
		sp.RecordError(err)
		log.Warn().Err(err).Msg("remote control: lookup failed")
		return nil
	}
	e := domain.AsRemoteControlEntry(found)
	if e == nil {
		return nil
	}
	now := r.now()
	if e.ExpiredAt(now) {
		observability.RemoteControlSessions.WithLabelValues("expired").Inc()
		return nil
	}
	if updateExpiry {
		exp := now.Add(r.Idle)
		r.Entries.UpdateOneAsync(store.ByID(e.ID()), store.Update{Max: map[string]any{"exp": exp}})
		if err := e.Set("ExpiryUTC", exp); err != nil {
			log.Debug().Err(err).Msg("remote control: local expiry not refreshed")
		}
		observability.RemoteControlSessions.WithLabelValues("extended").Inc()
	}
	return e
}
