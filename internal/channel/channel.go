// Package channel registers the chat rooms the bot observes.
//
// A channel is created on the first observation of a (platform, token) pair.
// Registration also creates the channel's default profile, so the channel
// id is allocated before anything is written and the profile can reference
// it. Lookups by id go through a small size- and TTL-bounded cache; every
// write through this package invalidates the affected entry.
package channel

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-autoreply-backend/internal/domain"
	"github.com/tbourn/go-autoreply-backend/internal/model"
	"github.com/tbourn/go-autoreply-backend/internal/oid"
	"github.com/tbourn/go-autoreply-backend/internal/outcome"
	"github.com/tbourn/go-autoreply-backend/internal/profile"
	"github.com/tbourn/go-autoreply-backend/internal/store"
	"github.com/tbourn/go-autoreply-backend/internal/worker"
)

// ErrChannelNotFound is returned when a channel lookup resolves nothing.
var ErrChannelNotFound = errors.New("channel not found")

// CacheOptions bounds the channel-by-id cache.
type CacheOptions struct {
	Size int
	TTL  time.Duration
}

// Manager owns the channel collection.
type Manager struct {
	Channels *store.Collection
	Profiles *profile.Manager

	cache *expirable.LRU[oid.ID, *domain.Channel]
}

// NewManager binds the channel collection on db. Default profiles are
// created through profiles.
func NewManager(db *gorm.DB, pool *worker.Pool, profiles *profile.Manager, co CacheOptions) *Manager {
	if co.Size <= 0 {
		co.Size = 1024
	}
	if co.TTL <= 0 {
		co.TTL = time.Minute
	}
	return &Manager{
		Channels: store.NewCollection(db, "channels", domain.ChannelSchema, pool,
			store.Index{Keys: []string{"p", "t"}, Unique: true},
		),
		Profiles: profiles,
		cache:    expirable.NewLRU[oid.ID, *domain.Channel](co.Size, nil, co.TTL),
	}
}

// Migrate creates the backing table.
func (m *Manager) Migrate(ctx context.Context) error {
	return m.Channels.Migrate(ctx)
}

// EnsureRegister returns the channel for (platform, token), registering it
// with a fresh default profile when absent. The outcome is O_INSERTED for a
// new channel and O_DATA_EXISTS for a known one.
func (m *Manager) EnsureRegister(ctx context.Context, platform domain.Platform, token, defaultName string) store.Result {
	existing, err := m.GetChannelToken(ctx, platform, token)
	switch {
	case err == nil:
		return store.Result{Outcome: outcome.ODataExists, Model: existing.Model}
	case !errors.Is(err, ErrChannelNotFound):
		return store.Result{Outcome: store.OutcomeOf(err, outcome.XInsertUnknown), Err: err}
	}

	id := oid.New()
	prof := m.Profiles.CreateDefaultProfile(ctx, id)
	if !prof.OK() {
		return prof
	}

	ch, err := domain.ChannelSchema.FromApp(model.Values{
		"Platform": platform,
		"Token":    token,
		"Config": model.Values{
			"DefaultName":       defaultName,
			"DefaultProfileOid": prof.Model.ID(),
		},
	})
	if err != nil {
		m.dropOrphan(ctx, prof.Model.ID())
		return store.Result{Outcome: store.OutcomeOf(err, outcome.XConstructUnknown), Err: err}
	}
	ch.SetID(id)

	r := m.Channels.InsertOneModel(ctx, ch)
	if r.Outcome != outcome.OInserted {
		// lost a registration race, or failed outright
		m.dropOrphan(ctx, prof.Model.ID())
	}
	if r.Outcome == outcome.ODataExists && r.Err == nil {
		if won, err := m.GetChannelOID(ctx, r.Model.ID()); err == nil {
			r.Model = won.Model
		}
	}
	return r
}

func (m *Manager) dropOrphan(ctx context.Context, profileID oid.ID) {
	if code := m.Profiles.DeleteProfile(ctx, profileID); !code.IsSuccess() {
		log.Warn().Str("profile", profileID.Hex()).Str("outcome", code.String()).Msg("orphan default profile not removed")
	}
}

// GetChannelOID returns the channel with id. The result is shared with the
// cache and must not be modified.
func (m *Manager) GetChannelOID(ctx context.Context, id oid.ID) (*domain.Channel, error) {
	if c, ok := m.cache.Get(id); ok {
		return c, nil
	}
	c, err := m.Channels.FindOneCasted(ctx, store.ByID(id))
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrChannelNotFound
	}
	ch := domain.AsChannel(c)
	m.cache.Add(id, ch)
	return ch, nil
}

// GetChannelToken returns the channel registered for (platform, token).
func (m *Manager) GetChannelToken(ctx context.Context, platform domain.Platform, token string) (*domain.Channel, error) {
	c, err := m.Channels.FindOneCasted(ctx, store.And(store.Eq("p", platform), store.Eq("t", token)))
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrChannelNotFound
	}
	return domain.AsChannel(c), nil
}

// GetChannelDefaultProfile returns the default profile of channel.
func (m *Manager) GetChannelDefaultProfile(ctx context.Context, channel oid.ID) (*domain.Profile, error) {
	ch, err := m.GetChannelOID(ctx, channel)
	if err != nil {
		return nil, err
	}
	return m.Profiles.GetProfile(ctx, ch.DefaultProfileOID())
}

func (m *Manager) update(ctx context.Context, channel oid.ID, set map[string]any) store.Result {
	r := m.Channels.UpdateOneOutcome(ctx, store.ByID(channel), store.Set(set))
	m.cache.Remove(channel)
	return r
}

// MarkAccessibility records whether the bot can still reach the channel.
func (m *Manager) MarkAccessibility(ctx context.Context, channel oid.ID, accessible bool) store.Result {
	return m.update(ctx, channel, map[string]any{"cfg.ba": accessible})
}

// UpdateChannelDefaultName sets the display name.
func (m *Manager) UpdateChannelDefaultName(ctx context.Context, channel oid.ID, name string) store.Result {
	return m.update(ctx, channel, map[string]any{"cfg.dn": name})
}

// SetDefaultProfile points the channel at another default profile, which
// must belong to it.
func (m *Manager) SetDefaultProfile(ctx context.Context, channel, profileID oid.ID) store.Result {
	p, err := m.Profiles.GetProfile(ctx, profileID)
	if err != nil {
		return store.Result{Outcome: outcome.XNotFound, Err: err}
	}
	if p.ChannelOID() != channel {
		return store.Result{Outcome: outcome.XInvalidField, Err: errors.New("profile belongs to another channel")}
	}
	return m.update(ctx, channel, map[string]any{"cfg.dp": profileID})
}

// UpdateChannelNickname sets the name user is shown with in channel. An
// empty nickname clears the override.
func (m *Manager) UpdateChannelNickname(ctx context.Context, channel, user oid.ID, nickname string) store.Result {
	c, err := m.Channels.FindOneCasted(ctx, store.ByID(channel))
	if err != nil {
		return store.Result{Outcome: store.OutcomeOf(err, outcome.XUpdateUnknown), Err: err}
	}
	if c == nil {
		return store.Result{Outcome: outcome.XNotFound, Err: ErrChannelNotFound}
	}
	names := make(map[string]any, len(c.Map("Nicknames"))+1)
	for k, v := range c.Map("Nicknames") {
		names[k] = v
	}
	if nickname == "" {
		delete(names, user.Hex())
	} else {
		names[user.Hex()] = nickname
	}
	return m.update(ctx, channel, map[string]any{"nn": names})
}
