// Package profile manages channel profiles and the connections that attach
// users to them.
//
// A profile is a named permission set owned by a channel. A connection links
// one user in one channel to any number of that channel's profiles. Whether a
// user may perform a gated action (for example touching a pinned auto-reply
// module) is decided by the union of the permissions of every connected
// profile.
package profile

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/tbourn/go-autoreply-backend/internal/domain"
	"github.com/tbourn/go-autoreply-backend/internal/model"
	"github.com/tbourn/go-autoreply-backend/internal/oid"
	"github.com/tbourn/go-autoreply-backend/internal/outcome"
	"github.com/tbourn/go-autoreply-backend/internal/store"
	"github.com/tbourn/go-autoreply-backend/internal/worker"
)

// ErrProfileNotFound is returned when a profile id does not resolve.
var ErrProfileNotFound = errors.New("profile not found")

// Manager owns the profile and profile-connection collections.
type Manager struct {
	Profiles    *store.Collection
	Connections *store.Collection
}

// NewManager binds the collections on db.
func NewManager(db *gorm.DB, pool *worker.Pool) *Manager {
	return &Manager{
		Profiles: store.NewCollection(db, "channel_profiles", domain.ProfileSchema, pool,
			store.Index{Keys: []string{"ch", "n"}, Unique: true},
		),
		Connections: store.NewCollection(db, "channel_profile_connections", domain.ProfileConnectionSchema, pool,
			store.Index{Keys: []string{"u", "ch"}, Unique: true},
			store.Index{Keys: []string{"ch"}},
		),
	}
}

// Migrate creates the backing tables.
func (m *Manager) Migrate(ctx context.Context) error {
	if err := m.Profiles.Migrate(ctx); err != nil {
		return err
	}
	return m.Connections.Migrate(ctx)
}

// ProfileValues is the input for a new profile.
type ProfileValues struct {
	ChannelOID oid.ID
	Name       string
	Color      string
	Permission domain.Permission
	Level      domain.PermissionLevel
	IsDefault  bool
}

func (v ProfileValues) values() model.Values {
	return model.Values{
		"ChannelOid":      v.ChannelOID,
		"Name":            v.Name,
		"Color":           v.Color,
		"Permission":      v.Permission,
		"PermissionLevel": v.Level,
		"IsDefault":       v.IsDefault,
	}
}

// CreateProfile inserts a profile. A name already used in the channel yields
// O_DATA_EXISTS with the existing profile's id.
func (m *Manager) CreateProfile(ctx context.Context, v ProfileValues) store.Result {
	return m.Profiles.InsertOneData(ctx, v.values())
}

// CreateDefaultProfile inserts the profile every new member of channel is
// connected to.
func (m *Manager) CreateDefaultProfile(ctx context.Context, channel oid.ID) store.Result {
	return m.CreateProfile(ctx, ProfileValues{
		ChannelOID: channel,
		Name:       domain.DefaultProfileName,
		Level:      domain.LevelNormal,
		IsDefault:  true,
	})
}

// DeleteProfile removes a profile and detaches it from every connection.
func (m *Manager) DeleteProfile(ctx context.Context, id oid.ID) outcome.Code {
	n, err := m.Profiles.Delete(ctx, store.ByID(id))
	if err != nil {
		return store.OutcomeOf(err, outcome.XDeleteUnknown)
	}
	if n == 0 {
		return outcome.XNotFound
	}
	conns, err := m.Connections.FindAll(ctx, store.Contains("p", id), store.FindOptions{})
	if err != nil {
		return store.OutcomeOf(err, outcome.XDeleteUnknown)
	}
	for _, c := range conns {
		left := without(domain.AsProfileConnection(c).ProfileOIDs(), id)
		m.Connections.UpdateOneOutcome(ctx, store.ByID(c.ID()), store.Set(map[string]any{"p": left}))
	}
	return outcome.OCompleted
}

// GetProfile returns the profile with id.
func (m *Manager) GetProfile(ctx context.Context, id oid.ID) (*domain.Profile, error) {
	p, err := m.Profiles.FindOneCasted(ctx, store.ByID(id))
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return domain.AsProfile(p), nil
}

// GetChannelProfiles lists the profiles of channel in creation order.
func (m *Manager) GetChannelProfiles(ctx context.Context, channel oid.ID) ([]*domain.Profile, error) {
	ms, err := m.Profiles.FindAll(ctx, store.Eq("ch", channel), store.FindOptions{Sort: []store.Sort{store.Asc(model.KeyID)}})
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Profile, len(ms))
	for i, p := range ms {
		out[i] = domain.AsProfile(p)
	}
	return out, nil
}

// ConnectUser adds profiles to the user's connection in channel, creating
// the connection on first use. Reconnecting already connected profiles
// yields O_FOUND.
func (m *Manager) ConnectUser(ctx context.Context, user, channel oid.ID, profiles ...oid.ID) store.Result {
	for attempt := 0; attempt < 2; attempt++ {
		conn, err := m.connection(ctx, user, channel)
		if err != nil {
			return store.Result{Outcome: store.OutcomeOf(err, outcome.XUpdateUnknown), Err: err}
		}
		if conn == nil {
			r := m.Connections.InsertOneData(ctx, model.Values{
				"UserOid":     user,
				"ChannelOid":  channel,
				"ProfileOids": dedupe(profiles),
			})
			if r.Outcome == outcome.ODataExists {
				continue
			}
			return r
		}
		merged := dedupe(append(conn.ProfileOIDs(), profiles...))
		if len(merged) == len(conn.ProfileOIDs()) {
			return store.Result{Outcome: outcome.OFound, Model: conn.Model}
		}
		r := m.Connections.UpdateOneOutcome(ctx, store.ByID(conn.ID()), store.Set(map[string]any{"p": merged}))
		r.Model = conn.Model
		return r
	}
	return store.Result{Outcome: outcome.ODataExists, Err: store.ErrDuplicate}
}

func (m *Manager) connection(ctx context.Context, user, channel oid.ID) (*domain.ProfileConnection, error) {
	c, err := m.Connections.FindOneCasted(ctx, store.And(store.Eq("u", user), store.Eq("ch", channel)))
	if err != nil {
		return nil, err
	}
	return domain.AsProfileConnection(c), nil
}

// GetUserProfileOIDs returns the profiles connected to user in channel.
func (m *Manager) GetUserProfileOIDs(ctx context.Context, user, channel oid.ID) ([]oid.ID, error) {
	c, err := m.connection(ctx, user, channel)
	if err != nil || c == nil {
		return nil, err
	}
	return c.ProfileOIDs(), nil
}

func (m *Manager) profiles(ctx context.Context, ids []oid.ID) ([]*domain.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	vals := make([]any, len(ids))
	for i, id := range ids {
		vals[i] = id
	}
	ms, err := m.Profiles.FindAll(ctx, store.In(model.KeyID, vals...), store.FindOptions{})
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	out := make([]*domain.Profile, len(ms))
	for i, p := range ms {
		out[i] = domain.AsProfile(p)
	}
	return out, nil
}

// HasPermission reports whether the union of the permissions of profiles
// covers perm. Unknown profile ids contribute nothing.
func (m *Manager) HasPermission(ctx context.Context, profiles []oid.ID, perm domain.Permission) (bool, error) {
	ps, err := m.profiles(ctx, profiles)
	if err != nil {
		return false, err
	}
	var union domain.Permission
	for _, p := range ps {
		union |= p.Permission()
	}
	return union.Has(perm), nil
}

// UserHasPermission is HasPermission over the user's connected profiles in
// channel.
func (m *Manager) UserHasPermission(ctx context.Context, user, channel oid.ID, perm domain.Permission) (bool, error) {
	ids, err := m.GetUserProfileOIDs(ctx, user, channel)
	if err != nil {
		return false, err
	}
	return m.HasPermission(ctx, ids, perm)
}

// GetPermissionLevel returns the highest level among the user's connected
// profiles in channel, or LevelNormal when there are none.
func (m *Manager) GetPermissionLevel(ctx context.Context, user, channel oid.ID) (domain.PermissionLevel, error) {
	ids, err := m.GetUserProfileOIDs(ctx, user, channel)
	if err != nil {
		return domain.LevelNormal, err
	}
	ps, err := m.profiles(ctx, ids)
	if err != nil {
		return domain.LevelNormal, err
	}
	lv := domain.LevelNormal
	for _, p := range ps {
		if p.Level() > lv {
			lv = p.Level()
		}
	}
	return lv, nil
}

func dedupe(ids []oid.ID) []oid.ID {
	seen := make(map[oid.ID]struct{}, len(ids))
	out := make([]oid.ID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id.IsZero() {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func without(ids []oid.ID, drop oid.ID) []oid.ID {
	out := make([]oid.ID, 0, len(ids))
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}
