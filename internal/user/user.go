// Package user registers the identities the bot knows about.
//
// An on-platform user is a (platform, token) pair seen in a chat. An API
// user is an email identity. A root user ties one person's identities
// together and must carry at least one of them. Registration is idempotent:
// registering a known key returns the stored model with O_DATA_EXISTS.
package user

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
	"github.com/tbourn/go-autoreply-backend/internal/store"
	"github.com/tbourn/go-autoreply-backend/internal/worker"
)

// ErrUserNotFound is returned when a user lookup resolves nothing.
var ErrUserNotFound = errors.New("user not found")

// NameResolver fetches a user's display name from its platform. Platform
// adapters provide implementations.
type NameResolver interface {
	ResolveName(ctx context.Context, platform domain.Platform, token string) (string, error)
}

// NameResolverFunc adapts a function to NameResolver.
type NameResolverFunc func(ctx context.Context, platform domain.Platform, token string) (string, error)

func (f NameResolverFunc) ResolveName(ctx context.Context, p domain.Platform, token string) (string, error) {
	return f(ctx, p, token)
}

// CacheOptions bounds the user-name cache.
type CacheOptions struct {
	Size int
	TTL  time.Duration
}

// Manager owns the user collections.
type Manager struct {
	APIUsers        *store.Collection
	OnPlatformUsers *store.Collection
	RootUsers       *store.Collection

	// Names resolves display names; nil disables name lookups.
	Names NameResolver

	names *expirable.LRU[oid.ID, string]
}

// NewManager binds the user collections on db.
func NewManager(db *gorm.DB, pool *worker.Pool, names NameResolver, co CacheOptions) *Manager {
	if co.Size <= 0 {
		co.Size = 4096
	}
	if co.TTL <= 0 {
		co.TTL = time.Minute
	}
	return &Manager{
		APIUsers: store.NewCollection(db, "api_users", domain.APIUserSchema, pool,
			store.Index{Keys: []string{"e"}, Unique: true},
		),
		OnPlatformUsers: store.NewCollection(db, "on_platform_users", domain.OnPlatformUserSchema, pool,
			store.Index{Keys: []string{"p", "t"}, Unique: true},
		),
		RootUsers: store.NewCollection(db, "root_users", domain.RootUserSchema, pool,
			store.Index{Keys: []string{"api"}, Unique: true},
		),
		Names: names,
		names: expirable.NewLRU[oid.ID, string](co.Size, nil, co.TTL),
	}
}

// Migrate creates the backing tables.
func (m *Manager) Migrate(ctx context.Context) error {
	for _, c := range []*store.Collection{m.APIUsers, m.OnPlatformUsers, m.RootUsers} {
		if err := c.Migrate(ctx); err != nil {
			return err
		}
	}
	return nil
}

// register inserts vals into c. On a key conflict the stored model replaces
// the candidate in the result.
func register(ctx context.Context, c *store.Collection, vals model.Values) store.Result {
	r := c.InsertOneData(ctx, vals)
	if r.Outcome != outcome.ODataExists || r.Model == nil || !r.Model.HasID() {
		return r
	}
	stored, err := c.FindOneCasted(ctx, store.ByID(r.Model.ID()))
	if err == nil && stored != nil {
		r.Model = stored
	}
	return r
}

// RegisterAPIUser records an API identity by email.
func (m *Manager) RegisterAPIUser(ctx context.Context, email, token string) store.Result {
	return register(ctx, m.APIUsers, model.Values{"Email": email, "Token": token})
}

// RegisterOnPlatformUser records a platform identity.
func (m *Manager) RegisterOnPlatformUser(ctx context.Context, platform domain.Platform, token string) store.Result {
	return register(ctx, m.OnPlatformUsers, model.Values{"Platform": platform, "Token": token})
}

// RootValues names the identities of a root user.
type RootValues struct {
	APIUserOID oid.ID
	OnPlatOIDs []oid.ID
}

// RegisterRootUser records a root user. A root already holding any of the
// given identities is returned with O_DATA_EXISTS instead.
func (m *Manager) RegisterRootUser(ctx context.Context, v RootValues) store.Result {
	var ors []store.Filter
	if !v.APIUserOID.IsZero() {
		ors = append(ors, store.Eq("api", v.APIUserOID))
	}
	for _, op := range v.OnPlatOIDs {
		ors = append(ors, store.Contains("op", op))
	}
	if len(ors) > 0 {
		existing, err := m.RootUsers.FindOneCasted(ctx, store.Or(ors...))
		if err != nil {
			return store.Result{Outcome: store.OutcomeOf(err, outcome.XInsertUnknown), Err: err}
		}
		if existing != nil {
			return store.Result{Outcome: outcome.ODataExists, Model: existing}
		}
	}
	vals := model.Values{"OnPlatOids": v.OnPlatOIDs}
	if !v.APIUserOID.IsZero() {
		vals["APIUserOid"] = v.APIUserOID
	}
	return register(ctx, m.RootUsers, vals)
}

// EnsureRoot registers the platform identity and a root user owning it,
// returning the root.
func (m *Manager) EnsureRoot(ctx context.Context, platform domain.Platform, token string) store.Result {
	op := m.RegisterOnPlatformUser(ctx, platform, token)
	if !op.OK() {
		return op
	}
	return m.RegisterRootUser(ctx, RootValues{OnPlatOIDs: []oid.ID{op.Model.ID()}})
}

// GetOnPlatformUser returns the identity for (platform, token).
func (m *Manager) GetOnPlatformUser(ctx context.Context, platform domain.Platform, token string) (*domain.OnPlatformUser, error) {
	u, err := m.OnPlatformUsers.FindOneCasted(ctx, store.And(store.Eq("p", platform), store.Eq("t", token)))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return domain.AsOnPlatformUser(u), nil
}

// GetRootByOnPlatform returns the root user owning the identity.
func (m *Manager) GetRootByOnPlatform(ctx context.Context, onPlat oid.ID) (*domain.RootUser, error) {
	r, err := m.RootUsers.FindOneCasted(ctx, store.Contains("op", onPlat))
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, ErrUserNotFound
	}
	return domain.AsRootUser(r), nil
}

// GetName returns the display name of an on-platform identity, asking the
// resolver on a cache miss. ok is false when no name is available.
func (m *Manager) GetName(ctx context.Context, onPlat oid.ID) (name string, ok bool) {
	if n, hit := m.names.Get(onPlat); hit {
		return n, true
	}
	if m.Names == nil {
		return "", false
	}
	u, err := m.OnPlatformUsers.FindOneCasted(ctx, store.ByID(onPlat))
	if err != nil || u == nil {
		return "", false
	}
	op := domain.AsOnPlatformUser(u)
	n, err := m.Names.ResolveName(ctx, op.Platform(), op.Token())
	if err != nil {
		log.Warn().Err(err).Str("platform", op.Platform().String()).Msg("name lookup failed")
		return "", false
	}
	m.names.Add(onPlat, n)
	return n, true
}
