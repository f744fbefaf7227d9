// Package autoreply implements the keyword auto-reply engine.
//
// A module maps a channel-scoped keyword (content + content type) to an
// ordered list of responses. At most one module per key is active; adding a
// module for a key that already has one overwrites it. How the previous
// module is retired depends on its age: a module younger than the short
// window is treated as an operator correction and physically removed, an
// older one is kept for history with active=false and the remover and
// removal time filled. The unique partial index on (ch, kw.c, kw.t, at=true)
// serialises concurrent adds; the loser sees O_DATA_EXISTS and may retry.
//
// Pinned modules require the ACCESS_PINNED capability (the union over the
// caller's connected profiles) to create, overwrite or remove.
//
// Resolving a keyword costs one synchronous read. Call-count and last-used
// bumps are commutative (increment and max) and run on the worker pool, so
// the caller never waits for them. A module in cooldown still counts the
// call but renders nothing.
//
// Observability: every public method starts an OpenTelemetry span; resolves
// and adds are counted in Prometheus.
package autoreply

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-autoreply-backend/internal/domain"
	"github.com/tbourn/go-autoreply-backend/internal/model"
	"github.com/tbourn/go-autoreply-backend/internal/observability"
	"github.com/tbourn/go-autoreply-backend/internal/oid"
	"github.com/tbourn/go-autoreply-backend/internal/outcome"
	"github.com/tbourn/go-autoreply-backend/internal/store"
	"github.com/tbourn/go-autoreply-backend/internal/validate"
	"github.com/tbourn/go-autoreply-backend/internal/worker"
)

const tracerName = "autoreply/Manager"

// PermissionChecker answers capability questions for a user in a channel.
// *profile.Manager satisfies it.
type PermissionChecker interface {
	UserHasPermission(ctx context.Context, user, channel oid.ID, perm domain.Permission) (bool, error)
}

// Options configures a Manager.
type Options struct {
	Limits domain.ModuleLimits
	// ShortWindow is the age below which an overwritten or removed module is
	// deleted instead of being kept as history.
	ShortWindow time.Duration
}

// Manager owns the auto-reply module collection.
type Manager struct {
	Modules   *store.Collection
	Perms     PermissionChecker
	Validator validate.ContentValidator

	// Now is the clock; module ids, cooldowns and the short window read it.
	Now func() time.Time

	limits      domain.ModuleLimits
	shortWindow time.Duration
}

// NewManager binds the module collection on db.
func NewManager(db *gorm.DB, pool *worker.Pool, perms PermissionChecker, cv validate.ContentValidator, o Options) *Manager {
	if o.Limits.MaxResponses <= 0 {
		o.Limits.MaxResponses = domain.DefaultModuleLimits.MaxResponses
	}
	if o.Limits.MaxContentLength <= 0 {
		o.Limits.MaxContentLength = domain.DefaultModuleLimits.MaxContentLength
	}
	return &Manager{
		Modules: store.NewCollection(db, "auto_reply_modules", domain.NewModuleSchema(o.Limits), pool,
			store.Index{Name: "auto_reply_active_key", Keys: []string{"ch", "kw.c", "kw.t"}, Unique: true, Where: map[string]any{"at": true}},
			store.Index{Keys: []string{"ch", "c"}},
		),
		Perms:       perms,
		Validator:   cv,
		Now:         time.Now,
		limits:      o.Limits,
		shortWindow: o.ShortWindow,
	}
}

// Migrate creates the backing table and indexes.
func (m *Manager) Migrate(ctx context.Context) error {
	return m.Modules.Migrate(ctx)
}

func (m *Manager) now() time.Time { return m.Now().UTC() }

func (m *Manager) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return observability.StartSpan(ctx, tracerName, name, attrs...)
}

// activeAt matches the active module holding a key in channel.
func activeAt(channel oid.ID, kw domain.Content) store.Filter {
	return store.And(
		store.Eq("ch", channel),
		store.Eq("kw.c", kw.Body),
		store.Eq("kw.t", kw.Type),
		store.Eq("at", true),
	)
}

// AddArgs is the input of AddConn.
type AddArgs struct {
	Keyword    domain.Content
	Responses  []domain.Content
	ChannelOID oid.ID
	CreatorOID oid.ID

	Pinned       bool
	Private      bool
	CooldownSec  int
	TagIDs       []oid.ID
	ExcludedOIDs []oid.ID

	// ReferOID makes the module a reference: it answers with the responses
	// of that module. Responses may be left empty and are then copied from
	// the target as a fallback.
	ReferOID oid.ID
}

// AddConn validates and inserts a module, retiring any active module that
// holds the same key.
func (m *Manager) AddConn(ctx context.Context, args AddArgs) store.Result {
	ctx, span := m.start(ctx, "AddConn",
		attribute.String("channel.id", args.ChannelOID.Hex()),
		attribute.String("keyword.type", args.Keyword.Type.String()),
		attribute.Bool("pinned", args.Pinned),
	)
	defer span.End()

	r := m.addConn(ctx, args)
	observability.AutoReplyAdds.WithLabelValues(r.Outcome.String()).Inc()
	span.SetAttributes(attribute.String("outcome", r.Outcome.String()))
	return r
}

func (m *Manager) addConn(ctx context.Context, args AddArgs) store.Result {
	if r, ok := m.checkContents(ctx, &args); !ok {
		return r
	}

	vals := domain.ModuleValues{
		Keyword:      args.Keyword,
		Responses:    args.Responses,
		ChannelOID:   args.ChannelOID,
		CreatorOID:   args.CreatorOID,
		Pinned:       args.Pinned,
		Private:      args.Private,
		CooldownSec:  args.CooldownSec,
		TagIDs:       args.TagIDs,
		ExcludedOIDs: args.ExcludedOIDs,
		ReferTo:      args.ReferOID,
	}.Values()
	vals[model.FieldID] = oid.NewAt(m.now())
	mod, err := m.Modules.Schema().FromApp(vals)
	if err != nil {
		return store.Result{Outcome: store.OutcomeOf(err, outcome.XConstructUnknown), Err: err}
	}

	existing, err := m.Modules.FindOneCasted(ctx, activeAt(args.ChannelOID, args.Keyword))
	if err != nil {
		return store.Result{Outcome: store.OutcomeOf(err, outcome.XInsertUnknown), Err: err}
	}
	prior := domain.AsModule(existing)

	if args.Pinned || (prior != nil && prior.Pinned()) {
		ok, err := m.Perms.UserHasPermission(ctx, args.CreatorOID, args.ChannelOID, domain.AccessPinned)
		if err != nil {
			return store.Result{Outcome: store.OutcomeOf(err, outcome.XInsertUnknown), Err: err}
		}
		if !ok {
			if args.Pinned {
				return store.Result{Outcome: outcome.XInsufficientPermission, Err: ErrInsufficientPermission}
			}
			return store.Result{Outcome: outcome.XPinnedContentExisted, Err: ErrPinnedContentExists}
		}
	}

	return m.overwrite(ctx, prior, mod, args)
}

// overwrite retires prior and inserts mod in one transaction. Anything but
// a clean insert rolls back, so a failed or losing add leaves prior active.
func (m *Manager) overwrite(ctx context.Context, prior *domain.Module, mod *model.Model, args AddArgs) store.Result {
	var res store.Result
	err := m.Modules.Transaction(ctx, func(tx *store.Collection) error {
		if prior != nil {
			if r := m.retire(ctx, tx, prior, args.CreatorOID); !r.OK() && r.Outcome != outcome.XNotFound {
				res = r
				return errRollback
			}
		}
		res = tx.InsertOneModel(ctx, mod)
		if res.Outcome != outcome.OInserted {
			return errRollback
		}
		return nil
	})
	switch {
	case err == nil:
		return res
	case !errors.Is(err, errRollback):
		return store.Result{Outcome: store.OutcomeOf(err, outcome.XInsertUnknown), Err: err}
	}
	if res.Outcome == outcome.ODataExists && res.Err != nil {
		// the conflict lookup could not run inside the aborted transaction
		winner, err := m.Modules.FindOneCasted(ctx, activeAt(args.ChannelOID, args.Keyword))
		if err == nil && winner != nil {
			mod.SetID(winner.ID())
			return store.Result{Outcome: outcome.ODataExists, Model: mod}
		}
	}
	return res
}

// checkContents applies the size limits, the content validators and the
// reference rules. It may fill args.Responses from a referenced module.
func (m *Manager) checkContents(ctx context.Context, args *AddArgs) (store.Result, bool) {
	if !m.contentOK(ctx, args.Keyword) {
		return store.Result{Outcome: outcome.XARInvalidKeyword, Err: ErrInvalidKeyword}, false
	}

	if !args.ReferOID.IsZero() {
		target, err := m.Modules.FindOneCasted(ctx, store.ByID(args.ReferOID))
		if err != nil {
			return store.Result{Outcome: store.OutcomeOf(err, outcome.XInsertUnknown), Err: err}, false
		}
		t := domain.AsModule(target)
		if t == nil || !t.Active() || t.IsReference() || t.ChannelOID() != args.ChannelOID {
			return store.Result{Outcome: outcome.XARInvalidReference, Err: ErrInvalidReference}, false
		}
		if len(args.Responses) == 0 {
			args.Responses = t.Responses()
		}
	}

	if len(args.Responses) > m.limits.MaxResponses {
		return store.Result{Outcome: outcome.XARTooManyResponses, Err: ErrTooManyResponses}, false
	}
	if len(args.Responses) == 0 {
		return store.Result{Outcome: outcome.XARInvalidResponse, Err: ErrInvalidResponse}, false
	}
	for _, c := range args.Responses {
		if !m.contentOK(ctx, c) {
			return store.Result{Outcome: outcome.XARInvalidResponse, Err: ErrInvalidResponse}, false
		}
	}
	return store.Result{}, true
}

// contentOK runs the structural checks first so remote validators never see
// malformed input.
func (m *Manager) contentOK(ctx context.Context, c domain.Content) bool {
	if len([]rune(c.Body)) > m.limits.MaxContentLength {
		return false
	}
	if _, err := c.Model(); err != nil {
		return false
	}
	return m.Validator.Valid(ctx, c)
}

// retire removes prior from the active set through col: deleted when younger
// than the short window, otherwise marked inactive by remover. Creation times
// come from ids and are truncated to the second, so the window is widened by
// one second to keep every correction made inside it.
func (m *Manager) retire(ctx context.Context, col *store.Collection, prior *domain.Module, remover oid.ID) store.Result {
	now := m.now()
	guard := store.And(store.ByID(prior.ID()), store.Eq("at", true))
	if m.shortWindow > 0 && now.Sub(prior.CreatedAt()) < m.shortWindow+time.Second {
		n, err := col.Delete(ctx, guard)
		switch {
		case err != nil:
			return store.Result{Outcome: store.OutcomeOf(err, outcome.XDeleteUnknown), Err: err}
		case n == 0:
			return store.Result{Outcome: outcome.XNotFound, Err: store.ErrNotFound}
		}
		return store.Result{Outcome: outcome.ODataUpdated}
	}
	return col.UpdateOneOutcome(ctx, guard, store.Set(map[string]any{
		"at":  false,
		"rid": remover,
		"rmv": now,
	}))
}

// ModuleMarkInactive retires the active module whose keyword content is
// keyword in channel, whatever its content type.
func (m *Manager) ModuleMarkInactive(ctx context.Context, keyword string, channel, remover oid.ID) outcome.Code {
	ctx, span := m.start(ctx, "ModuleMarkInactive",
		attribute.String("channel.id", channel.Hex()),
	)
	defer span.End()

	found, err := m.Modules.FindOneCasted(ctx, store.And(
		store.Eq("ch", channel),
		store.Eq("kw.c", keyword),
		store.Eq("at", true),
	))
	if err != nil {
		span.RecordError(err)
		return store.OutcomeOf(err, outcome.XUpdateUnknown)
	}
	mod := domain.AsModule(found)
	if mod == nil {
		return outcome.XNotFound
	}
	if mod.Pinned() {
		ok, err := m.Perms.UserHasPermission(ctx, remover, channel, domain.AccessPinned)
		if err != nil {
			span.RecordError(err)
			return store.OutcomeOf(err, outcome.XUpdateUnknown)
		}
		if !ok {
			return outcome.XInsufficientPermission
		}
	}
	r := m.retire(ctx, m.Modules, mod, remover)
	if r.Outcome == outcome.OFound {
		// a concurrent retire already took it
		return outcome.XNotFound
	}
	return r.Outcome
}
