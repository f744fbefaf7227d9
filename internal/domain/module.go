package domain

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/tbourn/go-autoreply-backend/internal/model"
	"github.com/tbourn/go-autoreply-backend/internal/oid"
)

// ModuleLimits bounds the size of a module.
type ModuleLimits struct {
	MaxResponses     int
	MaxContentLength int
}

// DefaultModuleLimits matches the configuration defaults.
var DefaultModuleLimits = ModuleLimits{MaxResponses: 5, MaxContentLength: 2000}

// NewModuleSchema returns the auto-reply module schema for the given limits.
//
// A module maps a channel-scoped keyword to an ordered, non-empty list of
// responses. Active modules are unique per (ch, kw.c, kw.t); inactive ones
// are kept for history with the remover and removal time filled.
func NewModuleSchema(lim ModuleLimits) *model.Schema {
	content := func(name, key string, opts ...model.Option) *model.Field {
		opts = append(opts, model.Validate(func(v any) error {
			cm, _ := v.(*model.Model)
			return checkContentLength(ContentOf(cm), lim.MaxContentLength)
		}))
		return model.Nested(name, key, ContentSchema, opts...)
	}
	s := model.NewSchema("AutoReplyModule",
		content("Keyword", "kw", model.IsRequired()),
		model.Array("Responses", "rp", content("Response", "rp"),
			model.IsRequired(), model.NotEmpty(), model.MaxLength(lim.MaxResponses)),
		model.ObjectID("ChannelOid", "ch", model.IsRequired()),
		model.ObjectID("CreatorOid", "cr", model.IsRequired()),
		model.Bool("Pinned", "p"),
		model.Bool("Private", "pr"),
		model.Int("CooldownSec", "cd", model.NonNegative()),
		model.Array("TagIds", "t", model.ObjectID("TagId", "t")),
		model.Array("ExcludedOids", "e", model.ObjectID("ExcludedOid", "e")),
		model.Bool("Active", "at", model.Default(true)),
		model.ObjectID("RemoverOid", "rid", model.AllowNone(), model.Default(nil)),
		model.DateTime("RemovedAt", "rmv", model.AllowNone(), model.Default(nil)),
		model.Int("CalledCount", "c", model.NonNegative()),
		model.DateTime("LastUsed", "l", model.AllowNone(), model.Default(nil)),
		model.ObjectID("ReferTo", "ref", model.AllowNone(), model.Default(nil)),
	)
	s.WithOID = true
	s.Validity = func(m *model.Model) model.ValidityResult {
		if ref := m.OID("ReferTo"); m.HasID() && !ref.IsZero() && ref == m.ID() {
			return model.ValidityReferenceToSelf
		}
		return model.ValidityOK
	}
	return s
}

func checkContentLength(c Content, max int) error {
	if n := utf8.RuneCountInString(c.Body); max > 0 && n > max {
		return fmt.Errorf("content length %d exceeds %d", n, max)
	}
	return nil
}

// Module is a typed view over an auto-reply module model.
type Module struct{ *model.Model }

// AsModule wraps m. A nil model yields nil.
func AsModule(m *model.Model) *Module {
	if m == nil {
		return nil
	}
	return &Module{m}
}

// Keyword returns the matching key.
func (m *Module) Keyword() Content { return ContentOf(m.Nested("Keyword")) }

// Responses returns the module's own responses.
func (m *Module) Responses() []Content { return contentsOf(m.List("Responses")) }

// ChannelOID returns the owning channel.
func (m *Module) ChannelOID() oid.ID { return m.OID("ChannelOid") }

// CreatorOID returns the creating user.
func (m *Module) CreatorOID() oid.ID { return m.OID("CreatorOid") }

// Pinned reports whether the module requires ACCESS_PINNED to change.
func (m *Module) Pinned() bool { return m.Bool("Pinned") }

// Private reports the private flag.
func (m *Module) Private() bool { return m.Bool("Private") }

// Cooldown returns the minimum interval between rendered responses.
func (m *Module) Cooldown() time.Duration {
	return time.Duration(m.Int("CooldownSec")) * time.Second
}

// TagIDs returns the tag identifiers.
func (m *Module) TagIDs() []oid.ID { return model.ListOf[oid.ID](m.Model, "TagIds") }

// ExcludedOIDs returns the excluded user identifiers.
func (m *Module) ExcludedOIDs() []oid.ID { return model.ListOf[oid.ID](m.Model, "ExcludedOids") }

// Active reports whether the module is matched on resolve.
func (m *Module) Active() bool { return m.Bool("Active") }

// RemoverOID returns who deactivated the module, if anyone.
func (m *Module) RemoverOID() oid.ID { return m.OID("RemoverOid") }

// RemovedAt returns when the module was deactivated, if ever.
func (m *Module) RemovedAt() time.Time { return m.Time("RemovedAt") }

// CalledCount returns how many times the module was resolved.
func (m *Module) CalledCount() int { return m.Int("CalledCount") }

// LastUsed returns the last resolve time, if any.
func (m *Module) LastUsed() time.Time { return m.Time("LastUsed") }

// ReferTo returns the referenced module, if this module is a reference.
func (m *Module) ReferTo() oid.ID { return m.OID("ReferTo") }

// IsReference reports whether responses are inherited from another module.
func (m *Module) IsReference() bool { return !m.ReferTo().IsZero() }

// CreatedAt is read from the identifier.
func (m *Module) CreatedAt() time.Time { return oid.Time(m.ID()) }

// ModuleValues is the application-side input for a new module.
type ModuleValues struct {
	Keyword      Content
	Responses    []Content
	ChannelOID   oid.ID
	CreatorOID   oid.ID
	Pinned       bool
	Private      bool
	CooldownSec  int
	TagIDs       []oid.ID
	ExcludedOIDs []oid.ID
	ReferTo      oid.ID
}

// Values renders v for the module schema.
func (v ModuleValues) Values() model.Values {
	vals := model.Values{
		"Keyword":     v.Keyword.Values(),
		"Responses":   contentValues(v.Responses),
		"ChannelOid":  v.ChannelOID,
		"CreatorOid":  v.CreatorOID,
		"Pinned":      v.Pinned,
		"Private":     v.Private,
		"CooldownSec": v.CooldownSec,
	}
	if len(v.TagIDs) > 0 {
		vals["TagIds"] = v.TagIDs
	}
	if len(v.ExcludedOIDs) > 0 {
		vals["ExcludedOids"] = v.ExcludedOIDs
	}
	if !v.ReferTo.IsZero() {
		vals["ReferTo"] = v.ReferTo
	}
	return vals
}
