package domain

import (
	"fmt"
	"time"

	"golang.org/x/text/language"

	"github.com/tbourn/go-autoreply-backend/internal/model"
	"github.com/tbourn/go-autoreply-backend/internal/oid"
)

// RemoteControlSchema is a remote-control session: while it lives, commands
// a user sends in the source channel act on the target channel. There is at
// most one entry per (user, source). ExpiryUTC is authoritative; storage
// eviction by TTL may lag behind it.
var RemoteControlSchema = func() *model.Schema {
	s := model.NewSchema("RemoteControlEntry",
		model.ObjectID("UserOid", "u", model.IsRequired()),
		model.ObjectID("SourceChannelOid", "src", model.IsRequired()),
		model.ObjectID("TargetChannelOid", "dst", model.IsRequired()),
		model.DateTime("ExpiryUTC", "exp", model.IsRequired()),
		model.Text("LocaleCode", "loc", model.Validate(checkLocale)),
	)
	s.WithOID = true
	s.Validity = func(m *model.Model) model.ValidityResult {
		if m.HasID() && !m.Time("ExpiryUTC").After(oid.Time(m.ID())) {
			return model.ValidityExpiryBeforeCreation
		}
		return model.ValidityOK
	}
	return s
}()

func checkLocale(v any) error {
	s, _ := v.(string)
	if s == "" {
		return nil
	}
	if _, err := language.Parse(s); err != nil {
		return fmt.Errorf("locale %q: %w", s, err)
	}
	return nil
}

// RemoteControlEntry is a typed view over a remote-control model.
type RemoteControlEntry struct{ *model.Model }

// AsRemoteControlEntry wraps m. A nil model yields nil.
func AsRemoteControlEntry(m *model.Model) *RemoteControlEntry {
	if m == nil {
		return nil
	}
	return &RemoteControlEntry{m}
}

func (e *RemoteControlEntry) UserOID() oid.ID          { return e.OID("UserOid") }
func (e *RemoteControlEntry) SourceChannelOID() oid.ID { return e.OID("SourceChannelOid") }
func (e *RemoteControlEntry) TargetChannelOID() oid.ID { return e.OID("TargetChannelOid") }
func (e *RemoteControlEntry) ExpiryUTC() time.Time     { return e.Time("ExpiryUTC") }
func (e *RemoteControlEntry) LocaleCode() string       { return e.String("LocaleCode") }

// Locale parses the stored locale. Unset or unparsable codes yield und.
func (e *RemoteControlEntry) Locale() language.Tag {
	t, err := language.Parse(e.LocaleCode())
	if err != nil {
		return language.Und
	}
	return t
}

// ExpiredAt reports whether the entry has lapsed at now.
func (e *RemoteControlEntry) ExpiredAt(now time.Time) bool {
	return !now.Before(e.ExpiryUTC())
}
