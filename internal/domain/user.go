package domain

import (
	"regexp"

	"github.com/tbourn/go-autoreply-backend/internal/model"
	"github.com/tbourn/go-autoreply-backend/internal/oid"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// APIUserSchema is an identity authenticated through the API surface,
// unique by email.
var APIUserSchema = model.NewSchema("APIUser",
	model.Text("Email", "e", model.IsRequired(), model.Regex(emailPattern)),
	model.Text("Token", "t", model.ReadOnly()),
)

// OnPlatformUserSchema is an identity on a chat platform, unique per
// (platform, token). Both fields are fixed once recorded.
var OnPlatformUserSchema = model.NewSchema("OnPlatformUser",
	model.Enum("Platform", "p", Platforms, model.IsRequired(), model.ReadOnly()),
	model.Text("Token", "t", model.IsRequired(), model.NotEmpty(), model.ReadOnly()),
)

// RootUserSchema aggregates the identities of one person. It must carry an
// API identity, at least one on-platform identity, or both.
var RootUserSchema = func() *model.Schema {
	s := model.NewSchema("RootUser",
		model.ObjectID("APIUserOid", "api", model.AllowNone(), model.Default(nil)),
		model.Array("OnPlatOids", "op", model.ObjectID("OnPlatOid", "op")),
		model.Text("Config", "cfg"),
	)
	s.Validity = func(m *model.Model) model.ValidityResult {
		r := AsRootUser(m)
		if r.APIUserOID().IsZero() && len(r.OnPlatOIDs()) == 0 {
			return model.ValidityNoIdentity
		}
		return model.ValidityOK
	}
	return s
}()

// APIUser is a typed view over an API user model.
type APIUser struct{ *model.Model }

func (u *APIUser) Email() string { return u.String("Email") }

// OnPlatformUser is a typed view over an on-platform user model.
type OnPlatformUser struct{ *model.Model }

// AsOnPlatformUser wraps m. A nil model yields nil.
func AsOnPlatformUser(m *model.Model) *OnPlatformUser {
	if m == nil {
		return nil
	}
	return &OnPlatformUser{m}
}

func (u *OnPlatformUser) Platform() Platform {
	return model.Value[Platform](u.Model, "Platform")
}
func (u *OnPlatformUser) Token() string { return u.String("Token") }

// RootUser is a typed view over a root user model.
type RootUser struct{ *model.Model }

// AsRootUser wraps m. A nil model yields nil.
func AsRootUser(m *model.Model) *RootUser {
	if m == nil {
		return nil
	}
	return &RootUser{m}
}

func (u *RootUser) APIUserOID() oid.ID { return u.OID("APIUserOid") }

// OnPlatOIDs returns the linked on-platform identities.
func (u *RootUser) OnPlatOIDs() []oid.ID { return model.ListOf[oid.ID](u.Model, "OnPlatOids") }
