package domain

import (
	"github.com/tbourn/go-autoreply-backend/internal/model"
	"github.com/tbourn/go-autoreply-backend/internal/oid"
)

// DefaultProfileName names the profile created with every channel.
const DefaultProfileName = "Default"

// ProfileSchema is a named permission set owned by a channel.
var ProfileSchema = model.NewSchema("ChannelProfile",
	model.ObjectID("ChannelOid", "ch", model.IsRequired()),
	model.Text("Name", "n", model.IsRequired(), model.NotEmpty(), model.MaxLength(64)),
	model.Text("Color", "col", model.MaxLength(7)),
	model.Flag("Permission", "p", PermissionAll),
	model.Enum("PermissionLevel", "lv", PermissionLevels),
	model.Bool("IsDefault", "d"),
)

// Profile is a typed view over a profile model.
type Profile struct{ *model.Model }

// AsProfile wraps m. A nil model yields nil.
func AsProfile(m *model.Model) *Profile {
	if m == nil {
		return nil
	}
	return &Profile{m}
}

func (p *Profile) ChannelOID() oid.ID { return p.OID("ChannelOid") }
func (p *Profile) Name() string       { return p.String("Name") }

// Permission returns the granted capabilities.
func (p *Profile) Permission() Permission { return model.Value[Permission](p.Model, "Permission") }

// Level returns the permission level.
func (p *Profile) Level() PermissionLevel {
	return model.Value[PermissionLevel](p.Model, "PermissionLevel")
}

// ProfileConnectionSchema links a user in a channel to a set of profiles.
// There is one connection per (user, channel).
var ProfileConnectionSchema = model.NewSchema("ChannelProfileConnection",
	model.ObjectID("UserOid", "u", model.IsRequired()),
	model.ObjectID("ChannelOid", "ch", model.IsRequired()),
	model.Array("ProfileOids", "p", model.ObjectID("ProfileOid", "p")),
)

// ProfileConnection is a typed view over a connection model.
type ProfileConnection struct{ *model.Model }

// AsProfileConnection wraps m. A nil model yields nil.
func AsProfileConnection(m *model.Model) *ProfileConnection {
	if m == nil {
		return nil
	}
	return &ProfileConnection{m}
}

func (c *ProfileConnection) UserOID() oid.ID    { return c.OID("UserOid") }
func (c *ProfileConnection) ChannelOID() oid.ID { return c.OID("ChannelOid") }

// ProfileOIDs returns the connected profiles.
func (c *ProfileConnection) ProfileOIDs() []oid.ID {
	return model.ListOf[oid.ID](c.Model, "ProfileOids")
}
