package domain

import (
	"github.com/tbourn/go-autoreply-backend/internal/model"
	"github.com/tbourn/go-autoreply-backend/internal/oid"
)

// ChannelConfigSchema holds per-channel settings.
var ChannelConfigSchema = model.NewSchema("ChannelConfig",
	model.Text("DefaultName", "dn", model.MaxLength(128)),
	model.ObjectID("DefaultProfileOid", "dp", model.AllowNone(), model.Default(nil)),
	model.Bool("InfoPrivate", "ip"),
	model.Bool("BotAccessible", "ba", model.Default(true)),
)

// ChannelSchema is a chat room observed on a platform, unique per
// (platform, token). Nicknames maps a user id (hex) to a per-channel
// display name override.
var ChannelSchema = model.NewSchema("Channel",
	model.Enum("Platform", "p", Platforms, model.IsRequired()),
	model.Text("Token", "t", model.IsRequired(), model.NotEmpty()),
	model.Nested("Config", "cfg", ChannelConfigSchema, model.Default(model.Values{})),
	model.Dict("Nicknames", "nn", model.Text("Nickname", "nn", model.MaxLength(128))),
)

// Channel is a typed view over a channel model.
type Channel struct{ *model.Model }

// AsChannel wraps m. A nil model yields nil.
func AsChannel(m *model.Model) *Channel {
	if m == nil {
		return nil
	}
	return &Channel{m}
}

// Platform returns the hosting platform.
func (c *Channel) Platform() Platform { return model.Value[Platform](c.Model, "Platform") }

// Token returns the platform-side channel identifier.
func (c *Channel) Token() string { return c.String("Token") }

func (c *Channel) config() *model.Model { return c.Nested("Config") }

// DefaultName returns the configured display name.
func (c *Channel) DefaultName() string {
	if cfg := c.config(); cfg != nil {
		return cfg.String("DefaultName")
	}
	return ""
}

// DefaultProfileOID returns the profile new members are connected to.
func (c *Channel) DefaultProfileOID() oid.ID {
	if cfg := c.config(); cfg != nil {
		return cfg.OID("DefaultProfileOid")
	}
	return oid.Nil
}

// InfoPrivate reports whether channel info is hidden from non-members.
func (c *Channel) InfoPrivate() bool {
	cfg := c.config()
	return cfg != nil && cfg.Bool("InfoPrivate")
}

// BotAccessible reports whether the bot can still post to the channel.
func (c *Channel) BotAccessible() bool {
	cfg := c.config()
	return cfg != nil && cfg.Bool("BotAccessible")
}

// Nickname returns the name override for user, if any.
func (c *Channel) Nickname(user oid.ID) (string, bool) {
	s, ok := c.Map("Nicknames")[user.Hex()].(string)
	return s, ok
}

// DisplayName is the default name, or the token when none is set.
func (c *Channel) DisplayName() string {
	if n := c.DefaultName(); n != "" {
		return n
	}
	return c.Token()
}
