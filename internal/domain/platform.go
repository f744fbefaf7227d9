package domain

// Platform identifies the chat service a channel or user lives on.
type Platform int

const (
	PlatformUnknown Platform = iota
	PlatformLine
	PlatformDiscord
)

// Platforms lists the registrable platforms.
var Platforms = []Platform{PlatformLine, PlatformDiscord}

func (p Platform) String() string {
	switch p {
	case PlatformLine:
		return "LINE"
	case PlatformDiscord:
		return "DISCORD"
	}
	return "UNKNOWN"
}

// Permission is a bit set of channel capabilities granted by a profile.
type Permission int

const (
	PermissionNone Permission = 0
	// AccessPinned allows creating, overwriting and removing pinned modules.
	AccessPinned Permission = 1 << 0
	// ManageProfiles allows editing profiles and their connections.
	ManageProfiles Permission = 1 << 1
	// ChangeChannelConfig allows editing channel configuration.
	ChangeChannelConfig Permission = 1 << 2

	PermissionAll = AccessPinned | ManageProfiles | ChangeChannelConfig
)

// Has reports whether every bit of q is set in p.
func (p Permission) Has(q Permission) bool { return p&q == q }

// PermissionLevel ranks members of a channel.
type PermissionLevel int

const (
	LevelNormal PermissionLevel = iota
	LevelMod
	LevelAdmin
)

// PermissionLevels lists every level in ascending order.
var PermissionLevels = []PermissionLevel{LevelNormal, LevelMod, LevelAdmin}

func (l PermissionLevel) String() string {
	switch l {
	case LevelNormal:
		return "NORMAL"
	case LevelMod:
		return "MOD"
	case LevelAdmin:
		return "ADMIN"
	}
	return "UNKNOWN"
}
