package auth

import (
	"github.com/dx-community/modmail/internal/config"
	"github.com/dx-community/modmail/internal/gateway"
)

// Predicate decides whether a guild member may run a command.
type Predicate func(member *gateway.Member) bool

// Checker builds permission predicates against the configured staff roles.
type Checker struct {
	cfg config.DiscordConfig
}

// NewChecker constructs a checker from the guild configuration.
func NewChecker(cfg config.DiscordConfig) *Checker {
	return &Checker{cfg: cfg}
}

func hasRole(member *gateway.Member, roleID string) bool {
	if roleID == "" {
		return false
	}
	for _, id := range member.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// ManageChannels allows members with the manage-channels permission.
func (c *Checker) ManageChannels(member *gateway.Member) bool {
	if member == nil {
		return false
	}
	return member.Administrator || member.ManageChannels
}

// ManageGuild allows members with the manage-guild permission.
func (c *Checker) ManageGuild(member *gateway.Member) bool {
	if member == nil {
		return false
	}
	return member.Administrator || member.ManageGuild
}

// Staff allows members holding any configured staff role.
func (c *Checker) Staff(member *gateway.Member) bool {
	if member == nil {
		return false
	}
	return hasRole(member, c.cfg.StaffRoleID) ||
		hasRole(member, c.cfg.JuniorModRoleID) ||
		hasRole(member, c.cfg.ExtraStaffRoleID)
}

// StaffOrManageChannels allows staff-role holders and channel managers.
func (c *Checker) StaffOrManageChannels(member *gateway.Member) bool {
	return c.Staff(member) || c.ManageChannels(member)
}

// AuthorizedUser allows only the configured admin user.
func (c *Checker) AuthorizedUser(member *gateway.Member) bool {
	if member == nil || c.cfg.AdminUserID == "" {
		return false
	}
	return member.User.ID == c.cfg.AdminUserID
}
