package auth

import (
	"testing"

	"github.com/dx-community/modmail/internal/config"
	"github.com/dx-community/modmail/internal/gateway"
)

func testChecker() *Checker {
	return NewChecker(config.DiscordConfig{
		StaffRoleID:      "staff",
		JuniorModRoleID:  "junior",
		ExtraStaffRoleID: "extra",
		AdminUserID:      "admin1",
	})
}

func member(userID string, roles []string) *gateway.Member {
	return &gateway.Member{
		User:           gateway.User{ID: userID},
		RoleIDs:        roles,
		PresentInGuild: true,
	}
}

func TestChecker_Staff(t *testing.T) {
	c := testChecker()

	cases := map[string]struct {
		member *gateway.Member
		want   bool
	}{
		"senior staff": {member("u1", []string{"staff"}), true},
		"junior mod":   {member("u2", []string{"junior"}), true},
		"extra role":   {member("u3", []string{"other", "extra"}), true},
		"no roles":     {member("u4", nil), false},
		"wrong role":   {member("u5", []string{"member"}), false},
		"nil member":   {nil, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := c.Staff(tc.member); got != tc.want {
				t.Fatalf("Staff = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestChecker_ManagePermissions(t *testing.T) {
	c := testChecker()

	manager := member("u1", nil)
	manager.ManageChannels = true
	admin := member("u2", nil)
	admin.Administrator = true

	if !c.ManageChannels(manager) {
		t.Fatalf("manage-channels member should pass")
	}
	if !c.ManageChannels(admin) || !c.ManageGuild(admin) {
		t.Fatalf("administrator implies every manage permission")
	}
	if c.ManageGuild(manager) {
		t.Fatalf("manage-channels must not imply manage-guild")
	}
	if !c.StaffOrManageChannels(manager) {
		t.Fatalf("manage-channels should satisfy staff-or-manage-channels")
	}
	if !c.StaffOrManageChannels(member("u3", []string{"junior"})) {
		t.Fatalf("staff role should satisfy staff-or-manage-channels")
	}
}

func TestChecker_AuthorizedUser(t *testing.T) {
	c := testChecker()

	if !c.AuthorizedUser(member("admin1", nil)) {
		t.Fatalf("configured admin should pass")
	}
	if c.AuthorizedUser(member("someone", []string{"staff"})) {
		t.Fatalf("staff role must not grant admin-only commands")
	}

	unconfigured := NewChecker(config.DiscordConfig{})
	if unconfigured.AuthorizedUser(member("admin1", nil)) {
		t.Fatalf("empty admin config must reject everyone")
	}
}
