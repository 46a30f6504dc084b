package moderation

import (
	"context"
	"errors"

	"github.com/obrc/blacklist/src/identity"
	"github.com/obrc/blacklist/src/listing"
)

// Roles managed on member join.
const (
	RoleBlacklisted      = "Blacklisted"
	RoleCompanyOwner     = "Company Blacklist (Owner)"
	RoleCompanyPersonnel = "Company Blacklist (Personnel)"
)

// AutoRoleNames lists the managed roles.
var AutoRoleNames = []string{RoleBlacklisted, RoleCompanyOwner, RoleCompanyPersonnel}

// RolesFor reports which managed roles member should hold. Only blacklist
// entries grant roles.
func (s *Service) RolesFor(ctx context.Context, member identity.Identity) (map[string]bool, error) {
	want := make(map[string]bool, len(AutoRoleNames))

	if _, err := s.lists.FindPersonIn(ctx, listing.Blacklist, member.ID); err == nil {
		want[RoleBlacklisted] = true
	} else if !errors.Is(err, listing.ErrNotFound) {
		return nil, err
	}

	orgs, err := s.lists.Organizations(ctx, listing.Blacklist)
	if err != nil {
		return nil, err
	}
	for _, o := range orgs {
		if identity.Matches(member, o.Owner) {
			want[RoleCompanyOwner] = true
		}
		if identity.Matches(member, o.Personnel) || identity.Matches(member, o.Alts) {
			want[RoleCompanyPersonnel] = true
		}
	}
	return want, nil
}

// RoleChanges diffs the wanted managed roles against the member's current
// role ids. roleIDs maps managed role names to guild role ids.
func RoleChanges(want map[string]bool, roleIDs map[string]string, current []string) (add, remove []string) {
	has := make(map[string]bool, len(current))
	for _, id := range current {
		has[id] = true
	}
	for _, name := range AutoRoleNames {
		id, ok := roleIDs[name]
		if !ok {
			continue
		}
		switch {
		case want[name] && !has[id]:
			add = append(add, id)
		case !want[name] && has[id]:
			remove = append(remove, id)
		}
	}
	return add, remove
}
