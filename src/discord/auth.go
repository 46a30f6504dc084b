package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// HasRole checks whether a user has a role in a guild. Empty roleID always returns true.
func HasRole(s *discordgo.Session, guildID, userID, roleID string) bool {
	if roleID == "" {
		return true
	}
	member, err := s.GuildMember(guildID, userID)
	if err != nil {
		return false
	}
	return MemberHasRole(member, roleID)
}

// MemberHasRole checks an already loaded member.
func MemberHasRole(member *discordgo.Member, roleID string) bool {
	if roleID == "" {
		return true
	}
	if member == nil {
		return false
	}
	for _, role := range member.Roles {
		if role == roleID {
			return true
		}
	}
	return false
}

// HasRoleNamed checks membership by role name. Empty name always returns true.
func HasRoleNamed(s *discordgo.Session, guildID string, member *discordgo.Member, name string) bool {
	if name == "" {
		return true
	}
	roleID, ok := RoleIDByName(s, guildID, name)
	if !ok {
		return false
	}
	return MemberHasRole(member, roleID)
}

// RoleIDByName resolves a role name, preferring the state cache.
func RoleIDByName(s *discordgo.Session, guildID, name string) (string, bool) {
	var roles []*discordgo.Role
	if s.State != nil {
		if g, err := s.State.Guild(guildID); err == nil {
			roles = g.Roles
		}
	}
	if len(roles) == 0 {
		fetched, err := s.GuildRoles(guildID)
		if err != nil {
			return "", false
		}
		roles = fetched
	}
	return findRole(roles, name)
}

func findRole(roles []*discordgo.Role, name string) (string, bool) {
	for _, r := range roles {
		if r != nil && strings.EqualFold(r.Name, name) {
			return r.ID, true
		}
	}
	return "", false
}
