package identity

import (
	"regexp"
	"strings"
)

// idPattern matches a mention-wrapped id or a bare 17-19 digit snowflake.
var idPattern = regexp.MustCompile(`<@!?(\d+)>|\b(\d{17,19})\b`)

// Identity is a Discord account as seen by the moderation commands.
type Identity struct {
	ID          string
	Username    string
	DisplayName string
}

// Mention returns the canonical mention form of the identity.
func (i Identity) Mention() string {
	if i.ID == "" {
		return ""
	}
	return "<@" + i.ID + ">"
}

// String prefers the account name, falling back to the id.
func (i Identity) String() string {
	if i.Username != "" {
		return i.Username
	}
	return i.ID
}

// Matches reports whether field mentions the identity in any of its textual
// encodings: raw id, <@id>, <@!id>, account name or display name.
// Name comparisons are case-insensitive.
func Matches(id Identity, field string) bool {
	if strings.TrimSpace(field) == "" {
		return false
	}
	lower := strings.ToLower(field)

	if id.ID != "" {
		if strings.Contains(field, id.ID) ||
			strings.Contains(field, "<@"+id.ID+">") ||
			strings.Contains(field, "<@!"+id.ID+">") {
			return true
		}
	}
	for _, name := range []string{id.Username, id.DisplayName} {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" && strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

// ExtractIDs scans free text for every mention-wrapped id and every bare
// 17-19 digit snowflake. Results keep order of appearance without duplicates.
func ExtractIDs(field string) []string {
	if field == "" {
		return nil
	}

	var ids []string
	seen := make(map[string]struct{})
	for _, m := range idPattern.FindAllStringSubmatch(field, -1) {
		id := m[1]
		if id == "" {
			id = m[2]
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// ContainsID reports whether id is one of the identities embedded in field.
func ContainsID(field, id string) bool {
	if id == "" {
		return false
	}
	for _, candidate := range ExtractIDs(field) {
		if candidate == id {
			return true
		}
	}
	return false
}
