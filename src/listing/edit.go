package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// EditMode selects how a new value combines with the stored one.
type EditMode string

const (
	EditReplace EditMode = "replace"
	EditAppend  EditMode = "append"
)

// Scope selects which lists an edit touches.
type Scope string

const (
	ScopeBoth      Scope = "both"
	ScopeBlacklist Scope = "blacklist"
	ScopeGreylist  Scope = "greylist"
)

// Lists expands the scope into concrete lists, blacklist first.
func (sc Scope) Lists() []List {
	switch sc {
	case ScopeBlacklist:
		return []List{Blacklist}
	case ScopeGreylist:
		return []List{Greylist}
	}
	return []List{Blacklist, Greylist}
}

var personFields = map[string]bool{
	"discord_name":  true,
	"nation_id":     true,
	"nation_url":    true,
	"possible_alts": true,
	"reason":        true,
	"proof_urls":    true,
}

var orgFields = map[string]bool{
	"company_name": true,
	"owner":        true,
	"personnel":    true,
	"alts":         true,
	"reason":       true,
	"proof_urls":   true,
}

// Edit is a single-field change to one or more list entries.
type Edit struct {
	Target     string // discord id for people, company name for organizations
	Field      string
	Value      string
	Mode       EditMode
	Scope      Scope
	ModifiedBy string
	At         time.Time
}

// CombineValue applies mode to the current and new values of field.
// Appending to an empty value behaves like replace.
func CombineValue(field, current, value string, mode EditMode) string {
	if mode != EditAppend || strings.TrimSpace(current) == "" {
		return value
	}
	switch field {
	case "proof_urls", "possible_alts", "alts":
		return current + ", " + value
	case "reason":
		return current + " | " + value
	}
	return current + " " + value
}

func personField(p *Person, field string) string {
	switch field {
	case "discord_name":
		return p.DiscordName
	case "nation_id":
		return p.NationID
	case "nation_url":
		return p.NationURL
	case "possible_alts":
		return p.PossibleAlts
	case "reason":
		return p.Reason
	case "proof_urls":
		return p.ProofURLs
	}
	return ""
}

func orgField(o *Organization, field string) string {
	switch field {
	case "company_name":
		return o.CompanyName
	case "owner":
		return o.Owner
	case "personnel":
		return o.Personnel
	case "alts":
		return o.Alts
	case "reason":
		return o.Reason
	case "proof_urls":
		return o.ProofURLs
	}
	return ""
}

// EditPerson applies e to the person identified by e.Target on every list in
// scope. It returns the updated rows; ErrNotFound if no list holds the person.
func (s *Store) EditPerson(ctx context.Context, e Edit) ([]PersonMatch, error) {
	if !personFields[e.Field] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidField, e.Field)
	}

	var out []PersonMatch
	for _, list := range e.Scope.Lists() {
		p, err := s.FindPersonIn(ctx, list, e.Target)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return out, err
		}

		value := CombineValue(e.Field, personField(p, e.Field), e.Value, e.Mode)
		if err := s.updateRow(ctx, PersonTable(list), p.ID, e, value); err != nil {
			return out, err
		}

		var updated Person
		if err := s.table(ctx, PersonTable(list)).Where("id = ?", p.ID).First(&updated).Error; err != nil {
			return out, fmt.Errorf("listing: reload %s: %w", PersonTable(list), err)
		}
		out = append(out, PersonMatch{Person: updated, List: list})
	}

	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// EditOrganization applies e to the organization matching e.Target.
func (s *Store) EditOrganization(ctx context.Context, e Edit) ([]OrgMatch, error) {
	if !orgFields[e.Field] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidField, e.Field)
	}

	var out []OrgMatch
	for _, list := range e.Scope.Lists() {
		o, err := s.FindOrganizationIn(ctx, list, e.Target)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return out, err
		}

		value := CombineValue(e.Field, orgField(o, e.Field), e.Value, e.Mode)
		if err := s.updateRow(ctx, OrgTable(list), o.ID, e, value); err != nil {
			return out, err
		}

		var updated Organization
		if err := s.table(ctx, OrgTable(list)).Where("id = ?", o.ID).First(&updated).Error; err != nil {
			return out, fmt.Errorf("listing: reload %s: %w", OrgTable(list), err)
		}
		out = append(out, OrgMatch{Organization: updated, List: list})
	}

	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

func (s *Store) updateRow(ctx context.Context, table string, id uint64, e Edit, value string) error {
	at := e.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	err := s.table(ctx, table).Where("id = ?", id).Updates(map[string]interface{}{
		e.Field:         value,
		"last_modified": at,
		"modified_by":   e.ModifiedBy,
	}).Error
	if err != nil {
		return fmt.Errorf("listing: update %s: %w", table, err)
	}
	return nil
}
