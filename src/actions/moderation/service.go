package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/obrc/blacklist/src/export"
	"github.com/obrc/blacklist/src/identity"
	"github.com/obrc/blacklist/src/listing"
	"github.com/obrc/blacklist/src/voting"
)

var (
	// ErrNoTargets is returned when an edit names nobody.
	ErrNoTargets = errors.New("moderation: no targets given")
	// ErrNoChanges is returned when an edit carries no field values.
	ErrNoChanges = errors.New("moderation: no fields to change")
	// ErrUnknownList is returned for an export of an unknown table.
	ErrUnknownList = errors.New("moderation: unknown list")
)

// Lists is the list store as used by the commands.
type Lists interface {
	voting.ListStore
	EditPerson(ctx context.Context, e listing.Edit) ([]listing.PersonMatch, error)
	EditOrganization(ctx context.Context, e listing.Edit) ([]listing.OrgMatch, error)
	People(ctx context.Context, list listing.List) ([]listing.Person, error)
	Organizations(ctx context.Context, list listing.List) ([]listing.Organization, error)
}

// Service implements the slash commands without any Discord types.
type Service struct {
	builder *voting.Builder
	lists   Lists
	clock   voting.Clock
}

// NewService returns a Service.
func NewService(builder *voting.Builder, lists Lists, clock voting.Clock) *Service {
	if clock == nil {
		clock = voting.SystemClock
	}
	return &Service{builder: builder, lists: lists, clock: clock}
}

// Propose opens a voting ticket.
func (s *Service) Propose(ctx context.Context, req voting.Request) (*voting.Ticket, error) {
	return s.builder.Open(ctx, req)
}

// AddEvidence opens an evidence sub-vote in an active ticket channel.
func (s *Service) AddEvidence(ctx context.Context, req voting.EvidenceRequest) (*voting.EvidenceVote, error) {
	return s.builder.OpenEvidence(ctx, req)
}

// SearchMember looks a member up on both person lists.
func (s *Service) SearchMember(ctx context.Context, discordID string) (*listing.PersonMatch, error) {
	return s.lists.FindPerson(ctx, discordID)
}

// SearchNation looks up a nation id or profile URL.
func (s *Service) SearchNation(ctx context.Context, term string) (*listing.PersonMatch, error) {
	return s.lists.FindPersonByNation(ctx, term)
}

// SearchCompany looks up a company by name fragment.
func (s *Service) SearchCompany(ctx context.Context, name string) (*listing.OrgMatch, error) {
	return s.lists.FindOrganization(ctx, name)
}

// FieldChange is one column value supplied to an edit command.
type FieldChange struct {
	Field string
	Value string
}

// EditRequest is an edit_entry or edit_company_entry invocation.
type EditRequest struct {
	// Targets holds mentions or ids for people and comma separated names
	// for companies.
	Targets string
	Mode    listing.EditMode
	Scope   listing.Scope
	Changes []FieldChange
	Editor  identity.Identity
}

// EditResult reports what happened to one target.
type EditResult struct {
	Target string
	Lists  []listing.List
	Err    error
}

func (r EditResult) OK() bool { return r.Err == nil }

func (req EditRequest) normalized() (EditRequest, error) {
	var changes []FieldChange
	for _, c := range req.Changes {
		if v := strings.TrimSpace(c.Value); v != "" {
			changes = append(changes, FieldChange{Field: c.Field, Value: v})
		}
	}
	if len(changes) == 0 {
		return req, ErrNoChanges
	}
	req.Changes = changes
	if req.Mode != listing.EditAppend {
		req.Mode = listing.EditReplace
	}
	switch req.Scope {
	case listing.ScopeBlacklist, listing.ScopeGreylist:
	default:
		req.Scope = listing.ScopeBoth
	}
	return req, nil
}

// EditPeople applies the changes to every person named in req.Targets.
func (s *Service) EditPeople(ctx context.Context, req EditRequest) ([]EditResult, error) {
	req, err := req.normalized()
	if err != nil {
		return nil, err
	}
	targets := identity.ExtractIDs(req.Targets)
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	changes := req.Changes
	for _, c := range req.Changes {
		if c.Field == "nation_id" {
			id := listing.ParseNationID(c.Value)
			changes = append(changes, FieldChange{Field: "nation_url", Value: listing.NationURL(id)})
		}
	}

	results := make([]EditResult, 0, len(targets))
	for _, target := range targets {
		res := EditResult{Target: target}
		touched := map[listing.List]bool{}
		for _, c := range changes {
			value, mode := c.Value, req.Mode
			switch c.Field {
			case "nation_id":
				value, mode = listing.ParseNationID(value), listing.EditReplace
			case "nation_url":
				mode = listing.EditReplace
			}
			matches, err := s.lists.EditPerson(ctx, s.edit(req, target, c.Field, value, mode))
			if err != nil {
				res.Err = err
				break
			}
			for _, m := range matches {
				touched[m.List] = true
			}
		}
		res.Lists = orderedLists(touched)
		results = append(results, res)
	}
	return results, nil
}

// EditCompanies applies the changes to every comma separated company name.
func (s *Service) EditCompanies(ctx context.Context, req EditRequest) ([]EditResult, error) {
	req, err := req.normalized()
	if err != nil {
		return nil, err
	}
	var targets []string
	for _, name := range strings.Split(req.Targets, ",") {
		if name = strings.TrimSpace(name); name != "" {
			targets = append(targets, name)
		}
	}
	if len(targets) == 0 {
		return nil, ErrNoTargets
	}

	results := make([]EditResult, 0, len(targets))
	for _, target := range targets {
		res := EditResult{Target: target}
		touched := map[listing.List]bool{}
		for _, c := range req.Changes {
			matches, err := s.lists.EditOrganization(ctx, s.edit(req, target, c.Field, c.Value, req.Mode))
			if err != nil {
				res.Err = err
				break
			}
			for _, m := range matches {
				touched[m.List] = true
			}
			// A renamed company is found by its new name from here on.
			if c.Field == "company_name" && req.Mode == listing.EditReplace {
				target = c.Value
			}
		}
		res.Lists = orderedLists(touched)
		results = append(results, res)
	}
	return results, nil
}

func (s *Service) edit(req EditRequest, target, field, value string, mode listing.EditMode) listing.Edit {
	return listing.Edit{
		Target:     target,
		Field:      field,
		Value:      value,
		Mode:       mode,
		Scope:      req.Scope,
		ModifiedBy: req.Editor.String(),
		At:         s.clock.Now(),
	}
}

func orderedLists(set map[listing.List]bool) []listing.List {
	var out []listing.List
	for _, l := range []listing.List{listing.Blacklist, listing.Greylist} {
		if set[l] {
			out = append(out, l)
		}
	}
	return out
}

// ParseTable maps an export table name onto a list and entity kind.
func ParseTable(name string) (list listing.List, orgs bool, err error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", listing.TablePersonBlacklist:
		return listing.Blacklist, false, nil
	case listing.TablePersonGreylist:
		return listing.Greylist, false, nil
	case listing.TableOrgBlacklist:
		return listing.Blacklist, true, nil
	case listing.TableOrgGreylist:
		return listing.Greylist, true, nil
	}
	return "", false, fmt.Errorf("%w: %s", ErrUnknownList, name)
}

// Export renders one list table as an xlsx attachment.
func (s *Service) Export(ctx context.Context, table string) (voting.File, int, error) {
	list, orgs, err := ParseTable(table)
	if err != nil {
		return voting.File{}, 0, err
	}
	doc, err := export.Render(ctx, s.lists, list, orgs, s.clock.Now())
	if err != nil {
		return voting.File{}, 0, err
	}
	return voting.File{Name: doc.Name, ContentType: doc.ContentType, Data: doc.Data}, doc.Rows, nil
}
