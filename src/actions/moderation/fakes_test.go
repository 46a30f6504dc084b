package moderation

import (
	"context"
	"strings"
	"time"

	"github.com/obrc/blacklist/src/listing"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// memLists mirrors listing.Store lookups over slices.
type memLists struct {
	people map[listing.List][]listing.Person
	orgs   map[listing.List][]listing.Organization
	edits  []listing.Edit
}

func newMemLists() *memLists {
	return &memLists{
		people: map[listing.List][]listing.Person{},
		orgs:   map[listing.List][]listing.Organization{},
	}
}

func (m *memLists) personIndex(list listing.List, id string) int {
	if id == "" {
		return -1
	}
	rows := m.people[list]
	for i := range rows {
		if rows[i].DiscordID == id {
			return i
		}
	}
	if p, ok := listing.FirstByAlias(rows, id); ok {
		for i := range rows {
			if &rows[i] == p {
				return i
			}
		}
	}
	return -1
}

func (m *memLists) orgIndex(list listing.List, name string) int {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return -1
	}
	for i, o := range m.orgs[list] {
		if strings.Contains(strings.ToLower(o.CompanyName), name) {
			return i
		}
	}
	return -1
}

func (m *memLists) FindPerson(ctx context.Context, id string) (*listing.PersonMatch, error) {
	for _, l := range []listing.List{listing.Blacklist, listing.Greylist} {
		if p, err := m.FindPersonIn(ctx, l, id); err == nil {
			return &listing.PersonMatch{Person: *p, List: l}, nil
		}
	}
	return nil, listing.ErrNotFound
}

func (m *memLists) FindPersonIn(_ context.Context, l listing.List, id string) (*listing.Person, error) {
	if i := m.personIndex(l, id); i >= 0 {
		p := m.people[l][i]
		return &p, nil
	}
	return nil, listing.ErrNotFound
}

func (m *memLists) FindPersonByNation(ctx context.Context, term string) (*listing.PersonMatch, error) {
	id := listing.ParseNationID(term)
	for _, l := range []listing.List{listing.Blacklist, listing.Greylist} {
		if p, err := m.FindPersonByNationIn(ctx, l, id); err == nil {
			return &listing.PersonMatch{Person: *p, List: l}, nil
		}
	}
	return nil, listing.ErrNotFound
}

func (m *memLists) FindPersonByNationIn(_ context.Context, l listing.List, id string) (*listing.Person, error) {
	for _, p := range m.people[l] {
		if id != "" && p.NationID == id {
			return &p, nil
		}
	}
	return nil, listing.ErrNotFound
}

func (m *memLists) FindOrganization(ctx context.Context, name string) (*listing.OrgMatch, error) {
	for _, l := range []listing.List{listing.Blacklist, listing.Greylist} {
		if o, err := m.FindOrganizationIn(ctx, l, name); err == nil {
			return &listing.OrgMatch{Organization: *o, List: l}, nil
		}
	}
	return nil, listing.ErrNotFound
}

func (m *memLists) FindOrganizationIn(_ context.Context, l listing.List, name string) (*listing.Organization, error) {
	if i := m.orgIndex(l, name); i >= 0 {
		o := m.orgs[l][i]
		return &o, nil
	}
	return nil, listing.ErrNotFound
}

func (m *memLists) InsertPerson(_ context.Context, l listing.List, p *listing.Person) error {
	m.people[l] = append(m.people[l], *p)
	return nil
}

func (m *memLists) InsertOrganization(_ context.Context, l listing.List, o *listing.Organization) error {
	m.orgs[l] = append(m.orgs[l], *o)
	return nil
}

func (m *memLists) DeletePerson(_ context.Context, l listing.List, id string) (*listing.Person, error) {
	i := m.personIndex(l, id)
	if i < 0 {
		return nil, listing.ErrNotFound
	}
	p := m.people[l][i]
	m.people[l] = append(m.people[l][:i], m.people[l][i+1:]...)
	return &p, nil
}

func (m *memLists) DeletePersonByNation(_ context.Context, l listing.List, id string) (*listing.Person, error) {
	for i, p := range m.people[l] {
		if p.NationID == id {
			m.people[l] = append(m.people[l][:i], m.people[l][i+1:]...)
			return &p, nil
		}
	}
	return nil, listing.ErrNotFound
}

func (m *memLists) DeleteOrganization(_ context.Context, l listing.List, name string) (*listing.Organization, error) {
	i := m.orgIndex(l, name)
	if i < 0 {
		return nil, listing.ErrNotFound
	}
	o := m.orgs[l][i]
	m.orgs[l] = append(m.orgs[l][:i], m.orgs[l][i+1:]...)
	return &o, nil
}

func setPersonField(p *listing.Person, field, value string) {
	switch field {
	case "nation_id":
		p.NationID = value
	case "nation_url":
		p.NationURL = value
	case "possible_alts":
		p.PossibleAlts = value
	case "reason":
		p.Reason = value
	case "proof_urls":
		p.ProofURLs = value
	}
}

func getPersonField(p listing.Person, field string) string {
	switch field {
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

func (m *memLists) EditPerson(_ context.Context, e listing.Edit) ([]listing.PersonMatch, error) {
	m.edits = append(m.edits, e)
	var out []listing.PersonMatch
	for _, l := range e.Scope.Lists() {
		i := m.personIndex(l, e.Target)
		if i < 0 {
			continue
		}
		p := &m.people[l][i]
		setPersonField(p, e.Field, listing.CombineValue(e.Field, getPersonField(*p, e.Field), e.Value, e.Mode))
		at := e.At
		p.LastModified, p.ModifiedBy = &at, e.ModifiedBy
		out = append(out, listing.PersonMatch{Person: *p, List: l})
	}
	if len(out) == 0 {
		return nil, listing.ErrNotFound
	}
	return out, nil
}

func (m *memLists) EditOrganization(_ context.Context, e listing.Edit) ([]listing.OrgMatch, error) {
	m.edits = append(m.edits, e)
	var out []listing.OrgMatch
	for _, l := range e.Scope.Lists() {
		i := m.orgIndex(l, e.Target)
		if i < 0 {
			continue
		}
		o := &m.orgs[l][i]
		switch e.Field {
		case "company_name":
			o.CompanyName = listing.CombineValue(e.Field, o.CompanyName, e.Value, e.Mode)
		case "owner":
			o.Owner = listing.CombineValue(e.Field, o.Owner, e.Value, e.Mode)
		case "reason":
			o.Reason = listing.CombineValue(e.Field, o.Reason, e.Value, e.Mode)
		}
		out = append(out, listing.OrgMatch{Organization: *o, List: l})
	}
	if len(out) == 0 {
		return nil, listing.ErrNotFound
	}
	return out, nil
}

func (m *memLists) People(_ context.Context, l listing.List) ([]listing.Person, error) {
	return m.people[l], nil
}

func (m *memLists) Organizations(_ context.Context, l listing.List) ([]listing.Organization, error) {
	return m.orgs[l], nil
}
