package listing

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/obrc/blacklist/src/identity"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no entry matches a lookup or delete.
	ErrNotFound = errors.New("listing: entry not found")
	// ErrInvalidField is returned when an edit names a column that is not editable.
	ErrInvalidField = errors.New("listing: field cannot be edited")
)

var nationIDPattern = regexp.MustCompile(`id=(\d+)`)

// Store maps list entries onto the four list tables.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store over db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// AutoMigrate creates or updates the list tables.
func (s *Store) AutoMigrate() error {
	for _, table := range []string{TablePersonBlacklist, TablePersonGreylist} {
		if err := s.db.Table(table).AutoMigrate(&Person{}); err != nil {
			return fmt.Errorf("listing: migrate %s: %w", table, err)
		}
	}
	for _, table := range []string{TableOrgBlacklist, TableOrgGreylist} {
		if err := s.db.Table(table).AutoMigrate(&Organization{}); err != nil {
			return fmt.Errorf("listing: migrate %s: %w", table, err)
		}
	}
	return nil
}

func (s *Store) table(ctx context.Context, name string) *gorm.DB {
	return s.db.WithContext(ctx).Table(name)
}

// FindPerson searches the blacklist and then the greylist for discordID,
// first by the id column and then by scanning alias fields.
func (s *Store) FindPerson(ctx context.Context, discordID string) (*PersonMatch, error) {
	for _, list := range []List{Blacklist, Greylist} {
		p, err := s.FindPersonIn(ctx, list, discordID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &PersonMatch{Person: *p, List: list}, nil
	}
	return nil, ErrNotFound
}

// FindPersonIn looks up discordID on a single list.
func (s *Store) FindPersonIn(ctx context.Context, list List, discordID string) (*Person, error) {
	discordID = strings.TrimSpace(discordID)
	if discordID == "" {
		return nil, ErrNotFound
	}
	table := PersonTable(list)

	var rows []Person
	if err := s.table(ctx, table).Where("discord_id = ?", discordID).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing: search %s: %w", table, err)
	}
	if len(rows) > 0 {
		return &rows[0], nil
	}

	var all []Person
	if err := s.table(ctx, table).Where("possible_alts <> ''").Find(&all).Error; err != nil {
		return nil, fmt.Errorf("listing: scan %s aliases: %w", table, err)
	}
	if p, ok := FirstByAlias(all, discordID); ok {
		return p, nil
	}
	return nil, ErrNotFound
}

// ParseNationID accepts a bare nation id or a profile URL containing id=N.
func ParseNationID(term string) string {
	term = strings.TrimSpace(term)
	if strings.Contains(term, "nation/id=") {
		if m := nationIDPattern.FindStringSubmatch(term); len(m) == 2 {
			return m[1]
		}
	}
	return term
}

// FindPersonByNation searches both lists by nation id or nation URL.
func (s *Store) FindPersonByNation(ctx context.Context, term string) (*PersonMatch, error) {
	nationID := ParseNationID(term)
	for _, list := range []List{Blacklist, Greylist} {
		p, err := s.FindPersonByNationIn(ctx, list, nationID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &PersonMatch{Person: *p, List: list}, nil
	}
	return nil, ErrNotFound
}

// FindPersonByNationIn looks up a nation id on a single list.
func (s *Store) FindPersonByNationIn(ctx context.Context, list List, nationID string) (*Person, error) {
	if nationID == "" {
		return nil, ErrNotFound
	}
	table := PersonTable(list)
	var rows []Person
	if err := s.table(ctx, table).Where("nation_id = ?", nationID).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing: search %s by nation: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// FindOrganization searches both organization lists by case-insensitive
// substring of the company name.
func (s *Store) FindOrganization(ctx context.Context, name string) (*OrgMatch, error) {
	for _, list := range []List{Blacklist, Greylist} {
		o, err := s.FindOrganizationIn(ctx, list, name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &OrgMatch{Organization: *o, List: list}, nil
	}
	return nil, ErrNotFound
}

// FindOrganizationIn searches a single organization list.
func (s *Store) FindOrganizationIn(ctx context.Context, list List, name string) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNotFound
	}
	table := OrgTable(list)
	var rows []Organization
	if err := s.table(ctx, table).
		Where("LOWER(company_name) LIKE ? ESCAPE '!'", likePattern(name)).
		Order("id").Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing: search %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// InsertPerson adds p to list.
func (s *Store) InsertPerson(ctx context.Context, list List, p *Person) error {
	if err := s.table(ctx, PersonTable(list)).Create(p).Error; err != nil {
		return fmt.Errorf("listing: insert into %s: %w", PersonTable(list), err)
	}
	return nil
}

// InsertOrganization adds o to list.
func (s *Store) InsertOrganization(ctx context.Context, list List, o *Organization) error {
	if err := s.table(ctx, OrgTable(list)).Create(o).Error; err != nil {
		return fmt.Errorf("listing: insert into %s: %w", OrgTable(list), err)
	}
	return nil
}

// DeletePerson removes the entry for discordID from list, matching the id
// column first and alias fields second. The removed row is returned.
func (s *Store) DeletePerson(ctx context.Context, list List, discordID string) (*Person, error) {
	p, err := s.FindPersonIn(ctx, list, discordID)
	if err != nil {
		return nil, err
	}
	return p, s.deleteRow(ctx, PersonTable(list), p.ID, &Person{})
}

// DeletePersonByNation removes the entry for nationID from list.
func (s *Store) DeletePersonByNation(ctx context.Context, list List, nationID string) (*Person, error) {
	p, err := s.FindPersonByNationIn(ctx, list, nationID)
	if err != nil {
		return nil, err
	}
	return p, s.deleteRow(ctx, PersonTable(list), p.ID, &Person{})
}

// DeleteOrganization removes the first organization on list matching name.
func (s *Store) DeleteOrganization(ctx context.Context, list List, name string) (*Organization, error) {
	o, err := s.FindOrganizationIn(ctx, list, name)
	if err != nil {
		return nil, err
	}
	return o, s.deleteRow(ctx, OrgTable(list), o.ID, &Organization{})
}

func (s *Store) deleteRow(ctx context.Context, table string, id uint64, model interface{}) error {
	res := s.table(ctx, table).Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return fmt.Errorf("listing: delete from %s: %w", table, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// People returns every person on list, newest first.
func (s *Store) People(ctx context.Context, list List) ([]Person, error) {
	var rows []Person
	if err := s.table(ctx, PersonTable(list)).Order("date_added DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing: load %s: %w", PersonTable(list), err)
	}
	return rows, nil
}

// Organizations returns every organization on list, newest first.
func (s *Store) Organizations(ctx context.Context, list List) ([]Organization, error) {
	var rows []Organization
	if err := s.table(ctx, OrgTable(list)).Order("date_added DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing: load %s: %w", OrgTable(list), err)
	}
	return rows, nil
}

// FirstByAlias returns the first person whose alias field embeds id.
func FirstByAlias(people []Person, id string) (*Person, bool) {
	for i := range people {
		if identity.ContainsID(people[i].PossibleAlts, id) {
			return &people[i], true
		}
	}
	return nil, false
}

// likePattern builds a substring pattern escaped with '!', which both MySQL
// and SQLite accept in an ESCAPE clause.
func likePattern(term string) string {
	r := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return "%" + r.Replace(strings.ToLower(term)) + "%"
}
