package listing

import (
	"fmt"
	"strings"
	"time"
)

// List names one of the two membership lists.
type List string

const (
	Blacklist List = "blacklist"
	Greylist  List = "greylist"
)

// Valid reports whether l is a known list.
func (l List) Valid() bool {
	return l == Blacklist || l == Greylist
}

// Title is the display form of the list name.
func (l List) Title() string {
	switch l {
	case Blacklist:
		return "Blacklist"
	case Greylist:
		return "Greylist"
	}
	return string(l)
}

// Table names of the four list tables.
const (
	TablePersonBlacklist = "blacklist"
	TablePersonGreylist  = "greylist"
	TableOrgBlacklist    = "blacklist_coo"
	TableOrgGreylist     = "greylist_coo"
)

// PersonTable returns the table holding people on list l.
func PersonTable(l List) string {
	if l == Greylist {
		return TablePersonGreylist
	}
	return TablePersonBlacklist
}

// OrgTable returns the table holding organizations on list l.
func OrgTable(l List) string {
	if l == Greylist {
		return TableOrgGreylist
	}
	return TableOrgBlacklist
}

// Person is a listed individual. The same struct backs both the blacklist and
// greylist tables.
type Person struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DiscordID    string     `gorm:"size:32;index" json:"discord_id"`
	DiscordName  string     `gorm:"size:128" json:"discord_name"`
	NationID     string     `gorm:"size:32;index" json:"nation_id"`
	NationURL    string     `gorm:"size:256" json:"nation_url"`
	PossibleAlts string     `gorm:"type:text" json:"possible_alts"`
	Reason       string     `gorm:"type:text" json:"reason"`
	ProofURLs    string     `gorm:"type:text" json:"proof_urls"`
	AddedBy      string     `gorm:"size:128" json:"added_by"`
	DateAdded    time.Time  `gorm:"autoCreateTime" json:"date_added"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	ModifiedBy   string     `gorm:"size:128" json:"modified_by,omitempty"`
}

// Proofs splits the stored proof references back into an ordered list.
func (p Person) Proofs() []string { return SplitProofs(p.ProofURLs) }

// Organization is a listed company together with its people.
type Organization struct {
	ID           uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CompanyName  string     `gorm:"size:128;index" json:"company_name"`
	Owner        string     `gorm:"type:text" json:"owner"`
	Personnel    string     `gorm:"type:text" json:"personnel"`
	Alts         string     `gorm:"type:text" json:"alts"`
	Reason       string     `gorm:"type:text" json:"reason"`
	ProofURLs    string     `gorm:"type:text" json:"proof_urls"`
	AddedBy      string     `gorm:"size:128" json:"added_by"`
	DateAdded    time.Time  `gorm:"autoCreateTime" json:"date_added"`
	LastModified *time.Time `json:"last_modified,omitempty"`
	ModifiedBy   string     `gorm:"size:128" json:"modified_by,omitempty"`
}

// Proofs splits the stored proof references back into an ordered list.
func (o Organization) Proofs() []string { return SplitProofs(o.ProofURLs) }

// PersonMatch is a person found on a specific list.
type PersonMatch struct {
	Person
	List List
}

// OrgMatch is an organization found on a specific list.
type OrgMatch struct {
	Organization
	List List
}

const proofSeparator = ", "

// JoinProofs flattens ordered proof references into the stored column format.
func JoinProofs(urls []string) string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			out = append(out, u)
		}
	}
	return strings.Join(out, proofSeparator)
}

// SplitProofs is the inverse of JoinProofs.
func SplitProofs(stored string) []string {
	if strings.TrimSpace(stored) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(stored, proofSeparator) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// NationURL builds the Politics & War profile link for a nation id.
func NationURL(nationID string) string {
	if nationID == "" {
		return ""
	}
	return fmt.Sprintf("https://www.politicsandwar.com/nation/id=%s", nationID)
}
