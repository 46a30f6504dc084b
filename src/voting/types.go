package voting

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/obrc/blacklist/src/listing"
)

// Kind is the closed set of proposal kinds. The values are the stored
// ticket_type strings.
type Kind string

const (
	KindAddPerson    Kind = "add"
	KindRemovePerson Kind = "remove"
	KindAddOrg       Kind = "add_company"
	KindRemoveOrg    Kind = "remove_company"
)

// Valid reports whether k is one of the four proposal kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindAddPerson, KindRemovePerson, KindAddOrg, KindRemoveOrg:
		return true
	}
	return false
}

// IsAdd reports whether k proposes adding an entry.
func (k Kind) IsAdd() bool { return k == KindAddPerson || k == KindAddOrg }

// IsOrg reports whether k targets an organization.
func (k Kind) IsOrg() bool { return k == KindAddOrg || k == KindRemoveOrg }

// Action is the human form of the proposal used in polls and notices.
func (k Kind) Action() string {
	switch k {
	case KindAddPerson:
		return "Add to"
	case KindRemovePerson:
		return "Remove from"
	case KindAddOrg:
		return "Add company to"
	case KindRemoveOrg:
		return "Remove company from"
	}
	return string(k)
}

// Status of a ticket or evidence vote.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Terminal results that bypass the tally.
const (
	ResultChannelDeleted  = "channel_deleted"
	ResultChannelNotFound = "channel_not_found"
	ResultMessageNotFound = "message_not_found"
)

// Target identifies what a proposal is about.
type Target struct {
	Name      string
	DiscordID string
	NationID  string
}

// Ticket is one proposal's voting session. Rows are never deleted.
type Ticket struct {
	ID              uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TicketChannelID string     `gorm:"size:32;index" json:"ticket_channel_id"`
	PollMessageID   string     `gorm:"size:32;index" json:"poll_message_id"`
	TicketType      Kind       `gorm:"size:32;not null" json:"ticket_type"`
	TargetDiscordID string     `gorm:"size:32" json:"target_discord_id"`
	TargetNationID  string     `gorm:"size:32" json:"target_nation_id"`
	TargetName      string     `gorm:"size:128" json:"target_name"`
	ProposalData    string     `gorm:"type:text" json:"proposal_data"`
	CreatedBy       string     `gorm:"size:32" json:"created_by"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `gorm:"index" json:"expires_at"`
	Status          Status     `gorm:"size:16;index;not null;default:active" json:"status"`
	FinalResult     string     `gorm:"size:64" json:"final_result,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// TableName keeps the historical table name.
func (Ticket) TableName() string { return "voting_tickets" }

// Target returns the ticket's target identity.
func (t Ticket) Target() Target {
	return Target{Name: t.TargetName, DiscordID: t.TargetDiscordID, NationID: t.TargetNationID}
}

// Payload decodes the stored proposal data.
func (t Ticket) Payload() (Payload, error) {
	var p Payload
	if t.ProposalData == "" {
		return p, nil
	}
	if err := json.Unmarshal([]byte(t.ProposalData), &p); err != nil {
		return p, fmt.Errorf("voting: ticket %d payload: %w", t.ID, err)
	}
	return p, nil
}

// SetPayload encodes p into the ticket.
func (t *Ticket) SetPayload(p Payload) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("voting: encode payload: %w", err)
	}
	t.ProposalData = string(raw)
	return nil
}

// Payload is the structured proposal carried by a ticket. Removal proposals
// embed a verbatim snapshot of the entry so resolution does not depend on
// later edits.
type Payload struct {
	DiscordName  string   `json:"discord_name,omitempty"`
	Reason       string   `json:"reason"`
	PossibleAlts string   `json:"possible_alts,omitempty"`
	ProofURLs    []string `json:"proof_urls,omitempty"`

	CompanyName string `json:"company_name,omitempty"`
	Owner       string `json:"owner,omitempty"`
	Personnel   string `json:"personnel,omitempty"`
	Alts        string `json:"alts,omitempty"`

	OriginalPerson  *listing.Person       `json:"original_person,omitempty"`
	OriginalCompany *listing.Organization `json:"original_company,omitempty"`
	OriginalList    listing.List          `json:"original_list,omitempty"`

	SelfAppeal    bool   `json:"self_appeal,omitempty"`
	ExcludedVoter string `json:"excluded_voter,omitempty"`
}

// EvidenceVote is a secondary accept/reject poll bound to a ticket channel.
type EvidenceVote struct {
	ID                  uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID           string     `gorm:"size:32;index" json:"message_id"`
	TicketChannelID     string     `gorm:"size:32;index" json:"ticket_channel_id"`
	EvidenceURL         string     `gorm:"size:512" json:"evidence_url"`
	EvidenceDescription string     `gorm:"type:text" json:"evidence_description"`
	SubmittedBy         string     `gorm:"size:32" json:"submitted_by"`
	CreatedAt           time.Time  `json:"created_at"`
	ExpiresAt           time.Time  `gorm:"index" json:"expires_at"`
	Status              Status     `gorm:"size:16;index;not null;default:active" json:"status"`
	FinalResult         string     `gorm:"size:32" json:"final_result,omitempty"`
	CompletedAt         *time.Time `json:"completed_at,omitempty"`
}

// TableName keeps the historical table name.
func (EvidenceVote) TableName() string { return "evidence_votes" }

// Evidence results.
const (
	EvidenceAccepted = "accepted"
	EvidenceRejected = "rejected"
	EvidenceTied     = "tied"
)
