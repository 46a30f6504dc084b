package voting

import (
	"context"
	"time"

	"github.com/obrc/blacklist/src/listing"
)

// Answer is one option offered by a poll.
type Answer struct {
	Label string
	Emoji string
}

// PollRef locates a poll message.
type PollRef struct {
	ChannelID string
	MessageID string
}

// PollAnswer is an answer as read back from the surface.
type PollAnswer struct {
	ID    int
	Label string
	Emoji string
	Count int
}

// PollSnapshot is the current state of a poll. Answers keep their creation
// order.
type PollSnapshot struct {
	Question string
	Answers  []PollAnswer
}

// NoticeField is one name/value row of a notice.
type NoticeField struct {
	Name   string
	Value  string
	Inline bool
}

// Notice is a platform-neutral rich message.
type Notice struct {
	Title       string
	Description string
	Color       int
	Fields      []NoticeField
	Footer      string
	Timestamp   time.Time
}

// Message is what gets posted to a channel or DM. Content carries mentions.
type Message struct {
	Content string
	Notice  *Notice
}

// File is an attachment.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// HistoryMessage is one channel message in posting order.
type HistoryMessage struct {
	At           time.Time
	Author       string
	Content      string
	Embeds       int
	PollQuestion string
}

// VoteSurface creates and reads polls.
type VoteSurface interface {
	// CreatePoll posts a poll in channelID. When msg is non-nil its content
	// and notice are sent with the poll.
	CreatePoll(ctx context.Context, channelID, question string, answers []Answer, duration time.Duration, msg *Message) (PollRef, error)
	// ReadPoll returns ErrMessageNotFound when the message is gone and
	// ErrNoPoll when it carries no poll.
	ReadPoll(ctx context.Context, ref PollRef) (*PollSnapshot, error)
	Voters(ctx context.Context, ref PollRef, answerID int) ([]string, error)
	Pin(ctx context.Context, ref PollRef) error
}

// ChannelProvider manages ticket channels and member messaging.
type ChannelProvider interface {
	CreateRestrictedChannel(ctx context.Context, name, roleID string) (string, error)
	ChannelExists(ctx context.Context, channelID string) (bool, error)
	Send(ctx context.Context, channelID string, msg Message) error
	SendFile(ctx context.Context, channelID string, msg Message, file File) error
	DeleteChannel(ctx context.Context, channelID string) error
	DirectMessage(ctx context.Context, userID string, msg Message) error
	RoleMembers(ctx context.Context, roleID string) ([]string, error)
	History(ctx context.Context, channelID string) ([]HistoryMessage, error)
}

// ListStore is the list table adapter. listing.Store satisfies it.
type ListStore interface {
	FindPerson(ctx context.Context, discordID string) (*listing.PersonMatch, error)
	FindPersonIn(ctx context.Context, list listing.List, discordID string) (*listing.Person, error)
	FindPersonByNation(ctx context.Context, term string) (*listing.PersonMatch, error)
	FindPersonByNationIn(ctx context.Context, list listing.List, nationID string) (*listing.Person, error)
	FindOrganization(ctx context.Context, name string) (*listing.OrgMatch, error)
	FindOrganizationIn(ctx context.Context, list listing.List, name string) (*listing.Organization, error)
	InsertPerson(ctx context.Context, list listing.List, p *listing.Person) error
	InsertOrganization(ctx context.Context, list listing.List, o *listing.Organization) error
	DeletePerson(ctx context.Context, list listing.List, discordID string) (*listing.Person, error)
	DeletePersonByNation(ctx context.Context, list listing.List, nationID string) (*listing.Person, error)
	DeleteOrganization(ctx context.Context, list listing.List, name string) (*listing.Organization, error)
}

// TicketStore persists tickets and evidence votes. Finalize calls are
// compare-and-set on status and report whether this call made the change.
type TicketStore interface {
	CreateTicket(ctx context.Context, t *Ticket) error
	Ticket(ctx context.Context, id uint64) (*Ticket, error)
	ActiveTicketByChannel(ctx context.Context, channelID string) (*Ticket, error)
	TicketByPollMessage(ctx context.Context, messageID string) (*Ticket, error)
	ExpiredTickets(ctx context.Context, now time.Time) ([]Ticket, error)
	FinalizeTicket(ctx context.Context, id uint64, result string, at time.Time) (bool, error)

	CreateEvidence(ctx context.Context, v *EvidenceVote) error
	Evidence(ctx context.Context, id uint64) (*EvidenceVote, error)
	ExpiredEvidence(ctx context.Context, now time.Time) ([]EvidenceVote, error)
	FinalizeEvidence(ctx context.Context, id uint64, result string, at time.Time) (bool, error)
}

// Event kinds written to the audit sink.
const (
	EventTicketOpened     = "ticket.opened"
	EventTicketResolved   = "ticket.resolved"
	EventEvidenceOpened   = "evidence.opened"
	EventEvidenceResolved = "evidence.resolved"
)

// Event is one audit record.
type Event struct {
	Kind       string
	TicketID   uint64
	EvidenceID uint64
	ChannelID  string
	TicketType Kind
	Target     string
	Actor      string
	Result     string
	Yes        int
	No         int
	Detail     string
	At         time.Time
}

// Transcript is the closing record of a ticket channel.
type Transcript struct {
	TicketID    uint64
	ChannelID   string
	TicketType  Kind
	Target      string
	Result      string
	Yes         int
	No          int
	GeneratedAt time.Time
	Messages    []HistoryMessage
}

// AuditSink receives every outcome.
type AuditSink interface {
	Record(ctx context.Context, e Event) error
	Transcript(ctx context.Context, t Transcript) error
}

// Locker is a per-key advisory lock. ok is false when another holder has
// the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (unlock func(), ok bool, err error)
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock is the wall clock in UTC.
var SystemClock Clock = systemClock{}

// NopLocker always grants the lock. Used when Redis is not configured.
type NopLocker struct{}

func (NopLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}
