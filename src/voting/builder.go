package voting

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/obrc/blacklist/src/identity"
	"github.com/obrc/blacklist/src/listing"
)

// Request is a proposal as submitted by a member.
type Request struct {
	Kind   Kind
	Target Target
	Reason string
	// ProofURLs are ordered attachment or link URLs.
	ProofURLs []string
	// Aliases is possible_alts for people and alts for organizations.
	Aliases   string
	Owner     string
	Personnel string
	// Appeal marks a removal requested by the listed party.
	Appeal    bool
	Requester identity.Identity
}

// EvidenceRequest attaches evidence to an active ticket channel.
type EvidenceRequest struct {
	ChannelID   string
	URL         string
	Description string
	Minutes     int
	Submitter   identity.Identity
}

// Builder validates proposals and opens voting sessions.
type Builder struct {
	cfg    Config
	deps   Deps
	policy *bluemonday.Policy
}

// NewBuilder returns a Builder.
func NewBuilder(cfg Config, deps Deps) *Builder {
	return &Builder{
		cfg:    cfg.withDefaults(),
		deps:   deps.withDefaults(),
		policy: bluemonday.StrictPolicy(),
	}
}

// clean strips markup from member supplied text.
func (b *Builder) clean(s string) string {
	return strings.TrimSpace(html.UnescapeString(b.policy.Sanitize(s)))
}

func (b *Builder) sanitize(req Request) Request {
	req.Target.Name = b.clean(req.Target.Name)
	req.Target.DiscordID = strings.TrimSpace(req.Target.DiscordID)
	req.Target.NationID = listing.ParseNationID(req.Target.NationID)
	req.Reason = b.clean(req.Reason)
	req.Aliases = b.clean(req.Aliases)
	req.Owner = b.clean(req.Owner)
	req.Personnel = b.clean(req.Personnel)
	proofs := req.ProofURLs[:0:0]
	for _, u := range req.ProofURLs {
		if u = strings.TrimSpace(u); u != "" {
			proofs = append(proofs, u)
		}
	}
	req.ProofURLs = proofs
	return req
}

// Open validates req and, when it is acceptable, opens a voting session.
func (b *Builder) Open(ctx context.Context, req Request) (*Ticket, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("voting: kind %q: %w", req.Kind, ErrInvalidInput)
	}
	req = b.sanitize(req)
	if req.Requester.ID == "" {
		return nil, fmt.Errorf("voting: requester: %w", ErrMissingField)
	}

	var (
		payload Payload
		err     error
	)
	switch req.Kind {
	case KindAddPerson:
		payload, err = b.prepareAddPerson(ctx, &req)
	case KindAddOrg:
		payload, err = b.prepareAddOrg(ctx, &req)
	case KindRemovePerson:
		payload, err = b.prepareRemovePerson(ctx, &req)
	case KindRemoveOrg:
		payload, err = b.prepareRemoveOrg(ctx, &req)
	}
	if err != nil {
		return nil, err
	}
	return b.openSession(ctx, req, payload)
}

func (b *Builder) prepareAddPerson(ctx context.Context, req *Request) (Payload, error) {
	t := &req.Target
	if t.DiscordID == "" && t.NationID == "" {
		return Payload{}, fmt.Errorf("voting: target discord id or nation id: %w", ErrMissingField)
	}
	if t.NationID != "" && !isDigits(t.NationID) {
		return Payload{}, fmt.Errorf("voting: nation id %q: %w", t.NationID, ErrInvalidInput)
	}
	if req.Reason == "" {
		return Payload{}, fmt.Errorf("voting: reason: %w", ErrMissingField)
	}
	if len(req.ProofURLs) == 0 {
		return Payload{}, fmt.Errorf("voting: proof: %w", ErrMissingField)
	}
	if t.Name == "" {
		if t.DiscordID != "" {
			t.Name = t.DiscordID
		} else {
			t.Name = "Nation " + t.NationID
		}
	}

	var (
		match *listing.PersonMatch
		err   error
	)
	if t.DiscordID != "" {
		match, err = b.deps.Lists.FindPerson(ctx, t.DiscordID)
	} else {
		match, err = b.deps.Lists.FindPersonByNation(ctx, t.NationID)
	}
	switch {
	case err == nil:
		return Payload{}, fmt.Errorf("voting: %s is already on the %s: %w", t.Name, match.List, ErrDuplicateEntry)
	case !errors.Is(err, listing.ErrNotFound):
		return Payload{}, fmt.Errorf("voting: duplicate check: %w", err)
	}
	if t.NationID != "" && t.DiscordID != "" {
		m, err := b.deps.Lists.FindPersonByNation(ctx, t.NationID)
		switch {
		case err == nil:
			return Payload{}, fmt.Errorf("voting: nation %s is already on the %s: %w", t.NationID, m.List, ErrDuplicateEntry)
		case !errors.Is(err, listing.ErrNotFound):
			return Payload{}, fmt.Errorf("voting: nation duplicate check: %w", err)
		}
	}

	return Payload{
		DiscordName:  t.Name,
		Reason:       req.Reason,
		PossibleAlts: orNone(req.Aliases),
		ProofURLs:    req.ProofURLs,
	}, nil
}

func (b *Builder) prepareAddOrg(ctx context.Context, req *Request) (Payload, error) {
	if req.Target.Name == "" {
		return Payload{}, fmt.Errorf("voting: company name: %w", ErrMissingField)
	}
	if req.Owner == "" {
		return Payload{}, fmt.Errorf("voting: owner: %w", ErrMissingField)
	}
	if req.Reason == "" {
		return Payload{}, fmt.Errorf("voting: reason: %w", ErrMissingField)
	}
	if len(req.ProofURLs) == 0 {
		return Payload{}, fmt.Errorf("voting: proof: %w", ErrMissingField)
	}
	match, err := b.deps.Lists.FindOrganization(ctx, req.Target.Name)
	switch {
	case err == nil:
		return Payload{}, fmt.Errorf("voting: %s is already on the %s: %w", match.CompanyName, match.List, ErrDuplicateEntry)
	case !errors.Is(err, listing.ErrNotFound):
		return Payload{}, fmt.Errorf("voting: duplicate check: %w", err)
	}
	return Payload{
		CompanyName: req.Target.Name,
		Owner:       req.Owner,
		Personnel:   orNone(req.Personnel),
		Alts:        orNone(req.Aliases),
		Reason:      req.Reason,
		ProofURLs:   req.ProofURLs,
	}, nil
}

func (b *Builder) prepareRemovePerson(ctx context.Context, req *Request) (Payload, error) {
	t := &req.Target
	if req.Appeal && t.DiscordID == "" {
		t.DiscordID = req.Requester.ID
	}
	if t.DiscordID == "" {
		return Payload{}, fmt.Errorf("voting: target discord id: %w", ErrMissingField)
	}
	if req.Reason == "" {
		return Payload{}, fmt.Errorf("voting: reason: %w", ErrMissingField)
	}
	match, err := b.deps.Lists.FindPerson(ctx, t.DiscordID)
	if errors.Is(err, listing.ErrNotFound) {
		return Payload{}, fmt.Errorf("voting: %s is not listed: %w", t.DiscordID, ErrNotFound)
	}
	if err != nil {
		return Payload{}, fmt.Errorf("voting: lookup: %w", err)
	}
	if req.Appeal && match.List != listing.Blacklist {
		return Payload{}, fmt.Errorf("voting: %s is on the %s: %w", t.DiscordID, match.List, ErrNotBlacklisted)
	}
	if t.Name == "" {
		t.Name = match.DiscordName
	}
	if t.Name == "" {
		t.Name = t.DiscordID
	}
	if t.NationID == "" {
		t.NationID = match.NationID
	}

	original := match.Person
	p := Payload{
		DiscordName:    original.DiscordName,
		Reason:         req.Reason,
		OriginalPerson: &original,
		OriginalList:   match.List,
	}
	if req.Appeal {
		p.Reason = fmt.Sprintf("Appeal by %s: %s", req.Requester, req.Reason)
	}
	if req.Appeal && req.Requester.ID == t.DiscordID {
		p.SelfAppeal = true
		p.ExcludedVoter = req.Requester.ID
	}
	return p, nil
}

func (b *Builder) prepareRemoveOrg(ctx context.Context, req *Request) (Payload, error) {
	if req.Target.Name == "" {
		return Payload{}, fmt.Errorf("voting: company name: %w", ErrMissingField)
	}
	if req.Reason == "" {
		return Payload{}, fmt.Errorf("voting: reason: %w", ErrMissingField)
	}
	match, err := b.deps.Lists.FindOrganization(ctx, req.Target.Name)
	if errors.Is(err, listing.ErrNotFound) {
		return Payload{}, fmt.Errorf("voting: %s is not listed: %w", req.Target.Name, ErrNotFound)
	}
	if err != nil {
		return Payload{}, fmt.Errorf("voting: lookup: %w", err)
	}
	owner := identity.Matches(req.Requester, match.Owner)
	if req.Appeal {
		if match.List != listing.Blacklist {
			return Payload{}, fmt.Errorf("voting: %s is on the %s: %w", match.CompanyName, match.List, ErrNotBlacklisted)
		}
		if !owner {
			return Payload{}, fmt.Errorf("voting: %s: %w", match.CompanyName, ErrNotAuthorized)
		}
	}
	req.Target.Name = match.CompanyName

	original := match.Organization
	p := Payload{
		CompanyName:     original.CompanyName,
		Owner:           original.Owner,
		Reason:          req.Reason,
		OriginalCompany: &original,
		OriginalList:    match.List,
	}
	if req.Appeal {
		p.Reason = fmt.Sprintf("Company appeal by %s: %s", req.Requester, req.Reason)
	}
	if req.Appeal && owner {
		p.SelfAppeal = true
		p.ExcludedVoter = req.Requester.ID
	}
	return p, nil
}

func (b *Builder) openSession(ctx context.Context, req Request, payload Payload) (*Ticket, error) {
	channelID, err := b.deps.Channels.CreateRestrictedChannel(ctx, ChannelName(req.Kind, req.Target.Name), b.cfg.VoterRoleID)
	if err != nil {
		return nil, fmt.Errorf("voting: create channel: %w", err)
	}
	abandon := func(cause error) error {
		if derr := b.deps.Channels.DeleteChannel(context.WithoutCancel(ctx), channelID); derr != nil {
			b.deps.Logger.Printf("voting: delete abandoned channel %s: %v", channelID, derr)
		}
		return cause
	}

	now := b.deps.Clock.Now()
	t := &Ticket{
		TicketChannelID: channelID,
		TicketType:      req.Kind,
		TargetDiscordID: req.Target.DiscordID,
		TargetNationID:  req.Target.NationID,
		TargetName:      req.Target.Name,
		CreatedBy:       req.Requester.ID,
		CreatedAt:       now,
		ExpiresAt:       now.Add(b.cfg.PollDuration),
		Status:          StatusActive,
	}
	if err := t.SetPayload(payload); err != nil {
		return nil, abandon(err)
	}

	notice := proposalNotice(t, payload, req.Requester.ID, now)
	if err := b.deps.Channels.Send(ctx, channelID, Message{Content: roleMention(b.cfg.VoterRoleID), Notice: &notice}); err != nil {
		return nil, abandon(fmt.Errorf("voting: post proposal: %w", err))
	}
	ref, err := b.deps.Surface.CreatePoll(ctx, channelID, PollQuestion(req.Kind, req.Target.Name), PollAnswers(req.Kind), b.cfg.PollDuration, nil)
	if err != nil {
		return nil, abandon(fmt.Errorf("voting: create poll: %w", err))
	}
	t.PollMessageID = ref.MessageID
	if err := b.deps.Surface.Pin(ctx, ref); err != nil {
		b.deps.Logger.Printf("voting: pin poll %s: %v", ref.MessageID, err)
	}

	if err := b.deps.Tickets.CreateTicket(ctx, t); err != nil {
		return nil, abandon(fmt.Errorf("voting: persist ticket: %w", err))
	}

	b.record(ctx, Event{
		Kind:       EventTicketOpened,
		TicketID:   t.ID,
		ChannelID:  channelID,
		TicketType: t.TicketType,
		Target:     t.TargetName,
		Actor:      t.CreatedBy,
		At:         now,
	})

	if payload.SelfAppeal || req.Appeal {
		if err := b.deps.Channels.Send(ctx, channelID, Message{Content: "**" + appealWarning + "**"}); err != nil {
			b.deps.Logger.Printf("voting: appeal warning in %s: %v", channelID, err)
		}
	}
	b.notifyVoters(ctx, t)
	return t, nil
}

// notifyVoters DMs every member of the voter role. Members with closed DMs
// are skipped.
func (b *Builder) notifyVoters(ctx context.Context, t *Ticket) {
	if b.cfg.VoterRoleID == "" {
		return
	}
	members, err := b.deps.Channels.RoleMembers(ctx, b.cfg.VoterRoleID)
	if err != nil {
		b.deps.Logger.Printf("voting: list voters: %v", err)
		return
	}
	notice := voterNotice(t, t.TicketChannelID)
	sent := 0
	for i, id := range members {
		if ctx.Err() != nil {
			return
		}
		if i > 0 && b.cfg.DirectMessageGap > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.cfg.DirectMessageGap):
			}
		}
		if err := b.deps.Channels.DirectMessage(ctx, id, Message{Notice: &notice}); err != nil {
			b.deps.Logger.Printf("voting: dm voter %s: %v", id, err)
			continue
		}
		sent++
	}
	b.deps.Logger.Printf("voting: ticket %d notified %d/%d voters", t.ID, sent, len(members))
}

// OpenEvidence posts an accept/reject poll for evidence inside an active
// ticket channel.
func (b *Builder) OpenEvidence(ctx context.Context, req EvidenceRequest) (*EvidenceVote, error) {
	req.URL = strings.TrimSpace(req.URL)
	req.Description = b.clean(req.Description)
	if req.Submitter.ID == "" {
		return nil, fmt.Errorf("voting: submitter: %w", ErrMissingField)
	}
	if req.URL == "" && req.Description == "" {
		return nil, fmt.Errorf("voting: evidence url or description: %w", ErrMissingField)
	}
	if req.Minutes <= 0 {
		req.Minutes = b.cfg.EvidenceMinutes
	}
	if _, err := b.deps.Tickets.ActiveTicketByChannel(ctx, req.ChannelID); err != nil {
		if errors.Is(err, ErrNotVotingTicket) {
			return nil, err
		}
		return nil, fmt.Errorf("voting: ticket lookup: %w", err)
	}

	now := b.deps.Clock.Now()
	v := &EvidenceVote{
		TicketChannelID:     req.ChannelID,
		EvidenceURL:         req.URL,
		EvidenceDescription: req.Description,
		SubmittedBy:         req.Submitter.ID,
		CreatedAt:           now,
		ExpiresAt:           now.Add(time.Duration(req.Minutes) * time.Minute),
		Status:              StatusActive,
	}
	notice := evidenceNotice(v, req.Minutes)
	ref, err := b.deps.Surface.CreatePoll(ctx, req.ChannelID, evidenceQuestion, EvidenceAnswers(),
		EvidencePollDuration(req.Minutes), &Message{Notice: &notice})
	if err != nil {
		return nil, fmt.Errorf("voting: create evidence poll: %w", err)
	}
	v.MessageID = ref.MessageID
	if err := b.deps.Tickets.CreateEvidence(ctx, v); err != nil {
		return nil, fmt.Errorf("voting: persist evidence vote: %w", err)
	}
	b.record(ctx, Event{
		Kind:       EventEvidenceOpened,
		EvidenceID: v.ID,
		ChannelID:  v.TicketChannelID,
		Actor:      v.SubmittedBy,
		Detail:     v.EvidenceURL,
		At:         now,
	})
	return v, nil
}

// EvidencePollDuration converts a voting window in minutes to the whole hours
// a poll can run for, between one and twenty-four.
func EvidencePollDuration(minutes int) time.Duration {
	hours := (minutes + 59) / 60
	if hours < 1 {
		hours = 1
	}
	if hours > 24 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

func (b *Builder) record(ctx context.Context, e Event) {
	if b.deps.Audit == nil {
		return
	}
	if err := b.deps.Audit.Record(ctx, e); err != nil {
		b.deps.Logger.Printf("voting: audit %s: %v", e.Kind, err)
	}
}

func roleMention(roleID string) string {
	if roleID == "" {
		return ""
	}
	return "<@&" + roleID + ">"
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
