package voting

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obrc/blacklist/src/identity"
	"github.com/obrc/blacklist/src/listing"
)

const (
	requesterID = "111111111111111111"
	targetID    = "123456789012345678"
)

var requester = identity.Identity{ID: requesterID, Username: "commish"}

func addRequest() Request {
	return Request{
		Kind:      KindAddPerson,
		Target:    Target{Name: "Scammer", DiscordID: targetID, NationID: "4242"},
		Reason:    "Stole bank funds",
		ProofURLs: []string{"https://cdn.example/a.png", " ", "https://cdn.example/b.png"},
		Aliases:   "scam_alt",
		Requester: requester,
	}
}

func TestOpenAddPerson(t *testing.T) {
	h := newHarness()
	h.channels.members = []string{"v1", "v2", "v3"}
	ctx := context.Background()

	ticket, err := h.builder.Open(ctx, addRequest())
	require.NoError(t, err)

	assert.Equal(t, StatusActive, ticket.Status)
	assert.Equal(t, KindAddPerson, ticket.TicketType)
	assert.Equal(t, h.clock.Now().Add(DefaultPollDuration), ticket.ExpiresAt)
	assert.True(t, ticket.ExpiresAt.After(ticket.CreatedAt))
	assert.NotEmpty(t, ticket.PollMessageID)
	assert.Contains(t, h.surface.pinned, ticket.PollMessageID)

	stored, err := h.tickets.Ticket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.TicketChannelID, stored.TicketChannelID)

	p, err := stored.Payload()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://cdn.example/a.png", "https://cdn.example/b.png"}, p.ProofURLs)
	assert.Equal(t, "Stole bank funds", p.Reason)
	assert.False(t, p.SelfAppeal)

	poll := h.surface.polls[ticket.PollMessageID]
	require.Len(t, poll.Answers, 2)
	assert.Equal(t, "No - Keep current status", poll.Answers[1].Label)

	assert.ElementsMatch(t, []string{"v1", "v2", "v3"}, h.channels.dms)
	assert.Equal(t, 1, h.audit.count(EventTicketOpened))
}

func TestOpenRejectsDuplicate(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.lists.InsertPerson(ctx, listing.Greylist, &listing.Person{DiscordID: targetID}))

	_, err := h.builder.Open(ctx, addRequest())
	require.ErrorIs(t, err, ErrDuplicateEntry)
	assert.True(t, IsValidation(err))
	assert.Empty(t, h.channels.channels)
	assert.Empty(t, h.tickets.tickets)
}

func TestOpenRejectsDuplicateByAlias(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.lists.InsertPerson(ctx, listing.Blacklist, &listing.Person{
		DiscordID:    "999999999999999999",
		PossibleAlts: "<@123456789012345678> alias2",
	}))

	_, err := h.builder.Open(ctx, addRequest())
	require.ErrorIs(t, err, ErrDuplicateEntry)
}

func TestOpenValidation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	req := addRequest()
	req.Reason = "  "
	_, err := h.builder.Open(ctx, req)
	require.ErrorIs(t, err, ErrMissingField)

	req = addRequest()
	req.ProofURLs = nil
	_, err = h.builder.Open(ctx, req)
	require.ErrorIs(t, err, ErrMissingField)

	req = addRequest()
	req.Target = Target{}
	_, err = h.builder.Open(ctx, req)
	require.ErrorIs(t, err, ErrMissingField)

	req = addRequest()
	req.Target.NationID = "abc"
	_, err = h.builder.Open(ctx, req)
	require.ErrorIs(t, err, ErrInvalidInput)

	req = addRequest()
	req.Kind = "promote"
	_, err = h.builder.Open(ctx, req)
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = h.builder.Open(ctx, Request{Kind: KindRemovePerson, Target: Target{DiscordID: targetID}, Reason: "r", Requester: requester})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOpenDeletesChannelWhenPersistFails(t *testing.T) {
	h := newHarness()
	h.tickets.createErr = errors.New("db down")

	_, err := h.builder.Open(context.Background(), addRequest())
	require.Error(t, err)
	assert.False(t, IsValidation(err))
	require.Len(t, h.channels.deleted, 1)
	assert.Empty(t, h.channels.channels)
	assert.Zero(t, h.audit.count(EventTicketOpened))
}

func TestOpenSanitizesText(t *testing.T) {
	h := newHarness()
	req := addRequest()
	req.Reason = "<b>Stole</b> from <@222222222222222222>"

	ticket, err := h.builder.Open(context.Background(), req)
	require.NoError(t, err)
	p, err := ticket.Payload()
	require.NoError(t, err)
	assert.Equal(t, "Stole from <@222222222222222222>", p.Reason)
}

func TestSelfAppealPerson(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.lists.InsertPerson(ctx, listing.Blacklist, &listing.Person{DiscordID: requesterID, DiscordName: "commish", Reason: "old"}))

	ticket, err := h.builder.Open(ctx, Request{
		Kind:      KindRemovePerson,
		Reason:    "I have reformed",
		Appeal:    true,
		Requester: requester,
	})
	require.NoError(t, err)
	assert.Equal(t, requesterID, ticket.TargetDiscordID)

	p, err := ticket.Payload()
	require.NoError(t, err)
	assert.True(t, p.SelfAppeal)
	assert.Equal(t, requesterID, p.ExcludedVoter)
	require.NotNil(t, p.OriginalPerson)
	assert.Equal(t, "old", p.OriginalPerson.Reason)
	assert.Equal(t, listing.Blacklist, p.OriginalList)

	var warned bool
	for _, s := range h.channels.sent {
		if s.ChannelID == ticket.TicketChannelID && s.Msg.Content == "**"+appealWarning+"**" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestAppealRequiresBlacklist(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.lists.InsertPerson(ctx, listing.Greylist, &listing.Person{DiscordID: requesterID}))

	_, err := h.builder.Open(ctx, Request{Kind: KindRemovePerson, Reason: "please", Appeal: true, Requester: requester})
	require.ErrorIs(t, err, ErrNotBlacklisted)
}

func TestOrgAppeal(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.lists.InsertOrganization(ctx, listing.Blacklist, &listing.Organization{
		CompanyName: "Acme Holdings",
		Owner:       "<@111111111111111111>",
	}))

	stranger := identity.Identity{ID: "333333333333333333", Username: "rando"}
	_, err := h.builder.Open(ctx, Request{Kind: KindRemoveOrg, Target: Target{Name: "acme"}, Reason: "x", Appeal: true, Requester: stranger})
	require.ErrorIs(t, err, ErrNotAuthorized)

	ticket, err := h.builder.Open(ctx, Request{Kind: KindRemoveOrg, Target: Target{Name: "acme"}, Reason: "we changed", Appeal: true, Requester: requester})
	require.NoError(t, err)
	assert.Equal(t, "Acme Holdings", ticket.TargetName)
	p, err := ticket.Payload()
	require.NoError(t, err)
	assert.True(t, p.SelfAppeal)
	assert.Equal(t, requesterID, p.ExcludedVoter)
	require.NotNil(t, p.OriginalCompany)
}

func TestOpenEvidence(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	_, err := h.builder.OpenEvidence(ctx, EvidenceRequest{ChannelID: "nowhere", URL: "https://x", Submitter: requester})
	require.ErrorIs(t, err, ErrNotVotingTicket)

	ticket, err := h.builder.Open(ctx, addRequest())
	require.NoError(t, err)

	v, err := h.builder.OpenEvidence(ctx, EvidenceRequest{
		ChannelID:   ticket.TicketChannelID,
		URL:         "https://cdn.example/c.png",
		Description: "more logs",
		Minutes:     90,
		Submitter:   requester,
	})
	require.NoError(t, err)
	assert.Equal(t, h.clock.Now().Add(90*time.Minute), v.ExpiresAt)
	poll := h.surface.polls[v.MessageID]
	assert.Equal(t, evidenceQuestion, poll.Question)
	assert.Equal(t, "Accept Evidence", poll.Answers[0].Label)
	assert.Equal(t, 1, h.audit.count(EventEvidenceOpened))
}

func TestRemoveProposalIsNotSelfAppeal(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.lists.InsertPerson(ctx, listing.Blacklist, &listing.Person{DiscordID: requesterID}))
	require.NoError(t, h.lists.InsertOrganization(ctx, listing.Blacklist, &listing.Organization{
		CompanyName: "Commish Trading",
		Owner:       "commish and friends",
	}))

	person, err := h.builder.Open(ctx, Request{Kind: KindRemovePerson, Target: Target{DiscordID: requesterID}, Reason: "cleared", Requester: requester})
	require.NoError(t, err)
	org, err := h.builder.Open(ctx, Request{Kind: KindRemoveOrg, Target: Target{Name: "commish"}, Reason: "closed", Requester: requester})
	require.NoError(t, err)

	for _, ticket := range []*Ticket{person, org} {
		p, err := ticket.Payload()
		require.NoError(t, err)
		assert.False(t, p.SelfAppeal, ticket.TicketType)
		assert.Empty(t, p.ExcludedVoter, ticket.TicketType)
	}
}

func TestOpenAddNationLookupFailure(t *testing.T) {
	h := newHarness()
	h.lists.nationErr = errors.New("connection reset")

	_, err := h.builder.Open(context.Background(), addRequest())
	require.Error(t, err)
	assert.False(t, IsValidation(err))
	assert.Contains(t, err.Error(), "connection reset")
	assert.Empty(t, h.channels.channels)
	assert.Empty(t, h.surface.created)
}
