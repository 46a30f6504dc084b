package voting

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obrc/blacklist/src/listing"
)

func TestSweepOnlyExpired(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	openAdd(t, h)

	report := h.scheduler.Sweep(ctx)
	assert.Zero(t, report.Tickets)

	h.clock.Advance(DefaultPollDuration + time.Minute)
	report = h.scheduler.Sweep(ctx)
	assert.Equal(t, 1, report.Tickets)
	assert.Equal(t, 1, report.Resolved)
}

func TestDoubleSweepIsIdempotent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	ticket := openAdd(t, h)
	h.surface.setCounts(ticket.PollMessageID, 2, 1)
	h.clock.Advance(DefaultPollDuration + time.Second)

	h.scheduler.Sweep(ctx)
	mutations := h.lists.mutations()
	second := h.scheduler.Sweep(ctx)

	assert.Zero(t, second.Tickets)
	assert.Equal(t, mutations, h.lists.mutations())
	assert.Equal(t, 1, h.audit.count(EventTicketResolved))
	assert.Len(t, h.audit.transcripts, 1)
	people := h.lists.people[listing.Blacklist]
	assert.Len(t, people, 1)
}

func TestSweepIsolatesFailures(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	bad := openAdd(t, h)

	req := addRequest()
	req.Target = Target{Name: "Other", DiscordID: "555555555555555555"}
	good, err := h.builder.Open(ctx, req)
	require.NoError(t, err)

	req.Target = Target{Name: "Third", DiscordID: "666666666666666666"}
	deferred, err := h.builder.Open(ctx, req)
	require.NoError(t, err)

	h.surface.panicOn[bad.PollMessageID] = true
	delete(h.surface.polls, deferred.PollMessageID)
	h.clock.Advance(DefaultPollDuration + time.Minute)

	report := h.scheduler.Sweep(ctx)
	assert.Equal(t, 3, report.Tickets)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Deferred)
	assert.Equal(t, 1, report.Resolved)

	assert.Equal(t, StatusActive, reload(t, h, bad.ID).Status)
	assert.Equal(t, StatusActive, reload(t, h, deferred.ID).Status)
	assert.Equal(t, StatusCompleted, reload(t, h, good.ID).Status)
}

func TestSweepChannelDeleted(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	ticket := openAdd(t, h)
	v, err := h.builder.OpenEvidence(ctx, EvidenceRequest{ChannelID: ticket.TicketChannelID, URL: "https://e", Submitter: requester})
	require.NoError(t, err)
	h.channels.drop(ticket.TicketChannelID)
	h.clock.Advance(DefaultPollDuration + time.Minute)

	report := h.scheduler.Sweep(ctx)
	assert.Equal(t, 2, report.Resolved)
	assert.Equal(t, ResultChannelDeleted, reload(t, h, ticket.ID).FinalResult)
	stored, err := h.tickets.Evidence(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, ResultChannelDeleted, stored.FinalResult)
	assert.Zero(t, h.lists.mutations())
}

func TestSweepSkipsLockedItems(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	ticket := openAdd(t, h)
	h.clock.Advance(DefaultPollDuration + time.Minute)

	locked := NewScheduler(h.engine, Config{}, Deps{
		Tickets:  h.tickets,
		Channels: h.channels,
		Locker:   denyLocker{},
		Clock:    h.clock,
		Logger:   log.New(io.Discard, "", 0),
	})
	report := locked.Sweep(ctx)
	assert.Equal(t, 1, report.Skipped)
	assert.Equal(t, StatusActive, reload(t, h, ticket.ID).Status)
}

func TestSchedulerStartStop(t *testing.T) {
	h := newHarness()
	ticket := openAdd(t, h)
	h.clock.Advance(DefaultPollDuration + time.Minute)

	ctx := context.Background()
	require.NoError(t, h.scheduler.Start(ctx))
	require.Error(t, h.scheduler.Start(ctx))

	assert.Eventually(t, func() bool {
		stored, err := h.tickets.Ticket(ctx, ticket.ID)
		return err == nil && stored.Status == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, h.scheduler.Stop(stopCtx))
	require.NoError(t, h.scheduler.Stop(stopCtx))
}

func TestSweepFinishesItemWhenCancelled(t *testing.T) {
	h := newHarness()
	first := openAdd(t, h)
	req := addRequest()
	req.Target = Target{Name: "Other", DiscordID: "555555555555555555"}
	second, err := h.builder.Open(context.Background(), req)
	require.NoError(t, err)
	h.surface.setCounts(first.PollMessageID, 2, 1)
	h.surface.setCounts(second.PollMessageID, 2, 1)
	h.clock.Advance(DefaultPollDuration + time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	deps := h.deps
	deps.Lists = cancelAfterInsert{memLists: h.lists, cancel: cancel}
	deps.Tickets = ctxTickets{h.tickets}
	_, sched := h.newEngine(deps)

	report := sched.Sweep(ctx)
	assert.Equal(t, 2, report.Tickets)
	assert.Equal(t, 1, report.Resolved)
	assert.Zero(t, report.Failed)

	done := reload(t, h, first.ID)
	assert.Equal(t, StatusCompleted, done.Status)
	assert.Equal(t, "PASSED:2:1", done.FinalResult)
	assert.Equal(t, StatusActive, reload(t, h, second.ID).Status)
	assert.Len(t, h.audit.transcripts, 1)

	report = sched.Sweep(context.Background())
	assert.Equal(t, 1, report.Tickets)
	assert.Equal(t, 1, report.Resolved)
	assert.Equal(t, "PASSED:2:1", reload(t, h, first.ID).FinalResult)
	assert.Equal(t, "PASSED:2:1", reload(t, h, second.ID).FinalResult)
	assert.Len(t, h.audit.transcripts, 2)
}
