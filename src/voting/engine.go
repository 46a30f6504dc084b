package voting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/obrc/blacklist/src/listing"
)

// Engine tallies expired tickets and applies their outcome.
type Engine struct {
	cfg  Config
	deps Deps
	// after schedules channel teardown and returns a func that cancels it,
	// reporting whether it was still pending.
	after func(d time.Duration, f func()) (stop func() bool)

	mu      sync.Mutex
	pending map[string]*teardownTask
	running sync.WaitGroup
}

type teardownTask struct {
	stop func() bool
}

// NewEngine returns an Engine.
func NewEngine(cfg Config, deps Deps) *Engine {
	return &Engine{
		cfg:  cfg.withDefaults(),
		deps: deps.withDefaults(),
		after: func(d time.Duration, f func()) func() bool {
			return time.AfterFunc(d, f).Stop
		},
		pending: map[string]*teardownTask{},
	}
}

// Resolve tallies t and performs exactly one of commit, demotion or nothing.
// Tickets that are not active are left alone. A poll or voter list that
// cannot be read yields ErrSurfaceUnavailable and the ticket stays active.
func (e *Engine) Resolve(ctx context.Context, t Ticket) (Outcome, error) {
	if t.Status != StatusActive {
		return Outcome{TicketID: t.ID, Kind: OutcomeNoop, Result: t.FinalResult}, nil
	}

	exists, err := e.deps.Channels.ChannelExists(ctx, t.TicketChannelID)
	if err != nil {
		return Outcome{TicketID: t.ID}, fmt.Errorf("voting: ticket %d channel: %w", t.ID, errors.Join(ErrSurfaceUnavailable, err))
	}
	if !exists {
		return e.Abandon(ctx, t, ResultChannelNotFound)
	}

	ref := PollRef{ChannelID: t.TicketChannelID, MessageID: t.PollMessageID}
	poll, err := e.deps.Surface.ReadPoll(ctx, ref)
	if err != nil {
		return Outcome{TicketID: t.ID}, fmt.Errorf("voting: ticket %d poll: %w", t.ID, errors.Join(ErrSurfaceUnavailable, err))
	}
	payload, err := t.Payload()
	if err != nil {
		return Outcome{TicketID: t.ID}, err
	}

	out := Outcome{TicketID: t.ID, Counts: PositionalCounts(poll)}
	if payload.SelfAppeal && payload.ExcludedVoter != "" {
		out.Counts, out.Excluded, err = e.excludeVoter(ctx, ref, poll, out.Counts, payload.ExcludedVoter)
		if err != nil {
			return Outcome{TicketID: t.ID}, fmt.Errorf("voting: ticket %d voters: %w", t.ID, errors.Join(ErrSurfaceUnavailable, err))
		}
	}

	if Passes(out.Counts) {
		applied, err := e.commit(ctx, t, payload)
		if err != nil {
			e.deps.Logger.Printf("voting: ticket %d commit: %v", t.ID, err)
		}
		if applied {
			out.Kind = OutcomePassed
		} else {
			out.Kind = OutcomeActionFailed
		}
	} else {
		out.Kind = OutcomeFailed
		if t.TicketType.IsAdd() {
			greylisted, err := e.demote(ctx, t, payload)
			if err != nil {
				e.deps.Logger.Printf("voting: ticket %d greylist: %v", t.ID, err)
			}
			out.Greylisted = greylisted
		}
	}
	out.Result = FormatResult(out.Kind, out.Counts)

	notice := resultNotice(t, out)
	if err := e.deps.Channels.Send(ctx, t.TicketChannelID, Message{Notice: &notice}); err != nil {
		e.deps.Logger.Printf("voting: ticket %d result notice: %v", t.ID, err)
	}
	e.transcript(ctx, t, out)

	now := e.deps.Clock.Now()
	ok, err := e.deps.Tickets.FinalizeTicket(ctx, t.ID, out.Result, now)
	if err != nil {
		return out, fmt.Errorf("voting: finalize ticket %d: %w", t.ID, err)
	}
	if !ok {
		out.Superseded = true
		e.deps.Logger.Printf("voting: ticket %d was finalized elsewhere", t.ID)
		return out, nil
	}
	e.record(ctx, Event{
		Kind:       EventTicketResolved,
		TicketID:   t.ID,
		ChannelID:  t.TicketChannelID,
		TicketType: t.TicketType,
		Target:     t.TargetName,
		Actor:      t.CreatedBy,
		Result:     out.Result,
		Yes:        out.Counts.Yes,
		No:         out.Counts.No,
		At:         now,
	})
	e.teardown(t.TicketChannelID)
	return out, nil
}

// Abandon completes t with a terminal result without tallying, used when
// its channel no longer exists.
func (e *Engine) Abandon(ctx context.Context, t Ticket, result string) (Outcome, error) {
	out := Outcome{TicketID: t.ID, Kind: OutcomeDegenerate, Result: result}
	if t.Status != StatusActive {
		out.Kind = OutcomeNoop
		out.Result = t.FinalResult
		return out, nil
	}
	now := e.deps.Clock.Now()
	ok, err := e.deps.Tickets.FinalizeTicket(ctx, t.ID, result, now)
	if err != nil {
		return out, fmt.Errorf("voting: finalize ticket %d: %w", t.ID, err)
	}
	if !ok {
		out.Superseded = true
		return out, nil
	}
	e.record(ctx, Event{
		Kind:       EventTicketResolved,
		TicketID:   t.ID,
		ChannelID:  t.TicketChannelID,
		TicketType: t.TicketType,
		Target:     t.TargetName,
		Actor:      t.CreatedBy,
		Result:     result,
		At:         now,
	})
	return out, nil
}

// excludeVoter removes the appellant's ballot from whichever answer they
// chose. Any voter read failure is returned.
func (e *Engine) excludeVoter(ctx context.Context, ref PollRef, poll *PollSnapshot, c Counts, voter string) (Counts, bool, error) {
	for i, a := range poll.Answers {
		if i > 1 {
			break
		}
		voters, err := e.deps.Surface.Voters(ctx, ref, a.ID)
		if err != nil {
			return c, false, fmt.Errorf("answer %d: %w", a.ID, err)
		}
		for _, v := range voters {
			if v == voter {
				return c.Exclude(i), true, nil
			}
		}
	}
	return c, false, nil
}

func addedBy(t Ticket) string {
	return "Vote initiated by " + t.CreatedBy
}

// commit applies a passed proposal. It reports false when the change could
// not be applied, including when the target is already in the desired state
// for an add.
func (e *Engine) commit(ctx context.Context, t Ticket, p Payload) (bool, error) {
	lists := e.deps.Lists
	switch t.TicketType {
	case KindAddPerson:
		var err error
		if t.TargetDiscordID != "" {
			_, err = lists.FindPersonIn(ctx, listing.Blacklist, t.TargetDiscordID)
		} else {
			_, err = lists.FindPersonByNationIn(ctx, listing.Blacklist, t.TargetNationID)
		}
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, listing.ErrNotFound) {
			return false, err
		}
		if err := e.dropGreylistPerson(ctx, t); err != nil {
			return false, err
		}
		person := &listing.Person{
			DiscordID:    t.TargetDiscordID,
			DiscordName:  orNone(p.DiscordName),
			NationID:     t.TargetNationID,
			NationURL:    listing.NationURL(t.TargetNationID),
			PossibleAlts: orNone(p.PossibleAlts),
			Reason:       p.Reason,
			ProofURLs:    listing.JoinProofs(p.ProofURLs),
			AddedBy:      addedBy(t),
		}
		if err := lists.InsertPerson(ctx, listing.Blacklist, person); err != nil {
			return false, err
		}
		return true, nil

	case KindAddOrg:
		name := orgName(t, p)
		if _, err := lists.FindOrganizationIn(ctx, listing.Blacklist, name); err == nil {
			return false, nil
		} else if !errors.Is(err, listing.ErrNotFound) {
			return false, err
		}
		if _, err := lists.DeleteOrganization(ctx, listing.Greylist, name); err != nil && !errors.Is(err, listing.ErrNotFound) {
			return false, err
		}
		org := &listing.Organization{
			CompanyName: name,
			Owner:       p.Owner,
			Personnel:   orNone(p.Personnel),
			Alts:        orNone(p.Alts),
			Reason:      p.Reason,
			ProofURLs:   listing.JoinProofs(p.ProofURLs),
			AddedBy:     addedBy(t),
		}
		if err := lists.InsertOrganization(ctx, listing.Blacklist, org); err != nil {
			return false, err
		}
		return true, nil

	case KindRemovePerson:
		id, nation := t.TargetDiscordID, t.TargetNationID
		if o := p.OriginalPerson; o != nil {
			if id == "" {
				id = o.DiscordID
			}
			if nation == "" {
				nation = o.NationID
			}
		}
		for _, list := range []listing.List{listing.Blacklist, listing.Greylist} {
			var err error
			if id != "" {
				_, err = lists.DeletePerson(ctx, list, id)
			} else {
				_, err = lists.DeletePersonByNation(ctx, list, nation)
			}
			if err == nil {
				return true, nil
			}
			if !errors.Is(err, listing.ErrNotFound) {
				return false, err
			}
		}
		return false, nil

	case KindRemoveOrg:
		name := orgName(t, p)
		for _, list := range []listing.List{listing.Blacklist, listing.Greylist} {
			_, err := lists.DeleteOrganization(ctx, list, name)
			if err == nil {
				return true, nil
			}
			if !errors.Is(err, listing.ErrNotFound) {
				return false, err
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("voting: kind %q: %w", t.TicketType, ErrInvalidInput)
}

func (e *Engine) dropGreylistPerson(ctx context.Context, t Ticket) error {
	var err error
	if t.TargetDiscordID != "" {
		_, err = e.deps.Lists.DeletePerson(ctx, listing.Greylist, t.TargetDiscordID)
	} else {
		_, err = e.deps.Lists.DeletePersonByNation(ctx, listing.Greylist, t.TargetNationID)
	}
	if err != nil && !errors.Is(err, listing.ErrNotFound) {
		return err
	}
	return nil
}

// demote puts the target of a failed add on the greylist unless it is
// already listed somewhere.
func (e *Engine) demote(ctx context.Context, t Ticket, p Payload) (bool, error) {
	lists := e.deps.Lists
	reason := "Failed blacklist vote - Original reason: " + p.Reason
	switch t.TicketType {
	case KindAddPerson:
		var err error
		if t.TargetDiscordID != "" {
			_, err = lists.FindPerson(ctx, t.TargetDiscordID)
		} else {
			_, err = lists.FindPersonByNation(ctx, t.TargetNationID)
		}
		if err == nil {
			return false, nil
		}
		if !errors.Is(err, listing.ErrNotFound) {
			return false, err
		}
		name := p.DiscordName
		if name == "" {
			name = t.TargetName
		}
		person := &listing.Person{
			DiscordID:    t.TargetDiscordID,
			DiscordName:  name,
			NationID:     t.TargetNationID,
			NationURL:    listing.NationURL(t.TargetNationID),
			PossibleAlts: orNone(p.PossibleAlts),
			Reason:       reason,
			ProofURLs:    listing.JoinProofs(p.ProofURLs),
			AddedBy:      addedBy(t),
		}
		if err := lists.InsertPerson(ctx, listing.Greylist, person); err != nil {
			return false, err
		}
		return true, nil

	case KindAddOrg:
		name := orgName(t, p)
		if _, err := lists.FindOrganization(ctx, name); err == nil {
			return false, nil
		} else if !errors.Is(err, listing.ErrNotFound) {
			return false, err
		}
		org := &listing.Organization{
			CompanyName: name,
			Owner:       p.Owner,
			Personnel:   orNone(p.Personnel),
			Alts:        orNone(p.Alts),
			Reason:      reason,
			ProofURLs:   listing.JoinProofs(p.ProofURLs),
			AddedBy:     addedBy(t),
		}
		if err := lists.InsertOrganization(ctx, listing.Greylist, org); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func orgName(t Ticket, p Payload) string {
	if t.TargetName != "" {
		return t.TargetName
	}
	if p.CompanyName != "" {
		return p.CompanyName
	}
	if p.OriginalCompany != nil {
		return p.OriginalCompany.CompanyName
	}
	return ""
}

func (e *Engine) transcript(ctx context.Context, t Ticket, out Outcome) {
	if e.deps.Audit == nil {
		return
	}
	history, err := e.deps.Channels.History(ctx, t.TicketChannelID)
	if err != nil {
		e.deps.Logger.Printf("voting: ticket %d history: %v", t.ID, err)
	}
	tr := Transcript{
		TicketID:    t.ID,
		ChannelID:   t.TicketChannelID,
		TicketType:  t.TicketType,
		Target:      t.TargetName,
		Result:      out.Result,
		Yes:         out.Counts.Yes,
		No:          out.Counts.No,
		GeneratedAt: e.deps.Clock.Now(),
		Messages:    history,
	}
	if err := e.deps.Audit.Transcript(ctx, tr); err != nil {
		e.deps.Logger.Printf("voting: ticket %d transcript: %v", t.ID, err)
	}
}

// teardown deletes channelID after the grace delay. Pending teardowns are
// run early by FlushTeardowns.
func (e *Engine) teardown(channelID string) {
	task := &teardownTask{}
	e.mu.Lock()
	e.pending[channelID] = task
	e.mu.Unlock()

	e.running.Add(1)
	stop := e.after(e.cfg.TeardownDelay, func() {
		defer e.running.Done()
		if !e.claim(channelID, task) {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		e.deleteChannel(ctx, channelID)
	})

	e.mu.Lock()
	task.stop = stop
	e.mu.Unlock()
}

func (e *Engine) claim(channelID string, task *teardownTask) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending[channelID] != task {
		return false
	}
	delete(e.pending, channelID)
	return true
}

func (e *Engine) deleteChannel(ctx context.Context, channelID string) {
	if err := e.deps.Channels.DeleteChannel(ctx, channelID); err != nil {
		e.deps.Logger.Printf("voting: delete channel %s: %v", channelID, err)
	}
}

// FlushTeardowns deletes every channel still waiting out its grace delay and
// waits for deletions already under way.
func (e *Engine) FlushTeardowns(ctx context.Context) error {
	e.mu.Lock()
	stops := make(map[string]func() bool, len(e.pending))
	for channelID, task := range e.pending {
		stops[channelID] = task.stop
	}
	e.pending = map[string]*teardownTask{}
	e.mu.Unlock()

	// Unclaimed timers that already fired find nothing to do.
	for channelID, stop := range stops {
		if stop != nil && stop() {
			e.running.Done()
		}
		e.deleteChannel(ctx, channelID)
	}

	done := make(chan struct{})
	go func() {
		e.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) record(ctx context.Context, ev Event) {
	if e.deps.Audit == nil {
		return
	}
	if err := e.deps.Audit.Record(ctx, ev); err != nil {
		e.deps.Logger.Printf("voting: audit %s: %v", ev.Kind, err)
	}
}
