package voting

import (
	"context"
	"errors"
	"fmt"
)

// ResolveEvidence decides an expired evidence vote. The parent ticket is
// never touched.
func (e *Engine) ResolveEvidence(ctx context.Context, v EvidenceVote) (EvidenceOutcome, error) {
	out := EvidenceOutcome{EvidenceID: v.ID}
	if v.Status != StatusActive {
		out.Noop = true
		out.Result = v.FinalResult
		return out, nil
	}

	exists, err := e.deps.Channels.ChannelExists(ctx, v.TicketChannelID)
	if err != nil {
		return out, fmt.Errorf("voting: evidence %d channel: %w", v.ID, errors.Join(ErrSurfaceUnavailable, err))
	}
	if !exists {
		return e.AbandonEvidence(ctx, v, ResultChannelNotFound)
	}

	poll, err := e.deps.Surface.ReadPoll(ctx, PollRef{ChannelID: v.TicketChannelID, MessageID: v.MessageID})
	switch {
	case errors.Is(err, ErrMessageNotFound):
		return e.AbandonEvidence(ctx, v, ResultMessageNotFound)
	case errors.Is(err, ErrNoPoll):
		poll = nil
	case err != nil:
		return out, fmt.Errorf("voting: evidence %d poll: %w", v.ID, errors.Join(ErrSurfaceUnavailable, err))
	}

	out.Counts = EvidenceCounts(poll)
	out.Result = EvidenceResult(out.Counts)

	notice := evidenceResultNotice(v, out.Result, out.Counts)
	if err := e.deps.Channels.Send(ctx, v.TicketChannelID, Message{Notice: &notice}); err != nil {
		e.deps.Logger.Printf("voting: evidence %d result notice: %v", v.ID, err)
	}
	return e.finishEvidence(ctx, v, out)
}

// AbandonEvidence completes v with a terminal result without tallying.
func (e *Engine) AbandonEvidence(ctx context.Context, v EvidenceVote, result string) (EvidenceOutcome, error) {
	if v.Status != StatusActive {
		return EvidenceOutcome{EvidenceID: v.ID, Noop: true, Result: v.FinalResult}, nil
	}
	return e.finishEvidence(ctx, v, EvidenceOutcome{EvidenceID: v.ID, Result: result})
}

func (e *Engine) finishEvidence(ctx context.Context, v EvidenceVote, out EvidenceOutcome) (EvidenceOutcome, error) {
	now := e.deps.Clock.Now()
	ok, err := e.deps.Tickets.FinalizeEvidence(ctx, v.ID, out.Result, now)
	if err != nil {
		return out, fmt.Errorf("voting: finalize evidence %d: %w", v.ID, err)
	}
	if !ok {
		out.Superseded = true
		return out, nil
	}
	e.record(ctx, Event{
		Kind:       EventEvidenceResolved,
		EvidenceID: v.ID,
		ChannelID:  v.TicketChannelID,
		Actor:      v.SubmittedBy,
		Result:     out.Result,
		Yes:        out.Counts.Yes,
		No:         out.Counts.No,
		Detail:     v.EvidenceURL,
		At:         now,
	})
	return out, nil
}
