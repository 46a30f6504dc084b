package audit

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/obrc/blacklist/src/voting"
)

var _ voting.AuditSink = (Multi)(nil)

// Multi fans every record out to all sinks. One sink failing does not stop
// the others.
type Multi []voting.AuditSink

func (m Multi) Record(ctx context.Context, e voting.Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Transcript(ctx context.Context, t voting.Transcript) error {
	var errs []error
	for _, s := range m {
		if err := s.Transcript(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSink writes records to a logger. It is always part of the chain so the
// process log carries the full trail.
type LogSink struct {
	Logger *log.Logger
}

func (l LogSink) logger() *log.Logger {
	if l.Logger == nil {
		return log.Default()
	}
	return l.Logger
}

func (l LogSink) Record(_ context.Context, e voting.Event) error {
	l.logger().Printf("audit: %s", describe(e))
	return nil
}

func (l LogSink) Transcript(_ context.Context, t voting.Transcript) error {
	l.logger().Printf("audit: transcript ticket=%d messages=%d digest=%s", t.TicketID, len(t.Messages), Digest(RenderTranscript(t)))
	return nil
}

func describe(e voting.Event) string {
	s := e.Kind
	if e.TicketID != 0 {
		s += fmt.Sprintf(" ticket=%d", e.TicketID)
	}
	if e.EvidenceID != 0 {
		s += fmt.Sprintf(" evidence=%d", e.EvidenceID)
	}
	if e.TicketType != "" {
		s += fmt.Sprintf(" type=%s", e.TicketType)
	}
	if e.Target != "" {
		s += fmt.Sprintf(" target=%q", e.Target)
	}
	if e.Result != "" {
		s += " result=" + e.Result
	}
	if e.Actor != "" {
		s += " actor=" + e.Actor
	}
	return s
}
