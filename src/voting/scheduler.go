package voting

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/robfig/cron/v3"
)

// SweepReport summarizes one sweep.
type SweepReport struct {
	Tickets  int
	Evidence int
	Resolved int
	Deferred int
	Skipped  int
	Failed   int
}

// Scheduler periodically hands expired tickets and evidence votes to the
// engine.
type Scheduler struct {
	engine *Engine
	cfg    Config
	deps   Deps

	mu     sync.Mutex
	cron   *cron.Cron
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler returns a Scheduler driving engine.
func NewScheduler(engine *Engine, cfg Config, deps Deps) *Scheduler {
	return &Scheduler{engine: engine, cfg: cfg.withDefaults(), deps: deps.withDefaults()}
}

// Start runs a sweep immediately and then every SweepInterval until Stop or
// until ctx ends. A sweep that is still running when the next one is due
// causes that one to be skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return errors.New("voting: scheduler already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	logger := cron.PrintfLogger(s.deps.Logger)
	job := cron.NewChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)).Then(cron.FuncJob(func() {
		report := s.Sweep(ctx)
		if report.Tickets+report.Evidence > 0 {
			s.deps.Logger.Printf("voting: sweep tickets=%d evidence=%d resolved=%d deferred=%d skipped=%d failed=%d",
				report.Tickets, report.Evidence, report.Resolved, report.Deferred, report.Skipped, report.Failed)
		}
	}))
	c := cron.New(cron.WithLogger(logger))
	c.Schedule(cron.Every(s.cfg.SweepInterval), job)
	c.Start()
	s.cron = c
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		job.Run()
	}()
	s.deps.Logger.Printf("voting: scheduler started, sweeping every %s", s.cfg.SweepInterval)
	return nil
}

// Stop halts the schedule, lets a running sweep finish the item it is on,
// and then runs any channel teardowns still waiting out their grace delay.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c, cancel := s.cron, s.cancel
	s.cron, s.cancel = nil, nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	cancel()
	done := make(chan struct{})
	go func() {
		<-c.Stop().Done()
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.engine.FlushTeardowns(ctx)
}

// Sweep resolves everything that expired before now. One item failing never
// stops the rest. Cancelling ctx stops the sweep between items; an item
// already being resolved runs to completion.
func (s *Scheduler) Sweep(ctx context.Context) SweepReport {
	var report SweepReport
	now := s.deps.Clock.Now()
	work := context.WithoutCancel(ctx)

	tickets, err := s.deps.Tickets.ExpiredTickets(ctx, now)
	if err != nil {
		s.deps.Logger.Printf("voting: list expired tickets: %v", err)
	}
	report.Tickets = len(tickets)
	for _, t := range tickets {
		if ctx.Err() != nil {
			return report
		}
		s.tally(&report, s.isolate("ticket "+strconv.FormatUint(t.ID, 10), func() (bool, error) {
			return s.sweepTicket(work, t.ID)
		}))
	}

	votes, err := s.deps.Tickets.ExpiredEvidence(ctx, now)
	if err != nil {
		s.deps.Logger.Printf("voting: list expired evidence votes: %v", err)
	}
	report.Evidence = len(votes)
	for _, v := range votes {
		if ctx.Err() != nil {
			return report
		}
		s.tally(&report, s.isolate("evidence "+strconv.FormatUint(v.ID, 10), func() (bool, error) {
			return s.sweepEvidence(work, v.ID)
		}))
	}
	return report
}

type itemResult int

const (
	itemResolved itemResult = iota
	itemSkipped
	itemDeferred
	itemFailed
)

func (s *Scheduler) tally(r *SweepReport, res itemResult) {
	switch res {
	case itemResolved:
		r.Resolved++
	case itemSkipped:
		r.Skipped++
	case itemDeferred:
		r.Deferred++
	default:
		r.Failed++
	}
}

// isolate runs fn, turning a panic into a failure.
func (s *Scheduler) isolate(name string, fn func() (bool, error)) (res itemResult) {
	defer func() {
		if r := recover(); r != nil {
			s.deps.Logger.Printf("voting: %s panicked: %v", name, r)
			res = itemFailed
		}
	}()
	done, err := fn()
	switch {
	case errors.Is(err, ErrSurfaceUnavailable):
		s.deps.Logger.Printf("voting: %s deferred: %v", name, err)
		return itemDeferred
	case err != nil:
		s.deps.Logger.Printf("voting: %s: %v", name, err)
		return itemFailed
	case !done:
		return itemSkipped
	}
	return itemResolved
}

func (s *Scheduler) lock(ctx context.Context, key string) (func(), bool, error) {
	unlock, ok, err := s.deps.Locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		return nil, false, fmt.Errorf("voting: lock %s: %w", key, err)
	}
	return unlock, ok, nil
}

// sweepTicket reloads the ticket under its lock so a row finalized by
// another instance is not resolved twice.
func (s *Scheduler) sweepTicket(ctx context.Context, id uint64) (bool, error) {
	unlock, ok, err := s.lock(ctx, "obrc:ticket:"+strconv.FormatUint(id, 10))
	if err != nil || !ok {
		return false, err
	}
	defer unlock()

	t, err := s.deps.Tickets.Ticket(ctx, id)
	if err != nil {
		return false, err
	}
	if t.Status != StatusActive {
		return false, nil
	}
	exists, err := s.deps.Channels.ChannelExists(ctx, t.TicketChannelID)
	if err != nil {
		return false, fmt.Errorf("channel %s: %w", t.TicketChannelID, errors.Join(ErrSurfaceUnavailable, err))
	}
	var out Outcome
	if !exists {
		out, err = s.engine.Abandon(ctx, *t, ResultChannelDeleted)
	} else {
		out, err = s.engine.Resolve(ctx, *t)
	}
	if err != nil {
		return false, err
	}
	return !out.Superseded && out.Kind != OutcomeNoop, nil
}

func (s *Scheduler) sweepEvidence(ctx context.Context, id uint64) (bool, error) {
	unlock, ok, err := s.lock(ctx, "obrc:evidence:"+strconv.FormatUint(id, 10))
	if err != nil || !ok {
		return false, err
	}
	defer unlock()

	v, err := s.deps.Tickets.Evidence(ctx, id)
	if err != nil {
		return false, err
	}
	if v.Status != StatusActive {
		return false, nil
	}
	exists, err := s.deps.Channels.ChannelExists(ctx, v.TicketChannelID)
	if err != nil {
		return false, fmt.Errorf("channel %s: %w", v.TicketChannelID, errors.Join(ErrSurfaceUnavailable, err))
	}
	var out EvidenceOutcome
	if !exists {
		out, err = s.engine.AbandonEvidence(ctx, *v, ResultChannelDeleted)
	} else {
		out, err = s.engine.ResolveEvidence(ctx, *v)
	}
	if err != nil {
		return false, err
	}
	return !out.Superseded && !out.Noop, nil
}
