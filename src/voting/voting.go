// Package voting runs the proposal lifecycle: a proposal opens a restricted
// ticket channel with a two-answer poll, the scheduler picks it up after
// expiry, and the engine tallies it and applies the list change exactly once.
package voting

import (
	"log"
	"time"
)

// Defaults.
const (
	DefaultPollDuration     = 24 * time.Hour
	DefaultEvidenceMinutes  = 1440
	DefaultTeardownDelay    = 30 * time.Second
	DefaultSweepInterval    = 5 * time.Minute
	DefaultLockTTL          = 2 * time.Minute
	DefaultDirectMessageGap = 500 * time.Millisecond
)

// Config tunes the lifecycle.
type Config struct {
	// VoterRoleID is the only role allowed into ticket channels.
	VoterRoleID      string
	PollDuration     time.Duration
	EvidenceMinutes  int
	TeardownDelay    time.Duration
	SweepInterval    time.Duration
	LockTTL          time.Duration
	DirectMessageGap time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollDuration <= 0 {
		c.PollDuration = DefaultPollDuration
	}
	if c.EvidenceMinutes <= 0 {
		c.EvidenceMinutes = DefaultEvidenceMinutes
	}
	if c.TeardownDelay <= 0 {
		c.TeardownDelay = DefaultTeardownDelay
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.LockTTL <= 0 {
		c.LockTTL = DefaultLockTTL
	}
	if c.DirectMessageGap < 0 {
		c.DirectMessageGap = 0
	}
	return c
}

// Deps are the collaborators shared by the builder, engine and scheduler.
type Deps struct {
	Tickets  TicketStore
	Lists    ListStore
	Surface  VoteSurface
	Channels ChannelProvider
	Audit    AuditSink
	Locker   Locker
	Clock    Clock
	Logger   *log.Logger
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = SystemClock
	}
	if d.Locker == nil {
		d.Locker = NopLocker{}
	}
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	return d
}
