package voting

import (
	"fmt"
	"strings"
)

// Counts is a two-way tally.
type Counts struct {
	Yes int
	No  int
}

// Total is the number of counted ballots.
func (c Counts) Total() int { return c.Yes + c.No }

// Passes applies the two-thirds supermajority. An empty tally fails.
func Passes(c Counts) bool {
	total := c.Total()
	if total == 0 {
		return false
	}
	return c.Yes*3 >= total*2
}

// Exclude removes one ballot from the answer at index. Counts never go
// below zero.
func (c Counts) Exclude(index int) Counts {
	switch index {
	case 0:
		if c.Yes > 0 {
			c.Yes--
		}
	case 1:
		if c.No > 0 {
			c.No--
		}
	}
	return c
}

// PositionalCounts reads a primary poll: first answer is yes, second is no.
func PositionalCounts(p *PollSnapshot) Counts {
	var c Counts
	if p == nil {
		return c
	}
	if len(p.Answers) > 0 {
		c.Yes = p.Answers[0].Count
	}
	if len(p.Answers) > 1 {
		c.No = p.Answers[1].Count
	}
	return c
}

// EvidenceCounts reads an evidence poll by answer label or emoji, so answer
// order does not matter.
func EvidenceCounts(p *PollSnapshot) Counts {
	var c Counts
	if p == nil {
		return c
	}
	for _, a := range p.Answers {
		label := strings.ToLower(a.Label)
		switch {
		case strings.Contains(label, "accept") || a.Emoji == emojiYes:
			c.Yes = a.Count
		case strings.Contains(label, "reject") || a.Emoji == emojiNo:
			c.No = a.Count
		}
	}
	return c
}

// EvidenceResult decides an evidence vote.
func EvidenceResult(c Counts) string {
	switch {
	case c.Yes > c.No:
		return EvidenceAccepted
	case c.No > c.Yes:
		return EvidenceRejected
	}
	return EvidenceTied
}

// OutcomeKind classifies a resolution.
type OutcomeKind string

const (
	OutcomePassed       OutcomeKind = "PASSED"
	OutcomeFailed       OutcomeKind = "FAILED"
	OutcomeActionFailed OutcomeKind = "ACTION_FAILED"
	OutcomeDegenerate   OutcomeKind = "DEGENERATE"
	OutcomeNoop         OutcomeKind = "NOOP"
)

// Outcome is what Resolve did with a ticket.
type Outcome struct {
	TicketID uint64
	Kind     OutcomeKind
	Result   string
	Counts   Counts
	// Excluded is true when the appellant's own ballot was discarded.
	Excluded bool
	// Greylisted is true when a failed add demoted the target.
	Greylisted bool
	// Superseded is true when another resolver finalized the ticket first.
	Superseded bool
}

// FormatResult renders the stored final result for a tallied ticket.
func FormatResult(kind OutcomeKind, c Counts) string {
	return fmt.Sprintf("%s:%d:%d", kind, c.Yes, c.No)
}

// EvidenceOutcome is what ResolveEvidence did with a vote.
type EvidenceOutcome struct {
	EvidenceID uint64
	Result     string
	Counts     Counts
	Noop       bool
	Superseded bool
}
