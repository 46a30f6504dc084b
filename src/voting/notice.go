package voting

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/obrc/blacklist/src/listing"
)

const (
	emojiYes = "✅"
	emojiNo  = "❌"

	colorBlue   = 0x3498DB
	colorGreen  = 0x2ECC71
	colorRed    = 0xE74C3C
	colorOrange = 0xE67E22
	colorGold   = 0xF1C40F

	evidenceQuestion = "Should this evidence be accepted for the case?"
	negativeAnswer   = "No - Keep current status"

	appealWarning = "DO NOTE: IF THE APPEALING PARTY IS CAUGHT VOTING, THEIR VOTE WILL BE DISCOUNTED AND THE APPEAL MAY BE VOIDED."
)

var channelNameInvalid = regexp.MustCompile(`[^a-z0-9_-]+`)

// ChannelName builds a ticket channel name from kind and target.
func ChannelName(kind Kind, target string) string {
	name := strings.ToLower(strings.TrimSpace(target))
	name = strings.ReplaceAll(name, " ", "-")
	name = channelNameInvalid.ReplaceAllString(name, "")
	name = strings.Trim(name, "-")
	if name == "" {
		name = "target"
	}
	full := strings.ReplaceAll(string(kind), "_", "-") + "-" + name
	if len(full) > 100 {
		full = full[:100]
	}
	return full
}

// PollQuestion is the question of a primary poll.
func PollQuestion(kind Kind, target string) string {
	return fmt.Sprintf("%s blacklist: %s?", kind.Action(), target)
}

// PollAnswers are the two answers of a primary poll in tally order.
func PollAnswers(kind Kind) []Answer {
	return []Answer{
		{Label: "Yes - " + kind.Action() + " blacklist", Emoji: emojiYes},
		{Label: negativeAnswer, Emoji: emojiNo},
	}
}

// EvidenceAnswers are the answers of an evidence poll.
func EvidenceAnswers() []Answer {
	return []Answer{
		{Label: "Accept Evidence", Emoji: emojiYes},
		{Label: "Reject Evidence", Emoji: emojiNo},
	}
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func proofLines(urls []string) string {
	if len(urls) == 0 {
		return "None"
	}
	lines := make([]string, 0, len(urls))
	for i, u := range urls {
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, u))
	}
	return truncate(strings.Join(lines, "\n"), 1024)
}

func proposalNotice(t *Ticket, p Payload, requester string, now time.Time) Notice {
	n := Notice{
		Title:     fmt.Sprintf("🗳️ %s blacklist: %s", t.TicketType.Action(), t.TargetName),
		Color:     colorBlue,
		Timestamp: now,
		Footer:    fmt.Sprintf("Voting closes %s", t.ExpiresAt.Format(time.RFC1123)),
	}
	n.Fields = append(n.Fields, NoticeField{Name: "Proposed by", Value: "<@" + requester + ">", Inline: true})
	switch t.TicketType {
	case KindAddPerson:
		if t.TargetDiscordID != "" {
			n.Fields = append(n.Fields, NoticeField{Name: "Discord", Value: fmt.Sprintf("<@%s> (%s)", t.TargetDiscordID, t.TargetDiscordID), Inline: true})
		}
		if t.TargetNationID != "" {
			n.Fields = append(n.Fields, NoticeField{Name: "Nation", Value: listing.NationURL(t.TargetNationID), Inline: true})
		}
		n.Fields = append(n.Fields,
			NoticeField{Name: "Possible alts", Value: orNone(p.PossibleAlts)},
			NoticeField{Name: "Reason", Value: truncate(p.Reason, 1024)},
			NoticeField{Name: "Proof", Value: proofLines(p.ProofURLs)},
		)
	case KindAddOrg:
		n.Fields = append(n.Fields,
			NoticeField{Name: "Owner", Value: orNone(p.Owner), Inline: true},
			NoticeField{Name: "Personnel", Value: orNone(p.Personnel), Inline: true},
			NoticeField{Name: "Alts", Value: orNone(p.Alts)},
			NoticeField{Name: "Reason", Value: truncate(p.Reason, 1024)},
			NoticeField{Name: "Proof", Value: proofLines(p.ProofURLs)},
		)
	case KindRemovePerson:
		if o := p.OriginalPerson; o != nil {
			n.Fields = append(n.Fields,
				NoticeField{Name: "Current list", Value: p.OriginalList.Title(), Inline: true},
				NoticeField{Name: "Original reason", Value: truncate(orNone(o.Reason), 1024)},
				NoticeField{Name: "Original proof", Value: proofLines(o.Proofs())},
			)
		}
		n.Fields = append(n.Fields, NoticeField{Name: "Removal reason", Value: truncate(p.Reason, 1024)})
	case KindRemoveOrg:
		if o := p.OriginalCompany; o != nil {
			n.Fields = append(n.Fields,
				NoticeField{Name: "Current list", Value: p.OriginalList.Title(), Inline: true},
				NoticeField{Name: "Owner", Value: orNone(o.Owner), Inline: true},
				NoticeField{Name: "Original reason", Value: truncate(orNone(o.Reason), 1024)},
			)
		}
		n.Fields = append(n.Fields, NoticeField{Name: "Removal reason", Value: truncate(p.Reason, 1024)})
	}
	if p.SelfAppeal {
		n.Color = colorGold
		n.Fields = append(n.Fields, NoticeField{Name: "⚠️ Appeal", Value: "The appellant's own ballot will not be counted."})
	}
	n.Description = "Vote in the poll below. A two-thirds majority of cast ballots is required to pass."
	return n
}

func voterNotice(t *Ticket, channelID string) Notice {
	return Notice{
		Title:       "🗳️ New blacklist vote",
		Description: fmt.Sprintf("A vote to %s blacklist **%s** has opened in <#%s>.", strings.ToLower(t.TicketType.Action()), t.TargetName, channelID),
		Color:       colorBlue,
		Footer:      fmt.Sprintf("Voting closes %s", t.ExpiresAt.Format(time.RFC1123)),
	}
}

func resultNotice(t Ticket, o Outcome) Notice {
	n := Notice{
		Title:       fmt.Sprintf("🗳️ Vote result: %s", o.Kind),
		Description: fmt.Sprintf("**Votes:** %s %d | %s %d\n**Total:** %d", emojiYes, o.Counts.Yes, emojiNo, o.Counts.No, o.Counts.Total()),
		Timestamp:   time.Now().UTC(),
	}
	switch o.Kind {
	case OutcomePassed:
		n.Color = colorGreen
		n.Fields = append(n.Fields, NoticeField{Name: "Action", Value: fmt.Sprintf("%s blacklist: %s completed.", t.TicketType.Action(), t.TargetName)})
	case OutcomeActionFailed:
		n.Color = colorOrange
		n.Fields = append(n.Fields, NoticeField{Name: "Action", Value: "The vote passed but the list change could not be applied."})
	default:
		n.Color = colorRed
		n.Fields = append(n.Fields, NoticeField{Name: "Action", Value: "No change to the blacklist."})
	}
	if o.Greylisted {
		n.Fields = append(n.Fields, NoticeField{Name: "Greylist", Value: t.TargetName + " has been added to the greylist."})
	}
	if o.Excluded {
		n.Fields = append(n.Fields, NoticeField{Name: "Appeal", Value: "The appellant's own ballot was discarded."})
	}
	n.Footer = "This channel will be deleted shortly."
	return n
}

func evidenceNotice(v *EvidenceVote, minutes int) Notice {
	n := Notice{
		Title:       "📎 Evidence submitted",
		Description: truncate(orNone(v.EvidenceDescription), 2048),
		Color:       colorBlue,
		Fields: []NoticeField{
			{Name: "Submitted by", Value: "<@" + v.SubmittedBy + ">", Inline: true},
			{Name: "Voting window", Value: fmt.Sprintf("%d minutes", minutes), Inline: true},
		},
		Timestamp: v.CreatedAt,
	}
	if v.EvidenceURL != "" {
		n.Fields = append(n.Fields, NoticeField{Name: "Evidence", Value: v.EvidenceURL})
	}
	return n
}

func evidenceResultNotice(v EvidenceVote, result string, c Counts) Notice {
	n := Notice{
		Title:       "📎 Evidence vote: " + strings.ToUpper(result),
		Description: fmt.Sprintf("**Accept:** %d | **Reject:** %d", c.Yes, c.No),
		Timestamp:   time.Now().UTC(),
	}
	switch result {
	case EvidenceAccepted:
		n.Color = colorGreen
	case EvidenceRejected:
		n.Color = colorRed
	default:
		n.Color = colorOrange
	}
	if v.EvidenceURL != "" {
		n.Fields = append(n.Fields, NoticeField{Name: "Evidence", Value: v.EvidenceURL})
	}
	return n
}
