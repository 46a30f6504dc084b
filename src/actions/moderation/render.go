package moderation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/obrc/blacklist/src/discord"
	"github.com/obrc/blacklist/src/listing"
	"github.com/obrc/blacklist/src/voting"
)

const (
	colorRed    = 0xE74C3C
	colorOrange = 0xE67E22
	colorGreen  = 0x2ECC71
	colorBlue   = 0x3498DB
)

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "None"
	}
	return s
}

func listColor(l listing.List) int {
	if l == listing.Greylist {
		return colorOrange
	}
	return colorRed
}

func entryTitle(l listing.List, company bool) string {
	icon := "🚨"
	if l == listing.Greylist {
		icon = "⚠️"
	}
	if company {
		return fmt.Sprintf("%s Company %s Entry Found", icon, l.Title())
	}
	return fmt.Sprintf("%s %s Entry Found", icon, l.Title())
}

func stamp(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "Never"
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

func personNotice(m *listing.PersonMatch) *voting.Notice {
	p := m.Person
	nation := "None"
	if p.NationID != "" {
		url := p.NationURL
		if url == "" {
			url = listing.NationURL(p.NationID)
		}
		nation = fmt.Sprintf("[%s](%s)", p.NationID, url)
	}
	discordID := "None"
	if p.DiscordID != "" {
		discordID = fmt.Sprintf("<@%s> (%s)", p.DiscordID, p.DiscordID)
	}
	added := p.DateAdded
	return &voting.Notice{
		Title: entryTitle(m.List, false),
		Color: listColor(m.List),
		Fields: []voting.NoticeField{
			{Name: "Name", Value: orNone(p.DiscordName), Inline: true},
			{Name: "Discord", Value: discordID, Inline: true},
			{Name: "Nation", Value: nation, Inline: true},
			{Name: "Possible Alts", Value: orNone(p.PossibleAlts)},
			{Name: "Reason", Value: orNone(p.Reason)},
			{Name: "Proof", Value: orNone(discord.ProofLinks(p.Proofs()))},
			{Name: "Added By", Value: orNone(p.AddedBy), Inline: true},
			{Name: "Date Added", Value: stamp(&added), Inline: true},
			{Name: "Last Modified", Value: lastModified(p.LastModified, p.ModifiedBy), Inline: true},
		},
	}
}

func orgNotice(m *listing.OrgMatch) *voting.Notice {
	o := m.Organization
	added := o.DateAdded
	return &voting.Notice{
		Title: entryTitle(m.List, true),
		Color: listColor(m.List),
		Fields: []voting.NoticeField{
			{Name: "Company", Value: orNone(o.CompanyName), Inline: true},
			{Name: "Owner", Value: orNone(o.Owner), Inline: true},
			{Name: "Personnel", Value: orNone(o.Personnel)},
			{Name: "Alts", Value: orNone(o.Alts)},
			{Name: "Reason", Value: orNone(o.Reason)},
			{Name: "Proof", Value: orNone(discord.ProofLinks(o.Proofs()))},
			{Name: "Added By", Value: orNone(o.AddedBy), Inline: true},
			{Name: "Date Added", Value: stamp(&added), Inline: true},
			{Name: "Last Modified", Value: lastModified(o.LastModified, o.ModifiedBy), Inline: true},
		},
	}
}

func lastModified(at *time.Time, by string) string {
	if at == nil {
		return "Never"
	}
	if by == "" {
		return stamp(at)
	}
	return stamp(at) + " by " + by
}

func notFoundNotice(what string) *voting.Notice {
	return &voting.Notice{
		Title:       "✅ No Entry Found",
		Description: fmt.Sprintf("%s is not on the blacklist or greylist.", what),
		Color:       colorGreen,
	}
}

func ticketNotice(t *voting.Ticket) *voting.Notice {
	return &voting.Notice{
		Title:       "✅ Voting Ticket Created",
		Description: fmt.Sprintf("Voting is open in <#%s> until <t:%d:f>.", t.TicketChannelID, t.ExpiresAt.Unix()),
		Color:       colorGreen,
	}
}

func evidenceCreatedNotice(v *voting.EvidenceVote) *voting.Notice {
	return &voting.Notice{
		Title:       "✅ Evidence Submitted",
		Description: fmt.Sprintf("Members can vote on the evidence until <t:%d:f>.", v.ExpiresAt.Unix()),
		Color:       colorGreen,
	}
}

func editNotice(results []EditResult) *voting.Notice {
	var ok, failed []string
	for _, r := range results {
		if r.OK() {
			var lists []string
			for _, l := range r.Lists {
				lists = append(lists, l.Title())
			}
			ok = append(ok, fmt.Sprintf("%s (%s)", displayTarget(r.Target), strings.Join(lists, ", ")))
			continue
		}
		failed = append(failed, fmt.Sprintf("%s: %s", displayTarget(r.Target), userMessage(r.Err)))
	}
	n := &voting.Notice{Title: "✏️ Edit Results", Color: colorBlue}
	if len(ok) > 0 {
		n.Fields = append(n.Fields, voting.NoticeField{Name: fmt.Sprintf("Updated (%d)", len(ok)), Value: strings.Join(ok, "\n")})
	}
	if len(failed) > 0 {
		n.Fields = append(n.Fields, voting.NoticeField{Name: fmt.Sprintf("Failed (%d)", len(failed)), Value: strings.Join(failed, "\n")})
		if len(ok) == 0 {
			n.Color = colorRed
		} else {
			n.Color = colorOrange
		}
	}
	return n
}

func displayTarget(target string) string {
	if target != "" && strings.Trim(target, "0123456789") == "" {
		return "<@" + target + ">"
	}
	return target
}

// failureTitle names the class of a command failure.
func failureTitle(err error) string {
	switch {
	case errors.Is(err, voting.ErrMissingField):
		return "❌ Missing Required Fields"
	case errors.Is(err, voting.ErrInvalidInput), errors.Is(err, ErrNoTargets),
		errors.Is(err, ErrNoChanges), errors.Is(err, ErrUnknownList), errors.Is(err, listing.ErrInvalidField):
		return "❌ Invalid Input"
	case errors.Is(err, voting.ErrDuplicateEntry):
		return "❌ Already Listed"
	case errors.Is(err, voting.ErrNotFound), errors.Is(err, listing.ErrNotFound):
		return "❌ Entry Not Found"
	case errors.Is(err, voting.ErrNotBlacklisted):
		return "❌ Not Blacklisted"
	case errors.Is(err, voting.ErrNotAuthorized):
		return "❌ Not Authorized"
	case errors.Is(err, voting.ErrNotVotingTicket):
		return "❌ Not a Voting Ticket"
	}
	return "❌ Error"
}

// userMessage is safe to show to the member. Internal failures are not
// described.
func userMessage(err error) string {
	if voting.IsValidation(err) || errors.Is(err, listing.ErrNotFound) || errors.Is(err, listing.ErrInvalidField) ||
		errors.Is(err, ErrNoTargets) || errors.Is(err, ErrNoChanges) || errors.Is(err, ErrUnknownList) {
		msg := strings.ReplaceAll(err.Error(), "voting: ", "")
		msg = strings.ReplaceAll(msg, "moderation: ", "")
		msg = strings.ReplaceAll(msg, "listing: ", "")
		return msg
	}
	return "Something went wrong. Please try again later."
}

func failureNotice(err error) *voting.Notice {
	return &voting.Notice{Title: failureTitle(err), Description: userMessage(err), Color: colorRed}
}
