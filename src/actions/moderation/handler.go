package moderation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/obrc/blacklist/src/config"
	"github.com/obrc/blacklist/src/discord"
	"github.com/obrc/blacklist/src/identity"
	"github.com/obrc/blacklist/src/listing"
	"github.com/obrc/blacklist/src/voting"
)

const commandTimeout = 2 * time.Minute

// gate is the permission a command requires.
type gate int

const (
	gateNone gate = iota
	gateCommissioner
	gateMember
)

var commandGates = map[string]gate{
	discord.CommandProposeAdd:           gateCommissioner,
	discord.CommandProposeAddCompany:    gateCommissioner,
	discord.CommandProposeRemove:        gateCommissioner,
	discord.CommandProposeRemoveCompany: gateCommissioner,
	discord.CommandEditEntry:            gateCommissioner,
	discord.CommandEditCompanyEntry:     gateCommissioner,
	discord.CommandSearchList:           gateMember,
	discord.CommandSearchNation:         gateMember,
	discord.CommandSearchCompany:        gateMember,
	discord.CommandExport:               gateMember,
	discord.CommandAppeal:               gateNone,
	discord.CommandAppealCompany:        gateNone,
	discord.CommandAddEvidence:          gateNone,
}

// invocation is a slash command with its options resolved.
type invocation struct {
	Command     string
	ChannelID   string
	Invoker     identity.Identity
	Strings     map[string]string
	Attachments map[string]string
	Users       map[string]identity.Identity
}

func (inv invocation) str(name string) string {
	return strings.TrimSpace(inv.Strings[name])
}

func (inv invocation) proofs(names ...string) []string {
	var out []string
	for _, n := range names {
		if url := inv.Attachments[n]; url != "" {
			out = append(out, url)
		}
	}
	return out
}

// reply is what the deferred interaction response is edited to.
type reply struct {
	Content string
	Notice  *voting.Notice
	File    *voting.File
}

// Handler executes the moderation slash commands.
type Handler struct {
	Config  *config.ModerationConfig
	Service *Service
}

// memberIdentity describes a guild member.
func memberIdentity(m *discordgo.Member) identity.Identity {
	if m == nil || m.User == nil {
		return identity.Identity{}
	}
	return userIdentity(m.User, m.Nick)
}

func userIdentity(u *discordgo.User, nick string) identity.Identity {
	display := nick
	if display == "" {
		display = u.GlobalName
	}
	return identity.Identity{ID: u.ID, Username: u.Username, DisplayName: display}
}

func parseInvocation(i *discordgo.InteractionCreate) invocation {
	data := i.ApplicationCommandData()
	inv := invocation{
		Command:     data.Name,
		ChannelID:   i.ChannelID,
		Invoker:     memberIdentity(i.Member),
		Strings:     map[string]string{},
		Attachments: map[string]string{},
		Users:       map[string]identity.Identity{},
	}
	for _, opt := range data.Options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionString:
			inv.Strings[opt.Name] = opt.StringValue()
		case discordgo.ApplicationCommandOptionAttachment:
			id, _ := opt.Value.(string)
			if data.Resolved != nil {
				if a, ok := data.Resolved.Attachments[id]; ok && a != nil {
					inv.Attachments[opt.Name] = a.URL
				}
			}
		case discordgo.ApplicationCommandOptionUser:
			id, _ := opt.Value.(string)
			who := identity.Identity{ID: id}
			if data.Resolved != nil {
				nick := ""
				if m, ok := data.Resolved.Members[id]; ok && m != nil {
					nick = m.Nick
				}
				if u, ok := data.Resolved.Users[id]; ok && u != nil {
					who = userIdentity(u, nick)
				}
			}
			inv.Users[opt.Name] = who
		}
	}
	return inv
}

func (h *Handler) allowed(s *discordgo.Session, i *discordgo.InteractionCreate, g gate) bool {
	switch g {
	case gateCommissioner:
		return h.Config.CommissionerRoleID != "" && discord.MemberHasRole(i.Member, h.Config.CommissionerRoleID)
	case gateMember:
		return discord.HasRoleNamed(s, h.Config.Base.GuildID, i.Member, h.Config.MemberRoleName)
	}
	return true
}

func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		log.Printf("moderation: respond: %v", err)
	}
}

// HandleSlash runs one moderation command.
func (h *Handler) HandleSlash(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	if h == nil {
		return
	}
	name := i.ApplicationCommandData().Name
	g, known := commandGates[name]
	if !known {
		return
	}
	if i.Member == nil || i.Member.User == nil {
		respondEphemeral(s, i, "This command can only be used in the server.")
		return
	}
	if !h.allowed(s, i, g) {
		respondEphemeral(s, i, "You don't have the required permission level.")
		return
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		log.Printf("moderation: failed to acknowledge %s: %v", name, err)
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()
	out := h.run(runCtx, parseInvocation(i))

	edit := &discordgo.WebhookEdit{}
	if out.Content != "" {
		edit.Content = &out.Content
	}
	if embed := discord.NoticeEmbed(out.Notice); embed != nil {
		edit.Embeds = &[]*discordgo.MessageEmbed{embed}
	}
	if out.File != nil {
		edit.Files = []*discordgo.File{{
			Name:        out.File.Name,
			ContentType: out.File.ContentType,
			Reader:      bytes.NewReader(out.File.Data),
		}}
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit); err != nil {
		log.Printf("moderation: failed to edit %s response: %v", name, err)
	}
}

func (h *Handler) fail(inv invocation, err error) reply {
	if !voting.IsValidation(err) && !errors.Is(err, listing.ErrNotFound) {
		log.Printf("moderation: %s by %s failed: %v", inv.Command, inv.Invoker.ID, err)
	}
	return reply{Notice: failureNotice(err)}
}

func (h *Handler) run(ctx context.Context, inv invocation) reply {
	switch inv.Command {
	case discord.CommandProposeAdd:
		return h.propose(ctx, inv, voting.Request{
			Kind: voting.KindAddPerson,
			Target: voting.Target{
				Name:      inv.str("name"),
				DiscordID: inv.str("id"),
				NationID:  inv.str("nation_id"),
			},
			Reason:    inv.str("reason"),
			ProofURLs: inv.proofs("proof", "proof2", "proof3"),
			Aliases:   inv.str("pos_alts"),
		})
	case discord.CommandProposeAddCompany:
		return h.propose(ctx, inv, voting.Request{
			Kind:      voting.KindAddOrg,
			Target:    voting.Target{Name: inv.str("company_name")},
			Owner:     inv.str("owner"),
			Personnel: inv.str("personnel"),
			Aliases:   inv.str("alts"),
			Reason:    inv.str("reason"),
			ProofURLs: inv.proofs("proof", "proof2", "proof3"),
		})
	case discord.CommandProposeRemove:
		target := voting.Target{DiscordID: inv.str("id"), NationID: inv.str("nation_id")}
		if target.DiscordID == "" && target.NationID != "" {
			if m, err := h.Service.SearchNation(ctx, target.NationID); err == nil {
				target.DiscordID, target.Name = m.DiscordID, m.DiscordName
			}
		}
		return h.propose(ctx, inv, voting.Request{
			Kind:   voting.KindRemovePerson,
			Target: target,
			Reason: inv.str("reason"),
		})
	case discord.CommandProposeRemoveCompany:
		return h.propose(ctx, inv, voting.Request{
			Kind:   voting.KindRemoveOrg,
			Target: voting.Target{Name: inv.str("company_name")},
			Reason: inv.str("reason"),
		})
	case discord.CommandAppeal:
		return h.propose(ctx, inv, voting.Request{
			Kind:   voting.KindRemovePerson,
			Target: voting.Target{DiscordID: inv.Invoker.ID, Name: inv.Invoker.String()},
			Reason: inv.str("reason"),
			Appeal: true,
		})
	case discord.CommandAppealCompany:
		return h.propose(ctx, inv, voting.Request{
			Kind:   voting.KindRemoveOrg,
			Target: voting.Target{Name: inv.str("company_name")},
			Reason: inv.str("reason"),
			Appeal: true,
		})
	case discord.CommandAddEvidence:
		v, err := h.Service.AddEvidence(ctx, voting.EvidenceRequest{
			ChannelID:   inv.ChannelID,
			URL:         inv.Attachments["evidence"],
			Description: inv.str("description"),
			Submitter:   inv.Invoker,
		})
		if err != nil {
			return h.fail(inv, err)
		}
		return reply{Notice: evidenceCreatedNotice(v)}
	case discord.CommandSearchList:
		who := inv.Users["name"]
		m, err := h.Service.SearchMember(ctx, who.ID)
		return h.searchReply(inv, err, who.Mention(), func() *voting.Notice { return personNotice(m) })
	case discord.CommandSearchNation:
		term := inv.str("nation")
		m, err := h.Service.SearchNation(ctx, term)
		return h.searchReply(inv, err, "Nation "+listing.ParseNationID(term), func() *voting.Notice { return personNotice(m) })
	case discord.CommandSearchCompany:
		name := inv.str("company_name")
		m, err := h.Service.SearchCompany(ctx, name)
		return h.searchReply(inv, err, name, func() *voting.Notice { return orgNotice(m) })
	case discord.CommandEditEntry:
		return h.edit(ctx, inv, h.Service.EditPeople, inv.str("names"), []FieldChange{
			{Field: "nation_id", Value: inv.str("nation_id")},
			{Field: "reason", Value: inv.str("reason")},
			{Field: "possible_alts", Value: inv.str("pos_alts")},
			{Field: "proof_urls", Value: listing.JoinProofs(inv.proofs("proof", "proof2", "proof3"))},
		})
	case discord.CommandEditCompanyEntry:
		return h.edit(ctx, inv, h.Service.EditCompanies, inv.str("company_names"), []FieldChange{
			{Field: "owner", Value: inv.str("owner")},
			{Field: "personnel", Value: inv.str("personnel")},
			{Field: "alts", Value: inv.str("alts")},
			{Field: "reason", Value: inv.str("reason")},
			{Field: "proof_urls", Value: listing.JoinProofs(inv.proofs("proof", "proof2", "proof3"))},
		})
	case discord.CommandExport:
		file, rows, err := h.Service.Export(ctx, inv.str("list_type"))
		if err != nil {
			return h.fail(inv, err)
		}
		return reply{Content: fmt.Sprintf("📊 Exported %d entries.", rows), File: &file}
	}
	return reply{Content: "Unknown command."}
}

func (h *Handler) propose(ctx context.Context, inv invocation, req voting.Request) reply {
	req.Requester = inv.Invoker
	t, err := h.Service.Propose(ctx, req)
	if err != nil {
		return h.fail(inv, err)
	}
	log.Printf("moderation: %s opened ticket %d in %s", inv.Invoker.ID, t.ID, t.TicketChannelID)
	return reply{Notice: ticketNotice(t)}
}

func (h *Handler) searchReply(inv invocation, err error, what string, found func() *voting.Notice) reply {
	if errors.Is(err, listing.ErrNotFound) {
		return reply{Notice: notFoundNotice(what)}
	}
	if err != nil {
		return h.fail(inv, err)
	}
	return reply{Notice: found()}
}

func (h *Handler) edit(ctx context.Context, inv invocation, apply func(context.Context, EditRequest) ([]EditResult, error), targets string, changes []FieldChange) reply {
	results, err := apply(ctx, EditRequest{
		Targets: targets,
		Mode:    listing.EditMode(inv.str("edit_mode")),
		Scope:   listing.Scope(inv.str("list_type")),
		Changes: changes,
		Editor:  inv.Invoker,
	})
	if err != nil {
		return h.fail(inv, err)
	}
	return reply{Notice: editNotice(results)}
}
