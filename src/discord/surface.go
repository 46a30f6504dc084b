package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/obrc/blacklist/src/logging"
	"github.com/obrc/blacklist/src/voting"
	"github.com/obrc/blacklist/src/webclient"
)

const (
	retryAttempts  = 3
	retryDelay     = time.Second
	historyPage    = 100
	memberPage     = 1000
	voterPage      = 100
	maxHistoryMsgs = 5000
)

// Surface implements voting.VoteSurface and voting.ChannelProvider over a
// discordgo session scoped to one guild.
type Surface struct {
	session    *discordgo.Session
	guildID    string
	categoryID string
}

// NewSurface binds a session to a guild. Ticket channels are created under
// categoryID when it is set.
func NewSurface(s *discordgo.Session, guildID, categoryID string) *Surface {
	return &Surface{session: s, guildID: guildID, categoryID: categoryID}
}

var (
	_ voting.VoteSurface     = (*Surface)(nil)
	_ voting.ChannelProvider = (*Surface)(nil)
)

func (s *Surface) call(ctx context.Context, fn func() error) error {
	return webclient.DoWithRetry(ctx, retryAttempts, retryDelay, logging.IsTransient, fn)
}

// CreatePoll posts the poll along with the optional message content.
func (s *Surface) CreatePoll(ctx context.Context, channelID, question string, answers []voting.Answer, duration time.Duration, msg *voting.Message) (voting.PollRef, error) {
	send := &discordgo.MessageSend{}
	if msg != nil {
		send = MessageSend(*msg)
	}
	send.Poll = BuildPoll(question, answers, duration)

	var posted *discordgo.Message
	err := s.call(ctx, func() error {
		var err error
		posted, err = s.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return voting.PollRef{}, fmt.Errorf("discord: create poll in %s: %w", channelID, err)
	}
	return voting.PollRef{ChannelID: channelID, MessageID: posted.ID}, nil
}

// ReadPoll fetches the poll message and its current counts.
func (s *Surface) ReadPoll(ctx context.Context, ref voting.PollRef) (*voting.PollSnapshot, error) {
	var msg *discordgo.Message
	err := s.call(ctx, func() error {
		var err error
		msg, err = s.session.ChannelMessage(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		if logging.IsNotFound(err) {
			return nil, voting.ErrMessageNotFound
		}
		return nil, fmt.Errorf("discord: read poll %s: %w", ref.MessageID, err)
	}
	if msg.Poll == nil {
		return nil, voting.ErrNoPoll
	}
	return Snapshot(msg.Poll), nil
}

type voterPageResponse struct {
	Users []*discordgo.User `json:"users"`
}

// Voters lists every user who picked answerID, paging past the API default.
func (s *Surface) Voters(ctx context.Context, ref voting.PollRef, answerID int) ([]string, error) {
	base := discordgo.EndpointChannels + ref.ChannelID + "/polls/" + ref.MessageID + "/answers/" + strconv.Itoa(answerID)
	var (
		ids   []string
		after string
	)
	for {
		url := base + "?limit=" + strconv.Itoa(voterPage)
		if after != "" {
			url += "&after=" + after
		}
		var body []byte
		err := s.call(ctx, func() error {
			var err error
			body, err = s.session.RequestWithBucketID(http.MethodGet, url, nil, base, discordgo.WithContext(ctx))
			return err
		})
		if err != nil {
			if logging.IsNotFound(err) {
				return nil, voting.ErrMessageNotFound
			}
			return nil, fmt.Errorf("discord: poll voters %s/%d: %w", ref.MessageID, answerID, err)
		}
		var page voterPageResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("discord: decode poll voters: %w", err)
		}
		for _, u := range page.Users {
			if u != nil {
				ids = append(ids, u.ID)
			}
		}
		if len(page.Users) < voterPage {
			return ids, nil
		}
		after = page.Users[len(page.Users)-1].ID
	}
}

// Pin pins the poll message.
func (s *Surface) Pin(ctx context.Context, ref voting.PollRef) error {
	return s.call(ctx, func() error {
		return s.session.ChannelMessagePin(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	})
}

// RestrictedOverwrites hides a channel from everyone except roleID and botID.
func RestrictedOverwrites(guildID, roleID, botID string) []*discordgo.PermissionOverwrite {
	const access = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages | discordgo.PermissionReadMessageHistory
	out := []*discordgo.PermissionOverwrite{
		{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
	}
	if roleID != "" {
		out = append(out, &discordgo.PermissionOverwrite{ID: roleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: access})
	}
	if botID != "" {
		out = append(out, &discordgo.PermissionOverwrite{
			ID:    botID,
			Type:  discordgo.PermissionOverwriteTypeMember,
			Allow: access | discordgo.PermissionManageChannels | discordgo.PermissionManageMessages,
		})
	}
	return out
}

// CreateRestrictedChannel creates a text channel visible only to roleID.
func (s *Surface) CreateRestrictedChannel(ctx context.Context, name, roleID string) (string, error) {
	botID := ""
	if s.session.State != nil && s.session.State.User != nil {
		botID = s.session.State.User.ID
	}
	data := discordgo.GuildChannelCreateData{
		Name:                 name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             s.categoryID,
		PermissionOverwrites: RestrictedOverwrites(s.guildID, roleID, botID),
	}
	var ch *discordgo.Channel
	err := s.call(ctx, func() error {
		var err error
		ch, err = s.session.GuildChannelCreateComplex(s.guildID, data, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("discord: create channel %q: %w", name, err)
	}
	return ch.ID, nil
}

// ChannelExists reports false only when Discord says the channel is unknown.
func (s *Surface) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	err := s.call(ctx, func() error {
		_, err := s.session.Channel(channelID, discordgo.WithContext(ctx))
		return err
	})
	if err == nil {
		return true, nil
	}
	if logging.IsNotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("discord: fetch channel %s: %w", channelID, err)
}

// Send posts a message, splitting long content across several messages.
func (s *Surface) Send(ctx context.Context, channelID string, msg voting.Message) error {
	chunks := []string{msg.Content}
	if len(msg.Content) > MaxDiscordMessageLen {
		chunks = BuildLongMessages(msg.Content, "")
	}
	for i, chunk := range chunks {
		part := voting.Message{Content: chunk}
		if i == len(chunks)-1 {
			part.Notice = msg.Notice
		}
		send := MessageSend(part)
		err := s.call(ctx, func() error {
			_, err := s.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
			return err
		})
		if err != nil {
			return fmt.Errorf("discord: send to %s: %w", channelID, err)
		}
	}
	return nil
}

// SendFile posts a message with one attachment.
func (s *Surface) SendFile(ctx context.Context, channelID string, msg voting.Message, file voting.File) error {
	err := s.call(ctx, func() error {
		send := MessageSend(msg)
		send.Files = []*discordgo.File{{
			Name:        file.Name,
			ContentType: file.ContentType,
			Reader:      bytes.NewReader(file.Data),
		}}
		_, err := s.session.ChannelMessageSendComplex(channelID, send, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return fmt.Errorf("discord: send file %s to %s: %w", file.Name, channelID, err)
	}
	return nil
}

// DeleteChannel removes a channel. A channel that is already gone is not an
// error.
func (s *Surface) DeleteChannel(ctx context.Context, channelID string) error {
	err := s.call(ctx, func() error {
		_, err := s.session.ChannelDelete(channelID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil && !logging.IsNotFound(err) {
		return fmt.Errorf("discord: delete channel %s: %w", channelID, err)
	}
	return nil
}

// DirectMessage opens a DM channel and sends msg.
func (s *Surface) DirectMessage(ctx context.Context, userID string, msg voting.Message) error {
	var ch *discordgo.Channel
	err := s.call(ctx, func() error {
		var err error
		ch, err = s.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return fmt.Errorf("discord: open DM with %s: %w", userID, err)
	}
	return s.Send(ctx, ch.ID, msg)
}

// RoleMembers lists the non-bot members holding roleID.
func (s *Surface) RoleMembers(ctx context.Context, roleID string) ([]string, error) {
	var (
		ids   []string
		after string
	)
	for {
		var page []*discordgo.Member
		err := s.call(ctx, func() error {
			var err error
			page, err = s.session.GuildMembers(s.guildID, after, memberPage, discordgo.WithContext(ctx))
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("discord: list members: %w", err)
		}
		for _, m := range page {
			if m == nil || m.User == nil || m.User.Bot {
				continue
			}
			if MemberHasRole(m, roleID) {
				ids = append(ids, m.User.ID)
			}
		}
		if len(page) < memberPage {
			return ids, nil
		}
		after = page[len(page)-1].User.ID
	}
}

// History returns the channel's messages oldest first.
func (s *Surface) History(ctx context.Context, channelID string) ([]voting.HistoryMessage, error) {
	var (
		all    []*discordgo.Message
		before string
	)
	for len(all) < maxHistoryMsgs {
		var page []*discordgo.Message
		err := s.call(ctx, func() error {
			var err error
			page, err = s.session.ChannelMessages(channelID, historyPage, before, "", "", discordgo.WithContext(ctx))
			return err
		})
		if err != nil {
			if logging.IsNotFound(err) && len(all) > 0 {
				break
			}
			return nil, fmt.Errorf("discord: history of %s: %w", channelID, err)
		}
		all = append(all, page...)
		if len(page) < historyPage {
			break
		}
		before = page[len(page)-1].ID
	}
	if len(all) >= maxHistoryMsgs {
		log.Printf("discord: history of %s truncated at %d messages", channelID, maxHistoryMsgs)
	}
	return History(all), nil
}

// AddRole grants roleID to userID.
func (s *Surface) AddRole(ctx context.Context, userID, roleID string) error {
	err := s.call(ctx, func() error {
		return s.session.GuildMemberRoleAdd(s.guildID, userID, roleID, discordgo.WithContext(ctx))
	})
	if err != nil {
		return fmt.Errorf("discord: add role %s to %s: %w", roleID, userID, err)
	}
	return nil
}
