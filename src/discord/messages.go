package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/obrc/blacklist/src/voting"
)

const (
	MaxDiscordMessageLen = 2000
	SafeChunkLen         = 1900

	maxEmbedFieldValue = 1024
	maxEmbedFields     = 25
)

// BuildLongMessages chunks a long message across several messages on line
// boundaries.
func BuildLongMessages(message string, userID string) []string {
	mention := ""
	if userID != "" {
		mention = fmt.Sprintf("<@%s> ", userID)
	}
	if len(mention+message) <= MaxDiscordMessageLen {
		return []string{mention + message}
	}

	var (
		chunks  []string
		current strings.Builder
	)
	current.WriteString(mention)
	for _, line := range strings.Split(message, "\n") {
		for len(line) > SafeChunkLen {
			if current.Len() > 0 {
				chunks = append(chunks, current.String())
				current.Reset()
			}
			chunks = append(chunks, line[:SafeChunkLen])
			line = line[SafeChunkLen:]
		}
		if current.Len()+len(line)+1 > SafeChunkLen && current.Len() > 0 {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 && !strings.HasSuffix(current.String(), " ") {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	for i := 0; i < len(chunks)-1; i++ {
		chunks[i] += "\n*(continued...)*"
	}
	return chunks
}

func truncateForDiscord(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}

// NoticeEmbed converts a notice into a Discord embed.
func NoticeEmbed(n *voting.Notice) *discordgo.MessageEmbed {
	if n == nil {
		return nil
	}
	embed := &discordgo.MessageEmbed{
		Title:       truncateForDiscord(n.Title, 256),
		Description: truncateForDiscord(n.Description, 4096),
		Color:       n.Color,
	}
	for i, f := range n.Fields {
		if i == maxEmbedFields {
			break
		}
		value := f.Value
		if strings.TrimSpace(value) == "" {
			value = "None"
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   truncateForDiscord(f.Name, 256),
			Value:  truncateForDiscord(value, maxEmbedFieldValue),
			Inline: f.Inline,
		})
	}
	if n.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: truncateForDiscord(n.Footer, 2048)}
	}
	if !n.Timestamp.IsZero() {
		embed.Timestamp = n.Timestamp.UTC().Format(time.RFC3339)
	}
	return embed
}

// MessageSend builds the send payload for a message.
func MessageSend(msg voting.Message) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content: msg.Content,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeRoles, discordgo.AllowedMentionTypeUsers},
		},
	}
	if embed := NoticeEmbed(msg.Notice); embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{embed}
	}
	return send
}

// BuildPoll converts answers into a Discord poll. Polls run in whole hours.
func BuildPoll(question string, answers []voting.Answer, duration time.Duration) *discordgo.Poll {
	hours := int((duration + time.Hour - 1) / time.Hour)
	if hours < 1 {
		hours = 1
	}
	if hours > 768 {
		hours = 768
	}
	poll := &discordgo.Poll{
		Question: discordgo.PollMedia{Text: truncateForDiscord(question, 300)},
		Duration: hours,
	}
	for _, a := range answers {
		media := &discordgo.PollMedia{Text: truncateForDiscord(a.Label, 55)}
		if a.Emoji != "" {
			media.Emoji = &discordgo.ComponentEmoji{Name: a.Emoji}
		}
		poll.Answers = append(poll.Answers, discordgo.PollAnswer{Media: media})
	}
	return poll
}

// Snapshot reads a poll's answers and current counts, keeping answer order.
func Snapshot(p *discordgo.Poll) *voting.PollSnapshot {
	if p == nil {
		return nil
	}
	counts := map[int]int{}
	if p.Results != nil {
		for _, c := range p.Results.AnswerCounts {
			if c != nil {
				counts[c.ID] = c.Count
			}
		}
	}
	snap := &voting.PollSnapshot{Question: p.Question.Text}
	for _, a := range p.Answers {
		pa := voting.PollAnswer{ID: a.AnswerID, Count: counts[a.AnswerID]}
		if a.Media != nil {
			pa.Label = a.Media.Text
			if a.Media.Emoji != nil {
				pa.Emoji = a.Media.Emoji.Name
			}
		}
		snap.Answers = append(snap.Answers, pa)
	}
	return snap
}

// History converts messages fetched newest first into posting order.
func History(msgs []*discordgo.Message) []voting.HistoryMessage {
	out := make([]voting.HistoryMessage, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m == nil {
			continue
		}
		h := voting.HistoryMessage{At: m.Timestamp, Content: m.Content, Embeds: len(m.Embeds)}
		if m.Author != nil {
			h.Author = m.Author.Username
		}
		if m.Poll != nil {
			h.PollQuestion = m.Poll.Question.Text
		}
		out = append(out, h)
	}
	return out
}
