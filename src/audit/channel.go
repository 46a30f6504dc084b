package audit

import (
	"context"
	"fmt"

	"github.com/obrc/blacklist/src/voting"
)

// ChannelSink posts transcripts and result lines to a Discord channel.
type ChannelSink struct {
	channels  voting.ChannelProvider
	channelID string
}

// NewChannelSink returns a sink posting to channelID.
func NewChannelSink(channels voting.ChannelProvider, channelID string) *ChannelSink {
	return &ChannelSink{channels: channels, channelID: channelID}
}

// Record posts resolutions only. Openings are visible in the ticket channel.
func (c *ChannelSink) Record(ctx context.Context, e voting.Event) error {
	if e.Kind != voting.EventTicketResolved && e.Kind != voting.EventEvidenceResolved {
		return nil
	}
	line := fmt.Sprintf("📋 `%s` %s", e.Result, describe(e))
	if err := c.channels.Send(ctx, c.channelID, voting.Message{Content: line}); err != nil {
		return fmt.Errorf("audit: post record: %w", err)
	}
	return nil
}

func (c *ChannelSink) Transcript(ctx context.Context, t voting.Transcript) error {
	data := RenderTranscript(t)
	notice := voting.Notice{
		Title:       "📋 Voting ticket transcript",
		Description: fmt.Sprintf("**Type:** %s\n**Target:** %s\n**Result:** %s", t.TicketType, t.Target, t.Result),
		Color:       0x3498DB,
		Footer:      "xxh64 " + Digest(data),
		Timestamp:   t.GeneratedAt,
	}
	file := voting.File{Name: TranscriptName(t), ContentType: "text/plain", Data: data}
	if err := c.channels.SendFile(ctx, c.channelID, voting.Message{Notice: &notice}, file); err != nil {
		return fmt.Errorf("audit: post transcript: %w", err)
	}
	return nil
}
