// Package audit writes voting outcomes and closing transcripts to the
// configured sinks: a Discord transcript channel, a Redis stream and an S3
// archive.
package audit

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/OneOfOne/xxhash"

	"github.com/obrc/blacklist/src/voting"
)

const transcriptTimeLayout = "2006-01-02 15:04:05"

// RenderTranscript renders a closed ticket channel as plain text.
func RenderTranscript(t voting.Transcript) []byte {
	var b strings.Builder
	b.WriteString("VOTING TICKET TRANSCRIPT\n")
	b.WriteString(strings.Repeat("=", 50) + "\n")
	fmt.Fprintf(&b, "Ticket: #%d\n", t.TicketID)
	fmt.Fprintf(&b, "Type: %s\n", t.TicketType)
	fmt.Fprintf(&b, "Target: %s\n", t.Target)
	fmt.Fprintf(&b, "Result: %s\n", t.Result)
	fmt.Fprintf(&b, "Votes: Yes %d, No %d\n", t.Yes, t.No)
	fmt.Fprintf(&b, "Generated: %s UTC\n", t.GeneratedAt.UTC().Format(transcriptTimeLayout))
	b.WriteString(strings.Repeat("=", 50) + "\n\n")
	b.WriteString("MESSAGES:\n")
	b.WriteString(strings.Repeat("-", 30) + "\n")
	for _, m := range t.Messages {
		fmt.Fprintf(&b, "[%s] %s: %s", m.At.UTC().Format(transcriptTimeLayout), m.Author, m.Content)
		if m.Embeds > 0 {
			fmt.Fprintf(&b, " [Embeds: %d]", m.Embeds)
		}
		if m.PollQuestion != "" {
			fmt.Fprintf(&b, " [Poll: %s]", m.PollQuestion)
		}
		b.WriteString("\n")
	}
	return []byte(b.String())
}

// TranscriptName is the attachment name of a ticket transcript.
func TranscriptName(t voting.Transcript) string {
	target := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(t.Target), " ", "_"))
	if target == "" {
		target = "unknown"
	}
	return fmt.Sprintf("transcript_%s_%s_%s.txt", t.TicketType, target, t.GeneratedAt.UTC().Format("20060102_150405"))
}

// Digest is the xxhash64 of a rendered transcript, hex encoded.
func Digest(data []byte) string {
	return strconv.FormatUint(xxhash.Checksum64(data), 16)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}
