package audit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/obrc/blacklist/src/voting"
)

// DefaultStream is the Redis stream audit events are appended to.
const DefaultStream = "obrc.audit"

// StreamSink appends events to a capped Redis stream.
type StreamSink struct {
	rdb    redis.Cmdable
	stream string
	maxLen int64
}

// NewStreamSink returns a sink writing to stream, trimmed to about maxLen
// entries.
func NewStreamSink(rdb redis.Cmdable, stream string, maxLen int64) *StreamSink {
	if stream == "" {
		stream = DefaultStream
	}
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &StreamSink{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (s *StreamSink) Record(ctx context.Context, e voting.Event) error {
	return s.add(ctx, eventValues(e))
}

func (s *StreamSink) Transcript(ctx context.Context, t voting.Transcript) error {
	return s.add(ctx, transcriptValues(t))
}

func (s *StreamSink) add(ctx context.Context, values map[string]interface{}) error {
	err := s.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		return fmt.Errorf("audit: xadd %s: %w", s.stream, err)
	}
	return nil
}

func eventValues(e voting.Event) map[string]interface{} {
	v := map[string]interface{}{
		"event_id": uuid.NewString(),
		"kind":     e.Kind,
		"at":       formatTime(e.At),
	}
	if e.TicketID != 0 {
		v["ticket_id"] = strconv.FormatUint(e.TicketID, 10)
	}
	if e.EvidenceID != 0 {
		v["evidence_id"] = strconv.FormatUint(e.EvidenceID, 10)
	}
	for key, val := range map[string]string{
		"channel_id":  e.ChannelID,
		"ticket_type": string(e.TicketType),
		"target":      e.Target,
		"actor":       e.Actor,
		"result":      e.Result,
		"detail":      e.Detail,
	} {
		if val != "" {
			v[key] = val
		}
	}
	if e.Result != "" {
		v["yes"] = e.Yes
		v["no"] = e.No
	}
	return v
}

func transcriptValues(t voting.Transcript) map[string]interface{} {
	data := RenderTranscript(t)
	return map[string]interface{}{
		"event_id":  uuid.NewString(),
		"kind":      "ticket.transcript",
		"ticket_id": strconv.FormatUint(t.TicketID, 10),
		"result":    t.Result,
		"messages":  len(t.Messages),
		"digest":    Digest(data),
		"at":        formatTime(t.GeneratedAt),
	}
}
