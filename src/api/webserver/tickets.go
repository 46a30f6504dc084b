package webserver

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/obrc/blacklist/src/voting"
)

// TicketReader is the read side of the ticket store.
type TicketReader interface {
	Tickets(ctx context.Context, status voting.Status, limit int) ([]voting.Ticket, error)
	Ticket(ctx context.Context, id uint64) (*voting.Ticket, error)
	EvidenceForChannel(ctx context.Context, channelID string) ([]voting.EvidenceVote, error)
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ticketView is a ticket with its payload decoded in place of the raw
// proposal_data column.
type ticketView struct {
	voting.Ticket
	ProposalData string                `json:"proposal_data,omitempty"`
	Proposal     *voting.Payload       `json:"proposal,omitempty"`
	Evidence     []voting.EvidenceVote `json:"evidence,omitempty"`
}

func newTicketView(t voting.Ticket) ticketView {
	v := ticketView{Ticket: t}
	if p, err := t.Payload(); err == nil {
		v.Proposal = &p
	}
	return v
}

type Tickets struct {
	store TicketReader
}

func NewTickets(store TicketReader) Tickets {
	return Tickets{store: store}
}

// List handles GET /v1/tickets?status=&limit=.
func (h Tickets) List(c *gin.Context) {
	status := voting.Status(c.Query("status"))
	switch status {
	case "", voting.StatusActive, voting.StatusCompleted:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"err": "status must be active or completed"})
		return
	}
	limit := defaultPageSize
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"err": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxPageSize)
	}

	rows, err := h.store.Tickets(c.Request.Context(), status, limit)
	if err != nil {
		log.Printf("api: list tickets: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to load tickets"})
		return
	}
	out := make([]ticketView, 0, len(rows))
	for _, t := range rows {
		out = append(out, newTicketView(t))
	}
	c.JSON(http.StatusOK, gin.H{"tickets": out, "count": len(out)})
}

// Get handles GET /v1/tickets/:id.
func (h Tickets) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"err": "invalid ticket id"})
		return
	}
	t, err := h.store.Ticket(c.Request.Context(), id)
	if errors.Is(err, voting.ErrTicketNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"err": "ticket not found"})
		return
	}
	if err != nil {
		log.Printf("api: load ticket %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"err": "failed to load ticket"})
		return
	}
	view := newTicketView(*t)
	if view.Evidence, err = h.store.EvidenceForChannel(c.Request.Context(), t.TicketChannelID); err != nil {
		log.Printf("api: evidence for ticket %d: %v", id, err)
	}
	c.JSON(http.StatusOK, view)
}
