package voting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GormStore persists tickets and evidence votes through gorm.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps db.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// AutoMigrate creates or updates the ticket tables.
func (s *GormStore) AutoMigrate() error {
	if err := s.db.AutoMigrate(&Ticket{}, &EvidenceVote{}); err != nil {
		return fmt.Errorf("voting: migrate: %w", err)
	}
	return nil
}

func (s *GormStore) CreateTicket(ctx context.Context, t *Ticket) error {
	if !t.ExpiresAt.After(t.CreatedAt) {
		return fmt.Errorf("voting: ticket expiry must follow creation: %w", ErrInvalidInput)
	}
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("voting: create ticket: %w", err)
	}
	return nil
}

func (s *GormStore) Ticket(ctx context.Context, id uint64) (*Ticket, error) {
	var t Ticket
	err := s.db.WithContext(ctx).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("voting: load ticket %d: %w", id, err)
	}
	return &t, nil
}

// Tickets lists tickets newest first, optionally filtered by status.
func (s *GormStore) Tickets(ctx context.Context, status Status, limit int) ([]Ticket, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []Ticket
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("voting: list tickets: %w", err)
	}
	return rows, nil
}

func (s *GormStore) ActiveTicketByChannel(ctx context.Context, channelID string) (*Ticket, error) {
	var rows []Ticket
	err := s.db.WithContext(ctx).
		Where("ticket_channel_id = ? AND status = ?", channelID, StatusActive).
		Limit(1).Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("voting: ticket by channel: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrNotVotingTicket
	}
	return &rows[0], nil
}

func (s *GormStore) TicketByPollMessage(ctx context.Context, messageID string) (*Ticket, error) {
	var rows []Ticket
	if err := s.db.WithContext(ctx).Where("poll_message_id = ?", messageID).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("voting: ticket by poll: %w", err)
	}
	if len(rows) == 0 {
		return nil, ErrTicketNotFound
	}
	return &rows[0], nil
}

func (s *GormStore) ExpiredTickets(ctx context.Context, now time.Time) ([]Ticket, error) {
	var rows []Ticket
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", StatusActive, now).
		Order("expires_at").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("voting: expired tickets: %w", err)
	}
	return rows, nil
}

// FinalizeTicket completes an active ticket. It reports false when the
// ticket was no longer active.
func (s *GormStore) FinalizeTicket(ctx context.Context, id uint64, result string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Ticket{}).
		Where("id = ? AND status = ?", id, StatusActive).
		Updates(map[string]interface{}{
			"status":       StatusCompleted,
			"final_result": result,
			"completed_at": at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("voting: finalize ticket %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *GormStore) CreateEvidence(ctx context.Context, v *EvidenceVote) error {
	if err := s.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("voting: create evidence vote: %w", err)
	}
	return nil
}

func (s *GormStore) Evidence(ctx context.Context, id uint64) (*EvidenceVote, error) {
	var v EvidenceVote
	err := s.db.WithContext(ctx).First(&v, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("voting: load evidence vote %d: %w", id, err)
	}
	return &v, nil
}

// EvidenceForChannel lists the evidence votes of a ticket channel.
func (s *GormStore) EvidenceForChannel(ctx context.Context, channelID string) ([]EvidenceVote, error) {
	var rows []EvidenceVote
	if err := s.db.WithContext(ctx).Where("ticket_channel_id = ?", channelID).Order("created_at").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("voting: evidence for channel: %w", err)
	}
	return rows, nil
}

func (s *GormStore) ExpiredEvidence(ctx context.Context, now time.Time) ([]EvidenceVote, error) {
	var rows []EvidenceVote
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", StatusActive, now).
		Order("expires_at").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("voting: expired evidence votes: %w", err)
	}
	return rows, nil
}

func (s *GormStore) FinalizeEvidence(ctx context.Context, id uint64, result string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&EvidenceVote{}).
		Where("id = ? AND status = ?", id, StatusActive).
		Updates(map[string]interface{}{
			"status":       StatusCompleted,
			"final_result": result,
			"completed_at": at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("voting: finalize evidence %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}
