package voting

import "errors"

var (
	ErrMissingField       = errors.New("required field missing")
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateEntry     = errors.New("entry already exists")
	ErrNotFound           = errors.New("entry not found")
	ErrNotBlacklisted     = errors.New("entry is not on the blacklist")
	ErrNotAuthorized      = errors.New("requester is not the listed owner")
	ErrNotVotingTicket    = errors.New("channel is not an active voting ticket")
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrSurfaceUnavailable = errors.New("vote surface unavailable")

	// Returned by VoteSurface.ReadPoll.
	ErrMessageNotFound = errors.New("poll message not found")
	ErrNoPoll          = errors.New("message has no poll")
)

// IsValidation reports whether err is a request problem that should be
// reported back to the requester without any state change.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrMissingField,
		ErrInvalidInput,
		ErrDuplicateEntry,
		ErrNotFound,
		ErrNotBlacklisted,
		ErrNotAuthorized,
		ErrNotVotingTicket,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
