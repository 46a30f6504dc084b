package logging

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Discord JSON error codes for missing resources.
const (
	codeUnknownChannel = 10003
	codeUnknownMessage = 10008
	codeUnknownMember  = 10007
	codeUnknownRole    = 10011
)

// IsRateLimit reports whether err is a Discord rate limit.
func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "rate_limit") || strings.Contains(msg, "429")
}

// IsNotFound reports whether err says the channel, message, member or role
// no longer exists.
func IsNotFound(err error) bool {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return false
	}
	if rest.Message != nil {
		switch rest.Message.Code {
		case codeUnknownChannel, codeUnknownMessage, codeUnknownMember, codeUnknownRole:
			return true
		}
	}
	return rest.Response != nil && rest.Response.StatusCode == http.StatusNotFound
}

// IsTransient reports whether retrying err may succeed.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimit(err) {
		return true
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		return rest.Response.StatusCode >= 500
	}
	return false
}
