package config

import (
	"time"

	"github.com/obrc/blacklist/src/voting"
	"gorm.io/gorm"
)

// ModerationConfig holds the blacklist bot configuration.
type ModerationConfig struct {
	Base

	// VoterRoleID is the role allowed to see ticket channels and vote.
	VoterRoleID string
	// CommissionerRoleID gates proposals and edits.
	CommissionerRoleID string
	// MemberRoleName gates searches and exports.
	MemberRoleName      string
	TicketCategoryID    string
	TranscriptChannelID string

	PollDuration     time.Duration
	EvidenceMinutes  int
	SweepInterval    time.Duration
	TeardownDelay    time.Duration
	LockTTL          time.Duration
	DirectMessageGap time.Duration

	RedisURL    string
	AuditStream string
	AutoRoles   bool
	Enabled     bool
}

// LoadModerationConfig loads the moderation module configuration.
func LoadModerationConfig(db *gorm.DB) ModerationConfig {
	return ModerationConfig{
		Base:                LoadBase(db),
		VoterRoleID:         GetSetting("voter_role_id", "VOTER_ROLE_ID", ""),
		CommissionerRoleID:  GetSetting("commissioner_role_id", "COMMISSIONER_ROLE_ID", ""),
		MemberRoleName:      GetSetting("member_role_name", "MEMBER_ROLE_NAME", "OBRC"),
		TicketCategoryID:    GetSetting("ticket_category_id", "TICKET_CATEGORY_ID", ""),
		TranscriptChannelID: GetSetting("transcript_channel_id", "TRANSCRIPT_CHANNEL_ID", ""),

		PollDuration:     getDurationSetting("poll_duration_hours", "POLL_DURATION_HOURS", time.Hour, voting.DefaultPollDuration),
		EvidenceMinutes:  getIntSetting("evidence_vote_minutes", "EVIDENCE_VOTE_DURATION_MINUTES", voting.DefaultEvidenceMinutes),
		SweepInterval:    getDurationSetting("sweep_interval_seconds", "SWEEP_INTERVAL_SECONDS", time.Second, voting.DefaultSweepInterval),
		TeardownDelay:    getDurationSetting("teardown_delay_seconds", "TEARDOWN_DELAY_SECONDS", time.Second, voting.DefaultTeardownDelay),
		LockTTL:          getDurationSetting("lock_ttl_seconds", "LOCK_TTL_SECONDS", time.Second, voting.DefaultLockTTL),
		DirectMessageGap: getDurationSetting("dm_gap_millis", "DM_GAP_MILLIS", time.Millisecond, voting.DefaultDirectMessageGap),

		RedisURL:    GetSetting("redis_url", "REDIS_URL", ""),
		AuditStream: GetSetting("audit_stream", "AUDIT_STREAM", "obrc.audit"),
		AutoRoles:   getBoolSetting("enable_auto_roles", "ENABLE_AUTO_ROLES", true),
		Enabled:     getBoolSetting("enable_moderation", "ENABLE_MODERATION", true),
	}
}

// Voting maps the configuration onto the voting engine's settings.
func (c ModerationConfig) Voting() voting.Config {
	return voting.Config{
		VoterRoleID:      c.VoterRoleID,
		PollDuration:     c.PollDuration,
		EvidenceMinutes:  c.EvidenceMinutes,
		TeardownDelay:    c.TeardownDelay,
		SweepInterval:    c.SweepInterval,
		LockTTL:          c.LockTTL,
		DirectMessageGap: c.DirectMessageGap,
	}
}
