package moderation

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/obrc/blacklist/src/actions/core"
	"github.com/obrc/blacklist/src/audit"
	"github.com/obrc/blacklist/src/config"
	"github.com/obrc/blacklist/src/data"
	"github.com/obrc/blacklist/src/discord"
	"github.com/obrc/blacklist/src/listing"
	"github.com/obrc/blacklist/src/voting"
	"github.com/obrc/blacklist/src/webclient"
)

var _ core.Module = (*Module)(nil)

// Module is the blacklist bot: slash commands, auto roles and the expiry
// scheduler share one Discord session.
type Module struct {
	config  *config.ModerationConfig
	archive *config.ArchiveConfig
	db      *gorm.DB
	session *discordgo.Session
	surface *discord.Surface
	lists   *listing.Store
	tickets *voting.GormStore

	handler   *Handler
	service   *Service
	scheduler *voting.Scheduler
	redis     *redis.Client

	runtimeCtx context.Context
	cancel     context.CancelFunc
}

// NewModule creates the Discord session and stores. Network dependencies
// are connected in Start.
func NewModule(cfg *config.ModerationConfig, archive *config.ArchiveConfig, db *gorm.DB) (*Module, error) {
	if cfg.Base.Token == "" {
		return nil, fmt.Errorf("moderation: discord token not configured")
	}
	if cfg.Base.GuildID == "" {
		return nil, fmt.Errorf("moderation: guild id not configured")
	}
	if cfg.VoterRoleID == "" {
		return nil, fmt.Errorf("moderation: voter role id not configured")
	}

	session, err := discordgo.New("Bot " + cfg.Base.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	session.Client = webclient.NewDefault(30 * time.Second)
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentGuildMessagePolls

	module := &Module{
		config:  cfg,
		archive: archive,
		db:      db,
		session: session,
		surface: discord.NewSurface(session, cfg.Base.GuildID, cfg.TicketCategoryID),
		lists:   listing.NewStore(db),
		tickets: voting.NewGormStore(db),
	}
	module.initHandlers()
	return module, nil
}

// Name implements actions.Module.
func (m *Module) Name() string { return "moderation" }

func (m *Module) initHandlers() {
	m.session.AddHandler(m.onReady)
	m.session.AddHandler(m.onInteractionCreate)
	m.session.AddHandler(m.onGuildMemberAdd)
	m.session.AddHandler(m.onPollVoteAdd)
	m.session.AddHandler(m.onPollVoteRemove)
}

// auditSinks builds the audit chain. Optional sinks that fail to start are
// logged and skipped.
func (m *Module) auditSinks(ctx context.Context) audit.Multi {
	sinks := audit.Multi{audit.LogSink{}}
	if m.config.TranscriptChannelID != "" {
		sinks = append(sinks, audit.NewChannelSink(m.surface, m.config.TranscriptChannelID))
	}
	if m.redis != nil {
		sinks = append(sinks, audit.NewStreamSink(m.redis, m.config.AuditStream, 0))
	}
	if m.archive != nil && m.archive.Enabled {
		uploader, err := audit.NewS3Uploader(ctx, audit.ArchiveOptions{Region: m.archive.Region, Endpoint: m.archive.Endpoint})
		if err != nil {
			log.Printf("moderation: transcript archive disabled: %v", err)
		} else {
			sinks = append(sinks, audit.NewArchiveSink(uploader, m.archive.Bucket, m.archive.Prefix))
		}
	}
	return sinks
}

func (m *Module) Start(ctx context.Context) error {
	runtimeCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.runtimeCtx = runtimeCtx

	var locker voting.Locker = voting.NopLocker{}
	if m.config.RedisURL != "" {
		rdb, err := data.NewRedis(ctx, m.config.RedisURL)
		if err != nil {
			log.Printf("moderation: redis unavailable, running without locks: %v", err)
		} else {
			m.redis = rdb
			locker = data.NewRedisLocker(rdb)
		}
	}

	cfg := m.config.Voting()
	deps := voting.Deps{
		Tickets:  m.tickets,
		Lists:    m.lists,
		Surface:  m.surface,
		Channels: m.surface,
		Audit:    m.auditSinks(ctx),
		Locker:   locker,
		Logger:   log.Default(),
	}
	m.service = NewService(voting.NewBuilder(cfg, deps), m.lists, nil)
	m.handler = &Handler{Config: m.config, Service: m.service}
	m.scheduler = voting.NewScheduler(voting.NewEngine(cfg, deps), cfg, deps)

	if err := m.session.Open(); err != nil {
		cancel()
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}
	if err := m.scheduler.Start(runtimeCtx); err != nil {
		cancel()
		m.session.Close()
		return fmt.Errorf("moderation: start scheduler: %w", err)
	}
	log.Printf("moderation: scheduler running every %v", cfg.SweepInterval)
	return nil
}

// Stop drains the scheduler before cancelling the runtime context so a
// resolution under way is not cut off.
func (m *Module) Stop(ctx context.Context) {
	if m.scheduler != nil {
		if err := m.scheduler.Stop(ctx); err != nil {
			log.Printf("moderation: scheduler stop: %v", err)
		}
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.runtimeCtx = nil
	if m.session != nil {
		m.session.Close()
	}
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			log.Printf("moderation: redis close: %v", err)
		}
	}
}

func (m *Module) context() context.Context {
	if m.runtimeCtx != nil {
		return m.runtimeCtx
	}
	return context.Background()
}

func (m *Module) onReady(s *discordgo.Session, r *discordgo.Ready) {
	log.Printf("moderation: logged in as %s", s.State.User.Username)
	if err := discord.RegisterSlashCommands(s, m.config.Base.GuildID); err != nil {
		log.Printf("moderation: failed to register slash commands: %v", err)
	} else {
		log.Printf("moderation: slash commands registered")
	}
}

func (m *Module) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand || m.handler == nil {
		return
	}
	m.handler.HandleSlash(m.context(), s, i)
}

func (m *Module) onGuildMemberAdd(s *discordgo.Session, e *discordgo.GuildMemberAdd) {
	if !m.config.AutoRoles || e.Member == nil || e.Member.User == nil || e.GuildID != m.config.Base.GuildID {
		return
	}
	if err := m.syncRoles(m.context(), s, e.Member); err != nil {
		log.Printf("moderation: auto-role for %s: %v", e.Member.User.ID, err)
	}
}

// syncRoles grants and removes the managed blacklist roles for member.
func (m *Module) syncRoles(ctx context.Context, s *discordgo.Session, member *discordgo.Member) error {
	if m.service == nil {
		return nil
	}
	roleIDs := make(map[string]string, len(AutoRoleNames))
	for _, name := range AutoRoleNames {
		id, ok := discord.RoleIDByName(s, m.config.Base.GuildID, name)
		if !ok {
			return fmt.Errorf("role %q not found in guild", name)
		}
		roleIDs[name] = id
	}

	want, err := m.service.RolesFor(ctx, memberIdentity(member))
	if err != nil {
		return err
	}
	add, remove := RoleChanges(want, roleIDs, member.Roles)
	for _, id := range add {
		if err := m.surface.AddRole(ctx, member.User.ID, id); err != nil {
			return err
		}
	}
	for _, id := range remove {
		if err := s.GuildMemberRoleRemove(m.config.Base.GuildID, member.User.ID, id, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("remove role %s: %w", id, err)
		}
	}
	if len(add)+len(remove) > 0 {
		log.Printf("moderation: auto-role %s added=%v removed=%v", member.User.ID, add, remove)
	}
	return nil
}

func (m *Module) onPollVoteAdd(s *discordgo.Session, e *discordgo.MessagePollVoteAdd) {
	m.logVote("voted", e.UserID, e.MessageID, e.AnswerID)
}

func (m *Module) onPollVoteRemove(s *discordgo.Session, e *discordgo.MessagePollVoteRemove) {
	m.logVote("removed vote", e.UserID, e.MessageID, e.AnswerID)
}

func (m *Module) logVote(action, userID, messageID string, answerID int) {
	t, err := m.tickets.TicketByPollMessage(m.context(), messageID)
	if err != nil {
		return
	}
	log.Printf("moderation: %s %s answer %d in ticket %d (%s %s)", userID, action, answerID, t.ID, t.TicketType, t.TargetName)
}
