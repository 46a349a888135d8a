package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"repelbot/internal/analytics"
	"repelbot/internal/audit"
	"repelbot/internal/cache"
	"repelbot/internal/config"
	"repelbot/internal/discord"
	"repelbot/internal/engine"
	"repelbot/internal/moderation"
	"repelbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	audit     *audit.Logger
	analytics *analytics.Service
	engine    *engine.Engine
	session   *discordgo.Session
	gateway   *discord.Gateway
	locator   *moderation.Locator
	pipeline  *moderation.Pipeline
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store, messageCache *cache.Cache, eng *engine.Engine, auditLogger *audit.Logger, analyticsService *analytics.Service) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	gateway := discord.NewGateway(session)
	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		audit:     auditLogger,
		analytics: analyticsService,
		engine:    eng,
		session:   session,
		gateway:   gateway,
		locator:   moderation.NewLocator(messageCache, gateway, logger),
		pipeline:  moderation.NewPipeline(gateway, logger),
	}

	if b.audit != nil {
		b.audit.SetNotifier(func(ctx context.Context, action storage.Action) {
			b.notifyLogChannel(ctx, action)
		})
	}

	return b, nil
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onInteractionCreate)

	if err := b.session.Open(); err != nil {
		return err
	}

	return b.registerCommands()
}

func (b *Bot) Close(ctx context.Context) {
	_ = ctx
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username))
}

func (b *Bot) onMessageCreate(session *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.GuildID == "" {
		return
	}

	actions := b.engine.HandleMessage(engine.Event{
		GuildID:   msg.GuildID,
		ChannelID: msg.ChannelID,
		AuthorID:  msg.Author.ID,
		MessageID: msg.ID,
		Timestamp: msg.Timestamp,
		Bot:       msg.Author.Bot,
	})
	if len(actions) == 0 {
		return
	}

	go b.executePlan(context.Background(), actions)
}

// executePlan runs the suspend and purge actions concurrently, waits for both,
// then reports to the originating channel and the audit trail.
func (b *Bot) executePlan(ctx context.Context, actions []engine.Action) {
	var suspend, purge, report *engine.Action
	for i := range actions {
		switch actions[i].Kind {
		case engine.ActionSuspend:
			suspend = &actions[i]
		case engine.ActionPurge:
			purge = &actions[i]
		case engine.ActionReport:
			report = &actions[i]
		}
	}
	if purge == nil {
		return
	}
	guildID, userID := purge.GuildID, purge.UserID
	defer b.engine.Finish(guildID, userID)

	duration := time.Duration(0)
	if suspend != nil {
		duration = suspend.Duration
	}
	suspended, deleted := b.runModeration(ctx, guildID, userID, purge.Limit, duration)

	channels := 0
	channelID := ""
	if report != nil {
		channels = report.Channels
		channelID = report.ChannelID
	}

	b.audit.Record(ctx, storage.Action{
		GuildID:        guildID,
		UserID:         userID,
		Trigger:        storage.TriggerAuto,
		Channels:       channels,
		Deleted:        deleted,
		TimeoutMinutes: int(duration.Minutes()),
		Suspended:      suspended,
		CreatedAt:      time.Now(),
	})

	summary := fmt.Sprintf("Auto-repelled <@%s> for posting across %d channels\nDeleted %d messages", userID, channels, deleted)
	if !suspended {
		summary += "\nTimeout could not be applied (insufficient permissions)"
	}
	b.sendSummary(ctx, guildID, channelID, summary)
}

// runModeration executes the suspension and the locate-delete chain in
// parallel; neither failure blocks the other.
func (b *Bot) runModeration(ctx context.Context, guildID, userID string, limit int, duration time.Duration) (bool, int) {
	var suspended bool
	var deleted int

	var wg sync.WaitGroup
	if duration > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			suspended = b.suspend(guildID, userID, duration)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		candidates := b.locator.Locate(ctx, guildID, userID, limit)
		deleted = b.pipeline.DeleteAll(ctx, candidates)
	}()
	wg.Wait()

	return suspended, deleted
}

// suspend applies the timeout; any failure yields false, never a crash.
func (b *Bot) suspend(guildID, userID string, duration time.Duration) bool {
	if err := b.gateway.Timeout(guildID, userID, duration); err != nil {
		b.logger.Warn("timeout failed",
			zap.String("guild_id", guildID),
			zap.String("user_id", userID),
			zap.Error(err))
		return false
	}
	return true
}

// sendSummary posts to the originating channel, falling back to the guild's
// log channel if that target is gone; an undeliverable summary is dropped.
func (b *Bot) sendSummary(ctx context.Context, guildID, channelID, summary string) {
	if channelID != "" {
		if _, err := b.session.ChannelMessageSend(channelID, summary); err == nil {
			return
		}
	}
	settings := b.guildSettings(ctx, guildID)
	if settings.LogChannel == "" || settings.LogChannel == channelID {
		return
	}
	_, _ = b.session.ChannelMessageSend(settings.LogChannel, summary)
}

func (b *Bot) notifyLogChannel(ctx context.Context, action storage.Action) {
	settings := b.guildSettings(ctx, action.GuildID)
	if settings.LogChannel == "" {
		return
	}
	line := fmt.Sprintf("Repel (%s): <@%s> deleted=%d timeout=%dm suspended=%t",
		action.Trigger, action.UserID, action.Deleted, action.TimeoutMinutes, action.Suspended)
	_, _ = b.session.ChannelMessageSend(settings.LogChannel, line)
}

func (b *Bot) guildSettings(ctx context.Context, guildID string) storage.GuildSettings {
	defaults := storage.GuildSettings{
		GuildID:        guildID,
		LogChannel:     b.cfg.DefaultLogChannel,
		PurgeCount:     b.cfg.Actions.ManualPurgeCount,
		TimeoutMinutes: b.cfg.Actions.TimeoutMinutes,
	}

	settings, err := b.store.GetGuildSettings(ctx, guildID, defaults)
	if err != nil {
		b.logger.Warn("guild settings fallback", zap.Error(err))
		return defaults
	}
	return settings
}

// botHasGuildPermissions accumulates the bot member's role permissions.
func (b *Bot) botHasGuildPermissions(guildID string, required int64) bool {
	if b.session.State == nil || b.session.State.User == nil {
		return false
	}
	guild, err := b.session.State.Guild(guildID)
	if err != nil || guild == nil {
		guild, _ = b.session.Guild(guildID)
	}
	if guild == nil {
		return false
	}

	member, err := b.session.State.Member(guildID, b.session.State.User.ID)
	if err != nil || member == nil {
		member, _ = b.session.GuildMember(guildID, b.session.State.User.ID)
	}
	if member == nil {
		return false
	}

	perms := int64(0)
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
		if role.ID == guild.ID {
			perms |= role.Permissions
		}
	}
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return true
	}
	return perms&required == required
}

func (b *Bot) respond(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string, ephemeral bool) {
	flags := discordgo.MessageFlags(0)
	if ephemeral {
		flags = discordgo.MessageFlagsEphemeral
	}
	_ = session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   flags,
		},
	})
}
