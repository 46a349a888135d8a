package bot

import (
	"context"
	"fmt"
	"time"

	"repelbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onInteractionCreate(session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if interaction.Type != discordgo.InteractionApplicationCommand {
		return
	}
	if interaction.GuildID == "" {
		b.respond(session, interaction, "This command only works inside a server.", true)
		return
	}
	if b.cfg.ServerID != "" && interaction.GuildID != b.cfg.ServerID {
		b.respond(session, interaction, "This bot is restricted to another server.", true)
		return
	}

	ctx := context.Background()
	data := interaction.ApplicationCommandData()
	switch data.Name {
	case "repel":
		b.handleRepel(ctx, session, interaction, data.Options)
	case "repel-status":
		b.handleStatus(ctx, session, interaction)
	case "repel-report":
		b.handleReport(ctx, session, interaction, data.Options)
	case "repel-logs":
		b.handleLogs(ctx, session, interaction, data.Options)
	}
}

func (b *Bot) handleRepel(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	member := interaction.Member
	if member == nil || member.Permissions&discordgo.PermissionManageMessages == 0 {
		b.respond(session, interaction, "You need the Manage Messages permission to use this.", true)
		return
	}
	if !b.botHasGuildPermissions(interaction.GuildID, discordgo.PermissionManageMessages) {
		b.respond(session, interaction, "I am missing the Manage Messages permission.", true)
		return
	}

	settings := b.guildSettings(ctx, interaction.GuildID)
	userID := ""
	count := settings.PurgeCount
	minutes := settings.TimeoutMinutes
	for _, opt := range options {
		switch opt.Name {
		case "user":
			if user := opt.UserValue(session); user != nil {
				userID = user.ID
			}
		case "messagecount":
			count = int(opt.IntValue())
		case "timeoutminutes":
			minutes = int(opt.IntValue())
		}
	}
	if userID == "" {
		b.respond(session, interaction, "A target user is required.", true)
		return
	}
	if count <= 0 {
		count = b.cfg.Actions.ManualPurgeCount
	}
	if minutes > 0 && !b.botHasGuildPermissions(interaction.GuildID, discordgo.PermissionModerateMembers) {
		b.respond(session, interaction, "I am missing the Moderate Members permission needed for timeouts.", true)
		return
	}

	// Deletion takes a while; acknowledge now, follow up with the summary.
	if err := session.InteractionRespond(interaction.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		b.logger.Warn("interaction defer failed", zap.Error(err))
		return
	}

	actorID := ""
	if member.User != nil {
		actorID = member.User.ID
	}
	b.logger.Info("manual repel",
		zap.String("guild_id", interaction.GuildID),
		zap.String("actor_id", actorID),
		zap.String("user_id", userID),
		zap.Int("count", count),
		zap.Int("timeout_minutes", minutes))

	suspended, deleted := b.runModeration(ctx, interaction.GuildID, userID, count, time.Duration(minutes)*time.Minute)

	b.audit.Record(ctx, storage.Action{
		GuildID:        interaction.GuildID,
		UserID:         userID,
		ActorID:        actorID,
		Trigger:        storage.TriggerManual,
		Deleted:        deleted,
		TimeoutMinutes: minutes,
		Suspended:      suspended,
		CreatedAt:      time.Now(),
	})

	summary := fmt.Sprintf("Deleted %d messages from <@%s>", deleted, userID)
	if minutes > 0 {
		if suspended {
			summary = fmt.Sprintf("Timed out <@%s> for %d minutes\n%s", userID, minutes, summary)
		} else {
			summary = fmt.Sprintf("Could not time out <@%s> (insufficient permissions)\n%s", userID, summary)
		}
	}
	b.followUp(session, interaction, summary)
}

func (b *Bot) handleStatus(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate) {
	settings := b.guildSettings(ctx, interaction.GuildID)
	logChannel := "not set"
	if settings.LogChannel != "" {
		logChannel = fmt.Sprintf("<#%s>", settings.LogChannel)
	}
	content := fmt.Sprintf(
		"Burst trigger: %d channels within %ds\nAuto purge: %d messages, %d minute timeout\nManual purge default: %d messages\nLog channel: %s",
		b.cfg.Burst.Channels, b.cfg.Burst.WindowSeconds,
		b.cfg.Actions.AutoPurgeCount, b.cfg.Actions.TimeoutMinutes,
		settings.PurgeCount, logChannel)
	b.respond(session, interaction, content, true)
}

func (b *Bot) handleReport(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	period := "day"
	for _, opt := range options {
		if opt.Name == "period" {
			period = opt.StringValue()
		}
	}
	since := time.Now().Add(-24 * time.Hour)
	if period == "week" {
		since = time.Now().Add(-7 * 24 * time.Hour)
	}

	report, err := b.analytics.Report(ctx, interaction.GuildID, since)
	if err != nil {
		b.logger.Warn("report failed", zap.Error(err))
		b.respond(session, interaction, "Could not build the report.", true)
		return
	}

	content := fmt.Sprintf(
		"Repel actions (last %s): %d\nMessages deleted: %d\nTimeouts applied: %d\nAutomatic: %d, manual: %d",
		period, report.Actions, report.Deleted, report.Suspended,
		report.ByTrigger[storage.TriggerAuto], report.ByTrigger[storage.TriggerManual])
	b.respond(session, interaction, content, true)
}

func (b *Bot) handleLogs(ctx context.Context, session *discordgo.Session, interaction *discordgo.InteractionCreate, options []*discordgo.ApplicationCommandInteractionDataOption) {
	member := interaction.Member
	if member == nil || member.Permissions&discordgo.PermissionManageServer == 0 {
		b.respond(session, interaction, "You need the Manage Server permission to use this.", true)
		return
	}

	channelID := ""
	for _, opt := range options {
		if opt.Name == "channel" {
			if channel := opt.ChannelValue(session); channel != nil {
				channelID = channel.ID
			}
		}
	}
	if channelID == "" {
		b.respond(session, interaction, "A channel is required.", true)
		return
	}

	settings := b.guildSettings(ctx, interaction.GuildID)
	settings.LogChannel = channelID
	if err := b.store.UpsertGuildSettings(ctx, settings); err != nil {
		b.logger.Warn("log channel update failed", zap.Error(err))
		b.respond(session, interaction, "Could not save the log channel.", true)
		return
	}
	b.respond(session, interaction, fmt.Sprintf("Log channel set to <#%s>", channelID), true)
}

// followUp completes a deferred interaction, falling back to a plain channel
// message if the interaction token has expired.
func (b *Bot) followUp(session *discordgo.Session, interaction *discordgo.InteractionCreate, content string) {
	_, err := session.FollowupMessageCreate(interaction.Interaction, true, &discordgo.WebhookParams{Content: content})
	if err == nil {
		return
	}
	b.logger.Warn("interaction followup failed", zap.Error(err))
	if interaction.ChannelID != "" {
		_, _ = session.ChannelMessageSend(interaction.ChannelID, content)
	}
}
