package bot

import (
	"github.com/bwmarrin/discordgo"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	manageMessages := int64(discordgo.PermissionManageMessages)
	manageServer := int64(discordgo.PermissionManageServer)

	return []*discordgo.ApplicationCommand{
		{
			Name:                     "repel",
			Description:              "Delete a user's recent messages and time them out",
			DefaultMemberPermissions: &manageMessages,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "User to repel",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "messagecount",
					Description: "How many recent messages to delete",
				},
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "timeoutminutes",
					Description: "Timeout length in minutes (0 to skip)",
				},
			},
		},
		{
			Name:        "repel-status",
			Description: "Show the current repel thresholds and settings",
		},
		{
			Name:        "repel-report",
			Description: "Summarize recent repel actions",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "period",
					Description: "Reporting period",
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "day", Value: "day"},
						{Name: "week", Value: "week"},
					},
				},
			},
		},
		{
			Name:                     "repel-logs",
			Description:              "Set the channel for repel action logs",
			DefaultMemberPermissions: &manageServer,
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionChannel,
					Name:        "channel",
					Description: "Channel to receive action logs",
					Required:    true,
					ChannelTypes: []discordgo.ChannelType{
						discordgo.ChannelTypeGuildText,
					},
				},
			},
		},
	}
}

// registerCommands overwrites the command set, retrying transient registration
// failures with exponential backoff.
func (b *Bot) registerCommands() error {
	commands := commandDefinitions()
	register := func() error {
		_, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.cfg.ServerID, commands)
		if err != nil {
			b.logger.Warn("command registration failed", zap.Error(err))
		}
		return err
	}

	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
	if err := backoff.Retry(register, policy); err != nil {
		return err
	}
	b.logger.Info("commands registered", zap.Int("count", len(commands)))
	return nil
}
