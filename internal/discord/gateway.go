package discord

import (
	"errors"
	"net/http"
	"time"

	"repelbot/internal/moderation"

	"github.com/bwmarrin/discordgo"
)

// Gateway adapts a discordgo session to the moderation contracts, translating
// transport errors into the moderation error taxonomy.
type Gateway struct {
	session *discordgo.Session
}

func NewGateway(session *discordgo.Session) *Gateway {
	return &Gateway{session: session}
}

func (g *Gateway) TextChannels(guildID string) ([]string, error) {
	var channels []*discordgo.Channel
	guild, err := g.session.State.Guild(guildID)
	if err == nil && guild != nil && len(guild.Channels) > 0 {
		channels = guild.Channels
	} else {
		channels, err = g.session.GuildChannels(guildID)
		if err != nil {
			return nil, mapError(err)
		}
	}

	var ids []string
	for _, channel := range channels {
		if channel == nil {
			continue
		}
		if channel.Type != discordgo.ChannelTypeGuildText && channel.Type != discordgo.ChannelTypeGuildNews {
			continue
		}
		ids = append(ids, channel.ID)
	}
	return ids, nil
}

func (g *Gateway) CanReadHistory(channelID string) bool {
	if g.session.State == nil || g.session.State.User == nil {
		return false
	}
	perms, err := g.session.State.UserChannelPermissions(g.session.State.User.ID, channelID)
	if err != nil {
		return false
	}
	required := int64(discordgo.PermissionViewChannel | discordgo.PermissionReadMessageHistory)
	return perms&required == required
}

// ChannelMessages pages through history in platform-sized fetches of 100 until
// limit messages are collected or the channel runs out.
func (g *Gateway) ChannelMessages(channelID string, limit int) ([]moderation.Message, error) {
	var out []moderation.Message
	beforeID := ""
	for len(out) < limit {
		pageSize := limit - len(out)
		if pageSize > 100 {
			pageSize = 100
		}
		page, err := g.session.ChannelMessages(channelID, pageSize, beforeID, "", "")
		if err != nil {
			return nil, mapError(err)
		}
		if len(page) == 0 {
			break
		}
		for _, msg := range page {
			if msg == nil || msg.Author == nil {
				continue
			}
			out = append(out, toMessage(msg))
		}
		beforeID = page[len(page)-1].ID
		if len(page) < pageSize {
			break
		}
	}
	return out, nil
}

func (g *Gateway) Message(channelID, messageID string) (moderation.Message, error) {
	msg, err := g.session.ChannelMessage(channelID, messageID)
	if err != nil {
		return moderation.Message{}, mapError(err)
	}
	return toMessage(msg), nil
}

func (g *Gateway) BulkDelete(channelID string, messageIDs []string) error {
	return mapError(g.session.ChannelMessagesBulkDelete(channelID, messageIDs))
}

func (g *Gateway) Delete(channelID, messageID string) error {
	return mapError(g.session.ChannelMessageDelete(channelID, messageID))
}

// Timeout applies a timed communication suspension. Failure is reported, never
// propagated as a crash.
func (g *Gateway) Timeout(guildID, userID string, duration time.Duration) error {
	until := time.Now().Add(duration)
	return mapError(g.session.GuildMemberTimeout(guildID, userID, &until))
}

func toMessage(msg *discordgo.Message) moderation.Message {
	authorID := ""
	if msg.Author != nil {
		authorID = msg.Author.ID
	}
	return moderation.Message{
		ID:        msg.ID,
		ChannelID: msg.ChannelID,
		AuthorID:  authorID,
		Timestamp: msg.Timestamp,
	}
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	var limited *discordgo.RateLimitError
	if errors.As(err, &limited) {
		return &moderation.RateLimitError{RetryAfter: limited.RetryAfter}
	}
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil {
		switch rest.Response.StatusCode {
		case http.StatusForbidden:
			return moderation.ErrPermissionDenied
		case http.StatusNotFound:
			return moderation.ErrNotFound
		case http.StatusTooManyRequests:
			return &moderation.RateLimitError{}
		}
	}
	return err
}
