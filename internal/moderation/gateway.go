package moderation

import "time"

// Message is the gateway's view of a platform message.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	Timestamp time.Time
}

// Candidate identifies one message slated for deletion.
type Candidate struct {
	ChannelID string
	MessageID string
}

// Gateway is the network/history collaborator. Implementations map transport
// errors into the taxonomy in errors.go; the locator and pipeline never see raw
// transport errors.
type Gateway interface {
	// TextChannels lists the guild's text channel IDs.
	TextChannels(guildID string) ([]string, error)
	// CanReadHistory reports whether the bot may read message history in the channel.
	CanReadHistory(channelID string) bool
	// ChannelMessages returns up to limit most-recent messages, newest first.
	ChannelMessages(channelID string, limit int) ([]Message, error)
	// Message resolves a single message by ID.
	Message(channelID, messageID string) (Message, error)
	// BulkDelete removes up to 100 messages younger than 14 days in one call.
	BulkDelete(channelID string, messageIDs []string) error
	// Delete removes a single message.
	Delete(channelID, messageID string) error
}
