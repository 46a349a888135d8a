package cache

import (
	"sync"
	"time"
)

// Message is the minimal record kept per cached message.
type Message struct {
	ID        string
	AuthorID  string
	Timestamp time.Time
}

// Cache keeps a bounded FIFO buffer of recent messages per channel. Buffers are
// created lazily on the first message seen in a channel and never exceed the
// configured capacity; the oldest entry is evicted first. Channels are indexed
// per guild in first-seen order, so readers iterate one guild's channels only
// and always in the same order.
type Cache struct {
	mu       sync.Mutex
	capacity int
	channels map[string][]Message
	order    map[string][]string
}

func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 500
	}
	return &Cache{
		capacity: capacity,
		channels: make(map[string][]Message),
		order:    make(map[string][]string),
	}
}

func (c *Cache) Record(guildID, channelID string, msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf, known := c.channels[channelID]
	if !known {
		c.order[guildID] = append(c.order[guildID], channelID)
	}
	if overflow := len(buf) - c.capacity + 1; overflow > 0 {
		buf = buf[overflow:]
	}
	c.channels[channelID] = append(buf, msg)
}

// MessagesBy returns the cached messages authored by authorID in arrival order.
// It never touches the network and does not mutate the cache.
func (c *Cache) MessagesBy(channelID, authorID string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Message
	for _, msg := range c.channels[channelID] {
		if msg.AuthorID == authorID {
			out = append(out, msg)
		}
	}
	return out
}

// Channels returns the IDs of the guild's channels with cached traffic, in the
// order their first message arrived. Traffic cached for other guilds is never
// visible through it.
func (c *Cache) Channels(guildID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order[guildID]...)
}

// Len reports the number of cached messages in a channel.
func (c *Cache) Len(channelID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.channels[channelID])
}
