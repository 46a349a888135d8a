package moderation

import (
	"context"
	"sync"
	"time"

	"repelbot/internal/cache"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// searchBatchSize channels are queried concurrently per round.
	searchBatchSize = 5
	// searchBatchPause spaces the rounds to stay inside the shared rate budget.
	searchBatchPause = 100 * time.Millisecond
	// minSearchDepth is the floor on how many recent messages a channel search
	// inspects; small remainders still search aggressively.
	minSearchDepth = 100
)

// Locator finds up to limit recent messages by one author: cache first, then
// concurrent channel-history queries for whatever the cache could not cover.
type Locator struct {
	cache   *cache.Cache
	gateway Gateway
	logger  *zap.Logger
	sleep   func(time.Duration)
}

func NewLocator(messageCache *cache.Cache, gateway Gateway, logger *zap.Logger) *Locator {
	return &Locator{
		cache:   messageCache,
		gateway: gateway,
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// Locate returns at most limit candidates with no duplicate message IDs.
// Fewer than limit is a valid result when the author has little history.
func (l *Locator) Locate(ctx context.Context, guildID, userID string, limit int) []Candidate {
	if limit <= 0 {
		return nil
	}

	seen := make(map[string]struct{})
	found := l.fromCache(guildID, userID, limit, seen)
	if len(found) >= limit {
		return found[:limit]
	}

	return l.fromHistory(ctx, guildID, userID, limit, seen, found)
}

// fromCache walks the guild's cached channels in first-seen order; traffic
// cached for other guilds never yields a candidate here.
func (l *Locator) fromCache(guildID, userID string, limit int, seen map[string]struct{}) []Candidate {
	var found []Candidate
	for _, channelID := range l.cache.Channels(guildID) {
		for _, msg := range l.cache.MessagesBy(channelID, userID) {
			if _, dup := seen[msg.ID]; dup {
				continue
			}
			seen[msg.ID] = struct{}{}
			found = append(found, Candidate{ChannelID: channelID, MessageID: msg.ID})
			if len(found) >= limit {
				return found
			}
		}
	}
	return found
}

func (l *Locator) fromHistory(ctx context.Context, guildID, userID string, limit int, seen map[string]struct{}, found []Candidate) []Candidate {
	channels, err := l.gateway.TextChannels(guildID)
	if err != nil {
		l.logger.Warn("channel listing failed", zap.String("guild_id", guildID), zap.Error(err))
		return found
	}

	var seenMu sync.Mutex
	for start := 0; start < len(channels) && len(found) < limit; start += searchBatchSize {
		end := start + searchBatchSize
		if end > len(channels) {
			end = len(channels)
		}
		batch := channels[start:end]
		remaining := limit - len(found)

		results := make([][]Candidate, len(batch))
		group, _ := errgroup.WithContext(ctx)
		for i, channelID := range batch {
			i, channelID := i, channelID
			group.Go(func() error {
				results[i] = l.searchChannel(channelID, userID, remaining, seen, &seenMu)
				return nil
			})
		}
		_ = group.Wait()

		for _, channelFound := range results {
			for _, candidate := range channelFound {
				if len(found) >= limit {
					break
				}
				found = append(found, candidate)
			}
		}

		if end < len(channels) && len(found) < limit {
			l.sleep(searchBatchPause)
		}
	}
	return found
}

// searchChannel inspects up to max(remaining*5, 100) recent messages and exits
// early once the channel alone has contributed its share. Unreadable channels
// and fetch failures are skipped, not fatal.
func (l *Locator) searchChannel(channelID, userID string, remaining int, seen map[string]struct{}, seenMu *sync.Mutex) []Candidate {
	if !l.gateway.CanReadHistory(channelID) {
		return nil
	}

	depth := remaining * 5
	if depth < minSearchDepth {
		depth = minSearchDepth
	}
	history, err := l.gateway.ChannelMessages(channelID, depth)
	if err != nil {
		l.logger.Debug("channel history skipped", zap.String("channel_id", channelID), zap.Error(err))
		return nil
	}

	var found []Candidate
	for _, msg := range history {
		if msg.AuthorID != userID {
			continue
		}
		seenMu.Lock()
		_, dup := seen[msg.ID]
		if !dup {
			seen[msg.ID] = struct{}{}
		}
		seenMu.Unlock()
		if dup {
			continue
		}
		found = append(found, Candidate{ChannelID: channelID, MessageID: msg.ID})
		if len(found) >= remaining {
			break
		}
	}
	return found
}
