package moderation

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// bulkEligibility is the platform's bulk-delete age limit.
	bulkEligibility = 14 * 24 * time.Hour
	// bulkChunkSize is the platform's per-call bulk-delete ceiling.
	bulkChunkSize = 100
	// bulkChunkFloor: a chunk of 1 is not worth a bulk call.
	bulkChunkFloor = 2
	// fetchBatchSize concurrent message resolutions per round.
	fetchBatchSize = 10
	// deleteBatchSize concurrent individual deletions per round.
	deleteBatchSize = 5
	// batchPause spaces fetch and delete rounds.
	batchPause = 50 * time.Millisecond
	// defaultRetryAfter applies when a rate limit carries no interval.
	defaultRetryAfter = time.Second
)

// Pipeline deletes candidate messages across channels: bulk where eligible,
// individually otherwise, degrading from bulk to individual on failure rather
// than aborting. Permission and not-found errors only reduce the count.
type Pipeline struct {
	gateway Gateway
	logger  *zap.Logger
	now     func() time.Time
	sleep   func(time.Duration)
}

func NewPipeline(gateway Gateway, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		gateway: gateway,
		logger:  logger,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// DeleteAll groups candidates by channel, processes every channel concurrently,
// and returns the total number of messages actually deleted.
func (p *Pipeline) DeleteAll(ctx context.Context, candidates []Candidate) int {
	groups := make(map[string][]string)
	for _, candidate := range candidates {
		groups[candidate.ChannelID] = append(groups[candidate.ChannelID], candidate.MessageID)
	}

	var total atomic.Int64
	group, _ := errgroup.WithContext(ctx)
	for channelID, messageIDs := range groups {
		channelID, messageIDs := channelID, messageIDs
		group.Go(func() error {
			total.Add(int64(p.deleteInChannel(channelID, messageIDs)))
			return nil
		})
	}
	_ = group.Wait()
	return int(total.Load())
}

func (p *Pipeline) deleteInChannel(channelID string, messageIDs []string) int {
	resolved := p.resolve(channelID, messageIDs)
	if len(resolved) == 0 {
		return 0
	}

	cutoff := p.now().Add(-bulkEligibility)
	var recent, single []Message
	for _, msg := range resolved {
		if msg.Timestamp.After(cutoff) {
			recent = append(recent, msg)
		} else {
			single = append(single, msg)
		}
	}

	deleted := 0
	for len(recent) >= bulkChunkFloor {
		chunk := recent
		if len(chunk) > bulkChunkSize {
			chunk = chunk[:bulkChunkSize]
		}
		if err := p.bulkDeleteChunk(channelID, messageIDsOf(chunk)); err != nil {
			p.logger.Warn("bulk delete degraded to individual",
				zap.String("channel_id", channelID),
				zap.Int("count", len(chunk)),
				zap.Error(err))
			single = append(single, chunk...)
		} else {
			deleted += len(chunk)
		}
		recent = recent[len(chunk):]
	}
	// Sub-floor remainder goes to individual deletion.
	single = append(single, recent...)

	return deleted + p.deleteIndividually(channelID, single)
}

// bulkDeleteChunk attempts one bulk call; on a rate-limit signal it waits the
// signaled interval (default 1s) and retries exactly once.
func (p *Pipeline) bulkDeleteChunk(channelID string, messageIDs []string) error {
	err := p.gateway.BulkDelete(channelID, messageIDs)
	var limited *RateLimitError
	if !errors.As(err, &limited) {
		return err
	}

	wait := limited.RetryAfter
	if wait <= 0 {
		wait = defaultRetryAfter
	}
	p.sleep(wait)
	return p.gateway.BulkDelete(channelID, messageIDs)
}

// resolve fetches full message records in sub-batches of concurrent lookups.
// A failed fetch drops that ID silently.
func (p *Pipeline) resolve(channelID string, messageIDs []string) []Message {
	var mu sync.Mutex
	var resolved []Message

	for start := 0; start < len(messageIDs); start += fetchBatchSize {
		end := start + fetchBatchSize
		if end > len(messageIDs) {
			end = len(messageIDs)
		}

		var wg sync.WaitGroup
		for _, messageID := range messageIDs[start:end] {
			messageID := messageID
			wg.Add(1)
			go func() {
				defer wg.Done()
				msg, err := p.gateway.Message(channelID, messageID)
				if err != nil {
					return
				}
				mu.Lock()
				resolved = append(resolved, msg)
				mu.Unlock()
			}()
		}
		wg.Wait()

		if end < len(messageIDs) {
			p.sleep(batchPause)
		}
	}
	return resolved
}

func (p *Pipeline) deleteIndividually(channelID string, messages []Message) int {
	var deleted atomic.Int64
	for start := 0; start < len(messages); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(messages) {
			end = len(messages)
		}

		var wg sync.WaitGroup
		for _, msg := range messages[start:end] {
			msg := msg
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := p.gateway.Delete(channelID, msg.ID); err != nil {
					return
				}
				deleted.Add(1)
			}()
		}
		wg.Wait()

		if end < len(messages) {
			p.sleep(batchPause)
		}
	}
	return int(deleted.Load())
}

func messageIDsOf(messages []Message) []string {
	ids := make([]string, len(messages))
	for i, msg := range messages {
		ids[i] = msg.ID
	}
	return ids
}
