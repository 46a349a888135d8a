package activity

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type observation struct {
	channelID string
	at        time.Time
}

// Tracker keeps a sliding time window of (channel, timestamp) observations per
// user and guild. The window is refiltered on every observation, so entries
// older than the window never survive a read.
type Tracker struct {
	mu        sync.Mutex
	window    time.Duration
	threshold int
	clock     Clock
	windows   map[string][]observation
}

func NewTracker(window time.Duration, channelThreshold int) *Tracker {
	return &Tracker{
		window:    window,
		threshold: channelThreshold,
		clock:     realClock{},
		windows:   make(map[string][]observation),
	}
}

func (t *Tracker) WithClock(clock Clock) {
	t.clock = clock
}

// Observe appends the observation and drops everything at or before now-window.
// O(window size), bounded by traffic rate.
func (t *Tracker) Observe(userID, guildID, channelID string, ts time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := key(userID, guildID)
	entries := append(t.windows[key], observation{channelID: channelID, at: ts})

	cutoff := t.clock.Now().Add(-t.window)
	kept := entries[:0]
	for _, entry := range entries {
		if entry.at.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	if len(kept) == 0 {
		delete(t.windows, key)
		return
	}
	t.windows[key] = kept
}

// DistinctChannels counts the distinct channel IDs in the user's current window.
func (t *Tracker) DistinctChannels(userID, guildID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.clock.Now().Add(-t.window)
	channels := make(map[string]struct{})
	for _, entry := range t.windows[key(userID, guildID)] {
		if entry.at.After(cutoff) {
			channels[entry.channelID] = struct{}{}
		}
	}
	return len(channels)
}

// ShouldTrigger reports whether the user's window spans at least the configured
// number of distinct channels. Pure over the current snapshot.
func (t *Tracker) ShouldTrigger(userID, guildID string) bool {
	return t.DistinctChannels(userID, guildID) >= t.threshold
}

// Reset clears the user's window, suppressing a second trigger from the same burst.
func (t *Tracker) Reset(userID, guildID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.windows, key(userID, guildID))
}

func key(userID, guildID string) string {
	return guildID + ":" + userID
}
