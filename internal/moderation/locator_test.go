package moderation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"repelbot/internal/cache"

	"go.uber.org/zap"
)

func newTestLocator(c *cache.Cache, gw *fakeGateway) *Locator {
	locator := NewLocator(c, gw, zap.NewNop())
	locator.sleep = func(time.Duration) {}
	return locator
}

func TestLocateCacheOnlyWhenCacheSatisfiesLimit(t *testing.T) {
	c := cache.New(500)
	now := time.Now()
	for i := 0; i < 10; i++ {
		c.Record("g1", "c1", cache.Message{ID: fmt.Sprintf("m%d", i), AuthorID: "u1", Timestamp: now})
	}
	gw := newFakeGateway()
	gw.channels = []string{"c1", "c2"}

	found := newTestLocator(c, gw).Locate(context.Background(), "g1", "u1", 5)
	if len(found) != 5 {
		t.Fatalf("expected 5 candidates, got %d", len(found))
	}
	if gw.historyCalls != 0 {
		t.Fatalf("expected no network calls, got %d", gw.historyCalls)
	}
}

func TestLocateFallsBackToHistory(t *testing.T) {
	c := cache.New(500)
	now := time.Now()
	c.Record("g1", "c1", cache.Message{ID: "m1", AuthorID: "u1", Timestamp: now})

	gw := newFakeGateway()
	gw.channels = []string{"c1", "c2"}
	// m1 also shows up in history and must be deduplicated.
	gw.addMessage("c1", "m1", "u1", now)
	gw.addMessage("c2", "m2", "u1", now)
	gw.addMessage("c2", "m3", "u2", now)
	gw.addMessage("c2", "m4", "u1", now)

	found := newTestLocator(c, gw).Locate(context.Background(), "g1", "u1", 10)
	if len(found) != 3 {
		t.Fatalf("expected 3 candidates, got %d: %v", len(found), found)
	}
	seen := make(map[string]bool)
	for _, candidate := range found {
		if seen[candidate.MessageID] {
			t.Fatalf("duplicate message id %s", candidate.MessageID)
		}
		seen[candidate.MessageID] = true
	}
}

func TestLocateIgnoresOtherGuildsCache(t *testing.T) {
	c := cache.New(500)
	now := time.Now()
	// Traffic cached from another guild's channel must never become a candidate
	// for this guild, even when this guild has nothing of its own.
	for i := 0; i < 5; i++ {
		c.Record("g2", "foreign", cache.Message{ID: fmt.Sprintf("fm%d", i), AuthorID: "u1", Timestamp: now})
	}
	c.Record("g1", "c1", cache.Message{ID: "m1", AuthorID: "u1", Timestamp: now})

	gw := newFakeGateway()
	gw.channels = []string{"c1"}

	found := newTestLocator(c, gw).Locate(context.Background(), "g1", "u1", 5)
	if len(found) != 1 {
		t.Fatalf("expected 1 candidate, got %d: %v", len(found), found)
	}
	for _, candidate := range found {
		if candidate.ChannelID == "foreign" {
			t.Fatalf("candidate leaked from another guild: %+v", candidate)
		}
	}
}

func TestLocateCachePhaseIsDeterministic(t *testing.T) {
	c := cache.New(500)
	now := time.Now()
	for i := 0; i < 6; i++ {
		channelID := fmt.Sprintf("c%d", i)
		c.Record("g1", channelID, cache.Message{ID: "m-" + channelID, AuthorID: "u1", Timestamp: now})
	}
	gw := newFakeGateway()

	// More cached than limit: the same earliest-seen channels win every run.
	for run := 0; run < 3; run++ {
		found := newTestLocator(c, gw).Locate(context.Background(), "g1", "u1", 4)
		if len(found) != 4 {
			t.Fatalf("expected 4 candidates, got %d", len(found))
		}
		for i, candidate := range found {
			if want := fmt.Sprintf("c%d", i); candidate.ChannelID != want {
				t.Fatalf("run %d: expected channel %s at position %d, got %s", run, want, i, candidate.ChannelID)
			}
		}
	}
}

func TestLocateNeverExceedsLimit(t *testing.T) {
	c := cache.New(500)
	gw := newFakeGateway()
	gw.channels = []string{"c1"}
	now := time.Now()
	for i := 0; i < 50; i++ {
		gw.addMessage("c1", fmt.Sprintf("m%d", i), "u1", now)
	}

	found := newTestLocator(c, gw).Locate(context.Background(), "g1", "u1", 7)
	if len(found) != 7 {
		t.Fatalf("expected 7 candidates, got %d", len(found))
	}
}

func TestLocateSkipsUnreadableChannels(t *testing.T) {
	c := cache.New(500)
	now := time.Now()
	for i := 0; i < 5; i++ {
		c.Record("g1", "c1", cache.Message{ID: fmt.Sprintf("m%d", i), AuthorID: "u1", Timestamp: now})
	}
	gw := newFakeGateway()
	gw.channels = []string{"c2", "c3"}
	gw.unreadable["c2"] = true
	gw.unreadable["c3"] = true

	// limit=20 with only 5 cached and no readable channels: exactly 5, no error.
	found := newTestLocator(c, gw).Locate(context.Background(), "g1", "u1", 20)
	if len(found) != 5 {
		t.Fatalf("expected 5 candidates, got %d", len(found))
	}
	if gw.historyCalls != 0 {
		t.Fatalf("expected unreadable channels to be skipped, got %d history calls", gw.historyCalls)
	}
}

func TestLocatePausesBetweenBatches(t *testing.T) {
	c := cache.New(500)
	gw := newFakeGateway()
	for i := 0; i < 12; i++ {
		gw.channels = append(gw.channels, fmt.Sprintf("c%d", i))
	}

	locator := NewLocator(c, gw, zap.NewNop())
	pauses := 0
	locator.sleep = func(d time.Duration) {
		if d != searchBatchPause {
			t.Fatalf("unexpected pause %s", d)
		}
		pauses++
	}

	locator.Locate(context.Background(), "g1", "u1", 10)
	// 12 channels in batches of 5: pauses after the first and second rounds only.
	if pauses != 2 {
		t.Fatalf("expected 2 pauses, got %d", pauses)
	}
}
