package engine

import (
	"testing"
	"time"

	"repelbot/internal/activity"
	"repelbot/internal/cache"
)

func newTestEngine() (*Engine, *cache.Cache, *activity.Tracker) {
	c := cache.New(500)
	tracker := activity.NewTracker(30*time.Second, 3)
	e := New(c, tracker, Config{
		PurgeLimit:      50,
		SuspendDuration: 120 * time.Minute,
		SuspendReason:   "spam across multiple channels",
	})
	return e, c, tracker
}

func event(channelID, messageID string, ts time.Time) Event {
	return Event{
		GuildID:   "g1",
		ChannelID: channelID,
		AuthorID:  "u1",
		MessageID: messageID,
		Timestamp: ts,
	}
}

func TestHandleMessageIgnoresBotsAndDMs(t *testing.T) {
	e, c, _ := newTestEngine()

	ev := event("c1", "m1", time.Now())
	ev.Bot = true
	if actions := e.HandleMessage(ev); actions != nil {
		t.Fatalf("expected no actions for bot message")
	}
	if got := c.Len("c1"); got != 0 {
		t.Fatalf("bot message must not be cached, got %d", got)
	}

	dm := event("c1", "m2", time.Now())
	dm.GuildID = ""
	if actions := e.HandleMessage(dm); actions != nil {
		t.Fatalf("expected no actions for DM")
	}
}

func TestBurstAcrossThreeChannelsTriggersPlan(t *testing.T) {
	e, _, tracker := newTestEngine()
	now := time.Now()

	if actions := e.HandleMessage(event("c1", "m1", now)); actions != nil {
		t.Fatalf("unexpected trigger after 1 channel")
	}
	if actions := e.HandleMessage(event("c2", "m2", now.Add(3*time.Second))); actions != nil {
		t.Fatalf("unexpected trigger after 2 channels")
	}

	actions := e.HandleMessage(event("c3", "m3", now.Add(10*time.Second)))
	if len(actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(actions))
	}
	if actions[0].Kind != ActionSuspend || actions[0].Duration != 120*time.Minute {
		t.Fatalf("unexpected suspend action: %+v", actions[0])
	}
	if actions[1].Kind != ActionPurge || actions[1].Limit != 50 {
		t.Fatalf("unexpected purge action: %+v", actions[1])
	}
	if actions[2].Kind != ActionReport || actions[2].ChannelID != "c3" || actions[2].Channels != 3 {
		t.Fatalf("unexpected report action: %+v", actions[2])
	}

	// Window was reset: a single further channel must not re-trigger.
	if tracker.ShouldTrigger("u1", "g1") {
		t.Fatalf("tracker not reset after trigger")
	}
	e.Finish("g1", "u1")
	if actions := e.HandleMessage(event("c1", "m4", now.Add(11*time.Second))); actions != nil {
		t.Fatalf("unexpected re-trigger from a single channel after reset")
	}
}

func TestInFlightGuardSuppressesSecondPlan(t *testing.T) {
	e, _, _ := newTestEngine()
	now := time.Now()

	e.HandleMessage(event("c1", "m1", now))
	e.HandleMessage(event("c2", "m2", now))
	if actions := e.HandleMessage(event("c3", "m3", now)); len(actions) == 0 {
		t.Fatalf("expected trigger")
	}

	// Same burst continues while the first plan is still executing.
	e.HandleMessage(event("c4", "m4", now))
	e.HandleMessage(event("c5", "m5", now))
	if actions := e.HandleMessage(event("c6", "m6", now)); actions != nil {
		t.Fatalf("expected in-flight guard to suppress second plan")
	}

	// Once the plan completes the guard lifts; the still-live window re-triggers.
	e.Finish("g1", "u1")
	if actions := e.HandleMessage(event("c7", "m7", now)); len(actions) == 0 {
		t.Fatalf("expected trigger after Finish")
	}
}

func TestCacheIsFedByEvents(t *testing.T) {
	e, c, _ := newTestEngine()
	now := time.Now()
	e.HandleMessage(event("c1", "m1", now))
	e.HandleMessage(event("c1", "m2", now))

	if got := len(c.MessagesBy("c1", "u1")); got != 2 {
		t.Fatalf("expected 2 cached messages, got %d", got)
	}
}
