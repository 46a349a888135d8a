package engine

import (
	"sync"
	"time"

	"repelbot/internal/activity"
	"repelbot/internal/cache"
)

// Event is one inbound message as seen by the orchestration core.
type Event struct {
	GuildID   string
	ChannelID string
	AuthorID  string
	MessageID string
	Timestamp time.Time
	Bot       bool
}

type ActionKind int

const (
	// ActionSuspend applies a timed communication suspension to the user.
	ActionSuspend ActionKind = iota
	// ActionPurge locates and deletes up to Limit of the user's recent messages.
	ActionPurge
	// ActionReport emits the result summary to ChannelID once the others finish.
	ActionReport
)

// Action is one side effect the executor must perform. Suspend and Purge for
// the same trigger run concurrently; Report waits for both.
type Action struct {
	Kind      ActionKind
	GuildID   string
	UserID    string
	ChannelID string
	Limit     int
	Duration  time.Duration
	Reason    string
	Channels  int
}

type Config struct {
	PurgeLimit      int
	SuspendDuration time.Duration
	SuspendReason   string
}

// Engine consumes message events, feeding the cache and the activity tracker,
// and turns detector triggers into an action plan. It performs no I/O itself.
type Engine struct {
	cache   *cache.Cache
	tracker *activity.Tracker
	cfg     Config

	mu     sync.Mutex
	acting map[string]struct{}
}

func New(messageCache *cache.Cache, tracker *activity.Tracker, cfg Config) *Engine {
	return &Engine{
		cache:   messageCache,
		tracker: tracker,
		cfg:     cfg,
		acting:  make(map[string]struct{}),
	}
}

// HandleMessage records the event and returns the actions to perform, or nil.
// Cache and tracker updates always complete before the detector is consulted.
// The window is reset on trigger so the same burst cannot fire twice, and a
// guild+user pair with an action already in flight is not re-triggered.
func (e *Engine) HandleMessage(ev Event) []Action {
	if ev.Bot || ev.GuildID == "" || ev.AuthorID == "" {
		return nil
	}

	e.cache.Record(ev.GuildID, ev.ChannelID, cache.Message{
		ID:        ev.MessageID,
		AuthorID:  ev.AuthorID,
		Timestamp: ev.Timestamp,
	})
	e.tracker.Observe(ev.AuthorID, ev.GuildID, ev.ChannelID, ev.Timestamp)

	if !e.tracker.ShouldTrigger(ev.AuthorID, ev.GuildID) {
		return nil
	}

	key := ev.GuildID + ":" + ev.AuthorID
	e.mu.Lock()
	if _, busy := e.acting[key]; busy {
		e.mu.Unlock()
		return nil
	}
	e.acting[key] = struct{}{}
	e.mu.Unlock()

	channels := e.tracker.DistinctChannels(ev.AuthorID, ev.GuildID)
	e.tracker.Reset(ev.AuthorID, ev.GuildID)

	return []Action{
		{
			Kind:     ActionSuspend,
			GuildID:  ev.GuildID,
			UserID:   ev.AuthorID,
			Duration: e.cfg.SuspendDuration,
			Reason:   e.cfg.SuspendReason,
		},
		{
			Kind:    ActionPurge,
			GuildID: ev.GuildID,
			UserID:  ev.AuthorID,
			Limit:   e.cfg.PurgeLimit,
		},
		{
			Kind:      ActionReport,
			GuildID:   ev.GuildID,
			UserID:    ev.AuthorID,
			ChannelID: ev.ChannelID,
			Channels:  channels,
		},
	}
}

// Finish releases the in-flight guard once the executor has completed the plan.
func (e *Engine) Finish(guildID, userID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.acting, guildID+":"+userID)
}
