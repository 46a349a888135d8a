package storage

import (
	"context"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func TestUpsertGuildSettings(t *testing.T) {
	store := newTestStore(t)

	settings := GuildSettings{
		GuildID:        "g1",
		LogChannel:     "c1",
		PurgeCount:     100,
		TimeoutMinutes: 120,
	}
	if err := store.UpsertGuildSettings(context.Background(), settings); err != nil {
		t.Fatalf("upsert guild settings: %v", err)
	}

	settings.LogChannel = "c2"
	if err := store.UpsertGuildSettings(context.Background(), settings); err != nil {
		t.Fatalf("update guild settings: %v", err)
	}

	got, err := store.GetGuildSettings(context.Background(), "g1", GuildSettings{})
	if err != nil {
		t.Fatalf("get guild settings: %v", err)
	}
	if got.LogChannel != "c2" {
		t.Fatalf("expected channel c2, got %q", got.LogChannel)
	}
}

func TestGetGuildSettingsFallsBackToDefaults(t *testing.T) {
	store := newTestStore(t)

	defaults := GuildSettings{LogChannel: "log", PurgeCount: 100, TimeoutMinutes: 120}
	got, err := store.GetGuildSettings(context.Background(), "missing", defaults)
	if err != nil {
		t.Fatalf("get guild settings: %v", err)
	}
	if got.GuildID != "missing" || got.PurgeCount != 100 || got.TimeoutMinutes != 120 {
		t.Fatalf("expected defaults, got %+v", got)
	}
}

func TestActionsRoundTrip(t *testing.T) {
	store := newTestStore(t)

	action := Action{
		GuildID:        "g1",
		UserID:         "u1",
		ActorID:        "mod1",
		Trigger:        TriggerManual,
		Channels:       4,
		Deleted:        37,
		TimeoutMinutes: 120,
		Suspended:      true,
		CreatedAt:      time.Now(),
	}
	if err := store.AddAction(context.Background(), action); err != nil {
		t.Fatalf("add action: %v", err)
	}

	actions, err := store.ListActions(context.Background(), "g1", time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(actions) != 1 {
		t.Fatalf("expected 1 action, got %d", len(actions))
	}
	got := actions[0]
	if got.Trigger != TriggerManual || got.Deleted != 37 || !got.Suspended {
		t.Fatalf("unexpected action: %+v", got)
	}

	old, err := store.ListActions(context.Background(), "g1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("list actions: %v", err)
	}
	if len(old) != 0 {
		t.Fatalf("expected no actions after cutoff, got %d", len(old))
	}
}
