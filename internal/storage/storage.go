package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
}

// GuildSettings holds per-guild overrides; zero values fall back to config.
type GuildSettings struct {
	GuildID        string
	LogChannel     string
	PurgeCount     int
	TimeoutMinutes int
}

// Action records one completed moderation pass (auto or manual).
type Action struct {
	ID             int64
	GuildID        string
	UserID         string
	ActorID        string
	Trigger        string
	Channels       int
	Deleted        int
	TimeoutMinutes int
	Suspended      bool
	CreatedAt      time.Time
}

const (
	TriggerAuto   = "auto"
	TriggerManual = "manual"
)

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

func (s *Store) GetGuildSettings(ctx context.Context, guildID string, defaults GuildSettings) (GuildSettings, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT log_channel, purge_count, timeout_minutes
		FROM guild_settings WHERE guild_id = ?`, guildID)

	result := defaults
	result.GuildID = guildID

	err := row.Scan(&result.LogChannel, &result.PurgeCount, &result.TimeoutMinutes)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return result, nil
		}
		return GuildSettings{}, err
	}
	if result.LogChannel == "" {
		result.LogChannel = defaults.LogChannel
	}
	if result.PurgeCount <= 0 {
		result.PurgeCount = defaults.PurgeCount
	}
	if result.TimeoutMinutes <= 0 {
		result.TimeoutMinutes = defaults.TimeoutMinutes
	}
	return result, nil
}

func (s *Store) UpsertGuildSettings(ctx context.Context, settings GuildSettings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO guild_settings (guild_id, log_channel, purge_count, timeout_minutes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(guild_id) DO UPDATE SET
			log_channel = excluded.log_channel,
			purge_count = excluded.purge_count,
			timeout_minutes = excluded.timeout_minutes
	`,
		settings.GuildID,
		settings.LogChannel,
		settings.PurgeCount,
		settings.TimeoutMinutes,
	)
	return err
}

func (s *Store) AddAction(ctx context.Context, action Action) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO moderation_actions (guild_id, user_id, actor_id, trigger_kind, channels, deleted, timeout_minutes, suspended, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, action.GuildID, action.UserID, action.ActorID, action.Trigger, action.Channels,
		action.Deleted, action.TimeoutMinutes, boolToInt(action.Suspended), action.CreatedAt.Unix())
	return err
}

func (s *Store) ListActions(ctx context.Context, guildID string, since time.Time) ([]Action, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, guild_id, user_id, actor_id, trigger_kind, channels, deleted, timeout_minutes, suspended, created_at
		FROM moderation_actions
		WHERE guild_id = ? AND created_at >= ?
		ORDER BY created_at DESC
	`, guildID, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var actions []Action
	for rows.Next() {
		var action Action
		var suspended int
		var created int64
		if err := rows.Scan(&action.ID, &action.GuildID, &action.UserID, &action.ActorID,
			&action.Trigger, &action.Channels, &action.Deleted, &action.TimeoutMinutes,
			&suspended, &created); err != nil {
			return nil, err
		}
		action.Suspended = suspended == 1
		action.CreatedAt = time.Unix(created, 0)
		actions = append(actions, action)
	}
	return actions, rows.Err()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
