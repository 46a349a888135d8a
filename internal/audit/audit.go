package audit

import (
	"context"

	"repelbot/internal/storage"

	"go.uber.org/zap"
)

// Logger records completed moderation actions to the store and the structured
// log, and optionally notifies the guild's log channel.
type Logger struct {
	store  *storage.Store
	logger *zap.Logger
	notify func(context.Context, storage.Action)
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

func (l *Logger) SetNotifier(notify func(context.Context, storage.Action)) {
	l.notify = notify
}

func (l *Logger) Record(ctx context.Context, action storage.Action) {
	if l.store != nil {
		if err := l.store.AddAction(ctx, action); err != nil {
			l.logger.Warn("action record failed", zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, action)
	}
	l.logger.Info("moderation action",
		zap.String("guild_id", action.GuildID),
		zap.String("user_id", action.UserID),
		zap.String("actor_id", action.ActorID),
		zap.String("trigger", action.Trigger),
		zap.Int("channels", action.Channels),
		zap.Int("deleted", action.Deleted),
		zap.Int("timeout_minutes", action.TimeoutMinutes),
		zap.Bool("suspended", action.Suspended))
}
