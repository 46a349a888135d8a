package analytics

import (
	"context"
	"time"

	"repelbot/internal/storage"
)

type Service struct {
	store *storage.Store
}

func New(store *storage.Store) *Service {
	return &Service{store: store}
}

type Report struct {
	Actions   int
	Deleted   int
	Suspended int
	ByTrigger map[string]int
}

func (s *Service) Report(ctx context.Context, guildID string, since time.Time) (Report, error) {
	actions, err := s.store.ListActions(ctx, guildID, since)
	if err != nil {
		return Report{}, err
	}

	report := Report{ByTrigger: make(map[string]int)}
	for _, action := range actions {
		report.Actions++
		report.Deleted += action.Deleted
		if action.Suspended {
			report.Suspended++
		}
		report.ByTrigger[action.Trigger]++
	}
	return report, nil
}
