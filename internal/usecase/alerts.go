package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-digital-store/internal/domain/model"
	"telegram-digital-store/internal/domain/ports/adapter"
	"telegram-digital-store/internal/domain/ports/repository"
)

// alerter records a dashboard notification and pushes the matching admin
// alert. Both steps are best effort and independent of each other.
type alerter struct {
	notes    repository.AdminNotificationRepository
	notifier adapter.AdminNotifier
	log      *zerolog.Logger
}

type alertResult struct {
	Recorded  bool
	Delivered bool
}

func (a *alerter) emit(ctx context.Context, n *model.AdminNotification, text string) alertResult {
	var res alertResult
	if a == nil {
		return res
	}
	if a.notes != nil {
		if err := a.notes.Save(ctx, repository.NoTX, n); err != nil {
			a.log.Error().Err(err).Str("type", string(n.Type)).Msg("save admin notification")
		} else {
			res.Recorded = true
		}
	}
	if a.notifier != nil && text != "" {
		res.Delivered = a.notifier.SendAdminAlert(ctx, text)
		if !res.Delivered {
			a.log.Warn().Str("type", string(n.Type)).Msg("admin alert not delivered")
		}
	}
	return res
}
