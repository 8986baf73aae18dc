package trial

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neurosales/neuroseller-bot/internal/domain/users"
	"github.com/neurosales/neuroseller-bot/internal/infra/metrics"
)

type SweepStore interface {
	ListEndingInDays(ctx context.Context, days int) ([]*users.User, error)
	ListExpiredActive(ctx context.Context) ([]*users.User, error)
	SetActive(ctx context.Context, userID int64, active bool) error
}

type Notifier interface {
	TrialEnding(ctx context.Context, chatID int64) error
	TrialEnded(ctx context.Context, chatID int64) error
}

// Sweeper — фоновая проверка триалов: предупреждение за remindDays дней
// и деактивация просроченных без тарифа. Ошибка цикла не роняет луп,
// следующая попытка — через backoff вместо полного периода.
type Sweeper struct {
	store      SweepStore
	notify     Notifier
	log        *slog.Logger
	period     time.Duration
	backoff    time.Duration
	remindDays int
}

func NewSweeper(store SweepStore, notify Notifier, log *slog.Logger, remindDays int) *Sweeper {
	return &Sweeper{
		store:      store,
		notify:     notify,
		log:        log,
		period:     24 * time.Hour,
		backoff:    time.Hour,
		remindDays: remindDays,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	for {
		delay := s.period
		if err := s.runCycle(ctx); err != nil {
			s.log.Error("проверка триалов не прошла", "err", err)
			delay = s.backoff
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

func (s *Sweeper) runCycle(ctx context.Context) error {
	if err := s.notifyEndingSoon(ctx); err != nil {
		return err
	}
	return s.expireEnded(ctx)
}

// notifyEndingSoon предупреждает пользователей, у которых триал
// заканчивается через remindDays дней. Сбой отправки одному
// пользователю не блокирует остальных.
func (s *Sweeper) notifyEndingSoon(ctx context.Context) error {
	list, err := s.store.ListEndingInDays(ctx, s.remindDays)
	if err != nil {
		return fmt.Errorf("list ending trials: %w", err)
	}
	for _, u := range list {
		if err := s.notify.TrialEnding(ctx, u.ChatID); err != nil {
			metrics.NotificationsTotal.WithLabelValues("ending", "error").Inc()
			s.log.Error("не удалось предупредить об окончании триала", "user_id", u.UserID, "err", err)
			continue
		}
		metrics.NotificationsTotal.WithLabelValues("ending", "ok").Inc()
		s.log.Info("отправлено предупреждение об окончании триала", "user_id", u.UserID)
	}
	return nil
}

// expireEnded деактивирует просроченных. Запись в базу идёт до отправки
// уведомления: сбой отправки не должен оставить пользователя активным.
func (s *Sweeper) expireEnded(ctx context.Context) error {
	list, err := s.store.ListExpiredActive(ctx)
	if err != nil {
		return fmt.Errorf("list expired trials: %w", err)
	}
	for _, u := range list {
		// Выбранный тариф замораживает активность навсегда.
		if u.TariffID != nil {
			continue
		}
		if err := s.store.SetActive(ctx, u.UserID, false); err != nil {
			return fmt.Errorf("deactivate user %d: %w", u.UserID, err)
		}
		metrics.TrialsExpired.Inc()
		if err := s.notify.TrialEnded(ctx, u.ChatID); err != nil {
			metrics.NotificationsTotal.WithLabelValues("ended", "error").Inc()
			s.log.Error("не удалось уведомить о завершении триала", "user_id", u.UserID, "err", err)
			continue
		}
		metrics.NotificationsTotal.WithLabelValues("ended", "ok").Inc()
		s.log.Info("триал завершён, пользователь уведомлён", "user_id", u.UserID)
	}
	return nil
}
