package trial

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/neurosales/neuroseller-bot/internal/domain/users"
	"github.com/neurosales/neuroseller-bot/internal/infra/metrics"
)

type GateStore interface {
	Get(ctx context.Context, userID int64) (*users.User, error)
	SetActive(ctx context.Context, userID int64, active bool) error
}

// Gate сверяет статус триала перед обработкой каждого входящего события.
// Делает не больше одного чтения и одной условной записи; флаг expired —
// аннотация для обработчиков, сами они решают, что ограничивать.
type Gate struct {
	store GateStore
	log   *slog.Logger
	now   func() time.Time
}

func NewGate(store GateStore, log *slog.Logger) *Gate {
	return &Gate{store: store, log: log, now: time.Now}
}

// Check возвращает true, если триал пользователя истёк и тариф не выбран.
func (g *Gate) Check(ctx context.Context, userID int64) (bool, error) {
	u, err := g.store.Get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get user %d: %w", userID, err)
	}
	// Нового пользователя пропускаем: /start всегда доступен.
	if u == nil {
		return false, nil
	}

	if !u.IsActive {
		if u.TariffID != nil {
			// Тариф выбран, а флаг погашен — лечим устаревшую деактивацию.
			if err := g.store.SetActive(ctx, userID, true); err != nil {
				return false, fmt.Errorf("reactivate user %d: %w", userID, err)
			}
			g.log.Info("пользователь с тарифом реактивирован", "user_id", userID)
			return false, nil
		}
		return true, nil
	}

	if g.now().After(u.TrialEndAt) && u.TariffID == nil {
		if err := g.store.SetActive(ctx, userID, false); err != nil {
			return false, fmt.Errorf("deactivate user %d: %w", userID, err)
		}
		metrics.TrialsExpired.Inc()
		g.log.Info("триал истёк, пользователь деактивирован", "user_id", userID)
		return true, nil
	}

	return false, nil
}
