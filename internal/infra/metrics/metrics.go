package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsTotal — входящие события по типам (message/callback).
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_events_total",
		Help: "Inbound Telegram events by kind.",
	}, []string{"kind"})

	// GuardRejections — события, отклонённые машиной диалога.
	GuardRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_guard_rejections_total",
		Help: "Conversation events rejected by the current step guard.",
	})

	// TrialsExpired — деактивации по окончании триала (гейт + свипер).
	TrialsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bot_trials_expired_total",
		Help: "Users deactivated after trial expiry.",
	})

	// NotificationsTotal — уведомления свипера по типу и результату.
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_trial_notifications_total",
		Help: "Trial notifications by kind and result.",
	}, []string{"kind", "result"})

	// RecommendTotal — вызовы подбора тарифа по результату.
	RecommendTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bot_recommendations_total",
		Help: "Tariff recommendation calls by result.",
	}, []string{"result"})
)
