package bot

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/neurosales/neuroseller-bot/internal/domain/users"
	"github.com/neurosales/neuroseller-bot/internal/flow"
	"github.com/neurosales/neuroseller-bot/internal/infra/metrics"
	"github.com/neurosales/neuroseller-bot/internal/trial"
)

const welcomeMessage = "Привет! Я «Нейропродажник» — помогу подобрать тариф под ваш бизнес.\n\n" +
	"Ответьте на несколько вопросов, и я предложу оптимальный вариант. " +
	"Первые 14 дней все функции доступны бесплатно."

const managerContact = "manager@example.com"

type Bot struct {
	api       *tgbotapi.BotAPI
	log       *slog.Logger
	machine   *flow.Machine
	gate      *trial.Gate
	users     *users.Repo
	adminChat int64
	seq       *sequencer
}

func New(api *tgbotapi.BotAPI, log *slog.Logger, machine *flow.Machine,
	gate *trial.Gate, usersRepo *users.Repo, adminChatID int64) *Bot {

	return &Bot{
		api: api, log: log, machine: machine,
		gate: gate, users: usersRepo, adminChat: adminChatID,
		seq: newSequencer(),
	}
}

func (b *Bot) Run(ctx context.Context, timeoutSec int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = timeoutSec
	updates := b.api.GetUpdatesChan(u)
	defer b.seq.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case upd := <-updates:
			// события одного чата применяются в порядке прихода,
			// чаты между собой независимы
			chatID, ok := updateChatID(upd)
			if !ok {
				continue
			}
			b.seq.Do(chatID, func() { b.handleUpdate(ctx, upd) })
		}
	}
}

func updateChatID(upd tgbotapi.Update) (int64, bool) {
	switch {
	case upd.Message != nil:
		return upd.Message.Chat.ID, true
	case upd.CallbackQuery != nil && upd.CallbackQuery.Message != nil:
		return upd.CallbackQuery.Message.Chat.ID, true
	}
	return 0, false
}

func (b *Bot) handleUpdate(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil:
		metrics.EventsTotal.WithLabelValues("message").Inc()
		b.onMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		metrics.EventsTotal.WithLabelValues("callback").Inc()
		b.onCallback(ctx, upd.CallbackQuery)
	}
}

func (b *Bot) send(msg tgbotapi.Chattable) {
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error("send failed", "err", err)
	}
}

// Progress шлёт промежуточное сообщение, пока машина ждёт подбор тарифа.
func (b *Bot) Progress(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}
