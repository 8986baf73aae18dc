package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot реализует trial.Notifier: свипер шлёт уведомления через тот же
// транспорт. Ошибка возвращается наружу — изоляцию по пользователям
// обеспечивает сам свипер.

func (b *Bot) TrialEnding(_ context.Context, chatID int64) error {
	m := tgbotapi.NewMessage(chatID,
		"⚠️ Ваш триал-период заканчивается завтра!\n\n"+
			"Чтобы продолжить пользоваться всеми функциями, пожалуйста, перейдите на платную версию.")
	m.ReplyMarkup = trialEndingKeyboard()
	if _, err := b.api.Send(m); err != nil {
		return fmt.Errorf("send trial ending notice: %w", err)
	}
	return nil
}

func (b *Bot) TrialEnded(_ context.Context, chatID int64) error {
	m := tgbotapi.NewMessage(chatID,
		"⚠️ Ваш триал-период закончился!\n\n"+
			"Теперь доступ к функциям ограничен. Для продолжения использования всех возможностей системы, "+
			"пожалуйста, перейдите на платную версию.")
	m.ReplyMarkup = trialEndedKeyboard()
	if _, err := b.api.Send(m); err != nil {
		return fmt.Errorf("send trial ended notice: %w", err)
	}
	return nil
}
