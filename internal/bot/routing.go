package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/neurosales/neuroseller-bot/internal/domain/users"
	"github.com/neurosales/neuroseller-bot/internal/flow"
	"github.com/neurosales/neuroseller-bot/internal/infra/metrics"
)

func telegramFrom(from *tgbotapi.User, chatID int64) users.Telegram {
	return users.Telegram{
		ID:        from.ID,
		ChatID:    chatID,
		Username:  from.UserName,
		FirstName: from.FirstName,
		LastName:  from.LastName,
	}
}

func (b *Bot) onMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	tg := telegramFrom(msg.From, msg.Chat.ID)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			b.dispatch(ctx, tg, flow.StartAction{})
		case "help":
			b.send(tgbotapi.NewMessage(msg.Chat.ID,
				"Команды:\n/start — начать подбор тарифа\n/help — помощь"))
		case "admin":
			b.handleAdminStats(ctx, msg)
		case "broadcast":
			b.handleBroadcast(ctx, msg)
		case "export":
			b.handleExportUsers(ctx, msg)
		default:
			b.send(tgbotapi.NewMessage(msg.Chat.ID, "Не знаю такую команду. Наберите /help"))
		}
		return
	}

	b.dispatch(ctx, tg, flow.FreeTextAnswer{Text: msg.Text})
}

func (b *Bot) onCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.From == nil || cb.Message == nil {
		return
	}
	tg := telegramFrom(cb.From, cb.Message.Chat.ID)

	// убираем «часики» на кнопке
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.log.Debug("callback ack failed", "err", err)
	}

	data := cb.Data
	switch {
	case strings.HasPrefix(data, "select_tariff:"):
		if idx, err := strconv.Atoi(strings.TrimPrefix(data, "select_tariff:")); err == nil {
			b.dispatch(ctx, tg, flow.SelectTariff{Index: idx})
		}
	case strings.HasPrefix(data, "tariff_details:"):
		if idx, err := strconv.Atoi(strings.TrimPrefix(data, "tariff_details:")); err == nil {
			b.dispatch(ctx, tg, flow.ViewTariffDetails{Index: idx})
		}
	case data == "back_to_tariffs":
		b.dispatch(ctx, tg, flow.BackToList{})
	case data == "contact_manager":
		b.dispatch(ctx, tg, flow.ContactHuman{})
	case data == "upgrade_to_paid":
		b.send(tgbotapi.NewMessage(tg.ChatID, fmt.Sprintf(
			"Для перехода на платную версию свяжитесь с нашим менеджером: %s\n\nУкажите ваш ID в Telegram: %d",
			managerContact, tg.ID)))
	case data == "remind_later":
		b.send(tgbotapi.NewMessage(tg.ChatID,
			"Хорошо, я напомню вам об окончании триал-периода в день его завершения."))
	default:
		b.log.Debug("неизвестный callback", "data", data)
	}
}

// dispatch — двухступенчатый конвейер: гейт триала аннотирует событие,
// машина диалога применяет его, результат рендерится в сообщения.
func (b *Bot) dispatch(ctx context.Context, tg users.Telegram, ev flow.Event) {
	expired, err := b.gate.Check(ctx, tg.ID)
	if err != nil {
		b.log.Error("проверка триала не прошла", "user_id", tg.ID, "err", err)
		b.send(tgbotapi.NewMessage(tg.ChatID, "Произошла ошибка. Попробуйте ещё раз позже."))
		return
	}

	out, err := b.machine.Handle(ctx, tg, ev, expired)
	if err != nil {
		b.log.Error("событие не обработано", "user_id", tg.ID, "err", err)
		b.send(tgbotapi.NewMessage(tg.ChatID, "Произошла ошибка. Попробуйте ещё раз позже."))
		return
	}
	b.render(tg.ChatID, out)
}

func (b *Bot) render(chatID int64, out flow.Outcome) {
	switch out.Kind {
	case flow.OutcomeWelcome:
		m := tgbotapi.NewMessage(chatID, welcomeMessage)
		m.ReplyMarkup = startKeyboard()
		b.send(m)

	case flow.OutcomeQuestion:
		b.sendQuestion(chatID, out)

	case flow.OutcomeProposal:
		metrics.RecommendTotal.WithLabelValues("ok").Inc()
		b.sendProposal(chatID, out)

	case flow.OutcomeDetails:
		t := out.Proposal.Tariffs[out.Index]
		features := make([]string, 0, len(t.Features))
		for _, f := range t.Features {
			features = append(features, "✅ "+f)
		}
		text := fmt.Sprintf(
			"🔍 Подробная информация о тарифе «%s»\n\n💰 Стоимость: %.0f руб./мес.\n\n📝 Описание: %s\n\n📋 Включенные функции:\n%s",
			t.Name, t.Price, t.Description, strings.Join(features, "\n"))
		m := tgbotapi.NewMessage(chatID, text)
		m.ReplyMarkup = tariffDetailsKeyboard(out.Index)
		b.send(m)

	case flow.OutcomeCommitted:
		b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf(
			"Вы выбрали тариф «%s»!\n\nСтоимость: %.0f руб./мес.\n\nПо любым вопросам обращайтесь к нашему менеджеру.",
			out.Tariff.Name, out.Tariff.Price)))

	case flow.OutcomeUnresolved:
		metrics.RecommendTotal.WithLabelValues("error").Inc()
		b.send(tgbotapi.NewMessage(chatID,
			"К сожалению, не удалось подобрать тариф на основе ваших ответов. "+
				"Пожалуйста, свяжитесь с менеджером для получения персональной консультации: "+managerContact))

	case flow.OutcomeEscalated:
		b.send(tgbotapi.NewMessage(chatID,
			"Наш менеджер свяжется с вами в ближайшее время!\n\nТакже вы можете напрямую написать нам по адресу: "+managerContact))

	case flow.OutcomeRejected:
		metrics.GuardRejections.Inc()
		switch {
		case out.Question != nil:
			b.sendQuestion(chatID, out)
		case out.Proposal != nil:
			b.sendProposal(chatID, out)
		default:
			b.send(tgbotapi.NewMessage(chatID, "Наберите /start, чтобы начать подбор тарифа."))
		}

	case flow.OutcomeExpired:
		m := tgbotapi.NewMessage(chatID,
			"⚠️ Ваш триал-период закончился!\n\nТеперь доступ к функциям ограничен. "+
				"Для продолжения использования всех возможностей системы, пожалуйста, перейдите на платную версию.")
		m.ReplyMarkup = trialEndedKeyboard()
		b.send(m)
	}
}

func (b *Bot) sendQuestion(chatID int64, out flow.Outcome) {
	m := tgbotapi.NewMessage(chatID, out.Question.Text)
	if out.Question.Type == "options" && len(out.Question.Options) > 0 {
		m.ReplyMarkup = optionsKeyboard(out.Question.Options)
	} else {
		m.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}
	b.send(m)
}

func (b *Bot) sendProposal(chatID int64, out flow.Outcome) {
	p := out.Proposal
	names := make([]string, 0, len(p.Tariffs))
	for _, t := range p.Tariffs {
		names = append(names, t.Name)
	}
	text := fmt.Sprintf("Я рекомендую тариф «%s»!\n\n%s\n\nВыберите один из предложенных вариантов:",
		p.Recommendation, p.Explanation)
	m := tgbotapi.NewMessage(chatID, text)
	m.ReplyMarkup = tariffSelectionKeyboard(names)
	b.send(m)
}
