package bot

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xuri/excelize/v2"
)

func (b *Bot) isAdmin(userID int64) bool {
	return userID == b.adminChat
}

// handleAdminStats — /admin: сводка по пользователям и конверсии.
func (b *Bot) handleAdminStats(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "У вас нет доступа к админ-панели."))
		return
	}

	stats, err := b.users.AdminStats(ctx)
	if err != nil {
		b.log.Error("статистика не загрузилась", "err", err)
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "Ошибка загрузки статистики."))
		return
	}

	var tariffLines strings.Builder
	if len(stats.PopularTariffs) == 0 {
		tariffLines.WriteString("Нет данных о выбранных тарифах.")
	} else {
		for _, t := range stats.PopularTariffs {
			fmt.Fprintf(&tariffLines, "- %s: %d пользователей\n", t.Name, t.Count)
		}
	}

	b.send(tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf(
		"📊 Статистика бота «Нейропродажник»\n\n👥 Активных пользователей: %d\n💰 Конверсия в оплату: %.2f%%\n\n📈 Популярные тарифы:\n%s",
		stats.ActiveCount, stats.ConversionRate, tariffLines.String())))
}

// handleBroadcast — /broadcast <текст>: рассылка всем пользователям,
// сбой отправки одному не останавливает остальных.
func (b *Bot) handleBroadcast(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "У вас нет доступа к этой команде."))
		return
	}

	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" {
		b.send(tgbotapi.NewMessage(msg.Chat.ID,
			"Пожалуйста, укажите текст рассылки после команды.\n\nПример: /broadcast Важное сообщение для всех пользователей!"))
		return
	}

	list, err := b.users.ListAll(ctx)
	if err != nil {
		b.log.Error("список пользователей не загрузился", "err", err)
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "Ошибка загрузки пользователей."))
		return
	}

	var sent, failed int
	for _, u := range list {
		if _, err := b.api.Send(tgbotapi.NewMessage(u.ChatID, text)); err != nil {
			failed++
			b.log.Error("рассылка не дошла", "user_id", u.UserID, "err", err)
			continue
		}
		sent++
	}
	b.send(tgbotapi.NewMessage(msg.Chat.ID,
		fmt.Sprintf("Рассылка завершена: доставлено %d, не доставлено %d.", sent, failed)))
}

// handleExportUsers — /export: выгрузка пользователей в Excel.
func (b *Bot) handleExportUsers(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.From.ID) {
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "У вас нет доступа к этой команде."))
		return
	}

	list, err := b.users.ListAll(ctx)
	if err != nil {
		b.log.Error("список пользователей не загрузился", "err", err)
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "Ошибка загрузки пользователей."))
		return
	}
	if len(list) == 0 {
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "Пользователей пока нет."))
		return
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := []interface{}{
		"user_id", "username", "Имя", "Дата регистрации", "Окончание триала", "Активен", "tariff_id",
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "Ошибка формирования файла (заголовок)"))
		return
	}

	row := 2
	for _, u := range list {
		active := "нет"
		if u.IsActive {
			active = "да"
		}
		var tariff interface{} = ""
		if u.TariffID != nil {
			tariff = *u.TariffID
		}
		excelRow := []interface{}{
			u.UserID,
			u.Username,
			strings.TrimSpace(u.FirstName + " " + u.LastName),
			u.RegisteredAt.Format("2006-01-02 15:04"),
			u.TrialEndAt.Format("2006-01-02 15:04"),
			active,
			tariff,
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			b.send(tgbotapi.NewMessage(msg.Chat.ID, "Ошибка формирования файла (ячейки)"))
			return
		}
		if err := f.SetSheetRow(sheet, cell, &excelRow); err != nil {
			b.send(tgbotapi.NewMessage(msg.Chat.ID, "Ошибка формирования файла (строки)"))
			return
		}
		row++
	}

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		b.send(tgbotapi.NewMessage(msg.Chat.ID, "Ошибка записи файла"))
		return
	}

	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("users_%s.xlsx", time.Now().Format("20060102_150405")),
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("Выгрузка пользователей: %d строк.", len(list))
	b.send(doc)
}
