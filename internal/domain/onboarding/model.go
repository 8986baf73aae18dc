package onboarding

import "time"

// Answer — ответ пользователя на вопрос онбординга. Таблица append-only:
// повторный ответ добавляет новую строку, читатели берут последнюю
// по каждому question_id.
type Answer struct {
	ID         int64
	UserID     int64
	QuestionID int
	Text       string
	AnsweredAt time.Time
}
