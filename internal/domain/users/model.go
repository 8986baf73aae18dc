package users

import "time"

// User — запись о пользователе бота. TrialEndAt выставляется один раз
// при регистрации и дальше не меняется; IsActive гасится свипером или
// гейтом после окончания триала, если тариф так и не выбран.
type User struct {
	UserID       int64
	ChatID       int64
	Username     string
	FirstName    string
	LastName     string
	RegisteredAt time.Time
	TrialEndAt   time.Time
	IsActive     bool
	TariffID     *int64
}

type Telegram struct {
	ID        int64
	ChatID    int64
	Username  string
	FirstName string
	LastName  string
}

// TariffCount — строка статистики «тариф → количество пользователей».
type TariffCount struct {
	Name  string
	Count int64
}

type Stats struct {
	ActiveCount    int64
	ConversionRate float64
	PopularTariffs []TariffCount
}
