package dialog

type State string

const (
	StateIdle State = "idle"

	// Онбординг
	StateAwaitStart State = "await_start"
	StateQuestion   State = "question" // номер вопроса лежит в payload["q"]

	// Подбор тарифа
	StateTariffSelect  State = "tariff_select"
	StateTariffDetails State = "tariff_details"
)

type Payload map[string]any

type Item struct {
	ChatID  int64
	State   State
	Payload Payload
}

// GetInt читает целое из payload. После JSON-раунда числа приходят
// как float64, поэтому принимаем оба представления.
func GetInt(p Payload, key string) (int, bool) {
	v, ok := p[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
