package tariffs

// Tariff — тариф из каталога. Базовый набор загружается миграцией,
// тарифы из LLM-предложений доезжают через GetOrCreate при выборе.
type Tariff struct {
	ID          int64
	Name        string
	Description string
	Price       float64
}
