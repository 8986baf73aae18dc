package tariffs

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

// GetOrCreate возвращает тариф по имени, создавая запись при необходимости.
// Описание и цена существующего тарифа не перетираются.
func (r *Repo) GetOrCreate(ctx context.Context, name, description string, price float64) (*Tariff, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO tariffs (name, description, price)
		VALUES ($1,$2,$3)
		ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, name, description, price
	`, name, description, price)
	var t Tariff
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.Price); err != nil {
		return nil, err
	}
	return &t, nil
}
