package users

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

const userColumns = `user_id, chat_id, username, first_name, last_name, registered_at, trial_end_at, is_active, tariff_id`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.UserID, &u.ChatID, &u.Username, &u.FirstName, &u.LastName,
		&u.RegisteredAt, &u.TrialEndAt, &u.IsActive, &u.TariffID); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repo) Get(ctx context.Context, userID int64) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+userColumns+` FROM users WHERE user_id = $1
	`, userID)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return u, err
}

// Upsert регистрирует пользователя или обновляет профиль существующего.
// registered_at и trial_end_at пишутся только при INSERT: повторный
// /start не сдвигает окно триала.
func (r *Repo) Upsert(ctx context.Context, tg Telegram, trialEnd time.Time) (*User, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (user_id, chat_id, username, first_name, last_name, trial_end_at)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (user_id)
		DO UPDATE SET
			chat_id    = EXCLUDED.chat_id,
			username   = EXCLUDED.username,
			first_name = EXCLUDED.first_name,
			last_name  = EXCLUDED.last_name
		RETURNING `+userColumns+`
	`, tg.ID, tg.ChatID, tg.Username, tg.FirstName, tg.LastName, trialEnd)
	return scanUser(row)
}

func (r *Repo) SetActive(ctx context.Context, userID int64, active bool) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $2 WHERE user_id = $1`, userID, active)
	return err
}

func (r *Repo) SetTariff(ctx context.Context, userID int64, tariffID int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET tariff_id = $2 WHERE user_id = $1`, userID, tariffID)
	return err
}

// ListEndingInDays — активные пользователи, у которых триал кончается
// ровно через days дней (по календарной дате).
func (r *Repo) ListEndingInDays(ctx context.Context, days int) ([]*User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE is_active AND trial_end_at::date = current_date + $1::int
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

// ListExpiredActive — активные пользователи с истёкшим триалом и без тарифа.
func (r *Repo) ListExpiredActive(ctx context.Context) ([]*User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+userColumns+` FROM users
		WHERE is_active AND tariff_id IS NULL AND trial_end_at < now()
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func (r *Repo) ListAll(ctx context.Context) ([]*User, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY registered_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectUsers(rows)
}

func collectUsers(rows pgx.Rows) ([]*User, error) {
	var out []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// AdminStats — сводка для админ-панели: активные пользователи,
// конверсия в тариф и популярность тарифов.
func (r *Repo) AdminStats(ctx context.Context) (*Stats, error) {
	var s Stats
	row := r.pool.QueryRow(ctx, `
		SELECT
			count(*) FILTER (WHERE is_active),
			CASE WHEN count(*) = 0 THEN 0
			     ELSE count(*) FILTER (WHERE tariff_id IS NOT NULL) * 100.0 / count(*)
			END
		FROM users
	`)
	if err := row.Scan(&s.ActiveCount, &s.ConversionRate); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT t.name, count(*) AS user_count
		FROM users u
		JOIN tariffs t ON u.tariff_id = t.id
		GROUP BY t.id, t.name
		ORDER BY user_count DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var tc TariffCount
		if err := rows.Scan(&tc.Name, &tc.Count); err != nil {
			return nil, err
		}
		s.PopularTariffs = append(s.PopularTariffs, tc)
	}
	return &s, rows.Err()
}
