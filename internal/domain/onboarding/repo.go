package onboarding

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) Append(ctx context.Context, userID int64, questionID int, text string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO onboarding_answers (user_id, question_id, answer)
		VALUES ($1,$2,$3)
	`, userID, questionID, text)
	return err
}

// ListLatest — последние ответы пользователя, по одному на вопрос,
// упорядоченные по question_id.
func (r *Repo) ListLatest(ctx context.Context, userID int64) ([]Answer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT ON (question_id) id, user_id, question_id, answer, answered_at
		FROM onboarding_answers
		WHERE user_id = $1
		ORDER BY question_id, answered_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Answer
	for rows.Next() {
		var a Answer
		if err := rows.Scan(&a.ID, &a.UserID, &a.QuestionID, &a.Text, &a.AnsweredAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
