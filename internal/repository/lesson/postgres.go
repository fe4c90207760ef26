package lesson

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"lessonshop/internal/domain"
)

// invalid_text_representation: a malformed uuid can never match a row
const pgInvalidText = "22P02"

const lessonColumns = `id::text, subject, location, price::text, spaces, icon, version, updated_at`

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger zerolog.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logger.With().Str("repo", "lesson").Logger()}
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Lesson, error) {
	const q = `
SELECT ` + lessonColumns + `
FROM lessons
ORDER BY created_at, id
`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		r.logger.Error().Err(err).Msg("list lessons")
		return nil, err
	}
	defer rows.Close()

	result := []domain.Lesson{}
	for rows.Next() {
		l, err := scanLesson(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *l)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error().Err(err).Msg("list lessons rows")
		return nil, err
	}
	r.logger.Debug().Int("count", len(result)).Msg("listed lessons")
	return result, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Lesson, error) {
	const q = `
SELECT ` + lessonColumns + `
FROM lessons
WHERE id = $1
`
	l, err := scanLesson(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if isMissing(err) {
			r.logger.Debug().Str("lesson_id", id).Msg("lesson not found")
			return nil, domain.ErrNotFound
		}
		r.logger.Error().Err(err).Str("lesson_id", id).Msg("get lesson")
		return nil, err
	}
	return l, nil
}

func (r *postgresRepo) UpdateSpaces(ctx context.Context, id string, spaces int, expectedVersion int64) (*domain.Lesson, error) {
	const q = `
UPDATE lessons
SET spaces = $2,
    version = version + 1,
    updated_at = now()
WHERE id = $1 AND ($3::bigint = 0 OR version = $3::bigint)
RETURNING ` + lessonColumns

	l, err := scanLesson(r.pool.QueryRow(ctx, q, id, spaces, expectedVersion))
	if err == nil {
		r.logger.Info().Str("lesson_id", id).Int("spaces", spaces).Int64("version", l.Version).Msg("lesson spaces updated")
		return l, nil
	}
	if !isMissing(err) {
		r.logger.Error().Err(err).Str("lesson_id", id).Msg("update lesson spaces")
		return nil, err
	}

	// no row updated: either the lesson does not exist or the version moved on
	var current int64
	err = r.pool.QueryRow(ctx, `SELECT version FROM lessons WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if isMissing(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	r.logger.Warn().Str("lesson_id", id).Int64("expected", expectedVersion).Int64("current", current).Msg("lesson version conflict")
	return nil, domain.ErrVersionConflict
}

func (r *postgresRepo) Upsert(ctx context.Context, lesson domain.Lesson) (*domain.Lesson, error) {
	const q = `
INSERT INTO lessons (id, subject, location, price, spaces, icon)
VALUES (COALESCE(NULLIF($1, '')::uuid, gen_random_uuid()), $2, $3, $4::numeric, $5, $6)
ON CONFLICT (subject, location) DO UPDATE SET
    price = EXCLUDED.price,
    spaces = EXCLUDED.spaces,
    icon = EXCLUDED.icon,
    version = lessons.version + 1,
    updated_at = now()
RETURNING ` + lessonColumns

	res, err := scanLesson(r.pool.QueryRow(ctx, q,
		lesson.ID,
		lesson.Subject,
		lesson.Location,
		lesson.Price.String(),
		lesson.Spaces,
		lesson.Icon,
	))
	if err != nil {
		r.logger.Error().Err(err).Str("subject", lesson.Subject).Str("location", lesson.Location).Msg("upsert lesson")
		return nil, err
	}
	if lesson.ID != "" && res.ID != lesson.ID {
		return nil, fmt.Errorf("lesson repo: id mismatch for %s/%s existing_id=%s import_id=%s", lesson.Subject, lesson.Location, res.ID, lesson.ID)
	}
	r.logger.Debug().Str("lesson_id", res.ID).Str("subject", res.Subject).Msg("upserted lesson")
	return res, nil
}

func scanLesson(row pgx.Row) (*domain.Lesson, error) {
	var (
		l     domain.Lesson
		price string
	)
	if err := row.Scan(&l.ID, &l.Subject, &l.Location, &price, &l.Spaces, &l.Icon, &l.Version, &l.UpdatedAt); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("lesson %s price %q: %w", l.ID, price, err)
	}
	l.Price = p
	return &l, nil
}

func isMissing(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgInvalidText
}
