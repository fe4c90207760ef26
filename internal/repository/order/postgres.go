package order

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"lessonshop/internal/domain"
)

const (
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger zerolog.Logger) Repository {
	return &postgresRepo{pool: pool, logger: logger.With().Str("repo", "order").Logger()}
}

// Create stores the order and its lines in one transaction. A line naming an
// unknown lesson fails the whole order with domain.ErrNotFound.
func (r *postgresRepo) Create(ctx context.Context, in CreateOrderInput) (*domain.Order, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order := domain.Order{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Address:   in.Address,
		City:      in.City,
		Method:    in.Method,
		Phone:     in.Phone,
		Gift:      in.Gift,
	}
	err = tx.QueryRow(ctx, `
INSERT INTO orders (first_name, last_name, address, city, method, phone, gift, request_id)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id::text, created_at
`, in.FirstName, in.LastName, in.Address, in.City, in.Method, in.Phone, in.Gift, in.RequestID).Scan(&order.ID, &order.CreatedAt)
	if err != nil {
		r.logger.Error().Err(err).Msg("insert order")
		return nil, err
	}

	batch := &pgx.Batch{}
	for i, line := range in.Lines {
		batch.Queue(`
INSERT INTO order_lines (order_id, lesson_id, position, quantity)
VALUES ($1, $2, $3, $4)
`, order.ID, line.LessonID, i, line.Quantity)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isCode(err, pgForeignKeyViolation) || isCode(err, pgInvalidText) {
			r.logger.Warn().Err(err).Str("order_id", order.ID).Msg("order references unknown lesson")
			return nil, domain.ErrNotFound
		}
		r.logger.Error().Err(err).Str("order_id", order.ID).Msg("insert order lines")
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	order.Lines = append([]domain.OrderLine(nil), in.Lines...)
	r.logger.Info().Str("order_id", order.ID).Int("lines", len(order.Lines)).Str("request_id", in.RequestID).Msg("order created")
	return &order, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	var order domain.Order
	err := r.pool.QueryRow(ctx, `
SELECT id::text, first_name, last_name, address, city, method, phone, gift, created_at
FROM orders
WHERE id = $1
`, id).Scan(&order.ID, &order.FirstName, &order.LastName, &order.Address, &order.City, &order.Method, &order.Phone, &order.Gift, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isCode(err, pgInvalidText) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
SELECT lesson_id::text, quantity
FROM order_lines
WHERE order_id = $1
ORDER BY position
`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	order.Lines = []domain.OrderLine{}
	for rows.Next() {
		var line domain.OrderLine
		if err := rows.Scan(&line.LessonID, &line.Quantity); err != nil {
			return nil, err
		}
		order.Lines = append(order.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &order, nil
}

func isCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
