package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"go-pharmacy-catalog/internal/model"
)

const uniqueViolation = "23505"

func storeError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, model.ErrStore, err)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
