package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/bloodlink/internal/domain"
)

const (
	uniqueViolation = "23505"

	// ids are UUID columns, so a malformed id fails to parse instead of missing
	invalidTextRepresentation = "22P02"
)

func isMalformedID(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == invalidTextRepresentation
}

// mapWriteError turns unique violations into domain.ErrConflict
func mapWriteError(err error, what string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return fmt.Errorf("%s already exists: %w", what, domain.ErrConflict)
	}
	return fmt.Errorf("failed to write %s: %w", what, err)
}

// mapReadError turns sql.ErrNoRows and unparseable ids into domain.ErrNotFound
func mapReadError(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) || isMalformedID(err) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// mapExecError is mapReadError for statements that address a row by id
func mapExecError(err error, what, action string) error {
	if isMalformedID(err) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// withTx runs fn in a transaction and commits only when fn returns nil
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}
