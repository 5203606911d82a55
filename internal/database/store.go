package database

import (
	"context"
	"errors"
	"fmt"

	"matrix-board-platform/internal/matrix"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Store implements matrix.Store on a pgx connection pool. Every engine
// operation runs inside one transaction; row locks on members plus the
// placement slot constraints serialize concurrent placements.
type Store struct {
	db *DB
}

// NewStore creates the engine store over a database connection.
func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// WithinTx runs fn in a single transaction, committing on success.
func (s *Store) WithinTx(ctx context.Context, fn func(tx matrix.Tx) error) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&storeTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgError(err)
	}
	return nil
}

// storeTx implements matrix.Tx over one pgx transaction.
type storeTx struct {
	tx pgx.Tx
}

// mapPgError translates driver errors into engine error kinds. Losing a
// slot race shows up as a unique violation on the placements constraints or
// as a serialization/deadlock failure; both are retryable.
func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return matrix.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			switch pgErr.ConstraintName {
			case "placements_member_board_key":
				return matrix.ErrAlreadyPlaced
			case "members_payment_ref_key":
				return matrix.ErrDuplicateReference
			}
			return matrix.ErrSlotTaken
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return matrix.ErrSlotTaken
		}
	}
	return err
}
