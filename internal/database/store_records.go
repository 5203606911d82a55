package database

import (
	"context"
	"errors"
	"fmt"

	"matrix-board-platform/internal/matrix"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

func (t *storeTx) CreatePlacement(ctx context.Context, p *matrix.Placement) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO placements (member_id, board, parent_id, position)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		p.MemberID, p.Board, p.ParentID, p.Pos,
	).Scan(&p.ID, &p.CreatedAt)
	return mapPgError(err)
}

// PlacementFor returns nil, nil when the member holds no seat on the board.
func (t *storeTx) PlacementFor(ctx context.Context, memberID int64, board int) (*matrix.Placement, error) {
	p := &matrix.Placement{}
	err := t.tx.QueryRow(ctx, `
		SELECT id, member_id, board, parent_id, position, created_at
		FROM placements WHERE member_id = $1 AND board = $2`,
		memberID, board,
	).Scan(&p.ID, &p.MemberID, &p.Board, &p.ParentID, &p.Pos, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapPgError(err)
	}
	return p, nil
}

func (t *storeTx) DeletePlacement(ctx context.Context, memberID int64, board int) error {
	_, err := t.tx.Exec(ctx,
		`DELETE FROM placements WHERE member_id = $1 AND board = $2`, memberID, board)
	return mapPgError(err)
}

func (t *storeTx) AppendLedger(ctx context.Context, e *matrix.LedgerEntry) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO ledger_entries (member_id, kind, amount, memo)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.MemberID, e.Kind, e.Amount, e.Memo,
	).Scan(&e.ID, &e.CreatedAt)
	return mapPgError(err)
}

func (t *storeTx) LedgerFor(ctx context.Context, memberID int64) ([]*matrix.LedgerEntry, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, member_id, kind, amount, memo, created_at
		FROM ledger_entries WHERE member_id = $1 ORDER BY id DESC`,
		memberID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var entries []*matrix.LedgerEntry
	for rows.Next() {
		e := &matrix.LedgerEntry{}
		if err := rows.Scan(&e.ID, &e.MemberID, &e.Kind, &e.Amount, &e.Memo, &e.CreatedAt); err != nil {
			return nil, mapPgError(err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ensureRevenueRow seeds the singleton aggregate row on first touch.
func (t *storeTx) ensureRevenueRow(ctx context.Context) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO revenue_totals (id) VALUES (1) ON CONFLICT (id) DO NOTHING`)
	return mapPgError(err)
}

func (t *storeTx) CreditRevenueFee(ctx context.Context, amount decimal.Decimal, board int) error {
	if err := t.ensureRevenueRow(ctx); err != nil {
		return err
	}
	col := fmt.Sprintf("b%d_fees", board)
	_, err := t.tx.Exec(ctx,
		`UPDATE revenue_totals SET total_fees = total_fees + $1, `+col+` = `+col+` + $1,
			updated_at = NOW() WHERE id = 1`,
		amount)
	return mapPgError(err)
}

func (t *storeTx) CreditRevenueWithdrawals(ctx context.Context, amount decimal.Decimal) error {
	if err := t.ensureRevenueRow(ctx); err != nil {
		return err
	}
	_, err := t.tx.Exec(ctx,
		`UPDATE revenue_totals SET total_withdrawals = total_withdrawals + $1,
			updated_at = NOW() WHERE id = 1`,
		amount)
	return mapPgError(err)
}

func (t *storeTx) RevenueTotals(ctx context.Context) (*matrix.RevenueTotals, error) {
	if err := t.ensureRevenueRow(ctx); err != nil {
		return nil, err
	}
	r := &matrix.RevenueTotals{}
	err := t.tx.QueryRow(ctx, `
		SELECT total_fees, b1_fees, b2_fees, b3_fees, b4_fees, b5_fees,
			total_withdrawals, updated_at
		FROM revenue_totals WHERE id = 1`,
	).Scan(&r.TotalFees, &r.BoardFees[0], &r.BoardFees[1], &r.BoardFees[2],
		&r.BoardFees[3], &r.BoardFees[4], &r.TotalWithdrawals, &r.UpdatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return r, nil
}

func (t *storeTx) CreateWithdrawal(ctx context.Context, w *matrix.WithdrawalRequest) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO withdrawal_requests (member_id, amount, fee, net_amount, destination, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		w.MemberID, w.Amount, w.Fee, w.NetAmount, w.Destination, w.Status,
	).Scan(&w.ID, &w.CreatedAt)
	return mapPgError(err)
}

func (t *storeTx) WithdrawalByID(ctx context.Context, id int64) (*matrix.WithdrawalRequest, error) {
	w := &matrix.WithdrawalRequest{}
	err := t.tx.QueryRow(ctx, `
		SELECT id, member_id, amount, fee, net_amount, destination, status, created_at
		FROM withdrawal_requests WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&w.ID, &w.MemberID, &w.Amount, &w.Fee, &w.NetAmount, &w.Destination, &w.Status, &w.CreatedAt)
	if err != nil {
		return nil, mapPgError(err)
	}
	return w, nil
}

func (t *storeTx) WithdrawalsFor(ctx context.Context, memberID int64) ([]*matrix.WithdrawalRequest, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, member_id, amount, fee, net_amount, destination, status, created_at
		FROM withdrawal_requests WHERE member_id = $1 ORDER BY id DESC`,
		memberID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	var reqs []*matrix.WithdrawalRequest
	for rows.Next() {
		w := &matrix.WithdrawalRequest{}
		if err := rows.Scan(&w.ID, &w.MemberID, &w.Amount, &w.Fee, &w.NetAmount,
			&w.Destination, &w.Status, &w.CreatedAt); err != nil {
			return nil, mapPgError(err)
		}
		reqs = append(reqs, w)
	}
	return reqs, rows.Err()
}

func (t *storeTx) HasPendingWithdrawal(ctx context.Context, memberID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM withdrawal_requests WHERE member_id = $1 AND status = $2)`,
		memberID, matrix.WithdrawalPending).Scan(&exists)
	return exists, mapPgError(err)
}

func (t *storeTx) SetWithdrawalStatus(ctx context.Context, id int64, status string) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE withdrawal_requests SET status = $1 WHERE id = $2`, status, id)
	return mapPgError(err)
}
