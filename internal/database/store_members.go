package database

import (
	"context"
	"fmt"

	"matrix-board-platform/internal/matrix"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const memberColumns = `id, full_name, ref_id, sponsor_id, is_root,
	balance, wallet, reward_points,
	active, payment_status, payment_ref, payment_order_id, position_locked,
	current_board, paid_bonus_count, cycle_count,
	left_child_b1, right_child_b1, fill_count_b1, earned_b1,
	left_child_b2, right_child_b2, fill_count_b2, earned_b2,
	left_child_b3, right_child_b3, fill_count_b3, earned_b3,
	left_child_b4, right_child_b4, fill_count_b4, earned_b4,
	left_child_b5, right_child_b5, fill_count_b5, earned_b5,
	created_at`

func scanMember(row pgx.Row) (*matrix.Member, error) {
	m := &matrix.Member{}
	dest := []interface{}{
		&m.ID, &m.FullName, &m.RefID, &m.SponsorID, &m.IsRoot,
		&m.Balance, &m.Wallet, &m.RewardPoints,
		&m.Active, &m.PaymentStatus, &m.PaymentRef, &m.PaymentOrderID, &m.PositionLocked,
		&m.CurrentBoard, &m.PaidBonusCount, &m.CycleCount,
	}
	for i := range m.Boards {
		state := &m.Boards[i]
		dest = append(dest, &state.LeftChildID, &state.RightChildID, &state.FillCount, &state.Earned)
	}
	dest = append(dest, &m.CreatedAt)

	if err := row.Scan(dest...); err != nil {
		return nil, mapPgError(err)
	}
	return m, nil
}

// childColumn names the member column backing a board slot. Board levels
// outside 1..5 never reach here; the engine validates them first.
func childColumn(board int, pos matrix.Position) string {
	side := "left"
	if pos == matrix.PositionRight {
		side = "right"
	}
	return fmt.Sprintf("%s_child_b%d", side, board)
}

func (t *storeTx) CreateMember(ctx context.Context, m *matrix.Member) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO members (full_name, ref_id, sponsor_id, is_root, balance, wallet,
			payment_status, payment_order_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`,
		m.FullName, m.RefID, m.SponsorID, m.IsRoot, m.Balance, m.Wallet,
		m.PaymentStatus, m.PaymentOrderID,
	).Scan(&m.ID, &m.CreatedAt)
	return mapPgError(err)
}

func (t *storeTx) MemberByID(ctx context.Context, id int64) (*matrix.Member, error) {
	return scanMember(t.tx.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
}

func (t *storeTx) MemberForUpdate(ctx context.Context, id int64) (*matrix.Member, error) {
	return scanMember(t.tx.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1 FOR UPDATE`, id))
}

func (t *storeTx) MemberByRefID(ctx context.Context, refID string) (*matrix.Member, error) {
	return scanMember(t.tx.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE ref_id = $1`, refID))
}

func (t *storeTx) RootMember(ctx context.Context) (*matrix.Member, error) {
	return scanMember(t.tx.QueryRow(ctx,
		`SELECT `+memberColumns+` FROM members WHERE is_root ORDER BY id LIMIT 1`))
}

// SetChild claims a board slot. The column guard makes the claim atomic:
// if a concurrent transaction filled the slot first, zero rows change and
// the caller gets ErrSlotTaken.
func (t *storeTx) SetChild(ctx context.Context, parentID int64, board int, pos matrix.Position, childID int64) error {
	col := childColumn(board, pos)
	tag, err := t.tx.Exec(ctx,
		`UPDATE members SET `+col+` = $1 WHERE id = $2 AND `+col+` IS NULL`,
		childID, parentID)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return matrix.ErrSlotTaken
	}
	return nil
}

func (t *storeTx) ClearChildren(ctx context.Context, memberID int64, board int) error {
	left := childColumn(board, matrix.PositionLeft)
	right := childColumn(board, matrix.PositionRight)
	_, err := t.tx.Exec(ctx,
		`UPDATE members SET `+left+` = NULL, `+right+` = NULL WHERE id = $1`, memberID)
	return mapPgError(err)
}

func (t *storeTx) SetFillCount(ctx context.Context, memberID int64, board, count int) error {
	_, err := t.tx.Exec(ctx,
		fmt.Sprintf(`UPDATE members SET fill_count_b%d = $1 WHERE id = $2`, board),
		count, memberID)
	return mapPgError(err)
}

func (t *storeTx) IncrementFillCount(ctx context.Context, memberID int64, board int) (int, error) {
	col := fmt.Sprintf("fill_count_b%d", board)
	var count int
	err := t.tx.QueryRow(ctx,
		`UPDATE members SET `+col+` = `+col+` + 1 WHERE id = $1 RETURNING `+col,
		memberID).Scan(&count)
	return count, mapPgError(err)
}

func (t *storeTx) SetPositionLocked(ctx context.Context, memberID int64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE members SET position_locked = TRUE WHERE id = $1`, memberID)
	return mapPgError(err)
}

func (t *storeTx) SetCurrentBoard(ctx context.Context, memberID int64, board int) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE members SET current_board = $1 WHERE id = $2 AND current_board < $1`,
		board, memberID)
	return mapPgError(err)
}

func (t *storeTx) ResetPaidBonuses(ctx context.Context, memberID int64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE members SET paid_bonus_count = 0 WHERE id = $1`, memberID)
	return mapPgError(err)
}

func (t *storeTx) IncrementPaidBonuses(ctx context.Context, memberID int64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE members SET paid_bonus_count = paid_bonus_count + 1 WHERE id = $1`, memberID)
	return mapPgError(err)
}

func (t *storeTx) IncrementCycleCount(ctx context.Context, memberID int64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE members SET cycle_count = cycle_count + 1 WHERE id = $1`, memberID)
	return mapPgError(err)
}

func (t *storeTx) MarkActivated(ctx context.Context, memberID int64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE members SET active = TRUE, payment_status = $1 WHERE id = $2`,
		matrix.PaymentPaid, memberID)
	return mapPgError(err)
}

func (t *storeTx) SetPaymentRef(ctx context.Context, memberID int64, ref string) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE members SET payment_ref = $1 WHERE id = $2`, ref, memberID)
	return mapPgError(err)
}

func (t *storeTx) PaymentRefInUse(ctx context.Context, ref string, excludeMemberID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM members WHERE payment_ref = $1 AND id <> $2)`,
		ref, excludeMemberID).Scan(&exists)
	return exists, mapPgError(err)
}

func (t *storeTx) AdjustFunds(ctx context.Context, memberID int64, balanceDelta, walletDelta decimal.Decimal) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE members SET balance = balance + $1, wallet = wallet + $2 WHERE id = $3`,
		balanceDelta, walletDelta, memberID)
	return mapPgError(err)
}

func (t *storeTx) AddBoardEarnings(ctx context.Context, memberID int64, board int, amount decimal.Decimal) error {
	col := fmt.Sprintf("earned_b%d", board)
	_, err := t.tx.Exec(ctx,
		`UPDATE members SET `+col+` = `+col+` + $1 WHERE id = $2`, amount, memberID)
	return mapPgError(err)
}

func (t *storeTx) CreditRewardPoints(ctx context.Context, memberID int64, amount decimal.Decimal) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE members SET reward_points = reward_points + $1 WHERE id = $2`,
		amount, memberID)
	return mapPgError(err)
}
