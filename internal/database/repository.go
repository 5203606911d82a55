package database

import (
	"context"
	"fmt"

	"matrix-board-platform/internal/matrix"
)

// Repository serves read paths that do not need the engine's transactional
// store: health checks and administrative listings.
type Repository struct {
	db *DB
}

// NewRepository creates a read repository over the connection pool.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck verifies database connectivity.
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// MemberSummary is a listing row for administrative views.
type MemberSummary struct {
	ID           int64  `json:"id"`
	FullName     string `json:"full_name"`
	RefID        string `json:"ref_id"`
	Active       bool   `json:"active"`
	CurrentBoard int    `json:"current_board"`
	CycleCount   int    `json:"cycle_count"`
	Balance      string `json:"balance"`
	Wallet       string `json:"wallet"`
	RewardPoints string `json:"reward_points"`
}

// ListMembers returns a page of members, newest first.
func (r *Repository) ListMembers(ctx context.Context, limit, offset int) ([]MemberSummary, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, full_name, ref_id, active, current_board, cycle_count,
			balance::text, wallet::text, reward_points::text
		FROM members ORDER BY id DESC LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []MemberSummary
	for rows.Next() {
		var m MemberSummary
		if err := rows.Scan(&m.ID, &m.FullName, &m.RefID, &m.Active, &m.CurrentBoard,
			&m.CycleCount, &m.Balance, &m.Wallet, &m.RewardPoints); err != nil {
			return nil, fmt.Errorf("scan member summary: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// PendingWithdrawals returns all unsettled withdrawal requests, oldest first.
func (r *Repository) PendingWithdrawals(ctx context.Context) ([]*matrix.WithdrawalRequest, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, member_id, amount, fee, net_amount, destination, status, created_at
		FROM withdrawal_requests WHERE status = $1 ORDER BY id`,
		matrix.WithdrawalPending)
	if err != nil {
		return nil, fmt.Errorf("list pending withdrawals: %w", err)
	}
	defer rows.Close()

	var reqs []*matrix.WithdrawalRequest
	for rows.Next() {
		w := &matrix.WithdrawalRequest{}
		if err := rows.Scan(&w.ID, &w.MemberID, &w.Amount, &w.Fee, &w.NetAmount,
			&w.Destination, &w.Status, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan withdrawal: %w", err)
		}
		reqs = append(reqs, w)
	}
	return reqs, rows.Err()
}

// BoardOccupancy counts seated members per board for the admin dashboard.
func (r *Repository) BoardOccupancy(ctx context.Context) (map[int]int, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT board, COUNT(*) FROM placements GROUP BY board`)
	if err != nil {
		return nil, fmt.Errorf("board occupancy: %w", err)
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var board, n int
		if err := rows.Scan(&board, &n); err != nil {
			return nil, fmt.Errorf("scan occupancy: %w", err)
		}
		counts[board] = n
	}
	return counts, rows.Err()
}
