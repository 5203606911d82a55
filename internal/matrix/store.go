package matrix

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store runs engine work inside one atomic, isolated transaction. The whole
// placement -> count -> cycle cascade commits or rolls back as a unit.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the record-store contract the engine reads and mutates through.
// Implementations must serialize concurrent transactions touching the same
// rows: MemberForUpdate takes a row lock, and SetChild/CreatePlacement must
// fail with ErrSlotTaken when a concurrent transaction won the slot.
type Tx interface {
	// Members
	CreateMember(ctx context.Context, m *Member) error
	MemberByID(ctx context.Context, id int64) (*Member, error)
	MemberForUpdate(ctx context.Context, id int64) (*Member, error)
	MemberByRefID(ctx context.Context, refID string) (*Member, error)
	RootMember(ctx context.Context) (*Member, error)

	// Structural mutations
	SetChild(ctx context.Context, parentID int64, board int, pos Position, childID int64) error
	ClearChildren(ctx context.Context, memberID int64, board int) error
	SetFillCount(ctx context.Context, memberID int64, board, count int) error
	IncrementFillCount(ctx context.Context, memberID int64, board int) (int, error)
	SetPositionLocked(ctx context.Context, memberID int64) error
	SetCurrentBoard(ctx context.Context, memberID int64, board int) error
	ResetPaidBonuses(ctx context.Context, memberID int64) error
	IncrementPaidBonuses(ctx context.Context, memberID int64) error
	IncrementCycleCount(ctx context.Context, memberID int64) error

	// Activation / payment reference
	MarkActivated(ctx context.Context, memberID int64) error
	SetPaymentRef(ctx context.Context, memberID int64, ref string) error
	PaymentRefInUse(ctx context.Context, ref string, excludeMemberID int64) (bool, error)

	// Funds. Deltas are signed; balance and wallet move independently.
	AdjustFunds(ctx context.Context, memberID int64, balanceDelta, walletDelta decimal.Decimal) error
	AddBoardEarnings(ctx context.Context, memberID int64, board int, amount decimal.Decimal) error
	CreditRewardPoints(ctx context.Context, memberID int64, amount decimal.Decimal) error

	// Placements
	CreatePlacement(ctx context.Context, p *Placement) error
	PlacementFor(ctx context.Context, memberID int64, board int) (*Placement, error)
	DeletePlacement(ctx context.Context, memberID int64, board int) error

	// Ledger (append-only)
	AppendLedger(ctx context.Context, e *LedgerEntry) error
	LedgerFor(ctx context.Context, memberID int64) ([]*LedgerEntry, error)

	// Revenue aggregate (relative deltas only)
	CreditRevenueFee(ctx context.Context, amount decimal.Decimal, board int) error
	CreditRevenueWithdrawals(ctx context.Context, amount decimal.Decimal) error
	RevenueTotals(ctx context.Context) (*RevenueTotals, error)

	// Withdrawals
	CreateWithdrawal(ctx context.Context, w *WithdrawalRequest) error
	WithdrawalByID(ctx context.Context, id int64) (*WithdrawalRequest, error)
	WithdrawalsFor(ctx context.Context, memberID int64) ([]*WithdrawalRequest, error)
	HasPendingWithdrawal(ctx context.Context, memberID int64) (bool, error)
	SetWithdrawalStatus(ctx context.Context, id int64, status string) error
}
