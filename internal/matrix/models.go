package matrix

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position identifies a child slot under a parent on a board.
type Position int

const (
	PositionLeft  Position = 1
	PositionRight Position = 2
)

func (p Position) String() string {
	if p == PositionLeft {
		return "left"
	}
	return "right"
}

// PaymentStatus values for a member's activation payment.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
)

// Ledger entry kinds.
const (
	LedgerAirdrop      = "AIRDROP"
	LedgerPaylineBonus = "PAYLINE_BONUS"
	LedgerUpgradeFee   = "UPGRADE_FEE"
	LedgerWithdrawal   = "WITHDRAWAL"
	LedgerOtherDebit   = "OTHER_DEBIT"
)

// Withdrawal request statuses.
const (
	WithdrawalPending   = "pending"
	WithdrawalPaid      = "paid"
	WithdrawalCancelled = "cancelled"
)

// BoardState is one member's structural state on one board.
type BoardState struct {
	LeftChildID  *int64
	RightChildID *int64
	FillCount    int             // 0..6, children plus grandchildren
	Earned       decimal.Decimal // gross payline earnings on this board
}

// Member is a participant in the forced matrix.
type Member struct {
	ID             int64
	FullName       string
	RefID          string // referral code, unique
	SponsorID      *int64 // nil only for the platform root
	IsRoot         bool
	Balance        decimal.Decimal // withdrawable cash
	Wallet         decimal.Decimal // gross earnings, netted by fees and holds
	RewardPoints   decimal.Decimal // airdrop point balance
	Active         bool
	PaymentStatus  string
	PaymentRef     *string // external payment identifier, unique when set
	PaymentOrderID string
	PositionLocked bool
	CurrentBoard   int // 1..5, never decreases
	PaidBonusCount int // payline bonuses paid this cycle occupancy, 0..4
	CycleCount     int // lifetime completed cycles
	Boards         [MaxBoard]BoardState
	CreatedAt      time.Time
}

// Board returns the member's state on the given board level (1-based).
func (m *Member) Board(level int) *BoardState {
	return &m.Boards[level-1]
}

// Placement records where a member is seated on a board while occupied.
type Placement struct {
	ID        int64
	MemberID  int64
	Board     int
	ParentID  int64
	Pos       Position
	CreatedAt time.Time
}

// LedgerEntry is an immutable transaction log record.
type LedgerEntry struct {
	ID        int64
	MemberID  int64
	Kind      string
	Amount    decimal.Decimal // signed
	Memo      string
	CreatedAt time.Time
}

// RevenueTotals is the singleton platform revenue aggregate.
type RevenueTotals struct {
	TotalFees        decimal.Decimal
	BoardFees        [MaxBoard]decimal.Decimal
	TotalWithdrawals decimal.Decimal
	UpdatedAt        time.Time
}

// WithdrawalRequest is a member's pending or settled payout request.
type WithdrawalRequest struct {
	ID          int64
	MemberID    int64
	Amount      decimal.Decimal
	Fee         decimal.Decimal
	NetAmount   decimal.Decimal
	Destination string
	Status      string
	CreatedAt   time.Time
}

// BoardTree is the display snapshot of one member's 2x2 matrix.
type BoardTree struct {
	Board  int     `json:"board"`
	Name   string  `json:"name"`
	Root   *Member `json:"root"`
	Left   *Member `json:"left"`
	Right  *Member `json:"right"`
	LL     *Member `json:"ll"`
	LR     *Member `json:"lr"`
	RL     *Member `json:"rl"`
	RR     *Member `json:"rr"`
	Filled int     `json:"filled"`
	Target int     `json:"target"`
}
