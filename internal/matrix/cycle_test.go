package matrix

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func wantDecimal(t *testing.T, got decimal.Decimal, want int64, label string) {
	t.Helper()
	if !got.Equal(decimal.NewFromInt(want)) {
		t.Errorf("%s = %s, want %d", label, got, want)
	}
}

// cashSum totals the cash-denominated ledger kinds for a member. Airdrops
// are reward points and move neither balance nor wallet.
func cashSum(entries []*LedgerEntry) decimal.Decimal {
	sum := decimal.Zero
	for _, e := range entries {
		switch e.Kind {
		case LedgerPaylineBonus, LedgerUpgradeFee, LedgerWithdrawal, LedgerOtherDebit:
			sum = sum.Add(e.Amount)
		}
	}
	return sum
}

// TestBoardCycleEndToEnd runs the canonical board-1 story: A under the
// root, then B..G filling A's matrix. A earns four payline bonuses, cycles,
// and re-enters on board 2 under the root.
func TestBoardCycleEndToEnd(t *testing.T) {
	e, store := newTestEngine(t)
	root := seedRoot(t, store)
	ctx := context.Background()

	a := activateMember(t, e, "A", root.RefID)
	for _, name := range []string{"B", "C", "D", "E", "F", "G"} {
		activateMember(t, e, name, a.RefID)
	}

	a, err := e.MemberByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("reload A: %v", err)
	}

	// Four bonuses of 50, minus admin cut 20 and board-2 fee 150.
	wantDecimal(t, a.Balance, 30, "A balance")
	wantDecimal(t, a.Wallet, 30, "A wallet")
	wantDecimal(t, a.RewardPoints, 110, "A reward points")
	wantDecimal(t, a.Board(1).Earned, 200, "A board 1 earnings")

	if a.CurrentBoard != 2 {
		t.Errorf("A current board = %d, want 2", a.CurrentBoard)
	}
	if a.CycleCount != 1 {
		t.Errorf("A cycle count = %d, want 1", a.CycleCount)
	}
	if a.PaidBonusCount != 0 {
		t.Errorf("A paid bonus count = %d, want 0 after reset", a.PaidBonusCount)
	}
	if a.Board(1).FillCount != 0 {
		t.Errorf("A board 1 fill count = %d, want 0 after cycle", a.Board(1).FillCount)
	}
	if a.Board(1).LeftChildID != nil || a.Board(1).RightChildID != nil {
		t.Error("A board 1 children not cleared after cycle")
	}
	if seat := seatOf(t, store, a.ID, 1); seat != nil {
		t.Error("A still holds a board 1 seat after cycling")
	}
	seat := seatOf(t, store, a.ID, 2)
	if seat == nil {
		t.Fatal("A has no board 2 seat")
	}
	if seat.ParentID != root.ID || seat.Pos != PositionLeft {
		t.Errorf("A board 2 seat = parent %d pos %s, want root left", seat.ParentID, seat.Pos)
	}

	// The root's own payline saw B and C (A's children) at totals 2 and 3.
	rootNow, _ := e.MemberByID(ctx, root.ID)
	wantDecimal(t, rootNow.Balance, 50, "root balance")
	if rootNow.Board(2).LeftChildID == nil || *rootNow.Board(2).LeftChildID != a.ID {
		t.Error("root board 2 left child should be A")
	}

	// Revenue: 10% admin cut on A's payline total, plus the board 2 entry fee.
	rev, err := e.RevenueSummary(ctx)
	if err != nil {
		t.Fatalf("revenue: %v", err)
	}
	wantDecimal(t, rev.TotalFees, 170, "total fees")
	wantDecimal(t, rev.BoardFees[0], 20, "board 1 fees")
	wantDecimal(t, rev.BoardFees[1], 150, "board 2 fees")

	// Ledger: four bonuses, one airdrop, one upgrade debit; cash entries
	// reconcile with the wallet.
	entries, err := e.MemberLedger(ctx, a.ID)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	counts := make(map[string]int)
	for _, entry := range entries {
		counts[entry.Kind]++
	}
	if counts[LedgerPaylineBonus] != 4 {
		t.Errorf("payline bonus entries = %d, want 4", counts[LedgerPaylineBonus])
	}
	if counts[LedgerAirdrop] != 1 {
		t.Errorf("airdrop entries = %d, want 1", counts[LedgerAirdrop])
	}
	if counts[LedgerUpgradeFee] != 1 {
		t.Errorf("upgrade entries = %d, want 1", counts[LedgerUpgradeFee])
	}
	if got := cashSum(entries); !got.Equal(a.Wallet) {
		t.Errorf("cash ledger sum = %s, wallet = %s", got, a.Wallet)
	}
}

// TestCycleAbortsOnInsufficientFunds holds most of A's wallet in a pending
// withdrawal, then completes A's board. The cycle settlement cannot cover
// the debit, so the triggering placement must roll back whole.
func TestCycleAbortsOnInsufficientFunds(t *testing.T) {
	e, store := newTestEngine(t)
	root := seedRoot(t, store)
	ctx := context.Background()

	a := activateMember(t, e, "A", root.RefID)
	for _, name := range []string{"B", "C", "D", "E", "F"} {
		activateMember(t, e, name, a.RefID)
	}

	// A has three bonuses banked: balance 150, wallet 150.
	if _, err := e.RequestWithdrawal(ctx, a.ID, decimal.NewFromInt(100), "acct-1"); err != nil {
		t.Fatalf("withdrawal request: %v", err)
	}

	g, err := e.RegisterMember(ctx, "G", a.RefID)
	if err != nil {
		t.Fatalf("register G: %v", err)
	}
	err = e.ActivateMember(ctx, g.ID)
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("activate G: err = %v, want ErrInsufficientBalance", err)
	}

	// Nothing from the failed cascade may stick.
	if seat := seatOf(t, store, g.ID, 1); seat != nil {
		t.Error("G was seated despite the aborted cascade")
	}
	a, _ = e.MemberByID(ctx, a.ID)
	wantDecimal(t, a.Balance, 150, "A balance")
	wantDecimal(t, a.Wallet, 50, "A wallet")
	if a.Board(1).FillCount != 5 {
		t.Errorf("A fill count = %d, want 5", a.Board(1).FillCount)
	}
	if a.CurrentBoard != 1 {
		t.Errorf("A current board = %d, want 1", a.CurrentBoard)
	}
}

func TestReconcileBoardCountCorrectsDrift(t *testing.T) {
	e, store := newTestEngine(t)
	root := seedRoot(t, store)
	ctx := context.Background()

	a := activateMember(t, e, "A", root.RefID)
	activateMember(t, e, "B", a.RefID)

	// Simulate counter drift.
	err := store.WithinTx(ctx, func(tx Tx) error {
		return tx.SetFillCount(ctx, a.ID, 1, 4)
	})
	if err != nil {
		t.Fatalf("corrupt count: %v", err)
	}

	count, err := e.ReconcileBoardCount(ctx, a.ID, 1)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if count != 1 {
		t.Errorf("reconciled count = %d, want 1", count)
	}
	a, _ = e.MemberByID(ctx, a.ID)
	if a.Board(1).FillCount != 1 {
		t.Errorf("stored count = %d, want 1", a.Board(1).FillCount)
	}
}

// TestReconcileAutoUpgradesAtCapacity builds a full matrix by hand, with a
// drifted counter, and checks that the administrative recount both fixes
// the count and performs the pending upgrade.
func TestReconcileAutoUpgradesAtCapacity(t *testing.T) {
	e, store := newTestEngine(t)
	root := seedRoot(t, store)
	ctx := context.Background()

	a := activateMember(t, e, "A", root.RefID)

	err := store.WithinTx(ctx, func(tx Tx) error {
		fill := make([]*Member, 6)
		for i := range fill {
			m := &Member{FullName: "fill", RefID: NewRefID(), Active: true, CurrentBoard: 1}
			if err := tx.CreateMember(ctx, m); err != nil {
				return err
			}
			fill[i] = m
		}
		pairs := []struct {
			parent int64
			pos    Position
			child  *Member
		}{
			{a.ID, PositionLeft, fill[0]},
			{a.ID, PositionRight, fill[1]},
			{fill[0].ID, PositionLeft, fill[2]},
			{fill[0].ID, PositionRight, fill[3]},
			{fill[1].ID, PositionLeft, fill[4]},
			{fill[1].ID, PositionRight, fill[5]},
		}
		for _, p := range pairs {
			if err := tx.SetChild(ctx, p.parent, 1, p.pos, p.child.ID); err != nil {
				return err
			}
		}
		// Funds to cover the board 2 entry fee; counter left stale at 0.
		return tx.AdjustFunds(ctx, a.ID, decimal.NewFromInt(200), decimal.NewFromInt(200))
	})
	if err != nil {
		t.Fatalf("build matrix: %v", err)
	}

	count, err := e.ReconcileBoardCount(ctx, a.ID, 1)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if count != 6 {
		t.Fatalf("reconciled count = %d, want 6", count)
	}

	a, _ = e.MemberByID(ctx, a.ID)
	if a.CurrentBoard != 2 {
		t.Errorf("A current board = %d, want 2", a.CurrentBoard)
	}
	wantDecimal(t, a.Balance, 50, "A balance after upgrade fee")
	if seat := seatOf(t, store, a.ID, 2); seat == nil {
		t.Error("A has no board 2 seat after auto-upgrade")
	}

	rev, _ := e.RevenueSummary(ctx)
	wantDecimal(t, rev.BoardFees[1], 150, "board 2 fees")
}

// TestRootCycleSkipsReplacement fills the root's own board. The root
// settles and advances like anyone else but is never re-seated: it anchors
// every board's tree.
func TestRootCycleSkipsReplacement(t *testing.T) {
	e, store := newTestEngine(t)
	root := seedRoot(t, store)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C", "D", "E", "F"} {
		activateMember(t, e, name, root.RefID)
	}

	rootNow, err := e.MemberByID(ctx, root.ID)
	if err != nil {
		t.Fatalf("reload root: %v", err)
	}
	if rootNow.CurrentBoard != 2 {
		t.Errorf("root current board = %d, want 2", rootNow.CurrentBoard)
	}
	if rootNow.CycleCount != 1 {
		t.Errorf("root cycle count = %d, want 1", rootNow.CycleCount)
	}
	wantDecimal(t, rootNow.Balance, 30, "root balance")
	wantDecimal(t, rootNow.RewardPoints, 110, "root reward points")
	if rootNow.Board(1).LeftChildID != nil || rootNow.Board(1).RightChildID != nil {
		t.Error("root board 1 children not cleared after cycle")
	}
	if seat := seatOf(t, store, root.ID, 2); seat != nil {
		t.Error("root should not hold a seat on board 2")
	}
}
