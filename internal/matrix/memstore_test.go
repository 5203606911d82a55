package matrix

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// memStore is an in-memory Store for engine tests. Transactions are
// serialized by a mutex and rolled back by restoring a snapshot, which
// gives the same atomicity the SQL store provides.
type memStore struct {
	mu sync.Mutex

	nextMemberID     int64
	nextPlacementID  int64
	nextLedgerID     int64
	nextWithdrawalID int64

	members     map[int64]*Member
	refIndex    map[string]int64
	placements  map[int64]*Placement // by placement ID
	ledger      []*LedgerEntry
	revenue     RevenueTotals
	withdrawals map[int64]*WithdrawalRequest
}

func newMemStore() *memStore {
	return &memStore{
		members:     make(map[int64]*Member),
		refIndex:    make(map[string]int64),
		placements:  make(map[int64]*Placement),
		withdrawals: make(map[int64]*WithdrawalRequest),
	}
}

func (s *memStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.clone()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) clone() *memStore {
	c := newMemStore()
	c.nextMemberID = s.nextMemberID
	c.nextPlacementID = s.nextPlacementID
	c.nextLedgerID = s.nextLedgerID
	c.nextWithdrawalID = s.nextWithdrawalID
	for id, m := range s.members {
		cp := *m
		c.members[id] = &cp
	}
	for ref, id := range s.refIndex {
		c.refIndex[ref] = id
	}
	for id, p := range s.placements {
		cp := *p
		c.placements[id] = &cp
	}
	for _, e := range s.ledger {
		cp := *e
		c.ledger = append(c.ledger, &cp)
	}
	c.revenue = s.revenue
	for id, w := range s.withdrawals {
		cp := *w
		c.withdrawals[id] = &cp
	}
	return c
}

func (s *memStore) restore(snap *memStore) {
	s.nextMemberID = snap.nextMemberID
	s.nextPlacementID = snap.nextPlacementID
	s.nextLedgerID = snap.nextLedgerID
	s.nextWithdrawalID = snap.nextWithdrawalID
	s.members = snap.members
	s.refIndex = snap.refIndex
	s.placements = snap.placements
	s.ledger = snap.ledger
	s.revenue = snap.revenue
	s.withdrawals = snap.withdrawals
}

// memTx implements Tx against the locked store.
type memTx struct {
	s *memStore
}

func (t *memTx) member(id int64) (*Member, error) {
	m, ok := t.s.members[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m, nil
}

func (t *memTx) CreateMember(ctx context.Context, m *Member) error {
	if _, dup := t.s.refIndex[m.RefID]; dup {
		return fmt.Errorf("duplicate ref_id %s", m.RefID)
	}
	t.s.nextMemberID++
	m.ID = t.s.nextMemberID
	cp := *m
	t.s.members[m.ID] = &cp
	t.s.refIndex[m.RefID] = m.ID
	return nil
}

func (t *memTx) MemberByID(ctx context.Context, id int64) (*Member, error) {
	m, err := t.member(id)
	if err != nil {
		return nil, err
	}
	cp := *m
	return &cp, nil
}

func (t *memTx) MemberForUpdate(ctx context.Context, id int64) (*Member, error) {
	return t.MemberByID(ctx, id)
}

func (t *memTx) MemberByRefID(ctx context.Context, refID string) (*Member, error) {
	id, ok := t.s.refIndex[refID]
	if !ok {
		return nil, ErrNotFound
	}
	return t.MemberByID(ctx, id)
}

func (t *memTx) RootMember(ctx context.Context) (*Member, error) {
	var root *Member
	for _, m := range t.s.members {
		if m.IsRoot && (root == nil || m.ID < root.ID) {
			root = m
		}
	}
	if root == nil {
		return nil, ErrNotFound
	}
	cp := *root
	return &cp, nil
}

func (t *memTx) SetChild(ctx context.Context, parentID int64, board int, pos Position, childID int64) error {
	p, err := t.member(parentID)
	if err != nil {
		return err
	}
	state := p.Board(board)
	slot := &state.LeftChildID
	if pos == PositionRight {
		slot = &state.RightChildID
	}
	if *slot != nil {
		return ErrSlotTaken
	}
	id := childID
	*slot = &id
	return nil
}

func (t *memTx) ClearChildren(ctx context.Context, memberID int64, board int) error {
	m, err := t.member(memberID)
	if err != nil {
		return err
	}
	state := m.Board(board)
	state.LeftChildID = nil
	state.RightChildID = nil
	return nil
}

func (t *memTx) SetFillCount(ctx context.Context, memberID int64, board, count int) error {
	m, err := t.member(memberID)
	if err != nil {
		return err
	}
	m.Board(board).FillCount = count
	return nil
}

func (t *memTx) IncrementFillCount(ctx context.Context, memberID int64, board int) (int, error) {
	m, err := t.member(memberID)
	if err != nil {
		return 0, err
	}
	m.Board(board).FillCount++
	return m.Board(board).FillCount, nil
}

func (t *memTx) SetPositionLocked(ctx context.Context, memberID int64) error {
	m, err := t.member(memberID)
	if err != nil {
		return err
	}
	m.PositionLocked = true
	return nil
}

func (t *memTx) SetCurrentBoard(ctx context.Context, memberID int64, board int) error {
	m, err := t.member(memberID)
	if err != nil {
		return err
	}
	if board > m.CurrentBoard {
		m.CurrentBoard = board
	}
	return nil
}

func (t *memTx) ResetPaidBonuses(ctx context.Context, memberID int64) error {
	m, err := t.member(memberID)
	if err != nil {
		return err
	}
	m.PaidBonusCount = 0
	return nil
}

func (t *memTx) IncrementPaidBonuses(ctx context.Context, memberID int64) error {
	m, err := t.member(memberID)
	if err != nil {
		return err
	}
	m.PaidBonusCount++
	return nil
}

func (t *memTx) IncrementCycleCount(ctx context.Context, memberID int64) error {
	m, err := t.member(memberID)
	if err != nil {
		return err
	}
	m.CycleCount++
	return nil
}

func (t *memTx) MarkActivated(ctx context.Context, memberID int64) error {
	m, err := t.member(memberID)
	if err != nil {
		return err
	}
	m.Active = true
	m.PaymentStatus = PaymentPaid
	return nil
}

func (t *memTx) SetPaymentRef(ctx context.Context, memberID int64, ref string) error {
	m, err := t.member(memberID)
	if err != nil {
		return err
	}
	m.PaymentRef = &ref
	return nil
}

func (t *memTx) PaymentRefInUse(ctx context.Context, ref string, excludeMemberID int64) (bool, error) {
	for _, m := range t.s.members {
		if m.ID != excludeMemberID && m.PaymentRef != nil && *m.PaymentRef == ref {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) AdjustFunds(ctx context.Context, memberID int64, balanceDelta, walletDelta decimal.Decimal) error {
	m, err := t.member(memberID)
	if err != nil {
		return err
	}
	m.Balance = m.Balance.Add(balanceDelta)
	m.Wallet = m.Wallet.Add(walletDelta)
	return nil
}

func (t *memTx) AddBoardEarnings(ctx context.Context, memberID int64, board int, amount decimal.Decimal) error {
	m, err := t.member(memberID)
	if err != nil {
		return err
	}
	state := m.Board(board)
	state.Earned = state.Earned.Add(amount)
	return nil
}

func (t *memTx) CreditRewardPoints(ctx context.Context, memberID int64, amount decimal.Decimal) error {
	m, err := t.member(memberID)
	if err != nil {
		return err
	}
	m.RewardPoints = m.RewardPoints.Add(amount)
	return nil
}

func (t *memTx) CreatePlacement(ctx context.Context, p *Placement) error {
	for _, existing := range t.s.placements {
		if existing.MemberID == p.MemberID && existing.Board == p.Board {
			return ErrAlreadyPlaced
		}
	}
	t.s.nextPlacementID++
	p.ID = t.s.nextPlacementID
	cp := *p
	t.s.placements[p.ID] = &cp
	return nil
}

func (t *memTx) PlacementFor(ctx context.Context, memberID int64, board int) (*Placement, error) {
	for _, p := range t.s.placements {
		if p.MemberID == memberID && p.Board == board {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *memTx) DeletePlacement(ctx context.Context, memberID int64, board int) error {
	for id, p := range t.s.placements {
		if p.MemberID == memberID && p.Board == board {
			delete(t.s.placements, id)
			return nil
		}
	}
	return nil
}

func (t *memTx) AppendLedger(ctx context.Context, e *LedgerEntry) error {
	t.s.nextLedgerID++
	e.ID = t.s.nextLedgerID
	cp := *e
	t.s.ledger = append(t.s.ledger, &cp)
	return nil
}

func (t *memTx) LedgerFor(ctx context.Context, memberID int64) ([]*LedgerEntry, error) {
	var out []*LedgerEntry
	for i := len(t.s.ledger) - 1; i >= 0; i-- {
		if t.s.ledger[i].MemberID == memberID {
			cp := *t.s.ledger[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *memTx) CreditRevenueFee(ctx context.Context, amount decimal.Decimal, board int) error {
	t.s.revenue.TotalFees = t.s.revenue.TotalFees.Add(amount)
	t.s.revenue.BoardFees[board-1] = t.s.revenue.BoardFees[board-1].Add(amount)
	return nil
}

func (t *memTx) CreditRevenueWithdrawals(ctx context.Context, amount decimal.Decimal) error {
	t.s.revenue.TotalWithdrawals = t.s.revenue.TotalWithdrawals.Add(amount)
	return nil
}

func (t *memTx) RevenueTotals(ctx context.Context) (*RevenueTotals, error) {
	cp := t.s.revenue
	return &cp, nil
}

func (t *memTx) CreateWithdrawal(ctx context.Context, w *WithdrawalRequest) error {
	t.s.nextWithdrawalID++
	w.ID = t.s.nextWithdrawalID
	cp := *w
	t.s.withdrawals[w.ID] = &cp
	return nil
}

func (t *memTx) WithdrawalByID(ctx context.Context, id int64) (*WithdrawalRequest, error) {
	w, ok := t.s.withdrawals[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (t *memTx) WithdrawalsFor(ctx context.Context, memberID int64) ([]*WithdrawalRequest, error) {
	var out []*WithdrawalRequest
	for id := t.s.nextWithdrawalID; id >= 1; id-- {
		if w, ok := t.s.withdrawals[id]; ok && w.MemberID == memberID {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (t *memTx) HasPendingWithdrawal(ctx context.Context, memberID int64) (bool, error) {
	for _, w := range t.s.withdrawals {
		if w.MemberID == memberID && w.Status == WithdrawalPending {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) SetWithdrawalStatus(ctx context.Context, id int64, status string) error {
	w, ok := t.s.withdrawals[id]
	if !ok {
		return ErrNotFound
	}
	w.Status = status
	return nil
}
