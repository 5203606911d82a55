package matrix

import (
	"context"
	"errors"
	"fmt"

	"matrix-board-platform/internal/events"
)

// maxCascadeDepth bounds placement -> cycle -> placement recursion. A single
// event can climb at most one board per hop, so the board count is the cap.
const maxCascadeDepth = MaxBoard

// reconcile recomputes a member's fill count on a board by direct
// inspection of the two children and their children, persists it, and
// auto-upgrades the member when the recount hits capacity on their current
// board. Returns the recomputed count.
func (e *Engine) reconcile(ctx context.Context, tx Tx, j *journal, memberID int64, board, depth int) (int, error) {
	m, err := tx.MemberForUpdate(ctx, memberID)
	if err != nil {
		return 0, err
	}

	state := m.Board(board)
	count := 0
	for _, childID := range []*int64{state.LeftChildID, state.RightChildID} {
		if childID == nil {
			continue
		}
		count++
		child, err := tx.MemberByID(ctx, *childID)
		if err != nil {
			return 0, err
		}
		childState := child.Board(board)
		if childState.LeftChildID != nil {
			count++
		}
		if childState.RightChildID != nil {
			count++
		}
	}

	if count > BoardCapacity {
		e.log.Error().Int64("member_id", memberID).Int("board", board).Int("count", count).
			Msg("recount exceeds board capacity")
		return count, fmt.Errorf("%w: member %d board %d counted %d", ErrCorruptCount, memberID, board, count)
	}
	if err := tx.SetFillCount(ctx, memberID, board, count); err != nil {
		return 0, err
	}

	// Auto-upgrade: a full recount on the member's current board advances
	// them even when reached through structural changes rather than a
	// fresh placement. The seat on this board is left intact here; only
	// the explicit cycle path (handleCycle) resets it.
	if count == BoardCapacity && board < MaxBoard && m.CurrentBoard == board {
		cfg, _ := BoardFor(board)
		fee := cfg.NextFee
		if m.Balance.LessThan(fee) || m.Wallet.LessThan(fee) {
			return count, fmt.Errorf("%w: board %d upgrade needs %s", ErrInsufficientBalance, board+1, fee)
		}
		next := board + 1
		if err := tx.AdjustFunds(ctx, memberID, fee.Neg(), fee.Neg()); err != nil {
			return 0, err
		}
		if err := tx.SetCurrentBoard(ctx, memberID, next); err != nil {
			return 0, err
		}
		if err := tx.ResetPaidBonuses(ctx, memberID); err != nil {
			return 0, err
		}
		if err := tx.CreditRevenueFee(ctx, fee, next); err != nil {
			return 0, err
		}
		if err := tx.AppendLedger(ctx, &LedgerEntry{
			MemberID: memberID,
			Kind:     LedgerUpgradeFee,
			Amount:   fee.Neg(),
			Memo:     fmt.Sprintf("Upgraded to Board %d", next),
		}); err != nil {
			return 0, err
		}
		m.CurrentBoard = next
		j.add(events.EventBoardUpgraded, map[string]interface{}{
			"member_id": memberID,
			"board":     next,
		})
		j.add(events.EventRevenueUpdated, map[string]interface{}{
			"board":  next,
			"amount": fee.String(),
		})

		if !m.IsRoot {
			sponsor, err := e.resolveSponsor(ctx, tx, m)
			if err != nil {
				return 0, err
			}
			if _, err := e.place(ctx, tx, j, m, sponsor, next, depth+1); err != nil && !errors.Is(err, ErrAlreadyPlaced) {
				return 0, err
			}
		}
	}
	return count, nil
}

// handleCycle settles a completed board occupancy: airdrop, admin cut,
// upgrade debit, structural reset, and re-entry on the next board. The
// whole transition shares the triggering placement's transaction; any
// failure leaves the member at count 6 until retried.
func (e *Engine) handleCycle(ctx context.Context, tx Tx, j *journal, memberID int64, board, depth int) error {
	if depth >= maxCascadeDepth {
		return fmt.Errorf("cycle cascade exceeded depth %d at board %d", maxCascadeDepth, board)
	}
	cfg, ok := BoardFor(board)
	if !ok {
		return fmt.Errorf("invalid board level %d", board)
	}
	m, err := tx.MemberForUpdate(ctx, memberID)
	if err != nil {
		return err
	}

	log := e.log.With().Int64("member_id", memberID).Int("board", board).Logger()

	// 1. Reward-point airdrop for completing the board.
	if err := tx.CreditRewardPoints(ctx, memberID, cfg.Airdrop); err != nil {
		return err
	}
	if err := tx.AppendLedger(ctx, &LedgerEntry{
		MemberID: memberID,
		Kind:     LedgerAirdrop,
		Amount:   cfg.Airdrop,
		Memo:     fmt.Sprintf("Reward points for Board %d completion", board),
	}); err != nil {
		return err
	}

	// 2. Admin cut on the payline total.
	adminCut := paylineTotal(cfg).Mul(FeeRate)
	if err := tx.CreditRevenueFee(ctx, adminCut, board); err != nil {
		return err
	}

	// 3. Settle the fee plus the next board's entry, one signed entry.
	deduction := adminCut.Add(cfg.NextFee)
	if m.Balance.LessThan(deduction) || m.Wallet.LessThan(deduction) {
		return fmt.Errorf("%w: cycle settlement on board %d needs %s", ErrInsufficientBalance, board, deduction)
	}
	if err := tx.AdjustFunds(ctx, memberID, deduction.Neg(), deduction.Neg()); err != nil {
		return err
	}
	nextLabel := board
	if cfg.HasNext() {
		nextLabel = board + 1
		if err := tx.CreditRevenueFee(ctx, cfg.NextFee, nextLabel); err != nil {
			return err
		}
	}
	if err := tx.AppendLedger(ctx, &LedgerEntry{
		MemberID: memberID,
		Kind:     LedgerUpgradeFee,
		Amount:   deduction.Neg(),
		Memo:     fmt.Sprintf("Board %d complete, fee + upgrade to Board %d", board, nextLabel),
	}); err != nil {
		return err
	}

	// 4. Reset this occupancy so the member can re-enter the board later.
	if err := tx.SetFillCount(ctx, memberID, board, 0); err != nil {
		return err
	}
	if err := tx.ClearChildren(ctx, memberID, board); err != nil {
		return err
	}
	if err := tx.DeletePlacement(ctx, memberID, board); err != nil {
		return err
	}
	if err := tx.ResetPaidBonuses(ctx, memberID); err != nil {
		return err
	}
	if err := tx.IncrementCycleCount(ctx, memberID); err != nil {
		return err
	}

	j.add(events.EventBoardCycled, map[string]interface{}{
		"member_id":  memberID,
		"board":      board,
		"next_board": nextLabel,
	})
	j.add(events.EventRevenueUpdated, map[string]interface{}{
		"board":  board,
		"amount": deduction.String(),
	})
	log.Info().Str("admin_cut", adminCut.String()).Msg("board cycled")

	// 5. Advance and re-enter under the original sponsor. The platform root
	// anchors every board's tree and is never re-placed.
	if cfg.HasNext() {
		next := board + 1
		if err := tx.SetCurrentBoard(ctx, memberID, next); err != nil {
			return err
		}
		m.CurrentBoard = next
		if !m.IsRoot {
			sponsor, err := e.resolveSponsor(ctx, tx, m)
			if err != nil {
				return err
			}
			if _, err := e.place(ctx, tx, j, m, sponsor, next, depth+1); err != nil && !errors.Is(err, ErrAlreadyPlaced) {
				return err
			}
		}
		j.add(events.EventBoardUpgraded, map[string]interface{}{
			"member_id": memberID,
			"board":     next,
		})
	}
	return nil
}

// ReconcileBoardCount re-derives a member's fill count on a board from the
// live tree and persists it. Exposed for administrative use; auto-upgrade
// applies if the recount itself reaches capacity.
func (e *Engine) ReconcileBoardCount(ctx context.Context, memberID int64, board int) (int, error) {
	if _, ok := BoardFor(board); !ok {
		return 0, fmt.Errorf("invalid board level %d", board)
	}
	var count int
	err := e.runPlacementTx(ctx, func(tx Tx, j *journal) error {
		var err error
		count, err = e.reconcile(ctx, tx, j, memberID, board, 0)
		return err
	})
	return count, err
}
