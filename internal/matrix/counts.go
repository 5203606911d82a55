package matrix

import (
	"context"
	"fmt"

	"matrix-board-platform/internal/events"

	"github.com/shopspring/decimal"
)

// onChildPlaced propagates a fresh placement to the two ancestors it
// affects: the direct parent and, via the parent's own placement record,
// the grandparent whose payline the new member sits on. Counts are never
// propagated further up the chain.
func (e *Engine) onChildPlaced(ctx context.Context, tx Tx, j *journal, placed, parent *Member, board, depth int) error {
	cfg, ok := BoardFor(board)
	if !ok {
		return fmt.Errorf("invalid board level %d", board)
	}

	// Level-1 fill on the parent.
	if _, err := tx.IncrementFillCount(ctx, parent.ID, board); err != nil {
		return err
	}
	if _, err := e.reconcile(ctx, tx, j, parent.ID, board, depth); err != nil {
		return err
	}

	// The parent's own parent on this board holds the payline the new
	// member just filled. The top of a sponsor tree has no such record.
	parentSeat, err := tx.PlacementFor(ctx, parent.ID, board)
	if err != nil {
		return err
	}
	if parentSeat == nil {
		return nil
	}
	grandID := parentSeat.ParentID

	total, err := tx.IncrementFillCount(ctx, grandID, board)
	if err != nil {
		return err
	}

	// Slots 3..6 are the four payline positions; each qualifying increment
	// pays the grandparent one base unit, never retroactively.
	if total >= 3 && total <= BoardCapacity {
		if err := tx.AdjustFunds(ctx, grandID, cfg.Base, cfg.Base); err != nil {
			return err
		}
		if err := tx.AddBoardEarnings(ctx, grandID, board, cfg.Base); err != nil {
			return err
		}
		if err := tx.IncrementPaidBonuses(ctx, grandID); err != nil {
			return err
		}
		if err := tx.AppendLedger(ctx, &LedgerEntry{
			MemberID: grandID,
			Kind:     LedgerPaylineBonus,
			Amount:   cfg.Base,
			Memo:     fmt.Sprintf("Board %d payline bonus from %s", board, placed.RefID),
		}); err != nil {
			return err
		}
		j.add(events.EventPaylineBonus, map[string]interface{}{
			"member_id": grandID,
			"board":     board,
			"amount":    cfg.Base.String(),
		})
	}

	if total >= BoardCapacity {
		return e.handleCycle(ctx, tx, j, grandID, board, depth)
	}
	_, err = e.reconcile(ctx, tx, j, grandID, board, depth)
	return err
}

// paylineTotal is the gross earned over a full payline on a board.
func paylineTotal(cfg BoardConfig) decimal.Decimal {
	return cfg.Base.Mul(decimal.NewFromInt(PaylineSlots))
}
