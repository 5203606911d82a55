package matrix

import (
	"context"

	"matrix-board-platform/internal/events"
)

// place seats member at the first open slot below sponsor on the given
// board: breadth-first, left before right, unbounded depth. On success the
// winning parent's child pointer is set, a placement record is written, the
// member is position-locked, and count propagation runs in the same
// transaction. depth tracks cascade recursion across boards.
func (e *Engine) place(ctx context.Context, tx Tx, j *journal, member, sponsor *Member, board, depth int) (*Member, error) {
	if existing, err := tx.PlacementFor(ctx, member.ID, board); err != nil {
		return nil, err
	} else if existing != nil {
		return nil, ErrAlreadyPlaced
	}

	queue := []int64{sponsor.ID}
	var parent *Member
	var pos Position

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		cand, err := tx.MemberForUpdate(ctx, id)
		if err != nil {
			return nil, err
		}
		state := cand.Board(board)
		if state.LeftChildID == nil {
			parent, pos = cand, PositionLeft
			break
		}
		queue = append(queue, *state.LeftChildID)
		if state.RightChildID == nil {
			parent, pos = cand, PositionRight
			break
		}
		queue = append(queue, *state.RightChildID)
	}

	// Cannot happen on a finite tree where every node has at most two
	// children, but the contract requires no side effects in that case.
	if parent == nil {
		return nil, ErrSlotTaken
	}

	if err := tx.SetChild(ctx, parent.ID, board, pos, member.ID); err != nil {
		return nil, err
	}
	if err := tx.CreatePlacement(ctx, &Placement{
		MemberID: member.ID,
		Board:    board,
		ParentID: parent.ID,
		Pos:      pos,
	}); err != nil {
		return nil, err
	}
	if err := tx.SetPositionLocked(ctx, member.ID); err != nil {
		return nil, err
	}

	j.add(events.EventMemberPlaced, map[string]interface{}{
		"member_id": member.ID,
		"parent_id": parent.ID,
		"board":     board,
		"position":  pos.String(),
	})

	if err := e.onChildPlaced(ctx, tx, j, member, parent, board, depth); err != nil {
		return nil, err
	}
	return parent, nil
}
