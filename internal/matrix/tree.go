package matrix

import "context"

// GetBoardTree returns the display snapshot of a member's 2x2 matrix on a
// board: the member, their two children and the four payline slots.
func (e *Engine) GetBoardTree(ctx context.Context, memberID int64, board int) (*BoardTree, error) {
	cfg, ok := BoardFor(board)
	if !ok {
		return nil, ErrNotFound
	}

	var tree *BoardTree
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		root, err := tx.MemberByID(ctx, memberID)
		if err != nil {
			return err
		}

		tree = &BoardTree{
			Board:  board,
			Name:   cfg.Name,
			Root:   root,
			Filled: root.Board(board).FillCount,
			Target: BoardCapacity,
		}

		state := root.Board(board)
		if state.LeftChildID != nil {
			left, err := tx.MemberByID(ctx, *state.LeftChildID)
			if err != nil {
				return err
			}
			tree.Left = left
			if err := fillGrandchildren(ctx, tx, left, board, &tree.LL, &tree.LR); err != nil {
				return err
			}
		}
		if state.RightChildID != nil {
			right, err := tx.MemberByID(ctx, *state.RightChildID)
			if err != nil {
				return err
			}
			tree.Right = right
			if err := fillGrandchildren(ctx, tx, right, board, &tree.RL, &tree.RR); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tree, nil
}

func fillGrandchildren(ctx context.Context, tx Tx, child *Member, board int, left, right **Member) error {
	state := child.Board(board)
	if state.LeftChildID != nil {
		m, err := tx.MemberByID(ctx, *state.LeftChildID)
		if err != nil {
			return err
		}
		*left = m
	}
	if state.RightChildID != nil {
		m, err := tx.MemberByID(ctx, *state.RightChildID)
		if err != nil {
			return err
		}
		*right = m
	}
	return nil
}
