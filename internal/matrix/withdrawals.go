package matrix

import (
	"context"
	"fmt"

	"matrix-board-platform/internal/events"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// RequestWithdrawal opens a payout request against the member's wallet. The
// requested amount is held in the wallet until settlement; the withdrawable
// balance is untouched until the request is approved. One pending request
// per member.
func (e *Engine) RequestWithdrawal(ctx context.Context, memberID int64, amount decimal.Decimal, destination string) (*WithdrawalRequest, error) {
	if destination == "" {
		return nil, fmt.Errorf("%w: missing destination", ErrInvalidAmount)
	}

	var req *WithdrawalRequest
	err := e.runTx(ctx, func(tx Tx, j *journal) error {
		m, err := tx.MemberForUpdate(ctx, memberID)
		if err != nil {
			return err
		}
		if !m.Active {
			return ErrNotActive
		}
		pending, err := tx.HasPendingWithdrawal(ctx, memberID)
		if err != nil {
			return err
		}
		if pending {
			return ErrPendingWithdrawal
		}
		if amount.LessThan(e.cfg.WithdrawalMin) || amount.GreaterThan(m.Wallet) {
			return ErrInvalidAmount
		}

		fee := amount.Mul(e.cfg.WithdrawalFeePercent).Div(hundred)
		req = &WithdrawalRequest{
			MemberID:    memberID,
			Amount:      amount,
			Fee:         fee,
			NetAmount:   amount.Sub(fee),
			Destination: destination,
			Status:      WithdrawalPending,
		}
		if err := tx.CreateWithdrawal(ctx, req); err != nil {
			return err
		}
		// Hold the funds so a second request cannot spend them.
		if err := tx.AdjustFunds(ctx, memberID, decimal.Zero, amount.Neg()); err != nil {
			return err
		}
		j.add(events.EventWithdrawalRequested, map[string]interface{}{
			"request_id": req.ID,
			"member_id":  memberID,
			"amount":     amount.String(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info().Int64("member_id", memberID).Str("amount", amount.String()).Msg("withdrawal requested")
	return req, nil
}

// SettleWithdrawal finalizes a pending request. Approval debits the balance
// (the wallet hold was taken at request time), writes the withdrawal ledger
// entry and credits the processed total; cancellation releases the hold and
// writes nothing to the ledger.
func (e *Engine) SettleWithdrawal(ctx context.Context, requestID int64, approve bool) error {
	return e.runTx(ctx, func(tx Tx, j *journal) error {
		w, err := tx.WithdrawalByID(ctx, requestID)
		if err != nil {
			return err
		}
		if w.Status != WithdrawalPending {
			return fmt.Errorf("withdrawal %d already settled as %s", w.ID, w.Status)
		}
		m, err := tx.MemberForUpdate(ctx, w.MemberID)
		if err != nil {
			return err
		}

		status := WithdrawalCancelled
		if approve {
			if m.Balance.LessThan(w.Amount) {
				return fmt.Errorf("%w: approving withdrawal %d", ErrInsufficientBalance, w.ID)
			}
			if err := tx.AdjustFunds(ctx, w.MemberID, w.Amount.Neg(), decimal.Zero); err != nil {
				return err
			}
			if err := tx.AppendLedger(ctx, &LedgerEntry{
				MemberID: w.MemberID,
				Kind:     LedgerWithdrawal,
				Amount:   w.Amount.Neg(),
				Memo:     "Withdrawal paid to " + w.Destination,
			}); err != nil {
				return err
			}
			if err := tx.CreditRevenueWithdrawals(ctx, w.Amount); err != nil {
				return err
			}
			j.add(events.EventRevenueUpdated, map[string]interface{}{
				"amount": w.Amount.String(),
			})
			status = WithdrawalPaid
		} else {
			// Release the wallet hold taken at request time.
			if err := tx.AdjustFunds(ctx, w.MemberID, decimal.Zero, w.Amount); err != nil {
				return err
			}
		}
		if err := tx.SetWithdrawalStatus(ctx, w.ID, status); err != nil {
			return err
		}
		j.add(events.EventWithdrawalSettled, map[string]interface{}{
			"request_id": w.ID,
			"member_id":  w.MemberID,
			"status":     status,
		})
		return nil
	})
}

// MemberWithdrawals lists a member's withdrawal requests, newest first.
func (e *Engine) MemberWithdrawals(ctx context.Context, memberID int64) ([]*WithdrawalRequest, error) {
	var reqs []*WithdrawalRequest
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		reqs, err = tx.WithdrawalsFor(ctx, memberID)
		return err
	})
	return reqs, err
}
