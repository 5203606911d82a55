// Package matrix implements the forced-matrix placement and payout engine:
// BFS spillover placement, two-level fill counting with payline bonuses, and
// the board cycle/upgrade state machine across five boards.
package matrix

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"matrix-board-platform/internal/events"
	"matrix-board-platform/internal/logging"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Config holds engine policy knobs. Board economics are fixed constants.
type Config struct {
	PlacementRetry       int             // attempts before surfacing slot contention
	WithdrawalMin        decimal.Decimal // minimum withdrawal amount
	WithdrawalFeePercent decimal.Decimal // fee withheld from requested amount
}

// DefaultConfig returns the production policy defaults.
func DefaultConfig() Config {
	return Config{
		PlacementRetry:       3,
		WithdrawalMin:        dec(10),
		WithdrawalFeePercent: dec(10),
	}
}

// Engine drives all structural and financial mutations of the matrix.
type Engine struct {
	store Store
	bus   *events.EventBus
	cfg   Config
	log   zerolog.Logger
}

// NewEngine creates an engine over the given store. The bus may be nil.
func NewEngine(store Store, bus *events.EventBus, cfg Config) *Engine {
	if cfg.PlacementRetry < 1 {
		cfg.PlacementRetry = 1
	}
	return &Engine{
		store: store,
		bus:   bus,
		cfg:   cfg,
		log:   logging.WithComponent("matrix"),
	}
}

// journal accumulates events during a transaction. Nothing is published
// until the transaction commits.
type journal struct {
	pending []events.Event
}

func (j *journal) add(t events.EventType, data map[string]interface{}) {
	j.pending = append(j.pending, events.Event{Type: t, Data: data})
}

func (e *Engine) flush(j *journal) {
	if e.bus == nil {
		return
	}
	for _, ev := range j.pending {
		e.bus.Publish(ev)
	}
}

// runTx executes fn in one transaction and publishes its events on commit.
func (e *Engine) runTx(ctx context.Context, fn func(tx Tx, j *journal) error) error {
	j := &journal{}
	if err := e.store.WithinTx(ctx, func(tx Tx) error {
		return fn(tx, j)
	}); err != nil {
		return err
	}
	e.flush(j)
	return nil
}

// runPlacementTx is runTx with bounded retries on slot contention. A losing
// transaction re-runs its search against fresh state; exhausted retries
// surface as ErrSlotContention.
func (e *Engine) runPlacementTx(ctx context.Context, fn func(tx Tx, j *journal) error) error {
	var lastErr error
	for attempt := 0; attempt < e.cfg.PlacementRetry; attempt++ {
		j := &journal{}
		err := e.store.WithinTx(ctx, func(tx Tx) error {
			return fn(tx, j)
		})
		if err == nil {
			e.flush(j)
			return nil
		}
		if !errors.Is(err, ErrSlotTaken) {
			return err
		}
		lastErr = err
		e.log.Warn().Int("attempt", attempt+1).Msg("placement lost slot race, retrying")
	}
	return fmt.Errorf("%w: %v", ErrSlotContention, lastErr)
}

// NewRefID generates a member referral code.
func NewRefID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:10])
}

// NewPaymentOrderID generates an external payment order identifier.
func NewPaymentOrderID() string {
	return "PAY-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}

// RegisterMember creates a pending member under the sponsor with the given
// referral code. An unknown or empty code falls back to the platform root.
func (e *Engine) RegisterMember(ctx context.Context, fullName, sponsorRefID string) (*Member, error) {
	var created *Member
	err := e.runTx(ctx, func(tx Tx, j *journal) error {
		var sponsor *Member
		if sponsorRefID != "" {
			s, err := tx.MemberByRefID(ctx, sponsorRefID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			sponsor = s
		}
		if sponsor == nil {
			root, err := tx.RootMember(ctx)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			sponsor = root
		}

		m := &Member{
			FullName:       fullName,
			RefID:          NewRefID(),
			PaymentOrderID: NewPaymentOrderID(),
			PaymentStatus:  PaymentPending,
			CurrentBoard:   1,
		}
		if sponsor != nil {
			id := sponsor.ID
			m.SponsorID = &id
		}
		if err := tx.CreateMember(ctx, m); err != nil {
			return err
		}
		created = m
		j.add(events.EventMemberRegistered, map[string]interface{}{
			"member_id": m.ID,
			"ref_id":    m.RefID,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info().Int64("member_id", created.ID).Str("ref_id", created.RefID).Msg("member registered")
	return created, nil
}

// SubmitPaymentReference records the external payment identifier a member
// claims to have paid with. A reference already used by another member is
// rejected before any state changes.
func (e *Engine) SubmitPaymentReference(ctx context.Context, memberID int64, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("%w: empty payment reference", ErrDuplicateReference)
	}
	return e.runTx(ctx, func(tx Tx, j *journal) error {
		if _, err := tx.MemberForUpdate(ctx, memberID); err != nil {
			return err
		}
		used, err := tx.PaymentRefInUse(ctx, ref, memberID)
		if err != nil {
			return err
		}
		if used {
			return ErrDuplicateReference
		}
		return tx.SetPaymentRef(ctx, memberID, ref)
	})
}

// ActivateMember marks the member paid/active and places them into board 1
// under their sponsor. Idempotent: a member already position-locked (seated
// at least once) is a no-op.
func (e *Engine) ActivateMember(ctx context.Context, memberID int64) error {
	return e.runPlacementTx(ctx, func(tx Tx, j *journal) error {
		m, err := tx.MemberForUpdate(ctx, memberID)
		if err != nil {
			return err
		}
		if m.PositionLocked {
			return nil
		}
		if !m.Active {
			if err := tx.MarkActivated(ctx, m.ID); err != nil {
				return err
			}
			m.Active = true
			j.add(events.EventMemberActivated, map[string]interface{}{
				"member_id": m.ID,
			})
		}
		sponsor, err := e.resolveSponsor(ctx, tx, m)
		if err != nil {
			return err
		}
		if _, err := e.place(ctx, tx, j, m, sponsor, 1, 0); err != nil {
			if errors.Is(err, ErrAlreadyPlaced) {
				return nil
			}
			return err
		}
		return nil
	})
}

// resolveSponsor returns the member's sponsor, falling back to the platform
// root when the sponsor is absent.
func (e *Engine) resolveSponsor(ctx context.Context, tx Tx, m *Member) (*Member, error) {
	if m.SponsorID != nil {
		s, err := tx.MemberByID(ctx, *m.SponsorID)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	root, err := tx.RootMember(ctx)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrMissingSponsor
		}
		return nil, err
	}
	if root.ID == m.ID {
		return nil, ErrMissingSponsor
	}
	return root, nil
}

// MemberByID returns a member snapshot.
func (e *Engine) MemberByID(ctx context.Context, id int64) (*Member, error) {
	var m *Member
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		m, err = tx.MemberByID(ctx, id)
		return err
	})
	return m, err
}

// MemberByRefID returns a member snapshot by referral code.
func (e *Engine) MemberByRefID(ctx context.Context, refID string) (*Member, error) {
	var m *Member
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		m, err = tx.MemberByRefID(ctx, refID)
		return err
	})
	return m, err
}

// MemberLedger returns all ledger entries for a member, newest first.
func (e *Engine) MemberLedger(ctx context.Context, memberID int64) ([]*LedgerEntry, error) {
	var entries []*LedgerEntry
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		entries, err = tx.LedgerFor(ctx, memberID)
		return err
	})
	return entries, err
}

// RevenueSummary returns the platform revenue aggregate.
func (e *Engine) RevenueSummary(ctx context.Context) (*RevenueTotals, error) {
	var totals *RevenueTotals
	err := e.store.WithinTx(ctx, func(tx Tx) error {
		var err error
		totals, err = tx.RevenueTotals(ctx)
		return err
	})
	return totals, err
}
