package matrix

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestRegisterMemberGeneratesIdentifiers(t *testing.T) {
	e, store := newTestEngine(t)
	root := seedRoot(t, store)
	ctx := context.Background()

	m, err := e.RegisterMember(ctx, "Jane Doe", root.RefID)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(m.RefID) != 10 || m.RefID != strings.ToUpper(m.RefID) {
		t.Errorf("ref id %q, want 10 uppercase characters", m.RefID)
	}
	if !strings.HasPrefix(m.PaymentOrderID, "PAY-") {
		t.Errorf("payment order id %q, want PAY- prefix", m.PaymentOrderID)
	}
	if m.PaymentStatus != PaymentPending {
		t.Errorf("payment status = %q, want pending", m.PaymentStatus)
	}
	if m.Active {
		t.Error("member active before payment confirmation")
	}

	byRef, err := e.MemberByRefID(ctx, m.RefID)
	if err != nil {
		t.Fatalf("lookup by ref: %v", err)
	}
	if byRef.ID != m.ID {
		t.Errorf("lookup by ref returned member %d, want %d", byRef.ID, m.ID)
	}
}

func TestSubmitPaymentReference(t *testing.T) {
	e, store := newTestEngine(t)
	root := seedRoot(t, store)
	ctx := context.Background()

	a, _ := e.RegisterMember(ctx, "A", root.RefID)
	b, _ := e.RegisterMember(ctx, "B", root.RefID)

	if err := e.SubmitPaymentReference(ctx, a.ID, "TXN-1001"); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	// Resubmitting one's own reference is fine.
	if err := e.SubmitPaymentReference(ctx, a.ID, "TXN-1001"); err != nil {
		t.Fatalf("resubmission: %v", err)
	}
	// Another member claiming the same reference is not.
	err := e.SubmitPaymentReference(ctx, b.ID, "TXN-1001")
	if !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("err = %v, want ErrDuplicateReference", err)
	}
	if err := e.SubmitPaymentReference(ctx, b.ID, "  "); !errors.Is(err, ErrDuplicateReference) {
		t.Fatalf("blank reference: err = %v, want ErrDuplicateReference", err)
	}
}

func TestEngineConfigDefaultsApplied(t *testing.T) {
	e := NewEngine(newMemStore(), nil, Config{})
	if e.cfg.PlacementRetry != 1 {
		t.Errorf("placement retry = %d, want clamped to 1", e.cfg.PlacementRetry)
	}
}
