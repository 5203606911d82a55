package matrix

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func newTestEngine(t *testing.T) (*Engine, *memStore) {
	t.Helper()
	store := newMemStore()
	return NewEngine(store, nil, DefaultConfig()), store
}

func seedRoot(t *testing.T, store *memStore) *Member {
	t.Helper()
	root := &Member{
		FullName:      "Platform Root",
		RefID:         "ROOT000001",
		IsRoot:        true,
		Active:        true,
		PaymentStatus: PaymentPaid,
		CurrentBoard:  1,
	}
	err := store.WithinTx(context.Background(), func(tx Tx) error {
		return tx.CreateMember(context.Background(), root)
	})
	if err != nil {
		t.Fatalf("seed root: %v", err)
	}
	return root
}

func activateMember(t *testing.T, e *Engine, name, sponsorRef string) *Member {
	t.Helper()
	ctx := context.Background()
	m, err := e.RegisterMember(ctx, name, sponsorRef)
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	if err := e.ActivateMember(ctx, m.ID); err != nil {
		t.Fatalf("activate %s: %v", name, err)
	}
	got, err := e.MemberByID(ctx, m.ID)
	if err != nil {
		t.Fatalf("reload %s: %v", name, err)
	}
	return got
}

func seatOf(t *testing.T, store *memStore, memberID int64, board int) *Placement {
	t.Helper()
	var p *Placement
	err := store.WithinTx(context.Background(), func(tx Tx) error {
		var err error
		p, err = tx.PlacementFor(context.Background(), memberID, board)
		return err
	})
	if err != nil {
		t.Fatalf("placement for %d: %v", memberID, err)
	}
	return p
}

func TestPlacementBFSOrder(t *testing.T) {
	e, store := newTestEngine(t)
	root := seedRoot(t, store)

	// Five activations under one sponsor: the first two take the sponsor's
	// direct slots, the rest spill over breadth-first, left before right.
	names := []string{"A", "B", "C", "D", "E"}
	members := make(map[string]*Member)
	for _, name := range names {
		members[name] = activateMember(t, e, name, root.RefID)
	}

	want := []struct {
		name   string
		parent string
		pos    Position
	}{
		{"A", "root", PositionLeft},
		{"B", "root", PositionRight},
		{"C", "A", PositionLeft},
		{"D", "A", PositionRight},
		{"E", "B", PositionLeft},
	}
	for _, w := range want {
		t.Run(w.name, func(t *testing.T) {
			seat := seatOf(t, store, members[w.name].ID, 1)
			if seat == nil {
				t.Fatalf("member %s has no seat", w.name)
			}
			wantParent := root.ID
			if w.parent != "root" {
				wantParent = members[w.parent].ID
			}
			if seat.ParentID != wantParent {
				t.Errorf("parent = %d, want %d (%s)", seat.ParentID, wantParent, w.parent)
			}
			if seat.Pos != w.pos {
				t.Errorf("position = %s, want %s", seat.Pos, w.pos)
			}
		})
	}
}

func TestActivateIdempotent(t *testing.T) {
	e, store := newTestEngine(t)
	root := seedRoot(t, store)
	ctx := context.Background()

	m, err := e.RegisterMember(ctx, "A", root.RefID)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := e.ActivateMember(ctx, m.ID); err != nil {
		t.Fatalf("first activate: %v", err)
	}
	if err := e.ActivateMember(ctx, m.ID); err != nil {
		t.Fatalf("second activate should be a no-op, got: %v", err)
	}

	got, _ := e.MemberByID(ctx, root.ID)
	if got.Board(1).FillCount != 1 {
		t.Errorf("root fill count = %d after repeat activation, want 1", got.Board(1).FillCount)
	}
	if got.Board(1).RightChildID != nil {
		t.Error("repeat activation claimed a second slot")
	}
}

func TestRegisterUnknownSponsorFallsBackToRoot(t *testing.T) {
	e, store := newTestEngine(t)
	root := seedRoot(t, store)
	ctx := context.Background()

	m, err := e.RegisterMember(ctx, "A", "NOSUCHCODE")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if m.SponsorID == nil || *m.SponsorID != root.ID {
		t.Fatalf("sponsor = %v, want root %d", m.SponsorID, root.ID)
	}
}

func TestActivateWithoutRoot(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	m, err := e.RegisterMember(ctx, "orphan", "")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	err = e.ActivateMember(ctx, m.ID)
	if !errors.Is(err, ErrMissingSponsor) {
		t.Fatalf("err = %v, want ErrMissingSponsor", err)
	}
}

func TestSpilloverPrefersRightBeforeDescending(t *testing.T) {
	e, store := newTestEngine(t)
	root := seedRoot(t, store)

	activateMember(t, e, "A", root.RefID)
	b := activateMember(t, e, "B", root.RefID)

	seat := seatOf(t, store, b.ID, 1)
	if seat == nil {
		t.Fatal("B has no seat")
	}
	if seat.ParentID != root.ID || seat.Pos != PositionRight {
		t.Errorf("B seated at parent %d pos %s, want root right", seat.ParentID, seat.Pos)
	}
}

func TestConcurrentActivationsGetDistinctSlots(t *testing.T) {
	e, store := newTestEngine(t)
	root := seedRoot(t, store)
	ctx := context.Background()

	// Five fits under the root without completing its board, so no slot is
	// recycled mid-test.
	const n = 5
	ids := make([]int64, n)
	for i := range ids {
		m, err := e.RegisterMember(ctx, "m", root.RefID)
		if err != nil {
			t.Fatalf("register: %v", err)
		}
		ids[i] = m.ID
	}

	errs := make(chan error, n)
	for _, id := range ids {
		go func(id int64) {
			errs <- e.ActivateMember(ctx, id)
		}(id)
	}
	for i := 0; i < n; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("concurrent activate: %v", err)
		}
	}

	seen := make(map[string]int64)
	for _, id := range ids {
		seat := seatOf(t, store, id, 1)
		if seat == nil {
			t.Fatalf("member %d has no seat", id)
		}
		key := fmt.Sprintf("%d/%s", seat.ParentID, seat.Pos)
		if prev, dup := seen[key]; dup {
			t.Fatalf("members %d and %d share slot %s", prev, id, key)
		}
		seen[key] = id
	}
}
