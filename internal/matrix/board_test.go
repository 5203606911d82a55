package matrix

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestBoardEconomics(t *testing.T) {
	tests := []struct {
		level   int
		name    string
		base    int64
		payout  int64
		nextFee int64
		airdrop int64
	}{
		{1, "Starter", 50, 200, 150, 110},
		{2, "Basic", 150, 600, 400, 300},
		{3, "Bronze", 400, 1600, 1100, 800},
		{4, "Silver", 1100, 4400, 3400, 2200},
		{5, "Gold", 3400, 13600, 0, 6800},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, ok := BoardFor(tt.level)
			if !ok {
				t.Fatalf("BoardFor(%d) not found", tt.level)
			}
			if cfg.Name != tt.name {
				t.Errorf("name = %q, want %q", cfg.Name, tt.name)
			}
			wantDecimal(t, cfg.Base, tt.base, "base")
			wantDecimal(t, cfg.Payout, tt.payout, "payout")
			wantDecimal(t, cfg.NextFee, tt.nextFee, "next fee")
			wantDecimal(t, cfg.Airdrop, tt.airdrop, "airdrop")

			// The full-cycle payout is always four payline bonuses.
			if !cfg.Payout.Equal(paylineTotal(cfg)) {
				t.Errorf("payout %s != base x %d", cfg.Payout, PaylineSlots)
			}
			if got := cfg.HasNext(); got != (tt.level < MaxBoard) {
				t.Errorf("HasNext = %v", got)
			}
		})
	}

	if _, ok := BoardFor(0); ok {
		t.Error("BoardFor(0) should not resolve")
	}
	if _, ok := BoardFor(MaxBoard + 1); ok {
		t.Error("BoardFor above MaxBoard should not resolve")
	}

	// Admin cut on a full board 1 payline is exactly 20.
	cfg, _ := BoardFor(1)
	cut := paylineTotal(cfg).Mul(FeeRate)
	if !cut.Equal(decimal.NewFromInt(20)) {
		t.Errorf("board 1 admin cut = %s, want 20", cut)
	}
}
