package matrix

import "github.com/shopspring/decimal"

// MaxBoard is the highest board level. Board numbers run 1..MaxBoard.
const MaxBoard = 5

// BoardCapacity is the number of slots in a member's personal matrix:
// two direct children plus four grandchildren on the payline.
const BoardCapacity = 6

// PaylineSlots is the number of second-level slots that earn bonuses.
const PaylineSlots = 4

// FeeRate is the admin cut taken from the payline total on every cycle.
var FeeRate = decimal.NewFromFloat(0.10)

// BoardConfig holds the fixed economics of one board level.
type BoardConfig struct {
	Level   int
	Name    string
	Base    decimal.Decimal // payline bonus per filled slot, also the entry unit
	Payout  decimal.Decimal // full-cycle gross payout (Base * 4)
	NextFee decimal.Decimal // entry fee for the next board; zero on the top board
	Airdrop decimal.Decimal // reward-point airdrop on completion
}

// HasNext reports whether a higher board exists above this one.
func (b BoardConfig) HasNext() bool {
	return b.Level < MaxBoard
}

var boardConfigs = map[int]BoardConfig{
	1: {Level: 1, Name: "Starter", Base: dec(50), Payout: dec(200), NextFee: dec(150), Airdrop: dec(110)},
	2: {Level: 2, Name: "Basic", Base: dec(150), Payout: dec(600), NextFee: dec(400), Airdrop: dec(300)},
	3: {Level: 3, Name: "Bronze", Base: dec(400), Payout: dec(1600), NextFee: dec(1100), Airdrop: dec(800)},
	4: {Level: 4, Name: "Silver", Base: dec(1100), Payout: dec(4400), NextFee: dec(3400), Airdrop: dec(2200)},
	5: {Level: 5, Name: "Gold", Base: dec(3400), Payout: dec(13600), NextFee: decimal.Zero, Airdrop: dec(6800)},
}

// BoardFor returns the configuration for a board level.
// The second return value is false for levels outside 1..MaxBoard.
func BoardFor(level int) (BoardConfig, bool) {
	cfg, ok := boardConfigs[level]
	return cfg, ok
}

func dec(n int64) decimal.Decimal {
	return decimal.NewFromInt(n)
}
