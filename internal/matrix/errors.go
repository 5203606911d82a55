package matrix

import "errors"

var (
	// ErrAlreadyPlaced means the member already holds a placement on the
	// board. Duplicate placement attempts are a no-op, not a failure.
	ErrAlreadyPlaced = errors.New("member already placed on this board")

	// ErrSlotTaken is returned by the store when a concurrent placement won
	// the slot first. The engine retries its search against fresh state.
	ErrSlotTaken = errors.New("slot already taken")

	// ErrSlotContention means placement retries were exhausted. Transient.
	ErrSlotContention = errors.New("placement contention, retry")

	// ErrInsufficientBalance blocks an upgrade or withdrawal.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrMissingSponsor means neither a sponsor nor the platform root could
	// be resolved for re-placement.
	ErrMissingSponsor = errors.New("no sponsor or platform root available")

	// ErrCorruptCount means a recount found more than six occupied slots.
	// Surfaced for manual reconciliation, never silently clamped.
	ErrCorruptCount = errors.New("board recount exceeds capacity")

	// ErrDuplicateReference means an external payment identifier was
	// already used by another member.
	ErrDuplicateReference = errors.New("payment reference already used")

	// ErrNotFound is returned for missing members, placements or requests.
	ErrNotFound = errors.New("record not found")

	// ErrPendingWithdrawal blocks a second withdrawal while one is open.
	ErrPendingWithdrawal = errors.New("a pending withdrawal already exists")

	// ErrInvalidAmount rejects a withdrawal below the minimum or above the
	// member's wallet.
	ErrInvalidAmount = errors.New("invalid withdrawal amount")

	// ErrNotActive means the member has not been activated yet.
	ErrNotActive = errors.New("member is not active")
)
