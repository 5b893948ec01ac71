package rewards

import "errors"

var (
	ErrUnknownEventKind  = errors.New("unknown event kind")
	ErrItemNotFound      = errors.New("store item not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInsufficientCoins = errors.New("insufficient coins")
	ErrNegativeBalance   = errors.New("balance cannot go below zero")
	ErrUserNotFound      = errors.New("user balance not found")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInvalidInput      = errors.New("invalid input")
	ErrMissingKey        = errors.New("metadata key required by event kind is missing")

	// ErrAlreadyAwarded is the soft idempotency outcome. Award absorbs it and reports
	// AwardResult.AlreadyAwarded instead of failing.
	ErrAlreadyAwarded = errors.New("reward already granted")

	// ErrTransactionConflict is returned once the bounded retries against concurrent writers are exhausted.
	ErrTransactionConflict = errors.New("transaction conflict, try again")
)
