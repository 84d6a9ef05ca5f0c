package domain

import "errors"

var (
	// ErrInvalidConstruction reports a market built with a missing
	// collaborator, a bad outcome count, or a fee fraction outside range.
	ErrInvalidConstruction = errors.New("invalid market construction")

	// ErrUnauthorized reports a creator-only operation invoked by a
	// non-creator account.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTransferFailure reports an asset ledger call that refused the
	// requested transfer, approval, or balance movement.
	ErrTransferFailure = errors.New("asset transfer failed")

	// ErrNonPositiveAmount reports a trade whose computed cost or profit
	// came out to zero, or a zero token count.
	ErrNonPositiveAmount = errors.New("non-positive amount")

	// ErrSlippageExceeded reports a trade whose cost exceeded the caller's
	// limit or whose profit fell short of it.
	ErrSlippageExceeded = errors.New("slippage limit exceeded")

	// ErrArithmeticOverflow reports a signed/unsigned conversion or an
	// accumulation that would wrap instead of widening cleanly.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrInvalidOutcome reports an outcome index outside the market's
	// outcome range.
	ErrInvalidOutcome = errors.New("invalid outcome index")

	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)
