// Package dexerr defines the stable error identifiers surfaced by the exchange.
package dexerr

import (
	"errors"

	errorsmod "cosmossdk.io/errors"
)

// Codespace groups every exchange error under one identifier namespace.
const Codespace = "exchange"

var (
	ErrInvalidPool           = errorsmod.Register(Codespace, 1, "invalid pool")
	ErrTokenNotInPool        = errorsmod.Register(Codespace, 2, "token not in pool")
	ErrInsufficientLiquidity = errorsmod.Register(Codespace, 3, "insufficient liquidity")
	ErrSlippageExceeded      = errorsmod.Register(Codespace, 4, "slippage exceeded")
	ErrInvariantViolated     = errorsmod.Register(Codespace, 5, "invariant violated")
	ErrArithmeticOverflow    = errorsmod.Register(Codespace, 6, "arithmetic overflow")
	ErrDivisionByZero        = errorsmod.Register(Codespace, 7, "division by zero")
	ErrFrozen                = errorsmod.Register(Codespace, 8, "token or pool frozen")
	ErrInsufficientBalance   = errorsmod.Register(Codespace, 9, "insufficient balance")

	ErrInvalidAmount        = errorsmod.Register(Codespace, 10, "invalid amount")
	ErrInvalidFee           = errorsmod.Register(Codespace, 11, "invalid fee")
	ErrInvalidAmp           = errorsmod.Register(Codespace, 12, "invalid amplification factor")
	ErrRampLocked           = errorsmod.Register(Codespace, 13, "amplification ramp locked")
	ErrInsufficientRampTime = errorsmod.Register(Codespace, 14, "insufficient ramp time")
	ErrAmpChangeTooLarge    = errorsmod.Register(Codespace, 15, "amplification change too large")
	ErrInsufficientShares   = errorsmod.Register(Codespace, 16, "insufficient shares")
	ErrNotRegistered        = errorsmod.Register(Codespace, 17, "account not registered")
	ErrMinReserve           = errorsmod.Register(Codespace, 18, "reserve below minimum")
	ErrInvalidDecimals      = errorsmod.Register(Codespace, 19, "invalid token decimals")
	ErrTokenCount           = errorsmod.Register(Codespace, 20, "invalid token count")
	ErrDuplicateTokens      = errorsmod.Register(Codespace, 21, "duplicate tokens")
	ErrUnauthorized         = errorsmod.Register(Codespace, 22, "unauthorized")
	ErrInvalidAction        = errorsmod.Register(Codespace, 23, "invalid action")
	ErrSameToken            = errorsmod.Register(Codespace, 24, "token in equals token out")
	ErrNonZeroShares        = errorsmod.Register(Codespace, 25, "non-zero share balance")
	ErrPaused               = errorsmod.Register(Codespace, 26, "exchange paused")
	ErrUnknownTransfer      = errorsmod.Register(Codespace, 27, "unknown pending transfer")
)

// Code returns the registered code of err, or 0 when err is nil or foreign.
func Code(err error) uint32 {
	var registered *errorsmod.Error
	if !errors.As(err, &registered) || registered.Codespace() != Codespace {
		return 0
	}
	return registered.ABCICode()
}
