package tokenmeta

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// permanentError marks a contract read that another attempt cannot fix, such
// as an undecodable return value.
type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

func isPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// withRetry runs one ERC20 read against token, retrying RPC failures up to
// maxRetries times with a doubling delay. Permanent errors and a cancelled
// context end it at once.
func withRetry(ctx context.Context, logger *zap.Logger, method string, token common.Address, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if isPermanent(err) {
			return fmt.Errorf("%s of %s: %w", method, token.Hex(), err)
		}
		if attempt >= maxRetries {
			return fmt.Errorf("%s of %s after %d attempts: %w", method, token.Hex(), attempt+1, err)
		}
		logger.Debug("erc20 read failed, retrying",
			zap.String("method", method),
			zap.String("token", token.Hex()),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}
