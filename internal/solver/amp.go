package solver

import (
	"math/bits"

	"swapCore/internal/dexerr"
)

const (
	MinAmp uint64 = 1
	MaxAmp uint64 = 1_000_000
	// MaxAmpChange bounds a single ramp to a factor of ten in either direction.
	MaxAmpChange uint64 = 10
	// MinRampDuration is in seconds.
	MinRampDuration uint64 = 86_400
)

// AmpState is a linearly ramping amplification coefficient. Timestamps are
// unix seconds.
type AmpState struct {
	Initial     uint64 `json:"initial"`
	Target      uint64 `json:"target"`
	RampStartTS uint64 `json:"ramp_start_ts"`
	RampStopTS  uint64 `json:"ramp_stop_ts"`
}

// NewAmpState pins the coefficient at amp.
func NewAmpState(amp uint64) (AmpState, error) {
	if amp < MinAmp || amp > MaxAmp {
		return AmpState{}, dexerr.ErrInvalidAmp.Wrapf("amp %d outside [%d, %d]", amp, MinAmp, MaxAmp)
	}
	return AmpState{Initial: amp, Target: amp}, nil
}

// Validate checks that both ends of the ramp are in range and the ramp window
// is ordered.
func (a AmpState) Validate() error {
	for _, v := range []uint64{a.Initial, a.Target} {
		if v < MinAmp || v > MaxAmp {
			return dexerr.ErrInvalidAmp.Wrapf("amp %d outside [%d, %d]", v, MinAmp, MaxAmp)
		}
	}
	if a.RampStartTS > a.RampStopTS {
		return dexerr.ErrInvalidAmp.Wrapf("ramp starts at %d after it stops at %d", a.RampStartTS, a.RampStopTS)
	}
	return nil
}

// Factor interpolates the coefficient at now. It returns Initial before the
// ramp starts and Target once it has stopped.
func (a AmpState) Factor(now uint64) (uint64, error) {
	if now >= a.RampStopTS {
		return a.Target, nil
	}
	if now < a.RampStartTS {
		return a.Initial, nil
	}
	span := a.RampStopTS - a.RampStartTS
	elapsed := now - a.RampStartTS
	if a.Target >= a.Initial {
		return a.Initial + scale(a.Target-a.Initial, elapsed, span), nil
	}
	return a.Initial - scale(a.Initial-a.Target, elapsed, span), nil
}

// scale returns delta*elapsed/span with elapsed < span.
func scale(delta, elapsed, span uint64) uint64 {
	hi, lo := bits.Mul64(delta, elapsed)
	q, _ := bits.Div64(hi, lo, span)
	return q
}

// Ramp starts a new ramp from the current coefficient towards target,
// finishing at stopTS.
func (a AmpState) Ramp(target, stopTS, now uint64) (AmpState, error) {
	if now < a.RampStartTS+MinRampDuration {
		return a, dexerr.ErrRampLocked.Wrapf("last ramp started at %d", a.RampStartTS)
	}
	if stopTS < now+MinRampDuration {
		return a, dexerr.ErrInsufficientRampTime.Wrapf("stop %d is less than %ds away", stopTS, MinRampDuration)
	}
	if target < MinAmp || target > MaxAmp {
		return a, dexerr.ErrInvalidAmp.Wrapf("target %d outside [%d, %d]", target, MinAmp, MaxAmp)
	}
	current, err := a.Factor(now)
	if err != nil {
		return a, err
	}
	grows := target >= current && target <= current*MaxAmpChange
	shrinks := target < current && target*MaxAmpChange >= current
	if !grows && !shrinks {
		return a, dexerr.ErrAmpChangeTooLarge.Wrapf("from %d to %d", current, target)
	}
	return AmpState{Initial: current, Target: target, RampStartTS: now, RampStopTS: stopTS}, nil
}

// Stop freezes the coefficient at its current value.
func (a AmpState) Stop(now uint64) (AmpState, error) {
	current, err := a.Factor(now)
	if err != nil {
		return a, err
	}
	return AmpState{Initial: current, Target: current, RampStartTS: now, RampStopTS: now}, nil
}
