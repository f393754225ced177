package xbar

import (
	"errors"

	"github.com/mnsim/xbarsim/quantize"
)

var (
	// ErrConfiguration covers unsupported layer types, fix methods and bit
	// widths that are not divisible by the cycle width.
	ErrConfiguration = quantize.ErrConfiguration

	// ErrModeInvariant is returned when an operation is invoked in a mode
	// that forbids it, e.g. the bit-serial path while training.
	ErrModeInvariant = errors.New("mode invariant violation")

	// ErrNotCalibrated is returned by the bit-serial path when the ledger
	// has not been filled by a FixTrain pass.
	ErrNotCalibrated = errors.New("layer not calibrated")

	// ErrPlaneMismatch is returned when imported bit planes are missing or
	// have the wrong shape.
	ErrPlaneMismatch = errors.New("bit plane mismatch")
)
