// Package model provides cycle-level behavioral models of the HDL blocks
// under test. They implement dut.Device so the harness can run its QA cases
// without an HDL simulator, and they follow the same fixed-point arithmetic
// as the hardware so that the comparison tolerances stay meaningful.
package model

import (
	"errors"
	"fmt"
)

// MaxWidth is the widest complex data bus the models handle without risk of
// overflowing their accumulators.
const MaxWidth = 48

// ErrConfig is returned for parameters a model cannot be built with.
var ErrConfig = errors.New("model: invalid configuration")

func checkWidth(width int) error {
	if width%2 != 0 || width < 4 || width > MaxWidth {
		return fmt.Errorf("%w: complex width %d", ErrConfig, width)
	}

	return nil
}

func checkMWidth(mwidth int) error {
	if mwidth < 0 || mwidth > 32 {
		return fmt.Errorf("%w: meta width %d", ErrConfig, mwidth)
	}

	return nil
}

func metaMask(mwidth int) uint64 {
	return uint64(1)<<mwidth - 1
}
