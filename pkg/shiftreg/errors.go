package shiftreg

import (
	"errors"
	"fmt"
)

var (
	// ErrBitOutOfRange is returned when a pin names a bit outside the
	// chip's 8*num_registers address space.
	ErrBitOutOfRange = errors.New("shiftreg: bit index out of range")

	// ErrOrdering is matched by OrderingError.
	ErrOrdering = errors.New("shiftreg: command scheduled before previous command")

	// ErrUninitialized is returned when a pin is driven before its
	// configuration has been built.
	ErrUninitialized = errors.New("shiftreg: pin configuration not built")

	// ErrAlreadyConfigured is returned for changes that must happen before
	// the configuration is built.
	ErrAlreadyConfigured = errors.New("shiftreg: pin configuration already built")

	// ErrInvalidConfig is returned for an unusable ChipConfig.
	ErrInvalidConfig = errors.New("shiftreg: invalid chip config")
)

// OrderingError reports a SetValue whose clock lies before the last clock
// issued for the same pin. The command is not sent.
type OrderingError struct {
	OID       int
	Clock     int64
	LastClock int64
}

func (e *OrderingError) Error() string {
	return fmt.Sprintf("shiftreg: oid %d: clock %d precedes last issued clock %d", e.OID, e.Clock, e.LastClock)
}

// Is makes errors.Is(err, ErrOrdering) match.
func (e *OrderingError) Is(target error) bool {
	return target == ErrOrdering
}
