package gpio

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupported is returned for transitions and helpers that this
	// package deliberately doesn't implement.
	ErrUnsupported = errors.New("operation not supported")
	// ErrPinRange is returned for pin numbers outside 0..NumPins-1.
	ErrPinRange = errors.New("pin out of range")
	// ErrPinInUse is returned by Controller.Pin when a handle for the pin
	// already exists.
	ErrPinInUse = errors.New("pin already in use")
	// ErrNotAlternate is returned when an alternate function was asked for
	// but the code given isn't one.
	ErrNotAlternate = errors.New("not an alternate function")
)

// PinError records the pin and operation that failed.
type PinError struct {
	Pin int
	Op  string
	Err error
}

func (e *PinError) Error() string {
	return fmt.Sprintf("gpio: pin %d: %s: %v", e.Pin, e.Op, e.Err)
}

func (e *PinError) Unwrap() error { return e.Err }

func checkPin(pin int) error {
	if pin < 0 || pin >= NumPins { // p89
		return &PinError{Pin: pin, Op: "open", Err: ErrPinRange}
	}
	return nil
}
