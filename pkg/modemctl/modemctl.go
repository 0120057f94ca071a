// Package modemctl drives the power and link state of the baseband chip.
package modemctl

import "fmt"

// Controller is the device-control capability: power rails and link state
// for the modem. How a backend implements the switches (ioctl, sysfs) is
// its own business.
type Controller interface {
	// SetModemPower switches the baseband chip itself on or off.
	SetModemPower(on bool) error
	// SetLinkActive enables and activates the host-side link (HSIC).
	SetLinkActive(active bool) error
	// SetLinkPower switches the link's host controller (EHCI) on or off.
	SetLinkPower(on bool) error
	// LinkConnected reports whether the link has enumerated the chip.
	LinkConnected() (bool, error)
	Close() error
}

// SequenceError reports a fatal failure of one bring-up step.
type SequenceError struct {
	Step string
	Err  error
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("bring-up step %q: %v", e.Step, e.Err)
}

func (e *SequenceError) Unwrap() error {
	return e.Err
}
