package modemctl

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Stage is a completed phase of the bring-up sequence, reported through
// Sequencer.OnStage.
type Stage int

const (
	// StagePoweredDown: chip, link and link power forced off.
	StagePoweredDown Stage = iota
	// StageLinkActive: link activation attempted.
	StageLinkActive
	// StagePoweredUp: link power and chip power on.
	StagePoweredUp
	// StageLinkReady: link enumerated and settle delay elapsed.
	StageLinkReady
)

const (
	// DefaultPollInterval is the pause between link-connected polls.
	DefaultPollInterval = 50 * time.Millisecond

	// DefaultPollAttempts bounds the link-connected poll at 30 seconds.
	// The shipped loader waits forever here; a cap turns a dead link
	// into a diagnosable failure instead of a hang.
	DefaultPollAttempts = 600

	// DefaultSettleDelay is the protocol-mandated wait between the link
	// coming up and the first byte of the handshake.
	DefaultSettleDelay = 500 * time.Millisecond
)

// Sequencer walks the modem through the ordered power and link bring-up.
// Not reentrant; one bring-up per run.
type Sequencer struct {
	ctrl Controller

	// PollInterval, PollAttempts and SettleDelay default to the
	// hardware-mandated values; tests shrink them.
	PollInterval time.Duration
	PollAttempts int
	SettleDelay  time.Duration

	// OnStage, when set, is called after each completed stage.
	OnStage func(Stage)
}

func NewSequencer(ctrl Controller) *Sequencer {
	return &Sequencer{
		ctrl:         ctrl,
		PollInterval: DefaultPollInterval,
		PollAttempts: DefaultPollAttempts,
		SettleDelay:  DefaultSettleDelay,
	}
}

// BringUp drives the full power/link sequence. The initial power-down and
// the link activation tolerate failure: the driver refuses some of these
// when the hardware is already in the requested state. Powering the link
// and the chip up must succeed.
func (s *Sequencer) BringUp() error {
	// Force a known state first.
	if err := s.ctrl.SetModemPower(false); err != nil {
		log.Warnf("Failed to disable modem power: %v", err)
	}
	if err := s.ctrl.SetLinkActive(false); err != nil {
		log.Warnf("Failed to deactivate link: %v", err)
	}
	if err := s.ctrl.SetLinkPower(false); err != nil {
		log.Warnf("Failed to disable link power: %v", err)
	}
	s.stage(StagePoweredDown)

	if err := s.ctrl.SetLinkActive(true); err != nil {
		log.Warnf("Failed to activate link: %v", err)
	}
	s.stage(StageLinkActive)

	if err := s.ctrl.SetLinkPower(true); err != nil {
		return &SequenceError{Step: "link power on", Err: err}
	}
	if err := s.ctrl.SetModemPower(true); err != nil {
		return &SequenceError{Step: "modem power on", Err: err}
	}
	s.stage(StagePoweredUp)

	if err := s.waitLinkReady(); err != nil {
		return err
	}
	log.Info("Link ready")

	time.Sleep(s.SettleDelay)
	s.stage(StageLinkReady)
	return nil
}

func (s *Sequencer) waitLinkReady() error {
	attempts := s.PollAttempts
	if attempts <= 0 {
		attempts = DefaultPollAttempts
	}
	for i := 0; i < attempts; i++ {
		connected, err := s.ctrl.LinkConnected()
		if err != nil {
			return &SequenceError{Step: "link connected query", Err: err}
		}
		if connected {
			return nil
		}
		time.Sleep(s.PollInterval)
	}
	return &SequenceError{
		Step: "link ready wait",
		Err:  fmt.Errorf("link not connected after %d polls", attempts),
	}
}

func (s *Sequencer) stage(st Stage) {
	if s.OnStage != nil {
		s.OnStage(st)
	}
}
