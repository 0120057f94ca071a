package modemctl

import log "github.com/sirupsen/logrus"

// Sim is a Controller with no hardware behind it: every switch succeeds
// and the link is connected immediately. Used for runs against the modem
// emulator, where there are no power rails to drive.
type Sim struct{}

func (Sim) SetModemPower(on bool) error {
	log.Debugf("sim: modem power %t", on)
	return nil
}

func (Sim) SetLinkActive(active bool) error {
	log.Debugf("sim: link active %t", active)
	return nil
}

func (Sim) SetLinkPower(on bool) error {
	log.Debugf("sim: link power %t", on)
	return nil
}

func (Sim) LinkConnected() (bool, error) {
	return true, nil
}

func (Sim) Close() error {
	return nil
}
