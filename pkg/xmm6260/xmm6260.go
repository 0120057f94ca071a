// Package xmm6260 speaks the XMM6260 boot ROM protocol over a byte stream.
package xmm6260

import (
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/replicant-tools/xmmboot/pkg/transport"
)

// Boot ROM command set. Stage one only needs the sync/PSI exchange below;
// these commands are spoken by the later loader stages (EBL and onwards)
// and are kept here as the reference for the full command surface.
const (
	CmdSetPortConf = 0x86

	CmdReqSecStart     = 0x204
	CmdReqSecEnd       = 0x205
	CmdReqForceHwReset = 0x208

	CmdReqFlashSetAddress = 0x802
	CmdReqFlashWriteBlock = 0x804
)

// bootSync is the pattern the boot ROM waits for before it starts talking.
var bootSync = []byte("ATAT")

// HandshakeSettle is the protocol-mandated wait between the sync pattern
// and the ROM's first reply. It is not tunable on real hardware.
const HandshakeSettle = 500 * time.Millisecond

// Device is a modem boot ROM reachable via a simple bi-directional stream
// of bytes.
type Device struct {
	iostream io.ReadWriteCloser

	// Settle is the wait between the sync pattern and the first reply.
	// Defaults to HandshakeSettle; tests shrink it.
	Settle time.Duration
}

func NewDevice(iostream io.ReadWriteCloser) Device {
	return Device{
		iostream: iostream,
		Settle:   HandshakeSettle,
	}
}

// Handshake synchronizes with the boot ROM and returns the two ACK bytes it
// identifies itself with. The values are opaque to us; they only get logged.
func (dev *Device) Handshake() ([2]byte, error) {
	var id [2]byte

	log.Debug("Writing sync pattern to boot channel")
	n, err := dev.iostream.Write(bootSync)
	if err != nil {
		return id, &transport.ChannelError{Op: "write sync", Err: err}
	}
	if n != len(bootSync) {
		return id, &transport.ChannelError{Op: "write sync", Err: io.ErrShortWrite}
	}

	// The ROM needs time to wake up before it answers the sync.
	time.Sleep(dev.Settle)

	if _, err := io.ReadFull(dev.iostream, id[:1]); err != nil {
		return id, &transport.ChannelError{Op: "read bootloader ACK", Err: err}
	}
	if _, err := io.ReadFull(dev.iostream, id[1:]); err != nil {
		return id, &transport.ChannelError{Op: "read chip ID ACK", Err: err}
	}

	log.Infof("Received ID: [%02x %02x]", id[0], id[1])
	return id, nil
}
