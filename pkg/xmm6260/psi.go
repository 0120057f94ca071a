package xmm6260

import (
	"encoding/binary"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"

	"github.com/replicant-tools/xmmboot/pkg/transport"
)

const (
	// PSIMagic marks a PSI transfer frame.
	PSIMagic = 0x30

	// psiHeaderSize is the wire size of PSIHeader: magic, u16 length, pad.
	psiHeaderSize = 4

	// psiAckCount is how many status bytes the ROM emits after the
	// checksum. Their meaning is undocumented; we drain and log them.
	psiAckCount = 22

	// psiConfirm is the byte the ROM sends twice once it has verified
	// the PSI frame.
	psiConfirm = 0x01
)

// psiAccepted is the final acknowledgment after the ROM starts the PSI.
var psiAccepted = []byte{0x00, 0xAA}

// PSIHeader is the frame header preceding the PSI payload. It marshals to
// the exact packed layout the boot ROM expects.
type PSIHeader struct {
	Magic  byte
	Length uint16
	Pad    byte
}

// NewPSIHeader builds a header for a payload of the given size. The wire
// format only has 16 bits for the length, so an oversized payload is
// rejected here rather than silently truncated.
func NewPSIHeader(length int) (PSIHeader, error) {
	if length < 0 || length > 0xFFFF {
		return PSIHeader{}, fmt.Errorf("PSI length %#x does not fit in 16 bits", length)
	}
	return PSIHeader{Magic: PSIMagic, Length: uint16(length)}, nil
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h PSIHeader) MarshalBinary() ([]byte, error) {
	buf := make([]byte, psiHeaderSize)
	buf[0] = h.Magic
	binary.LittleEndian.PutUint16(buf[1:3], h.Length)
	buf[3] = h.Pad
	return buf, nil
}

// Checksum is the running XOR over the payload. This is what the boot ROM
// verifies, not an additive CRC.
func Checksum(payload []byte) byte {
	var crc byte
	for _, b := range payload {
		crc ^= b
	}
	return crc
}

// SendPSI frames and transmits the first-stage bootloader and validates
// the acknowledgment train that follows it.
func (dev *Device) SendPSI(payload []byte) error {
	hdr, err := NewPSIHeader(len(payload))
	if err != nil {
		return err
	}
	hdrBytes, err := hdr.MarshalBinary()
	if err != nil {
		return err
	}

	// The header must go out in one piece.
	n, err := dev.iostream.Write(hdrBytes)
	if err != nil {
		return &transport.ChannelError{Op: "write PSI header", Err: err}
	}
	if n != len(hdrBytes) {
		return &transport.ChannelError{Op: "write PSI header", Err: io.ErrShortWrite}
	}

	if len(payload) >= 16 {
		log.Debugf("PSI image [%08x %08x %08x %08x]",
			binary.LittleEndian.Uint32(payload[0:4]),
			binary.LittleEndian.Uint32(payload[4:8]),
			binary.LittleEndian.Uint32(payload[8:12]),
			binary.LittleEndian.Uint32(payload[12:16]))
	}

	// The boot channel may accept less than the full payload per write.
	for off := 0; off < len(payload); {
		written, err := dev.iostream.Write(payload[off:])
		if err != nil {
			return &transport.ChannelError{Op: "write PSI payload", Err: err}
		}
		off += written
	}

	crc := Checksum(payload)
	log.Debugf("PSI checksum %02x", crc)
	n, err = dev.iostream.Write([]byte{crc})
	if err != nil {
		return &transport.ChannelError{Op: "write PSI checksum", Err: err}
	}
	if n != 1 {
		return &transport.ChannelError{Op: "write PSI checksum", Err: io.ErrShortWrite}
	}

	// The ROM now emits a train of status bytes. No known firmware trace
	// documents their values, so they are drained, not validated.
	var ack [1]byte
	for i := 0; i < psiAckCount; i++ {
		if _, err := io.ReadFull(dev.iostream, ack[:]); err != nil {
			return &transport.ChannelError{Op: fmt.Sprintf("read ACK byte %d", i), Err: err}
		}
		log.Debugf("PSI ACK byte %d: %02x", i, ack[0])
	}

	if err := dev.expectByte(psiConfirm, "first PSI confirmation"); err != nil {
		return err
	}
	if err := dev.expectByte(psiConfirm, "second PSI confirmation"); err != nil {
		return err
	}
	return nil
}

// WaitPSIAccepted reads the final acknowledgment the ROM sends once it has
// handed control to the PSI.
func (dev *Device) WaitPSIAccepted() error {
	var buf [2]byte
	if _, err := io.ReadFull(dev.iostream, buf[:]); err != nil {
		return &transport.ChannelError{Op: "read PSI acceptance", Err: err}
	}
	if buf[0] != psiAccepted[0] || buf[1] != psiAccepted[1] {
		return &ProtocolError{Stage: "PSI acceptance", Want: psiAccepted, Got: buf[:]}
	}
	log.Debug("PSI accepted")
	return nil
}

func (dev *Device) expectByte(want byte, stage string) error {
	var buf [1]byte
	if _, err := io.ReadFull(dev.iostream, buf[:]); err != nil {
		return &transport.ChannelError{Op: "read " + stage, Err: err}
	}
	if buf[0] != want {
		return &ProtocolError{Stage: stage, Want: []byte{want}, Got: []byte{buf[0]}}
	}
	return nil
}
