// modememu plays the chip side of the XMM6260 boot protocol over a unix
// socket, so the loader can be exercised without modem hardware:
//
//	xmmboot -emulator-socket /tmp/xmm6260.sock -image radio.img &
//	modememu -socket /tmp/xmm6260.sock
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"net"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/replicant-tools/xmmboot/pkg/xmm6260"
)

var (
	socketPath = flag.String("socket", "/tmp/xmm6260.sock", "Unix socket the loader listens on.")
)

// Fake boot ROM identity; the loader logs it but does not interpret it.
var chipID = []byte{0xB0, 0xC5}

func main() {
	flag.Parse()

	conn, err := net.Dial("unix", *socketPath)
	if err != nil {
		log.Errorf("Cannot connect to loader socket %q: %v", *socketPath, err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := serve(conn); err != nil {
		log.Errorf("Emulation failed: %v", err)
		os.Exit(1)
	}
	log.Info("PSI received and acknowledged")
}

func serve(conn io.ReadWriter) error {
	sync := make([]byte, 4)
	if _, err := io.ReadFull(conn, sync); err != nil {
		return fmt.Errorf("cannot read sync pattern: %w", err)
	}
	if string(sync) != "ATAT" {
		return fmt.Errorf("unexpected sync pattern %q", sync)
	}
	log.Info("Sync pattern received, identifying")
	if _, err := conn.Write(chipID); err != nil {
		return fmt.Errorf("cannot write chip ID: %w", err)
	}

	hdr := make([]byte, 4)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return fmt.Errorf("cannot read PSI header: %w", err)
	}
	if hdr[0] != xmm6260.PSIMagic {
		return fmt.Errorf("unexpected PSI magic %#02x", hdr[0])
	}
	length := binary.LittleEndian.Uint16(hdr[1:3])
	log.Infof("Receiving PSI, %d bytes", length)

	payload := make([]byte, length)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return fmt.Errorf("cannot read PSI payload: %w", err)
	}
	crc := make([]byte, 1)
	if _, err := io.ReadFull(conn, crc); err != nil {
		return fmt.Errorf("cannot read PSI checksum: %w", err)
	}

	// Status train the real ROM emits after the checksum.
	if _, err := conn.Write(make([]byte, 22)); err != nil {
		return fmt.Errorf("cannot write status train: %w", err)
	}

	if want := xmm6260.Checksum(payload); crc[0] != want {
		// Refuse the frame the way a real ROM would: no confirmation.
		if _, err := conn.Write([]byte{0x00, 0x00}); err != nil {
			return fmt.Errorf("cannot write rejection: %w", err)
		}
		return fmt.Errorf("PSI checksum mismatch: got %#02x, want %#02x", crc[0], want)
	}

	if _, err := conn.Write([]byte{0x01, 0x01}); err != nil {
		return fmt.Errorf("cannot write confirmations: %w", err)
	}
	if _, err := conn.Write([]byte{0x00, 0xAA}); err != nil {
		return fmt.Errorf("cannot write acceptance: %w", err)
	}
	return nil
}
