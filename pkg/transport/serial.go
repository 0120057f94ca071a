package transport

import (
	"fmt"
	"io"

	"github.com/FObersteiner/goserial"
)

// DefaultBaud matches the boot ROM UART rate on development boards that
// break the boot channel out over USB-serial.
const DefaultBaud = 115200

// OpenSerial opens a serial-port boot channel.
func OpenSerial(name string, baud int) (io.ReadWriteCloser, error) {
	if baud == 0 {
		baud = DefaultBaud
	}
	serialPortConfig := &goserial.Config{Name: name, Baud: baud}
	serialPort, err := goserial.OpenPort(serialPortConfig)
	if err != nil {
		return nil, fmt.Errorf("cannot open serial port %q: %w", name, err)
	}
	return serialPort, nil
}
