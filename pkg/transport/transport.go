// Package transport provides byte-stream channels to the modem boot ROM.
// All channels are plain io.ReadWriteCloser values; the protocol layer does
// not care whether the bytes travel over the boot char device, a serial
// port, or a unix socket to an emulator.
package transport

import (
	"fmt"
	"os"
)

// ChannelError reports an I/O failure on a boot channel. It is distinct
// from a protocol mismatch: the bytes never made it, as opposed to the
// wrong bytes arriving.
type ChannelError struct {
	Op  string
	Err error
}

func (e *ChannelError) Error() string {
	return fmt.Sprintf("channel %s: %v", e.Op, e.Err)
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

// BootDev is the modem boot char device (umts_boot0). Reads block until the
// ROM produces the next byte.
type BootDev struct {
	path string
	f    *os.File
}

// OpenBootDev opens the boot char device read-write.
func OpenBootDev(path string) (*BootDev, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("cannot open boot device %q: %w", path, err)
	}
	return &BootDev{path: path, f: f}, nil
}

func (d *BootDev) Read(p []byte) (int, error) {
	return d.f.Read(p)
}

func (d *BootDev) Write(p []byte) (int, error) {
	return d.f.Write(p)
}

func (d *BootDev) Close() error {
	return d.f.Close()
}

// Fd exposes the underlying descriptor so the modem power ioctls can be
// issued on the same device the protocol runs over.
func (d *BootDev) Fd() int {
	return int(d.f.Fd())
}

func (d *BootDev) String() string {
	return fmt.Sprintf("boot device %q", d.path)
}
