package modemctl

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Default I9100 device nodes.
const (
	DefaultBootDev    = "/dev/umts_boot0"
	DefaultLinkDev    = "/dev/link_pm"
	DefaultRadioImage = "/dev/block/mmcblk0p8"
	DefaultEHCIPath   = "/sys/devices/platform/s5p-ehci/ehci_power"
)

// ioctl request codes from the sec modem driver (modem_prj.h, _IO('o', n)).
const (
	ioctlModemOn  = 0x6F19
	ioctlModemOff = 0x6F20

	ioctlLinkControlEnable = 0x6F30
	ioctlLinkControlActive = 0x6F31
	ioctlLinkConnected     = 0x6F33
)

// I9100 implements Controller for the Galaxy S2 modem hardware: HSIC link
// control via the link_pm char device, modem power via ioctls on the boot
// device, link power via the EHCI sysfs switch.
type I9100 struct {
	linkFile *os.File
	bootFd   int
	ehciPath string
}

// NewI9100 opens the link control device. bootFd is the descriptor of the
// already-open boot device; the modem power ioctls go to the same node the
// boot protocol runs over, so the controller borrows the descriptor rather
// than owning it.
func NewI9100(linkDev, ehciPath string, bootFd int) (*I9100, error) {
	if linkDev == "" {
		linkDev = DefaultLinkDev
	}
	if ehciPath == "" {
		ehciPath = DefaultEHCIPath
	}
	linkFile, err := os.OpenFile(linkDev, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("cannot open link device %q: %w", linkDev, err)
	}
	return &I9100{
		linkFile: linkFile,
		bootFd:   bootFd,
		ehciPath: ehciPath,
	}, nil
}

func (c *I9100) SetModemPower(on bool) error {
	req := uint(ioctlModemOff)
	if on {
		req = ioctlModemOn
	}
	if _, err := unix.IoctlRetInt(c.bootFd, req); err != nil {
		return fmt.Errorf("modem power ioctl %#x: %w", req, err)
	}
	log.Debugf("Modem power set to %t", on)
	return nil
}

func (c *I9100) SetLinkActive(active bool) error {
	status := 0
	if active {
		status = 1
	}
	fd := int(c.linkFile.Fd())
	if err := unix.IoctlSetPointerInt(fd, ioctlLinkControlEnable, status); err != nil {
		return fmt.Errorf("link enable ioctl: %w", err)
	}
	if err := unix.IoctlSetPointerInt(fd, ioctlLinkControlActive, status); err != nil {
		return fmt.Errorf("link active ioctl: %w", err)
	}
	log.Debugf("Link active set to %t", active)
	return nil
}

func (c *I9100) SetLinkPower(on bool) error {
	f, err := os.OpenFile(c.ehciPath, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("cannot open EHCI switch %q: %w", c.ehciPath, err)
	}
	defer f.Close()

	val := "0"
	if on {
		val = "1"
	}
	// The switch wants exactly one byte.
	if _, err := f.Write([]byte(val)); err != nil {
		return fmt.Errorf("cannot set EHCI power: %w", err)
	}
	log.Debugf("EHCI power set to %t", on)
	return nil
}

func (c *I9100) LinkConnected() (bool, error) {
	connected, err := unix.IoctlRetInt(int(c.linkFile.Fd()), ioctlLinkConnected)
	if err != nil {
		return false, fmt.Errorf("link connected ioctl: %w", err)
	}
	return connected == 1, nil
}

// Close releases the link device. The boot descriptor stays open; its
// owner is the transport layer.
func (c *I9100) Close() error {
	return c.linkFile.Close()
}
