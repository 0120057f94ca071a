// xmmboot brings the XMM6260 baseband up to its first-stage bootloader:
// it powers the chip and link, handshakes with the boot ROM and uploads
// the PSI from the radio firmware image. One run, exit 0 or 1.
package main

import (
	"flag"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/replicant-tools/xmmboot/pkg/boot"
	"github.com/replicant-tools/xmmboot/pkg/modemctl"
	"github.com/replicant-tools/xmmboot/pkg/transport"
)

var (
	imagePath   = flag.String("image", modemctl.DefaultRadioImage, "Radio firmware image or block device.")
	bootDev     = flag.String("boot-dev", modemctl.DefaultBootDev, "Modem boot char device.")
	linkDev     = flag.String("link-dev", modemctl.DefaultLinkDev, "Link power management char device.")
	ehciPath    = flag.String("ehci", modemctl.DefaultEHCIPath, "EHCI power switch sysfs path.")
	serialPort  = flag.String("serial", "", "Boot over a serial port instead of the boot device (like /dev/ttyUSB0).")
	serialBaud  = flag.Int("baud", transport.DefaultBaud, "Serial port speed.")
	emuSocket   = flag.String("emulator-socket", "", "Listen for a modem emulator on this unix socket instead of using real hardware.")
	linkTimeout = flag.Duration("link-timeout", 30*time.Second, "How long to wait for the link to connect.")
	verbose     = flag.Bool("verbose", false, "Log every protocol byte.")
)

func main() {
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{})
	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	loader := boot.New(boot.Config{
		ImagePath:      *imagePath,
		BootDev:        *bootDev,
		LinkDev:        *linkDev,
		EHCIPath:       *ehciPath,
		SerialPort:     *serialPort,
		SerialBaud:     *serialBaud,
		EmulatorSocket: *emuSocket,
		LinkWait:       *linkTimeout,
	})

	if err := loader.Run(); err != nil {
		log.Errorf("Bring-up failed in state %q: %v", loader.State(), err)
		os.Exit(1)
	}
	log.Info("Bring-up complete")
}
