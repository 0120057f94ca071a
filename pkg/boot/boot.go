// Package boot orchestrates the one-shot modem bring-up: image, channels,
// power sequence, handshake, PSI upload.
package boot

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/looplab/fsm"
	log "github.com/sirupsen/logrus"

	"github.com/replicant-tools/xmmboot/pkg/firmware"
	"github.com/replicant-tools/xmmboot/pkg/modemctl"
	"github.com/replicant-tools/xmmboot/pkg/transport"
	"github.com/replicant-tools/xmmboot/pkg/xmm6260"
)

// States of the bring-up chain. The chain is linear and one-way: a run
// either reaches StateDone or stops in the state it failed to leave.
const (
	StateStart          = "start"
	StateImageOpened    = "image_opened"
	StateChannelsOpened = "channels_opened"
	StatePoweredDown    = "powered_down"
	StateLinkActive     = "link_active"
	StatePoweredUp      = "powered_up"
	StateLinkReady      = "link_ready"
	StateHandshaked     = "handshaked"
	StatePSISent        = "psi_sent"
	StateDone           = "done"
)

// Events advancing the chain, one per completed stage.
const (
	eventOpenImage    = "open_image"
	eventOpenChannels = "open_channels"
	eventPowerDown    = "power_down"
	eventActivateLink = "activate_link"
	eventPowerUp      = "power_up"
	eventLinkReady    = "link_ready"
	eventHandshake    = "handshake"
	eventSendPSI      = "send_psi"
	eventAcceptPSI    = "accept_psi"
)

func newBringUpFSM() *fsm.FSM {
	return fsm.NewFSM(
		StateStart,
		fsm.Events{
			{Name: eventOpenImage, Src: []string{StateStart}, Dst: StateImageOpened},
			{Name: eventOpenChannels, Src: []string{StateImageOpened}, Dst: StateChannelsOpened},
			{Name: eventPowerDown, Src: []string{StateChannelsOpened}, Dst: StatePoweredDown},
			{Name: eventActivateLink, Src: []string{StatePoweredDown}, Dst: StateLinkActive},
			{Name: eventPowerUp, Src: []string{StateLinkActive}, Dst: StatePoweredUp},
			{Name: eventLinkReady, Src: []string{StatePoweredUp}, Dst: StateLinkReady},
			{Name: eventHandshake, Src: []string{StateLinkReady}, Dst: StateHandshaked},
			{Name: eventSendPSI, Src: []string{StateHandshaked}, Dst: StatePSISent},
			{Name: eventAcceptPSI, Src: []string{StatePSISent}, Dst: StateDone},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				log.Debugf("Bring-up state: %s -> %s", e.Src, e.Dst)
			},
		},
	)
}

var stageEvents = map[modemctl.Stage]string{
	modemctl.StagePoweredDown: eventPowerDown,
	modemctl.StageLinkActive:  eventActivateLink,
	modemctl.StagePoweredUp:   eventPowerUp,
	modemctl.StageLinkReady:   eventLinkReady,
}

// Config selects the image and the device nodes for a real run. Zero-value
// string fields fall back to the I9100 defaults.
type Config struct {
	ImagePath string
	BootDev   string
	LinkDev   string
	EHCIPath  string

	// SerialPort/EmulatorSocket select an alternative boot channel.
	// Both imply the Sim controller: there are no rails to drive.
	SerialPort     string
	SerialBaud     int
	EmulatorSocket string

	// LinkWait caps the link-connected poll. Zero keeps the default.
	LinkWait time.Duration
}

// Option injects a pre-built collaborator, mainly for tests.
type Option func(*Loader)

func WithImage(img *firmware.Image) Option {
	return func(l *Loader) { l.img = img }
}

func WithChannel(ch io.ReadWriteCloser) Option {
	return func(l *Loader) { l.ch = ch }
}

func WithController(ctrl modemctl.Controller) Option {
	return func(l *Loader) { l.ctrl = ctrl }
}

func WithSequencer(seq *modemctl.Sequencer) Option {
	return func(l *Loader) { l.seq = seq }
}

// WithHandshakeSettle overrides the protocol settle delays. Tests use this
// to avoid real half-second sleeps.
func WithHandshakeSettle(d time.Duration) Option {
	return func(l *Loader) { l.settle = &d }
}

// Loader owns every resource of one bring-up run and releases all of them
// on every exit path.
type Loader struct {
	cfg    Config
	fsm    *fsm.FSM
	settle *time.Duration

	img  *firmware.Image
	ch   io.ReadWriteCloser
	ctrl modemctl.Controller
	seq  *modemctl.Sequencer
}

func New(cfg Config, opts ...Option) *Loader {
	l := &Loader{
		cfg: cfg,
		fsm: newBringUpFSM(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// State reports the last bring-up state the run reached.
func (l *Loader) State() string {
	return l.fsm.Current()
}

// Run performs the whole bring-up once. Whatever happens, every acquired
// resource is released before it returns.
func (l *Loader) Run() error {
	defer l.cleanup()

	if err := l.openImage(); err != nil {
		return err
	}
	l.advance(eventOpenImage)

	if err := l.openChannels(); err != nil {
		return err
	}
	l.advance(eventOpenChannels)

	if l.seq == nil {
		l.seq = modemctl.NewSequencer(l.ctrl)
		if l.cfg.LinkWait > 0 {
			l.seq.PollAttempts = int(l.cfg.LinkWait / modemctl.DefaultPollInterval)
		}
	}
	l.seq.OnStage = func(st modemctl.Stage) { l.advance(stageEvents[st]) }
	if err := l.seq.BringUp(); err != nil {
		return err
	}

	dev := xmm6260.NewDevice(l.ch)
	if l.settle != nil {
		dev.Settle = *l.settle
	}

	id, err := dev.Handshake()
	if err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	log.Infof("Chip identified itself as [%02x %02x]", id[0], id[1])
	l.advance(eventHandshake)

	psi, err := l.img.Part(firmware.PSI)
	if err != nil {
		return err
	}
	if err := dev.SendPSI(psi); err != nil {
		return fmt.Errorf("PSI upload: %w", err)
	}
	l.advance(eventSendPSI)

	if err := dev.WaitPSIAccepted(); err != nil {
		return fmt.Errorf("PSI acceptance: %w", err)
	}
	l.advance(eventAcceptPSI)

	log.Info("Modem is executing the first-stage loader")
	return nil
}

func (l *Loader) openImage() error {
	if l.img != nil {
		return nil
	}
	path := l.cfg.ImagePath
	if path == "" {
		path = modemctl.DefaultRadioImage
	}
	img, err := firmware.Open(path)
	if err != nil {
		return err
	}
	l.img = img
	log.Infof("Opened radio image %q (%d bytes mapped)", path, img.Size())
	return nil
}

func (l *Loader) openChannels() error {
	if l.ch == nil {
		switch {
		case l.cfg.EmulatorSocket != "":
			listener, err := transport.NewEmulatorListener(l.cfg.EmulatorSocket)
			if err != nil {
				return err
			}
			defer listener.Close()
			conn, err := listener.Accept()
			if err != nil {
				return err
			}
			l.ch = conn
		case l.cfg.SerialPort != "":
			ch, err := transport.OpenSerial(l.cfg.SerialPort, l.cfg.SerialBaud)
			if err != nil {
				return err
			}
			l.ch = ch
		default:
			bootDev := l.cfg.BootDev
			if bootDev == "" {
				bootDev = modemctl.DefaultBootDev
			}
			ch, err := transport.OpenBootDev(bootDev)
			if err != nil {
				return err
			}
			l.ch = ch
			log.Infof("Opened %s", ch)
		}
	}

	if l.ctrl != nil {
		return nil
	}
	if bootDev, ok := l.ch.(*transport.BootDev); ok {
		ctrl, err := modemctl.NewI9100(l.cfg.LinkDev, l.cfg.EHCIPath, bootDev.Fd())
		if err != nil {
			return err
		}
		l.ctrl = ctrl
	} else {
		// Serial and emulator channels have no power rails behind them.
		l.ctrl = modemctl.Sim{}
	}
	return nil
}

// cleanup releases everything acquired so far, newest first. Handles that
// never got opened are nil and skipped; calling cleanup twice is harmless.
func (l *Loader) cleanup() {
	if l.ctrl != nil {
		if err := l.ctrl.Close(); err != nil {
			log.Warnf("Failed to close link controller: %v", err)
		}
		l.ctrl = nil
	}
	if l.ch != nil {
		if err := l.ch.Close(); err != nil {
			log.Warnf("Failed to close boot channel: %v", err)
		}
		l.ch = nil
	}
	if l.img != nil {
		if err := l.img.Close(); err != nil {
			log.Warnf("Failed to close radio image: %v", err)
		}
		l.img = nil
	}
}

func (l *Loader) advance(event string) {
	if err := l.fsm.Event(context.Background(), event); err != nil {
		// The chain is linear, so this only fires on a programming error.
		log.Debugf("State machine rejected %q: %v", event, err)
	}
}
