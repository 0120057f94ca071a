package transport

import (
	"fmt"
	"net"
	"os"

	log "github.com/sirupsen/logrus"
)

// EmulatorListener waits for a modem emulator to connect over a unix
// socket and hands out the connection as a boot channel.
type EmulatorListener struct {
	socketPath string
	listener   net.Listener
}

// NewEmulatorListener creates the listening socket, replacing a stale one
// left over from a previous run.
func NewEmulatorListener(socketPath string) (*EmulatorListener, error) {
	if err := os.Remove(socketPath); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("error removing existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("error creating socket listener: %w", err)
	}

	return &EmulatorListener{
		socketPath: socketPath,
		listener:   listener,
	}, nil
}

// Accept blocks until an emulator connects and returns the connection.
func (e *EmulatorListener) Accept() (net.Conn, error) {
	log.Infof("Waiting for modem emulator on %q", e.socketPath)
	conn, err := e.listener.Accept()
	if err != nil {
		return nil, fmt.Errorf("cannot accept emulator connection: %w", err)
	}
	log.Info("Modem emulator connected")
	return conn, nil
}

func (e *EmulatorListener) Close() error {
	return e.listener.Close()
}
