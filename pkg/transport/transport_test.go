package transport

import (
	"errors"
	"net"
	"path/filepath"
	"testing"
)

func TestChannelErrorUnwrap(t *testing.T) {
	inner := errors.New("pipe broke")
	err := &ChannelError{Op: "write sync", Err: inner}
	if !errors.Is(err, inner) {
		t.Fatalf("ChannelError does not unwrap to the inner error")
	}
	want := "channel write sync: pipe broke"
	if err.Error() != want {
		t.Fatalf("Error(): got %q, want %q", err.Error(), want)
	}
}

func TestEmulatorListenerRoundTrip(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "modem.sock")

	l, err := NewEmulatorListener(socketPath)
	if err != nil {
		t.Fatalf("NewEmulatorListener(): %v", err)
	}
	defer l.Close()

	done := make(chan error, 1)
	go func() {
		conn, err := net.Dial("unix", socketPath)
		if err != nil {
			done <- err
			return
		}
		defer conn.Close()
		_, err = conn.Write([]byte{0xA5})
		done <- err
	}()

	ch, err := l.Accept()
	if err != nil {
		t.Fatalf("Accept(): %v", err)
	}
	defer ch.Close()

	buf := make([]byte, 1)
	if _, err := ch.Read(buf); err != nil {
		t.Fatalf("Read(): %v", err)
	}
	if buf[0] != 0xA5 {
		t.Fatalf("Read(): got %#02x, want 0xA5", buf[0])
	}
	if err := <-done; err != nil {
		t.Fatalf("emulator side: %v", err)
	}
}

func TestEmulatorListenerReplacesStaleSocket(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "modem.sock")

	l1, err := NewEmulatorListener(socketPath)
	if err != nil {
		t.Fatalf("first NewEmulatorListener(): %v", err)
	}
	l1.Close()

	l2, err := NewEmulatorListener(socketPath)
	if err != nil {
		t.Fatalf("second NewEmulatorListener(): %v", err)
	}
	l2.Close()
}
