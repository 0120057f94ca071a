package xmm6260

import "fmt"

// ProtocolError indicates that the boot ROM answered, but not with the
// bytes the protocol expects. The channel itself is fine.
type ProtocolError struct {
	Stage string
	Want  []byte
	Got   []byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: got [% 02X], want [% 02X]", e.Stage, e.Got, e.Want)
}
