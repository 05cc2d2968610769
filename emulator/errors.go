package emulator

import (
	"errors"
	"fmt"
)

var (
	// The header bits of a packet cannot be interpreted
	ErrMalformedHeader = errors.New("malformed packet header")
	// A packet spans words the producer has not committed, or runs past the
	// end of an indirect buffer
	ErrOutOfRange = errors.New("packet exceeds committed data")
	// An indirect buffer invoked another indirect buffer past the allowed depth
	ErrIndirectionLimitExceeded = errors.New("indirect buffer nesting limit exceeded")
	// A guest memory word could not be read or written
	ErrGuestMemoryFault = errors.New("guest memory fault")
	// The ring geometry or processor options are unusable
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Describes a failure while decoding or dispatching the packet at `Addr`.
// The error kind is one of the sentinel errors above (or a driver error) and
// is reachable through errors.Is.
//
// For a packet inside an indirect buffer, `Addr` is the nested packet and
// `Primary` the ring packet that invoked the buffer. Both are the same for
// ring packets
type PacketError struct {
	Addr    uint32 // Guest byte address of the failing packet header
	Header  uint32 // Header word, zero if it could not be read
	Primary uint32 // Guest byte address of the ring packet the read index stopped at
	Err     error
}

func (e *PacketError) Error() string {
	if e.Primary != e.Addr {
		return fmt.Sprintf("packet 0x%08x at 0x%08x (indirect buffer called at 0x%08x): %v", e.Header, e.Addr, e.Primary, e.Err)
	}
	return fmt.Sprintf("packet 0x%08x at 0x%08x: %v", e.Header, e.Addr, e.Err)
}

func (e *PacketError) Unwrap() error {
	return e.Err
}

// Returns true if the failing packet lives in an indirect buffer
func (e *PacketError) Nested() bool {
	return e.Addr != e.Primary
}

// Wraps `err` into a PacketError, unless it already describes a (nested) packet
func packetError(addr, header uint32, err error) error {
	var pe *PacketError
	if errors.As(err, &pe) {
		return err
	}
	return &PacketError{Addr: addr, Header: header, Primary: addr, Err: err}
}

// Records the ring packet `addr` that a failure happened under
func withPrimary(addr uint32, err error) error {
	var pe *PacketError
	if errors.As(err, &pe) {
		pe.Primary = addr
	}
	return err
}
