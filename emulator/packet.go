package emulator

import "fmt"

// A packet header word
type Header uint32

// Return bits [31:30] of the header
func (h Header) Kind() PacketKind {
	return PacketKind(uint32(h) >> 30)
}

// Return the count field in bits [29:16]
func (h Header) CountField() uint32 {
	return (uint32(h) >> 16) & PACKET_COUNT_MASK
}

// Type 0: base register index in bits [14:0]
func (h Header) BaseRegister() uint32 {
	return uint32(h) & TYPE0_REGISTER_MASK
}

// Type 0: when bit 15 is set, every payload word goes to the base register
func (h Header) OneRegister() bool {
	return (uint32(h)>>15)&1 != 0
}

// Type 1: first register index in bits [10:0]
func (h Header) RegisterA() uint32 {
	return uint32(h) & TYPE1_REGISTER_MASK
}

// Type 1: second register index in bits [21:11]
func (h Header) RegisterB() uint32 {
	return (uint32(h) >> 11) & TYPE1_REGISTER_MASK
}

// Type 3: opcode in bits [14:8]
func (h Header) Opcode() uint32 {
	return (uint32(h) >> 8) & TYPE3_OPCODE_MASK
}

// Type 3: predicate bit 0
func (h Header) Predicated() bool {
	return uint32(h)&1 != 0
}

// A decoded packet. Only lives for one decode-dispatch step
type Packet struct {
	Header       Header
	Kind         PacketKind
	Count        uint32 // Payload words, excluding the header
	Opcode       uint32 // Type 3 only
	BaseRegister uint32 // First register written by type 0 and type 1 packets
	RegisterB    uint32 // Second register written by type 1 packets
	OneRegister  bool   // Type 0 writes every word to BaseRegister
	Predicated   bool   // Type 3 predicate bit
}

// Returns the total number of words of the packet (header + payload)
func (p Packet) Words() uint32 {
	return 1 + p.Count
}

// Returns whether the packet invokes an indirect buffer
func (p Packet) IsIndirectBuffer() bool {
	return p.Kind == PACKET_TYPE3 && IsIndirectBufferOpcode(p.Opcode)
}

func (p Packet) String() string {
	switch p.Kind {
	case PACKET_TYPE0:
		return fmt.Sprintf("type0 reg=0x%04x count=%d one=%v", p.BaseRegister, p.Count, p.OneRegister)
	case PACKET_TYPE1:
		return fmt.Sprintf("type1 reg=0x%03x reg=0x%03x", p.BaseRegister, p.RegisterB)
	case PACKET_TYPE2:
		return fmt.Sprintf("type2 skip=%d", p.Count)
	default:
		return fmt.Sprintf("type3 op=0x%02x count=%d", p.Opcode, p.Count)
	}
}

// Decodes a header word into a packet. The payload is never read, only its
// length is determined so the caller can skip the whole packet
func DecodeHeader(word uint32) (Packet, error) {
	h := Header(word)
	p := Packet{Header: h, Kind: h.Kind()}

	switch p.Kind {
	case PACKET_TYPE0:
		p.BaseRegister = h.BaseRegister()
		p.OneRegister = h.OneRegister()
		p.Count = h.CountField() + 1
	case PACKET_TYPE1:
		if word&TYPE1_RESERVED_MASK != 0 {
			return p, fmt.Errorf("%w: type1 reserved bits 0x%08x", ErrMalformedHeader, word&TYPE1_RESERVED_MASK)
		}
		p.BaseRegister = h.RegisterA()
		p.RegisterB = h.RegisterB()
		p.Count = 2
	case PACKET_TYPE2:
		if word&TYPE2_RESERVED_MASK != 0 {
			return p, fmt.Errorf("%w: type2 reserved bits 0x%08x", ErrMalformedHeader, word&TYPE2_RESERVED_MASK)
		}
		// the skip length includes the header; 0 and 1 are both a single
		// filler word
		if skip := h.CountField(); skip > 1 {
			p.Count = skip - 1
		}
	case PACKET_TYPE3:
		if word&TYPE3_RESERVED_MASK != 0 {
			return p, fmt.Errorf("%w: type3 reserved bits 0x%08x", ErrMalformedHeader, word&TYPE3_RESERVED_MASK)
		}
		p.Opcode = h.Opcode()
		p.Predicated = h.Predicated()
		p.Count = h.CountField() + 1
	}

	return p, nil
}
