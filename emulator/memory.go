package emulator

import (
	"encoding/binary"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/zeozeozeo/gopm4/config"
)

const (
	DEFAULT_RAM_SIZE = 16 * 1024 * 1024 // Guest RAM visible to the command processor: 16MB
	RAM_FILL         = 0xcdcdcdcd       // Garbage value RAM words start with
)

// Bounds-checked word access to guest memory. Addresses are guest byte
// addresses and must be word aligned
type GuestMemory interface {
	ReadWord(addr uint32) (uint32, error)
	WriteWord(addr uint32, val uint32) error
}

// Guest RAM arena. Words are accessed atomically so the emulated CPU and the
// command processor can share it without a lock; ordering between them is
// established by the write pointer handshake
type RAM struct {
	Range Range            // Guest addresses backed by this arena
	Order binary.ByteOrder // Byte order used when loading raw images
	words []uint32
}

// Creates a new RAM instance of `size` bytes mapped at address 0 and fills
// it with garbage values
func NewRAM(size uint32) *RAM {
	return NewRAMAt(0, size, binary.BigEndian)
}

// Creates a new RAM instance of `size` bytes mapped at `start`
func NewRAMAt(start, size uint32, order binary.ByteOrder) *RAM {
	ram := &RAM{
		Range: NewRange(start, size&^3),
		Order: order,
		words: make([]uint32, size/4),
	}
	for i := 0; i < len(ram.words); i++ {
		ram.words[i] = RAM_FILL
	}
	return ram
}

// Builds the guest RAM described by the `memory` config section
func NewRAMFromConfig(c *config.C) (*RAM, error) {
	size := c.GetUint32("memory.size", DEFAULT_RAM_SIZE)
	if size < 4 {
		return nil, fmt.Errorf("%w: memory.size %d is too small", ErrInvalidConfiguration, size)
	}

	order, err := ParseByteOrder(c.GetString("memory.byte_order", "big"))
	if err != nil {
		return nil, err
	}

	return NewRAMAt(c.GetUint32("memory.base", 0), size, order), nil
}

// Returns the byte order named by `s` ("big" or "little")
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(s) {
	case "big", "be":
		return binary.BigEndian, nil
	case "little", "le":
		return binary.LittleEndian, nil
	default:
		return nil, fmt.Errorf("%w: unknown byte order %q", ErrInvalidConfiguration, s)
	}
}

// Returns the word index of `addr`, or an error if it is unmapped or unaligned
func (ram *RAM) index(addr uint32) (uint32, error) {
	if addr&3 != 0 {
		return 0, fmt.Errorf("%w: unaligned word access at 0x%08x", ErrGuestMemoryFault, addr)
	}
	if !ram.Range.ContainsSpan(addr, 4) {
		return 0, fmt.Errorf("%w: unmapped address 0x%08x", ErrGuestMemoryFault, addr)
	}
	return ram.Range.Offset(addr) / 4, nil
}

// Loads the 32 bit word at `addr`
func (ram *RAM) ReadWord(addr uint32) (uint32, error) {
	idx, err := ram.index(addr)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(&ram.words[idx]), nil
}

// Stores the 32 bit word `val` at `addr`
func (ram *RAM) WriteWord(addr, val uint32) error {
	idx, err := ram.index(addr)
	if err != nil {
		return err
	}
	atomic.StoreUint32(&ram.words[idx], val)
	return nil
}

// Stores `words` at consecutive addresses starting at `addr`
func (ram *RAM) WriteWords(addr uint32, words ...uint32) error {
	if !ram.Range.ContainsSpan(addr, uint32(len(words))*4) {
		return fmt.Errorf("%w: %d words at 0x%08x exceed RAM", ErrGuestMemoryFault, len(words), addr)
	}
	for i, w := range words {
		if err := ram.WriteWord(addr+uint32(i)*4, w); err != nil {
			return err
		}
	}
	return nil
}

// Copies raw bytes into RAM at `addr`, decoding words with the RAM byte order.
// A trailing partial word is zero padded
func (ram *RAM) LoadBytes(addr uint32, data []byte) error {
	words := make([]uint32, 0, (len(data)+3)/4)
	for i := 0; i < len(data); i += 4 {
		var b [4]byte
		copy(b[:], data[i:])
		words = append(words, ram.Order.Uint32(b[:]))
	}
	return ram.WriteWords(addr, words...)
}
