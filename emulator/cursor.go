package emulator

import "fmt"

// Geometry of the primary ring buffer. Indices are word indices and are
// always reduced modulo Size through Mask
type RingBuffer struct {
	Base uint32 // Physical byte address of word 0
	Size uint32 // Size in words, a power of two
	Mask uint32 // Size - 1
}

// Returns a ring of `size` words at `base`. The size must be a power of two
// (at least 2) and the base must be word aligned
func NewRingBuffer(base, size uint32) (RingBuffer, error) {
	if size < 2 || size&(size-1) != 0 {
		return RingBuffer{}, fmt.Errorf("%w: ring size %d words is not a power of two", ErrInvalidConfiguration, size)
	}
	if base&3 != 0 {
		return RingBuffer{}, fmt.Errorf("%w: ring base 0x%08x is not word aligned", ErrInvalidConfiguration, base)
	}
	if uint64(base)+uint64(size)*4 >= 1<<32 {
		return RingBuffer{}, fmt.Errorf("%w: ring at 0x%08x overflows the address space", ErrInvalidConfiguration, base)
	}
	return RingBuffer{Base: base, Size: size, Mask: size - 1}, nil
}

// Returns the guest address of word `index`
func (ring RingBuffer) Address(index uint32) uint32 {
	return ring.Base + (index&ring.Mask)*4
}

// Returns the ring index of guest address `addr`
func (ring RingBuffer) Index(addr uint32) uint32 {
	return ((addr - ring.Base) / 4) & ring.Mask
}

// Returns the number of words from `from` up to (excluding) `to`
func (ring RingBuffer) Distance(from, to uint32) uint32 {
	return (to - from) & ring.Mask
}

// Returns an execution context starting at index `read` with the words up to
// index `write` committed
func (ring RingBuffer) Context(read, write uint32) ExecutionContext {
	return ExecutionContext{
		Ptr:        ring.Address(read),
		Base:       ring.Base,
		MaxAddress: ring.Base + ring.Size*4,
		Mask:       ring.Mask,
		Remaining:  ring.Distance(read, write),
	}
}

// Cursor over one buffer level. The primary ring and every indirect buffer
// get their own context, so nested execution never touches the ring cursor
type ExecutionContext struct {
	Ptr        uint32 // Current read address
	Base       uint32 // Buffer base address
	MaxAddress uint32 // Exclusive upper bound of the buffer
	Mask       uint32 // Word index wrap mask, 0 for linear buffers
	Remaining  uint32 // Committed words not consumed yet
}

// Returns a linear (non wrapping) context over `length` words at `base`
func NewLinearContext(base, length uint32) (ExecutionContext, error) {
	if base&3 != 0 {
		return ExecutionContext{}, fmt.Errorf("%w: buffer at 0x%08x is not word aligned", ErrOutOfRange, base)
	}
	if uint64(base)+uint64(length)*4 >= 1<<32 {
		return ExecutionContext{}, fmt.Errorf("%w: %d words at 0x%08x overflow the address space", ErrOutOfRange, length, base)
	}
	return ExecutionContext{
		Ptr:        base,
		Base:       base,
		MaxAddress: base + length*4,
		Remaining:  length,
	}, nil
}

// Returns true if the context wraps around (primary ring)
func (args *ExecutionContext) Wraps() bool {
	return args.Mask != 0
}

// Returns the address `n` words after the current pointer
func (args *ExecutionContext) addressAt(n uint32) uint32 {
	off := (args.Ptr-args.Base)/4 + n
	if args.Wraps() {
		off &= args.Mask
	}
	return args.Base + off*4
}

// Moves the pointer forward by `n` words, wrapping to the base of a ring.
// Fails without moving if fewer than `n` committed words remain
func (args *ExecutionContext) Advance(n uint32) error {
	if n > args.Remaining {
		return fmt.Errorf("%w: %d words requested, %d committed at 0x%08x", ErrOutOfRange, n, args.Remaining, args.Ptr)
	}
	if !args.Wraps() && uint64(args.Ptr)+uint64(n)*4 > uint64(args.MaxAddress) {
		return fmt.Errorf("%w: %d words at 0x%08x pass the buffer end 0x%08x", ErrOutOfRange, n, args.Ptr, args.MaxAddress)
	}
	args.Ptr = args.addressAt(n)
	args.Remaining -= n
	return nil
}

// Gives drivers lazy access to the payload of the packet being dispatched
type PayloadReader struct {
	mem   GuestMemory
	args  ExecutionContext // Positioned at the packet header
	count uint32
}

func newPayloadReader(mem GuestMemory, args ExecutionContext, count uint32) *PayloadReader {
	return &PayloadReader{mem: mem, args: args, count: count}
}

// Returns the number of payload words
func (r *PayloadReader) Len() uint32 {
	return r.count
}

// Returns the guest address of payload word `i`, wrapping in the ring
func (r *PayloadReader) Address(i uint32) uint32 {
	return r.args.addressAt(1 + i)
}

// Reads payload word `i`
func (r *PayloadReader) Word(i uint32) (uint32, error) {
	if i >= r.count {
		return 0, fmt.Errorf("%w: payload word %d of %d", ErrOutOfRange, i, r.count)
	}
	return r.mem.ReadWord(r.Address(i))
}

// Reads the whole payload
func (r *PayloadReader) Words() ([]uint32, error) {
	words := make([]uint32, r.count)
	for i := range words {
		w, err := r.Word(uint32(i))
		if err != nil {
			return nil, err
		}
		words[i] = w
	}
	return words, nil
}

// Returns the guest memory the payload lives in
func (r *PayloadReader) Memory() GuestMemory {
	return r.mem
}
