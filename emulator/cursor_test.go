package emulator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRingBuffer(t *testing.T) {
	ring, err := NewRingBuffer(0x1000, 1024)
	require.NoError(t, err)
	assert.Equal(t, RingBuffer{Base: 0x1000, Size: 1024, Mask: 1023}, ring)

	for _, size := range []uint32{0, 1, 3, 12, 1000} {
		_, err := NewRingBuffer(0x1000, size)
		assert.ErrorIs(t, err, ErrInvalidConfiguration, "size %d", size)
	}

	_, err = NewRingBuffer(0x1001, 16)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewRingBuffer(0xfffff000, 1024)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestRingBuffer_Wraparound(t *testing.T) {
	for size := uint32(2); size <= 1<<20; size <<= 1 {
		ring, err := NewRingBuffer(0x100000, size)
		require.NoError(t, err)

		for _, start := range []uint32{0, 1, size / 2, size - 1} {
			args := ring.Context(start, start)
			args.Remaining = size

			from := args.Ptr
			require.NoError(t, args.Advance(size))
			assert.Equal(t, from, args.Ptr, "size %d start %d", size, start)
			assert.Equal(t, uint32(0), args.Remaining)
		}
	}
}

func TestRingBuffer_Indices(t *testing.T) {
	ring, err := NewRingBuffer(0x2000, 16)
	require.NoError(t, err)

	assert.Equal(t, uint32(0x2000), ring.Address(0))
	assert.Equal(t, uint32(0x203c), ring.Address(15))
	assert.Equal(t, uint32(0x2000), ring.Address(16))
	assert.Equal(t, uint32(15), ring.Index(0x203c))

	assert.Equal(t, uint32(0), ring.Distance(5, 5))
	assert.Equal(t, uint32(3), ring.Distance(5, 8))
	assert.Equal(t, uint32(13), ring.Distance(8, 5))
	assert.Equal(t, uint32(2), ring.Distance(15, 1))

	args := ring.Context(14, 2)
	assert.True(t, args.Wraps())
	assert.Equal(t, uint32(4), args.Remaining)

	require.NoError(t, args.Advance(3))
	assert.Equal(t, uint32(0x2004), args.Ptr)
	assert.Equal(t, uint32(1), args.Remaining)

	// never moves past committed data
	assert.ErrorIs(t, args.Advance(2), ErrOutOfRange)
	assert.Equal(t, uint32(0x2004), args.Ptr)
	assert.Equal(t, uint32(1), args.Remaining)
}

func TestNewLinearContext(t *testing.T) {
	args, err := NewLinearContext(0x4000, 4)
	require.NoError(t, err)
	assert.False(t, args.Wraps())
	assert.Equal(t, uint32(0x4010), args.MaxAddress)

	require.NoError(t, args.Advance(3))
	assert.Equal(t, uint32(0x400c), args.Ptr)
	assert.ErrorIs(t, args.Advance(2), ErrOutOfRange)
	require.NoError(t, args.Advance(1))
	assert.Equal(t, args.MaxAddress, args.Ptr)

	_, err = NewLinearContext(0x4002, 4)
	assert.ErrorIs(t, err, ErrOutOfRange)

	_, err = NewLinearContext(0xfffffff0, 8)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestPayloadReader(t *testing.T) {
	ram := NewRAM(0x100)
	ring, err := NewRingBuffer(0x40, 4)
	require.NoError(t, err)

	// header at index 2, payload at 3, 0, 1
	require.NoError(t, ram.WriteWords(0x40, 0xb, 0xc, 0xdead, 0xa))

	payload := newPayloadReader(ram, ring.Context(2, 1), 3)
	assert.Equal(t, uint32(3), payload.Len())
	assert.Equal(t, uint32(0x4c), payload.Address(0))
	assert.Equal(t, uint32(0x40), payload.Address(1))

	words, err := payload.Words()
	require.NoError(t, err)
	assert.Equal(t, []uint32{0xa, 0xb, 0xc}, words)

	_, err = payload.Word(3)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, GuestMemory(ram), payload.Memory())
}
