package emulator

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

const DEFAULT_POLL_INTERVAL = 100 * time.Microsecond // Producer readback poll period

// Receives the producer's write pointer
type WritePointer interface {
	UpdateWritePointer(value uint32)
}

// Producer side of the primary ring, as the emulated CPU sees it. Packets
// are copied into guest memory and published one whole packet at a time.
// Free space is derived from the read index the command processor writes
// back into guest memory
type RingWriter struct {
	l            *logrus.Logger
	mem          GuestMemory
	target       WritePointer
	ring         RingBuffer
	readbackAddr uint32
	write        uint32        // Next ring index to write
	PollInterval time.Duration // How often the readback word is checked while waiting
}

func NewRingWriter(l *logrus.Logger, mem GuestMemory, target WritePointer, ring RingBuffer, readbackAddr uint32) *RingWriter {
	return &RingWriter{
		l:            l,
		mem:          mem,
		target:       target,
		ring:         ring,
		readbackAddr: readbackAddr,
		PollInterval: DEFAULT_POLL_INTERVAL,
	}
}

// Clears the readback word and restarts writing at index 0. Must match a
// (re)initialization of the command processor
func (w *RingWriter) Reset() error {
	w.write = 0
	return w.mem.WriteWord(w.readbackAddr, 0)
}

// Returns the next ring index the producer writes
func (w *RingWriter) WriteIndex() uint32 {
	return w.write
}

// Returns the read index last written back by the command processor
func (w *RingWriter) ReadIndex() (uint32, error) {
	idx, err := w.mem.ReadWord(w.readbackAddr)
	if err != nil {
		return 0, err
	}
	return idx & w.ring.Mask, nil
}

// Returns the number of words that can be written without overtaking the
// consumer. One word is always kept free so that a full ring is not
// mistaken for an empty one
func (w *RingWriter) Free() (uint32, error) {
	read, err := w.ReadIndex()
	if err != nil {
		return 0, err
	}
	return w.ring.Size - 1 - w.ring.Distance(read, w.write), nil
}

// Copies one packet into the ring and publishes it, waiting for space
func (w *RingWriter) WritePacket(ctx context.Context, words []uint32) error {
	n := uint32(len(words))
	if n == 0 {
		return nil
	}
	if n > w.ring.Size-1 {
		return fmt.Errorf("%w: packet of %d words does not fit a %d word ring", ErrOutOfRange, n, w.ring.Size)
	}

	if err := w.waitFor(ctx, func() (bool, error) {
		free, err := w.Free()
		return free >= n, err
	}); err != nil {
		return err
	}

	for i, word := range words {
		if err := w.mem.WriteWord(w.ring.Address(w.write+uint32(i)), word); err != nil {
			return err
		}
	}

	w.write = (w.write + n) & w.ring.Mask
	w.target.UpdateWritePointer(w.write)
	return nil
}

// Writes every packet in order
func (w *RingWriter) WritePackets(ctx context.Context, packets [][]uint32) error {
	for _, p := range packets {
		if err := w.WritePacket(ctx, p); err != nil {
			return err
		}
	}

	w.l.WithField("packets", len(packets)).Debug("Command stream submitted")
	return nil
}

// Waits until the command processor has consumed everything written
func (w *RingWriter) Drain(ctx context.Context) error {
	return w.waitFor(ctx, func() (bool, error) {
		read, err := w.ReadIndex()
		return read == w.write, err
	})
}

func (w *RingWriter) waitFor(ctx context.Context, ready func() (bool, error)) error {
	t := time.NewTicker(w.PollInterval)
	defer t.Stop()

	for {
		ok, err := ready()
		if err != nil {
			return err
		}
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
