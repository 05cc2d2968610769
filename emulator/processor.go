package emulator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Result of one Pump call
type Progress struct {
	Packets int    // Primary ring packets consumed
	Words   uint32 // Primary ring words consumed
}

// Returns true if the pump found nothing to do
func (p Progress) Idle() bool {
	return p.Packets == 0
}

// Snapshot of the ring state for diagnostics
type RingState struct {
	Base       uint32 // Physical base address of the ring
	Size       uint32 // Ring size in words
	ReadIndex  uint32 // Next word the processor will read
	WriteIndex uint32 // Write pointer used by the last pump
	Watermark  uint32 // Most recently published write pointer
	Pending    uint32 // Committed words not consumed yet
}

// Ring buffer command processor. The producer side (Initialize,
// EnableReadPointerWriteBack, UpdateWritePointer) may be called from any
// goroutine; Pump and Run belong to a single consumer goroutine
type CommandProcessor struct {
	l        *logrus.Logger
	mem      GuestMemory
	opts     Options
	metrics  *PacketMetrics
	Debugger *Debugger

	handshake *Handshake
	readIndex atomic.Uint32 // Only advanced by the consumer

	// guards the ring geometry, the driver and the readback policy; held
	// for the whole duration of a pump
	mu          sync.Mutex
	driver      Driver
	ring        RingBuffer
	initialized bool
	writeIndex  uint32
	readback    ReadbackPolicy
}

// Creates a command processor reading packets from `mem`. It must be
// initialized before it can pump
func NewCommandProcessor(l *logrus.Logger, mem GuestMemory, opts Options) (*CommandProcessor, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if mem == nil {
		return nil, fmt.Errorf("%w: no guest memory", ErrInvalidConfiguration)
	}

	return &CommandProcessor{
		l:         l,
		mem:       mem,
		opts:      opts,
		metrics:   newPacketMetrics(),
		handshake: NewHandshake(),
	}, nil
}

// Sets up the primary ring of `pageCount` pages at GPU address `baseAddress`
// and resets the read and write indices to 0
func (cp *CommandProcessor) Initialize(driver Driver, baseAddress, pageCount uint32) error {
	if driver == nil {
		return fmt.Errorf("%w: no driver", ErrInvalidConfiguration)
	}
	if pageCount == 0 {
		return fmt.Errorf("%w: zero length ring buffer", ErrInvalidConfiguration)
	}

	size := uint64(pageCount) * uint64(cp.opts.PageWords)
	if size >= 1<<32 {
		return fmt.Errorf("%w: ring of %d pages is too large", ErrInvalidConfiguration, pageCount)
	}

	ring, err := NewRingBuffer(GPUToPhysical(baseAddress), uint32(size))
	if err != nil {
		return err
	}

	cp.mu.Lock()
	defer cp.mu.Unlock()

	cp.driver = driver
	cp.ring = ring
	cp.initialized = true
	cp.writeIndex = 0
	cp.readIndex.Store(0)
	cp.handshake.watermark.Store(0)
	cp.readback.Flushed()

	cp.l.WithFields(logrus.Fields{
		"base":  fmt.Sprintf("0x%08x", ring.Base),
		"words": ring.Size,
	}).Info("Ring buffer initialized")

	notify(driver, EVENT_RING_RESET)

	// wakes a consumer that was started before the ring existed
	cp.handshake.Signal()
	return nil
}

// Makes the processor write its read index to GPU address `addr` every
// `period` consumed packets, and whenever a pump catches up
func (cp *CommandProcessor) EnableReadPointerWriteBack(addr, period uint32) error {
	if period == 0 {
		return fmt.Errorf("%w: zero readback period", ErrInvalidConfiguration)
	}
	if addr&3 != 0 {
		return fmt.Errorf("%w: readback address 0x%08x is not word aligned", ErrInvalidConfiguration, addr)
	}

	cp.mu.Lock()
	defer cp.mu.Unlock()

	cp.readback = ReadbackPolicy{
		Enabled: true,
		Address: GPUToPhysical(addr),
		Period:  period,
	}

	cp.l.WithFields(logrus.Fields{
		"addr":   fmt.Sprintf("0x%08x", cp.readback.Address),
		"period": period,
	}).Info("Read pointer writeback enabled")
	return nil
}

// Stops writing the read index back to guest memory
func (cp *CommandProcessor) DisableReadPointerWriteBack() {
	cp.mu.Lock()
	cp.readback = ReadbackPolicy{}
	cp.mu.Unlock()
}

// Publishes the producer's write pointer: the ring index one past the last
// committed word. The value is taken modulo the ring size. All guest memory
// writes made before this call are visible to the next pump
func (cp *CommandProcessor) UpdateWritePointer(value uint32) {
	cp.handshake.Publish(value)
}

// Returns the index of the next word the processor will read
func (cp *CommandProcessor) ReadIndex() uint32 {
	return cp.readIndex.Load()
}

// Returns a snapshot of the ring state. Blocks while a pump is running
func (cp *CommandProcessor) State() RingState {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	read := cp.readIndex.Load()
	watermark := cp.handshake.Watermark()
	return RingState{
		Base:       cp.ring.Base,
		Size:       cp.ring.Size,
		ReadIndex:  read,
		WriteIndex: cp.writeIndex,
		Watermark:  watermark,
		Pending:    cp.ring.Distance(read, watermark),
	}
}

// Executes every packet committed between the read index and the write
// pointer. Returns an idle Progress when there is nothing to do (including
// before Initialize); never blocks waiting for the producer.
//
// On failure the read index stays at the failing packet and a *PacketError
// carrying its address is returned together with the progress made before it
func (cp *CommandProcessor) Pump(ctx context.Context) (Progress, error) {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	// an uninitialized ring has nothing to execute yet
	var progress Progress
	if !cp.initialized {
		return progress, nil
	}

	var err error
	for {
		end := cp.handshake.Watermark() & cp.ring.Mask
		read := cp.readIndex.Load()
		if read == end {
			break
		}

		cp.writeIndex = end
		err = cp.executePrimaryBuffer(ctx, read, end, &progress)
		if err != nil {
			break
		}
	}

	if err != nil {
		cp.metrics.Error()
	}

	if progress.Idle() {
		return progress, err
	}

	if cp.readback.Dirty() {
		cp.writeReadback()
	}

	if err == nil {
		notify(cp.driver, EVENT_CAUGHT_UP)
	}

	return progress, err
}

// Returns true if the write pointer is ahead of the read index
func (cp *CommandProcessor) pending() bool {
	cp.mu.Lock()
	defer cp.mu.Unlock()

	if !cp.initialized {
		return false
	}
	return cp.handshake.Watermark()&cp.ring.Mask != cp.readIndex.Load()
}

// Writes the read index to the readback address. Failures are reported but
// never stop command processing
func (cp *CommandProcessor) writeReadback() {
	idx := cp.readIndex.Load()
	err := cp.mem.WriteWord(cp.readback.Address, idx)
	cp.metrics.Readback(err)
	cp.readback.Flushed()

	if err != nil {
		cp.l.WithError(err).WithFields(logrus.Fields{
			"addr":  fmt.Sprintf("0x%08x", cp.readback.Address),
			"index": idx,
		}).Error("Failed to write back read pointer")
	}
}
