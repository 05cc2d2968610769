package emulator

import (
	"context"
	"sync/atomic"
)

// Write pointer handshake between the emulated CPU (producer) and the
// command processing goroutine (consumer).
//
// The producer writes packet words into guest memory and then publishes the
// new write pointer. The atomic store orders those memory writes before the
// pointer, and the consumer's atomic load of the pointer orders its packet
// reads after them. The signal channel is an auto-reset event: a signal sent
// while nobody waits is kept until the next Wait, and extra signals coalesce
type Handshake struct {
	watermark atomic.Uint32
	signal    chan struct{}
}

func NewHandshake() *Handshake {
	return &Handshake{signal: make(chan struct{}, 1)}
}

// Publishes the producer's write pointer and wakes the consumer
func (hs *Handshake) Publish(value uint32) {
	hs.watermark.Store(value)
	hs.Signal()
}

// Wakes the consumer without changing the write pointer
func (hs *Handshake) Signal() {
	select {
	case hs.signal <- struct{}{}:
	default:
	}
}

// Returns the most recently published write pointer
func (hs *Handshake) Watermark() uint32 {
	return hs.watermark.Load()
}

// Blocks until the producer signals or ctx is done. Always re-check the
// write pointer after waking, the signal may predate the last pump
func (hs *Handshake) Wait(ctx context.Context) error {
	select {
	case <-hs.signal:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Policy for writing the read index back into guest memory so the producer
// can observe consumption progress
type ReadbackPolicy struct {
	Enabled bool
	Address uint32 // Guest address receiving the read index
	Period  uint32 // Number of consumed packets between writebacks
	pending uint32 // Packets consumed since the last writeback
}

// Counts one consumed packet and returns true when a writeback is due
func (rb *ReadbackPolicy) Tick() bool {
	if !rb.Enabled {
		return false
	}
	rb.pending++
	if rb.pending >= rb.Period {
		rb.pending = 0
		return true
	}
	return false
}

// Returns true if packets were consumed since the last writeback
func (rb *ReadbackPolicy) Dirty() bool {
	return rb.Enabled && rb.pending != 0
}

// Marks the current read index as written back
func (rb *ReadbackPolicy) Flushed() {
	rb.pending = 0
}
