package emulator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeozeozeo/gopm4/test"
)

type registerWrite struct {
	Index uint32
	Value uint32
}

type opcodeCall struct {
	Opcode  uint32
	Payload []uint32
}

// Driver that records every call
type recordingDriver struct {
	mu      sync.Mutex
	writes  []registerWrite
	opcodes []opcodeCall
	events  []Event
	fail    error // Returned by ExecuteOpcode when set
}

func (d *recordingDriver) WriteRegister(index, value uint32) {
	d.mu.Lock()
	d.writes = append(d.writes, registerWrite{index, value})
	d.mu.Unlock()
}

func (d *recordingDriver) ExecuteOpcode(opcode uint32, payload *PayloadReader) error {
	words, err := payload.Words()
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.opcodes = append(d.opcodes, opcodeCall{opcode, words})
	return d.fail
}

func (d *recordingDriver) HandleEvent(ev Event) {
	d.mu.Lock()
	d.events = append(d.events, ev)
	d.mu.Unlock()
}

func (d *recordingDriver) Writes() []registerWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]registerWrite(nil), d.writes...)
}

func (d *recordingDriver) Opcodes() []opcodeCall {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]opcodeCall(nil), d.opcodes...)
}

func (d *recordingDriver) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

const (
	testRAMSize  = 0x10000
	testRingBase = 0x1000
	testReadback = 0x0f00
)

// Returns a processor with a ring of `pages` pages of 4 words at testRingBase
func newTestProcessor(t *testing.T, pages uint32) (*CommandProcessor, *RAM, *recordingDriver) {
	t.Helper()

	opts := DefaultOptions()
	opts.PageWords = 4
	opts.SpinCount = 4

	ram := NewRAM(testRAMSize)
	cp, err := NewCommandProcessor(test.NewLogger(), ram, opts)
	require.NoError(t, err)

	driver := &recordingDriver{}
	require.NoError(t, cp.Initialize(driver, testRingBase, pages))
	return cp, ram, driver
}

// Copies `words` into the ring starting at index `start`, wrapping at `size`
func writeRing(t *testing.T, ram *RAM, base, size, start uint32, words []uint32) uint32 {
	t.Helper()

	idx := start
	for _, w := range words {
		require.NoError(t, ram.WriteWord(base+(idx&(size-1))*4, w))
		idx++
	}
	return idx & (size - 1)
}
