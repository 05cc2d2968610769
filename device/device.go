package device

import (
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/zeozeozeo/gopm4/emulator"
)

const (
	REGISTER_COUNT = 0x8000 // Size of the register file (words)

	REG_PA_SC_WINDOW_OFFSET   = 0x2080 // Window offset added to every vertex
	REG_SHADER_CONSTANT_ALU   = 0x4000 // ALU constant bank
	REG_SHADER_CONSTANT_FETCH = 0x4800 // Fetch constant bank
	REG_SHADER_CONSTANT_BOOL  = 0x4900 // Boolean constant bank
	REG_SHADER_CONSTANT_LOOP  = 0x4908 // Loop constant bank
	REG_CONTEXT_REGISTERS     = 0x2000 // Context register bank
)

// The payload of a command is shorter than its format requires
var ErrShortPayload = errors.New("command payload too short")

// A frame that was completed by the command stream
type Frame struct {
	Number   uint64   // Frames completed so far, including this one
	Vertices []Vertex // Triangle list, window offset applied
}

// Headless graphics device executing the commands decoded by the command
// processor. Register and draw state is owned by the command processing
// goroutine; completed frames can be read from any goroutine
type Device struct {
	l          *logrus.Logger
	Registers  [REGISTER_COUNT]uint32 // Register file
	Irq        *IrqState              // Interrupt lines raised by PM4_INTERRUPT
	LastEvent  uint32                 // Event type of the last PM4_EVENT_WRITE
	EventCount uint64                 // Number of PM4_EVENT_WRITE packets executed
	// Called from the command processing goroutine when the command stream
	// raises an interrupt
	OnInterrupt func(cpuMask uint32)

	draw    *DrawData // Frame in progress
	metrics *deviceMetrics

	mu    sync.Mutex
	frame Frame // Last completed frame
}

func NewDevice(l *logrus.Logger) *Device {
	return &Device{
		l:       l,
		Irq:     NewIrqState(),
		draw:    NewDrawData(),
		metrics: newDeviceMetrics(),
	}
}

// Writes `value` to register `index`
func (dev *Device) WriteRegister(index, value uint32) {
	dev.Registers[index&(REGISTER_COUNT-1)] = value
	dev.metrics.registerWrites.Inc(1)
}

// Returns the value of register `index`
func (dev *Device) Register(index uint32) uint32 {
	return dev.Registers[index&(REGISTER_COUNT-1)]
}

// Executes a type 3 command
func (dev *Device) ExecuteOpcode(opcode uint32, payload *emulator.PayloadReader) error {
	dev.metrics.opcode(opcode).Inc(1)

	switch opcode {
	case emulator.PM4_ME_INIT:
		dev.reset()
	case emulator.PM4_NOP:
		// skipped
	case emulator.PM4_INTERRUPT:
		return dev.interrupt(payload)
	case emulator.PM4_EVENT_WRITE:
		return dev.eventWrite(payload)
	case emulator.PM4_REG_RMW:
		return dev.regRmw(payload)
	case emulator.PM4_SET_CONSTANT:
		return dev.setConstant(payload)
	case emulator.PM4_DRAW_INDX_2:
		return dev.drawImmediate(payload)
	case emulator.PM4_XE_SWAP:
		dev.publish()
	default:
		dev.l.WithFields(logrus.Fields{
			"opcode": fmt.Sprintf("0x%02x", opcode),
			"words":  payload.Len(),
		}).Debug("Ignoring unhandled opcode")
	}
	return nil
}

// Handles command processor notifications
func (dev *Device) HandleEvent(ev emulator.Event) {
	switch ev {
	case emulator.EVENT_RING_RESET:
		dev.draw = NewDrawData()
	case emulator.EVENT_CAUGHT_UP:
		if dev.draw.Len() > 0 {
			dev.publish()
		}
	}
}

// Returns the last completed frame
func (dev *Device) Frame() Frame {
	dev.mu.Lock()
	defer dev.mu.Unlock()
	return dev.frame
}

// Returns the window offset, two signed 15 bit values
func (dev *Device) WindowOffset() (int16, int16) {
	val := dev.Register(REG_PA_SC_WINDOW_OFFSET)
	x := uint16(val & 0x7fff)
	y := uint16((val >> 16) & 0x7fff)

	// shift the values to 16 bits to force sign extension
	return int16(x<<1) >> 1, int16(y<<1) >> 1
}

// PM4_ME_INIT: drops the frame in progress and clears the interrupt lines
func (dev *Device) reset() {
	dev.draw = NewDrawData()
	dev.Irq.Status = 0
	dev.l.Debug("Micro engine initialized")
}

// PM4_INTERRUPT: raises the interrupt lines in the CPU mask
func (dev *Device) interrupt(payload *emulator.PayloadReader) error {
	cpuMask, err := payload.Word(0)
	if err != nil {
		return err
	}

	dev.Irq.SetHigh(cpuMask)
	dev.l.WithField("cpu_mask", fmt.Sprintf("0x%08x", cpuMask)).Debug("Interrupt raised")

	if dev.OnInterrupt != nil {
		dev.OnInterrupt(cpuMask)
	}
	return nil
}

// PM4_EVENT_WRITE: records the event type of the initiator
func (dev *Device) eventWrite(payload *emulator.PayloadReader) error {
	initiator, err := payload.Word(0)
	if err != nil {
		return err
	}

	dev.LastEvent = initiator & 0x3f
	dev.EventCount++
	return nil
}

// PM4_REG_RMW: register = (register & and) | or. Bit 31 of the info word
// takes the AND mask from a register, bit 30 takes the OR mask from one
func (dev *Device) regRmw(payload *emulator.PayloadReader) error {
	if payload.Len() < 3 {
		return fmt.Errorf("%w: REG_RMW with %d words", ErrShortPayload, payload.Len())
	}

	words, err := payload.Words()
	if err != nil {
		return err
	}
	info, andMask, orMask := words[0], words[1], words[2]

	reg := info & 0x1fff
	value := dev.Register(reg)
	if info>>31 != 0 {
		value &= dev.Register(andMask & 0x1fff)
	} else {
		value &= andMask
	}
	if (info>>30)&1 != 0 {
		value |= dev.Register(orMask & 0x1fff)
	} else {
		value |= orMask
	}

	dev.WriteRegister(reg, value)
	return nil
}

// PM4_SET_CONSTANT: writes the rest of the payload into a constant bank. The
// first word holds the bank in bits [23:16] and the index in bits [10:0]
func (dev *Device) setConstant(payload *emulator.PayloadReader) error {
	offsetType, err := payload.Word(0)
	if err != nil {
		return err
	}

	index := offsetType & 0x7ff
	switch (offsetType >> 16) & 0xff {
	case 0:
		index += REG_SHADER_CONSTANT_ALU
	case 1:
		index += REG_SHADER_CONSTANT_FETCH
	case 2:
		index += REG_SHADER_CONSTANT_BOOL
	case 3:
		index += REG_SHADER_CONSTANT_LOOP
	case 4:
		index += REG_CONTEXT_REGISTERS
	default:
		return fmt.Errorf("unknown constant bank %d", (offsetType>>16)&0xff)
	}

	for i := uint32(1); i < payload.Len(); i++ {
		val, err := payload.Word(i)
		if err != nil {
			return err
		}
		dev.WriteRegister(index, val)
		index++
	}
	return nil
}

// PM4_DRAW_INDX_2 with immediate vertices. The initiator holds the primitive
// type in bits [5:0] and the vertex count in bits [31:16]; every vertex is a
// position word followed by a color word
func (dev *Device) drawImmediate(payload *emulator.PayloadReader) error {
	initiator, err := payload.Word(0)
	if err != nil {
		return err
	}

	prim := PrimitiveType(initiator & 0x3f)
	count := initiator >> 16
	if payload.Len() < 1+2*count {
		return fmt.Errorf("%w: %d vertices in %d words", ErrShortPayload, count, payload.Len())
	}

	offX, offY := dev.WindowOffset()
	vertices := make([]Vertex, count)
	for i := range vertices {
		pos, err := payload.Word(1 + 2*uint32(i))
		if err != nil {
			return err
		}
		clr, err := payload.Word(2 + 2*uint32(i))
		if err != nil {
			return err
		}

		p := Vec2FromWord(pos)
		p.X += offX
		p.Y += offY
		vertices[i] = NewVertex(p, ColorFromWord(clr))
	}

	if !dev.draw.PushPrimitive(prim, vertices) {
		dev.metrics.unsupportedDraws.Inc(1)
		dev.l.WithField("primitive", prim).Debug("Ignoring unsupported primitive type")
		return nil
	}

	dev.metrics.draws.Inc(1)
	return nil
}

// Completes the frame in progress
func (dev *Device) publish() {
	dev.mu.Lock()
	dev.frame = Frame{
		Number:   dev.frame.Number + 1,
		Vertices: dev.draw.VtxBuffer,
	}
	dev.mu.Unlock()

	dev.draw = NewDrawData()
	dev.metrics.frames.Inc(1)
}
