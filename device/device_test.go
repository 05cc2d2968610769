package device

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeozeozeo/gopm4/emulator"
	"github.com/zeozeozeo/gopm4/test"
)

const ringBase = 0x1000

// Runs `cmd` through a command processor driving `dev`
func execute(t *testing.T, dev *Device, cmd *emulator.CommandBuffer) error {
	t.Helper()

	opts := emulator.DefaultOptions()
	opts.PageWords = 64
	ram := emulator.NewRAM(0x4000)
	cp, err := emulator.NewCommandProcessor(test.NewLogger(), ram, opts)
	require.NoError(t, err)
	require.NoError(t, cp.Initialize(dev, ringBase, 1))
	require.NoError(t, ram.WriteWords(ringBase, cmd.Words()...))

	cp.UpdateWritePointer(uint32(cmd.Len()))
	_, err = cp.Pump(context.Background())
	return err
}

func position(x, y int16) uint32 {
	return uint32(uint16(y))<<16 | uint32(uint16(x))
}

func TestDevice_Registers(t *testing.T) {
	dev := NewDevice(test.NewLogger())

	cmd := emulator.NewCommandBuffer().
		WriteRegisters(0x100, 1, 2, 3).
		WriteRegisterPair(0x10, 0xf0f0, 0x11, 0x0ff0).
		// reg 0x10 = (0xf0f0 & 0xff00) | 0x000f
		Command(emulator.PM4_REG_RMW, 0x10, 0xff00, 0x000f).
		// reg 0x11 = (0x0ff0 & reg 0x102) | reg 0x101
		Command(emulator.PM4_REG_RMW, 1<<31|1<<30|0x11, 0x102, 0x101)
	require.NoError(t, execute(t, dev, cmd))

	assert.Equal(t, uint32(1), dev.Register(0x100))
	assert.Equal(t, uint32(3), dev.Register(0x102))
	assert.Equal(t, uint32(0xf00f), dev.Register(0x10))
	assert.Equal(t, uint32(0x2), dev.Register(0x11))
}

func TestDevice_SetConstant(t *testing.T) {
	dev := NewDevice(test.NewLogger())

	cmd := emulator.NewCommandBuffer().
		Command(emulator.PM4_SET_CONSTANT, 0<<16|4, 10, 11).
		Command(emulator.PM4_SET_CONSTANT, 1<<16, 20).
		Command(emulator.PM4_SET_CONSTANT, 4<<16|0x80, 0x00100010)
	require.NoError(t, execute(t, dev, cmd))

	assert.Equal(t, uint32(10), dev.Register(REG_SHADER_CONSTANT_ALU+4))
	assert.Equal(t, uint32(11), dev.Register(REG_SHADER_CONSTANT_ALU+5))
	assert.Equal(t, uint32(20), dev.Register(REG_SHADER_CONSTANT_FETCH))

	x, y := dev.WindowOffset()
	assert.Equal(t, int16(16), x)
	assert.Equal(t, int16(16), y)

	err := execute(t, dev, emulator.NewCommandBuffer().Command(emulator.PM4_SET_CONSTANT, 9<<16, 1))
	var pe *emulator.PacketError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, uint32(ringBase), pe.Addr)
}

func TestDevice_WindowOffset(t *testing.T) {
	dev := NewDevice(test.NewLogger())
	dev.WriteRegister(REG_PA_SC_WINDOW_OFFSET, 0x7fff<<16|0x7ffe)

	x, y := dev.WindowOffset()
	assert.Equal(t, int16(-2), x)
	assert.Equal(t, int16(-1), y)
}

func TestDevice_Interrupt(t *testing.T) {
	dev := NewDevice(test.NewLogger())

	var raised []uint32
	dev.OnInterrupt = func(cpuMask uint32) {
		raised = append(raised, cpuMask)
	}

	cmd := emulator.NewCommandBuffer().
		Command(emulator.PM4_INTERRUPT, 0x1).
		Command(emulator.PM4_EVENT_WRITE, 0x116).
		Command(emulator.PM4_INTERRUPT, 0x4)
	require.NoError(t, execute(t, dev, cmd))

	assert.Equal(t, []uint32{0x1, 0x4}, raised)
	assert.Equal(t, uint32(0x5), dev.Irq.Status)
	assert.True(t, dev.Irq.Active())
	assert.Equal(t, uint32(0x16), dev.LastEvent)
	assert.Equal(t, uint64(1), dev.EventCount)

	dev.Irq.Acknowledge(0x1)
	assert.Equal(t, uint32(0x4), dev.Irq.Status)
	dev.Irq.SetMask(0x1)
	assert.False(t, dev.Irq.Active())

	require.NoError(t, execute(t, dev, emulator.NewCommandBuffer().Command(emulator.PM4_ME_INIT, 0)))
	assert.Zero(t, dev.Irq.Status)
}

func TestDevice_Draw(t *testing.T) {
	dev := NewDevice(test.NewLogger())
	red := uint32(0x0000ff)

	cmd := emulator.NewCommandBuffer().
		WriteRegister(REG_PA_SC_WINDOW_OFFSET, position(10, 20)).
		Command(emulator.PM4_DRAW_INDX_2,
			uint32(3)<<16|uint32(PRIM_TRIANGLE_LIST),
			position(0, 0), red,
			position(100, 0), red,
			position(0, -5), red,
		).
		Command(emulator.PM4_DRAW_INDX_2,
			uint32(4)<<16|uint32(PRIM_TRIANGLE_STRIP),
			position(0, 0), 0xff00,
			position(1, 0), 0xff00,
			position(0, 1), 0xff00,
			position(1, 1), 0xff00,
		).
		Command(emulator.PM4_DRAW_INDX_2, uint32(PRIM_POINT_LIST))
	require.NoError(t, execute(t, dev, cmd))

	frame := dev.Frame()
	assert.Equal(t, uint64(1), frame.Number)
	require.Len(t, frame.Vertices, 9)
	assert.Equal(t, NewVertex(Vec2{X: 10, Y: 20}, color.RGBA{R: 0xff, A: 0xff}), frame.Vertices[0])
	assert.Equal(t, Vec2{X: 10, Y: 15}, frame.Vertices[2].Position)
	assert.Equal(t, color.RGBA{G: 0xff, A: 0xff}, frame.Vertices[3].Color)

	// nothing new was drawn, the frame stays
	require.NoError(t, execute(t, dev, emulator.NewCommandBuffer().Nop(1)))
	assert.Equal(t, uint64(1), dev.Frame().Number)

	// an explicit swap completes an empty frame
	require.NoError(t, execute(t, dev, emulator.NewCommandBuffer().Command(emulator.PM4_XE_SWAP, 0)))
	assert.Equal(t, uint64(2), dev.Frame().Number)
	assert.Empty(t, dev.Frame().Vertices)
}

func TestDevice_DrawShortPayload(t *testing.T) {
	dev := NewDevice(test.NewLogger())

	cmd := emulator.NewCommandBuffer().
		Command(emulator.PM4_DRAW_INDX_2, uint32(3)<<16|uint32(PRIM_TRIANGLE_LIST), position(0, 0), 0)
	err := execute(t, dev, cmd)
	assert.ErrorIs(t, err, ErrShortPayload)
	assert.Zero(t, dev.Frame().Number)

	err = execute(t, dev, emulator.NewCommandBuffer().Command(emulator.PM4_REG_RMW, 1, 2))
	assert.ErrorIs(t, err, ErrShortPayload)
}

func TestDrawData_PushPrimitive(t *testing.T) {
	v := make([]Vertex, 6)
	for i := range v {
		v[i] = NewVertex(Vec2{X: int16(i)}, color.RGBA{A: 255})
	}

	tests := []struct {
		prim PrimitiveType
		n    int
		ok   bool
	}{
		{PRIM_TRIANGLE_LIST, 6, true},
		{PRIM_TRIANGLE_STRIP, 12, true},
		{PRIM_TRIANGLE_FAN, 12, true},
		{PRIM_RECTANGLE_LIST, 12, true},
		{PRIM_QUAD_LIST, 6, true},
		{PRIM_LINE_LIST, 0, false},
	}

	for _, tc := range tests {
		dd := NewDrawData()
		assert.Equal(t, tc.ok, dd.PushPrimitive(tc.prim, v), "primitive %d", tc.prim)
		assert.Equal(t, tc.n, dd.Len(), "primitive %d", tc.prim)
	}

	// the implied rectangle corner
	dd := NewDrawData()
	dd.PushPrimitive(PRIM_RECTANGLE_LIST, []Vertex{
		NewVertex(Vec2{0, 0}, color.RGBA{}),
		NewVertex(Vec2{4, 0}, color.RGBA{}),
		NewVertex(Vec2{0, 3}, color.RGBA{}),
	})
	require.Equal(t, 6, dd.Len())
	assert.Equal(t, Vec2{4, 3}, dd.VtxBuffer[5].Position)
}

func TestOpcodeName(t *testing.T) {
	assert.Equal(t, "draw_indx_2", OpcodeName(emulator.PM4_DRAW_INDX_2))
	assert.Equal(t, "unknown", OpcodeName(0x7f))
}
