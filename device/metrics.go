package device

import (
	"fmt"

	"github.com/rcrowley/go-metrics"
	"github.com/zeozeozeo/gopm4/emulator"
)

// Returns the metric name of a type 3 opcode
func OpcodeName(opcode uint32) string {
	switch opcode {
	case emulator.PM4_ME_INIT:
		return "me_init"
	case emulator.PM4_NOP:
		return "nop"
	case emulator.PM4_INTERRUPT:
		return "interrupt"
	case emulator.PM4_EVENT_WRITE:
		return "event_write"
	case emulator.PM4_REG_RMW:
		return "reg_rmw"
	case emulator.PM4_SET_CONSTANT:
		return "set_constant"
	case emulator.PM4_DRAW_INDX_2:
		return "draw_indx_2"
	case emulator.PM4_XE_SWAP:
		return "xe_swap"
	}
	return "unknown"
}

type deviceMetrics struct {
	opcodes          map[string]metrics.Counter
	registerWrites   metrics.Counter
	draws            metrics.Counter
	unsupportedDraws metrics.Counter
	frames           metrics.Counter
}

func newDeviceMetrics() *deviceMetrics {
	return &deviceMetrics{
		opcodes:          make(map[string]metrics.Counter),
		registerWrites:   metrics.GetOrRegisterCounter("gpu.device.registers.writes", nil),
		draws:            metrics.GetOrRegisterCounter("gpu.device.draws", nil),
		unsupportedDraws: metrics.GetOrRegisterCounter("gpu.device.draws.unsupported", nil),
		frames:           metrics.GetOrRegisterCounter("gpu.device.frames", nil),
	}
}

func (m *deviceMetrics) opcode(opcode uint32) metrics.Counter {
	name := OpcodeName(opcode)
	c, ok := m.opcodes[name]
	if !ok {
		c = metrics.GetOrRegisterCounter(fmt.Sprintf("gpu.device.opcodes.%s", name), nil)
		m.opcodes[name] = c
	}
	return c
}
