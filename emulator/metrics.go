package emulator

import (
	"fmt"

	"github.com/rcrowley/go-metrics"
)

// Command processor counters, registered in the go-metrics default registry
type PacketMetrics struct {
	packets        [4]metrics.Counter // Indexed by PacketKind
	indirect       metrics.Counter
	words          metrics.Counter
	readbackWrites metrics.Counter
	readbackFaults metrics.Counter
	errors         metrics.Counter
}

func newPacketMetrics() *PacketMetrics {
	m := &PacketMetrics{
		indirect:       metrics.GetOrRegisterCounter("gpu.cp.packets.indirect", nil),
		words:          metrics.GetOrRegisterCounter("gpu.cp.words", nil),
		readbackWrites: metrics.GetOrRegisterCounter("gpu.cp.readback.writes", nil),
		readbackFaults: metrics.GetOrRegisterCounter("gpu.cp.readback.faults", nil),
		errors:         metrics.GetOrRegisterCounter("gpu.cp.errors", nil),
	}
	for i := range m.packets {
		m.packets[i] = metrics.GetOrRegisterCounter(fmt.Sprintf("gpu.cp.packets.%s", PacketKind(i)), nil)
	}
	return m
}

func (m *PacketMetrics) Packet(p Packet) {
	if m != nil {
		m.packets[p.Kind&3].Inc(1)
		m.words.Inc(int64(p.Words()))
		if p.IsIndirectBuffer() {
			m.indirect.Inc(1)
		}
	}
}

func (m *PacketMetrics) Readback(err error) {
	if m != nil {
		if err != nil {
			m.readbackFaults.Inc(1)
		} else {
			m.readbackWrites.Inc(1)
		}
	}
}

func (m *PacketMetrics) Error() {
	if m != nil {
		m.errors.Inc(1)
	}
}
