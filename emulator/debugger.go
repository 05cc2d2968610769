package emulator

import (
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/zeozeozeo/gopm4/config"
)

// Packet address breakpoints and register watchpoints. Hits are logged and
// counted, execution is not interrupted
type Debugger struct {
	l             *logrus.Logger
	Breakpoints   []uint32 // Packet header addresses
	RegisterWatch []uint32 // Register indices
	Hits          uint64   // Number of breakpoint and watchpoint hits
	TracePackets  bool     // Log every decoded packet at debug level
}

func NewDebugger(l *logrus.Logger) *Debugger {
	return &Debugger{l: l}
}

// Builds a debugger from the `debug` config section
func NewDebuggerFromConfig(l *logrus.Logger, c *config.C) *Debugger {
	debugger := NewDebugger(l)
	debugger.TracePackets = c.GetBool("debug.trace", false)

	for _, s := range c.GetStringSlice("debug.breakpoints", nil) {
		addr, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			l.WithField("breakpoint", s).WithError(err).Warn("Ignoring invalid breakpoint")
			continue
		}
		debugger.AddBreakpoint(uint32(addr))
	}

	for _, s := range c.GetStringSlice("debug.watch_registers", nil) {
		reg, err := strconv.ParseUint(s, 0, 32)
		if err != nil {
			l.WithField("register", s).WithError(err).Warn("Ignoring invalid register watch")
			continue
		}
		debugger.AddRegisterWatch(uint32(reg))
	}

	return debugger
}

// Adds a breakpoint when the packet at `addr` is about to be executed
func (debugger *Debugger) AddBreakpoint(addr uint32) {
	// check if that breakpoint already exists
	for _, breakpoint := range debugger.Breakpoints {
		if breakpoint == addr {
			return
		}
	}
	debugger.Breakpoints = append(debugger.Breakpoints, addr)
}

// Deletes a breakpoint at `addr`. Does nothing if it doesn't exist
func (debugger *Debugger) DeleteBreakpoint(addr uint32) {
	for idx, breakpoint := range debugger.Breakpoints {
		if breakpoint == addr {
			debugger.Breakpoints = append(debugger.Breakpoints[:idx], debugger.Breakpoints[idx+1:]...)
			return
		}
	}
}

// Adds a watchpoint for writes to register `reg`
func (debugger *Debugger) AddRegisterWatch(reg uint32) {
	for _, watch := range debugger.RegisterWatch {
		if watch == reg {
			return
		}
	}
	debugger.RegisterWatch = append(debugger.RegisterWatch, reg)
}

// Deletes the watchpoint on register `reg`. Does nothing if it doesn't exist
func (debugger *Debugger) DeleteRegisterWatch(reg uint32) {
	for idx, watch := range debugger.RegisterWatch {
		if watch == reg {
			debugger.RegisterWatch = append(
				debugger.RegisterWatch[:idx],
				debugger.RegisterWatch[idx+1:]...,
			)
			return
		}
	}
}

// Called by the command processor before a packet is dispatched
func (debugger *Debugger) packetAt(addr uint32, p Packet, depth int) {
	if debugger == nil {
		return
	}

	if debugger.TracePackets {
		debugger.l.WithFields(logrus.Fields{
			"addr":   addr,
			"depth":  depth,
			"packet": p.String(),
		}).Debug("Executing packet")
	}

	for _, breakpoint := range debugger.Breakpoints {
		if breakpoint == addr {
			debugger.Hits++
			debugger.l.WithFields(logrus.Fields{
				"addr":   addr,
				"depth":  depth,
				"packet": p.String(),
			}).Info("Reached breakpoint")
			return
		}
	}
}

// Called by the command processor before a register write reaches the driver
func (debugger *Debugger) registerWrite(reg, val uint32) {
	if debugger == nil {
		return
	}

	for _, watch := range debugger.RegisterWatch {
		if watch == reg {
			debugger.Hits++
			debugger.l.WithFields(logrus.Fields{
				"register": reg,
				"value":    val,
			}).Info("Triggered register watchpoint")
			return
		}
	}
}
