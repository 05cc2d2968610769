package device

// State of the interrupt lines raised by the command stream
type IrqState struct {
	Status uint32 // Raised interrupt lines, one bit per CPU
	Mask   uint32 // Enabled interrupt lines
}

// Returns a new interrupt instance with every line enabled
func NewIrqState() *IrqState {
	return &IrqState{Mask: 0xffffffff}
}

// Returns true if any interrupt is active
func (state *IrqState) Active() bool {
	return (state.Status & state.Mask) != 0
}

// Clears the lines set in `ack`
func (state *IrqState) Acknowledge(ack uint32) {
	state.Status &^= ack
}

func (state *IrqState) SetMask(mask uint32) {
	state.Mask = mask
}

// Raises the lines set in `cpuMask`
func (state *IrqState) SetHigh(cpuMask uint32) {
	state.Status |= cpuMask
}
