package emulator

// Graphics device receiving the decoded command stream. Calls are made from
// the command processing goroutine, are synchronous and must not call back
// into the CommandProcessor
type Driver interface {
	// Writes `value` to register `index`
	WriteRegister(index, value uint32)
	// Executes a type 3 packet. The payload is read lazily through `payload`
	ExecuteOpcode(opcode uint32, payload *PayloadReader) error
}

// Optional driver capability: notifications about the command processor state
type EventHandler interface {
	HandleEvent(ev Event)
}

// Command processor notification
type Event uint8

const (
	EVENT_RING_RESET Event = 0 // The ring was (re)initialized, indices are 0
	EVENT_CAUGHT_UP  Event = 1 // A pump consumed everything up to the write pointer
)

func (ev Event) String() string {
	switch ev {
	case EVENT_RING_RESET:
		return "ring-reset"
	case EVENT_CAUGHT_UP:
		return "caught-up"
	}
	return "unknown"
}

// Sends `ev` to the driver if it handles events
func notify(driver Driver, ev Event) {
	if h, ok := driver.(EventHandler); ok {
		h.HandleEvent(ev)
	}
}
