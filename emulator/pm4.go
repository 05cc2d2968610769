package emulator

// Packet kind, selected by the top 2 bits of every header word
type PacketKind uint8

const (
	PACKET_TYPE0 PacketKind = 0 // Burst of register writes to consecutive registers
	PACKET_TYPE1 PacketKind = 1 // Two register writes, indices packed in the header
	PACKET_TYPE2 PacketKind = 2 // Filler, skipped without side effects
	PACKET_TYPE3 PacketKind = 3 // Extended command with an opcode and a payload
)

func (kind PacketKind) String() string {
	switch kind {
	case PACKET_TYPE0:
		return "type0"
	case PACKET_TYPE1:
		return "type1"
	case PACKET_TYPE2:
		return "type2"
	case PACKET_TYPE3:
		return "type3"
	}
	return "unknown"
}

// Type 3 opcodes. Only the indirect buffer opcodes are interpreted by the
// command processor, everything else is forwarded to the driver
const (
	PM4_ME_INIT             = 0x48 // Initialize the micro engine
	PM4_NOP                 = 0x10 // Skip N 32-bit words to get to the next packet
	PM4_INDIRECT_BUFFER     = 0x3f // Execute a linear buffer of packets
	PM4_INDIRECT_BUFFER_PFD = 0x37 // Same as PM4_INDIRECT_BUFFER, prefetch variant
	PM4_WAIT_FOR_IDLE       = 0x26 // Wait for the engine to be idle
	PM4_WAIT_REG_MEM        = 0x3c // Wait until a register or memory location is a specific value
	PM4_REG_RMW             = 0x21 // Register read-modify-write
	PM4_COND_WRITE          = 0x45 // Conditional write to memory or register
	PM4_EVENT_WRITE         = 0x46 // Generate an event that creates a write to memory when completed
	PM4_EVENT_WRITE_SHD     = 0x58 // VS|PS done timestamp
	PM4_DRAW_INDX           = 0x22 // Initiate fetch of index buffer and draw
	PM4_DRAW_INDX_2         = 0x36 // Draw using supplied indices in packet
	PM4_SET_CONSTANT        = 0x2d // Load constant into chip and to memory
	PM4_LOAD_ALU_CONSTANT   = 0x2f // Load constants from memory
	PM4_IM_LOAD             = 0x27 // Load sequencer instruction memory (pointer-based)
	PM4_IM_LOAD_IMMEDIATE   = 0x2b // Load sequencer instruction memory (code embedded in packet)
	PM4_INVALIDATE_STATE    = 0x3b // Selective invalidation of state pointers
	PM4_INTERRUPT           = 0x54 // Generate interrupt from the command stream
	PM4_XE_SWAP             = 0x55 // Swap the front buffer
)

const (
	GPU_ADDRESS_MASK     = 0x1fffffff // GPU addresses map onto the 512MB physical space
	INDIRECT_LENGTH_MASK = 0xfffff    // Indirect buffer length field (words)
	TYPE0_REGISTER_MASK  = 0x7fff     // Type 0 base register, bits [14:0]
	TYPE1_REGISTER_MASK  = 0x7ff      // Type 1 register indices, 11 bits each
	PACKET_COUNT_MASK    = 0x3fff     // Count field, bits [29:16]
	TYPE3_OPCODE_MASK    = 0x7f       // Type 3 opcode, bits [14:8]
	TYPE1_RESERVED_MASK  = 0x3fc00000 // Type 1 bits [29:22] must be clear
	TYPE2_RESERVED_MASK  = 0x0000ffff // Type 2 bits [15:0] must be clear
	TYPE3_RESERVED_MASK  = 0x000000fe // Type 3 bits [7:1] must be clear
)

// Hardware indirect buffers cannot chain into further indirect buffers
const DEFAULT_INDIRECT_DEPTH = 1

// Returns whether `opcode` invokes an indirect buffer
func IsIndirectBufferOpcode(opcode uint32) bool {
	return opcode == PM4_INDIRECT_BUFFER || opcode == PM4_INDIRECT_BUFFER_PFD
}

// Translates a GPU address to a physical guest address
func GPUToPhysical(addr uint32) uint32 {
	return addr & GPU_ADDRESS_MASK
}
