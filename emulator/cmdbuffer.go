package emulator

// Encodes a type 0 header writing `count` words starting at register `base`
func Type0Header(base, count uint32, oneRegister bool) uint32 {
	h := uint32(PACKET_TYPE0)<<30 | ((count-1)&PACKET_COUNT_MASK)<<16 | base&TYPE0_REGISTER_MASK
	if oneRegister {
		h |= 1 << 15
	}
	return h
}

// Encodes a type 1 header writing registers `a` and `b`
func Type1Header(a, b uint32) uint32 {
	return uint32(PACKET_TYPE1)<<30 | (b&TYPE1_REGISTER_MASK)<<11 | a&TYPE1_REGISTER_MASK
}

// Encodes a type 2 filler spanning `skip` words including the header
func Type2Header(skip uint32) uint32 {
	return uint32(PACKET_TYPE2)<<30 | (skip&PACKET_COUNT_MASK)<<16
}

// Encodes a type 3 header for `opcode` followed by `count` payload words
func Type3Header(opcode, count uint32) uint32 {
	return uint32(PACKET_TYPE3)<<30 | ((count-1)&PACKET_COUNT_MASK)<<16 | (opcode&TYPE3_OPCODE_MASK)<<8
}

// Buffer of encoded packet words, used by the producer side to assemble
// command streams before they are copied into the ring
type CommandBuffer struct {
	Buffer  []uint32
	Packets int // Number of packets queued in the buffer
}

func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{}
}

// Clears the command buffer
func (cmdbuf *CommandBuffer) Clear() {
	cmdbuf.Buffer = cmdbuf.Buffer[:0]
	cmdbuf.Packets = 0
}

// Pushes raw words into the command buffer
func (cmdbuf *CommandBuffer) PushWord(words ...uint32) {
	cmdbuf.Buffer = append(cmdbuf.Buffer, words...)
}

// Returns the word at `index`
func (cmdbuf *CommandBuffer) Get(index int) uint32 {
	return cmdbuf.Buffer[index]
}

// Returns the number of words queued
func (cmdbuf *CommandBuffer) Len() int {
	return len(cmdbuf.Buffer)
}

// Returns the queued words
func (cmdbuf *CommandBuffer) Words() []uint32 {
	return cmdbuf.Buffer
}

// Queues a type 0 packet writing `values` to consecutive registers from `base`
func (cmdbuf *CommandBuffer) WriteRegisters(base uint32, values ...uint32) *CommandBuffer {
	if len(values) == 0 {
		return cmdbuf
	}
	cmdbuf.PushWord(Type0Header(base, uint32(len(values)), false))
	cmdbuf.PushWord(values...)
	cmdbuf.Packets++
	return cmdbuf
}

// Queues a type 0 packet writing every value to register `reg`
func (cmdbuf *CommandBuffer) WriteRegister(reg uint32, values ...uint32) *CommandBuffer {
	if len(values) == 0 {
		return cmdbuf
	}
	cmdbuf.PushWord(Type0Header(reg, uint32(len(values)), true))
	cmdbuf.PushWord(values...)
	cmdbuf.Packets++
	return cmdbuf
}

// Queues a type 1 packet
func (cmdbuf *CommandBuffer) WriteRegisterPair(a, va, b, vb uint32) *CommandBuffer {
	cmdbuf.PushWord(Type1Header(a, b), va, vb)
	cmdbuf.Packets++
	return cmdbuf
}

// Queues a type 2 filler of `skip` words (at least one)
func (cmdbuf *CommandBuffer) Nop(skip uint32) *CommandBuffer {
	if skip == 0 {
		skip = 1
	}
	cmdbuf.PushWord(Type2Header(skip))
	for i := uint32(1); i < skip; i++ {
		cmdbuf.PushWord(0)
	}
	cmdbuf.Packets++
	return cmdbuf
}

// Queues a type 3 packet. The count field cannot express an empty payload,
// so a single zero word is queued instead
func (cmdbuf *CommandBuffer) Command(opcode uint32, payload ...uint32) *CommandBuffer {
	if len(payload) == 0 {
		payload = []uint32{0}
	}
	cmdbuf.PushWord(Type3Header(opcode, uint32(len(payload))))
	cmdbuf.PushWord(payload...)
	cmdbuf.Packets++
	return cmdbuf
}

// Queues an indirect buffer call of `length` words at GPU address `addr`
func (cmdbuf *CommandBuffer) IndirectBuffer(addr, length uint32) *CommandBuffer {
	return cmdbuf.Command(PM4_INDIRECT_BUFFER, addr, length&INDIRECT_LENGTH_MASK)
}
