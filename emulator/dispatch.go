package emulator

import (
	"context"
	"fmt"
)

// Executes the primary ring packets from index `start` up to index `end`,
// advancing the read index after every packet
func (cp *CommandProcessor) executePrimaryBuffer(ctx context.Context, start, end uint32, progress *Progress) error {
	args := cp.ring.Context(start, end)

	for args.Remaining > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		addr := args.Ptr
		words, err := cp.executePacket(ctx, &args, 0)
		if err != nil {
			return withPrimary(addr, err)
		}

		cp.readIndex.Store(cp.ring.Index(args.Ptr))
		progress.Packets++
		progress.Words += words

		if cp.readback.Tick() {
			cp.writeReadback()
		}
	}

	return nil
}

// Executes the indirect buffer described by the payload of an indirect
// buffer packet. It runs on its own linear context and never touches the
// primary ring cursor.
//
// The outermost buffer is checked as a whole (nested buffers included)
// before its first packet reaches the driver, so a bad buffer fails without
// side effects. Cancellation is only observed during that check
func (cp *CommandProcessor) executeIndirectBuffer(ctx context.Context, payload []uint32, depth int) error {
	args, err := cp.indirectContext(payload, depth)
	if err != nil {
		return err
	}

	if depth == 1 {
		if err := cp.validateBuffer(ctx, args, depth); err != nil {
			return err
		}
	}

	for args.Remaining > 0 {
		if _, err := cp.executePacket(ctx, &args, depth); err != nil {
			return err
		}
	}

	return nil
}

// Returns the linear context of the indirect buffer at nesting `depth`
func (cp *CommandProcessor) indirectContext(payload []uint32, depth int) (ExecutionContext, error) {
	if depth > cp.opts.MaxIndirection {
		return ExecutionContext{}, fmt.Errorf("%w: depth %d, limit %d", ErrIndirectionLimitExceeded, depth, cp.opts.MaxIndirection)
	}
	if len(payload) < 2 {
		return ExecutionContext{}, fmt.Errorf("%w: indirect buffer packet with %d payload words", ErrMalformedHeader, len(payload))
	}

	return NewLinearContext(GPUToPhysical(payload[0]), payload[1]&INDIRECT_LENGTH_MASK)
}

// Walks every packet of a buffer without dispatching anything: headers
// must decode, packets must fit, payloads must be readable and nested
// buffers must obey the same rules
func (cp *CommandProcessor) validateBuffer(ctx context.Context, args ExecutionContext, depth int) error {
	for args.Remaining > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		addr := args.Ptr
		p, payload, err := cp.readPacket(&args)
		if err != nil {
			return err
		}

		if p.IsIndirectBuffer() {
			nested, err := cp.indirectContext(payload, depth+1)
			if err != nil {
				return packetError(addr, uint32(p.Header), err)
			}
			if err := cp.validateBuffer(ctx, nested, depth+1); err != nil {
				return packetError(addr, uint32(p.Header), err)
			}
		}

		if err := args.Advance(p.Words()); err != nil {
			return packetError(addr, uint32(p.Header), err)
		}
	}

	return nil
}

// Decodes the packet at the context pointer and reads its whole payload.
// The context is not moved
func (cp *CommandProcessor) readPacket(args *ExecutionContext) (Packet, []uint32, error) {
	addr := args.Ptr

	header, err := cp.mem.ReadWord(addr)
	if err != nil {
		return Packet{}, nil, packetError(addr, 0, err)
	}

	p, err := DecodeHeader(header)
	if err != nil {
		return Packet{}, nil, packetError(addr, header, err)
	}

	if p.Words() > args.Remaining {
		err = fmt.Errorf("%w: %s spans %d words, %d committed", ErrOutOfRange, p, p.Words(), args.Remaining)
		return Packet{}, nil, packetError(addr, header, err)
	}

	// filler words are never looked at
	if p.Kind == PACKET_TYPE2 {
		return p, nil, nil
	}

	payload, err := newPayloadReader(cp.mem, *args, p.Count).Words()
	if err != nil {
		return Packet{}, nil, packetError(addr, header, err)
	}

	return p, payload, nil
}

// Decodes and dispatches the packet at the context pointer, then advances
// past it. Returns the number of words consumed. The context is left
// untouched on failure
func (cp *CommandProcessor) executePacket(ctx context.Context, args *ExecutionContext, depth int) (uint32, error) {
	addr := args.Ptr

	p, payload, err := cp.readPacket(args)
	if err != nil {
		return 0, err
	}

	cp.Debugger.packetAt(addr, p, depth)

	reader := newPayloadReader(cp.mem, *args, p.Count)
	if err := cp.dispatch(ctx, p, payload, reader, depth); err != nil {
		return 0, packetError(addr, uint32(p.Header), err)
	}

	if err := args.Advance(p.Words()); err != nil {
		return 0, packetError(addr, uint32(p.Header), err)
	}

	cp.metrics.Packet(p)
	return p.Words(), nil
}

// Routes a decoded packet to the driver. `payload` holds the payload words
// already read from guest memory
func (cp *CommandProcessor) dispatch(ctx context.Context, p Packet, payload []uint32, reader *PayloadReader, depth int) error {
	switch p.Kind {
	case PACKET_TYPE0:
		reg := p.BaseRegister
		for _, val := range payload {
			cp.writeRegister(reg, val)
			if !p.OneRegister {
				reg++
			}
		}
	case PACKET_TYPE1:
		cp.writeRegister(p.BaseRegister, payload[0])
		cp.writeRegister(p.RegisterB, payload[1])
	case PACKET_TYPE2:
		// filler
	case PACKET_TYPE3:
		if p.IsIndirectBuffer() {
			return cp.executeIndirectBuffer(ctx, payload, depth+1)
		}
		return cp.driver.ExecuteOpcode(p.Opcode, reader)
	}
	return nil
}

func (cp *CommandProcessor) writeRegister(reg, val uint32) {
	cp.Debugger.registerWrite(reg, val)
	cp.driver.WriteRegister(reg, val)
}
