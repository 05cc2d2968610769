package emulator

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Loads a raw command stream dump: a sequence of 32 bit words stored in
// `order`. The dump length must be a multiple of 4 bytes
func LoadStream(r io.Reader, order binary.ByteOrder) ([]uint32, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("invalid stream size (expected a multiple of 4, got %d (bytes))", len(data))
	}

	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = order.Uint32(data[i*4:])
	}
	return words, nil
}

// Splits a command stream into whole packets
func SplitPackets(words []uint32) ([][]uint32, error) {
	var packets [][]uint32
	for pos := 0; pos < len(words); {
		p, err := DecodeHeader(words[pos])
		if err != nil {
			return nil, fmt.Errorf("word %d: %w", pos, err)
		}

		n := int(p.Words())
		if pos+n > len(words) {
			return nil, fmt.Errorf("word %d: %w: %s truncated at %d words", pos, ErrOutOfRange, p, len(words)-pos)
		}

		packets = append(packets, words[pos:pos+n])
		pos += n
	}
	return packets, nil
}
