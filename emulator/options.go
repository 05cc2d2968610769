package emulator

import (
	"fmt"

	"github.com/zeozeozeo/gopm4/config"
)

const (
	DEFAULT_PAGE_WORDS = 1024 // 4KB ring buffer pages
	DEFAULT_SPIN_COUNT = 64   // Idle checks before the consumer blocks
)

// Tunables of the command processor
type Options struct {
	PageWords      uint32 // Words per ring buffer page
	MaxIndirection int    // Deepest allowed indirect buffer nesting
	SpinCount      int    // Idle checks before Run blocks on the handshake
}

func DefaultOptions() Options {
	return Options{
		PageWords:      DEFAULT_PAGE_WORDS,
		MaxIndirection: DEFAULT_INDIRECT_DEPTH,
		SpinCount:      DEFAULT_SPIN_COUNT,
	}
}

// Reads the `ring` config section
func NewOptionsFromConfig(c *config.C) (Options, error) {
	opts := Options{
		PageWords:      c.GetUint32("ring.page_words", DEFAULT_PAGE_WORDS),
		MaxIndirection: c.GetInt("ring.max_indirection", DEFAULT_INDIRECT_DEPTH),
		SpinCount:      c.GetInt("ring.spin", DEFAULT_SPIN_COUNT),
	}
	return opts, opts.Validate()
}

func (opts Options) Validate() error {
	if opts.PageWords == 0 || opts.PageWords&(opts.PageWords-1) != 0 {
		return fmt.Errorf("%w: page size %d words is not a power of two", ErrInvalidConfiguration, opts.PageWords)
	}
	if opts.MaxIndirection < 0 {
		return fmt.Errorf("%w: negative indirection depth %d", ErrInvalidConfiguration, opts.MaxIndirection)
	}
	if opts.SpinCount < 0 {
		return fmt.Errorf("%w: negative spin count %d", ErrInvalidConfiguration, opts.SpinCount)
	}
	return nil
}
