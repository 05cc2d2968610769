package emulator

// A contiguous range of guest byte addresses
type Range struct {
	Start  uint32 // Start address
	Length uint32 // Length of the mapping in bytes
}

func NewRange(start uint32, length uint32) Range {
	return Range{Start: start, Length: length}
}

// Returns whether `addr` is located inside this range
func (r *Range) Contains(addr uint32) bool {
	return addr >= r.Start && addr-r.Start < r.Length
}

// Returns whether the `n` bytes starting at `addr` are all inside this range
func (r *Range) ContainsSpan(addr, n uint32) bool {
	if !r.Contains(addr) {
		return false
	}
	return uint64(addr-r.Start)+uint64(n) <= uint64(r.Length)
}

// Returns the offset between `addr` and the `Start` of the range.
// Does not check if the range contains the address, so if `addr`
// is smaller than `Start`, there will be an overflow
func (r *Range) Offset(addr uint32) uint32 {
	return addr - r.Start
}

// Returns the exclusive end address of the range
func (r *Range) End() uint64 {
	return uint64(r.Start) + uint64(r.Length)
}
