package grid

import "math/bits"

// Mask512 marks which of the 8³ voxels in a leaf are active.
type Mask512 [8]uint64

// Mask4096 marks which of the 16³ children of a lower node exist.
type Mask4096 [64]uint64

// Mask32768 marks which of the 32³ children of an upper node exist.
type Mask32768 [512]uint64

func setBit(words []uint64, i uint32) {
	words[i>>6] |= 1 << (i & 63)
}

func clearBit(words []uint64, i uint32) {
	words[i>>6] &^= 1 << (i & 63)
}

func getBit(words []uint64, i uint32) bool {
	return words[i>>6]&(1<<(i&63)) != 0
}

func countOn(words []uint64) int {
	n := 0
	for _, w := range words {
		n += bits.OnesCount64(w)
	}
	return n
}

func isOff(words []uint64) bool {
	for _, w := range words {
		if w != 0 {
			return false
		}
	}
	return true
}

// forEachOn calls fn with the index of every set bit in ascending order.
func forEachOn(words []uint64, fn func(i uint32)) {
	for wi, w := range words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			fn(uint32(wi*64 + b))
			w &= w - 1
		}
	}
}

// Set marks voxel i active.
func (m *Mask512) Set(i uint32) { setBit(m[:], i) }

// Clear marks voxel i inactive.
func (m *Mask512) Clear(i uint32) { clearBit(m[:], i) }

// Get reports whether voxel i is active.
func (m *Mask512) Get(i uint32) bool { return getBit(m[:], i) }

// CountOn returns the number of active voxels.
func (m *Mask512) CountOn() int { return countOn(m[:]) }

// IsOff reports whether no voxel is active.
func (m *Mask512) IsOff() bool { return isOff(m[:]) }

// ForEachOn visits the active voxel indices in ascending order.
func (m *Mask512) ForEachOn(fn func(i uint32)) { forEachOn(m[:], fn) }

func (m *Mask4096) Set(i uint32) {
	setBit(m[:], i)
}

func (m *Mask4096) Clear(i uint32) {
	clearBit(m[:], i)
}

func (m *Mask4096) Get(i uint32) bool {
	return getBit(m[:], i)
}

func (m *Mask4096) IsOff() bool {
	return isOff(m[:])
}

func (m *Mask32768) Set(i uint32) {
	setBit(m[:], i)
}

func (m *Mask32768) Clear(i uint32) {
	clearBit(m[:], i)
}

func (m *Mask32768) Get(i uint32) bool {
	return getBit(m[:], i)
}

func (m *Mask32768) IsOff() bool {
	return isOff(m[:])
}
