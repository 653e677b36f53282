// Package backend implements the pass manager and the four builtin passes:
// register allocation, prolog/epilogue expansion, legalization and constant
// propagation, plus the final encode stage.
package backend

import "swc/internal/micro"

// RegSet is a 32-slot bitmask over a register class's physical index
// space.
type RegSet uint32

// NewRegSet returns a RegSet containing exactly the given physical indices.
func NewRegSet(indices ...uint32) RegSet {
	var s RegSet
	for _, i := range indices {
		s |= 1 << i
	}
	return s
}

// Has reports whether index is a member.
func (s RegSet) Has(index uint32) bool { return s&(1<<index) != 0 }

// Add returns s with index added.
func (s RegSet) Add(index uint32) RegSet { return s | (1 << index) }

// Remove returns s with index removed.
func (s RegSet) Remove(index uint32) RegSet { return s &^ (1 << index) }

// Sub returns the set difference s \ other.
func (s RegSet) Sub(other RegSet) RegSet { return s &^ other }

// allPhysicalIndices is every physical GPR/XMM index, 0..15.
var allPhysicalIndices = func() []uint32 {
	idx := make([]uint32, 16)
	for i := range idx {
		idx[i] = uint32(i)
	}
	return idx
}()

// AllPhysical is the full 16-register set for either class.
var AllPhysical = NewRegSet(allPhysicalIndices...)

// regSetFromRegs builds a RegSet from a slice of physical MicroRegs.
func regSetFromRegs(regs []micro.MicroReg) RegSet {
	var s RegSet
	for _, r := range regs {
		s = s.Add(r.Index())
	}
	return s
}

// Lowest returns the lowest-index member of s and true, or false if s is
// empty. Used to break free-register ties by lowest index.
func (s RegSet) Lowest() (uint32, bool) {
	for i := uint32(0); i < 32; i++ {
		if s.Has(i) {
			return i, true
		}
	}
	return 0, false
}
