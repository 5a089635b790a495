// Copyright 2026 The Ashlar Engine Authors. All rights reserved.

package engine

import (
	"math"

	"github.com/ashlarengine/runtime/internal/bitm"
)

// invalidIndex is the sentinel raw value of an invalid Handle.
const invalidIndex = math.MaxUint32

// Handle identifies an element of a slotTable[T].
// It is a 32-bit opaque index; equality is by raw bits. The zero
// value is not itself special, but invalidIndex (all bits set) is
// reserved as the sentinel "invalid" handle — Handle[T]{} is a
// perfectly ordinary (if likely unassigned) slot reference, while
// the value returned by an unsuccessful create/lookup is always the
// Invalid constant for T.
type Handle[T any] struct {
	index uint32
}

// IsValid reports whether h is not the sentinel invalid handle.
// It does not report whether the slot h refers to is still live —
// that requires a table lookup, since the generation may have
// advanced past it.
func (h Handle[T]) IsValid() bool { return h.index != invalidIndex }

// slotEntry is what a slotTable stores per index: the live value,
// plus the generation it was created under.
type slotEntry[T any] struct {
	data T
	gen  uint32
	live bool
}

// slotTable stores values of type T behind generational Handle[T]
// indices. It generalizes the teacher's per-kind dataID/dataMap
// pattern into a single reusable type: each Device resource table
// (images, buffers, shaders, samplers) is a slotTable[someResource].
//
// Reusing an index after a Free does not allow stale handles to
// resolve: the generation recorded in the returned Handle must match
// the slot's current generation for a Get to succeed.
type slotTable[T any] struct {
	entries []slotEntry[T]
	free    bitm.Bitm[uint32]
	gen     []uint32
}

// Invalid returns the sentinel invalid handle for T.
func Invalid[T any]() Handle[T] { return Handle[T]{index: invalidIndex} }

// New inserts v and returns a handle identifying it.
func (s *slotTable[T]) New(v T) Handle[T] {
	idx, ok := s.free.Search()
	if !ok {
		base := s.free.Grow(1)
		idx = base
	}
	s.free.Set(idx)
	for len(s.entries) <= idx {
		s.entries = append(s.entries, slotEntry[T]{})
		s.gen = append(s.gen, 0)
	}
	s.entries[idx] = slotEntry[T]{data: v, gen: s.gen[idx], live: true}
	// encode packs index in the low 24 bits and generation in
	// the high 8 bits, matching the 32-bit budget Handle<T> allows
	// while still detecting reuse across up to 255 generations per
	// slot before a false-positive wraparound becomes possible.
	return Handle[T]{index: encode(uint32(idx), s.gen[idx])}
}

// Get returns the value identified by h and whether it is still
// live. A destroyed or never-assigned handle reports ok == false.
func (s *slotTable[T]) Get(h Handle[T]) (v T, ok bool) {
	if !h.IsValid() {
		return
	}
	idx, gen := decode(h.index)
	if int(idx) >= len(s.entries) {
		return
	}
	e := &s.entries[idx]
	if !e.live || e.gen != gen {
		return
	}
	return e.data, true
}

// Free destroys the slot identified by h. Freeing an invalid or
// already-freed handle is a no-op (programming errors are logged by
// callers that can name the resource kind, not here — see §7).
func (s *slotTable[T]) Free(h Handle[T]) (v T, ok bool) {
	if !h.IsValid() {
		return
	}
	idx, gen := decode(h.index)
	if int(idx) >= len(s.entries) {
		return
	}
	e := &s.entries[idx]
	if !e.live || e.gen != gen {
		return
	}
	v, ok = e.data, true
	var zero T
	e.data = zero
	e.live = false
	s.gen[idx] = (s.gen[idx] + 1) & 0xff
	s.free.Unset(idx)
	return
}

// encode packs a slot index and generation into a single uint32.
func encode(index, gen uint32) uint32 {
	return (gen&0xff)<<24 | index&0x00ffffff
}

// decode unpacks a slot index and generation from a uint32.
func decode(h uint32) (index, gen uint32) {
	return h & 0x00ffffff, h >> 24
}
