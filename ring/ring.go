// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package ring implements the fixed-capacity circular pulse-duration buffer
// and the wrap-safe microsecond clock the edge-interrupt path is built on.
package ring

import "sync"

// Size is the PulseRing capacity in entries. 1024 is comfortably above the
// ~114-118 transitions of one 56-bit frame plus the surrounding sync
// pattern, leaving slack for retries.
const Size = 1024

// DurationCeiling clamps any single recorded pulse; nothing in the wire
// format is longer than a long-sync pulse plus tolerance, so anything
// beyond this is noise (a stuck line, a missed edge) rather than data.
const DurationCeiling = 10000

// Unset is the sentinel anchor value meaning "not acquired".
const Unset = -1

// PulseRing is a fixed-capacity circular buffer of clamped pulse durations
// in microseconds, indexed by edge count. Entries are never mutated once
// overwritten by a newer edge; the repair package mutates only entries
// within the region it was handed, and only while that region has not yet
// been overtaken by WriteIndex wrapping back onto it.
type PulseRing struct {
	buf        [Size]uint16
	writeIndex int
}

// Mod wraps an index (which may be negative) into [0, Size).
func Mod(i int) int {
	i %= Size
	if i < 0 {
		i += Size
	}
	return i
}

// Record clamps and stores a newly observed pulse duration, advancing the
// write index, and returns the index the value was written at.
func (r *PulseRing) Record(durationUS int64) int {
	if durationUS > DurationCeiling {
		durationUS = DurationCeiling
	}
	if durationUS < 0 {
		durationUS = 0
	}
	idx := r.writeIndex
	r.buf[idx] = uint16(durationUS)
	r.writeIndex = Mod(r.writeIndex + 1)
	return idx
}

// WriteIndex is the index the next Record call will write to.
func (r *PulseRing) WriteIndex() int { return r.writeIndex }

// At returns the value at (writeIndex+offset) mod Size.
func (r *PulseRing) At(offset int) uint16 {
	return r.buf[Mod(r.writeIndex+offset)]
}

// FromAnchor returns the value at (anchor+offset) mod Size.
func (r *PulseRing) FromAnchor(anchor, offset int) uint16 {
	return r.buf[Mod(anchor+offset)]
}

// Set overwrites the entry at (anchor+offset) mod Size. Used exclusively by
// the repair package to rewrite a blended region in place before the
// decoder re-reads it.
func (r *PulseRing) Set(anchor, offset int, value uint16) {
	r.buf[Mod(anchor+offset)] = value
}

// Clock maintains a wrap-safe 64-bit microsecond timestamp derived from a
// 32-bit tick the GPIO collaborator supplies on each edge. Multiple edges
// can race on first observation, so access is guarded by a single-owner
// lock, per spec.md §9.
type Clock struct {
	mu        sync.Mutex
	have      bool
	lastTick  uint32
	carry     uint64
}

// Observe folds a newly observed 32-bit tick into the running 64-bit
// microsecond clock, detecting backward wraps and adding 2^32 to the carry
// when they occur. The clock is lazily initialized on the first edge.
func (c *Clock) Observe(tick uint32) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.have {
		c.have = true
		c.lastTick = tick
		return uint64(tick)
	}
	if tick < c.lastTick {
		c.carry += 1 << 32
	}
	c.lastTick = tick
	return c.carry + uint64(tick)
}
