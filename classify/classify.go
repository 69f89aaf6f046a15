// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package classify holds the pure pulse-template predicates the frame
// recognizer is built on: no state, no locking, just comparisons against
// the Acu-Rite wire-format timing constants.
package classify

import "acurite.io/signalmonitor/ring"

// Pulse-template constants, in microseconds. Ported from ar-signal-monitor's
// timing table.
const (
	Short         = 210
	Long          = 401
	ShortSync     = 606
	PreLongSync   = 207
	LongSync      = 2205
	Tolerance     = 100
	LongSyncTol   = 450
)

func within(v, target, tol int) bool {
	d := v - target
	if d < 0 {
		d = -d
	}
	return d < tol
}

// IsZeroBit reports whether the pulse pair (t0, t1) matches a Manchester
// zero-bit: short-high then long-low.
func IsZeroBit(t0, t1 int) bool {
	return within(t0, Short, Tolerance) && within(t1, Long, Tolerance)
}

// IsOneBit reports whether the pulse pair matches a one-bit: long-high then
// short-low.
func IsOneBit(t0, t1 int) bool {
	return within(t0, Long, Tolerance) && within(t1, Short, Tolerance)
}

// IsShortSync reports whether both durations are within tolerance of a
// short-sync pulse.
func IsShortSync(t0, t1 int) bool {
	return within(t0, ShortSync, Tolerance) && within(t1, ShortSync, Tolerance)
}

// IsLongSync reports whether the pulse pair matches the pre-long-sync /
// long-sync pair that terminates a sync run.
func IsLongSync(t0, t1 int) bool {
	return within(t0, PreLongSync, Tolerance) && within(t1, LongSync, LongSyncTol)
}

// IsSyncAcquired examines the last 10 recorded pulses in r (positions
// -10..-1 relative to the write index, the most recent being -1) and
// reports whether they form the four-short-sync-then-long-sync pattern
// that frames every transmission.
func IsSyncAcquired(r *ring.PulseRing) bool {
	if !IsLongSync(int(r.At(-10)), int(r.At(-9))) {
		return false
	}
	pairs := [4][2]int{{-8, -7}, {-6, -5}, {-4, -3}, {-2, -1}}
	for _, p := range pairs {
		if !IsShortSync(int(r.At(p[0])), int(r.At(p[1]))) {
			return false
		}
	}
	return true
}
