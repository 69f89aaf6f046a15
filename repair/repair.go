// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package repair reconstructs a clean 56-bit frame from one or more
// candidate regions of the same transmission by resampling their raw pulse
// durations into sub-bit energy vectors and blending them.
package repair

import (
	"math"

	"acurite.io/signalmonitor/classify"
	"acurite.io/signalmonitor/decode"
	"acurite.io/signalmonitor/ring"
)

// bitLength is the nominal duration of one Manchester bit: a short pulse
// plus a long pulse (either ordering).
const bitLength = float64(classify.Short + classify.Long)

const subBitsPerBit = 3
const totalSubBits = decode.MessageBits * subBitsPerBit
const subBitDuration = bitLength / subBitsPerBit

// Region is one candidate location of the same transmission: the anchor
// index to start resampling from, and the index one past its last timing
// value.
type Region struct {
	DataIndex    int
	DataEndIndex int
}

// subBitVector resamples one region's raw pulse durations into
// MessageBits*3 signed energy values. Polarity starts high (a region
// always opens on a rising edge, per the recognizer) and flips every time
// a new raw duration is consumed.
func subBitVector(r *ring.PulseRing, reg Region) [totalSubBits]float64 {
	var subBits [totalSubBits]float64
	highLow := -1.0
	timeOffset := 0
	subBitCount := 0
	accumulatedTime := 0.0
	accumulatedWeight := 0.0
	availableTime := 0.0

	for subBitCount < totalSubBits {
		if availableTime < 0.01 {
			availableTime = float64(r.FromAnchor(reg.DataIndex, timeOffset))
			timeOffset++
			highLow *= -1
		}

		nextChunk := subBitDuration - accumulatedTime
		if availableTime < nextChunk {
			nextChunk = availableTime
		}

		accumulatedTime += nextChunk
		accumulatedWeight += nextChunk * highLow
		availableTime -= nextChunk

		atBoundary := math.Abs(accumulatedTime-subBitDuration) < 0.01
		wrapped := availableTime < 0.01 && ring.Mod(reg.DataIndex+timeOffset) == ring.Mod(reg.DataEndIndex)
		if atBoundary || wrapped {
			subBits[subBitCount] = accumulatedWeight
			subBitCount++
			accumulatedTime = 0
			accumulatedWeight = 0
			if wrapped {
				break
			}
		}
	}
	return subBits
}

// CombineMessages blends up to three candidate regions (oldest first) of
// the same transmission and writes the repaired 56-bit frame into dst
// (an anchor with at least MessageBits*2 timing slots available in r). It
// returns false when more than one bit triple could not be classified, or
// when the lone bad bit cannot be resolved by the checksum1/checksum2
// place-value cross-check — see DESIGN.md for why that cross-check is a
// heuristic distinct from decode.CheckIntegrity's byte checksum.
func CombineMessages(r *ring.PulseRing, dst int, regions ...Region) bool {
	var combined [totalSubBits]float64
	for _, reg := range regions {
		v := subBitVector(r, reg)
		for i := range combined {
			combined[i] += v[i]
		}
	}

	badBit := -1
	checksum1 := 0
	checksum2 := 0

	// A sub-bit weight within 0.01 of zero (a tie between disagreeing
	// regions, up to float rounding) counts as neither positive nor negative.
	pos := func(s float64) bool { return s > 0.01 }
	neg := func(s float64) bool { return s < -0.01 }

	classifyBit := func(bitIndex int, s0, s1, s2 float64) {
		switch {
		case pos(s0) && pos(s1) && neg(s2): // one bit
			writeBit(r, dst, bitIndex, 1)
			placeValue := 1 << uint(7-bitIndex%8)
			if bitIndex < 48 {
				checksum1 += placeValue
			} else {
				checksum2 += placeValue
			}
		case pos(s0) && neg(s1) && neg(s2): // zero bit
			writeBit(r, dst, bitIndex, 0)
		default:
			writeBit(r, dst, bitIndex, -1)
			if badBit < 0 {
				badBit = bitIndex
			} else {
				badBit = -2
			}
		}
	}

	for i := 0; i < totalSubBits; i += 3 {
		if badBit == -2 {
			return false
		}
		classifyBit(i/3, combined[i], combined[i+1], combined[i+2])
	}
	if badBit == -2 {
		return false
	}

	if badBit < 0 {
		return true
	}

	if checksum1 == checksum2 {
		writeBit(r, dst, badBit, 0)
		return true
	}

	placeValue := 1 << uint(7-badBit%8)
	if badBit < 48 {
		checksum1 += placeValue
	} else {
		checksum2 += placeValue
	}
	if checksum1 == checksum2 {
		writeBit(r, dst, badBit, 1)
		return true
	}
	return false
}

// writeBit rewrites the timing pair for bitIndex in the destination region
// to the canonical pulse pair for the given value (0, 1, or -1 for "still
// bad" which is written as a pair of zero-duration pulses, matching the
// original's deliberate-bad-data marker).
func writeBit(r *ring.PulseRing, dst, bitIndex, value int) {
	switch value {
	case 1:
		r.Set(dst, bitIndex*2, classify.Long)
		r.Set(dst, bitIndex*2+1, classify.Short)
	case 0:
		r.Set(dst, bitIndex*2, classify.Short)
		r.Set(dst, bitIndex*2+1, classify.Long)
	default:
		r.Set(dst, bitIndex*2, 0)
		r.Set(dst, bitIndex*2+1, 0)
	}
}
