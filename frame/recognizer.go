// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package frame implements the rising-edge-driven state machine that
// locates 56-bit Acu-Rite data regions inside a PulseRing: sequential-bit
// tracking, sync acquisition, tail-condition commit, and the triplet-blend
// trigger that hands three repeats to the repair package.
package frame

import (
	"log"

	"periph.io/x/conn/v3/gpio"

	"acurite.io/signalmonitor/classify"
	"acurite.io/signalmonitor/decode"
	"acurite.io/signalmonitor/repair"
	"acurite.io/signalmonitor/ring"
)

// Timing constants, microseconds. Ported from ar-signal-monitor's
// recognizer constants (spec.md §4.3).
const (
	MinTransitions = 112
	IdealTransitions = 114
	MaxTransitions = 118
	MaxBadBits     = 5

	MessageLength = decode.MessageBits * (classify.Short + classify.Long)

	SyncToSyncTime = MessageLength + classify.PreLongSync + classify.LongSync + 8*classify.ShortSync

	MinMessageLength = MessageLength - classify.Tolerance
	MaxMessageLength = MessageLength + classify.Tolerance

	// TailPad widens the tail-condition window past MaxMessageLength by one
	// short-sync pulse, so a region whose elapsed time has run slightly over
	// the legal message length can still be committed.
	TailPad = classify.ShortSync

	// MessageHoldTime bounds how long the dedup layer should wait for the
	// rest of a repeat triplet: three full sync-to-sync periods plus the
	// long-sync tolerance.
	MessageHoldTime = 3*SyncToSyncTime + classify.LongSyncTol

	// regionEdges is the fixed edge-count span of one 56-bit data region.
	regionEdges = decode.MessageBits * 2
)

// CheckFunc reports whether the region is decodable well enough that the
// recognizer should stop retrying a one-bit shift. It is injected so this
// package need not import the full decode pipeline's SensorFrame type.
type CheckFunc func(dataIndex, dataEndIndex int) bool

// CommitFunc is invoked once a region's bit alignment is resolved (with or
// without a retry), handing it to the caller's full decode/repair/dedup
// pipeline.
type CommitFunc func(dataIndex, dataEndIndex int, frameEndTime int64)

// Recognizer is the per-monitor frame-recognition state machine. It owns
// no locking of its own: spec.md §5 requires every call into it to happen
// from the single edge thread.
type Recognizer struct {
	Ring   *ring.PulseRing
	Clock  *ring.Clock
	Logger *log.Logger

	Check  CheckFunc
	Commit CommitFunc

	times [ring.Size]int64

	haveLevel bool
	lastLevel gpio.Level
	haveTime  bool
	lastTime  int64

	sequentialBits      int
	potentialDataIndex  int
	frameStartTime      int64

	regionOpen      bool
	dataIndex       int
	dataEndIndex    int
	dataStartTime   int64
	edgeCount       int
	badBitsInRegion int

	syncIndex1, syncIndex2 int
	syncTime1, syncTime2   int64
}

// New builds a Recognizer over ring r sharing clock c. check and commit
// must be non-nil.
func New(r *ring.PulseRing, c *ring.Clock, check CheckFunc, commit CommitFunc) *Recognizer {
	return &Recognizer{
		Ring:       r,
		Clock:      c,
		Check:      check,
		Commit:     commit,
		syncIndex1: ring.Unset,
		syncIndex2: ring.Unset,
	}
}

func (rec *Recognizer) debugf(format string, args ...interface{}) {
	if rec.Logger != nil {
		rec.Logger.Printf(format, args...)
	}
}

// HandleEdge is called once per logical GPIO edge: a level and a 32-bit
// tick that may wrap. Equal-level repeats are debounced (recorded but
// otherwise ignored); only rising edges drive the recognizer's decisions.
func (rec *Recognizer) HandleEdge(level gpio.Level, tick uint32) {
	now := int64(rec.Clock.Observe(tick))

	duration := int64(0)
	if rec.haveTime {
		duration = now - rec.lastTime
	}
	idx := rec.Ring.Record(duration)
	rec.times[idx] = now

	rec.haveTime = true
	rec.lastTime = now

	if rec.haveLevel && level == rec.lastLevel {
		return
	}
	rec.haveLevel = true
	rec.lastLevel = level

	if level != gpio.High {
		return
	}

	rec.onRisingEdge(now)
}

func (rec *Recognizer) onRisingEdge(now int64) {
	if rec.syncIndex2 != ring.Unset && now > rec.syncTime2+SyncToSyncTime+classify.LongSyncTol {
		rec.tryTripletBlend(now)
	}

	t0 := int(rec.Ring.At(-2))
	t1 := int(rec.Ring.At(-1))

	switch {
	case classify.IsZeroBit(t0, t1), classify.IsOneBit(t0, t1):
		rec.sequentialBits++
		if rec.sequentialBits == 1 {
			rec.potentialDataIndex = ring.Mod(rec.Ring.WriteIndex() - 2)
			rec.frameStartTime = now - int64(t0) - int64(t1)
		}
		if rec.sequentialBits == decode.MessageBits {
			rec.commitSequentialRun(now)
		}
	default:
		rec.sequentialBits = 0
		if !classify.IsShortSync(t0, t1) && !classify.IsLongSync(t0, t1) {
			rec.badBitsInRegion++
		}
	}

	rec.trackRegion(now, t0, t1)
}

func (rec *Recognizer) commitSequentialRun(now int64) {
	dataIndex := rec.potentialDataIndex
	dataEndIndex := ring.Mod(rec.Ring.WriteIndex())
	rec.sequentialBits = 0

	if rec.Check(dataIndex, dataEndIndex) {
		rec.Commit(dataIndex, dataEndIndex, now)
		return
	}

	// Not good data: retry once with the same region shifted by one bit,
	// matching ar-signal-monitor's single-retry-by-one-bit recovery.
	shifted := ring.Mod(dataIndex + 2)
	shiftedEnd := ring.Mod(dataEndIndex + 2)
	if rec.Check(shifted, shiftedEnd) {
		rec.Commit(shifted, shiftedEnd, now)
		return
	}
	rec.debugf("frame: dropped unaligned %d-bit run ending at %d", decode.MessageBits, now)
}

func (rec *Recognizer) trackRegion(now int64, t0, t1 int) {
	if classify.IsSyncAcquired(rec.Ring) && rec.sequentialBits == 0 {
		rec.recordSync(now)

		if rec.regionOpen {
			elapsed := now - rec.dataStartTime
			if rec.edgeCount >= MinTransitions && rec.edgeCount <= MaxTransitions &&
				elapsed >= MinMessageLength && elapsed <= MaxMessageLength {
				rec.commitSequentialRun(now)
			}
		}
		rec.startRegion(now)
		return
	}

	if rec.regionOpen {
		rec.edgeCount++
		elapsed := now - rec.dataStartTime
		if rec.badBitsInRegion < MaxBadBits && elapsed >= MinMessageLength && elapsed <= MaxMessageLength+TailPad {
			rec.commitSequentialRun(now)
		}
	}
}

func (rec *Recognizer) startRegion(now int64) {
	rec.regionOpen = true
	rec.dataIndex = rec.Ring.WriteIndex()
	rec.dataStartTime = now
	rec.edgeCount = 0
	rec.badBitsInRegion = 0
}

func (rec *Recognizer) recordSync(now int64) {
	idx := ring.Mod(rec.Ring.WriteIndex() - 1)
	rec.debugf("frame: sync acquired at %d", now)
	if rec.syncIndex1 == ring.Unset {
		rec.syncIndex1 = idx
		rec.syncTime1 = now
		return
	}
	offset := now - rec.syncTime1
	d := offset - SyncToSyncTime
	if d < 0 {
		d = -d
	}
	if d < classify.LongSyncTol {
		rec.syncIndex2 = idx
		rec.syncTime2 = now
	} else {
		rec.syncIndex1 = idx
		rec.syncTime1 = now
		rec.syncIndex2 = ring.Unset
	}
}

// tryTripletBlend locates the third repeat preceding sync_index_1 by
// scanning the recognizer's parallel timestamp table for the edge whose
// absolute time is closest to sync_time_1 - SYNC_TO_SYNC_TIME, then blends
// the three regions starting at that index, sync_index_1, and
// sync_index_2.
func (rec *Recognizer) tryTripletBlend(now int64) {
	target := rec.syncTime1 - SyncToSyncTime
	base := rec.findNearestIndex(rec.syncIndex1, target)

	regions := []repair.Region{
		{DataIndex: base, DataEndIndex: ring.Mod(base + regionEdges)},
		{DataIndex: rec.syncIndex1, DataEndIndex: ring.Mod(rec.syncIndex1 + regionEdges)},
		{DataIndex: rec.syncIndex2, DataEndIndex: ring.Mod(rec.syncIndex2 + regionEdges)},
	}

	dst := regions[2].DataIndex
	if repair.CombineMessages(rec.Ring, dst, regions...) {
		rec.debugf("frame: triplet blend succeeded at %d", now)
		if rec.Check(dst, regions[2].DataEndIndex) {
			rec.Commit(dst, regions[2].DataEndIndex, now)
		}
	} else {
		rec.debugf("frame: triplet blend failed at %d", now)
	}

	rec.syncIndex1 = ring.Unset
	rec.syncIndex2 = ring.Unset
}

// findNearestIndex walks backward from start through the parallel
// timestamp table looking for the ring index whose recorded time is
// closest to target, bounded to one ring's worth of steps.
func (rec *Recognizer) findNearestIndex(start int, target int64) int {
	best := start
	bestDiff := absI64(rec.times[start] - target)
	idx := start
	for i := 0; i < ring.Size; i++ {
		idx = ring.Mod(idx - 1)
		diff := absI64(rec.times[idx] - target)
		if diff < bestDiff {
			best = idx
			bestDiff = diff
		}
		if rec.times[idx] < target-SyncToSyncTime {
			break
		}
	}
	return best
}

func absI64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
