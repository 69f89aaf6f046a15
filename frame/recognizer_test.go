// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package frame

import (
	"testing"

	"periph.io/x/conn/v3/gpio"

	"acurite.io/signalmonitor/classify"
	"acurite.io/signalmonitor/decode"
	"acurite.io/signalmonitor/ring"
)

// simulateBits drives rec through the GPIO edges that encode bits (each 0
// or 1) as the high-then-low pulse pairs classify expects, one rising edge
// per bit boundary. The leading HandleEdge call has no prior data recorded
// and is discarded by the recognizer as noise, exactly as a real first
// edge after power-on would be.
func simulateBits(rec *Recognizer, bits []int) {
	var tick uint32
	rec.HandleEdge(gpio.High, tick)
	for _, b := range bits {
		dHigh, dLow := classify.Short, classify.Long
		if b == 1 {
			dHigh, dLow = classify.Long, classify.Short
		}
		tick += uint32(dHigh)
		rec.HandleEdge(gpio.Low, tick)
		tick += uint32(dLow)
		rec.HandleEdge(gpio.High, tick)
	}
}

func sampleBits() []int {
	bits := make([]int, decode.MessageBits)
	for i := range bits {
		bits[i] = i % 3 % 2 // an arbitrary, non-constant 0/1 pattern
	}
	return bits
}

func TestRecognizerCommitsOnSequentialRun(t *testing.T) {
	var r ring.PulseRing
	var c ring.Clock

	type commit struct {
		dataIndex, dataEndIndex int
		frameEndTime            int64
	}
	var commits []commit

	rec := New(&r, &c, func(int, int) bool { return true }, func(dataIndex, dataEndIndex int, frameEndTime int64) {
		commits = append(commits, commit{dataIndex, dataEndIndex, frameEndTime})
	})

	bits := sampleBits()
	simulateBits(rec, bits)

	if len(commits) != 1 {
		t.Fatalf("commit called %d times, want 1", len(commits))
	}
	for i, want := range bits {
		if got := decode.GetBit(&r, commits[0].dataIndex, i); got != want {
			t.Errorf("bit %d = %d, want %d", i, got, want)
		}
	}
}

func TestRecognizerRetriesShiftedAlignmentOnFailedCheck(t *testing.T) {
	var r ring.PulseRing
	var c ring.Clock

	var checkedIndexes []int
	var committedIndex int
	commits := 0

	check := func(dataIndex, dataEndIndex int) bool {
		checkedIndexes = append(checkedIndexes, dataIndex)
		return len(checkedIndexes) == 2 // fail the first attempt, accept the shifted retry
	}
	commit := func(dataIndex, dataEndIndex int, frameEndTime int64) {
		committedIndex = dataIndex
		commits++
	}

	rec := New(&r, &c, check, commit)
	simulateBits(rec, sampleBits())

	if commits != 1 {
		t.Fatalf("commit called %d times, want 1", commits)
	}
	if len(checkedIndexes) != 2 {
		t.Fatalf("Check called %d times, want 2", len(checkedIndexes))
	}
	if want := ring.Mod(checkedIndexes[0] + 2); committedIndex != want {
		t.Errorf("committed index = %d, want shifted index %d", committedIndex, want)
	}
}

func TestRecognizerDropsRunWhenBothAlignmentsFail(t *testing.T) {
	var r ring.PulseRing
	var c ring.Clock

	commits := 0
	rec := New(&r, &c, func(int, int) bool { return false }, func(int, int, int64) { commits++ })
	simulateBits(rec, sampleBits())

	if commits != 0 {
		t.Fatalf("commit called %d times, want 0", commits)
	}
}
