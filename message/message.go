// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package message holds the domain types shared by every stage of the
// decoding pipeline: the edge classifier, frame recognizer, decoder, repair,
// dedup queue, quality estimator, and dispatch.
package message

import "periph.io/x/conn/v3/gpio"

// Channel identifies one of the three Acu-Rite channel letters. '?' marks an
// invalid/undecodable channel field; frames on it are never delivered or
// cached.
type Channel byte

const (
	ChannelA       Channel = 'A'
	ChannelB       Channel = 'B'
	ChannelC       Channel = 'C'
	ChannelInvalid Channel = '?'
)

// Rank scores one observation for quality aggregation. Higher is better.
type Rank int

const (
	RankCheck Rank = 0
	RankLow   Rank = 2
	RankMid   Rank = 5
	RankHigh  Rank = 9
	RankBest  Rank = 10
)

// Integrity is the result of checking parity and checksum on a located
// 56-bit region.
type Integrity int

const (
	IntegrityGood Integrity = iota
	IntegrityBadBits
	IntegrityBadParity
	IntegrityBadChecksum
)

func (i Integrity) String() string {
	switch i {
	case IntegrityGood:
		return "GOOD"
	case IntegrityBadBits:
		return "BAD_BITS"
	case IntegrityBadParity:
		return "BAD_PARITY"
	case IntegrityBadChecksum:
		return "BAD_CHECKSUM"
	default:
		return "UNKNOWN"
	}
}

// Missing is the sentinel value used for numeric fields that are absent or
// out of a sane physical range.
const Missing = -999

// SensorFrame is a fully decoded Acu-Rite transmission, ready for dedup,
// quality aggregation, and dispatch.
type SensorFrame struct {
	Channel         Channel
	ValidChecksum   bool
	BatteryLow      bool
	Humidity        int // 0..100, or Missing
	RawTemp         int // decoded raw value, or Missing if indeterminate
	TempCelsius     float64
	TempFahrenheit  float64
	Misc1           int // 14 bits
	Misc2           int // 7 bits
	Misc3           int // 3 bits
	CollectionTime  int64 // microseconds
	RepeatsCaptured int
	Rank            Rank
	SignalQuality   int // 0..100
}

// HasSameValues reports whether two frames carry identical decoded sensor
// values (used by the dedup layer's REPEAT_SUPPRESSION rule).
func (f SensorFrame) HasSameValues(o SensorFrame) bool {
	return f.Channel == o.Channel &&
		f.BatteryLow == o.BatteryLow &&
		f.Humidity == o.Humidity &&
		f.RawTemp == o.RawTemp &&
		f.Misc1 == o.Misc1 &&
		f.Misc2 == o.Misc2 &&
		f.Misc3 == o.Misc3
}

// HasCloseValues reports whether two frames are close enough that a
// best-effort delivery would be redundant with an already-reported good
// reading (used by the stale-reuse rule).
func (f SensorFrame) HasCloseValues(o SensorFrame) bool {
	if f.Channel != o.Channel || f.BatteryLow != o.BatteryLow {
		return false
	}
	return absInt(f.Humidity-o.Humidity) < 3 && absInt(f.RawTemp-o.RawTemp) < 30
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// Edge is one GPIO transition reported by the driver collaborator: a level
// and a 32-bit tick that may wrap.
type Edge struct {
	Level gpio.Level
	Tick  uint32
}

// Listener is the callback signature registered with a Monitor's dispatch
// layer.
type Listener func(frame SensorFrame, userData interface{})
