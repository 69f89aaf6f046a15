// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package decode extracts a SensorFrame from a located 56-bit region of a
// PulseRing and checks its parity and checksum.
package decode

import (
	"math"

	"acurite.io/signalmonitor/classify"
	"acurite.io/signalmonitor/message"
	"acurite.io/signalmonitor/ring"
)

// MessageBits is the length of one Acu-Rite transmission.
const MessageBits = 56

// Field bit layout, 0-indexed, MSB-first within each byte. See DESIGN.md
// for the channel-table preservation note.
const (
	ChannelFirstBit = 0
	ChannelLastBit  = 1

	Misc1FirstBit = 2
	Misc1LastBit  = 15

	BatteryLowBit = 16

	Misc2FirstBit = 17
	Misc2LastBit  = 23

	HumidityFirstBit = 25
	HumidityLastBit  = 31

	Misc3FirstBit = 33
	Misc3LastBit  = 35

	TemperatureFirstBit = 36
	TemperatureLastBit  = 47

	ChecksumFirstBit = 48
	ChecksumLastBit  = 55
)

// channelTable maps the 2-bit channel field directly to its letter. The
// original C++ source indexes a 4-byte slice of the 5-byte literal
// "?C?BA" via field+1; the leading '?' at index 0 is unreachable from a
// 2-bit field, so it is dropped here and the table is indexed by the field
// value directly. Same observable mapping: 00->'C', 01->'?', 10->'B',
// 11->'A'.
var channelTable = [4]byte{'C', '?', 'B', 'A'}

// GetBit returns 0, 1, or -1 (indeterminate) for bit i (0-based) of the
// region anchored at dataIndex.
func GetBit(r *ring.PulseRing, dataIndex, i int) int {
	t0 := int(r.FromAnchor(dataIndex, i*2))
	t1 := int(r.FromAnchor(dataIndex, i*2+1))
	switch {
	case classify.IsZeroBit(t0, t1):
		return 0
	case classify.IsOneBit(t0, t1):
		return 1
	default:
		return -1
	}
}

// GetInt extracts bits [firstBit, lastBit] MSB-first into an integer,
// returning -1 as soon as an indeterminate bit is encountered. If
// skipParity is true, a bit position that is a multiple of 8 (a parity bit
// within its byte) is skipped rather than shifted in; within the
// temperature field's span this is exactly bit 40, yielding an 11-bit
// effective value from a nominally 12-bit span.
func GetInt(r *ring.PulseRing, dataIndex, firstBit, lastBit int, skipParity bool) int {
	v := 0
	for i := firstBit; i <= lastBit; i++ {
		if skipParity && i%8 == 0 {
			continue
		}
		b := GetBit(r, dataIndex, i)
		if b < 0 {
			return -1
		}
		v = v<<1 | b
	}
	return v
}

// CheckIntegrity classifies a located region as GOOD, or one of the three
// failure modes, per spec.md §4.4.
func CheckIntegrity(r *ring.PulseRing, dataIndex int) message.Integrity {
	for i := 0; i < MessageBits; i++ {
		if GetBit(r, dataIndex, i) < 0 {
			return message.IntegrityBadBits
		}
	}
	for _, byteIdx := range [3]int{3, 4, 5} {
		parityBit := GetBit(r, dataIndex, byteIdx*8)
		sum := 0
		for b := 1; b < 8; b++ {
			sum += GetBit(r, dataIndex, byteIdx*8+b)
		}
		if sum%2 != parityBit {
			return message.IntegrityBadParity
		}
	}
	checksum := 0
	for byteIdx := 0; byteIdx < 6; byteIdx++ {
		checksum += GetInt(r, dataIndex, byteIdx*8, byteIdx*8+7, false)
	}
	if checksum&0xFF != GetInt(r, dataIndex, ChecksumFirstBit, ChecksumLastBit, false) {
		return message.IntegrityBadChecksum
	}
	return message.IntegrityGood
}

// Decode extracts a SensorFrame from the region anchored at dataIndex,
// stamping it with collectionTime (microseconds). The returned Integrity
// tells the caller whether the frame is fit to deliver, repair, or drop;
// fields are only populated past BAD_BITS since an indeterminate bit
// anywhere in the frame makes every field unreliable.
func Decode(r *ring.PulseRing, dataIndex int, collectionTime int64) (message.SensorFrame, message.Integrity) {
	integrity := CheckIntegrity(r, dataIndex)

	channel := message.ChannelInvalid
	if chBits := GetInt(r, dataIndex, ChannelFirstBit, ChannelLastBit, false); chBits >= 0 {
		channel = message.Channel(channelTable[chBits])
	}

	f := message.SensorFrame{
		Channel:         channel,
		ValidChecksum:   integrity == message.IntegrityGood,
		CollectionTime:  collectionTime,
		RepeatsCaptured: 1,
	}

	if integrity == message.IntegrityBadBits {
		return f, integrity
	}

	f.BatteryLow = GetBit(r, dataIndex, BatteryLowBit) == 1
	f.Misc1 = GetInt(r, dataIndex, Misc1FirstBit, Misc1LastBit, false)
	f.Misc2 = GetInt(r, dataIndex, Misc2FirstBit, Misc2LastBit, false)
	f.Misc3 = GetInt(r, dataIndex, Misc3FirstBit, Misc3LastBit, false)

	humidity := GetInt(r, dataIndex, HumidityFirstBit, HumidityLastBit, false)
	if humidity > 100 {
		humidity = message.Missing
	}
	f.Humidity = humidity

	rawTemp := GetInt(r, dataIndex, TemperatureFirstBit, TemperatureLastBit, true)
	f.RawTemp = rawTemp
	if rawTemp >= 0 {
		celsius := (float64(rawTemp) - 1000) / 10.0
		if math.Abs(celsius) > 60 {
			f.TempCelsius = message.Missing
			f.TempFahrenheit = message.Missing
		} else {
			f.TempCelsius = celsius
			f.TempFahrenheit = round1(celsius*1.8 + 32.0)
		}
	} else {
		f.TempCelsius = message.Missing
		f.TempFahrenheit = message.Missing
	}

	switch integrity {
	case message.IntegrityGood:
		f.Rank = message.RankHigh
	case message.IntegrityBadChecksum:
		f.Rank = message.RankMid
	case message.IntegrityBadParity:
		f.Rank = message.RankLow
	}

	return f, integrity
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
