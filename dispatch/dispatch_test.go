// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"acurite.io/signalmonitor/message"
)

func frame(ch message.Channel) message.SensorFrame {
	return message.SensorFrame{Channel: ch, Humidity: 50}
}

func TestAddDeliverInInsertionOrder(t *testing.T) {
	r := NewRegistry(nil)
	var order []int
	r.Add(func(f message.SensorFrame, ud interface{}) { order = append(order, 1) }, nil)
	r.Add(func(f message.SensorFrame, ud interface{}) { order = append(order, 2) }, nil)
	r.Add(func(f message.SensorFrame, ud interface{}) { order = append(order, 3) }, nil)

	r.Deliver(frame(message.ChannelA))
	require.Equal(t, []int{1, 2, 3}, order)
}

func TestRemoveUnregistersByID(t *testing.T) {
	r := NewRegistry(nil)
	var fired []uint32
	id1 := r.Add(func(f message.SensorFrame, ud interface{}) { fired = append(fired, 1) }, nil)
	id2 := r.Add(func(f message.SensorFrame, ud interface{}) { fired = append(fired, 2) }, nil)

	r.Remove(id1)
	r.Deliver(frame(message.ChannelA))
	require.Equal(t, []uint32{2}, fired)

	r.Remove(id2)
	fired = nil
	r.Deliver(frame(message.ChannelA))
	require.Empty(t, fired)
}

func TestRemoveUnknownIDIsNoop(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(func(f message.SensorFrame, ud interface{}) {}, nil)
	require.NotPanics(t, func() { r.Remove(999) })
}

func TestDeliverRecoversPanickingListener(t *testing.T) {
	r := NewRegistry(nil)
	var secondCalled bool
	r.Add(func(f message.SensorFrame, ud interface{}) { panic("boom") }, nil)
	r.Add(func(f message.SensorFrame, ud interface{}) { secondCalled = true }, nil)

	require.NotPanics(t, func() { r.Deliver(frame(message.ChannelA)) })
	require.True(t, secondCalled, "a panicking listener must not block the rest")
}

func TestSetLastFrameAndLastFrame(t *testing.T) {
	r := NewRegistry(nil)
	_, ok := r.LastFrame(message.ChannelA)
	require.False(t, ok)

	f := frame(message.ChannelA)
	f.Humidity = 77
	r.SetLastFrame(f)

	got, ok := r.LastFrame(message.ChannelA)
	require.True(t, ok)
	require.Equal(t, 77, got.Humidity)
}

func TestEraseDropsCachedFrame(t *testing.T) {
	r := NewRegistry(nil)
	r.SetLastFrame(frame(message.ChannelA))
	r.Erase(message.ChannelA)
	_, ok := r.LastFrame(message.ChannelA)
	require.False(t, ok)
}

func TestDeliverAndCacheRespectsBothFlags(t *testing.T) {
	r := NewRegistry(nil)
	var delivered int
	r.Add(func(f message.SensorFrame, ud interface{}) { delivered++ }, nil)

	r.DeliverAndCache(frame(message.ChannelA), false, true)
	require.Equal(t, 0, delivered)
	_, ok := r.LastFrame(message.ChannelA)
	require.True(t, ok, "cache=true must update the last-frame cache even without delivery")

	r.DeliverAndCache(frame(message.ChannelB), true, false)
	require.Equal(t, 1, delivered)
	_, ok = r.LastFrame(message.ChannelB)
	require.False(t, ok, "cache=false must not cache the frame")
}
