// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"bytes"
	"strings"
	"testing"

	"acurite.io/signalmonitor/message"
)

func TestChannelLabelFallsBackToRawByte(t *testing.T) {
	if got := channelLabel(nil, message.ChannelA); got != "A" {
		t.Errorf("channelLabel(nil, A) = %q, want %q", got, "A")
	}
	labels := map[string]string{"A": "outdoor"}
	if got := channelLabel(labels, message.ChannelA); got != "outdoor" {
		t.Errorf("channelLabel(labels, A) = %q, want %q", got, "outdoor")
	}
	if got := channelLabel(labels, message.ChannelB); got != "B" {
		t.Errorf("channelLabel(labels, B) = %q, want %q (no override configured)", got, "B")
	}
}

func TestLogReadingFormatsOneLine(t *testing.T) {
	var buf bytes.Buffer
	logReading(&buf, map[string]string{"A": "outdoor"}, message.SensorFrame{
		Channel:        message.ChannelA,
		BatteryLow:     true,
		Humidity:       45,
		TempCelsius:    0,
		TempFahrenheit: 32,
		SignalQuality:  90,
		RepeatsCaptured: 2,
		Rank:           message.RankBest,
	})
	line := buf.String()
	for _, want := range []string{"channel=outdoor", "battery_low=true", "humidity=45%", "quality=90", "repeats=2"} {
		if !strings.Contains(line, want) {
			t.Errorf("logReading output %q missing %q", line, want)
		}
	}
}

func TestNewListenerDelegatesToLogReading(t *testing.T) {
	var buf bytes.Buffer
	listener := newListener(&buf, nil)
	listener(message.SensorFrame{Channel: message.ChannelB, Humidity: 50}, nil)
	if !strings.Contains(buf.String(), "channel=B") {
		t.Errorf("listener did not write a reading: %q", buf.String())
	}
}
