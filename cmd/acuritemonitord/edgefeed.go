// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package main

import (
	"fmt"
	"io"

	"acurite.io/signalmonitor/message"
)

// channelLabel resolves a display name for a reading's channel, falling
// back to the raw channel byte when the config carries no override for it.
func channelLabel(labels map[string]string, ch message.Channel) string {
	key := string(rune(ch))
	if labels != nil {
		if name, ok := labels[key]; ok {
			return name
		}
	}
	return key
}

// logReading writes one decoded reading to w in the structured, greppable
// form the thin embedding binary owes an operator watching stdout -
// spec.md's Non-goals rule out a database or network server, so stdout is
// the entire delivery surface.
func logReading(w io.Writer, labels map[string]string, f message.SensorFrame) {
	fmt.Fprintf(w, "channel=%s battery_low=%t humidity=%d%% temp=%.1fC (%.1fF) quality=%d repeats=%d rank=%d\n",
		channelLabel(labels, f.Channel),
		f.BatteryLow,
		f.Humidity,
		f.TempCelsius,
		f.TempFahrenheit,
		f.SignalQuality,
		f.RepeatsCaptured,
		f.Rank,
	)
}

// newListener builds the Monitor.AddListener callback that feeds decoded
// readings to logReading, closing over the configured channel labels.
func newListener(w io.Writer, labels map[string]string) message.Listener {
	return func(f message.SensorFrame, _ interface{}) {
		logReading(w, labels, f)
	}
}
