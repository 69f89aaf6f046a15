// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package signalmonitor decodes Acu-Rite 433 MHz temperature/humidity
// transmissions from a stream of GPIO edges: frame recognition, multi-
// frame repair, duplicate suppression, signal-quality estimation, and
// listener dispatch. See SPEC_FULL.md for the full requirements this
// package implements and DESIGN.md for how each piece is grounded.
package signalmonitor

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"acurite.io/signalmonitor/decode"
	"acurite.io/signalmonitor/dedupe"
	"acurite.io/signalmonitor/dispatch"
	"acurite.io/signalmonitor/frame"
	"acurite.io/signalmonitor/message"
	"acurite.io/signalmonitor/pinconv"
	"acurite.io/signalmonitor/quality"
	"acurite.io/signalmonitor/ring"
	"acurite.io/signalmonitor/sysfs"
)

// edgeSource is the minimal surface Monitor needs from a GPIO backend:
// block for the next edge and report the level it settled on, then
// release the pin. sysfs.EdgePin implements it directly; tests substitute
// their own simulator instead of driving a real pin.
type edgeSource interface {
	ReadEdge(timeout time.Duration) (gpio.Level, bool)
	Halt() error
}

// Monitor is a running signal-decoding core bound to one GPIO pin. Build
// one with Init and release it with Close.
type Monitor struct {
	pin     edgeSource
	dataPin int

	ring     *ring.PulseRing
	clock    *ring.Clock
	rec      *frame.Recognizer
	queue    *dedupe.Queue
	quality  *quality.Estimator
	registry *dispatch.Registry

	debugMu sync.RWMutex
	debug   *log.Logger

	startWall time.Time

	closeOnce sync.Once
	done      chan struct{}
}

// Init installs an edge handler on the given pin, converted from
// pinSystem's convention to BCM-GPIO via the pinconv package, and starts
// the monitor's edge and quality-probe goroutines. It fails with
// ErrInvalidPin or ErrGpioInitFailed; a pin already owned by another
// consumer surfaces as ErrPinBusy.
func Init(pinIdentifier int, pinSystem PinSystem) (*Monitor, error) {
	bcm, err := pinconv.Convert(pinIdentifier, pinconv.System(pinSystem))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPin, err)
	}

	pin, err := sysfs.Open(bcm)
	if err != nil {
		if errors.Is(err, sysfs.ErrAlreadyOpen) {
			return nil, ErrPinBusy
		}
		return nil, fmt.Errorf("%w: %v", ErrGpioInitFailed, err)
	}

	m := &Monitor{
		pin:       pin,
		dataPin:   bcm,
		ring:      &ring.PulseRing{},
		clock:     &ring.Clock{},
		quality:   quality.NewEstimator(),
		registry:  dispatch.NewRegistry(nil),
		startWall: time.Now(),
		done:      make(chan struct{}),
	}
	m.queue = dedupe.NewQueue(m.onHeld)
	m.rec = frame.New(m.ring, m.clock, m.checkRegion, m.commitRegion)

	go m.edgeLoop()
	go m.qualityLoop()

	return m, nil
}

// GetDataPin returns the BCM-GPIO number the monitor was initialized on.
func (m *Monitor) GetDataPin() int {
	return m.dataPin
}

// EnableDebugOutput toggles bit/sync/repair trace logging on the edge
// path. It is a nil-checked no-op on the hot path when disabled.
func (m *Monitor) EnableDebugOutput(enabled bool) {
	m.debugMu.Lock()
	defer m.debugMu.Unlock()
	if enabled {
		m.debug = log.New(log.Writer(), "signalmonitor: ", log.LstdFlags)
	} else {
		m.debug = nil
	}
	m.rec.Logger = m.debug
}

// AddListener registers a callback and returns its id.
func (m *Monitor) AddListener(cb message.Listener, userData interface{}) uint32 {
	return m.registry.Add(cb, userData)
}

// RemoveListener unregisters a listener by id.
func (m *Monitor) RemoveListener(id uint32) {
	m.registry.Remove(id)
}

// LastReading returns the last delivered SensorFrame for channel, if any.
// This is the supplemented host-side polling accessor of SPEC_FULL.md §4.
func (m *Monitor) LastReading(channel message.Channel) (message.SensorFrame, bool) {
	return m.registry.LastFrame(channel)
}

// OnEdge feeds one externally-supplied GPIO edge into the decoder. It is
// the external interface of spec.md §6 for callers that drive the pin
// themselves instead of using Init's built-in edge loop (e.g. a test
// simulator). level values other than Low/High are ignored.
func (m *Monitor) OnEdge(level gpio.Level, tick uint32) {
	m.rec.HandleEdge(level, tick)
}

// Close stops the edge handler, cancels the quality-probe loop, and
// releases the pin. After Close returns, no listener will be invoked
// again.
func (m *Monitor) Close() error {
	m.closeOnce.Do(func() {
		close(m.done)
		if m.pin != nil {
			m.pin.Halt()
		}
		m.queue.Close()
	})
	return nil
}

func (m *Monitor) checkRegion(dataIndex, dataEndIndex int) bool {
	return decode.CheckIntegrity(m.ring, dataIndex) != message.IntegrityBadBits
}

func (m *Monitor) commitRegion(dataIndex, dataEndIndex int, frameEndTime int64) {
	f, integrity := decode.Decode(m.ring, dataIndex, frameEndTime)
	if f.Channel == message.ChannelInvalid {
		return
	}
	if integrity == message.IntegrityBadBits {
		return
	}
	m.queue.Submit(f)
}

// onHeld runs on the hold thread (spec.md §5): it always feeds the
// quality estimator, and only carries the frame on to the dedup/delivery
// policy once its rank is at least RANK_MID.
func (m *Monitor) onHeld(f message.SensorFrame) {
	score := m.quality.Observe(f.Channel, f.CollectionTime, f.Rank)
	f.SignalQuality = score

	if f.Rank < message.RankMid {
		return
	}

	last, hasLast := m.registry.LastFrame(f.Channel)
	decision := dedupe.Evaluate(f, last, hasLast)
	m.registry.DeliverAndCache(f, decision.Deliver, decision.Cache)
}

// edgeLoop is the edge thread: it blocks on the pin's own edge
// notification and translates it into the (level, tick) shape OnEdge
// expects, deriving tick from elapsed wall time since Init so the
// recognizer's wrap-safe clock behaves the same whether edges arrive from
// this loop or from a test simulator calling OnEdge directly.
func (m *Monitor) edgeLoop() {
	for {
		select {
		case <-m.done:
			return
		default:
		}
		level, ok := m.pin.ReadEdge(200 * time.Millisecond)
		if !ok {
			continue
		}
		tick := uint32(time.Since(m.startWall).Microseconds())
		m.rec.HandleEdge(level, tick)
	}
}

// qualityLoop is the quality thread: it wakes every quality.CheckRate and
// runs the idle probe, re-dispatching or erasing channels whose score has
// moved since their last real observation.
func (m *Monitor) qualityLoop() {
	ticker := time.NewTicker(quality.CheckRate * time.Microsecond)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := int64(time.Since(m.startWall).Microseconds())
			for _, ev := range m.quality.Tick(now) {
				if ev.Erased {
					m.registry.Erase(ev.Channel)
					continue
				}
				last, ok := m.registry.LastFrame(ev.Channel)
				if !ok {
					continue
				}
				last.SignalQuality = ev.Score
				m.registry.DeliverAndCache(last, true, true)
			}
		}
	}
}
