// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package quality implements the rolling per-channel signal-quality
// estimator: a 5-minute window of ranked observations reduced to a 0-100
// score, plus the idle-channel probe that decays and eventually erases a
// channel that has stopped reporting.
package quality

import (
	"math"
	"sync"

	"acurite.io/signalmonitor/message"
)

// Window is the rolling observation window (microseconds).
const Window = 5 * 60 * 1000000

// DesiredRate is the reception interval a fully healthy channel is
// expected to hit (microseconds).
const DesiredRate = 30 * 1000000

// CheckRate is the idle-probe cadence (microseconds).
const CheckRate = 90 * 1000000

type observation struct {
	time int64
	rank message.Rank
}

type channelQuality struct {
	observations    []observation
	lastScore       int
	lastActivity    int64
}

// Event reports an idle-probe-driven change in a channel's score.
type Event struct {
	Channel message.Channel
	Score   int
	Erased  bool
}

// Estimator tracks quality per channel. It has its own lock distinct from
// queue_lock/dispatch_lock: callers are expected to act on its Observe and
// Tick results while already holding whatever lock spec.md §5 requires for
// the side effect (cache update, dispatch) they are about to perform.
type Estimator struct {
	mu       sync.Mutex
	channels map[message.Channel]*channelQuality
}

// NewEstimator builds an empty estimator.
func NewEstimator() *Estimator {
	return &Estimator{channels: make(map[message.Channel]*channelQuality)}
}

func prune(cq *channelQuality, now int64) {
	cutoff := now - Window
	i := 0
	for i < len(cq.observations) && cq.observations[i].time < cutoff {
		i++
	}
	if i > 0 {
		cq.observations = cq.observations[i:]
	}
}

func score(cq *channelQuality, now int64) int {
	sum := 0
	for _, o := range cq.observations {
		sum += int(o.rank)
	}
	denom := float64(Window) / float64(DesiredRate)
	if n := float64(len(cq.observations)); n > denom {
		denom = n
	}
	if denom == 0 {
		return 0
	}
	raw := 100 * float64(sum) / (denom * float64(message.RankBest))
	s := int(math.Round(raw))
	if s > 100 {
		s = 100
	}
	if s < 0 {
		s = 0
	}
	return s
}

// Observe admits a new ranked observation for channel at time now and
// returns the freshly recomputed score. A channel with no existing state
// is only created if this first observation is RANK_HIGH or better,
// preventing a single noisy edge from starting to "track" an otherwise
// silent channel.
func (e *Estimator) Observe(channel message.Channel, now int64, rank message.Rank) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	cq, ok := e.channels[channel]
	if !ok {
		if rank < message.RankHigh {
			return 0
		}
		cq = &channelQuality{}
		e.channels[channel] = cq
	}

	prune(cq, now)
	if rank != message.RankCheck {
		cq.observations = append(cq.observations, observation{time: now, rank: rank})
		cq.lastActivity = now
	}
	cq.lastScore = score(cq, now)
	return cq.lastScore
}

// Tick runs the idle probe: every channel whose last real observation is
// older than CheckRate is reweighed with a purge-only pass (no synthetic
// observation is appended); a returned Event means the caller should
// re-dispatch the channel's cached last frame with the new score, or erase
// the channel's state entirely once the score reaches 0.
func (e *Estimator) Tick(now int64) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	var events []Event
	for ch, cq := range e.channels {
		if now-cq.lastActivity < CheckRate {
			continue
		}
		prune(cq, now)
		s := score(cq, now)
		if s == cq.lastScore {
			continue
		}
		cq.lastScore = s
		if s <= 0 {
			delete(e.channels, ch)
			events = append(events, Event{Channel: ch, Erased: true})
		} else {
			events = append(events, Event{Channel: ch, Score: s})
		}
	}
	return events
}

// Erase drops a channel's tracked state immediately, outside of the idle
// probe (Tick erases channels that reach 0 on its own).
func (e *Estimator) Erase(channel message.Channel) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.channels, channel)
}
