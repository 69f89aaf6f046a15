// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dedupe implements the short per-transmission hold queue (which
// picks the best of a repeat triplet) and the duplicate-suppression /
// stale-data-reuse policy evaluated against a channel's last delivered
// frame.
package dedupe

import (
	"sync"
	"time"

	"acurite.io/signalmonitor/frame"
	"acurite.io/signalmonitor/message"
)

// RepeatSuppression is the window (microseconds) within which an identical
// observation on the same channel is suppressed outright.
const RepeatSuppression = 60 * 1000000

// ReuseOldDataLimit is the window (microseconds) within which a
// close-but-invalid observation is suppressed as redundant with a recent
// good reading.
const ReuseOldDataLimit = 600 * 1000000

// HoldTime is how long a candidate is held open to absorb the rest of a
// repeat triplet before it is finalized. It is the frame recognizer's own
// triplet-timing constant: a hold must outlive the gap between repeats.
const HoldTime = frame.MessageHoldTime

// ExpireFunc is called by the hold thread whenever a held candidate is
// finalized, regardless of rank; the caller decides whether the frame's
// rank (RANK_MID or better) also qualifies it for delivery.
type ExpireFunc func(message.SensorFrame)

type heldEntry struct {
	channel message.Channel
	frame   message.SensorFrame
	timer   *time.Timer
}

// Queue is the single in-flight hold slot: the receiver is listening to
// one RF channel at a time, so at most one candidate is ever being
// aggregated regardless of which sensor channel it turns out to decode
// to, per spec.md §4.6.
type Queue struct {
	mu      sync.Mutex // queue_lock
	current *heldEntry
	onRank  ExpireFunc
	hold    time.Duration
}

// NewQueue builds a hold queue that calls onExpire, under queue_lock, when
// a held candidate is finalized: its hold window lapses, or a candidate for
// a different channel displaces it. onExpire is called for every rank.
func NewQueue(onExpire ExpireFunc) *Queue {
	return &Queue{onRank: onExpire, hold: HoldTime * time.Microsecond}
}

// Submit admits a newly decoded candidate (of any rank) into the hold
// queue, applying the rank-upgrade and same-channel-merge rules of
// spec.md §4.6.
func (q *Queue) Submit(f message.SensorFrame) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.current == nil {
		q.startLocked(f)
		return
	}

	if q.current.channel == f.Channel {
		existing := q.current.frame
		held := existing
		if f.Rank > existing.Rank {
			f.RepeatsCaptured = existing.RepeatsCaptured
			existing = f
		}
		if held.Rank >= message.RankHigh && f.Rank >= message.RankHigh && held.HasSameValues(f) {
			existing.Rank = message.RankBest
		}
		existing.RepeatsCaptured++
		q.current.frame = existing
		return
	}

	// A candidate for a different channel arrived: the in-flight one can
	// no longer be completing, release it now rather than waiting out its
	// timer.
	q.releaseLocked(q.current)
	q.startLocked(f)
}

func (q *Queue) startLocked(f message.SensorFrame) {
	f.RepeatsCaptured = 1
	entry := &heldEntry{channel: f.Channel, frame: f}
	entry.timer = time.AfterFunc(q.hold, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if q.current == entry {
			q.releaseLocked(entry)
		}
	})
	q.current = entry
}

func (q *Queue) releaseLocked(entry *heldEntry) {
	entry.timer.Stop()
	if q.current == entry {
		q.current = nil
	}
	// The caller decides, from the frame's rank, whether this is worth
	// pushing through the quality estimator only or all the way to
	// delivery (spec.md §4.6's "otherwise drop silently" is about
	// delivery, not about the quality observation).
	q.onRank(entry.frame)
}

// Close cancels any in-flight hold without dispatching it, for monitor
// teardown.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current != nil {
		q.current.timer.Stop()
		q.current = nil
	}
}

// Decision is the outcome of evaluating a candidate against a channel's
// last delivered frame.
type Decision struct {
	Deliver bool
	Cache   bool
}

// Evaluate applies the dedup/reuse policy of spec.md §4.6. hasLast is
// false for a channel's first-ever observation.
func Evaluate(candidate, last message.SensorFrame, hasLast bool) Decision {
	if !hasLast {
		return Decision{Deliver: true, Cache: true}
	}

	if candidate.HasSameValues(last) && candidate.CollectionTime < last.CollectionTime+RepeatSuppression {
		return Decision{Deliver: false, Cache: false}
	}

	if !candidate.ValidChecksum && last.ValidChecksum {
		if candidate.CollectionTime < last.CollectionTime+ReuseOldDataLimit && candidate.HasCloseValues(last) {
			return Decision{Deliver: false, Cache: false}
		}
		return Decision{Deliver: true, Cache: false}
	}

	return Decision{Deliver: true, Cache: true}
}
