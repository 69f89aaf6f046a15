// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package dispatch holds the registered-listener map and the per-channel
// last-delivered-frame cache, both guarded by a single lock (dispatch_lock
// in spec.md §5) so delivery ordering and cache reads stay consistent.
package dispatch

import (
	"log"
	"sync"

	"acurite.io/signalmonitor/message"
)

type entry struct {
	id       uint32
	cb       message.Listener
	userData interface{}
}

// Registry is the listener map and last-frame cache for one Monitor.
type Registry struct {
	mu        sync.Mutex
	nextID    uint32
	listeners []entry
	last      map[message.Channel]message.SensorFrame
	haveLast  map[message.Channel]bool
	logger    *log.Logger
}

// NewRegistry builds an empty registry. logger may be nil; it is used only
// to report a listener panic without taking down the process, per
// spec.md §7's catch-and-log isolation policy.
func NewRegistry(logger *log.Logger) *Registry {
	return &Registry{
		last:     make(map[message.Channel]message.SensorFrame),
		haveLast: make(map[message.Channel]bool),
		logger:   logger,
	}
}

// Add registers a listener and returns its id, in insertion order.
func (r *Registry) Add(cb message.Listener, userData interface{}) uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := r.nextID
	r.listeners = append(r.listeners, entry{id: id, cb: cb, userData: userData})
	return id
}

// Remove unregisters a listener by id. A no-op if the id is unknown.
func (r *Registry) Remove(id uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.listeners {
		if e.id == id {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return
		}
	}
}

// Deliver invokes every registered listener, in id-insertion order, with
// frame. A panicking listener is recovered and logged; it never prevents
// the remaining listeners from receiving the frame.
func (r *Registry) Deliver(frame message.SensorFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.listeners {
		r.invoke(e, frame)
	}
}

func (r *Registry) invoke(e entry, frame message.SensorFrame) {
	defer func() {
		if rec := recover(); rec != nil && r.logger != nil {
			r.logger.Printf("dispatch: listener %d panicked: %v", e.id, rec)
		}
	}()
	e.cb(frame, e.userData)
}

// SetLastFrame caches frame as the most recently delivered reading for its
// channel. Must be called under the same lock Deliver uses to keep the
// cache consistent with what listeners actually saw; Registry enforces
// this by taking its own lock internally.
func (r *Registry) SetLastFrame(frame message.SensorFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last[frame.Channel] = frame
	r.haveLast[frame.Channel] = true
}

// LastFrame returns the cached last delivered frame for channel, if any.
func (r *Registry) LastFrame(channel message.Channel) (message.SensorFrame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.haveLast[channel]
	return r.last[channel], f && ok
}

// Erase drops a channel's cached last frame (used when its signal quality
// reaches 0).
func (r *Registry) Erase(channel message.Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.last, channel)
	delete(r.haveLast, channel)
}

// DeliverAndCache delivers frame and, if cache is true, updates the last-
// frame cache under the same lock acquisition, matching the dedup policy's
// deliver/cache split (spec.md §4.6).
func (r *Registry) DeliverAndCache(frame message.SensorFrame, deliver, cache bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if deliver {
		for _, e := range r.listeners {
			r.invoke(e, frame)
		}
	}
	if cache {
		r.last[frame.Channel] = frame
		r.haveLast[frame.Channel] = true
	}
}
