// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

package sysfs

import "acurite.io/signalmonitor/fsevent"

// fileIO is the minimal file handle the sysfs GPIO pin driver needs: a raw
// fd for arming an epoll edge watch, plus offset-addressed reads/writes so
// re-polling a /sys/class/gpio/gpio*/value file never needs an explicit
// Seek call.
type fileIO interface {
	Fd() uintptr
	Close() error
	Read(b []byte) (int, error)
	ReadAt(b []byte, off int64) (int, error)
	WriteAt(b []byte, off int64) (int, error)
}

var fileIOOpen = func(path string, flag int) (fileIO, error) {
	return fsevent.Open(path, flag)
}

func seekRead(f fileIO, b []byte) (int, error) {
	return f.ReadAt(b, 0)
}

func seekWrite(f fileIO, b []byte) (int, error) {
	return f.WriteAt(b, 0)
}
