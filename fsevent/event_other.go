// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build !linux

package fsevent

import "errors"

func ioctlSyscall(f uintptr, op uint, arg uintptr) error {
	return errors.New("fsevent: ioctl not supported on non-linux")
}

type event struct{}

func (e *event) makeEvent(fd uintptr) error {
	return errors.New("fsevent: edge events not supported on non-linux")
}

func (e *event) wait(timeoutms int) (int, error) {
	return 0, errors.New("fsevent: edge events not supported on non-linux")
}
