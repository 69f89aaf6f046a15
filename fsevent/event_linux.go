// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

//go:build linux

package fsevent

import "syscall"

func ioctlSyscall(f uintptr, op uint, arg uintptr) error {
	if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f, uintptr(op), arg); errno != 0 {
		return syscall.Errno(errno)
	}
	return nil
}

const (
	epollPRI    = 2
	epollET     = 1 << 31
	epollCTLAdd = 1
)

// event is the Linux epoll-backed implementation.
//
// References: http://man7.org/linux/man-pages/man7/epoll.7.html
type event struct {
	ev      [1]syscall.EpollEvent
	epollFd int
	fd      int
}

func (e *event) makeEvent(fd uintptr) error {
	epollFd, err := syscall.EpollCreate(1)
	if err != nil {
		return err
	}
	e.epollFd = epollFd
	e.fd = int(fd)
	e.ev[0].Events = epollPRI | epollET
	e.ev[0].Fd = int32(e.fd)
	return syscall.EpollCtl(e.epollFd, epollCTLAdd, e.fd, &e.ev[0])
}

func (e *event) wait(timeoutms int) (int, error) {
	return syscall.EpollWait(e.epollFd, e.ev[:], timeoutms)
}
