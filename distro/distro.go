// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package distro reads a handful of Linux-specific system files
// (/proc/cpuinfo, /proc/device-tree/model) used to identify the board a
// monitor is running on. Adapted from periph's own host/distro package,
// which is imported by this module's sysfs package but whose source was
// not present in the retrieved teacher tree.
package distro

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"unicode"
)

var (
	mu      sync.Mutex
	cpuInfo map[string]string
	dtModel string

	readFile = os.ReadFile
)

// CPUInfo returns the parsed contents of /proc/cpuinfo, cached after the
// first read. An unreadable file yields an empty, non-nil map.
func CPUInfo() map[string]string {
	mu.Lock()
	defer mu.Unlock()
	if cpuInfo == nil {
		cpuInfo = map[string]string{}
		if data, err := readFile("/proc/cpuinfo"); err == nil {
			cpuInfo = splitSemiColon(string(data))
		}
	}
	return cpuInfo
}

// DTModel returns the device-tree model string (/proc/device-tree/model),
// or "unknown" if it cannot be read.
func DTModel() string {
	mu.Lock()
	defer mu.Unlock()
	if dtModel == "" {
		dtModel = "unknown"
		if data, err := readFile("/proc/device-tree/model"); err == nil {
			if parts := splitNull(data); len(parts) > 0 {
				dtModel = parts[0]
			}
		}
	}
	return dtModel
}

// Revision returns the Raspberry Pi "Revision" field from /proc/cpuinfo,
// parsed as a hex integer, or 0 if absent/unparsable. pinconv uses this to
// pick a board's pin table; a 0 result means "assume the newer layout."
func Revision() uint64 {
	v, ok := CPUInfo()["Revision"]
	if !ok {
		return 0
	}
	n, err := strconv.ParseUint(strings.TrimSpace(v), 16, 64)
	if err != nil {
		return 0
	}
	return n
}

func splitSemiColon(content string) map[string]string {
	out := map[string]string{}
	for _, line := range strings.Split(content, "\n") {
		parts := strings.SplitN(line, ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimRightFunc(parts[0], unicode.IsSpace)
		if len(key) == 0 || key[0] == '#' {
			continue
		}
		if _, ok := out[key]; !ok {
			out[key] = strings.TrimFunc(parts[1], unicode.IsSpace)
		}
	}
	return out
}

func splitNull(data []byte) []string {
	ss := strings.Split(string(data), "\x00")
	if len(ss) > 0 && len(ss[len(ss)-1]) == 0 {
		ss = ss[:len(ss)-1]
	}
	return ss
}
