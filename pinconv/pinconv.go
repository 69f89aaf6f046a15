// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package pinconv converts a pin identifier expressed in the physical,
// WiringPi, or BCM-GPIO numbering convention into a BCM-GPIO number, the
// only convention the sysfs backend's Open accepts. This replaces the
// teacher's board-specific allwinner/nanopi/orangepi packages (not kept;
// see DESIGN.md) with a single, self-contained table covering the
// Raspberry Pi header layouts those packages targeted.
package pinconv

import (
	"fmt"

	"acurite.io/signalmonitor/distro"
)

// System names a pin-numbering convention.
type System int

const (
	SystemDefault System = iota
	SystemGPIO
	SystemPhys
	SystemWiringPi
)

// legacyRevisionThreshold is the /proc/cpuinfo Revision boundary below
// which a board is a 26-pin rev-1 Raspberry Pi using the older BCM
// assignment for physical pins 3, 5, and 13. Boards that cannot be
// identified (Revision() returns 0) are treated as the newer, far more
// common 40-pin layout, per spec.md §9's guidance that this lookup is a
// table-selection optimization, not load-bearing correctness.
const legacyRevisionThreshold = 0x10

// physToBCM is the 40-pin header's physical-pin-to-BCM-GPIO mapping.
// Power/ground pins are absent and resolve as errors.
var physToBCM = map[int]int{
	3: 2, 5: 3, 7: 4, 8: 14, 10: 15, 11: 17, 12: 18, 13: 27, 15: 22, 16: 23,
	18: 24, 19: 10, 21: 9, 22: 25, 23: 11, 24: 8, 26: 7, 27: 0, 28: 1, 29: 5,
	31: 6, 32: 12, 33: 13, 35: 19, 36: 16, 37: 26, 38: 20, 40: 21,
}

// physToBCMLegacy overrides the handful of physical pins that a 26-pin
// rev-1 board wires to a different BCM GPIO than the 40-pin layout.
var physToBCMLegacy = map[int]int{
	3: 0, 5: 1, 13: 21,
}

// wiringPiToBCM is the classic WiringPi pin numbering's mapping to BCM.
var wiringPiToBCM = map[int]int{
	0: 17, 1: 18, 2: 27, 3: 22, 4: 23, 5: 24, 6: 25, 7: 4, 8: 2, 9: 3,
	10: 8, 11: 7, 12: 10, 13: 9, 14: 11, 15: 14, 16: 15, 17: 0, 18: 1,
	19: 5, 20: 6, 21: 13, 22: 19, 23: 26, 24: 12, 25: 16, 26: 20, 27: 21,
}

// Convert translates identifier, expressed in the given System, to a
// BCM-GPIO number.
func Convert(identifier int, system System) (int, error) {
	switch system {
	case SystemDefault, SystemGPIO:
		if identifier < 0 || identifier > 27 {
			return 0, fmt.Errorf("pinconv: BCM GPIO %d out of range", identifier)
		}
		return identifier, nil
	case SystemPhys:
		return convertPhys(identifier)
	case SystemWiringPi:
		bcm, ok := wiringPiToBCM[identifier]
		if !ok {
			return 0, fmt.Errorf("pinconv: no WiringPi pin %d", identifier)
		}
		return bcm, nil
	default:
		return 0, fmt.Errorf("pinconv: unknown pin system %d", system)
	}
}

func convertPhys(identifier int) (int, error) {
	if isLegacyBoard() {
		if bcm, ok := physToBCMLegacy[identifier]; ok {
			return bcm, nil
		}
	}
	bcm, ok := physToBCM[identifier]
	if !ok {
		return 0, fmt.Errorf("pinconv: physical pin %d is not a GPIO pin", identifier)
	}
	return bcm, nil
}

func isLegacyBoard() bool {
	rev := distro.Revision()
	return rev != 0 && rev < legacyRevisionThreshold
}
