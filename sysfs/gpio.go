// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Package sysfs opens and arms the single GPIO pin a Monitor reads 433MHz
// pulse edges from, through the kernel's /sys/class/gpio interface
// (https://www.kernel.org/doc/Documentation/gpio/sysfs.txt). Acu-Rite
// decoding never drives a pin, switches direction, or needs PWM, so
// EdgePin exposes only what an edge-triggered input reader needs: Open,
// ReadEdge, Halt. It does not implement gpio.PinIO and never registers
// with periph's driverreg/gpioreg - there is exactly one pin and one
// backend to choose, so that generic multi-driver indirection buys
// nothing here.
package sysfs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"acurite.io/signalmonitor/distro"
	"acurite.io/signalmonitor/fsevent"
)

// ErrAlreadyOpen is returned by Open when bcm is already held open by an
// EdgePin elsewhere in this process.
var ErrAlreadyOpen = errors.New("sysfs: pin already opened by this process")

var errNotLinux = errors.New("sysfs: gpio sysfs is only available on linux")

var (
	mu      sync.Mutex
	claimed = map[int]bool{}
)

// EdgePin is one GPIO pin exported, switched to both-edges input, and
// armed for epoll-based edge-triggered reads.
type EdgePin struct {
	number int
	root   string // e.g. /sys/class/gpio/gpio17/

	fDirection fileIO
	fEdge      fileIO
	fValue     fileIO
	event      fsevent.Event
	buf        [4]byte
}

// Open exports the BCM-numbered pin bcm, switches it to both-edges input,
// and arms an edge-triggered epoll watch on it. Only one EdgePin per bcm
// number may be open at a time within this process.
func Open(bcm int) (*EdgePin, error) {
	if !isLinux {
		return nil, errNotLinux
	}

	mu.Lock()
	if claimed[bcm] {
		mu.Unlock()
		return nil, ErrAlreadyOpen
	}
	claimed[bcm] = true
	mu.Unlock()

	p, err := open(bcm)
	if err != nil {
		mu.Lock()
		delete(claimed, bcm)
		mu.Unlock()
		return nil, err
	}
	return p, nil
}

func open(bcm int) (*EdgePin, error) {
	root, err := findRoot(bcm)
	if err != nil {
		return nil, err
	}
	if err := exportPin(root, bcm); err != nil {
		return nil, err
	}

	fValue, err := waitForAccessible(root + "value")
	if err != nil {
		return nil, err
	}
	fDirection, err := fileIOOpen(root+"direction", os.O_RDWR)
	if err != nil {
		_ = fValue.Close()
		return nil, err
	}
	if _, err := seekWrite(fDirection, bIn); err != nil {
		_ = fValue.Close()
		_ = fDirection.Close()
		return nil, fmt.Errorf("sysfs-gpio (GPIO%d): %w", bcm, err)
	}

	fEdge, err := fileIOOpen(root+"edge", os.O_RDWR)
	if err != nil {
		_ = fValue.Close()
		_ = fDirection.Close()
		return nil, err
	}
	p := &EdgePin{number: bcm, root: root, fDirection: fDirection, fEdge: fEdge, fValue: fValue}
	if err := p.armBothEdges(); err != nil {
		return nil, err
	}
	return p, nil
}

// armBothEdges resets edge detection to none, arms the epoll watch, then
// enables both-edges detection. The reset-before-arm order matters: edges
// are not always delivered otherwise, as observed on an Allwinner A20
// running kernel 4.14.14.
func (p *EdgePin) armBothEdges() error {
	if _, err := seekWrite(p.fEdge, bNone); err != nil {
		return p.wrap(err)
	}
	if err := p.event.MakeEvent(p.fValue.Fd()); err != nil {
		return p.wrap(err)
	}
	if _, err := seekWrite(p.fEdge, bBoth); err != nil {
		return p.wrap(err)
	}
	// Flush any edge accumulated between export and arming.
	p.ReadEdge(0)
	return nil
}

// String identifies the pin for logging.
func (p *EdgePin) String() string {
	return fmt.Sprintf("GPIO%d", p.number)
}

// Number returns the BCM-GPIO number this EdgePin was opened on.
func (p *EdgePin) Number() int {
	return p.number
}

// ReadEdge blocks for the next edge (or until timeout elapses, 0 meaning
// don't block) and reports the level the pin settled on once one
// arrives. This folds what would otherwise be a separate WaitForEdge +
// Read pair into the one call Monitor's edge loop actually needs,
// avoiding a window between the two where a second edge could land
// unobserved.
func (p *EdgePin) ReadEdge(timeout time.Duration) (gpio.Level, bool) {
	var ms int
	if timeout < 0 {
		ms = -1
	} else {
		ms = int(timeout / time.Millisecond)
	}
	start := time.Now()
	for {
		nr, err := p.event.Wait(ms)
		if err != nil {
			return gpio.Low, false
		}
		if nr == 1 {
			return p.read(), true
		}
		if timeout < 0 {
			continue
		}
		ms = int((timeout - time.Since(start)) / time.Millisecond)
		if ms <= 0 {
			return gpio.Low, false
		}
	}
}

func (p *EdgePin) read() gpio.Level {
	if _, err := seekRead(p.fValue, p.buf[:]); err != nil {
		return gpio.Low
	}
	if p.buf[0] == '1' {
		return gpio.High
	}
	return gpio.Low
}

// Halt stops edge detection and releases bcm for a future Open call.
func (p *EdgePin) Halt() error {
	_, err := seekWrite(p.fEdge, bNone)
	mu.Lock()
	delete(claimed, p.number)
	mu.Unlock()
	if err != nil {
		return p.wrap(err)
	}
	return nil
}

func (p *EdgePin) wrap(err error) error {
	return fmt.Errorf("sysfs-gpio (%s): %v", p, err)
}

//

var (
	bIn   = []byte("in")
	bNone = []byte("none")
	bBoth = []byte("both")
)

// findRoot locates the /sys/class/gpio/gpio%d/ (or board-specific)
// directory that owns BCM pin bcm, by scanning the gpiochip bases the
// kernel has exposed.
//
// Some CPU architectures have the pin numbers start at 0 and use
// consecutive pin numbers but this is not the case for all CPU
// architectures; some have gaps in the pin numbering, which is why this
// walks every gpiochip* rather than assuming chip 0 owns everything.
func findRoot(bcm int) (string, error) {
	items, err := filepath.Glob("/sys/class/gpio/gpiochip*")
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return "", errors.New("sysfs: no GPIO chip found under /sys/class/gpio")
	}
	boardModel := distro.DTModel()
	for _, item := range items {
		base, err := readInt(item + "/base")
		if err != nil {
			return "", err
		}
		count, err := readInt(item + "/ngpio")
		if err != nil {
			return "", err
		}
		if bcm >= base && bcm < base+count {
			return getSymlinkRoot(boardModel, bcm), nil
		}
	}
	return "", fmt.Errorf("sysfs: GPIO%d not exposed by any gpiochip", bcm)
}

// exportPin asks the kernel to create root's symlink if it doesn't exist
// yet. It is not an error for the pin to already be exported - by an
// earlier run of this process, or another process entirely - only for
// the export request itself to fail for some other reason.
func exportPin(root string, bcm int) error {
	if _, err := os.Stat(root + "value"); err == nil {
		return nil
	}

	f, err := os.OpenFile("/sys/class/gpio/export", os.O_WRONLY, 0)
	if err != nil {
		if os.IsPermission(err) {
			return fmt.Errorf("sysfs: need more access, try as root or configure udev rules: %w", err)
		}
		return err
	}
	defer f.Close()

	_, writeErr := f.Write([]byte(strconv.Itoa(bcm)))
	if writeErr == nil {
		return nil
	}
	// The kernel returns EBUSY if another process exported this pin
	// between the Stat above and this Write; that race is not a real
	// failure as long as the pin did in fact get exported.
	if _, statErr := os.Stat(root + "value"); statErr == nil {
		return nil
	}
	return writeErr
}

// waitForAccessible opens path, retrying briefly on a permission error:
// /export creates the sysfs entry synchronously, but a udev rule making
// it group-readable to the current user runs asynchronously, so the file
// can exist yet still be briefly unreadable right after export.
func waitForAccessible(path string) (fileIO, error) {
	var f fileIO
	var err error
	for start := time.Now(); time.Since(start) < 5*time.Second; {
		if f, err = fileIOOpen(path, os.O_RDWR); err == nil || !os.IsPermission(err) {
			break
		}
	}
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("sysfs: need more access, try as root or configure udev rules: %w", err)
		}
		return nil, err
	}
	return f, nil
}

// readInt reads a pseudo-file (sysfs) that is known to contain an integer
// and returns the parsed number.
func readInt(path string) (int, error) {
	f, err := fileIOOpen(path, os.O_RDONLY)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	var b [24]byte
	n, err := f.Read(b[:])
	if err != nil {
		return 0, err
	}
	raw := b[:n]
	if len(raw) == 0 || raw[len(raw)-1] != '\n' {
		return 0, errors.New("sysfs: invalid integer pseudo-file")
	}
	return strconv.Atoi(string(raw[:len(raw)-1]))
}

const jetsonOrinAgxOffset = 316

// jetsonOrinAgxPinNames maps BCM-style pin numbers starting at
// jetsonOrinAgxOffset to their sysfs names on the NVidia Jetson Orin AGX,
// which doesn't use the "gpio%d" naming nearly every other board uses.
var jetsonOrinAgxPinNames = [196]string{
	"AA.00", "AA.01", "AA.02", "AA.03", "AA.04", "AA.05", "AA.06", "AA.07", "BB.00", "BB.01",
	"BB.02", "BB.03", "CC.00", "CC.01", "CC.02", "CC.03", "CC.04", "CC.05", "CC.06", "CC.07",
	"DD.00", "DD.01", "DD.02", "EE.00", "EE.01", "EE.02", "EE.03", "EE.04", "EE.05", "EE.06",
	"EE.07", "GG.00", "A.00", "A.01", "A.02", "A.03", "A.04", "A.05", "A.06", "A.07",
	"B.00", "C.00", "C.01", "C.02", "C.03", "C.04", "C.05", "C.06", "C.07", "D.00",
	"D.01", "D.02", "D.03", "E.00", "E.01", "E.02", "E.03", "E.04", "E.05", "E.06",
	"E.07", "F.00", "F.01", "F.02", "F.03", "F.04", "F.05", "G.00", "G.01", "G.02",
	"G.03", "G.04", "G.05", "G.06", "G.07", "H.00", "H.01", "H.02", "H.03", "H.04",
	"H.05", "H.06", "H.07", "I.00", "I.01", "I.02", "I.03", "I.04", "I.05", "I.06",
	"J.00", "J.01", "J.02", "J.03", "J.04", "J.05", "K.00", "K.01", "K.02", "K.03",
	"K.04", "K.05", "K.06", "K.07", "L.00", "L.01", "L.02", "L.03", "M.00", "M.01",
	"M.02", "M.03", "M.04", "M.05", "M.06", "M.07", "N.00", "N.01", "N.02", "N.03",
	"N.04", "N.05", "N.06", "N.07", "P.00", "P.01", "P.02", "P.03", "P.04", "P.05",
	"P.06", "P.07", "Q.00", "Q.01", "Q.02", "Q.03", "Q.04", "Q.05", "Q.06", "Q.07",
	"R.00", "R.01", "R.02", "R.03", "R.04", "R.05", "X.00", "X.01", "X.02", "X.03",
	"X.04", "X.05", "X.06", "X.07", "Y.00", "Y.01", "Y.02", "Y.03", "Y.04", "Y.05",
	"Y.06", "Y.07", "Z.00", "Z.01", "Z.02", "Z.03", "Z.04", "Z.05", "Z.06", "Z.07",
	"AC.00", "AC.01", "AC.02", "AC.03", "AC.04", "AC.05", "AC.06", "AC.07", "AD.00", "AD.01",
	"AD.02", "AD.03", "AE.00", "AE.01", "AF.00", "AF.01", "AF.02", "AF.03", "AG.00", "AG.01",
	"AG.02", "AG.03", "AG.04", "AG.05", "AG.06", "AG.07",
}

func getSymlinkRoot(boardModel string, pinNumber int) string {
	if boardModel == "Jetson AGX Orin" {
		pinName := jetsonOrinAgxPinNames[pinNumber-jetsonOrinAgxOffset]
		return fmt.Sprintf("/sys/class/gpio/P%s/", pinName)
	}
	// Nearly all boards use this naming scheme.
	return fmt.Sprintf("/sys/class/gpio/gpio%d/", pinNumber)
}
