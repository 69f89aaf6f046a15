// Copyright 2024 The Periph Authors. All rights reserved.
// Use of this source code is governed under the Apache License, Version 2.0
// that can be found in the LICENSE file.

// Command acuritemonitord is a thin process that opens one GPIO pin, decodes
// Acu-Rite 433 MHz temperature/humidity transmissions off it, and logs each
// delivered reading to stdout. It owns no state beyond what signalmonitor
// already keeps in memory: no database, no network server, no history file.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	signalmonitor "acurite.io/signalmonitor"
)

func main() {
	var (
		configFile = pflag.StringP("config", "c", "", "YAML config file (see Config for the schema). Flags below override its values.")
		pin        = pflag.IntP("pin", "p", -1, "pin identifier to open, in the numbering convention named by --pin-system.")
		pinSystem  = pflag.StringP("pin-system", "s", "", "pin numbering convention: default, gpio, phys, or wiring_pi.")
		debug      = pflag.BoolP("debug", "d", false, "enable bit/sync/repair trace logging on the edge path.")
		help       = pflag.BoolP("help", "h", false, "display help text.")
	)

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "acuritemonitord - decode Acu-Rite 433 MHz sensor transmissions from a GPIO pin.\n\n")
		fmt.Fprintf(os.Stderr, "Usage: acuritemonitord [options]\n\n")
		pflag.PrintDefaults()
	}
	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	var cfg signalmonitor.Config
	if *configFile != "" {
		var err error
		cfg, err = signalmonitor.LoadConfig(*configFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}
	if *pin >= 0 {
		cfg.Pin = *pin
	}
	if *pinSystem != "" {
		parsed, err := signalmonitor.ParsePinSystem(*pinSystem)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		cfg.PinSystem = parsed
	}
	if *debug {
		cfg.DebugOutput = true
	}
	if cfg.Pin == 0 && *pin < 0 {
		fmt.Fprintln(os.Stderr, "acuritemonitord: no pin specified; pass --pin or set pin: in --config")
		pflag.Usage()
		os.Exit(1)
	}

	mon, err := signalmonitor.Init(cfg.Pin, cfg.PinSystem)
	if err != nil {
		fmt.Fprintf(os.Stderr, "acuritemonitord: %v\n", err)
		os.Exit(1)
	}
	defer mon.Close()

	mon.EnableDebugOutput(cfg.DebugOutput)
	mon.AddListener(newListener(os.Stdout, cfg.ChannelLabels), nil)

	fmt.Printf("acuritemonitord: listening on GPIO%d\n", mon.GetDataPin())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
