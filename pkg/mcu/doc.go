// Package mcu is the host-side handle of a motion controller running
// command-driven firmware.
//
// # Overview
//
// An MCU allocates the object ids firmware resources are addressed by,
// converts print time to controller clock, gathers configuration commands
// and sends encoded commands to a Sender (the simulated firmware, a trace
// writer or a Recorder in tests).
//
// # Setup
//
// Components that contribute configuration register themselves with
// Register, naming the components they depend on. Setup then runs two
// phases in dependency order:
//
//  1. BuildConfig on every component (object ids, config commands,
//     enumerations, command templates).
//  2. Identify on every component that implements Identifier.
//
// Afterwards the configuration is resolved against the enumeration
// dictionary, sent, and closed with "finalize_config crc=<crc32>". Runtime
// commands are refused until then.
//
//	m, _ := mcu.New(mcu.Config{Name: "mcu", Pins: []string{"PA0", "PA1"}}, sender, nil)
//	out, _ := m.SetupPin(pins.PinTypeDigitalOut, params)
//	_ = m.Setup()
//	_ = out.(*mcu.DigitalOut).SetValue(0.5, true)
package mcu
