// Package shiftreg exposes the outputs of 74HC595-style shift registers as
// ordinary digital output pins.
//
// # Overview
//
// A Chip owns one chain of NumRegisters 8-bit stages wired to three MCU pins
// (data, clock, latch). It registers itself with the pin registry under its
// name, so a description such as "!sr0:5" resolves to bit 5 of chip "sr0",
// inverted. Bits are named "0" through "8*NumRegisters-1"; any other name
// fails when the pin is set up.
//
// Each Pin has its own firmware object id and references the chip by the
// chip's object id only. The chip's object id is never 0, which the firmware
// reserves for "not on a shift register".
//
// # Setup
//
// The chip registers its configuration with the MCU when created and every
// Pin registers with the chip as a dependency, so MCU.Setup always emits
//
//	config_shift_register oid=<chip> data_pin=<p> clock_pin=<p> latch_pin=<p> num_registers=<n>
//
// before any
//
//	config_digital_out oid=<pin> pin=<bit> value=<0|1> default_value=<0|1> max_duration=0 shift_register_oid=<chip>
//
// # Runtime
//
// Pin.SetValue converts print time to a controller clock and queues
//
//	queue_digital_out oid=<pin> clock=<u32> on_ticks=<value>
//
// with minclock set to the previous command's clock. A time that maps to an
// earlier clock is refused with an OrderingError. Pin.Update sends
// update_digital_out for an immediate change.
//
// A Pin moves from StateUninitialized to StateConfigured when its
// configuration is built and to StateActive on the first command.
package shiftreg
