// Package firmware simulates the controller side of the command protocol
// so the host drivers can be exercised without hardware.
//
// The simulator accepts the configuration and runtime commands the host
// emits (config_shift_register, config_digital_out, finalize_config,
// queue_digital_out, update_digital_out, shift_register_set_pin), keeps the
// state of every shift register and digital output, and records the control
// line writes of each shift-out: latch low, then for every register from the
// last to the first its bits MSB first (data, clock high, clock low), then
// latch high.
//
// Like a real controller, any malformed or out-of-order command shuts the
// firmware down: queued events are dropped, register bits clear and every
// digital output returns to its default value.
package firmware
