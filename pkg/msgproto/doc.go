// Package msgproto implements the textual command grammar spoken with the
// controller firmware.
//
// # Overview
//
// Two kinds of text share one lexer:
//   - Format strings declare a command and its typed parameters, for example
//     "queue_digital_out oid=%c clock=%u on_ticks=%u".
//   - Command lines carry concrete values, for example
//     "config_digital_out oid=4 pin=5 value=1 default_value=0 max_duration=0 shift_register_oid=1".
//
// Configuration lines may use symbolic values (pin names such as PA0, or the
// bit names "0".."N-1" a shift register declares). A Dictionary resolves
// those names to integers before the line reaches the firmware.
//
// # Usage
//
//	f, err := msgproto.ParseFormat("update_digital_out oid=%c value=%c")
//	line, err := f.Encode(4, 1) // "update_digital_out oid=4 value=1"
//
//	dict := msgproto.NewDictionary()
//	dict.AddEnumerations("pin", map[string]int{"PA0": 0})
//	l, _ := msgproto.ParseLine("config_shift_register oid=1 data_pin=PA0")
//	resolved, err := dict.Resolve(l) // data_pin=0
package msgproto
