// Package proprietary reads and writes the binary sweep files produced by the
// four supported FRA instruments.
//
// Every vendor format is described by a Layout: an ordered header Schema, a
// per-point Schema and an optional trailer. One generic reader and writer walk
// the schemas, so adding a field means adding one line to a table.
//
// # Layouts
//
// Omicron (.frx, little-endian):
//
//	[sig(64)][version u32][asset_id(32)][manufacturer(32)][model(32)][rating f32]
//	[test_id(32)][test_voltage f32][ambient_temp f32][count u32]
//	[freq_start f64][freq_end f64][connection(16)]
//	count x [f f64][mag f32][phase f32]
//	[CRC32 u32]
//
// Doble (.dbl, big-endian):
//
//	[sig(32)][format u32][year u16][month u16][day u16][asset(64)]
//	[test_voltage f32][count u32][freq_start f64][freq_end f64]
//	count x [f f64][mag f64][phase f64]
//
// Megger (.meg, little-endian, strings are length-prefixed):
//
//	[sig(48)][magic u32][model u16][version u16][asset_id p32][manufacturer p32]
//	[test_voltage f32][ambient_temp f32][count u32][reserved u32]
//	count x [f f32][mag f32][phase f32][index u32]
//
// Newtons4th (.n4f, big-endian):
//
//	[sig(32)][format u32][version u16][subversion u16][unix ts u64][count u32]
//	[freq_start f64][freq_end f64][test_voltage f32][connection(8)]
//	count x [f f64][mag f64][phase f64]
//	[len u32][JSON {asset_id, manufacturer, model, rating_MVA}]
//
// The Omicron CRC32 (IEEE) covers every byte before it.
//
// # Strings
//
// Fixed slots are zero padded. On decode trailing zeros are stripped and
// invalid UTF-8 is dropped. On encode text longer than the slot is cut on a
// rune boundary; Pascal strings keep at most width-1 bytes after the length
// byte.
//
// # Usage
//
//	layout, err := proprietary.ByName(proprietary.Omicron)
//	if err != nil {
//	    return err
//	}
//	data, err := layout.Encode(rec)
//	...
//	rec, err := layout.Decode("sweep.frx", data)
//
// Decode does not enforce a minimum point count; the validator does.
package proprietary
