// Package wire implements the appliance message codec.
//
// A device frame is a 10-byte header (sync byte, declared length, appliance
// type, protocol version, frame type), a body whose first byte selects the
// message subtype, and a trailing additive checksum. Bodies of command
// messages additionally carry a CRC-8 over the body bytes.
//
// Decoding stays generic: a decoded body exposes Field(name) backed by a
// per-body-type FieldTable, returning absent for fields this firmware does
// not report. Device-class packages (pkg/ac) supply the tables and the
// outbound body builders.
package wire
