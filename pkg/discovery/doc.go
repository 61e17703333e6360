// Package discovery finds appliances on the local network.
//
// Appliances answer a fixed UDP broadcast probe on port 6445 with an
// identity packet carrying their numeric ID, serial, SSID and protocol
// version. The probe payload is a fixed byte template the firmware matches
// verbatim; replies on the v3 protocol arrive wrapped in the stream framing
// and must be unwrapped before the identity packet can be decrypted.
//
// Found devices are pushed to the caller through a callback; the rest of the
// stack consumes only the resulting DeviceInfo records.
package discovery
