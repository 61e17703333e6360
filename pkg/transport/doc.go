// Package transport provides the TCP transport to a LAN appliance.
//
// Appliances listen on a plain TCP port; all confidentiality and integrity
// live in the encrypted stream framing above this layer. The transport
// splits the byte stream into complete frames using the fixed six-byte
// header and its declared length, and emits raw frame log events in both
// directions.
package transport
