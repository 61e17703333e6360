// Package security implements the appliance LAN security layer.
//
// Two generations of traffic protection exist side by side:
//
//   - The command body cipher: every command body is AES-ECB encrypted with a
//     key derived from the vendor sign key, and every LAN packet carries an
//     MD5 trailer binding the packet to that key.
//   - The 8370 stream codec (protocol version 3): after a token handshake the
//     TCP stream switches to framed messages that are AES-CBC encrypted with a
//     per-session key and signed with SHA-256.
//
// All randomness is injected through an io.Reader so the layer stays
// deterministic under test. One Session holds key material for exactly one
// appliance connection; nothing is shared between sessions.
package security
