// Package session implements the device session state machine.
//
// A session owns exactly one transport connection and one security context
// for one appliance, moving through Disconnected, Handshaking and Connected.
// Sends are fire-and-forget; a background receive loop decrypts, decodes and
// merges every inbound frame through the attribute synchronizer, surfacing
// change-sets to the owner's callback. Malformed or unverifiable frames are
// logged and dropped without tearing the connection down.
//
// Reconnection policy is deliberately not here; a supervising loop drives
// Connect and Disconnect from outside.
package session
