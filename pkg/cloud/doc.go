// Package cloud defines the credential-acquisition surface for appliance
// onboarding.
//
// Appliances on the v3 LAN protocol require a token/key pair minted by the
// vendor account service before the local handshake can run. The token bytes
// depend on how the service serialized the device identifier, so first
// pairing probes little-endian then big-endian in that fixed order.
//
// Logins across concurrently onboarding devices are serialized by a gate so
// only one account flow runs at a time.
package cloud
