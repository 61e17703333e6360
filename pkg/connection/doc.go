// Package connection supervises the lifecycle of one appliance session.
//
// The session itself only knows how to connect, disconnect, and report state;
// reconnection policy lives here. The supervisor applies exponential backoff
// with jitter between attempts and notifies the caller through callbacks, so
// a bridge layer can surface reachability without polling.
package connection
