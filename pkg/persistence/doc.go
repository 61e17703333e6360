// Package persistence stores paired-appliance credentials on disk.
//
// Token/key pairs acquired during onboarding are written as hex strings in
// one JSON file keyed by device ID, so restarts re-supply them to sessions
// without another account login.
package persistence
