// Package ac implements the air-conditioner attribute synchronizer.
//
// The synchronizer owns the typed attribute set for one appliance. Incoming
// decoded bodies merge through per-body-type field tables; each merge returns
// a change-set of the attributes that were altered, with derived fields
// (fresh-air mode) and invariant corrections (indirect wind and screen
// display forced off with power) applied after the raw field pass.
//
// Outbound writes go the other way: a desired attribute delta is routed to
// the command form the appliance actually understands - the general status
// set, the tag-keyed new-protocol extension, or the legacy sub-protocol set -
// with mutual-exclusion and power coupling rules applied per command.
//
// All mutation happens on the owning session's receive path or synchronously
// inside the build methods; external readers only ever see snapshots and
// change-sets.
package ac
