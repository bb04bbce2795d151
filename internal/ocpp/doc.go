// Package ocpp owns the wire contract between the central and point roles.
//
// Ownership boundary:
// - envelope framing ([type, id, ...] JSON arrays)
// - action names and their request/reply payload shapes
// - call error taxonomy
package ocpp
