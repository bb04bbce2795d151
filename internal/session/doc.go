// Package session owns one live connection between the central and point
// roles.
//
// Ownership boundary:
// - the socket and its single serialized send path
// - the inbound listener loop and call dispatch
// - correlation of outbound calls to their replies
//
// Frames are newline-delimited JSON arrays. Every session runs exactly one
// listener goroutine; all writes, whether replies to inbound calls or
// outbound calls from other goroutines, go through send.
package session
