// Package wire owns the monitor message contract.
//
// Ownership boundary:
// - request/response/publication shapes and their variant rules
// - the msgpack codec used on both the reply and publish channels
package wire
