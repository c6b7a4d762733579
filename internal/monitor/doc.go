// Package monitor owns the counter/metrics monitor core.
//
// Ownership boundary:
// - the counter store and its single-writer mutation rules
// - command dispatch from decoded requests to store operations
// - publication fan-out onto the publish channel
// - service lifecycle (run/ready/stop) and the control loop
package monitor
