// Package transition turns raw region callbacks into occupancy transitions.
//
// Scanners repeat region callbacks freely: after a restart, on signal
// flutter, or simply because the platform re-delivers. The Detector compares
// each callback with the persisted status map and emits an event only when
// the entered flag actually flips. The flip is written to the store before
// it is published, and nothing is published when the write fails, so the
// store always matches the last event subscribers received.
//
// The decision itself is the pure function Decide; the Detector adds the
// store write, publication and observer notification around it.
package transition
