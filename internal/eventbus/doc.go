// Package eventbus broadcasts room occupancy transitions.
//
// A Bus has two independent streams, Enters and Exits, each carrying room
// ids. Delivery is fire-and-forget: Publish never blocks, and a subscriber
// whose buffer is full misses the event. There is no replay; a subscriber
// only sees events published after it subscribed.
//
// All methods are safe for concurrent use.
package eventbus
