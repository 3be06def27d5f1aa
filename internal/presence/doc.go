// Package presence runs the beacon occupancy engine.
//
// The Engine owns the region monitor, the transition detector, the status
// store and the permission gate, and drives all of them from a single
// goroutine started by Run. Platform callbacks arrive through the Delegate
// methods and scan commands through StartScanning/StopScanning/StartAll;
// both are queued onto that goroutine, so none of the owned state is
// locked.
//
// State leaves the goroutine only as copies: an immutable Snapshot behind an
// atomic pointer, a latest-wins Updates channel, the event bus streams and
// the permission gate subscriptions.
//
// Usage:
//
//	engine := presence.New(bridge, store, bus, gate,
//	    presence.WithLogger(logger),
//	    presence.WithMaxRegions(cfg.Presence.MaxRegions),
//	)
//	go engine.Run(ctx)
//	engine.StartAll(ctx, rooms)
package presence
