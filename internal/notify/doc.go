// Package notify posts a local alert for every room transition.
//
// It is a debugging aid: the Notifier is registered as a transition
// observer only when presence.debug_notifications is enabled. Alerts go to
// graylogic/ui/{client}/notification and are best effort; a full queue
// drops the alert.
package notify
