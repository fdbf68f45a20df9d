// Package daemon supplies the supervised lifecycle every long-running
// pump in this module is built on: window, shatter and flusher daemons
// all embed Base rather than managing a goroutine and a done channel by
// hand.
//
// A daemon moves through exactly three states - Stopped, Running,
// Completed - publishing a StatusChanged event on each transition and at
// most one FailureOccurred event if its pump returns an error other than
// context cancellation. Callers observe this either by polling Status,
// blocking on WaitFor/WaitForFailure, or tailing Events() directly.
package daemon
