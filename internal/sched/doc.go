// Package sched provides the deferred-callback scheduler shared by all
// of the daemons.
//
// Daemons are event loops: they block on bus traffic for at most
// Scheduler.WaitTime, then call Flush to run whatever came due. Timers
// are identified by the (callback, argument) pair, so re-arming an item's
// timer replaces the previous one rather than stacking a duplicate, and
// cancellation needs no handle bookkeeping on the caller's side.
package sched
