// Package daemon holds the shared plumbing for the bus daemons: the Bus
// and Logger interfaces they depend on and the scheduler-driven event
// loop they all run. The concrete daemons live in the subpackages.
package daemon
