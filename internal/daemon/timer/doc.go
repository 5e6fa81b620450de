// Package timer implements the countdown daemon. Each configured topic
// gets a reset value written back a fixed delay after the topic left its
// reset state, staircase-light style. Configuration lives on the bus as
// retained "<name>/timer" payloads of the form "DELAY[unit] [RESET]".
package timer
