// Package off implements the wildcard auto-off daemon, the sibling of
// the timer daemon for installations that prefer one subscription over
// per-item ones. Every topic seen on the bus gets an implicit item;
// "<name>/timeoff" payloads of the form "DELAY[unit] [RESET]" give an
// item a countdown, and items once created stay for the life of the
// process.
package off
