// Package timespec parses the small time grammar shared by the daemons'
// configuration payloads: delay literals with unit suffixes, HH:MM times
// of day, and seven-character weekday repeat masks. NextHHMM computes the
// next occurrence of a scheduled wall-clock time, resolving
// daylight-saving transitions in favour of the wall clock.
package timespec
