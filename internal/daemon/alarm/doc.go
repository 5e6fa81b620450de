// Package alarm implements the alarm-clock daemon. Alarms are defined
// entirely on the bus: retained companion topics under each alarm's base
// topic hold the wake time, repeat mask and tuning knobs, the base topic
// carries the ringing state, and momentary control topics dismiss or
// snooze one alarm or all ringing ones. Cross-alarm events and the
// active count are published under a shared prefix for panels and
// downstream logic.
package alarm
