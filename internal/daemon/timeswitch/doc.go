// Package timeswitch implements the schedule-driven switch daemon:
// garden lights, shop signs, anything that goes on at one wall-clock
// time and off at another. Intervals may span midnight and repeat on a
// weekday mask; the switched value is published retained so the switched
// device recovers its state after a broker reconnect.
package timeswitch
