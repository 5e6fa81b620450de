// Package recorder implements the history daemon: every numeric value
// seen on the bus becomes a point in InfluxDB, tagged by topic. It is a
// pure observer; it never publishes.
package recorder
