// Package clock implements the formatted-time daemon. Displays on the
// bus (wall panels, matrix displays, e-paper dashboards) subscribe to a
// plain topic and get ready-to-render text; the daemon owns the strftime
// formatting and only publishes when the text actually changes.
package clock
