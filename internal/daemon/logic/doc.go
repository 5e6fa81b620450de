// Package logic implements the expression daemon.
//
// Publishing an expression to "<name>/logic" (retained, so it survives
// restarts) makes the daemon evaluate it whenever a referenced topic
// changes and publish the formatted result to "<name>". An optional
// trailing "%"-token sets the output format; an empty payload removes
// the item. Results are only published when the formatted text actually
// differs from the last published value, which keeps unchanged upstream
// updates from fanning out into republish storms.
package logic
