// Package registry provides the item table shared by the daemons.
//
// Each daemon keeps one item per configured topic, created when a payload
// arrives on the topic's control suffix (for example "light/kitchen/timer"
// configures the item for "light/kitchen"). MatchSuffix implements that
// routing convention; Registry holds the resulting per-item state.
package registry
