// Package cache holds the latest-known value per bus topic.
//
// The logic daemon's expressions read their variables from here. Each
// topic carries a reference count, maintained as expressions are
// installed and removed, and a transient changed flag marking the topic
// that triggered the current propagation pass. Topics appear in the
// cache on first reference or first data message; a referenced topic
// with no value yet reads as zero, which covers the normal startup race
// before retained values arrive.
package cache
