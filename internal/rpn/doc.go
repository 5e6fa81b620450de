// Package rpn compiles and evaluates the reverse-polish expressions
// accepted by the logic daemon.
//
// An expression is whitespace-tokenised: numeric literals, ${topic}
// variable references resolved through an Env at run time, and a small
// fixed operator set (arithmetic, bitwise, boolean, comparison, dup and
// swap). A reference written ${topic,1} reads as zero unless its topic is
// the one that triggered the current propagation pass, which lets an
// expression react to a specific edge rather than to any re-evaluation.
package rpn
