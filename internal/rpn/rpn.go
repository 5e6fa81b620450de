package rpn

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Env resolves variable references at evaluation time. The logic daemon
// backs this with its topic value cache; tests use a map.
//
// Lookup returns the current numeric value of topic, or 0 when the topic
// is unknown. When changedOnly is set the value is reported only if the
// topic was updated in the current propagation pass, otherwise 0.
type Env interface {
	Lookup(topic string, changedOnly bool) float64
}

// Stack is the evaluation stack, reused across runs.
type Stack struct {
	v []float64
}

// Reset empties the stack for a fresh run.
func (st *Stack) Reset() { st.v = st.v[:0] }

// Len returns the number of values on the stack.
func (st *Stack) Len() int { return len(st.v) }

// Top returns the top-of-stack value. The boolean is false on an empty
// stack.
func (st *Stack) Top() (float64, bool) {
	if len(st.v) == 0 {
		return 0, false
	}
	return st.v[len(st.v)-1], true
}

func (st *Stack) push(v float64) { st.v = append(st.v, v) }

func (st *Stack) pop1() (float64, error) {
	if len(st.v) < 1 {
		return 0, ErrStackUnderflow
	}
	a := st.v[len(st.v)-1]
	st.v = st.v[:len(st.v)-1]
	return a, nil
}

func (st *Stack) pop2() (a, b float64, err error) {
	if len(st.v) < 2 {
		return 0, 0, ErrStackUnderflow
	}
	a = st.v[len(st.v)-2]
	b = st.v[len(st.v)-1]
	st.v = st.v[:len(st.v)-2]
	return a, b, nil
}

// node is one compiled token.
type node struct {
	// exactly one of op / topic-reference / constant
	op          func(st *Stack) error
	topic       string
	changedOnly bool
	isEnv       bool
	value       float64
}

// Expr is a compiled expression, evaluated left to right over one stack.
type Expr struct {
	nodes []node
	text  string
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// operators maps token to stack operation. Bitwise and boolean operators
// truncate operands toward zero before acting.
var operators = map[string]func(st *Stack) error{
	"+": func(st *Stack) error {
		a, b, err := st.pop2()
		if err != nil {
			return err
		}
		st.push(a + b)
		return nil
	},
	"-": func(st *Stack) error {
		a, b, err := st.pop2()
		if err != nil {
			return err
		}
		st.push(a - b)
		return nil
	},
	"*": func(st *Stack) error {
		a, b, err := st.pop2()
		if err != nil {
			return err
		}
		st.push(a * b)
		return nil
	},
	"/": func(st *Stack) error {
		a, b, err := st.pop2()
		if err != nil {
			return err
		}
		st.push(a / b)
		return nil
	},
	"**": func(st *Stack) error {
		a, b, err := st.pop2()
		if err != nil {
			return err
		}
		st.push(math.Pow(a, b))
		return nil
	},
	"&": func(st *Stack) error {
		a, b, err := st.pop2()
		if err != nil {
			return err
		}
		st.push(float64(int64(a) & int64(b)))
		return nil
	},
	"|": func(st *Stack) error {
		a, b, err := st.pop2()
		if err != nil {
			return err
		}
		st.push(float64(int64(a) | int64(b)))
		return nil
	},
	"^": func(st *Stack) error {
		a, b, err := st.pop2()
		if err != nil {
			return err
		}
		st.push(float64(int64(a) ^ int64(b)))
		return nil
	},
	"~": func(st *Stack) error {
		a, err := st.pop1()
		if err != nil {
			return err
		}
		st.push(float64(^int64(a)))
		return nil
	},
	"&&": func(st *Stack) error {
		a, b, err := st.pop2()
		if err != nil {
			return err
		}
		st.push(b2f(int64(a) != 0 && int64(b) != 0))
		return nil
	},
	"||": func(st *Stack) error {
		a, b, err := st.pop2()
		if err != nil {
			return err
		}
		st.push(b2f(int64(a) != 0 || int64(b) != 0))
		return nil
	},
	"!": func(st *Stack) error {
		a, err := st.pop1()
		if err != nil {
			return err
		}
		st.push(b2f(int64(a) == 0))
		return nil
	},
	"<": func(st *Stack) error {
		a, b, err := st.pop2()
		if err != nil {
			return err
		}
		st.push(b2f(a < b))
		return nil
	},
	">": func(st *Stack) error {
		a, b, err := st.pop2()
		if err != nil {
			return err
		}
		st.push(b2f(a > b))
		return nil
	},
	"dup": func(st *Stack) error {
		a, err := st.pop1()
		if err != nil {
			return err
		}
		st.push(a)
		st.push(a)
		return nil
	},
	"swap": func(st *Stack) error {
		a, b, err := st.pop2()
		if err != nil {
			return err
		}
		st.push(b)
		st.push(a)
		return nil
	},
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// looksNumeric mirrors the literal class: a token starting with a digit,
// or a sign immediately followed by a digit. "+" and "-" alone stay
// operators.
func looksNumeric(tok string) bool {
	if isDigit(tok[0]) {
		return true
	}
	return len(tok) > 1 && (tok[0] == '+' || tok[0] == '-') && isDigit(tok[1])
}

// Parse compiles a whitespace-tokenised expression.
//
// Token classes, tried in order: numeric literal, variable reference of
// the form ${topic} or ${topic,options} (option character '1' makes the
// reference changed-only), operator. Any other token rejects the whole
// expression; there is no partial fallback.
func Parse(text string) (*Expr, error) {
	e := &Expr{text: text}
	for _, tok := range strings.Fields(text) {
		switch {
		case looksNumeric(tok):
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q", ErrBadToken, tok)
			}
			e.nodes = append(e.nodes, node{value: v})

		case strings.HasPrefix(tok, "${") && strings.HasSuffix(tok, "}") && len(tok) > 3:
			inner := tok[2 : len(tok)-1]
			topic, options, _ := strings.Cut(inner, ",")
			if topic == "" {
				return nil, fmt.Errorf("%w: empty reference %q", ErrBadToken, tok)
			}
			e.nodes = append(e.nodes, node{
				topic:       topic,
				isEnv:       true,
				changedOnly: strings.ContainsRune(options, '1'),
			})

		default:
			op, ok := operators[tok]
			if !ok {
				return nil, fmt.Errorf("%w: %q", ErrBadToken, tok)
			}
			e.nodes = append(e.nodes, node{op: op})
		}
	}
	return e, nil
}

// Run evaluates the expression left to right on st, resolving variable
// references through env. The caller resets the stack beforehand and
// takes the top-of-stack value afterwards; extra values below the top are
// tolerated. On stack underflow evaluation aborts and the run has no
// result.
func (e *Expr) Run(st *Stack, env Env) error {
	for _, n := range e.nodes {
		switch {
		case n.op != nil:
			if err := n.op(st); err != nil {
				return err
			}
		case n.isEnv:
			st.push(env.Lookup(n.topic, n.changedOnly))
		default:
			st.push(n.value)
		}
	}
	return nil
}

// Topics returns the distinct topics referenced by the expression, in
// first-mention order. A topic mentioned several times appears once, so
// installers can treat the result as the expression's dependency set.
func (e *Expr) Topics() []string {
	var out []string
	seen := make(map[string]bool)
	for _, n := range e.nodes {
		if n.isEnv && !seen[n.topic] {
			seen[n.topic] = true
			out = append(out, n.topic)
		}
	}
	return out
}

// References reports whether the expression mentions topic.
func (e *Expr) References(topic string) bool {
	for _, n := range e.nodes {
		if n.isEnv && n.topic == topic {
			return true
		}
	}
	return false
}

// Empty reports whether the expression compiled to no nodes.
func (e *Expr) Empty() bool { return len(e.nodes) == 0 }

// String returns the source text the expression was compiled from.
func (e *Expr) String() string { return e.text }
