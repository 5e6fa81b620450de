package logic

import (
	"strings"
	"sync"

	"github.com/nerrad567/gray-bus-tools/internal/cache"
	"github.com/nerrad567/gray-bus-tools/internal/daemon"
	"github.com/nerrad567/gray-bus-tools/internal/registry"
	"github.com/nerrad567/gray-bus-tools/internal/rpn"
)

// Options configures the logic daemon.
type Options struct {
	// Suffix marks expression topics. A payload on "<name><Suffix>"
	// installs or replaces the expression for item "<name>".
	Suffix string

	// WriteSuffix, when set, redirects output to "<name><WriteSuffix>"
	// non-retained instead of publishing "<name>" retained. Useful when
	// another component owns the bare topic.
	WriteSuffix string
}

// DefaultSuffix is the expression-topic suffix when none is configured.
const DefaultSuffix = "/logic"

// item is one installed expression and its publish state.
type item struct {
	topic      string
	writeTopic string
	expr       *rpn.Expr
	format     *outputFormat
	lastValue  string
	hasLast    bool
}

// Daemon evaluates expressions against cached topic values and publishes
// results on change.
//
// Messages arrive through HandleMessage: expression topics install,
// replace or delete items; every other topic updates the value cache and,
// when referenced by at least one expression, triggers a propagation pass
// over the dependent items. All state is guarded by one mutex since the
// bus client delivers on its own goroutines.
type Daemon struct {
	mu    sync.Mutex
	bus   daemon.Bus
	log   daemon.Logger
	opts  Options
	items *registry.Registry[*item]
	vals  *cache.Cache
	stack rpn.Stack
}

// New creates a logic daemon publishing through bus.
func New(bus daemon.Bus, opts Options, log daemon.Logger) *Daemon {
	if log == nil {
		log = daemon.NopLogger()
	}
	if opts.Suffix == "" {
		opts.Suffix = DefaultSuffix
	}
	return &Daemon{
		bus:   bus,
		log:   log,
		opts:  opts,
		items: registry.New[*item](),
		vals:  cache.New(),
	}
}

// HandleMessage routes one inbound bus message. It is safe to call from
// multiple goroutines and idempotent on duplicate delivery.
func (d *Daemon) HandleMessage(topic string, payload []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if key, ok := registry.MatchSuffix(topic, d.opts.Suffix); ok {
		d.handleSpec(key, string(payload))
		return nil
	}
	d.handleData(topic, string(payload))
	return nil
}

// handleSpec installs, replaces or deletes the expression for key.
// Caller holds d.mu.
func (d *Daemon) handleSpec(key, payload string) {
	if payload == "" {
		if it, ok := d.items.Remove(key); ok {
			d.unref(it)
			d.log.Info("expression removed", "topic", key)
		}
		return
	}

	it, _ := d.items.Ensure(key, func() *item {
		writeTopic := ""
		if d.opts.WriteSuffix != "" {
			writeTopic = key + d.opts.WriteSuffix
		}
		return &item{topic: key, writeTopic: writeTopic}
	})
	d.unref(it)
	it.format = nil

	// A trailing space-separated token starting with '%' is the output
	// format; the rest is the expression.
	text := payload
	if idx := strings.LastIndexByte(text, ' '); idx >= 0 && idx+1 < len(text) && text[idx+1] == '%' {
		f, err := parseOutputFormat(text[idx+1:])
		if err != nil {
			d.log.Warn("bad output format, using default",
				"topic", key, "format", text[idx+1:], "error", err)
		} else {
			it.format = f
		}
		text = text[:idx]
	}

	expr, err := rpn.Parse(text)
	if err != nil {
		// The old expression is already gone; the item stays installed
		// but inert until a valid payload arrives.
		it.expr = nil
		d.log.Warn("expression rejected", "topic", key, "error", err)
		return
	}
	it.expr = expr
	d.ref(it)
	d.log.Info("new expression", "topic", key, "refs", len(expr.Topics()))

	d.evalItem(it)
}

// handleData updates the cache and re-runs dependents.
// Caller holds d.mu.
func (d *Daemon) handleData(topic, payload string) {
	if payload == "" {
		if _, known := d.vals.Raw(topic); !known {
			return
		}
	}
	if !d.vals.Set(topic, payload) {
		return
	}

	d.vals.MarkChanged(topic)
	d.items.ForEach(func(_ string, it *item) {
		if it.topic == topic {
			// An item never re-runs on its own output.
			return
		}
		if it.expr != nil && it.expr.References(topic) {
			d.evalItem(it)
		}
	})
	d.vals.ClearChanged(topic)
}

// evalItem runs an item's expression and publishes the formatted result
// when it differs from the last published value.
// Caller holds d.mu.
func (d *Daemon) evalItem(it *item) {
	if it.expr == nil {
		return
	}
	d.stack.Reset()
	if err := it.expr.Run(&d.stack, d); err != nil {
		d.log.Debug("evaluation aborted", "topic", it.topic, "error", err)
		return
	}
	value, ok := d.stack.Top()
	if !ok {
		return
	}

	out := it.format.render(value)
	if it.hasLast && it.lastValue == out {
		return
	}

	pubTopic := it.topic
	retained := true
	if it.writeTopic != "" {
		pubTopic = it.writeTopic
		retained = false
	}
	if err := d.bus.Publish(pubTopic, out, retained); err != nil {
		d.log.Error("publish failed", "topic", pubTopic, "error", err)
		return
	}
	it.lastValue = out
	it.hasLast = true
}

// Lookup resolves a variable reference for the expression engine.
func (d *Daemon) Lookup(topic string, changedOnly bool) float64 {
	if changedOnly && !d.vals.Changed(topic) {
		return 0
	}
	v, ok := d.vals.Get(topic)
	if !ok {
		d.log.Info("topic not found", "topic", topic)
		return 0
	}
	return v
}

// Items returns the number of installed expressions.
func (d *Daemon) Items() int { return d.items.Len() }

func (d *Daemon) ref(it *item) {
	if it.expr == nil {
		return
	}
	for _, topic := range it.expr.Topics() {
		d.vals.Ref(topic, +1)
	}
}

func (d *Daemon) unref(it *item) {
	if it.expr == nil {
		return
	}
	for _, topic := range it.expr.Topics() {
		d.vals.Ref(topic, -1)
	}
	it.expr = nil
}
