package recorder

import (
	"strconv"
	"strings"
	"sync"

	"github.com/nerrad567/gray-bus-tools/internal/daemon"
)

// Writer is the time-series sink. The influxdb infrastructure client
// satisfies it.
type Writer interface {
	WriteTopicValue(topic string, value float64, raw string)
}

// Options configures the recorder daemon.
type Options struct {
	// SkipSuffixes lists topic suffixes that carry configuration rather
	// than values; messages on them are not recorded.
	SkipSuffixes []string
}

// DefaultSkipSuffixes covers the spec topics of the other daemons.
var DefaultSkipSuffixes = []string{
	"/logic", "/timer", "/timeoff", "/fmtnow",
	"/alarm", "/repeat", "/skip", "/enable", "/snoozetime",
	"/start", "/stop", "/dismiss", "/snooze",
}

// Daemon mirrors numeric bus values into the time-series store, giving
// the installation history for every sensor and switch without touching
// the devices themselves.
type Daemon struct {
	mu     sync.Mutex
	sink   Writer
	log    daemon.Logger
	opts   Options
	writes uint64
}

// New creates a recorder daemon writing through sink.
func New(sink Writer, opts Options, log daemon.Logger) *Daemon {
	if log == nil {
		log = daemon.NopLogger()
	}
	if opts.SkipSuffixes == nil {
		opts.SkipSuffixes = DefaultSkipSuffixes
	}
	return &Daemon{sink: sink, log: log, opts: opts}
}

// HandleMessage records one inbound bus message if it looks like a
// value: non-empty, numeric, and not on a configuration suffix.
func (d *Daemon) HandleMessage(topic string, payload []byte) error {
	text := strings.TrimSpace(string(payload))
	if text == "" {
		return nil
	}
	for _, suffix := range d.opts.SkipSuffixes {
		if strings.HasSuffix(topic, suffix) {
			return nil
		}
	}
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		d.log.Debug("non-numeric payload skipped", "topic", topic)
		return nil
	}

	d.mu.Lock()
	d.writes++
	d.mu.Unlock()
	d.sink.WriteTopicValue(topic, value, text)
	return nil
}

// Writes returns the number of recorded points.
func (d *Daemon) Writes() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.writes
}
