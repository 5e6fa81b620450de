// graybus bundles the MQTT automation daemons into a single binary.
//
// Each daemon runs as a subcommand sharing one broker configuration:
//
//	graybus logic             # RPN expression evaluator
//	graybus timer             # delayed reset publisher
//	graybus off               # timeout-turnoff variant of timer
//	graybus alarm             # alarm clock with snooze and repeat
//	graybus timeswitch        # weekly on/off schedule
//	graybus clock             # formatted wall-clock publisher
//	graybus record            # numeric topic mirror into InfluxDB
//
// Trailing arguments are MQTT subscription patterns; most daemons default
// to "#" and pick their work out of the stream by topic suffix.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-bus-tools/internal/daemon"
	"github.com/nerrad567/gray-bus-tools/internal/daemon/alarm"
	"github.com/nerrad567/gray-bus-tools/internal/daemon/clock"
	"github.com/nerrad567/gray-bus-tools/internal/daemon/logic"
	"github.com/nerrad567/gray-bus-tools/internal/daemon/off"
	"github.com/nerrad567/gray-bus-tools/internal/daemon/recorder"
	"github.com/nerrad567/gray-bus-tools/internal/daemon/timer"
	"github.com/nerrad567/gray-bus-tools/internal/daemon/timeswitch"
	"github.com/nerrad567/gray-bus-tools/internal/infrastructure/config"
	"github.com/nerrad567/gray-bus-tools/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-bus-tools/internal/infrastructure/logging"
	"github.com/nerrad567/gray-bus-tools/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-bus-tools/internal/sched"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// rootOptions carries the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	broker     string
	verbosity  int
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "graybus",
		Short:         "MQTT automation daemon suite",
		Long:          "graybus runs small cooperating daemons over a shared MQTT broker:\nan RPN logic evaluator, timers, alarm clocks, time switches, a clock\npublisher and an InfluxDB recorder.",
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file (YAML); falls back to $GRAYBUS_CONFIG, then defaults")
	root.PersistentFlags().StringVarP(&opts.broker, "mqtt", "m", "", "broker HOST[:PORT], overrides configuration")
	root.PersistentFlags().CountVarP(&opts.verbosity, "verbose", "v", "increase log verbosity (repeatable)")

	root.AddCommand(
		newLogicCmd(opts),
		newTimerCmd(opts),
		newOffCmd(opts),
		newAlarmCmd(opts),
		newTimeSwitchCmd(opts),
		newClockCmd(opts),
		newRecordCmd(opts),
	)
	return root
}

// setup loads configuration and builds the logger for one daemon. The
// precedence is flags over environment over file over defaults; repeated
// -v flags map onto log levels the way the original tools did.
func (o *rootOptions) setup(name string) (*config.Config, *logging.Logger, error) {
	path := o.configPath
	if path == "" {
		path = os.Getenv("GRAYBUS_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	if o.broker != "" {
		if err := cfg.SetBroker(o.broker); err != nil {
			return nil, nil, err
		}
	}
	if o.verbosity > 0 {
		cfg.Logging.Level = logging.Verbosity(o.verbosity)
	}

	log := logging.New(cfg.Logging, name, version)
	log.Info("starting", "version", version, "commit", commit)
	return cfg, log, nil
}

// handler is the message entry point every daemon exposes.
type handler interface {
	HandleMessage(topic string, payload []byte) error
}

// daemonBus adapts the infrastructure MQTT client to the bus interface the
// daemons publish and subscribe through. Subscriptions made by a daemon
// (the timer daemon subscribes per item) are bound to the daemon's own
// message handler; the handler field is set once the daemon exists.
type daemonBus struct {
	client  *mqtt.Client
	handler mqtt.MessageHandler
}

func (b *daemonBus) Publish(topic, payload string, retained bool) error {
	return b.client.PublishString(topic, payload, retained)
}

func (b *daemonBus) ClearRetained(topic string) error {
	return b.client.ClearRetained(topic)
}

func (b *daemonBus) Subscribe(topic string) error {
	return b.client.Subscribe(topic, b.client.QoS(), b.handler)
}

func (b *daemonBus) Unsubscribe(topic string) error {
	return b.client.Unsubscribe(topic)
}

var _ daemon.Bus = (*daemonBus)(nil)

// runDaemon wires one scheduler-driven daemon to the broker and drives its
// event loop until the context is cancelled.
//
// build receives the connected bus and shared scheduler and returns the
// daemon plus an optional shutdown hook that runs before the broker
// connection closes (the clock daemon clears its retained outputs there).
func (o *rootOptions) runDaemon(
	ctx context.Context,
	name string,
	patterns []string,
	build func(cfg *config.Config, bus daemon.Bus, sch *sched.Scheduler, log *logging.Logger) (handler, func()),
) error {
	cfg, log, err := o.setup(name)
	if err != nil {
		return err
	}

	client, err := mqtt.Connect(cfg.MQTT, name)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	client.SetLogger(log)
	client.SetOnConnect(func() { log.Info("MQTT connected") })
	client.SetOnDisconnect(func(err error) { log.Warn("MQTT disconnected", "error", err) })
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	s := sched.New()
	bus := &daemonBus{client: client}
	d, shutdown := build(cfg, bus, s, log)
	bus.handler = d.HandleMessage
	if shutdown != nil {
		defer shutdown()
	}

	for _, pattern := range patterns {
		if err := client.Subscribe(pattern, client.QoS(), d.HandleMessage); err != nil {
			return fmt.Errorf("subscribing to %q: %w", pattern, err)
		}
	}
	log.Info("subscribed", "patterns", patterns)

	if err := daemon.Loop(ctx, s); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("stopped")
	return nil
}

// patternsOr returns the trailing arguments, or the fallback subscription
// when none were given.
func patternsOr(args []string, fallback string) []string {
	if len(args) == 0 {
		return []string{fallback}
	}
	return args
}

// pick returns the first non-empty value, letting a command-line flag win
// over the configuration file while leaving the package default for last.
func pick(flag, cfg string) string {
	if flag != "" {
		return flag
	}
	return cfg
}

func newLogicCmd(o *rootOptions) *cobra.Command {
	var suffix, write string
	cmd := &cobra.Command{
		Use:   "logic [patterns...]",
		Short: "evaluate RPN expressions over topic values",
		Long:  "logic watches topics whose name ends in the expression suffix, parses\ntheir payload as an RPN expression with ${topic} references, and\nrepublishes the result whenever a referenced topic changes.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runDaemon(cmd.Context(), "logic", patternsOr(args, "#"),
				func(cfg *config.Config, bus daemon.Bus, _ *sched.Scheduler, log *logging.Logger) (handler, func()) {
					d := logic.New(bus, logic.Options{
						Suffix:      pick(suffix, cfg.Daemons.Logic.Suffix),
						WriteSuffix: pick(write, cfg.Daemons.Logic.WriteSuffix),
					}, log)
					return d, nil
				})
		},
	}
	cmd.Flags().StringVarP(&suffix, "suffix", "s", "", "expression topic suffix (default \"/logic\")")
	cmd.Flags().StringVarP(&write, "write", "w", "", "publish results non-retained to <topic><suffix> instead")
	return cmd
}

func newTimerCmd(o *rootOptions) *cobra.Command {
	var suffix, write, reset string
	cmd := &cobra.Command{
		Use:   "timer [patterns...]",
		Short: "publish a reset value a fixed delay after a topic is set",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runDaemon(cmd.Context(), "timer", patternsOr(args, "#"),
				func(cfg *config.Config, bus daemon.Bus, s *sched.Scheduler, log *logging.Logger) (handler, func()) {
					d := timer.New(bus, s, timer.Options{
						Suffix:      pick(suffix, cfg.Daemons.Timer.Suffix),
						WriteSuffix: pick(write, cfg.Daemons.Timer.WriteSuffix),
						ResetValue:  pick(reset, cfg.Daemons.Timer.ResetValue),
					}, log)
					return d, nil
				})
		},
	}
	cmd.Flags().StringVarP(&suffix, "suffix", "s", "", "delay topic suffix (default \"/timer\")")
	cmd.Flags().StringVarP(&write, "write", "w", "", "publish resets non-retained to <topic><suffix> instead")
	cmd.Flags().StringVarP(&reset, "reset", "r", "", "reset payload (default \"0\")")
	return cmd
}

func newOffCmd(o *rootOptions) *cobra.Command {
	var suffix, write, reset string
	cmd := &cobra.Command{
		Use:   "off [patterns...]",
		Short: "turn topics off again a fixed delay after activity",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runDaemon(cmd.Context(), "off", patternsOr(args, "#"),
				func(cfg *config.Config, bus daemon.Bus, s *sched.Scheduler, log *logging.Logger) (handler, func()) {
					d := off.New(bus, s, off.Options{
						Suffix:      pick(suffix, cfg.Daemons.Off.Suffix),
						WriteSuffix: pick(write, cfg.Daemons.Off.WriteSuffix),
						ResetValue:  pick(reset, cfg.Daemons.Off.ResetValue),
					}, log)
					return d, nil
				})
		},
	}
	cmd.Flags().StringVarP(&suffix, "suffix", "s", "", "delay topic suffix (default \"/timeoff\")")
	cmd.Flags().StringVarP(&write, "write", "w", "", "publish resets non-retained to <topic>/<suffix> instead")
	cmd.Flags().StringVarP(&reset, "reset", "r", "", "reset payload (default \"0\")")
	return cmd
}

func newAlarmCmd(o *rootOptions) *cobra.Command {
	var events string
	cmd := &cobra.Command{
		Use:   "alarm [patterns...]",
		Short: "alarm clocks with snooze, repeat masks and skip-once",
		Long:  "alarm manages alarm clocks configured through retained companion\ntopics (/alarm, /repeat, /skip, /enable, /snoozetime) and controlled\nthrough /dismiss and /snooze. Ringing state is mirrored retained on the\nitem topic and announced on the event prefix.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runDaemon(cmd.Context(), "alarm", patternsOr(args, alarm.DefaultPattern),
				func(cfg *config.Config, bus daemon.Bus, s *sched.Scheduler, log *logging.Logger) (handler, func()) {
					d := alarm.New(bus, s, alarm.Options{
						EventPrefix: pick(events, cfg.Daemons.Alarm.EventPrefix),
					}, log)
					return d, nil
				})
		},
	}
	cmd.Flags().StringVarP(&events, "events", "e", "", "event and count topic prefix (default \"state/alrm\")")
	return cmd
}

func newTimeSwitchCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeswitch [patterns...]",
		Short: "weekly on/off schedules from /start and /stop times",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runDaemon(cmd.Context(), "timeswitch", patternsOr(args, timeswitch.DefaultPattern),
				func(_ *config.Config, bus daemon.Bus, s *sched.Scheduler, log *logging.Logger) (handler, func()) {
					return timeswitch.New(bus, s, log), nil
				})
		},
	}
	return cmd
}

func newClockCmd(o *rootOptions) *cobra.Command {
	var suffix string
	cmd := &cobra.Command{
		Use:   "clock [patterns...]",
		Short: "publish formatted wall-clock time on request topics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runDaemon(cmd.Context(), "clock", patternsOr(args, "#"),
				func(cfg *config.Config, bus daemon.Bus, s *sched.Scheduler, log *logging.Logger) (handler, func()) {
					d := clock.New(bus, s, clock.Options{
						Suffix: pick(suffix, cfg.Daemons.Clock.Suffix),
					}, log)
					return d, d.Shutdown
				})
		},
	}
	cmd.Flags().StringVarP(&suffix, "suffix", "s", "", "format topic suffix (default \"/fmtnow\")")
	return cmd
}

func newRecordCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "record [patterns...]",
		Short: "mirror numeric topic values into InfluxDB",
		Long:  "record subscribes to the given patterns and writes every numeric data\nmessage into InfluxDB, skipping the configuration topics of the other\ndaemons. Requires the influxdb section of the configuration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.runRecord(cmd.Context(), patternsOr(args, "#"))
		},
	}
	return cmd
}

// runRecord is the record subcommand body. It differs from the scheduler
// daemons: there are no timers to drive, so it blocks on the context after
// wiring the subscription into the InfluxDB writer.
func (o *rootOptions) runRecord(ctx context.Context, patterns []string) error {
	cfg, log, err := o.setup("record")
	if err != nil {
		return err
	}
	if !cfg.InfluxDB.Enabled {
		return errors.New("influxdb is not enabled in the configuration")
	}

	influx, err := influxdb.Connect(cfg.InfluxDB)
	if err != nil {
		return fmt.Errorf("connecting to InfluxDB: %w", err)
	}
	defer func() {
		log.Info("closing InfluxDB connection")
		if closeErr := influx.Close(); closeErr != nil {
			log.Error("error closing InfluxDB", "error", closeErr)
		}
	}()
	influx.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

	client, err := mqtt.Connect(cfg.MQTT, "record")
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	client.SetLogger(log)

	d := recorder.New(influx, recorder.Options{}, log)
	for _, pattern := range patterns {
		if err := client.Subscribe(pattern, client.QoS(), d.HandleMessage); err != nil {
			return fmt.Errorf("subscribing to %q: %w", pattern, err)
		}
	}
	log.Info("subscribed", "patterns", patterns)

	<-ctx.Done()
	log.Info("stopped", "writes", d.Writes())
	return nil
}
