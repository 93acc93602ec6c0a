package notification

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"signalengine/internal/metrics"
	"signalengine/internal/model"
)

// DefaultBatchSize bounds concurrent per-user sends.
const DefaultBatchSize = 5

// Sink is a named broadcast notifier.
type Sink struct {
	Name     string
	Notifier Notifier
}

// UserLister returns the users that opted into notifications.
type UserLister interface {
	ListNotifiableUsers(ctx context.Context) ([]model.AutotradeConfig, error)
}

// Dispatcher fans one signal out to every broadcast sink once and to every
// notifiable user through the direct notifier.
type Dispatcher struct {
	users     UserLister
	direct    Notifier
	sinks     []Sink
	recorder  model.SignalRecorder
	batchSize int
	timeout   time.Duration
	log       *slog.Logger

	// Metrics is optional.
	Metrics *metrics.Metrics
}

// DispatcherConfig wires a dispatcher. Every field is optional.
type DispatcherConfig struct {
	Users     UserLister
	Direct    Notifier // per-user channel, addressed by Alert.ChatID
	Sinks     []Sink
	Recorder  model.SignalRecorder
	BatchSize int
	Timeout   time.Duration // per send
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(cfg DispatcherConfig, log *slog.Logger) *Dispatcher {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		users:     cfg.Users,
		direct:    cfg.Direct,
		sinks:     cfg.Sinks,
		recorder:  cfg.Recorder,
		batchSize: cfg.BatchSize,
		timeout:   cfg.Timeout,
		log:       log.With("component", "dispatcher"),
	}
}

// Handle records sig and delivers it. Delivery failures are logged and
// counted; they never stop the remaining sends.
func (d *Dispatcher) Handle(ctx context.Context, sig model.Signal) {
	if d.recorder != nil {
		if err := d.recorder.RecordSignal(ctx, sig); err != nil {
			d.log.Warn("record signal failed", "asset", sig.Asset, "error", err)
		}
	}

	alert := SignalAlert(sig)
	for _, s := range d.sinks {
		d.send(ctx, s.Name, s.Notifier, alert)
	}

	if d.users == nil || d.direct == nil {
		return
	}
	users, err := d.users.ListNotifiableUsers(ctx)
	if err != nil {
		d.log.Error("list notifiable users failed", "error", err)
		return
	}

	var g errgroup.Group
	g.SetLimit(d.batchSize)
	for _, u := range users {
		if !u.NotificationsEnabled {
			continue
		}
		a := alert
		a.ChatID = strconv.FormatInt(u.UserID, 10)
		g.Go(func() error {
			d.send(ctx, "direct", d.direct, a)
			return nil
		})
	}
	_ = g.Wait()
	d.log.Info("signal dispatched", "key", sig.DedupKey(), "users", len(users), "sinks", len(d.sinks))
}

func (d *Dispatcher) send(ctx context.Context, sink string, n Notifier, a Alert) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	outcome := "ok"
	if err := n.Send(ctx, a); err != nil {
		outcome = "error"
		d.log.Warn("notification failed", "sink", sink, "chat_id", a.ChatID, "error", err)
	}
	if d.Metrics != nil {
		d.Metrics.NotificationsTotal.WithLabelValues(sink, outcome).Inc()
	}
}
