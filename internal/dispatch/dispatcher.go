// Package dispatch turns confirmation events into plugin runs.
package dispatch

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ayusman/mudra/internal/confirm"
	"github.com/ayusman/mudra/internal/plugin"
	"github.com/ayusman/mudra/internal/store"
)

// DefaultQueueSize bounds pending plugin runs.
const DefaultQueueSize = 16

// ActionLookup finds the action bound to a class. A nil action with a nil
// error means the class is unbound.
type ActionLookup interface {
	GetByClassName(class string) (*store.Action, error)
}

// PluginSource resolves plugins by name.
type PluginSource interface {
	Get(name string) (*plugin.Plugin, error)
}

// Runner executes one plugin request.
type Runner interface {
	Execute(ctx context.Context, p *plugin.Plugin, req *plugin.Request) (*plugin.Response, error)
}

type job struct {
	plugin *plugin.Plugin
	req    *plugin.Request
	done   chan struct{} // set on flush markers only
}

// Dispatcher runs the plugin bound to a class when it is confirmed, and
// sends that plugin a reset request when the sign is released. Runs happen
// in order on a single worker so the frame loop never waits on a plugin.
type Dispatcher struct {
	actions ActionLookup
	plugins PluginSource
	runner  Runner
	logger  *slog.Logger

	queue  chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a Dispatcher and starts its worker. Close stops it.
func New(actions ActionLookup, plugins PluginSource, runner Runner, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		actions: actions,
		plugins: plugins,
		runner:  runner,
		logger:  logger,
		queue:   make(chan job, DefaultQueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}

	d.wg.Add(1)
	go d.work()
	return d
}

// Attach subscribes the dispatcher to c. Cancel the returned subscriptions
// to detach.
func (d *Dispatcher) Attach(c *confirm.Confirmer) []confirm.Subscription {
	return []confirm.Subscription{
		c.OnConfirmed(d.HandleConfirmed),
		c.OnReset(d.HandleReset),
	}
}

// HandleConfirmed queues the action bound to e.Class.
func (d *Dispatcher) HandleConfirmed(e confirm.Confirmed) {
	action, p := d.resolve(e.Class)
	if action == nil {
		return
	}

	d.enqueue(job{plugin: p, req: &plugin.Request{
		Action:     action.ActionName,
		Event:      plugin.EventConfirmed,
		Class:      e.Class,
		Confidence: e.Confidence,
		Streak:     e.StreakLength,
		Config:     action.Config,
	}})
}

// HandleReset queues a reset request for the plugin bound to
// e.PreviousClass when its manifest declares the reset action.
func (d *Dispatcher) HandleReset(e confirm.Reset) {
	action, p := d.resolve(e.PreviousClass)
	if action == nil || !p.Manifest.Supports(plugin.ResetAction) {
		return
	}

	d.enqueue(job{plugin: p, req: &plugin.Request{
		Action: plugin.ResetAction,
		Event:  plugin.EventReset,
		Class:  e.PreviousClass,
		Config: action.Config,
	}})
}

// Close stops accepting events, cancels any running plugin and waits for
// the worker to exit. Queued jobs that have not started are dropped.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.cancel()
	close(d.queue)
	d.mu.Unlock()

	d.wg.Wait()
}

// Flush blocks until every job queued so far has run.
func (d *Dispatcher) Flush() {
	done := make(chan struct{})
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.queue <- job{done: done}
	d.mu.Unlock()
	<-done
}

func (d *Dispatcher) resolve(class string) (*store.Action, *plugin.Plugin) {
	action, err := d.actions.GetByClassName(class)
	if err != nil {
		d.logger.Error("failed to look up action", "class", class, "error", err)
		return nil, nil
	}
	if action == nil || !action.Enabled {
		return nil, nil
	}

	p, err := d.plugins.Get(action.PluginName)
	if err != nil {
		d.logger.Warn("action plugin unavailable", "class", class, "plugin", action.PluginName, "error", err)
		return nil, nil
	}
	return action, p
}

func (d *Dispatcher) enqueue(j job) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	select {
	case d.queue <- j:
	default:
		d.logger.Warn("dispatch queue full, dropping event", "class", j.req.Class, "event", j.req.Event)
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()

	for j := range d.queue {
		if j.done != nil {
			close(j.done)
			continue
		}
		if d.ctx.Err() != nil {
			continue
		}
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	resp, err := d.runner.Execute(d.ctx, j.plugin, j.req)
	if err != nil {
		d.logger.Error("plugin run failed",
			"plugin", j.plugin.Manifest.Name, "action", j.req.Action, "class", j.req.Class, "error", err)
		return
	}
	if !resp.Success {
		d.logger.Warn("plugin reported failure",
			"plugin", j.plugin.Manifest.Name, "action", j.req.Action, "class", j.req.Class, "error", resp.Error)
		return
	}
	d.logger.Info("plugin ran",
		"plugin", j.plugin.Manifest.Name, "action", j.req.Action, "event", j.req.Event, "class", j.req.Class)
}
