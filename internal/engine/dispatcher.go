package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/composite/internal/ir"
	"github.com/roach88/composite/internal/store"
)

// TypeResolver supplies the reference fields of a deleted entity's type.
type TypeResolver interface {
	EntityType(name string) (ir.EntityTypeDef, bool)
}

// CompositeHandler is called once per (entity, field) pair of every
// deleted entity. composite.Manager implements it.
type CompositeHandler interface {
	OnEntityDelete(ctx context.Context, owner *ir.Entity, field ir.FieldDescriptor) error
}

// Deleter deletes entities and runs hooks. *store.Store implements it.
type Deleter interface {
	Delete(ctx context.Context, e *ir.Entity) error
}

// Hook is a registered delete hook.
type Hook func(ctx context.Context, e *ir.Entity) error

type namedHook struct {
	name string
	fn   Hook
}

// Event kinds reported to observers.
const (
	EventDelete    = "delete"
	EventHook      = "hook"
	EventComposite = "composite"
)

// Event is one step of a dispatched delete, reported to observers.
type Event struct {
	Seq       int64        `json:"seq"`
	FlowToken string       `json:"flow_token"`
	Kind      string       `json:"kind"`
	HookType  string       `json:"hook_type"`
	Name      string       `json:"name"` // hook name or field name
	Entity    ir.EntityRef `json:"entity"`
}

// Observer receives dispatch events in order.
type Observer func(Event)

// Dispatcher runs delete hooks and the composite cascade.
type Dispatcher struct {
	types     TypeResolver
	composite CompositeHandler
	deleter   Deleter
	flowGen   FlowTokenGenerator
	clock     *Clock
	cycles    *CycleDetector
	logger    *slog.Logger

	maxDeletes int

	mu        sync.Mutex
	hooks     map[ir.HookType][]namedHook
	quotas    map[string]*QuotaEnforcer
	observers []Observer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMaxDeletes sets the delete quota per flow.
//
// Default: DefaultMaxDeletes. Values below 1 keep the default.
func WithMaxDeletes(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxDeletes = n
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithObserver registers an observer for dispatch events.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		d.observers = append(d.observers, o)
	}
}

// New creates a Dispatcher. Install it on the store with SetHooks.
func New(types TypeResolver, composite CompositeHandler, deleter Deleter, flowGen FlowTokenGenerator, opts ...Option) *Dispatcher {
	if flowGen == nil {
		flowGen = UUIDv7Generator{}
	}
	d := &Dispatcher{
		types:      types,
		composite:  composite,
		deleter:    deleter,
		flowGen:    flowGen,
		clock:      NewClock(),
		cycles:     NewCycleDetector(),
		logger:     slog.Default(),
		maxDeletes: DefaultMaxDeletes,
		hooks:      make(map[ir.HookType][]namedHook),
		quotas:     make(map[string]*QuotaEnforcer),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds a hook. Hooks of one type run in registration order,
// before_delete hooks ahead of the composite cascade.
func (d *Dispatcher) Register(hookType ir.HookType, name string, fn Hook) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks[hookType] = append(d.hooks[hookType], namedHook{name: name, fn: fn})
}

// flowOwnerKey marks a context whose flow is already owned by an outer
// Delete of this dispatcher.
type flowOwnerKey struct{}

// Delete deletes e under a new flow token and returns the token. A ctx
// that already carries a token keeps it. The outermost Delete of a flow
// releases its quota and dispatch history when it returns, so a caller
// may reuse a token across separate deletes.
func (d *Dispatcher) Delete(ctx context.Context, e *ir.Entity) (string, error) {
	token := store.FlowTokenFrom(ctx)
	if token == "" {
		token = d.flowGen.Generate()
		ctx = store.ContextWithFlowToken(ctx, token)
	}
	if owner, _ := ctx.Value(flowOwnerKey{}).(*Dispatcher); owner != d {
		ctx = context.WithValue(ctx, flowOwnerKey{}, d)
		defer d.endFlow(token)
	}

	d.logger.Debug("delete started", "entity", e.Ref().String(), "flow_token", token)
	d.emit(Event{FlowToken: token, Kind: EventDelete, Entity: e.Ref()})
	if err := d.deleter.Delete(ctx, e); err != nil {
		return token, err
	}
	return token, nil
}

func (d *Dispatcher) endFlow(token string) {
	d.mu.Lock()
	delete(d.quotas, token)
	d.mu.Unlock()
	d.cycles.Release(token)
}

// ExecuteHooks implements store.HookExecutor.
func (d *Dispatcher) ExecuteHooks(ctx context.Context, hookType ir.HookType, e *ir.Entity) error {
	token := store.FlowTokenFrom(ctx)
	if hookType == ir.BeforeDelete && token != "" {
		if err := d.checkQuota(token); err != nil {
			return &RuntimeError{
				Code:      ErrCodeQuotaExceeded,
				Message:   "delete quota exceeded",
				FlowToken: token,
				Entity:    e.Ref().String(),
				Err:       err,
			}
		}
	}

	d.mu.Lock()
	hooks := append([]namedHook(nil), d.hooks[hookType]...)
	d.mu.Unlock()

	for _, h := range hooks {
		d.emit(Event{FlowToken: token, Kind: EventHook, HookType: hookType.String(), Name: h.name, Entity: e.Ref()})
		if err := h.fn(ctx, e); err != nil {
			return &RuntimeError{
				Code:      ErrCodeHookFailed,
				Message:   fmt.Sprintf("%s hook %q failed", hookType, h.name),
				FlowToken: token,
				Entity:    e.Ref().String(),
				Hook:      h.name,
				Err:       err,
			}
		}
	}

	if hookType == ir.BeforeDelete {
		return d.cascade(ctx, token, e)
	}
	return nil
}

// cascade hands every reference field of e to the composite handler.
func (d *Dispatcher) cascade(ctx context.Context, token string, e *ir.Entity) error {
	if d.composite == nil {
		return nil
	}
	def, ok := d.types.EntityType(e.Type)
	if !ok {
		return fmt.Errorf("dispatch %s: unknown entity type %q", e.Ref(), e.Type)
	}

	ref := e.Ref().String()
	for _, f := range def.ReferenceFields() {
		if token != "" {
			if !d.cycles.Mark(token, ref, f.Name) {
				d.logger.Debug("field already dispatched", "entity", ref, "field", f.Name, "flow_token", token)
				continue
			}
		}

		d.emit(Event{FlowToken: token, Kind: EventComposite, HookType: ir.BeforeDelete.String(), Name: f.Name, Entity: e.Ref()})
		if err := d.composite.OnEntityDelete(ctx, e, f); err != nil {
			if IsQuotaError(err) {
				return err
			}
			return &RuntimeError{
				Code:      ErrCodeCascadeFailed,
				Message:   fmt.Sprintf("composite field %s failed", f.Name),
				FlowToken: token,
				Entity:    ref,
				Hook:      f.Name,
				Err:       err,
			}
		}
	}
	return nil
}

func (d *Dispatcher) checkQuota(token string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	q, ok := d.quotas[token]
	if !ok {
		q = NewQuotaEnforcer(d.maxDeletes)
		d.quotas[token] = q
	}
	return q.Check(token)
}

func (d *Dispatcher) emit(ev Event) {
	ev.Seq = d.clock.Next()
	d.mu.Lock()
	observers := append([]Observer(nil), d.observers...)
	d.mu.Unlock()
	for _, o := range observers {
		o(ev)
	}
}
