package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/composite/internal/catalog"
	"github.com/roach88/composite/internal/composite"
	"github.com/roach88/composite/internal/engine"
	"github.com/roach88/composite/internal/ir"
	"github.com/roach88/composite/internal/store"
)

// Harness executes one scenario against a fresh in-memory database.
type Harness struct {
	catalog    *catalog.Catalog
	store      *store.Store
	manager    *composite.Manager
	dispatcher *engine.Dispatcher
	clock      *engine.Clock
	logger     *slog.Logger

	aliases map[string]*ir.Entity
	names   map[ir.EntityRef]string
	result  *Result
}

type runConfig struct {
	logger *slog.Logger
}

// Option configures Run.
type Option func(*runConfig)

// WithLogger sets the logger handed to the store, the manager and the
// dispatcher. Logs are discarded by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Run executes a scenario and returns the result. A non-nil error means the
// scenario could not be set up; step and assertion failures are reported
// in the result.
//
// Flow tokens are flow-1, flow-2, ... and trace sequence numbers start at
// 1, so repeated runs produce identical traces.
func Run(ctx context.Context, scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	cat, err := catalog.LoadDir(scenario.Specs)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}

	st, err := store.Open(":memory:", cat, store.WithLogger(cfg.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to create entity tables: %w", err)
	}

	h := &Harness{
		catalog: cat,
		store:   st,
		clock:   engine.NewClock(),
		logger:  cfg.logger,
		aliases: make(map[string]*ir.Entity),
		names:   make(map[ir.EntityRef]string),
		result:  NewResult(),
	}
	h.manager = composite.NewManager(cat, st, st, composite.WithLogger(cfg.logger))
	h.dispatcher = engine.New(cat, h.manager, st, engine.NewSequenceGenerator("flow"),
		engine.WithLogger(cfg.logger),
		engine.WithMaxDeletes(scenario.MaxDeletes),
		engine.WithObserver(h.observe),
	)
	h.dispatcher.Register(ir.AfterDelete, "trace", h.recordDeleted)
	st.SetHooks(h.dispatcher)

	for i, step := range scenario.Steps {
		err := h.execute(ctx, step)
		if msg := stepFailure(i, step, err); msg != "" {
			h.result.AddError(msg)
			// Later steps depend on this one.
			return h.result, nil
		}
		h.logger.Debug("step completed", "step", i, "op", step.Op, "name", step.Name)
	}

	for _, msg := range h.evaluate(ctx, scenario.Assertions) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

// stepFailure returns the failure message for a step result, or "".
func stepFailure(index int, step Step, err error) string {
	if step.ExpectError == "" {
		if err != nil {
			return fmt.Sprintf("steps[%d] %s %s: %v", index, step.Op, step.Name, err)
		}
		return ""
	}
	if err == nil {
		return fmt.Sprintf("steps[%d] %s %s: expected error containing %q", index, step.Op, step.Name, step.ExpectError)
	}
	if !strings.Contains(err.Error(), step.ExpectError) {
		return fmt.Sprintf("steps[%d] %s %s: error %q does not contain %q", index, step.Op, step.Name, err, step.ExpectError)
	}
	return ""
}

func (h *Harness) execute(ctx context.Context, step Step) error {
	switch step.Op {
	case OpCreate:
		return h.create(ctx, step)
	case OpUpdate:
		return h.update(ctx, step, func(e *ir.Entity) error {
			if step.Label != "" {
				e.Label = step.Label
			}
			return h.setRefs(e, step.Refs)
		})
	case OpClear:
		return h.update(ctx, step, func(e *ir.Entity) error {
			e.Clear(step.Field)
			return nil
		})
	case OpDelete:
		e, err := h.load(ctx, step.Name)
		if err != nil {
			return err
		}
		_, err = h.dispatcher.Delete(ctx, e)
		return err
	case OpSetComposite:
		return h.catalog.SetCompositeSettings(step.Type, step.Field, step.Composite, step.CompositeRevisions)
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func (h *Harness) create(ctx context.Context, step Step) error {
	if _, ok := h.aliases[step.Name]; ok {
		return fmt.Errorf("alias %q is already bound", step.Name)
	}
	label := step.Label
	if label == "" {
		label = step.Name
	}

	e := ir.NewEntity(step.Type, label)
	if err := h.setRefs(e, step.Refs); err != nil {
		return err
	}
	if err := h.store.Create(ctx, e); err != nil {
		return err
	}

	h.aliases[step.Name] = e
	h.names[e.Ref()] = step.Name
	return nil
}

// update loads the current state of an alias, applies fn and saves it.
func (h *Harness) update(ctx context.Context, step Step, fn func(*ir.Entity) error) error {
	e, err := h.load(ctx, step.Name)
	if err != nil {
		return err
	}
	if err := fn(e); err != nil {
		return err
	}
	e.NewRevision = step.NewRevision
	if err := h.store.Save(ctx, e); err != nil {
		return err
	}
	h.aliases[step.Name] = e
	return nil
}

func (h *Harness) load(ctx context.Context, alias string) (*ir.Entity, error) {
	e, ok := h.aliases[alias]
	if !ok {
		return nil, fmt.Errorf("unknown alias %q", alias)
	}
	return h.store.Load(ctx, e.Type, e.ID)
}

// setRefs replaces the listed reference fields of e. Fields are applied in
// name order so errors are reported deterministically.
func (h *Harness) setRefs(e *ir.Entity, refs map[string][]string) error {
	fields := make([]string, 0, len(refs))
	for field := range refs {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		items := make([]ir.ReferenceItem, 0, len(refs[field]))
		for _, alias := range refs[field] {
			target, ok := h.aliases[alias]
			if !ok {
				return fmt.Errorf("%s: unknown alias %q", field, alias)
			}
			items = append(items, ir.ReferenceItem{TargetID: target.ID, TargetRevisionID: target.RevisionID})
		}
		e.Set(field, items...)
	}
	return nil
}

func (h *Harness) observe(ev engine.Event) {
	switch ev.Kind {
	case engine.EventDelete:
		h.trace(TraceEvent{Type: TraceDelete, Entity: h.name(ev.Entity), FlowToken: ev.FlowToken})
	case engine.EventComposite:
		h.trace(TraceEvent{Type: TraceComposite, Entity: h.name(ev.Entity), Field: ev.Name})
	}
}

func (h *Harness) recordDeleted(_ context.Context, e *ir.Entity) error {
	h.trace(TraceEvent{Type: TraceDeleted, Entity: h.name(e.Ref())})
	return nil
}

func (h *Harness) trace(ev TraceEvent) {
	ev.Seq = h.clock.Next()
	h.result.Trace = append(h.result.Trace, ev)
}

// name renders an entity by alias, falling back to type/id.
func (h *Harness) name(ref ir.EntityRef) string {
	if alias, ok := h.names[ref]; ok {
		return alias
	}
	return ref.String()
}

func (h *Harness) exists(ctx context.Context, alias string) (bool, error) {
	e, ok := h.aliases[alias]
	if !ok {
		return false, fmt.Errorf("unknown alias %q", alias)
	}
	_, err := h.store.Load(ctx, e.Type, e.ID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}
