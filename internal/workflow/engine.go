package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	id "idv/pkg/domain"
	dErrors "idv/pkg/domain-errors"
	audit "idv/pkg/platform/audit"
	"idv/pkg/platform/sentinel"
	txcontext "idv/pkg/platform/tx"
	"idv/pkg/requestcontext"

	"idv/internal/platform/tracing"
	"idv/internal/webhook"
)

// maxAutoFollow bounds Run. A longer chain means a handler loops.
const maxAutoFollow = 10

// Outcome is what a transition body produces.
type Outcome struct {
	// Workflow is the row to persist, with State set to the chosen next state.
	Workflow Workflow
	// Webhooks are enqueued after commit in addition to the status change.
	Webhooks []webhook.Event
}

// Handler runs the transition bodies of one workflow kind.
type Handler interface {
	// Transition executes action against wf inside the engine's
	// transaction. Any error rolls the transition back.
	Transition(ctx context.Context, wf Workflow, action Action) (Outcome, error)
	// AutoFollow returns the action that wf's state applies by itself, or nil
	// when the workflow waits for outside input.
	AutoFollow(wf Workflow) Action
}

// Engine validates and applies workflow actions.
type Engine struct {
	store    Store
	handlers map[Kind]Handler
	webhooks webhook.Enqueuer
	events   audit.Store
	logger   *slog.Logger
	metrics  *Metrics
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithWebhooks sets where post-commit webhooks go. The default drops them.
func WithWebhooks(q webhook.Enqueuer) Option {
	return func(e *Engine) { e.webhooks = q }
}

// WithEventLog records each committed transition as an operations audit
// event. Writes are best effort.
func WithEventLog(store audit.Store) Option {
	return func(e *Engine) { e.events = store }
}

func NewEngine(store Store, handlers map[Kind]Handler, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		handlers: handlers,
		webhooks: webhook.Discard{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start persists a new workflow.
func (e *Engine) Start(ctx context.Context, wf Workflow) error {
	if _, ok := e.handlers[wf.Kind]; !ok {
		return errUnknownKind(wf.Kind)
	}
	if err := e.store.Create(ctx, wf); err != nil {
		return translate(err, "failed to create workflow")
	}
	return nil
}

// Get loads a workflow.
func (e *Engine) Get(ctx context.Context, workflowID id.WorkflowID) (Workflow, error) {
	wf, err := e.store.Get(ctx, workflowID)
	if err != nil {
		return Workflow{}, translate(err, "failed to load workflow")
	}
	return wf, nil
}

// Events lists the transition log of a workflow, oldest first.
func (e *Engine) Events(ctx context.Context, workflowID id.WorkflowID) ([]Event, error) {
	events, err := e.store.Events(ctx, workflowID)
	if err != nil {
		return nil, translate(err, "failed to load workflow events")
	}
	return events, nil
}

// Action applies one action. An action the table does not allow fails with
// CodeInvalidTransition before anything is written.
func (e *Engine) Action(ctx context.Context, workflowID id.WorkflowID, action Action) (wf Workflow, err error) {
	ctx, span := tracing.StartSpan(ctx, "workflow.Action",
		attribute.String("workflow_id", workflowID.String()),
		attribute.String("action", string(action.Kind())),
	)
	defer func() { tracing.End(span, err) }()

	start := time.Now()
	var (
		from     State
		kind     Kind
		webhooks []webhook.Event
	)
	wf, err = e.store.Transition(ctx, workflowID, func(ctx context.Context, current Workflow) (Workflow, Event, error) {
		from, kind = current.State, current.Kind
		handler, ok := e.handlers[current.Kind]
		if !ok {
			return Workflow{}, Event{}, errUnknownKind(current.Kind)
		}
		allowed, err := Allowed(current.Kind, current.State, action.Kind())
		if err != nil {
			return Workflow{}, Event{}, err
		}

		out, err := handler.Transition(ctx, current, action)
		if err != nil {
			return Workflow{}, Event{}, err
		}
		next := out.Workflow
		if next.ID != current.ID || next.Kind != current.Kind {
			return Workflow{}, Event{}, dErrors.New(dErrors.CodeAssertion, "transition body replaced the workflow identity")
		}
		if err := checkTarget(allowed, current.State, next.State, action.Kind()); err != nil {
			return Workflow{}, Event{}, err
		}

		now := requestcontext.Now(ctx)
		next.UpdatedAt = now
		webhooks = out.Webhooks
		return next, Event{
			ID:         uuid.New(),
			WorkflowID: current.ID,
			FromState:  current.State,
			ToState:    next.State,
			Action:     action.Kind(),
			CreatedAt:  now,
		}, nil
	})
	e.metrics.observeDuration(kind, action.Kind(), time.Since(start))
	if err != nil {
		err = translate(err, "workflow action failed")
		e.metrics.observeRejection(kind, action.Kind(), string(dErrors.GetCode(err)))
		e.logger.InfoContext(ctx, "workflow action rejected",
			"workflow_id", workflowID.String(),
			"action", string(action.Kind()),
			"state", string(from),
			"error", err,
		)
		return Workflow{}, err
	}

	e.metrics.observeTransition(wf.Kind, wf.State)
	e.logger.InfoContext(ctx, "workflow transitioned",
		"workflow_id", wf.ID.String(),
		"action", string(action.Kind()),
		"from_state", string(from),
		"to_state", string(wf.State),
	)
	e.afterCommit(ctx, wf, from, action, webhooks)
	return wf, nil
}

// Run applies action and then every auto-follow action until the workflow
// waits for input or completes.
func (e *Engine) Run(ctx context.Context, workflowID id.WorkflowID, action Action) (Workflow, error) {
	wf, err := e.Action(ctx, workflowID, action)
	if err != nil {
		return Workflow{}, err
	}
	for steps := 0; ; steps++ {
		next := e.handlers[wf.Kind].AutoFollow(wf)
		if next == nil {
			return wf, nil
		}
		if steps == maxAutoFollow {
			return Workflow{}, dErrors.Newf(dErrors.CodeAssertion,
				"workflow %s did not settle after %d automatic actions", wf.ID, maxAutoFollow)
		}
		if wf, err = e.Action(ctx, wf.ID, next); err != nil {
			return Workflow{}, err
		}
	}
}

// afterCommit runs side effects that must not affect the committed
// transition.
func (e *Engine) afterCommit(ctx context.Context, wf Workflow, from State, action Action, extra []webhook.Event) {
	ctx = txcontext.Detach(ctx)
	now := requestcontext.Now(ctx)

	status := webhook.NewEvent(webhook.KindOnboardingStatusChanged, wf.TenantID, wf.ID, wf.ScopedVaultID, now)
	status.Status = string(wf.State)
	status.Data = map[string]string{"from_state": string(from)}
	e.webhooks.Enqueue(ctx, append([]webhook.Event{status}, extra...)...)

	if e.events == nil {
		return
	}
	err := e.events.Append(ctx, audit.Event{
		Category:  audit.CategoryOperations,
		Timestamp: now,
		TenantID:  wf.TenantID,
		Subject:   wf.ID.String(),
		Action:    string(audit.EventWorkflowTransitioned),
		Decision:  string(wf.State),
		Reason:    string(action.Kind()),
		RequestID: requestcontext.RequestID(ctx),
	})
	if err != nil {
		e.logger.WarnContext(ctx, "failed to record workflow event", "workflow_id", wf.ID.String(), "error", err)
	}
}

func translate(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, msg)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, msg)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
