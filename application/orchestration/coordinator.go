package orchestration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"knowde-backend/application/contracts"
	"knowde-backend/application/ports"
	"knowde-backend/domain/core/entities"
	"knowde-backend/domain/events"
	pkgerrors "knowde-backend/pkg/errors"
	"knowde-backend/pkg/observability"
)

// Coordinator is the front of the orchestration core. It validates the
// request, classifies intent, serializes runs per user, and sequences the
// plan workflow and the graph workflow over one shared context.
type Coordinator struct {
	lm        ports.LanguageModel
	search    ports.SearchProvider
	store     ports.DocumentStore
	publisher ports.EventPublisher
	locker    ports.RunLocker
	logger    *zap.Logger
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	cfg       Config
}

// NewCoordinator wires the coordinator with its capabilities
func NewCoordinator(
	lm ports.LanguageModel,
	search ports.SearchProvider,
	store ports.DocumentStore,
	publisher ports.EventPublisher,
	locker ports.RunLocker,
	logger *zap.Logger,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	cfg Config,
) *Coordinator {
	return &Coordinator{
		lm:        lm,
		search:    search,
		store:     store,
		publisher: publisher,
		locker:    locker,
		logger:    logger,
		metrics:   metrics,
		tracer:    tracer,
		cfg:       cfg,
	}
}

// Result is what a completed run reports back to the boundary
type Result struct {
	PlanID string `json:"planId"`
	Status string `json:"status"`
}

const intentPromptTemplate = `Classify the user message below. If the user asks to learn a new topic, the intent is "new_topic" and topic names what they want to learn. Anything else (greetings, questions about existing plans, chitchat) is "none".

User message: %s

Respond with JSON only: {"intent": "new_topic" or "none", "topic": "..."}`

// Handle runs the full prompt-to-graph pipeline for one user request
func (c *Coordinator) Handle(ctx context.Context, userID, prompt string) (*Result, error) {
	req, err := NewRequest(userID, prompt)
	if err != nil {
		return nil, err
	}

	var result *Result
	err = c.tracer.TraceRun(ctx, req.UserID, func(ctx context.Context) error {
		var runErr error
		result, runErr = c.run(ctx, req)
		return runErr
	})
	return result, err
}

func (c *Coordinator) run(ctx context.Context, req *Request) (*Result, error) {
	logger := c.logger.With(
		zap.String("request_id", req.RequestID),
		zap.String("user_id", req.UserID))
	logger.Info("run received")
	c.metrics.RecordRunStarted(ctx, req.UserID)

	intent, err := c.classifyIntent(ctx, req)
	if err != nil {
		return nil, c.failed(ctx, req, StateReceived, err)
	}
	if intent.Intent != contracts.IntentNewTopic {
		logger.Info("no actionable intent, run not started")
		return nil, pkgerrors.NewNoActionableIntentError(req.SourcePrompt)
	}

	// Runs for one user are serialized; two prompts must never race on the
	// same plan or graph documents.
	lock, err := c.locker.Acquire(ctx, "users/"+req.UserID, req.RequestID, c.cfg.RunLockTTL)
	if err != nil {
		return nil, c.failed(ctx, req, StateReceived, err)
	}
	defer func() {
		if releaseErr := lock.Release(context.WithoutCancel(ctx)); releaseErr != nil {
			logger.Warn("failed to release run lock", zap.Error(releaseErr))
		}
	}()

	sc := NewSharedContext(req)

	planResult, err := c.planWorkflow().Run(ctx, sc)
	if err != nil {
		return nil, c.failed(ctx, req, lastStateOf(planResult), err)
	}

	receipt, ok := LatestAs[*contracts.PlanReceipt](sc, "planPersister")
	if !ok {
		return nil, c.failed(ctx, req, lastStateOf(planResult), pkgerrors.NewInternalError("plan workflow completed without a receipt"))
	}
	planTitle := ""
	if plan, ok := LatestAs[*entities.Plan](sc, "resourceEnricher"); ok {
		planTitle = plan.Title
	}
	c.publish(ctx, events.NewPlanCreated(receipt.PlanID, receipt.UserID, planTitle, receipt.LessonCount, time.Now().UTC()))

	graphResult, err := c.graphWorkflow().Run(ctx, sc)
	if err != nil {
		return nil, c.failed(ctx, req, lastStateOf(graphResult), err)
	}

	graphReceipt, ok := LatestAs[*contracts.GraphReceipt](sc, "graphPersister")
	if !ok {
		return nil, c.failed(ctx, req, lastStateOf(graphResult), pkgerrors.NewInternalError("graph workflow completed without a receipt"))
	}
	for _, dropped := range graphReceipt.Dropped {
		c.metrics.RecordDroppedGraphEntry(ctx, dropped.Reason)
	}
	c.publish(ctx, events.NewGraphUpdated(
		graphReceipt.UserID,
		graphReceipt.PlanID,
		graphReceipt.NodesWritten,
		graphReceipt.EdgesWritten,
		len(graphReceipt.Dropped),
		time.Now().UTC()))

	c.metrics.RecordRunCompleted(ctx, req.UserID)
	logger.Info("run completed",
		zap.String("plan_id", receipt.PlanID),
		zap.Int("nodes_written", graphReceipt.NodesWritten),
		zap.Int("edges_written", graphReceipt.EdgesWritten))

	return &Result{PlanID: receipt.PlanID, Status: "completed"}, nil
}

// classifyIntent asks the model for the binary intent decision, retrying
// transient capability failures within the same bounds the workflow uses
func (c *Coordinator) classifyIntent(ctx context.Context, req *Request) (*contracts.Intent, error) {
	prompt := fmt.Sprintf(intentPromptTemplate, req.SourcePrompt)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.CapabilityAttempts; attempt++ {
		raw, err := c.lm.Generate(ctx, prompt, string(contracts.KindIntent))
		if err == nil {
			var intent contracts.Intent
			if err := decodeModelJSON(raw, "intentClassifier", &intent); err != nil {
				return nil, err
			}
			if err := contracts.Validate(&intent, contracts.KindIntent); err != nil {
				return nil, pkgerrors.NewContractViolationError("intentClassifier", err)
			}
			return &intent, nil
		}
		if !pkgerrors.IsRetryable(err) {
			return nil, err
		}

		lastErr = err
		if attempt == c.cfg.CapabilityAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, pkgerrors.NewTimeoutError("classifyIntent", ctx.Err())
		case <-time.After(c.cfg.RetryDelay * time.Duration(attempt)):
		}
	}

	return nil, lastErr
}

// planWorkflow builds the prompt-to-plan workflow: draft, enrich, persist
// with verify-read
func (c *Coordinator) planWorkflow() *Workflow {
	return NewWorkflow("plan", c.cfg, c.logger, c.metrics, c.tracer,
		Stage{
			Name:  "draft",
			State: StateDrafting,
			Role:  NewPlanDrafter(c.lm, c.logger),
		},
		Stage{
			Name:  "enrich",
			State: StateEnriching,
			Role:  NewResourceEnricher(c.search, c.logger),
		},
		Stage{
			Name:        "persistPlan",
			State:       StatePersistingPlan,
			VerifyState: StateVerifyingPlan,
			Role:        NewPlanPersister(c.store, c.logger),
			Verify:      VerifyPlan(c.store),
		},
	)
}

// graphWorkflow builds the plan-to-graph workflow: derive, validate through
// the consistency engine, persist with verify-read
func (c *Coordinator) graphWorkflow() *Workflow {
	return NewWorkflow("graph", c.cfg, c.logger, c.metrics, c.tracer,
		Stage{
			Name:      "derive",
			State:     StateDerivingGraph,
			GateState: StateValidatingGraph,
			Role:      NewGraphDeriver(c.store, c.lm, c.logger),
		},
		Stage{
			Name:        "persistGraph",
			State:       StatePersistingGraph,
			VerifyState: StateVerifyingGraph,
			Role:        NewGraphPersister(c.store, c.logger),
			Verify:      VerifyGraph(c.store),
		},
	)
}

func (c *Coordinator) failed(ctx context.Context, req *Request, lastState RunState, err error) error {
	c.metrics.RecordRunFailed(ctx, string(lastState))

	reason := "INTERNAL"
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		reason = string(appErr.Type)
	}
	c.publish(ctx, events.NewRunFailed(req.RequestID, req.UserID, string(lastState), reason, time.Now().UTC()))

	return err
}

// publish delivers a domain event on a best-effort basis; event delivery
// never changes the outcome of a run
func (c *Coordinator) publish(ctx context.Context, event events.DomainEvent) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.Publish(ctx, event); err != nil {
		c.logger.Warn("failed to publish domain event",
			zap.String("event_type", event.GetEventType()),
			zap.Error(err))
	}
}

func lastStateOf(result *RunResult) RunState {
	if result == nil {
		return StateReceived
	}
	if result.State != StateFailed {
		return result.State
	}
	if len(result.History) >= 2 {
		return result.History[len(result.History)-2]
	}
	return StateReceived
}
