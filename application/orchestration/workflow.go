package orchestration

import (
	"context"
	"time"

	"go.uber.org/zap"

	"knowde-backend/application/contracts"
	pkgerrors "knowde-backend/pkg/errors"
	"knowde-backend/pkg/observability"
)

// RunState is one state of the orchestration state machine
type RunState string

const (
	StateReceived        RunState = "Received"
	StateDrafting        RunState = "Drafting"
	StateEnriching       RunState = "Enriching"
	StatePersistingPlan  RunState = "PersistingPlan"
	StateVerifyingPlan   RunState = "VerifyingPlan"
	StateDerivingGraph   RunState = "DerivingGraph"
	StateValidatingGraph RunState = "ValidatingGraph"
	StatePersistingGraph RunState = "PersistingGraph"
	StateVerifyingGraph  RunState = "VerifyingGraph"
	StateCompleted       RunState = "Completed"
	StateFailed          RunState = "Failed"
)

// VerifyFunc re-reads what a persisting role claims to have written.
// A miss is a PERSISTENCE_UNCONFIRMED error.
type VerifyFunc func(ctx context.Context, sc *SharedContext, payload interface{}) error

// Stage is one role execution inside a workflow, with the states it moves the
// run through and an optional verify-read step after the role's write.
type Stage struct {
	Name        string
	State       RunState
	GateState   RunState // optional state entered while the output is validated
	VerifyState RunState // required when Verify is set
	Role        Role
	Verify      VerifyFunc
}

// Config bounds every retry path in a workflow. All retries are finite; the
// run fails rather than loop.
type Config struct {
	// ContractRetries is how many times a role is re-invoked after its output
	// fails the schema gate, with the validation error appended to its input
	ContractRetries int

	// VerifyRetries is how many times a persisting stage is re-executed after
	// a verify-read miss
	VerifyRetries int

	// CapabilityAttempts is the total number of attempts for a role whose
	// capability call fails with a retryable error
	CapabilityAttempts int

	// RetryDelay is the base backoff between capability attempts
	RetryDelay time.Duration

	// RunLockTTL caps how long one run may hold the per-user serialization
	// lock before a crashed run stops blocking new ones
	RunLockTTL time.Duration
}

// DefaultConfig returns the standard retry bounds: one contract re-invocation,
// one rewrite after a verify miss, three capability attempts
func DefaultConfig() Config {
	return Config{
		ContractRetries:    1,
		VerifyRetries:      1,
		CapabilityAttempts: 3,
		RetryDelay:         500 * time.Millisecond,
		RunLockTTL:         5 * time.Minute,
	}
}

// RunResult reports how far a workflow run got
type RunResult struct {
	State   RunState
	History []RunState
}

// Workflow executes an ordered list of stages over a shared context. Each
// stage runs its role, gates the output through the contract schema, records
// it, and optionally verifies the write. The workflow owns every retry
// decision; roles stay oblivious to retries.
type Workflow struct {
	name    string
	stages  []Stage
	cfg     Config
	logger  *zap.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// NewWorkflow builds a workflow from its stages
func NewWorkflow(name string, cfg Config, logger *zap.Logger, metrics *observability.Metrics, tracer *observability.Tracer, stages ...Stage) *Workflow {
	return &Workflow{
		name:    name,
		stages:  stages,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}
}

// Name returns the workflow name
func (w *Workflow) Name() string {
	return w.name
}

// Run executes the stages in order. On any terminal failure the result
// carries the last state reached before Failed.
func (w *Workflow) Run(ctx context.Context, sc *SharedContext) (*RunResult, error) {
	result := &RunResult{State: StateReceived, History: []RunState{StateReceived}}

	for _, stage := range w.stages {
		err := w.tracer.TraceStage(ctx, w.name+"."+stage.Name, func(ctx context.Context) error {
			return w.runStage(ctx, sc, stage, result)
		})
		if err != nil {
			last := result.State
			w.transition(result, StateFailed)
			w.logger.Error("workflow stage failed",
				zap.String("workflow", w.name),
				zap.String("stage", stage.Name),
				zap.String("last_state", string(last)),
				zap.Error(err))
			return result, pkgerrors.WithRunState(err, string(last))
		}
	}

	w.transition(result, StateCompleted)
	return result, nil
}

func (w *Workflow) runStage(ctx context.Context, sc *SharedContext, stage Stage, result *RunResult) error {
	w.transition(result, stage.State)
	started := time.Now()
	defer func() {
		w.metrics.RecordStageDuration(ctx, w.name, stage.Name, time.Since(started))
	}()

	payload, err := w.executeGated(ctx, sc, stage, result)
	if err != nil {
		return err
	}

	sc.Append(stage.Role.Name(), payload)

	if stage.Verify == nil {
		return nil
	}
	return w.verify(ctx, sc, stage, result, payload)
}

// executeGated runs the role and gates its output through the contract
// schema. A violation re-invokes the role with the validation error appended
// to the shared context; the retry budget is spent, the next violation is
// terminal.
func (w *Workflow) executeGated(ctx context.Context, sc *SharedContext, stage Stage, result *RunResult) (interface{}, error) {
	role := stage.Role

	for violations := 0; ; violations++ {
		payload, err := w.executeWithCapabilityRetry(ctx, sc, stage)
		if err != nil {
			if pkgerrors.IsContractViolation(err) && violations < w.cfg.ContractRetries {
				w.recordViolation(ctx, sc, stage, err)
				continue
			}
			return nil, err
		}

		if stage.GateState != "" {
			w.transition(result, stage.GateState)
		}

		if err := contracts.Validate(payload, role.Schema()); err != nil {
			if violations < w.cfg.ContractRetries {
				w.recordViolation(ctx, sc, stage, err)
				continue
			}
			return nil, pkgerrors.NewContractViolationError(role.Name(), err)
		}

		return payload, nil
	}
}

func (w *Workflow) recordViolation(ctx context.Context, sc *SharedContext, stage Stage, err error) {
	sc.Append(stage.Role.Name()+violationSuffix, err.Error())
	w.metrics.RecordRetry(ctx, "contract", stage.Name)
	w.logger.Warn("contract violation, re-invoking role",
		zap.String("workflow", w.name),
		zap.String("stage", stage.Name),
		zap.String("violation", err.Error()))
}

// executeWithCapabilityRetry retries the role when a capability fails with a
// retryable error (unavailability, timeout). Contract and content errors pass
// straight through.
func (w *Workflow) executeWithCapabilityRetry(ctx context.Context, sc *SharedContext, stage Stage) (interface{}, error) {
	var lastErr error

	for attempt := 1; attempt <= w.cfg.CapabilityAttempts; attempt++ {
		payload, err := stage.Role.Execute(ctx, sc)
		if err == nil {
			return payload, nil
		}
		if !pkgerrors.IsRetryable(err) {
			return nil, err
		}

		lastErr = err
		if attempt == w.cfg.CapabilityAttempts {
			break
		}

		w.metrics.RecordRetry(ctx, "capability", stage.Name)
		w.logger.Warn("capability failed, retrying",
			zap.String("workflow", w.name),
			zap.String("stage", stage.Name),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, pkgerrors.NewTimeoutError(stage.Name, ctx.Err())
		case <-time.After(w.cfg.RetryDelay * time.Duration(attempt)):
		}
	}

	return nil, lastErr
}

// verify re-reads the stage's write. One miss triggers exactly one rewrite
// and re-verify; a second miss fails the run with PERSISTENCE_UNCONFIRMED.
func (w *Workflow) verify(ctx context.Context, sc *SharedContext, stage Stage, result *RunResult, payload interface{}) error {
	w.transition(result, stage.VerifyState)

	var lastErr error
	for rewrites := 0; rewrites <= w.cfg.VerifyRetries; rewrites++ {
		if rewrites > 0 {
			w.metrics.RecordRetry(ctx, "verify", stage.Name)
			w.logger.Warn("verify read missed, rewriting",
				zap.String("workflow", w.name),
				zap.String("stage", stage.Name))

			// The rewrite goes back through the contract gate; a rewritten
			// payload gets no schema exemption
			w.transition(result, stage.State)
			rewritten, err := w.executeGated(ctx, sc, stage, result)
			if err != nil {
				return err
			}
			payload = rewritten
			sc.Append(stage.Role.Name(), payload)
			w.transition(result, stage.VerifyState)
		}

		err := stage.Verify(ctx, sc, payload)
		if err == nil {
			return nil
		}
		if !pkgerrors.IsPersistenceUnconfirmed(err) {
			return err
		}
		lastErr = err
	}

	return lastErr
}

func (w *Workflow) transition(result *RunResult, state RunState) {
	result.State = state
	result.History = append(result.History, state)
	w.logger.Debug("state transition",
		zap.String("workflow", w.name),
		zap.String("state", string(state)))
}
