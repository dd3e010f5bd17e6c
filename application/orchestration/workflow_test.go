package orchestration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"knowde-backend/application/contracts"
	pkgerrors "knowde-backend/pkg/errors"
)

// fakeRole returns queued results in order; the last result repeats
type fakeRole struct {
	name       string
	kind       contracts.Kind
	results    []fakeResult
	executions int
}

type fakeResult struct {
	payload interface{}
	err     error
}

func (r *fakeRole) Name() string           { return r.name }
func (r *fakeRole) Schema() contracts.Kind { return r.kind }
func (r *fakeRole) Execute(ctx context.Context, sc *SharedContext) (interface{}, error) {
	idx := r.executions
	if idx >= len(r.results) {
		idx = len(r.results) - 1
	}
	r.executions++
	res := r.results[idx]
	return res.payload, res.err
}

func validReceipt() *contracts.PlanReceipt {
	return &contracts.PlanReceipt{
		PlanID:      "plan123",
		UserID:      "user123",
		Path:        "users/user123/lessonPlans/plan123",
		LessonCount: 3,
	}
}

func invalidReceipt() *contracts.PlanReceipt {
	// LessonCount below the schema minimum
	return &contracts.PlanReceipt{PlanID: "plan123", UserID: "user123", Path: "p"}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryDelay = time.Millisecond
	return cfg
}

func testContext(t *testing.T) *SharedContext {
	t.Helper()
	req, err := NewRequest("user123", "I want to learn linear algebra")
	require.NoError(t, err)
	return NewSharedContext(req)
}

func TestWorkflow_Run_HappyPath(t *testing.T) {
	role := &fakeRole{
		name:    "planPersister",
		kind:    contracts.KindPlanReceipt,
		results: []fakeResult{{payload: validReceipt()}},
	}
	wf := NewWorkflow("plan", testConfig(), zap.NewNop(), nil, nil,
		Stage{Name: "persistPlan", State: StatePersistingPlan, Role: role})
	sc := testContext(t)

	result, err := wf.Run(context.Background(), sc)

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, []RunState{StateReceived, StatePersistingPlan, StateCompleted}, result.History)
	assert.Equal(t, 1, role.executions)

	recorded, ok := LatestAs[*contracts.PlanReceipt](sc, "planPersister")
	require.True(t, ok)
	assert.Equal(t, "plan123", recorded.PlanID)
}

func TestWorkflow_Run_ContractViolationRetriedOnce(t *testing.T) {
	role := &fakeRole{
		name: "planPersister",
		kind: contracts.KindPlanReceipt,
		results: []fakeResult{
			{payload: invalidReceipt()},
			{payload: validReceipt()},
		},
	}
	wf := NewWorkflow("plan", testConfig(), zap.NewNop(), nil, nil,
		Stage{Name: "persistPlan", State: StatePersistingPlan, Role: role})
	sc := testContext(t)

	result, err := wf.Run(context.Background(), sc)

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, 2, role.executions)

	// The validation feedback was appended for the retry
	feedback, ok := lastViolation(sc, "planPersister")
	assert.True(t, ok)
	assert.NotEmpty(t, feedback)
}

func TestWorkflow_Run_ContractViolationBudgetExhausted(t *testing.T) {
	role := &fakeRole{
		name:    "planPersister",
		kind:    contracts.KindPlanReceipt,
		results: []fakeResult{{payload: invalidReceipt()}},
	}
	wf := NewWorkflow("plan", testConfig(), zap.NewNop(), nil, nil,
		Stage{Name: "persistPlan", State: StatePersistingPlan, Role: role})

	result, err := wf.Run(context.Background(), testContext(t))

	require.Error(t, err)
	assert.True(t, pkgerrors.IsContractViolation(err))
	assert.Equal(t, StateFailed, result.State)
	// One original invocation plus exactly one re-invocation
	assert.Equal(t, 2, role.executions)
	assert.Equal(t, string(StatePersistingPlan), pkgerrors.RunState(err))
}

func TestWorkflow_Run_CapabilityRetriesThenSucceeds(t *testing.T) {
	transient := pkgerrors.NewCapabilityUnavailableError("languageModel", assert.AnError)
	role := &fakeRole{
		name: "planPersister",
		kind: contracts.KindPlanReceipt,
		results: []fakeResult{
			{err: transient},
			{err: transient},
			{payload: validReceipt()},
		},
	}
	wf := NewWorkflow("plan", testConfig(), zap.NewNop(), nil, nil,
		Stage{Name: "persistPlan", State: StatePersistingPlan, Role: role})

	result, err := wf.Run(context.Background(), testContext(t))

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, 3, role.executions)
}

func TestWorkflow_Run_CapabilityAttemptsBounded(t *testing.T) {
	transient := pkgerrors.NewCapabilityUnavailableError("languageModel", assert.AnError)
	role := &fakeRole{
		name:    "planPersister",
		kind:    contracts.KindPlanReceipt,
		results: []fakeResult{{err: transient}},
	}
	wf := NewWorkflow("plan", testConfig(), zap.NewNop(), nil, nil,
		Stage{Name: "persistPlan", State: StatePersistingPlan, Role: role})

	result, err := wf.Run(context.Background(), testContext(t))

	require.Error(t, err)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeCapabilityUnavailable))
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 3, role.executions)
}

func TestWorkflow_Run_NonRetryableErrorFailsImmediately(t *testing.T) {
	role := &fakeRole{
		name:    "planPersister",
		kind:    contracts.KindPlanReceipt,
		results: []fakeResult{{err: pkgerrors.NewCapabilityContentError("languageModel", assert.AnError)}},
	}
	wf := NewWorkflow("plan", testConfig(), zap.NewNop(), nil, nil,
		Stage{Name: "persistPlan", State: StatePersistingPlan, Role: role})

	result, err := wf.Run(context.Background(), testContext(t))

	require.Error(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 1, role.executions)
}

func TestWorkflow_Run_VerifyMissTriggersOneRewrite(t *testing.T) {
	role := &fakeRole{
		name:    "planPersister",
		kind:    contracts.KindPlanReceipt,
		results: []fakeResult{{payload: validReceipt()}},
	}
	verifyCalls := 0
	verify := func(ctx context.Context, sc *SharedContext, payload interface{}) error {
		verifyCalls++
		if verifyCalls == 1 {
			return pkgerrors.NewPersistenceUnconfirmedError("users/user123/lessonPlans/plan123")
		}
		return nil
	}
	wf := NewWorkflow("plan", testConfig(), zap.NewNop(), nil, nil,
		Stage{
			Name:        "persistPlan",
			State:       StatePersistingPlan,
			VerifyState: StateVerifyingPlan,
			Role:        role,
			Verify:      verify,
		})

	result, err := wf.Run(context.Background(), testContext(t))

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	assert.Equal(t, 2, role.executions)
	assert.Equal(t, 2, verifyCalls)
	assert.Equal(t, []RunState{
		StateReceived,
		StatePersistingPlan,
		StateVerifyingPlan,
		StatePersistingPlan,
		StateVerifyingPlan,
		StateCompleted,
	}, result.History)
}

func TestWorkflow_Run_RewriteOutputStillGated(t *testing.T) {
	// First write is fine but misses verification; the rewrite produces a
	// schema-invalid receipt and must be caught by the contract gate, not
	// handed to verify
	role := &fakeRole{
		name: "planPersister",
		kind: contracts.KindPlanReceipt,
		results: []fakeResult{
			{payload: validReceipt()},
			{payload: invalidReceipt()},
			{payload: validReceipt()},
		},
	}
	verifyCalls := 0
	verify := func(ctx context.Context, sc *SharedContext, payload interface{}) error {
		verifyCalls++
		receipt, ok := payload.(*contracts.PlanReceipt)
		require.True(t, ok)
		assert.Equal(t, 3, receipt.LessonCount, "verify must only see schema-valid payloads")
		if verifyCalls == 1 {
			return pkgerrors.NewPersistenceUnconfirmedError("users/user123/lessonPlans/plan123")
		}
		return nil
	}
	wf := NewWorkflow("plan", testConfig(), zap.NewNop(), nil, nil,
		Stage{
			Name:        "persistPlan",
			State:       StatePersistingPlan,
			VerifyState: StateVerifyingPlan,
			Role:        role,
			Verify:      verify,
		})
	sc := testContext(t)

	result, err := wf.Run(context.Background(), sc)

	require.NoError(t, err)
	assert.Equal(t, StateCompleted, result.State)
	// Initial write, rewrite, and the gate's re-invocation of the invalid rewrite
	assert.Equal(t, 3, role.executions)
	assert.Equal(t, 2, verifyCalls)

	recorded, ok := LatestAs[*contracts.PlanReceipt](sc, "planPersister")
	require.True(t, ok)
	assert.Equal(t, 3, recorded.LessonCount)
}

func TestWorkflow_Run_SecondVerifyMissFailsRun(t *testing.T) {
	role := &fakeRole{
		name:    "planPersister",
		kind:    contracts.KindPlanReceipt,
		results: []fakeResult{{payload: validReceipt()}},
	}
	verify := func(ctx context.Context, sc *SharedContext, payload interface{}) error {
		return pkgerrors.NewPersistenceUnconfirmedError("users/user123/lessonPlans/plan123")
	}
	wf := NewWorkflow("plan", testConfig(), zap.NewNop(), nil, nil,
		Stage{
			Name:        "persistPlan",
			State:       StatePersistingPlan,
			VerifyState: StateVerifyingPlan,
			Role:        role,
			Verify:      verify,
		})

	result, err := wf.Run(context.Background(), testContext(t))

	require.Error(t, err)
	assert.True(t, pkgerrors.IsPersistenceUnconfirmed(err))
	assert.Equal(t, StateFailed, result.State)
	// One write plus exactly one rewrite
	assert.Equal(t, 2, role.executions)
	assert.Equal(t, string(StateVerifyingPlan), pkgerrors.RunState(err))
}

func TestWorkflow_Run_GateStateRecorded(t *testing.T) {
	role := &fakeRole{
		name:    "planPersister",
		kind:    contracts.KindPlanReceipt,
		results: []fakeResult{{payload: validReceipt()}},
	}
	wf := NewWorkflow("graph", testConfig(), zap.NewNop(), nil, nil,
		Stage{
			Name:      "derive",
			State:     StateDerivingGraph,
			GateState: StateValidatingGraph,
			Role:      role,
		})

	result, err := wf.Run(context.Background(), testContext(t))

	require.NoError(t, err)
	assert.Equal(t, []RunState{
		StateReceived,
		StateDerivingGraph,
		StateValidatingGraph,
		StateCompleted,
	}, result.History)
}

func TestWorkflow_Run_StagesShareContext(t *testing.T) {
	first := &fakeRole{
		name:    "planPersister",
		kind:    contracts.KindPlanReceipt,
		results: []fakeResult{{payload: validReceipt()}},
	}
	var seen *contracts.PlanReceipt
	second := &readerRole{onExecute: func(sc *SharedContext) {
		seen, _ = LatestAs[*contracts.PlanReceipt](sc, "planPersister")
	}}
	wf := NewWorkflow("plan", testConfig(), zap.NewNop(), nil, nil,
		Stage{Name: "persistPlan", State: StatePersistingPlan, Role: first},
		Stage{Name: "read", State: StateDerivingGraph, Role: second})

	_, err := wf.Run(context.Background(), testContext(t))

	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, "plan123", seen.PlanID)
}

// readerRole observes the shared context and emits a valid receipt
type readerRole struct {
	onExecute func(sc *SharedContext)
}

func (r *readerRole) Name() string           { return "reader" }
func (r *readerRole) Schema() contracts.Kind { return contracts.KindPlanReceipt }
func (r *readerRole) Execute(ctx context.Context, sc *SharedContext) (interface{}, error) {
	r.onExecute(sc)
	return validReceipt(), nil
}
