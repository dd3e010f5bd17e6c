package orchestration

import (
	"context"
	"time"

	"go.uber.org/zap"

	"knowde-backend/application/contracts"
	"knowde-backend/application/ports"
	"knowde-backend/domain/core/entities"
	"knowde-backend/infrastructure/persistence/docstore"
	pkgerrors "knowde-backend/pkg/errors"
)

// planDocument is the stored shape of a plan's metadata. Lessons live as
// their own documents under the plan's lessons collection, so the plan
// document itself never embeds them.
type planDocument struct {
	PlanID       string              `json:"planId"`
	UserID       string              `json:"userId"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	SourcePrompt string              `json:"sourcePrompt"`
	CreatedAt    time.Time           `json:"createdAt"`
	LastAccessed time.Time           `json:"lastAccessed"`
	Status       entities.PlanStatus `json:"status"`
	LessonCount  int                 `json:"lessonCount"`
}

// PlanPersister writes the enriched plan into the document tree and emits a
// receipt naming where it landed. Re-execution overwrites the same paths, so
// the workflow's rewrite after a verify miss is safe.
type PlanPersister struct {
	store  ports.DocumentStore
	logger *zap.Logger
}

// NewPlanPersister creates the plan persistence role
func NewPlanPersister(store ports.DocumentStore, logger *zap.Logger) *PlanPersister {
	return &PlanPersister{store: store, logger: logger}
}

// Name implements Role
func (r *PlanPersister) Name() string { return "planPersister" }

// Schema implements Role
func (r *PlanPersister) Schema() contracts.Kind { return contracts.KindPlanReceipt }

// Execute implements Role
func (r *PlanPersister) Execute(ctx context.Context, sc *SharedContext) (interface{}, error) {
	plan, ok := LatestAs[*entities.Plan](sc, "resourceEnricher")
	if !ok {
		return nil, pkgerrors.NewInternalError("no enriched plan in run context")
	}

	planPath := docstore.PlanPath(plan.UserID, plan.PlanID)
	doc := planDocument{
		PlanID:       plan.PlanID,
		UserID:       plan.UserID,
		Title:        plan.Title,
		Description:  plan.Description,
		SourcePrompt: plan.SourcePrompt,
		CreatedAt:    plan.CreatedAt,
		LastAccessed: plan.LastAccessed,
		Status:       plan.Status,
		LessonCount:  len(plan.Lessons),
	}
	// Lessons go in first, the plan document last. A plan must never be
	// readable while its lessons are not; lessons without a plan are invisible
	// and harmless, the reverse is a broken plan.
	for _, lesson := range plan.Lessons {
		lessonPath := docstore.LessonPath(plan.UserID, plan.PlanID, lesson.LessonID)
		if err := r.store.Set(ctx, lessonPath, lesson); err != nil {
			return nil, err
		}
	}

	if err := r.store.Set(ctx, planPath, doc); err != nil {
		return nil, err
	}

	r.logger.Info("plan persisted",
		zap.String("request_id", sc.Request().RequestID),
		zap.String("plan_id", plan.PlanID),
		zap.String("path", planPath),
		zap.Int("lessons", len(plan.Lessons)))

	return &contracts.PlanReceipt{
		PlanID:      plan.PlanID,
		UserID:      plan.UserID,
		Path:        planPath,
		LessonCount: len(plan.Lessons),
	}, nil
}

// VerifyPlan re-reads the plan document and its lessons after the write.
// Trusting the receipt alone is not enough; the workflow only advances once
// the store actually returns what the receipt claims.
func VerifyPlan(store ports.DocumentStore) VerifyFunc {
	return func(ctx context.Context, sc *SharedContext, payload interface{}) error {
		receipt, ok := payload.(*contracts.PlanReceipt)
		if !ok {
			return pkgerrors.NewInternalError("verify expects a plan receipt")
		}

		var doc planDocument
		if err := store.Get(ctx, receipt.Path, &doc); err != nil {
			if pkgerrors.IsNotFound(err) {
				return pkgerrors.NewPersistenceUnconfirmedError(receipt.Path)
			}
			return err
		}

		lessons, err := store.Stream(ctx, docstore.LessonsPrefix(receipt.UserID, receipt.PlanID))
		if err != nil {
			return err
		}
		if len(lessons) < receipt.LessonCount {
			return pkgerrors.NewPersistenceUnconfirmedError(docstore.LessonsPrefix(receipt.UserID, receipt.PlanID))
		}

		return nil
	}
}
