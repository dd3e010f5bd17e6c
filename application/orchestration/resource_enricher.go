package orchestration

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"knowde-backend/application/contracts"
	"knowde-backend/application/ports"
	"knowde-backend/domain/core/entities"
	pkgerrors "knowde-backend/pkg/errors"
)

// ResourceEnricher attaches external web resources to every lesson of a plan
// draft and promotes the draft to a full Plan entity. Searches for the
// lessons run concurrently; the role only emits once every lesson is done.
type ResourceEnricher struct {
	search        ports.SearchProvider
	maxPerLesson  int
	maxConcurrent int
	logger        *zap.Logger
}

// NewResourceEnricher creates the enrichment role
func NewResourceEnricher(search ports.SearchProvider, logger *zap.Logger) *ResourceEnricher {
	return &ResourceEnricher{
		search:        search,
		maxPerLesson:  3,
		maxConcurrent: 4,
		logger:        logger,
	}
}

// Name implements Role
func (r *ResourceEnricher) Name() string { return "resourceEnricher" }

// Schema implements Role
func (r *ResourceEnricher) Schema() contracts.Kind { return contracts.KindEnrichedPlan }

// Execute implements Role
func (r *ResourceEnricher) Execute(ctx context.Context, sc *SharedContext) (interface{}, error) {
	draft, ok := LatestAs[*contracts.PlanDraft](sc, "planDrafter")
	if !ok {
		return nil, pkgerrors.NewInternalError("no plan draft in run context")
	}

	resources := make([][]string, len(draft.Lessons))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.maxConcurrent)
	for i, lesson := range draft.Lessons {
		i, lesson := i, lesson
		g.Go(func() error {
			query := fmt.Sprintf("%s %s tutorial", draft.Title, lesson.Title)
			results, err := r.search.Search(gctx, query, r.maxPerLesson)
			if err != nil {
				return err
			}
			links := make([]string, 0, len(results))
			for _, res := range results {
				links = append(links, res.URL)
			}
			resources[i] = links
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	plan, err := entities.NewPlan(draft.UserID, draft.Title, draft.Description, draft.SourcePrompt)
	if err != nil {
		return nil, err
	}
	for i, lessonDraft := range draft.Lessons {
		lesson := entities.Lesson{
			LessonID:          lessonDraft.LessonID,
			Title:             lessonDraft.Title,
			Objectives:        lessonDraft.Objectives,
			Content:           lessonDraft.Content,
			ExternalResources: resources[i],
			Order:             lessonDraft.Order,
		}
		if err := plan.AddLesson(lesson); err != nil {
			return nil, err
		}
	}

	r.logger.Info("plan enriched",
		zap.String("request_id", sc.Request().RequestID),
		zap.String("plan_id", plan.PlanID),
		zap.Int("lessons", len(plan.Lessons)))

	return plan, nil
}
