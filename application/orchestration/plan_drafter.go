package orchestration

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"knowde-backend/application/contracts"
	"knowde-backend/application/ports"
)

// PlanDrafter turns the user's prompt into a structured lesson plan draft.
// The draft carries lessons with objectives and content but no external
// resources; enrichment is the next role's job.
type PlanDrafter struct {
	lm     ports.LanguageModel
	logger *zap.Logger
}

// NewPlanDrafter creates the drafting role
func NewPlanDrafter(lm ports.LanguageModel, logger *zap.Logger) *PlanDrafter {
	return &PlanDrafter{lm: lm, logger: logger}
}

// Name implements Role
func (r *PlanDrafter) Name() string { return "planDrafter" }

// Schema implements Role
func (r *PlanDrafter) Schema() contracts.Kind { return contracts.KindPlanDraft }

const draftPromptTemplate = `You are a curriculum designer. Create a structured lesson plan for the learning request below.

Learning request: %s

Respond with JSON only, matching exactly this shape:
{
  "title": "plan title",
  "description": "one paragraph describing the plan",
  "lessons": [
    {
      "title": "lesson title",
      "objectives": ["objective 1", "objective 2"],
      "content": "two to four paragraphs of lesson content"
    }
  ]
}

Produce between 3 and 6 lessons ordered from foundational to advanced. Every lesson needs at least two objectives and substantive content.`

// Execute implements Role
func (r *PlanDrafter) Execute(ctx context.Context, sc *SharedContext) (interface{}, error) {
	req := sc.Request()

	prompt := fmt.Sprintf(draftPromptTemplate, req.SourcePrompt)
	if violation, ok := lastViolation(sc, r.Name()); ok {
		prompt += fmt.Sprintf("\n\nYour previous answer was rejected: %s\nFix the problem and answer again with JSON only.", violation)
	}

	raw, err := r.lm.Generate(ctx, prompt, string(r.Schema()))
	if err != nil {
		return nil, err
	}

	var draft contracts.PlanDraft
	if err := decodeModelJSON(raw, r.Name(), &draft); err != nil {
		return nil, err
	}

	// Identity and ordering come from the pipeline, never from the model
	draft.UserID = req.UserID
	draft.SourcePrompt = req.SourcePrompt
	for i := range draft.Lessons {
		if strings.TrimSpace(draft.Lessons[i].LessonID) == "" {
			draft.Lessons[i].LessonID = uuid.New().String()
		}
		draft.Lessons[i].Order = i
	}

	r.logger.Info("plan drafted",
		zap.String("request_id", req.RequestID),
		zap.String("user_id", req.UserID),
		zap.Int("lessons", len(draft.Lessons)))

	return &draft, nil
}
