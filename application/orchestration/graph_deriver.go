package orchestration

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"knowde-backend/application/contracts"
	"knowde-backend/application/ports"
	"knowde-backend/domain/core/entities"
	"knowde-backend/infrastructure/persistence/docstore"
	pkgerrors "knowde-backend/pkg/errors"
)

// GraphDeriver extracts concept nodes and typed edges from a persisted plan.
// It re-fetches the plan from the document store rather than trusting the
// in-memory copy, so the graph is always derived from what was actually
// written.
type GraphDeriver struct {
	store  ports.DocumentStore
	lm     ports.LanguageModel
	logger *zap.Logger
}

// NewGraphDeriver creates the derivation role
func NewGraphDeriver(store ports.DocumentStore, lm ports.LanguageModel, logger *zap.Logger) *GraphDeriver {
	return &GraphDeriver{store: store, lm: lm, logger: logger}
}

// Name implements Role
func (r *GraphDeriver) Name() string { return "graphDeriver" }

// Schema implements Role
func (r *GraphDeriver) Schema() contracts.Kind { return contracts.KindGraphCandidate }

// modelGraph is the raw extraction shape the model answers with; concepts are
// referenced by name until the deriver assigns ids
type modelGraph struct {
	Concepts []struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		LessonID    string `json:"lessonId"`
	} `json:"concepts"`
	Relations []struct {
		Source       string `json:"source"`
		Target       string `json:"target"`
		Relationship string `json:"relationship"`
	} `json:"relations"`
}

const derivePromptTemplate = `You are a knowledge engineer. Extract the key concepts and their relationships from the lesson plan below.

%s

Respond with JSON only, matching exactly this shape:
{
  "concepts": [
    {"name": "concept name", "description": "one sentence", "lessonId": "the lessonId the concept comes from"}
  ],
  "relations": [
    {"source": "concept name", "target": "concept name", "relationship": "relatedTo|prerequisiteFor|partOf"}
  ]
}

Extract 2 to 5 concepts per lesson. Only relate concepts from the same lesson or from neighbouring lessons. Never relate a concept to itself.`

// Execute implements Role
func (r *GraphDeriver) Execute(ctx context.Context, sc *SharedContext) (interface{}, error) {
	receipt, ok := LatestAs[*contracts.PlanReceipt](sc, "planPersister")
	if !ok {
		return nil, pkgerrors.NewInternalError("no plan receipt in run context")
	}

	lessons, err := r.fetchLessons(ctx, receipt)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(derivePromptTemplate, formatLessons(lessons))
	if violation, ok := lastViolation(sc, r.Name()); ok {
		prompt += fmt.Sprintf("\n\nYour previous answer was rejected: %s\nFix the problem and answer again with JSON only.", violation)
	}

	raw, err := r.lm.Generate(ctx, prompt, string(r.Schema()))
	if err != nil {
		return nil, err
	}

	var extracted modelGraph
	if err := decodeModelJSON(raw, r.Name(), &extracted); err != nil {
		return nil, err
	}

	candidate, dropped := r.materialize(receipt, lessons, &extracted)

	r.logger.Info("graph derived",
		zap.String("request_id", sc.Request().RequestID),
		zap.String("plan_id", receipt.PlanID),
		zap.Int("nodes", len(candidate.Nodes)),
		zap.Int("edges", len(candidate.Edges)),
		zap.Int("filtered_relations", dropped))

	return candidate, nil
}

func (r *GraphDeriver) fetchLessons(ctx context.Context, receipt *contracts.PlanReceipt) ([]entities.Lesson, error) {
	var doc planDocument
	if err := r.store.Get(ctx, receipt.Path, &doc); err != nil {
		return nil, err
	}

	docs, err := r.store.Stream(ctx, docstore.LessonsPrefix(receipt.UserID, receipt.PlanID))
	if err != nil {
		return nil, err
	}

	lessons := make([]entities.Lesson, 0, len(docs))
	for _, d := range docs {
		var lesson entities.Lesson
		if err := json.Unmarshal(d.Data, &lesson); err != nil {
			return nil, pkgerrors.Wrap(err, "decoding lesson document "+d.Path)
		}
		lessons = append(lessons, lesson)
	}
	sort.Slice(lessons, func(i, j int) bool { return lessons[i].Order < lessons[j].Order })

	return lessons, nil
}

// materialize turns the name-keyed model output into id-keyed candidate nodes
// and edges. Concepts with the same normalized name collapse into one node;
// relations with unknown endpoints, self-loops, unknown relationship types, or
// endpoints further than one lesson apart are filtered out here. Returns the
// number of filtered relations.
func (r *GraphDeriver) materialize(receipt *contracts.PlanReceipt, lessons []entities.Lesson, extracted *modelGraph) (*contracts.GraphCandidate, int) {
	lessonOrder := make(map[string]int, len(lessons))
	for _, lesson := range lessons {
		lessonOrder[lesson.LessonID] = lesson.Order
	}

	nodes := make([]*entities.ConceptNode, 0, len(extracted.Concepts))
	byName := make(map[string]*entities.ConceptNode, len(extracted.Concepts))
	for _, c := range extracted.Concepts {
		key := normalizeName(c.Name)
		if key == "" {
			continue
		}
		if _, seen := byName[key]; seen {
			continue
		}
		lessonID := c.LessonID
		if _, known := lessonOrder[lessonID]; !known {
			lessonID = ""
		}
		node, err := entities.NewConceptNode(strings.TrimSpace(c.Name), strings.TrimSpace(c.Description), lessonID)
		if err != nil {
			continue
		}
		byName[key] = node
		nodes = append(nodes, node)
	}

	edges := make([]*entities.ConceptEdge, 0, len(extracted.Relations))
	filtered := 0
	for _, rel := range extracted.Relations {
		source, okS := byName[normalizeName(rel.Source)]
		target, okT := byName[normalizeName(rel.Target)]
		if !okS || !okT || source.ConceptID == target.ConceptID {
			filtered++
			continue
		}
		if !adjacentLessons(lessonOrder, source.SourceLessonID, target.SourceLessonID) {
			filtered++
			continue
		}
		edge, err := entities.NewConceptEdge(source.ConceptID, target.ConceptID, entities.RelationshipType(rel.Relationship))
		if err != nil {
			filtered++
			continue
		}
		edges = append(edges, edge)
	}

	return &contracts.GraphCandidate{
		UserID: receipt.UserID,
		PlanID: receipt.PlanID,
		Nodes:  nodes,
		Edges:  edges,
	}, filtered
}

func formatLessons(lessons []entities.Lesson) string {
	var b strings.Builder
	for _, lesson := range lessons {
		fmt.Fprintf(&b, "Lesson %d (lessonId %s): %s\n", lesson.Order+1, lesson.LessonID, lesson.Title)
		fmt.Fprintf(&b, "Objectives: %s\n", strings.Join(lesson.Objectives, "; "))
		fmt.Fprintf(&b, "%s\n\n", lesson.Content)
	}
	return b.String()
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// adjacentLessons reports whether two source lessons are the same lesson or
// direct neighbours in plan order. Concepts without a known source lesson are
// allowed to relate to anything.
func adjacentLessons(order map[string]int, a, b string) bool {
	if a == "" || b == "" {
		return true
	}
	oa, okA := order[a]
	ob, okB := order[b]
	if !okA || !okB {
		return true
	}
	diff := oa - ob
	return diff >= -1 && diff <= 1
}
