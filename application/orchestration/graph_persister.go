package orchestration

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"knowde-backend/application/contracts"
	"knowde-backend/application/ports"
	"knowde-backend/domain/core/aggregates"
	"knowde-backend/domain/core/entities"
	"knowde-backend/infrastructure/persistence/docstore"
	pkgerrors "knowde-backend/pkg/errors"
)

// GraphPersister runs the candidate graph through the consistency engine and
// writes what survives. The user's stored graph is loaded first so derivations
// merge into it: a conceptId collision refreshes the stored node, an invariant
// violation drops the offending entry without failing the run.
type GraphPersister struct {
	store  ports.DocumentStore
	logger *zap.Logger
}

// NewGraphPersister creates the graph persistence role
func NewGraphPersister(store ports.DocumentStore, logger *zap.Logger) *GraphPersister {
	return &GraphPersister{store: store, logger: logger}
}

// Name implements Role
func (r *GraphPersister) Name() string { return "graphPersister" }

// Schema implements Role
func (r *GraphPersister) Schema() contracts.Kind { return contracts.KindGraphReceipt }

// Execute implements Role
func (r *GraphPersister) Execute(ctx context.Context, sc *SharedContext) (interface{}, error) {
	candidate, ok := LatestAs[*contracts.GraphCandidate](sc, "graphDeriver")
	if !ok {
		return nil, pkgerrors.NewInternalError("no graph candidate in run context")
	}

	graph, err := r.loadGraph(ctx, candidate.UserID)
	if err != nil {
		return nil, err
	}

	receipt := &contracts.GraphReceipt{
		UserID:  candidate.UserID,
		PlanID:  candidate.PlanID,
		Dropped: []contracts.DroppedEntry{},
	}

	// conceptId remapping for candidate nodes that merged into stored ones,
	// so candidate edges still resolve after the merge
	remapped := make(map[string]string, len(candidate.Nodes))

	for _, node := range candidate.Nodes {
		stored := r.resolveByName(graph, node)
		if stored != nil && stored.ConceptID != node.ConceptID {
			remapped[node.ConceptID] = stored.ConceptID
			node = &entities.ConceptNode{
				ConceptID:          stored.ConceptID,
				Name:               node.Name,
				Description:        node.Description,
				MasteryLevel:       node.MasteryLevel,
				LastReviewed:       node.LastReviewed,
				NextReview:         node.NextReview,
				RepetitionInterval: node.RepetitionInterval,
				SourceLessonID:     node.SourceLessonID,
			}
		}

		if _, err := graph.UpsertNode(node); err != nil {
			receipt.Dropped = append(receipt.Dropped, droppedEntry(node.ConceptID, "node", err))
			continue
		}

		written, nodeErr := graph.Node(node.ConceptID)
		if nodeErr != nil {
			return nil, nodeErr
		}
		if err := r.store.Set(ctx, docstore.NodePath(candidate.UserID, written.ConceptID), written); err != nil {
			return nil, err
		}
		receipt.NodesWritten++
	}

	for _, edge := range candidate.Edges {
		if id, ok := remapped[edge.SourceConceptID]; ok {
			edge.SourceConceptID = id
		}
		if id, ok := remapped[edge.TargetConceptID]; ok {
			edge.TargetConceptID = id
		}

		if err := graph.AddEdge(edge); err != nil {
			receipt.Dropped = append(receipt.Dropped, droppedEntry(edge.EdgeID, "edge", err))
			r.logger.Warn("candidate edge dropped",
				zap.String("user_id", candidate.UserID),
				zap.String("edge_id", edge.EdgeID),
				zap.Error(err))
			continue
		}
		if err := r.store.Set(ctx, docstore.EdgePath(candidate.UserID, edge.EdgeID), edge); err != nil {
			return nil, err
		}
		receipt.EdgesWritten++
	}

	r.logger.Info("graph persisted",
		zap.String("request_id", sc.Request().RequestID),
		zap.String("user_id", candidate.UserID),
		zap.Int("nodes_written", receipt.NodesWritten),
		zap.Int("edges_written", receipt.EdgesWritten),
		zap.Int("dropped", len(receipt.Dropped)))

	return receipt, nil
}

// resolveByName finds the stored node a candidate merges into. The model
// assigns fresh conceptIds on every derivation, so the merge key for
// previously stored concepts is the normalized name.
func (r *GraphPersister) resolveByName(graph *aggregates.ConceptGraph, candidate *entities.ConceptNode) *entities.ConceptNode {
	if graph.HasNode(candidate.ConceptID) {
		node, _ := graph.Node(candidate.ConceptID)
		return node
	}
	key := normalizeName(candidate.Name)
	for _, node := range graph.Nodes() {
		if normalizeName(node.Name) == key {
			return node
		}
	}
	return nil
}

func (r *GraphPersister) loadGraph(ctx context.Context, userID string) (*aggregates.ConceptGraph, error) {
	nodeDocs, err := r.store.Stream(ctx, docstore.NodesPrefix(userID))
	if err != nil {
		return nil, err
	}
	edgeDocs, err := r.store.Stream(ctx, docstore.EdgesPrefix(userID))
	if err != nil {
		return nil, err
	}

	nodes := make([]*entities.ConceptNode, 0, len(nodeDocs))
	for _, d := range nodeDocs {
		var node entities.ConceptNode
		if err := json.Unmarshal(d.Data, &node); err != nil {
			return nil, pkgerrors.Wrap(err, "decoding node document "+d.Path)
		}
		nodes = append(nodes, &node)
	}

	edges := make([]*entities.ConceptEdge, 0, len(edgeDocs))
	for _, d := range edgeDocs {
		var edge entities.ConceptEdge
		if err := json.Unmarshal(d.Data, &edge); err != nil {
			return nil, pkgerrors.Wrap(err, "decoding edge document "+d.Path)
		}
		edges = append(edges, &edge)
	}

	return aggregates.ReconstructConceptGraph(userID, nodes, edges)
}

func droppedEntry(id, kind string, err error) contracts.DroppedEntry {
	reason := "invalid"
	if appErr := pkgerrors.GetAppError(err); appErr != nil {
		reason = string(appErr.Type)
	}
	return contracts.DroppedEntry{ID: id, Kind: kind, Reason: reason}
}

// VerifyGraph re-reads the user's node and edge collections and confirms the
// receipt's counts are actually observable in the store
func VerifyGraph(store ports.DocumentStore) VerifyFunc {
	return func(ctx context.Context, sc *SharedContext, payload interface{}) error {
		receipt, ok := payload.(*contracts.GraphReceipt)
		if !ok {
			return pkgerrors.NewInternalError("verify expects a graph receipt")
		}

		nodes, err := store.Stream(ctx, docstore.NodesPrefix(receipt.UserID))
		if err != nil {
			return err
		}
		if len(nodes) < receipt.NodesWritten {
			return pkgerrors.NewPersistenceUnconfirmedError(docstore.NodesPrefix(receipt.UserID))
		}

		edges, err := store.Stream(ctx, docstore.EdgesPrefix(receipt.UserID))
		if err != nil {
			return err
		}
		if len(edges) < receipt.EdgesWritten {
			return pkgerrors.NewPersistenceUnconfirmedError(docstore.EdgesPrefix(receipt.UserID))
		}

		return nil
	}
}
