package aggregates

import (
	"sort"
	"time"

	"knowde-backend/domain/core/entities"
	pkgerrors "knowde-backend/pkg/errors"
)

// ConceptGraph is the aggregate root for a user's concept graph.
// It is the consistency boundary for nodes and edges: every addition runs the
// invariant checks here before anything is handed to persistence, so the
// stored graph is never observed in an inconsistent state. Each user owns at
// most one live graph; derivations merge into it rather than duplicating it.
type ConceptGraph struct {
	userID    string
	nodes     map[string]*entities.ConceptNode
	edges     map[string]*entities.ConceptEdge
	updatedAt time.Time
	version   int
}

// NewConceptGraph creates an empty graph for a user
func NewConceptGraph(userID string) (*ConceptGraph, error) {
	if userID == "" {
		return nil, pkgerrors.NewInvalidRequestError("userID required")
	}

	return &ConceptGraph{
		userID:    userID,
		nodes:     make(map[string]*entities.ConceptNode),
		edges:     make(map[string]*entities.ConceptEdge),
		updatedAt: time.Now().UTC(),
		version:   1,
	}, nil
}

// ReconstructConceptGraph recreates a graph from stored node and edge documents.
// Stored data is trusted for node identity but edges are still checked, so a
// corrupted store surfaces as an error instead of a silently broken graph.
func ReconstructConceptGraph(userID string, nodes []*entities.ConceptNode, edges []*entities.ConceptEdge) (*ConceptGraph, error) {
	graph, err := NewConceptGraph(userID)
	if err != nil {
		return nil, err
	}

	for _, node := range nodes {
		if err := graph.AddNode(node); err != nil {
			return nil, err
		}
	}
	for _, edge := range edges {
		if err := graph.AddEdge(edge); err != nil {
			return nil, err
		}
	}

	return graph, nil
}

// UserID returns the owner's ID
func (g *ConceptGraph) UserID() string {
	return g.userID
}

// Version returns the aggregate version for optimistic concurrency
func (g *ConceptGraph) Version() int {
	return g.version
}

// UpdatedAt returns when the graph last changed
func (g *ConceptGraph) UpdatedAt() time.Time {
	return g.updatedAt
}

// HasNode checks whether a concept exists in the graph
func (g *ConceptGraph) HasNode(conceptID string) bool {
	_, exists := g.nodes[conceptID]
	return exists
}

// Node returns the concept with the given id
func (g *ConceptGraph) Node(conceptID string) (*entities.ConceptNode, error) {
	node, exists := g.nodes[conceptID]
	if !exists {
		return nil, pkgerrors.NewNotFoundError("concept " + conceptID)
	}
	return node, nil
}

// AddNode inserts a concept; a conceptId collision is a DuplicateConcept error
func (g *ConceptGraph) AddNode(node *entities.ConceptNode) error {
	if node == nil {
		return pkgerrors.NewInvalidRequestError("node cannot be nil")
	}
	if node.ConceptID == "" {
		return pkgerrors.NewInvalidRequestError("conceptId cannot be empty")
	}

	if _, exists := g.nodes[node.ConceptID]; exists {
		return pkgerrors.NewDuplicateConceptError(node.ConceptID)
	}

	g.nodes[node.ConceptID] = node
	g.touch()
	return nil
}

// UpsertNode applies the merge policy: a new conceptId inserts, a collision
// refreshes the stored node's mastery and review fields instead of failing.
// Returns true when an existing node was merged.
func (g *ConceptGraph) UpsertNode(node *entities.ConceptNode) (bool, error) {
	if node == nil {
		return false, pkgerrors.NewInvalidRequestError("node cannot be nil")
	}
	if node.ConceptID == "" {
		return false, pkgerrors.NewInvalidRequestError("conceptId cannot be empty")
	}

	if existing, exists := g.nodes[node.ConceptID]; exists {
		existing.RefreshFrom(node)
		g.touch()
		return true, nil
	}

	g.nodes[node.ConceptID] = node
	g.touch()
	return false, nil
}

// AddEdge inserts a typed edge after the invariant checks: equal endpoints
// fail with SelfReference, a missing endpoint fails with DanglingReference
func (g *ConceptGraph) AddEdge(edge *entities.ConceptEdge) error {
	if edge == nil {
		return pkgerrors.NewInvalidRequestError("edge cannot be nil")
	}
	if edge.EdgeID == "" {
		return pkgerrors.NewInvalidRequestError("edgeId cannot be empty")
	}
	if !entities.ValidRelationship(edge.RelationshipType) {
		return pkgerrors.NewInvalidRequestError("unknown relationship type: " + string(edge.RelationshipType))
	}

	if edge.SourceConceptID == edge.TargetConceptID {
		return pkgerrors.NewSelfReferenceError(edge.SourceConceptID)
	}
	if !g.HasNode(edge.SourceConceptID) {
		return pkgerrors.NewDanglingReferenceError(edge.SourceConceptID)
	}
	if !g.HasNode(edge.TargetConceptID) {
		return pkgerrors.NewDanglingReferenceError(edge.TargetConceptID)
	}
	if _, exists := g.edges[edge.EdgeID]; exists {
		return pkgerrors.NewConflictError("edge '" + edge.EdgeID + "' already exists in graph")
	}

	g.edges[edge.EdgeID] = edge
	g.touch()
	return nil
}

// Nodes returns all concepts ordered by conceptId for stable iteration
func (g *ConceptGraph) Nodes() []*entities.ConceptNode {
	nodes := make([]*entities.ConceptNode, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ConceptID < nodes[j].ConceptID })
	return nodes
}

// Edges returns all edges ordered by edgeId for stable iteration
func (g *ConceptGraph) Edges() []*entities.ConceptEdge {
	edges := make([]*entities.ConceptEdge, 0, len(g.edges))
	for _, edge := range g.edges {
		edges = append(edges, edge)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].EdgeID < edges[j].EdgeID })
	return edges
}

// NodeCount returns the number of concepts in the graph
func (g *ConceptGraph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph
func (g *ConceptGraph) EdgeCount() int {
	return len(g.edges)
}

// Validate re-checks the graph invariants over the full node and edge sets
func (g *ConceptGraph) Validate() error {
	for _, edge := range g.edges {
		if edge.SourceConceptID == edge.TargetConceptID {
			return pkgerrors.NewSelfReferenceError(edge.SourceConceptID)
		}
		if !g.HasNode(edge.SourceConceptID) {
			return pkgerrors.NewDanglingReferenceError(edge.SourceConceptID)
		}
		if !g.HasNode(edge.TargetConceptID) {
			return pkgerrors.NewDanglingReferenceError(edge.TargetConceptID)
		}
	}
	return nil
}

// DueConcepts returns concepts whose next review is at or before the given time
func (g *ConceptGraph) DueConcepts(at time.Time) []*entities.ConceptNode {
	due := []*entities.ConceptNode{}
	for _, node := range g.Nodes() {
		if node.Due(at) {
			due = append(due, node)
		}
	}
	return due
}

func (g *ConceptGraph) touch() {
	g.updatedAt = time.Now().UTC()
	g.version++
}
