package aggregates

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"knowde-backend/domain/core/entities"
	pkgerrors "knowde-backend/pkg/errors"
)

func mustNode(t *testing.T, name string) *entities.ConceptNode {
	t.Helper()
	node, err := entities.NewConceptNode(name, "about "+name, "")
	require.NoError(t, err)
	return node
}

func mustEdge(t *testing.T, source, target *entities.ConceptNode, rel entities.RelationshipType) *entities.ConceptEdge {
	t.Helper()
	edge, err := entities.NewConceptEdge(source.ConceptID, target.ConceptID, rel)
	require.NoError(t, err)
	return edge
}

func TestNewConceptGraph_RequiresUserID(t *testing.T) {
	graph, err := NewConceptGraph("")

	assert.Nil(t, graph)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeInvalidRequest))
}

func TestConceptGraph_AddNode_DuplicateConceptID(t *testing.T) {
	graph, err := NewConceptGraph("user123")
	require.NoError(t, err)

	node := mustNode(t, "Vectors")
	require.NoError(t, graph.AddNode(node))

	err = graph.AddNode(node)

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDuplicateConcept))
	assert.Equal(t, 1, graph.NodeCount())
}

func TestConceptGraph_UpsertNode_MergesOnCollision(t *testing.T) {
	graph, err := NewConceptGraph("user123")
	require.NoError(t, err)

	original := mustNode(t, "Vectors")
	original.MasteryLevel = 40
	original.RepetitionInterval = 4
	require.NoError(t, graph.AddNode(original))

	incoming := &entities.ConceptNode{
		ConceptID:          original.ConceptID,
		Name:               "Vectors",
		Description:        "updated description",
		RepetitionInterval: 1,
	}

	merged, err := graph.UpsertNode(incoming)

	require.NoError(t, err)
	assert.True(t, merged)
	assert.Equal(t, 1, graph.NodeCount())

	stored, err := graph.Node(original.ConceptID)
	require.NoError(t, err)
	assert.Equal(t, "updated description", stored.Description)
	// Identity and review progress survive the merge
	assert.Equal(t, 40, stored.MasteryLevel)
	assert.Equal(t, 4, stored.RepetitionInterval)
}

func TestConceptGraph_AddEdge_SelfReference(t *testing.T) {
	graph, err := NewConceptGraph("user123")
	require.NoError(t, err)

	node := mustNode(t, "Vectors")
	require.NoError(t, graph.AddNode(node))

	err = graph.AddEdge(&entities.ConceptEdge{
		EdgeID:           "edge1",
		SourceConceptID:  node.ConceptID,
		TargetConceptID:  node.ConceptID,
		RelationshipType: entities.RelationshipRelatedTo,
	})

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeSelfReference))
	assert.Equal(t, 0, graph.EdgeCount())
}

func TestConceptGraph_AddEdge_DanglingReference(t *testing.T) {
	graph, err := NewConceptGraph("user123")
	require.NoError(t, err)

	node := mustNode(t, "Vectors")
	require.NoError(t, graph.AddNode(node))

	err = graph.AddEdge(&entities.ConceptEdge{
		EdgeID:           "edge1",
		SourceConceptID:  node.ConceptID,
		TargetConceptID:  "missing-concept",
		RelationshipType: entities.RelationshipPrerequisiteFor,
	})

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDanglingReference))
	assert.True(t, pkgerrors.IsGraphInvariant(err))
	assert.Equal(t, 0, graph.EdgeCount())
}

func TestConceptGraph_AddEdge_UnknownRelationshipType(t *testing.T) {
	graph, err := NewConceptGraph("user123")
	require.NoError(t, err)

	source := mustNode(t, "Vectors")
	target := mustNode(t, "Matrices")
	require.NoError(t, graph.AddNode(source))
	require.NoError(t, graph.AddNode(target))

	err = graph.AddEdge(&entities.ConceptEdge{
		EdgeID:           "edge1",
		SourceConceptID:  source.ConceptID,
		TargetConceptID:  target.ConceptID,
		RelationshipType: "dependsOn",
	})

	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeInvalidRequest))
}

func TestConceptGraph_AddEdge_Success(t *testing.T) {
	graph, err := NewConceptGraph("user123")
	require.NoError(t, err)

	source := mustNode(t, "Vectors")
	target := mustNode(t, "Matrices")
	require.NoError(t, graph.AddNode(source))
	require.NoError(t, graph.AddNode(target))

	edge := mustEdge(t, source, target, entities.RelationshipPrerequisiteFor)
	require.NoError(t, graph.AddEdge(edge))

	assert.Equal(t, 1, graph.EdgeCount())
	assert.NoError(t, graph.Validate())
}

func TestReconstructConceptGraph_RejectsCorruptedEdges(t *testing.T) {
	node := mustNode(t, "Vectors")
	badEdge := &entities.ConceptEdge{
		EdgeID:           "edge1",
		SourceConceptID:  node.ConceptID,
		TargetConceptID:  "missing-concept",
		RelationshipType: entities.RelationshipRelatedTo,
	}

	graph, err := ReconstructConceptGraph("user123", []*entities.ConceptNode{node}, []*entities.ConceptEdge{badEdge})

	assert.Nil(t, graph)
	assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeDanglingReference))
}

func TestConceptGraph_DueConcepts(t *testing.T) {
	graph, err := NewConceptGraph("user123")
	require.NoError(t, err)

	due := mustNode(t, "Vectors")
	due.NextReview = time.Now().UTC().Add(-time.Hour)
	notDue := mustNode(t, "Matrices")
	notDue.NextReview = time.Now().UTC().Add(24 * time.Hour)

	require.NoError(t, graph.AddNode(due))
	require.NoError(t, graph.AddNode(notDue))

	dueNow := graph.DueConcepts(time.Now().UTC())

	require.Len(t, dueNow, 1)
	assert.Equal(t, due.ConceptID, dueNow[0].ConceptID)
}
