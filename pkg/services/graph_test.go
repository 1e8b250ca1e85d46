package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/apperrors"
	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
)

// mockRelationshipRepo implements repositories.RelationshipRepository with
// the same idempotent-create semantics the real store has.
type mockRelationshipRepo struct {
	rels      []*models.Relationship
	nextID    int64
	createErr error
	lookupErr error
}

func (m *mockRelationshipRepo) Create(_ context.Context, rel *models.Relationship) (*models.Relationship, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	for _, existing := range m.rels {
		if existing.Active() &&
			existing.FromType == rel.FromType && existing.FromID == rel.FromID &&
			existing.ToType == rel.ToType && existing.ToID == rel.ToID &&
			existing.RelType == rel.RelType {
			return existing, nil
		}
	}
	m.nextID++
	stored := *rel
	stored.ID = m.nextID
	stored.CreatedAt = time.Now()
	if stored.Confidence == 0 {
		stored.Confidence = 1.0
	}
	m.rels = append(m.rels, &stored)
	return &stored, nil
}

func (m *mockRelationshipRepo) Outgoing(_ context.Context, nodeType string, nodeID int64, relType string, activeOnly bool) ([]*models.Relationship, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	var result []*models.Relationship
	for _, rel := range m.rels {
		if rel.FromType != nodeType || rel.FromID != nodeID {
			continue
		}
		if relType != "" && rel.RelType != relType {
			continue
		}
		if activeOnly && !rel.Active() {
			continue
		}
		result = append(result, rel)
	}
	return result, nil
}

func (m *mockRelationshipRepo) Incoming(_ context.Context, nodeType string, nodeID int64, relType string, activeOnly bool) ([]*models.Relationship, error) {
	if m.lookupErr != nil {
		return nil, m.lookupErr
	}
	var result []*models.Relationship
	for _, rel := range m.rels {
		if rel.ToType != nodeType || rel.ToID != nodeID {
			continue
		}
		if relType != "" && rel.RelType != relType {
			continue
		}
		if activeOnly && !rel.Active() {
			continue
		}
		result = append(result, rel)
	}
	return result, nil
}

func (m *mockRelationshipRepo) Close(_ context.Context, id int64, endDate time.Time) error {
	for _, rel := range m.rels {
		if rel.ID == id {
			rel.EndDate = &endDate
			return nil
		}
	}
	return apperrors.ErrNotFound
}

func (m *mockRelationshipRepo) Statistics(_ context.Context) (*models.RelationshipStatistics, error) {
	stats := &models.RelationshipStatistics{
		ByType:   map[string]int64{},
		BySource: map[string]int64{},
	}
	for _, rel := range m.rels {
		stats.Total++
		stats.ByType[rel.RelType]++
		stats.BySource[rel.SourceSystem]++
	}
	return stats, nil
}

// mockEntityRepo implements repositories.EntityRepository over a slice.
type mockEntityRepo struct {
	entities []*models.Entity
	nextID   int64
	getErr   error
}

func (m *mockEntityRepo) GetByID(_ context.Context, id int64) (*models.Entity, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, e := range m.entities {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (m *mockEntityRepo) GetByExternalID(_ context.Context, sourceSystem, externalID string) (*models.Entity, error) {
	for _, e := range m.entities {
		if e.SourceSystem == sourceSystem && e.ExternalID == externalID {
			return e, nil
		}
	}
	return nil, nil
}

func (m *mockEntityRepo) SearchByName(_ context.Context, name string, limit int) ([]*models.Entity, error) {
	var result []*models.Entity
	for _, e := range m.entities {
		if len(result) >= limit {
			break
		}
		if strings.Contains(strings.ToUpper(e.LegalName), strings.ToUpper(name)) {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEntityRepo) ByJurisdiction(_ context.Context, jurisdiction string, limit int) ([]*models.Entity, error) {
	var result []*models.Entity
	for _, e := range m.entities {
		if len(result) >= limit {
			break
		}
		if e.Jurisdiction == jurisdiction {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEntityRepo) ByStatus(_ context.Context, status string, limit int) ([]*models.Entity, error) {
	var result []*models.Entity
	for _, e := range m.entities {
		if len(result) >= limit {
			break
		}
		if e.Status == status {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEntityRepo) ByAddress(_ context.Context, addressID int64) ([]*models.Entity, error) {
	var result []*models.Entity
	for _, e := range m.entities {
		if e.PrimaryAddressID != nil && *e.PrimaryAddressID == addressID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEntityRepo) ByAgent(_ context.Context, agentID int64) ([]*models.Entity, error) {
	var result []*models.Entity
	for _, e := range m.entities {
		if e.RegisteredAgentID != nil && *e.RegisteredAgentID == agentID {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockEntityRepo) Upsert(_ context.Context, entity *models.Entity) error {
	for _, e := range m.entities {
		if e.SourceSystem == entity.SourceSystem && e.ExternalID == entity.ExternalID {
			entity.ID = e.ID
			entity.CreatedAt = e.CreatedAt
			entity.UpdatedAt = time.Now()
			*e = *entity
			return nil
		}
	}
	m.nextID++
	entity.ID = m.nextID
	entity.CreatedAt = time.Now()
	entity.UpdatedAt = entity.CreatedAt
	m.entities = append(m.entities, entity)
	return nil
}

func edge(fromType string, fromID int64, relType, toType string, toID int64) *models.Relationship {
	return &models.Relationship{
		FromType:     fromType,
		FromID:       fromID,
		ToType:       toType,
		ToID:         toID,
		RelType:      relType,
		SourceSystem: "sunbiz",
	}
}

func newTestGraph(relRepo *mockRelationshipRepo, entityRepo *mockEntityRepo, maxDepth, maxEdges int) GraphService {
	return NewGraphService(relRepo, entityRepo, maxDepth, maxEdges, zap.NewNop())
}

func TestGraphService_CreateRelationship_Idempotent(t *testing.T) {
	repo := &mockRelationshipRepo{}
	svc := newTestGraph(repo, &mockEntityRepo{}, 5, 0)

	first, err := svc.CreateRelationship(context.Background(), edge("entity", 1, "owns", "property", 10))
	require.NoError(t, err)

	second, err := svc.CreateRelationship(context.Background(), edge("entity", 1, "owns", "property", 10))
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, repo.rels, 1)
}

func TestGraphService_CreateRelationship_DefaultConfidence(t *testing.T) {
	repo := &mockRelationshipRepo{}
	svc := newTestGraph(repo, &mockEntityRepo{}, 5, 0)

	created, err := svc.CreateRelationship(context.Background(), edge("entity", 1, "owns", "property", 10))
	require.NoError(t, err)
	assert.Equal(t, 1.0, created.Confidence)
}

func TestGraphService_OutgoingRelationships_ActiveOnly(t *testing.T) {
	repo := &mockRelationshipRepo{}
	svc := newTestGraph(repo, &mockEntityRepo{}, 5, 0)
	ctx := context.Background()

	created, err := svc.CreateRelationship(ctx, edge("entity", 1, "owns", "property", 10))
	require.NoError(t, err)

	out, err := svc.OutgoingRelationships(ctx, "entity", 1, "", true)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, created.ID, out[0].ID)

	require.NoError(t, repo.Close(ctx, created.ID, time.Now()))

	out, err = svc.OutgoingRelationships(ctx, "entity", 1, "", true)
	require.NoError(t, err)
	assert.Empty(t, out)

	all, err := svc.OutgoingRelationships(ctx, "entity", 1, "", false)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGraphService_PropertiesOwnedBy(t *testing.T) {
	repo := &mockRelationshipRepo{}
	svc := newTestGraph(repo, &mockEntityRepo{}, 5, 0)
	ctx := context.Background()

	_, err := svc.CreateRelationship(ctx, edge("entity", 1, "owns", "property", 10))
	require.NoError(t, err)
	_, err = svc.CreateRelationship(ctx, edge("entity", 1, "owns", "property", 11))
	require.NoError(t, err)
	// Ownership of another entity is not a property holding.
	_, err = svc.CreateRelationship(ctx, edge("entity", 1, "owns", "entity", 2))
	require.NoError(t, err)

	ids, err := svc.PropertiesOwnedBy(ctx, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{10, 11}, ids)
}

func TestGraphService_EntitiesAtAddress(t *testing.T) {
	addr := int64(7)
	other := int64(8)
	entityRepo := &mockEntityRepo{entities: []*models.Entity{
		{ID: 1, PrimaryAddressID: &addr},
		{ID: 2, PrimaryAddressID: &addr},
		{ID: 3, PrimaryAddressID: &other},
		{ID: 4},
	}}
	svc := newTestGraph(&mockRelationshipRepo{}, entityRepo, 5, 0)

	ids, err := svc.EntitiesAtAddress(context.Background(), addr)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{1, 2}, ids)
}

func TestGraphService_AgentRelationships(t *testing.T) {
	repo := &mockRelationshipRepo{}
	svc := newTestGraph(repo, &mockEntityRepo{}, 5, 0)
	ctx := context.Background()

	_, err := svc.CreateRelationship(ctx, edge("person", 5, "agent_for", "entity", 1))
	require.NoError(t, err)
	_, err = svc.CreateRelationship(ctx, edge("person", 5, "agent_for", "entity", 2))
	require.NoError(t, err)
	_, err = svc.CreateRelationship(ctx, edge("person", 5, "officer_of", "entity", 3))
	require.NoError(t, err)

	rels, err := svc.AgentRelationships(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, rels, 2)
	for _, rel := range rels {
		assert.Equal(t, "agent_for", rel.RelType)
	}
}

func TestGraphService_FindConnectedSubgraph_SingleEdge(t *testing.T) {
	repo := &mockRelationshipRepo{}
	svc := newTestGraph(repo, &mockEntityRepo{}, 5, 0)
	ctx := context.Background()

	_, err := svc.CreateRelationship(ctx, edge("entity", 1, "owns", "property", 10))
	require.NoError(t, err)

	sub, err := svc.FindConnectedSubgraph(ctx, "entity", 1, 1, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, sub.TotalNodes)
	assert.Contains(t, sub.Nodes, "entity:1")
	assert.Contains(t, sub.Nodes, "property:10")
	require.Equal(t, 1, sub.TotalEdges)
	assert.Equal(t, "entity:1", sub.Edges[0].From)
	assert.Equal(t, "property:10", sub.Edges[0].To)
	assert.Equal(t, "owns", sub.Edges[0].RelType)
	assert.False(t, sub.Truncated)
}

func TestGraphService_FindConnectedSubgraph_DepthZero(t *testing.T) {
	repo := &mockRelationshipRepo{}
	svc := newTestGraph(repo, &mockEntityRepo{}, 5, 0)
	ctx := context.Background()

	_, err := svc.CreateRelationship(ctx, edge("entity", 1, "owns", "property", 10))
	require.NoError(t, err)
	_, err = svc.CreateRelationship(ctx, edge("person", 5, "agent_for", "entity", 1))
	require.NoError(t, err)

	sub, err := svc.FindConnectedSubgraph(ctx, "entity", 1, 0, nil)
	require.NoError(t, err)

	// The root's own edges in both directions are listed, but no
	// neighbor is visited.
	assert.Equal(t, 1, sub.TotalNodes)
	assert.Contains(t, sub.Nodes, "entity:1")
	assert.Equal(t, 0, sub.Nodes["entity:1"].Depth)
	assert.Equal(t, 2, sub.TotalEdges)
}

func TestGraphService_FindConnectedSubgraph_NegativeDepth(t *testing.T) {
	svc := newTestGraph(&mockRelationshipRepo{}, &mockEntityRepo{}, 5, 0)

	_, err := svc.FindConnectedSubgraph(context.Background(), "entity", 1, -1, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidDepth)
}

func TestGraphService_FindConnectedSubgraph_UnknownRoot(t *testing.T) {
	svc := newTestGraph(&mockRelationshipRepo{}, &mockEntityRepo{}, 5, 0)

	sub, err := svc.FindConnectedSubgraph(context.Background(), "entity", 999, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, sub.TotalNodes)
	assert.Equal(t, 0, sub.TotalEdges)
}

func TestGraphService_FindConnectedSubgraph_ClampsDepth(t *testing.T) {
	repo := &mockRelationshipRepo{}
	svc := newTestGraph(repo, &mockEntityRepo{}, 2, 0)
	ctx := context.Background()

	// Chain: entity:1 -> entity:2 -> entity:3 -> entity:4.
	_, err := svc.CreateRelationship(ctx, edge("entity", 1, "owns", "entity", 2))
	require.NoError(t, err)
	_, err = svc.CreateRelationship(ctx, edge("entity", 2, "owns", "entity", 3))
	require.NoError(t, err)
	_, err = svc.CreateRelationship(ctx, edge("entity", 3, "owns", "entity", 4))
	require.NoError(t, err)

	sub, err := svc.FindConnectedSubgraph(ctx, "entity", 1, 10, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, sub.TotalNodes)
	assert.NotContains(t, sub.Nodes, "entity:4")
	assert.Equal(t, 2, sub.Nodes["entity:3"].Depth)
}

func TestGraphService_FindConnectedSubgraph_CycleTerminates(t *testing.T) {
	repo := &mockRelationshipRepo{}
	svc := newTestGraph(repo, &mockEntityRepo{}, 5, 0)
	ctx := context.Background()

	_, err := svc.CreateRelationship(ctx, edge("entity", 1, "owns", "entity", 2))
	require.NoError(t, err)
	_, err = svc.CreateRelationship(ctx, edge("entity", 2, "owns", "entity", 3))
	require.NoError(t, err)
	_, err = svc.CreateRelationship(ctx, edge("entity", 3, "owns", "entity", 1))
	require.NoError(t, err)

	sub, err := svc.FindConnectedSubgraph(ctx, "entity", 1, 5, nil)
	require.NoError(t, err)

	// Every node once, every edge once, even though multiple paths reach
	// each node.
	assert.Equal(t, 3, sub.TotalNodes)
	assert.Equal(t, 3, sub.TotalEdges)
}

func TestGraphService_FindConnectedSubgraph_RelTypeFilter(t *testing.T) {
	repo := &mockRelationshipRepo{}
	svc := newTestGraph(repo, &mockEntityRepo{}, 5, 0)
	ctx := context.Background()

	_, err := svc.CreateRelationship(ctx, edge("entity", 1, "owns", "property", 10))
	require.NoError(t, err)
	_, err = svc.CreateRelationship(ctx, edge("person", 5, "officer_of", "entity", 1))
	require.NoError(t, err)

	sub, err := svc.FindConnectedSubgraph(ctx, "entity", 1, 2, []string{"owns"})
	require.NoError(t, err)

	assert.Equal(t, 2, sub.TotalNodes)
	assert.NotContains(t, sub.Nodes, "person:5")
	require.Equal(t, 1, sub.TotalEdges)
	assert.Equal(t, "owns", sub.Edges[0].RelType)
}

func TestGraphService_FindConnectedSubgraph_EdgeCap(t *testing.T) {
	repo := &mockRelationshipRepo{}
	svc := newTestGraph(repo, &mockEntityRepo{}, 5, 2)
	ctx := context.Background()

	for i := int64(10); i < 15; i++ {
		_, err := svc.CreateRelationship(ctx, edge("entity", 1, "owns", "property", i))
		require.NoError(t, err)
	}

	sub, err := svc.FindConnectedSubgraph(ctx, "entity", 1, 3, nil)
	require.NoError(t, err)

	assert.True(t, sub.Truncated)
	assert.Equal(t, 2, sub.TotalEdges)
}

func TestGraphService_FindConnectedSubgraph_IncomingTraversal(t *testing.T) {
	repo := &mockRelationshipRepo{}
	svc := newTestGraph(repo, &mockEntityRepo{}, 5, 0)
	ctx := context.Background()

	_, err := svc.CreateRelationship(ctx, edge("entity", 1, "owns", "property", 10))
	require.NoError(t, err)

	// Rooting from the property walks the edge backwards.
	sub, err := svc.FindConnectedSubgraph(ctx, "property", 10, 1, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, sub.TotalNodes)
	assert.Contains(t, sub.Nodes, "entity:1")
	assert.Equal(t, 1, sub.TotalEdges)
}

func TestGraphService_FindConnectedSubgraph_SkipsClosedEdges(t *testing.T) {
	repo := &mockRelationshipRepo{}
	svc := newTestGraph(repo, &mockEntityRepo{}, 5, 0)
	ctx := context.Background()

	created, err := svc.CreateRelationship(ctx, edge("entity", 1, "owns", "property", 10))
	require.NoError(t, err)
	require.NoError(t, repo.Close(ctx, created.ID, time.Now()))

	sub, err := svc.FindConnectedSubgraph(ctx, "entity", 1, 2, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, sub.TotalNodes)
	assert.Equal(t, 0, sub.TotalEdges)
}

func TestGraphService_Statistics(t *testing.T) {
	repo := &mockRelationshipRepo{}
	svc := newTestGraph(repo, &mockEntityRepo{}, 5, 0)
	ctx := context.Background()

	_, err := svc.CreateRelationship(ctx, edge("entity", 1, "owns", "property", 10))
	require.NoError(t, err)
	_, err = svc.CreateRelationship(ctx, edge("person", 5, "agent_for", "entity", 1))
	require.NoError(t, err)

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.ByType["owns"])
	assert.Equal(t, int64(1), stats.BySource["sunbiz"])
}
