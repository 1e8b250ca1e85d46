package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parcelgraph/parcelgraph-engine/pkg/apperrors"
	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
	"github.com/parcelgraph/parcelgraph-engine/pkg/repositories"
)

// SubgraphNode is one discovered node in a connected subgraph, tagged with
// the depth at which it was first reached.
type SubgraphNode struct {
	Type  string `json:"type"`
	ID    int64  `json:"id"`
	Depth int    `json:"depth"`
}

// SubgraphEdge is one relationship discovered during traversal.
type SubgraphEdge struct {
	From       string  `json:"from"` // "type:id"
	To         string  `json:"to"`
	RelType    string  `json:"relationship"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Subgraph is the result of a bounded connected-subgraph traversal. Nodes
// are keyed by "type:id" and unique; edges are emitted once per
// relationship, including edges whose far endpoint was already visited, so
// TotalEdges can exceed TotalNodes.
type Subgraph struct {
	Nodes      map[string]SubgraphNode `json:"nodes"`
	Edges      []SubgraphEdge          `json:"edges"`
	TotalNodes int                     `json:"total_nodes"`
	TotalEdges int                     `json:"total_edges"`
	// Truncated is set when the edge cap stopped the traversal early.
	Truncated bool `json:"truncated,omitempty"`
}

// GraphService answers relationship queries over the edge store: direct
// neighbor lookups, the fixed traversals scoring depends on, and bounded
// connected-subgraph discovery.
type GraphService interface {
	// CreateRelationship stores a new edge, silently returning the
	// existing row when an active edge with the same identity exists.
	CreateRelationship(ctx context.Context, rel *models.Relationship) (*models.Relationship, error)

	// OutgoingRelationships returns edges from (nodeType, nodeID),
	// optionally filtered by relType ("" = all), active only when asked.
	OutgoingRelationships(ctx context.Context, nodeType string, nodeID int64, relType string, activeOnly bool) ([]*models.Relationship, error)

	// IncomingRelationships is the symmetric lookup on the to side.
	IncomingRelationships(ctx context.Context, nodeType string, nodeID int64, relType string, activeOnly bool) ([]*models.Relationship, error)

	// PropertiesOwnedBy returns ids of property nodes the entity has
	// active "owns" edges to.
	PropertiesOwnedBy(ctx context.Context, entityID int64) ([]int64, error)

	// EntitiesAtAddress returns ids of entities whose primary address is
	// the given address. This is an attribute join on the entities table,
	// not an edge traversal: address affiliation is modeled as an entity
	// attribute.
	EntitiesAtAddress(ctx context.Context, addressID int64) ([]int64, error)

	// AgentRelationships returns active "agent_for" edges from the person.
	AgentRelationships(ctx context.Context, personID int64) ([]*models.Relationship, error)

	// FindConnectedSubgraph walks active edges in both directions from the
	// root, visiting each (type, id) node at most once, down to maxDepth.
	// relTypes restricts the edge vocabulary when non-empty. A root that
	// does not exist yields a one-node result, not an error.
	FindConnectedSubgraph(ctx context.Context, rootType string, rootID int64, maxDepth int, relTypes []string) (*Subgraph, error)

	// Statistics reports edge counts by rel_type and source_system.
	Statistics(ctx context.Context) (*models.RelationshipStatistics, error)
}

type graphService struct {
	relRepo    repositories.RelationshipRepository
	entityRepo repositories.EntityRepository
	maxDepth   int
	maxEdges   int
	logger     *zap.Logger
}

// NewGraphService creates a new GraphService. maxDepth is the hard ceiling
// traversal requests are clamped to; maxEdges caps how many edges a single
// traversal may collect.
func NewGraphService(
	relRepo repositories.RelationshipRepository,
	entityRepo repositories.EntityRepository,
	maxDepth int,
	maxEdges int,
	logger *zap.Logger,
) GraphService {
	return &graphService{
		relRepo:    relRepo,
		entityRepo: entityRepo,
		maxDepth:   maxDepth,
		maxEdges:   maxEdges,
		logger:     logger.Named("graph-service"),
	}
}

var _ GraphService = (*graphService)(nil)

func (s *graphService) CreateRelationship(ctx context.Context, rel *models.Relationship) (*models.Relationship, error) {
	stored, err := s.relRepo.Create(ctx, rel)
	if err != nil {
		return nil, fmt.Errorf("create relationship: %w", err)
	}

	s.logger.Info("Created relationship",
		zap.String("from", stored.FromKey()),
		zap.String("rel_type", stored.RelType),
		zap.String("to", stored.ToKey()),
		zap.String("source_system", stored.SourceSystem))

	return stored, nil
}

func (s *graphService) OutgoingRelationships(ctx context.Context, nodeType string, nodeID int64, relType string, activeOnly bool) ([]*models.Relationship, error) {
	return s.relRepo.Outgoing(ctx, nodeType, nodeID, relType, activeOnly)
}

func (s *graphService) IncomingRelationships(ctx context.Context, nodeType string, nodeID int64, relType string, activeOnly bool) ([]*models.Relationship, error) {
	return s.relRepo.Incoming(ctx, nodeType, nodeID, relType, activeOnly)
}

func (s *graphService) PropertiesOwnedBy(ctx context.Context, entityID int64) ([]int64, error) {
	rels, err := s.relRepo.Outgoing(ctx, models.NodeTypeEntity, entityID, models.RelTypeOwns, true)
	if err != nil {
		return nil, fmt.Errorf("get owned properties: %w", err)
	}

	var propertyIDs []int64
	for _, rel := range rels {
		if rel.ToType == models.NodeTypeProperty {
			propertyIDs = append(propertyIDs, rel.ToID)
		}
	}
	return propertyIDs, nil
}

func (s *graphService) EntitiesAtAddress(ctx context.Context, addressID int64) ([]int64, error) {
	entities, err := s.entityRepo.ByAddress(ctx, addressID)
	if err != nil {
		return nil, fmt.Errorf("get entities at address: %w", err)
	}

	var entityIDs []int64
	for _, entity := range entities {
		entityIDs = append(entityIDs, entity.ID)
	}
	return entityIDs, nil
}

func (s *graphService) AgentRelationships(ctx context.Context, personID int64) ([]*models.Relationship, error) {
	return s.relRepo.Outgoing(ctx, models.NodeTypePerson, personID, models.RelTypeAgentFor, true)
}

// traversal carries the mutable state of one FindConnectedSubgraph call.
type traversal struct {
	svc       *graphService
	maxDepth  int
	relTypes  map[string]bool // nil = all types allowed
	visited   map[string]bool
	seenEdges map[int64]bool
	result    *Subgraph
}

func (s *graphService) FindConnectedSubgraph(ctx context.Context, rootType string, rootID int64, maxDepth int, relTypes []string) (*Subgraph, error) {
	if maxDepth < 0 {
		return nil, apperrors.ErrInvalidDepth
	}
	if maxDepth > s.maxDepth {
		s.logger.Debug("Clamping traversal depth",
			zap.Int("requested", maxDepth), zap.Int("max", s.maxDepth))
		maxDepth = s.maxDepth
	}

	t := &traversal{
		svc:       s,
		maxDepth:  maxDepth,
		visited:   make(map[string]bool),
		seenEdges: make(map[int64]bool),
		result: &Subgraph{
			Nodes: make(map[string]SubgraphNode),
		},
	}
	if len(relTypes) > 0 {
		t.relTypes = make(map[string]bool, len(relTypes))
		for _, rt := range relTypes {
			t.relTypes[rt] = true
		}
	}

	if err := t.walk(ctx, rootType, rootID, 0); err != nil {
		return nil, err
	}

	t.result.TotalNodes = len(t.result.Nodes)
	t.result.TotalEdges = len(t.result.Edges)
	return t.result, nil
}

// walk visits one node: records it, enumerates its active edges in both
// directions, and recurses into unvisited far endpoints. The depth guard
// stops recursion into children past maxDepth but never suppresses the
// current node's own edge enumeration, so a depth-0 traversal still lists
// the root's edges.
func (t *traversal) walk(ctx context.Context, nodeType string, nodeID int64, depth int) error {
	key := models.NodeKey(nodeType, nodeID)
	if depth > t.maxDepth || t.visited[key] {
		return nil
	}

	t.visited[key] = true
	t.result.Nodes[key] = SubgraphNode{Type: nodeType, ID: nodeID, Depth: depth}

	outgoing, err := t.svc.relRepo.Outgoing(ctx, nodeType, nodeID, "", true)
	if err != nil {
		return fmt.Errorf("traverse outgoing from %s: %w", key, err)
	}
	for _, rel := range outgoing {
		if t.relTypes != nil && !t.relTypes[rel.RelType] {
			continue
		}
		if t.truncated() {
			return nil
		}
		t.emit(rel)
		if err := t.walk(ctx, rel.ToType, rel.ToID, depth+1); err != nil {
			return err
		}
	}

	incoming, err := t.svc.relRepo.Incoming(ctx, nodeType, nodeID, "", true)
	if err != nil {
		return fmt.Errorf("traverse incoming to %s: %w", key, err)
	}
	for _, rel := range incoming {
		if t.relTypes != nil && !t.relTypes[rel.RelType] {
			continue
		}
		if t.truncated() {
			return nil
		}
		t.emit(rel)
		if err := t.walk(ctx, rel.FromType, rel.FromID, depth+1); err != nil {
			return err
		}
	}

	return nil
}

// emit records one edge view per relationship. Both endpoints of an edge
// enumerate it during traversal, so emission is keyed by relationship id;
// distinct edges into already-visited nodes are still recorded.
func (t *traversal) emit(rel *models.Relationship) {
	if t.seenEdges[rel.ID] {
		return
	}
	t.seenEdges[rel.ID] = true
	t.result.Edges = append(t.result.Edges, SubgraphEdge{
		From:       rel.FromKey(),
		To:         rel.ToKey(),
		RelType:    rel.RelType,
		Source:     rel.SourceSystem,
		Confidence: rel.Confidence,
	})
}

func (t *traversal) truncated() bool {
	if t.svc.maxEdges > 0 && len(t.result.Edges) >= t.svc.maxEdges {
		t.result.Truncated = true
		return true
	}
	return false
}

func (s *graphService) Statistics(ctx context.Context) (*models.RelationshipStatistics, error) {
	return s.relRepo.Statistics(ctx)
}
