//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelgraph/parcelgraph-engine/pkg/models"
	"github.com/parcelgraph/parcelgraph-engine/pkg/testhelpers"
)

func TestRelationshipRepository_CreateAndClose(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateAll(t, testDB.DB)

	ctx := context.Background()
	repo := NewRelationshipRepository(testDB.DB)

	created, err := repo.Create(ctx, &models.Relationship{
		FromType:     models.NodeTypeEntity,
		FromID:       1,
		ToType:       models.NodeTypeProperty,
		ToID:         10,
		RelType:      models.RelTypeOwns,
		SourceSystem: "marion_pa",
	})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	assert.Equal(t, 1.0, created.Confidence)
	assert.True(t, created.Active())

	// Creating the same active identity again returns the existing row.
	dup, err := repo.Create(ctx, &models.Relationship{
		FromType:     models.NodeTypeEntity,
		FromID:       1,
		ToType:       models.NodeTypeProperty,
		ToID:         10,
		RelType:      models.RelTypeOwns,
		SourceSystem: "sunbiz",
		Confidence:   0.5,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, dup.ID)
	assert.Equal(t, "marion_pa", dup.SourceSystem)

	outgoing, err := repo.Outgoing(ctx, models.NodeTypeEntity, 1, "", true)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)

	require.NoError(t, repo.Close(ctx, created.ID, time.Now()))

	// Closed edges disappear from active queries but stay visible without
	// the filter.
	active, err := repo.Outgoing(ctx, models.NodeTypeEntity, 1, "", true)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := repo.Outgoing(ctx, models.NodeTypeEntity, 1, "", false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.False(t, all[0].Active())

	// With the old edge closed, the identity can be created again.
	recreated, err := repo.Create(ctx, &models.Relationship{
		FromType:     models.NodeTypeEntity,
		FromID:       1,
		ToType:       models.NodeTypeProperty,
		ToID:         10,
		RelType:      models.RelTypeOwns,
		SourceSystem: "marion_pa",
	})
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, recreated.ID)
}

func TestRelationshipRepository_Statistics(t *testing.T) {
	testDB := testhelpers.GetTestDB(t)
	testhelpers.TruncateAll(t, testDB.DB)

	ctx := context.Background()
	repo := NewRelationshipRepository(testDB.DB)

	seed := []*models.Relationship{
		{FromType: models.NodeTypeEntity, FromID: 1, ToType: models.NodeTypeProperty, ToID: 10, RelType: models.RelTypeOwns, SourceSystem: "marion_pa"},
		{FromType: models.NodeTypeEntity, FromID: 1, ToType: models.NodeTypeProperty, ToID: 11, RelType: models.RelTypeOwns, SourceSystem: "marion_pa"},
		{FromType: models.NodeTypePerson, FromID: 5, ToType: models.NodeTypeEntity, ToID: 1, RelType: models.RelTypeAgentFor, SourceSystem: "sunbiz"},
	}
	for _, rel := range seed {
		_, err := repo.Create(ctx, rel)
		require.NoError(t, err)
	}

	stats, err := repo.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.ByType[models.RelTypeOwns])
	assert.Equal(t, int64(1), stats.ByType[models.RelTypeAgentFor])
	assert.Equal(t, int64(2), stats.BySource["marion_pa"])
}
