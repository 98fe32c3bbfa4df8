package counters

import (
	"context"
	"sync"
	"testing"

	"killrvideo/domain/core/valueobjects"
	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/memory"
	"killrvideo/infrastructure/persistence/schema"
	pkgerrors "killrvideo/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rating(t *testing.T, v int) valueobjects.Rating {
	t.Helper()
	if v == 0 {
		return valueobjects.Rating{}
	}
	r, err := valueobjects.NewRating(v, 1, 5)
	require.NoError(t, err)
	return r
}

func TestDeltaFor(t *testing.T) {
	tests := []struct {
		name      string
		prior     int
		next      int
		wantCount int64
		wantSum   int64
	}{
		{"first rating", 0, 4, 1, 4},
		{"raise", 2, 5, 0, 3},
		{"lower", 5, 1, 0, -4},
		{"unchanged", 3, 3, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, s := DeltaFor(rating(t, tt.prior), rating(t, tt.next))
			assert.Equal(t, tt.wantCount, c)
			assert.Equal(t, tt.wantSum, s)
		})
	}
}

func TestStatementOmitsZeroDeltas(t *testing.T) {
	id := uuid.New()
	st := Statement(id, 0, -2)
	assert.Equal(t, abstractions.KindIncrement, st.Kind)
	assert.Equal(t, schema.TableVideoRating, st.Table)
	assert.Equal(t, map[string]int64{ColumnTotal: -2}, st.Deltas)
	assert.Equal(t, id, st.Row["videoid"])
}

func TestAggregator(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(memory.NewBootstrappedSession(schema.MustLoad(), nil), nil)
	video := uuid.New()

	empty, err := agg.Read(ctx, video)
	require.NoError(t, err)
	_, ok := empty.Average()
	assert.False(t, ok, "no ratings yields no average")

	var wg sync.WaitGroup
	for _, r := range []int{3, 5, 4} {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			c, s := DeltaFor(valueobjects.Rating{}, rating(t, r))
			assert.NoError(t, agg.Increment(ctx, video, c, s))
		}(r)
	}
	wg.Wait()

	got, err := agg.Read(ctx, video)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Count.Value())
	assert.Equal(t, int64(12), got.Total.Value())
	avg, ok := got.Average()
	require.True(t, ok)
	assert.Equal(t, 4.0, avg)

	// one user edits 5 -> 2
	c, s := DeltaFor(rating(t, 5), rating(t, 2))
	require.NoError(t, agg.Increment(ctx, video, c, s))
	got, err = agg.Read(ctx, video)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Count.Value())
	assert.Equal(t, int64(9), got.Total.Value())
}

func TestApplyRejectsForeignStatements(t *testing.T) {
	agg := NewAggregator(memory.NewBootstrappedSession(schema.MustLoad(), nil), nil)
	err := agg.Apply(context.Background(), abstractions.UpsertStmt(schema.TableVideos, abstractions.Row{"videoid": uuid.New()}))
	assert.True(t, pkgerrors.IsSchemaViolation(err))
}
