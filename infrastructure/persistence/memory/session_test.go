package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/schema"
	pkgerrors "killrvideo/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	return NewBootstrappedSession(schema.MustLoad(), nil)
}

func userVideo(owner uuid.UUID, added time.Time, name string) abstractions.Row {
	return abstractions.Row{
		"userid":     owner,
		"added_date": added,
		"videoid":    uuid.New(),
		"name":       name,
	}
}

func TestUpsertAndQueryOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	owner := uuid.New()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, name := range []string{"first", "second", "third"} {
		require.NoError(t, s.Upsert(ctx, schema.TableUserVideos, userVideo(owner, base.Add(time.Duration(i)*time.Hour), name)))
	}
	require.NoError(t, s.Upsert(ctx, schema.TableUserVideos, userVideo(uuid.New(), base, "someone else")))

	it, err := s.Query(ctx, abstractions.Query{
		Table: schema.TableUserVideos,
		Equal: abstractions.Row{"userid": owner},
	})
	require.NoError(t, err)
	rows, err := abstractions.Collect(it, 0)
	require.NoError(t, err)

	require.Len(t, rows, 3)
	assert.Equal(t, "third", rows[0]["name"])
	assert.Equal(t, "first", rows[2]["name"])

	t.Run("reverse", func(t *testing.T) {
		it, err := s.Query(ctx, abstractions.Query{
			Table:   schema.TableUserVideos,
			Equal:   abstractions.Row{"userid": owner},
			Reverse: true,
			Limit:   2,
		})
		require.NoError(t, err)
		rows, err := abstractions.Collect(it, 0)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "first", rows[0]["name"])
		assert.Equal(t, "second", rows[1]["name"])
	})

	t.Run("range", func(t *testing.T) {
		it, err := s.Query(ctx, abstractions.Query{
			Table: schema.TableUserVideos,
			Equal: abstractions.Row{"userid": owner},
			Range: &abstractions.Range{
				Column: "added_date",
				Lower:  &abstractions.Bound{Value: base, Inclusive: false},
				Upper:  &abstractions.Bound{Value: base.Add(2 * time.Hour), Inclusive: true},
			},
		})
		require.NoError(t, err)
		rows, err := abstractions.Collect(it, 0)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "third", rows[0]["name"])
		assert.Equal(t, "second", rows[1]["name"])
	})
}

func TestUpsertReplacesRow(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	id := uuid.New()

	require.NoError(t, s.Upsert(ctx, schema.TableUsers, abstractions.Row{"userid": id, "firstname": "Ted", "lastname": "Codd"}))
	require.NoError(t, s.Upsert(ctx, schema.TableUsers, abstractions.Row{"userid": id, "firstname": "Edgar"}))

	it, err := s.Query(ctx, abstractions.Query{Table: schema.TableUsers, Equal: abstractions.Row{"userid": id}})
	require.NoError(t, err)
	rows, err := abstractions.Collect(it, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Edgar", rows[0]["firstname"])
	assert.NotContains(t, rows[0], "lastname")
}

func TestAppendRejectsExistingRow(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	row := abstractions.Row{"email": "ted@example.com", "password": "x", "userid": uuid.New()}

	require.NoError(t, s.Append(ctx, schema.TableUserCredentials, row))
	err := s.Append(ctx, schema.TableUserCredentials, row)
	assert.ErrorIs(t, err, abstractions.ErrRowExists)
}

func TestIncrement(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	video := uuid.New()
	key := abstractions.Row{"videoid": video}

	require.NoError(t, s.Increment(ctx, schema.TableVideoRating, key, map[string]int64{"rating_counter": 1, "rating_total": 4}))
	require.NoError(t, s.Increment(ctx, schema.TableVideoRating, key, map[string]int64{"rating_counter": 1, "rating_total": 5}))

	it, err := s.Query(ctx, abstractions.Query{Table: schema.TableVideoRating, Equal: key})
	require.NoError(t, err)
	rows, err := abstractions.Collect(it, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0]["rating_counter"])
	assert.Equal(t, int64(9), rows[0]["rating_total"])

	t.Run("upsert on counter table is a schema violation", func(t *testing.T) {
		err := s.Upsert(ctx, schema.TableVideoRating, abstractions.Row{"videoid": video, "rating_counter": 3})
		assert.True(t, pkgerrors.IsSchemaViolation(err))
	})
}

func TestBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)
	video, owner := uuid.New(), uuid.New()
	commentID := uuid.Must(uuid.NewUUID())

	stmts := []abstractions.Statement{
		abstractions.AppendStmt(schema.TableCommentsByVideo, abstractions.Row{"videoid": video, "commentid": commentID, "userid": owner, "comment": "hi"}),
		abstractions.AppendStmt(schema.TableCommentsByUser, abstractions.Row{"userid": owner, "commentid": commentID, "videoid": video, "comment": "hi"}),
	}

	s.SetFault(func(kind abstractions.StatementKind, table string) error {
		if table == schema.TableCommentsByUser {
			return errors.New("node down")
		}
		return nil
	})
	require.Error(t, s.Batch(ctx, stmts))

	count := func(table string, key abstractions.Row) int {
		it, err := s.Query(ctx, abstractions.Query{Table: table, Equal: key})
		require.NoError(t, err)
		rows, err := abstractions.Collect(it, 0)
		require.NoError(t, err)
		return len(rows)
	}
	assert.Equal(t, 0, count(schema.TableCommentsByVideo, abstractions.Row{"videoid": video}))
	assert.Equal(t, 0, count(schema.TableCommentsByUser, abstractions.Row{"userid": owner}))

	s.SetFault(nil)
	require.NoError(t, s.Batch(ctx, stmts))
	assert.Equal(t, 1, count(schema.TableCommentsByVideo, abstractions.Row{"videoid": video}))
	assert.Equal(t, 1, count(schema.TableCommentsByUser, abstractions.Row{"userid": owner}))

	assert.ErrorIs(t, s.Batch(ctx, stmts), abstractions.ErrRowExists)
}

func TestBatchLimit(t *testing.T) {
	s := newTestSession(t)
	s.SetMaxBatch(1)
	stmts := []abstractions.Statement{
		abstractions.UpsertStmt(schema.TableUsers, abstractions.Row{"userid": uuid.New()}),
		abstractions.UpsertStmt(schema.TableUsers, abstractions.Row{"userid": uuid.New()}),
	}
	err := s.Batch(context.Background(), stmts)
	assert.True(t, pkgerrors.IsSchemaViolation(err))
}

func TestSchemaViolations(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	tests := []struct {
		name  string
		table string
		row   abstractions.Row
	}{
		{"unknown table", "nope", abstractions.Row{"id": uuid.New()}},
		{"missing partition key", schema.TableUserVideos, abstractions.Row{"added_date": time.Now(), "videoid": uuid.New()}},
		{"missing clustering key", schema.TableUserVideos, abstractions.Row{"userid": uuid.New(), "videoid": uuid.New()}},
		{"unknown column", schema.TableUsers, abstractions.Row{"userid": uuid.New(), "nickname": "x"}},
		{"wrong type", schema.TableUsers, abstractions.Row{"userid": uuid.New(), "firstname": 7}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.Upsert(ctx, tt.table, tt.row)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsSchemaViolation(err), err.Error())
		})
	}
}

func TestQueryShapeValidation(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t)

	tests := []struct {
		name string
		q    abstractions.Query
	}{
		{"missing partition", abstractions.Query{
			Table: schema.TableUserVideos,
			Range: &abstractions.Range{Column: "added_date", Lower: &abstractions.Bound{Value: time.Now()}},
		}},
		{"range skips clustering column", abstractions.Query{
			Table: schema.TableUserVideos,
			Equal: abstractions.Row{"userid": uuid.New()},
			Range: &abstractions.Range{Column: "videoid", Lower: &abstractions.Bound{Value: uuid.New()}},
		}},
		{"equality on regular column", abstractions.Query{
			Table: schema.TableUserVideos,
			Equal: abstractions.Row{"userid": uuid.New(), "name": "x"},
		}},
		{"gap in clustering prefix", abstractions.Query{
			Table: schema.TableVideoEvent,
			Equal: abstractions.Row{"videoid": uuid.New(), "userid": uuid.New(), "event": "start"},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Query(ctx, tt.q)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsUnsupportedQueryShape(err), err.Error())
		})
	}
}

func TestClosedSession(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.Close())
	err := s.Upsert(context.Background(), schema.TableUsers, abstractions.Row{"userid": uuid.New()})
	assert.ErrorIs(t, err, abstractions.ErrClosed)
}
