package dynamodb

import (
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"killrvideo/domain/core/valueobjects"
	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/schema"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sortKeysMatchClusteringOrder checks that sorting rows by encoded SK gives
// the same order as the clustering comparator.
func sortKeysMatchClusteringOrder(t *testing.T, table *schema.Table, rows []abstractions.Row) {
	t.Helper()

	type keyed struct {
		sk  string
		row abstractions.Row
	}
	byKey := make([]keyed, 0, len(rows))
	for _, r := range rows {
		sk, err := sortKeyValue(table, r)
		require.NoError(t, err)
		byKey = append(byKey, keyed{sk, r})
	}
	sort.Slice(byKey, func(i, j int) bool { return byKey[i].sk < byKey[j].sk })

	expected := append([]abstractions.Row(nil), rows...)
	sort.SliceStable(expected, func(i, j int) bool {
		return abstractions.CompareRows(table, expected[i], expected[j]) < 0
	})

	for i := range expected {
		assert.Equal(t, 0, abstractions.CompareRows(table, expected[i], byKey[i].row), "position %d", i)
	}
}

func TestSortKeyOrder_TimestampDesc(t *testing.T) {
	reg := schema.MustLoad()
	table, _ := reg.Table(schema.TableUserVideos)
	owner := uuid.New()
	base := time.Date(2012, 6, 1, 0, 0, 0, 0, time.UTC)

	r := rand.New(rand.NewSource(7))
	var rows []abstractions.Row
	for i := 0; i < 50; i++ {
		rows = append(rows, abstractions.Row{
			"userid":     owner,
			"added_date": base.Add(time.Duration(r.Intn(10)) * time.Hour),
			"videoid":    uuid.New(),
		})
	}
	sortKeysMatchClusteringOrder(t, table, rows)
}

func TestSortKeyOrder_TimeUUIDDescThenTextAsc(t *testing.T) {
	reg := schema.MustLoad()
	table, _ := reg.Table(schema.TableVideoEvent)
	base := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	var rows []abstractions.Row
	for i := 0; i < 20; i++ {
		id := valueobjects.TimeUUIDAt(base.Add(time.Duration(i%5) * time.Second))
		for _, ev := range []string{"start", "stop", "seek", "pause", "st"} {
			rows = append(rows, abstractions.Row{"event_timestamp": id, "event": ev})
		}
	}
	sortKeysMatchClusteringOrder(t, table, rows)
}

func TestSortKeyOrder_TextDesc(t *testing.T) {
	reg, err := schema.Parse([]byte(`
keyspace: { name: ks }
tables:
  - name: words
    columns:
      - { name: p, type: text }
      - { name: w, type: text }
    partition_key: [p]
    clustering:
      - { column: w, order: desc }
`))
	require.NoError(t, err)
	table, _ := reg.Table("words")

	var rows []abstractions.Row
	for _, w := range []string{"a", "ab", "abc", "b", "", "z", "za", "é"} {
		rows = append(rows, abstractions.Row{"w": w})
	}
	sortKeysMatchClusteringOrder(t, table, rows)
}

func TestEncodeInt_PreservesSignedOrder(t *testing.T) {
	values := []int64{-1 << 62, -100, -1, 0, 1, 99, 1 << 40}
	for i := 1; i < len(values); i++ {
		assert.Less(t, encodeInt(values[i-1]), encodeInt(values[i]))
	}
	assert.Len(t, encodeInt(0), 20)
}

func TestSortKeyRange(t *testing.T) {
	reg := schema.MustLoad()
	v := abstractions.NewValidator(reg)
	owner := uuid.New()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

	pq, err := v.Prepare(abstractions.Query{
		Table: schema.TableUserVideos,
		Equal: abstractions.Row{"userid": owner},
		Range: &abstractions.Range{
			Column: "added_date",
			Lower:  &abstractions.Bound{Value: from, Inclusive: true},
			Upper:  &abstractions.Bound{Value: to, Inclusive: false},
		},
	})
	require.NoError(t, err)

	r, err := sortKeyRangeFor(pq)
	require.NoError(t, err)
	assert.Empty(t, r.prefix)

	table := pq.Table
	inside, _ := sortKeyValue(table, abstractions.Row{"added_date": from.Add(time.Hour), "videoid": uuid.New()})
	atFrom, _ := sortKeyValue(table, abstractions.Row{"added_date": from, "videoid": uuid.New()})
	before, _ := sortKeyValue(table, abstractions.Row{"added_date": from.Add(-time.Hour), "videoid": uuid.New()})
	after, _ := sortKeyValue(table, abstractions.Row{"added_date": to.Add(time.Hour), "videoid": uuid.New()})

	within := func(sk string) bool { return sk >= r.lower && sk <= r.upper }
	assert.True(t, within(inside))
	assert.True(t, within(atFrom))
	assert.False(t, within(before))
	assert.False(t, within(after))

	t.Run("prefix", func(t *testing.T) {
		events, _ := reg.Table(schema.TableVideoEvent)
		id := valueobjects.NewTimeUUID()
		pq := &abstractions.PreparedQuery{Table: events, Prefix: []interface{}{id}}
		r, err := sortKeyRangeFor(pq)
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(r.prefix, sep))

		member, _ := sortKeyValue(events, abstractions.Row{"event_timestamp": id, "event": "start"})
		assert.True(t, member >= r.lower && member <= r.upper)
	})
}
