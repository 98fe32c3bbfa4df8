package cassandra

import (
	"fmt"
	"strings"
	"time"

	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/schema"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
)

// statement is a rendered CQL string with its bind values
type statement struct {
	cql  string
	args []interface{}
}

func qualified(keyspace, table string) string {
	return schema.QuoteIdent(keyspace) + "." + schema.QuoteIdent(table)
}

// insertStatement binds every column so an upsert replaces the whole row.
// Appends add IF NOT EXISTS.
func insertStatement(keyspace string, table *schema.Table, st abstractions.Statement) statement {
	cols := make([]string, 0, len(table.Columns))
	marks := make([]string, 0, len(table.Columns))
	args := make([]interface{}, 0, len(table.Columns))
	for _, c := range table.Columns {
		cols = append(cols, schema.QuoteIdent(c.Name))
		marks = append(marks, "?")
		args = append(args, toDriver(st.Row[c.Name]))
	}
	cql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		qualified(keyspace, table.Name), strings.Join(cols, ", "), strings.Join(marks, ", "))
	if st.Kind == abstractions.KindAppend {
		cql += " IF NOT EXISTS"
	}
	return statement{cql: cql, args: args}
}

// counterStatement renders UPDATE ... SET c = c + ? for each delta
func counterStatement(keyspace string, table *schema.Table, st abstractions.Statement) statement {
	var sets []string
	var args []interface{}
	for _, c := range table.RegularColumns() {
		d, ok := st.Deltas[c.Name]
		if !ok {
			continue
		}
		name := schema.QuoteIdent(c.Name)
		sets = append(sets, fmt.Sprintf("%s = %s + ?", name, name))
		args = append(args, d)
	}
	where, keyArgs := keyPredicates(table.PrimaryKey(), st.Row)
	args = append(args, keyArgs...)
	return statement{
		cql: fmt.Sprintf("UPDATE %s SET %s WHERE %s",
			qualified(keyspace, table.Name), strings.Join(sets, ", "), strings.Join(where, " AND ")),
		args: args,
	}
}

// deleteStatement removes one row by its full primary key
func deleteStatement(keyspace string, table *schema.Table, st abstractions.Statement) statement {
	where, args := keyPredicates(table.PrimaryKey(), st.Row)
	return statement{
		cql:  fmt.Sprintf("DELETE FROM %s WHERE %s", qualified(keyspace, table.Name), strings.Join(where, " AND ")),
		args: args,
	}
}

func keyPredicates(names []string, row abstractions.Row) ([]string, []interface{}) {
	where := make([]string, 0, len(names))
	args := make([]interface{}, 0, len(names))
	for _, n := range names {
		where = append(where, schema.QuoteIdent(n)+" = ?")
		args = append(args, toDriver(row[n]))
	}
	return where, args
}

// selectStatement renders a single-partition read
func selectStatement(keyspace string, pq *abstractions.PreparedQuery) statement {
	table := pq.Table
	cols := make([]string, 0, len(table.Columns))
	for _, c := range table.Columns {
		cols = append(cols, schema.QuoteIdent(c.Name))
	}

	where, args := keyPredicates(table.PartitionKey, pq.Partition)
	for i, v := range pq.Prefix {
		where = append(where, schema.QuoteIdent(table.Clustering[i].Name)+" = ?")
		args = append(args, toDriver(v))
	}
	if r := pq.Range; r != nil {
		name := schema.QuoteIdent(r.Column)
		if r.Lower != nil {
			op := ">"
			if r.Lower.Inclusive {
				op = ">="
			}
			where = append(where, fmt.Sprintf("%s %s ?", name, op))
			args = append(args, toDriver(r.Lower.Value))
		}
		if r.Upper != nil {
			op := "<"
			if r.Upper.Inclusive {
				op = "<="
			}
			where = append(where, fmt.Sprintf("%s %s ?", name, op))
			args = append(args, toDriver(r.Upper.Value))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s WHERE %s",
		strings.Join(cols, ", "), qualified(keyspace, table.Name), strings.Join(where, " AND "))

	if pq.Reverse && len(table.Clustering) > 0 {
		orders := make([]string, 0, len(table.Clustering))
		for _, c := range table.Clustering {
			dir := "DESC"
			if c.Order == schema.Desc {
				dir = "ASC"
			}
			orders = append(orders, schema.QuoteIdent(c.Name)+" "+dir)
		}
		fmt.Fprintf(&b, " ORDER BY %s", strings.Join(orders, ", "))
	}
	if pq.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", pq.Limit)
	}
	return statement{cql: b.String(), args: args}
}

// toDriver converts a canonical value to what gocql marshals
func toDriver(v interface{}) interface{} {
	switch x := v.(type) {
	case uuid.UUID:
		return gocql.UUID(x)
	case []map[string]interface{}:
		out := make([]map[string]interface{}, 0, len(x))
		for _, m := range x {
			out = append(out, toDriver(m).(map[string]interface{}))
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, val := range x {
			out[k] = toDriver(val)
		}
		return out
	}
	return v
}

// fromDriver converts a scanned value back to the canonical form
func fromDriver(reg *schema.Registry, t schema.ColumnType, v interface{}) (interface{}, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case gocql.UUID:
		if x == (gocql.UUID{}) {
			return nil, nil
		}
		return reg.Normalize(t, uuid.UUID(x))
	case []map[string]interface{}:
		out := make([]map[string]interface{}, 0, len(x))
		for _, m := range x {
			out = append(out, plainUDT(m))
		}
		return reg.Normalize(t, out)
	case map[string]interface{}:
		return reg.Normalize(t, plainUDT(x))
	case time.Time:
		if x.IsZero() {
			return nil, nil
		}
	case []string:
		if len(x) == 0 {
			return nil, nil
		}
	case map[string]string:
		if len(x) == 0 {
			return nil, nil
		}
	}
	return reg.Normalize(t, v)
}

func plainUDT(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if u, ok := v.(gocql.UUID); ok {
			v = uuid.UUID(u)
		}
		out[k] = v
	}
	return out
}
