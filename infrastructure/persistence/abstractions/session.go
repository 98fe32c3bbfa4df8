package abstractions

import (
	"context"
	"errors"
	"fmt"

	"killrvideo/infrastructure/persistence/schema"
)

// Session is the single boundary between the data model and a wide-column
// store. Implementations exist for an in-memory store, DynamoDB and Cassandra;
// callers never see engine-specific types.
//
// Rows are exchanged in the canonical value form documented in the schema
// package. Every write is validated against the registry before it reaches
// the engine.
type Session interface {
	schema.Definer

	// Upsert replaces the row identified by its primary key
	Upsert(ctx context.Context, table string, row Row) error

	// Append inserts a row that must not exist yet. It returns ErrRowExists
	// when a row with the same primary key is already stored.
	Append(ctx context.Context, table string, row Row) error

	// Delete removes the row at key. Deleting a missing row is not an error.
	Delete(ctx context.Context, table string, key Row) error

	// Increment atomically adds deltas to counter columns of the row at key
	Increment(ctx context.Context, table string, key Row, deltas map[string]int64) error

	// Batch applies statements atomically: all of them become visible or
	// none does. Counter statements cannot be batched.
	Batch(ctx context.Context, stmts []Statement) error

	// Query opens a lazy cursor over one partition
	Query(ctx context.Context, q Query) (Iterator, error)

	Close() error
}

// Row maps column names to canonical values
type Row map[string]interface{}

// Clone returns a shallow copy of the row
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

var (
	// ErrRowExists is returned by Append when the primary key is taken
	ErrRowExists = errors.New("row already exists")

	// ErrClosed is returned by a session after Close
	ErrClosed = errors.New("session closed")
)

// StatementKind is the write operation a statement performs
type StatementKind int

const (
	KindUpsert StatementKind = iota
	KindAppend
	KindIncrement
	KindDelete
)

func (k StatementKind) String() string {
	switch k {
	case KindUpsert:
		return "upsert"
	case KindAppend:
		return "append"
	case KindIncrement:
		return "increment"
	case KindDelete:
		return "delete"
	}
	return fmt.Sprintf("StatementKind(%d)", int(k))
}

// Statement is one write against one table. For increments Row holds the
// primary key and Deltas the counter changes.
type Statement struct {
	Kind   StatementKind
	Table  string
	Row    Row
	Deltas map[string]int64
}

// UpsertStmt builds an upsert statement
func UpsertStmt(table string, row Row) Statement {
	return Statement{Kind: KindUpsert, Table: table, Row: row}
}

// AppendStmt builds an append statement
func AppendStmt(table string, row Row) Statement {
	return Statement{Kind: KindAppend, Table: table, Row: row}
}

// IncrementStmt builds a counter increment statement
func IncrementStmt(table string, key Row, deltas map[string]int64) Statement {
	return Statement{Kind: KindIncrement, Table: table, Row: key, Deltas: deltas}
}

// DeleteStmt builds a delete statement
func DeleteStmt(table string, key Row) Statement {
	return Statement{Kind: KindDelete, Table: table, Row: key}
}

// Exec dispatches a single statement to the matching session operation
func Exec(ctx context.Context, s Session, st Statement) error {
	switch st.Kind {
	case KindUpsert:
		return s.Upsert(ctx, st.Table, st.Row)
	case KindAppend:
		return s.Append(ctx, st.Table, st.Row)
	case KindIncrement:
		return s.Increment(ctx, st.Table, st.Row, st.Deltas)
	case KindDelete:
		return s.Delete(ctx, st.Table, st.Row)
	}
	return fmt.Errorf("unknown statement kind %s", st.Kind)
}

// Bound is one end of a clustering range
type Bound struct {
	Value     interface{}
	Inclusive bool
}

// Range restricts one clustering column. A nil bound is open.
type Range struct {
	Column string
	Lower  *Bound
	Upper  *Bound
}

// Query selects rows from one partition. Equal must name every partition
// column and may continue with a prefix of the clustering columns; Range may
// then restrict the next clustering column.
type Query struct {
	Table   string
	Equal   Row
	Range   *Range
	Limit   int
	Reverse bool
}

// Iterator is a lazy, forward-only cursor. It cannot be restarted.
type Iterator interface {
	Next() bool
	Row() Row
	Err() error
	Close() error
}
