package abstractions

import (
	"fmt"

	"killrvideo/infrastructure/persistence/schema"
	"killrvideo/pkg/errors"
)

// Validator checks statements and queries against the registry and converts
// their values to canonical form. Engines run every write and read through it.
type Validator struct {
	reg *schema.Registry
}

// NewValidator creates a validator over reg
func NewValidator(reg *schema.Registry) *Validator {
	return &Validator{reg: reg}
}

// Registry returns the registry the validator checks against
func (v *Validator) Registry() *schema.Registry {
	return v.reg
}

// CheckStatement validates st and returns a copy with normalized values.
// Failures are schema violations.
func (v *Validator) CheckStatement(st Statement) (Statement, *schema.Table, error) {
	table, ok := v.reg.Table(st.Table)
	if !ok {
		return st, nil, errors.NewSchemaViolationError(st.Table, "unknown table")
	}

	switch st.Kind {
	case KindUpsert, KindAppend:
		if table.IsCounterTable() {
			return st, nil, errors.NewSchemaViolationError(table.Name, fmt.Sprintf("%s is not allowed on a counter table", st.Kind))
		}
		if len(st.Deltas) > 0 {
			return st, nil, errors.NewSchemaViolationError(table.Name, "deltas are only allowed on increments")
		}
		row, err := v.normalizeRow(table, st.Row)
		if err != nil {
			return st, nil, err
		}
		st.Row = row
	case KindIncrement:
		if !table.IsCounterTable() {
			return st, nil, errors.NewSchemaViolationError(table.Name, "increment requires a counter table")
		}
		key, err := v.normalizeRow(table, st.Row)
		if err != nil {
			return st, nil, err
		}
		for name := range key {
			if !table.IsKeyColumn(name) {
				return st, nil, errors.NewSchemaViolationError(table.Name, fmt.Sprintf("column %q is not part of the primary key", name))
			}
		}
		if len(st.Deltas) == 0 {
			return st, nil, errors.NewSchemaViolationError(table.Name, "increment has no deltas")
		}
		deltas := make(map[string]int64, len(st.Deltas))
		for name, d := range st.Deltas {
			col, ok := table.Column(name)
			if !ok || col.Type.Kind != schema.KindCounter {
				return st, nil, errors.NewSchemaViolationError(table.Name, fmt.Sprintf("%q is not a counter column", name))
			}
			deltas[name] = d
		}
		st.Row = key
		st.Deltas = deltas
	case KindDelete:
		if table.IsCounterTable() {
			return st, nil, errors.NewSchemaViolationError(table.Name, "delete is not allowed on a counter table")
		}
		key, err := v.normalizeRow(table, st.Row)
		if err != nil {
			return st, nil, err
		}
		for name := range key {
			if !table.IsKeyColumn(name) {
				return st, nil, errors.NewSchemaViolationError(table.Name, fmt.Sprintf("column %q is not part of the primary key", name))
			}
		}
		st.Row = key
	default:
		return st, nil, errors.NewSchemaViolationError(table.Name, fmt.Sprintf("unknown statement kind %s", st.Kind))
	}
	return st, table, nil
}

// CheckBatch validates every statement of an atomic batch
func (v *Validator) CheckBatch(stmts []Statement, maxStatements int) ([]Statement, error) {
	if len(stmts) == 0 {
		return nil, nil
	}
	if maxStatements > 0 && len(stmts) > maxStatements {
		return nil, errors.NewSchemaViolationError(stmts[0].Table,
			fmt.Sprintf("batch of %d statements exceeds the limit of %d", len(stmts), maxStatements))
	}
	out := make([]Statement, 0, len(stmts))
	for _, st := range stmts {
		if st.Kind == KindIncrement {
			return nil, errors.NewSchemaViolationError(st.Table, "counter statements cannot be batched")
		}
		checked, _, err := v.CheckStatement(st)
		if err != nil {
			return nil, err
		}
		out = append(out, checked)
	}
	return out, nil
}

func (v *Validator) normalizeRow(table *schema.Table, row Row) (Row, error) {
	out := make(Row, len(row))
	for name, val := range row {
		col, ok := table.Column(name)
		if !ok {
			return nil, errors.NewSchemaViolationError(table.Name, fmt.Sprintf("unknown column %q", name))
		}
		n, err := v.reg.Normalize(col.Type, val)
		if err != nil {
			return nil, errors.NewSchemaViolationError(table.Name, fmt.Sprintf("column %q: %v", name, err))
		}
		if n != nil {
			out[name] = n
		}
	}
	for _, name := range table.PrimaryKey() {
		if schema.IsZeroValue(out[name]) {
			return nil, errors.NewSchemaViolationError(table.Name, fmt.Sprintf("missing primary key column %q", name))
		}
	}
	return out, nil
}

// PreparedQuery is a validated query with normalized values
type PreparedQuery struct {
	Table     *schema.Table
	Partition Row
	// Prefix holds values for the leading clustering columns, in order
	Prefix  []interface{}
	Range   *Range
	Limit   int
	Reverse bool
}

// Prepare validates q. Reads the table layout cannot serve come back as
// unsupported query shapes.
func (v *Validator) Prepare(q Query) (*PreparedQuery, error) {
	table, ok := v.reg.Table(q.Table)
	if !ok {
		return nil, errors.NewUnsupportedQueryShapeError(q.Table, "unknown table")
	}
	shape := q.Table

	p := &PreparedQuery{Table: table, Partition: Row{}, Limit: q.Limit, Reverse: q.Reverse}
	if q.Limit < 0 {
		return nil, errors.NewUnsupportedQueryShapeError(shape, "limit must not be negative")
	}

	for name, val := range q.Equal {
		col, ok := table.Column(name)
		if !ok {
			return nil, errors.NewUnsupportedQueryShapeError(shape, fmt.Sprintf("unknown column %q", name))
		}
		if !table.IsKeyColumn(name) {
			return nil, errors.NewUnsupportedQueryShapeError(shape, fmt.Sprintf("%q is not a key column", name))
		}
		if _, err := v.reg.Normalize(col.Type, val); err != nil {
			return nil, errors.NewUnsupportedQueryShapeError(shape, fmt.Sprintf("column %q: %v", name, err))
		}
	}

	for _, name := range table.PartitionKey {
		col, _ := table.Column(name)
		n, _ := v.reg.Normalize(col.Type, q.Equal[name])
		if schema.IsZeroValue(n) {
			return nil, errors.NewUnsupportedQueryShapeError(shape, fmt.Sprintf("missing partition key column %q", name))
		}
		p.Partition[name] = n
	}

	// Clustering equalities must form a prefix with no gaps.
	for _, c := range table.Clustering {
		val, ok := q.Equal[c.Name]
		if !ok {
			break
		}
		col, _ := table.Column(c.Name)
		n, _ := v.reg.Normalize(col.Type, val)
		if n == nil {
			break
		}
		p.Prefix = append(p.Prefix, n)
	}
	for name := range q.Equal {
		if idx := table.ClusteringIndex(name); idx >= len(p.Prefix) {
			return nil, errors.NewUnsupportedQueryShapeError(shape,
				fmt.Sprintf("equality on %q requires equality on every preceding clustering column", name))
		}
	}

	if q.Range != nil && (q.Range.Lower != nil || q.Range.Upper != nil) {
		idx := table.ClusteringIndex(q.Range.Column)
		if idx < 0 {
			return nil, errors.NewUnsupportedQueryShapeError(shape, fmt.Sprintf("range on %q which is not a clustering column", q.Range.Column))
		}
		if idx != len(p.Prefix) {
			return nil, errors.NewUnsupportedQueryShapeError(shape,
				fmt.Sprintf("range on %q requires equality on every preceding clustering column", q.Range.Column))
		}
		col, _ := table.Column(q.Range.Column)
		r := &Range{Column: q.Range.Column}
		for _, pair := range []struct {
			in  *Bound
			out **Bound
		}{{q.Range.Lower, &r.Lower}, {q.Range.Upper, &r.Upper}} {
			if pair.in == nil {
				continue
			}
			n, err := v.reg.Normalize(col.Type, pair.in.Value)
			if err != nil || n == nil {
				return nil, errors.NewUnsupportedQueryShapeError(shape, fmt.Sprintf("invalid bound on %q", q.Range.Column))
			}
			*pair.out = &Bound{Value: n, Inclusive: pair.in.Inclusive}
		}
		p.Range = r
	}
	return p, nil
}

// Matches reports whether a stored row satisfies the query
func (p *PreparedQuery) Matches(row Row) bool {
	for name, want := range p.Partition {
		col, _ := p.Table.Column(name)
		got, ok := row[name]
		if !ok || got == nil || schema.Compare(col.Type, got, want) != 0 {
			return false
		}
	}
	for i, want := range p.Prefix {
		name := p.Table.Clustering[i].Name
		col, _ := p.Table.Column(name)
		got, ok := row[name]
		if !ok || got == nil || schema.Compare(col.Type, got, want) != 0 {
			return false
		}
	}
	if p.Range == nil {
		return true
	}
	col, _ := p.Table.Column(p.Range.Column)
	got, ok := row[p.Range.Column]
	if !ok || got == nil {
		return false
	}
	if lo := p.Range.Lower; lo != nil {
		c := schema.Compare(col.Type, got, lo.Value)
		if c < 0 || (c == 0 && !lo.Inclusive) {
			return false
		}
	}
	if hi := p.Range.Upper; hi != nil {
		c := schema.Compare(col.Type, got, hi.Value)
		if c > 0 || (c == 0 && !hi.Inclusive) {
			return false
		}
	}
	return true
}

// CompareRows orders two rows of table in stored clustering order
func CompareRows(table *schema.Table, a, b Row) int {
	for _, c := range table.Clustering {
		col, _ := table.Column(c.Name)
		cmp := schema.Compare(col.Type, a[c.Name], b[c.Name])
		if cmp == 0 {
			continue
		}
		if c.Order == schema.Desc {
			return -cmp
		}
		return cmp
	}
	return 0
}

// PartitionKeyOf extracts the partition key values of row in declaration order
func PartitionKeyOf(table *schema.Table, row Row) []interface{} {
	out := make([]interface{}, 0, len(table.PartitionKey))
	for _, name := range table.PartitionKey {
		out = append(out, row[name])
	}
	return out
}
