package schema

import (
	_ "embed"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed killrvideo.yaml
var defaultDocument []byte

// Order is the sort direction of a clustering column
type Order string

const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// Column is a named, typed column
type Column struct {
	Name string
	Type ColumnType
}

// ClusteringColumn is a clustering key column with its sort direction
type ClusteringColumn struct {
	Name  string
	Order Order
}

// UserType is a user-defined composite type
type UserType struct {
	Name   string
	Fields []Column
}

// Field looks up a field by name
func (u *UserType) Field(name string) (Column, bool) {
	for _, f := range u.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Column{}, false
}

// Keyspace holds the keyspace name and replication settings
type Keyspace struct {
	Name              string
	ReplicationClass  string
	ReplicationFactor int
}

// Table describes one physical table: its columns, key structure and the
// read shapes it serves.
type Table struct {
	Name         string
	Entity       string
	Columns      []Column
	PartitionKey []string
	Clustering   []ClusteringColumn
	Serves       []QueryShape

	columns map[string]Column
	counter bool
}

// Column looks up a column by name
func (t *Table) Column(name string) (Column, bool) {
	c, ok := t.columns[name]
	return c, ok
}

// IsCounterTable reports whether every regular column is a counter
func (t *Table) IsCounterTable() bool {
	return t.counter
}

// IsPartitionColumn reports whether name is part of the partition key
func (t *Table) IsPartitionColumn(name string) bool {
	for _, p := range t.PartitionKey {
		if p == name {
			return true
		}
	}
	return false
}

// ClusteringIndex returns the position of name in the clustering key, or -1
func (t *Table) ClusteringIndex(name string) int {
	for i, c := range t.Clustering {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// IsKeyColumn reports whether name belongs to the primary key
func (t *Table) IsKeyColumn(name string) bool {
	return t.IsPartitionColumn(name) || t.ClusteringIndex(name) >= 0
}

// PrimaryKey returns partition columns followed by clustering columns
func (t *Table) PrimaryKey() []string {
	keys := append([]string(nil), t.PartitionKey...)
	for _, c := range t.Clustering {
		keys = append(keys, c.Name)
	}
	return keys
}

// RegularColumns returns the non-key columns in declaration order
func (t *Table) RegularColumns() []Column {
	var out []Column
	for _, c := range t.Columns {
		if !t.IsKeyColumn(c.Name) {
			out = append(out, c)
		}
	}
	return out
}

// KeySignature renders the ordered key layout, e.g. `(userid) added_date desc, videoid asc`
func (t *Table) KeySignature() string {
	parts := make([]string, 0, len(t.Clustering))
	for _, c := range t.Clustering {
		parts = append(parts, fmt.Sprintf("%s %s", c.Name, c.Order))
	}
	return fmt.Sprintf("(%s) %s", strings.Join(t.PartitionKey, ", "), strings.Join(parts, ", "))
}

// Registry is the immutable, validated description of every table. It is
// built once at startup and shared read-only.
type Registry struct {
	keyspace   Keyspace
	types      map[string]*UserType
	typeOrder  []string
	tables     map[string]*Table
	tableOrder []string
	shapes     map[QueryShape]string
}

// Load parses the built-in killrvideo schema
func Load() (*Registry, error) {
	return Parse(defaultDocument)
}

// MustLoad is Load for package-level initialization and tests
func MustLoad() *Registry {
	r, err := Load()
	if err != nil {
		panic(err)
	}
	return r
}

type columnDoc struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type clusteringDoc struct {
	Column string `yaml:"column"`
	Order  string `yaml:"order"`
}

type tableDoc struct {
	Name         string          `yaml:"name"`
	Entity       string          `yaml:"entity"`
	Columns      []columnDoc     `yaml:"columns"`
	PartitionKey []string        `yaml:"partition_key"`
	Clustering   []clusteringDoc `yaml:"clustering"`
	Serves       []string        `yaml:"serves"`
}

type typeDoc struct {
	Name   string      `yaml:"name"`
	Fields []columnDoc `yaml:"fields"`
}

type document struct {
	Keyspace struct {
		Name        string `yaml:"name"`
		Replication struct {
			Class             string `yaml:"class"`
			ReplicationFactor int    `yaml:"replication_factor"`
		} `yaml:"replication"`
	} `yaml:"keyspace"`
	Types  []typeDoc  `yaml:"types"`
	Tables []tableDoc `yaml:"tables"`
}

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Parse builds a registry from a YAML document and validates it. Any
// inconsistency is a configuration error and nothing is returned.
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema document: %w", err)
	}

	r := &Registry{
		keyspace: Keyspace{
			Name:              doc.Keyspace.Name,
			ReplicationClass:  doc.Keyspace.Replication.Class,
			ReplicationFactor: doc.Keyspace.Replication.ReplicationFactor,
		},
		types:  make(map[string]*UserType),
		tables: make(map[string]*Table),
		shapes: make(map[QueryShape]string),
	}
	if !identPattern.MatchString(r.keyspace.Name) {
		return nil, fmt.Errorf("invalid keyspace name %q", r.keyspace.Name)
	}
	if r.keyspace.ReplicationClass == "" {
		r.keyspace.ReplicationClass = "SimpleStrategy"
	}
	if r.keyspace.ReplicationFactor <= 0 {
		r.keyspace.ReplicationFactor = 1
	}

	for _, td := range doc.Types {
		ut, err := r.buildType(td)
		if err != nil {
			return nil, err
		}
		r.types[ut.Name] = ut
		r.typeOrder = append(r.typeOrder, ut.Name)
	}

	for _, td := range doc.Tables {
		t, err := r.buildTable(td)
		if err != nil {
			return nil, err
		}
		r.tables[t.Name] = t
		r.tableOrder = append(r.tableOrder, t.Name)
	}

	if err := r.bindShapes(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) buildType(td typeDoc) (*UserType, error) {
	if !identPattern.MatchString(td.Name) {
		return nil, fmt.Errorf("invalid type name %q", td.Name)
	}
	if _, dup := r.types[td.Name]; dup {
		return nil, fmt.Errorf("type %q declared twice", td.Name)
	}
	if len(td.Fields) == 0 {
		return nil, fmt.Errorf("type %q has no fields", td.Name)
	}
	ut := &UserType{Name: td.Name}
	seen := make(map[string]bool)
	for _, f := range td.Fields {
		if seen[f.Name] {
			return nil, fmt.Errorf("type %q: field %q declared twice", td.Name, f.Name)
		}
		seen[f.Name] = true
		ct, err := r.resolveType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("type %q field %q: %w", td.Name, f.Name, err)
		}
		if ct.Kind == KindCounter {
			return nil, fmt.Errorf("type %q field %q: counters cannot be nested", td.Name, f.Name)
		}
		ut.Fields = append(ut.Fields, Column{Name: f.Name, Type: ct})
	}
	return ut, nil
}

func (r *Registry) buildTable(td tableDoc) (*Table, error) {
	if !identPattern.MatchString(td.Name) {
		return nil, fmt.Errorf("invalid table name %q", td.Name)
	}
	if _, dup := r.tables[td.Name]; dup {
		return nil, fmt.Errorf("table %q declared twice", td.Name)
	}

	t := &Table{
		Name:         td.Name,
		Entity:       td.Entity,
		PartitionKey: td.PartitionKey,
		columns:      make(map[string]Column),
	}

	for _, cd := range td.Columns {
		if !identPattern.MatchString(cd.Name) {
			return nil, fmt.Errorf("table %q: invalid column name %q", td.Name, cd.Name)
		}
		if _, dup := t.columns[cd.Name]; dup {
			return nil, fmt.Errorf("table %q: column %q declared twice", td.Name, cd.Name)
		}
		ct, err := r.resolveType(cd.Type)
		if err != nil {
			return nil, fmt.Errorf("table %q column %q: %w", td.Name, cd.Name, err)
		}
		col := Column{Name: cd.Name, Type: ct}
		t.Columns = append(t.Columns, col)
		t.columns[cd.Name] = col
	}

	if len(t.PartitionKey) == 0 {
		return nil, fmt.Errorf("table %q has no partition key", td.Name)
	}
	keySeen := make(map[string]bool)
	for _, p := range t.PartitionKey {
		col, ok := t.columns[p]
		if !ok {
			return nil, fmt.Errorf("table %q: partition key column %q is not declared", td.Name, p)
		}
		if keySeen[p] {
			return nil, fmt.Errorf("table %q: key column %q repeated", td.Name, p)
		}
		keySeen[p] = true
		if !col.Type.Orderable() {
			return nil, fmt.Errorf("table %q: partition key column %q has unsupported type %s", td.Name, p, col.Type)
		}
	}

	for _, cd := range td.Clustering {
		col, ok := t.columns[cd.Column]
		if !ok {
			return nil, fmt.Errorf("table %q: clustering column %q is not declared", td.Name, cd.Column)
		}
		if keySeen[cd.Column] {
			return nil, fmt.Errorf("table %q: key column %q repeated", td.Name, cd.Column)
		}
		keySeen[cd.Column] = true
		if !col.Type.Orderable() {
			return nil, fmt.Errorf("table %q: clustering column %q has unorderable type %s", td.Name, cd.Column, col.Type)
		}
		order := Order(strings.ToLower(cd.Order))
		if order == "" {
			order = Asc
		}
		if order != Asc && order != Desc {
			return nil, fmt.Errorf("table %q: clustering column %q has invalid order %q", td.Name, cd.Column, cd.Order)
		}
		t.Clustering = append(t.Clustering, ClusteringColumn{Name: cd.Column, Order: order})
	}

	counters, regular := 0, 0
	for _, c := range t.Columns {
		if keySeen[c.Name] {
			continue
		}
		if c.Type.Kind == KindCounter {
			counters++
		} else {
			regular++
		}
	}
	if counters > 0 && regular > 0 {
		return nil, fmt.Errorf("table %q mixes counter and regular columns", td.Name)
	}
	t.counter = counters > 0

	for _, s := range td.Serves {
		t.Serves = append(t.Serves, QueryShape(s))
	}
	return t, nil
}

// resolveType parses a type and checks that any user type it references exists
func (r *Registry) resolveType(s string) (ColumnType, error) {
	ct, err := ParseColumnType(s)
	if err != nil {
		return ColumnType{}, err
	}
	if err := r.checkUDTs(ct); err != nil {
		return ColumnType{}, err
	}
	return ct, nil
}

func (r *Registry) checkUDTs(ct ColumnType) error {
	switch ct.Kind {
	case KindUDT:
		if _, ok := r.types[ct.UDT]; !ok {
			return fmt.Errorf("unknown type %q", ct.UDT)
		}
	case KindSet:
		if ct.Elem.Kind == KindUDT && !ct.Elem.Frozen {
			return fmt.Errorf("user type %q inside a collection must be frozen", ct.Elem.UDT)
		}
		return r.checkUDTs(*ct.Elem)
	case KindMap:
		if err := r.checkUDTs(*ct.Key); err != nil {
			return err
		}
		return r.checkUDTs(*ct.Elem)
	}
	return nil
}

// bindShapes assigns each shape to its table. Two tables may only claim the
// same shape when their key layouts are identical; the first declared wins.
func (r *Registry) bindShapes() error {
	for _, name := range r.tableOrder {
		t := r.tables[name]
		for _, shape := range t.Serves {
			owner, claimed := r.shapes[shape]
			if !claimed {
				r.shapes[shape] = t.Name
				continue
			}
			if owner == t.Name {
				return fmt.Errorf("table %q lists query shape %q twice", t.Name, shape)
			}
			prev := r.tables[owner]
			if prev.KeySignature() != t.KeySignature() {
				return fmt.Errorf("query shape %q is claimed by %q %s and %q %s with different key orders",
					shape, prev.Name, prev.KeySignature(), t.Name, t.KeySignature())
			}
		}
	}
	return nil
}

// Keyspace returns the keyspace settings
func (r *Registry) Keyspace() Keyspace {
	return r.keyspace
}

// WithKeyspace returns a registry that places every table in the named
// keyspace. The table definitions are shared.
func (r *Registry) WithKeyspace(name string) *Registry {
	if name == "" || name == r.keyspace.Name {
		return r
	}
	cp := *r
	cp.keyspace.Name = name
	return &cp
}

// Table looks up a table by name
func (r *Registry) Table(name string) (*Table, bool) {
	t, ok := r.tables[name]
	return t, ok
}

// Tables returns all tables in declaration order
func (r *Registry) Tables() []*Table {
	out := make([]*Table, 0, len(r.tableOrder))
	for _, name := range r.tableOrder {
		out = append(out, r.tables[name])
	}
	return out
}

// UserType looks up a user-defined type
func (r *Registry) UserType(name string) (*UserType, bool) {
	ut, ok := r.types[name]
	return ut, ok
}

// UserTypes returns all user types in declaration order
func (r *Registry) UserTypes() []*UserType {
	out := make([]*UserType, 0, len(r.typeOrder))
	for _, name := range r.typeOrder {
		out = append(out, r.types[name])
	}
	return out
}

// TableFor returns the single table serving a query shape
func (r *Registry) TableFor(shape QueryShape) (*Table, bool) {
	name, ok := r.shapes[shape]
	if !ok {
		return nil, false
	}
	return r.tables[name], true
}

// Shapes returns every served shape, ordered by serving table and then by name
func (r *Registry) Shapes() []QueryShape {
	out := make([]QueryShape, 0, len(r.shapes))
	for s := range r.shapes {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := r.shapes[out[i]], r.shapes[out[j]]
		if ti != tj {
			return ti < tj
		}
		return out[i] < out[j]
	})
	return out
}
